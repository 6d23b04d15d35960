package chat

import (
	"context"

	"github.com/RichardoC/talkback/internal/models"
)

// ThreadStore is the persistence the orchestrator works against.
type ThreadStore interface {
	ListThreads(ctx context.Context) ([]models.Thread, error)
	GetThread(ctx context.Context, id string) (*models.Thread, error)
	SaveThread(ctx context.Context, thread models.Thread) error
	DeleteThread(ctx context.Context, id string) error
	CurrentThreadID(ctx context.Context) (string, error)
	SetCurrentThreadID(ctx context.Context, id string) error
	ClearCurrentThreadID(ctx context.Context) error
}

type SettingsSource interface {
	Model(ctx context.Context) (models.ModelID, error)
	Language(ctx context.Context) (models.Language, error)
	HasCredential(ctx context.Context, p models.Provider) (bool, error)
}

// Generator turns a prompt into reply text for a model.
type Generator interface {
	Send(ctx context.Context, model models.ModelID, prompt string) (string, error)
}

// Refresher is implemented by generators that cache provider clients.
type Refresher interface {
	Refresh()
}

// Recognizer captures speech. Results arrive asynchronously and are fed back
// through Orchestrator.HandleSpeech.
type Recognizer interface {
	Available() bool
	Start(ctx context.Context, lang models.Language) error
	Stop() error
}

type SpeakOptions struct {
	Language models.Language
}

// Synthesizer reads text aloud. Speak must not block on playback.
type Synthesizer interface {
	Speak(text string, opts SpeakOptions)
}
