package chat

import "github.com/RichardoC/talkback/internal/models"

type State int

const (
	StateNoThread State = iota
	StateResolving
	StateRecovering
	StateReady
)

func (s State) String() string {
	switch s {
	case StateNoThread:
		return "no_thread"
	case StateResolving:
		return "resolving"
	case StateRecovering:
		return "recovering"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Session carries the per-user chat context: the selected model and
// language, the active thread and the rendered message list. A Session is
// owned by one caller and is not safe for concurrent use.
type Session struct {
	Model    models.ModelID
	Language models.Language
	ThreadID string
	Thread   *models.Thread
	// Messages is the rendered list, oldest first. It may run ahead of the
	// stored thread when a save fails.
	Messages []models.Message
	State    State
	// Warning is a user-facing notice, e.g. a missing API key.
	Warning string

	Recording  bool
	Transcript string
}

func (s *Session) setThread(thread *models.Thread) {
	s.Thread = thread
	s.ThreadID = thread.ID
	s.Messages = thread.Clone().Messages
	s.State = StateReady
}

// Exchange is the outcome of one submission.
type Exchange struct {
	User  *models.Message `json:"user,omitempty"`
	Reply models.Message  `json:"reply"`

	// Failed is the provider or recognition error the reply describes.
	Failed error `json:"-"`
	// Persist is set when a message could not be saved.
	Persist error `json:"-"`
}
