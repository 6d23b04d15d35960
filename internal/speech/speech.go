// Package speech holds the recognizer and synthesizer used when talkback runs
// without audio hardware.
package speech

import (
	"context"

	"github.com/RichardoC/talkback/internal/chat"
	"github.com/RichardoC/talkback/internal/models"
	"go.uber.org/zap"
)

// Unavailable is a recognizer for hosts with no microphone. Recognition
// happens on the client, which reports events through the API.
type Unavailable struct{}

func (Unavailable) Available() bool                              { return false }
func (Unavailable) Start(context.Context, models.Language) error { return chat.ErrSpeechUnavailable }
func (Unavailable) Stop() error                                  { return nil }

// LogSynthesizer records replies that would be read aloud.
type LogSynthesizer struct {
	logger *zap.Logger
}

func NewLogSynthesizer(logger *zap.Logger) *LogSynthesizer {
	return &LogSynthesizer{logger: logger}
}

func (s *LogSynthesizer) Speak(text string, opts chat.SpeakOptions) {
	s.logger.Debug("speak",
		zap.String("language", string(opts.Language)),
		zap.Int("length", len([]rune(text))))
}
