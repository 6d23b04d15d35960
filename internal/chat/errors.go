package chat

import (
	"errors"
	"fmt"
)

var (
	ErrSaveFailed  = errors.New("failed to save message")
	ErrRecognition = errors.New("speech recognition failed")
)

// RecognitionError is reported by the speech recognizer.
type RecognitionError struct {
	Message string
}

func (e *RecognitionError) Error() string {
	return fmt.Sprintf("Failed to recognize speech: %s", e.Message)
}

func (e *RecognitionError) Unwrap() error { return ErrRecognition }

// ErrorReply is the chat text shown in place of a reply when generation fails.
func ErrorReply(err error) string {
	return fmt.Sprintf("Sorry, I encountered an error: %v", err)
}
