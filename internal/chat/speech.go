package chat

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

const speechUnavailableText = "Speech recognition is not available on this device"

var ErrSpeechUnavailable = errors.New(speechUnavailableText)

type SpeechEventType string

const (
	SpeechStart  SpeechEventType = "start"
	SpeechResult SpeechEventType = "result"
	SpeechError  SpeechEventType = "error"
)

// SpeechEvent is one notification from a recognizer.
type SpeechEvent struct {
	Type    SpeechEventType `json:"type"`
	Text    string          `json:"text,omitempty"`
	IsFinal bool            `json:"isFinal,omitempty"`
	Message string          `json:"message,omitempty"`
}

// StartRecording begins speech capture in the session's language. When no
// recognizer is available a notice is added to the thread instead.
func (o *Orchestrator) StartRecording(ctx context.Context, sess *Session) (*Exchange, error) {
	if o.recognizer == nil || !o.recognizer.Available() {
		o.logger.Warn("speech recognition not available")
		return o.notify(ctx, sess, speechUnavailableText, ErrSpeechUnavailable)
	}
	sess.Transcript = ""
	if err := o.recognizer.Start(ctx, sess.Language); err != nil {
		o.logger.Error("failed to start speech recognition", zap.Error(err))
		return o.HandleSpeech(ctx, sess, SpeechEvent{Type: SpeechError, Message: err.Error()})
	}
	sess.Recording = true
	return nil, nil
}

// StopRecording stops capture. A pending interim transcript is submitted.
func (o *Orchestrator) StopRecording(ctx context.Context, sess *Session) (*Exchange, error) {
	o.stopRecognizer()
	sess.Recording = false
	pending := sess.Transcript
	sess.Transcript = ""
	return o.Submit(ctx, sess, pending)
}

// HandleSpeech applies a recognizer event to the session. Final results are
// submitted like typed text; errors become a visible message.
func (o *Orchestrator) HandleSpeech(ctx context.Context, sess *Session, ev SpeechEvent) (*Exchange, error) {
	switch ev.Type {
	case SpeechStart:
		sess.Recording = true
		sess.Transcript = ""
		return nil, nil

	case SpeechResult:
		if !ev.IsFinal {
			sess.Transcript = ev.Text
			return nil, nil
		}
		o.stopRecognizer()
		sess.Recording = false
		sess.Transcript = ""
		return o.Submit(ctx, sess, ev.Text)

	case SpeechError:
		o.stopRecognizer()
		sess.Recording = false
		sess.Transcript = ""
		rerr := &RecognitionError{Message: ev.Message}
		o.logger.Warn("speech recognition error", zap.String("message", ev.Message))
		return o.notify(ctx, sess, rerr.Error(), rerr)
	}

	o.logger.Warn("ignoring unknown speech event", zap.String("type", string(ev.Type)))
	return nil, nil
}

func (o *Orchestrator) stopRecognizer() {
	if o.recognizer == nil {
		return
	}
	if err := o.recognizer.Stop(); err != nil {
		o.logger.Warn("failed to stop speech recognition", zap.Error(err))
	}
}
