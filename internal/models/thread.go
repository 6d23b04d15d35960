package models

import (
	"strconv"
	"time"
)

const (
	DefaultThreadTitle = "New Conversation"
	WelcomeMessageID   = "welcome"
	WelcomeText        = "Welcome to a new conversation! You can ask me anything."

	titlePreviewLength = 30
)

type Message struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"` // epoch millis
	IsUser    bool   `json:"isUser"`
}

type Thread struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt int64     `json:"createdAt"`
	UpdatedAt int64     `json:"updatedAt"`
	Messages  []Message `json:"messages"`
}

// NewThread returns an empty thread whose id is derived from now.
func NewThread(now time.Time) Thread {
	ms := now.UnixMilli()
	return Thread{
		ID:        strconv.FormatInt(ms, 10),
		Title:     DefaultThreadTitle,
		CreatedAt: ms,
		UpdatedAt: ms,
		Messages:  []Message{},
	}
}

func WelcomeMessage(now time.Time) Message {
	return Message{
		ID:        WelcomeMessageID,
		Content:   WelcomeText,
		Timestamp: now.UnixMilli(),
		IsUser:    false,
	}
}

// HasUserMessage reports whether any message in the thread came from the user.
func (t *Thread) HasUserMessage() bool {
	for _, m := range t.Messages {
		if m.IsUser {
			return true
		}
	}
	return false
}

// Append adds msg to the end of the thread. The title is taken from the first
// user message only, and UpdatedAt never moves backwards.
func (t *Thread) Append(msg Message, now time.Time) {
	if msg.IsUser && !t.HasUserMessage() && msg.Content != "" {
		t.Title = TitlePreview(msg.Content)
	}
	t.Messages = append(t.Messages, msg)
	if ms := now.UnixMilli(); ms > t.UpdatedAt {
		t.UpdatedAt = ms
	}
}

// TitlePreview truncates text to 30 runes, adding an ellipsis when cut.
func TitlePreview(text string) string {
	runes := []rune(text)
	if len(runes) <= titlePreviewLength {
		return text
	}
	return string(runes[:titlePreviewLength]) + "..."
}

// Clone returns a copy that does not share the message slice.
func (t Thread) Clone() Thread {
	msgs := make([]Message, len(t.Messages))
	copy(msgs, t.Messages)
	t.Messages = msgs
	return t
}
