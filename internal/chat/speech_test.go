package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/RichardoC/talkback/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartRecording_Unavailable(t *testing.T) {
	ctx := context.Background()
	f := setupOrchestratorTest(t)
	f.rec.available = false

	sess, err := f.orch.Open(ctx)
	require.NoError(t, err)
	ex, err := f.orch.StartRecording(ctx, sess)
	require.NoError(t, err)
	require.NotNil(t, ex)
	assert.Nil(t, ex.User)
	assert.Equal(t, "Speech recognition is not available on this device", ex.Reply.Content)
	assert.ErrorIs(t, ex.Failed, ErrSpeechUnavailable)
	assert.False(t, sess.Recording)

	stored, err := f.repo.GetThread(ctx, sess.ThreadID)
	require.NoError(t, err)
	require.Len(t, stored.Messages, 2)
	assert.False(t, stored.Messages[1].IsUser)
}

func TestStartRecording_UsesSessionLanguage(t *testing.T) {
	ctx := context.Background()
	f := setupOrchestratorTest(t)
	require.NoError(t, f.settings.SetLanguage(ctx, "ja-JP"))

	sess, err := f.orch.Open(ctx)
	require.NoError(t, err)
	ex, err := f.orch.StartRecording(ctx, sess)
	require.NoError(t, err)
	assert.Nil(t, ex)
	assert.True(t, sess.Recording)
	assert.Equal(t, []models.Language{"ja-JP"}, f.rec.started)
}

func TestStartRecording_StartFailure(t *testing.T) {
	ctx := context.Background()
	f := setupOrchestratorTest(t)
	f.rec.startErr = errors.New("microphone busy")

	sess, err := f.orch.Open(ctx)
	require.NoError(t, err)
	ex, err := f.orch.StartRecording(ctx, sess)
	require.NoError(t, err)
	require.NotNil(t, ex)
	assert.Equal(t, "Failed to recognize speech: microphone busy", ex.Reply.Content)
	assert.False(t, sess.Recording)
}

func TestHandleSpeech_InterimThenFinal(t *testing.T) {
	ctx := context.Background()
	f := setupOrchestratorTest(t)

	sess, err := f.orch.Open(ctx)
	require.NoError(t, err)

	ex, err := f.orch.HandleSpeech(ctx, sess, SpeechEvent{Type: SpeechStart})
	require.NoError(t, err)
	assert.Nil(t, ex)
	assert.True(t, sess.Recording)

	ex, err = f.orch.HandleSpeech(ctx, sess, SpeechEvent{Type: SpeechResult, Text: "what is"})
	require.NoError(t, err)
	assert.Nil(t, ex)
	assert.Equal(t, "what is", sess.Transcript)
	assert.Empty(t, f.gen.prompts)

	ex, err = f.orch.HandleSpeech(ctx, sess, SpeechEvent{Type: SpeechResult, Text: "what is Mars", IsFinal: true})
	require.NoError(t, err)
	require.NotNil(t, ex)
	assert.Equal(t, "what is Mars", ex.User.Content)
	assert.False(t, sess.Recording)
	assert.Empty(t, sess.Transcript)
	assert.Equal(t, []string{"what is Mars"}, f.gen.prompts)
	assert.Equal(t, 1, f.rec.stops)
}

func TestHandleSpeech_Error(t *testing.T) {
	ctx := context.Background()
	f := setupOrchestratorTest(t)

	sess, err := f.orch.Open(ctx)
	require.NoError(t, err)
	sess.Recording = true

	ex, err := f.orch.HandleSpeech(ctx, sess, SpeechEvent{Type: SpeechError, Message: "no-speech"})
	require.NoError(t, err)
	require.NotNil(t, ex)
	assert.Equal(t, "Failed to recognize speech: no-speech", ex.Reply.Content)
	assert.ErrorIs(t, ex.Failed, ErrRecognition)
	assert.False(t, sess.Recording)
	assert.Empty(t, f.gen.prompts)

	stored, err := f.repo.GetThread(ctx, sess.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, ex.Reply.ID, stored.Messages[len(stored.Messages)-1].ID)
}

func TestStopRecording_SubmitsPendingTranscript(t *testing.T) {
	ctx := context.Background()
	f := setupOrchestratorTest(t)

	sess, err := f.orch.Open(ctx)
	require.NoError(t, err)
	_, err = f.orch.StartRecording(ctx, sess)
	require.NoError(t, err)
	_, err = f.orch.HandleSpeech(ctx, sess, SpeechEvent{Type: SpeechResult, Text: "half a sentence"})
	require.NoError(t, err)

	ex, err := f.orch.StopRecording(ctx, sess)
	require.NoError(t, err)
	require.NotNil(t, ex)
	assert.Equal(t, "half a sentence", ex.User.Content)
	assert.False(t, sess.Recording)

	ex, err = f.orch.StopRecording(ctx, sess)
	require.NoError(t, err)
	assert.Nil(t, ex)
}
