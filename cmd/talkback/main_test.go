package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RichardoC/talkback/internal/chat"
	"github.com/RichardoC/talkback/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct{}

func (stubGenerator) Send(_ context.Context, _ models.ModelID, prompt string) (string, error) {
	return "echo " + prompt, nil
}

func setupAppTest(t *testing.T) *app {
	t.Helper()
	t.Setenv("TALKBACK_STORAGE_DRIVER", "memory")
	t.Setenv("TALKBACK_LOG_LEVEL", "error")
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	t.Setenv("DEEPSEEK_API_KEY", "")
	t.Setenv("PERPLEXITY_API_KEY", "")

	opts := &rootOptions{configPath: filepath.Join(t.TempDir(), "talkback.toml")}
	a, err := newApp(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(a.close)
	return a
}

func TestNewApp_SeedsCredentials(t *testing.T) {
	a := setupAppTest(t)
	ctx := context.Background()

	key, err := a.settings.Credential(ctx, models.ProviderOpenAI)
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", key)

	require.NoError(t, a.settings.SetCredential(ctx, models.ProviderOpenAI, "sk-stored"))
	require.NoError(t, a.seedCredentials(ctx))
	key, err = a.settings.Credential(ctx, models.ProviderOpenAI)
	require.NoError(t, err)
	assert.Equal(t, "sk-stored", key)

	has, err := a.settings.HasCredential(ctx, models.ProviderDeepSeek)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestNewApp_RequiredConfigMissing(t *testing.T) {
	opts := &rootOptions{configPath: filepath.Join(t.TempDir(), "missing.toml"), configSet: true}
	_, err := newApp(context.Background(), opts)
	assert.Error(t, err)
}

func TestEngine(t *testing.T) {
	a := setupAppTest(t)
	a.cfg.Metrics.Enabled = true
	a.cfg.Server.Mode = "test"
	r := newEngine(a)

	for _, path := range []string{"/healthz", "/metrics", "/api/models", "/api/session"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func setupREPLTest(t *testing.T) (*repl, *bytes.Buffer) {
	t.Helper()
	a := setupAppTest(t)
	a.orch = newTestOrchestrator(a)

	sess, err := a.orch.Open(context.Background())
	require.NoError(t, err)
	var out bytes.Buffer
	return &repl{orch: a.orch, settings: a.settings, sess: sess, out: &out}, &out
}

func TestREPL_Submit(t *testing.T) {
	r, out := setupREPLTest(t)
	ctx := context.Background()

	more, err := r.handle(ctx, "hello")
	require.NoError(t, err)
	assert.True(t, more)
	assert.Contains(t, out.String(), "assistant> echo hello")

	more, err = r.handle(ctx, "   ")
	require.NoError(t, err)
	assert.True(t, more)
}

func TestREPL_Commands(t *testing.T) {
	r, out := setupREPLTest(t)
	ctx := context.Background()
	first := r.sess.ThreadID

	_, err := r.handle(ctx, "/new")
	require.NoError(t, err)
	second := r.sess.ThreadID
	assert.NotEqual(t, first, second)

	out.Reset()
	_, err = r.handle(ctx, "/threads")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "* "+second))

	_, err = r.handle(ctx, "/use "+first)
	require.NoError(t, err)
	assert.Equal(t, first, r.sess.ThreadID)

	_, err = r.handle(ctx, "/use nope")
	assert.Error(t, err)

	_, err = r.handle(ctx, "/delete "+second)
	require.NoError(t, err)
	assert.Equal(t, first, r.sess.ThreadID)

	_, err = r.handle(ctx, "/model deepseek-chat")
	require.NoError(t, err)
	assert.Equal(t, models.DeepSeekChat, r.sess.Model)
	assert.Contains(t, out.String(), "No API key found for DeepSeek")

	_, err = r.handle(ctx, "/model gpt-9")
	assert.Error(t, err)

	_, err = r.handle(ctx, "/bogus")
	assert.Error(t, err)

	more, err := r.handle(ctx, "/quit")
	require.NoError(t, err)
	assert.False(t, more)
}

func TestModelsCmd(t *testing.T) {
	cmd := newModelsCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "* gpt-3.5-turbo")
	assert.Contains(t, out.String(), "sonar-reasoning-pro")
	assert.Contains(t, out.String(), "en-GB")
}

func newTestOrchestrator(a *app) *chat.Orchestrator {
	return chat.New(chat.Config{
		Threads:   a.threads,
		Settings:  a.settings,
		Generator: stubGenerator{},
		Logger:    a.logger,
	})
}
