package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RichardoC/talkback/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"
)

type staticCreds map[models.Provider]string

func (c staticCreds) Credential(_ context.Context, p models.Provider) (string, error) {
	return c[p], nil
}

type fakeClient struct {
	mu       sync.Mutex
	reply    string
	err      error
	block    chan struct{}
	calls    [][]llms.MessageContent
	options  llms.CallOptions
	provider models.Provider
	token    string
}

func (c *fakeClient) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if c.block != nil {
		select {
		case <-c.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, messages)
	for _, opt := range options {
		opt(&c.options)
	}
	if c.err != nil {
		return nil, c.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: c.reply}}}, nil
}

type fakeFactory struct {
	mu      sync.Mutex
	built   []*fakeClient
	reply   string
	err     error
	baseURL map[models.Provider]string
}

func (f *fakeFactory) build(p models.Provider, baseURL, token string) (Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.baseURL == nil {
		f.baseURL = map[models.Provider]string{}
	}
	f.baseURL[p] = baseURL
	c := &fakeClient{reply: f.reply, err: f.err, provider: p, token: token}
	f.built = append(f.built, c)
	return c, nil
}

func setupRouterTest(t *testing.T, creds staticCreds, reply string) (*Router, *fakeFactory) {
	t.Helper()
	factory := &fakeFactory{reply: reply}
	return NewRouter(creds, zap.NewNop(), WithClientFactory(factory.build)), factory
}

func TestBuildRequest_PerplexityUserOnly(t *testing.T) {
	req := BuildRequest(models.Sonar, "Hi")

	assert.Equal(t, models.Sonar, req.Model)
	assert.Equal(t, []RoleMessage{{Role: RoleUser, Content: "Hi"}}, req.Messages)
}

func TestBuildRequest_OpenAIPreamble(t *testing.T) {
	req := BuildRequest(models.GPT4o, "Hi")

	require.Len(t, req.Messages, 2)
	assert.Equal(t, RoleMessage{Role: RoleAssistant, Content: Preamble}, req.Messages[0])
	assert.Equal(t, RoleMessage{Role: RoleUser, Content: "Hi"}, req.Messages[1])
}

func TestBuildRequest_UnknownModelUsesFirstProvider(t *testing.T) {
	req := BuildRequest("mystery-model", "Hi")
	require.Len(t, req.Messages, 2)
	assert.Equal(t, RoleUser, req.Messages[len(req.Messages)-1].Role)
}

func TestRequestMessageContent(t *testing.T) {
	mc := BuildRequest(models.DeepSeekChat, "Hello").MessageContent()

	require.Len(t, mc, 2)
	assert.Equal(t, schema.ChatMessageTypeAI, mc[0].Role)
	assert.Equal(t, schema.ChatMessageTypeHuman, mc[1].Role)
	assert.Equal(t, llms.TextContent{Text: "Hello"}, mc[1].Parts[0])
}

func TestSend_NotConfigured(t *testing.T) {
	router, factory := setupRouterTest(t, staticCreds{models.ProviderOpenAI: "sk-open"}, "unused")

	_, err := router.Send(context.Background(), models.DeepSeekChat, "Hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrClientNotConfigured)

	var notConfigured *NotConfiguredError
	require.ErrorAs(t, err, &notConfigured)
	assert.Equal(t, models.ProviderDeepSeek, notConfigured.Provider)
	assert.Equal(t, "DeepSeek client not initialized. Please add your DeepSeek API key in settings.", err.Error())
	assert.Empty(t, factory.built, "no client may be constructed without a credential")
}

func TestSend_Success(t *testing.T) {
	router, factory := setupRouterTest(t, staticCreds{models.ProviderOpenAI: "sk-open"}, "Paris.")

	reply, err := router.Send(context.Background(), models.GPT4o, "Capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "Paris.", reply)

	require.Len(t, factory.built, 1)
	client := factory.built[0]
	assert.Equal(t, "sk-open", client.token)
	assert.Equal(t, "gpt-4o", client.options.Model)
	require.Len(t, client.calls, 1)
	assert.Len(t, client.calls[0], 2)
}

func TestSend_PerplexityStripsReasoning(t *testing.T) {
	router, factory := setupRouterTest(t,
		staticCreds{models.ProviderPerplexity: "pplx"},
		"<think>The user greets me.</think>\n\nHello there!")

	reply, err := router.Send(context.Background(), models.SonarReasoning, "Hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello there!", reply)

	require.Len(t, factory.built, 1)
	assert.Equal(t, "https://api.perplexity.ai", factory.baseURL[models.ProviderPerplexity])
	require.Len(t, factory.built[0].calls[0], 1)
}

func TestSend_OpenAIKeepsMarkerText(t *testing.T) {
	router, _ := setupRouterTest(t, staticCreds{models.ProviderOpenAI: "sk"}, "use </think> tags")

	reply, err := router.Send(context.Background(), models.GPT4, "Hi")
	require.NoError(t, err)
	assert.Equal(t, "use </think> tags", reply)
}

func TestSend_EmptyContent(t *testing.T) {
	router, _ := setupRouterTest(t, staticCreds{models.ProviderOpenAI: "sk"}, "")

	reply, err := router.Send(context.Background(), models.GPT4, "Hi")
	require.NoError(t, err)
	assert.Equal(t, NoResponseContent, reply)
}

func TestSend_GenerationError(t *testing.T) {
	factory := &fakeFactory{err: errors.New("401 unauthorized")}
	router := NewRouter(staticCreds{models.ProviderDeepSeek: "bad"}, zap.NewNop(), WithClientFactory(factory.build))

	_, err := router.Send(context.Background(), models.DeepSeekReasoner, "Hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGeneration)

	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, models.ProviderDeepSeek, genErr.Provider)
	assert.Equal(t, models.DeepSeekReasoner, genErr.Model)
	assert.Equal(t,
		"Failed to generate response with DeepSeek model deepseek-reasoner. Error: 401 unauthorized. Please check your DeepSeek API key and try again.",
		err.Error())
}

func TestGenerationError_OpenAIWording(t *testing.T) {
	err := &GenerationError{Provider: models.ProviderOpenAI, Model: models.GPT4o, Err: errors.New("boom")}
	assert.Equal(t, "Failed to generate response with gpt-4o. Error: boom", err.Error())
}

func TestSend_Timeout(t *testing.T) {
	factory := &fakeFactory{reply: "late"}
	router := NewRouter(staticCreds{models.ProviderOpenAI: "sk"}, zap.NewNop(),
		WithClientFactory(func(p models.Provider, baseURL, token string) (Client, error) {
			c, _ := factory.build(p, baseURL, token)
			c.(*fakeClient).block = make(chan struct{})
			return c, nil
		}),
		WithTimeout(20*time.Millisecond))

	_, err := router.Send(context.Background(), models.GPT4o, "Hi")
	assert.ErrorIs(t, err, ErrGeneration)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_CachedAndRebuiltOnCredentialChange(t *testing.T) {
	ctx := context.Background()
	creds := staticCreds{models.ProviderOpenAI: "first"}
	router, factory := setupRouterTest(t, creds, "ok")

	c1, err := router.Client(ctx, models.GPT4o)
	require.NoError(t, err)
	c2, err := router.Client(ctx, models.O1)
	require.NoError(t, err)
	assert.Same(t, c1, c2)
	assert.Len(t, factory.built, 1)

	creds[models.ProviderOpenAI] = "second"
	c3, err := router.Client(ctx, models.GPT4o)
	require.NoError(t, err)
	assert.NotSame(t, c1, c3)
	assert.Equal(t, "second", c3.(*fakeClient).token)
}

func TestRefresh_DoesNotDisturbInFlight(t *testing.T) {
	release := make(chan struct{})
	var built []*fakeClient
	var mu sync.Mutex
	router := NewRouter(staticCreds{models.ProviderOpenAI: "sk"}, zap.NewNop(),
		WithClientFactory(func(p models.Provider, _, token string) (Client, error) {
			mu.Lock()
			defer mu.Unlock()
			c := &fakeClient{reply: "done", provider: p, token: token}
			if len(built) == 0 {
				c.block = release
			}
			built = append(built, c)
			return c, nil
		}))

	result := make(chan string, 1)
	go func() {
		reply, _ := router.Send(context.Background(), models.GPT4o, "slow")
		result <- reply
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(built) == 1
	}, time.Second, 5*time.Millisecond)

	router.Refresh()
	fresh, err := router.Client(context.Background(), models.GPT4o)
	require.NoError(t, err)

	close(release)
	assert.Equal(t, "done", <-result)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, built, 2)
	assert.Same(t, built[1], fresh)
	assert.Len(t, built[0].calls, 1)
	assert.Empty(t, built[1].calls)
}

type wireMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

func (m wireMessage) text(t *testing.T) string {
	t.Helper()
	var s string
	if err := json.Unmarshal(m.Content, &s); err == nil {
		return s
	}
	var parts []struct {
		Text string `json:"text"`
	}
	require.NoError(t, json.Unmarshal(m.Content, &parts))
	out := ""
	for _, p := range parts {
		out += p.Text
	}
	return out
}

func TestSend_OpenAICompatibleWire(t *testing.T) {
	var hits atomic.Int32
	var got struct {
		Model    string        `json:"model"`
		Messages []wireMessage `json:"messages"`
	}
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "sonar",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "<think>hm</think>Bonjour"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2}
		}`))
	}))
	defer server.Close()

	router := NewRouter(staticCreds{models.ProviderPerplexity: "pplx-key"}, zap.NewNop(),
		WithBaseURL(models.ProviderPerplexity, server.URL))

	reply, err := router.Send(context.Background(), models.Sonar, "Hi")
	require.NoError(t, err)
	assert.Equal(t, "Bonjour", reply)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, "Bearer pplx-key", auth)
	assert.Equal(t, "sonar", got.Model)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "Hi", got.Messages[0].text(t))
}

func TestSend_OpenAICompatibleWireFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "invalid api key", "type": "invalid_request_error"}}`))
	}))
	defer server.Close()

	router := NewRouter(staticCreds{models.ProviderDeepSeek: "bad"}, zap.NewNop(),
		WithBaseURL(models.ProviderDeepSeek, server.URL))

	_, err := router.Send(context.Background(), models.DeepSeekChat, "Hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGeneration)
	assert.Contains(t, err.Error(), "Please check your DeepSeek API key")
}

func TestSend_MissingCredentialMakesNoRequest(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	router := NewRouter(staticCreds{}, zap.NewNop(), WithBaseURL(models.ProviderOpenAI, server.URL))

	_, err := router.Send(context.Background(), models.GPT4o, "Hi")
	assert.ErrorIs(t, err, ErrClientNotConfigured)
	assert.Zero(t, hits.Load())
}
