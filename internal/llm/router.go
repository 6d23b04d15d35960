// Package llm routes prompts to the provider that serves the selected model.
package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/RichardoC/talkback/internal/models"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

// Client is the part of a langchaingo model the router uses.
type Client interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// ClientFactory builds a client for a provider. baseURL is empty when the
// library default should be used.
type ClientFactory func(provider models.Provider, baseURL, token string) (Client, error)

// CredentialSource yields the API key stored for a provider, or "".
type CredentialSource interface {
	Credential(ctx context.Context, p models.Provider) (string, error)
}

// OpenAIClientFactory builds langchaingo OpenAI-compatible clients.
func OpenAIClientFactory(_ models.Provider, baseURL, token string) (Client, error) {
	opts := []openai.Option{openai.WithToken(token)}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}
	return llm, nil
}

type cachedClient struct {
	token  string
	client Client
}

type Router struct {
	creds    CredentialSource
	factory  ClientFactory
	baseURLs map[models.Provider]string
	timeout  time.Duration
	logger   *zap.Logger
	metrics  *metrics

	mu      sync.Mutex
	clients map[models.Provider]cachedClient
}

type Option func(*Router)

func WithClientFactory(f ClientFactory) Option {
	return func(r *Router) { r.factory = f }
}

// WithBaseURL overrides the endpoint used for a provider.
func WithBaseURL(p models.Provider, url string) Option {
	return func(r *Router) {
		if url != "" {
			r.baseURLs[p] = url
		}
	}
}

// WithTimeout bounds every Send call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(r *Router) { r.timeout = d }
}

func NewRouter(creds CredentialSource, logger *zap.Logger, opts ...Option) *Router {
	r := &Router{
		creds:    creds,
		factory:  OpenAIClientFactory,
		baseURLs: make(map[models.Provider]string),
		logger:   logger,
		metrics:  metricsSingleton(),
		clients:  make(map[models.Provider]cachedClient),
	}
	for p, spec := range providerSpecs {
		r.baseURLs[p] = spec.baseURL
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Client returns the client for model's provider, built on first use and
// rebuilt when the stored credential changes.
func (r *Router) Client(ctx context.Context, model models.ModelID) (Client, error) {
	provider := models.ProviderFor(model)
	token, err := r.creds.Credential(ctx, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s credential: %w", provider.DisplayName(), err)
	}
	if token == "" {
		return nil, &NotConfiguredError{Provider: provider}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.clients[provider]; ok && cached.token == token {
		return cached.client, nil
	}

	client, err := r.factory(provider, r.baseURLs[provider], token)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s client: %w", provider.DisplayName(), err)
	}
	r.clients[provider] = cachedClient{token: token, client: client}
	r.logger.Info("initialized provider client", zap.String("provider", string(provider)))
	return client, nil
}

// Refresh drops every cached client. Calls already in flight keep the client
// they started with.
func (r *Router) Refresh() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.clients)
}

// Send prompts model and returns the visible reply text.
func (r *Router) Send(ctx context.Context, model models.ModelID, prompt string) (string, error) {
	provider := models.ProviderFor(model)
	client, err := r.Client(ctx, model)
	if err != nil {
		r.metrics.requestsTotal.WithLabelValues(string(provider), string(model), resultNotConfigured).Inc()
		return "", err
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	req := BuildRequest(model, prompt)
	r.logger.Debug("generating response",
		zap.String("provider", string(provider)),
		zap.String("model", string(model)),
		zap.Int("messages", len(req.Messages)))

	start := time.Now()
	resp, err := client.GenerateContent(ctx, req.MessageContent(), llms.WithModel(string(model)))
	if err == nil && (resp == nil || len(resp.Choices) == 0) {
		err = ErrEmptyResponse
	}
	if err != nil {
		r.observe(provider, model, resultError, start)
		r.logger.Error("failed to generate response",
			zap.String("provider", string(provider)),
			zap.String("model", string(model)),
			zap.Error(err))
		return "", &GenerationError{Provider: provider, Model: model, Err: err}
	}
	r.observe(provider, model, resultOK, start)

	text := specFor(provider).extract(resp.Choices[0].Content)
	if text == "" {
		text = NoResponseContent
	}
	return text, nil
}

func (r *Router) observe(p models.Provider, model models.ModelID, result string, start time.Time) {
	r.metrics.requestsTotal.WithLabelValues(string(p), string(model), result).Inc()
	r.metrics.requestDuration.WithLabelValues(string(p), result).Observe(time.Since(start).Seconds())
}
