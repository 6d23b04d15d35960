package main

import (
	"context"
	"fmt"
	"io"

	"github.com/RichardoC/talkback/internal/chat"
	"github.com/RichardoC/talkback/internal/config"
	"github.com/RichardoC/talkback/internal/kv"
	"github.com/RichardoC/talkback/internal/llm"
	"github.com/RichardoC/talkback/internal/logging"
	"github.com/RichardoC/talkback/internal/models"
	"github.com/RichardoC/talkback/internal/settings"
	"github.com/RichardoC/talkback/internal/speech"
	"github.com/RichardoC/talkback/internal/threads"
	"go.uber.org/zap"
)

// app is the wired set of services every command works against.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	closer   io.Closer
	settings *settings.Store
	threads  *threads.Repository
	router   *llm.Router
	orch     *chat.Orchestrator
}

func newApp(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, err := config.Resolve(opts.configPath, opts.configRequired(), config.DefaultEnvFiles)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, err
	}

	store, closer, err := kv.Open(ctx, cfg.StorageOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	logger.Debug("storage opened",
		zap.String("driver", cfg.Storage.Driver),
		zap.String("path", cfg.Storage.Path))

	a := &app{
		cfg:      cfg,
		logger:   logger,
		closer:   closer,
		settings: settings.New(store, logger),
		threads:  threads.NewRepository(store, logger),
	}

	if err := a.seedCredentials(ctx); err != nil {
		a.close()
		return nil, err
	}

	routerOpts := []llm.Option{llm.WithTimeout(cfg.RequestTimeout())}
	for p, url := range cfg.BaseURLs() {
		routerOpts = append(routerOpts, llm.WithBaseURL(p, url))
	}
	a.router = llm.NewRouter(a.settings, logger, routerOpts...)

	a.orch = chat.New(chat.Config{
		Threads:     a.threads,
		Settings:    a.settings,
		Generator:   a.router,
		Recognizer:  speech.Unavailable{},
		Synthesizer: speech.NewLogSynthesizer(logger),
		Logger:      logger,
	})
	return a, nil
}

// seedCredentials copies configured API keys into the settings store for
// providers that have none stored yet.
func (a *app) seedCredentials(ctx context.Context) error {
	for _, p := range models.Providers {
		key := a.cfg.Credentials.ByProvider()[p]
		if key == "" {
			continue
		}
		has, err := a.settings.HasCredential(ctx, p)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if err := a.settings.SetCredential(ctx, p, key); err != nil {
			return err
		}
		a.logger.Info("seeded API key from configuration", zap.String("provider", string(p)))
	}
	return nil
}

func (a *app) close() {
	if err := a.closer.Close(); err != nil {
		a.logger.Warn("failed to close storage", zap.Error(err))
	}
	_ = a.logger.Sync()
}
