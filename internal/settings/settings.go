// Package settings stores credentials, model and language selection and
// feature toggles on top of a kv.Store.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/RichardoC/talkback/internal/kv"
	"github.com/RichardoC/talkback/internal/models"
	"go.uber.org/zap"
)

const (
	KeyOpenAIAPIKey     = "openai_api_key"
	KeyDeepSeekAPIKey   = "deepseek_api_key"
	KeyPerplexityAPIKey = "perplexity_api_key"
	KeySettings         = "app_settings"
	KeyModel            = "ai_model"
	KeyLanguage         = "speech_language"
)

const (
	ToggleAutoGenerateResponse = "autoGenerateResponse"
	ToggleHighQualityVoice     = "useHighQualityVoice"
	ToggleSaveTranscriptions   = "saveTranscriptions"
)

var (
	ErrUnknownModel    = errors.New("unknown model")
	ErrUnknownLanguage = errors.New("unknown language")
	ErrUnknownProvider = errors.New("unknown provider")
)

// DefaultToggles returns a fresh copy of the toggle defaults.
func DefaultToggles() map[string]bool {
	return map[string]bool{
		ToggleAutoGenerateResponse: true,
		ToggleHighQualityVoice:     true,
		ToggleSaveTranscriptions:   false,
	}
}

func credentialKey(p models.Provider) (string, error) {
	switch p {
	case models.ProviderOpenAI:
		return KeyOpenAIAPIKey, nil
	case models.ProviderDeepSeek:
		return KeyDeepSeekAPIKey, nil
	case models.ProviderPerplexity:
		return KeyPerplexityAPIKey, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownProvider, p)
	}
}

type Store struct {
	kv     kv.Store
	logger *zap.Logger
}

func New(store kv.Store, logger *zap.Logger) *Store {
	return &Store{kv: store, logger: logger}
}

// Credential returns the stored secret for p, or "" when none is stored.
func (s *Store) Credential(ctx context.Context, p models.Provider) (string, error) {
	key, err := credentialKey(p)
	if err != nil {
		return "", err
	}
	v, _, err := s.kv.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to get %s API key: %w", p.DisplayName(), err)
	}
	return v, nil
}

// SetCredential stores secret for p. A blank secret removes the credential.
func (s *Store) SetCredential(ctx context.Context, p models.Provider, secret string) error {
	key, err := credentialKey(p)
	if err != nil {
		return err
	}
	secret = strings.TrimSpace(secret)
	if secret == "" {
		err = s.kv.Remove(ctx, key)
	} else {
		err = s.kv.Set(ctx, key, secret)
	}
	if err != nil {
		return fmt.Errorf("failed to save %s API key: %w", p.DisplayName(), err)
	}
	return nil
}

func (s *Store) HasCredential(ctx context.Context, p models.Provider) (bool, error) {
	v, err := s.Credential(ctx, p)
	return v != "", err
}

// Model returns the selected model. Missing or unrecognized values yield
// models.DefaultModel.
func (s *Store) Model(ctx context.Context) (models.ModelID, error) {
	v, ok, err := s.kv.Get(ctx, KeyModel)
	if err != nil {
		return models.DefaultModel, fmt.Errorf("failed to get AI model: %w", err)
	}
	if ok && !models.IsKnownModel(models.ModelID(v)) {
		s.logger.Warn("stored model not recognized, using default",
			zap.String("stored", v),
			zap.String("default", string(models.DefaultModel)))
	}
	return models.ParseModel(v), nil
}

func (s *Store) SetModel(ctx context.Context, model models.ModelID) error {
	if !models.IsKnownModel(model) {
		return fmt.Errorf("%w: %s", ErrUnknownModel, model)
	}
	if err := s.kv.Set(ctx, KeyModel, string(model)); err != nil {
		return fmt.Errorf("failed to save AI model: %w", err)
	}
	return nil
}

// Language returns the selected speech language, defaulting when unset or
// unrecognized.
func (s *Store) Language(ctx context.Context) (models.Language, error) {
	v, _, err := s.kv.Get(ctx, KeyLanguage)
	if err != nil {
		return models.DefaultLanguage, fmt.Errorf("failed to get language: %w", err)
	}
	return models.ParseLanguage(v), nil
}

func (s *Store) SetLanguage(ctx context.Context, lang models.Language) error {
	if !models.IsKnownLanguage(lang) {
		return fmt.Errorf("%w: %s", ErrUnknownLanguage, lang)
	}
	if err := s.kv.Set(ctx, KeyLanguage, string(lang)); err != nil {
		return fmt.Errorf("failed to save language: %w", err)
	}
	return nil
}

// Toggles returns the feature toggles with stored values laid over the
// defaults. A malformed record is logged and the defaults are returned.
func (s *Store) Toggles(ctx context.Context) (map[string]bool, error) {
	toggles := DefaultToggles()
	raw, ok, err := s.kv.Get(ctx, KeySettings)
	if err != nil {
		return toggles, fmt.Errorf("failed to get settings: %w", err)
	}
	if !ok {
		return toggles, nil
	}
	var stored map[string]bool
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		s.logger.Warn("stored settings are malformed, using defaults", zap.Error(err))
		return toggles, nil
	}
	maps.Copy(toggles, stored)
	return toggles, nil
}

func (s *Store) SetToggles(ctx context.Context, toggles map[string]bool) error {
	data, err := json.Marshal(toggles)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := s.kv.Set(ctx, KeySettings, string(data)); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

func (s *Store) SetToggle(ctx context.Context, name string, value bool) error {
	toggles, err := s.Toggles(ctx)
	if err != nil {
		return err
	}
	toggles[name] = value
	return s.SetToggles(ctx, toggles)
}

// Snapshot is a read-only view of the settings. Credentials are reported by
// presence only.
type Snapshot struct {
	Model       models.ModelID           `json:"model"`
	Language    models.Language          `json:"language"`
	Toggles     map[string]bool          `json:"toggles"`
	Credentials map[models.Provider]bool `json:"credentials"`
}

func (s *Store) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	var err error
	if snap.Model, err = s.Model(ctx); err != nil {
		return snap, err
	}
	if snap.Language, err = s.Language(ctx); err != nil {
		return snap, err
	}
	if snap.Toggles, err = s.Toggles(ctx); err != nil {
		return snap, err
	}
	snap.Credentials = make(map[models.Provider]bool, len(models.Providers))
	for _, p := range models.Providers {
		if snap.Credentials[p], err = s.HasCredential(ctx, p); err != nil {
			return snap, err
		}
	}
	return snap, nil
}
