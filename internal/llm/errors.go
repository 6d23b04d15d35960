package llm

import (
	"errors"
	"fmt"

	"github.com/RichardoC/talkback/internal/models"
)

var (
	ErrClientNotConfigured = errors.New("client not configured")
	ErrGeneration          = errors.New("generation failed")
	ErrEmptyResponse       = errors.New("no choices in response")
)

// NotConfiguredError is returned when the provider a model routes to has no
// stored API key.
type NotConfiguredError struct {
	Provider models.Provider
}

func (e *NotConfiguredError) Error() string {
	name := e.Provider.DisplayName()
	return fmt.Sprintf("%s client not initialized. Please add your %s API key in settings.", name, name)
}

func (e *NotConfiguredError) Unwrap() error { return ErrClientNotConfigured }

// GenerationError wraps a transport or API failure from a provider.
type GenerationError struct {
	Provider models.Provider
	Model    models.ModelID
	Err      error
}

func (e *GenerationError) Error() string {
	switch e.Provider {
	case models.ProviderDeepSeek, models.ProviderPerplexity:
		name := e.Provider.DisplayName()
		return fmt.Sprintf("Failed to generate response with %s model %s. Error: %v. Please check your %s API key and try again.",
			name, e.Model, e.Err, name)
	default:
		return fmt.Sprintf("Failed to generate response with %s. Error: %v", e.Model, e.Err)
	}
}

func (e *GenerationError) Unwrap() []error {
	return []error{ErrGeneration, e.Err}
}
