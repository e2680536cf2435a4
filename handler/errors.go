package handler

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration matches every *ConfigurationError.
	ErrConfiguration = errors.New("configuration error")

	// ErrProviderNotConfigured is returned when no provider is registered
	// for a model.
	ErrProviderNotConfigured = errors.New("provider not configured")

	// ErrStreamConsumed is yielded when a Stream is iterated a second time.
	ErrStreamConsumed = errors.New("stream already consumed")
)

// ConfigurationError reports a request whose options contradict the model's
// capabilities. It is raised before any network call.
type ConfigurationError struct {
	Model  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error for model %s: %s", e.Model, e.Reason)
}

// Is makes errors.Is(err, ErrConfiguration) match.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}
