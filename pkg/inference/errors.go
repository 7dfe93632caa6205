package inference

import (
	"errors"
	"fmt"
)

var (
	ErrNoAPIKey            = errors.New("inference: API key required")
	ErrNoModel             = errors.New("inference: model required")
	ErrNoMessages          = errors.New("inference: no messages")
	ErrProviderUnavailable = errors.New("inference: provider unavailable")
	ErrStreamClosed        = errors.New("inference: stream closed")
)

// ProviderError tags a failure with the backend that produced it, so a
// session log line says whether the model API or a local fake broke.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("inference [%s]: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// WrapError attaches provider to err. Nil stays nil and an error already
// tagged with the same provider is returned as is.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	if pe := (*ProviderError)(nil); errors.As(err, &pe) && pe.Provider == provider {
		return err
	}
	return &ProviderError{Provider: provider, Err: err}
}
