package types

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds. Match with errors.Is.
var (
	ErrValidation             = errors.New("invalid request")
	ErrTransport              = errors.New("transport error")
	ErrJobFailed              = errors.New("job failed")
	ErrJobTimeout             = errors.New("job timed out")
	ErrUnsupportedPlatform    = errors.New("unsupported platform")
	ErrMissingCredential      = errors.New("missing credential")
	ErrEnhancementFailed      = errors.New("content enhancement failed")
	ErrGenerationSubmitFailed = errors.New("video generation submit failed")
	ErrContainerCreateFailed  = errors.New("media container create failed")
	ErrPublishCommitFailed    = errors.New("media publish failed")
)

// ValidationError rejects a request before any stage runs.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Is reports ErrValidation as the kind.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ProviderError is a failure reported by an external provider.
type ProviderError struct {
	Kind       error
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Provider, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Kind }

// Transport marks err as a failure reaching provider. Errors that already
// carry a kind are returned unchanged.
func Transport(provider string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Kind: ErrTransport, Provider: provider, Message: err.Error()}
}
