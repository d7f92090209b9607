package provider

import (
	"context"
	"fmt"

	"github.com/tasklens/tasklens/errors"
)

// Kind classifies gateway failures.
type Kind string

const (
	// KindConfiguration means a required credential or setting is
	// missing. Fatal, reported before any network call.
	KindConfiguration Kind = "configuration"
	// KindCancelled means the caller's cancellation signal fired.
	KindCancelled Kind = "cancelled"
	// KindTransport means a non-2xx status or network failure.
	KindTransport Kind = "transport"
	// KindMalformedResponse means a 2xx response whose envelope does
	// not match the provider's contract (missing content, empty text).
	KindMalformedResponse Kind = "malformed_response"
)

// InvokeError is the single structured error shape every provider
// failure is converted into. Raw provider error payloads never
// propagate past the gateway; they end up in Details.
type InvokeError struct {
	Kind       Kind
	Message    string
	Details    string
	Provider   Name
	Model      string
	Solution   string // remediation hint, may be empty
	StatusCode int    // 0 when no HTTP status applies
}

func (e *InvokeError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s [%s/%s] status %d: %s", e.Kind, e.Provider, e.Model, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s [%s/%s]: %s", e.Kind, e.Provider, e.Model, e.Message)
}

// Unwrap maps kinds onto the module's sentinel errors so callers can
// use errors.Is without knowing about InvokeError.
func (e *InvokeError) Unwrap() error {
	switch e.Kind {
	case KindConfiguration:
		return errors.ErrNotConfigured
	case KindCancelled:
		return errors.ErrCancelled
	default:
		return nil
	}
}

// AsInvokeError extracts an *InvokeError from an error chain.
func AsInvokeError(err error) (*InvokeError, bool) {
	var ie *InvokeError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}

// IsConfigurationError reports whether err is a missing-credential
// failure that should propagate to the caller unchanged.
func IsConfigurationError(err error) bool {
	ie, ok := AsInvokeError(err)
	return ok && ie.Kind == KindConfiguration
}

// IsCancellation reports whether err is a cooperative cancellation.
// Covers both the gateway's own cancellation error and raw context
// errors surfaced through the HTTP transport.
func IsCancellation(err error) bool {
	if ie, ok := AsInvokeError(err); ok && ie.Kind == KindCancelled {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// statusSolution returns a remediation hint for common HTTP statuses.
func statusSolution(name Name, model string, status int) string {
	switch status {
	case 401, 403:
		return fmt.Sprintf("check the %s API key in your configuration", name)
	case 404:
		if name == NameLocal {
			return fmt.Sprintf("model not found, run `ollama pull %s`", model)
		}
		return fmt.Sprintf("model %q not found, check the model name for %s", model, name)
	case 429:
		return "rate limited, wait and retry, or switch to a different model"
	case 500, 502, 503, 529:
		return "provider overloaded, retry later"
	default:
		return ""
	}
}
