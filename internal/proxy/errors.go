package proxy

import (
	"errors"
	"fmt"
	"net/http"

	"stockdash/internal/provider"
)

// Kind classifies a proxy failure. Each kind maps to one HTTP status.
type Kind int

const (
	KindUpstream Kind = iota
	KindInvalidInput
	KindConfiguration
	KindInvalidCredential
	KindRateLimited
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "INVALID_INPUT"
	case KindConfiguration:
		return "CONFIGURATION_ERROR"
	case KindInvalidCredential:
		return "INVALID_CREDENTIAL"
	case KindRateLimited:
		return "RATE_LIMITED"
	case KindNotFound:
		return "NOT_FOUND"
	default:
		return "UPSTREAM_FAILURE"
	}
}

// Status returns the HTTP status for k.
func (k Kind) Status() int {
	switch k {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// ErrMissingCredentials is wrapped by configuration errors.
var ErrMissingCredentials = errors.New("provider credentials not configured")

// Error is a failure with a user-facing message.
type Error struct {
	Kind    Kind
	Message string
	// Details carries the underlying failure text for diagnostic responses.
	Details string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// UserMessage returns the message shown to dashboard users.
func (e *Error) UserMessage() string { return e.Message }

// KindOf returns the kind of err, KindUpstream for anything that is not an *Error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUpstream
}

// StatusCode maps err to an HTTP status.
func StatusCode(err error) int {
	return KindOf(err).Status()
}

// Message returns the user-facing message of err.
func Message(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Message
	}
	return err.Error()
}

func invalidInput(msg string) *Error {
	return &Error{Kind: KindInvalidInput, Message: msg}
}

func configurationError() *Error {
	return &Error{
		Kind:    KindConfiguration,
		Message: "API configuration error. API key is not configured.",
		Err:     ErrMissingCredentials,
	}
}

// fromProvider maps a provider failure onto the proxy taxonomy. notFound is
// the message used when the provider reports no data.
func fromProvider(providerName string, err error, notFound string) *Error {
	switch provider.KindOf(err) {
	case provider.KindInvalidCredential:
		return &Error{
			Kind:    KindInvalidCredential,
			Message: fmt.Sprintf("API configuration error. Please check your %s API key.", providerName),
			Err:     err,
		}
	case provider.KindRateLimited:
		return &Error{Kind: KindRateLimited, Message: "API rate limit exceeded. Please try again later.", Err: err}
	case provider.KindNotFound:
		return &Error{Kind: KindNotFound, Message: notFound, Err: err}
	default:
		msg := err.Error()
		var pe *provider.Error
		if errors.As(err, &pe) {
			msg = pe.Message
		}
		return &Error{Kind: KindUpstream, Message: msg, Err: err}
	}
}
