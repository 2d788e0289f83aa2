package provider

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind enumerates the provider failure classes the proxy distinguishes.
type Kind int

const (
	KindUpstream Kind = iota
	KindInvalidCredential
	KindRateLimited
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindInvalidCredential:
		return "invalid_credential"
	case KindRateLimited:
		return "rate_limited"
	case KindNotFound:
		return "not_found"
	default:
		return "upstream"
	}
}

// ErrUnsupported is returned by providers that cannot serve an operation.
var ErrUnsupported = errors.New("operation not supported by provider")

// Error is a classified provider failure.
type Error struct {
	Provider   string
	Kind       Kind
	Message    string
	StatusCode int // transport status when the failure came from a non-2xx response
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Provider, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// KindOf returns the kind of a provider error, KindUpstream for anything unclassified.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUpstream
}

// NewError builds an Error classifying msg.
func NewError(providerName, msg string) *Error {
	return &Error{Provider: providerName, Kind: Classify(msg), Message: msg}
}

// StatusError classifies a non-2xx transport response.
func StatusError(providerName string, status int, body string) *Error {
	kind := KindUpstream
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = KindInvalidCredential
	case http.StatusTooManyRequests:
		kind = KindRateLimited
	case http.StatusNotFound:
		kind = KindNotFound
	}
	msg := strings.TrimSpace(body)
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &Error{Provider: providerName, Kind: kind, Message: msg, StatusCode: status}
}

var (
	rateLimitMarkers = []string{
		"call frequency",
		"rate limit",
		"premium",
		"requests per day",
		"too many requests",
	}
	credentialMarkers = []string{
		"invalid api key",
		"apikey",
		"api key is invalid",
		"unauthorized",
		"forbidden",
	}
	notFoundMarkers = []string{
		"invalid api call",
		"no data found",
		"not found",
	}
)

// Classify maps a provider message to a failure kind. Rate-limit markers win
// over credential markers because limit notices quote the caller's key.
func Classify(msg string) Kind {
	m := strings.ToLower(msg)
	switch {
	case containsAny(m, rateLimitMarkers):
		return KindRateLimited
	case containsAny(m, credentialMarkers):
		return KindInvalidCredential
	case containsAny(m, notFoundMarkers):
		return KindNotFound
	default:
		return KindUpstream
	}
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
