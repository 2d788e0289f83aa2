package proxy

import (
	"context"
	"time"

	"stockdash/internal/provider"
	"stockdash/internal/usage"
)

// CheckResult is the credential check response body.
type CheckResult struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Sample  CheckSample `json:"sample"`
}

type CheckSample struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// CheckCredentials performs one uncached quote call to confirm the provider
// accepts the configured key.
func (s *Service) CheckCredentials(ctx context.Context) (CheckResult, error) {
	if !s.provider.Configured() {
		return CheckResult{}, &Error{Kind: KindConfiguration, Message: "API key not found", Err: ErrMissingCredentials}
	}

	start := s.clock.Now()
	raw, err := s.provider.GlobalQuote(ctx, s.cfg.CheckSymbol)
	var checkErr error
	if err != nil {
		checkErr = checkFailure(err)
	}
	s.record(ctx, usage.EndpointCheck, s.cfg.CheckSymbol, start, checkErr)
	if checkErr != nil {
		return CheckResult{}, checkErr
	}

	return CheckResult{
		Success: true,
		Message: "API key is valid and working",
		Sample:  CheckSample{Symbol: raw.Symbol, Price: raw.Price},
	}, nil
}

func checkFailure(err error) *Error {
	switch provider.KindOf(err) {
	case provider.KindInvalidCredential:
		return &Error{Kind: KindInvalidCredential, Message: "Invalid API key", Details: err.Error(), Err: err}
	case provider.KindRateLimited:
		return &Error{Kind: KindRateLimited, Message: "API rate limit exceeded. Please try again later.", Details: err.Error(), Err: err}
	default:
		return &Error{Kind: KindUpstream, Message: "Failed to test API key", Details: err.Error(), Err: err}
	}
}

// checkTimeout bounds the diagnostic call when the caller has no deadline.
const checkTimeout = 15 * time.Second

// CheckContext returns ctx with the diagnostic timeout applied unless ctx
// already carries a deadline.
func CheckContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, checkTimeout)
}
