package services

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a provider failure
type ErrorKind string

const (
	KindUnavailable ErrorKind = "unavailable" // transient: network, 429, 5xx, open breaker
	KindNotFound    ErrorKind = "not_found"   // ticker or series permanently unsupported
	KindMalformed   ErrorKind = "malformed"   // response could not be decoded
	KindRejected    ErrorKind = "rejected"    // request refused (auth, bad parameters)
)

// Sentinel errors matched with errors.Is against a *ProviderError
var (
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrTickerNotFound      = errors.New("ticker not found")
	ErrMalformedResponse   = errors.New("malformed provider response")
	ErrRequestRejected     = errors.New("provider rejected request")
)

// ProviderError is returned by every provider client
type ProviderError struct {
	Kind       ErrorKind
	Provider   string
	Op         string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Provider, e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind
func (e *ProviderError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindUnavailable:
		return ErrProviderUnavailable
	case KindNotFound:
		return ErrTickerNotFound
	case KindMalformed:
		return ErrMalformedResponse
	case KindRejected:
		return ErrRequestRejected
	default:
		return nil
	}
}

func newProviderError(kind ErrorKind, provider, op string, err error) *ProviderError {
	return &ProviderError{Kind: kind, Provider: provider, Op: op, Err: err}
}

// statusError maps a non-200 HTTP status to a ProviderError
func statusError(provider, op string, status int, body string) *ProviderError {
	kind := KindRejected
	switch {
	case status == http.StatusTooManyRequests || status >= 500:
		kind = KindUnavailable
	case status == http.StatusNotFound:
		kind = KindNotFound
	}
	var err error
	if body != "" {
		err = errors.New(body)
	}
	return &ProviderError{Kind: kind, Provider: provider, Op: op, StatusCode: status, Err: err}
}

// IsTransient reports whether a retry could succeed. Cancellation of the caller's
// context is never transient; the HTTP helpers return ctx.Err() in that case.
func IsTransient(err error) bool {
	return errors.Is(err, ErrProviderUnavailable)
}

// Kind returns the kind of the first ProviderError in err's chain, or "" if there is none
func Kind(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
