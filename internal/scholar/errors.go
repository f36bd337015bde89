package scholar

import (
	"errors"
	"fmt"
)

// ErrorKind classifies fetch-level failures.
type ErrorKind string

// Failure kinds recorded in a record's fetch_error field.
const (
	KindTransient ErrorKind = "transient"
	KindBlocked   ErrorKind = "blocked"
	KindCaptcha   ErrorKind = "captcha"
	KindNotFound  ErrorKind = "not_found"
	KindParse     ErrorKind = "parse"
)

// FetchError wraps a failure with its kind so the scheduler can pick the
// right protocol (retry, pause, or record-and-continue).
type FetchError struct {
	Kind ErrorKind
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the retry/backoff protocol applies.
func (e *FetchError) Retryable() bool {
	return e.Kind == KindTransient
}

// NewFetchError builds a FetchError of the given kind.
func NewFetchError(kind ErrorKind, url string, err error) *FetchError {
	return &FetchError{Kind: kind, URL: url, Err: err}
}

// AsFetchError extracts a *FetchError from err, wrapping unclassified errors
// as transient so the caller always has a kind to act on.
func AsFetchError(url string, err error) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	return &FetchError{Kind: KindTransient, URL: url, Err: err}
}

// ErrCaptchaUnresolved is returned by a run that hit a CAPTCHA challenge with
// no intervention channel available. Partial results are checkpointed first.
var ErrCaptchaUnresolved = errors.New("captcha challenge left unresolved")

// ErrNoIntervention is returned by intervention implementations that cannot
// hand the challenge to an operator (headless mode).
var ErrNoIntervention = errors.New("no manual intervention channel available")
