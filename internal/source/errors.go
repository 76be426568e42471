package source

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/timmy/sportsclips/internal/domain"
)

// FetchError is returned by adapters on transport or parse failure.
type FetchError struct {
	Adapter    domain.SourceType
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s fetch failed (status %d): %v", e.Adapter, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s fetch failed: %v", e.Adapter, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// RateLimited reports whether the upstream answered 429.
func (e *FetchError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// NewFetchError wraps err for the given adapter.
func NewFetchError(adapter domain.SourceType, status int, err error) *FetchError {
	return &FetchError{Adapter: adapter, StatusCode: status, Err: err}
}

// AsFetchError unwraps err into a *FetchError when possible.
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// ConfigValidationError is returned when a source config is rejected before persistence.
type ConfigValidationError struct {
	Errors []string
}

func (e *ConfigValidationError) Error() string {
	return "invalid source config: " + strings.Join(e.Errors, "; ")
}

// Err returns a *ConfigValidationError when the result is invalid, else nil.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return &ConfigValidationError{Errors: r.Errors}
}
