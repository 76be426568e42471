package source

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/timmy/sportsclips/internal/domain"
)

// DefaultHTTPTimeout bounds every outbound adapter request.
const DefaultHTTPTimeout = 30 * time.Second

const userAgent = "sportsclips-fetcher/1.0"

// NewHTTPClient creates the resty client shared by an adapter instance.
func NewHTTPClient() *resty.Client {
	return resty.New().
		SetTimeout(DefaultHTTPTimeout).
		SetHeader("User-Agent", userAgent)
}

// Base carries the state every adapter owns: its HTTP client and local rate limiter.
type Base struct {
	Kind    domain.SourceType
	Client  *resty.Client
	Limiter *RateLimiter
}

// NewBase creates adapter base state.
func NewBase(kind domain.SourceType, limits RateLimitConfig, clock Clock) Base {
	return Base{
		Kind:    kind,
		Client:  NewHTTPClient(),
		Limiter: NewRateLimiter(limits, clock),
	}
}

// Type returns the adapter tag.
func (b *Base) Type() domain.SourceType {
	return b.Kind
}

// RateLimitStatus returns the limiter snapshot.
func (b *Base) RateLimitStatus() RateLimitStatus {
	return b.Limiter.Status()
}

// Get waits for the rate limiter, then performs a GET and returns the body.
// Non-2xx responses are returned as *FetchError.
func (b *Base) Get(ctx context.Context, rawURL string, query map[string]string) ([]byte, error) {
	if err := b.Limiter.Wait(ctx); err != nil {
		return nil, NewFetchError(b.Kind, 0, err)
	}
	resp, err := b.Client.R().
		SetContext(ctx).
		SetQueryParams(query).
		Get(rawURL)
	if err != nil {
		return nil, NewFetchError(b.Kind, 0, fmt.Errorf("request %s: %w", rawURL, err))
	}
	if resp.IsError() {
		return nil, NewFetchError(b.Kind, resp.StatusCode(), fmt.Errorf("unexpected status from %s: %s", rawURL, resp.Status()))
	}
	return resp.Body(), nil
}

// ExternalIDFor returns the first non-empty candidate, falling back to a hash of headline.
func ExternalIDFor(headline string, candidates ...string) string {
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			return c
		}
	}
	sum := sha1.Sum([]byte(strings.ToLower(strings.TrimSpace(headline))))
	return "h_" + hex.EncodeToString(sum[:])
}

// ValidateURL reports a human-readable error for a missing or malformed absolute URL.
func ValidateURL(field, raw string) string {
	if strings.TrimSpace(raw) == "" {
		return field + " is required"
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return field + " must be a valid http(s) URL"
	}
	return ""
}

// ValidateMaxItems checks the optional maxItems field.
func ValidateMaxItems(config domain.JSONMap) string {
	if !config.Has("maxItems") {
		return ""
	}
	n, ok := config.Int("maxItems")
	if !ok || n <= 0 {
		return "maxItems must be a positive integer"
	}
	return ""
}

// NewValidation builds a ValidationResult from collected messages, dropping empty ones.
func NewValidation(errs, warnings []string) ValidationResult {
	res := ValidationResult{Errors: []string{}, Warnings: []string{}}
	for _, e := range errs {
		if e != "" {
			res.Errors = append(res.Errors, e)
		}
	}
	for _, w := range warnings {
		if w != "" {
			res.Warnings = append(res.Warnings, w)
		}
	}
	res.Valid = len(res.Errors) == 0
	return res
}

// EffectiveLimit resolves the item cap from options and the config maxItems.
func EffectiveLimit(opts FetchOptions, config domain.JSONMap, fallback int) int {
	limit := fallback
	if n, ok := config.Int("maxItems"); ok && n > 0 {
		limit = n
	}
	if opts.Limit > 0 && opts.Limit < limit {
		limit = opts.Limit
	}
	return limit
}
