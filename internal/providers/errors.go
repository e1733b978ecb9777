package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/avast/retry-go/v4"
)

// RateLimitError is returned when a provider answers 429.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
	StatusCode int
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %s)", e.Message, e.RetryAfter)
	}
	return e.Message
}

// StatusError is a non-success HTTP response from a provider.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

// Category groups generation failures by what the user should do next.
type Category string

const (
	CategoryTimeout      Category = "timeout"
	CategoryUnauthorized Category = "unauthorized"
	CategoryRateLimited  Category = "rate_limited"
	CategoryBadRequest   Category = "bad_request"
	CategoryUnavailable  Category = "unavailable"
	CategoryUnknown      Category = "unknown"
)

// userMessages are shown to end users for each category.
var userMessages = map[Category]string{
	CategoryTimeout:      "Music generation is taking longer than expected. Please try again.",
	CategoryUnauthorized: "Authentication failed. Please contact support.",
	CategoryRateLimited:  "Too many requests. Please wait a moment and try again.",
	CategoryBadRequest:   "Invalid song parameters. Please check your inputs and try again.",
	CategoryUnavailable:  "Music service temporarily unavailable. Please try again in a few minutes.",
	CategoryUnknown:      "Failed to generate music. Please try again.",
}

// GenerationError is a categorized music generation failure. Error returns
// the user-facing message; Err holds the underlying cause.
type GenerationError struct {
	Category   Category
	Message    string
	StatusCode int
	Err        error
}

func (e *GenerationError) Error() string {
	return e.Message
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// newGenerationError categorizes err.
func newGenerationError(err error) *GenerationError {
	category := CategoryUnknown
	status := 0

	var rateErr *RateLimitError
	var statusErr *StatusError
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		category = CategoryTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		category = CategoryTimeout
	case errors.As(err, &rateErr):
		category = CategoryRateLimited
		status = rateErr.StatusCode
	case errors.As(err, &statusErr):
		status = statusErr.StatusCode
		category = categoryForStatus(status)
	}

	return &GenerationError{
		Category:   category,
		Message:    userMessages[category],
		StatusCode: status,
		Err:        err,
	}
}

func categoryForStatus(status int) Category {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return CategoryUnauthorized
	case status == http.StatusTooManyRequests:
		return CategoryRateLimited
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return CategoryBadRequest
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return CategoryTimeout
	case status >= 500:
		return CategoryUnavailable
	default:
		return CategoryUnknown
	}
}

// retryable reports whether another attempt could succeed.
func retryable(err error) bool {
	if !retry.IsRecoverable(err) || errors.Is(err, context.Canceled) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch categoryForStatus(statusErr.StatusCode) {
		case CategoryUnauthorized, CategoryBadRequest:
			return false
		}
	}
	return true
}

// parseRetryAfter reads a Retry-After header in seconds or HTTP-date form.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
