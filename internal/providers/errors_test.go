package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/avast/retry-go/v4"
)

func TestNewGenerationError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category Category
		status   int
	}{
		{"deadline", fmt.Errorf("wrapped: %w", context.DeadlineExceeded), CategoryTimeout, 0},
		{"unauthorized", &StatusError{StatusCode: 401, Message: "bad key"}, CategoryUnauthorized, 401},
		{"forbidden", &StatusError{StatusCode: 403}, CategoryUnauthorized, 403},
		{"rate limited", &RateLimitError{Message: "slow down", StatusCode: 429}, CategoryRateLimited, 429},
		{"bad request", &StatusError{StatusCode: 400}, CategoryBadRequest, 400},
		{"unprocessable", &StatusError{StatusCode: 422}, CategoryBadRequest, 422},
		{"server error", &StatusError{StatusCode: 500}, CategoryUnavailable, 500},
		{"bad gateway", &StatusError{StatusCode: 502}, CategoryUnavailable, 502},
		{"other", errors.New("boom"), CategoryUnknown, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newGenerationError(tt.err)
			if got.Category != tt.category {
				t.Errorf("Category = %s, want %s", got.Category, tt.category)
			}
			if got.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", got.StatusCode, tt.status)
			}
			if got.Error() != userMessages[tt.category] {
				t.Errorf("Error() = %q", got.Error())
			}
			if !errors.Is(got, tt.err) {
				t.Error("expected cause to be unwrapped")
			}
		})
	}
}

func TestGenerationError_Messages(t *testing.T) {
	if got := newGenerationError(&StatusError{StatusCode: 401}).Error(); got != "Authentication failed. Please contact support." {
		t.Errorf("unauthorized message = %q", got)
	}
	if got := newGenerationError(context.DeadlineExceeded).Error(); got != "Music generation is taking longer than expected. Please try again." {
		t.Errorf("timeout message = %q", got)
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&StatusError{StatusCode: 500}, true},
		{&StatusError{StatusCode: 400}, false},
		{&StatusError{StatusCode: 401}, false},
		{&StatusError{StatusCode: 403}, false},
		{&RateLimitError{StatusCode: 429}, true},
		{context.DeadlineExceeded, true},
		{context.Canceled, false},
		{retry.Unrecoverable(errors.New("x")), false},
	}
	for _, tt := range tests {
		if got := retryable(tt.err); got != tt.want {
			t.Errorf("retryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestParseRetryAfter(t *testing.T) {
	if got := parseRetryAfter("5"); got != 5*time.Second {
		t.Errorf("seconds: got %s", got)
	}
	if got := parseRetryAfter(""); got != 0 {
		t.Errorf("empty: got %s", got)
	}
	if got := parseRetryAfter("soon"); got != 0 {
		t.Errorf("garbage: got %s", got)
	}
	future := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
	if got := parseRetryAfter(future); got <= 0 || got > time.Minute {
		t.Errorf("http date: got %s", got)
	}
}

func TestRateLimitError(t *testing.T) {
	err := &RateLimitError{Message: "limited", RetryAfter: 2 * time.Second}
	if err.Error() != "limited (retry after 2s)" {
		t.Errorf("Error() = %q", err.Error())
	}
}
