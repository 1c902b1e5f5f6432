package youtube

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"google.golang.org/api/googleapi"
)

func TestClassifyAPIError(t *testing.T) {
	tests := []struct {
		name string
		code int
		reason string
		want error
	}{
		{"not found", 404, "", ErrNotFound},
		{"unauthorized", 401, "", ErrUnauthorized},
		{"too many requests", 429, "", ErrRateLimited},
		{"quota exceeded", 403, "quotaExceeded", ErrQuotaExceeded},
		{"daily limit", 403, "dailyLimitExceeded", ErrQuotaExceeded},
		{"rate limit exceeded", 403, "rateLimitExceeded", ErrRateLimited},
		{"user rate limit", 403, "userRateLimitExceeded", ErrRateLimited},
		{"forbidden without reason", 403, "", ErrUnauthorized},
		{"key invalid", 400, "keyInvalid", ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gerr := &googleapi.Error{Code: tt.code}
			if tt.reason != "" {
				gerr.Errors = []googleapi.ErrorItem{{Reason: tt.reason}}
			}

			got := classifyAPIError(fmt.Errorf("call failed: %w", gerr))
			if !errors.Is(got, tt.want) {
				t.Errorf("classifyAPIError(%d/%s) = %v, want %v", tt.code, tt.reason, got, tt.want)
			}
		})
	}

	t.Run("nil", func(t *testing.T) {
		if got := classifyAPIError(nil); got != nil {
			t.Errorf("classifyAPIError(nil) = %v, want nil", got)
		}
	})

	t.Run("non-api error passes through", func(t *testing.T) {
		orig := errors.New("dial tcp: connection refused")
		if got := classifyAPIError(orig); !errors.Is(got, orig) {
			t.Errorf("classifyAPIError() = %v, want original", got)
		}
	})
}

func TestAPIErrorClassifier(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"not found is permanent", fmt.Errorf("x: %w", ErrNotFound), false},
		{"channel not found is permanent", ErrChannelNotFound, false},
		{"unauthorized is permanent", ErrUnauthorized, false},
		{"quota is permanent", ErrQuotaExceeded, false},
		{"context canceled is permanent", context.Canceled, false},
		{"rate limited is retryable", ErrRateLimited, true},
		{"network error is retryable", errors.New("connection reset"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := apiErrorClassifier(tt.err); got != tt.want {
				t.Errorf("apiErrorClassifier(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestNewDataAPIProviderRequiresKey(t *testing.T) {
	_, err := NewDataAPIProvider(context.Background(), "")
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("NewDataAPIProvider(\"\") error = %v, want %v", err, ErrUnauthorized)
	}
}

func TestResolveChannelIDFromInput(t *testing.T) {
	// Bare IDs and URLs containing one resolve without any API call.
	p := &DataAPIProvider{playlists: make(map[string]string)}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare id", "UCabcdefghijklmnopqrstuv", "UCabcdefghijklmnopqrstuv"},
		{"channel url", "https://www.youtube.com/channel/UCabcdefghijklmnopqrstuv", "UCabcdefghijklmnopqrstuv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.resolveChannelID(context.Background(), tt.input)
			if err != nil {
				t.Fatalf("resolveChannelID(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("resolveChannelID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestBestThumbnail(t *testing.T) {
	if got := bestThumbnail(nil); got != "" {
		t.Errorf("bestThumbnail(nil) = %q, want empty", got)
	}
}
