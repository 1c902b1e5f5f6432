package youtube

import (
	"errors"
	"strings"
)

// rateLimitKeywords are message fragments that indicate provider-side
// blocking. YouTube's throttling is undocumented; these come from
// observed CAPTCHA interstitials and 429 responses.
var rateLimitKeywords = []string{
	"captcha",
	"too many requests",
	"rate limit",
	"rate limited",
	"429",
	"unusual traffic",
}

// IsRateLimitSignal reports whether an error indicates provider
// blocking, by sentinel or by message text.
func IsRateLimitSignal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	return MessageIndicatesRateLimit(err.Error())
}

// MessageIndicatesRateLimit checks an error message for blocking
// keywords. Used where only recorded message text is available.
func MessageIndicatesRateLimit(msg string) bool {
	m := strings.ToLower(msg)
	for _, kw := range rateLimitKeywords {
		if strings.Contains(m, kw) {
			return true
		}
	}
	return false
}
