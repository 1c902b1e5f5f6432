package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimedtextBaseURL = "https://www.youtube.com/api/timedtext"

// TimedtextClient fetches captions from YouTube's timedtext endpoint.
// This endpoint needs no credentials but is aggressively and opaquely
// throttled; callers must pace requests and treat ErrRateLimited as a
// signal to back off.
type TimedtextClient struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

// NewTimedtextClient creates a timedtext caption client.
func NewTimedtextClient() *TimedtextClient {
	return &TimedtextClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultTimedtextBaseURL,
		userAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
	}
}

// timedtextResponse is the raw json3 timedtext payload.
type timedtextResponse struct {
	Events []timedtextEvent `json:"events"`
}

type timedtextEvent struct {
	TStartMs    int64              `json:"tStartMs"`
	DDurationMs int64              `json:"dDurationMs"`
	Segs        []timedtextSegment `json:"segs,omitempty"`
}

type timedtextSegment struct {
	UTF8 string `json:"utf8"`
}

// FetchCaptions fetches the caption track for a video. lang may be empty
// to let the endpoint pick; auto requests the ASR (auto-generated) track.
func (tc *TimedtextClient) FetchCaptions(ctx context.Context, videoID, lang string, auto bool) ([]CaptionEntry, error) {
	if videoID == "" {
		return nil, fmt.Errorf("video ID is required")
	}

	params := url.Values{}
	params.Set("v", videoID)
	params.Set("fmt", "json3")
	if lang != "" {
		params.Set("lang", lang)
	}
	if auto {
		params.Set("kind", "asr")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tc.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", tc.userAgent)

	resp, err := tc.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("timedtext request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read timedtext response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through to parsing
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: video %s lang %q", ErrNoCaptions, videoID, lang)
	case http.StatusForbidden, http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: timedtext returned %d", ErrRateLimited, resp.StatusCode)
	default:
		return nil, fmt.Errorf("timedtext returned status %d", resp.StatusCode)
	}

	// A CAPTCHA interstitial comes back as 200 with an HTML body.
	if looksLikeBlockPage(body) {
		return nil, fmt.Errorf("%w: captcha challenge in timedtext response", ErrRateLimited)
	}

	entries, err := parseTimedtext(body)
	if err != nil {
		return nil, fmt.Errorf("parse timedtext response: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: empty caption payload for %s lang %q", ErrNoCaptions, videoID, lang)
	}
	return entries, nil
}

// parseTimedtext parses the json3 timedtext payload into caption entries.
func parseTimedtext(data []byte) ([]CaptionEntry, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var resp timedtextResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal timedtext JSON: %w", err)
	}

	var entries []CaptionEntry
	for _, event := range resp.Events {
		if len(event.Segs) == 0 {
			continue
		}

		var text strings.Builder
		for _, seg := range event.Segs {
			text.WriteString(seg.UTF8)
		}
		if strings.TrimSpace(text.String()) == "" {
			continue
		}

		entries = append(entries, CaptionEntry{
			Text:       text.String(),
			OffsetMs:   event.TStartMs,
			DurationMs: event.DDurationMs,
		})
	}

	return entries, nil
}

// looksLikeBlockPage detects HTML challenge pages served in place of
// caption data.
func looksLikeBlockPage(body []byte) bool {
	head := body
	if len(head) > 2048 {
		head = head[:2048]
	}
	s := strings.ToLower(string(head))
	if !strings.Contains(s, "<html") && !strings.Contains(s, "<!doctype") {
		return false
	}
	return strings.Contains(s, "captcha") || strings.Contains(s, "unusual traffic") ||
		strings.Contains(s, "sorry")
}
