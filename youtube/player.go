package youtube

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	kkdai "github.com/kkdai/youtube/v2"
)

// PlayerSource discovers and fetches caption tracks through the player
// response, which costs no Data API quota and exposes signed track URLs
// that can actually be downloaded. It is the primary caption source; the
// timedtext endpoint serves as fallback.
type PlayerSource struct {
	client     *kkdai.Client
	httpClient *http.Client
}

// NewPlayerSource creates a player-response caption source.
func NewPlayerSource() *PlayerSource {
	return &PlayerSource{
		client:     &kkdai.Client{},
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// ListTracks returns the caption tracks declared in the player response.
// Returns ErrNoCaptions (wrapped) when the video has none.
func (ps *PlayerSource) ListTracks(ctx context.Context, videoID string) ([]TrackInfo, error) {
	video, err := ps.video(ctx, videoID)
	if err != nil {
		return nil, err
	}

	if len(video.CaptionTracks) == 0 {
		return nil, fmt.Errorf("%w: video %s", ErrNoCaptions, videoID)
	}

	tracks := make([]TrackInfo, 0, len(video.CaptionTracks))
	for _, t := range video.CaptionTracks {
		tracks = append(tracks, TrackInfo{
			LanguageCode:  t.LanguageCode,
			Name:          t.Name.SimpleText,
			AutoGenerated: t.Kind == "asr",
		})
	}
	return tracks, nil
}

// FetchCaptions downloads a caption track. lang may be empty to take the
// first available track; auto restricts the match to ASR tracks.
func (ps *PlayerSource) FetchCaptions(ctx context.Context, videoID, lang string, auto bool) ([]CaptionEntry, error) {
	video, err := ps.video(ctx, videoID)
	if err != nil {
		return nil, err
	}

	track := pickTrack(video.CaptionTracks, lang, auto)
	if track == nil {
		return nil, fmt.Errorf("%w: video %s lang %q auto=%v", ErrNoCaptions, videoID, lang, auto)
	}

	return ps.fetchTrackByURL(ctx, track.BaseURL)
}

func (ps *PlayerSource) video(ctx context.Context, videoID string) (*kkdai.Video, error) {
	video, err := ps.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, classifyPlayerError(videoID, err)
	}
	return video, nil
}

// pickTrack selects a caption track by language, preferring an exact
// code match, then a prefix match ("en" matches "en-US"). With an empty
// lang any track of the requested kind qualifies.
func pickTrack(tracks []kkdai.CaptionTrack, lang string, auto bool) *kkdai.CaptionTrack {
	var prefixMatch *kkdai.CaptionTrack
	for i := range tracks {
		t := &tracks[i]
		if auto != (t.Kind == "asr") {
			continue
		}
		if lang == "" {
			return t
		}
		if strings.EqualFold(t.LanguageCode, lang) {
			return t
		}
		if prefixMatch == nil && strings.HasPrefix(strings.ToLower(t.LanguageCode), strings.ToLower(lang)+"-") {
			prefixMatch = t
		}
	}
	return prefixMatch
}

// fetchTrackByURL downloads and parses the timedtext XML behind a signed
// track URL.
func (ps *PlayerSource) fetchTrackByURL(ctx context.Context, trackURL string) ([]CaptionEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, trackURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := ps.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("caption track request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden, http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: caption track returned %d", ErrRateLimited, resp.StatusCode)
	default:
		return nil, fmt.Errorf("caption track returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read caption track: %w", err)
	}

	entries, err := parseTrackXML(body)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: empty caption track", ErrNoCaptions)
	}
	return entries, nil
}

// xmlTranscript mirrors the <timedtext> document of a caption track.
type xmlTranscript struct {
	XMLName xml.Name `xml:"timedtext"`
	Text    []xmlCue `xml:"body>p"`
}

type xmlCue struct {
	Start    int64        `xml:"t,attr"`
	Duration int64        `xml:"d,attr"`
	Segments []xmlSegment `xml:"s"`
	Chars    string       `xml:",chardata"`
}

type xmlSegment struct {
	Text string `xml:",chardata"`
}

// parseTrackXML parses timedtext XML into caption entries. Cues carry
// text either as direct character data or split into <s> segments.
func parseTrackXML(data []byte) ([]CaptionEntry, error) {
	var doc xmlTranscript
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse caption XML: %w", err)
	}

	entries := make([]CaptionEntry, 0, len(doc.Text))
	for _, cue := range doc.Text {
		var text strings.Builder
		for _, seg := range cue.Segments {
			text.WriteString(seg.Text)
		}
		if text.Len() == 0 {
			text.WriteString(cue.Chars)
		}
		if strings.TrimSpace(text.String()) == "" {
			continue
		}

		entries = append(entries, CaptionEntry{
			Text:       text.String(),
			OffsetMs:   cue.Start,
			DurationMs: cue.Duration,
		})
	}
	return entries, nil
}

// classifyPlayerError maps kkdai client failures onto package sentinels.
func classifyPlayerError(videoID string, err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "too many requests") || strings.Contains(msg, "captcha") ||
		strings.Contains(msg, "429"):
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	case strings.Contains(msg, "not found") || strings.Contains(msg, "unavailable") ||
		strings.Contains(msg, "invalid"):
		return fmt.Errorf("%w: %s: %v", ErrNotFound, videoID, err)
	}
	return fmt.Errorf("player response for %s: %w", videoID, err)
}
