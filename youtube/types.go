// Package youtube provides YouTube metadata and caption access for the
// ingestion pipeline. It contains the Data API provider, two caption
// fetchers (timedtext endpoint and player response), and pure helpers
// for duration parsing and video-kind classification.
package youtube

import (
	"errors"
	"time"
)

// Sentinel errors for provider and caption operations.
var (
	ErrNotFound        = errors.New("youtube: video not found")
	ErrChannelNotFound = errors.New("youtube: channel not found")
	ErrQuotaExceeded   = errors.New("youtube: api quota exceeded")
	ErrUnauthorized    = errors.New("youtube: invalid api credentials")
	ErrNoCaptions      = errors.New("youtube: no captions available")
	ErrRateLimited     = errors.New("youtube: rate limited")
)

// Kind distinguishes regular long-form videos from Shorts.
type Kind string

const (
	KindVideo Kind = "video"
	KindShort Kind = "short"
)

// VideoDetails contains full metadata for a single video as returned by
// the Data API videos.list endpoint.
type VideoDetails struct {
	// ID is the YouTube video ID (e.g., "dQw4w9WgXcQ").
	ID string
	// Title is the video title.
	Title string
	// Description is the full video description.
	Description string
	// Thumbnail is the URL of the best available thumbnail.
	Thumbnail string
	// PublishedAt is when the video was published.
	PublishedAt time.Time
	// ChannelID is the YouTube channel ID (UC...).
	ChannelID string
	// ChannelTitle is the channel display name.
	ChannelTitle string
	// DurationSeconds is the video length in seconds. Zero if unknown.
	DurationSeconds int
	// Kind classifies the video as long-form or a Short.
	Kind Kind
	// Stats holds the view/like/comment counters at fetch time.
	Stats VideoStats
}

// VideoStats holds the mutable engagement counters for a video.
type VideoStats struct {
	ViewCount    int64
	LikeCount    int64
	CommentCount int64
}

// VideoRef is a lightweight reference produced by channel listing.
// Full metadata is fetched separately in a batched videos.list call.
type VideoRef struct {
	ID          string
	Title       string
	PublishedAt time.Time
}

// VideoPage is one page of a channel's video listing.
type VideoPage struct {
	Items []VideoRef
	// NextPageToken is empty when the listing is exhausted.
	NextPageToken string
}

// CaptionEntry is a single timed caption cue.
type CaptionEntry struct {
	Text       string
	OffsetMs   int64
	DurationMs int64
}

// TrackInfo describes an available caption track.
type TrackInfo struct {
	// LanguageCode is the BCP-47 code of the track (e.g., "en", "en-US").
	LanguageCode string
	// Name is the human-readable track name, if any.
	Name string
	// AutoGenerated is true for ASR (auto-generated) tracks.
	AutoGenerated bool
}

// ProviderError wraps provider failures with context about what failed.
// Use errors.As() to extract it, or errors.Is() against the sentinel
// errors above to classify the underlying cause.
type ProviderError struct {
	// Op is the provider operation ("videos.list", "playlistItems.list", ...).
	Op string
	// ID is the video or channel reference involved, if any.
	ID string
	// Err is the underlying error.
	Err error
}

func (e *ProviderError) Error() string {
	if e.ID == "" {
		return "youtube: " + e.Op + ": " + e.Err.Error()
	}
	return "youtube: " + e.Op + " " + e.ID + ": " + e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is() and errors.As().
func (e *ProviderError) Unwrap() error { return e.Err }
