package storage

import "time"

// Import statuses for a video. Every imported video ends in exactly one
// of the three terminal statuses.
const (
	// StatusProcessing is set when metadata lands, before extraction.
	StatusProcessing = "processing"
	// StatusCompleted means a real caption transcript was stored.
	StatusCompleted = "completed"
	// StatusContentOnly means only a synthesized content extract was
	// stored.
	StatusContentOnly = "completed_content_only"
	// StatusWithErrors means transcript extraction failed; metadata is
	// still kept.
	StatusWithErrors = "completed_with_errors"
)

// Run statuses for an import run.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Channel is a tracked YouTube channel.
type Channel struct {
	ID        string // Internal UUID
	YouTubeID string // YouTube channel ID (UC...)
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Video is an imported YouTube video.
type Video struct {
	ID               string // Internal UUID
	YouTubeID        string // YouTube video ID
	ChannelID        string // YouTube channel ID
	Title            string
	Description      string
	ThumbnailURL     string
	PublishedAt      time.Time
	DurationSeconds  int
	Kind             string // "video" or "short"
	ViewCount        int64
	LikeCount        int64
	CommentCount     int64
	StatsRefreshedAt time.Time
	ImportStatus     string
	ImportError      string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Transcript is the stored extraction outcome for a video. The
// classification is carried as data, exactly as produced by the
// extractor; it is never re-derived from the content.
type Transcript struct {
	VideoID        string // YouTube video ID
	Content        string
	Classification string // "real", "content_extract", "failed"
	Method         string
	Language       string
	Error          string
	AttemptedAt    time.Time
	UpdatedAt      time.Time
}

// ImportRun is the persisted record of one background import, polled by
// callers after the triggering request has returned.
type ImportRun struct {
	ID          string
	ChannelRef  string
	Requested   int
	Status      string
	SummaryJSON string
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time
}
