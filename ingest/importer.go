// Package ingest orchestrates batch import of channel videos: discovery
// and dedup against known IDs, batched metadata fetch, per-video
// transcript extraction under rate-limit pacing and a circuit breaker,
// and partial-failure bookkeeping. All work within a run is strictly
// sequential; the provider's undocumented throttling is the reason, and
// the circuit breaker depends on that global ordering.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"

	"ytingest/storage"
	"ytingest/throttle"
	"ytingest/transcript"
	"ytingest/youtube"
)

const (
	// MaxRequestedVideos clamps how many new videos one run may import.
	MaxRequestedVideos = 50
	// maxPageIterations bounds listing pagination so a run always
	// terminates even on a pathological listing.
	maxPageIterations = 10
)

// MetadataProvider is the slice of the video provider the importer
// needs. *youtube.DataAPIProvider satisfies it.
type MetadataProvider interface {
	ListChannelVideos(ctx context.Context, channelRef, pageToken string) (*youtube.VideoPage, error)
	VideoDetailsBatch(ctx context.Context, videoIDs []string) ([]youtube.VideoDetails, error)
	VideoDetails(ctx context.Context, videoID string) (*youtube.VideoDetails, error)
}

// TranscriptExtractor produces a tagged transcript result for one video.
// *transcript.Extractor satisfies it.
type TranscriptExtractor interface {
	Extract(ctx context.Context, videoID string, meta *youtube.VideoDetails) transcript.Result
}

// Sink is the persistence surface the importer writes to.
// *storage.Store satisfies it.
type Sink interface {
	UpsertChannel(ctx context.Context, youtubeID, title string) (string, error)
	SaveVideo(ctx context.Context, v *storage.Video) error
	SaveTranscript(ctx context.Context, t *storage.Transcript) error
	MarkImportStatus(ctx context.Context, youtubeID, status, errMsg string) error
	GetTranscript(ctx context.Context, videoID string) (*storage.Transcript, error)
	GetVideo(ctx context.Context, youtubeID string) (*storage.Video, error)
}

// ImportSummary is the externally visible outcome of one import run.
// imported < requested is explicit, never silently truncated: compare
// Imported with Requested and check SkippedDuplicates / ListingExhausted.
type ImportSummary struct {
	ChannelRef           string   `json:"channel_ref"`
	Requested            int      `json:"requested"`
	Imported             int      `json:"imported"`
	TranscriptSuccesses  int      `json:"transcript_successes"`
	ContentExtracts      int      `json:"content_extracts"`
	TranscriptErrors     int      `json:"transcript_errors"`
	SkippedDuplicates    int      `json:"skipped_duplicates"`
	ListingExhausted     bool     `json:"listing_exhausted"`
	CircuitBreakerTripped bool    `json:"circuit_breaker_tripped"`
	VideoErrors          []string `json:"video_errors,omitempty"`
}

// Importer drives channel imports. Collaborators are injected so tests
// run against fakes with no network or clock.
type Importer struct {
	provider  MetadataProvider
	extractor TranscriptExtractor
	sink      Sink
	throttle  throttle.Config
	sleep     throttle.SleepFunc
}

// NewImporter creates an importer with real sleeping.
func NewImporter(provider MetadataProvider, extractor TranscriptExtractor, sink Sink, cfg throttle.Config) *Importer {
	return &Importer{
		provider:  provider,
		extractor: extractor,
		sink:      sink,
		throttle:  cfg,
		sleep:     throttle.RealSleep,
	}
}

// NewImporterWithSleep creates an importer with an injected sleep
// function so tests can observe pacing without real waits.
func NewImporterWithSleep(provider MetadataProvider, extractor TranscriptExtractor, sink Sink, cfg throttle.Config, sleep throttle.SleepFunc) *Importer {
	imp := NewImporter(provider, extractor, sink, cfg)
	imp.sleep = sleep
	return imp
}

// ImportChannel imports up to desiredCount videos not present in
// existingIDs. Per-video failures are isolated and reflected in the
// summary; only systemic failures (bad credentials, quota exhaustion,
// unreachable provider) return an error.
func (imp *Importer) ImportChannel(ctx context.Context, channelRef string, desiredCount int, existingIDs []string) (*ImportSummary, error) {
	if desiredCount < 1 {
		desiredCount = 1
	}
	if desiredCount > MaxRequestedVideos {
		desiredCount = MaxRequestedVideos
	}

	summary := &ImportSummary{ChannelRef: channelRef, Requested: desiredCount}

	known := make(map[string]bool, len(existingIDs))
	for _, id := range existingIDs {
		known[id] = true
	}

	candidates, exhausted, err := imp.discoverCandidates(ctx, channelRef, desiredCount, known, summary)
	if err != nil {
		return nil, err
	}
	summary.ListingExhausted = exhausted

	if len(candidates) == 0 {
		log.Printf("ingest: no new videos for %s (%d duplicates skipped)", channelRef, summary.SkippedDuplicates)
		return summary, nil
	}

	// A failed batch call is systemic by nature: it takes every
	// candidate down at once, unlike per-video persistence or
	// extraction failures.
	details, err := imp.provider.VideoDetailsBatch(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("fetch metadata batch: %w", err)
	}

	imp.processCandidates(ctx, details, summary)
	return summary, nil
}

// discoverCandidates pages through the channel listing collecting up to
// desiredCount unknown IDs. Pagination is bounded; exhausted reports
// whether the listing ended before the quota was filled.
func (imp *Importer) discoverCandidates(ctx context.Context, channelRef string, desiredCount int, known map[string]bool, summary *ImportSummary) ([]string, bool, error) {
	var candidates []string
	pageToken := ""

	for page := 0; page < maxPageIterations; page++ {
		listing, err := imp.provider.ListChannelVideos(ctx, channelRef, pageToken)
		if err != nil {
			return nil, false, fmt.Errorf("list channel videos: %w", err)
		}

		for _, item := range listing.Items {
			if known[item.ID] {
				summary.SkippedDuplicates++
				continue
			}
			candidates = append(candidates, item.ID)
			if len(candidates) == desiredCount {
				return candidates, false, nil
			}
		}

		if listing.NextPageToken == "" {
			return candidates, true, nil
		}
		pageToken = listing.NextPageToken
	}

	return candidates, false, nil
}

// processCandidates runs the sequential per-video loop: persist
// metadata, extract under guard, persist the outcome.
func (imp *Importer) processCandidates(ctx context.Context, details []youtube.VideoDetails, summary *ImportSummary) {
	breaker := throttle.NewCircuitBreakerWithSleep(imp.throttle, imp.sleep)
	pacer := throttle.NewPacerWithSleep(imp.throttle, imp.sleep)

	for i := range details {
		d := &details[i]

		if err := imp.persistMetadata(ctx, d); err != nil {
			// Partial-failure tolerance: one broken row must not sink
			// the run.
			log.Printf("ingest: persist metadata for %s failed: %v", d.ID, err)
			summary.VideoErrors = append(summary.VideoErrors, d.ID+": "+err.Error())
			continue
		}
		summary.Imported++

		position := i % pacer.BatchSize()
		if err := breaker.Guard(ctx); err != nil {
			summary.VideoErrors = append(summary.VideoErrors, d.ID+": "+err.Error())
			break
		}
		if err := pacer.BeforeAttempt(ctx, position, breaker.ConsecutiveFailures()); err != nil {
			summary.VideoErrors = append(summary.VideoErrors, d.ID+": "+err.Error())
			break
		}

		res := imp.extractor.Extract(ctx, d.ID, d)
		imp.recordOutcome(ctx, d.ID, res, summary)
		breaker.RecordResult(res.RateLimited)

		if (i+1)%pacer.BatchSize() == 0 && i+1 < len(details) {
			if err := pacer.BetweenBatches(ctx); err != nil {
				summary.VideoErrors = append(summary.VideoErrors, "run interrupted: "+err.Error())
				break
			}
		}
	}

	summary.CircuitBreakerTripped = breaker.Tripped()
}

// persistMetadata writes the video row in processing state, upserting
// its channel first.
func (imp *Importer) persistMetadata(ctx context.Context, d *youtube.VideoDetails) error {
	if _, err := imp.sink.UpsertChannel(ctx, d.ChannelID, d.ChannelTitle); err != nil {
		return err
	}

	return imp.sink.SaveVideo(ctx, &storage.Video{
		YouTubeID:       d.ID,
		ChannelID:       d.ChannelID,
		Title:           d.Title,
		Description:     d.Description,
		ThumbnailURL:    d.Thumbnail,
		PublishedAt:     d.PublishedAt,
		DurationSeconds: d.DurationSeconds,
		Kind:            string(d.Kind),
		ViewCount:       d.Stats.ViewCount,
		LikeCount:       d.Stats.LikeCount,
		CommentCount:    d.Stats.CommentCount,
		ImportStatus:    storage.StatusProcessing,
	})
}

// recordOutcome persists the transcript result and the terminal status,
// and updates the summary counters.
func (imp *Importer) recordOutcome(ctx context.Context, videoID string, res transcript.Result, summary *ImportSummary) {
	status := statusForResult(res)

	if err := imp.sink.SaveTranscript(ctx, &storage.Transcript{
		VideoID:        videoID,
		Content:        res.Text,
		Classification: string(res.Classification),
		Method:         string(res.Method),
		Language:       res.Language,
		Error:          res.Err,
	}); err != nil {
		log.Printf("ingest: persist transcript for %s failed: %v", videoID, err)
		summary.VideoErrors = append(summary.VideoErrors, videoID+": "+err.Error())
	}

	if err := imp.sink.MarkImportStatus(ctx, videoID, status, res.Err); err != nil {
		log.Printf("ingest: mark status for %s failed: %v", videoID, err)
	}

	switch res.Classification {
	case transcript.Real:
		summary.TranscriptSuccesses++
	case transcript.ContentExtract:
		summary.ContentExtracts++
	default:
		summary.TranscriptErrors++
		if res.Err != "" {
			summary.VideoErrors = append(summary.VideoErrors, videoID+": "+res.Err)
		}
	}
}

// statusForResult maps a transcript classification to the video's
// terminal import status.
func statusForResult(res transcript.Result) string {
	switch res.Classification {
	case transcript.Real:
		return storage.StatusCompleted
	case transcript.ContentExtract:
		return storage.StatusContentOnly
	default:
		return storage.StatusWithErrors
	}
}

// isSystemic reports whether a provider error poisons the whole run
// rather than a single video.
func isSystemic(err error) bool {
	return errors.Is(err, youtube.ErrUnauthorized) || errors.Is(err, youtube.ErrQuotaExceeded)
}
