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

// RetryMode selects which videos a retry pass touches.
type RetryMode string

const (
	// RetryFailedOnly re-runs extraction only for videos whose current
	// classification is not Real. Videos with a real transcript are
	// skipped untouched, which makes the operation idempotent.
	RetryFailedOnly RetryMode = "failed_only"
	// RetryAll re-runs extraction for every listed video.
	RetryAll RetryMode = "all"
)

// RetrySummary is the outcome of one retry pass.
type RetrySummary struct {
	Requested            int      `json:"requested"`
	Retried              int      `json:"retried"`
	TranscriptSuccesses  int      `json:"transcript_successes"`
	ContentExtracts      int      `json:"content_extracts"`
	TranscriptErrors     int      `json:"transcript_errors"`
	SkippedCount         int      `json:"skipped_count"`
	CircuitBreakerTripped bool    `json:"circuit_breaker_tripped"`
	VideoErrors          []string `json:"video_errors,omitempty"`
}

// RetryTranscripts re-runs extraction for the given videos under the
// same pacing and circuit-breaker discipline as an import. Unknown IDs
// are counted as errors; videos skipped by mode leave their stored
// transcript unchanged.
func (imp *Importer) RetryTranscripts(ctx context.Context, videoIDs []string, mode RetryMode) (*RetrySummary, error) {
	if mode != RetryFailedOnly && mode != RetryAll {
		return nil, fmt.Errorf("unknown retry mode %q", mode)
	}

	summary := &RetrySummary{Requested: len(videoIDs)}
	breaker := throttle.NewCircuitBreakerWithSleep(imp.throttle, imp.sleep)
	pacer := throttle.NewPacerWithSleep(imp.throttle, imp.sleep)

	attempted := 0
	for _, videoID := range videoIDs {
		if mode == RetryFailedOnly && imp.hasRealTranscript(ctx, videoID) {
			summary.SkippedCount++
			continue
		}

		video, err := imp.sink.GetVideo(ctx, videoID)
		if err != nil {
			log.Printf("ingest: retry lookup for %s failed: %v", videoID, err)
			summary.VideoErrors = append(summary.VideoErrors, videoID+": "+err.Error())
			summary.TranscriptErrors++
			continue
		}

		// Fresh metadata feeds the content-extract fallback; stored
		// metadata stands in when the provider call fails.
		meta, err := imp.provider.VideoDetails(ctx, videoID)
		if err != nil {
			if isSystemic(err) {
				return nil, fmt.Errorf("fetch metadata for retry: %w", err)
			}
			log.Printf("ingest: metadata refresh for %s failed (%v), using stored copy", videoID, err)
			meta = metadataFromStored(video)
		}

		position := attempted % pacer.BatchSize()
		if err := breaker.Guard(ctx); err != nil {
			summary.VideoErrors = append(summary.VideoErrors, videoID+": "+err.Error())
			break
		}
		if err := pacer.BeforeAttempt(ctx, position, breaker.ConsecutiveFailures()); err != nil {
			summary.VideoErrors = append(summary.VideoErrors, videoID+": "+err.Error())
			break
		}

		res := imp.extractor.Extract(ctx, videoID, meta)
		imp.recordRetryOutcome(ctx, videoID, res, summary)
		breaker.RecordResult(res.RateLimited)
		summary.Retried++
		attempted++

		if attempted%pacer.BatchSize() == 0 {
			if err := pacer.BetweenBatches(ctx); err != nil {
				summary.VideoErrors = append(summary.VideoErrors, "run interrupted: "+err.Error())
				break
			}
		}
	}

	summary.CircuitBreakerTripped = breaker.Tripped()
	return summary, nil
}

// hasRealTranscript reports whether the stored transcript for a video
// is classified Real. Absent or unreadable transcripts count as not
// real so the retry proceeds.
func (imp *Importer) hasRealTranscript(ctx context.Context, videoID string) bool {
	t, err := imp.sink.GetTranscript(ctx, videoID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Printf("ingest: transcript lookup for %s failed: %v", videoID, err)
		}
		return false
	}
	return t.Classification == string(transcript.Real)
}

// metadataFromStored reconstructs provider metadata from the stored row.
func metadataFromStored(v *storage.Video) *youtube.VideoDetails {
	return &youtube.VideoDetails{
		ID:              v.YouTubeID,
		Title:           v.Title,
		Description:     v.Description,
		Thumbnail:       v.ThumbnailURL,
		PublishedAt:     v.PublishedAt,
		ChannelID:       v.ChannelID,
		DurationSeconds: v.DurationSeconds,
		Kind:            youtube.Kind(v.Kind),
	}
}

// recordRetryOutcome persists the new result and updates retry counters.
func (imp *Importer) recordRetryOutcome(ctx context.Context, videoID string, res transcript.Result, summary *RetrySummary) {
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

	if err := imp.sink.MarkImportStatus(ctx, videoID, statusForResult(res), res.Err); err != nil {
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
