package transcript

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"

	"ytingest/internal/retry"
	"ytingest/youtube"
)

// CaptionSource fetches caption cues for a video. lang may be empty for
// no language hint; auto requests the auto-generated (ASR) track.
// Implementations report youtube.ErrNoCaptions when the requested track
// does not exist and youtube.ErrRateLimited when throttled.
type CaptionSource interface {
	FetchCaptions(ctx context.Context, videoID, lang string, auto bool) ([]youtube.CaptionEntry, error)
}

// TrackLister lists the caption tracks declared for a video without
// downloading their content.
type TrackLister interface {
	ListTracks(ctx context.Context, videoID string) ([]youtube.TrackInfo, error)
}

// DefaultLanguages is the language-variant search order: English
// regional variants first, then the bare code, then a broader set.
var DefaultLanguages = []string{
	"en-US", "en-GB", "en-CA", "en-AU", "en",
	"es", "fr", "de", "pt", "it", "hi", "ja", "ko",
}

// Config tunes the extractor.
type Config struct {
	// Languages is the language-variant order. Nil means DefaultLanguages.
	Languages []string
	// MinTextLength is the usable-transcript floor. Zero means
	// MinUsableLength.
	MinTextLength int
	// FetchRetry controls retries of individual caption fetches for
	// transient network errors. Rate-limit and no-caption errors are
	// never retried here; pacing across attempts belongs to the caller.
	FetchRetry retry.Config
}

// DefaultConfig returns the extractor defaults.
func DefaultConfig() Config {
	fetchRetry := retry.DefaultConfig()
	fetchRetry.MaxRetries = 2
	return Config{
		Languages:     DefaultLanguages,
		MinTextLength: MinUsableLength,
		FetchRetry:    fetchRetry,
	}
}

// Extractor runs the strategy chain for one video at a time. It holds
// no per-video state and is safe to reuse across runs.
type Extractor struct {
	source CaptionSource
	tracks TrackLister
	cfg    Config
}

// NewExtractor creates an extractor. tracks may be nil, which disables
// the track-listing strategy.
func NewExtractor(source CaptionSource, tracks TrackLister, cfg Config) *Extractor {
	if cfg.Languages == nil {
		cfg.Languages = DefaultLanguages
	}
	if cfg.MinTextLength <= 0 {
		cfg.MinTextLength = MinUsableLength
	}
	if cfg.FetchRetry.MaxRetries == 0 && cfg.FetchRetry.InitialBackoff == 0 {
		cfg.FetchRetry = DefaultConfig().FetchRetry
	}
	return &Extractor{source: source, tracks: tracks, cfg: cfg}
}

// Extract runs the strategies in priority order and returns a tagged
// result; it never returns an error for a single video's failure. meta
// is the video's metadata when the caller already has it (the importer
// always does); it feeds the final content-extract fallback and may be
// nil.
func (e *Extractor) Extract(ctx context.Context, videoID string, meta *youtube.VideoDetails) Result {
	var attempts []Attempt
	rateLimited := false

	// Strategy 1: direct fetch, no language hint.
	if res, ok := e.tryFetch(ctx, videoID, MethodDirect, "", false, &attempts); ok {
		return res
	}
	rateLimited = lastAttemptRateLimited(attempts)

	// Strategy 2: language variants in priority order. Once the
	// provider starts blocking, further fetches only feed the throttle;
	// stop and let the caller's circuit breaker see the signal.
	if !rateLimited {
		for _, lang := range e.cfg.Languages {
			if res, ok := e.tryFetch(ctx, videoID, MethodLanguageVariant, lang, false, &attempts); ok {
				return res
			}
			if rateLimited = lastAttemptRateLimited(attempts); rateLimited {
				break
			}
		}
	}

	// Strategy 3: auto-generated captions, bare then English.
	if !rateLimited {
		for _, lang := range []string{"", "en"} {
			if res, ok := e.tryFetch(ctx, videoID, MethodAutoCaption, lang, true, &attempts); ok {
				return res
			}
			if rateLimited = lastAttemptRateLimited(attempts); rateLimited {
				break
			}
		}
	}

	// Strategy 4: track listing. Tracks exist but their content could
	// not be downloaded above, so this is explicitly a content extract,
	// never a real transcript.
	if e.tracks != nil {
		if res, ok := e.tryTrackListing(ctx, videoID, meta, &attempts); ok {
			res.RateLimited = rateLimited
			return res
		}
	}

	// Final fallback: synthesize a content extract from metadata.
	if meta != nil {
		text := ContentExtractFromMetadata(meta)
		if text != "" {
			return Result{
				VideoID:        videoID,
				Classification: ContentExtract,
				Method:         MethodMetadata,
				Text:           text,
				Err:            attemptErrors(attempts),
				RateLimited:    rateLimited,
				Attempts:       attempts,
			}
		}
	}

	return Result{
		VideoID:        videoID,
		Classification: Failed,
		Err:            attemptErrors(attempts),
		RateLimited:    rateLimited,
		Attempts:       attempts,
	}
}

// lastAttemptRateLimited reports whether the most recent attempt failed
// on a provider blocking signal.
func lastAttemptRateLimited(attempts []Attempt) bool {
	if len(attempts) == 0 {
		return false
	}
	return youtube.MessageIndicatesRateLimit(attempts[len(attempts)-1].Err)
}

// tryFetch runs one caption fetch attempt. ok is true when the attempt
// yielded a usable Real result.
func (e *Extractor) tryFetch(ctx context.Context, videoID string, method Method, lang string, auto bool, attempts *[]Attempt) (Result, bool) {
	var entries []youtube.CaptionEntry

	err := retry.Do(ctx, e.cfg.FetchRetry, fetchErrorClassifier, func(ctx context.Context) error {
		var ferr error
		entries, ferr = e.source.FetchCaptions(ctx, videoID, lang, auto)
		return ferr
	})
	if err != nil {
		*attempts = append(*attempts, Attempt{Method: method, Language: lang, Err: err.Error()})
		return Result{}, false
	}

	cleaned := Clean(joinCaptions(entries))
	if len(cleaned) < e.cfg.MinTextLength {
		*attempts = append(*attempts, Attempt{
			Method:   method,
			Language: lang,
			Err:      fmt.Sprintf("cleaned transcript too short (%d chars)", len(cleaned)),
		})
		return Result{}, false
	}

	return Result{
		VideoID:        videoID,
		Classification: Real,
		Method:         method,
		Text:           cleaned,
		Language:       lang,
		Attempts:       *attempts,
	}, true
}

// tryTrackListing builds a structured summary from the caption-track
// listing when tracks exist but cannot be downloaded.
func (e *Extractor) tryTrackListing(ctx context.Context, videoID string, meta *youtube.VideoDetails, attempts *[]Attempt) (Result, bool) {
	tracks, err := e.tracks.ListTracks(ctx, videoID)
	if err != nil {
		*attempts = append(*attempts, Attempt{Method: MethodTrackListing, Err: err.Error()})
		return Result{}, false
	}
	if len(tracks) == 0 {
		*attempts = append(*attempts, Attempt{Method: MethodTrackListing, Err: "no tracks listed"})
		return Result{}, false
	}

	log.Printf("transcript: %s has %d caption tracks but none downloadable, building track summary", videoID, len(tracks))

	var b strings.Builder
	if meta != nil {
		b.WriteString("Video: " + meta.Title + "\n")
		b.WriteString("Channel: " + meta.ChannelTitle + "\n")
	}
	var langs []string
	for _, t := range tracks {
		code := t.LanguageCode
		if t.AutoGenerated {
			code += " (auto)"
		}
		langs = append(langs, code)
	}
	b.WriteString("Caption tracks available: " + strings.Join(langs, ", ") + "\n")
	if meta != nil && meta.Description != "" {
		b.WriteString("Description: " + meta.Description)
	}

	return Result{
		VideoID:        videoID,
		Classification: ContentExtract,
		Method:         MethodTrackListing,
		Text:           strings.TrimSpace(b.String()),
		Err:            attemptErrors(*attempts),
		Attempts:       *attempts,
	}, true
}

// ContentExtractFromMetadata synthesizes a transcript substitute from
// video metadata. The result is labeled ContentExtract by every caller;
// it must never be presented as spoken content.
func ContentExtractFromMetadata(meta *youtube.VideoDetails) string {
	var b strings.Builder
	if meta.Title != "" {
		b.WriteString("Video: " + meta.Title + "\n")
	}
	if meta.ChannelTitle != "" {
		b.WriteString("Channel: " + meta.ChannelTitle + "\n")
	}
	if kw := topicKeywords(meta.Title, meta.Description); len(kw) > 0 {
		b.WriteString("Topics: " + strings.Join(kw, ", ") + "\n")
	}
	if meta.Description != "" {
		b.WriteString("Description: " + meta.Description)
	}
	return strings.TrimSpace(b.String())
}

// topicKeywords pulls rough topic words out of title and description:
// capitalized or hashtagged terms, deduplicated, order preserved.
var keywordRe = regexp.MustCompile(`#\w+|\b[A-Z][a-z]{3,}\b`)

func topicKeywords(title, description string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range keywordRe.FindAllString(title+" "+description, 12) {
		key := strings.ToLower(strings.TrimPrefix(m, "#"))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, m)
	}
	return out
}

// joinCaptions concatenates caption cues into one raw text block.
func joinCaptions(entries []youtube.CaptionEntry) string {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(e.Text)
	}
	return b.String()
}

// fetchErrorClassifier keeps caption-fetch retries to genuinely
// transient failures. Missing captions are permanent for the attempted
// track; rate limiting must surface to the circuit breaker instead of
// being retried in a tight loop.
func fetchErrorClassifier(err error) bool {
	if errors.Is(err, youtube.ErrNoCaptions) || errors.Is(err, youtube.ErrNotFound) ||
		errors.Is(err, youtube.ErrRateLimited) {
		return false
	}
	return retry.IsRetryable(err)
}
