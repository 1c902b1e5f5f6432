package youtube

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"ytingest/internal/retry"
)

// statsBatchSize is the hard Data API limit on IDs per videos.list call.
const statsBatchSize = 50

var channelIDRegex = regexp.MustCompile(`UC[a-zA-Z0-9_-]{22}`)

// DataAPIProvider fetches video metadata, channel listings, statistics
// and caption-track listings from the YouTube Data API v3.
type DataAPIProvider struct {
	service *yt.Service

	// uploads playlist IDs are stable per channel; cache them to save quota.
	mu        sync.Mutex
	playlists map[string]string

	// RetryConfig controls retries for transient API failures.
	// Nil means retry.DefaultConfig().
	RetryConfig *retry.Config
}

// NewDataAPIProvider creates a Data API provider. A missing API key is a
// configuration error and fails immediately; nothing in the pipeline can
// proceed without credentials.
func NewDataAPIProvider(ctx context.Context, apiKey string) (*DataAPIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: api key required", ErrUnauthorized)
	}

	service, err := yt.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}

	return &DataAPIProvider{
		service:   service,
		playlists: make(map[string]string),
	}, nil
}

// VideoDetails fetches full metadata for a single video.
// Returns ErrNotFound (wrapped) if the ID is unknown.
func (p *DataAPIProvider) VideoDetails(ctx context.Context, videoID string) (*VideoDetails, error) {
	batch, err := p.VideoDetailsBatch(ctx, []string{videoID})
	if err != nil {
		return nil, err
	}
	if len(batch) == 0 {
		return nil, &ProviderError{Op: "videos.list", ID: videoID, Err: ErrNotFound}
	}
	return &batch[0], nil
}

// VideoDetailsBatch fetches full metadata for up to 50 videos per API
// call, chunking larger inputs. Unknown IDs are silently absent from the
// result; callers that need per-ID errors should compare lengths.
func (p *DataAPIProvider) VideoDetailsBatch(ctx context.Context, videoIDs []string) ([]VideoDetails, error) {
	var details []VideoDetails

	for start := 0; start < len(videoIDs); start += statsBatchSize {
		end := start + statsBatchSize
		if end > len(videoIDs) {
			end = len(videoIDs)
		}
		chunk := videoIDs[start:end]

		err := retry.Do(ctx, p.retryConfig(), apiErrorClassifier, func(ctx context.Context) error {
			call := p.service.Videos.List([]string{"snippet", "contentDetails", "statistics"}).
				Id(chunk...).
				MaxResults(int64(len(chunk))).
				Context(ctx)

			resp, err := call.Do()
			if err != nil {
				return classifyAPIError(err)
			}

			for _, item := range resp.Items {
				details = append(details, videoDetailsFromItem(item))
			}
			return nil
		})
		if err != nil {
			return nil, &ProviderError{Op: "videos.list", Err: err}
		}
	}

	return details, nil
}

// videoDetailsFromItem converts a Data API video resource.
func videoDetailsFromItem(item *yt.Video) VideoDetails {
	d := VideoDetails{ID: item.Id}

	if item.Snippet != nil {
		d.Title = item.Snippet.Title
		d.Description = item.Snippet.Description
		d.ChannelID = item.Snippet.ChannelId
		d.ChannelTitle = item.Snippet.ChannelTitle
		d.Thumbnail = bestThumbnail(item.Snippet.Thumbnails)
		if t, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt); err == nil {
			d.PublishedAt = t
		}
	}
	if item.ContentDetails != nil {
		d.DurationSeconds = ParseDuration(item.ContentDetails.Duration)
	}
	if item.Statistics != nil {
		d.Stats = VideoStats{
			ViewCount:    int64(item.Statistics.ViewCount),
			LikeCount:    int64(item.Statistics.LikeCount),
			CommentCount: int64(item.Statistics.CommentCount),
		}
	}
	d.Kind = ClassifyKind(d.DurationSeconds, d.Title, d.Description)
	return d
}

func bestThumbnail(t *yt.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	switch {
	case t.High != nil:
		return t.High.Url
	case t.Medium != nil:
		return t.Medium.Url
	case t.Default != nil:
		return t.Default.Url
	}
	return ""
}

// ListChannelVideos returns one page of the channel's uploads, newest
// first. channelRef may be a channel ID, a channel URL, or a handle
// (@name). Pass the returned NextPageToken to continue; an empty token
// in the result means the listing is exhausted.
func (p *DataAPIProvider) ListChannelVideos(ctx context.Context, channelRef, pageToken string) (*VideoPage, error) {
	playlistID, err := p.uploadsPlaylistID(ctx, channelRef)
	if err != nil {
		return nil, &ProviderError{Op: "playlistItems.list", ID: channelRef, Err: err}
	}

	page := &VideoPage{}
	err = retry.Do(ctx, p.retryConfig(), apiErrorClassifier, func(ctx context.Context) error {
		call := p.service.PlaylistItems.List([]string{"snippet", "contentDetails"}).
			PlaylistId(playlistID).
			MaxResults(50).
			PageToken(pageToken).
			Context(ctx)

		resp, err := call.Do()
		if err != nil {
			return classifyAPIError(err)
		}

		page.Items = page.Items[:0]
		for _, item := range resp.Items {
			ref := VideoRef{ID: item.ContentDetails.VideoId}
			if item.Snippet != nil {
				ref.Title = item.Snippet.Title
				if t, perr := time.Parse(time.RFC3339, item.Snippet.PublishedAt); perr == nil {
					ref.PublishedAt = t
				}
			}
			page.Items = append(page.Items, ref)
		}
		page.NextPageToken = resp.NextPageToken
		return nil
	})
	if err != nil {
		return nil, &ProviderError{Op: "playlistItems.list", ID: channelRef, Err: err}
	}

	return page, nil
}

// VideoStatistics fetches current view/like/comment counts for the given
// IDs, keyed by video ID. Chunks of 50 per call, same as details.
func (p *DataAPIProvider) VideoStatistics(ctx context.Context, videoIDs []string) (map[string]VideoStats, error) {
	stats := make(map[string]VideoStats, len(videoIDs))

	for start := 0; start < len(videoIDs); start += statsBatchSize {
		end := start + statsBatchSize
		if end > len(videoIDs) {
			end = len(videoIDs)
		}
		chunk := videoIDs[start:end]

		err := retry.Do(ctx, p.retryConfig(), apiErrorClassifier, func(ctx context.Context) error {
			call := p.service.Videos.List([]string{"statistics"}).
				Id(chunk...).
				Context(ctx)

			resp, err := call.Do()
			if err != nil {
				return classifyAPIError(err)
			}

			for _, item := range resp.Items {
				if item.Statistics == nil {
					continue
				}
				stats[item.Id] = VideoStats{
					ViewCount:    int64(item.Statistics.ViewCount),
					LikeCount:    int64(item.Statistics.LikeCount),
					CommentCount: int64(item.Statistics.CommentCount),
				}
			}
			return nil
		})
		if err != nil {
			return nil, &ProviderError{Op: "videos.list/statistics", Err: err}
		}
	}

	return stats, nil
}

// ListCaptionTracks lists caption tracks declared for a video via the
// captions.list endpoint. Track content cannot be downloaded with an API
// key alone; this is metadata-only, used by the track-listing strategy.
func (p *DataAPIProvider) ListCaptionTracks(ctx context.Context, videoID string) ([]TrackInfo, error) {
	var tracks []TrackInfo

	err := retry.Do(ctx, p.retryConfig(), apiErrorClassifier, func(ctx context.Context) error {
		call := p.service.Captions.List([]string{"snippet"}, videoID).Context(ctx)

		resp, err := call.Do()
		if err != nil {
			return classifyAPIError(err)
		}

		tracks = tracks[:0]
		for _, item := range resp.Items {
			if item.Snippet == nil {
				continue
			}
			tracks = append(tracks, TrackInfo{
				LanguageCode:  item.Snippet.Language,
				Name:          item.Snippet.Name,
				AutoGenerated: item.Snippet.TrackKind == "asr",
			})
		}
		return nil
	})
	if err != nil {
		return nil, &ProviderError{Op: "captions.list", ID: videoID, Err: err}
	}

	if len(tracks) == 0 {
		return nil, &ProviderError{Op: "captions.list", ID: videoID, Err: ErrNoCaptions}
	}
	return tracks, nil
}

// uploadsPlaylistID resolves a channel reference to its uploads playlist,
// caching the result.
func (p *DataAPIProvider) uploadsPlaylistID(ctx context.Context, channelRef string) (string, error) {
	channelID, err := p.resolveChannelID(ctx, channelRef)
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	if id, ok := p.playlists[channelID]; ok {
		p.mu.Unlock()
		return id, nil
	}
	p.mu.Unlock()

	var playlistID string
	err = retry.Do(ctx, p.retryConfig(), apiErrorClassifier, func(ctx context.Context) error {
		call := p.service.Channels.List([]string{"contentDetails"}).
			Id(channelID).
			Context(ctx)

		resp, err := call.Do()
		if err != nil {
			return classifyAPIError(err)
		}
		if len(resp.Items) == 0 {
			return ErrChannelNotFound
		}
		playlistID = resp.Items[0].ContentDetails.RelatedPlaylists.Uploads
		return nil
	})
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	p.playlists[channelID] = playlistID
	p.mu.Unlock()

	return playlistID, nil
}

// resolveChannelID converts a channel URL, handle, or bare ID to a
// channel ID.
func (p *DataAPIProvider) resolveChannelID(ctx context.Context, input string) (string, error) {
	if channelIDRegex.MatchString(input) {
		return channelIDRegex.FindString(input), nil
	}

	handle := input
	if strings.Contains(input, "youtube.com/") {
		parts := strings.Split(input, "youtube.com/")
		handle = strings.Split(parts[len(parts)-1], "/")[0]
	}
	handle = strings.TrimPrefix(handle, "@")
	if handle == "" {
		return "", fmt.Errorf("%w: cannot resolve channel from %q", ErrChannelNotFound, input)
	}

	var channelID string
	err := retry.Do(ctx, p.retryConfig(), apiErrorClassifier, func(ctx context.Context) error {
		call := p.service.Channels.List([]string{"id"}).
			ForHandle(handle).
			Context(ctx)

		resp, err := call.Do()
		if err != nil {
			return classifyAPIError(err)
		}
		if len(resp.Items) == 0 {
			return ErrChannelNotFound
		}
		channelID = resp.Items[0].Id
		return nil
	})
	if err != nil {
		return "", err
	}

	return channelID, nil
}

func (p *DataAPIProvider) retryConfig() retry.Config {
	if p.RetryConfig != nil {
		return *p.RetryConfig
	}
	return retry.DefaultConfig()
}

// classifyAPIError maps Data API failures onto the package sentinels so
// callers can distinguish systemic failures (bad key, quota) from
// per-video ones (not found).
func classifyAPIError(err error) error {
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == 404:
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case gerr.Code == 401:
			return fmt.Errorf("%w: %v", ErrUnauthorized, err)
		case gerr.Code == 429:
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		case gerr.Code == 403:
			if hasReason(gerr, "quotaExceeded", "dailyLimitExceeded") {
				return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
			}
			if hasReason(gerr, "rateLimitExceeded", "userRateLimitExceeded") {
				return fmt.Errorf("%w: %v", ErrRateLimited, err)
			}
			return fmt.Errorf("%w: %v", ErrUnauthorized, err)
		case gerr.Code == 400 && hasReason(gerr, "keyInvalid", "badRequest"):
			return fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
	}

	return err
}

func hasReason(gerr *googleapi.Error, reasons ...string) bool {
	for _, item := range gerr.Errors {
		for _, r := range reasons {
			if item.Reason == r {
				return true
			}
		}
	}
	return false
}

// apiErrorClassifier decides whether a Data API error is worth retrying.
// Credential and not-found errors are permanent; quota exhaustion resets
// daily, so retrying within a run is pointless.
func apiErrorClassifier(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrChannelNotFound) ||
		errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrQuotaExceeded) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
