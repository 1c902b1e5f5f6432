package youtube

import (
	"context"
	"errors"
	"log"
)

// CaptionClient combines the player-response and timedtext caption
// sources behind a single fetch API. The player response is tried first
// because its signed track URLs survive auth restrictions that break the
// bare timedtext endpoint; timedtext covers videos whose player response
// omits tracks. Track listing prefers the player response (free) and
// falls back to the Data API captions.list (costs quota).
type CaptionClient struct {
	player    *PlayerSource
	timedtext *TimedtextClient
	api       *DataAPIProvider
}

// NewCaptionClient builds the combined caption client. api may be nil;
// without it the track-listing fallback is unavailable.
func NewCaptionClient(player *PlayerSource, timedtext *TimedtextClient, api *DataAPIProvider) *CaptionClient {
	return &CaptionClient{player: player, timedtext: timedtext, api: api}
}

// FetchCaptions fetches captions for a video, trying the player response
// first, then the timedtext endpoint. A rate-limit error from the first
// source is returned immediately rather than hammering the second.
func (cc *CaptionClient) FetchCaptions(ctx context.Context, videoID, lang string, auto bool) ([]CaptionEntry, error) {
	entries, err := cc.player.FetchCaptions(ctx, videoID, lang, auto)
	if err == nil {
		return entries, nil
	}
	if errors.Is(err, ErrRateLimited) {
		return nil, err
	}

	log.Printf("youtube: player caption fetch for %s failed (%v), trying timedtext", videoID, err)
	return cc.timedtext.FetchCaptions(ctx, videoID, lang, auto)
}

// ListTracks lists available caption tracks for a video.
func (cc *CaptionClient) ListTracks(ctx context.Context, videoID string) ([]TrackInfo, error) {
	tracks, err := cc.player.ListTracks(ctx, videoID)
	if err == nil {
		return tracks, nil
	}
	if errors.Is(err, ErrRateLimited) || cc.api == nil {
		return nil, err
	}

	log.Printf("youtube: player track listing for %s failed (%v), trying captions.list", videoID, err)
	return cc.api.ListCaptionTracks(ctx, videoID)
}
