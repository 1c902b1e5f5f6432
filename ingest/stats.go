package ingest

import (
	"context"
	"log"
	"time"

	"ytingest/throttle"
	"ytingest/youtube"
)

// StatsProvider is the provider slice the refresher needs.
// *youtube.DataAPIProvider satisfies it.
type StatsProvider interface {
	VideoStatistics(ctx context.Context, videoIDs []string) (map[string]youtube.VideoStats, error)
}

// StatsStore is the storage slice the refresher needs.
// *storage.Store satisfies it.
type StatsStore interface {
	VideosNeedingStatsRefresh(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
	UpdateStatistics(ctx context.Context, youtubeID string, views, likes, comments int64) error
}

// StatsConfig tunes the statistics refresher.
type StatsConfig struct {
	// MaxAge is how old a video's statistics may get before it is due
	// for refresh.
	MaxAge time.Duration
	// ChunkSize is the IDs per provider call. The Data API caps this
	// at 50; larger values are clamped.
	ChunkSize int
	// ChunkDelay is the fixed pause between chunks.
	ChunkDelay time.Duration
}

// DefaultStatsConfig returns the refresher defaults.
func DefaultStatsConfig() StatsConfig {
	return StatsConfig{
		MaxAge:     24 * time.Hour,
		ChunkSize:  50,
		ChunkDelay: 2 * time.Second,
	}
}

// StatsRefresher periodically re-fetches view/like/comment counts for
// videos whose statistics have gone stale.
type StatsRefresher struct {
	provider StatsProvider
	store    StatsStore
	cfg      StatsConfig
	sleep    throttle.SleepFunc
}

// NewStatsRefresher creates a refresher with real sleeping.
func NewStatsRefresher(provider StatsProvider, store StatsStore, cfg StatsConfig) *StatsRefresher {
	if cfg.ChunkSize <= 0 || cfg.ChunkSize > 50 {
		cfg.ChunkSize = 50
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultStatsConfig().MaxAge
	}
	return &StatsRefresher{
		provider: provider,
		store:    store,
		cfg:      cfg,
		sleep:    throttle.RealSleep,
	}
}

// NewStatsRefresherWithSleep creates a refresher with an injected sleep
// function for tests.
func NewStatsRefresherWithSleep(provider StatsProvider, store StatsStore, cfg StatsConfig, sleep throttle.SleepFunc) *StatsRefresher {
	r := NewStatsRefresher(provider, store, cfg)
	r.sleep = sleep
	return r
}

// RefreshDue refreshes statistics for up to maxVideos stale videos and
// returns how many were updated. A failed chunk is logged and skipped;
// later chunks still run.
func (r *StatsRefresher) RefreshDue(ctx context.Context, maxVideos int) (int, error) {
	cutoff := time.Now().Add(-r.cfg.MaxAge)
	ids, err := r.store.VideosNeedingStatsRefresh(ctx, cutoff, maxVideos)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	updated := 0
	for start := 0; start < len(ids); start += r.cfg.ChunkSize {
		end := start + r.cfg.ChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		if start > 0 {
			if err := r.sleep(ctx, r.cfg.ChunkDelay); err != nil {
				return updated, err
			}
		}

		stats, err := r.provider.VideoStatistics(ctx, chunk)
		if err != nil {
			log.Printf("ingest: stats chunk of %d failed: %v", len(chunk), err)
			continue
		}

		for _, id := range chunk {
			s, ok := stats[id]
			if !ok {
				// Deleted or private since import; leave the row alone.
				continue
			}
			if err := r.store.UpdateStatistics(ctx, id, s.ViewCount, s.LikeCount, s.CommentCount); err != nil {
				log.Printf("ingest: update stats for %s failed: %v", id, err)
				continue
			}
			updated++
		}
	}

	log.Printf("ingest: refreshed statistics for %d of %d due videos", updated, len(ids))
	return updated, nil
}
