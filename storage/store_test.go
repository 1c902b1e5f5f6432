package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testVideo(youtubeID, channelID string) *Video {
	return &Video{
		YouTubeID:       youtubeID,
		ChannelID:       channelID,
		Title:           "Spring Flood Run",
		Description:     "High water on the upper canyon",
		ThumbnailURL:    "https://example.com/thumb.jpg",
		PublishedAt:     time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC),
		DurationSeconds: 843,
		Kind:            "video",
		ViewCount:       1200,
		LikeCount:       80,
		CommentCount:    14,
		ImportStatus:    StatusProcessing,
	}
}

func TestSaveAndGetVideo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v := testVideo("vid1", "UCchan")
	if err := s.SaveVideo(ctx, v); err != nil {
		t.Fatalf("SaveVideo() error = %v", err)
	}
	if v.ID == "" {
		t.Fatal("SaveVideo() did not assign an internal ID")
	}

	got, err := s.GetVideo(ctx, "vid1")
	if err != nil {
		t.Fatalf("GetVideo() error = %v", err)
	}
	if got.ID != v.ID {
		t.Errorf("internal ID = %q, want %q", got.ID, v.ID)
	}
	if got.Title != v.Title || got.DurationSeconds != v.DurationSeconds {
		t.Errorf("roundtrip mismatch: got %+v", got)
	}
	if got.ImportStatus != StatusProcessing {
		t.Errorf("ImportStatus = %q, want %q", got.ImportStatus, StatusProcessing)
	}
	if !got.PublishedAt.Equal(v.PublishedAt) {
		t.Errorf("PublishedAt = %v, want %v", got.PublishedAt, v.PublishedAt)
	}
}

func TestSaveVideoUpdatesExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v := testVideo("vid1", "UCchan")
	if err := s.SaveVideo(ctx, v); err != nil {
		t.Fatalf("SaveVideo() error = %v", err)
	}
	firstID := v.ID

	updated := testVideo("vid1", "UCchan")
	updated.Title = "Spring Flood Run (re-edit)"
	updated.ViewCount = 5000
	if err := s.SaveVideo(ctx, updated); err != nil {
		t.Fatalf("SaveVideo() update error = %v", err)
	}
	if updated.ID != firstID {
		t.Errorf("update changed internal ID: %q -> %q", firstID, updated.ID)
	}

	got, err := s.GetVideo(ctx, "vid1")
	if err != nil {
		t.Fatalf("GetVideo() error = %v", err)
	}
	if got.Title != "Spring Flood Run (re-edit)" || got.ViewCount != 5000 {
		t.Errorf("update not persisted: %+v", got)
	}
}

func TestGetVideoNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetVideo(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetVideo(missing) error = %v, want ErrNotFound", err)
	}
	var serr *StorageError
	if !errors.As(err, &serr) || serr.Entity != "video" {
		t.Errorf("error = %#v, want a video StorageError", err)
	}
}

func TestUpsertChannel(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id1, err := s.UpsertChannel(ctx, "UCchan", "River Channel")
	if err != nil {
		t.Fatalf("UpsertChannel() error = %v", err)
	}
	id2, err := s.UpsertChannel(ctx, "UCchan", "River Channel Renamed")
	if err != nil {
		t.Fatalf("UpsertChannel() second call error = %v", err)
	}
	if id1 != id2 {
		t.Errorf("upsert created a new row: %q != %q", id1, id2)
	}
}

func TestVideoIDsByChannel(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a1", "a2"} {
		if err := s.SaveVideo(ctx, testVideo(id, "UCone")); err != nil {
			t.Fatalf("SaveVideo(%s) error = %v", id, err)
		}
	}
	if err := s.SaveVideo(ctx, testVideo("b1", "UCtwo")); err != nil {
		t.Fatalf("SaveVideo(b1) error = %v", err)
	}

	ids, err := s.VideoIDsByChannel(ctx, "UCone")
	if err != nil {
		t.Fatalf("VideoIDsByChannel() error = %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("got %d IDs, want 2: %v", len(ids), ids)
	}
	seen := map[string]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if !seen["a1"] || !seen["a2"] || seen["b1"] {
		t.Errorf("VideoIDsByChannel() = %v, want a1 and a2 only", ids)
	}
}

func TestMarkImportStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveVideo(ctx, testVideo("vid1", "UCchan")); err != nil {
		t.Fatalf("SaveVideo() error = %v", err)
	}

	if err := s.MarkImportStatus(ctx, "vid1", StatusWithErrors, "no captions"); err != nil {
		t.Fatalf("MarkImportStatus() error = %v", err)
	}
	got, err := s.GetVideo(ctx, "vid1")
	if err != nil {
		t.Fatalf("GetVideo() error = %v", err)
	}
	if got.ImportStatus != StatusWithErrors || got.ImportError != "no captions" {
		t.Errorf("status = (%q, %q), want (%q, no captions)", got.ImportStatus, got.ImportError, StatusWithErrors)
	}

	if err := s.MarkImportStatus(ctx, "missing", StatusCompleted, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkImportStatus(missing) error = %v, want ErrNotFound", err)
	}
}

func TestSaveTranscriptUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveVideo(ctx, testVideo("vid1", "UCchan")); err != nil {
		t.Fatalf("SaveVideo() error = %v", err)
	}

	if err := s.SaveTranscript(ctx, &Transcript{
		VideoID:        "vid1",
		Content:        "Video: Spring Flood Run",
		Classification: "content_extract",
		Method:         "metadata",
		Error:          "direct: no captions",
	}); err != nil {
		t.Fatalf("SaveTranscript() error = %v", err)
	}

	// A retry replaces the row in place.
	if err := s.SaveTranscript(ctx, &Transcript{
		VideoID:        "vid1",
		Content:        "we put in below the dam at first light",
		Classification: "real",
		Method:         "language-variant",
		Language:       "en-US",
	}); err != nil {
		t.Fatalf("SaveTranscript() upsert error = %v", err)
	}

	got, err := s.GetTranscript(ctx, "vid1")
	if err != nil {
		t.Fatalf("GetTranscript() error = %v", err)
	}
	if got.Classification != "real" || got.Method != "language-variant" || got.Language != "en-US" {
		t.Errorf("transcript not replaced: %+v", got)
	}
	if got.Error != "" {
		t.Errorf("Error = %q, want cleared", got.Error)
	}

	if _, err := s.GetTranscript(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetTranscript(missing) error = %v, want ErrNotFound", err)
	}
}

func TestStatsRefreshSelection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"vid1", "vid2"} {
		if err := s.SaveVideo(ctx, testVideo(id, "UCchan")); err != nil {
			t.Fatalf("SaveVideo(%s) error = %v", id, err)
		}
	}

	// Never-refreshed videos are always due.
	cutoff := time.Now().Add(-time.Hour)
	ids, err := s.VideosNeedingStatsRefresh(ctx, cutoff, 10)
	if err != nil {
		t.Fatalf("VideosNeedingStatsRefresh() error = %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("got %d due videos, want 2: %v", len(ids), ids)
	}

	if err := s.UpdateStatistics(ctx, "vid1", 9000, 500, 42); err != nil {
		t.Fatalf("UpdateStatistics() error = %v", err)
	}

	ids, err = s.VideosNeedingStatsRefresh(ctx, cutoff, 10)
	if err != nil {
		t.Fatalf("VideosNeedingStatsRefresh() error = %v", err)
	}
	if len(ids) != 1 || ids[0] != "vid2" {
		t.Errorf("due videos = %v, want [vid2]", ids)
	}

	got, err := s.GetVideo(ctx, "vid1")
	if err != nil {
		t.Fatalf("GetVideo() error = %v", err)
	}
	if got.ViewCount != 9000 || got.LikeCount != 500 || got.CommentCount != 42 {
		t.Errorf("counters = (%d, %d, %d), want (9000, 500, 42)", got.ViewCount, got.LikeCount, got.CommentCount)
	}
	if got.StatsRefreshedAt.IsZero() {
		t.Error("StatsRefreshedAt not stamped")
	}

	if err := s.UpdateStatistics(ctx, "missing", 1, 1, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateStatistics(missing) error = %v, want ErrNotFound", err)
	}
}

func TestImportRunLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateImportRun(ctx, "@channel", 10)
	if err != nil {
		t.Fatalf("CreateImportRun() error = %v", err)
	}

	run, err := s.GetImportRun(ctx, id)
	if err != nil {
		t.Fatalf("GetImportRun() error = %v", err)
	}
	if run.Status != RunStatusRunning {
		t.Errorf("Status = %q, want %q", run.Status, RunStatusRunning)
	}
	if run.ChannelRef != "@channel" || run.Requested != 10 {
		t.Errorf("run = %+v", run)
	}
	if !run.FinishedAt.IsZero() {
		t.Errorf("FinishedAt = %v on a running run", run.FinishedAt)
	}

	if err := s.CompleteImportRun(ctx, id, `{"imported": 3}`); err != nil {
		t.Fatalf("CompleteImportRun() error = %v", err)
	}
	run, err = s.GetImportRun(ctx, id)
	if err != nil {
		t.Fatalf("GetImportRun() error = %v", err)
	}
	if run.Status != RunStatusCompleted || run.SummaryJSON != `{"imported": 3}` {
		t.Errorf("completed run = %+v", run)
	}
	if run.FinishedAt.IsZero() {
		t.Error("FinishedAt not stamped on completion")
	}
}

func TestFailImportRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateImportRun(ctx, "@channel", 5)
	if err != nil {
		t.Fatalf("CreateImportRun() error = %v", err)
	}
	if err := s.FailImportRun(ctx, id, "api quota exceeded"); err != nil {
		t.Fatalf("FailImportRun() error = %v", err)
	}

	run, err := s.GetImportRun(ctx, id)
	if err != nil {
		t.Fatalf("GetImportRun() error = %v", err)
	}
	if run.Status != RunStatusFailed || run.Error != "api quota exceeded" {
		t.Errorf("failed run = %+v", run)
	}

	if err := s.FailImportRun(ctx, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FailImportRun(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetImportRun(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetImportRun(missing) error = %v, want ErrNotFound", err)
	}
}
