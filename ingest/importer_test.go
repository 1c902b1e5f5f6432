package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"ytingest/storage"
	"ytingest/throttle"
	"ytingest/transcript"
	"ytingest/youtube"
)

// fakeProvider serves scripted listing pages and metadata.
type fakeProvider struct {
	pages      []youtube.VideoPage
	listErr    error
	batchErr   error
	detailsErr error
	details    map[string]*youtube.VideoDetails
	listCalls  int
}

func (p *fakeProvider) ListChannelVideos(ctx context.Context, channelRef, pageToken string) (*youtube.VideoPage, error) {
	p.listCalls++
	if p.listErr != nil {
		return nil, p.listErr
	}
	idx := 0
	if pageToken != "" {
		fmt.Sscanf(pageToken, "page-%d", &idx)
	}
	if idx >= len(p.pages) {
		return &youtube.VideoPage{}, nil
	}
	page := p.pages[idx]
	return &page, nil
}

func (p *fakeProvider) VideoDetailsBatch(ctx context.Context, videoIDs []string) ([]youtube.VideoDetails, error) {
	if p.batchErr != nil {
		return nil, p.batchErr
	}
	var out []youtube.VideoDetails
	for _, id := range videoIDs {
		if d, ok := p.details[id]; ok {
			out = append(out, *d)
		} else {
			out = append(out, youtube.VideoDetails{ID: id, Title: "video " + id, ChannelID: "UCchan", ChannelTitle: "Chan"})
		}
	}
	return out, nil
}

func (p *fakeProvider) VideoDetails(ctx context.Context, videoID string) (*youtube.VideoDetails, error) {
	if p.detailsErr != nil {
		return nil, p.detailsErr
	}
	if d, ok := p.details[videoID]; ok {
		cp := *d
		return &cp, nil
	}
	return &youtube.VideoDetails{ID: videoID, Title: "video " + videoID, ChannelID: "UCchan"}, nil
}

// fakeExtractor returns scripted results and records the order of calls.
type fakeExtractor struct {
	results map[string]transcript.Result
	calls   []string
	meta    map[string]*youtube.VideoDetails
}

func (e *fakeExtractor) Extract(ctx context.Context, videoID string, meta *youtube.VideoDetails) transcript.Result {
	e.calls = append(e.calls, videoID)
	if e.meta == nil {
		e.meta = make(map[string]*youtube.VideoDetails)
	}
	e.meta[videoID] = meta
	if res, ok := e.results[videoID]; ok {
		return res
	}
	return realResult(videoID)
}

func realResult(videoID string) transcript.Result {
	return transcript.Result{
		VideoID:        videoID,
		Classification: transcript.Real,
		Method:         transcript.MethodDirect,
		Text:           "a perfectly ordinary transcript long enough to be usable",
	}
}

func rateLimitedResult(videoID string) transcript.Result {
	return transcript.Result{
		VideoID:        videoID,
		Classification: transcript.ContentExtract,
		Method:         transcript.MethodMetadata,
		Text:           "Video: " + videoID,
		Err:            "direct: rate limited",
		RateLimited:    true,
	}
}

// fakeSink is an in-memory Sink with per-ID failure injection.
type fakeSink struct {
	mu           sync.Mutex
	videos       map[string]*storage.Video
	transcripts  map[string]*storage.Transcript
	statuses     map[string]string
	failSave     map[string]error
	channelCalls int
}

func newFakeSink() *fakeSink {
	return &fakeSink{
		videos:      make(map[string]*storage.Video),
		transcripts: make(map[string]*storage.Transcript),
		statuses:    make(map[string]string),
		failSave:    make(map[string]error),
	}
}

func (s *fakeSink) UpsertChannel(ctx context.Context, youtubeID, title string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelCalls++
	return "chan-internal", nil
}

func (s *fakeSink) SaveVideo(ctx context.Context, v *storage.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failSave[v.YouTubeID]; ok {
		return err
	}
	cp := *v
	s.videos[v.YouTubeID] = &cp
	s.statuses[v.YouTubeID] = v.ImportStatus
	return nil
}

func (s *fakeSink) SaveTranscript(ctx context.Context, t *storage.Transcript) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.transcripts[t.VideoID] = &cp
	return nil
}

func (s *fakeSink) MarkImportStatus(ctx context.Context, youtubeID, status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.videos[youtubeID]; !ok {
		return &storage.StorageError{Op: "update", Entity: "video", Err: storage.ErrNotFound}
	}
	s.statuses[youtubeID] = status
	return nil
}

func (s *fakeSink) GetTranscript(ctx context.Context, videoID string) (*storage.Transcript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transcripts[videoID]
	if !ok {
		return nil, &storage.StorageError{Op: "get", Entity: "transcript", Err: storage.ErrNotFound}
	}
	cp := *t
	return &cp, nil
}

func (s *fakeSink) GetVideo(ctx context.Context, youtubeID string) (*storage.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[youtubeID]
	if !ok {
		return nil, &storage.StorageError{Op: "get", Entity: "video", Err: storage.ErrNotFound}
	}
	cp := *v
	return &cp, nil
}

func (s *fakeSink) status(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statuses[id]
}

// recordedSleep collects sleeps without waiting.
type recordedSleep struct {
	mu    sync.Mutex
	slept []time.Duration
}

func (r *recordedSleep) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slept = append(r.slept, d)
	return nil
}

func (r *recordedSleep) contains(d time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.slept {
		if s == d {
			return true
		}
	}
	return false
}

func testThrottleConfig() throttle.Config {
	return throttle.Config{
		BaseDelay:        time.Second,
		FailurePenalty:   time.Second,
		MaxDelay:         10 * time.Second,
		BatchSize:        2,
		BatchDelay:       5 * time.Second,
		FailureThreshold: 5,
		Cooldown:         77 * time.Second,
		// RequestFloor off; tests drive pacing through the sleep recorder.
	}
}

func refs(ids ...string) []youtube.VideoRef {
	out := make([]youtube.VideoRef, len(ids))
	for i, id := range ids {
		out[i] = youtube.VideoRef{ID: id}
	}
	return out
}

func newTestImporter(p *fakeProvider, e *fakeExtractor, s *fakeSink) (*Importer, *recordedSleep) {
	rec := &recordedSleep{}
	return NewImporterWithSleep(p, e, s, testThrottleConfig(), rec.sleep), rec
}

func TestImportChannelSkipsDuplicates(t *testing.T) {
	provider := &fakeProvider{pages: []youtube.VideoPage{{Items: refs("a", "b", "c", "d")}}}
	extractor := &fakeExtractor{}
	sink := newFakeSink()
	imp, _ := newTestImporter(provider, extractor, sink)

	summary, err := imp.ImportChannel(context.Background(), "@chan", 2, []string{"a", "c"})
	if err != nil {
		t.Fatalf("ImportChannel() error = %v", err)
	}

	if summary.Imported != 2 {
		t.Errorf("Imported = %d, want 2", summary.Imported)
	}
	if summary.SkippedDuplicates != 2 {
		// Both known IDs are seen before the quota fills at d.
		t.Errorf("SkippedDuplicates = %d, want 2", summary.SkippedDuplicates)
	}
	if summary.TranscriptSuccesses != 2 {
		t.Errorf("TranscriptSuccesses = %d, want 2", summary.TranscriptSuccesses)
	}
	for _, id := range []string{"b", "d"} {
		if sink.status(id) != storage.StatusCompleted {
			t.Errorf("status[%s] = %q, want %q", id, sink.status(id), storage.StatusCompleted)
		}
	}
	if _, ok := sink.videos["a"]; ok {
		t.Error("duplicate a was re-imported")
	}
}

func TestImportChannelClampsRequest(t *testing.T) {
	provider := &fakeProvider{pages: []youtube.VideoPage{{Items: refs("a")}}}
	imp, _ := newTestImporter(provider, &fakeExtractor{}, newFakeSink())

	summary, err := imp.ImportChannel(context.Background(), "@chan", 500, nil)
	if err != nil {
		t.Fatalf("ImportChannel() error = %v", err)
	}
	if summary.Requested != MaxRequestedVideos {
		t.Errorf("Requested = %d, want clamp to %d", summary.Requested, MaxRequestedVideos)
	}

	summary, err = imp.ImportChannel(context.Background(), "@chan", -3, nil)
	if err != nil {
		t.Fatalf("ImportChannel() error = %v", err)
	}
	if summary.Requested != 1 {
		t.Errorf("Requested = %d, want floor of 1", summary.Requested)
	}
}

func TestImportChannelNoNewVideos(t *testing.T) {
	provider := &fakeProvider{pages: []youtube.VideoPage{{Items: refs("a", "b")}}}
	extractor := &fakeExtractor{}
	imp, rec := newTestImporter(provider, extractor, newFakeSink())

	summary, err := imp.ImportChannel(context.Background(), "@chan", 5, []string{"a", "b"})
	if err != nil {
		t.Fatalf("ImportChannel() error = %v", err)
	}
	if summary.Imported != 0 || summary.SkippedDuplicates != 2 {
		t.Errorf("summary = %+v, want 0 imported and 2 skipped", summary)
	}
	if !summary.ListingExhausted {
		t.Error("ListingExhausted = false when the listing ended early")
	}
	if len(extractor.calls) != 0 {
		t.Errorf("extractor called %d times for an empty run", len(extractor.calls))
	}
	if len(rec.slept) != 0 {
		t.Errorf("slept %v during an empty run", rec.slept)
	}
}

func TestImportChannelListingExhausted(t *testing.T) {
	provider := &fakeProvider{pages: []youtube.VideoPage{
		{Items: refs("a", "b"), NextPageToken: "page-1"},
		{Items: refs("c")},
	}}
	imp, _ := newTestImporter(provider, &fakeExtractor{}, newFakeSink())

	summary, err := imp.ImportChannel(context.Background(), "@chan", 10, nil)
	if err != nil {
		t.Fatalf("ImportChannel() error = %v", err)
	}
	if summary.Imported != 3 {
		t.Errorf("Imported = %d, want 3", summary.Imported)
	}
	if !summary.ListingExhausted {
		t.Error("ListingExhausted = false though the listing ran out")
	}
}

func TestImportChannelBoundedPaging(t *testing.T) {
	// Every page is full of known IDs and advertises another page; the
	// discovery loop must still terminate.
	var pages []youtube.VideoPage
	for i := 0; i < 30; i++ {
		pages = append(pages, youtube.VideoPage{
			Items:         refs("known"),
			NextPageToken: fmt.Sprintf("page-%d", i+1),
		})
	}
	provider := &fakeProvider{pages: pages}
	imp, _ := newTestImporter(provider, &fakeExtractor{}, newFakeSink())

	summary, err := imp.ImportChannel(context.Background(), "@chan", 5, []string{"known"})
	if err != nil {
		t.Fatalf("ImportChannel() error = %v", err)
	}
	if summary.Imported != 0 {
		t.Errorf("Imported = %d, want 0", summary.Imported)
	}
	if provider.listCalls != maxPageIterations {
		t.Errorf("listed %d pages, want the bound of %d", provider.listCalls, maxPageIterations)
	}
}

func TestImportChannelListingError(t *testing.T) {
	provider := &fakeProvider{listErr: youtube.ErrChannelNotFound}
	imp, _ := newTestImporter(provider, &fakeExtractor{}, newFakeSink())

	if _, err := imp.ImportChannel(context.Background(), "@chan", 5, nil); !errors.Is(err, youtube.ErrChannelNotFound) {
		t.Errorf("ImportChannel() error = %v, want channel-not-found", err)
	}
}

func TestImportChannelBatchMetadataError(t *testing.T) {
	provider := &fakeProvider{
		pages:    []youtube.VideoPage{{Items: refs("a")}},
		batchErr: youtube.ErrQuotaExceeded,
	}
	imp, _ := newTestImporter(provider, &fakeExtractor{}, newFakeSink())

	if _, err := imp.ImportChannel(context.Background(), "@chan", 5, nil); !errors.Is(err, youtube.ErrQuotaExceeded) {
		t.Errorf("ImportChannel() error = %v, want quota error", err)
	}
}

func TestImportChannelIsolatesVideoFailures(t *testing.T) {
	provider := &fakeProvider{pages: []youtube.VideoPage{{Items: refs("a", "b", "c")}}}
	extractor := &fakeExtractor{}
	sink := newFakeSink()
	sink.failSave["b"] = errors.New("disk full")
	imp, _ := newTestImporter(provider, extractor, sink)

	summary, err := imp.ImportChannel(context.Background(), "@chan", 3, nil)
	if err != nil {
		t.Fatalf("ImportChannel() error = %v", err)
	}
	if summary.Imported != 2 {
		t.Errorf("Imported = %d, want 2 (b failed to persist)", summary.Imported)
	}
	if len(summary.VideoErrors) != 1 || !strings.Contains(summary.VideoErrors[0], "b: ") {
		t.Errorf("VideoErrors = %v, want one entry for b", summary.VideoErrors)
	}
	// The broken video must not reach extraction.
	for _, id := range extractor.calls {
		if id == "b" {
			t.Error("extractor called for the video whose metadata failed to persist")
		}
	}
}

func TestImportChannelTerminalStatuses(t *testing.T) {
	provider := &fakeProvider{pages: []youtube.VideoPage{{Items: refs("real", "extract", "failed")}}}
	extractor := &fakeExtractor{results: map[string]transcript.Result{
		"real": realResult("real"),
		"extract": {
			VideoID:        "extract",
			Classification: transcript.ContentExtract,
			Method:         transcript.MethodMetadata,
			Text:           "Video: extract",
			Err:            "direct: no captions",
		},
		"failed": {
			VideoID:        "failed",
			Classification: transcript.Failed,
			Err:            "direct: no captions available",
		},
	}}
	sink := newFakeSink()
	imp, _ := newTestImporter(provider, extractor, sink)

	summary, err := imp.ImportChannel(context.Background(), "@chan", 3, nil)
	if err != nil {
		t.Fatalf("ImportChannel() error = %v", err)
	}

	want := map[string]string{
		"real":    storage.StatusCompleted,
		"extract": storage.StatusContentOnly,
		"failed":  storage.StatusWithErrors,
	}
	for id, status := range want {
		if got := sink.status(id); got != status {
			t.Errorf("status[%s] = %q, want %q", id, got, status)
		}
	}
	if summary.TranscriptSuccesses != 1 || summary.ContentExtracts != 1 || summary.TranscriptErrors != 1 {
		t.Errorf("summary counters = %+v", summary)
	}

	// The stored transcript carries the classification verbatim.
	tr, err := sink.GetTranscript(context.Background(), "extract")
	if err != nil {
		t.Fatalf("GetTranscript() error = %v", err)
	}
	if tr.Classification != string(transcript.ContentExtract) || tr.Method != string(transcript.MethodMetadata) {
		t.Errorf("stored transcript = %+v", tr)
	}
}

func TestImportChannelBreakerTripAndRecovery(t *testing.T) {
	ids := []string{"v1", "v2", "v3", "v4", "v5", "v6"}
	provider := &fakeProvider{pages: []youtube.VideoPage{{Items: refs(ids...)}}}
	results := make(map[string]transcript.Result, len(ids))
	for _, id := range ids {
		results[id] = rateLimitedResult(id)
	}
	extractor := &fakeExtractor{results: results}
	imp, rec := newTestImporter(provider, extractor, newFakeSink())

	summary, err := imp.ImportChannel(context.Background(), "@chan", 6, nil)
	if err != nil {
		t.Fatalf("ImportChannel() error = %v", err)
	}

	if !summary.CircuitBreakerTripped {
		t.Error("CircuitBreakerTripped = false after 5 consecutive rate limits")
	}
	// The sixth video still runs: the breaker waits out its cooldown and
	// self-heals instead of abandoning the run.
	if len(extractor.calls) != 6 {
		t.Errorf("extractor ran %d times, want all 6", len(extractor.calls))
	}
	if !rec.contains(77 * time.Second) {
		t.Errorf("no cooldown sleep recorded: %v", rec.slept)
	}
	if summary.ContentExtracts != 6 {
		t.Errorf("ContentExtracts = %d, want 6 (degraded but stored)", summary.ContentExtracts)
	}
}

func TestImportChannelBatchPacing(t *testing.T) {
	provider := &fakeProvider{pages: []youtube.VideoPage{{Items: refs("a", "b", "c", "d")}}}
	imp, rec := newTestImporter(provider, &fakeExtractor{}, newFakeSink())

	if _, err := imp.ImportChannel(context.Background(), "@chan", 4, nil); err != nil {
		t.Fatalf("ImportChannel() error = %v", err)
	}

	// Batch size 2, four videos: one inter-batch pause after the second,
	// none after the last.
	batchPauses := 0
	rec.mu.Lock()
	for _, d := range rec.slept {
		if d == 5*time.Second {
			batchPauses++
		}
	}
	rec.mu.Unlock()
	if batchPauses != 1 {
		t.Errorf("recorded %d inter-batch pauses, want 1 (sleeps: %v)", batchPauses, rec.slept)
	}
}
