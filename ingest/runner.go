package ingest

import (
	"context"
	"encoding/json"
	"log"

	"ytingest/storage"
)

// RunStore is the storage slice the runner needs for run bookkeeping.
// *storage.Store satisfies it.
type RunStore interface {
	CreateImportRun(ctx context.Context, channelRef string, requested int) (string, error)
	CompleteImportRun(ctx context.Context, id, summaryJSON string) error
	FailImportRun(ctx context.Context, id, errMsg string) error
	GetImportRun(ctx context.Context, id string) (*storage.ImportRun, error)
	VideoIDsByChannel(ctx context.Context, channelID string) ([]string, error)
}

// Runner starts imports in the background so the triggering call can
// return immediately. The run outlives the caller by design: it is
// detached from the request context and proceeds to completion or
// process exit. Results are polled from the persisted run row; there is
// no push channel.
type Runner struct {
	importer *Importer
	runs     RunStore
}

// NewRunner creates a background import runner.
func NewRunner(importer *Importer, runs RunStore) *Runner {
	return &Runner{importer: importer, runs: runs}
}

// StartImport records a run row, launches the import in the background,
// and returns the run ID for polling. channelID is the resolved channel
// whose stored videos form the dedup set.
func (r *Runner) StartImport(ctx context.Context, channelRef, channelID string, desiredCount int) (string, error) {
	existing, err := r.runs.VideoIDsByChannel(ctx, channelID)
	if err != nil {
		return "", err
	}

	runID, err := r.runs.CreateImportRun(ctx, channelRef, desiredCount)
	if err != nil {
		return "", err
	}

	go r.execute(runID, channelRef, desiredCount, existing)
	return runID, nil
}

// execute runs the import detached from the triggering request.
func (r *Runner) execute(runID, channelRef string, desiredCount int, existing []string) {
	ctx := context.Background()

	log.Printf("ingest: run %s started for %s (requested %d)", runID, channelRef, desiredCount)
	summary, err := r.importer.ImportChannel(ctx, channelRef, desiredCount, existing)
	if err != nil {
		log.Printf("ingest: run %s failed: %v", runID, err)
		if serr := r.runs.FailImportRun(ctx, runID, err.Error()); serr != nil {
			log.Printf("ingest: record failure for run %s failed: %v", runID, serr)
		}
		return
	}

	payload, err := json.Marshal(summary)
	if err != nil {
		// Cannot happen for a plain struct, but don't lose the run row.
		payload = []byte("{}")
	}
	if serr := r.runs.CompleteImportRun(ctx, runID, string(payload)); serr != nil {
		log.Printf("ingest: record completion for run %s failed: %v", runID, serr)
	}
	log.Printf("ingest: run %s completed: imported=%d real=%d extracts=%d errors=%d skipped=%d tripped=%v",
		runID, summary.Imported, summary.TranscriptSuccesses, summary.ContentExtracts,
		summary.TranscriptErrors, summary.SkippedDuplicates, summary.CircuitBreakerTripped)
}

// RunStatus fetches the persisted state of a run for polling.
func (r *Runner) RunStatus(ctx context.Context, runID string) (*storage.ImportRun, error) {
	return r.runs.GetImportRun(ctx, runID)
}
