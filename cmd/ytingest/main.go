package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"ytingest/config"
	"ytingest/ingest"
	"ytingest/storage"
	"ytingest/transcript"
	"ytingest/youtube"
)

func main() {
	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "import":
		cmdImport(args)
	case "retry":
		cmdRetry(args)
	case "refresh-stats":
		cmdRefreshStats(args)
	case "status":
		cmdStatus(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `ytingest - YouTube channel video and transcript importer

Usage:
  ytingest import [flags] <channel-ref>       Import new videos from a channel
  ytingest retry [flags] <video-id>...        Re-run transcript extraction
  ytingest refresh-stats [flags]              Refresh stale video statistics
  ytingest status <run-id>                    Show the state of an import run
  ytingest help                               Show this help message

Examples:
  ytingest import -n 10 @AdventureChannel            # Import up to 10 new videos
  ytingest import -n 5 UCxxxxxxxxxxxxxxxxxxxxxx      # Channel ID works too
  ytingest retry dQw4w9WgXcQ abc123def45             # Retry failed transcripts
  ytingest retry -mode all dQw4w9WgXcQ               # Force re-extraction
  ytingest refresh-stats -max 200                    # Refresh up to 200 videos
  ytingest status 6f1c9c1e-...                       # Poll a background run

For help on a specific command: ytingest <command> -h
`)
}

// pipeline bundles the wired collaborators the commands share.
type pipeline struct {
	cfg      *config.Config
	store    *storage.Store
	provider *youtube.DataAPIProvider
	importer *ingest.Importer
}

// buildPipeline loads config, opens the store, and wires the provider,
// extractor, and importer. needAPI commands fail fast without a key.
func buildPipeline(ctx context.Context, needAPI bool) (*pipeline, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	store, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	p := &pipeline{cfg: cfg, store: store}
	if !needAPI {
		return p, nil
	}

	provider, err := youtube.NewDataAPIProvider(ctx, cfg.APIKey)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create provider: %w", err)
	}
	p.provider = provider

	captions := youtube.NewCaptionClient(youtube.NewPlayerSource(), youtube.NewTimedtextClient(), provider)
	extractor := transcript.NewExtractor(captions, captions, transcript.Config{
		Languages:     cfg.Languages,
		MinTextLength: cfg.MinTranscriptLength,
	})
	p.importer = ingest.NewImporter(provider, extractor, store, cfg.Throttle)
	return p, nil
}

func cmdImport(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	count := fs.Int("n", 10, "How many new videos to import (1-50)")
	channelID := fs.String("channel", "", "YouTube channel ID for dedup when the ref is a handle (defaults to the ref)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ytingest import [flags] <channel-ref>\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	argv := fs.Args()
	if len(argv) == 0 {
		fmt.Fprintf(os.Stderr, "Error: missing channel-ref\n")
		fs.Usage()
		os.Exit(1)
	}
	channelRef := argv[0]
	dedupChannel := *channelID
	if dedupChannel == "" {
		dedupChannel = channelRef
	}

	ctx := context.Background()
	p, err := buildPipeline(ctx, true)
	if err != nil {
		fatal(err)
	}
	defer p.store.Close()

	runner := ingest.NewRunner(p.importer, p.store)
	runID, err := runner.StartImport(ctx, channelRef, dedupChannel, *count)
	if err != nil {
		fatal(fmt.Errorf("start import: %w", err))
	}
	fmt.Fprintf(os.Stderr, "Import run %s started for %s\n", runID, channelRef)

	// Poll the persisted run row until it reaches a terminal state. The
	// run itself is detached; killing the CLI mid-poll does not stop it.
	for {
		time.Sleep(2 * time.Second)
		run, err := runner.RunStatus(ctx, runID)
		if err != nil {
			fatal(fmt.Errorf("poll run: %w", err))
		}
		if run.Status == storage.RunStatusRunning {
			continue
		}
		printRun(run)
		if run.Status == storage.RunStatusFailed {
			os.Exit(1)
		}
		return
	}
}

func cmdRetry(args []string) {
	fs := flag.NewFlagSet("retry", flag.ExitOnError)
	modeStr := fs.String("mode", "failed_only", "Retry mode: failed_only or all")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ytingest retry [flags] <video-id>...\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	videoIDs := fs.Args()
	if len(videoIDs) == 0 {
		fmt.Fprintf(os.Stderr, "Error: missing video-id\n")
		fs.Usage()
		os.Exit(1)
	}

	ctx := context.Background()
	p, err := buildPipeline(ctx, true)
	if err != nil {
		fatal(err)
	}
	defer p.store.Close()

	fmt.Fprintf(os.Stderr, "Retrying transcripts for %d videos (%s)...\n", len(videoIDs), *modeStr)
	summary, err := p.importer.RetryTranscripts(ctx, videoIDs, ingest.RetryMode(*modeStr))
	if err != nil {
		fatal(err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Requested\t%d\n", summary.Requested)
	fmt.Fprintf(w, "Retried\t%d\n", summary.Retried)
	fmt.Fprintf(w, "Real transcripts\t%d\n", summary.TranscriptSuccesses)
	fmt.Fprintf(w, "Content extracts\t%d\n", summary.ContentExtracts)
	fmt.Fprintf(w, "Errors\t%d\n", summary.TranscriptErrors)
	fmt.Fprintf(w, "Skipped\t%d\n", summary.SkippedCount)
	fmt.Fprintf(w, "Breaker tripped\t%v\n", summary.CircuitBreakerTripped)
	w.Flush()
	printVideoErrors(summary.VideoErrors)
}

func cmdRefreshStats(args []string) {
	fs := flag.NewFlagSet("refresh-stats", flag.ExitOnError)
	maxVideos := fs.Int("max", 200, "Maximum videos to refresh")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ytingest refresh-stats [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	ctx := context.Background()
	p, err := buildPipeline(ctx, true)
	if err != nil {
		fatal(err)
	}
	defer p.store.Close()

	refresher := ingest.NewStatsRefresher(p.provider, p.store, ingest.StatsConfig{
		MaxAge:     p.cfg.StatsMaxAge,
		ChunkDelay: p.cfg.StatsChunkDelay,
	})
	updated, err := refresher.RefreshDue(ctx, *maxVideos)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("Refreshed statistics for %d videos\n", updated)
}

func cmdStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ytingest status <run-id>\n")
	}
	fs.Parse(args)

	argv := fs.Args()
	if len(argv) == 0 {
		fmt.Fprintf(os.Stderr, "Error: missing run-id\n")
		fs.Usage()
		os.Exit(1)
	}

	ctx := context.Background()
	p, err := buildPipeline(ctx, false)
	if err != nil {
		fatal(err)
	}
	defer p.store.Close()

	run, err := p.store.GetImportRun(ctx, argv[0])
	if err != nil {
		fatal(err)
	}
	printRun(run)
}

func printRun(run *storage.ImportRun) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Run\t%s\n", run.ID)
	fmt.Fprintf(w, "Channel\t%s\n", run.ChannelRef)
	fmt.Fprintf(w, "Status\t%s\n", run.Status)
	fmt.Fprintf(w, "Started\t%s\n", run.StartedAt.Format(time.RFC3339))
	if !run.FinishedAt.IsZero() {
		fmt.Fprintf(w, "Finished\t%s\n", run.FinishedAt.Format(time.RFC3339))
	}
	if run.Error != "" {
		fmt.Fprintf(w, "Error\t%s\n", run.Error)
	}
	w.Flush()

	if run.SummaryJSON == "" {
		return
	}
	var summary ingest.ImportSummary
	if err := json.Unmarshal([]byte(run.SummaryJSON), &summary); err != nil {
		fmt.Printf("Summary: %s\n", run.SummaryJSON)
		return
	}
	fmt.Println()
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Requested\t%d\n", summary.Requested)
	fmt.Fprintf(w, "Imported\t%d\n", summary.Imported)
	fmt.Fprintf(w, "Real transcripts\t%d\n", summary.TranscriptSuccesses)
	fmt.Fprintf(w, "Content extracts\t%d\n", summary.ContentExtracts)
	fmt.Fprintf(w, "Errors\t%d\n", summary.TranscriptErrors)
	fmt.Fprintf(w, "Duplicates skipped\t%d\n", summary.SkippedDuplicates)
	fmt.Fprintf(w, "Listing exhausted\t%v\n", summary.ListingExhausted)
	fmt.Fprintf(w, "Breaker tripped\t%v\n", summary.CircuitBreakerTripped)
	w.Flush()
	printVideoErrors(summary.VideoErrors)
}

func printVideoErrors(errs []string) {
	if len(errs) == 0 {
		return
	}
	fmt.Fprintf(os.Stderr, "\nPer-video errors:\n")
	for _, e := range errs {
		fmt.Fprintf(os.Stderr, "  %s\n", e)
	}
}

func fatal(err error) {
	msg := err.Error()
	if strings.Contains(msg, "API key") || strings.Contains(msg, "unauthorized") {
		fmt.Fprintf(os.Stderr, "Error: %v\nSet YTINGEST_API_KEY (or YOUTUBE_API_KEY) and retry.\n", err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(1)
}
