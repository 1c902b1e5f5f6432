// Package ytingest imports YouTube channel videos and their transcripts
// into a local store, for consumption by a content site's route layer.
//
// The pipeline discovers new videos on a channel, persists their
// metadata, and attempts transcript extraction through an ordered chain
// of strategies (direct caption fetch, language variants, auto-generated
// captions, track listing, metadata fallback), under rate-limit pacing
// and a self-healing circuit breaker. A separate refresher keeps
// view/like/comment counts current.
//
// Packages:
//
//   - youtube: Data API provider, caption fetchers, duration/kind helpers
//   - transcript: the strategy-ordered extractor and text cleaning
//   - throttle: attempt pacing and the circuit breaker
//   - ingest: the import orchestrator, retry pass, stats refresher,
//     and background run bookkeeping
//   - storage: SQLite persistence for videos, transcripts, and runs
//   - config: configuration loading and validation
//
// Typical use:
//
//	provider, err := youtube.NewDataAPIProvider(ctx, cfg.APIKey)
//	...
//	captions := youtube.NewCaptionClient(youtube.NewPlayerSource(), youtube.NewTimedtextClient(), provider)
//	extractor := transcript.NewExtractor(captions, captions, transcript.DefaultConfig())
//	importer := ingest.NewImporter(provider, extractor, store, cfg.Throttle)
//	summary, err := importer.ImportChannel(ctx, channelRef, 10, existingIDs)
package ytingest
