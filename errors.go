package ytingest

import (
	"ytingest/storage"
	"ytingest/youtube"
)

// Error types and sentinels re-exported for library users.
//
// Use errors.Is() against the sentinels:
//
//	if errors.Is(err, ytingest.ErrQuotaExceeded) {
//		// back off until the daily quota resets
//	}
//
// Use errors.As() for the typed wrappers:
//
//	var perr *ytingest.ProviderError
//	if errors.As(err, &perr) {
//		fmt.Printf("%s failed for %s: %v\n", perr.Op, perr.ID, perr.Err)
//	}

// Type aliases for convenient error handling.
type (
	// ProviderError wraps YouTube provider failures.
	ProviderError = youtube.ProviderError
	// StorageError wraps persistence failures.
	StorageError = storage.StorageError
)

// Sentinel errors exported from sub-packages.
var (
	// ErrNotFound indicates the video does not exist at the provider.
	ErrNotFound = youtube.ErrNotFound
	// ErrChannelNotFound indicates the channel could not be resolved.
	ErrChannelNotFound = youtube.ErrChannelNotFound
	// ErrQuotaExceeded indicates the Data API daily quota is exhausted.
	ErrQuotaExceeded = youtube.ErrQuotaExceeded
	// ErrUnauthorized indicates missing or invalid API credentials.
	ErrUnauthorized = youtube.ErrUnauthorized
	// ErrNoCaptions indicates the video has no caption track.
	ErrNoCaptions = youtube.ErrNoCaptions
	// ErrRateLimited indicates provider-side blocking.
	ErrRateLimited = youtube.ErrRateLimited

	// ErrStorageNotFound indicates an entity missing from the store.
	ErrStorageNotFound = storage.ErrNotFound
)
