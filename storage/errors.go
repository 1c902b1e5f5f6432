package storage

import "errors"

// Sentinel errors for storage operations.
var (
	// ErrNotFound indicates the entity does not exist.
	ErrNotFound = errors.New("storage: not found")
)

// StorageError wraps storage failures with operation context.
// Use errors.As() to extract it:
//
//	var serr *storage.StorageError
//	if errors.As(err, &serr) {
//		fmt.Printf("%s on %s failed: %v\n", serr.Op, serr.Entity, serr.Err)
//	}
type StorageError struct {
	// Op is the operation that failed ("save", "get", "update").
	Op string
	// Entity is the entity type involved ("video", "transcript", "run").
	Entity string
	// Err is the underlying error.
	Err error
}

func (e *StorageError) Error() string {
	return "storage: " + e.Op + " " + e.Entity + ": " + e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is() and errors.As().
func (e *StorageError) Unwrap() error { return e.Err }
