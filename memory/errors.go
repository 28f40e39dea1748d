package memory

import "errors"

var (
	// ErrModelUnavailable means the embedding model could not be loaded.
	// Open fails with it.
	ErrModelUnavailable = errors.New("embedding model unavailable")

	// ErrInvalidScope means a scope id is empty or contains characters
	// other than ASCII letters, digits, '_' and '-'. Open fails with it.
	ErrInvalidScope = errors.New("invalid scope id")

	// ErrIndexCorrupt means the files on disk could not be loaded. Open
	// recovers from it by starting with an empty index.
	ErrIndexCorrupt = errors.New("memory index corrupt")

	// ErrEmbedFailure means a text could not be embedded.
	ErrEmbedFailure = errors.New("embedding failed")

	// ErrIndexWrite means a vector could not be added to the index.
	ErrIndexWrite = errors.New("index write failed")

	// ErrPersist means a save did not complete. The in-memory state is
	// unaffected and the next save retries.
	ErrPersist = errors.New("persist memory store")
)
