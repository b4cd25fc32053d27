package models

import "fmt"

// ParseError means an ingested document could not be read as JSON or yielded no item list.
// The collection is left untouched when one is returned.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("parse error: %v", e.Err)
	}
	return fmt.Sprintf("parse error in %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// PersistenceError is a failed local cache read or write. It is logged, never fatal.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("local cache %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// SyncUploadError reports a chunked upload that stopped part way. Chunks committed
// before the failure stay committed.
type SyncUploadError struct {
	Committed int
	Total     int
	Chunk     int
	Chunks    int
	Err       error
}

func (e *SyncUploadError) Error() string {
	return fmt.Sprintf("sync upload failed on chunk %d/%d (%d of %d records committed): %v",
		e.Chunk+1, e.Chunks, e.Committed, e.Total, e.Err)
}

func (e *SyncUploadError) Unwrap() error { return e.Err }

type SyncUpdateError struct {
	ID    string
	Field string
	Err   error
}

func (e *SyncUpdateError) Error() string {
	return fmt.Sprintf("sync update of %s on %q failed: %v", e.Field, e.ID, e.Err)
}

func (e *SyncUpdateError) Unwrap() error { return e.Err }

// AuthError is a failed or cancelled sign-in. The current mode is kept.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }
