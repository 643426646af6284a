// Package operator defines the primitive storage contract every backend
// implements, together with the shared error taxonomy.
//
// An Operator is a backend-bound handle wrapping one configured
// connection/session to one backend (an S3 bucket, a local directory, an
// embedded key/value database, an in-memory map). The dispatch layer above
// never talks to a backend any other way: it resolves a URL to exactly one
// (Operator, key) pair and then issues the primitives below.
//
// Key Conventions:
//
// Keys are slash-separated, UTF-8, with no leading slash. A key ending in
// "/" denotes a directory; the empty key "" denotes the backend root, which
// always stats as a directory. Backends without a native directory concept
// synthesize directories from markers and shared key prefixes, so Stat on a
// prefix that has children succeeds even if no marker object exists.
//
// Error Mapping:
//
// Every primitive maps backend-native failures to the sentinel errors in
// errors.go at this boundary. No backend-specific error type ever crosses
// above an Operator; callers test with errors.Is.
//
// Thread Safety:
//
// Implementations must be safe for concurrent use by multiple goroutines.
// Concurrent writes to the same key are last-write-wins.
package operator

import (
	"context"
	"time"
)

// Metadata describes one stored object or synthesized directory.
type Metadata struct {
	// Key is the backend key the metadata belongs to. Directory entries
	// carry a trailing slash.
	Key string

	// Size is the object size in bytes. Zero for directories.
	Size int64

	// IsDir reports whether the entry is a directory (real or synthesized).
	IsDir bool

	// Modified is the backend's last-modified time. May be zero for
	// synthesized directories.
	Modified time.Time

	// ETag is the backend's content fingerprint, if the backend has one.
	ETag string
}

// Operator is the primitive operation contract implemented by every storage
// backend. All operations are blocking on the calling goroutine; the bridge
// layer decides which goroutine that is.
type Operator interface {
	// Scheme returns the URL scheme this operator serves (e.g. "s3", "mem").
	Scheme() string

	// Stat returns metadata for key. A key ending in "/" (or the empty
	// root key) stats as a directory when a marker exists or any key is
	// nested under it. Returns ErrNotFound if nothing matches.
	Stat(ctx context.Context, key string) (*Metadata, error)

	// ReadRange reads length bytes starting at offset. A negative length
	// means read to end. Reading past EOF returns the available bytes;
	// a range starting at or beyond EOF returns an empty slice. Returns
	// ErrNotFound if the key does not exist and ErrIsADirectory for
	// directory keys.
	ReadRange(ctx context.Context, key string, offset, length int64) ([]byte, error)

	// Write stores data under key in one shot, replacing any previous
	// object. With append set, data is appended to the existing object
	// (created if absent); backends without native append emulate it with
	// read-modify-write and document the cost.
	Write(ctx context.Context, key string, data []byte, append bool) error

	// OpenWriteStream starts an incremental write session for key. No
	// bytes become visible until Finalize; Abort discards everything
	// written so far. The previous object, if any, stays intact until
	// Finalize succeeds.
	OpenWriteStream(ctx context.Context, key string) (WriteStream, error)

	// List enumerates entries under prefix. Non-recursive listing yields
	// the immediate children (deeper keys collapse into one synthesized
	// directory entry each); recursive listing yields the whole subtree.
	// A prefix with no matches yields an empty iteration, never an error.
	// The iteration is finite and restartable by calling List again; it
	// is not resumable mid-iteration.
	List(ctx context.Context, prefix string, recursive bool) (ObjectIterator, error)

	// Delete removes key. Deleting a key that does not exist succeeds:
	// strictness is a dispatcher concern layered above. Directory keys
	// remove the marker only; recursive removal is composed by the
	// dispatcher from List and Delete.
	Delete(ctx context.Context, key string) error

	// CreateDir creates the directory denoted by key (a trailing slash is
	// implied). For backends with no directory concept this writes a
	// zero-byte marker; it never fails because the directory already
	// exists.
	CreateDir(ctx context.Context, key string) error

	// Rename moves src to dst. Backends without a native rename emulate
	// it as copy-then-delete, which is not atomic: a crash in between can
	// leave both keys or only the source present.
	Rename(ctx context.Context, src, dst string) error

	// Close releases the backend connection/session. The operator must
	// not be used afterwards.
	Close(ctx context.Context) error
}

// Copier is an optional capability for backends with a native server-side
// copy primitive. The dispatcher falls back to read-then-write when an
// operator does not implement it or returns ErrUnsupported.
type Copier interface {
	Copy(ctx context.Context, src, dst string) error
}

// WriteStream is an open incremental write session against one key.
//
// Exactly one of Finalize or Abort must be called; after either, the stream
// is dead. Abandoning a stream without finalizing leaves the backend object
// in its previous state (absent, or the prior complete version).
type WriteStream interface {
	// Write appends p to the pending object. The bytes are not visible
	// at the backend until Finalize.
	Write(ctx context.Context, p []byte) (int, error)

	// Finalize commits the pending bytes, making the object fully visible
	// in one step.
	Finalize(ctx context.Context) error

	// Abort discards the pending bytes. Safe to call after a failed
	// Finalize; idempotent.
	Abort(ctx context.Context) error
}

// ObjectIterator is a lazy, finite iteration over listing results.
type ObjectIterator interface {
	// Next returns the next entry, or ErrIteratorDone when the listing is
	// exhausted.
	Next(ctx context.Context) (*Metadata, error)
}

// sliceIterator serves a listing that was materialized up front. Backends
// whose native listing is already in memory (mem, badger, fs) use it; s3
// iterates pages lazily instead.
type sliceIterator struct {
	entries []*Metadata
	pos     int
}

// NewSliceIterator wraps a pre-built entry slice in an ObjectIterator.
func NewSliceIterator(entries []*Metadata) ObjectIterator {
	return &sliceIterator{entries: entries}
}

func (it *sliceIterator) Next(ctx context.Context) (*Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if it.pos >= len(it.entries) {
		return nil, ErrIteratorDone
	}
	m := it.entries[it.pos]
	it.pos++
	return m, nil
}

// Collect drains an iterator into a slice. Used by the dispatcher and by
// tests; listing stays lazy for callers that want it.
func Collect(ctx context.Context, it ObjectIterator) ([]*Metadata, error) {
	var out []*Metadata
	for {
		m, err := it.Next(ctx)
		if err == ErrIteratorDone {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
}
