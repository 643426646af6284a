// Package memory implements an in-memory storage operator (scheme "mem").
//
// This implementation stores all objects in a map. It is designed for:
//   - Testing and development
//   - Scratch/ephemeral storage
//   - Reference semantics for the operator contract
//
// Characteristics:
//   - Fast: all operations are memory-speed
//   - Volatile: data lost when the operator is closed or the process exits
//   - Thread-safe: protected by an RWMutex; data is copied on read and
//     write so callers never share buffers with the store
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/stratofs/stratofs/pkg/operator"
)

type object struct {
	data     []byte
	modified time.Time
	isDir    bool
}

// Operator is the in-memory operator. The zero value is not usable; create
// instances with New.
type Operator struct {
	mu      sync.RWMutex
	objects map[string]*object
	closed  bool
}

// New creates an empty in-memory operator.
func New(ctx context.Context) (*Operator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Operator{objects: make(map[string]*object)}, nil
}

// Scheme returns "mem".
func (o *Operator) Scheme() string { return "mem" }

func (o *Operator) guard() error {
	if o.closed {
		return fmt.Errorf("memory operator: %w", operator.ErrBackendUnavailable)
	}
	return nil
}

// Stat returns metadata for key. Directory keys stat successfully when a
// marker exists or any stored key is nested under them; the root key always
// stats as a directory.
func (o *Operator) Stat(ctx context.Context, key string) (*operator.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o.mu.RLock()
	defer o.mu.RUnlock()
	if err := o.guard(); err != nil {
		return nil, err
	}

	if key == "" {
		return &operator.Metadata{Key: "", IsDir: true}, nil
	}

	if obj, ok := o.objects[key]; ok {
		return o.metadataLocked(key, obj), nil
	}

	// Directory form of the key: a marker stored under "key/" satisfies a
	// stat of "key" too.
	dir := operator.DirKey(key)
	if obj, ok := o.objects[dir]; ok {
		return o.metadataLocked(dir, obj), nil
	}

	// Synthesized directory: the prefix has children even without a marker.
	for k := range o.objects {
		if k != dir && strings.HasPrefix(k, dir) {
			return &operator.Metadata{Key: dir, IsDir: true}, nil
		}
	}

	return nil, fmt.Errorf("key %q: %w", key, operator.ErrNotFound)
}

// ReadRange reads length bytes at offset; negative length reads to end.
func (o *Operator) ReadRange(ctx context.Context, key string, offset, length int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		return nil, fmt.Errorf("offset %d: %w", offset, operator.ErrInvalidArgument)
	}

	o.mu.RLock()
	defer o.mu.RUnlock()
	if err := o.guard(); err != nil {
		return nil, err
	}

	obj, ok := o.objects[key]
	if !ok {
		return nil, fmt.Errorf("key %q: %w", key, operator.ErrNotFound)
	}
	if obj.isDir {
		return nil, fmt.Errorf("key %q: %w", key, operator.ErrIsADirectory)
	}

	size := int64(len(obj.data))
	if offset >= size {
		return []byte{}, nil
	}
	end := size
	if length >= 0 && offset+length < size {
		end = offset + length
	}

	out := make([]byte, end-offset)
	copy(out, obj.data[offset:end])
	return out, nil
}

// Write stores data under key, replacing or appending to any previous object.
func (o *Operator) Write(ctx context.Context, key string, data []byte, appendTo bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" || strings.HasSuffix(key, "/") {
		return fmt.Errorf("key %q: %w", key, operator.ErrIsADirectory)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.guard(); err != nil {
		return err
	}

	var buf []byte
	if prev, ok := o.objects[key]; ok && appendTo {
		if prev.isDir {
			return fmt.Errorf("key %q: %w", key, operator.ErrIsADirectory)
		}
		buf = make([]byte, 0, len(prev.data)+len(data))
		buf = append(buf, prev.data...)
	} else {
		buf = make([]byte, 0, len(data))
	}
	buf = append(buf, data...)

	o.objects[key] = &object{data: buf, modified: time.Now()}
	return nil
}

// OpenWriteStream starts a buffered write session. Nothing is visible under
// key until Finalize swaps the buffer in as a whole object.
func (o *Operator) OpenWriteStream(ctx context.Context, key string) (operator.WriteStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if key == "" || strings.HasSuffix(key, "/") {
		return nil, fmt.Errorf("key %q: %w", key, operator.ErrIsADirectory)
	}
	return &writeStream{op: o, key: key}, nil
}

// List enumerates entries under prefix, collapsing deeper keys into
// synthesized directory entries for non-recursive listings.
func (o *Operator) List(ctx context.Context, prefix string, recursive bool) (operator.ObjectIterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o.mu.RLock()
	defer o.mu.RUnlock()
	if err := o.guard(); err != nil {
		return nil, err
	}

	all := make([]*operator.Metadata, 0, len(o.objects))
	for k, obj := range o.objects {
		all = append(all, o.metadataLocked(k, obj))
	}

	return operator.NewSliceIterator(operator.BuildListing(prefix, recursive, all)), nil
}

// Delete removes key. Missing keys delete successfully.
func (o *Operator) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.guard(); err != nil {
		return err
	}

	delete(o.objects, key)
	return nil
}

// CreateDir writes a zero-byte directory marker. Idempotent.
func (o *Operator) CreateDir(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := operator.DirKey(key)
	if dir == "" {
		return nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.guard(); err != nil {
		return err
	}

	if _, ok := o.objects[dir]; !ok {
		o.objects[dir] = &object{modified: time.Now(), isDir: true}
	}
	return nil
}

// Rename moves src to dst atomically under the store lock.
func (o *Operator) Rename(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.guard(); err != nil {
		return err
	}

	obj, ok := o.objects[src]
	if !ok {
		return fmt.Errorf("key %q: %w", src, operator.ErrNotFound)
	}
	delete(o.objects, src)
	o.objects[dst] = &object{data: obj.data, modified: time.Now(), isDir: obj.isDir}
	return nil
}

// Copy duplicates src under dst without removing src.
func (o *Operator) Copy(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.guard(); err != nil {
		return err
	}

	obj, ok := o.objects[src]
	if !ok {
		return fmt.Errorf("key %q: %w", src, operator.ErrNotFound)
	}
	data := make([]byte, len(obj.data))
	copy(data, obj.data)
	o.objects[dst] = &object{data: data, modified: time.Now(), isDir: obj.isDir}
	return nil
}

// Close drops all stored objects and marks the operator unusable.
func (o *Operator) Close(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.objects = nil
	o.closed = true
	return nil
}

func (o *Operator) metadataLocked(key string, obj *object) *operator.Metadata {
	return &operator.Metadata{
		Key:      key,
		Size:     int64(len(obj.data)),
		IsDir:    obj.isDir,
		Modified: obj.modified,
	}
}

// writeStream buffers bytes until Finalize publishes them as one object.
type writeStream struct {
	op        *Operator
	key       string
	buf       []byte
	finalized bool
	aborted   bool
}

func (w *writeStream) Write(ctx context.Context, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if w.finalized || w.aborted {
		return 0, fmt.Errorf("write stream for %q is closed: %w", w.key, operator.ErrInvalidArgument)
	}
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *writeStream) Finalize(ctx context.Context) error {
	if w.aborted {
		return fmt.Errorf("write stream for %q was aborted: %w", w.key, operator.ErrInvalidArgument)
	}
	if w.finalized {
		return nil
	}
	if err := w.op.Write(ctx, w.key, w.buf, false); err != nil {
		return err
	}
	w.finalized = true
	w.buf = nil
	return nil
}

func (w *writeStream) Abort(ctx context.Context) error {
	if w.finalized {
		return fmt.Errorf("write stream for %q already finalized: %w", w.key, operator.ErrInvalidArgument)
	}
	w.aborted = true
	w.buf = nil
	return nil
}
