// Package fs implements a local-disk storage operator (scheme "file").
//
// Objects live as regular files under a base directory; directory keys are
// real directories. Whole-object writes go through a temp file followed by
// an atomic rename, so a failed or abandoned write never leaves a partially
// written object visible.
//
// Thread Safety:
// Filesystem operations are safe at the OS level. Concurrent writes to the
// same key serialize on the final rename and are last-write-wins.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/stratofs/stratofs/pkg/operator"
)

// Operator is the local-disk operator rooted at a base directory.
type Operator struct {
	root string
}

// New creates an operator rooted at root, creating the directory if needed.
func New(ctx context.Context, root string) (*Operator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if root == "" {
		return nil, fmt.Errorf("fs operator: root is required: %w", operator.ErrInvalidConfig)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("fs operator: resolve root %q: %w", root, operator.ErrInvalidConfig)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("fs operator: create root: %v: %w", err, operator.ErrBackendUnavailable)
	}

	return &Operator{root: abs}, nil
}

// Scheme returns "file".
func (o *Operator) Scheme() string { return "file" }

// abspath maps a key onto the filesystem, refusing keys that escape the
// root. Keys are normally pre-normalized by the path translator, but the
// operator is usable standalone so it re-checks.
func (o *Operator) abspath(key string) (string, error) {
	p := filepath.Join(o.root, filepath.FromSlash(key))
	if p != o.root && !strings.HasPrefix(p, o.root+string(filepath.Separator)) {
		return "", fmt.Errorf("key %q escapes root: %w", key, operator.ErrInvalidPath)
	}
	return p, nil
}

// Stat returns metadata for key; the empty key stats the root directory.
func (o *Operator) Stat(ctx context.Context, key string) (*operator.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, err := o.abspath(strings.TrimSuffix(key, "/"))
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(p)
	if err != nil {
		return nil, mapError(key, err)
	}

	return fileMetadata(key, info), nil
}

// ReadRange reads length bytes at offset from the file behind key.
func (o *Operator) ReadRange(ctx context.Context, key string, offset, length int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		return nil, fmt.Errorf("offset %d: %w", offset, operator.ErrInvalidArgument)
	}

	p, err := o.abspath(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p)
	if err != nil {
		return nil, mapError(key, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, mapError(key, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("key %q: %w", key, operator.ErrIsADirectory)
	}

	size := info.Size()
	if offset >= size {
		return []byte{}, nil
	}
	want := size - offset
	if length >= 0 && length < want {
		want = length
	}

	buf := make([]byte, want)
	n, err := f.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read %q: %w", key, err)
	}
	return buf[:n], nil
}

// Write stores data under key. Non-append writes go through a temp file and
// an atomic rename; append opens the existing file with O_APPEND.
func (o *Operator) Write(ctx context.Context, key string, data []byte, appendTo bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" || strings.HasSuffix(key, "/") {
		return fmt.Errorf("key %q: %w", key, operator.ErrIsADirectory)
	}

	p, err := o.abspath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return mapError(key, err)
	}

	if appendTo {
		f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return mapError(key, err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return fmt.Errorf("append %q: %w", key, err)
		}
		return f.Close()
	}

	stream, err := o.OpenWriteStream(ctx, key)
	if err != nil {
		return err
	}
	if _, err := stream.Write(ctx, data); err != nil {
		_ = stream.Abort(ctx)
		return err
	}
	return stream.Finalize(ctx)
}

// OpenWriteStream writes into a hidden temp file; Finalize renames it over
// the key in one step, Abort unlinks it.
func (o *Operator) OpenWriteStream(ctx context.Context, key string) (operator.WriteStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if key == "" || strings.HasSuffix(key, "/") {
		return nil, fmt.Errorf("key %q: %w", key, operator.ErrIsADirectory)
	}

	p, err := o.abspath(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, mapError(key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), "."+filepath.Base(p)+".*.partial")
	if err != nil {
		return nil, mapError(key, err)
	}

	return &writeStream{key: key, dst: p, tmp: tmp}, nil
}

// List enumerates directory entries under prefix. A missing prefix lists
// empty.
func (o *Operator) List(ctx context.Context, prefix string, recursive bool) (operator.ObjectIterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir, err := o.abspath(strings.TrimSuffix(prefix, "/"))
	if err != nil {
		return nil, err
	}

	base := operator.DirKey(prefix)
	var entries []*operator.Metadata

	if !recursive {
		dirents, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, iofs.ErrNotExist) {
				return operator.NewSliceIterator(nil), nil
			}
			return nil, mapError(prefix, err)
		}
		for _, de := range dirents {
			info, err := de.Info()
			if err != nil {
				continue
			}
			key := base + de.Name()
			if de.IsDir() {
				key += "/"
			}
			entries = append(entries, fileMetadata(key, info))
		}
		return operator.NewSliceIterator(entries), nil
	}

	err = filepath.WalkDir(dir, func(p string, de iofs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, iofs.ErrNotExist) {
				return nil
			}
			return err
		}
		if p == dir {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		info, err := de.Info()
		if err != nil {
			return nil
		}
		key := base + filepath.ToSlash(rel)
		if de.IsDir() {
			key += "/"
		}
		entries = append(entries, fileMetadata(key, info))
		return nil
	})
	if err != nil {
		return nil, mapError(prefix, err)
	}

	return operator.NewSliceIterator(entries), nil
}

// Delete removes the file or empty directory behind key. Missing keys
// delete successfully.
func (o *Operator) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p, err := o.abspath(strings.TrimSuffix(key, "/"))
	if err != nil {
		return err
	}
	if p == o.root {
		return fmt.Errorf("cannot delete root: %w", operator.ErrInvalidArgument)
	}

	if err := os.Remove(p); err != nil && !errors.Is(err, iofs.ErrNotExist) {
		return mapError(key, err)
	}
	return nil
}

// CreateDir creates the directory behind key and any missing parents.
func (o *Operator) CreateDir(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p, err := o.abspath(strings.TrimSuffix(key, "/"))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(p, 0o755); err != nil {
		return mapError(key, err)
	}
	return nil
}

// Rename moves src to dst using the filesystem's native atomic rename.
func (o *Operator) Rename(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	from, err := o.abspath(strings.TrimSuffix(src, "/"))
	if err != nil {
		return err
	}
	to, err := o.abspath(strings.TrimSuffix(dst, "/"))
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return mapError(dst, err)
	}
	if err := os.Rename(from, to); err != nil {
		return mapError(src, err)
	}
	return nil
}

// Copy duplicates the file behind src under dst via temp file + rename.
func (o *Operator) Copy(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := o.ReadRange(ctx, src, 0, -1)
	if err != nil {
		return err
	}
	return o.Write(ctx, dst, data, false)
}

// Close is a no-op; the operator holds no persistent handles.
func (o *Operator) Close(ctx context.Context) error { return nil }

func fileMetadata(key string, info iofs.FileInfo) *operator.Metadata {
	m := &operator.Metadata{
		Key:      key,
		IsDir:    info.IsDir(),
		Modified: info.ModTime(),
	}
	if m.IsDir {
		m.Key = operator.DirKey(key)
	} else {
		m.Size = info.Size()
	}
	return m
}

// mapError translates OS-level failures into the shared taxonomy.
func mapError(key string, err error) error {
	switch {
	case errors.Is(err, iofs.ErrNotExist):
		return fmt.Errorf("key %q: %w", key, operator.ErrNotFound)
	case errors.Is(err, iofs.ErrExist):
		return fmt.Errorf("key %q: %w", key, operator.ErrAlreadyExists)
	case errors.Is(err, iofs.ErrPermission):
		return fmt.Errorf("key %q: %w", key, operator.ErrPermissionDenied)
	case errors.Is(err, syscall.EISDIR):
		return fmt.Errorf("key %q: %w", key, operator.ErrIsADirectory)
	case errors.Is(err, syscall.ENOTDIR):
		return fmt.Errorf("key %q: %w", key, operator.ErrNotADirectory)
	case errors.Is(err, syscall.ENOTEMPTY):
		return fmt.Errorf("key %q: directory not empty: %w", key, operator.ErrInvalidArgument)
	default:
		return fmt.Errorf("key %q: %w", key, err)
	}
}

// writeStream is a temp-file-backed write session.
type writeStream struct {
	key       string
	dst       string
	tmp       *os.File
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
	return w.tmp.Write(p)
}

func (w *writeStream) Finalize(ctx context.Context) error {
	if w.aborted {
		return fmt.Errorf("write stream for %q was aborted: %w", w.key, operator.ErrInvalidArgument)
	}
	if w.finalized {
		return nil
	}
	if err := w.tmp.Close(); err != nil {
		return mapError(w.key, err)
	}
	if err := os.Rename(w.tmp.Name(), w.dst); err != nil {
		return mapError(w.key, err)
	}
	w.finalized = true
	return nil
}

func (w *writeStream) Abort(ctx context.Context) error {
	if w.finalized {
		return fmt.Errorf("write stream for %q already finalized: %w", w.key, operator.ErrInvalidArgument)
	}
	if w.aborted {
		return nil
	}
	w.aborted = true
	name := w.tmp.Name()
	_ = w.tmp.Close()
	if err := os.Remove(name); err != nil && !errors.Is(err, iofs.ErrNotExist) {
		return mapError(w.key, err)
	}
	return nil
}
