package filesystem

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/stratofs/stratofs/internal/logger"
	"github.com/stratofs/stratofs/pkg/bridge"
	"github.com/stratofs/stratofs/pkg/operator"
)

// ListOptions controls List.
type ListOptions struct {
	// Recursive lists the whole subtree instead of direct children.
	Recursive bool
}

// RemoveOptions controls Remove.
type RemoveOptions struct {
	// Strict fails with ErrNotFound when the target does not exist.
	// Without it removal of a missing key succeeds silently.
	Strict bool

	// Recursive removes a directory and everything under it.
	Recursive bool

	// BestEffort keeps a recursive removal going past individual failures
	// and reports the first one at the end. Without it the removal stops
	// at the first failure.
	BestEffort bool
}

// Info stats the object or directory behind url.
func (f *FileSystem) Info(ctx context.Context, url string) (*Info, error) {
	value, err := f.run(ctx, "stat", url, f.statTask(url))
	if err != nil {
		return nil, err
	}
	return value.(*Info), nil
}

// InfoAsync is the awaitable variant of Info. The Future resolves to *Info.
func (f *FileSystem) InfoAsync(ctx context.Context, url string) (*bridge.Future, error) {
	return f.submit(ctx, "stat", url, f.statTask(url))
}

func (f *FileSystem) statTask(url string) bridge.Task {
	return func(ctx context.Context) (any, error) {
		t, err := f.resolve(ctx, url)
		if err != nil {
			return nil, err
		}
		meta, err := t.op.Stat(ctx, t.loc.Key)
		if err != nil {
			return nil, err
		}
		return info(t.loc, meta), nil
	}
}

// Exists reports whether url resolves to an object or directory.
func (f *FileSystem) Exists(ctx context.Context, url string) (bool, error) {
	_, err := f.Info(ctx, url)
	switch {
	case err == nil:
		return true, nil
	case operator.IsNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

// ExistsAsync is the awaitable variant of Exists. The Future resolves to a
// bool.
func (f *FileSystem) ExistsAsync(ctx context.Context, url string) (*bridge.Future, error) {
	return f.submit(ctx, "stat", url, func(ctx context.Context) (any, error) {
		t, err := f.resolve(ctx, url)
		if err != nil {
			return nil, err
		}
		_, err = t.op.Stat(ctx, t.loc.Key)
		switch {
		case err == nil:
			return true, nil
		case operator.IsNotFound(err):
			return false, nil
		default:
			return nil, err
		}
	})
}

// List enumerates the entries under url, sorted by key. Listing a missing
// prefix yields an empty slice.
func (f *FileSystem) List(ctx context.Context, url string, opts ListOptions) ([]*Info, error) {
	value, err := f.run(ctx, "list", url, f.listTask(url, opts))
	if err != nil {
		return nil, err
	}
	return value.([]*Info), nil
}

// ListAsync is the awaitable variant of List. The Future resolves to
// []*Info.
func (f *FileSystem) ListAsync(ctx context.Context, url string, opts ListOptions) (*bridge.Future, error) {
	return f.submit(ctx, "list", url, f.listTask(url, opts))
}

func (f *FileSystem) listTask(url string, opts ListOptions) bridge.Task {
	return func(ctx context.Context) (any, error) {
		t, err := f.resolve(ctx, url)
		if err != nil {
			return nil, err
		}

		it, err := t.op.List(ctx, operator.DirKey(t.loc.Key), opts.Recursive)
		if err != nil {
			return nil, err
		}
		entries, err := operator.Collect(ctx, it)
		if err != nil {
			return nil, err
		}

		infos := make([]*Info, len(entries))
		for i, meta := range entries {
			infos[i] = info(t.loc, meta)
		}
		sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
		return infos, nil
	}
}

// ReadFile reads the whole object behind url.
func (f *FileSystem) ReadFile(ctx context.Context, url string) ([]byte, error) {
	return f.ReadFileRange(ctx, url, 0, -1)
}

// ReadFileRange reads length bytes starting at offset; negative length reads
// to the end.
func (f *FileSystem) ReadFileRange(ctx context.Context, url string, offset, length int64) ([]byte, error) {
	value, err := f.run(ctx, "read", url, f.readTask(url, offset, length))
	if err != nil {
		return nil, err
	}
	return value.([]byte), nil
}

// ReadFileAsync is the awaitable variant of ReadFile. The Future resolves to
// []byte.
func (f *FileSystem) ReadFileAsync(ctx context.Context, url string) (*bridge.Future, error) {
	return f.submit(ctx, "read", url, f.readTask(url, 0, -1))
}

func (f *FileSystem) readTask(url string, offset, length int64) bridge.Task {
	return func(ctx context.Context) (any, error) {
		t, err := f.resolve(ctx, url)
		if err != nil {
			return nil, err
		}
		return t.op.ReadRange(ctx, t.loc.Key, offset, length)
	}
}

// WriteFile stores data as the whole object behind url, replacing any
// previous content. The object appears at once or not at all; a failed
// write never leaves a partial object behind.
func (f *FileSystem) WriteFile(ctx context.Context, url string, data []byte) error {
	_, err := f.run(ctx, "write", url, f.writeTask(url, data))
	return err
}

// WriteFileAsync is the awaitable variant of WriteFile.
func (f *FileSystem) WriteFileAsync(ctx context.Context, url string, data []byte) (*bridge.Future, error) {
	return f.submit(ctx, "write", url, f.writeTask(url, data))
}

func (f *FileSystem) writeTask(url string, data []byte) bridge.Task {
	return func(ctx context.Context) (any, error) {
		t, err := f.resolve(ctx, url)
		if err != nil {
			return nil, err
		}
		if t.loc.Key == "" || strings.HasSuffix(t.loc.Key, "/") {
			return nil, errIsDirectory(t.loc.Key)
		}
		return nil, t.op.Write(ctx, t.loc.Key, data, false)
	}
}

// Mkdir creates the directory behind url, including missing parents.
// Idempotent.
func (f *FileSystem) Mkdir(ctx context.Context, url string) error {
	_, err := f.run(ctx, "mkdir", url, func(ctx context.Context) (any, error) {
		t, err := f.resolve(ctx, url)
		if err != nil {
			return nil, err
		}
		return nil, t.op.CreateDir(ctx, t.loc.Key)
	})
	return err
}

// Remove deletes the object or directory behind url according to opts.
// Removing a missing key succeeds unless opts.Strict is set; removing a
// non-empty directory requires opts.Recursive.
func (f *FileSystem) Remove(ctx context.Context, url string, opts RemoveOptions) error {
	_, err := f.run(ctx, "remove", url, f.removeTask(url, opts))
	return err
}

// RemoveAsync is the awaitable variant of Remove.
func (f *FileSystem) RemoveAsync(ctx context.Context, url string, opts RemoveOptions) (*bridge.Future, error) {
	return f.submit(ctx, "remove", url, f.removeTask(url, opts))
}

func (f *FileSystem) removeTask(url string, opts RemoveOptions) bridge.Task {
	return func(ctx context.Context) (any, error) {
		t, err := f.resolve(ctx, url)
		if err != nil {
			return nil, err
		}

		meta, err := t.op.Stat(ctx, t.loc.Key)
		if err != nil {
			if operator.IsNotFound(err) && !opts.Strict {
				return nil, nil
			}
			return nil, err
		}

		if !meta.IsDir {
			return nil, t.op.Delete(ctx, t.loc.Key)
		}
		return nil, f.removeDir(ctx, t, meta.Key, opts)
	}
}

// removeDir deletes a directory. Children are removed deepest-first so a
// stop-at-first-error run never orphans a subtree under a deleted marker.
func (f *FileSystem) removeDir(ctx context.Context, t *target, dir string, opts RemoveOptions) error {
	it, err := t.op.List(ctx, dir, true)
	if err != nil {
		return err
	}
	entries, err := operator.Collect(ctx, it)
	if err != nil {
		return err
	}

	if len(entries) > 0 && !opts.Recursive {
		return fmt.Errorf("directory %q is not empty: %w", dir, operator.ErrInvalidArgument)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Key > entries[j].Key })

	var firstErr error
	for _, entry := range entries {
		if err := t.op.Delete(ctx, entry.Key); err != nil {
			if !opts.BestEffort {
				return err
			}
			logger.Warn("remove %q: continuing past error: %v", entry.Key, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		return firstErr
	}

	return t.op.Delete(ctx, dir)
}

// Rename moves src to dst. Within one backend the operator's native rename
// applies; across backends it degrades to copy plus delete and is not
// atomic.
func (f *FileSystem) Rename(ctx context.Context, src, dst string) error {
	_, err := f.run(ctx, "rename", src, func(ctx context.Context) (any, error) {
		from, err := f.resolve(ctx, src)
		if err != nil {
			return nil, err
		}
		to, err := f.resolve(ctx, dst)
		if err != nil {
			return nil, err
		}

		if from.op == to.op {
			return nil, from.op.Rename(ctx, from.loc.Key, to.loc.Key)
		}

		if err := f.transfer(ctx, from, to); err != nil {
			return nil, err
		}
		return nil, from.op.Delete(ctx, from.loc.Key)
	})
	return err
}

// Copy duplicates src under dst. Within one backend a native server-side
// copy is used when the operator supports one; everything else degrades to
// read-then-write.
func (f *FileSystem) Copy(ctx context.Context, src, dst string) error {
	_, err := f.run(ctx, "copy", src, func(ctx context.Context) (any, error) {
		from, err := f.resolve(ctx, src)
		if err != nil {
			return nil, err
		}
		to, err := f.resolve(ctx, dst)
		if err != nil {
			return nil, err
		}

		if from.op == to.op {
			if copier, ok := from.op.(operator.Copier); ok {
				err := copier.Copy(ctx, from.loc.Key, to.loc.Key)
				if err == nil || !errors.Is(err, operator.ErrUnsupported) {
					return nil, err
				}
			}
		}
		return nil, f.transfer(ctx, from, to)
	})
	return err
}

// transfer streams src's content into dst via a write stream, so a failure
// mid-copy never leaves a partial destination object.
func (f *FileSystem) transfer(ctx context.Context, from, to *target) error {
	data, err := from.op.ReadRange(ctx, from.loc.Key, 0, -1)
	if err != nil {
		return err
	}

	ws, err := to.op.OpenWriteStream(ctx, to.loc.Key)
	if err != nil {
		return err
	}
	if _, err := ws.Write(ctx, data); err != nil {
		_ = ws.Abort(ctx)
		return err
	}
	return ws.Finalize(ctx)
}
