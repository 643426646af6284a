package filesystem

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/stratofs/stratofs/pkg/operator"
	"github.com/stratofs/stratofs/pkg/urlpath"
)

// spillThreshold is the buffered-write size past which an open file switches
// from an in-memory buffer to the backend's incremental write stream.
const spillThreshold = 8 << 20

// File is a positioned handle on one object, opened with Open. Reads pull
// ranges on demand; writes buffer locally and commit on Close, so a handle
// abandoned without Close publishes nothing.
//
// A File is safe for concurrent use, but the position is shared: interleaved
// reads from multiple goroutines see one cursor.
type File struct {
	fs   *FileSystem
	url  string
	mode string

	mu     sync.Mutex
	pos    int64
	size   int64
	buf    bytes.Buffer
	stream operator.WriteStream
	closed bool
}

// Open opens url in the given mode: "r" to read, "w" to write (replacing any
// existing object), "a" to append. Read handles require the object to exist;
// write handles publish their content only when Close succeeds.
func (f *FileSystem) Open(ctx context.Context, url, mode string) (*File, error) {
	switch mode {
	case "r", "w", "a":
	default:
		return nil, fmt.Errorf("mode %q (want r, w or a): %w", mode, operator.ErrInvalidArgument)
	}

	file := &File{fs: f, url: url, mode: mode}

	if mode == "r" {
		value, err := f.run(ctx, "open", url, func(ctx context.Context) (any, error) {
			t, err := f.resolve(ctx, url)
			if err != nil {
				return nil, err
			}
			meta, err := t.op.Stat(ctx, t.loc.Key)
			if err != nil {
				return nil, err
			}
			if meta.IsDir {
				return nil, errIsDirectory(t.loc.Key)
			}
			return meta.Size, nil
		})
		if err != nil {
			return nil, err
		}
		file.size = value.(int64)
	} else {
		// Fail on directory URLs before buffering anything.
		loc, err := translateKeyOnly(url)
		if err != nil {
			return nil, err
		}
		if loc == "" || strings.HasSuffix(loc, "/") {
			return nil, errIsDirectory(loc)
		}
	}

	return file, nil
}

func translateKeyOnly(url string) (string, error) {
	loc, err := urlpath.Translate(url, nil)
	if err != nil {
		return "", err
	}
	return loc.Key, nil
}

// Read fills p from the current position. Returns io.EOF at end of object.
func (file *File) Read(ctx context.Context, p []byte) (int, error) {
	file.mu.Lock()
	defer file.mu.Unlock()

	if file.mode != "r" {
		return 0, fmt.Errorf("file not open for reading: %w", operator.ErrInvalidArgument)
	}
	if file.closed {
		return 0, fmt.Errorf("file is closed: %w", operator.ErrInvalidArgument)
	}
	if len(p) == 0 {
		return 0, nil
	}
	if file.pos >= file.size {
		return 0, io.EOF
	}

	value, err := file.fs.run(ctx, "read", file.url, file.fs.readTask(file.url, file.pos, int64(len(p))))
	if err != nil {
		return 0, err
	}
	data := value.([]byte)
	n := copy(p, data)
	file.pos += int64(n)
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Seek repositions the read cursor. Only read handles seek; buffered writes
// are strictly sequential.
func (file *File) Seek(offset int64, whence int) (int64, error) {
	file.mu.Lock()
	defer file.mu.Unlock()

	if file.mode != "r" {
		return 0, fmt.Errorf("only read handles seek: %w", operator.ErrUnsupported)
	}

	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = file.pos + offset
	case io.SeekEnd:
		next = file.size + offset
	default:
		return 0, fmt.Errorf("whence %d: %w", whence, operator.ErrInvalidArgument)
	}
	if next < 0 {
		return 0, fmt.Errorf("position %d: %w", next, operator.ErrInvalidArgument)
	}

	file.pos = next
	return next, nil
}

// Write buffers p for commit on Close. Once the buffer outgrows the spill
// threshold the handle switches to the backend's incremental write stream;
// either way nothing is visible under the URL until Close.
func (file *File) Write(ctx context.Context, p []byte) (int, error) {
	file.mu.Lock()
	defer file.mu.Unlock()

	if file.mode == "r" {
		return 0, fmt.Errorf("file not open for writing: %w", operator.ErrInvalidArgument)
	}
	if file.closed {
		return 0, fmt.Errorf("file is closed: %w", operator.ErrInvalidArgument)
	}

	file.buf.Write(p)

	// Appends commit in one shot on Close; only replacing writes spill.
	if file.mode == "w" && file.buf.Len() >= spillThreshold {
		if err := file.spillLocked(ctx); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// spillLocked moves the buffered bytes into the backend write stream,
// opening it on first use. Caller holds file.mu.
func (file *File) spillLocked(ctx context.Context) error {
	data := make([]byte, file.buf.Len())
	copy(data, file.buf.Bytes())
	file.buf.Reset()

	_, err := file.fs.run(ctx, "write", file.url, func(ctx context.Context) (any, error) {
		if file.stream == nil {
			t, err := file.fs.resolve(ctx, file.url)
			if err != nil {
				return nil, err
			}
			ws, err := t.op.OpenWriteStream(ctx, t.loc.Key)
			if err != nil {
				return nil, err
			}
			file.stream = ws
		}
		_, err := file.stream.Write(ctx, data)
		return nil, err
	})
	return err
}

// Close commits buffered writes and releases the handle. For read handles it
// is a no-op. Close after a failed Close is safe.
func (file *File) Close(ctx context.Context) error {
	file.mu.Lock()
	defer file.mu.Unlock()

	if file.closed || file.mode == "r" {
		file.closed = true
		return nil
	}

	if file.stream != nil {
		if file.buf.Len() > 0 {
			if err := file.spillLocked(ctx); err != nil {
				_ = file.abortLocked(ctx)
				return err
			}
		}
		stream := file.stream
		_, err := file.fs.run(ctx, "write", file.url, func(ctx context.Context) (any, error) {
			return nil, stream.Finalize(ctx)
		})
		if err != nil {
			return err
		}
		file.closed = true
		return nil
	}

	data := make([]byte, file.buf.Len())
	copy(data, file.buf.Bytes())
	appendTo := file.mode == "a"

	_, err := file.fs.run(ctx, "write", file.url, func(ctx context.Context) (any, error) {
		t, err := file.fs.resolve(ctx, file.url)
		if err != nil {
			return nil, err
		}
		return nil, t.op.Write(ctx, t.loc.Key, data, appendTo)
	})
	if err != nil {
		return err
	}
	file.closed = true
	return nil
}

// Abort discards buffered writes and any spilled stream data without
// publishing anything. Read handles just close.
func (file *File) Abort(ctx context.Context) error {
	file.mu.Lock()
	defer file.mu.Unlock()
	return file.abortLocked(ctx)
}

func (file *File) abortLocked(ctx context.Context) error {
	if file.closed {
		return nil
	}
	file.closed = true
	file.buf.Reset()

	if file.stream == nil {
		return nil
	}
	stream := file.stream
	_, err := file.fs.run(ctx, "write", file.url, func(ctx context.Context) (any, error) {
		return nil, stream.Abort(ctx)
	})
	return err
}
