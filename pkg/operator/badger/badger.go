// Package badger implements a persistent embedded storage operator
// (scheme "badger") backed by BadgerDB.
//
// Objects are stored as key/value entries: the object key maps onto a
// namespaced database key, and the value carries a small header (directory
// flag, modification time) followed by the object bytes. It is suitable
// for:
//   - Local persistent scratch storage that survives restarts
//   - Single-node deployments that want object semantics without a daemon
//   - Testing the dispatch layer against a durable backend
//
// BadgerDB handles crash recovery (WAL-based) and concurrent transactions;
// the operator adds only the key schema and the taxonomy error mapping.
package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/stratofs/stratofs/pkg/operator"
)

// objectPrefix namespaces object records so future record types (per-key
// attributes, upload sessions) can share the database.
const objectPrefix = "o/"

// value layout: 1 flag byte (bit 0 = directory) + 8 bytes big-endian
// unix-nano modification time + object bytes.
const headerSize = 9

// Config configures the badger operator.
type Config struct {
	// Path is the database directory. Required unless InMemory is set.
	Path string

	// InMemory runs BadgerDB without persistence; used by tests.
	InMemory bool
}

// Operator is the BadgerDB-backed operator.
type Operator struct {
	db *badger.DB
}

// New opens (or creates) the database and returns an operator bound to it.
func New(ctx context.Context, cfg Config) (*Operator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Path == "" && !cfg.InMemory {
		return nil, fmt.Errorf("badger operator: path is required: %w", operator.ErrInvalidConfig)
	}

	opts := badger.DefaultOptions(cfg.Path)
	opts = opts.WithLoggingLevel(badger.WARNING)
	// Object payloads are already opaque bytes; compression rarely pays.
	opts = opts.WithCompression(options.None)
	if cfg.InMemory {
		opts = opts.WithInMemory(true).WithDir("").WithValueDir("")
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger operator: open %q: %v: %w", cfg.Path, err, operator.ErrBackendUnavailable)
	}

	return &Operator{db: db}, nil
}

// Scheme returns "badger".
func (o *Operator) Scheme() string { return "badger" }

func dbKey(key string) []byte { return []byte(objectPrefix + key) }

func encodeValue(isDir bool, modified time.Time, data []byte) []byte {
	buf := make([]byte, headerSize+len(data))
	if isDir {
		buf[0] = 1
	}
	binary.BigEndian.PutUint64(buf[1:headerSize], uint64(modified.UnixNano()))
	copy(buf[headerSize:], data)
	return buf
}

func decodeValue(key string, raw []byte) (*operator.Metadata, []byte, error) {
	if len(raw) < headerSize {
		return nil, nil, fmt.Errorf("key %q: corrupt record: %w", key, operator.ErrInvalidArgument)
	}
	m := &operator.Metadata{
		Key:      key,
		IsDir:    raw[0] == 1,
		Modified: time.Unix(0, int64(binary.BigEndian.Uint64(raw[1:headerSize]))),
	}
	data := raw[headerSize:]
	if !m.IsDir {
		m.Size = int64(len(data))
	}
	return m, data, nil
}

// Stat returns metadata for key, synthesizing directories from key prefixes
// the same way the flat object backends do.
func (o *Operator) Stat(ctx context.Context, key string) (*operator.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if key == "" {
		return &operator.Metadata{Key: "", IsDir: true}, nil
	}

	var meta *operator.Metadata
	err := o.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(dbKey(key))
		if err == nil {
			return item.Value(func(raw []byte) error {
				m, _, derr := decodeValue(key, raw)
				meta = m
				return derr
			})
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		// Synthesized directory: any record nested under the prefix.
		dir := operator.DirKey(key)
		it := txn.NewIterator(badger.IteratorOptions{Prefix: dbKey(dir)})
		defer it.Close()
		it.Rewind()
		if it.Valid() {
			meta = &operator.Metadata{Key: dir, IsDir: true}
			return nil
		}
		return fmt.Errorf("key %q: %w", key, operator.ErrNotFound)
	})
	if err != nil {
		return nil, mapError(key, err)
	}
	return meta, nil
}

// ReadRange reads length bytes at offset; negative length reads to end.
func (o *Operator) ReadRange(ctx context.Context, key string, offset, length int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		return nil, fmt.Errorf("offset %d: %w", offset, operator.ErrInvalidArgument)
	}

	var out []byte
	err := o.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(dbKey(key))
		if err != nil {
			return err
		}
		return item.Value(func(raw []byte) error {
			m, data, derr := decodeValue(key, raw)
			if derr != nil {
				return derr
			}
			if m.IsDir {
				return fmt.Errorf("key %q: %w", key, operator.ErrIsADirectory)
			}
			size := int64(len(data))
			if offset >= size {
				out = []byte{}
				return nil
			}
			end := size
			if length >= 0 && offset+length < size {
				end = offset + length
			}
			out = make([]byte, end-offset)
			copy(out, data[offset:end])
			return nil
		})
	})
	if err != nil {
		return nil, mapError(key, err)
	}
	return out, nil
}

// Write stores data under key inside one transaction; append reads the
// previous record and rewrites it.
func (o *Operator) Write(ctx context.Context, key string, data []byte, appendTo bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" || strings.HasSuffix(key, "/") {
		return fmt.Errorf("key %q: %w", key, operator.ErrIsADirectory)
	}

	err := o.db.Update(func(txn *badger.Txn) error {
		payload := data
		if appendTo {
			item, err := txn.Get(dbKey(key))
			if err == nil {
				var prev []byte
				verr := item.Value(func(raw []byte) error {
					m, d, derr := decodeValue(key, raw)
					if derr != nil {
						return derr
					}
					if m.IsDir {
						return fmt.Errorf("key %q: %w", key, operator.ErrIsADirectory)
					}
					prev = append([]byte(nil), d...)
					return nil
				})
				if verr != nil {
					return verr
				}
				payload = append(prev, data...)
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}
		return txn.Set(dbKey(key), encodeValue(false, time.Now(), payload))
	})
	return mapError(key, err)
}

// OpenWriteStream buffers in memory and commits through Write on Finalize.
func (o *Operator) OpenWriteStream(ctx context.Context, key string) (operator.WriteStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if key == "" || strings.HasSuffix(key, "/") {
		return nil, fmt.Errorf("key %q: %w", key, operator.ErrIsADirectory)
	}
	return &writeStream{op: o, key: key}, nil
}

// List scans the object namespace by prefix and synthesizes the listing.
func (o *Operator) List(ctx context.Context, prefix string, recursive bool) (operator.ObjectIterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var all []*operator.Metadata
	err := o.db.View(func(txn *badger.Txn) error {
		opts := badger.IteratorOptions{Prefix: dbKey(prefix), PrefetchValues: true, PrefetchSize: 64}
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := strings.TrimPrefix(string(item.Key()), objectPrefix)
			err := item.Value(func(raw []byte) error {
				m, _, derr := decodeValue(key, raw)
				if derr != nil {
					return derr
				}
				all = append(all, m)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, mapError(prefix, err)
	}

	return operator.NewSliceIterator(operator.BuildListing(prefix, recursive, all)), nil
}

// Delete removes key. Missing keys delete successfully.
func (o *Operator) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := o.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(dbKey(key))
	})
	return mapError(key, err)
}

// CreateDir writes a zero-byte directory marker record. Idempotent.
func (o *Operator) CreateDir(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := operator.DirKey(key)
	if dir == "" {
		return nil
	}
	err := o.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(dbKey(dir)); err == nil {
			return nil
		}
		return txn.Set(dbKey(dir), encodeValue(true, time.Now(), nil))
	})
	return mapError(key, err)
}

// Rename moves src to dst atomically inside one transaction.
func (o *Operator) Rename(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := o.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(dbKey(src))
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := txn.Delete(dbKey(src)); err != nil {
			return err
		}
		return txn.Set(dbKey(dst), raw)
	})
	return mapError(src, err)
}

// Copy duplicates src under dst inside one transaction.
func (o *Operator) Copy(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := o.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(dbKey(src))
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return txn.Set(dbKey(dst), raw)
	})
	return mapError(src, err)
}

// Close closes the database.
func (o *Operator) Close(ctx context.Context) error {
	if err := o.db.Close(); err != nil {
		return fmt.Errorf("badger operator: close: %w", err)
	}
	return nil
}

// mapError translates BadgerDB failures into the shared taxonomy.
func mapError(key string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return fmt.Errorf("key %q: %w", key, operator.ErrNotFound)
	case errors.Is(err, badger.ErrConflict):
		return fmt.Errorf("key %q: transaction conflict: %w", key, operator.ErrTransient)
	case errors.Is(err, badger.ErrDBClosed):
		return fmt.Errorf("key %q: %w", key, operator.ErrBackendUnavailable)
	default:
		return err
	}
}

// writeStream buffers bytes and commits them as one record on Finalize.
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
