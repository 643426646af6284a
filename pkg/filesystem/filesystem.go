// Package filesystem exposes one uniform file-style API over heterogeneous
// storage backends addressed by URL.
//
// A FileSystem instance owns three things: an execution bridge every backend
// call runs on, an operator cache binding (scheme, config) pairs to live
// backend sessions, and the scheme defaults merged into every URL it
// dispatches. Instances are independent; closing one never affects another.
//
// URLs look like s3://bucket/path/file.txt?region=eu-west-1. The scheme
// picks the backend, the host names its top-level namespace, the path is the
// object key and query parameters override configuration per call.
//
// All blocking methods have the same shape: translate the URL, resolve the
// operator, run the backend primitives as one task on the bridge. The Async
// variants return a Future for the same task instead of waiting on it.
package filesystem

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stratofs/stratofs/pkg/bridge"
	"github.com/stratofs/stratofs/pkg/operator"
	"github.com/stratofs/stratofs/pkg/registry"
	"github.com/stratofs/stratofs/pkg/urlpath"
)

// Info describes one object or directory.
type Info struct {
	// Path is the full storage URL of the entry.
	Path string

	// Key is the backend key relative to the scheme root.
	Key string

	// Size is the object size in bytes; zero for directories.
	Size int64

	// IsDir marks directories, real or synthesized.
	IsDir bool

	// Modified is the backend's last-modification time; zero when the
	// backend does not track one.
	Modified time.Time

	// ETag is the backend's content fingerprint, when it has one.
	ETag string
}

// OperationMetrics observes dispatched operations. Implementations must be
// safe for concurrent use.
type OperationMetrics interface {
	// Observe records one completed operation with its outcome.
	Observe(op, scheme string, elapsed time.Duration, err error)
}

// FileSystem is the dispatch facade over all registered backends. Create
// with New, release with Close. Safe for concurrent use.
type FileSystem struct {
	table    *registry.Table
	cache    *registry.OperatorCache
	bridge   *bridge.Bridge
	defaults map[string]map[string]string
	metrics  OperationMetrics
}

// Option configures a FileSystem.
type Option func(*settings)

type settings struct {
	table    *registry.Table
	grace    time.Duration
	defaults map[string]map[string]string
	metrics  OperationMetrics
}

// WithTable resolves schemes against a private descriptor table instead of
// the process-wide one.
func WithTable(table *registry.Table) Option {
	return func(s *settings) { s.table = table }
}

// WithGracePeriod bounds how long Close waits for in-flight operations.
func WithGracePeriod(d time.Duration) Option {
	return func(s *settings) { s.grace = d }
}

// WithSchemeDefaults merges opts into every URL of the given scheme. URL
// query parameters and per-call overrides take precedence over defaults.
func WithSchemeDefaults(scheme string, opts map[string]string) Option {
	return func(s *settings) {
		if s.defaults == nil {
			s.defaults = make(map[string]map[string]string)
		}
		merged := make(map[string]string, len(opts))
		for k, v := range opts {
			merged[k] = v
		}
		s.defaults[scheme] = merged
	}
}

// WithMetrics installs an operation observer.
func WithMetrics(m OperationMetrics) Option {
	return func(s *settings) { s.metrics = m }
}

// New creates a FileSystem. The underlying execution bridge starts lazily on
// the first operation.
func New(opts ...Option) *FileSystem {
	s := &settings{grace: bridge.DefaultGracePeriod}
	for _, opt := range opts {
		opt(s)
	}

	return &FileSystem{
		table:    s.table,
		cache:    registry.NewOperatorCache(s.table),
		bridge:   bridge.New(bridge.WithGracePeriod(s.grace)),
		defaults: s.defaults,
		metrics:  s.metrics,
	}
}

// target bundles a resolved URL with its operator.
type target struct {
	op  operator.Operator
	loc *urlpath.Target
}

// resolve translates rawURL and binds it to an operator, merging scheme
// defaults under the URL's own parameters. Runs inside bridge tasks.
func (f *FileSystem) resolve(ctx context.Context, rawURL string) (*target, error) {
	loc, err := urlpath.Translate(rawURL, nil)
	if err != nil {
		return nil, err
	}

	if defaults, ok := f.defaults[loc.Scheme]; ok {
		merged := make(map[string]string, len(defaults)+len(loc.Config))
		for k, v := range defaults {
			merged[k] = v
		}
		for k, v := range loc.Config {
			merged[k] = v
		}
		loc.Config = merged
	}

	op, err := f.cache.Resolve(ctx, loc.Scheme, loc.Root, loc.Config)
	if err != nil {
		return nil, err
	}
	return &target{op: op, loc: loc}, nil
}

// run dispatches one named task onto the bridge and blocks on its result.
func (f *FileSystem) run(ctx context.Context, name, rawURL string, task bridge.Task) (any, error) {
	fut, err := f.submit(ctx, name, rawURL, task)
	if err != nil {
		return nil, err
	}
	return fut.Wait(ctx)
}

// submit dispatches one named task onto the bridge and returns its Future.
func (f *FileSystem) submit(ctx context.Context, name, rawURL string, task bridge.Task) (*bridge.Future, error) {
	scheme := schemeOf(rawURL)
	start := time.Now()

	wrapped := task
	if f.metrics != nil {
		wrapped = func(ctx context.Context) (any, error) {
			value, err := task(ctx)
			f.metrics.Observe(name, scheme, time.Since(start), err)
			return value, err
		}
	}
	return f.bridge.Submit(ctx, wrapped)
}

func schemeOf(rawURL string) string {
	if i := strings.Index(rawURL, "://"); i > 0 {
		return rawURL[:i]
	}
	return "unknown"
}

// info converts operator metadata into an Info carrying the full URL.
func info(loc *urlpath.Target, meta *operator.Metadata) *Info {
	return &Info{
		Path:     urlpath.Format(loc.Scheme, loc.Root, meta.Key),
		Key:      meta.Key,
		Size:     meta.Size,
		IsDir:    meta.IsDir,
		Modified: meta.Modified,
		ETag:     meta.ETag,
	}
}

// Close drains in-flight operations within the grace period, then closes
// every cached operator. Later operations fail with
// operator.ErrBridgeClosed. Safe to call multiple times.
func (f *FileSystem) Close(ctx context.Context) error {
	bridgeErr := f.bridge.Close(ctx)
	cacheErr := f.cache.CloseAll(ctx)
	if bridgeErr != nil {
		return bridgeErr
	}
	return cacheErr
}

// Schemes lists the schemes this instance can dispatch to.
func (f *FileSystem) Schemes() []string {
	if f.table != nil {
		return f.table.KnownSchemes()
	}
	return registry.KnownSchemes()
}

// errIsDirectory builds the standard is-a-directory failure for rawURL.
func errIsDirectory(key string) error {
	return fmt.Errorf("key %q: %w", key, operator.ErrIsADirectory)
}
