package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/stratofs/stratofs/internal/logger"
	"github.com/stratofs/stratofs/pkg/operator"
)

// OperatorCache caches constructed operators by (scheme, normalized config)
// fingerprint so repeated resolves against the same backend configuration
// reuse one connection/session instead of reconnecting.
//
// Each filesystem instance owns its own cache: operator lifetimes never
// couple two instances, and tearing an instance down closes exactly the
// operators it built. The descriptor table behind the cache is shared
// process-wide state.
//
// Concurrency:
// Resolve uses a double-checked lookup so that concurrent first use of the
// same (scheme, config) constructs the backend connection exactly once.
// Construction runs outside the read path but inside the write lock; a slow
// connectivity probe on one backend therefore delays other first-time
// constructions but never cached lookups of a different instance.
type OperatorCache struct {
	table *Table

	mu  sync.RWMutex
	ops map[string]operator.Operator
}

// NewOperatorCache creates an empty cache resolving against table. A nil
// table means the process-wide default.
func NewOperatorCache(table *Table) *OperatorCache {
	if table == nil {
		table = Default()
	}
	return &OperatorCache{
		table: table,
		ops:   make(map[string]operator.Operator),
	}
}

// Resolve validates raw config against the scheme's descriptor and returns
// the cached operator for the normalized (scheme, config) pair, constructing
// and caching it on first use.
//
// root is the URL-host-derived namespace; it is merged under the
// descriptor's RootKey unless the raw config already supplies that key
// explicitly (config overrides win over the URL host).
//
// Fails with ErrUnknownScheme when no descriptor is registered,
// ErrInvalidConfig when validation fails, and ErrBackendUnavailable when the
// constructor reports a backend-layer failure.
func (c *OperatorCache) Resolve(ctx context.Context, scheme, root string, raw map[string]string) (operator.Operator, error) {
	desc, err := c.table.Lookup(scheme)
	if err != nil {
		return nil, err
	}

	merged := raw
	if desc.RootKey != "" && root != "" {
		if _, ok := raw[desc.RootKey]; !ok {
			merged = make(map[string]string, len(raw)+1)
			for k, v := range raw {
				merged[k] = v
			}
			merged[desc.RootKey] = root
		}
	}

	cfg, err := desc.Validate(merged)
	if err != nil {
		return nil, err
	}
	key := desc.Fingerprint(cfg)

	c.mu.RLock()
	op, ok := c.ops[key]
	c.mu.RUnlock()
	if ok {
		return op, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-checked: another goroutine may have constructed the operator
	// between the read unlock and here.
	if op, ok := c.ops[key]; ok {
		return op, nil
	}

	logger.Debug("constructing operator for scheme %q", scheme)
	op, err = desc.New(ctx, cfg)
	if err != nil {
		if isTaxonomyError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("scheme %q: %v: %w", scheme, err, operator.ErrBackendUnavailable)
	}

	c.ops[key] = op
	return op, nil
}

// CloseAll closes every cached operator and empties the cache. The first
// close error is returned; the remaining operators are still closed.
func (c *OperatorCache) CloseAll(ctx context.Context) error {
	c.mu.Lock()
	ops := c.ops
	c.ops = make(map[string]operator.Operator)
	c.mu.Unlock()

	var firstErr error
	for key, op := range ops {
		if err := op.Close(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close operator %q: %w", key, err)
		}
	}
	return firstErr
}

// Len reports the number of cached operators. Used by tests.
func (c *OperatorCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ops)
}

// isTaxonomyError reports whether err already carries one of the shared
// taxonomy sentinels, in which case it is re-raised unchanged instead of
// being re-wrapped as ErrBackendUnavailable.
func isTaxonomyError(err error) bool {
	for _, sentinel := range []error{
		operator.ErrInvalidConfig,
		operator.ErrInvalidPath,
		operator.ErrNotFound,
		operator.ErrPermissionDenied,
		operator.ErrBackendUnavailable,
		operator.ErrUnsupported,
		operator.ErrTransient,
		operator.ErrInvalidArgument,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
