// Package services registers the built-in storage backends with the scheme
// registry. Importing this package alone registers nothing; call Register or
// RegisterAll, typically during filesystem construction.
//
// Supported schemes:
//   - "mem": ephemeral in-process storage
//   - "file": local filesystem under a root directory
//   - "badger": embedded persistent key-value storage (BadgerDB)
//   - "s3": Amazon S3 and S3-compatible object stores
package services

import (
	"errors"
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"

	"github.com/stratofs/stratofs/pkg/operator"
	"github.com/stratofs/stratofs/pkg/registry"
)

// builtins maps each built-in scheme to its descriptor factory. Factories
// keep descriptor construction lazy so importing this package has no side
// effects.
var builtins = map[string]func() *registry.ServiceDescriptor{
	"mem":    memoryDescriptor,
	"file":   fileDescriptor,
	"badger": badgerDescriptor,
	"s3":     s3Descriptor,
}

// Register adds one built-in scheme to table (nil means the process-wide
// table). Registering a scheme that is already present is a no-op, so
// callers can register eagerly without coordinating.
func Register(table *registry.Table, scheme string) error {
	factory, ok := builtins[scheme]
	if !ok {
		return fmt.Errorf("no built-in service for scheme %q: %w", scheme, operator.ErrUnknownScheme)
	}
	if table == nil {
		table = registry.Default()
	}

	err := table.Register(factory(), false)
	if err != nil && !errors.Is(err, operator.ErrAlreadyExists) {
		return err
	}
	return nil
}

// RegisterAll registers every built-in scheme with table.
func RegisterAll(table *registry.Table) error {
	for _, scheme := range Schemes() {
		if err := Register(table, scheme); err != nil {
			return err
		}
	}
	return nil
}

// Schemes returns the built-in scheme names in sorted order.
func Schemes() []string {
	schemes := make([]string, 0, len(builtins))
	for s := range builtins {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}

// decode maps a validated config onto a typed options struct. The registry
// has already coerced values, so plain mapstructure decoding suffices.
func decode(scheme string, cfg map[string]any, out any) error {
	if err := mapstructure.Decode(cfg, out); err != nil {
		return fmt.Errorf("scheme %q: decode config: %v: %w", scheme, err, operator.ErrInvalidConfig)
	}
	return nil
}
