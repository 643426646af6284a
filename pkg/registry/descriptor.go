// Package registry maps URL schemes onto backend service descriptors and
// caches the operators built from them.
//
// The descriptor table is process-wide, append-only state: a scheme is
// registered once (or explicitly replaced) and never mutated afterwards.
// Operator caches, by contrast, are scoped to one filesystem instance so
// that operator lifetimes never couple two instances together.
package registry

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/stratofs/stratofs/pkg/operator"
)

// FieldType enumerates the value types a config schema field can declare.
// All values arrive as strings (URL query parameters, config files); the
// registry coerces them during validation.
type FieldType string

const (
	TypeString   FieldType = "string"
	TypeInt      FieldType = "int"
	TypeInt64    FieldType = "int64"
	TypeBool     FieldType = "bool"
	TypeDuration FieldType = "duration"
)

// Field describes one config schema entry.
type Field struct {
	// Key is the config key ("bucket", "region", "part_size").
	Key string

	// Type is the coercion target for the string value.
	Type FieldType

	// Required fields must be present after defaults are applied.
	Required bool

	// Default is applied when the key is absent. Must already have the
	// declared type. Nil means no default.
	Default any

	// Sensitive fields (credentials) are excluded from the cache
	// fingerprint log output; they still participate in cache identity.
	Sensitive bool
}

// Schema is the ordered set of fields a service accepts.
type Schema struct {
	Fields []Field

	// Open schemas pass unknown keys through as strings instead of
	// rejecting them.
	Open bool
}

// Constructor builds a backend-bound operator from a validated config. This
// is the one point where the registry may perform blocking setup work, such
// as a connectivity probe.
type Constructor func(ctx context.Context, cfg map[string]any) (operator.Operator, error)

// ServiceDescriptor pairs a scheme with its config schema and operator
// constructor. Immutable once registered.
type ServiceDescriptor struct {
	// Scheme is the URL scheme this service serves.
	Scheme string

	// RootKey is the config key the URL host maps onto ("bucket" for s3,
	// "root" for file and badger). Empty means the scheme has no
	// host-derived namespace.
	RootKey string

	// Schema validates and coerces the merged config.
	Schema Schema

	// New constructs the operator.
	New Constructor
}

// Validate checks raw string config against the schema, applies defaults and
// coerces values to their declared types. The returned map is the normalized
// BackendConfig; it is never mutated afterwards.
//
// Fails with operator.ErrInvalidConfig on a missing required key, an
// uncoercible value, or an unknown key against a closed schema.
func (d *ServiceDescriptor) Validate(raw map[string]string) (map[string]any, error) {
	known := make(map[string]*Field, len(d.Schema.Fields))
	for i := range d.Schema.Fields {
		known[d.Schema.Fields[i].Key] = &d.Schema.Fields[i]
	}

	cfg := make(map[string]any, len(raw))

	for key, value := range raw {
		field, ok := known[key]
		if !ok {
			if !d.Schema.Open {
				return nil, fmt.Errorf("scheme %q: unknown config key %q: %w",
					d.Scheme, key, operator.ErrInvalidConfig)
			}
			cfg[key] = value
			continue
		}
		coerced, err := coerce(field.Type, value)
		if err != nil {
			return nil, fmt.Errorf("scheme %q: key %q: %v: %w",
				d.Scheme, key, err, operator.ErrInvalidConfig)
		}
		cfg[key] = coerced
	}

	for _, field := range d.Schema.Fields {
		if _, ok := cfg[field.Key]; ok {
			continue
		}
		if field.Default != nil {
			cfg[field.Key] = field.Default
			continue
		}
		if field.Required {
			return nil, fmt.Errorf("scheme %q: missing required config key %q: %w",
				d.Scheme, field.Key, operator.ErrInvalidConfig)
		}
	}

	return cfg, nil
}

// Fingerprint derives the cache identity of a normalized config: the scheme
// plus every key/value pair in sorted key order. Two resolves with the same
// fingerprint share one operator.
func (d *ServiceDescriptor) Fingerprint(cfg map[string]any) string {
	keys := make([]string, 0, len(cfg))
	for k := range cfg {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(d.Scheme)
	for _, k := range keys {
		fmt.Fprintf(&b, "\x00%s=%v", k, cfg[k])
	}
	return b.String()
}

func coerce(t FieldType, value string) (any, error) {
	switch t {
	case TypeString, "":
		return value, nil
	case TypeInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", value)
		}
		return n, nil
	case TypeInt64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a 64-bit integer", value)
		}
		return n, nil
	case TypeBool:
		v, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%q is not a boolean", value)
		}
		return v, nil
	case TypeDuration:
		dur, err := time.ParseDuration(value)
		if err != nil {
			return nil, fmt.Errorf("%q is not a duration", value)
		}
		return dur, nil
	default:
		return nil, fmt.Errorf("unsupported field type %q", t)
	}
}
