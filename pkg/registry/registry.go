package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/stratofs/stratofs/pkg/operator"
)

// Table is a scheme-to-descriptor mapping. The package-level Default table
// is what production code uses; tests build private tables for isolation.
type Table struct {
	mu          sync.RWMutex
	descriptors map[string]*ServiceDescriptor
}

// NewTable creates an empty descriptor table.
func NewTable() *Table {
	return &Table{descriptors: make(map[string]*ServiceDescriptor)}
}

// defaultTable holds the process-wide scheme registrations.
var defaultTable = NewTable()

// Default returns the process-wide descriptor table.
func Default() *Table { return defaultTable }

// Register adds desc to the table. Registering a scheme that already exists
// fails unless replace is set; registration is otherwise append-only.
func (t *Table) Register(desc *ServiceDescriptor, replace bool) error {
	if desc == nil {
		return fmt.Errorf("cannot register nil descriptor: %w", operator.ErrInvalidArgument)
	}
	if desc.Scheme == "" {
		return fmt.Errorf("cannot register descriptor with empty scheme: %w", operator.ErrInvalidArgument)
	}
	if desc.New == nil {
		return fmt.Errorf("scheme %q: descriptor has no constructor: %w", desc.Scheme, operator.ErrInvalidArgument)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.descriptors[desc.Scheme]; exists && !replace {
		return fmt.Errorf("scheme %q already registered: %w", desc.Scheme, operator.ErrAlreadyExists)
	}
	t.descriptors[desc.Scheme] = desc
	return nil
}

// Lookup returns the descriptor registered for scheme, or ErrUnknownScheme.
func (t *Table) Lookup(scheme string) (*ServiceDescriptor, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	desc, ok := t.descriptors[scheme]
	if !ok {
		return nil, fmt.Errorf("scheme %q: %w", scheme, operator.ErrUnknownScheme)
	}
	return desc, nil
}

// KnownSchemes returns the registered schemes in sorted order.
func (t *Table) KnownSchemes() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	schemes := make([]string, 0, len(t.descriptors))
	for s := range t.descriptors {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}

// Register registers desc in the process-wide table.
func Register(desc *ServiceDescriptor, replace bool) error {
	return defaultTable.Register(desc, replace)
}

// Lookup resolves scheme against the process-wide table.
func Lookup(scheme string) (*ServiceDescriptor, error) {
	return defaultTable.Lookup(scheme)
}

// KnownSchemes lists the schemes in the process-wide table.
func KnownSchemes() []string {
	return defaultTable.KnownSchemes()
}
