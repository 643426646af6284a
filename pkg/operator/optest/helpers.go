package optest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratofs/stratofs/pkg/operator"
)

// mustWrite writes a whole object and fails the test if it errors.
func mustWrite(t *testing.T, op operator.Operator, key string, data []byte) {
	t.Helper()
	err := op.Write(testContext(), key, data, false)
	require.NoError(t, err, "Write should succeed")
}

// mustRead reads the whole object and fails the test if it errors.
func mustRead(t *testing.T, op operator.Operator, key string) []byte {
	t.Helper()
	data, err := op.ReadRange(testContext(), key, 0, -1)
	require.NoError(t, err, "ReadRange should succeed")
	return data
}

// mustStat stats a key and fails the test if it errors.
func mustStat(t *testing.T, op operator.Operator, key string) *operator.Metadata {
	t.Helper()
	meta, err := op.Stat(testContext(), key)
	require.NoError(t, err, "Stat should succeed")
	require.NotNil(t, meta)
	return meta
}

// mustList collects a full listing and fails the test if it errors.
func mustList(t *testing.T, op operator.Operator, prefix string, recursive bool) []*operator.Metadata {
	t.Helper()
	it, err := op.List(testContext(), prefix, recursive)
	require.NoError(t, err, "List should succeed")
	entries, err := operator.Collect(testContext(), it)
	require.NoError(t, err, "iterating listing should succeed")
	return entries
}

// listKeys returns just the keys of a listing, in listing order.
func listKeys(entries []*operator.Metadata) []string {
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	return keys
}

// assertContentEquals checks the stored bytes under key.
func assertContentEquals(t *testing.T, op operator.Operator, key string, expected []byte) {
	t.Helper()
	actual := mustRead(t, op, key)
	assert.Equal(t, expected, actual, "content mismatch for %q", key)
}

// assertNotFound checks that key does not resolve.
func assertNotFound(t *testing.T, op operator.Operator, key string) {
	t.Helper()
	_, err := op.Stat(testContext(), key)
	require.Error(t, err)
	assert.True(t, operator.IsNotFound(err), "expected not-found for %q, got %v", key, err)
}

// generateData creates deterministic test data of the given size.
func generateData(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}
