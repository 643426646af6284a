package optest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratofs/stratofs/pkg/operator"
)

// RunStatReadTests executes the stat and read contract tests.
func (suite *Suite) RunStatReadTests(t *testing.T) {
	t.Run("Stat_Object", suite.testStatObject)
	t.Run("Stat_Root", suite.testStatRoot)
	t.Run("Stat_NotFound", suite.testStatNotFound)
	t.Run("Stat_SynthesizedDirectory", suite.testStatSynthesizedDirectory)
	t.Run("Read_Full", suite.testReadFull)
	t.Run("Read_Range", suite.testReadRange)
	t.Run("Read_PastEnd", suite.testReadPastEnd)
	t.Run("Read_NegativeOffset", suite.testReadNegativeOffset)
	t.Run("Read_NotFound", suite.testReadNotFound)
}

func (suite *Suite) testStatObject(t *testing.T) {
	op := suite.NewOperator(t)
	data := []byte("Hello, World!")
	mustWrite(t, op, "greeting.txt", data)

	meta := mustStat(t, op, "greeting.txt")
	assert.Equal(t, "greeting.txt", meta.Key)
	assert.Equal(t, int64(len(data)), meta.Size)
	assert.False(t, meta.IsDir)
}

func (suite *Suite) testStatRoot(t *testing.T) {
	op := suite.NewOperator(t)

	// Root exists even on an empty backend.
	meta := mustStat(t, op, "")
	assert.True(t, meta.IsDir)
}

func (suite *Suite) testStatNotFound(t *testing.T) {
	op := suite.NewOperator(t)
	assertNotFound(t, op, "missing.txt")
}

func (suite *Suite) testStatSynthesizedDirectory(t *testing.T) {
	op := suite.NewOperator(t)
	mustWrite(t, op, "logs/2024/app.log", []byte("x"))

	// A prefix with children stats as a directory whether or not a marker
	// object exists, and with or without the trailing slash.
	for _, key := range []string{"logs", "logs/", "logs/2024", "logs/2024/"} {
		meta := mustStat(t, op, key)
		assert.True(t, meta.IsDir, "%q should stat as directory", key)
	}
}

func (suite *Suite) testReadFull(t *testing.T) {
	op := suite.NewOperator(t)
	data := generateData(4096)
	mustWrite(t, op, "blob.bin", data)

	assertContentEquals(t, op, "blob.bin", data)
}

func (suite *Suite) testReadRange(t *testing.T) {
	op := suite.NewOperator(t)
	mustWrite(t, op, "range.txt", []byte("0123456789"))

	got, err := op.ReadRange(testContext(), "range.txt", 2, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("23456"), got)

	// Negative length reads from offset to end.
	got, err = op.ReadRange(testContext(), "range.txt", 7, -1)
	require.NoError(t, err)
	assert.Equal(t, []byte("789"), got)
}

func (suite *Suite) testReadPastEnd(t *testing.T) {
	op := suite.NewOperator(t)
	mustWrite(t, op, "short.txt", []byte("abc"))

	// Offset at or past EOF yields empty, not an error.
	got, err := op.ReadRange(testContext(), "short.txt", 3, 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	// Length overshooting EOF is clamped.
	got, err = op.ReadRange(testContext(), "short.txt", 1, 100)
	require.NoError(t, err)
	assert.Equal(t, []byte("bc"), got)
}

func (suite *Suite) testReadNegativeOffset(t *testing.T) {
	op := suite.NewOperator(t)
	mustWrite(t, op, "neg.txt", []byte("abc"))

	_, err := op.ReadRange(testContext(), "neg.txt", -1, 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, operator.ErrInvalidArgument))
}

func (suite *Suite) testReadNotFound(t *testing.T) {
	op := suite.NewOperator(t)

	_, err := op.ReadRange(testContext(), "missing.bin", 0, -1)
	require.Error(t, err)
	assert.True(t, operator.IsNotFound(err))
}
