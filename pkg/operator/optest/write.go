package optest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunWriteTests executes the whole-object write contract tests.
func (suite *Suite) RunWriteTests(t *testing.T) {
	t.Run("Write_Basic", suite.testWriteBasic)
	t.Run("Write_Overwrite", suite.testWriteOverwrite)
	t.Run("Write_Empty", suite.testWriteEmpty)
	t.Run("Write_Append", suite.testWriteAppend)
	t.Run("Write_AppendCreates", suite.testWriteAppendCreates)
}

// RunWriteStreamTests executes the incremental write stream contract tests.
func (suite *Suite) RunWriteStreamTests(t *testing.T) {
	t.Run("Stream_Finalize", suite.testStreamFinalize)
	t.Run("Stream_NotVisibleBeforeFinalize", suite.testStreamNotVisibleBeforeFinalize)
	t.Run("Stream_Abort", suite.testStreamAbort)
	t.Run("Stream_Overwrite", suite.testStreamOverwrite)
}

func (suite *Suite) testWriteBasic(t *testing.T) {
	op := suite.NewOperator(t)
	data := []byte("payload")
	mustWrite(t, op, "a.txt", data)
	assertContentEquals(t, op, "a.txt", data)
}

func (suite *Suite) testWriteOverwrite(t *testing.T) {
	op := suite.NewOperator(t)
	mustWrite(t, op, "over.txt", []byte("old data"))
	mustWrite(t, op, "over.txt", []byte("new"))

	assertContentEquals(t, op, "over.txt", []byte("new"))
	meta := mustStat(t, op, "over.txt")
	assert.Equal(t, int64(3), meta.Size)
}

func (suite *Suite) testWriteEmpty(t *testing.T) {
	op := suite.NewOperator(t)
	mustWrite(t, op, "empty.txt", []byte{})

	meta := mustStat(t, op, "empty.txt")
	assert.Equal(t, int64(0), meta.Size)
	assert.False(t, meta.IsDir)
}

func (suite *Suite) testWriteAppend(t *testing.T) {
	op := suite.NewOperator(t)
	mustWrite(t, op, "log.txt", []byte("line1\n"))

	err := op.Write(testContext(), "log.txt", []byte("line2\n"), true)
	require.NoError(t, err)

	assertContentEquals(t, op, "log.txt", []byte("line1\nline2\n"))
}

func (suite *Suite) testWriteAppendCreates(t *testing.T) {
	op := suite.NewOperator(t)

	// Append to a missing key behaves like a plain write.
	err := op.Write(testContext(), "fresh.txt", []byte("start"), true)
	require.NoError(t, err)
	assertContentEquals(t, op, "fresh.txt", []byte("start"))
}

func (suite *Suite) testStreamFinalize(t *testing.T) {
	op := suite.NewOperator(t)

	ws, err := op.OpenWriteStream(testContext(), "streamed.bin")
	require.NoError(t, err)

	chunks := [][]byte{generateData(1000), generateData(500), []byte("tail")}
	var want []byte
	for _, chunk := range chunks {
		n, err := ws.Write(testContext(), chunk)
		require.NoError(t, err)
		require.Equal(t, len(chunk), n)
		want = append(want, chunk...)
	}

	require.NoError(t, ws.Finalize(testContext()))
	assertContentEquals(t, op, "streamed.bin", want)
}

func (suite *Suite) testStreamNotVisibleBeforeFinalize(t *testing.T) {
	op := suite.NewOperator(t)

	ws, err := op.OpenWriteStream(testContext(), "pending.bin")
	require.NoError(t, err)
	_, err = ws.Write(testContext(), []byte("not yet"))
	require.NoError(t, err)

	// The key must not resolve until the stream is finalized.
	assertNotFound(t, op, "pending.bin")

	require.NoError(t, ws.Finalize(testContext()))
	assertContentEquals(t, op, "pending.bin", []byte("not yet"))
}

func (suite *Suite) testStreamAbort(t *testing.T) {
	op := suite.NewOperator(t)
	mustWrite(t, op, "keep.txt", []byte("original"))

	ws, err := op.OpenWriteStream(testContext(), "keep.txt")
	require.NoError(t, err)
	_, err = ws.Write(testContext(), []byte("discarded"))
	require.NoError(t, err)
	require.NoError(t, ws.Abort(testContext()))

	// Abort leaves the previous object untouched.
	assertContentEquals(t, op, "keep.txt", []byte("original"))
}

func (suite *Suite) testStreamOverwrite(t *testing.T) {
	op := suite.NewOperator(t)
	mustWrite(t, op, "swap.txt", []byte("before"))

	ws, err := op.OpenWriteStream(testContext(), "swap.txt")
	require.NoError(t, err)
	_, err = ws.Write(testContext(), []byte("after"))
	require.NoError(t, err)
	require.NoError(t, ws.Finalize(testContext()))

	assertContentEquals(t, op, "swap.txt", []byte("after"))
}
