package optest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunDeleteRenameTests executes the delete and rename contract tests.
func (suite *Suite) RunDeleteRenameTests(t *testing.T) {
	t.Run("Delete_Basic", suite.testDeleteBasic)
	t.Run("Delete_Idempotent", suite.testDeleteIdempotent)
	t.Run("Rename_Basic", suite.testRenameBasic)
	t.Run("Rename_Overwrite", suite.testRenameOverwrite)
}

// RunDirectoryTests executes the directory contract tests.
func (suite *Suite) RunDirectoryTests(t *testing.T) {
	t.Run("CreateDir_Basic", suite.testCreateDirBasic)
	t.Run("CreateDir_Idempotent", suite.testCreateDirIdempotent)
	t.Run("CreateDir_TrailingSlash", suite.testCreateDirTrailingSlash)
}

func (suite *Suite) testDeleteBasic(t *testing.T) {
	op := suite.NewOperator(t)
	mustWrite(t, op, "doomed.txt", []byte("x"))

	require.NoError(t, op.Delete(testContext(), "doomed.txt"))
	assertNotFound(t, op, "doomed.txt")
}

func (suite *Suite) testDeleteIdempotent(t *testing.T) {
	op := suite.NewOperator(t)

	// Deleting a missing key succeeds; strictness is the dispatcher's job.
	require.NoError(t, op.Delete(testContext(), "never-existed.txt"))
}

func (suite *Suite) testRenameBasic(t *testing.T) {
	op := suite.NewOperator(t)
	data := generateData(256)
	mustWrite(t, op, "old.bin", data)

	require.NoError(t, op.Rename(testContext(), "old.bin", "new.bin"))

	assertNotFound(t, op, "old.bin")
	assertContentEquals(t, op, "new.bin", data)
}

func (suite *Suite) testRenameOverwrite(t *testing.T) {
	op := suite.NewOperator(t)
	mustWrite(t, op, "src.txt", []byte("source"))
	mustWrite(t, op, "dst.txt", []byte("target"))

	require.NoError(t, op.Rename(testContext(), "src.txt", "dst.txt"))
	assertContentEquals(t, op, "dst.txt", []byte("source"))
}

func (suite *Suite) testCreateDirBasic(t *testing.T) {
	op := suite.NewOperator(t)

	require.NoError(t, op.CreateDir(testContext(), "made/up/path"))

	meta := mustStat(t, op, "made/up/path")
	assert.True(t, meta.IsDir)
}

func (suite *Suite) testCreateDirIdempotent(t *testing.T) {
	op := suite.NewOperator(t)

	require.NoError(t, op.CreateDir(testContext(), "dup"))
	require.NoError(t, op.CreateDir(testContext(), "dup"))
}

func (suite *Suite) testCreateDirTrailingSlash(t *testing.T) {
	op := suite.NewOperator(t)

	// With or without the slash, the same directory comes back.
	require.NoError(t, op.CreateDir(testContext(), "slashed/"))
	meta := mustStat(t, op, "slashed/")
	assert.True(t, meta.IsDir)
}
