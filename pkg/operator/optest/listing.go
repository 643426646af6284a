package optest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// RunListingTests executes the listing contract tests.
func (suite *Suite) RunListingTests(t *testing.T) {
	t.Run("List_Shallow", suite.testListShallow)
	t.Run("List_Recursive", suite.testListRecursive)
	t.Run("List_EmptyPrefix", suite.testListEmptyPrefix)
	t.Run("List_Root", suite.testListRoot)
	t.Run("List_ExcludesMarker", suite.testListExcludesMarker)
}

func (suite *Suite) testListShallow(t *testing.T) {
	op := suite.NewOperator(t)
	mustWrite(t, op, "data/a.txt", []byte("a"))
	mustWrite(t, op, "data/b.txt", []byte("b"))
	mustWrite(t, op, "data/sub/c.txt", []byte("c"))

	entries := mustList(t, op, "data/", false)
	keys := listKeys(entries)

	// Direct children only; the nested key collapses into one directory
	// entry the way S3's delimiter listing does.
	assert.ElementsMatch(t, []string{"data/a.txt", "data/b.txt", "data/sub/"}, keys)
	for _, e := range entries {
		if e.Key == "data/sub/" {
			assert.True(t, e.IsDir)
		}
	}
}

func (suite *Suite) testListRecursive(t *testing.T) {
	op := suite.NewOperator(t)
	mustWrite(t, op, "data/a.txt", []byte("a"))
	mustWrite(t, op, "data/sub/c.txt", []byte("c"))
	mustWrite(t, op, "data/sub/deep/d.txt", []byte("d"))

	entries := mustList(t, op, "data/", true)
	keys := listKeys(entries)

	assert.Subset(t, keys, []string{"data/a.txt", "data/sub/c.txt", "data/sub/deep/d.txt"})
	for _, e := range entries {
		if !e.IsDir {
			assert.Equal(t, int64(1), e.Size, "file %q", e.Key)
		}
	}
}

func (suite *Suite) testListEmptyPrefix(t *testing.T) {
	op := suite.NewOperator(t)
	mustWrite(t, op, "elsewhere.txt", []byte("x"))

	// Listing a prefix with no entries yields an empty result, not an error.
	entries := mustList(t, op, "nothing/here/", false)
	assert.Empty(t, entries)
}

func (suite *Suite) testListRoot(t *testing.T) {
	op := suite.NewOperator(t)
	mustWrite(t, op, "top.txt", []byte("x"))
	mustWrite(t, op, "dir/nested.txt", []byte("y"))

	entries := mustList(t, op, "", false)
	keys := listKeys(entries)

	assert.Contains(t, keys, "top.txt")
	assert.Contains(t, keys, "dir/")
}

func (suite *Suite) testListExcludesMarker(t *testing.T) {
	op := suite.NewOperator(t)
	mustWrite(t, op, "d/file.txt", []byte("x"))

	// A directory's own marker never appears among its children.
	entries := mustList(t, op, "d/", false)
	assert.NotContains(t, listKeys(entries), "d/")
}
