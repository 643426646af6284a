package filesystem_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratofs/stratofs/pkg/filesystem"
	"github.com/stratofs/stratofs/pkg/operator"
	"github.com/stratofs/stratofs/pkg/registry"
	"github.com/stratofs/stratofs/pkg/services"
)

// newTestFS builds an isolated filesystem instance with all built-in schemes
// on a private table.
func newTestFS(t *testing.T, opts ...filesystem.Option) *filesystem.FileSystem {
	t.Helper()

	table := registry.NewTable()
	require.NoError(t, services.RegisterAll(table))

	fs := filesystem.New(append([]filesystem.Option{filesystem.WithTable(table)}, opts...)...)
	t.Cleanup(func() {
		_ = fs.Close(context.Background())
	})
	return fs
}

func TestFileSystem_WriteReadStatRemove(t *testing.T) {
	ctx := context.Background()
	fs := newTestFS(t)

	url := "mem://ns/data/a.txt"
	require.NoError(t, fs.WriteFile(ctx, url, []byte("hello")))

	info, err := fs.Info(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)
	assert.False(t, info.IsDir)
	assert.Equal(t, "data/a.txt", info.Key)

	data, err := fs.ReadFile(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	entries, err := fs.List(ctx, "mem://ns/data/", filesystem.ListOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "data/a.txt", entries[0].Key)

	require.NoError(t, fs.Remove(ctx, url, filesystem.RemoveOptions{}))

	exists, err := fs.Exists(ctx, url)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFileSystem_ReadRange(t *testing.T) {
	ctx := context.Background()
	fs := newTestFS(t)

	url := "mem://ns/r.txt"
	require.NoError(t, fs.WriteFile(ctx, url, []byte("0123456789")))

	part, err := fs.ReadFileRange(ctx, url, 3, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte("3456"), part)
}

func TestFileSystem_UnknownScheme(t *testing.T) {
	fs := newTestFS(t)

	_, err := fs.Info(context.Background(), "gopher://x/y")
	require.Error(t, err)
	assert.ErrorIs(t, err, operator.ErrUnknownScheme)
}

func TestFileSystem_InvalidURL(t *testing.T) {
	fs := newTestFS(t)

	_, err := fs.Info(context.Background(), "no-scheme-here")
	require.Error(t, err)
	assert.ErrorIs(t, err, operator.ErrInvalidPath)
}

func TestFileSystem_MkdirAndList(t *testing.T) {
	ctx := context.Background()
	fs := newTestFS(t)

	require.NoError(t, fs.Mkdir(ctx, "mem://ns/made/dir"))

	info, err := fs.Info(ctx, "mem://ns/made/dir")
	require.NoError(t, err)
	assert.True(t, info.IsDir)

	entries, err := fs.List(ctx, "mem://ns/made/", filesystem.ListOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "made/dir/", entries[0].Key)
	assert.True(t, entries[0].IsDir)
}

func TestRemove_StrictMissingKey(t *testing.T) {
	ctx := context.Background()
	fs := newTestFS(t)

	// Default removal of a missing key is silent.
	require.NoError(t, fs.Remove(ctx, "mem://ns/ghost.txt", filesystem.RemoveOptions{}))

	// Strict removal surfaces it.
	err := fs.Remove(ctx, "mem://ns/ghost.txt", filesystem.RemoveOptions{Strict: true})
	require.Error(t, err)
	assert.True(t, operator.IsNotFound(err))
}

func TestRemove_RecursiveDirectory(t *testing.T) {
	ctx := context.Background()
	fs := newTestFS(t)

	require.NoError(t, fs.WriteFile(ctx, "mem://ns/tree/a.txt", []byte("a")))
	require.NoError(t, fs.WriteFile(ctx, "mem://ns/tree/sub/b.txt", []byte("b")))

	// Non-recursive removal of a non-empty directory fails.
	err := fs.Remove(ctx, "mem://ns/tree/", filesystem.RemoveOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, operator.ErrInvalidArgument)

	require.NoError(t, fs.Remove(ctx, "mem://ns/tree/", filesystem.RemoveOptions{Recursive: true}))

	for _, url := range []string{"mem://ns/tree/a.txt", "mem://ns/tree/sub/b.txt", "mem://ns/tree/"} {
		exists, err := fs.Exists(ctx, url)
		require.NoError(t, err)
		assert.False(t, exists, url)
	}
}

func TestRename_SameBackend(t *testing.T) {
	ctx := context.Background()
	fs := newTestFS(t)

	require.NoError(t, fs.WriteFile(ctx, "mem://ns/old.txt", []byte("content")))
	require.NoError(t, fs.Rename(ctx, "mem://ns/old.txt", "mem://ns/dir/new.txt"))

	exists, err := fs.Exists(ctx, "mem://ns/old.txt")
	require.NoError(t, err)
	assert.False(t, exists)

	data, err := fs.ReadFile(ctx, "mem://ns/dir/new.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("content"), data)
}

func TestRename_CrossBackend(t *testing.T) {
	ctx := context.Background()
	fs := newTestFS(t)

	dir := t.TempDir()
	src := "mem://ns/migrate.txt"
	dst := "file:///out.txt?root=" + dir

	require.NoError(t, fs.WriteFile(ctx, src, []byte("moving day")))
	require.NoError(t, fs.Rename(ctx, src, dst))

	exists, err := fs.Exists(ctx, src)
	require.NoError(t, err)
	assert.False(t, exists)

	data, err := fs.ReadFile(ctx, dst)
	require.NoError(t, err)
	assert.Equal(t, []byte("moving day"), data)
}

func TestCopy_SameAndCrossBackend(t *testing.T) {
	ctx := context.Background()
	fs := newTestFS(t)

	require.NoError(t, fs.WriteFile(ctx, "mem://ns/src.txt", []byte("dup")))

	// Same backend uses the native copy.
	require.NoError(t, fs.Copy(ctx, "mem://ns/src.txt", "mem://ns/copy.txt"))
	data, err := fs.ReadFile(ctx, "mem://ns/copy.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("dup"), data)

	// Source stays intact.
	exists, err := fs.Exists(ctx, "mem://ns/src.txt")
	require.NoError(t, err)
	assert.True(t, exists)

	// Cross backend degrades to read-then-write.
	dir := t.TempDir()
	dst := "file:///copied.txt?root=" + dir
	require.NoError(t, fs.Copy(ctx, "mem://ns/src.txt", dst))
	data, err = fs.ReadFile(ctx, dst)
	require.NoError(t, err)
	assert.Equal(t, []byte("dup"), data)
}

func TestSchemeDefaults_Applied(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	fs := newTestFS(t, filesystem.WithSchemeDefaults("file", map[string]string{"root": dir}))

	// No root in the URL; the scheme default supplies it.
	require.NoError(t, fs.WriteFile(ctx, "file:///noroot.txt", []byte("x")))

	data, err := fs.ReadFile(ctx, "file:///noroot.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)
}

func TestClose_RejectsLaterOperations(t *testing.T) {
	ctx := context.Background()
	fs := newTestFS(t)

	require.NoError(t, fs.WriteFile(ctx, "mem://ns/a.txt", []byte("x")))
	require.NoError(t, fs.Close(ctx))

	err := fs.WriteFile(ctx, "mem://ns/b.txt", []byte("y"))
	require.Error(t, err)
	assert.ErrorIs(t, err, operator.ErrBridgeClosed)
}

func TestClose_DrainsInFlightWrite(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fs := newTestFS(t, filesystem.WithGracePeriod(10*time.Second))

	url := "file:///slow.bin?root=" + dir
	fut, err := fs.WriteFileAsync(ctx, url, make([]byte, 4<<20))
	require.NoError(t, err)

	require.NoError(t, fs.Close(ctx))

	// The write either completed before teardown finished or not at all;
	// a completed write must be fully visible.
	_, err, ok := fut.TryResult()
	require.True(t, ok)
	require.NoError(t, err)
}

func TestAsyncVariants(t *testing.T) {
	ctx := context.Background()
	fs := newTestFS(t)

	wfut, err := fs.WriteFileAsync(ctx, "mem://ns/async.txt", []byte("deferred"))
	require.NoError(t, err)
	_, err = wfut.Wait(ctx)
	require.NoError(t, err)

	rfut, err := fs.ReadFileAsync(ctx, "mem://ns/async.txt")
	require.NoError(t, err)
	value, err := rfut.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("deferred"), value.([]byte))

	efut, err := fs.ExistsAsync(ctx, "mem://ns/async.txt")
	require.NoError(t, err)
	value, err = efut.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, true, value)

	ifut, err := fs.InfoAsync(ctx, "mem://ns/async.txt")
	require.NoError(t, err)
	value, err = ifut.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(8), value.(*filesystem.Info).Size)
}

func TestOperatorReuse_AcrossCalls(t *testing.T) {
	ctx := context.Background()
	fs := newTestFS(t)

	// Two URLs on the same (scheme, config) must see each other's writes,
	// proving they share one backend instance.
	require.NoError(t, fs.WriteFile(ctx, "mem://ns/one.txt", []byte("1")))
	require.NoError(t, fs.WriteFile(ctx, "mem://ns/two.txt", []byte("2")))

	entries, err := fs.List(ctx, "mem://ns/", filesystem.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	// A different namespace is a different backend.
	entries, err = fs.List(ctx, "mem://other/", filesystem.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}
