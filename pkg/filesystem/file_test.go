package filesystem_test

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratofs/stratofs/pkg/operator"
)

func TestOpen_InvalidMode(t *testing.T) {
	fs := newTestFS(t)

	_, err := fs.Open(context.Background(), "mem://ns/a.txt", "rw")
	require.Error(t, err)
	assert.ErrorIs(t, err, operator.ErrInvalidArgument)
}

func TestOpen_ReadMissingObject(t *testing.T) {
	fs := newTestFS(t)

	_, err := fs.Open(context.Background(), "mem://ns/missing.txt", "r")
	require.Error(t, err)
	assert.True(t, operator.IsNotFound(err))
}

func TestOpen_ReadDirectoryFails(t *testing.T) {
	ctx := context.Background()
	fs := newTestFS(t)

	require.NoError(t, fs.WriteFile(ctx, "mem://ns/dir/a.txt", []byte("x")))

	_, err := fs.Open(ctx, "mem://ns/dir/", "r")
	require.Error(t, err)
	assert.ErrorIs(t, err, operator.ErrIsADirectory)
}

func TestFile_ReadSequential(t *testing.T) {
	ctx := context.Background()
	fs := newTestFS(t)

	require.NoError(t, fs.WriteFile(ctx, "mem://ns/seq.txt", []byte("0123456789")))

	f, err := fs.Open(ctx, "mem://ns/seq.txt", "r")
	require.NoError(t, err)
	defer f.Close(ctx)

	buf := make([]byte, 4)
	n, err := f.Read(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte("0123"), buf[:n])

	n, err = f.Read(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("4567"), buf[:n])

	n, err = f.Read(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("89"), buf[:n])

	_, err = f.Read(ctx, buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestFile_Seek(t *testing.T) {
	ctx := context.Background()
	fs := newTestFS(t)

	require.NoError(t, fs.WriteFile(ctx, "mem://ns/seek.txt", []byte("0123456789")))

	f, err := fs.Open(ctx, "mem://ns/seek.txt", "r")
	require.NoError(t, err)
	defer f.Close(ctx)

	pos, err := f.Seek(6, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(6), pos)

	buf := make([]byte, 10)
	n, err := f.Read(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("6789"), buf[:n])

	pos, err = f.Seek(-2, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(8), pos)

	_, err = f.Seek(-100, io.SeekCurrent)
	require.Error(t, err)
	assert.ErrorIs(t, err, operator.ErrInvalidArgument)
}

func TestFile_WriteCommitsOnClose(t *testing.T) {
	ctx := context.Background()
	fs := newTestFS(t)

	url := "mem://ns/written.txt"
	f, err := fs.Open(ctx, url, "w")
	require.NoError(t, err)

	_, err = f.Write(ctx, []byte("part one, "))
	require.NoError(t, err)
	_, err = f.Write(ctx, []byte("part two"))
	require.NoError(t, err)

	// Nothing visible before Close.
	exists, err := fs.Exists(ctx, url)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, f.Close(ctx))

	data, err := fs.ReadFile(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, []byte("part one, part two"), data)
}

func TestFile_AbortPublishesNothing(t *testing.T) {
	ctx := context.Background()
	fs := newTestFS(t)

	url := "mem://ns/aborted.txt"
	f, err := fs.Open(ctx, url, "w")
	require.NoError(t, err)

	_, err = f.Write(ctx, []byte("throwaway"))
	require.NoError(t, err)
	require.NoError(t, f.Abort(ctx))

	exists, err := fs.Exists(ctx, url)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFile_AppendMode(t *testing.T) {
	ctx := context.Background()
	fs := newTestFS(t)

	url := "mem://ns/log.txt"
	require.NoError(t, fs.WriteFile(ctx, url, []byte("first\n")))

	f, err := fs.Open(ctx, url, "a")
	require.NoError(t, err)
	_, err = f.Write(ctx, []byte("second\n"))
	require.NoError(t, err)
	require.NoError(t, f.Close(ctx))

	data, err := fs.ReadFile(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, []byte("first\nsecond\n"), data)
}

func TestOpen_WriteDirectoryURLFails(t *testing.T) {
	fs := newTestFS(t)

	_, err := fs.Open(context.Background(), "mem://ns/dir/", "w")
	require.Error(t, err)
	assert.ErrorIs(t, err, operator.ErrIsADirectory)
}
