package fs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratofs/stratofs/pkg/operator"
	"github.com/stratofs/stratofs/pkg/operator/fs"
	"github.com/stratofs/stratofs/pkg/operator/optest"
)

func TestFSOperator(t *testing.T) {
	suite := &optest.Suite{
		NewOperator: func(t *testing.T) operator.Operator {
			op, err := fs.New(context.Background(), t.TempDir())
			require.NoError(t, err)
			return op
		},
	}
	suite.Run(t)
}

func TestFSOperator_RejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	op, err := fs.New(ctx, root)
	require.NoError(t, err)

	// Keys are normalized before they reach the operator, but raw escapes
	// must still be refused at this layer.
	err = op.Write(ctx, "../outside.txt", []byte("x"), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, operator.ErrInvalidPath)

	_, statErr := os.Stat(filepath.Join(filepath.Dir(root), "outside.txt"))
	assert.True(t, os.IsNotExist(statErr), "no file may appear outside the root")
}

func TestFSOperator_UncreatableRoot(t *testing.T) {
	// A root nested under a regular file cannot be created.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err := fs.New(context.Background(), filepath.Join(blocker, "root"))
	require.Error(t, err)
}

func TestFSOperator_NoPartialFileOnAbort(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	op, err := fs.New(ctx, root)
	require.NoError(t, err)

	ws, err := op.OpenWriteStream(ctx, "big.bin")
	require.NoError(t, err)
	_, err = ws.Write(ctx, make([]byte, 1<<20))
	require.NoError(t, err)
	require.NoError(t, ws.Abort(ctx))

	// Neither the final file nor a temp file may remain.
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFSOperator_NativeRenameMovesFile(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	op, err := fs.New(ctx, root)
	require.NoError(t, err)

	require.NoError(t, op.CreateDir(ctx, "a"))
	require.NoError(t, op.Write(ctx, "a/f.txt", []byte("x"), false))
	require.NoError(t, op.Rename(ctx, "a/f.txt", "b/g.txt"))

	_, err = os.Stat(filepath.Join(root, "b", "g.txt"))
	require.NoError(t, err)
}
