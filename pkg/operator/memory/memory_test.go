package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratofs/stratofs/pkg/operator"
	"github.com/stratofs/stratofs/pkg/operator/memory"
	"github.com/stratofs/stratofs/pkg/operator/optest"
)

func TestMemoryOperator(t *testing.T) {
	suite := &optest.Suite{
		NewOperator: func(t *testing.T) operator.Operator {
			op, err := memory.New(context.Background())
			require.NoError(t, err)
			return op
		},
	}
	suite.Run(t)
}

func TestMemoryOperator_ClosedRejectsOperations(t *testing.T) {
	ctx := context.Background()
	op, err := memory.New(ctx)
	require.NoError(t, err)

	require.NoError(t, op.Write(ctx, "a.txt", []byte("x"), false))
	require.NoError(t, op.Close(ctx))

	_, err = op.Stat(ctx, "a.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, operator.ErrBackendUnavailable)
}

func TestMemoryOperator_StatMarkerOnlyDir(t *testing.T) {
	ctx := context.Background()
	op, err := memory.New(ctx)
	require.NoError(t, err)

	require.NoError(t, op.CreateDir(ctx, "made/dir"))

	// The marker alone must satisfy a stat, slash or not.
	for _, key := range []string{"made/dir", "made/dir/"} {
		meta, err := op.Stat(ctx, key)
		require.NoError(t, err, "stat %q", key)
		assert.True(t, meta.IsDir)
		assert.Equal(t, "made/dir/", meta.Key)
	}
}

func TestMemoryOperator_ReadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	op, err := memory.New(ctx)
	require.NoError(t, err)

	require.NoError(t, op.Write(ctx, "a.txt", []byte("abc"), false))

	data, err := op.ReadRange(ctx, "a.txt", 0, -1)
	require.NoError(t, err)
	data[0] = 'X'

	// Mutating the returned slice must not touch the stored object.
	again, err := op.ReadRange(ctx, "a.txt", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestMemoryOperator_NativeCopy(t *testing.T) {
	ctx := context.Background()
	op, err := memory.New(ctx)
	require.NoError(t, err)

	require.NoError(t, op.Write(ctx, "src.txt", []byte("payload"), false))

	copier, ok := operator.Operator(op).(operator.Copier)
	require.True(t, ok, "memory operator should support native copy")
	require.NoError(t, copier.Copy(ctx, "src.txt", "dst.txt"))

	data, err := op.ReadRange(ctx, "dst.txt", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	// Source survives a copy.
	_, err = op.Stat(ctx, "src.txt")
	require.NoError(t, err)
}
