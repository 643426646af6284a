package badger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratofs/stratofs/pkg/operator"
	"github.com/stratofs/stratofs/pkg/operator/badger"
	"github.com/stratofs/stratofs/pkg/operator/optest"
)

func newTestOperator(t *testing.T) operator.Operator {
	t.Helper()
	op, err := badger.New(context.Background(), badger.Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = op.Close(context.Background())
	})
	return op
}

func TestBadgerOperator(t *testing.T) {
	suite := &optest.Suite{NewOperator: newTestOperator}
	suite.Run(t)
}

func TestBadgerOperator_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	op, err := badger.New(ctx, badger.Config{Path: dir})
	require.NoError(t, err)
	require.NoError(t, op.Write(ctx, "persisted.txt", []byte("still here"), false))
	require.NoError(t, op.Close(ctx))

	reopened, err := badger.New(ctx, badger.Config{Path: dir})
	require.NoError(t, err)
	defer reopened.Close(ctx)

	data, err := reopened.ReadRange(ctx, "persisted.txt", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []byte("still here"), data)
}

func TestBadgerOperator_ClosedRejectsOperations(t *testing.T) {
	ctx := context.Background()
	op, err := badger.New(ctx, badger.Config{InMemory: true})
	require.NoError(t, err)
	require.NoError(t, op.Close(ctx))

	_, err = op.Stat(ctx, "anything")
	require.Error(t, err)
	assert.ErrorIs(t, err, operator.ErrBackendUnavailable)
}

func TestBadgerOperator_RequiresPathOrInMemory(t *testing.T) {
	_, err := badger.New(context.Background(), badger.Config{})
	require.Error(t, err)
	assert.ErrorIs(t, err, operator.ErrInvalidConfig)
}
