package database

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lecternhq/lectern/internal/models"
)

type fakeTx struct {
	commitErr error
	commits   int
	rollbacks int
}

func (f *fakeTx) Commit(ctx context.Context) error {
	f.commits++
	return f.commitErr
}

func (f *fakeTx) Rollback(ctx context.Context) error {
	f.rollbacks++
	return nil
}

func TestFinishTx_Success(t *testing.T) {
	tx := &fakeTx{}

	err := finishTx(context.Background(), tx, func() error { return nil })

	require.NoError(t, err)
	assert.Equal(t, 1, tx.commits)
	assert.Equal(t, 0, tx.rollbacks)
}

func TestFinishTx_FnErrorRollsBack(t *testing.T) {
	tx := &fakeTx{}
	boom := errors.New("domain failure")

	err := finishTx(context.Background(), tx, func() error { return boom })

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, tx.commits)
	assert.Equal(t, 1, tx.rollbacks)
}

func TestFinishTx_CommitFailureReachesCaller(t *testing.T) {
	commitErr := errors.New("connection reset during commit")
	tx := &fakeTx{commitErr: commitErr}

	err := finishTx(context.Background(), tx, func() error { return nil })

	// A lost commit must never look like success to the caller.
	assert.ErrorIs(t, err, commitErr)
	assert.Equal(t, 1, tx.commits)
}

func TestFinishTx_CommitTimeoutMapsToStorageUnavailable(t *testing.T) {
	tx := &fakeTx{commitErr: context.DeadlineExceeded}

	err := finishTx(context.Background(), tx, func() error { return nil })

	assert.ErrorIs(t, err, models.ErrStorageUnavailable)
}

func TestFinishTx_PanicRollsBackAndRethrows(t *testing.T) {
	tx := &fakeTx{}

	assert.Panics(t, func() {
		_ = finishTx(context.Background(), tx, func() error { panic("boom") })
	})
	assert.Equal(t, 0, tx.commits)
	assert.Equal(t, 1, tx.rollbacks)
}
