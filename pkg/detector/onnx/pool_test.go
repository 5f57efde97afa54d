package onnx

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	destroyed bool
}

func (f *fakeRunner) Run(_, _ []tensor) error { return nil }

func (f *fakeRunner) Destroy() error {
	f.destroyed = true
	return nil
}

func TestSessionPoolAcquireRelease(t *testing.T) {
	var made []*fakeRunner
	pool, err := newSessionPool(2, func() (runner, error) {
		r := &fakeRunner{}
		made = append(made, r)
		return r, nil
	})
	require.NoError(t, err)
	require.Len(t, made, 2)

	a, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	b, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	m := pool.Metrics()
	assert.Equal(t, 2, m.PoolSize)
	assert.Equal(t, 2, m.InUse)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = pool.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	pool.Release(a)
	pool.Release(b)

	m = pool.Metrics()
	assert.Equal(t, 0, m.InUse)
	assert.Equal(t, int64(2), m.TotalAcquired)
	assert.Equal(t, int64(2), m.TotalReleased)
	assert.Equal(t, int64(1), m.AcquireFailures)

	pool.Destroy()
	for _, r := range made {
		assert.True(t, r.destroyed)
	}

	_, err = pool.Acquire(context.Background())
	assert.Error(t, err)
}

func TestSessionPoolInitFailureDestroysCreated(t *testing.T) {
	first := &fakeRunner{}
	calls := 0
	_, err := newSessionPool(3, func() (runner, error) {
		calls++
		if calls == 1 {
			return first, nil
		}
		return nil, errors.New("boom")
	})

	require.Error(t, err)
	assert.True(t, first.destroyed)
}
