package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/streamcep/errors"
)

func TestStream_PutGetOrder(t *testing.T) {
	s := New[int](WithCapacity(8))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Put(ctx, i))
	}
	s.Close()

	var got []int
	for v := range s.Items() {
		got = append(got, v)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestStream_CloseDrainsRemaining(t *testing.T) {
	s := New[string](WithCapacity(4))
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "a"))
	require.NoError(t, s.Put(ctx, "b"))
	s.Close()

	v, ok := s.Get()
	require.True(t, ok)
	assert.Equal(t, "a", v)

	v, ok = s.Get()
	require.True(t, ok)
	assert.Equal(t, "b", v)

	_, ok = s.Get()
	assert.False(t, ok)
}

func TestStream_PutAfterCloseFails(t *testing.T) {
	s := New[int]()
	s.Close()

	err := s.Put(context.Background(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrStreamClosed)
}

func TestStream_CloseIdempotent(t *testing.T) {
	s := New[int]()
	s.Close()
	assert.NotPanics(t, s.Close)
}

func TestStream_PutBlocksWhenFull(t *testing.T) {
	s := New[int](WithCapacity(1))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, s.Put(ctx, 1))

	err := s.Put(ctx, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStream_BlockedPutResumesOnGet(t *testing.T) {
	s := New[int](WithCapacity(1))
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, 1))

	done := make(chan error, 1)
	go func() {
		done <- s.Put(ctx, 2)
	}()

	v, ok := s.Get()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("blocked Put did not resume after Get")
	}

	v, ok = s.Get()
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestStream_Capacity(t *testing.T) {
	assert.Equal(t, 16, New[int](WithCapacity(16)).Cap())
	assert.Equal(t, defaultCapacity, New[int]().Cap())
	assert.Equal(t, defaultCapacity, New[int](WithCapacity(-1)).Cap())
}
