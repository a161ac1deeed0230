package txn

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quern/quern/internal/errors"
)

func TestLockManager_ReadersShareWritersExclude(t *testing.T) {
	m := NewLockManager()
	ctx := context.Background()
	read := []LockRequest{{Table: "T"}}
	write := []LockRequest{{Table: "T", Write: true}}

	// Two concurrent readers.
	require.NoError(t, m.Acquire(ctx, read))
	require.NoError(t, m.Acquire(ctx, read))

	// A writer blocks until both release.
	var acquired atomic.Bool
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		require.NoError(t, m.Acquire(ctx, write))
		acquired.Store(true)
		m.Release(write)
	}()

	time.Sleep(20 * time.Millisecond)
	assert.False(t, acquired.Load())

	m.Release(read)
	time.Sleep(20 * time.Millisecond)
	assert.False(t, acquired.Load())

	m.Release(read)
	wg.Wait()
	assert.True(t, acquired.Load())
}

func TestLockManager_WriteWinsOnMergedRequest(t *testing.T) {
	m := NewLockManager()
	ctx := context.Background()

	// The same table requested in both modes takes only the write lock.
	both := []LockRequest{{Table: "T"}, {Table: "T", Write: true}}
	require.NoError(t, m.Acquire(ctx, both))

	blocked := make(chan struct{})
	go func() {
		_ = m.Acquire(ctx, []LockRequest{{Table: "T"}})
		close(blocked)
	}()
	select {
	case <-blocked:
		t.Fatal("reader acquired while writer held")
	case <-time.After(20 * time.Millisecond):
	}

	m.Release(both)
	select {
	case <-blocked:
	case <-time.After(time.Second):
		t.Fatal("reader never woke up")
	}
}

func TestLockManager_CancelledAcquireReleasesPartial(t *testing.T) {
	m := NewLockManager()
	ctx := context.Background()

	// Hold B exclusively so a multi-table acquire stalls on it.
	require.NoError(t, m.Acquire(ctx, []LockRequest{{Table: "B", Write: true}}))

	cancelCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- m.Acquire(cancelCtx, []LockRequest{
			{Table: "A", Write: true},
			{Table: "B", Write: true},
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	err := <-done
	require.Error(t, err)
	assert.Equal(t, errors.CodeCancelled, errors.CodeOf(err))

	// A was released on the way out; it is immediately acquirable.
	quick, quickCancel := context.WithTimeout(ctx, time.Second)
	defer quickCancel()
	assert.NoError(t, m.Acquire(quick, []LockRequest{{Table: "A", Write: true}}))
}
