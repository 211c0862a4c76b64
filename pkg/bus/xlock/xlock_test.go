package xlock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLockContextCanceled(t *testing.T) {
	l := New()
	l.Lock()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Equal(t, context.DeadlineExceeded, l.LockContext(ctx))
	l.Unlock()
	require.NoError(t, l.LockContext(context.Background()))
	l.Unlock()
}

func TestBlockingWaitsForContextHolder(t *testing.T) {
	l := New()
	require.NoError(t, l.LockContext(context.Background()))
	acquired := make(chan struct{})
	go func() {
		l.Lock()
		close(acquired)
	}()
	select {
	case <-acquired:
		t.Fatal("blocking path acquired a held lock")
	case <-time.After(50 * time.Millisecond):
	}
	l.Unlock()
	select {
	case <-acquired:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("blocking path not released")
	}
	l.Unlock()
}

func TestMutualExclusion(t *testing.T) {
	l := New()
	var inside, violations int32
	var wg sync.WaitGroup
	enter := func() {
		if atomic.AddInt32(&inside, 1) != 1 {
			atomic.AddInt32(&violations, 1)
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt32(&inside, -1)
	}
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for n := 0; n < 10; n++ {
				l.Lock()
				enter()
				l.Unlock()
			}
		}()
		go func() {
			defer wg.Done()
			for n := 0; n < 10; n++ {
				if err := l.LockContext(context.Background()); err != nil {
					atomic.AddInt32(&violations, 1)
					return
				}
				enter()
				l.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Zero(t, atomic.LoadInt32(&violations))
}
