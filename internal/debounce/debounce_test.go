package debounce

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	calls map[string][]int
	err   error
}

func (r *recorder) flush(_ context.Context, key string, v int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = map[string][]int{}
	}
	r.calls[key] = append(r.calls[key], v)
	return r.err
}

func (r *recorder) get(key string) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.calls[key]...)
}

func sum(a, b int) int { return a + b }

func isPending(d *Debouncer[string, int], key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[key]
	return ok
}

func TestTrigger_Coalesces(t *testing.T) {
	rec := &recorder{}
	d := New[string, int](30*time.Millisecond, sum, rec.flush)

	for i := 1; i <= 5; i++ {
		require.NoError(t, d.Trigger("deal-1", i))
	}
	assert.True(t, isPending(d, "deal-1"))
	assert.Empty(t, rec.get("deal-1"))

	assert.Eventually(t, func() bool {
		return len(rec.get("deal-1")) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{15}, rec.get("deal-1"))
	assert.False(t, isPending(d, "deal-1"))
}

func TestTrigger_KeysAreIndependent(t *testing.T) {
	rec := &recorder{}
	d := New[string, int](20*time.Millisecond, sum, rec.flush)

	require.NoError(t, d.Trigger("a", 1))
	require.NoError(t, d.Trigger("b", 2))
	require.NoError(t, d.Flush(context.Background(), "a"))

	assert.Equal(t, []int{1}, rec.get("a"))
	assert.True(t, isPending(d, "b"))
	assert.Eventually(t, func() bool {
		return len(rec.get("b")) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestFlush_NothingPending(t *testing.T) {
	rec := &recorder{}
	d := New[string, int](time.Hour, sum, rec.flush)
	require.NoError(t, d.Flush(context.Background(), "x"))
	assert.Empty(t, rec.get("x"))
}

func TestFlush_ReturnsError(t *testing.T) {
	rec := &recorder{err: errors.New("db down")}
	d := New[string, int](time.Hour, sum, rec.flush)
	require.NoError(t, d.Trigger("x", 1))
	assert.ErrorContains(t, d.Flush(context.Background(), "x"), "db down")
	assert.False(t, isPending(d, "x"))
}

func TestClose_FlushesPendingAndRejects(t *testing.T) {
	rec := &recorder{}
	d := New[string, int](time.Hour, sum, rec.flush)

	require.NoError(t, d.Trigger("a", 1))
	require.NoError(t, d.Trigger("a", 2))
	require.NoError(t, d.Trigger("b", 5))

	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, []int{3}, rec.get("a"))
	assert.Equal(t, []int{5}, rec.get("b"))

	assert.ErrorIs(t, d.Trigger("a", 1), ErrClosed)
	assert.False(t, isPending(d, "a"))
}

func TestClose_JoinsErrors(t *testing.T) {
	rec := &recorder{err: errors.New("boom")}
	d := New[string, int](time.Hour, sum, rec.flush)
	require.NoError(t, d.Trigger("a", 1))
	assert.ErrorContains(t, d.Close(context.Background()), "boom")
}

func TestFlush_WaitsForTimerFlushOfSameKey(t *testing.T) {
	var (
		mu      sync.Mutex
		written []int
	)
	started := make(chan struct{})
	release := make(chan struct{})
	flush := func(_ context.Context, _ string, v int) error {
		if v == 1 {
			close(started)
			<-release
		}
		mu.Lock()
		written = append(written, v)
		mu.Unlock()
		return nil
	}
	d := New[string, int](time.Millisecond, sum, flush)

	require.NoError(t, d.Trigger("deal-1", 1))
	<-started

	require.NoError(t, d.Trigger("deal-1", 10))
	done := make(chan error, 1)
	go func() { done <- d.Flush(context.Background(), "deal-1") }()

	select {
	case <-done:
		t.Fatal("flush of newer edit finished before the older one")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 10}, written)
}

func TestClose_WaitsForTimerFlush(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var flushed bool
	d := New[string, int](time.Millisecond, sum, func(context.Context, string, int) error {
		close(started)
		<-release
		flushed = true
		return nil
	})

	require.NoError(t, d.Trigger("a", 1))
	<-started
	go func() {
		time.Sleep(10 * time.Millisecond)
		close(release)
	}()
	require.NoError(t, d.Close(context.Background()))
	assert.True(t, flushed)
}
