// Package debounce coalesces rapid updates per key. Each key owns its own
// timer; pending values are merged until the key has been quiet for the
// configured delay, then flushed once.
package debounce

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrClosed is returned by Trigger after Close.
var ErrClosed = eris.New("debounce: closed")

// FlushFunc persists the merged value of one key.
type FlushFunc[K comparable, V any] func(ctx context.Context, key K, v V) error

type pending[V any] struct {
	value V
	timer *time.Timer
}

// Debouncer merges values per key and flushes them after a quiet period.
type Debouncer[K comparable, V any] struct {
	delay time.Duration
	merge func(prev, next V) V
	flush FlushFunc[K, V]

	mu      sync.Mutex
	pending map[K]*pending[V]
	closed  bool

	// flushMu is taken before mu whenever a value leaves pending, so values
	// reach flush in the order they were taken.
	flushMu sync.Mutex
}

// New creates a Debouncer. merge combines a pending value with a newer one.
func New[K comparable, V any](delay time.Duration, merge func(prev, next V) V, flush FlushFunc[K, V]) *Debouncer[K, V] {
	return &Debouncer[K, V]{
		delay:   delay,
		merge:   merge,
		flush:   flush,
		pending: make(map[K]*pending[V]),
	}
}

// Trigger records v for key and restarts the key's timer.
func (d *Debouncer[K, V]) Trigger(key K, v V) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}

	if prev, ok := d.pending[key]; ok {
		prev.timer.Stop()
		v = d.merge(prev.value, v)
	}
	// A fresh entry per trigger lets a stale timer detect it was superseded.
	p := &pending[V]{value: v}
	d.pending[key] = p
	p.timer = time.AfterFunc(d.delay, func() { d.fire(key, p) })
	return nil
}

func (d *Debouncer[K, V]) fire(key K, p *pending[V]) {
	d.flushMu.Lock()
	defer d.flushMu.Unlock()

	d.mu.Lock()
	if d.pending[key] != p {
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.mu.Unlock()

	if err := d.flush(context.Background(), key, p.value); err != nil {
		zap.L().Error("debounce: flush failed", zap.Any("key", key), zap.Error(err))
	}
}

// take removes and returns the pending value of key. Callers hold mu.
func (d *Debouncer[K, V]) take(key K) (V, bool) {
	p, ok := d.pending[key]
	if !ok {
		var zero V
		return zero, false
	}
	p.timer.Stop()
	delete(d.pending, key)
	return p.value, true
}

// Flush writes the pending value of key now. It is a no-op when nothing is
// pending.
func (d *Debouncer[K, V]) Flush(ctx context.Context, key K) error {
	d.flushMu.Lock()
	defer d.flushMu.Unlock()

	d.mu.Lock()
	v, ok := d.take(key)
	d.mu.Unlock()
	if !ok {
		return nil
	}
	return d.flush(ctx, key, v)
}

// Close rejects new triggers and flushes every pending key. A timer-driven
// flush already in progress finishes first.
func (d *Debouncer[K, V]) Close(ctx context.Context) error {
	d.flushMu.Lock()
	d.mu.Lock()
	d.closed = true
	keys := make([]K, 0, len(d.pending))
	for k := range d.pending {
		keys = append(keys, k)
	}
	values := make([]V, len(keys))
	for i, k := range keys {
		values[i], _ = d.take(k)
	}
	d.mu.Unlock()

	var errs []error
	for i, k := range keys {
		if err := d.flush(ctx, k, values[i]); err != nil {
			errs = append(errs, err)
		}
	}
	d.flushMu.Unlock()
	if len(errs) > 0 {
		return eris.Wrap(errors.Join(errs...), "debounce: close")
	}
	return nil
}
