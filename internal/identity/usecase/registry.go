package usecase

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/atomic"
)

type tracked[T any] struct {
	value   T
	expires time.Time
}

// registry holds in-flight sessions by id. All registries of a Usecase
// share one active counter.
type registry[T any] struct {
	kind   string
	active *atomic.Int64
	gauge  metric.Int64UpDownCounter

	mu    sync.Mutex
	items map[string]tracked[T]
}

func newRegistry[T any](kind string, active *atomic.Int64, gauge metric.Int64UpDownCounter) *registry[T] {
	return &registry[T]{kind: kind, active: active, gauge: gauge, items: map[string]tracked[T]{}}
}

func (r *registry[T]) track(ctx context.Context, delta int64) {
	r.active.Add(delta)
	if r.gauge != nil {
		r.gauge.Add(ctx, delta, metric.WithAttributes(attribute.String("kind", r.kind)))
	}
}

func (r *registry[T]) add(ctx context.Context, id string, v T, expires time.Time) {
	r.mu.Lock()
	_, exists := r.items[id]
	r.items[id] = tracked[T]{value: v, expires: expires}
	r.mu.Unlock()

	if !exists {
		r.track(ctx, 1)
	}
}

func (r *registry[T]) get(id string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.items[id]
	return t.value, ok
}

func (r *registry[T]) remove(ctx context.Context, id string) (T, bool) {
	r.mu.Lock()
	t, ok := r.items[id]
	delete(r.items, id)
	r.mu.Unlock()

	if ok {
		r.track(ctx, -1)
	}
	return t.value, ok
}

// reserve adds v under id unless an entry accepted by busy is already held.
// The check and the insert happen under one lock; on conflict the holding
// value is returned and nothing is added.
func (r *registry[T]) reserve(ctx context.Context, id string, v T, expires time.Time, busy func(T) bool) (T, bool) {
	r.mu.Lock()
	for _, t := range r.items {
		if busy(t.value) {
			r.mu.Unlock()
			return t.value, false
		}
	}
	r.items[id] = tracked[T]{value: v, expires: expires}
	r.mu.Unlock()

	r.track(ctx, 1)

	var zero T
	return zero, true
}

// find returns the first value accepted by match.
func (r *registry[T]) find(match func(T) bool) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.items {
		if match(t.value) {
			return t.value, true
		}
	}

	var zero T
	return zero, false
}

// expired removes and returns every entry whose expiry is not after now.
func (r *registry[T]) expired(ctx context.Context, now time.Time) map[string]T {
	r.mu.Lock()
	out := map[string]T{}
	for id, t := range r.items {
		if !now.Before(t.expires) {
			out[id] = t.value
			delete(r.items, id)
		}
	}
	r.mu.Unlock()

	if len(out) > 0 {
		r.track(ctx, -int64(len(out)))
	}
	return out
}

// drain removes and returns every entry.
func (r *registry[T]) drain(ctx context.Context) map[string]T {
	r.mu.Lock()
	out := make(map[string]T, len(r.items))
	for id, t := range r.items {
		out[id] = t.value
	}
	clear(r.items)
	r.mu.Unlock()

	if len(out) > 0 {
		r.track(ctx, -int64(len(out)))
	}
	return out
}

func (r *registry[T]) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.items)
}
