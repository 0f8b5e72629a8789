package controllers

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// ConfirmFunc is the background network confirmation of a local mutation.
// A non-nil error triggers a full rollback to the pre-mutation snapshot.
type ConfirmFunc func(ctx context.Context) error

// OptimisticConfig groups the knobs of an OptimisticList controller.
type OptimisticConfig[T any] struct {
	Name string
	// Key extracts the identity a list element is matched by. Required.
	Key     func(item T) string
	OnError func(op string, err error)
	Logger  *logrus.Logger
}

// OptimisticList applies add/update/remove mutations locally and
// synchronously, confirms them in the background, and rolls the whole list
// back to the pre-mutation snapshot when a confirmation fails.
//
// Overlapping mutations each capture their own snapshot at call time; the
// last failing confirmation's snapshot wins on rollback, which can discard a
// sibling's otherwise-confirmed effect.
type OptimisticList[T any] struct {
	cfg OptimisticConfig[T]

	life  lifecycle
	mu    sync.Mutex
	items []T
}

// NewOptimisticList creates an empty list controller. cfg.Key must be set.
func NewOptimisticList[T any](cfg OptimisticConfig[T]) *OptimisticList[T] {
	if cfg.Name == "" {
		cfg.Name = "optimistic"
	}
	return &OptimisticList[T]{cfg: cfg}
}

// SetItems seeds the list, typically from an initial fetch.
func (o *OptimisticList[T]) SetItems(items []T) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.items = make([]T, len(items))
	copy(o.items, items)
}

// Items returns a copy of the current list.
func (o *OptimisticList[T]) Items() []T {
	o.mu.Lock()
	defer o.mu.Unlock()
	items := make([]T, len(o.items))
	copy(items, o.items)
	return items
}

// Add prepends item immediately and confirms in the background.
func (o *OptimisticList[T]) Add(ctx context.Context, item T, confirm ConfirmFunc) {
	o.mu.Lock()
	snapshot := o.snapshot()
	o.items = append([]T{item}, o.items...)
	o.mu.Unlock()
	go o.settle(ctx, "add", snapshot, confirm)
}

// Update applies fn to the element with the given id immediately and confirms
// in the background. Unknown ids still fire the confirmation; the local list
// is simply unchanged.
func (o *OptimisticList[T]) Update(ctx context.Context, id string, fn func(item T) T, confirm ConfirmFunc) {
	o.mu.Lock()
	snapshot := o.snapshot()
	for idx, item := range o.items {
		if o.cfg.Key(item) == id {
			o.items[idx] = fn(item)
			break
		}
	}
	o.mu.Unlock()
	go o.settle(ctx, "update", snapshot, confirm)
}

// Remove filters out the element with the given id immediately and confirms
// in the background.
func (o *OptimisticList[T]) Remove(ctx context.Context, id string, confirm ConfirmFunc) {
	o.mu.Lock()
	snapshot := o.snapshot()
	kept := o.items[:0:0]
	for _, item := range o.items {
		if o.cfg.Key(item) != id {
			kept = append(kept, item)
		}
	}
	o.items = kept
	o.mu.Unlock()
	go o.settle(ctx, "remove", snapshot, confirm)
}

// Close discards pending rollbacks.
func (o *OptimisticList[T]) Close() {
	o.life.close()
}

// snapshot copies the current list. Caller holds mu. Each mutation uses its
// snapshot exactly once, for rollback, then discards it.
func (o *OptimisticList[T]) snapshot() []T {
	snap := make([]T, len(o.items))
	copy(snap, o.items)
	return snap
}

func (o *OptimisticList[T]) settle(ctx context.Context, op string, snapshot []T, confirm ConfirmFunc) {
	err := confirm(ctx)
	if err == nil {
		requestsTotal.WithLabelValues(o.cfg.Name, "success").Inc()
		return
	}
	requestsTotal.WithLabelValues(o.cfg.Name, "rollback").Inc()
	if o.cfg.Logger != nil {
		o.cfg.Logger.WithFields(logrus.Fields{"controller": o.cfg.Name, "op": op}).WithError(err).Warn("confirmation failed, rolling back")
	}
	applied := false
	o.mu.Lock()
	if o.life.open() {
		o.items = snapshot
		applied = true
	}
	o.mu.Unlock()
	if applied && o.cfg.OnError != nil {
		o.cfg.OnError(op, err)
	}
}
