package controllers

import (
	"context"
	"sync"

	"github.com/avatarctic/client-runtime/go/internal/core/ports"
	"github.com/sirupsen/logrus"
)

// InfiniteConfig groups the knobs of an Infinite controller.
type InfiniteConfig struct {
	Name     string
	PageSize int
	OnError  func(err error)
	Logger   *logrus.Logger
}

// InfiniteState is the snapshot an Infinite controller exposes.
type InfiniteState[T any] struct {
	Items   []T
	Page    int
	HasMore bool
	Loading bool
	Err     error
}

// Infinite fetches pages sequentially and appends rather than replaces.
// LoadMore is a no-op while a page is in flight or once the server has been
// exhausted; a visibility trigger drives it at most once per transition.
type Infinite[T any] struct {
	producer ports.PageProducer[T]
	cfg      InfiniteConfig

	life    lifecycle
	mu      sync.Mutex
	items   []T
	page    int // next page to fetch
	hasMore bool
	loading bool
	err     error
	visible bool
}

// NewInfinite creates the accumulator positioned before page 1. cfg may be nil.
func NewInfinite[T any](producer ports.PageProducer[T], cfg *InfiniteConfig) *Infinite[T] {
	i := &Infinite[T]{producer: producer, page: 1, hasMore: true}
	if cfg != nil {
		i.cfg = *cfg
	}
	if i.cfg.Name == "" {
		i.cfg.Name = "infinite"
	}
	if i.cfg.PageSize <= 0 {
		i.cfg.PageSize = DefaultPageSize
	}
	return i
}

// LoadMore fetches the next page and appends it. Calls while loading or after
// exhaustion return immediately with no effect.
func (i *Infinite[T]) LoadMore(ctx context.Context) error {
	i.mu.Lock()
	if i.loading || !i.hasMore {
		i.mu.Unlock()
		return nil
	}
	page := i.page
	i.loading = true
	i.err = nil
	i.mu.Unlock()

	gen := i.life.next()

	resp, err := i.producer(ctx, page, i.cfg.PageSize)
	if err == nil {
		err = envelopeError(resp)
	}
	if err != nil {
		requestsTotal.WithLabelValues(i.cfg.Name, "error").Inc()
		if i.cfg.Logger != nil {
			i.cfg.Logger.WithFields(logrus.Fields{"controller": i.cfg.Name, "page": page}).WithError(err).Warn("page load failed")
		}
		applied := false
		i.mu.Lock()
		if i.life.alive(gen) {
			i.err = err
			i.loading = false
			applied = true
		}
		i.mu.Unlock()
		if applied && i.cfg.OnError != nil {
			i.cfg.OnError(err)
		}
		return err
	}

	totalPages := 0
	if resp.Pagination != nil {
		totalPages = resp.Pagination.TotalPages
	}

	i.mu.Lock()
	if i.life.alive(gen) {
		i.items = append(i.items, resp.Data...)
		i.hasMore = page < totalPages
		i.page = page + 1
		i.loading = false
	}
	i.mu.Unlock()
	requestsTotal.WithLabelValues(i.cfg.Name, "success").Inc()
	return nil
}

// OnVisible reports the sentinel's visibility. Only the false-to-true
// transition triggers a load, so a sentinel that stays visible fires once.
func (i *Infinite[T]) OnVisible(visible bool) {
	i.mu.Lock()
	fire := visible && !i.visible
	i.visible = visible
	i.mu.Unlock()
	if fire {
		go i.LoadMore(context.Background()) //nolint:errcheck // surfaced via state
	}
}

// Reset empties the accumulated sequence, returns to page 1, and restores
// hasMore. Any in-flight page is dropped.
func (i *Infinite[T]) Reset() {
	i.life.next()
	i.mu.Lock()
	defer i.mu.Unlock()
	i.items = nil
	i.page = 1
	i.hasMore = true
	i.loading = false
	i.err = nil
}

// State returns a snapshot; the items slice is a copy. Page is the next page
// to fetch.
func (i *Infinite[T]) State() InfiniteState[T] {
	i.mu.Lock()
	defer i.mu.Unlock()
	items := make([]T, len(i.items))
	copy(items, i.items)
	return InfiniteState[T]{Items: items, Page: i.page, HasMore: i.hasMore, Loading: i.loading, Err: i.err}
}

// Close discards any in-flight page result.
func (i *Infinite[T]) Close() {
	i.life.close()
}
