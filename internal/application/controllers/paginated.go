package controllers

import (
	"context"
	"sync"

	"github.com/avatarctic/client-runtime/go/internal/core/domain/request"
	"github.com/avatarctic/client-runtime/go/internal/core/ports"
	"github.com/sirupsen/logrus"
)

// DefaultPageSize applies when a PaginatedConfig leaves PageSize unset.
const DefaultPageSize = 10

// PaginatedConfig groups the knobs of a Paginated controller.
type PaginatedConfig[T any] struct {
	Name      string
	PageSize  int
	OnSuccess func(items []T, p request.Pagination)
	OnError   func(err error)
	Logger    *logrus.Logger
}

// PaginatedState is the snapshot a Paginated controller exposes.
type PaginatedState[T any] struct {
	Items      []T
	Pagination request.Pagination
	Loading    bool
	Err        error
}

// Paginated is a page-oriented list fetch. Changing the page or the page size
// is the one case where a state change, not an explicit call, schedules a
// network request: a watch goroutine registered at construction re-fetches
// whenever either moves.
type Paginated[T any] struct {
	producer ports.PageProducer[T]
	cfg      PaginatedConfig[T]

	life    lifecycle
	mu      sync.Mutex
	items   []T
	pag     request.Pagination
	loading bool
	err     error

	changes chan struct{}
	done    chan struct{}
}

// NewPaginated creates the controller and schedules the initial fetch of
// page 1. cfg may be nil.
func NewPaginated[T any](producer ports.PageProducer[T], cfg *PaginatedConfig[T]) *Paginated[T] {
	p := &Paginated[T]{
		producer: producer,
		changes:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	if cfg != nil {
		p.cfg = *cfg
	}
	if p.cfg.Name == "" {
		p.cfg.Name = "paginated"
	}
	if p.cfg.PageSize <= 0 {
		p.cfg.PageSize = DefaultPageSize
	}
	p.pag = request.Pagination{Page: 1, PageSize: p.cfg.PageSize}
	go p.watch()
	p.signal()
	return p
}

// SetPage moves to page n (floored at 1) and schedules a fetch when it moved.
func (p *Paginated[T]) SetPage(n int) {
	if n < 1 {
		n = 1
	}
	p.mu.Lock()
	changed := n != p.pag.Page
	p.pag.Page = n
	p.mu.Unlock()
	if changed {
		p.signal()
	}
}

// SetPageSize changes the page size and schedules a fetch when it moved.
func (p *Paginated[T]) SetPageSize(size int) {
	if size < 1 {
		size = 1
	}
	p.mu.Lock()
	changed := size != p.pag.PageSize
	p.pag.PageSize = size
	p.mu.Unlock()
	if changed {
		p.signal()
	}
}

// NextPage advances one page; a no-op at the last page.
func (p *Paginated[T]) NextPage() {
	p.mu.Lock()
	if !p.pag.HasNext() {
		p.mu.Unlock()
		return
	}
	p.pag.Page++
	p.mu.Unlock()
	p.signal()
}

// PrevPage steps back one page; a no-op at page 1.
func (p *Paginated[T]) PrevPage() {
	p.mu.Lock()
	if !p.pag.HasPrev() {
		p.mu.Unlock()
		return
	}
	p.pag.Page--
	p.mu.Unlock()
	p.signal()
}

// Refresh schedules a re-fetch of the current page.
func (p *Paginated[T]) Refresh() {
	p.signal()
}

// Reset returns to page 1 with empty results. No fetch is scheduled; any
// in-flight response is dropped.
func (p *Paginated[T]) Reset() {
	p.life.next()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items = nil
	p.pag = request.Pagination{Page: 1, PageSize: p.cfg.PageSize}
	p.loading = false
	p.err = nil
}

// State returns a snapshot; the items slice is a copy.
func (p *Paginated[T]) State() PaginatedState[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	items := make([]T, len(p.items))
	copy(items, p.items)
	return PaginatedState[T]{Items: items, Pagination: p.pag, Loading: p.loading, Err: p.err}
}

// Close stops the watch goroutine and discards in-flight results.
func (p *Paginated[T]) Close() {
	p.life.close()
	close(p.done)
}

// signal coalesces change notifications; the watch goroutine drains them.
func (p *Paginated[T]) signal() {
	select {
	case p.changes <- struct{}{}:
	default:
	}
}

func (p *Paginated[T]) watch() {
	for {
		select {
		case <-p.done:
			return
		case <-p.changes:
			p.fetch(context.Background())
		}
	}
}

func (p *Paginated[T]) fetch(ctx context.Context) {
	gen := p.life.next()

	p.mu.Lock()
	page, size := p.pag.Page, p.pag.PageSize
	p.loading = true
	p.err = nil
	p.mu.Unlock()

	resp, err := p.producer(ctx, page, size)
	if err == nil {
		err = envelopeError(resp)
	}
	if err != nil {
		requestsTotal.WithLabelValues(p.cfg.Name, "error").Inc()
		if p.cfg.Logger != nil {
			p.cfg.Logger.WithFields(logrus.Fields{"controller": p.cfg.Name, "page": page}).WithError(err).Warn("page fetch failed")
		}
		applied := false
		p.mu.Lock()
		if p.life.alive(gen) {
			p.err = err
			p.loading = false
			applied = true
		}
		p.mu.Unlock()
		if applied && p.cfg.OnError != nil {
			p.cfg.OnError(err)
		}
		return
	}

	pag := request.Pagination{Page: page, PageSize: size}
	if resp.Pagination != nil {
		pag.TotalItems = resp.Pagination.TotalItems
		pag.TotalPages = resp.Pagination.TotalPages
	}

	applied := false
	p.mu.Lock()
	if p.life.alive(gen) {
		p.items = resp.Data
		p.pag.TotalItems = pag.TotalItems
		p.pag.TotalPages = pag.TotalPages
		p.loading = false
		applied = true
		pag = p.pag
	}
	p.mu.Unlock()
	if applied {
		requestsTotal.WithLabelValues(p.cfg.Name, "success").Inc()
		if p.cfg.OnSuccess != nil {
			p.cfg.OnSuccess(resp.Data, pag)
		}
	}
}
