package controllers

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/avatarctic/client-runtime/go/internal/core/ports"
	"github.com/sirupsen/logrus"
)

// DefaultDebounce applies when a SearchConfig leaves Debounce unset.
const DefaultDebounce = 300 * time.Millisecond

// SearchProducer runs one search call for the current query and filters.
type SearchProducer[T any] func(ctx context.Context, query string, filters map[string]any) (*ports.Response[[]T], error)

// SearchConfig groups the knobs of a Search controller.
type SearchConfig struct {
	Name     string
	Debounce time.Duration
	OnError  func(err error)
	Logger   *logrus.Logger
}

// SearchState is the snapshot a Search controller exposes.
type SearchState[T any] struct {
	Query   string
	Results []T
	Total   int
	Loading bool
	Err     error
}

// Search holds a query and a filter set. Either changing re-arms a single
// debounce timer; only the last change within the window reaches the network,
// and a response superseded by a newer change is dropped unapplied. A blank
// query clears results synchronously with no network call.
type Search[T any] struct {
	producer SearchProducer[T]
	cfg      SearchConfig

	life    lifecycle
	mu      sync.Mutex
	query   string
	filters map[string]any
	results []T
	total   int
	loading bool
	err     error
	timer   *time.Timer
}

// NewSearch creates an idle search controller. cfg may be nil.
func NewSearch[T any](producer SearchProducer[T], cfg *SearchConfig) *Search[T] {
	s := &Search[T]{producer: producer}
	if cfg != nil {
		s.cfg = *cfg
	}
	if s.cfg.Name == "" {
		s.cfg.Name = "search"
	}
	if s.cfg.Debounce <= 0 {
		s.cfg.Debounce = DefaultDebounce
	}
	return s
}

// SetQuery updates the query and re-arms the debounce timer.
func (s *Search[T]) SetQuery(query string) {
	s.mu.Lock()
	s.query = query
	s.mu.Unlock()
	s.schedule()
}

// SetFilters replaces the filter set and re-arms the debounce timer.
func (s *Search[T]) SetFilters(filters map[string]any) {
	s.mu.Lock()
	s.filters = filters
	s.mu.Unlock()
	s.schedule()
}

// State returns a snapshot; the results slice is a copy.
func (s *Search[T]) State() SearchState[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	results := make([]T, len(s.results))
	copy(results, s.results)
	return SearchState[T]{Query: s.query, Results: results, Total: s.total, Loading: s.loading, Err: s.err}
}

// Close disarms the debounce timer and discards any in-flight response.
func (s *Search[T]) Close() {
	s.life.close()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// schedule supersedes any pending or in-flight search with the current
// input. Each change takes a fresh generation, so a timer that already fired
// for an older change commits nothing.
func (s *Search[T]) schedule() {
	gen := s.life.next()

	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if strings.TrimSpace(s.query) == "" {
		// Blank query clears synchronously; no call is issued.
		s.results = nil
		s.total = 0
		s.loading = false
		s.err = nil
		s.mu.Unlock()
		return
	}
	s.loading = true
	s.err = nil
	s.timer = time.AfterFunc(s.cfg.Debounce, func() { s.run(gen) })
	s.mu.Unlock()
}

func (s *Search[T]) run(gen uint64) {
	if !s.life.alive(gen) {
		return
	}
	s.mu.Lock()
	query := s.query
	filters := s.filters
	s.mu.Unlock()

	resp, err := s.producer(context.Background(), query, filters)
	if err == nil {
		err = envelopeError(resp)
	}
	if err != nil {
		requestsTotal.WithLabelValues(s.cfg.Name, "error").Inc()
		if s.cfg.Logger != nil {
			s.cfg.Logger.WithFields(logrus.Fields{"controller": s.cfg.Name, "query": query}).WithError(err).Warn("search failed")
		}
		applied := false
		s.mu.Lock()
		if s.life.alive(gen) {
			s.err = err
			s.loading = false
			applied = true
		}
		s.mu.Unlock()
		if applied && s.cfg.OnError != nil {
			s.cfg.OnError(err)
		}
		return
	}

	total := len(resp.Data)
	if resp.Pagination != nil {
		total = resp.Pagination.TotalItems
	}
	s.mu.Lock()
	if s.life.alive(gen) {
		s.results = resp.Data
		s.total = total
		s.loading = false
		s.err = nil
	}
	s.mu.Unlock()
	requestsTotal.WithLabelValues(s.cfg.Name, "success").Inc()
}
