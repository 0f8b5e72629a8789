package controllers

import (
	"context"
	"sync"

	"github.com/avatarctic/client-runtime/go/internal/core/domain/request"
	"github.com/avatarctic/client-runtime/go/internal/core/ports"
	"github.com/sirupsen/logrus"
)

// MutationConfig groups the knobs of a Mutation controller.
type MutationConfig[T any] struct {
	Name  string
	Cache ports.Cache
	// InvalidatePatterns are regular expressions applied to the shared cache
	// after a successful mutation. This is the one caller-declared cross-
	// controller effect: a write here may expire another controller's reads.
	InvalidatePatterns []string
	OnSuccess          func(data T)
	OnError            func(err error)
	Logger             *logrus.Logger
}

// Mutation wraps a write producer. Unlike Request it never consults the cache
// before calling and never retries; a write is attempted exactly once.
type Mutation[A, T any] struct {
	producer ports.Producer[A, T]
	cfg      MutationConfig[T]

	life  lifecycle
	mu    sync.Mutex
	state request.State[T]
}

// NewMutation creates a controller around a write producer. cfg may be nil.
func NewMutation[A, T any](producer ports.Producer[A, T], cfg *MutationConfig[T]) *Mutation[A, T] {
	m := &Mutation[A, T]{producer: producer}
	if cfg != nil {
		m.cfg = *cfg
	}
	if m.cfg.Name == "" {
		m.cfg.Name = "mutation"
	}
	return m
}

// Mutate runs the write. On success every declared invalidation pattern is
// applied to the cache before OnSuccess fires, so dependent readers observe
// the staleness immediately.
func (m *Mutation[A, T]) Mutate(ctx context.Context, args A) (*T, error) {
	gen := m.life.next()

	m.commit(gen, func(st *request.State[T]) {
		st.Loading = true
		st.Err = nil
	})

	resp, err := m.producer(ctx, args)
	if err == nil {
		err = envelopeError(resp)
	}
	if err != nil {
		m.commit(gen, func(st *request.State[T]) {
			st.Err = err
			st.Loading = false
		})
		requestsTotal.WithLabelValues(m.cfg.Name, "error").Inc()
		if m.cfg.Logger != nil {
			m.cfg.Logger.WithFields(logrus.Fields{"controller": m.cfg.Name}).WithError(err).Warn("mutation failed")
		}
		if m.cfg.OnError != nil && m.life.alive(gen) {
			m.cfg.OnError(err)
		}
		return nil, err
	}

	if m.cfg.Cache != nil {
		for _, pattern := range m.cfg.InvalidatePatterns {
			if err := m.cfg.Cache.Invalidate(pattern); err != nil && m.cfg.Logger != nil {
				m.cfg.Logger.WithFields(logrus.Fields{"controller": m.cfg.Name, "pattern": pattern}).WithError(err).Warn("cache invalidation pattern rejected")
			}
		}
	}

	data := resp.Data
	m.commit(gen, func(st *request.State[T]) {
		st.Data = &data
		st.Loading = false
		st.Err = nil
	})
	requestsTotal.WithLabelValues(m.cfg.Name, "success").Inc()
	if m.cfg.OnSuccess != nil && m.life.alive(gen) {
		m.cfg.OnSuccess(data)
	}
	return &data, nil
}

// State returns a snapshot of the current lifecycle state.
func (m *Mutation[A, T]) State() request.State[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Reset clears data, error, and loading without touching the cache.
func (m *Mutation[A, T]) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = request.State[T]{}
}

// Close ends the owning subscription.
func (m *Mutation[A, T]) Close() {
	m.life.close()
}

func (m *Mutation[A, T]) commit(gen uint64, fn func(*request.State[T])) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.life.alive(gen) {
		return
	}
	fn(&m.state)
}
