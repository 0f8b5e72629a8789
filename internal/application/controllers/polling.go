package controllers

import (
	"context"
	"sync"
	"time"

	"github.com/avatarctic/client-runtime/go/internal/core/domain/request"
	"github.com/avatarctic/client-runtime/go/internal/core/ports"
	"github.com/sirupsen/logrus"
)

// DefaultPollInterval applies when a PollingConfig leaves Interval unset.
const DefaultPollInterval = 30 * time.Second

// PollingConfig groups the knobs of a Polling controller.
type PollingConfig[T any] struct {
	Name      string
	Interval  time.Duration
	OnSuccess func(data T)
	OnError   func(err error)
	Logger    *logrus.Logger
}

// Polling fires its producer immediately on Start and then on a fixed
// interval until Stop. A tick that resolves after the owner closed never
// mutates state.
type Polling[A, T any] struct {
	producer ports.Producer[A, T]
	cfg      PollingConfig[T]

	life    lifecycle
	mu      sync.Mutex
	state   request.State[T]
	args    A
	stop    chan struct{}
	running bool
}

// NewPolling creates a stopped poller. cfg may be nil.
func NewPolling[A, T any](producer ports.Producer[A, T], cfg *PollingConfig[T]) *Polling[A, T] {
	p := &Polling[A, T]{producer: producer}
	if cfg != nil {
		p.cfg = *cfg
	}
	if p.cfg.Name == "" {
		p.cfg.Name = "polling"
	}
	if p.cfg.Interval <= 0 {
		p.cfg.Interval = DefaultPollInterval
	}
	return p
}

// Start fetches immediately and arms the repeating timer. Starting a running
// poller is a no-op.
func (p *Polling[A, T]) Start(ctx context.Context, args A) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.args = args
	p.stop = make(chan struct{})
	stop := p.stop
	p.mu.Unlock()

	go p.loop(ctx, stop, args)
}

// Stop cancels the repeating timer. Idempotent.
func (p *Polling[A, T]) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.running = false
	close(p.stop)
}

// Restart stops the timer, fetches immediately, and re-arms it.
func (p *Polling[A, T]) Restart(ctx context.Context) {
	p.mu.Lock()
	args := p.args
	p.mu.Unlock()
	p.Stop()
	p.Start(ctx, args)
}

// State returns a snapshot of the latest poll result.
func (p *Polling[A, T]) State() request.State[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Running reports whether the timer is armed.
func (p *Polling[A, T]) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Close stops the poller and discards any in-flight tick.
func (p *Polling[A, T]) Close() {
	p.Stop()
	p.life.close()
}

func (p *Polling[A, T]) loop(ctx context.Context, stop chan struct{}, args A) {
	p.fetch(ctx, args)
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.fetch(ctx, args)
		}
	}
}

func (p *Polling[A, T]) fetch(ctx context.Context, args A) {
	gen := p.life.next()

	resp, err := p.producer(ctx, args)
	if err == nil {
		err = envelopeError(resp)
	}
	if err != nil {
		requestsTotal.WithLabelValues(p.cfg.Name, "error").Inc()
		if p.cfg.Logger != nil {
			p.cfg.Logger.WithFields(logrus.Fields{"controller": p.cfg.Name}).WithError(err).Warn("poll tick failed")
		}
		applied := false
		p.mu.Lock()
		if p.life.alive(gen) {
			p.state.Err = err
			p.state.Loading = false
			applied = true
		}
		p.mu.Unlock()
		if applied && p.cfg.OnError != nil {
			p.cfg.OnError(err)
		}
		return
	}

	data := resp.Data
	applied := false
	p.mu.Lock()
	if p.life.alive(gen) {
		p.state.Data = &data
		p.state.Loading = false
		p.state.Err = nil
		applied = true
	}
	p.mu.Unlock()
	if applied {
		requestsTotal.WithLabelValues(p.cfg.Name, "success").Inc()
		if p.cfg.OnSuccess != nil {
			p.cfg.OnSuccess(data)
		}
	}
}
