package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/avatarctic/client-runtime/go/internal/core/domain/request"
	"github.com/avatarctic/client-runtime/go/internal/core/ports"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// RequestConfig groups the optional knobs of a Request controller.
type RequestConfig[A, T any] struct {
	// Name prefixes cache keys and metric labels. Required when Cache is set
	// because Go offers no stable function identity to derive a key from.
	Name     string
	Cache    ports.Cache
	CacheTTL time.Duration
	// Retries is the number of additional attempts after the first failure;
	// total attempts = Retries + 1.
	Retries int
	// RetryDelay is the base of the linear backoff: the wait after the n-th
	// failed attempt is RetryDelay * n.
	RetryDelay time.Duration
	// Immediate, when non-nil, fires Execute with these arguments on creation.
	Immediate *A
	OnSuccess func(data T)
	OnError   func(err error)
	Logger    *logrus.Logger
}

// Request wraps one asynchronous producer with loading/error/data state,
// cache read-through, linear-backoff retry, and stale-result suppression.
type Request[A, T any] struct {
	producer ports.Producer[A, T]
	cfg      RequestConfig[A, T]

	life     lifecycle
	mu       sync.Mutex
	state    request.State[T]
	lastArgs A
	sf       singleflight.Group
}

// NewRequest creates a controller around producer. cfg may be nil.
func NewRequest[A, T any](producer ports.Producer[A, T], cfg *RequestConfig[A, T]) *Request[A, T] {
	r := &Request[A, T]{producer: producer}
	if cfg != nil {
		r.cfg = *cfg
	}
	if r.cfg.Name == "" {
		r.cfg.Name = "request"
	}
	if r.cfg.RetryDelay <= 0 {
		r.cfg.RetryDelay = time.Second
	}
	if r.cfg.Immediate != nil {
		args := *r.cfg.Immediate
		go r.Execute(context.Background(), args) //nolint:errcheck // surfaced via state
	}
	return r
}

// Execute runs the producer for args. A warm cache short-circuits without any
// network call; otherwise the call is attempted Retries+1 times with linear
// backoff. The terminal error is returned and mirrored in state; it is never
// panicked across the boundary.
func (r *Request[A, T]) Execute(ctx context.Context, args A) (*T, error) {
	gen := r.life.next()

	r.mu.Lock()
	r.lastArgs = args
	r.mu.Unlock()

	key := r.cacheKey(args)
	if r.cfg.Cache != nil {
		if v, ok := r.cfg.Cache.Get(key); ok {
			if data, ok := v.(T); ok {
				r.commit(gen, func(st *request.State[T]) {
					d := data
					st.Data = &d
					st.Loading = false
					st.Err = nil
				})
				requestsTotal.WithLabelValues(r.cfg.Name, "cache_hit").Inc()
				if r.cfg.OnSuccess != nil && r.life.alive(gen) {
					r.cfg.OnSuccess(data)
				}
				d := data
				return &d, nil
			}
			// Entry of an unexpected type; treat as a miss and overwrite below.
			r.cfg.Cache.Delete(key)
		}
	}

	r.commit(gen, func(st *request.State[T]) {
		st.Loading = true
		st.Err = nil
	})

	data, err := r.produce(ctx, key, args)
	if err != nil {
		r.commit(gen, func(st *request.State[T]) {
			st.Err = err
			st.Loading = false
		})
		requestsTotal.WithLabelValues(r.cfg.Name, "error").Inc()
		if r.cfg.Logger != nil {
			r.cfg.Logger.WithFields(logrus.Fields{"controller": r.cfg.Name}).WithError(err).Warn("request failed after all attempts")
		}
		if r.cfg.OnError != nil && r.life.alive(gen) {
			r.cfg.OnError(err)
		}
		return nil, err
	}

	if r.cfg.Cache != nil {
		r.cfg.Cache.Set(key, *data, r.cfg.CacheTTL)
	}
	r.commit(gen, func(st *request.State[T]) {
		st.Data = data
		st.Loading = false
		st.Err = nil
	})
	requestsTotal.WithLabelValues(r.cfg.Name, "success").Inc()
	if r.cfg.OnSuccess != nil && r.life.alive(gen) {
		r.cfg.OnSuccess(*data)
	}
	return data, nil
}

// Refetch re-runs Execute with the most recently used arguments.
func (r *Request[A, T]) Refetch(ctx context.Context) (*T, error) {
	r.mu.Lock()
	args := r.lastArgs
	r.mu.Unlock()
	return r.Execute(ctx, args)
}

// Reset clears data, error, and loading without touching the cache.
func (r *Request[A, T]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = request.State[T]{}
}

// State returns a snapshot of the current lifecycle state.
func (r *Request[A, T]) State() request.State[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Close ends the owning subscription: any in-flight resolution is discarded
// instead of written.
func (r *Request[A, T]) Close() {
	r.life.close()
}

// produce performs the attempt chain. Cache-miss loads for the same key are
// coalesced through singleflight so concurrent consumers trigger one call.
func (r *Request[A, T]) produce(ctx context.Context, key string, args A) (*T, error) {
	if r.cfg.Cache == nil {
		return r.attempt(ctx, args)
	}
	v, err, _ := r.sf.Do(key, func() (any, error) {
		return r.attempt(ctx, args)
	})
	if err != nil {
		return nil, err
	}
	data, ok := v.(*T)
	if !ok {
		return nil, fmt.Errorf("unexpected type from coalesced call")
	}
	return data, nil
}

func (r *Request[A, T]) attempt(ctx context.Context, args A) (*T, error) {
	attempts := r.cfg.Retries + 1
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			// Linear backoff: delay * failed-attempt index.
			wait := r.cfg.RetryDelay * time.Duration(i)
			retriesTotal.WithLabelValues(r.cfg.Name).Inc()
			if r.cfg.Logger != nil {
				r.cfg.Logger.WithFields(logrus.Fields{"controller": r.cfg.Name, "attempt": i + 1, "wait": wait}).Debug("retrying request")
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}
		resp, err := r.producer(ctx, args)
		if err == nil {
			err = envelopeError(resp)
		}
		if err == nil {
			return &resp.Data, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", attempts, lastErr)
}

// commit applies fn to the state iff gen is still the live generation.
func (r *Request[A, T]) commit(gen uint64, fn func(*request.State[T])) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.life.alive(gen) {
		return
	}
	fn(&r.state)
}

func (r *Request[A, T]) cacheKey(args A) string {
	b, err := json.Marshal(args)
	if err != nil {
		return r.cfg.Name
	}
	return r.cfg.Name + ":" + string(b)
}

// envelopeError converts an application-level failure in the response
// envelope into an error.
func envelopeError[T any](resp *ports.Response[T]) error {
	if resp == nil {
		return fmt.Errorf("empty response")
	}
	if !resp.Success {
		if resp.Message != "" {
			return fmt.Errorf("request rejected: %s", resp.Message)
		}
		return fmt.Errorf("request rejected")
	}
	return nil
}
