package controllers

import "sync"

// lifecycle is the alive/generation guard shared by every controller.
// Each logical input (an execute call, a new query, a page change, a poll
// tick) takes the next generation; an asynchronous continuation commits state
// only when its captured generation is still current and the owner has not
// been closed. Results of superseded calls are dropped, not applied late.
type lifecycle struct {
	mu     sync.Mutex
	gen    uint64
	closed bool
}

// next registers a new logical input and returns its generation.
func (l *lifecycle) next() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	return l.gen
}

// alive reports whether gen is still the current generation of a live owner.
func (l *lifecycle) alive(gen uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.closed && gen == l.gen
}

// open reports whether the owner is still subscribed, regardless of
// generation. Used by continuations that overlap legally, like optimistic
// confirmations.
func (l *lifecycle) open() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.closed
}

// close ends the subscription. Every pending continuation becomes a no-op.
func (l *lifecycle) close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
}
