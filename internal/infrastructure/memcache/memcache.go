package memcache

import (
	"regexp"
	"sync"
	"time"

	"github.com/avatarctic/client-runtime/go/internal/core/ports"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultMaxEntries bounds the store when no config is supplied.
	DefaultMaxEntries = 100
	// DefaultTTL applies when Set is called with a non-positive TTL.
	DefaultTTL = time.Minute
)

// Config groups the store parameters.
type Config struct {
	MaxEntries int
	DefaultTTL time.Duration
}

type entry struct {
	value    any
	storedAt time.Time
	ttl      time.Duration
}

func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.storedAt) > e.ttl
}

// Store is a bounded in-memory TTL cache with insertion-order (FIFO) eviction.
// It is the one resource shared across controller instances; construct it once
// at process start and pass the handle to every controller that caches.
type Store struct {
	mu         sync.Mutex
	entries    map[string]*entry
	queue      []string // insertion order; front is the oldest key
	maxEntries int
	defaultTTL time.Duration
	logger     *logrus.Logger
}

// New creates a store. A nil config uses the defaults.
func New(cfg *Config, logger *logrus.Logger) *Store {
	max := DefaultMaxEntries
	ttl := DefaultTTL
	if cfg != nil {
		if cfg.MaxEntries > 0 {
			max = cfg.MaxEntries
		}
		if cfg.DefaultTTL > 0 {
			ttl = cfg.DefaultTTL
		}
	}
	return &Store{
		entries:    make(map[string]*entry, max),
		queue:      make([]string, 0, max),
		maxEntries: max,
		defaultTTL: ttl,
		logger:     logger,
	}
}

// Get implements ports.Cache. An expired entry is purged and reported absent.
func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		cacheMisses.Inc()
		return nil, false
	}
	if e.expired(time.Now()) {
		s.remove(key)
		cacheExpirations.Inc()
		cacheMisses.Inc()
		return nil, false
	}
	cacheHits.Inc()
	return e.value, true
}

// Set implements ports.Cache. Inserting a new key at capacity evicts the
// oldest-inserted key first; overwriting keeps the key's original position.
func (s *Store) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; !ok {
		if len(s.entries) >= s.maxEntries {
			s.evictOldest()
		}
		s.queue = append(s.queue, key)
	}
	s.entries[key] = &entry{value: value, storedAt: time.Now(), ttl: ttl}
}

// Delete implements ports.Cache.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(key)
}

// Invalidate implements ports.Cache. An empty pattern clears everything;
// otherwise every key matching the regular expression is removed. Idempotent.
func (s *Store) Invalidate(pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pattern == "" {
		s.entries = make(map[string]*entry, s.maxEntries)
		s.queue = s.queue[:0]
		return nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	for key := range s.entries {
		if re.MatchString(key) {
			s.remove(key)
		}
	}
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"pattern": pattern, "remaining": len(s.entries)}).Debug("cache invalidated")
	}
	return nil
}

// Has implements ports.Cache.
func (s *Store) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Len implements ports.Cache. Expired entries not yet purged still count;
// they disappear on their next read.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// remove deletes key from both the map and the insertion queue. Caller holds mu.
func (s *Store) remove(key string) {
	if _, ok := s.entries[key]; !ok {
		return
	}
	delete(s.entries, key)
	for i, k := range s.queue {
		if k == key {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			break
		}
	}
}

// evictOldest drops the front of the insertion queue. Caller holds mu.
func (s *Store) evictOldest() {
	if len(s.queue) == 0 {
		return
	}
	key := s.queue[0]
	s.queue = s.queue[1:]
	delete(s.entries, key)
	cacheEvictions.Inc()
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"key": key}).Debug("cache evicted oldest entry")
	}
}

var _ ports.Cache = (*Store)(nil)
