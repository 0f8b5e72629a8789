package ports

import "time"

// Cache defines the in-memory key-value contract shared by every controller.
// Implementations are process-wide and must be safe for concurrent use; callers
// treat an expired entry exactly like an absent one.
type Cache interface {
	// Get returns the value for key. ok=false if absent or expired.
	Get(key string) (any, bool)
	// Set stores value for key with TTL (non-positive means the store default).
	Set(key string, value any, ttl time.Duration)
	// Delete removes the key; absence is not an error.
	Delete(key string)
	// Invalidate removes every key matching pattern (a regular expression over
	// the key string). An empty pattern clears the whole store.
	Invalidate(pattern string) error
	// Has reports whether key holds an unexpired value.
	Has(key string) bool
	// Len reports the current number of live entries.
	Len() int
}
