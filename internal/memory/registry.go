package memory

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Defaults used when the registry is created with zero values.
const (
	DefaultMaxSessions = 1024
	DefaultSessionTTL  = 30 * time.Minute
)

// Registry scopes memories per session id. A session is created on first
// use and evicted after ttl of inactivity or when capacity is exceeded.
type Registry struct {
	mu       sync.Mutex
	sessions *expirable.LRU[string, *Memory]
	logger   *slog.Logger
}

// NewRegistry creates a registry holding at most size sessions.
func NewRegistry(size int, ttl time.Duration, logger *slog.Logger) *Registry {
	if size <= 0 {
		size = DefaultMaxSessions
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{logger: logger}
	r.sessions = expirable.NewLRU[string, *Memory](size, func(id string, _ *Memory) {
		r.logger.Debug("session evicted", "session", id)
	}, ttl)
	return r
}

// Get returns the memory of session id, creating it if needed. Access
// refreshes the inactivity timer.
func (r *Registry) Get(id string) *Memory {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.sessions.Get(id)
	if !ok {
		m = New()
		r.logger.Debug("session created", "session", id)
	}
	// re-adding resets the entry's expiry
	r.sessions.Add(id, m)
	return m
}

// Lookup returns the memory of session id without creating it or
// refreshing its expiry.
func (r *Registry) Lookup(id string) (*Memory, bool) {
	return r.sessions.Peek(id)
}

// Reset clears the memory of session id if it exists.
// Reports whether the session was found.
func (r *Registry) Reset(id string) bool {
	m, ok := r.sessions.Peek(id)
	if ok {
		m.Reset()
	}
	return ok
}

// Drop removes session id. Reports whether it was present.
func (r *Registry) Drop(id string) bool {
	return r.sessions.Remove(id)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	return r.sessions.Len()
}
