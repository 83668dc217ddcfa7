package lessonflow

import (
	"time"

	"github.com/tepiprep/tepiprep/internal/cache"
)

// Registry holds live sessions in memory. A session expires once it has
// been idle for the TTL; nothing survives a restart.
type Registry struct {
	sessions *cache.Cache[string, *Session]
}

func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{sessions: cache.New[string, *Session](ttl)}
}

func NewRegistryWithClock(ttl time.Duration, now func() time.Time) *Registry {
	return &Registry{sessions: cache.NewWithClock[string, *Session](ttl, now)}
}

func (r *Registry) get(id string) (*Session, bool) { return r.sessions.Get(id) }

// put stores s and restarts its idle timer.
func (r *Registry) put(s *Session) { r.sessions.Set(s.ID, s) }

func (r *Registry) Len() int { return r.sessions.Len() }

// Purge drops expired sessions.
func (r *Registry) Purge() int { return r.sessions.Purge() }
