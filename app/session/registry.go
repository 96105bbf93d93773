package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Factory builds a new, not yet started session for id.
type Factory func(id string) *Session

// Registry owns the live sessions. Idle sessions are evicted by the janitor.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	factory  Factory
	ttl      time.Duration
	cron     *cron.Cron
	now      func() time.Time
}

func NewRegistry(factory Factory, ttl time.Duration) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		factory:  factory,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (r *Registry) Create() *Session {
	s := r.factory(uuid.NewString())
	s.Touch(r.now())

	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.mu.Unlock()

	slog.Debug("Session created", "session", s.ID())
	return s
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()

	if ok {
		s.Touch(r.now())
	}
	return s, ok
}

func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep drops sessions that have not been accessed within the TTL.
func (r *Registry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, s := range r.sessions {
		if s.LastAccess().Before(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}

	if removed > 0 {
		slog.Info("Expired idle sessions", "removed", removed, "remaining", len(r.sessions))
	}
	return removed
}

// StartJanitor runs Sweep on a cron schedule such as "@every 1m".
func (r *Registry) StartJanitor(schedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { r.Sweep() }); err != nil {
		return fmt.Errorf("failed to schedule session janitor: %w", err)
	}
	c.Start()

	r.mu.Lock()
	r.cron = c
	r.mu.Unlock()

	slog.Debug("Session janitor started", "schedule", schedule, "ttl", r.ttl)
	return nil
}

func (r *Registry) StopJanitor() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}
