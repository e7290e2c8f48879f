package session

import (
	"sync"
	"time"
)

type entry struct {
	gate     *Gate
	lastSeen time.Time
}

// Registry keeps one Gate per browser session, keyed by session id. Entries
// idle for longer than ttl are dropped.
type Registry struct {
	cfg   GateConfig
	ttl   time.Duration
	newID func() string
	now   func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

func NewRegistry(cfg GateConfig, ttl time.Duration, newID func() string) *Registry {
	return &Registry{
		cfg:     cfg,
		ttl:     ttl,
		newID:   newID,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// Create registers a fresh anonymous gate.
func (r *Registry) Create() (string, *Gate) {
	gate := NewGate(r.cfg)
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.newID()
	for _, taken := r.entries[id]; taken; _, taken = r.entries[id] {
		id = r.newID()
	}
	r.entries[id] = &entry{gate: gate, lastSeen: r.now()}
	return id, gate
}

func (r *Registry) Lookup(id string) (*Gate, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	now := r.now()
	if r.expired(e, now) {
		delete(r.entries, id)
		return nil, false
	}
	e.lastSeen = now
	return e.gate, true
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
}

// Sweep drops every idle entry and reports how many were removed.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, e := range r.entries {
		if r.expired(e, now) {
			delete(r.entries, id)
			removed++
		}
	}
	return removed
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) expired(e *entry, now time.Time) bool {
	return r.ttl > 0 && now.Sub(e.lastSeen) > r.ttl
}

// Contains reports whether id is registered without touching its last-seen
// time.
func (r *Registry) Contains(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[id]
	return ok
}
