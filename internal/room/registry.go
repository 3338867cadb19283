package room

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Registry owns the process-wide roomId -> Room mapping. It is constructed
// once at startup and injected into the handlers that need it; there is no
// package-level room state.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// GetOrCreate returns the room for id, creating it on first reference.
// Idempotent under concurrent first access: exactly one *Room ever exists
// per id (double-checked under the write lock).
func (reg *Registry) GetOrCreate(id string) *Room {
	reg.mu.RLock()
	r, ok := reg.rooms[id]
	reg.mu.RUnlock()
	if ok {
		return r
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if r, ok := reg.rooms[id]; ok {
		return r
	}
	r = newRoom(id)
	reg.rooms[id] = r
	log.WithField("roomId", id).Info("room created")
	return r
}

// Get returns the room for id without creating it.
func (reg *Registry) Get(id string) (*Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.rooms[id]
	return r, ok
}

// Len returns the number of live rooms.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

// Reap periodically evicts rooms that have had zero members for longer than
// ttl. Occupied rooms are never touched, and a room reoccupied between scans
// resets its idle clock, so eviction is invisible to any member. Runs until
// ctx is cancelled.
func (reg *Registry) Reap(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := reg.reap(ttl, time.Now()); n > 0 {
				log.WithField("evicted", n).Info("reaped idle rooms")
			}
		}
	}
}

// reap removes every room that has been empty since before now-ttl and
// returns how many were evicted.
func (reg *Registry) reap(ttl time.Duration, now time.Time) int {
	deadline := now.Add(-ttl)

	reg.mu.Lock()
	defer reg.mu.Unlock()

	evicted := 0
	for id, r := range reg.rooms {
		if r.idle(deadline) {
			delete(reg.rooms, id)
			evicted++
		}
	}
	return evicted
}
