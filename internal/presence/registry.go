// Package presence tracks which authenticated users hold a live connection
// and pushes the online set to every connected client on each change.
package presence

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/presence-service/internal/events"
)

// pingPeriod must be shorter than the read deadline the transport layer sets.
const pingPeriod = 54 * time.Second

// Registry maps identities to at-most-one live session each. The sessions map
// is the only shared mutable state in the service; every access, including
// Snapshot, goes through the mutex so connect/disconnect/broadcast are atomic
// with respect to each other.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	logger     *zap.Logger
	dispatcher events.Dispatcher
}

// NewRegistry builds an empty registry.
func NewRegistry(logger *zap.Logger, dispatcher events.Dispatcher) *Registry {
	return &Registry{
		sessions:   make(map[string]*Session),
		logger:     logger,
		dispatcher: dispatcher,
	}
}

// Connect installs a session for the identity. A prior live session for the
// same identity is superseded: its transport is closed and the new handle
// takes its place, so an identity never holds two records. The updated online
// set is offered to every live session, the new one included; the new
// session's first frame doubles as the handshake acknowledgment.
func (r *Registry) Connect(identity string, transport Transport) *Session {
	s := newSession(identity, transport)

	r.mu.Lock()
	prior := r.sessions[identity]
	if prior != nil {
		prior.close()
	}
	r.sessions[identity] = s
	r.broadcastLocked()
	online := len(r.sessions)
	r.mu.Unlock()

	go r.writePump(s)

	r.publish(events.EventUserConnected, identity, online, prior != nil)
	return s
}

// Disconnect removes the identity's record and re-broadcasts. When s is
// non-nil the removal is handle-aware: it only applies if s is still the
// registered session, so a stale pump exiting after a reconnect cannot evict
// the replacement. A disconnect for an absent identity is a no-op.
func (r *Registry) Disconnect(identity string, s *Session) {
	r.mu.Lock()
	current, ok := r.sessions[identity]
	if !ok || (s != nil && current != s) {
		r.mu.Unlock()
		return
	}
	delete(r.sessions, identity)
	current.close()
	r.broadcastLocked()
	online := len(r.sessions)
	r.mu.Unlock()

	r.publish(events.EventUserDisconnected, identity, online, false)
}

// Snapshot returns the identities currently online, sorted for stable output.
func (r *Registry) Snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.onlineLocked()
}

// Online reports whether the identity currently holds a live session.
func (r *Registry) Online(identity string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[identity]
	return ok
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Shutdown closes every live session.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}

func (r *Registry) onlineLocked() []string {
	online := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		online = append(online, id)
	}
	sort.Strings(online)
	return online
}

// broadcastLocked offers the current online set to every session. Offering
// under the lock means each recipient's pending set always reflects the
// latest applied mutation, never a stale intermediate one. A recipient that
// has not drained its slot just has the pending set replaced; eviction is
// reserved for actual transport failure, detected by the write pump.
func (r *Registry) broadcastLocked() {
	online := r.onlineLocked()
	for _, s := range r.sessions {
		s.offer(online)
	}
}

// writePump delivers pending online sets to one transport. A failed write or
// missed ping is an implicit disconnect for that recipient only.
func (r *Registry) writePump(s *Session) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case online := <-s.send:
			if err := s.transport.WriteJSON(OnlineUsersFrame{Event: EventOnlineUsers, Data: online}); err != nil {
				r.logger.Warn("presence broadcast failed",
					zap.String("user_id", s.Identity), zap.Error(err))
				r.Disconnect(s.Identity, s)
				return
			}
		case <-ticker.C:
			if err := s.transport.Ping(); err != nil {
				r.Disconnect(s.Identity, s)
				return
			}
		case <-s.done:
			return
		}
	}
}

func (r *Registry) publish(eventType events.EventType, identity string, online int, superseded bool) {
	if r.dispatcher == nil {
		return
	}
	_ = r.dispatcher.Publish(context.Background(), events.Event{
		Type:        eventType,
		UserID:      identity,
		Timestamp:   time.Now(),
		OnlineCount: online,
		Superseded:  superseded,
	})
}
