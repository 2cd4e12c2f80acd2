package presence

import (
	"sync"
	"time"
)

// Transport is one live, addressable connection to a client. Implementations
// must tolerate Close being called more than once.
type Transport interface {
	WriteJSON(v any) error
	Ping() error
	Close() error
}

// EventOnlineUsers names the push frame carrying the current online set.
const EventOnlineUsers = "online_users"

// OnlineUsersFrame is the wire shape of a presence push.
type OnlineUsersFrame struct {
	Event string   `json:"event"`
	Data  []string `json:"data"`
}

// Session binds one identity to one live transport. Owned by the Registry.
//
// send is a latest-value slot, not a queue: only the most recent online set
// matters to a client, so a pending set that was never delivered is simply
// replaced by the next one. A recipient that lags behind a burst of changes
// wakes up to the final state instead of replaying the history.
type Session struct {
	Identity    string
	ConnectedAt time.Time

	transport Transport
	send      chan []string
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(identity string, transport Transport) *Session {
	return &Session{
		Identity:    identity,
		ConnectedAt: time.Now(),
		transport:   transport,
		send:        make(chan []string, 1),
		done:        make(chan struct{}),
	}
}

// offer installs online as the session's pending set, displacing any set the
// write pump has not picked up yet. Called only under the registry lock, so
// offers never race each other; the loop only retries when the pump drains
// the slot between the discard and the send.
func (s *Session) offer(online []string) {
	for {
		select {
		case s.send <- online:
			return
		default:
		}
		select {
		case <-s.send:
		default:
		}
	}
}

// close stops the write pump and closes the transport.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.transport.Close()
	})
}

// Done is closed when the session has been removed or superseded.
func (s *Session) Done() <-chan struct{} {
	return s.done
}
