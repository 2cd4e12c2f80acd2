package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserConnected    EventType = "user_connected"
	EventUserDisconnected EventType = "user_disconnected"
)

// Event represents a presence change emitted by the registry.
type Event struct {
	Type      EventType `json:"type"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
	// OnlineCount is the registry size after the mutation was applied.
	OnlineCount int `json:"online_count"`
	// Superseded marks a connect that replaced a previous live session
	// for the same user.
	Superseded bool `json:"superseded,omitempty"`
}
