package domain

import "time"

// Event types for WebSocket notifications
const (
	// Delivery instructions consumed by the host shim
	EventSend                = "send"
	EventBroadcast           = "broadcast"
	EventBroadcastPermission = "broadcast_permission"
	EventActionBar           = "action_bar"
	EventSound               = "sound"

	// Spectator feed
	EventPlayerJoin  = "player_join"
	EventPlayerLeave = "player_leave"
	EventChat        = "chat"
	EventMatchStart  = "match_start"
	EventMatchUpdate = "match_update"
	EventGoal        = "goal"
	EventMatchEnd    = "match_end"
)

// IsDelivery reports whether an event type is a host delivery instruction
func IsDelivery(eventType string) bool {
	switch eventType {
	case EventSend, EventBroadcast, EventBroadcastPermission, EventActionBar, EventSound:
		return true
	}
	return false
}

// Event represents a real-time event for WebSocket broadcast
type Event struct {
	Type      string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// SendEvent asks the host to show text to specific players
type SendEvent struct {
	Recipients []string `json:"recipients"` // player UUIDs
	Text       string   `json:"text"`
}

// BroadcastEvent asks the host to show text to every online player
type BroadcastEvent struct {
	Text string `json:"text"`
}

// BroadcastPermissionEvent asks the host to show text to holders of a
// permission. Recipients lists the holders known to this service.
type BroadcastPermissionEvent struct {
	Permission string   `json:"permission"`
	Recipients []string `json:"recipients"`
	Text       string   `json:"text"`
}

// ActionBarEvent carries transient status text; an empty recipient list means everyone
type ActionBarEvent struct {
	Recipients []string `json:"recipients,omitempty"`
	Text       string   `json:"text"`
}

// SoundEvent asks the host to play a sound cue for a player
type SoundEvent struct {
	Recipient string  `json:"recipient"`
	Sound     string  `json:"sound"`
	Volume    float64 `json:"volume"`
	Pitch     float64 `json:"pitch"`
}

// PlayerJoinEvent is sent when a player connects
type PlayerJoinEvent struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// PlayerLeaveEvent is sent when a player disconnects
type PlayerLeaveEvent struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// ChatEvent is sent for every channel message that was delivered
type ChatEvent struct {
	Channel string `json:"channel"`
	Sender  string `json:"sender"`
	Message string `json:"message"`
	Bridged bool   `json:"bridged,omitempty"`
}

// GoalEvent is sent when a goal is scored or removed
type GoalEvent struct {
	Team    string      `json:"team"`
	Scorer  string      `json:"scorer,omitempty"`
	Assist  string      `json:"assist,omitempty"`
	Removed bool        `json:"removed,omitempty"`
	Status  MatchStatus `json:"status"`
}
