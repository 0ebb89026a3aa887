package models

// Event is the envelope pushed over a live notification channel.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Realtime event types. Heartbeats carry no payload and are ignored by
// consumers; the durable notification record stays the source of truth.
const (
	EventConnected       = "connected"
	EventHeartbeat       = "heartbeat"
	EventNewNotification = "NEW_NOTIFICATION"
)
