package realtime

// Frame type constants for the realtime wire protocol. Every frame is a
// JSON text message with a "type" field.
const (
	// Client to server frame types
	FrameTypeSubscribe   = "subscribe"
	FrameTypeUnsubscribe = "unsubscribe"
	FrameTypePing        = "ping"

	// Server to client frame types. Anything else is a domain event
	// delivered by its type (e.g. "content.created", "comment.approved").
	FrameTypePong = "pong"
)

// EventTypeConnection is the locally synthesized event type carrying
// connection lifecycle changes. Its payload is a ConnectionStatus.
const EventTypeConnection = "connection"

// Connection status values delivered with EventTypeConnection events.
const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
	StatusReconnecting = "reconnecting"
	StatusFailed       = "failed"
)

// ConnectionStatus is the payload of EventTypeConnection events. Attempt
// is non-zero only for StatusReconnecting and counts reconnect attempts
// since the last successful open.
type ConnectionStatus struct {
	Status  string
	Attempt int
}

// controlFrame is the JSON structure for client-to-server frames.
type controlFrame struct {
	Type    string `json:"type"`
	Channel string `json:"channel,omitempty"`
}

// Envelope is the parsed structure of an inbound wire message. Data is
// left as whatever encoding/json produces (typically map[string]any).
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
