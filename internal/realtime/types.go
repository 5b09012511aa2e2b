package realtime

import "time"

// MessageType names a stream message
type MessageType string

const (
	MessageRefresh MessageType = "refresh"
	MessageHello   MessageType = "hello"
)

// Message is the envelope of every frame sent to stream clients
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}
