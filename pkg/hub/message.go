// Package hub fans preview frames out to websocket viewers. A single Run
// loop owns the viewer set; broadcasts never block the caller and viewers
// that fall behind are evicted.
package hub

import "github.com/gofiber/websocket/v2"

// MessageType selects the websocket frame type a message is written as.
type MessageType int

const (
	// JSONMessage carries frame metadata and is written as a text frame.
	JSONMessage MessageType = iota
	// BinaryMessage carries an encoded JPEG and is written as a binary frame.
	BinaryMessage
)

func (t MessageType) String() string {
	switch t {
	case JSONMessage:
		return "json"
	case BinaryMessage:
		return "binary"
	default:
		return "unknown"
	}
}

func (t MessageType) wsType() int {
	if t == BinaryMessage {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

// Message is one queued websocket write. Data is shared by every viewer and
// must not be modified after Broadcast.
type Message struct {
	Type MessageType
	Data []byte
}

// NewJSONMessage wraps pre-encoded JSON.
func NewJSONMessage(data []byte) Message {
	return Message{Type: JSONMessage, Data: data}
}

// NewBinaryMessage wraps a JPEG payload.
func NewBinaryMessage(data []byte) Message {
	return Message{Type: BinaryMessage, Data: data}
}
