// Package hub fans status updates out to websocket subscribers using a
// single goroutine that owns the client set.
package hub

import (
	"encoding/json"

	"github.com/teslashibe/go-fpvcar/pkg/protocol"
)

// Message is one pre-encoded text frame.
type Message struct {
	Data []byte
}

// NewJSONMessage creates a message from pre-encoded bytes
func NewJSONMessage(data []byte) Message {
	return Message{Data: data}
}

// Encode wraps a status stream envelope.
func Encode(m *protocol.Message) (Message, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return Message{}, err
	}
	return Message{Data: data}, nil
}

// StatusMessage encodes status as a status stream frame.
func StatusMessage(status any) (Message, error) {
	m, err := protocol.NewStatusMessage(status)
	if err != nil {
		return Message{}, err
	}
	return Encode(m)
}
