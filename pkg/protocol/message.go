// Package protocol defines the JSON messages exchanged with the car.
//
// Commands travel over the local control socket as Request/Response pairs.
// The read-only status stream wraps its payloads in Message envelopes.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Response status values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// ErrorCode identifies why a request failed.
type ErrorCode string

const (
	CodeInvalidJSON   ErrorCode = "INVALID_JSON"   // payload is not an object or has no action
	CodeInvalidAction ErrorCode = "INVALID_ACTION" // action is not in the table
	CodeHardwareError ErrorCode = "HARDWARE_ERROR" // actuator failed while handling the request
	CodeServerError   ErrorCode = "SERVER_ERROR"   // handler faulted
	CodeNoHandler     ErrorCode = "NO_HANDLER"     // server has nothing to dispatch to
)

// Request is a motion command. Unknown fields are ignored.
type Request struct {
	Action string `json:"action"`
}

// Response answers exactly one Request.
type Response struct {
	Status    string    `json:"status"`
	ErrorCode ErrorCode `json:"error_code,omitempty"`
	Message   string    `json:"message"`
}

// OK reports whether the response is a success.
func (r Response) OK() bool {
	return r.Status == StatusOK
}

// Err converts an error response into a Go error.
func (r Response) Err() error {
	if r.OK() {
		return nil
	}
	return &ResponseError{Code: r.ErrorCode, Message: r.Message}
}

// ResponseError is an error response seen from the client side.
type ResponseError struct {
	Code    ErrorCode
	Message string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ParseRequest decodes a request payload. The payload must be a JSON object.
func ParseRequest(data []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, fmt.Errorf("failed to parse request: %w", err)
	}
	return req, nil
}

// ParseResponse decodes a response payload.
func ParseResponse(data []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return Response{}, fmt.Errorf("failed to parse response: %w", err)
	}
	return resp, nil
}

// EncodeRequest returns the payload for an action.
func EncodeRequest(action string) []byte {
	b, _ := json.Marshal(Request{Action: action})
	return b
}

// =============================================================================
// Status stream
// =============================================================================

// MessageType identifies a status stream message.
type MessageType string

const (
	TypeStatus MessageType = "status" // periodic snapshot
	TypeEvent  MessageType = "event"  // safety journal entry
	TypePing   MessageType = "ping"
	TypePong   MessageType = "pong"
)

// Message is the envelope for status stream payloads.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data any) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into v.
func (m *Message) ParseData(v any) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}
