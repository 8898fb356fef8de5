package protocol

import (
	"encoding/json"
	"fmt"
)

// serverErrorJSON is returned when even encoding the response fails.
var serverErrorJSON = []byte(`{"status":"error","error_code":"SERVER_ERROR","message":"Failed to encode response"}`)

// OK returns an encoded success response.
func OK(message string) []byte {
	return encode(Response{Status: StatusOK, Message: message})
}

// Executed returns the success response for a handled action.
func Executed(action string) []byte {
	return OK(fmt.Sprintf("%s executed", action))
}

// Error returns an encoded error response.
func Error(code ErrorCode, message string) []byte {
	return encode(Response{Status: StatusError, ErrorCode: code, Message: message})
}

func encode(r Response) []byte {
	b, err := json.Marshal(r)
	if err != nil {
		return serverErrorJSON
	}
	return b
}

// NewStatusMessage wraps a status snapshot.
func NewStatusMessage(status any) (*Message, error) {
	return NewMessage(TypeStatus, status)
}

// NewEventMessage wraps a safety event.
func NewEventMessage(event any) (*Message, error) {
	return NewMessage(TypeEvent, event)
}

// NewPongMessage creates a pong message
func NewPongMessage() (*Message, error) {
	return NewMessage(TypePong, nil)
}
