package ipc

import "errors"

// Sentinel errors for the control socket.
var (
	// ErrFrameTooLarge is returned when a frame declares more than MaxFrameSize bytes.
	ErrFrameTooLarge = errors.New("ipc: frame too large")

	// ErrNotPrepared is returned by Run before a successful Prepare.
	ErrNotPrepared = errors.New("ipc: server not prepared")

	// ErrAlreadyPrepared is returned by a second Prepare.
	ErrAlreadyPrepared = errors.New("ipc: server already prepared")

	// ErrServerClosed is returned by Prepare after Stop.
	ErrServerClosed = errors.New("ipc: server closed")

	// ErrNotSocket is returned when the socket path is taken by another kind of file.
	ErrNotSocket = errors.New("ipc: path exists and is not a socket")
)
