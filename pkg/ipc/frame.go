package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxFrameSize is the largest payload a frame may declare (1 MiB).
const MaxFrameSize = 1 << 20

// DefaultLegacyBufferSize caps messages read by LegacyCodec.
const DefaultLegacyBufferSize = 4096

const headerSize = 4

// Codec reads and writes whole messages on a stream.
type Codec interface {
	ReadMessage(r io.Reader) ([]byte, error)
	WriteMessage(w io.Writer, payload []byte) error
}

// FrameCodec prefixes each message with its length as a 4-byte big-endian
// integer.
type FrameCodec struct{}

func (FrameCodec) ReadMessage(r io.Reader) ([]byte, error) { return ReadFrame(r) }

func (FrameCodec) WriteMessage(w io.Writer, payload []byte) error { return WriteFrame(w, payload) }

// ReadFrame reads one length-prefixed frame. It returns io.EOF only when the
// stream ends cleanly before a header; a frame cut short yields
// io.ErrUnexpectedEOF.
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}

	n := binary.BigEndian.Uint32(hdr[:])
	if n > MaxFrameSize {
		return nil, fmt.Errorf("%w: declared %d bytes", ErrFrameTooLarge, n)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return payload, nil
}

// WriteFrame writes payload as one frame.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}
	buf := make([]byte, headerSize+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[headerSize:], payload)
	return writeFull(w, buf)
}

func writeFull(w io.Writer, buf []byte) error {
	for len(buf) > 0 {
		n, err := w.Write(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		buf = buf[n:]
	}
	return nil
}

// LegacyCodec is the unframed protocol: one read is one message. It cannot
// tell a slow sender from a short message and truncates anything longer than
// its buffer. Use it only to talk to old clients.
type LegacyCodec struct {
	BufferSize int
}

func (c LegacyCodec) ReadMessage(r io.Reader) ([]byte, error) {
	size := c.BufferSize
	if size <= 0 {
		size = DefaultLegacyBufferSize
	}
	buf := make([]byte, size)
	n, err := r.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	if err == nil {
		err = io.EOF
	}
	return nil, err
}

func (LegacyCodec) WriteMessage(w io.Writer, payload []byte) error {
	return writeFull(w, payload)
}
