package actuator

import (
	"fmt"
	"io"
	"sync"

	"go.bug.st/serial"
)

// DefaultBaudRate of the PWM co-processor link.
const DefaultBaudRate = 115200

// DefaultPCA9685Address is the factory I2C address of the PWM chip.
const DefaultPCA9685Address uint8 = 0x40

// LinkPWM drives a PCA9685 hanging off a microcontroller that speaks a
// newline-terminated text protocol:
//
//	A <addr>        select the chip's I2C address
//	F <hz>          set the PWM carrier frequency
//	D <ch> <duty>   set one channel's 12-bit duty
type LinkPWM struct {
	mu  sync.Mutex
	rw  io.WriteCloser
	buf []byte
}

// NewLinkPWM speaks the PWM protocol over an already open stream and selects
// the chip at address.
func NewLinkPWM(rw io.WriteCloser, address uint8) (*LinkPWM, error) {
	p := &LinkPWM{rw: rw}
	if err := p.send("A %d", address); err != nil {
		return nil, fmt.Errorf("actuator: select pca9685 0x%02x: %w", address, err)
	}
	return p, nil
}

// OpenSerialPWM opens the serial device at path and returns a LinkPWM on it.
func OpenSerialPWM(path string, baud int, address uint8) (*LinkPWM, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	port, err := serial.Open(path, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("actuator: open %s: %w", path, err)
	}
	p, err := NewLinkPWM(port, address)
	if err != nil {
		port.Close()
		return nil, err
	}
	return p, nil
}

// send writes one command line. A failed write leaves no state behind, so the
// next command goes out as soon as the link recovers.
func (p *LinkPWM) send(format string, args ...any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buf = fmt.Appendf(p.buf[:0], format+"\n", args...)
	for b := p.buf; len(b) > 0; {
		n, err := p.rw.Write(b)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		b = b[n:]
	}
	return nil
}

// SetFrequency implements PWM.
func (p *LinkPWM) SetFrequency(hz float64) error {
	return p.send("F %.0f", hz)
}

// SetDuty implements PWM.
func (p *LinkPWM) SetDuty(channel uint8, duty uint16) error {
	if duty > FullDuty {
		duty = FullDuty
	}
	return p.send("D %d %d", channel, duty)
}

// Close releases the underlying link.
func (p *LinkPWM) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rw.Close()
}
