package actuator

import (
	"errors"
	"fmt"
	"math"
)

// FullDuty is the largest duty value of a 12-bit PCA9685 channel.
const FullDuty uint16 = 4095

// DefaultPWMFrequency matches the motor driver's recommended carrier (Hz).
const DefaultPWMFrequency = 10000.0

// Inner-wheel speed ratio used for the combined move+turn commands.
const arcRatio = 0.5

// PWM is a multi-channel PWM output such as a PCA9685.
type PWM interface {
	SetFrequency(hz float64) error
	SetDuty(channel uint8, duty uint16) error
}

// Wheel is the channel triple of one H-bridge: a speed (enable) channel and
// the two direction inputs.
type Wheel struct {
	Speed uint8
	In1   uint8
	In2   uint8
}

// Channels maps the four motors of the car onto PWM channels.
// Keys mirror the on-disk configuration format.
type Channels struct {
	FLSpeed uint8 `yaml:"fl_channel_speed" json:"fl_channel_speed"`
	FL1     uint8 `yaml:"fl_channel_1" json:"fl_channel_1"`
	FL2     uint8 `yaml:"fl_channel_2" json:"fl_channel_2"`
	FRSpeed uint8 `yaml:"fr_channel_speed" json:"fr_channel_speed"`
	FR1     uint8 `yaml:"fr_channel_1" json:"fr_channel_1"`
	FR2     uint8 `yaml:"fr_channel_2" json:"fr_channel_2"`
	BLSpeed uint8 `yaml:"bl_channel_speed" json:"bl_channel_speed"`
	BL1     uint8 `yaml:"bl_channel_1" json:"bl_channel_1"`
	BL2     uint8 `yaml:"bl_channel_2" json:"bl_channel_2"`
	BRSpeed uint8 `yaml:"br_channel_speed" json:"br_channel_speed"`
	BR1     uint8 `yaml:"br_channel_1" json:"br_channel_1"`
	BR2     uint8 `yaml:"br_channel_2" json:"br_channel_2"`
}

// DefaultChannels is the wiring of the reference chassis.
var DefaultChannels = Channels{
	FLSpeed: 0, FL1: 1, FL2: 2,
	FRSpeed: 3, FR1: 4, FR2: 5,
	BLSpeed: 6, BL1: 7, BL2: 8,
	BRSpeed: 9, BR1: 10, BR2: 11,
}

// Left returns the front-left and back-left wheels.
func (c Channels) Left() []Wheel {
	return []Wheel{
		{Speed: c.FLSpeed, In1: c.FL1, In2: c.FL2},
		{Speed: c.BLSpeed, In1: c.BL1, In2: c.BL2},
	}
}

// Right returns the front-right and back-right wheels.
func (c Channels) Right() []Wheel {
	return []Wheel{
		{Speed: c.FRSpeed, In1: c.FR1, In2: c.FR2},
		{Speed: c.BRSpeed, In1: c.BR1, In2: c.BR2},
	}
}

// Validate checks that every channel exists on a 16-channel board and that
// no channel is wired twice.
func (c Channels) Validate() error {
	seen := make(map[uint8]bool, 12)
	for _, w := range append(c.Left(), c.Right()...) {
		for _, ch := range []uint8{w.Speed, w.In1, w.In2} {
			if ch > 15 {
				return fmt.Errorf("actuator: channel %d out of range 0-15", ch)
			}
			if seen[ch] {
				return fmt.Errorf("actuator: channel %d assigned twice", ch)
			}
			seen[ch] = true
		}
	}
	return nil
}

// MotorBoard drives a four-wheel skid-steer chassis through a PWM board.
type MotorBoard struct {
	pwm      PWM
	channels Channels
	maxDuty  uint16
}

// NewMotorBoard configures the PWM carrier and leaves all motors stopped.
func NewMotorBoard(pwm PWM, channels Channels, frequency float64) (*MotorBoard, error) {
	if err := channels.Validate(); err != nil {
		return nil, err
	}
	if frequency <= 0 {
		frequency = DefaultPWMFrequency
	}
	if err := pwm.SetFrequency(frequency); err != nil {
		return nil, fmt.Errorf("actuator: set pwm frequency: %w", err)
	}

	b := &MotorBoard{pwm: pwm, channels: channels, maxDuty: FullDuty}
	if err := b.StopAll(); err != nil {
		return nil, fmt.Errorf("actuator: initial stop: %w", err)
	}
	return b, nil
}

// drive applies a signed throttle in [-1, 1] to each side. Every wheel is
// attempted even when an earlier one fails.
func (b *MotorBoard) drive(left, right float64) error {
	var errs []error
	for _, w := range b.channels.Left() {
		errs = append(errs, b.setWheel(w, left))
	}
	for _, w := range b.channels.Right() {
		errs = append(errs, b.setWheel(w, right))
	}
	return errors.Join(errs...)
}

func (b *MotorBoard) setWheel(w Wheel, throttle float64) error {
	var in1, in2 uint16
	switch {
	case throttle > 0:
		in1 = FullDuty
	case throttle < 0:
		in2 = FullDuty
	}
	duty := uint16(math.Round(math.Min(math.Abs(throttle), 1) * float64(b.maxDuty)))

	// Cut the enable line before flipping direction so a wheel never sees
	// both inputs briefly high at speed.
	if err := b.pwm.SetDuty(w.Speed, 0); err != nil {
		return fmt.Errorf("wheel %d speed: %w", w.Speed, err)
	}
	if err := b.pwm.SetDuty(w.In1, in1); err != nil {
		return fmt.Errorf("wheel %d in1: %w", w.Speed, err)
	}
	if err := b.pwm.SetDuty(w.In2, in2); err != nil {
		return fmt.Errorf("wheel %d in2: %w", w.Speed, err)
	}
	if duty == 0 {
		return nil
	}
	if err := b.pwm.SetDuty(w.Speed, duty); err != nil {
		return fmt.Errorf("wheel %d speed: %w", w.Speed, err)
	}
	return nil
}

func (b *MotorBoard) StopAll() error      { return b.drive(0, 0) }
func (b *MotorBoard) MoveForward() error  { return b.drive(1, 1) }
func (b *MotorBoard) MoveBackward() error { return b.drive(-1, -1) }
func (b *MotorBoard) TurnLeft() error     { return b.drive(-1, 1) }
func (b *MotorBoard) TurnRight() error    { return b.drive(1, -1) }

func (b *MotorBoard) MoveForwardAndTurnLeft() error   { return b.drive(arcRatio, 1) }
func (b *MotorBoard) MoveForwardAndTurnRight() error  { return b.drive(1, arcRatio) }
func (b *MotorBoard) MoveBackwardAndTurnLeft() error  { return b.drive(-arcRatio, -1) }
func (b *MotorBoard) MoveBackwardAndTurnRight() error { return b.drive(-1, -arcRatio) }
