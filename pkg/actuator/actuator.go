// Package actuator defines the motor-driving capability of the car and
// the implementations the service ships with.
//
// The control loop, the watchdog and (indirectly) the IPC handler all end
// up calling an Actuator from different goroutines. Implementations in this
// package are not required to be goroutine-safe on their own; wrap them with
// Serialize before sharing.
package actuator

import "sync"

// Stopper is the minimal capability the watchdog needs.
type Stopper interface {
	StopAll() error
}

// Actuator drives the car's motors with discrete directional commands.
type Actuator interface {
	Stopper

	MoveForward() error
	MoveBackward() error
	TurnLeft() error
	TurnRight() error

	MoveForwardAndTurnLeft() error
	MoveForwardAndTurnRight() error
	MoveBackwardAndTurnLeft() error
	MoveBackwardAndTurnRight() error
}

// serialized funnels every call through one mutex.
type serialized struct {
	mu sync.Mutex
	a  Actuator
}

// Serialize returns an Actuator that allows at most one call into a at a
// time. Serializing an already serialized Actuator returns it unchanged.
func Serialize(a Actuator) Actuator {
	if s, ok := a.(*serialized); ok {
		return s
	}
	return &serialized{a: a}
}

func (s *serialized) do(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

func (s *serialized) StopAll() error      { return s.do(s.a.StopAll) }
func (s *serialized) MoveForward() error  { return s.do(s.a.MoveForward) }
func (s *serialized) MoveBackward() error { return s.do(s.a.MoveBackward) }
func (s *serialized) TurnLeft() error     { return s.do(s.a.TurnLeft) }
func (s *serialized) TurnRight() error    { return s.do(s.a.TurnRight) }

func (s *serialized) MoveForwardAndTurnLeft() error {
	return s.do(s.a.MoveForwardAndTurnLeft)
}

func (s *serialized) MoveForwardAndTurnRight() error {
	return s.do(s.a.MoveForwardAndTurnRight)
}

func (s *serialized) MoveBackwardAndTurnLeft() error {
	return s.do(s.a.MoveBackwardAndTurnLeft)
}

func (s *serialized) MoveBackwardAndTurnRight() error {
	return s.do(s.a.MoveBackwardAndTurnRight)
}

// Ensure implementations satisfy Actuator
var (
	_ Actuator = (*serialized)(nil)
	_ Actuator = (*MotorBoard)(nil)
	_ Actuator = (*Mock)(nil)
)
