package actuator

import (
	"sync"
	"time"
)

// Method names recorded by Mock.
const (
	MethodStopAll                  = "StopAll"
	MethodMoveForward              = "MoveForward"
	MethodMoveBackward             = "MoveBackward"
	MethodTurnLeft                 = "TurnLeft"
	MethodTurnRight                = "TurnRight"
	MethodMoveForwardAndTurnLeft   = "MoveForwardAndTurnLeft"
	MethodMoveForwardAndTurnRight  = "MoveForwardAndTurnRight"
	MethodMoveBackwardAndTurnLeft  = "MoveBackwardAndTurnLeft"
	MethodMoveBackwardAndTurnRight = "MoveBackwardAndTurnRight"
)

// Mock implements Actuator without hardware. It records every call and is
// safe for concurrent use.
type Mock struct {
	// CallFunc is invoked for every call after it is recorded.
	// If nil, calls succeed.
	CallFunc func(method string) error

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation for verification.
type MockCall struct {
	Method string
	Time   time.Time
}

// NewMock creates a mock actuator whose calls all succeed.
func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) record(method string) error {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Method: method, Time: time.Now()})
	fn := m.CallFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(method)
	}
	return nil
}

func (m *Mock) StopAll() error      { return m.record(MethodStopAll) }
func (m *Mock) MoveForward() error  { return m.record(MethodMoveForward) }
func (m *Mock) MoveBackward() error { return m.record(MethodMoveBackward) }
func (m *Mock) TurnLeft() error     { return m.record(MethodTurnLeft) }
func (m *Mock) TurnRight() error    { return m.record(MethodTurnRight) }

func (m *Mock) MoveForwardAndTurnLeft() error {
	return m.record(MethodMoveForwardAndTurnLeft)
}

func (m *Mock) MoveForwardAndTurnRight() error {
	return m.record(MethodMoveForwardAndTurnRight)
}

func (m *Mock) MoveBackwardAndTurnLeft() error {
	return m.record(MethodMoveBackwardAndTurnLeft)
}

func (m *Mock) MoveBackwardAndTurnRight() error {
	return m.record(MethodMoveBackwardAndTurnRight)
}

// Calls returns a copy of all recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// Count returns how many times method was called.
func (m *Mock) Count(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Last returns the most recent method name, or "" if none.
func (m *Mock) Last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return ""
	}
	return m.calls[len(m.calls)-1].Method
}

// Reset clears recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	m.calls = nil
	m.mu.Unlock()
}

// WaitFor polls until method has been called at least n times or the
// timeout expires. It reports whether the count was reached.
func (m *Mock) WaitFor(method string, n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if m.Count(method) >= n {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}
