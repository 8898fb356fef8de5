// Package motion holds the car's desired motion: the closed set of motion
// intents and the single shared slot the IPC handler writes and the control
// loop reads.
package motion

import "sync"

// State is a desired motion intent. The zero value is Stopping, so a freshly
// constructed Manager (or any uninitialized State) is already fail-safe.
type State uint8

const (
	Stopping State = iota
	MovingForward
	MovingBackward
	TurningLeft
	TurningRight
	ForwardLeft
	ForwardRight
	BackwardLeft
	BackwardRight
)

// Wire action names, one per State.
const (
	ActionStopAll                  = "stopAll"
	ActionMoveForward              = "moveForward"
	ActionMoveBackward             = "moveBackward"
	ActionTurnLeft                 = "turnLeft"
	ActionTurnRight                = "turnRight"
	ActionMoveForwardAndTurnLeft   = "moveForwardAndTurnLeft"
	ActionMoveForwardAndTurnRight  = "moveForwardAndTurnRight"
	ActionMoveBackwardAndTurnLeft  = "moveBackwardAndTurnLeft"
	ActionMoveBackwardAndTurnRight = "moveBackwardAndTurnRight"
)

var stateNames = [...]string{
	Stopping:       "STOPPING",
	MovingForward:  "MOVING_FORWARD",
	MovingBackward: "MOVING_BACKWARD",
	TurningLeft:    "TURNING_LEFT",
	TurningRight:   "TURNING_RIGHT",
	ForwardLeft:    "MOVING_FORWARD_AND_TURN_LEFT",
	ForwardRight:   "MOVING_FORWARD_AND_TURN_RIGHT",
	BackwardLeft:   "MOVING_BACKWARD_AND_TURN_LEFT",
	BackwardRight:  "MOVING_BACKWARD_AND_TURN_RIGHT",
}

var stateActions = [...]string{
	Stopping:       ActionStopAll,
	MovingForward:  ActionMoveForward,
	MovingBackward: ActionMoveBackward,
	TurningLeft:    ActionTurnLeft,
	TurningRight:   ActionTurnRight,
	ForwardLeft:    ActionMoveForwardAndTurnLeft,
	ForwardRight:   ActionMoveForwardAndTurnRight,
	BackwardLeft:   ActionMoveBackwardAndTurnLeft,
	BackwardRight:  ActionMoveBackwardAndTurnRight,
}

var actionStates = func() map[string]State {
	m := make(map[string]State, len(stateActions))
	for s, a := range stateActions {
		m[a] = State(s)
	}
	return m
}()

// States returns every State in declaration order.
func States() []State {
	out := make([]State, len(stateNames))
	for i := range stateNames {
		out[i] = State(i)
	}
	return out
}

// Valid reports whether s is one of the declared states.
func (s State) Valid() bool {
	return int(s) < len(stateNames)
}

// String returns the upper-case state name, e.g. "MOVING_FORWARD".
func (s State) String() string {
	if !s.Valid() {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// Action returns the wire action that selects s, e.g. "moveForward".
func (s State) Action() string {
	if !s.Valid() {
		return ""
	}
	return stateActions[s]
}

// ParseAction maps a wire action name to its State. Matching is exact and
// case-sensitive.
func ParseAction(action string) (State, bool) {
	s, ok := actionStates[action]
	return s, ok
}

// Manager is the single-slot holder of the most recently requested State.
// Any number of Get calls may run in parallel; Set is exclusive.
type Manager struct {
	mu    sync.RWMutex
	state State
	seq   uint64
}

// NewManager returns a Manager holding Stopping.
func NewManager() *Manager {
	return &Manager{state: Stopping}
}

// Set overwrites the desired state. Last write wins.
func (m *Manager) Set(s State) {
	m.mu.Lock()
	m.state = s
	m.seq++
	m.mu.Unlock()
}

// Get returns the current desired state.
func (m *Manager) Get() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Snapshot returns the desired state together with a sequence number that
// every Set advances.
func (m *Manager) Snapshot() (State, uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state, m.seq
}

// CompareAndSet stores s only if no Set happened since the Snapshot that
// returned seq. It reports whether s was stored.
func (m *Manager) CompareAndSet(seq uint64, s State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seq != seq {
		return false
	}
	m.state = s
	m.seq++
	return true
}
