// Package control runs the periodic loop that turns the desired motion
// state into actuator calls.
//
// The loop is edge-triggered: it only talks to the actuator when the desired
// state differs from what it last applied. It owns a software watchdog that
// stops the car directly when commands stop arriving.
package control

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-fpvcar/internal/log"
	"github.com/teslashibe/go-fpvcar/pkg/actuator"
	"github.com/teslashibe/go-fpvcar/pkg/motion"
	"github.com/teslashibe/go-fpvcar/pkg/watchdog"
)

// DefaultPeriod is the nominal control period (100Hz).
const DefaultPeriod = 10 * time.Millisecond

// unapplied is never a valid State, so the next tick always actuates.
const unapplied = motion.State(^uint8(0))

// Event kinds handed to the Recorder.
const (
	EventActuationFault = "actuation_fault"
	EventWatchdogTrip   = "watchdog_trip"
)

// overrunLogInterval limits overload warnings so a slow host doesn't flood
// the log.
const overrunLogInterval = 5 * time.Second

// StateStore is the shared desired-state slot.
type StateStore interface {
	Get() motion.State
	Snapshot() (motion.State, uint64)
	CompareAndSet(seq uint64, s motion.State) bool
}

// Recorder receives safety-relevant events.
type Recorder interface {
	Record(kind, detail string)
}

// Stats is a point-in-time snapshot of loop counters.
type Stats struct {
	Running       bool   `json:"running"`
	Ticks         uint64 `json:"ticks"`
	Transitions   uint64 `json:"transitions"`
	Overruns      uint64 `json:"overruns"`
	Faults        uint64 `json:"faults"`
	LastApplied   string `json:"last_applied"`
	WatchdogTrips uint64 `json:"watchdog_trips"`
}

// Loop applies desired-state edges to the actuator at a fixed period.
type Loop struct {
	states   StateStore
	act      actuator.Actuator
	cfg      Config
	watchdog *watchdog.Watchdog

	// lifecycle serializes Start and Stop bodies.
	lifecycle sync.Mutex
	running   atomic.Bool
	stop      chan struct{}
	done      chan struct{}

	// Set by a watchdog trip; the worker then re-applies whatever is desired.
	stale   atomic.Bool
	tripSeq atomic.Uint64

	// Worker-owned.
	lastApplied    motion.State
	lastOverrunLog time.Time
	missedSinceLog uint64

	ticks       atomic.Uint64
	transitions atomic.Uint64
	overruns    atomic.Uint64
	faults      atomic.Uint64
	published   atomic.Uint32
}

// New creates a stopped loop. The actuator should already be safe for
// concurrent use (see actuator.Serialize): the loop, its watchdog and Stop
// may call it from different goroutines.
func New(states StateStore, act actuator.Actuator, opts ...Option) *Loop {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Period <= 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Component("control")
	}
	if cfg.Recorder == nil {
		cfg.Recorder = nopRecorder{}
	}

	l := &Loop{
		states:      states,
		act:         act,
		cfg:         cfg,
		lastApplied: motion.Stopping,
	}
	l.watchdog = watchdog.New(
		watchdog.FailSafeFunc(l.failSafe),
		watchdog.WithTimeout(cfg.WatchdogTimeout),
		watchdog.WithMode(cfg.WatchdogMode),
		watchdog.WithLogger(cfg.Logger.With("component", "watchdog")),
		watchdog.WithOnTrip(l.onWatchdogTrip),
	)
	return l
}

// Start launches the watchdog and the worker. Calling Start on a running
// loop does nothing.
func (l *Loop) Start() {
	l.lifecycle.Lock()
	defer l.lifecycle.Unlock()

	if !l.running.CompareAndSwap(false, true) {
		return
	}

	// Stop always leaves the hardware stopped, so the cache starts there.
	l.lastApplied = motion.Stopping
	l.stale.Store(false)
	l.published.Store(uint32(motion.Stopping))

	l.watchdog.Start()

	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	go l.run(l.stop, l.done)

	l.cfg.Logger.Info("control loop started",
		"period", l.cfg.Period, "watchdog_timeout", l.watchdog.Timeout())
}

// Stop stops the car immediately, stops the watchdog and waits for the
// worker to exit. Calling Stop on a stopped loop does nothing.
func (l *Loop) Stop() {
	l.lifecycle.Lock()
	defer l.lifecycle.Unlock()

	if !l.running.CompareAndSwap(true, false) {
		return
	}

	before := l.transitions.Load()
	if err := l.act.StopAll(); err != nil {
		l.cfg.Logger.Error("stop on shutdown failed", "error", err)
	}

	l.watchdog.Stop()

	close(l.stop)
	<-l.done

	// A tick that was mid-actuation when we stopped may have landed after
	// our StopAll. Stop again so the last word is always "stop".
	if l.transitions.Load() != before {
		if err := l.act.StopAll(); err != nil {
			l.cfg.Logger.Error("second stop on shutdown failed", "error", err)
		}
	}

	l.cfg.Logger.Info("control loop stopped")
}

// Feed tells the watchdog a fresh command arrived.
func (l *Loop) Feed() {
	l.watchdog.Feed()
}

// Running reports whether the loop is started.
func (l *Loop) Running() bool {
	return l.running.Load()
}

// Stats returns current counters.
func (l *Loop) Stats() Stats {
	return Stats{
		Running:       l.running.Load(),
		Ticks:         l.ticks.Load(),
		Transitions:   l.transitions.Load(),
		Overruns:      l.overruns.Load(),
		Faults:        l.faults.Load(),
		LastApplied:   motion.State(l.published.Load()).String(),
		WatchdogTrips: l.watchdog.Trips(),
	}
}

func (l *Loop) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	period := l.cfg.Period
	timer := time.NewTimer(period)
	defer timer.Stop()

	deadline := time.Now()
	for l.running.Load() {
		l.tick()

		var overrun bool
		deadline, overrun = nextDeadline(deadline, time.Now(), period)
		if overrun {
			l.reportOverrun()
		}

		// Sleep to an absolute deadline so scheduling jitter doesn't
		// accumulate.
		timer.Reset(time.Until(deadline))
		select {
		case <-stop:
			return
		case <-timer.C:
		}
	}
}

// nextDeadline advances prev by one period. When now is already past that
// point the missed ticks are dropped and the schedule restarts from now.
func nextDeadline(prev, now time.Time, period time.Duration) (time.Time, bool) {
	next := prev.Add(period)
	if now.After(next) {
		return now.Add(period), true
	}
	return next, false
}

func (l *Loop) tick() {
	if n := l.ticks.Add(1); n%1000 == 0 {
		l.cfg.Logger.Debug("control heartbeat",
			"ticks", n, "transitions", l.transitions.Load(), "overruns", l.overruns.Load())
	}

	if l.stale.Swap(false) {
		l.lastApplied = unapplied
	}

	desired := l.states.Get()
	if desired == l.lastApplied {
		return
	}
	l.lastApplied = desired
	l.published.Store(uint32(desired))

	err := l.apply(desired)
	l.transitions.Add(1)
	if err != nil {
		l.faults.Add(1)
		l.cfg.Logger.Warn("actuation failed", "state", desired, "error", err)
		l.cfg.Recorder.Record(EventActuationFault, fmt.Sprintf("%s: %v", desired, err))
		return
	}
	l.cfg.Logger.Debug("applied", "state", desired)
}

// apply issues the one actuator call matching s. A panicking actuator is
// turned into an error so the worker keeps running.
func (l *Loop) apply(s motion.State) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("control: actuator panicked: %v", r)
		}
	}()
	return Apply(l.act, s)
}

// Apply issues the actuator call that realizes s.
func Apply(a actuator.Actuator, s motion.State) error {
	switch s {
	case motion.Stopping:
		return a.StopAll()
	case motion.MovingForward:
		return a.MoveForward()
	case motion.MovingBackward:
		return a.MoveBackward()
	case motion.TurningLeft:
		return a.TurnLeft()
	case motion.TurningRight:
		return a.TurnRight()
	case motion.ForwardLeft:
		return a.MoveForwardAndTurnLeft()
	case motion.ForwardRight:
		return a.MoveForwardAndTurnRight()
	case motion.BackwardLeft:
		return a.MoveBackwardAndTurnLeft()
	case motion.BackwardRight:
		return a.MoveBackwardAndTurnRight()
	default:
		// Unknown intent is treated as stop.
		if err := a.StopAll(); err != nil {
			return err
		}
		return fmt.Errorf("control: unknown state %d", s)
	}
}

func (l *Loop) reportOverrun() {
	l.overruns.Add(1)
	l.missedSinceLog++
	if !l.lastOverrunLog.IsZero() && time.Since(l.lastOverrunLog) < overrunLogInterval {
		return
	}
	l.cfg.Logger.Warn("control loop overloaded, missed period",
		"period", l.cfg.Period, "missed", l.missedSinceLog, "total", l.overruns.Load())
	l.lastOverrunLog = time.Now()
	l.missedSinceLog = 0
}

// failSafe is the watchdog's corrective action. It notes which desired
// state it is overriding before stopping the car.
func (l *Loop) failSafe() error {
	_, seq := l.states.Snapshot()
	l.tripSeq.Store(seq)
	return l.act.StopAll()
}

// onWatchdogTrip runs on the watchdog goroutine after the fail-safe. The
// desired state drops to Stopping unless a command arrived since the trip,
// and the worker cache is invalidated so its next tick actuates whatever is
// desired by then, even if it equals what was applied before the trip.
func (l *Loop) onWatchdogTrip(err error) {
	l.states.CompareAndSet(l.tripSeq.Load(), motion.Stopping)
	l.stale.Store(true)

	detail := fmt.Sprintf("no command for %s", l.watchdog.Timeout())
	if err != nil {
		detail += fmt.Sprintf(", stop failed: %v", err)
	}
	l.cfg.Recorder.Record(EventWatchdogTrip, detail)
}

type nopRecorder struct{}

func (nopRecorder) Record(string, string) {}
