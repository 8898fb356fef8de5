// Package watchdog implements a software watchdog that engages a fail-safe
// action when it is not fed within a timeout.
//
// The watchdog runs on its own goroutine and calls its fail-safe directly,
// so it can stop the car even when the control loop is wedged.
package watchdog

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-fpvcar/internal/log"
	"github.com/teslashibe/go-fpvcar/pkg/actuator"
)

// DefaultTimeout is how long the car may go without a fresh command.
const DefaultTimeout = 5 * time.Second

// Mode selects what happens after a trip.
type Mode int

const (
	// ModeRearm re-arms the fed flag after a trip and keeps watching. In
	// continuous silence this trips once every other window.
	ModeRearm Mode = iota

	// ModeSingleShot fires once and exits the watch goroutine.
	ModeSingleShot
)

func (m Mode) String() string {
	if m == ModeSingleShot {
		return "single-shot"
	}
	return "rearm"
}

// FailSafe is the corrective action taken on timeout.
type FailSafe interface {
	Engage() error
}

// FailSafeFunc adapts a function to FailSafe.
type FailSafeFunc func() error

// Engage implements FailSafe.
func (f FailSafeFunc) Engage() error { return f() }

// StopActuator binds the fail-safe straight to an actuator's StopAll.
func StopActuator(s actuator.Stopper) FailSafe {
	return FailSafeFunc(s.StopAll)
}

// Config holds watchdog settings.
type Config struct {
	Timeout time.Duration
	Mode    Mode
	Logger  *slog.Logger

	// OnTrip, if set, is called after the fail-safe has been engaged.
	OnTrip func(err error)
}

// Option is a functional option for configuring the watchdog.
type Option func(*Config)

// WithTimeout sets the feed timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithMode sets the post-trip behaviour.
func WithMode(m Mode) Option {
	return func(c *Config) {
		c.Mode = m
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithOnTrip registers an observer called after every trip.
func WithOnTrip(fn func(err error)) Option {
	return func(c *Config) {
		c.OnTrip = fn
	}
}

// Watchdog force-engages a FailSafe when Feed is not called in time.
type Watchdog struct {
	cfg      Config
	failSafe FailSafe

	fed   atomic.Bool
	trips atomic.Uint64

	// mu serializes Start and Stop; Feed never takes it.
	mu      sync.Mutex
	running atomic.Bool
	stop    chan struct{}
	done    chan struct{}
}

// New creates a stopped watchdog.
func New(failSafe FailSafe, opts ...Option) *Watchdog {
	cfg := Config{Timeout: DefaultTimeout, Mode: ModeRearm}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Component("watchdog")
	}
	return &Watchdog{cfg: cfg, failSafe: failSafe}
}

// Start begins watching. A watch goroutine left over from an earlier Start
// is stopped first. The fed flag starts set so the first window is a grace
// period.
func (w *Watchdog) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.halt()

	w.fed.Store(true)
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	w.running.Store(true)
	go w.watch(w.stop, w.done)
}

// Stop ends watching and waits for the watch goroutine to exit. It is safe
// to call more than once.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.halt()
}

// halt must be called with mu held.
func (w *Watchdog) halt() {
	if w.stop == nil {
		return
	}
	w.running.Store(false)
	close(w.stop)
	<-w.done
	w.stop = nil
	w.done = nil
}

// Feed marks the watched party as alive. Safe from any goroutine at any
// time.
func (w *Watchdog) Feed() {
	w.fed.Store(true)
}

// Running reports whether a watch goroutine is active.
func (w *Watchdog) Running() bool {
	return w.running.Load()
}

// Trips returns how many times the fail-safe has been engaged.
func (w *Watchdog) Trips() uint64 {
	return w.trips.Load()
}

// Timeout returns the configured feed timeout.
func (w *Watchdog) Timeout() time.Duration {
	return w.cfg.Timeout
}

func (w *Watchdog) watch(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	timer := time.NewTimer(w.cfg.Timeout)
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-timer.C:
		}

		if w.fed.Swap(false) {
			timer.Reset(w.cfg.Timeout)
			continue
		}

		w.trip()

		if w.cfg.Mode == ModeSingleShot {
			w.running.Store(false)
			return
		}
		w.fed.Store(true)
		timer.Reset(w.cfg.Timeout)
	}
}

func (w *Watchdog) trip() {
	w.trips.Add(1)
	w.cfg.Logger.Error("watchdog timeout, engaging fail-safe", "timeout", w.cfg.Timeout, "trips", w.trips.Load())

	err := w.engage()
	if err != nil {
		w.cfg.Logger.Error("fail-safe failed", "error", err)
	}
	if w.cfg.OnTrip != nil {
		w.cfg.OnTrip(err)
	}
}

// engage runs the fail-safe, converting a panic into an error so the watch
// goroutine survives a misbehaving actuator.
func (w *Watchdog) engage() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	if w.failSafe == nil {
		return ErrNoFailSafe
	}
	return w.failSafe.Engage()
}
