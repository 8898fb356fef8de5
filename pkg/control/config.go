package control

import (
	"log/slog"
	"time"

	"github.com/teslashibe/go-fpvcar/pkg/watchdog"
)

// Config holds control loop settings.
// Use functional options (WithXxx) to set these values.
type Config struct {
	// Period between ticks.
	Period time.Duration

	// Watchdog behaviour.
	WatchdogTimeout time.Duration
	WatchdogMode    watchdog.Mode

	// Observability
	Logger   *slog.Logger
	Recorder Recorder
}

func defaultConfig() Config {
	return Config{
		Period:          DefaultPeriod,
		WatchdogTimeout: watchdog.DefaultTimeout,
		WatchdogMode:    watchdog.ModeRearm,
	}
}

// Option is a functional option for configuring the loop.
type Option func(*Config)

// WithPeriod sets the tick period.
func WithPeriod(d time.Duration) Option {
	return func(c *Config) {
		c.Period = d
	}
}

// WithWatchdogTimeout sets how long the loop tolerates silence.
func WithWatchdogTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.WatchdogTimeout = d
	}
}

// WithWatchdogMode sets what the watchdog does after a trip.
func WithWatchdogMode(m watchdog.Mode) Option {
	return func(c *Config) {
		c.WatchdogMode = m
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithRecorder sets the safety event recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Config) {
		c.Recorder = r
	}
}
