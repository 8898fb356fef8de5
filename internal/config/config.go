// Package config loads the fpvcar daemon configuration.
//
// Values come from a JSON or YAML file, then from FPVCAR_* environment
// variables (optionally seeded from a .env file), and are validated before
// anything is constructed from them.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/teslashibe/go-fpvcar/pkg/actuator"
	"github.com/teslashibe/go-fpvcar/pkg/ipc"
	"github.com/teslashibe/go-fpvcar/pkg/watchdog"
)

// Defaults.
const (
	DefaultDevicePath        = "/dev/ttyACM0"
	DefaultSocketMode        = fs.FileMode(0o660)
	DefaultControlPeriodMS   = 10
	DefaultWatchdogTimeoutMS = 5000
	DefaultLogLevel          = "info"
)

var (
	// ErrMissingChannels is returned when the file has no channels object.
	ErrMissingChannels = errors.New("config: missing 'channels' object")

	// ErrInvalid wraps every validation failure.
	ErrInvalid = errors.New("config: invalid")
)

// Address is a 7-bit bus address. It decodes from an integer or from a
// string in any Go integer syntax ("0x40", "64", "0o100").
type Address uint8

// UnmarshalYAML implements yaml.Unmarshaler.
func (a *Address) UnmarshalYAML(unmarshal func(any) error) error {
	var n int
	if err := unmarshal(&n); err == nil {
		return a.set(int64(n))
	}
	var s string
	if err := unmarshal(&s); err != nil {
		return fmt.Errorf("address must be an integer or string")
	}
	return a.parse(s)
}

func (a *Address) parse(s string) error {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 0, 64)
	if err != nil {
		return fmt.Errorf("address %q: %w", s, err)
	}
	return a.set(n)
}

func (a *Address) set(n int64) error {
	if n < 0 || n > 0x7f {
		return fmt.Errorf("address %d out of range 0-127", n)
	}
	*a = Address(n)
	return nil
}

func (a Address) String() string {
	return fmt.Sprintf("0x%02x", uint8(a))
}

// AppConfig is the daemon configuration.
type AppConfig struct {
	Channels actuator.Channels `yaml:"channels"`

	DevicePath     string  `yaml:"device_path"`
	I2CDevicePath  string  `yaml:"i2c_device_path"`
	BaudRate       int     `yaml:"baud_rate"`
	PWMFrequency   float64 `yaml:"pwm_frequency"`
	PCA9685Address Address `yaml:"pca9685_address"`

	IPCSocketPath string      `yaml:"ipc_socket_path"`
	SocketMode    fs.FileMode `yaml:"socket_mode"`

	ControlPeriodMS   int    `yaml:"control_period_ms"`
	WatchdogTimeoutMS int    `yaml:"watchdog_timeout_ms"`
	WatchdogMode      string `yaml:"watchdog_mode"`

	HTTPAddr    string `yaml:"http_addr"`
	JournalPath string `yaml:"journal_path"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// Default returns a configuration with every optional field set.
func Default() AppConfig {
	return AppConfig{
		Channels:          actuator.DefaultChannels,
		DevicePath:        DefaultDevicePath,
		BaudRate:          actuator.DefaultBaudRate,
		PWMFrequency:      actuator.DefaultPWMFrequency,
		PCA9685Address:    Address(actuator.DefaultPCA9685Address),
		IPCSocketPath:     ipc.DefaultSocketPath,
		SocketMode:        DefaultSocketMode,
		ControlPeriodMS:   DefaultControlPeriodMS,
		WatchdogTimeoutMS: DefaultWatchdogTimeoutMS,
		WatchdogMode:      watchdog.ModeRearm.String(),
		LogLevel:          DefaultLogLevel,
	}
}

// Load reads path, applies the environment and validates the result.
func Load(path string) (AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return AppConfig{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return AppConfig{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a JSON or YAML document, applies the environment and
// validates the result.
func Parse(data []byte) (AppConfig, error) {
	var probe struct {
		Channels map[string]any `yaml:"channels"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return AppConfig{}, fmt.Errorf("config: parse: %w", err)
	}
	if probe.Channels == nil {
		return AppConfig{}, ErrMissingChannels
	}

	// Fields absent from the document keep their defaults, including
	// individual channel entries.
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("config: parse: %w", err)
	}
	// Older files name the PWM link i2c_device_path.
	if cfg.I2CDevicePath != "" && !hasKey(data, "device_path") {
		cfg.DevicePath = cfg.I2CDevicePath
	}

	if err := cfg.ApplyEnv(); err != nil {
		return AppConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func hasKey(data []byte, key string) bool {
	var top map[string]any
	if yaml.Unmarshal(data, &top) != nil {
		return false
	}
	_, ok := top[key]
	return ok
}

// Validate checks ranges and cross-field constraints.
func (c AppConfig) Validate() error {
	var errs []error
	if err := c.Channels.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.IPCSocketPath == "" {
		errs = append(errs, errors.New("ipc_socket_path is empty"))
	}
	if c.PWMFrequency <= 0 || c.PWMFrequency > 25_000 {
		errs = append(errs, fmt.Errorf("pwm_frequency %.0f out of range (0, 25000]", c.PWMFrequency))
	}
	if c.BaudRate <= 0 {
		errs = append(errs, fmt.Errorf("baud_rate %d must be positive", c.BaudRate))
	}
	if c.ControlPeriodMS <= 0 {
		errs = append(errs, fmt.Errorf("control_period_ms %d must be positive", c.ControlPeriodMS))
	}
	if c.WatchdogTimeoutMS <= c.ControlPeriodMS {
		errs = append(errs, fmt.Errorf("watchdog_timeout_ms %d must exceed control_period_ms %d",
			c.WatchdogTimeoutMS, c.ControlPeriodMS))
	}
	if _, err := c.Mode(); err != nil {
		errs = append(errs, err)
	}
	if c.SocketMode&^fs.ModePerm != 0 {
		errs = append(errs, fmt.Errorf("socket_mode %o has non-permission bits", c.SocketMode))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// ControlPeriod returns the control loop period.
func (c AppConfig) ControlPeriod() time.Duration {
	return time.Duration(c.ControlPeriodMS) * time.Millisecond
}

// WatchdogTimeout returns the watchdog timeout.
func (c AppConfig) WatchdogTimeout() time.Duration {
	return time.Duration(c.WatchdogTimeoutMS) * time.Millisecond
}

// Mode parses WatchdogMode.
func (c AppConfig) Mode() (watchdog.Mode, error) {
	switch strings.ToLower(c.WatchdogMode) {
	case "", watchdog.ModeRearm.String():
		return watchdog.ModeRearm, nil
	case watchdog.ModeSingleShot.String(), "singleshot", "single_shot":
		return watchdog.ModeSingleShot, nil
	default:
		return 0, fmt.Errorf("watchdog_mode %q: want rearm or single-shot", c.WatchdogMode)
	}
}
