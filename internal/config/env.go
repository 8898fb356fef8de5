package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "FPVCAR_"

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are skipped; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("config: load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from FPVCAR_* environment variables.
func (c *AppConfig) ApplyEnv() error {
	var errs []error

	envString("IPC_SOCKET_PATH", &c.IPCSocketPath)
	envString("DEVICE_PATH", &c.DevicePath)
	envString("WATCHDOG_MODE", &c.WatchdogMode)
	envString("HTTP_ADDR", &c.HTTPAddr)
	envString("JOURNAL_PATH", &c.JournalPath)
	envString("LOG_LEVEL", &c.LogLevel)
	envString("LOG_FILE", &c.LogFile)

	errs = append(errs,
		envInt("BAUD_RATE", &c.BaudRate),
		envInt("CONTROL_PERIOD_MS", &c.ControlPeriodMS),
		envInt("WATCHDOG_TIMEOUT_MS", &c.WatchdogTimeoutMS),
	)

	if v := os.Getenv(EnvPrefix + "PWM_FREQUENCY"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sPWM_FREQUENCY: %w", EnvPrefix, err))
		} else {
			c.PWMFrequency = f
		}
	}
	if v := os.Getenv(EnvPrefix + "PCA9685_ADDRESS"); v != "" {
		if err := c.PCA9685Address.parse(v); err != nil {
			errs = append(errs, fmt.Errorf("%sPCA9685_ADDRESS: %w", EnvPrefix, err))
		}
	}
	if v := os.Getenv(EnvPrefix + "SOCKET_MODE"); v != "" {
		m, err := strconv.ParseUint(v, 8, 32)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sSOCKET_MODE: %w", EnvPrefix, err))
		} else {
			c.SocketMode = fs.FileMode(m)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}
	return nil
}

func envString(name string, dst *string) {
	if v := os.Getenv(EnvPrefix + name); v != "" {
		*dst = v
	}
}

func envInt(name string, dst *int) error {
	v := os.Getenv(EnvPrefix + name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
	}
	*dst = n
	return nil
}
