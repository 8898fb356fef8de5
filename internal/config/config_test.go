package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/teslashibe/go-fpvcar/pkg/actuator"
	"github.com/teslashibe/go-fpvcar/pkg/watchdog"
)

const originalJSON = `{
  "i2c_device_path": "/dev/i2c-1",
  "pwm_frequency": 1000,
  "pca9685_address": "0x41",
  "ipc_socket_path": "/run/fpvcar.sock",
  "channels": {
    "fl_channel_speed": 0, "fl_channel_1": 1, "fl_channel_2": 2,
    "fr_channel_speed": 3, "fr_channel_1": 4, "fr_channel_2": 5,
    "bl_channel_speed": 6, "bl_channel_1": 7, "bl_channel_2": 8,
    "br_channel_speed": 12, "br_channel_1": 13, "br_channel_2": 14
  }
}`

func TestParse_OriginalJSON(t *testing.T) {
	cfg, err := Parse([]byte(originalJSON))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.DevicePath != "/dev/i2c-1" {
		t.Errorf("DevicePath = %q, want legacy i2c_device_path", cfg.DevicePath)
	}
	if cfg.PWMFrequency != 1000 {
		t.Errorf("PWMFrequency = %v, want 1000", cfg.PWMFrequency)
	}
	if cfg.PCA9685Address != 0x41 {
		t.Errorf("PCA9685Address = %v, want 0x41", cfg.PCA9685Address)
	}
	if cfg.IPCSocketPath != "/run/fpvcar.sock" {
		t.Errorf("IPCSocketPath = %q", cfg.IPCSocketPath)
	}
	if cfg.Channels.BRSpeed != 12 || cfg.Channels.BR2 != 14 {
		t.Errorf("Channels = %+v", cfg.Channels)
	}
	// Untouched fields keep defaults.
	if cfg.ControlPeriod() != 10*time.Millisecond || cfg.WatchdogTimeout() != 5*time.Second {
		t.Errorf("timing = %v / %v", cfg.ControlPeriod(), cfg.WatchdogTimeout())
	}
	if cfg.SocketMode != DefaultSocketMode {
		t.Errorf("SocketMode = %o", cfg.SocketMode)
	}
}

func TestParse_YAML(t *testing.T) {
	doc := `
channels:
  fl_channel_speed: 15
device_path: /dev/ttyUSB0
pca9685_address: 0x40
socket_mode: 0600
watchdog_timeout_ms: 250
watchdog_mode: single-shot
http_addr: 127.0.0.1:8080
`
	cfg, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Channels.FLSpeed != 15 || cfg.Channels.FL1 != actuator.DefaultChannels.FL1 {
		t.Errorf("partial channels not merged with defaults: %+v", cfg.Channels)
	}
	if cfg.DevicePath != "/dev/ttyUSB0" {
		t.Errorf("DevicePath = %q", cfg.DevicePath)
	}
	if cfg.PCA9685Address != 0x40 {
		t.Errorf("PCA9685Address = %v", cfg.PCA9685Address)
	}
	if cfg.SocketMode != 0o600 {
		t.Errorf("SocketMode = %o, want 600", cfg.SocketMode)
	}
	mode, _ := cfg.Mode()
	if mode != watchdog.ModeSingleShot {
		t.Errorf("Mode = %v", mode)
	}
	if cfg.HTTPAddr != "127.0.0.1:8080" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr error
	}{
		{"no channels", `{"pwm_frequency": 1000}`, ErrMissingChannels},
		{"duplicate channel", `{"channels": {"fl_channel_1": 0}}`, ErrInvalid},
		{"bad mode", `{"channels": {}, "watchdog_mode": "sometimes"}`, ErrInvalid},
		{"watchdog shorter than period", `{"channels": {}, "watchdog_timeout_ms": 5}`, ErrInvalid},
		{"zero frequency", `{"channels": {}, "pwm_frequency": 0}`, ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Parse() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := Parse([]byte(`{"channels": "all of them"}`)); err == nil {
		t.Error("non-object channels should fail")
	}
	if _, err := Parse([]byte(`{"channels": {}, "pca9685_address": "0xzz"}`)); err == nil {
		t.Error("bad hex address should fail")
	}
	if _, err := Parse([]byte(`{"channels": {}, "pca9685_address": 300}`)); err == nil {
		t.Error("out of range address should fail")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("FPVCAR_IPC_SOCKET_PATH", "/tmp/other.sock")
	t.Setenv("FPVCAR_WATCHDOG_TIMEOUT_MS", "750")
	t.Setenv("FPVCAR_PCA9685_ADDRESS", "0x42")
	t.Setenv("FPVCAR_SOCKET_MODE", "640")
	t.Setenv("FPVCAR_PWM_FREQUENCY", "1600")

	cfg, err := Parse([]byte(`{"channels": {}}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.IPCSocketPath != "/tmp/other.sock" {
		t.Errorf("IPCSocketPath = %q", cfg.IPCSocketPath)
	}
	if cfg.WatchdogTimeoutMS != 750 {
		t.Errorf("WatchdogTimeoutMS = %d", cfg.WatchdogTimeoutMS)
	}
	if cfg.PCA9685Address != 0x42 {
		t.Errorf("PCA9685Address = %v", cfg.PCA9685Address)
	}
	if cfg.SocketMode != 0o640 {
		t.Errorf("SocketMode = %o", cfg.SocketMode)
	}
	if cfg.PWMFrequency != 1600 {
		t.Errorf("PWMFrequency = %v", cfg.PWMFrequency)
	}
}

func TestApplyEnv_BadValue(t *testing.T) {
	t.Setenv("FPVCAR_BAUD_RATE", "fast")
	if _, err := Parse([]byte(`{"channels": {}}`)); err == nil {
		t.Error("expected error for non-numeric baud rate")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(originalJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	_, err := Load(filepath.Join(dir, "missing.json"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Load(missing) error = %v, want fs.ErrNotExist", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("FPVCAR_TEST_DOTENV=from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FPVCAR_TEST_DOTENV", "")
	os.Unsetenv("FPVCAR_TEST_DOTENV")

	if err := LoadDotEnv(filepath.Join(dir, "absent.env"), path); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("FPVCAR_TEST_DOTENV"); got != "from-file" {
		t.Errorf("FPVCAR_TEST_DOTENV = %q", got)
	}
}

func TestAddressString(t *testing.T) {
	if got := Address(0x40).String(); got != "0x40" {
		t.Errorf("String() = %q", got)
	}
}
