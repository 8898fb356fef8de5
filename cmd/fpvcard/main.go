// fpvcard is the on-device control daemon for the fpvcar.
//
// It listens on a local Unix socket for JSON motion commands and drives the
// motor board, stopping the car whenever commands stop arriving.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/tebeka/atexit"

	"github.com/teslashibe/go-fpvcar/internal/config"
	"github.com/teslashibe/go-fpvcar/internal/log"
	"github.com/teslashibe/go-fpvcar/pkg/actuator"
	"github.com/teslashibe/go-fpvcar/pkg/service"
)

type options struct {
	configPath string
	envFile    string
	dryRun     bool
	logLevel   string
}

func main() {
	opts := parseFlags()

	if err := config.LoadDotEnv(opts.envFile); err != nil {
		atexit.Fatalf("❌ %v", err)
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		atexit.Fatalf("❌ Configuration error: %v", err)
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	log.Init(log.Options{Level: cfg.LogLevel, File: cfg.LogFile})

	act, closer, err := openActuator(cfg, opts.dryRun)
	if err != nil {
		log.Error("actuator initialization failed", "error", err)
		atexit.Exit(1)
	}

	svc, err := service.New(cfg, act)
	if err != nil {
		closer.Close()
		log.Error("service initialization failed", "error", err)
		atexit.Exit(1)
	}

	// Every exit path, including Fatal, must reach Stop so the final StopAll
	// gets to the motors before the link is closed.
	atexit.Register(func() {
		if err := svc.Stop(); err != nil {
			log.Error("service stop", "error", err)
		}
		if err := closer.Close(); err != nil {
			log.Error("close actuator link", "error", err)
		}
	})

	if err := svc.Start(); err != nil {
		log.Error("service start failed", "error", err)
		atexit.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	<-ctx.Done()

	log.Info("shutting down")
	atexit.Exit(0)
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.configPath, "config", "config.json", "Path to the JSON or YAML configuration file")
	flag.StringVar(&o.envFile, "env-file", ".env", "Optional .env file with FPVCAR_* overrides")
	flag.BoolVar(&o.dryRun, "dry-run", false, "Log motor commands instead of driving hardware")
	flag.StringVar(&o.logLevel, "log-level", "", "Override log level: debug, info, warn, error")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags]\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	return o
}

// openActuator returns the motor board plus the link to close after the
// final stop. In dry-run mode the link writes its commands to the log.
func openActuator(cfg config.AppConfig, dryRun bool) (actuator.Actuator, io.Closer, error) {
	var link *actuator.LinkPWM
	var err error
	if dryRun {
		link, err = actuator.NewLinkPWM(logLink{log.Component("dry-run")}, uint8(cfg.PCA9685Address))
	} else {
		link, err = actuator.OpenSerialPWM(cfg.DevicePath, cfg.BaudRate, uint8(cfg.PCA9685Address))
	}
	if err != nil {
		return nil, nil, err
	}

	board, err := actuator.NewMotorBoard(link, cfg.Channels, cfg.PWMFrequency)
	if err != nil {
		link.Close()
		return nil, nil, err
	}
	log.Info("motor board ready",
		"device", cfg.DevicePath, "dry_run", dryRun,
		"address", cfg.PCA9685Address.String(), "pwm_hz", cfg.PWMFrequency)
	return board, link, nil
}

// logLink stands in for the serial port in dry-run mode.
type logLink struct {
	logger *slog.Logger
}

func (l logLink) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimSpace(string(p)), "\n") {
		l.logger.Debug("pwm", "cmd", line)
	}
	return len(p), nil
}

func (logLink) Close() error { return nil }
