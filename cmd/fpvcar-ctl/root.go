package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-fpvcar/internal/config"
	"github.com/teslashibe/go-fpvcar/pkg/ipc"
)

var (
	socketPath string
	timeout    time.Duration
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fpvcar-ctl",
	Short: "Control and observe an fpvcar daemon.",
	Long: `fpvcar-ctl talks to fpvcard over its local control socket. ` +
		`Commands keep the car's watchdog fed only while they are being sent; ` +
		`a silent car stops on its own.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	def := os.Getenv(config.EnvPrefix + "IPC_SOCKET_PATH")
	if def == "" {
		def = ipc.DefaultSocketPath
	}
	rootCmd.PersistentFlags().StringVarP(&socketPath, "socket", "s", def, "control socket path")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Second, "per-request timeout")
}

func dial(ctx context.Context) (*ipc.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return ipc.Dial(ctx, socketPath)
}
