package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-fpvcar/pkg/ipc"
	"github.com/teslashibe/go-fpvcar/pkg/motion"
	"github.com/teslashibe/go-fpvcar/pkg/protocol"
)

var sendCmd = &cobra.Command{
	Use:   "send <action>",
	Short: "Send one motion command",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		resp, err := send(cmd.Context(), c, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
		return resp.Err()
	},
}

var (
	holdFor   time.Duration
	holdEvery time.Duration
)

var holdCmd = &cobra.Command{
	Use:   "hold <action>",
	Short: "Repeat a motion command to keep the car moving, then stop",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if holdEvery <= 0 {
			return fmt.Errorf("--every must be positive")
		}
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		c, err := dial(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		// Always finish with a stop, even when interrupted.
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			if resp, err := send(stopCtx, c, motion.ActionStopAll); err == nil {
				fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			}
		}()

		ticker := time.NewTicker(holdEvery)
		defer ticker.Stop()
		deadline := time.After(holdFor)

		for {
			resp, err := send(ctx, c, args[0])
			if err != nil {
				return err
			}
			if err := resp.Err(); err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return nil
			case <-deadline:
				return nil
			case <-ticker.C:
			}
		}
	},
}

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "List the actions the daemon understands",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, s := range motion.States() {
			fmt.Fprintf(cmd.OutOrStdout(), "%-26s %s\n", s.Action(), s)
		}
	},
}

func send(ctx context.Context, c *ipc.Client, action string) (protocol.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.Send(ctx, action)
}

func init() {
	holdCmd.Flags().DurationVar(&holdFor, "for", 3*time.Second, "how long to hold the command")
	holdCmd.Flags().DurationVar(&holdEvery, "every", time.Second, "resend interval; keep it under the watchdog timeout")

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(holdCmd)
	rootCmd.AddCommand(actionsCmd)
}
