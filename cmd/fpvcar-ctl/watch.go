package main

import (
	"fmt"
	"net/url"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-fpvcar/pkg/protocol"
	"github.com/teslashibe/go-fpvcar/pkg/web"
)

var watchAddr string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream status from the daemon's dashboard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		u := url.URL{Scheme: "ws", Host: watchAddr, Path: "/ws/status"}
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
		if err != nil {
			return fmt.Errorf("connect %s: %w", u.String(), err)
		}
		defer conn.Close()

		go func() {
			<-ctx.Done()
			conn.Close()
		}()

		out := cmd.OutOrStdout()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			msg, err := protocol.ParseMessage(data)
			if err != nil || msg.Type != protocol.TypeStatus {
				continue
			}
			var st web.Status
			if err := msg.ParseData(&st); err != nil {
				continue
			}
			line := fmt.Sprintf("%-30s", st.State)
			if st.Loop != nil {
				line += fmt.Sprintf(" ticks=%d overruns=%d faults=%d trips=%d",
					st.Loop.Ticks, st.Loop.Overruns, st.Loop.Faults, st.Loop.WatchdogTrips)
			}
			if st.IPC != nil {
				line += fmt.Sprintf(" requests=%d", st.IPC.Requests)
			}
			fmt.Fprintln(out, line)
		}
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchAddr, "addr", "127.0.0.1:8080", "dashboard address (http_addr)")
	rootCmd.AddCommand(watchCmd)
}
