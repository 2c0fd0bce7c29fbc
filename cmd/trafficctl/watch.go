package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	var (
		wsURL  string
		count  int
		origin string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print every frame a relay pushes",
		Long:  "Connects to the relay WebSocket endpoint and prints each \"light1,light2\" frame on its own line.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return watch(cmd.Context(), wsURL, origin, count, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&wsURL, "url", "ws://localhost:8081/", "Relay WebSocket URL")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Exit after this many frames (0 runs until interrupted)")
	cmd.Flags().StringVar(&origin, "origin", "", "Origin header to send")
	return cmd
}

// watch reads frames from url and writes them to out. It returns nil when
// ctx is cancelled or count frames have been printed.
func watch(ctx context.Context, url, origin string, count int, out io.Writer) error {
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dialing %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return fmt.Errorf("dialing %s: %w", url, err)
	}
	defer conn.Close() //nolint:errcheck // Connection is finished either way

	// Unblock ReadMessage on cancellation.
	stop := context.AfterFunc(ctx, func() {
		conn.Close() //nolint:errcheck // Interrupting the read loop
	})
	defer stop()

	for n := 0; count <= 0 || n < count; n++ {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("reading frame: %w", err)
		}
		if _, err := fmt.Fprintln(out, string(frame)); err != nil {
			return fmt.Errorf("writing frame: %w", err)
		}
	}
	return nil
}
