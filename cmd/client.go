package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/kilianp07/vmc/core/model"
	"github.com/kilianp07/vmc/core/protocol"
)

var (
	serverURL     string
	clientTimeout time.Duration
	waitComplete  bool
)

var vendCmd = &cobra.Command{
	Use:   "vend <item>...",
	Short: "Request a vend from a running server",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := map[string]any{"type": protocol.TypeVend, "items": parseItems(args)}
		done := func(m map[string]any) bool {
			if m["type"] == protocol.TypeVendComplete {
				return true
			}
			if m["type"] == protocol.TypeVendResponse {
				return !waitComplete || m["success"] != true
			}
			return m["type"] == protocol.TypeError
		}
		return request(cmd.Context(), cmd.OutOrStdout(), req, done)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query the machine status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return request(cmd.Context(), cmd.OutOrStdout(), map[string]any{"type": protocol.TypeStatus}, replyOf(protocol.TypeStatus))
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the server answers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return request(cmd.Context(), cmd.OutOrStdout(), map[string]any{"type": protocol.TypeHealth}, replyOf(protocol.TypeHealth))
	},
}

func init() {
	for _, c := range []*cobra.Command{vendCmd, statusCmd, healthCmd} {
		c.Flags().StringVar(&serverURL, "url", "ws://localhost:3002", "server WebSocket URL")
		c.Flags().DurationVar(&clientTimeout, "timeout", 10*time.Second, "overall request timeout")
		rootCmd.AddCommand(c)
	}
	vendCmd.Flags().BoolVarP(&waitComplete, "wait", "w", false, "wait for vend-complete")
}

// parseItems keeps integers as numbers so the server echoes them unchanged.
func parseItems(args []string) []model.Item {
	items := make([]model.Item, len(args))
	for i, a := range args {
		if n, err := strconv.ParseInt(a, 10, 64); err == nil {
			items[i] = model.NumberedItem(n)
		} else {
			items[i] = model.NamedItem(a)
		}
	}
	return items
}

func replyOf(typ string) func(map[string]any) bool {
	return func(m map[string]any) bool {
		return m["type"] == typ || m["type"] == protocol.TypeError
	}
}

// request sends req and prints every message after the connection snapshot
// until done accepts one.
func request(ctx context.Context, out io.Writer, req any, done func(map[string]any) bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, clientTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, serverURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", serverURL, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}

	// The server greets every connection with its status.
	if _, _, err := conn.ReadMessage(); err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("decode: %w", err)
		}
		if _, err := fmt.Fprintln(out, string(data)); err != nil {
			return err
		}
		if done(m) {
			if m["type"] == protocol.TypeError || m["success"] == false {
				return fmt.Errorf("%v", m["message"])
			}
			return nil
		}
	}
}
