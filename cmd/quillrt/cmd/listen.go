package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quillcms/realtime/pkg/realtime"
)

// listenCmd represents the listen command
var listenCmd = &cobra.Command{
	Use:   "listen <websocket-url> [channels...]",
	Short: "Listen for realtime events from a Quill CMS server",
	Long: `Listen for realtime events from a Quill CMS server and print them to stdout.

The first argument is the WebSocket URL to connect to.
Additional arguments are channels to subscribe to. With no channels the
client still receives broadcast events and connection lifecycle updates.

Each event is printed as "<type>\t<payload JSON>".

Examples:
  quillrt listen wss://cms.example.com/realtime
  quillrt listen wss://cms.example.com/realtime content:42 media
  quillrt listen wss://cms.example.com/realtime --token $QUILL_TOKEN comments:7`,
	Args: cobra.MinimumNArgs(1),
	RunE: runListen,
}

var (
	token             string
	eventTypes        []string
	dialTimeout       time.Duration
	heartbeatInterval time.Duration
)

func init() {
	rootCmd.AddCommand(listenCmd)

	listenCmd.Flags().StringVar(&token, "token", "", "bearer token sent as a token query parameter (defaults to $QUILL_TOKEN)")
	listenCmd.Flags().StringSliceVar(&eventTypes, "event", nil, "only print events of these types (repeatable)")
	listenCmd.Flags().DurationVar(&dialTimeout, "dial-timeout", 10*time.Second, "WebSocket dial timeout")
	listenCmd.Flags().DurationVar(&heartbeatInterval, "heartbeat", 30*time.Second, "keep-alive ping interval")
}

func runListen(cmd *cobra.Command, args []string) error {
	// Setup logger
	logger, err := setupLogger()
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wsURL := args[0]
	channels := args[1:]

	if token == "" {
		token = os.Getenv("QUILL_TOKEN")
	}

	logger.Info("Starting listener",
		zap.String("url", wsURL),
		zap.Strings("channels", channels),
		zap.Duration("dial-timeout", dialTimeout),
	)

	client, err := realtime.NewClient().
		WithURL(wsURL).
		WithToken(token).
		WithLogger(logger).
		WithDialTimeout(dialTimeout).
		WithHeartbeatInterval(heartbeatInterval).
		Build()
	if err != nil {
		return fmt.Errorf("failed to create realtime client: %w", err)
	}

	wanted := make(map[string]bool, len(eventTypes))
	for _, eventType := range eventTypes {
		wanted[eventType] = true
	}

	client.OnAny(func(eventType string, payload any) {
		if len(wanted) > 0 && !wanted[eventType] {
			return
		}
		printEvent(logger, eventType, payload)
	})

	client.On(realtime.EventTypeConnection, func(payload any) {
		status, ok := payload.(realtime.ConnectionStatus)
		if !ok {
			return
		}
		switch status.Status {
		case realtime.StatusReconnecting:
			logger.Warn("Reconnecting", zap.Int("attempt", status.Attempt))
		case realtime.StatusFailed:
			logger.Error("Connection failed permanently")
			cancel()
		}
	})

	for _, channel := range channels {
		client.Subscribe(channel)
	}

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("Listening for events... (Press Ctrl+C to exit)")

	select {
	case sig := <-sigChan:
		logger.Debug("Signal received, exiting", zap.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down...")
	}

	if err := client.Disconnect(); err != nil {
		logger.Warn("Error during client disconnect", zap.Error(err))
	}

	logger.Info("Shutdown complete")
	return nil
}

func printEvent(logger *zap.Logger, eventType string, payload any) {
	jsonBytes, err := json.Marshal(payload)
	if err != nil {
		fmt.Printf("%s\t<error marshaling JSON: %v>\n", eventType, err)
		logger.Warn("Failed to marshal payload to JSON",
			zap.String("eventType", eventType),
			zap.Error(err),
			zap.Any("payload", payload))
		return
	}
	fmt.Printf("%s\t%s\n", eventType, string(jsonBytes))
}
