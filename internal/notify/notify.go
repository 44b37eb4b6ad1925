package notify

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/lexwatch/lexwatch/internal/websocket"
	"github.com/lexwatch/lexwatch/pkg/logger"
)

// Notifier displays one term/definition pair. Implementations must be
// fire-and-forget and must not block the pipeline appreciably.
type Notifier interface {
	Notify(title, body string)
}

// DesktopNotifier shells out to the platform notification tool
// (notify-send on Linux, osascript on macOS)
type DesktopNotifier struct {
	appName     string
	displaySecs int
	logger      *logger.Logger
}

// NewDesktopNotifier creates a desktop notifier
func NewDesktopNotifier(appName string, displaySecs int, log *logger.Logger) *DesktopNotifier {
	return &DesktopNotifier{
		appName:     appName,
		displaySecs: displaySecs,
		logger:      log.Named("desktop-notify"),
	}
}

// Notify dispatches the notification in the background; failures are logged,
// never surfaced to the pipeline
func (n *DesktopNotifier) Notify(title, body string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var cmd *exec.Cmd
		switch runtime.GOOS {
		case "darwin":
			script := fmt.Sprintf("display notification %q with title %q", body, title)
			cmd = exec.CommandContext(ctx, "osascript", "-e", script)
		default:
			cmd = exec.CommandContext(ctx, "notify-send",
				"-a", n.appName,
				"-t", fmt.Sprintf("%d", n.displaySecs*1000),
				title, body)
		}

		if out, err := cmd.CombinedOutput(); err != nil {
			n.logger.Warn("Desktop notification failed",
				logger.Error(err),
				logger.String("output", strings.TrimSpace(string(out))),
				logger.String("title", title))
		}
	}()
}

// WebSocketNotifier pushes notifications to connected browser clients
type WebSocketNotifier struct {
	server *websocket.Server
}

// NewWebSocketNotifier creates a notifier backed by the WebSocket server
func NewWebSocketNotifier(server *websocket.Server) *WebSocketNotifier {
	return &WebSocketNotifier{server: server}
}

// Notify broadcasts the notification as a WebSocket message
func (n *WebSocketNotifier) Notify(title, body string) {
	n.server.Broadcast(&websocket.Message{
		Type: websocket.MessageTypeNotification,
		Data: map[string]any{
			"title":     title,
			"body":      body,
			"timestamp": time.Now().UTC(),
		},
	})
}

// Multi fans one notification out to several notifiers in order
type Multi []Notifier

// Notify dispatches to every wrapped notifier
func (m Multi) Notify(title, body string) {
	for _, n := range m {
		n.Notify(title, body)
	}
}
