package gcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-turret/internal/log"
)

// DefaultMoonrakerPort is Moonraker's default HTTP port.
const DefaultMoonrakerPort = "7125"

const moonrakerMethod = "printer.gcode.script"

// MoonrakerURL builds the websocket endpoint for host, which may carry a port.
func MoonrakerURL(host string) string {
	if strings.HasPrefix(host, "ws://") || strings.HasPrefix(host, "wss://") {
		return host
	}
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, DefaultMoonrakerPort)
	}
	return "ws://" + host + "/websocket"
}

// MoonrakerTransport sends G-code through Moonraker's JSON-RPC websocket, for
// setups where klippy.sock is not reachable from the tracker host.
type MoonrakerTransport struct {
	URL              string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	Logger           *slog.Logger

	mu     sync.Mutex
	ws     *websocket.Conn
	nextID atomic.Int64
}

type moonrakerRequest struct {
	JSONRPC string       `json:"jsonrpc"`
	Method  string       `json:"method"`
	Params  scriptParams `json:"params"`
	ID      int64        `json:"id"`
}

// NewMoonrakerTransport creates a transport for the websocket at url.
func NewMoonrakerTransport(url string) *MoonrakerTransport {
	return &MoonrakerTransport{
		URL:              url,
		HandshakeTimeout: 5 * time.Second,
		WriteTimeout:     DefaultWriteTimeout,
		Logger:           log.Component("moonraker"),
	}
}

// Dial opens the websocket and starts draining replies.
func (m *MoonrakerTransport) Dial(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: m.HandshakeTimeout,
	}
	ws, _, err := dialer.DialContext(ctx, m.URL, nil)
	if err != nil {
		return fmt.Errorf("connect to moonraker at %s: %w", m.URL, err)
	}

	m.mu.Lock()
	m.ws = ws
	m.mu.Unlock()

	go m.readReplies(ws)
	m.Logger.Info("connected", "url", m.URL)
	return nil
}

// readReplies logs replies until the socket closes. Moonraker also pushes
// status notifications here; those only show at debug.
func (m *MoonrakerTransport) readReplies(ws *websocket.Conn) {
	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				m.Logger.Debug("reply stream ended", "error", err)
			}
			return
		}
		logReply(m.Logger, msg)
	}
}

// Write sends script as one printer.gcode.script request.
func (m *MoonrakerTransport) Write(ctx context.Context, script string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ws == nil {
		return ErrNotConnected
	}

	deadline := time.Now().Add(m.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	m.ws.SetWriteDeadline(deadline)

	req := moonrakerRequest{
		JSONRPC: "2.0",
		Method:  moonrakerMethod,
		Params:  scriptParams{Script: script},
		ID:      m.nextID.Add(1),
	}
	if err := m.ws.WriteJSON(req); err != nil {
		return fmt.Errorf("write %q: %w", script, err)
	}
	return nil
}

// Close sends a close frame and closes the socket.
func (m *MoonrakerTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ws == nil {
		return nil
	}
	m.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := m.ws.Close()
	m.ws = nil
	return err
}
