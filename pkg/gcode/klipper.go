package gcode

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-turret/internal/log"
)

// Klipper API server framing.
const (
	klipperTerminator = 0x03
	klipperMethod     = "gcode/script"
)

// Default Klipper timeouts.
const (
	DefaultGreetingTimeout = 1 * time.Second
	DefaultWriteTimeout    = 200 * time.Millisecond
)

// KlipperTransport talks to the Klipper API server over its unix socket
// (klippy.sock). Requests are JSON objects terminated by 0x03.
type KlipperTransport struct {
	Path            string
	GreetingTimeout time.Duration
	WriteTimeout    time.Duration
	Logger          *slog.Logger

	mu     sync.Mutex
	conn   net.Conn
	nextID atomic.Int64
}

type klipperRequest struct {
	ID     int64        `json:"id"`
	Method string       `json:"method"`
	Params scriptParams `json:"params"`
}

// NewKlipperTransport creates a transport for the socket at path.
func NewKlipperTransport(path string) *KlipperTransport {
	return &KlipperTransport{
		Path:            path,
		GreetingTimeout: DefaultGreetingTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		Logger:          log.Component("klipper"),
	}
}

// Dial connects to the socket, logs any greeting and starts draining replies.
func (k *KlipperTransport) Dial(ctx context.Context) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", k.Path)
	if err != nil {
		return fmt.Errorf("connect to klipper at %s: %w", k.Path, err)
	}

	r := bufio.NewReader(conn)
	k.readGreeting(conn, r)

	k.mu.Lock()
	k.conn = conn
	k.mu.Unlock()

	go k.readReplies(r)
	k.Logger.Info("connected", "path", k.Path)
	return nil
}

// readGreeting waits briefly for anything the server sends unprompted.
func (k *KlipperTransport) readGreeting(conn net.Conn, r *bufio.Reader) {
	if k.GreetingTimeout <= 0 {
		return
	}
	conn.SetReadDeadline(time.Now().Add(k.GreetingTimeout))
	defer conn.SetReadDeadline(time.Time{})

	msg, err := r.ReadBytes(klipperTerminator)
	if len(msg) > 0 {
		k.Logger.Info("greeting", "message", string(bytes.TrimRight(msg, "\x03")))
	}
	if err != nil && !errors.Is(err, os.ErrDeadlineExceeded) {
		k.Logger.Debug("greeting read failed", "error", err)
	}
}

// readReplies logs replies until the connection closes.
func (k *KlipperTransport) readReplies(r *bufio.Reader) {
	for {
		msg, err := r.ReadBytes(klipperTerminator)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				k.Logger.Debug("reply stream ended", "error", err)
			}
			return
		}
		logReply(k.Logger, bytes.TrimRight(msg, "\x03"))
	}
}

// Write sends script as one gcode/script request.
func (k *KlipperTransport) Write(ctx context.Context, script string) error {
	k.mu.Lock()
	conn := k.conn
	k.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	req := klipperRequest{
		ID:     k.nextID.Add(1),
		Method: klipperMethod,
		Params: scriptParams{Script: script},
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	payload = append(payload, klipperTerminator)

	deadline := time.Now().Add(k.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetWriteDeadline(deadline)

	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("write %q: %w", script, err)
	}
	return nil
}

// Close closes the socket.
func (k *KlipperTransport) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.conn == nil {
		return nil
	}
	err := k.conn.Close()
	k.conn = nil
	return err
}

// logReply logs an error reply at warn and anything else at debug.
func logReply(l *slog.Logger, msg []byte) {
	var reply rpcReply
	if err := json.Unmarshal(msg, &reply); err != nil {
		l.Debug("unparsed reply", "message", string(msg))
		return
	}
	if reply.Error != nil {
		var id int64
		if reply.ID != nil {
			id = *reply.ID
		}
		l.Warn("command rejected", "id", id, "error", reply.Error.Error())
		return
	}
	l.Debug("reply", "message", string(msg))
}
