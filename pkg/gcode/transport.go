package gcode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Channel errors.
var (
	ErrNotConnected = errors.New("gcode: not connected")
	ErrDisconnected = errors.New("gcode: disconnected")
	ErrQueueFull    = errors.New("gcode: queue full")
	ErrClosed       = errors.New("gcode: channel closed")
)

// Transport delivers one G-code script to the printer. Write is called from
// a single goroutine.
type Transport interface {
	Dial(ctx context.Context) error
	Write(ctx context.Context, script string) error
	Close() error
}

// rpcError is the error member of a JSON-RPC reply.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	if e.Code == 0 {
		return e.Message
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// rpcReply is the subset of a JSON-RPC reply the transports inspect.
type rpcReply struct {
	ID     *int64          `json:"id"`
	Method string          `json:"method"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type scriptParams struct {
	Script string `json:"script"`
}
