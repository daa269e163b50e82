package telemetry

import (
	"errors"
	"fmt"
	"net"
)

// MaxDatagram is the largest JPEG sent in one datagram. Frames are never
// fragmented; larger ones are skipped.
const MaxDatagram = 60000

// ErrFrameTooLarge is returned for frames over MaxDatagram.
var ErrFrameTooLarge = errors.New("telemetry: frame exceeds datagram limit")

// UDPWriter sends each frame as one raw JPEG datagram.
type UDPWriter struct {
	conn *net.UDPConn
}

// DialUDP creates a writer for host:port.
func DialUDP(addr string) (*UDPWriter, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve telemetry address %q: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("dial telemetry %s: %w", addr, err)
	}
	return &UDPWriter{conn: conn}, nil
}

// WriteFrame sends f's JPEG.
func (u *UDPWriter) WriteFrame(f *Frame) error {
	data, err := f.JPEG()
	if err != nil {
		return err
	}
	if len(data) > MaxDatagram {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(data))
	}
	_, err = u.conn.Write(data)
	return err
}

// Close closes the socket.
func (u *UDPWriter) Close() error {
	return u.conn.Close()
}
