// Package proto implements the length-prefixed JSON framing shared by every
// socket in the system: a 4-byte big-endian payload length followed by exactly
// that many payload bytes.
package proto

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// DefaultMaxFrameBytes is the frame size ceiling applied when none is configured.
const DefaultMaxFrameBytes = 1 << 20

// ErrFrameTooLarge signals a declared frame length above the configured ceiling.
var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// ErrInvalidFrameLength signals a declared frame length of zero or less.
var ErrInvalidFrameLength = errors.New("invalid frame length")

// WriteFrame writes the payload preceded by its 4-byte big-endian length.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > DefaultMaxFrameBytes {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}
	//1.- Stage the header and payload into a single buffer so a peer never
	// observes a partial frame from an interleaved writer.
	buf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(payload)))
	copy(buf[4:], payload)
	_, err := w.Write(buf)
	return err
}

// ReadFrame blocks until a full frame is available and returns its payload.
// A declared length outside (0, max] is a protocol error and the caller must
// close the connection rather than attempt to resynchronise.
func ReadFrame(r io.Reader, max int) ([]byte, error) {
	if max <= 0 {
		max = DefaultMaxFrameBytes
	}
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	length := int(binary.BigEndian.Uint32(header[:]))
	if length <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidFrameLength, length)
	}
	if length > max {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, length, max)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// Conn wraps a net.Conn with framing, a frame ceiling, and an idle timeout
// used purely as a dead-peer detector.
type Conn struct {
	raw         net.Conn
	maxFrame    int
	idleTimeout time.Duration
	writeMu     sync.Mutex
}

// ConnOption customises optional Conn behaviour at construction time.
type ConnOption func(*Conn)

// WithMaxFrame overrides the default frame size ceiling.
func WithMaxFrame(max int) ConnOption {
	return func(c *Conn) {
		if max > 0 {
			c.maxFrame = max
		}
	}
}

// WithIdleTimeout arms a read deadline before every blocking receive.
func WithIdleTimeout(d time.Duration) ConnOption {
	return func(c *Conn) {
		if d > 0 {
			c.idleTimeout = d
		}
	}
}

// NewConn wraps the provided connection with framing helpers.
func NewConn(raw net.Conn, opts ...ConnOption) *Conn {
	conn := &Conn{raw: raw, maxFrame: DefaultMaxFrameBytes}
	for _, opt := range opts {
		if opt != nil {
			opt(conn)
		}
	}
	return conn
}

// Raw exposes the wrapped connection for address inspection.
func (c *Conn) Raw() net.Conn {
	if c == nil {
		return nil
	}
	return c.raw
}

// WriteFrame sends one framed payload over the connection.
func (c *Conn) WriteFrame(payload []byte) error {
	if c == nil || c.raw == nil {
		return errors.New("connection closed")
	}
	//1.- Serialise writers: responses and directory pushes share this socket.
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return WriteFrame(c.raw, payload)
}

// ReadFrame receives one framed payload, honouring the idle timeout.
func (c *Conn) ReadFrame() ([]byte, error) {
	if c == nil || c.raw == nil {
		return nil, errors.New("connection closed")
	}
	//1.- Re-arm the idle deadline per read so a silent peer eventually errors
	// out without bounding any individual business operation.
	if c.idleTimeout > 0 {
		if err := c.raw.SetReadDeadline(time.Now().Add(c.idleTimeout)); err != nil {
			return nil, err
		}
	}
	return ReadFrame(c.raw, c.maxFrame)
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	if c == nil || c.raw == nil {
		return nil
	}
	return c.raw.Close()
}
