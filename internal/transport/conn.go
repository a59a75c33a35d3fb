package transport

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/qwb00/ChatApp/internal/domain"
)

var (
	// ErrTransport wraps I/O failures on a closed or broken stream.
	ErrTransport = errors.New("transport error")
	// ErrDecode wraps malformed frames. The connection cannot be reused afterwards.
	ErrDecode = errors.New("decode error")
)

// Conn carries whole message frames in both directions. Receive returns io.EOF
// when the peer closes cleanly between frames.
type Conn interface {
	Send(msg domain.Message) error
	Receive() (domain.Message, error)
	Close() error
	RemoteAddr() string
}

// StreamConn frames messages as newline terminated JSON objects over a byte
// stream. Send is safe for concurrent use; Receive must only be called by the
// owning handler.
type StreamConn struct {
	conn    net.Conn
	writer  *bufio.Writer
	encoder *json.Encoder
	decoder *json.Decoder
	writeMu sync.Mutex
	once    sync.Once
	closed  error
}

// NewStreamConn wraps an established network connection.
func NewStreamConn(conn net.Conn) *StreamConn {
	w := bufio.NewWriter(conn)
	return &StreamConn{
		conn:    conn,
		writer:  w,
		encoder: json.NewEncoder(w),
		decoder: json.NewDecoder(bufio.NewReader(conn)),
	}
}

// Dial opens a TCP connection to address and wraps it.
func Dial(address string) (*StreamConn, error) {
	conn, err := net.Dial("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrTransport, address, err)
	}
	return NewStreamConn(conn), nil
}

func (c *StreamConn) Send(msg domain.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	// Encode appends the terminating newline.
	if err := c.encoder.Encode(msg); err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if err := c.writer.Flush(); err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return nil
}

func (c *StreamConn) Receive() (domain.Message, error) {
	var msg domain.Message
	if err := c.decoder.Decode(&msg); err != nil {
		return domain.Message{}, classifyReadError(err)
	}
	if !msg.Type.Valid() {
		return domain.Message{}, fmt.Errorf("%w: unknown message type %q", ErrDecode, msg.Type)
	}
	return msg, nil
}

// Close closes the underlying stream. Only the first call has an effect.
func (c *StreamConn) Close() error {
	c.once.Do(func() {
		c.closed = c.conn.Close()
	})
	return c.closed
}

func (c *StreamConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func classifyReadError(err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, io.EOF):
		return io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: truncated frame", ErrDecode)
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return fmt.Errorf("%w: %v", ErrDecode, err)
	default:
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
}

// Encode renders msg as a single frame without the trailing newline.
func Encode(msg domain.Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return data, nil
}

// Decode parses one complete frame.
func Decode(data []byte) (domain.Message, error) {
	var msg domain.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if !msg.Type.Valid() {
		return domain.Message{}, fmt.Errorf("%w: unknown message type %q", ErrDecode, msg.Type)
	}
	return msg, nil
}
