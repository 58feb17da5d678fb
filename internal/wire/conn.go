//go:build linux

package wire

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

var (
	ErrConnClosed = errors.New("wire: connection closed")
	ErrNoMessage  = errors.New("wire: no message available")
)

// Conn carries framed messages and passed fds over one client's Unix
// domain socket (§4.6 "accept a client connection"). It is the
// server-side counterpart of the request/event exchange a generated
// protocol binding performs on the client.
type Conn struct {
	conn     net.Conn
	connFile *os.File

	mu      sync.Mutex
	readBuf []byte
	closed  bool
}

// NewConn wraps an already-accepted Unix connection.
func NewConn(conn net.Conn) (*Conn, error) {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return nil, fmt.Errorf("wire: expected unix socket, got %T", conn)
	}
	file, err := unixConn.File()
	if err != nil {
		return nil, fmt.Errorf("wire: get socket file: %w", err)
	}
	return &Conn{conn: conn, connFile: file, readBuf: make([]byte, maxMessageSize)}, nil
}

// Fd returns the underlying socket fd, for epoll registration.
func (c *Conn) Fd() int {
	if c.connFile == nil {
		return -1
	}
	return int(c.connFile.Fd())
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.connFile != nil {
		_ = c.connFile.Close()
	}
	return c.conn.Close()
}

// Send encodes and writes one message, passing its fds via SCM_RIGHTS
// when present.
func (c *Conn) Send(msg *Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}

	data, err := EncodeMessage(msg)
	if err != nil {
		return err
	}
	if len(msg.FDs) > 0 {
		return unix.Sendmsg(int(c.connFile.Fd()), data, unix.UnixRights(msg.FDs...), nil, 0)
	}
	_, err = c.conn.Write(data)
	return err
}

// Recv reads exactly one framed message, along with any fds the
// client attached via SCM_RIGHTS.
func (c *Conn) Recv() (*Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrConnClosed
	}

	oob := make([]byte, 256)
	n, oobn, _, _, err := unix.Recvmsg(int(c.connFile.Fd()), c.readBuf, oob, 0)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrNoMessage
		}
		return nil, fmt.Errorf("wire: recvmsg: %w", err)
	}
	if n == 0 {
		return nil, ErrConnClosed
	}

	fds, err := parseFileDescriptors(oob[:oobn])
	if err != nil {
		return nil, err
	}

	decoder := NewDecoder(c.readBuf[:n])
	decoder.fds = fds
	msg, err := decoder.DecodeMessage()
	if err != nil {
		return nil, err
	}
	msg.FDs = fds
	return msg, nil
}

func parseFileDescriptors(oob []byte) ([]int, error) {
	if len(oob) == 0 {
		return nil, nil
	}
	scms, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return nil, fmt.Errorf("wire: parse control message: %w", err)
	}
	var fds []int
	for _, scm := range scms {
		if scm.Header.Level != unix.SOL_SOCKET || scm.Header.Type != unix.SCM_RIGHTS {
			continue
		}
		got, err := unix.ParseUnixRights(&scm)
		if err != nil {
			return nil, fmt.Errorf("wire: parse unix rights: %w", err)
		}
		fds = append(fds, got...)
	}
	return fds, nil
}
