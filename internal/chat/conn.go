package chat

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"
	"time"
)

// LineConn is a bidirectional, ordered stream of text lines.
// ReadLine returns io.EOF once the peer has finished sending.
// WriteLines writes every line in order and is only called from one goroutine.
// Close may be called concurrently with ReadLine and WriteLines and must
// unblock both.
type LineConn interface {
	ReadLine() (string, error)
	WriteLines(lines []string) error
	Close() error
	RemoteAddr() string
}

type streamConn struct {
	conn         net.Conn
	scanner      *bufio.Scanner
	writer       *bufio.Writer
	writeTimeout time.Duration
}

// NewStreamConn adapts a byte stream such as a TCP connection to LineConn.
// Lines are separated by '\n'; a trailing '\r' is dropped. A line longer than
// maxLine bytes fails the read with bufio.ErrTooLong.
func NewStreamConn(conn net.Conn, maxLine int, writeTimeout time.Duration) LineConn {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, min(maxLine, 4096)), maxLine)
	return &streamConn{
		conn:         conn,
		scanner:      scanner,
		writer:       bufio.NewWriter(conn),
		writeTimeout: writeTimeout,
	}
}

func (c *streamConn) ReadLine() (string, error) {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSuffix(c.scanner.Text(), "\r"), nil
}

func (c *streamConn) WriteLines(lines []string) error {
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	for _, line := range lines {
		if _, err := c.writer.WriteString(line); err != nil {
			return err
		}
		if err := c.writer.WriteByte('\n'); err != nil {
			return err
		}
	}
	return c.writer.Flush()
}

func (c *streamConn) Close() error {
	return c.conn.Close()
}

func (c *streamConn) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// IsClosedConnError reports whether err is an ordinary end of stream rather
// than a transport fault worth surfacing.
func IsClosedConnError(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "connection reset by peer")
}
