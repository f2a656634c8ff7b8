package chat

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const testTimeout = 2 * time.Second

// newTestHub builds a hub and a loopback listener that serves every accepted
// connection through it. Both are torn down with the test.
func newTestHub(t *testing.T, opts Options) (*Hub, string) {
	t.Helper()

	hub, err := NewHub(opts, zerolog.Nop())
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				_ = hub.Serve(NewStreamConn(conn, 4096, testTimeout))
			}()
		}
	}()

	t.Cleanup(func() {
		_ = ln.Close()
		_ = hub.Shutdown(testTimeout)
	})
	return hub, ln.Addr().String()
}

// lineClient is a raw protocol client used to drive sessions in tests.
type lineClient struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dialClient(t *testing.T, addr string) *lineClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, testTimeout)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &lineClient{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func (c *lineClient) send(line string) {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetWriteDeadline(time.Now().Add(testTimeout)))
	_, err := fmt.Fprintf(c.conn, "%s\n", line)
	require.NoError(c.t, err)
}

func (c *lineClient) next() string {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(testTimeout)))
	line, err := c.r.ReadString('\n')
	require.NoError(c.t, err, "waiting for a line")
	return strings.TrimSuffix(line, "\n")
}

func (c *lineClient) expect(lines ...string) {
	c.t.Helper()
	for _, want := range lines {
		require.Equal(c.t, want, c.next())
	}
}

// block reads lines between open and end directives.
func (c *lineClient) block(open, end string) []string {
	c.t.Helper()
	require.Equal(c.t, open, c.next())
	lines := []string{}
	for {
		line := c.next()
		if line == end {
			return lines
		}
		lines = append(lines, line)
	}
}

// join performs the name handshake and returns the replayed history.
func (c *lineClient) join(name string) []string {
	c.t.Helper()
	c.expect(DirectiveSubmitName)
	c.send(name)
	return c.block(DirectiveHistory, DirectiveEndHistory)
}

// expectSilence asserts that nothing arrives within d.
func (c *lineClient) expectSilence(d time.Duration) {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(d)))
	line, err := c.r.ReadString('\n')
	require.Error(c.t, err, "unexpected line %q", line)
	require.True(c.t, errors.Is(err, os.ErrDeadlineExceeded), "unexpected error: %v", err)
}

// expectClosed asserts that the server closed the stream.
func (c *lineClient) expectClosed() {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(testTimeout)))
	for {
		_, err := c.r.ReadString('\n')
		if err != nil {
			require.False(c.t, errors.Is(err, os.ErrDeadlineExceeded), "connection was not closed")
			return
		}
	}
}

// waitHistory blocks until the hub history holds n entries.
func waitHistory(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.History().Len() == n }, testTimeout, 5*time.Millisecond)
}

// waitOnline blocks until the roster holds n sessions.
func waitOnline(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Roster().Len() == n }, testTimeout, 5*time.Millisecond)
}
