package server

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/linechat/internal/chat"
)

const testTimeout = 2 * time.Second

// testStack is a hub served over a loopback TCP listener and an HTTP test
// server carrying the gateway.
type testStack struct {
	hub     *chat.Hub
	tcpAddr string
	http    *httptest.Server
}

func (s *testStack) wsURL() string {
	return "ws" + strings.TrimPrefix(s.http.URL, "http") + "/ws"
}

func startStack(t *testing.T, customize func(cfg *Config)) *testStack {
	t.Helper()

	cfg := NewConfig()
	cfg.TCPAddr = "127.0.0.1:0"
	cfg.WriteTimeout = testTimeout
	if customize != nil {
		customize(cfg)
	}

	hub, err := chat.NewHub(cfg.HubOptions(nil), zerolog.Nop())
	require.NoError(t, err)

	ln, err := Listen(*cfg, hub, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ln.Serve(ctx) }()

	srv := httptest.NewServer(SetupRoutes(hub, NewGateway(hub, *cfg, zerolog.Nop()), nil))

	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
		_ = hub.Shutdown(testTimeout)
		srv.Close()
	})

	return &testStack{hub: hub, tcpAddr: ln.Addr().String(), http: srv}
}

func waitHistory(t *testing.T, hub *chat.Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.History().Len() == n }, testTimeout, 5*time.Millisecond)
}

// tcpClient speaks the raw line protocol.
type tcpClient struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dialTCP(t *testing.T, addr string) *tcpClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, testTimeout)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &tcpClient{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func (c *tcpClient) send(line string) {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetWriteDeadline(time.Now().Add(testTimeout)))
	_, err := fmt.Fprintf(c.conn, "%s\n", line)
	require.NoError(c.t, err)
}

func (c *tcpClient) expect(lines ...string) {
	c.t.Helper()
	for _, want := range lines {
		require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(testTimeout)))
		line, err := c.r.ReadString('\n')
		require.NoError(c.t, err, "waiting for %q", want)
		require.Equal(c.t, want, strings.TrimSuffix(line, "\n"))
	}
}

// wsClient sends and receives one line per text frame.
type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dialWS(t *testing.T, url, origin string) *wsClient {
	t.Helper()
	header := http.Header{}
	header.Set("Origin", origin)

	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(frame string) {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetWriteDeadline(time.Now().Add(testTimeout)))
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func (c *wsClient) expect(lines ...string) {
	c.t.Helper()
	for _, want := range lines {
		require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(testTimeout)))
		messageType, data, err := c.conn.ReadMessage()
		require.NoError(c.t, err, "waiting for %q", want)
		require.Equal(c.t, websocket.TextMessage, messageType)
		require.Equal(c.t, want, string(data))
	}
}

func (c *wsClient) close() {
	c.t.Helper()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	require.NoError(c.t, c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(testTimeout)))
	_ = c.conn.Close()
}
