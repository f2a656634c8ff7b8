// Package server bridges WebSocket clients onto the line protocol so browser
// participants share the same room as TCP clients.
package server

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Tyrowin/linechat/internal/chat"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	// controlWait bounds ping and close control frames.
	controlWait = 10 * time.Second
)

// Gateway upgrades HTTP requests to WebSocket sessions served by the hub.
// Each inbound text frame carries one or more protocol lines and each
// outbound line is sent as its own text frame.
type Gateway struct {
	hub          *chat.Hub
	upgrader     websocket.Upgrader
	maxLine      int
	writeTimeout time.Duration
	log          zerolog.Logger
}

// NewGateway creates a Gateway enforcing the configured origins, line limit
// and write timeout.
func NewGateway(hub *chat.Hub, cfg Config, log zerolog.Logger) *Gateway {
	origins := newOriginPolicy(cfg.Origins(), log)
	return &Gateway{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.check,
		},
		maxLine:      cfg.MaxLineLength,
		writeTimeout: cfg.WriteTimeout,
		log:          log,
	}
}

// ServeHTTP validates the method, upgrades the connection and runs the chat
// session until it ends.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("WebSocket upgrade failed")
		return
	}

	_ = g.hub.Serve(newWSConn(conn, r.RemoteAddr, g.maxLine, g.writeTimeout))
}

// wsConn adapts a WebSocket connection to chat.LineConn.
type wsConn struct {
	conn         *websocket.Conn
	addr         string
	writeTimeout time.Duration

	pending []string

	stop      chan struct{}
	closeOnce sync.Once
}

func newWSConn(conn *websocket.Conn, addr string, maxLine int, writeTimeout time.Duration) *wsConn {
	c := &wsConn{
		conn:         conn,
		addr:         addr,
		writeTimeout: writeTimeout,
		stop:         make(chan struct{}),
	}

	conn.SetReadLimit(int64(maxLine))
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.keepalive()
	return c
}

func (c *wsConn) keepalive() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(controlWait)); err != nil {
				return
			}
		}
	}
}

func (c *wsConn) ReadLine() (string, error) {
	for len(c.pending) == 0 {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if isExpectedCloseError(err) {
				return "", io.EOF
			}
			return "", err
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		c.pending = splitFrame(string(data))
	}

	line := c.pending[0]
	c.pending = c.pending[1:]
	return line, nil
}

func (c *wsConn) WriteLines(lines []string) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	for _, line := range lines {
		if err := c.conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
			return err
		}
	}
	return nil
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stop)
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(controlWait),
		)
		err = c.conn.Close()
	})
	return err
}

func (c *wsConn) RemoteAddr() string {
	return c.addr
}

// splitFrame turns one frame into protocol lines. A single trailing line
// terminator is dropped and an empty frame is one empty line.
func splitFrame(frame string) []string {
	lines := strings.Split(strings.TrimSuffix(frame, "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// isExpectedCloseError reports whether err is an orderly or abrupt peer
// disconnect rather than a protocol failure.
func isExpectedCloseError(err error) bool {
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
		websocket.CloseAbnormalClosure,
	) {
		return true
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return false
	}
	return chat.IsClosedConnError(err)
}
