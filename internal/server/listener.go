// Package server accepts raw TCP connections and hands each one to the chat
// hub as a line-framed session.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/Tyrowin/linechat/internal/chat"
)

const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// Listener owns the TCP listening socket.
type Listener struct {
	ln           net.Listener
	hub          *chat.Hub
	maxLine      int
	writeTimeout time.Duration
	log          zerolog.Logger
}

// Listen binds the TCP address from cfg. A bind failure is returned so the
// caller can treat it as fatal.
func Listen(cfg Config, hub *chat.Hub, log zerolog.Logger) (*Listener, error) {
	ln, err := net.Listen("tcp", cfg.TCPAddr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.TCPAddr, err)
	}
	return &Listener{
		ln:           ln,
		hub:          hub,
		maxLine:      cfg.MaxLineLength,
		writeTimeout: cfg.WriteTimeout,
		log:          log,
	}, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Close stops accepting new connections.
func (l *Listener) Close() error {
	return l.ln.Close()
}

// Serve accepts connections until ctx is cancelled or the listener is closed.
// Accept errors are logged and retried with a capped backoff.
func (l *Listener) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = l.ln.Close() })
	defer stop()

	l.log.Info().Str("addr", l.Addr().String()).Msg("Accepting TCP connections")

	backoff := time.Duration(0)
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}

			backoff = nextBackoff(backoff)
			l.log.Error().Err(err).Dur("retry_in", backoff).Msg("Accept failed")

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			continue
		}
		backoff = 0

		go func() {
			_ = l.hub.Serve(chat.NewStreamConn(conn, l.maxLine, l.writeTimeout))
		}()
	}
}

func nextBackoff(current time.Duration) time.Duration {
	if current == 0 {
		return minAcceptBackoff
	}
	return min(current*2, maxAcceptBackoff)
}
