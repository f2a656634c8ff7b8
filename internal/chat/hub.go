package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Options tunes a Hub. Zero values select the defaults.
type Options struct {
	// HistorySize bounds the replayed history. Default 100.
	HistorySize int
	// SendQueueSize is the number of frames buffered per session before the
	// session is dropped as too slow. Default 256.
	SendQueueSize int
	// RateLimitBurst enables per-session chat throttling when positive:
	// at most RateLimitBurst lines per RateLimitInterval.
	RateLimitBurst    int
	RateLimitInterval time.Duration
	// Observer is notified of activity. Optional.
	Observer Observer
}

// DefaultSendQueueSize is the per-session outbound buffer.
const DefaultSendQueueSize = 256

// Hub owns the state shared by all sessions: the roster, the history buffer
// and the broadcaster. One Hub lives for the whole server run.
type Hub struct {
	roster      *Roster
	history     *History
	broadcaster *Broadcaster
	observer    Observer
	log         zerolog.Logger

	queueSize  int
	rateBurst  int
	rateWindow time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewHub builds a Hub ready to serve connections.
func NewHub(opts Options, log zerolog.Logger) (*Hub, error) {
	if opts.HistorySize == 0 {
		opts.HistorySize = DefaultHistorySize
	}
	if opts.SendQueueSize <= 0 {
		opts.SendQueueSize = DefaultSendQueueSize
	}
	if opts.RateLimitInterval <= 0 {
		opts.RateLimitInterval = time.Second
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}

	history, err := NewHistory(opts.HistorySize)
	if err != nil {
		return nil, fmt.Errorf("chat.NewHub: %w", err)
	}
	roster := NewRoster()
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		roster:      roster,
		history:     history,
		broadcaster: NewBroadcaster(roster, history, opts.Observer, log),
		observer:    opts.Observer,
		log:         log,
		queueSize:   opts.SendQueueSize,
		rateBurst:   opts.RateLimitBurst,
		rateWindow:  opts.RateLimitInterval,
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Roster returns the shared roster.
func (h *Hub) Roster() *Roster {
	return h.roster
}

// History returns the shared history buffer.
func (h *Hub) History() *History {
	return h.history
}

// Broadcaster returns the shared broadcaster.
func (h *Hub) Broadcaster() *Broadcaster {
	return h.broadcaster
}

// Serve runs a session over conn and blocks until it ends. The connection is
// always closed on return. Transports call Serve from their own goroutine,
// one per accepted connection.
func (h *Hub) Serve(conn LineConn) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return ErrHubClosed
	}
	h.wg.Add(1)
	h.mu.Unlock()
	defer h.wg.Done()

	s := h.newSession(conn)
	stop := context.AfterFunc(h.ctx, func() { s.fail(ErrHubClosed) })
	defer stop()

	s.log.Debug().Msg("Session started")
	err := s.run()
	switch {
	case errors.Is(err, ErrNoName):
		s.log.Debug().Err(err).Msg("Connection closed before joining")
	case err == nil || IsClosedConnError(err) || errors.Is(err, ErrHubClosed):
		s.log.Debug().Err(err).Msg("Session ended")
	default:
		s.log.Warn().Err(err).Msg("Session ended with error")
	}
	return err
}

func (h *Hub) newSession(conn LineConn) *Session {
	id := uuid.NewString()
	s := &Session{
		id:   id,
		conn: conn,
		hub:  h,
		log:  h.log.With().Str("session", id).Str("remote", conn.RemoteAddr()).Logger(),
		send: make(chan []string, h.queueSize),
		quit: make(chan struct{}),
	}
	if h.rateBurst > 0 {
		limit := rate.Limit(float64(h.rateBurst) / h.rateWindow.Seconds())
		s.limiter = rate.NewLimiter(limit, h.rateBurst)
	}
	s.setState(StateConnecting)
	return s
}

// join registers a named session, replays history to it and announces it to
// everyone else.
func (h *Hub) join(s *Session) {
	h.broadcaster.admit(s)
	s.setState(StateActive)
	h.observer.SessionJoined()
	s.log.Info().Str("name", s.Name()).Int("online", h.roster.Len()).Msg("Participant joined")

	h.broadcaster.Broadcast(JoinNotice(s.Name()), s)
}

// leave deregisters s before announcing the departure, so nobody receives a
// leave notice for a name that is still listed.
func (h *Hub) leave(s *Session) {
	s.setState(StateClosing)
	h.roster.Remove(s)
	h.observer.SessionLeft()
	s.log.Info().Str("name", s.Name()).Int("online", h.roster.Len()).Msg("Participant left")

	h.broadcaster.Broadcast(LeaveNotice(s.Name()), nil)
}

// Shutdown stops accepting sessions, closes every live connection and waits
// for the sessions to finish their cleanup, or until timeout.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	h.log.Info().Int("online", h.roster.Len()).Msg("Shutting down hub")
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info().Msg("Hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.log.Warn().Msg("Hub shutdown timeout reached, some sessions may still be running")
		return context.DeadlineExceeded
	}
}
