package chat

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// State is a step of the session lifecycle.
type State int32

const (
	StateConnecting State = iota
	StateAwaitingName
	StateActive
	StateClosing
	StateClosed
)

func (st State) String() string {
	switch st {
	case StateConnecting:
		return "connecting"
	case StateAwaitingName:
		return "awaiting-name"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is the server side of one participant connection, from the name
// handshake through cleanup. All writes to the peer go through its outbound
// queue and are performed by a single write pump.
type Session struct {
	id      string
	conn    LineConn
	hub     *Hub
	log     zerolog.Logger
	name    string
	limiter *rate.Limiter
	state   atomic.Int32

	send   chan []string
	quit   chan struct{}
	writer sync.WaitGroup

	failOnce   sync.Once
	closeOnce  sync.Once
	finishOnce sync.Once
	causeMu    sync.Mutex
	cause      error
}

// ID returns the unique session identifier used in logs.
func (s *Session) ID() string {
	return s.id
}

// Name returns the display name. It is empty until the handshake completes
// and never changes afterwards.
func (s *Session) Name() string {
	return s.name
}

// State returns the current lifecycle step.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// run drives the whole lifecycle and returns why the session ended.
// A nil error means the peer quit or closed the stream.
func (s *Session) run() error {
	s.writer.Add(1)
	go s.writePump()
	defer s.finish()

	if err := s.handshake(); err != nil {
		return s.reason(err)
	}

	s.hub.join(s)
	defer s.hub.leave(s)

	return s.reason(s.readLoop())
}

// handshake asks for a name and reads one line. A closed stream or a blank
// name yields ErrNoName and the session never joins.
func (s *Session) handshake() error {
	s.setState(StateAwaitingName)
	s.enqueue([]string{DirectiveSubmitName})

	line, err := s.conn.ReadLine()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return ErrNoName
		}
		return fmt.Errorf("%w: %w", ErrNoName, err)
	}
	name := normalizeName(line)
	if name == "" {
		return ErrNoName
	}
	s.name = name
	return nil
}

// readLoop dispatches each inbound line until the peer quits or the stream
// ends. A nil return means an orderly exit.
func (s *Session) readLoop() error {
	log := s.log.With().Str("name", s.name).Logger()
	for {
		line, err := s.conn.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		switch parseCommand(line) {
		case commandQuit:
			log.Debug().Msg("Quit requested")
			return nil
		case commandUsers:
			if !s.enqueue(framed(DirectiveUserList, DirectiveEndUserList, s.hub.roster.Names())) {
				return ErrQueueFull
			}
		default:
			if !s.allow() {
				log.Warn().Msg("Rate limit exceeded; discarding message")
				continue
			}
			s.hub.broadcaster.Broadcast(ChatLine(s.name, line), s)
		}
	}
}

// allow reports whether the rate limiter admits another chat line.
func (s *Session) allow() bool {
	return s.limiter == nil || s.limiter.Allow()
}

// enqueue queues a frame for the write pump without blocking. It reports
// false only when the queue is full; frames for a closing session are
// silently discarded.
func (s *Session) enqueue(frame []string) bool {
	select {
	case <-s.quit:
		return true
	default:
	}
	select {
	case s.send <- frame:
		return true
	default:
		return false
	}
}

// writePump is the only writer to the connection. On quit it flushes what is
// still queued once and returns.
func (s *Session) writePump() {
	defer s.writer.Done()
	for {
		select {
		case frame := <-s.send:
			if !s.write(frame) {
				return
			}
		case <-s.quit:
			if len(s.send) > 0 {
				s.write(<-s.send)
			}
			return
		}
	}
}

// write sends frame together with everything already queued behind it.
func (s *Session) write(frame []string) bool {
	lines := append([]string(nil), frame...)
	for n := len(s.send); n > 0; n-- {
		lines = append(lines, <-s.send...)
	}
	if err := s.conn.WriteLines(lines); err != nil {
		if !IsClosedConnError(err) {
			s.log.Warn().Err(err).Msg("Write failed")
		}
		s.fail(err)
		return false
	}
	return true
}

// fail records the first fault and closes the connection, which unblocks the
// read loop so the session runs its regular cleanup.
func (s *Session) fail(err error) {
	s.failOnce.Do(func() {
		s.causeMu.Lock()
		s.cause = err
		s.causeMu.Unlock()
		s.closeConn()
	})
}

// reason prefers a recorded fault over the read error it provoked.
func (s *Session) reason(err error) error {
	s.causeMu.Lock()
	defer s.causeMu.Unlock()
	if s.cause != nil && !errors.Is(err, ErrNoName) {
		return s.cause
	}
	return err
}

func (s *Session) closeConn() {
	s.closeOnce.Do(func() {
		if err := s.conn.Close(); err != nil && !IsClosedConnError(err) {
			s.log.Debug().Err(err).Msg("Error closing connection")
		}
	})
}

// finish flushes pending output, stops the write pump and releases the
// connection. It runs exactly once, on every exit path of run.
func (s *Session) finish() {
	s.finishOnce.Do(func() {
		close(s.quit)
		s.writer.Wait()
		s.closeConn()
		s.setState(StateClosed)
	})
}
