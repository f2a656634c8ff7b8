package chat

import (
	"sync"

	"github.com/rs/zerolog"
)

// Broadcaster fans a message out to the roster and records it in history.
//
// Broadcasts, and the admission of a new session, are sequenced by one lock:
// a joiner's history snapshot and its roster registration happen together, so
// every message is either replayed to it or delivered live, never both.
// Delivery only enqueues onto each session's outbound queue, so the lock is
// never held across network I/O.
type Broadcaster struct {
	seq      sync.Mutex
	roster   *Roster
	history  *History
	observer Observer
	log      zerolog.Logger
}

// NewBroadcaster wires a broadcaster to the shared roster and history.
func NewBroadcaster(roster *Roster, history *History, observer Observer, log zerolog.Logger) *Broadcaster {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Broadcaster{
		roster:   roster,
		history:  history,
		observer: observer,
		log:      log,
	}
}

// Broadcast delivers message to every registered session except exclude and
// appends it to history. Pass a nil exclude to deliver to everyone. It returns
// the number of sessions the message was queued for.
func (b *Broadcaster) Broadcast(message string, exclude *Session) int {
	frame := []string{message}

	b.seq.Lock()
	var (
		delivered int
		overflow  []*Session
	)
	for _, s := range b.roster.Sessions() {
		if exclude != nil && s == exclude {
			continue
		}
		if s.enqueue(frame) {
			delivered++
			continue
		}
		if b.roster.Remove(s) {
			overflow = append(overflow, s)
		}
	}
	n := b.history.Append(message)
	b.observer.HistoryLength(n)
	b.seq.Unlock()

	b.dropSlow(overflow)
	b.observer.MessageBroadcast(delivered)
	b.log.Debug().Int("recipients", delivered).Int("history", n).Msg("Message broadcast")
	return delivered
}

// admit registers s and queues the history replay for it in one step.
func (b *Broadcaster) admit(s *Session) {
	var overflow []*Session

	b.seq.Lock()
	if b.roster.Add(s) {
		replay := framed(DirectiveHistory, DirectiveEndHistory, b.history.Snapshot())
		if !s.enqueue(replay) && b.roster.Remove(s) {
			overflow = append(overflow, s)
		}
	}
	b.seq.Unlock()

	b.dropSlow(overflow)
}

// dropSlow closes sessions whose outbound queue overflowed. They are already
// out of the roster, so each is dropped once; its own read loop then runs the
// regular departure.
func (b *Broadcaster) dropSlow(sessions []*Session) {
	for _, s := range sessions {
		b.log.Warn().Str("session", s.ID()).Str("name", s.Name()).Msg("Dropping session with full send queue")
		b.observer.SessionDropped()
		s.fail(ErrQueueFull)
	}
}
