package chat

import (
	"slices"
	"sync"

	"github.com/samber/lo"
)

// Roster is the live set of sessions that completed the name handshake.
// Membership keeps join order, which is also the order of Names.
type Roster struct {
	mu      sync.RWMutex
	members []*Session
}

// NewRoster returns an empty roster.
func NewRoster() *Roster {
	return &Roster{}
}

// Add registers s. It reports false when s is already a member.
func (r *Roster) Add(s *Session) bool {
	if s == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if slices.Contains(r.members, s) {
		return false
	}
	r.members = append(r.members, s)
	return true
}

// Remove drops s. Removing a session that is not a member is a no-op and
// reports false.
func (r *Roster) Remove(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := slices.Index(r.members, s)
	if i < 0 {
		return false
	}
	r.members = slices.Delete(r.members, i, i+1)
	return true
}

// Contains reports whether s is currently registered.
func (r *Roster) Contains(s *Session) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Contains(r.members, s)
}

// Sessions returns a snapshot of the members in join order.
func (r *Roster) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.members)
}

// Names returns the display names of the members in join order.
// Duplicate names are listed once per session.
func (r *Roster) Names() []string {
	return lo.Map(r.Sessions(), func(s *Session, _ int) string {
		return s.Name()
	})
}

// Len returns the number of members.
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}
