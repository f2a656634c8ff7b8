package chat

// Observer receives notifications about hub activity, typically to export
// metrics. Implementations must be safe for concurrent use.
type Observer interface {
	SessionJoined()
	SessionLeft()
	SessionDropped()
	MessageBroadcast(recipients int)
	HistoryLength(n int)
}

type nopObserver struct{}

func (nopObserver) SessionJoined()       {}
func (nopObserver) SessionLeft()         {}
func (nopObserver) SessionDropped()      {}
func (nopObserver) MessageBroadcast(int) {}
func (nopObserver) HistoryLength(int)    {}
