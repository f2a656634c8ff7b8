package chat

import "errors"

var (
	// ErrNoName is returned when the stream ends, or a blank line arrives,
	// before the peer submitted a display name. Such a session never joined.
	ErrNoName = errors.New("chat: connection closed before a name was submitted")

	// ErrQueueFull is returned for a session whose outbound queue overflowed
	// because the peer was not reading fast enough.
	ErrQueueFull = errors.New("chat: send queue full")

	// ErrHubClosed is returned for connections served after Shutdown and for
	// sessions interrupted by it.
	ErrHubClosed = errors.New("chat: hub is shut down")
)
