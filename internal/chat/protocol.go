// Package chat defines the line-oriented chat protocol: directives that frame
// control blocks, the notices the server generates, and command parsing for
// lines received from participants.
package chat

import "strings"

// Directives are reserved lines that separate control framing from payload.
const (
	DirectiveSubmitName  = "SUBMITNAME"
	DirectiveHistory     = "HISTORY"
	DirectiveEndHistory  = "ENDHISTORY"
	DirectiveUserList    = "USERLIST"
	DirectiveEndUserList = "ENDUSERLIST"
)

// Commands a participant may send after the name handshake.
const (
	CommandUsers = "/users"
	CommandQuit  = "/quit"
)

type command int

const (
	commandSay command = iota
	commandUsers
	commandQuit
)

// parseCommand classifies an inbound line. "/quit" must match the whole line,
// "/users" is matched as a prefix so trailing arguments are ignored.
func parseCommand(line string) command {
	switch {
	case line == CommandQuit:
		return commandQuit
	case strings.HasPrefix(line, CommandUsers):
		return commandUsers
	default:
		return commandSay
	}
}

// ChatLine renders a message authored by a participant.
func ChatLine(name, text string) string {
	return name + ": " + text
}

// JoinNotice renders the system notice announcing a new participant.
func JoinNotice(name string) string {
	return name + " has joined."
}

// LeaveNotice renders the system notice announcing a departed participant.
func LeaveNotice(name string) string {
	return name + " has left."
}

// framed wraps lines between an opening and a closing directive, producing a
// single frame that is written to the peer without interleaving.
func framed(open, end string, lines []string) []string {
	frame := make([]string, 0, len(lines)+2)
	frame = append(frame, open)
	frame = append(frame, lines...)
	return append(frame, end)
}

// normalizeName trims surrounding whitespace from the handshake line.
func normalizeName(line string) string {
	return strings.TrimSpace(line)
}
