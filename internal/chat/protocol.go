package chat

import (
	"strings"
	"unicode/utf8"
)

// Message is one decoded protocol line. The chat server frames
// messages as pipe-delimited lines, optionally preceded by a ">roomid"
// line naming the room the rest of the frame belongs to.
type Message struct {
	Room    string
	Command string
	Args    []string
}

// rank sigils the server prefixes to usernames in chat lines.
const rankSigils = "~#&@%+*!?✖☆"

// ParseFrame splits one websocket frame into protocol messages.
// Lines that carry no command (login prompts, MOTD text) are dropped.
func ParseFrame(frame string) []Message {
	room := ""
	var msgs []Message
	for _, line := range strings.Split(frame, "\n") {
		if strings.HasPrefix(line, ">") {
			room = strings.TrimPrefix(line, ">")
			continue
		}
		if !strings.HasPrefix(line, "|") {
			continue
		}
		parts := strings.Split(line[1:], "|")
		if parts[0] == "" {
			continue
		}
		msgs = append(msgs, Message{
			Room:    room,
			Command: parts[0],
			Args:    parts[1:],
		})
	}
	return msgs
}

// StripRank removes the leading rank sigil from a username, if any.
// Regular users carry a space sigil, which is trimmed the same way.
func StripRank(name string) string {
	if name == "" {
		return name
	}
	r, size := utf8.DecodeRuneInString(name)
	if r == ' ' || strings.ContainsRune(rankSigils, r) {
		return name[size:]
	}
	return name
}
