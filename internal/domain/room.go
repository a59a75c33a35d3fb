package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Room commands carried in COMMAND payloads.
const (
	CommandRename = "/rename"
	CommandList   = "/list"
	CommandHelp   = "/help"
	// CommandExit never reaches the wire; clients handle it locally.
	CommandExit = "/exit"
)

// HelpText is the fixed command summary returned for /help.
const HelpText = `Available commands:
/help           - Show this help message
/rename [name]  - Change your nickname
/list           - List users in the current chat room
/exit           - Exit the chat`

// RoomEntry is one row of the directory registry.
type RoomEntry struct {
	Port int    `json:"port"`
	Name string `json:"name"`
}

// RoomName derives the room name from its port.
func RoomName(port int) string {
	return fmt.Sprintf("Chat_%d", port)
}

// ChatCreatedText is the CHAT_CREATED announcement for port.
func ChatCreatedText(port int) string {
	return fmt.Sprintf("New chat created on port %d. Connecting you to the chat...", port)
}

// ChatSelectedText is the CHAT_SELECTED confirmation for port.
func ChatSelectedText(port int) string {
	return fmt.Sprintf("Connecting you to chat on port %d", port)
}

// ExtractPort finds the integer following the word "port" in an announcement.
func ExtractPort(text string) (int, error) {
	tokens := strings.Fields(text)
	for i, tok := range tokens {
		if !strings.EqualFold(tok, "port") || i+1 >= len(tokens) {
			continue
		}
		digits := strings.TrimFunc(tokens[i+1], func(r rune) bool {
			return r < '0' || r > '9'
		})
		port, err := strconv.Atoi(digits)
		if err != nil {
			return 0, fmt.Errorf("%w: no port in %q", ErrProtocol, text)
		}
		return port, nil
	}
	return 0, fmt.Errorf("%w: no port in %q", ErrProtocol, text)
}

// ParsePort validates a port typed by a user.
func ParsePort(s string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || port < 0 || port > 65535 {
		return 0, fmt.Errorf("%w: invalid port %q", ErrValidation, s)
	}
	return port, nil
}
