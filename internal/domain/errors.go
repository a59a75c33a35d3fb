package domain

import "errors"

// Protocol-level failures. They are answered with an ERROR frame and never
// close a room connection on their own.
var (
	// ErrProtocol marks a message that arrived in a state that does not expect it.
	ErrProtocol = errors.New("protocol error")
	// ErrValidation marks a well-formed request with unacceptable content.
	ErrValidation = errors.New("validation error")
)

// Human readable reasons carried in ERROR payloads.
const (
	ReasonInvalidOption      = "Invalid option. Disconnecting."
	ReasonNoChats            = "No available chats. Please create a new chat."
	ReasonInvalidPort        = "Invalid port number."
	ReasonInvalidResponse    = "Invalid response."
	ReasonCreateFailed       = "Unable to create chat. Please try again later."
	ReasonInvalidName        = "Invalid or duplicate name."
	ReasonInvalidNickname    = "Invalid or duplicate nickname."
	ReasonUnknownCommand     = "Unknown command. Type /help for a list of commands."
	ReasonInvalidMessageType = "Invalid message type."
)
