package client

import (
	"github.com/qwb00/ChatApp/internal/domain"
)

const timeLayout = "15:04:05"

// Format renders msg as one block of terminal text.
func Format(msg domain.Message) string {
	switch msg.Type {
	case domain.MsgTypeText:
		if msg.Timestamp == nil {
			return msg.Sender + ": " + msg.Payload
		}
		return "[" + msg.Timestamp.Local().Format(timeLayout) + "] " + msg.Sender + ": " + msg.Payload
	case domain.MsgTypeUserList:
		return "Users in chat: " + msg.Payload
	case domain.MsgTypeError:
		return "Error: " + msg.Payload
	default:
		return msg.Payload
	}
}
