package domain

import "time"

// MessageType is the closed set of frame types understood by the directory,
// the room servers and the client driver.
type MessageType string

// Directory phase.
const (
	MsgTypeRequestAction MessageType = "REQUEST_ACTION"
	MsgTypeCreateChat    MessageType = "CREATE_CHAT"
	MsgTypeJoinChat      MessageType = "JOIN_CHAT"
	MsgTypeChatCreated   MessageType = "CHAT_CREATED"
	MsgTypeChatList      MessageType = "CHAT_LIST"
	MsgTypePortRequest   MessageType = "PORT_REQUEST"
	MsgTypeChatSelected  MessageType = "CHAT_SELECTED"
	MsgTypeDisconnect    MessageType = "DISCONNECT"
)

// Room phase.
const (
	MsgTypeNameRequest     MessageType = "NAME_REQUEST"
	MsgTypeUserName        MessageType = "USER_NAME"
	MsgTypeNameAccepted    MessageType = "NAME_ACCEPTED"
	MsgTypeText            MessageType = "TEXT"
	MsgTypeUserAdded       MessageType = "USER_ADDED"
	MsgTypeUserRemoved     MessageType = "USER_REMOVED"
	MsgTypeError           MessageType = "ERROR"
	MsgTypeCommand         MessageType = "COMMAND"
	MsgTypeNicknameChanged MessageType = "NICKNAME_CHANGED"
	MsgTypeUserList        MessageType = "USER_LIST"
	MsgTypeHelpMessage     MessageType = "HELP_MESSAGE"
)

var knownTypes = map[MessageType]struct{}{
	MsgTypeRequestAction:   {},
	MsgTypeCreateChat:      {},
	MsgTypeJoinChat:        {},
	MsgTypeChatCreated:     {},
	MsgTypeChatList:        {},
	MsgTypePortRequest:     {},
	MsgTypeChatSelected:    {},
	MsgTypeDisconnect:      {},
	MsgTypeNameRequest:     {},
	MsgTypeUserName:        {},
	MsgTypeNameAccepted:    {},
	MsgTypeText:            {},
	MsgTypeUserAdded:       {},
	MsgTypeUserRemoved:     {},
	MsgTypeError:           {},
	MsgTypeCommand:         {},
	MsgTypeNicknameChanged: {},
	MsgTypeUserList:        {},
	MsgTypeHelpMessage:     {},
}

// Valid reports whether t is one of the wire message types.
func (t MessageType) Valid() bool {
	_, ok := knownTypes[t]
	return ok
}

func (t MessageType) String() string {
	return string(t)
}

// Message is a single frame on a directory or room connection. Empty optional
// fields are omitted on the wire.
type Message struct {
	Type      MessageType `json:"type"`
	Payload   string      `json:"payload,omitempty"`
	Sender    string      `json:"sender,omitempty"`
	Timestamp *time.Time  `json:"timestamp,omitempty"`
	Room      string      `json:"room,omitempty"`
}

// NewMessage builds a control message carrying only a type and a payload.
func NewMessage(t MessageType, payload string) Message {
	return Message{Type: t, Payload: payload}
}

// NewErrorMessage builds an ERROR frame with a human readable reason.
func NewErrorMessage(reason string) Message {
	return Message{Type: MsgTypeError, Payload: reason}
}

// NewTextBroadcast stamps a member-authored text with its sender, room and time.
func NewTextBroadcast(text, sender, room string, at time.Time) Message {
	ts := at.UTC()
	return Message{
		Type:      MsgTypeText,
		Payload:   text,
		Sender:    sender,
		Timestamp: &ts,
		Room:      room,
	}
}

// Equal compares two messages field by field, timestamps by instant.
func (m Message) Equal(o Message) bool {
	if m.Type != o.Type || m.Payload != o.Payload || m.Sender != o.Sender || m.Room != o.Room {
		return false
	}
	if m.Timestamp == nil || o.Timestamp == nil {
		return m.Timestamp == nil && o.Timestamp == nil
	}
	return m.Timestamp.Equal(*o.Timestamp)
}
