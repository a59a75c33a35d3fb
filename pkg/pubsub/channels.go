package pubsub

import (
	"fmt"
	"strings"
)

// Channel naming conventions for room activity.
const (
	ChannelRoomEvents = "chat:room:%s:events"
)

// Event types for room activity.
const (
	EventMemberJoined  = "member_joined"
	EventMemberLeft    = "member_left"
	EventMemberRenamed = "member_renamed"
	EventMessagePosted = "message_posted"
)

// RoomEventsChannel returns the channel name for a room's activity feed.
func RoomEventsChannel(room string) string {
	return fmt.Sprintf(ChannelRoomEvents, room)
}

// roomFromChannel extracts the room name from a room events channel.
//
//	"chat:room:Chat_20000:events" → "Chat_20000"
func roomFromChannel(channel string) (string, error) {
	parts := strings.Split(channel, ":")
	if len(parts) != 4 || parts[0] != "chat" || parts[1] != "room" || parts[3] != "events" || parts[2] == "" {
		return "", fmt.Errorf("invalid channel format: %s", channel)
	}
	return parts[2], nil
}

// MemberPayload describes a member joining or leaving.
type MemberPayload struct {
	Member string `json:"member"`
}

// RenamePayload describes a nickname change.
type RenamePayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// MessagePayload describes a text posted to a room.
type MessagePayload struct {
	Sender  string `json:"sender"`
	Content string `json:"content"`
}
