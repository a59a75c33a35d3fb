package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomFromChannel(t *testing.T) {
	tests := []struct {
		channel string
		want    string
		wantErr bool
	}{
		{channel: RoomEventsChannel("Chat_20000"), want: "Chat_20000"},
		{channel: "chat:room::events", wantErr: true},
		{channel: "chat:room:Chat_1", wantErr: true},
		{channel: "other:room:Chat_1:events", wantErr: true},
		{channel: "chat:room:Chat_1:messages", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.channel, func(t *testing.T) {
			got, err := roomFromChannel(tt.channel)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewEvent(t *testing.T) {
	evt, err := NewEvent(EventMemberRenamed, "Chat_20000", RenamePayload{From: "alice", To: "carol"})
	require.NoError(t, err)
	assert.Equal(t, EventMemberRenamed, evt.Type)
	assert.Equal(t, "Chat_20000", evt.Room)
	assert.False(t, evt.Timestamp.IsZero())

	var p RenamePayload
	require.NoError(t, json.Unmarshal(evt.Payload, &p))
	assert.Equal(t, RenamePayload{From: "alice", To: "carol"}, p)
}

func TestNewPublisher(t *testing.T) {
	for _, driver := range []string{"", "none"} {
		p, err := NewPublisher(Config{Driver: driver})
		require.NoError(t, err)
		assert.IsType(t, NopPublisher{}, p)
		assert.NoError(t, p.Publish(context.Background(), RoomEventsChannel("Chat_1"), &Event{}))
		assert.NoError(t, p.Close())
	}

	_, err := NewPublisher(Config{Driver: "carrier-pigeon"})
	assert.Error(t, err)
}
