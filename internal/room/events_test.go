package room

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/qwb00/ChatApp/internal/domain"
	"github.com/qwb00/ChatApp/pkg/pubsub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu       sync.Mutex
	channels []string
	events   []*pubsub.Event
}

func (p *recordingPublisher) Publish(_ context.Context, channel string, evt *pubsub.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels = append(p.channels, channel)
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func TestServer_PublishesRoomEvents(t *testing.T) {
	pub := &recordingPublisher{}
	s, err := NewServer("127.0.0.1", 0, "Chat_events", pub)
	require.NoError(t, err)
	go s.Serve()
	t.Cleanup(func() { s.Close() })

	alice := joinAs(t, s, "alice")
	alice.send(t, domain.NewMessage(domain.MsgTypeText, "hello"))
	alice.expect(t, domain.MsgTypeText)
	alice.send(t, domain.NewMessage(domain.MsgTypeCommand, "/rename carol"))
	alice.expect(t, domain.MsgTypeNicknameChanged)
	alice.send(t, domain.Message{Type: domain.MsgTypeDisconnect})

	want := []string{
		pubsub.EventMemberJoined,
		pubsub.EventMessagePosted,
		pubsub.EventMemberRenamed,
		pubsub.EventMemberLeft,
	}
	require.Eventually(t, func() bool { return len(pub.types()) == len(want) }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, want, pub.types())

	pub.mu.Lock()
	defer pub.mu.Unlock()
	for i, evt := range pub.events {
		assert.Equal(t, "Chat_events", evt.Room)
		assert.Equal(t, pubsub.RoomEventsChannel("Chat_events"), pub.channels[i])
	}

	var posted pubsub.MessagePayload
	require.NoError(t, json.Unmarshal(pub.events[1].Payload, &posted))
	assert.Equal(t, pubsub.MessagePayload{Sender: "alice", Content: "hello"}, posted)

	var left pubsub.MemberPayload
	require.NoError(t, json.Unmarshal(pub.events[3].Payload, &left))
	assert.Equal(t, "carol", left.Member)
}
