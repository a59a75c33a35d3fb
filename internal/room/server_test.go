package room

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/qwb00/ChatApp/internal/domain"
	"github.com/qwb00/ChatApp/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startRoom(t *testing.T) *Server {
	t.Helper()

	s, err := NewServer("127.0.0.1", 0, "Chat_test", nil)
	require.NoError(t, err)
	go s.Serve()
	t.Cleanup(func() { s.Close() })
	return s
}

type testMember struct {
	raw  net.Conn
	conn *transport.StreamConn
}

func dialRoom(t *testing.T, s *Server) *testMember {
	t.Helper()

	raw, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	require.NoError(t, raw.SetDeadline(time.Now().Add(5*time.Second)))
	t.Cleanup(func() { raw.Close() })

	return &testMember{raw: raw, conn: transport.NewStreamConn(raw)}
}

func (m *testMember) send(t *testing.T, msg domain.Message) {
	t.Helper()
	require.NoError(t, m.conn.Send(msg))
}

func (m *testMember) next(t *testing.T) domain.Message {
	t.Helper()
	msg, err := m.conn.Receive()
	require.NoError(t, err)
	return msg
}

func (m *testMember) expect(t *testing.T, typ domain.MessageType) domain.Message {
	t.Helper()
	msg := m.next(t)
	require.Equal(t, typ, msg.Type, "payload: %q", msg.Payload)
	return msg
}

// joinAs completes the handshake and consumes the member's own USER_ADDED.
func joinAs(t *testing.T, s *Server, name string) *testMember {
	t.Helper()

	m := dialRoom(t, s)
	m.expect(t, domain.MsgTypeNameRequest)
	m.send(t, domain.NewMessage(domain.MsgTypeUserName, name))
	m.expect(t, domain.MsgTypeNameAccepted)
	added := m.expect(t, domain.MsgTypeUserAdded)
	require.Equal(t, name, added.Sender)
	return m
}

func TestServer_HandshakeRetriesUntilValidName(t *testing.T) {
	s := startRoom(t)
	alice := joinAs(t, s, "alice")

	m := dialRoom(t, s)
	m.expect(t, domain.MsgTypeNameRequest)

	tests := []struct {
		name   string
		msg    domain.Message
		reason string
	}{
		{name: "wrong type", msg: domain.NewMessage(domain.MsgTypeText, "hello"), reason: domain.ReasonInvalidResponse},
		{name: "empty name", msg: domain.NewMessage(domain.MsgTypeUserName, ""), reason: domain.ReasonInvalidName},
		{name: "blank name", msg: domain.NewMessage(domain.MsgTypeUserName, "   "), reason: domain.ReasonInvalidName},
		{name: "duplicate name", msg: domain.NewMessage(domain.MsgTypeUserName, "alice"), reason: domain.ReasonInvalidName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m.send(t, tt.msg)
			errMsg := m.expect(t, domain.MsgTypeError)
			assert.Equal(t, tt.reason, errMsg.Payload)
			m.expect(t, domain.MsgTypeNameRequest)
		})
	}

	m.send(t, domain.NewMessage(domain.MsgTypeUserName, "bob"))
	accepted := m.expect(t, domain.MsgTypeNameAccepted)
	assert.Equal(t, "Welcome to Chat_test", accepted.Payload)
	m.expect(t, domain.MsgTypeUserAdded)

	added := alice.expect(t, domain.MsgTypeUserAdded)
	assert.Equal(t, "bob", added.Sender)
	assert.Equal(t, "bob has joined the chat.", added.Payload)
	assert.Equal(t, []string{"alice", "bob"}, s.Members())
}

func TestServer_TextReachesEveryMember(t *testing.T) {
	s := startRoom(t)
	alice := joinAs(t, s, "alice")
	bob := joinAs(t, s, "bob")
	alice.expect(t, domain.MsgTypeUserAdded)

	before := time.Now().Add(-time.Millisecond)
	alice.send(t, domain.NewMessage(domain.MsgTypeText, "hello room"))

	for _, m := range []*testMember{alice, bob} {
		msg := m.expect(t, domain.MsgTypeText)
		assert.Equal(t, "hello room", msg.Payload)
		assert.Equal(t, "alice", msg.Sender)
		assert.Equal(t, "Chat_test", msg.Room)
		require.NotNil(t, msg.Timestamp)
		assert.False(t, msg.Timestamp.Before(before))
	}
}

func TestServer_RenameBroadcastsOnce(t *testing.T) {
	s := startRoom(t)
	alice := joinAs(t, s, "alice")
	bob := joinAs(t, s, "bob")
	alice.expect(t, domain.MsgTypeUserAdded)

	alice.send(t, domain.NewMessage(domain.MsgTypeCommand, "/rename  alicia "))

	for _, m := range []*testMember{alice, bob} {
		msg := m.expect(t, domain.MsgTypeNicknameChanged)
		assert.Equal(t, "alice changed nickname to alicia", msg.Payload)
	}
	assert.Equal(t, []string{"alicia", "bob"}, s.Members())

	// The connection keeps its binding under the new name.
	alice.send(t, domain.NewMessage(domain.MsgTypeText, "still me"))
	msg := bob.expect(t, domain.MsgTypeText)
	assert.Equal(t, "alicia", msg.Sender)
	alice.expect(t, domain.MsgTypeText)
}

func TestServer_RenameToTakenNameIsRejected(t *testing.T) {
	s := startRoom(t)
	alice := joinAs(t, s, "alice")
	bob := joinAs(t, s, "bob")
	alice.expect(t, domain.MsgTypeUserAdded)

	alice.send(t, domain.NewMessage(domain.MsgTypeCommand, "/rename bob"))
	errMsg := alice.expect(t, domain.MsgTypeError)
	assert.Equal(t, domain.ReasonInvalidNickname, errMsg.Payload)

	// bob saw nothing: his next frame is the reply to his own request.
	bob.send(t, domain.NewMessage(domain.MsgTypeCommand, "/list"))
	list := bob.expect(t, domain.MsgTypeUserList)
	assert.Equal(t, "alice, bob", list.Payload)

	alice.send(t, domain.NewMessage(domain.MsgTypeCommand, "/rename"))
	alice.expect(t, domain.MsgTypeError)
	assert.Equal(t, []string{"alice", "bob"}, s.Members())
}

func TestServer_CommandReplies(t *testing.T) {
	s := startRoom(t)
	alice := joinAs(t, s, "alice")

	tests := []struct {
		name    string
		msg     domain.Message
		want    domain.MessageType
		payload string
	}{
		{name: "list", msg: domain.NewMessage(domain.MsgTypeCommand, "/list"), want: domain.MsgTypeUserList, payload: "alice"},
		{name: "help", msg: domain.NewMessage(domain.MsgTypeCommand, "/help"), want: domain.MsgTypeHelpMessage, payload: domain.HelpText},
		{name: "unknown command", msg: domain.NewMessage(domain.MsgTypeCommand, "/dance"), want: domain.MsgTypeError, payload: domain.ReasonUnknownCommand},
		{name: "exit is client side", msg: domain.NewMessage(domain.MsgTypeCommand, "/exit"), want: domain.MsgTypeError, payload: domain.ReasonUnknownCommand},
		{name: "invalid type", msg: domain.NewMessage(domain.MsgTypeCreateChat, "1"), want: domain.MsgTypeError, payload: domain.ReasonInvalidMessageType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alice.send(t, tt.msg)
			got := alice.expect(t, tt.want)
			assert.Equal(t, tt.payload, got.Payload)
		})
	}
}

func TestServer_AbruptCloseRemovesMemberOnce(t *testing.T) {
	s := startRoom(t)
	alice := joinAs(t, s, "alice")
	carol := joinAs(t, s, "carol")
	alice.expect(t, domain.MsgTypeUserAdded)

	require.NoError(t, carol.raw.Close())

	removed := alice.expect(t, domain.MsgTypeUserRemoved)
	assert.Equal(t, "carol", removed.Sender)
	assert.Equal(t, "carol has left the chat.", removed.Payload)

	// The name is free again and no second removal was broadcast.
	joinAs(t, s, "carol")
	added := alice.expect(t, domain.MsgTypeUserAdded)
	assert.Equal(t, "carol", added.Sender)
}

func TestServer_DisconnectMessageLeavesRoom(t *testing.T) {
	s := startRoom(t)
	alice := joinAs(t, s, "alice")
	bob := joinAs(t, s, "bob")
	alice.expect(t, domain.MsgTypeUserAdded)

	bob.send(t, domain.Message{Type: domain.MsgTypeDisconnect})

	removed := alice.expect(t, domain.MsgTypeUserRemoved)
	assert.Equal(t, "bob", removed.Sender)

	_, err := bob.conn.Receive()
	assert.ErrorIs(t, err, io.EOF)
}

func TestServer_ConcurrentJoinsWithSameName(t *testing.T) {
	s := startRoom(t)

	const contenders = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < contenders; i++ {
		m := dialRoom(t, s)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.conn.Receive(); err != nil {
				return
			}
			if err := m.conn.Send(domain.NewMessage(domain.MsgTypeUserName, "same")); err != nil {
				return
			}
			msg, err := m.conn.Receive()
			if err != nil {
				return
			}
			if msg.Type == domain.MsgTypeNameAccepted {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.Equal(t, []string{"same"}, s.Members())
}

func TestNewServer_BindFailure(t *testing.T) {
	s := startRoom(t)
	port := s.Addr().(*net.TCPAddr).Port

	_, err := NewServer("127.0.0.1", port, "Chat_dup", nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "Chat_dup"))
}

// fakeConn records frames and can be told to fail sends.
type fakeConn struct {
	mu     sync.Mutex
	sent   []domain.Message
	failed bool
}

func (f *fakeConn) Send(msg domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failed {
		return errors.New("broken pipe")
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeConn) Receive() (domain.Message, error) { return domain.Message{}, io.EOF }
func (f *fakeConn) Close() error                     { return nil }
func (f *fakeConn) RemoteAddr() string               { return "fake" }

func (f *fakeConn) frames() []domain.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Message(nil), f.sent...)
}

func TestServer_BroadcastSurvivesFailedRecipient(t *testing.T) {
	s, err := NewServer("127.0.0.1", 0, "Chat_fake", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	good1, broken, good2 := &fakeConn{}, &fakeConn{failed: true}, &fakeConn{}
	require.True(t, s.join(&member{conn: good1}, "a"))
	require.True(t, s.join(&member{conn: broken}, "b"))
	require.True(t, s.join(&member{conn: good2}, "c"))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	s.broadcast(ctx, domain.NewMessage(domain.MsgTypeText, "x"))

	assert.Len(t, good1.frames(), 1)
	assert.Len(t, good2.frames(), 1)
	// A failed send never removes the member.
	assert.Equal(t, []string{"a", "b", "c"}, s.Members())
}

func TestServer_LeaveUsesCurrentBinding(t *testing.T) {
	s, err := NewServer("127.0.0.1", 0, "Chat_fake", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	first := &member{conn: &fakeConn{}}
	require.True(t, s.join(first, "dave"))
	old, ok := s.rename(first, "david")
	require.True(t, ok)
	assert.Equal(t, "dave", old)

	second := &member{conn: &fakeConn{}}
	require.True(t, s.join(second, "dave"))

	assert.True(t, s.leave(first))
	assert.False(t, s.leave(first))
	assert.Equal(t, []string{"dave"}, s.Members())
}
