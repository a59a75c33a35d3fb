package room

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/qwb00/ChatApp/internal/audit"
	"github.com/qwb00/ChatApp/internal/domain"
	"github.com/qwb00/ChatApp/internal/transport"
	"github.com/qwb00/ChatApp/pkg/log"
	"github.com/qwb00/ChatApp/pkg/pubsub"
	"github.com/rs/zerolog"
)

const namePrompt = "Enter your name:"

// Server hosts exactly one room on its own listening port.
type Server struct {
	name     string
	port     int
	listener net.Listener
	members  map[string]*member
	mu       sync.RWMutex
	events   pubsub.Publisher
	logger   zerolog.Logger
	now      func() time.Time
}

// NewServer binds host:port for the room. The listener is open when NewServer
// returns, so a bind failure is reported to the caller before any client is
// told about the port.
func NewServer(host string, port int, name string, events pubsub.Publisher) (*Server, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("failed to bind room %s on port %d: %w", name, port, err)
	}
	if events == nil {
		events = pubsub.NopPublisher{}
	}

	return &Server{
		name:     name,
		port:     port,
		listener: ln,
		members:  make(map[string]*member),
		events:   events,
		logger:   log.L().With().Str(log.FieldRoom, name).Int(log.FieldPort, port).Logger(),
		now:      time.Now,
	}, nil
}

func (s *Server) Name() string { return s.name }

func (s *Server) Port() int { return s.port }

// Addr returns the bound listener address.
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// Serve runs the accept loop until the listener is closed. Each accepted
// connection is handled on its own goroutine.
func (s *Server) Serve() error {
	s.logger.Info().Msg("room server started")
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				s.logger.Info().Msg("room server stopped")
				return nil
			}
			s.logger.Warn().Err(err).Msg("accept failed")
			continue
		}

		go s.handle(transport.NewStreamConn(conn))
	}
}

// Close stops accepting new members. Connected members keep their handlers
// until their streams close.
func (s *Server) Close() error {
	return s.listener.Close()
}

func (s *Server) handle(conn transport.Conn) {
	defer conn.Close()

	ctx, l := log.WithConn(log.WithLogger(context.Background(), s.logger), conn.RemoteAddr())
	l.Debug().Msg("member connected")

	m := &member{conn: conn}
	if err := s.handshake(ctx, m); err != nil {
		logHandlerExit(l, err, "handshake aborted")
		return
	}

	err := s.serveMember(ctx, m)
	logHandlerExit(l, err, "member disconnected")

	if s.leave(m) {
		audit.Log(l, audit.ActionMemberLeft, m.name, "member left room")
		s.broadcast(ctx, domain.Message{
			Type:    domain.MsgTypeUserRemoved,
			Payload: m.name + " has left the chat.",
			Sender:  m.name,
		})
		s.publish(ctx, pubsub.EventMemberLeft, pubsub.MemberPayload{Member: m.name})
	}
}

// handshake prompts until the peer supplies a usable display name.
func (s *Server) handshake(ctx context.Context, m *member) error {
	for {
		if err := m.conn.Send(domain.NewMessage(domain.MsgTypeNameRequest, namePrompt)); err != nil {
			return err
		}

		msg, err := m.conn.Receive()
		if err != nil {
			return err
		}

		if msg.Type != domain.MsgTypeUserName {
			if err := m.conn.Send(domain.NewErrorMessage(domain.ReasonInvalidResponse)); err != nil {
				return err
			}
			continue
		}

		if !s.join(m, strings.TrimSpace(msg.Payload)) {
			if err := m.conn.Send(domain.NewErrorMessage(domain.ReasonInvalidName)); err != nil {
				return err
			}
			continue
		}
		break
	}

	l := log.Ctx(ctx)
	audit.Log(l, audit.ActionMemberJoined, m.name, "member joined room")

	if err := m.conn.Send(domain.NewMessage(domain.MsgTypeNameAccepted, "Welcome to "+s.name)); err != nil {
		// Already a member: the read loop will fail next and take the normal leave path.
		l.Warn().Err(err).Str(log.FieldMember, m.name).Msg("failed to send name accepted")
	}

	s.broadcast(ctx, domain.Message{
		Type:    domain.MsgTypeUserAdded,
		Payload: m.name + " has joined the chat.",
		Sender:  m.name,
	})
	s.publish(ctx, pubsub.EventMemberJoined, pubsub.MemberPayload{Member: m.name})
	return nil
}

// serveMember runs the ACTIVE read loop. It returns nil on a clean close.
func (s *Server) serveMember(ctx context.Context, m *member) error {
	for {
		msg, err := m.conn.Receive()
		if err != nil {
			return err
		}

		switch msg.Type {
		case domain.MsgTypeText:
			s.broadcast(ctx, domain.NewTextBroadcast(msg.Payload, m.name, s.name, s.now()))
			s.publish(ctx, pubsub.EventMessagePosted, pubsub.MessagePayload{Sender: m.name, Content: msg.Payload})
		case domain.MsgTypeCommand:
			s.handleCommand(ctx, m, msg.Payload)
		case domain.MsgTypeDisconnect:
			return nil
		default:
			s.reply(ctx, m, domain.NewErrorMessage(domain.ReasonInvalidMessageType))
		}
	}
}

// broadcast delivers msg to a snapshot of the membership. A failed send is
// logged and does not affect the other recipients or remove anyone.
func (s *Server) broadcast(ctx context.Context, msg domain.Message) {
	l := log.Ctx(ctx)
	for _, r := range s.recipients() {
		if err := r.conn.Send(msg); err != nil {
			l.Warn().Err(err).Str(log.FieldMember, r.name).Str("type", msg.Type.String()).Msg("broadcast send failed")
		}
	}
}

// reply sends msg to a single member only.
func (s *Server) reply(ctx context.Context, m *member, msg domain.Message) {
	if err := m.conn.Send(msg); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldMember, m.name).Str("type", msg.Type.String()).Msg("reply failed")
	}
}

func (s *Server) publish(ctx context.Context, eventType string, payload interface{}) {
	l := log.Ctx(ctx)
	evt, err := pubsub.NewEvent(eventType, s.name, payload)
	if err != nil {
		l.Error().Err(err).Str("event", eventType).Msg("failed to build room event")
		return
	}
	if err := s.events.Publish(ctx, pubsub.RoomEventsChannel(s.name), evt); err != nil {
		l.Warn().Err(err).Str("event", eventType).Msg("failed to publish room event")
	}
}

func logHandlerExit(l zerolog.Logger, err error, msg string) {
	switch {
	case err == nil, errors.Is(err, io.EOF):
		l.Debug().Msg(msg)
	case errors.Is(err, transport.ErrDecode):
		l.Warn().Err(err).Msg(msg)
	default:
		l.Info().Err(err).Msg(msg)
	}
}
