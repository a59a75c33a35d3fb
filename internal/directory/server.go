package directory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/qwb00/ChatApp/internal/audit"
	"github.com/qwb00/ChatApp/internal/domain"
	"github.com/qwb00/ChatApp/internal/room"
	"github.com/qwb00/ChatApp/internal/transport"
	"github.com/qwb00/ChatApp/pkg/log"
	"github.com/qwb00/ChatApp/pkg/pubsub"
	"github.com/rs/zerolog"
)

const (
	actionPrompt = "Do you want to (1) Create a new chat or (2) Join an existing chat? Enter 1 or 2:"
	portPrompt   = "Enter the port number of the chat you want to join:"
)

// ErrServerClosed is returned by CreateRoom after Close.
var ErrServerClosed = errors.New("directory closed")

// Config holds the directory listener and room port settings.
type Config struct {
	Host     string
	Port     int
	BasePort int
	// RoomHost is the interface room servers bind to.
	RoomHost string
}

// Server is the rendezvous point. It owns the room registry and the port
// counter; both live only in this instance.
type Server struct {
	cfg       Config
	listener  net.Listener
	rooms     map[int]*room.Server
	closed    bool
	mu        sync.RWMutex
	nextPort  int
	portMu    sync.Mutex
	events    pubsub.Publisher
	observers []RoomObserver
	logger    zerolog.Logger
}

// NewServer creates a directory. events is handed to every room it starts.
func NewServer(cfg Config, events pubsub.Publisher, observers ...RoomObserver) *Server {
	if events == nil {
		events = pubsub.NopPublisher{}
	}
	return &Server{
		cfg:       cfg,
		rooms:     make(map[int]*room.Server),
		nextPort:  cfg.BasePort,
		events:    events,
		observers: observers,
		logger:    log.L().With().Str("component", "directory").Logger(),
	}
}

// Listen binds the directory port.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)))
	if err != nil {
		return fmt.Errorf("failed to bind directory on port %d: %w", s.cfg.Port, err)
	}
	s.listener = ln
	return nil
}

// Addr returns the bound directory address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve runs the accept loop until the listener is closed.
func (s *Server) Serve() error {
	s.logger.Info().Str("address", s.listener.Addr().String()).Int("base_port", s.cfg.BasePort).Msg("directory listening")
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn().Err(err).Msg("accept failed")
			continue
		}

		go s.handle(transport.NewStreamConn(conn))
	}
}

// Close stops the directory listener and the accept loops of all rooms.
func (s *Server) Close() error {
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}

	s.mu.Lock()
	s.closed = true
	rooms := make([]*room.Server, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, r)
	}
	s.mu.Unlock()

	for _, r := range rooms {
		r.Close()
	}
	return err
}

func (s *Server) handle(conn transport.Conn) {
	defer conn.Close()

	ctx, l := log.WithConn(log.WithLogger(context.Background(), s.logger), conn.RemoteAddr())

	err := s.negotiate(ctx, conn)
	switch {
	case err == nil:
		l.Debug().Msg("directory session finished")
	case errors.Is(err, io.EOF):
		l.Debug().Msg("client left during negotiation")
	case errors.Is(err, domain.ErrProtocol), errors.Is(err, domain.ErrValidation):
		l.Info().Err(err).Msg("directory request rejected")
	default:
		l.Warn().Err(err).Msg("directory session failed")
	}
}

// negotiate runs AWAIT_ACTION and dispatches to the create or join flow.
func (s *Server) negotiate(ctx context.Context, conn transport.Conn) error {
	if err := conn.Send(domain.NewMessage(domain.MsgTypeRequestAction, actionPrompt)); err != nil {
		return err
	}

	msg, err := conn.Receive()
	if err != nil {
		return err
	}

	switch msg.Type {
	case domain.MsgTypeCreateChat:
		return s.createChat(ctx, conn)
	case domain.MsgTypeJoinChat:
		return s.joinChat(ctx, conn)
	default:
		if err := conn.Send(domain.NewErrorMessage(domain.ReasonInvalidOption)); err != nil {
			return err
		}
		if err := conn.Send(domain.Message{Type: domain.MsgTypeDisconnect}); err != nil {
			return err
		}
		return fmt.Errorf("%w: expected action, got %s", domain.ErrProtocol, msg.Type)
	}
}

func (s *Server) createChat(ctx context.Context, conn transport.Conn) error {
	entry, err := s.CreateRoom(ctx)
	if err != nil {
		if sendErr := conn.Send(domain.NewErrorMessage(domain.ReasonCreateFailed)); sendErr != nil {
			return sendErr
		}
		return err
	}

	return conn.Send(domain.Message{
		Type:    domain.MsgTypeChatCreated,
		Payload: domain.ChatCreatedText(entry.Port),
		Room:    entry.Name,
	})
}

// CreateRoom allocates the next port, starts a room server on it and
// registers it. On bind failure the port stays consumed.
func (s *Server) CreateRoom(ctx context.Context) (domain.RoomEntry, error) {
	l := log.Ctx(ctx)

	port := s.allocatePort()
	name := domain.RoomName(port)

	r, err := room.NewServer(s.cfg.RoomHost, port, name, s.events)
	if err != nil {
		l.Error().Err(err).Int(log.FieldPort, port).Msg("failed to start room server")
		return domain.RoomEntry{}, err
	}
	if !s.register(r) {
		r.Close()
		return domain.RoomEntry{}, ErrServerClosed
	}
	go r.Serve()

	entry := domain.RoomEntry{Port: port, Name: name}

	audit.LogWithDetail(l, audit.ActionRoomCreated, "", strconv.Itoa(port), "room created")
	for _, o := range s.observers {
		o.RoomCreated(ctx, entry)
	}
	return entry, nil
}

func (s *Server) joinChat(ctx context.Context, conn transport.Conn) error {
	entries := s.Rooms()
	if len(entries) == 0 {
		if err := conn.Send(domain.NewErrorMessage(domain.ReasonNoChats)); err != nil {
			return err
		}
		return s.createChat(ctx, conn)
	}

	if err := conn.Send(domain.NewMessage(domain.MsgTypeChatList, formatChatList(entries))); err != nil {
		return err
	}
	if err := conn.Send(domain.NewMessage(domain.MsgTypePortRequest, portPrompt)); err != nil {
		return err
	}

	msg, err := conn.Receive()
	if err != nil {
		return err
	}
	if msg.Type != domain.MsgTypeChatSelected {
		if err := conn.Send(domain.NewErrorMessage(domain.ReasonInvalidResponse)); err != nil {
			return err
		}
		return fmt.Errorf("%w: expected %s, got %s", domain.ErrProtocol, domain.MsgTypeChatSelected, msg.Type)
	}

	port, err := domain.ParsePort(msg.Payload)
	if err != nil {
		if sendErr := conn.Send(domain.NewErrorMessage(domain.ReasonInvalidPort)); sendErr != nil {
			return sendErr
		}
		return err
	}

	r, ok := s.Room(port)
	if !ok {
		if err := conn.Send(domain.NewErrorMessage(domain.ReasonInvalidPort)); err != nil {
			return err
		}
		return fmt.Errorf("%w: no room on port %d", domain.ErrValidation, port)
	}

	l := log.Ctx(ctx)
	audit.LogWithDetail(l, audit.ActionRoomSelected, "", strconv.Itoa(port), "room selected")

	return conn.Send(domain.Message{
		Type:    domain.MsgTypeChatSelected,
		Payload: domain.ChatSelectedText(port),
		Room:    r.Name(),
	})
}

func formatChatList(entries []domain.RoomEntry) string {
	var b strings.Builder
	b.WriteString("Available chats:\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "Chat name: %s, Port: %d\n", e.Name, e.Port)
	}
	return b.String()
}
