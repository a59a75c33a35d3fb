package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/qwb00/ChatApp/internal/domain"
	"github.com/qwb00/ChatApp/internal/transport"
	"github.com/qwb00/ChatApp/pkg/log"
)

var (
	// ErrNoRoom is returned when the directory closes before announcing a room.
	ErrNoRoom = errors.New("directory closed without a room")
	// ErrRoomClosed is returned when the room server ends the session.
	ErrRoomClosed = errors.New("room connection closed")

	errExit = errors.New("exit requested")
)

const renameUsage = "Usage: /rename [new nickname]"

// Action is the directory choice made in phase 1.
type Action int

const (
	ActionCreate Action = iota + 1
	ActionJoin
)

// Prompter supplies the user's answers to server prompts.
type Prompter interface {
	Action(prompt string) (Action, error)
	Port(prompt string) (int, error)
	Name(prompt string) (string, error)
}

// Renderer shows inbound messages and local notices.
type Renderer interface {
	Render(msg domain.Message)
}

// Config locates the directory. RoomHost defaults to the directory's host.
type Config struct {
	DirectoryAddress string
	RoomHost         string
}

// Driver runs the client side of the protocol: the directory exchange, then
// the room handshake.
type Driver struct {
	cfg      Config
	prompter Prompter
	renderer Renderer
	logger   zerolog.Logger
}

func NewDriver(cfg Config, prompter Prompter, renderer Renderer) *Driver {
	if cfg.RoomHost == "" {
		if host, _, err := net.SplitHostPort(cfg.DirectoryAddress); err == nil {
			cfg.RoomHost = host
		}
	}
	return &Driver{
		cfg:      cfg,
		prompter: prompter,
		renderer: renderer,
		logger:   log.L().With().Str("component", "client").Logger(),
	}
}

// Connect negotiates a room with the directory, then joins it. The returned
// session is past NAME_ACCEPTED. Cancelling ctx aborts either phase.
func (d *Driver) Connect(ctx context.Context) (*Session, error) {
	port, err := d.negotiate(ctx)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(d.cfg.RoomHost, strconv.Itoa(port))
	conn, err := transport.Dial(addr)
	if err != nil {
		return nil, err
	}
	d.logger.Debug().Str("address", addr).Msg("connected to room")

	s := &Session{conn: conn, renderer: d.renderer, logger: d.logger.With().Int(log.FieldPort, port).Logger()}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	if err := s.handshake(d.prompter); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// negotiate runs phase 1 and returns the announced room port. The directory
// connection is closed before returning.
func (d *Driver) negotiate(ctx context.Context) (int, error) {
	conn, err := transport.Dial(d.cfg.DirectoryAddress)
	if err != nil {
		return 0, err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		msg, err := conn.Receive()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return 0, ErrNoRoom
			}
			return 0, err
		}

		switch msg.Type {
		case domain.MsgTypeRequestAction:
			d.renderer.Render(msg)
			action, err := d.prompter.Action(msg.Payload)
			if err != nil {
				return 0, err
			}
			if err := conn.Send(actionMessage(action)); err != nil {
				return 0, err
			}
		case domain.MsgTypeChatList:
			d.renderer.Render(msg)
		case domain.MsgTypePortRequest:
			d.renderer.Render(msg)
			port, err := d.prompter.Port(msg.Payload)
			if err != nil {
				return 0, err
			}
			if err := conn.Send(domain.NewMessage(domain.MsgTypeChatSelected, strconv.Itoa(port))); err != nil {
				return 0, err
			}
		case domain.MsgTypeChatCreated, domain.MsgTypeChatSelected:
			d.renderer.Render(msg)
			return domain.ExtractPort(msg.Payload)
		case domain.MsgTypeError:
			// The directory may follow up, e.g. with an automatic CHAT_CREATED.
			d.renderer.Render(msg)
		case domain.MsgTypeDisconnect:
			d.logger.Debug().Msg("directory requested disconnect")
		default:
			d.logger.Debug().Str("type", msg.Type.String()).Msg("unexpected directory message")
			d.renderer.Render(msg)
		}
	}
}

func actionMessage(a Action) domain.Message {
	if a == ActionJoin {
		return domain.NewMessage(domain.MsgTypeJoinChat, "2")
	}
	return domain.NewMessage(domain.MsgTypeCreateChat, "1")
}

// Session is an accepted room membership.
type Session struct {
	conn     transport.Conn
	renderer Renderer
	logger   zerolog.Logger

	mu   sync.RWMutex
	name string
}

// Name returns the current display name, following accepted renames.
func (s *Session) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *Session) handshake(p Prompter) error {
	var pending string
	for {
		msg, err := s.conn.Receive()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ErrRoomClosed
			}
			return err
		}

		switch msg.Type {
		case domain.MsgTypeNameRequest:
			s.renderer.Render(msg)
			name, err := p.Name(msg.Payload)
			if err != nil {
				return err
			}
			pending = strings.TrimSpace(name)
			if err := s.conn.Send(domain.NewMessage(domain.MsgTypeUserName, name)); err != nil {
				return err
			}
		case domain.MsgTypeNameAccepted:
			s.renderer.Render(msg)
			s.mu.Lock()
			s.name = pending
			s.mu.Unlock()
			return nil
		default:
			s.renderer.Render(msg)
		}
	}
}

// Run forwards lines to the room and renders inbound messages until /exit,
// lines closes, ctx is cancelled or the room closes the connection. Only the
// last case returns an error.
func (s *Session) Run(parent context.Context, lines <-chan string) error {
	defer s.conn.Close()

	g, ctx := errgroup.WithContext(parent)
	g.Go(func() error {
		<-ctx.Done()
		s.conn.Close()
		return nil
	})
	g.Go(func() error {
		return s.receiveLoop()
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					return s.leave()
				}
				if err := s.HandleLine(line); err != nil {
					if errors.Is(err, errExit) {
						return s.leave()
					}
					return err
				}
			}
		}
	})

	err := g.Wait()
	if errors.Is(err, errExit) || parent.Err() != nil {
		return nil
	}
	return err
}

// leave sends DISCONNECT and stops the session.
func (s *Session) leave() error {
	if err := s.conn.Send(domain.Message{Type: domain.MsgTypeDisconnect}); err != nil {
		s.logger.Debug().Err(err).Msg("failed to send disconnect")
	}
	return errExit
}

func (s *Session) receiveLoop() error {
	for {
		msg, err := s.conn.Receive()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ErrRoomClosed
			}
			return err
		}

		if msg.Type == domain.MsgTypeNicknameChanged {
			s.trackRename(msg)
		}
		s.renderer.Render(msg)
	}
}

func (s *Session) trackRename(msg domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.Sender != "" && strings.HasPrefix(msg.Payload, s.name+" changed nickname to ") {
		s.name = msg.Sender
	}
}

// HandleLine turns one line of user input into a wire message, or handles it
// locally. It returns errExit for /exit.
func (s *Session) HandleLine(line string) error {
	text := strings.TrimSpace(line)
	if text == "" {
		return nil
	}
	if !strings.HasPrefix(text, "/") {
		return s.conn.Send(domain.Message{Type: domain.MsgTypeText, Payload: line, Sender: s.Name()})
	}

	switch {
	case strings.EqualFold(text, domain.CommandExit):
		return errExit
	case strings.EqualFold(text, domain.CommandHelp):
		s.renderer.Render(domain.NewMessage(domain.MsgTypeHelpMessage, domain.HelpText))
		return nil
	case text == domain.CommandRename || strings.HasPrefix(text, domain.CommandRename+" "):
		newName := strings.TrimSpace(strings.TrimPrefix(text, domain.CommandRename))
		if newName == "" {
			s.renderer.Render(domain.NewErrorMessage(renameUsage))
			return nil
		}
		return s.sendCommand(fmt.Sprintf("%s %s", domain.CommandRename, newName))
	default:
		return s.sendCommand(text)
	}
}

func (s *Session) sendCommand(payload string) error {
	return s.conn.Send(domain.Message{Type: domain.MsgTypeCommand, Payload: payload, Sender: s.Name()})
}
