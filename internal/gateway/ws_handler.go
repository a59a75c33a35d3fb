package gateway

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/qwb00/ChatApp/internal/config"
	"github.com/qwb00/ChatApp/internal/domain"
	"github.com/qwb00/ChatApp/internal/room"
	"github.com/qwb00/ChatApp/internal/transport"
	"github.com/qwb00/ChatApp/pkg/log"
	"github.com/qwb00/ChatApp/pkg/response"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// RoomLookup resolves a port to a registered room.
type RoomLookup interface {
	Room(port int) (*room.Server, bool)
}

// WSHandler lets WebSocket clients join a room. Each text frame carries one
// protocol message; the gateway relays them to the room's TCP port unchanged.
type WSHandler struct {
	rooms         RoomLookup
	advertiseHost string
	cfg           config.GatewayConfig
}

func NewWSHandler(rooms RoomLookup, advertiseHost string, cfg config.GatewayConfig) *WSHandler {
	return &WSHandler{rooms: rooms, advertiseHost: advertiseHost, cfg: cfg}
}

func (h *WSHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws/rooms/:port", h.HandleWebSocket)
}

func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	port, err := domain.ParsePort(c.Param("port"))
	if err != nil {
		response.BadRequest(c, "invalid port")
		return
	}
	r, ok := h.rooms.Room(port)
	if !ok {
		response.NotFound(c, "room not found")
		return
	}

	upstream, err := transport.Dial(net.JoinHostPort(h.advertiseHost, strconv.Itoa(r.Port())))
	if err != nil {
		l.Warn().Err(err).Int(log.FieldPort, port).Msg("failed to reach room")
		response.BadGateway(c, "room unavailable")
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l.Warn().Err(err).Msg("websocket upgrade failed")
		upstream.Close()
		return
	}

	client := transport.NewWSConn(ws, h.cfg.WriteWait, h.cfg.MaxMessageSize)
	connCtx, cl := log.WithConn(context.WithoutCancel(ctx), client.RemoteAddr())
	cl.Info().Str(log.FieldRoom, r.Name()).Msg("websocket bridged to room")

	go func() {
		err := Bridge(connCtx, client, upstream)
		if err != nil {
			cl.Warn().Err(err).Msg("websocket bridge ended")
			return
		}
		cl.Debug().Msg("websocket bridge closed")
	}()
}

// Bridge relays messages in both directions until either side stops, then
// closes both. A clean close on either side returns nil.
func Bridge(ctx context.Context, client, upstream transport.Conn) error {
	var once sync.Once
	closeBoth := func() {
		once.Do(func() {
			client.Close()
			upstream.Close()
		})
	}

	var g errgroup.Group
	g.Go(func() error {
		defer closeBoth()
		return relay(upstream, client)
	})
	g.Go(func() error {
		defer closeBoth()
		return relay(client, upstream)
	})

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			closeBoth()
		case <-done:
		}
	}()

	err := g.Wait()
	close(done)
	if errors.Is(err, transport.ErrTransport) {
		// Closing one side fails the other pump with ErrTransport.
		return nil
	}
	return err
}

func relay(dst, src transport.Conn) error {
	for {
		msg, err := src.Receive()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := dst.Send(msg); err != nil {
			return err
		}
	}
}
