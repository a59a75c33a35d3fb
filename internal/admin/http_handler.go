package admin

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/qwb00/ChatApp/internal/domain"
	"github.com/qwb00/ChatApp/internal/room"
	"github.com/qwb00/ChatApp/pkg/log"
	"github.com/qwb00/ChatApp/pkg/response"
)

// Directory is the read side of the room registry.
type Directory interface {
	Rooms() []domain.RoomEntry
	Room(port int) (*room.Server, bool)
}

// AddressLookup reads a room's announced address from the shared store.
type AddressLookup interface {
	Lookup(ctx context.Context, port int) (string, error)
}

// RoomDetail is the body of GET /api/v1/rooms/:port.
type RoomDetail struct {
	Port        int      `json:"port"`
	Name        string   `json:"name"`
	Members     []string `json:"members"`
	MemberCount int      `json:"member_count"`
	// Announced is the <name>@<host>:<port> value other processes see.
	Announced string `json:"announced,omitempty"`
}

// Handler serves the read-only admin API.
type Handler struct {
	directory     Directory
	announcements AddressLookup
}

func NewHandler(directory Directory) *Handler {
	return &Handler{directory: directory}
}

// WithAnnouncements makes GetRoom report the announced address of each room.
func (h *Handler) WithAnnouncements(lookup AddressLookup) *Handler {
	h.announcements = lookup
	return h
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	api := r.Group("/api/v1")
	{
		rooms := api.Group("/rooms")
		{
			rooms.GET("", h.ListRooms)
			rooms.GET("/:port", h.GetRoom)
		}
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok", "rooms": len(h.directory.Rooms())})
}

// ListRooms returns the registry snapshot ordered by port.
func (h *Handler) ListRooms(c *gin.Context) {
	response.Success(c, h.directory.Rooms())
}

// GetRoom returns a room and the names of its current members.
func (h *Handler) GetRoom(c *gin.Context) {
	l := log.Ctx(c.Request.Context())

	port, err := domain.ParsePort(c.Param("port"))
	if err != nil {
		response.BadRequest(c, "invalid port")
		return
	}

	r, ok := h.directory.Room(port)
	if !ok {
		l.Debug().Int(log.FieldPort, port).Msg("room not found")
		response.NotFound(c, "room not found")
		return
	}

	members := r.Members()
	detail := RoomDetail{
		Port:        r.Port(),
		Name:        r.Name(),
		Members:     members,
		MemberCount: len(members),
	}
	if h.announcements != nil {
		announced, err := h.announcements.Lookup(c.Request.Context(), port)
		if err != nil {
			l.Warn().Err(err).Int(log.FieldPort, port).Msg("failed to read room announcement")
		}
		detail.Announced = announced
	}
	response.Success(c, detail)
}
