package directory

import (
	"context"
	"sort"

	"github.com/qwb00/ChatApp/internal/domain"
	"github.com/qwb00/ChatApp/internal/room"
)

// RoomObserver is told about every room after it has been registered.
// Calls happen outside the registry lock.
type RoomObserver interface {
	RoomCreated(ctx context.Context, entry domain.RoomEntry)
}

// allocatePort hands out the next room port. Ports are never returned to the
// counter, even when the room fails to start.
func (s *Server) allocatePort() int {
	s.portMu.Lock()
	defer s.portMu.Unlock()

	port := s.nextPort
	s.nextPort++
	return port
}

// register adds r unless the directory is closed.
func (s *Server) register(r *room.Server) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.rooms[r.Port()] = r
	return true
}

// Rooms returns every registered room ordered by port.
func (s *Server) Rooms() []domain.RoomEntry {
	s.mu.RLock()
	entries := make([]domain.RoomEntry, 0, len(s.rooms))
	for port, r := range s.rooms {
		entries = append(entries, domain.RoomEntry{Port: port, Name: r.Name()})
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].Port < entries[j].Port })
	return entries
}

// Room looks up a registered room by port.
func (s *Server) Room(port int) (*room.Server, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[port]
	return r, ok
}
