package room

import (
	"sort"

	"github.com/qwb00/ChatApp/internal/transport"
)

// member is one name-bound connection. name is only written by the member's
// own handler while holding Server.mu.
type member struct {
	name string
	conn transport.Conn
}

// join binds name to m if the name is non-empty and free.
func (s *Server) join(m *member, name string) bool {
	if name == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.members[name]; taken {
		return false
	}
	m.name = name
	s.members[name] = m
	return true
}

// rename moves m to a new key in one step.
func (s *Server) rename(m *member, newName string) (string, bool) {
	if newName == "" {
		return "", false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.members[newName]; taken {
		return "", false
	}
	oldName := m.name
	delete(s.members, oldName)
	m.name = newName
	s.members[newName] = m
	return oldName, true
}

// leave removes m under its current name, only if that name is still bound to m.
func (s *Server) leave(m *member) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.members[m.name]; ok && cur == m {
		delete(s.members, m.name)
		return true
	}
	return false
}

// recipients snapshots the current connections.
func (s *Server) recipients() []*member {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*member, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, &member{name: m.name, conn: m.conn})
	}
	return out
}

// Members returns the sorted member names from one consistent snapshot.
func (s *Server) Members() []string {
	s.mu.RLock()
	names := make([]string, 0, len(s.members))
	for name := range s.members {
		names = append(names, name)
	}
	s.mu.RUnlock()

	sort.Strings(names)
	return names
}

// MemberCount returns the number of connected members.
func (s *Server) MemberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.members)
}
