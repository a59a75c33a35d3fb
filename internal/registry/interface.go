package registry

import (
	"context"

	"github.com/qwb00/ChatApp/internal/domain"
)

// Announcer publishes the directory's rooms to an external store so other
// processes can discover them. It satisfies directory.RoomObserver.
type Announcer interface {
	RoomCreated(ctx context.Context, entry domain.RoomEntry)
	StartHeartbeat(ctx context.Context) error
	Close() error
}

// NopAnnouncer is used when no announcement store is configured.
type NopAnnouncer struct{}

func (NopAnnouncer) RoomCreated(context.Context, domain.RoomEntry) {}

func (NopAnnouncer) StartHeartbeat(context.Context) error { return nil }

func (NopAnnouncer) Close() error { return nil }
