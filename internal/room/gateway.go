package room

import (
	"context"

	"github.com/google/uuid"

	"github.com/naveenspark/sidechat/pkg/domain"
)

// Subscription is a live event stream for one room.
type Subscription = domain.Subscription

// Gateway is the remote chat service. Lookups that find nothing return nil
// with a nil error. Operations that need a session fail with ErrAuthRequired
// when there is none.
type Gateway interface {
	FindRoomByVideoID(ctx context.Context, videoID string) (*domain.Room, error)
	CreateRoom(ctx context.Context, videoID string, meta domain.RoomMetadata) (*domain.Room, error)
	FetchMessages(ctx context.Context, roomID uuid.UUID, limit int) ([]domain.Message, error)
	InsertMessage(ctx context.Context, roomID uuid.UUID, text string) (*domain.Message, error)
	Subscribe(ctx context.Context, roomID uuid.UUID) (Subscription, error)
	GetMembership(ctx context.Context, roomID uuid.UUID) (*domain.Membership, error)
	JoinRoom(ctx context.Context, roomID uuid.UUID) (*domain.Membership, error)
	LeaveRoom(ctx context.Context, roomID uuid.UUID) error
	GetProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error)
}
