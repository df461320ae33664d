package domain

import (
	"time"

	"github.com/google/uuid"
)

// Room is the chat room attached to one external video identifier.
type Room struct {
	ID           uuid.UUID `json:"id"`
	VideoID      string    `json:"video_id"`
	Title        string    `json:"title,omitempty"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// RoomMetadata is the optional payload sent when a room record is created.
type RoomMetadata struct {
	Title        string `json:"title,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// Message is a single chat message in a room.
// Profile is a denormalized snapshot of the author and may be nil.
type Message struct {
	ID        uuid.UUID `json:"id"`
	RoomID    uuid.UUID `json:"room_id"`
	UserID    uuid.UUID `json:"user_id"`
	Text      string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	Profile   *Profile  `json:"profile,omitempty"`
}

// Membership is a user's participation in a room, keyed by (RoomID, UserID).
type Membership struct {
	RoomID   uuid.UUID `json:"room_id"`
	UserID   uuid.UUID `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}
