package models

import (
	"time"

	"github.com/google/uuid"
)

// Spectator tracks a passive viewer's presence in a perpetual room.
// Spectators belong to the room, not to a session, and never affect scoring.
type Spectator struct {
	ID              uuid.UUID `json:"id"`
	PerpetualRoomID uuid.UUID `json:"perpetual_room_id"`
	DisplayName     string    `json:"display_name"`
	JoinedAt        time.Time `json:"joined_at"`
}
