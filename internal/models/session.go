package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus defines the status of a game session.
type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "PENDING"
	SessionStatusActive    SessionStatus = "ACTIVE"
	SessionStatusCompleted SessionStatus = "COMPLETED"
)

// GameSession is one game inside a perpetual room. Sessions are numbered
// monotonically per room and become immutable once completed.
type GameSession struct {
	ID                  uuid.UUID     `json:"id"`
	PerpetualRoomID     uuid.UUID     `json:"perpetual_room_id"`
	GameNumber          int           `json:"game_number"`
	Status              SessionStatus `json:"status"`
	CurrentRound        int           `json:"current_round"` // 1-based
	TotalRounds         int           `json:"total_rounds"`
	RoundsCompleted     int           `json:"rounds_completed"`
	TotalParticipants   int           `json:"total_participants"`
	HumanParticipants   int           `json:"human_participants"`
	AIParticipants      int           `json:"ai_participants"`
	BingoSlotsRemaining int           `json:"bingo_slots_remaining"`
	CurrentRoundEndsAt  *time.Time    `json:"current_round_ends_at,omitempty"`
	StartedAt           *time.Time    `json:"started_at,omitempty"`
	CompletedAt         *time.Time    `json:"completed_at,omitempty"`
	WinnerParticipantID *uuid.UUID    `json:"winner_participant_id,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}
