package models

import (
	"time"

	"github.com/google/uuid"
)

// RoundPlay is one participant's single submitted answer for one round of
// one game session. The composite uniqueness of (game_session_id,
// round_number, participant_id) is the idempotence guarantee against
// duplicate or retried submissions; a play is immutable once written.
type RoundPlay struct {
	ID             uuid.UUID `json:"id"`
	GameSessionID  uuid.UUID `json:"game_session_id"`
	RoundNumber    int       `json:"round_number"`
	ParticipantID  uuid.UUID `json:"participant_id"`
	ClickedTarget  string    `json:"clicked_target"`
	TargetPosition int       `json:"target_position"` // bingo grid position of the clicked target
	IsCorrect      bool      `json:"is_correct"`
	ResponseTimeMs int64     `json:"response_time_ms"`
	SubmittedAt    time.Time `json:"submitted_at"`
}
