package models

import (
	"time"

	"github.com/google/uuid"
)

// ParticipantType distinguishes human players from simulated ones.
type ParticipantType string

const (
	ParticipantTypeHuman ParticipantType = "HUMAN"
	ParticipantTypeAI    ParticipantType = "AI"
)

// CSuiteChoice is a round-1-only role declaration that affects
// synergy-bonus eligibility in later rounds.
type CSuiteChoice string

const (
	CSuiteCEO  CSuiteChoice = "CEO"
	CSuiteCFO  CSuiteChoice = "CFO"
	CSuiteCMO  CSuiteChoice = "CMO"
	CSuiteCTO  CSuiteChoice = "CTO"
	CSuiteCHRO CSuiteChoice = "CHRO"
)

// ValidCSuiteChoice reports whether c is one of the fixed role values.
func ValidCSuiteChoice(c CSuiteChoice) bool {
	switch c {
	case CSuiteCEO, CSuiteCFO, CSuiteCMO, CSuiteCTO, CSuiteCHRO:
		return true
	}
	return false
}

// SessionParticipant is one player (human or AI) inside a single game
// session. TotalScore is monotonic non-decreasing within a session; the
// streak and correct-position fields are carried here so per-round scoring
// stays O(participants) instead of recomputing from play history.
type SessionParticipant struct {
	ID               uuid.UUID       `json:"id"`
	GameSessionID    uuid.UUID       `json:"game_session_id"`
	ParticipantType  ParticipantType `json:"participant_type"`
	DisplayName      string          `json:"display_name"`
	TotalScore       int             `json:"total_score"`
	IncorrectCount   int             `json:"incorrect_count"`
	CurrentStreak    int             `json:"current_streak"`    // consecutive correct rounds ending at the last scored round
	CorrectPositions uint16          `json:"correct_positions"` // bitmask over bingo grid positions
	HasGoldenCard    bool            `json:"has_golden_card"`
	CSuiteChoice     *CSuiteChoice   `json:"c_suite_choice,omitempty"`
	IsActive         bool            `json:"is_active"`
	JoinedAt         time.Time       `json:"joined_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}
