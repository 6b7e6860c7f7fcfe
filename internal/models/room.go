package models

import (
	"time"

	"github.com/google/uuid"
)

// RoomStatus defines the lifecycle state of a perpetual room.
type RoomStatus string

const (
	RoomStatusActive       RoomStatus = "ACTIVE"
	RoomStatusIntermission RoomStatus = "INTERMISSION"
)

// RoomSettings holds JSONB configuration for a perpetual room.
type RoomSettings struct {
	MaxPlayersPerGame  int    `json:"max_players_per_game"`
	TotalRounds        int    `json:"total_rounds"`
	RoundTimeLimitSec  int    `json:"round_time_limit_sec"`
	IntermissionSec    int    `json:"intermission_sec"`
	BingoSlotsPerGame  int    `json:"bingo_slots_per_game"`
	Industry           string `json:"industry,omitempty"`
	Difficulty         string `json:"difficulty,omitempty"`
}

// PerpetualRoom is a long-lived game room that continuously cycles
// between an active game and an intermission.
type PerpetualRoom struct {
	ID                    uuid.UUID    `json:"id"`
	RoomCode              string       `json:"room_code"`
	Status                RoomStatus   `json:"status"`
	Settings              RoomSettings `json:"settings"`
	CurrentGameNumber     int          `json:"current_game_number"`
	CurrentPlayerCount    int          `json:"current_player_count"`
	SpectatorCount        int          `json:"spectator_count"`
	TotalGamesPlayed      int          `json:"total_games_played"`
	AvgGameDurationSec    float64      `json:"avg_game_duration_sec"`
	NextGameStartsAt      *time.Time   `json:"next_game_starts_at,omitempty"` // set only while INTERMISSION
	CreatedAt             time.Time    `json:"created_at"`
	UpdatedAt             time.Time    `json:"updated_at"`
}
