// Package query is the pull side of the synchronization model: everything a
// client can learn from a push event it can also re-derive from here, which
// is what makes dropped fabric deliveries recoverable.
package query

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/discoveredlive/gamecore/internal/content"
	"github.com/discoveredlive/gamecore/internal/models"
	"github.com/discoveredlive/gamecore/internal/store"
)

// RoundSource exposes the engine's open-round board without coupling the
// query surface to the engine type.
type RoundSource interface {
	OpenRound(sessionID uuid.UUID) (roundNumber int, prompt *content.RoundPrompt, targets []content.Target, endsAt time.Time, ok bool)
}

// WaitEstimator reports how long a new arrival waits before playing.
type WaitEstimator interface {
	EstimateWait(room *models.PerpetualRoom) time.Duration
}

// LeaderboardEntry is one participant's standing in a session.
type LeaderboardEntry struct {
	ParticipantID   string  `json:"participant_id"`
	DisplayName     string  `json:"display_name"`
	ParticipantType string  `json:"participant_type"`
	TotalScore      int     `json:"total_score"`
	IncorrectCount  int     `json:"incorrect_count"`
	CurrentStreak   int     `json:"current_streak"`
	HasGoldenCard   bool    `json:"has_golden_card"`
	CSuiteChoice    string  `json:"c_suite_choice,omitempty"`
	Rank            int     `json:"rank"`
	IsActive        bool    `json:"is_active"`
}

// BoardCard is one clickable target as shown to clients. The correct answer
// is never exposed here.
type BoardCard struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Position int    `json:"position"`
}

// RoundStatus describes the open round's progress.
type RoundStatus struct {
	RoundNumber       int         `json:"round_number"`
	PromptText        string      `json:"prompt_text"`
	Board             []BoardCard `json:"board"`
	PlaysSubmitted    int         `json:"plays_submitted"`
	TotalParticipants int         `json:"total_participants"`
	Awaiting          []string    `json:"awaiting"` // participant IDs yet to play
	EndsAt            time.Time   `json:"ends_at"`
}

// SessionStatus is the full pull-side projection of one game session.
type SessionStatus struct {
	SessionID           string             `json:"session_id"`
	RoomID              string             `json:"room_id"`
	GameNumber          int                `json:"game_number"`
	Status              string             `json:"status"`
	CurrentRound        int                `json:"current_round"`
	TotalRounds         int                `json:"total_rounds"`
	RoundsCompleted     int                `json:"rounds_completed"`
	BingoSlotsRemaining int                `json:"bingo_slots_remaining"`
	Leaderboard         []LeaderboardEntry `json:"leaderboard"`
	Round               *RoundStatus       `json:"round,omitempty"`
	WinnerParticipantID string             `json:"winner_participant_id,omitempty"`
	StartedAt           *time.Time         `json:"started_at,omitempty"`
	CompletedAt         *time.Time         `json:"completed_at,omitempty"`
}

// RoomSummary is one room in the public listing.
type RoomSummary struct {
	RoomID             string     `json:"room_id"`
	RoomCode           string     `json:"room_code"`
	Status             string     `json:"status"`
	CurrentGameNumber  int        `json:"current_game_number"`
	CurrentPlayerCount int        `json:"current_player_count"`
	SpectatorCount     int        `json:"spectator_count"`
	MaxPlayersPerGame  int        `json:"max_players_per_game"`
	TotalGamesPlayed   int        `json:"total_games_played"`
	AvgGameDurationSec float64    `json:"avg_game_duration_sec"`
	NextGameStartsAt   *time.Time `json:"next_game_starts_at,omitempty"`
	EstimatedWaitSec   int        `json:"estimated_wait_sec"`
}

// StatusService assembles projections from the store. It reads durable
// state only, so two nodes answering the same query converge on the same
// answer.
type StatusService struct {
	store  store.Store
	rounds RoundSource
	waits  WaitEstimator
}

// NewStatusService creates a status service.
func NewStatusService(st store.Store, rounds RoundSource, waits WaitEstimator) *StatusService {
	return &StatusService{store: st, rounds: rounds, waits: waits}
}

// SessionStatus builds the full projection for one session.
func (s *StatusService) SessionStatus(ctx context.Context, sessionID uuid.UUID) (*SessionStatus, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	participants, err := s.store.ListParticipants(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	status := &SessionStatus{
		SessionID:           session.ID.String(),
		RoomID:              session.PerpetualRoomID.String(),
		GameNumber:          session.GameNumber,
		Status:              string(session.Status),
		CurrentRound:        session.CurrentRound,
		TotalRounds:         session.TotalRounds,
		RoundsCompleted:     session.RoundsCompleted,
		BingoSlotsRemaining: session.BingoSlotsRemaining,
		Leaderboard:         buildLeaderboard(participants),
		StartedAt:           session.StartedAt,
		CompletedAt:         session.CompletedAt,
	}
	if session.WinnerParticipantID != nil {
		status.WinnerParticipantID = session.WinnerParticipantID.String()
	}

	if session.Status == models.SessionStatusActive {
		round, err := s.buildRoundStatus(ctx, session, participants)
		if err != nil {
			return nil, err
		}
		status.Round = round
	}
	return status, nil
}

func (s *StatusService) buildRoundStatus(ctx context.Context, session *models.GameSession, participants []models.SessionParticipant) (*RoundStatus, error) {
	plays, err := s.store.ListPlays(ctx, session.ID, session.CurrentRound)
	if err != nil {
		return nil, err
	}
	played := make(map[uuid.UUID]bool, len(plays))
	for _, p := range plays {
		played[p.ParticipantID] = true
	}
	awaiting := make([]string, 0)
	for _, p := range participants {
		if p.IsActive && !played[p.ID] {
			awaiting = append(awaiting, p.ID.String())
		}
	}
	sort.Strings(awaiting)

	round := &RoundStatus{
		RoundNumber:       session.CurrentRound,
		PlaysSubmitted:    len(plays),
		TotalParticipants: session.TotalParticipants,
		Awaiting:          awaiting,
	}
	if session.CurrentRoundEndsAt != nil {
		round.EndsAt = *session.CurrentRoundEndsAt
	}

	// The board lives only on the node running the round; remote nodes
	// still serve progress and the leaderboard.
	if s.rounds != nil {
		if num, prompt, targets, endsAt, ok := s.rounds.OpenRound(session.ID); ok && num == session.CurrentRound {
			round.PromptText = prompt.PromptText
			round.EndsAt = endsAt
			round.Board = make([]BoardCard, len(targets))
			for i, t := range targets {
				round.Board[i] = BoardCard{ID: t.ID, Label: t.Label, Position: t.Position}
			}
		}
	}
	return round, nil
}

// buildLeaderboard ranks by score, then fewer incorrect answers, then
// participant ID for a stable order.
func buildLeaderboard(participants []models.SessionParticipant) []LeaderboardEntry {
	sorted := make([]models.SessionParticipant, len(participants))
	copy(sorted, participants)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		if a.IncorrectCount != b.IncorrectCount {
			return a.IncorrectCount < b.IncorrectCount
		}
		return a.ID.String() < b.ID.String()
	})

	entries := make([]LeaderboardEntry, len(sorted))
	for i, p := range sorted {
		e := LeaderboardEntry{
			ParticipantID:   p.ID.String(),
			DisplayName:     p.DisplayName,
			ParticipantType: string(p.ParticipantType),
			TotalScore:      p.TotalScore,
			IncorrectCount:  p.IncorrectCount,
			CurrentStreak:   p.CurrentStreak,
			HasGoldenCard:   p.HasGoldenCard,
			Rank:            i + 1,
			IsActive:        p.IsActive,
		}
		if p.CSuiteChoice != nil {
			e.CSuiteChoice = string(*p.CSuiteChoice)
		}
		entries[i] = e
	}
	return entries
}

// ListRooms returns the public room listing with wait estimates.
func (s *StatusService) ListRooms(ctx context.Context) ([]RoomSummary, error) {
	rooms, err := s.store.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]RoomSummary, len(rooms))
	for i := range rooms {
		r := &rooms[i]
		summary := RoomSummary{
			RoomID:             r.ID.String(),
			RoomCode:           r.RoomCode,
			Status:             string(r.Status),
			CurrentGameNumber:  r.CurrentGameNumber,
			CurrentPlayerCount: r.CurrentPlayerCount,
			SpectatorCount:     r.SpectatorCount,
			MaxPlayersPerGame:  r.Settings.MaxPlayersPerGame,
			TotalGamesPlayed:   r.TotalGamesPlayed,
			AvgGameDurationSec: r.AvgGameDurationSec,
			NextGameStartsAt:   r.NextGameStartsAt,
		}
		if s.waits != nil {
			summary.EstimatedWaitSec = int(s.waits.EstimateWait(r).Seconds())
		}
		out[i] = summary
	}
	return out, nil
}
