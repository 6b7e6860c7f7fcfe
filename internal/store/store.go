// Package store defines the persistent-store contract the orchestration
// layers depend on, plus a Postgres implementation and an in-memory
// implementation. All state transitions that more than one caller may
// attempt concurrently are expressed as conditional writes: the store
// reports whether the write applied, and a non-applied write means another
// caller already made the transition.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/discoveredlive/gamecore/internal/models"
)

// RoomStore is durable access to perpetual rooms.
type RoomStore interface {
	CreateRoom(ctx context.Context, room *models.PerpetualRoom) error
	GetRoom(ctx context.Context, id uuid.UUID) (*models.PerpetualRoom, error)
	GetRoomByCode(ctx context.Context, code string) (*models.PerpetualRoom, error)
	ListRooms(ctx context.Context) ([]models.PerpetualRoom, error)

	// ActivateRoom transitions INTERMISSION -> ACTIVE and bumps the game
	// number. Returns false when the room was not in intermission, which
	// means another runner already activated it.
	ActivateRoom(ctx context.Context, roomID uuid.UUID, gameNumber int) (bool, error)

	// IntermitRoom transitions ACTIVE -> INTERMISSION, recording the next
	// game start time and the updated rolling stats.
	IntermitRoom(ctx context.Context, roomID uuid.UUID, nextGameStartsAt time.Time, avgGameDurationSec float64, totalGamesPlayed int) (bool, error)

	SetRoomPlayerCount(ctx context.Context, roomID uuid.UUID, count int) error
	AdjustSpectatorCount(ctx context.Context, roomID uuid.UUID, delta int) error
}

// SessionStore is durable access to game sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, session *models.GameSession) error
	GetSession(ctx context.Context, id uuid.UUID) (*models.GameSession, error)

	// GetOpenSessionForRoom returns the room's single non-terminal session
	// (PENDING or ACTIVE), or gameerrors.ErrNotFound when none exists.
	GetOpenSessionForRoom(ctx context.Context, roomID uuid.UUID) (*models.GameSession, error)

	// ActivateSession transitions PENDING -> ACTIVE. Returns false when the
	// session was not pending.
	ActivateSession(ctx context.Context, sessionID uuid.UUID, startedAt time.Time, totalParticipants, humanParticipants, aiParticipants int) (bool, error)

	// AdvanceRound moves currentRound from fromRound to fromRound+1,
	// guarded by currentRound = fromRound. Exactly one of any number of
	// concurrent callers observes true.
	AdvanceRound(ctx context.Context, sessionID uuid.UUID, fromRound int) (bool, error)

	// CompleteSession finishes the game, guarded by currentRound = fromRound
	// and status = ACTIVE. It does not touch roundsCompleted; the final
	// AdvanceRound already recorded it.
	CompleteSession(ctx context.Context, sessionID uuid.UUID, fromRound int, winnerParticipantID uuid.UUID, completedAt time.Time) (bool, error)

	// SetRoundDeadline records (or clears, with nil) the wall-clock instant
	// the current round stops waiting for submissions.
	SetRoundDeadline(ctx context.Context, sessionID uuid.UUID, endsAt *time.Time) error

	// ClaimBingoSlot atomically decrements the session's remaining bingo
	// slot counter while it is positive. The first caller to observe true
	// wins the slot; callers observing false lost the race.
	ClaimBingoSlot(ctx context.Context, sessionID uuid.UUID) (bool, error)
}

// ParticipantStore is durable access to session participants.
type ParticipantStore interface {
	// CreateParticipant writes a participant, guarded by the session's
	// roster size: when maxParticipants > 0 and the session already holds
	// that many participants, nothing is written and the error matches
	// gameerrors.ErrStateConflict.
	CreateParticipant(ctx context.Context, p *models.SessionParticipant, maxParticipants int) error
	GetParticipant(ctx context.Context, id uuid.UUID) (*models.SessionParticipant, error)
	ListParticipants(ctx context.Context, sessionID uuid.UUID) ([]models.SessionParticipant, error)

	// ApplyRoundResult folds one scored round into a participant: score is a
	// monotonic add, streak and correct-position state are replaced, the
	// golden card flag only ever flips to true.
	ApplyRoundResult(ctx context.Context, participantID uuid.UUID, scoreDelta, incorrectDelta, newStreak int, correctPositions uint16, goldenCard bool) error

	SetCSuiteChoice(ctx context.Context, participantID uuid.UUID, choice models.CSuiteChoice) error
	SetParticipantActive(ctx context.Context, participantID uuid.UUID, active bool) error
}

// PlayStore is durable access to round plays.
type PlayStore interface {
	// CreatePlay writes a play. A play already existing for the same
	// (session, round, participant) yields gameerrors.ErrDuplicateSubmission
	// and leaves the original untouched.
	CreatePlay(ctx context.Context, play *models.RoundPlay) error

	ListPlays(ctx context.Context, sessionID uuid.UUID, roundNumber int) ([]models.RoundPlay, error)
	CountPlays(ctx context.Context, sessionID uuid.UUID, roundNumber int) (int, error)
	ListSessionPlays(ctx context.Context, sessionID uuid.UUID) ([]models.RoundPlay, error)
}

// SpectatorStore tracks passive viewers per room. Add and Remove own the
// room's spectatorCount; callers never adjust it themselves.
type SpectatorStore interface {
	AddSpectator(ctx context.Context, s *models.Spectator) error

	// RemoveSpectator deletes the spectator only when it belongs to roomID;
	// a mismatched room yields gameerrors.ErrNotFound.
	RemoveSpectator(ctx context.Context, roomID, id uuid.UUID) error

	CountSpectators(ctx context.Context, roomID uuid.UUID) (int, error)
}

// Store is the full persistent-store contract.
type Store interface {
	RoomStore
	SessionStore
	ParticipantStore
	PlayStore
	SpectatorStore
}

// ChangeEntity names the entity class a change event refers to.
type ChangeEntity string

const (
	ChangeEntityRoom        ChangeEntity = "room"
	ChangeEntitySession     ChangeEntity = "session"
	ChangeEntityParticipant ChangeEntity = "participant"
	ChangeEntityPlay        ChangeEntity = "play"
)

// ChangeEvent is one record on the store's change-notification feed. The
// feed is the authoritative third signal behind push broadcasts: a state
// change written directly to the store still surfaces here even when no
// broadcast was issued for it.
type ChangeEvent struct {
	Entity   ChangeEntity `json:"entity"`
	EntityID uuid.UUID    `json:"entity_id"`
	RoomID   uuid.UUID    `json:"room_id"`
	At       time.Time    `json:"at"`
}

// ChangeFeed streams ChangeEvents until its context is cancelled.
type ChangeFeed interface {
	// Start blocks, delivering events to the channel returned by Events,
	// until ctx is cancelled.
	Start(ctx context.Context) error
	Events() <-chan ChangeEvent
}
