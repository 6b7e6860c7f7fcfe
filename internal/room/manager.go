// Package room runs the perpetual room lifecycle: rooms cycle between an
// active game and a timed intermission forever, and every transition is a
// conditional store write so that any number of concurrent runners agree on
// exactly one winner.
package room

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/discoveredlive/gamecore/internal/gameerrors"
	"github.com/discoveredlive/gamecore/internal/models"
	"github.com/discoveredlive/gamecore/internal/realtime"
	"github.com/discoveredlive/gamecore/internal/store"
)

// SessionLauncher is the handoff point to the session engine: once a room
// transition has produced a fresh pending session, the launcher takes over
// seeding participants and starting round 1.
type SessionLauncher interface {
	LaunchSession(ctx context.Context, room *models.PerpetualRoom, session *models.GameSession) error
}

// LifecycleConfig holds room lifecycle settings.
type LifecycleConfig struct {
	// ScanInterval is how often the scheduler checks for intermissions that
	// have elapsed. Next-game times are persisted, so a coarse interval only
	// delays starts, never loses them.
	ScanInterval time.Duration

	DefaultSettings models.RoomSettings
}

// DefaultLifecycleConfig returns the standard lifecycle settings.
func DefaultLifecycleConfig() LifecycleConfig {
	return LifecycleConfig{
		ScanInterval: 1 * time.Second,
		DefaultSettings: models.RoomSettings{
			MaxPlayersPerGame: 8,
			TotalRounds:       10,
			RoundTimeLimitSec: 20,
			IntermissionSec:   30,
			BingoSlotsPerGame: 3,
		},
	}
}

// LifecycleManager owns room state transitions and the intermission
// scheduler. It never holds a lock across a transition: the store's
// conditional writes are the arbiter, and a lost write means another runner
// already did the work.
type LifecycleManager struct {
	store    store.Store
	sync     *realtime.Synchronizer
	clock    clockwork.Clock
	config   LifecycleConfig
	launcher SessionLauncher

	wakeCh chan struct{}
}

// NewLifecycleManager creates a lifecycle manager.
func NewLifecycleManager(st store.Store, sync *realtime.Synchronizer, clock clockwork.Clock, config LifecycleConfig) *LifecycleManager {
	return &LifecycleManager{
		store:  st,
		sync:   sync,
		clock:  clock,
		config: config,
		wakeCh: make(chan struct{}, 1),
	}
}

// SetLauncher wires the session engine in after construction. The engine
// needs the manager for end-of-game handoff, so one side has to be set late.
func (m *LifecycleManager) SetLauncher(l SessionLauncher) {
	m.launcher = l
}

// CreateRoom creates a perpetual room in intermission with its first game
// already scheduled. Zero-valued settings fields fall back to the configured
// defaults.
func (m *LifecycleManager) CreateRoom(ctx context.Context, roomCode string, settings models.RoomSettings) (*models.PerpetualRoom, error) {
	if roomCode == "" {
		return nil, gameerrors.Validation("room code is required")
	}
	applyDefaults(&settings, m.config.DefaultSettings)
	if settings.TotalRounds < 1 {
		return nil, gameerrors.Validation("total rounds must be at least 1, got %d", settings.TotalRounds)
	}
	if settings.BingoSlotsPerGame < 0 {
		return nil, gameerrors.Validation("bingo slots must not be negative, got %d", settings.BingoSlotsPerGame)
	}

	now := m.clock.Now()
	nextStart := now.Add(time.Duration(settings.IntermissionSec) * time.Second)
	room := &models.PerpetualRoom{
		ID:               uuid.New(),
		RoomCode:         roomCode,
		Status:           models.RoomStatusIntermission,
		Settings:         settings,
		NextGameStartsAt: &nextStart,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := m.store.CreateRoom(ctx, room); err != nil {
		return nil, fmt.Errorf("create room %s: %w", roomCode, err)
	}

	log.Info().
		Str("room_id", room.ID.String()).
		Str("room_code", roomCode).
		Time("next_game_starts_at", nextStart).
		Msg("room created")

	m.wake()
	return room, nil
}

// StartNextGame transitions the room out of intermission and creates the
// next pending session. Safe to call from any number of runners: the
// ActivateRoom conditional write picks one winner, and losers return the
// session the winner created.
func (m *LifecycleManager) StartNextGame(ctx context.Context, roomID uuid.UUID) (*models.GameSession, error) {
	room, err := m.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	nextGame := room.CurrentGameNumber + 1
	won, err := m.store.ActivateRoom(ctx, roomID, nextGame)
	if err != nil {
		return nil, fmt.Errorf("activate room %s: %w", roomID, err)
	}
	if !won {
		// Another runner got there first; its session is the one to use.
		session, err := m.store.GetOpenSessionForRoom(ctx, roomID)
		if err != nil {
			return nil, fmt.Errorf("room %s already active but has no open session: %w", roomID, err)
		}
		return session, nil
	}

	now := m.clock.Now()
	session := &models.GameSession{
		ID:                  uuid.New(),
		PerpetualRoomID:     roomID,
		GameNumber:          nextGame,
		Status:              models.SessionStatusPending,
		CurrentRound:        1,
		TotalRounds:         room.Settings.TotalRounds,
		BingoSlotsRemaining: room.Settings.BingoSlotsPerGame,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := m.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session for room %s game %d: %w", roomID, nextGame, err)
	}

	log.Info().
		Str("room_id", roomID.String()).
		Str("session_id", session.ID.String()).
		Int("game_number", nextGame).
		Msg("room activated, session created")

	room.Status = models.RoomStatusActive
	room.CurrentGameNumber = nextGame
	m.sync.BroadcastPayload(ctx, realtime.EventTypeRoomStatus, roomID, realtime.RoomStatusPayload{
		RoomID:     roomID.String(),
		Status:     string(models.RoomStatusActive),
		GameNumber: nextGame,
		SessionID:  session.ID.String(),
	})

	if m.launcher != nil {
		if err := m.launcher.LaunchSession(ctx, room, session); err != nil {
			log.Error().
				Err(err).
				Str("session_id", session.ID.String()).
				Msg("session launch failed")
		}
	}
	return session, nil
}

// EndGame transitions the room back to intermission after its session
// completed, folding the game's duration into the rolling average. The
// session must already be COMPLETED; ending a room around a live game would
// strand its participants.
func (m *LifecycleManager) EndGame(ctx context.Context, roomID uuid.UUID, session *models.GameSession) error {
	if session.Status != models.SessionStatusCompleted {
		return gameerrors.StateConflict("cannot end game: session %s is %s, not COMPLETED", session.ID, session.Status)
	}

	room, err := m.store.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}

	now := m.clock.Now()
	var durationSec float64
	if session.StartedAt != nil && session.CompletedAt != nil {
		durationSec = session.CompletedAt.Sub(*session.StartedAt).Seconds()
	}

	totalPlayed := room.TotalGamesPlayed + 1
	avg := room.AvgGameDurationSec + (durationSec-room.AvgGameDurationSec)/float64(totalPlayed)
	nextStart := now.Add(time.Duration(room.Settings.IntermissionSec) * time.Second)

	won, err := m.store.IntermitRoom(ctx, roomID, nextStart, avg, totalPlayed)
	if err != nil {
		return fmt.Errorf("intermit room %s: %w", roomID, err)
	}
	if !won {
		// Already in intermission; a concurrent end-of-game beat us.
		return nil
	}

	log.Info().
		Str("room_id", roomID.String()).
		Int("game_number", session.GameNumber).
		Float64("duration_sec", durationSec).
		Time("next_game_starts_at", nextStart).
		Msg("game ended, room in intermission")

	m.sync.BroadcastPayload(ctx, realtime.EventTypeRoomStatus, roomID, realtime.RoomStatusPayload{
		RoomID:           roomID.String(),
		Status:           string(models.RoomStatusIntermission),
		GameNumber:       session.GameNumber,
		NextGameStartsAt: &nextStart,
	})

	m.wake()
	return nil
}

// EstimateWait reports how long a newly arrived player waits before playing.
// Zero for a room in intermission whose next start already passed.
func (m *LifecycleManager) EstimateWait(room *models.PerpetualRoom) time.Duration {
	now := m.clock.Now()
	switch room.Status {
	case models.RoomStatusIntermission:
		if room.NextGameStartsAt == nil {
			return 0
		}
		if wait := room.NextGameStartsAt.Sub(now); wait > 0 {
			return wait
		}
		return 0
	case models.RoomStatusActive:
		// Mid-game arrivals wait for the rest of this game plus the next
		// intermission. Without per-round timing the rolling average is the
		// best available estimate of the remainder.
		remaining := time.Duration(room.AvgGameDurationSec/2) * time.Second
		return remaining + time.Duration(room.Settings.IntermissionSec)*time.Second
	}
	return 0
}

// Run drives the intermission scheduler until ctx is cancelled. Each pass
// starts every room whose intermission has elapsed; wake() short-circuits
// the wait when a transition changes the schedule.
func (m *LifecycleManager) Run(ctx context.Context) {
	log.Info().Dur("scan_interval", m.config.ScanInterval).Msg("room lifecycle scheduler started")
	for {
		timer := m.clock.NewTimer(m.config.ScanInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info().Msg("room lifecycle scheduler shutting down")
			return
		case <-timer.Chan():
		case <-m.wakeCh:
			timer.Stop()
		}
		m.scanOnce(ctx)
	}
}

func (m *LifecycleManager) scanOnce(ctx context.Context) {
	rooms, err := m.store.ListRooms(ctx)
	if err != nil {
		log.Error().Err(err).Msg("room scan failed")
		return
	}
	now := m.clock.Now()
	for i := range rooms {
		r := &rooms[i]
		if r.Status != models.RoomStatusIntermission || r.NextGameStartsAt == nil {
			continue
		}
		if r.NextGameStartsAt.After(now) {
			continue
		}
		if _, err := m.StartNextGame(ctx, r.ID); err != nil {
			log.Error().
				Err(err).
				Str("room_id", r.ID.String()).
				Msg("failed to start next game")
		}
	}
}

func (m *LifecycleManager) wake() {
	select {
	case m.wakeCh <- struct{}{}:
	default:
	}
}

func applyDefaults(s *models.RoomSettings, d models.RoomSettings) {
	if s.MaxPlayersPerGame == 0 {
		s.MaxPlayersPerGame = d.MaxPlayersPerGame
	}
	if s.TotalRounds == 0 {
		s.TotalRounds = d.TotalRounds
	}
	if s.RoundTimeLimitSec == 0 {
		s.RoundTimeLimitSec = d.RoundTimeLimitSec
	}
	if s.IntermissionSec == 0 {
		s.IntermissionSec = d.IntermissionSec
	}
	if s.BingoSlotsPerGame == 0 {
		s.BingoSlotsPerGame = d.BingoSlotsPerGame
	}
}
