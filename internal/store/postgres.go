package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/discoveredlive/gamecore/internal/gameerrors"
	"github.com/discoveredlive/gamecore/internal/models"
)

const pgUniqueViolation = "23505"

// PostgresStore implements Store on a pgx connection pool. Every
// conditional transition is a single guarded UPDATE; the row count tells
// the caller whether it won the transition.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects a pool to the given DSN.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

const roomColumns = `id, room_code, status, settings, current_game_number,
	current_player_count, spectator_count, total_games_played,
	avg_game_duration_sec, next_game_starts_at, created_at, updated_at`

func scanRoom(row pgx.Row) (*models.PerpetualRoom, error) {
	var room models.PerpetualRoom
	var settings []byte
	err := row.Scan(
		&room.ID, &room.RoomCode, &room.Status, &settings,
		&room.CurrentGameNumber, &room.CurrentPlayerCount, &room.SpectatorCount,
		&room.TotalGamesPlayed, &room.AvgGameDurationSec, &room.NextGameStartsAt,
		&room.CreatedAt, &room.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(settings, &room.Settings); err != nil {
		room.Settings = models.RoomSettings{}
	}
	return &room, nil
}

func (s *PostgresStore) CreateRoom(ctx context.Context, room *models.PerpetualRoom) error {
	settingsBytes, err := json.Marshal(room.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal room settings: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO perpetual_rooms (id, room_code, status, settings,
			current_game_number, current_player_count, spectator_count,
			total_games_played, avg_game_duration_sec, next_game_starts_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		room.ID, room.RoomCode, room.Status, settingsBytes,
		room.CurrentGameNumber, room.CurrentPlayerCount, room.SpectatorCount,
		room.TotalGamesPlayed, room.AvgGameDurationSec, room.NextGameStartsAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRoom(ctx context.Context, id uuid.UUID) (*models.PerpetualRoom, error) {
	room, err := scanRoom(s.pool.QueryRow(ctx,
		`SELECT `+roomColumns+` FROM perpetual_rooms WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, gameerrors.NotFound("room", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return room, nil
}

func (s *PostgresStore) GetRoomByCode(ctx context.Context, code string) (*models.PerpetualRoom, error) {
	room, err := scanRoom(s.pool.QueryRow(ctx,
		`SELECT `+roomColumns+` FROM perpetual_rooms WHERE room_code = $1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, gameerrors.NotFound("room", code)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room by code: %w", err)
	}
	return room, nil
}

func (s *PostgresStore) ListRooms(ctx context.Context) ([]models.PerpetualRoom, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+roomColumns+` FROM perpetual_rooms ORDER BY room_code`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer rows.Close()

	var rooms []models.PerpetualRoom
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		rooms = append(rooms, *room)
	}
	return rooms, rows.Err()
}

func (s *PostgresStore) ActivateRoom(ctx context.Context, roomID uuid.UUID, gameNumber int) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE perpetual_rooms
		SET status = $2, current_game_number = $3, next_game_starts_at = NULL, updated_at = now()
		WHERE id = $1 AND status = $4`,
		roomID, models.RoomStatusActive, gameNumber, models.RoomStatusIntermission,
	)
	if err != nil {
		return false, fmt.Errorf("failed to activate room: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) IntermitRoom(ctx context.Context, roomID uuid.UUID, nextGameStartsAt time.Time, avgGameDurationSec float64, totalGamesPlayed int) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE perpetual_rooms
		SET status = $2, next_game_starts_at = $3, avg_game_duration_sec = $4,
			total_games_played = $5, updated_at = now()
		WHERE id = $1 AND status = $6`,
		roomID, models.RoomStatusIntermission, nextGameStartsAt,
		avgGameDurationSec, totalGamesPlayed, models.RoomStatusActive,
	)
	if err != nil {
		return false, fmt.Errorf("failed to intermit room: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) SetRoomPlayerCount(ctx context.Context, roomID uuid.UUID, count int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE perpetual_rooms SET current_player_count = $2, updated_at = now() WHERE id = $1`,
		roomID, count)
	if err != nil {
		return fmt.Errorf("failed to set player count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return gameerrors.NotFound("room", roomID)
	}
	return nil
}

func (s *PostgresStore) AdjustSpectatorCount(ctx context.Context, roomID uuid.UUID, delta int) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE perpetual_rooms
		SET spectator_count = GREATEST(spectator_count + $2, 0), updated_at = now()
		WHERE id = $1`,
		roomID, delta)
	if err != nil {
		return fmt.Errorf("failed to adjust spectator count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return gameerrors.NotFound("room", roomID)
	}
	return nil
}

const sessionColumns = `id, perpetual_room_id, game_number, status, current_round,
	total_rounds, rounds_completed, total_participants, human_participants,
	ai_participants, bingo_slots_remaining, current_round_ends_at,
	started_at, completed_at, winner_participant_id, created_at, updated_at`

func scanSession(row pgx.Row) (*models.GameSession, error) {
	var session models.GameSession
	err := row.Scan(
		&session.ID, &session.PerpetualRoomID, &session.GameNumber, &session.Status,
		&session.CurrentRound, &session.TotalRounds, &session.RoundsCompleted,
		&session.TotalParticipants, &session.HumanParticipants, &session.AIParticipants,
		&session.BingoSlotsRemaining, &session.CurrentRoundEndsAt,
		&session.StartedAt, &session.CompletedAt, &session.WinnerParticipantID,
		&session.CreatedAt, &session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, session *models.GameSession) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO game_sessions (id, perpetual_room_id, game_number, status,
			current_round, total_rounds, rounds_completed, total_participants,
			human_participants, ai_participants, bingo_slots_remaining)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		session.ID, session.PerpetualRoomID, session.GameNumber, session.Status,
		session.CurrentRound, session.TotalRounds, session.RoundsCompleted,
		session.TotalParticipants, session.HumanParticipants, session.AIParticipants,
		session.BingoSlotsRemaining,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSession(ctx context.Context, id uuid.UUID) (*models.GameSession, error) {
	session, err := scanSession(s.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM game_sessions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, gameerrors.NotFound("session", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

func (s *PostgresStore) GetOpenSessionForRoom(ctx context.Context, roomID uuid.UUID) (*models.GameSession, error) {
	session, err := scanSession(s.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+` FROM game_sessions
		WHERE perpetual_room_id = $1 AND status <> $2
		ORDER BY game_number DESC LIMIT 1`,
		roomID, models.SessionStatusCompleted))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, gameerrors.NotFound("open session for room", roomID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get open session: %w", err)
	}
	return session, nil
}

func (s *PostgresStore) ActivateSession(ctx context.Context, sessionID uuid.UUID, startedAt time.Time, totalParticipants, humanParticipants, aiParticipants int) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE game_sessions
		SET status = $2, started_at = $3, total_participants = $4,
			human_participants = $5, ai_participants = $6, updated_at = now()
		WHERE id = $1 AND status = $7`,
		sessionID, models.SessionStatusActive, startedAt,
		totalParticipants, humanParticipants, aiParticipants,
		models.SessionStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("failed to activate session: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) AdvanceRound(ctx context.Context, sessionID uuid.UUID, fromRound int) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE game_sessions
		SET current_round = current_round + 1, rounds_completed = $2,
			current_round_ends_at = NULL, updated_at = now()
		WHERE id = $1 AND current_round = $2 AND status = $3`,
		sessionID, fromRound, models.SessionStatusActive,
	)
	if err != nil {
		return false, fmt.Errorf("failed to advance round: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) CompleteSession(ctx context.Context, sessionID uuid.UUID, fromRound int, winnerParticipantID uuid.UUID, completedAt time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE game_sessions
		SET status = $2, current_round_ends_at = NULL,
			completed_at = $4, winner_participant_id = $5, updated_at = now()
		WHERE id = $1 AND current_round = $3 AND status = $6`,
		sessionID, models.SessionStatusCompleted, fromRound,
		completedAt, winnerParticipantID, models.SessionStatusActive,
	)
	if err != nil {
		return false, fmt.Errorf("failed to complete session: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) SetRoundDeadline(ctx context.Context, sessionID uuid.UUID, endsAt *time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE game_sessions SET current_round_ends_at = $2, updated_at = now() WHERE id = $1`,
		sessionID, endsAt)
	if err != nil {
		return fmt.Errorf("failed to set round deadline: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return gameerrors.NotFound("session", sessionID)
	}
	return nil
}

func (s *PostgresStore) ClaimBingoSlot(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	// First successful decrement wins; losers see zero rows affected.
	tag, err := s.pool.Exec(ctx, `
		UPDATE game_sessions
		SET bingo_slots_remaining = bingo_slots_remaining - 1, updated_at = now()
		WHERE id = $1 AND bingo_slots_remaining > 0`,
		sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to claim bingo slot: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

const participantColumns = `id, game_session_id, participant_type, display_name,
	total_score, incorrect_count, current_streak, correct_positions,
	has_golden_card, c_suite_choice, is_active, joined_at, updated_at`

func scanParticipant(row pgx.Row) (*models.SessionParticipant, error) {
	var p models.SessionParticipant
	var positions int
	err := row.Scan(
		&p.ID, &p.GameSessionID, &p.ParticipantType, &p.DisplayName,
		&p.TotalScore, &p.IncorrectCount, &p.CurrentStreak, &positions,
		&p.HasGoldenCard, &p.CSuiteChoice, &p.IsActive, &p.JoinedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.CorrectPositions = uint16(positions)
	return &p, nil
}

func (s *PostgresStore) CreateParticipant(ctx context.Context, p *models.SessionParticipant, maxParticipants int) error {
	// Guarded insert: zero rows means the roster is already full.
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO session_participants (id, game_session_id, participant_type,
			display_name, total_score, incorrect_count, current_streak,
			correct_positions, has_golden_card, c_suite_choice, is_active)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		WHERE $12 <= 0 OR (
			SELECT count(*) FROM session_participants WHERE game_session_id = $2
		) < $12`,
		p.ID, p.GameSessionID, p.ParticipantType, p.DisplayName,
		p.TotalScore, p.IncorrectCount, p.CurrentStreak,
		int(p.CorrectPositions), p.HasGoldenCard, p.CSuiteChoice, p.IsActive,
		maxParticipants,
	)
	if err != nil {
		return fmt.Errorf("failed to create participant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return gameerrors.StateConflict("session %s is full (%d players)", p.GameSessionID, maxParticipants)
	}
	return nil
}

func (s *PostgresStore) GetParticipant(ctx context.Context, id uuid.UUID) (*models.SessionParticipant, error) {
	p, err := scanParticipant(s.pool.QueryRow(ctx,
		`SELECT `+participantColumns+` FROM session_participants WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, gameerrors.NotFound("participant", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListParticipants(ctx context.Context, sessionID uuid.UUID) ([]models.SessionParticipant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+participantColumns+` FROM session_participants WHERE game_session_id = $1 ORDER BY id`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	var out []models.SessionParticipant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ApplyRoundResult(ctx context.Context, participantID uuid.UUID, scoreDelta, incorrectDelta, newStreak int, correctPositions uint16, goldenCard bool) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE session_participants
		SET total_score = total_score + $2, incorrect_count = incorrect_count + $3,
			current_streak = $4, correct_positions = $5,
			has_golden_card = has_golden_card OR $6, updated_at = now()
		WHERE id = $1`,
		participantID, scoreDelta, incorrectDelta, newStreak,
		int(correctPositions), goldenCard,
	)
	if err != nil {
		return fmt.Errorf("failed to apply round result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return gameerrors.NotFound("participant", participantID)
	}
	return nil
}

func (s *PostgresStore) SetCSuiteChoice(ctx context.Context, participantID uuid.UUID, choice models.CSuiteChoice) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE session_participants SET c_suite_choice = $2, updated_at = now() WHERE id = $1`,
		participantID, choice)
	if err != nil {
		return fmt.Errorf("failed to set c-suite choice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return gameerrors.NotFound("participant", participantID)
	}
	return nil
}

func (s *PostgresStore) SetParticipantActive(ctx context.Context, participantID uuid.UUID, active bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE session_participants SET is_active = $2, updated_at = now() WHERE id = $1`,
		participantID, active)
	if err != nil {
		return fmt.Errorf("failed to set participant active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return gameerrors.NotFound("participant", participantID)
	}
	return nil
}

const playColumns = `id, game_session_id, round_number, participant_id,
	clicked_target, target_position, is_correct, response_time_ms, submitted_at`

func scanPlay(row pgx.Row) (*models.RoundPlay, error) {
	var play models.RoundPlay
	err := row.Scan(
		&play.ID, &play.GameSessionID, &play.RoundNumber, &play.ParticipantID,
		&play.ClickedTarget, &play.TargetPosition, &play.IsCorrect,
		&play.ResponseTimeMs, &play.SubmittedAt,
	)
	if err != nil {
		return nil, err
	}
	return &play, nil
}

func (s *PostgresStore) CreatePlay(ctx context.Context, play *models.RoundPlay) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO round_plays (id, game_session_id, round_number, participant_id,
			clicked_target, target_position, is_correct, response_time_ms, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		play.ID, play.GameSessionID, play.RoundNumber, play.ParticipantID,
		play.ClickedTarget, play.TargetPosition, play.IsCorrect,
		play.ResponseTimeMs, play.SubmittedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return gameerrors.ErrDuplicateSubmission
		}
		return fmt.Errorf("failed to create play: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListPlays(ctx context.Context, sessionID uuid.UUID, roundNumber int) ([]models.RoundPlay, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+playColumns+` FROM round_plays
		WHERE game_session_id = $1 AND round_number = $2
		ORDER BY submitted_at`,
		sessionID, roundNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to list plays: %w", err)
	}
	defer rows.Close()

	var out []models.RoundPlay
	for rows.Next() {
		play, err := scanPlay(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan play: %w", err)
		}
		out = append(out, *play)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountPlays(ctx context.Context, sessionID uuid.UUID, roundNumber int) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM round_plays WHERE game_session_id = $1 AND round_number = $2`,
		sessionID, roundNumber).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count plays: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) ListSessionPlays(ctx context.Context, sessionID uuid.UUID) ([]models.RoundPlay, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+playColumns+` FROM round_plays
		WHERE game_session_id = $1
		ORDER BY round_number, submitted_at`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list session plays: %w", err)
	}
	defer rows.Close()

	var out []models.RoundPlay
	for rows.Next() {
		play, err := scanPlay(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan play: %w", err)
		}
		out = append(out, *play)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AddSpectator(ctx context.Context, spec *models.Spectator) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO spectators (id, perpetual_room_id, display_name) VALUES ($1, $2, $3)`,
		spec.ID, spec.PerpetualRoomID, spec.DisplayName)
	if err != nil {
		return fmt.Errorf("failed to add spectator: %w", err)
	}
	return s.AdjustSpectatorCount(ctx, spec.PerpetualRoomID, 1)
}

func (s *PostgresStore) RemoveSpectator(ctx context.Context, roomID, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM spectators WHERE id = $1 AND perpetual_room_id = $2`, id, roomID)
	if err != nil {
		return fmt.Errorf("failed to remove spectator: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return gameerrors.NotFound("spectator", id)
	}
	return s.AdjustSpectatorCount(ctx, roomID, -1)
}

func (s *PostgresStore) CountSpectators(ctx context.Context, roomID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM spectators WHERE perpetual_room_id = $1`, roomID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count spectators: %w", err)
	}
	return count, nil
}
