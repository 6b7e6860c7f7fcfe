// Package session runs the round-based game state machine: round lifecycle,
// submission handling, scoring, and bonus awards. Every transition more
// than one goroutine may attempt is settled by a conditional store write,
// never by an in-process lock, so the engine stays correct when the same
// deadline fires while the last participant submits.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/discoveredlive/gamecore/internal/content"
	"github.com/discoveredlive/gamecore/internal/gameerrors"
	"github.com/discoveredlive/gamecore/internal/models"
	"github.com/discoveredlive/gamecore/internal/realtime"
	"github.com/discoveredlive/gamecore/internal/store"
)

// GameEndHandler receives the completed session so the room can transition
// back to intermission. The room lifecycle manager implements it.
type GameEndHandler interface {
	EndGame(ctx context.Context, roomID uuid.UUID, session *models.GameSession) error
}

// Config holds engine settings.
type Config struct {
	// MinParticipants is the floor the engine tops up to with simulated
	// players before starting a game, so a single human never plays alone.
	MinParticipants int

	// AutoPlay drives AI participants' submissions. Disabled in tests that
	// want full control over who submits when.
	AutoPlay bool
}

// DefaultConfig returns the standard engine settings.
func DefaultConfig() Config {
	return Config{
		MinParticipants: 4,
		AutoPlay:        true,
	}
}

// roundState is the in-memory context of the currently open round of one
// session. Everything needed for correctness lives in the store; this holds
// the prompt and timer that only the round-running process needs.
type roundState struct {
	roomID      uuid.UUID
	roundNumber int
	prompt      *content.RoundPrompt
	targets     []content.Target
	startedAt   time.Time
	endsAt      time.Time
	timer       clockwork.Timer
	aiTimers    []clockwork.Timer
}

// Engine is the game session state machine.
type Engine struct {
	store   store.Store
	sync    *realtime.Synchronizer
	prompts content.PromptProvider
	clock   clockwork.Clock
	policy  ScoringPolicy
	config  Config

	ended GameEndHandler

	mu     sync.Mutex
	rounds map[uuid.UUID]*roundState // session ID -> open round
}

// NewEngine creates a session engine. A nil policy means StandardPolicy.
func NewEngine(st store.Store, sync *realtime.Synchronizer, prompts content.PromptProvider, clock clockwork.Clock, policy ScoringPolicy, config Config) *Engine {
	if policy == nil {
		policy = StandardPolicy{}
	}
	return &Engine{
		store:   st,
		sync:    sync,
		prompts: prompts,
		clock:   clock,
		policy:  policy,
		config:  config,
		rounds:  make(map[uuid.UUID]*roundState),
	}
}

// SetGameEndHandler wires the room lifecycle manager in after construction.
func (e *Engine) SetGameEndHandler(h GameEndHandler) {
	e.ended = h
}

// JoinSession adds a participant to a pending session. Joining an active or
// completed game is a state conflict; the next game is the place for late
// arrivals.
func (e *Engine) JoinSession(ctx context.Context, sessionID uuid.UUID, displayName string, ptype models.ParticipantType) (*models.SessionParticipant, error) {
	if displayName == "" {
		return nil, gameerrors.Validation("display name is required")
	}
	session, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionStatusPending {
		return nil, gameerrors.StateConflict("cannot join session %s: status is %s", sessionID, session.Status)
	}
	room, err := e.store.GetRoom(ctx, session.PerpetualRoomID)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	p := &models.SessionParticipant{
		ID:              uuid.New(),
		GameSessionID:   sessionID,
		ParticipantType: ptype,
		DisplayName:     displayName,
		IsActive:        true,
		JoinedAt:        now,
		UpdatedAt:       now,
	}
	// The store's roster guard settles concurrent joins at capacity; a
	// read-then-create check here could admit one player too many.
	if err := e.store.CreateParticipant(ctx, p, room.Settings.MaxPlayersPerGame); err != nil {
		if errors.Is(err, gameerrors.ErrStateConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("create participant in session %s: %w", sessionID, err)
	}

	log.Info().
		Str("session_id", sessionID.String()).
		Str("participant_id", p.ID.String()).
		Str("type", string(ptype)).
		Msg("participant joined")

	e.sync.TrackPresence(ctx, session.PerpetualRoomID, realtime.PresenceEntry{
		ParticipantID: p.ID,
		DisplayName:   displayName,
	})
	return p, nil
}

// LaunchSession implements room.SessionLauncher: it tops the roster up with
// simulated players, activates the session, and starts round 1. Losing the
// activation write means another runner already launched; that is a no-op
// here, not an error.
func (e *Engine) LaunchSession(ctx context.Context, room *models.PerpetualRoom, session *models.GameSession) error {
	participants, err := e.store.ListParticipants(ctx, session.ID)
	if err != nil {
		return err
	}

	aiNames := []string{"Maverick", "Quill", "Sable", "Juniper", "Onyx", "Wren", "Atlas", "Dune"}
	for i := 0; len(participants) < e.config.MinParticipants && len(participants) < room.Settings.MaxPlayersPerGame; i++ {
		name := fmt.Sprintf("%s (AI)", aiNames[i%len(aiNames)])
		now := e.clock.Now()
		ai := &models.SessionParticipant{
			ID:              uuid.New(),
			GameSessionID:   session.ID,
			ParticipantType: models.ParticipantTypeAI,
			DisplayName:     name,
			IsActive:        true,
			JoinedAt:        now,
			UpdatedAt:       now,
		}
		if err := e.store.CreateParticipant(ctx, ai, room.Settings.MaxPlayersPerGame); err != nil {
			if errors.Is(err, gameerrors.ErrStateConflict) {
				// Another runner filled the roster first.
				break
			}
			return fmt.Errorf("create AI participant: %w", err)
		}
		participants = append(participants, *ai)
	}

	humans, ais := 0, 0
	for _, p := range participants {
		if p.ParticipantType == models.ParticipantTypeAI {
			ais++
		} else {
			humans++
		}
	}

	startedAt := e.clock.Now()
	won, err := e.store.ActivateSession(ctx, session.ID, startedAt, len(participants), humans, ais)
	if err != nil {
		return fmt.Errorf("activate session %s: %w", session.ID, err)
	}
	if !won {
		return nil
	}
	session.Status = models.SessionStatusActive
	session.StartedAt = &startedAt
	session.TotalParticipants = len(participants)

	if err := e.store.SetRoomPlayerCount(ctx, room.ID, len(participants)); err != nil {
		log.Error().Err(err).Str("room_id", room.ID.String()).Msg("failed to update room player count")
	}

	log.Info().
		Str("session_id", session.ID.String()).
		Int("game_number", session.GameNumber).
		Int("participants", len(participants)).
		Int("humans", humans).
		Int("ais", ais).
		Msg("game started")

	e.sync.BroadcastPayload(ctx, realtime.EventTypeGameStarted, room.ID, realtime.GameStartedPayload{
		SessionID:         session.ID.String(),
		GameNumber:        session.GameNumber,
		TotalRounds:       session.TotalRounds,
		TotalParticipants: len(participants),
		StartedAt:         startedAt,
	})

	return e.startRound(ctx, room, session, 1)
}

// SelectCSuite records a participant's C-Suite role declaration. Only valid
// before the game starts or during round 1, and only once per game.
func (e *Engine) SelectCSuite(ctx context.Context, sessionID, participantID uuid.UUID, choice models.CSuiteChoice) error {
	if !models.ValidCSuiteChoice(choice) {
		return gameerrors.Validation("invalid c-suite choice %q", choice)
	}
	session, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	inWindow := session.Status == models.SessionStatusPending ||
		(session.Status == models.SessionStatusActive && session.CurrentRound == 1)
	if !inWindow {
		return gameerrors.StateConflict("c-suite selection closed for session %s (status %s, round %d)", sessionID, session.Status, session.CurrentRound)
	}
	p, err := e.store.GetParticipant(ctx, participantID)
	if err != nil {
		return err
	}
	if p.GameSessionID != sessionID {
		return gameerrors.StateConflict("participant %s is not in session %s", participantID, sessionID)
	}
	if !p.IsActive {
		return gameerrors.StateConflict("participant %s is inactive", participantID)
	}
	if p.CSuiteChoice != nil {
		return gameerrors.StateConflict("participant %s already chose %s", participantID, *p.CSuiteChoice)
	}
	if err := e.store.SetCSuiteChoice(ctx, participantID, choice); err != nil {
		return fmt.Errorf("set c-suite choice: %w", err)
	}

	e.sync.BroadcastPayload(ctx, realtime.EventTypeCSuiteSelected, session.PerpetualRoomID, realtime.CSuiteSelectedPayload{
		SessionID:     sessionID.String(),
		ParticipantID: participantID.String(),
		Choice:        string(choice),
	})
	return nil
}

// SubmitPlay records one participant's answer for the open round. A second
// submission for the same round yields gameerrors.ErrDuplicateSubmission
// and changes nothing. When this play is the last one outstanding, the
// caller's goroutine also runs the scoring pass.
func (e *Engine) SubmitPlay(ctx context.Context, sessionID, participantID uuid.UUID, clickedTargetID string) (*models.RoundPlay, error) {
	session, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionStatusActive {
		return nil, gameerrors.StateConflict("session %s is %s, not accepting plays", sessionID, session.Status)
	}

	rs := e.openRound(sessionID)
	if rs == nil || rs.roundNumber != session.CurrentRound {
		return nil, gameerrors.StateConflict("no open round for session %s", sessionID)
	}
	now := e.clock.Now()
	if now.After(rs.endsAt) {
		return nil, gameerrors.StateConflict("round %d of session %s is closed", rs.roundNumber, sessionID)
	}

	p, err := e.store.GetParticipant(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if p.GameSessionID != sessionID {
		return nil, gameerrors.StateConflict("participant %s is not in session %s", participantID, sessionID)
	}
	if !p.IsActive {
		return nil, gameerrors.StateConflict("participant %s is inactive", participantID)
	}

	var target *content.Target
	for i := range rs.targets {
		if rs.targets[i].ID == clickedTargetID {
			target = &rs.targets[i]
			break
		}
	}
	if target == nil {
		return nil, gameerrors.Validation("target %q is not on the board", clickedTargetID)
	}

	play := &models.RoundPlay{
		ID:             uuid.New(),
		GameSessionID:  sessionID,
		RoundNumber:    rs.roundNumber,
		ParticipantID:  participantID,
		ClickedTarget:  target.ID,
		TargetPosition: target.Position,
		IsCorrect:      target.ID == rs.prompt.CorrectTarget.ID,
		ResponseTimeMs: now.Sub(rs.startedAt).Milliseconds(),
		SubmittedAt:    now,
	}
	if err := e.store.CreatePlay(ctx, play); err != nil {
		if errors.Is(err, gameerrors.ErrDuplicateSubmission) {
			return nil, err
		}
		return nil, fmt.Errorf("create play: %w", err)
	}

	count, err := e.store.CountPlays(ctx, sessionID, rs.roundNumber)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID.String()).Msg("failed to count plays")
		count = 0
	}

	e.sync.BroadcastPayload(ctx, realtime.EventTypePlaySubmitted, rs.roomID, realtime.PlaySubmittedPayload{
		SessionID:         sessionID.String(),
		RoundNumber:       rs.roundNumber,
		ParticipantID:     participantID.String(),
		IsCorrect:         play.IsCorrect,
		PlaysSubmitted:    count,
		TotalParticipants: session.TotalParticipants,
	})

	if count >= session.TotalParticipants {
		e.tryCloseRound(ctx, session, rs)
	}
	return play, nil
}

// startRound fetches a prompt, opens the round window, and schedules the
// deadline and any simulated plays.
func (e *Engine) startRound(ctx context.Context, room *models.PerpetualRoom, session *models.GameSession, roundNumber int) error {
	prompt, err := e.prompts.RoundPrompt(ctx, content.PromptRequest{
		Industry:    room.Settings.Industry,
		Difficulty:  room.Settings.Difficulty,
		RoundNumber: roundNumber,
	})
	if err != nil {
		return fmt.Errorf("fetch prompt for round %d: %w", roundNumber, err)
	}

	targets := make([]content.Target, 0, 1+len(prompt.Distractors))
	targets = append(targets, prompt.CorrectTarget)
	targets = append(targets, prompt.Distractors...)
	sort.Slice(targets, func(i, j int) bool { return targets[i].Position < targets[j].Position })

	limit := time.Duration(room.Settings.RoundTimeLimitSec) * time.Second
	now := e.clock.Now()
	endsAt := now.Add(limit)
	if err := e.store.SetRoundDeadline(ctx, session.ID, &endsAt); err != nil {
		return fmt.Errorf("set round deadline: %w", err)
	}

	rs := &roundState{
		roomID:      room.ID,
		roundNumber: roundNumber,
		prompt:      prompt,
		targets:     targets,
		startedAt:   now,
		endsAt:      endsAt,
	}
	sessionID := session.ID
	rs.timer = e.clock.AfterFunc(limit, func() {
		e.onDeadline(sessionID, roundNumber)
	})

	e.mu.Lock()
	e.rounds[sessionID] = rs
	e.mu.Unlock()

	log.Info().
		Str("session_id", sessionID.String()).
		Int("round", roundNumber).
		Time("ends_at", endsAt).
		Msg("round started")

	boardTargets := make([]realtime.BoardTarget, len(targets))
	for i, t := range targets {
		boardTargets[i] = realtime.BoardTarget{ID: t.ID, Label: t.Label, Position: t.Position}
	}
	e.sync.BroadcastPayload(ctx, realtime.EventTypeRoundStarted, room.ID, realtime.RoundStartedPayload{
		SessionID:    sessionID.String(),
		RoundNumber:  roundNumber,
		PromptText:   prompt.PromptText,
		Targets:      boardTargets,
		StartedAt:    now,
		EndsAt:       endsAt,
		TimeLimitSec: room.Settings.RoundTimeLimitSec,
	})

	if e.config.AutoPlay {
		e.scheduleAutoPlays(ctx, room, sessionID, rs, limit)
	}
	return nil
}

func (e *Engine) scheduleAutoPlays(ctx context.Context, room *models.PerpetualRoom, sessionID uuid.UUID, rs *roundState, limit time.Duration) {
	participants, err := e.store.ListParticipants(ctx, sessionID)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID.String()).Msg("failed to list participants for autoplay")
		return
	}
	strategy := AutoPlayerForDifficulty(room.Settings.Difficulty)
	for _, p := range participants {
		if p.ParticipantType != models.ParticipantTypeAI || !p.IsActive {
			continue
		}
		targetID, delay := strategy.Decide(rs.prompt, rs.targets, limit)
		pid := p.ID
		t := e.clock.AfterFunc(delay, func() {
			if _, err := e.SubmitPlay(context.Background(), sessionID, pid, targetID); err != nil &&
				!errors.Is(err, gameerrors.ErrDuplicateSubmission) &&
				!errors.Is(err, gameerrors.ErrStateConflict) {
				log.Warn().Err(err).Str("participant_id", pid.String()).Msg("autoplay submission failed")
			}
		})
		e.mu.Lock()
		rs.aiTimers = append(rs.aiTimers, t)
		e.mu.Unlock()
	}
}

func (e *Engine) onDeadline(sessionID uuid.UUID, roundNumber int) {
	ctx := context.Background()
	session, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID.String()).Msg("deadline check failed")
		return
	}
	if session.Status != models.SessionStatusActive || session.CurrentRound != roundNumber {
		return
	}
	rs := e.openRound(sessionID)
	if rs == nil || rs.roundNumber != roundNumber {
		return
	}
	log.Info().
		Str("session_id", sessionID.String()).
		Int("round", roundNumber).
		Msg("round deadline reached")
	e.tryCloseRound(ctx, session, rs)
}

// tryCloseRound is the single convergence point for "all plays are in" and
// "the deadline passed". The AdvanceRound conditional write is the claim:
// exactly one caller observes true and runs the scoring pass, no matter how
// many goroutines arrive at once.
func (e *Engine) tryCloseRound(ctx context.Context, session *models.GameSession, rs *roundState) {
	won, err := e.store.AdvanceRound(ctx, session.ID, rs.roundNumber)
	if err != nil {
		log.Error().Err(err).Str("session_id", session.ID.String()).Msg("round claim failed")
		return
	}
	if !won {
		return
	}

	e.mu.Lock()
	delete(e.rounds, session.ID)
	if rs.timer != nil {
		rs.timer.Stop()
	}
	for _, t := range rs.aiTimers {
		t.Stop()
	}
	e.mu.Unlock()

	participants := e.scoreRound(ctx, session, rs)

	if rs.roundNumber >= session.TotalRounds {
		e.finishSession(ctx, session, rs, participants)
		return
	}

	room, err := e.store.GetRoom(ctx, session.PerpetualRoomID)
	if err != nil {
		log.Error().Err(err).Str("session_id", session.ID.String()).Msg("failed to load room for next round")
		return
	}
	session.CurrentRound = rs.roundNumber + 1
	if err := e.startRound(ctx, room, session, rs.roundNumber+1); err != nil {
		log.Error().Err(err).Str("session_id", session.ID.String()).Int("round", rs.roundNumber+1).Msg("failed to start next round")
	}
}

// scoreRound folds the closed round's plays into every participant and
// broadcasts the results. Returns the participants' post-round state for
// winner selection on the final round.
func (e *Engine) scoreRound(ctx context.Context, session *models.GameSession, rs *roundState) []models.SessionParticipant {
	plays, err := e.store.ListPlays(ctx, session.ID, rs.roundNumber)
	if err != nil {
		log.Error().Err(err).Str("session_id", session.ID.String()).Msg("failed to list plays for scoring")
		return nil
	}
	participants, err := e.store.ListParticipants(ctx, session.ID)
	if err != nil {
		log.Error().Err(err).Str("session_id", session.ID.String()).Msg("failed to list participants for scoring")
		return nil
	}

	playByParticipant := make(map[uuid.UUID]*models.RoundPlay, len(plays))
	for i := range plays {
		playByParticipant[plays[i].ParticipantID] = &plays[i]
	}

	// Synergy eligibility: distinct declared roles among correct answerers.
	roles := make(map[models.CSuiteChoice]bool)
	for i := range participants {
		p := &participants[i]
		if play, ok := playByParticipant[p.ID]; ok && play.IsCorrect && p.CSuiteChoice != nil {
			roles[*p.CSuiteChoice] = true
		}
	}
	distinctRoles := len(roles)

	correctPos := rs.prompt.CorrectTarget.Position
	results := make([]realtime.ParticipantRoundResult, 0, len(participants))

	for i := range participants {
		p := &participants[i]
		play := playByParticipant[p.ID]

		delta := 0
		incorrectDelta := 0
		streak := 0
		positions := p.CorrectPositions
		golden := false

		switch {
		case play != nil && play.IsCorrect:
			streak = p.CurrentStreak + 1
			delta = e.policy.BasePoints(rs.roundNumber) + e.policy.StreakBonus(streak)
			if p.CSuiteChoice != nil && distinctRoles >= 2 {
				delta += e.policy.SynergyBonus(distinctRoles)
			}
			positions |= 1 << uint(correctPos)
			if models.HasBingo(positions) && !p.HasGoldenCard {
				claimed, err := e.store.ClaimBingoSlot(ctx, session.ID)
				if err != nil {
					log.Error().Err(err).Str("participant_id", p.ID.String()).Msg("bingo slot claim failed")
				} else if claimed {
					golden = true
					delta += e.policy.BingoBonus()
				}
			}
		case play != nil:
			incorrectDelta = 1
		default:
			// No play this round: streak resets, nothing else changes.
		}

		if err := e.store.ApplyRoundResult(ctx, p.ID, delta, incorrectDelta, streak, positions, golden); err != nil {
			log.Error().Err(err).Str("participant_id", p.ID.String()).Msg("failed to apply round result")
			continue
		}
		p.TotalScore += delta
		p.IncorrectCount += incorrectDelta
		p.CurrentStreak = streak
		p.CorrectPositions = positions
		if golden {
			p.HasGoldenCard = true
		}

		results = append(results, realtime.ParticipantRoundResult{
			ParticipantID: p.ID.String(),
			ScoreDelta:    delta,
			TotalScore:    p.TotalScore,
			Streak:        streak,
			BingoAwarded:  golden,
		})
	}

	log.Info().
		Str("session_id", session.ID.String()).
		Int("round", rs.roundNumber).
		Int("plays", len(plays)).
		Msg("round scored")

	e.sync.BroadcastPayload(ctx, realtime.EventTypeRoundScored, rs.roomID, realtime.RoundScoredPayload{
		SessionID:   session.ID.String(),
		RoundNumber: rs.roundNumber,
		Results:     results,
	})
	return participants
}

func (e *Engine) finishSession(ctx context.Context, session *models.GameSession, rs *roundState, participants []models.SessionParticipant) {
	winner := PickWinner(participants)
	completedAt := e.clock.Now()

	// The final AdvanceRound moved currentRound past totalRounds; that is
	// the guard value here.
	won, err := e.store.CompleteSession(ctx, session.ID, rs.roundNumber+1, winner, completedAt)
	if err != nil {
		log.Error().Err(err).Str("session_id", session.ID.String()).Msg("failed to complete session")
		return
	}
	if !won {
		return
	}

	log.Info().
		Str("session_id", session.ID.String()).
		Str("winner_participant_id", winner.String()).
		Msg("game completed")

	e.sync.BroadcastPayload(ctx, realtime.EventTypeGameCompleted, rs.roomID, realtime.GameCompletedPayload{
		SessionID:           session.ID.String(),
		WinnerParticipantID: winner.String(),
		CompletedAt:         completedAt,
	})

	if e.ended != nil {
		session.Status = models.SessionStatusCompleted
		session.CompletedAt = &completedAt
		w := winner
		session.WinnerParticipantID = &w
		if err := e.ended.EndGame(ctx, rs.roomID, session); err != nil {
			log.Error().Err(err).Str("room_id", rs.roomID.String()).Msg("end-of-game handoff failed")
		}
	}
}

// PickWinner selects the game winner: highest total score, then fewest
// incorrect answers, then smallest participant ID so ties resolve the same
// way on every node.
func PickWinner(participants []models.SessionParticipant) uuid.UUID {
	if len(participants) == 0 {
		return uuid.Nil
	}
	best := participants[0]
	for _, p := range participants[1:] {
		if betterThan(p, best) {
			best = p
		}
	}
	return best.ID
}

func betterThan(a, b models.SessionParticipant) bool {
	if a.TotalScore != b.TotalScore {
		return a.TotalScore > b.TotalScore
	}
	if a.IncorrectCount != b.IncorrectCount {
		return a.IncorrectCount < b.IncorrectCount
	}
	return a.ID.String() < b.ID.String()
}

func (e *Engine) openRound(sessionID uuid.UUID) *roundState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rounds[sessionID]
}

// OpenRound exposes the current round's board for the query surface. The
// second return is false when no round is open for the session.
func (e *Engine) OpenRound(sessionID uuid.UUID) (roundNumber int, prompt *content.RoundPrompt, targets []content.Target, endsAt time.Time, ok bool) {
	rs := e.openRound(sessionID)
	if rs == nil {
		return 0, nil, nil, time.Time{}, false
	}
	return rs.roundNumber, rs.prompt, rs.targets, rs.endsAt, true
}

// LeaveSession marks a participant inactive. Play history stays; only
// future submission eligibility changes.
func (e *Engine) LeaveSession(ctx context.Context, sessionID, participantID uuid.UUID) error {
	p, err := e.store.GetParticipant(ctx, participantID)
	if err != nil {
		return err
	}
	if p.GameSessionID != sessionID {
		return gameerrors.StateConflict("participant %s is not in session %s", participantID, sessionID)
	}
	if err := e.store.SetParticipantActive(ctx, participantID, false); err != nil {
		return fmt.Errorf("deactivate participant: %w", err)
	}
	session, err := e.store.GetSession(ctx, sessionID)
	if err == nil {
		e.sync.UntrackPresence(ctx, session.PerpetualRoomID, participantID)
	}
	return nil
}
