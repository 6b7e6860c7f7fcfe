package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/discoveredlive/gamecore/internal/gameerrors"
	"github.com/discoveredlive/gamecore/internal/models"
)

func newTestRoom(t *testing.T, m *MemoryStore) *models.PerpetualRoom {
	t.Helper()
	room := &models.PerpetualRoom{
		ID:       uuid.New(),
		RoomCode: "TEST",
		Status:   models.RoomStatusIntermission,
		Settings: models.RoomSettings{
			MaxPlayersPerGame: 8,
			TotalRounds:       3,
			RoundTimeLimitSec: 20,
			IntermissionSec:   30,
			BingoSlotsPerGame: 3,
		},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := m.CreateRoom(context.Background(), room); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	return room
}

func newTestSession(t *testing.T, m *MemoryStore, roomID uuid.UUID, slots int) *models.GameSession {
	t.Helper()
	session := &models.GameSession{
		ID:                  uuid.New(),
		PerpetualRoomID:     roomID,
		GameNumber:          1,
		Status:              models.SessionStatusPending,
		CurrentRound:        1,
		TotalRounds:         3,
		BingoSlotsRemaining: slots,
		CreatedAt:           time.Now(),
		UpdatedAt:           time.Now(),
	}
	if err := m.CreateSession(context.Background(), session); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return session
}

func TestActivateRoomSingleWinner(t *testing.T) {
	m := NewMemoryStore()
	room := newTestRoom(t, m)
	ctx := context.Background()

	const runners = 16
	var wg sync.WaitGroup
	wins := make(chan bool, runners)
	for i := 0; i < runners; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := m.ActivateRoom(ctx, room.ID, 1)
			if err != nil {
				t.Errorf("ActivateRoom: %v", err)
				return
			}
			wins <- won
		}()
	}
	wg.Wait()
	close(wins)

	winners := 0
	for won := range wins {
		if won {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly 1 activation winner, got %d", winners)
	}

	got, err := m.GetRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("GetRoom: %v", err)
	}
	if got.Status != models.RoomStatusActive {
		t.Errorf("room status = %s, want ACTIVE", got.Status)
	}
	if got.CurrentGameNumber != 1 {
		t.Errorf("game number = %d, want 1", got.CurrentGameNumber)
	}
	if got.NextGameStartsAt != nil {
		t.Error("next game start should be cleared while active")
	}
}

func TestAdvanceRoundSingleWinner(t *testing.T) {
	m := NewMemoryStore()
	room := newTestRoom(t, m)
	session := newTestSession(t, m, room.ID, 3)
	ctx := context.Background()

	if _, err := m.ActivateSession(ctx, session.ID, time.Now(), 4, 2, 2); err != nil {
		t.Fatalf("ActivateSession: %v", err)
	}

	const callers = 12
	var wg sync.WaitGroup
	wins := make(chan bool, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := m.AdvanceRound(ctx, session.ID, 1)
			if err != nil {
				t.Errorf("AdvanceRound: %v", err)
				return
			}
			wins <- won
		}()
	}
	wg.Wait()
	close(wins)

	winners := 0
	for won := range wins {
		if won {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly 1 advance winner, got %d", winners)
	}

	got, err := m.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.CurrentRound != 2 {
		t.Errorf("current round = %d, want 2", got.CurrentRound)
	}
	if got.RoundsCompleted != 1 {
		t.Errorf("rounds completed = %d, want 1", got.RoundsCompleted)
	}
}

func TestAdvanceRoundWrongRoundNoops(t *testing.T) {
	m := NewMemoryStore()
	room := newTestRoom(t, m)
	session := newTestSession(t, m, room.ID, 3)
	ctx := context.Background()

	if _, err := m.ActivateSession(ctx, session.ID, time.Now(), 2, 2, 0); err != nil {
		t.Fatalf("ActivateSession: %v", err)
	}
	won, err := m.AdvanceRound(ctx, session.ID, 5)
	if err != nil {
		t.Fatalf("AdvanceRound: %v", err)
	}
	if won {
		t.Error("advance from a stale round should not apply")
	}
}

func TestClaimBingoSlotExactlyN(t *testing.T) {
	const slots = 3
	m := NewMemoryStore()
	room := newTestRoom(t, m)
	session := newTestSession(t, m, room.ID, slots)
	ctx := context.Background()

	const claimers = 10
	var wg sync.WaitGroup
	wins := make(chan bool, claimers)
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := m.ClaimBingoSlot(ctx, session.ID)
			if err != nil {
				t.Errorf("ClaimBingoSlot: %v", err)
				return
			}
			wins <- won
		}()
	}
	wg.Wait()
	close(wins)

	winners := 0
	for won := range wins {
		if won {
			winners++
		}
	}
	if winners != slots {
		t.Fatalf("expected exactly %d slot winners, got %d", slots, winners)
	}

	got, err := m.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.BingoSlotsRemaining != 0 {
		t.Errorf("slots remaining = %d, want 0", got.BingoSlotsRemaining)
	}
}

func TestCreatePlayDuplicateRejected(t *testing.T) {
	m := NewMemoryStore()
	room := newTestRoom(t, m)
	session := newTestSession(t, m, room.ID, 3)
	ctx := context.Background()

	participantID := uuid.New()
	original := &models.RoundPlay{
		ID:            uuid.New(),
		GameSessionID: session.ID,
		RoundNumber:   1,
		ParticipantID: participantID,
		ClickedTarget: "ceo-strategy",
		IsCorrect:     true,
		SubmittedAt:   time.Now(),
	}
	if err := m.CreatePlay(ctx, original); err != nil {
		t.Fatalf("CreatePlay: %v", err)
	}

	dup := &models.RoundPlay{
		ID:            uuid.New(),
		GameSessionID: session.ID,
		RoundNumber:   1,
		ParticipantID: participantID,
		ClickedTarget: "office-manager",
		IsCorrect:     false,
		SubmittedAt:   time.Now(),
	}
	err := m.CreatePlay(ctx, dup)
	if !errors.Is(err, gameerrors.ErrDuplicateSubmission) {
		t.Fatalf("expected ErrDuplicateSubmission, got %v", err)
	}

	plays, err := m.ListPlays(ctx, session.ID, 1)
	if err != nil {
		t.Fatalf("ListPlays: %v", err)
	}
	if len(plays) != 1 {
		t.Fatalf("expected 1 play, got %d", len(plays))
	}
	if plays[0].ClickedTarget != "ceo-strategy" || !plays[0].IsCorrect {
		t.Error("original play should be untouched by the duplicate")
	}

	// Same participant, different round is a new play, not a duplicate.
	next := &models.RoundPlay{
		ID:            uuid.New(),
		GameSessionID: session.ID,
		RoundNumber:   2,
		ParticipantID: participantID,
		ClickedTarget: "cfo-budget",
		IsCorrect:     true,
		SubmittedAt:   time.Now(),
	}
	if err := m.CreatePlay(ctx, next); err != nil {
		t.Fatalf("CreatePlay round 2: %v", err)
	}
}

func TestGetOpenSessionForRoom(t *testing.T) {
	m := NewMemoryStore()
	room := newTestRoom(t, m)
	ctx := context.Background()

	if _, err := m.GetOpenSessionForRoom(ctx, room.ID); !errors.Is(err, gameerrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound with no sessions, got %v", err)
	}

	session := newTestSession(t, m, room.ID, 3)
	open, err := m.GetOpenSessionForRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("GetOpenSessionForRoom: %v", err)
	}
	if open.ID != session.ID {
		t.Errorf("open session = %s, want %s", open.ID, session.ID)
	}

	if _, err := m.ActivateSession(ctx, session.ID, time.Now(), 2, 2, 0); err != nil {
		t.Fatalf("ActivateSession: %v", err)
	}
	for round := 1; round <= 3; round++ {
		if _, err := m.AdvanceRound(ctx, session.ID, round); err != nil {
			t.Fatalf("AdvanceRound %d: %v", round, err)
		}
	}
	won, err := m.CompleteSession(ctx, session.ID, 4, uuid.New(), time.Now())
	if err != nil || !won {
		t.Fatalf("CompleteSession: won=%v err=%v", won, err)
	}

	if _, err := m.GetOpenSessionForRoom(ctx, room.ID); !errors.Is(err, gameerrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after completion, got %v", err)
	}

	got, err := m.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.RoundsCompleted != 3 {
		t.Errorf("rounds completed = %d, want 3", got.RoundsCompleted)
	}
	if got.Status != models.SessionStatusCompleted {
		t.Errorf("status = %s, want COMPLETED", got.Status)
	}
}

func TestCreateParticipantRosterGuard(t *testing.T) {
	const maxPlayers = 4
	m := NewMemoryStore()
	room := newTestRoom(t, m)
	session := newTestSession(t, m, room.ID, 3)
	ctx := context.Background()

	const joiners = 10
	var wg sync.WaitGroup
	results := make(chan error, joiners)
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := &models.SessionParticipant{
				ID:              uuid.New(),
				GameSessionID:   session.ID,
				ParticipantType: models.ParticipantTypeHuman,
				DisplayName:     "Player",
				IsActive:        true,
			}
			results <- m.CreateParticipant(ctx, p, maxPlayers)
		}()
	}
	wg.Wait()
	close(results)

	admitted, rejected := 0, 0
	for err := range results {
		switch {
		case err == nil:
			admitted++
		case errors.Is(err, gameerrors.ErrStateConflict):
			rejected++
		default:
			t.Errorf("CreateParticipant: %v", err)
		}
	}
	if admitted != maxPlayers {
		t.Fatalf("admitted = %d, want %d", admitted, maxPlayers)
	}
	if rejected != joiners-maxPlayers {
		t.Fatalf("rejected = %d, want %d", rejected, joiners-maxPlayers)
	}

	participants, err := m.ListParticipants(ctx, session.ID)
	if err != nil {
		t.Fatalf("ListParticipants: %v", err)
	}
	if len(participants) != maxPlayers {
		t.Errorf("roster size = %d, want %d", len(participants), maxPlayers)
	}

	// A zero cap means no limit.
	extra := &models.SessionParticipant{
		ID:            uuid.New(),
		GameSessionID: session.ID,
		DisplayName:   "Overflow",
	}
	if err := m.CreateParticipant(ctx, extra, 0); err != nil {
		t.Fatalf("CreateParticipant without cap: %v", err)
	}
}

func TestSpectatorCountSingleAdjustment(t *testing.T) {
	m := NewMemoryStore()
	room := newTestRoom(t, m)
	other := newTestRoom(t, m)
	ctx := context.Background()

	spectator := &models.Spectator{
		ID:              uuid.New(),
		PerpetualRoomID: room.ID,
		DisplayName:     "Viewer",
		JoinedAt:        time.Now(),
	}
	if err := m.AddSpectator(ctx, spectator); err != nil {
		t.Fatalf("AddSpectator: %v", err)
	}

	got, err := m.GetRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("GetRoom: %v", err)
	}
	if got.SpectatorCount != 1 {
		t.Fatalf("spectator count after join = %d, want 1", got.SpectatorCount)
	}

	// Removal through the wrong room changes nothing.
	if err := m.RemoveSpectator(ctx, other.ID, spectator.ID); !errors.Is(err, gameerrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for mismatched room, got %v", err)
	}
	got, _ = m.GetRoom(ctx, room.ID)
	if got.SpectatorCount != 1 {
		t.Errorf("spectator count after bad removal = %d, want 1", got.SpectatorCount)
	}

	if err := m.RemoveSpectator(ctx, room.ID, spectator.ID); err != nil {
		t.Fatalf("RemoveSpectator: %v", err)
	}
	got, _ = m.GetRoom(ctx, room.ID)
	if got.SpectatorCount != 0 {
		t.Errorf("spectator count after leave = %d, want 0", got.SpectatorCount)
	}
}

func TestChangeFeedEmitsOnMutation(t *testing.T) {
	m := NewMemoryStore()
	feed := NewMemoryChangeFeed()
	m.AttachFeed(feed)

	room := newTestRoom(t, m)

	select {
	case ev := <-feed.Events():
		if ev.Entity != ChangeEntityRoom {
			t.Errorf("entity = %s, want room", ev.Entity)
		}
		if ev.RoomID != room.ID {
			t.Errorf("room id = %s, want %s", ev.RoomID, room.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("no change event emitted for room creation")
	}
}
