package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/discoveredlive/gamecore/internal/gameerrors"
	"github.com/discoveredlive/gamecore/internal/models"
)

type playKey struct {
	sessionID     uuid.UUID
	roundNumber   int
	participantID uuid.UUID
}

// MemoryStore is an in-process Store used by tests and single-node
// deployments. All conditional-write semantics match the Postgres
// implementation; a mutex stands in for row-level atomicity.
type MemoryStore struct {
	mu           sync.Mutex
	rooms        map[uuid.UUID]*models.PerpetualRoom
	sessions     map[uuid.UUID]*models.GameSession
	participants map[uuid.UUID]*models.SessionParticipant
	plays        map[playKey]*models.RoundPlay
	spectators   map[uuid.UUID]*models.Spectator

	feed *MemoryChangeFeed
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:        make(map[uuid.UUID]*models.PerpetualRoom),
		sessions:     make(map[uuid.UUID]*models.GameSession),
		participants: make(map[uuid.UUID]*models.SessionParticipant),
		plays:        make(map[playKey]*models.RoundPlay),
		spectators:   make(map[uuid.UUID]*models.Spectator),
	}
}

// AttachFeed wires a change feed that receives an event for every mutation.
func (m *MemoryStore) AttachFeed(feed *MemoryChangeFeed) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feed = feed
}

func (m *MemoryStore) notify(entity ChangeEntity, entityID, roomID uuid.UUID) {
	if m.feed == nil {
		return
	}
	m.feed.emit(ChangeEvent{Entity: entity, EntityID: entityID, RoomID: roomID, At: time.Now()})
}

func (m *MemoryStore) roomIDForSession(sessionID uuid.UUID) uuid.UUID {
	if s, ok := m.sessions[sessionID]; ok {
		return s.PerpetualRoomID
	}
	return uuid.Nil
}

func (m *MemoryStore) CreateRoom(ctx context.Context, room *models.PerpetualRoom) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *room
	m.rooms[room.ID] = &cp
	m.notify(ChangeEntityRoom, room.ID, room.ID)
	return nil
}

func (m *MemoryStore) GetRoom(ctx context.Context, id uuid.UUID) (*models.PerpetualRoom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[id]
	if !ok {
		return nil, gameerrors.NotFound("room", id)
	}
	cp := *room
	return &cp, nil
}

func (m *MemoryStore) GetRoomByCode(ctx context.Context, code string) (*models.PerpetualRoom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, room := range m.rooms {
		if room.RoomCode == code {
			cp := *room
			return &cp, nil
		}
	}
	return nil, gameerrors.NotFound("room", code)
}

func (m *MemoryStore) ListRooms(ctx context.Context) ([]models.PerpetualRoom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rooms := make([]models.PerpetualRoom, 0, len(m.rooms))
	for _, room := range m.rooms {
		rooms = append(rooms, *room)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].RoomCode < rooms[j].RoomCode })
	return rooms, nil
}

func (m *MemoryStore) ActivateRoom(ctx context.Context, roomID uuid.UUID, gameNumber int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return false, gameerrors.NotFound("room", roomID)
	}
	if room.Status != models.RoomStatusIntermission {
		return false, nil
	}
	room.Status = models.RoomStatusActive
	room.CurrentGameNumber = gameNumber
	room.NextGameStartsAt = nil
	room.UpdatedAt = time.Now()
	m.notify(ChangeEntityRoom, roomID, roomID)
	return true, nil
}

func (m *MemoryStore) IntermitRoom(ctx context.Context, roomID uuid.UUID, nextGameStartsAt time.Time, avgGameDurationSec float64, totalGamesPlayed int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return false, gameerrors.NotFound("room", roomID)
	}
	if room.Status != models.RoomStatusActive {
		return false, nil
	}
	room.Status = models.RoomStatusIntermission
	next := nextGameStartsAt
	room.NextGameStartsAt = &next
	room.AvgGameDurationSec = avgGameDurationSec
	room.TotalGamesPlayed = totalGamesPlayed
	room.UpdatedAt = time.Now()
	m.notify(ChangeEntityRoom, roomID, roomID)
	return true, nil
}

func (m *MemoryStore) SetRoomPlayerCount(ctx context.Context, roomID uuid.UUID, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return gameerrors.NotFound("room", roomID)
	}
	room.CurrentPlayerCount = count
	room.UpdatedAt = time.Now()
	m.notify(ChangeEntityRoom, roomID, roomID)
	return nil
}

func (m *MemoryStore) AdjustSpectatorCount(ctx context.Context, roomID uuid.UUID, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return gameerrors.NotFound("room", roomID)
	}
	room.SpectatorCount += delta
	if room.SpectatorCount < 0 {
		room.SpectatorCount = 0
	}
	room.UpdatedAt = time.Now()
	m.notify(ChangeEntityRoom, roomID, roomID)
	return nil
}

func (m *MemoryStore) CreateSession(ctx context.Context, session *models.GameSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *session
	m.sessions[session.ID] = &cp
	m.notify(ChangeEntitySession, session.ID, session.PerpetualRoomID)
	return nil
}

func (m *MemoryStore) GetSession(ctx context.Context, id uuid.UUID) (*models.GameSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, gameerrors.NotFound("session", id)
	}
	cp := *session
	return &cp, nil
}

func (m *MemoryStore) GetOpenSessionForRoom(ctx context.Context, roomID uuid.UUID) (*models.GameSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, session := range m.sessions {
		if session.PerpetualRoomID == roomID && session.Status != models.SessionStatusCompleted {
			cp := *session
			return &cp, nil
		}
	}
	return nil, gameerrors.NotFound("open session for room", roomID)
}

func (m *MemoryStore) ActivateSession(ctx context.Context, sessionID uuid.UUID, startedAt time.Time, totalParticipants, humanParticipants, aiParticipants int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return false, gameerrors.NotFound("session", sessionID)
	}
	if session.Status != models.SessionStatusPending {
		return false, nil
	}
	session.Status = models.SessionStatusActive
	t := startedAt
	session.StartedAt = &t
	session.TotalParticipants = totalParticipants
	session.HumanParticipants = humanParticipants
	session.AIParticipants = aiParticipants
	session.UpdatedAt = time.Now()
	m.notify(ChangeEntitySession, sessionID, session.PerpetualRoomID)
	return true, nil
}

func (m *MemoryStore) AdvanceRound(ctx context.Context, sessionID uuid.UUID, fromRound int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return false, gameerrors.NotFound("session", sessionID)
	}
	if session.Status != models.SessionStatusActive || session.CurrentRound != fromRound {
		return false, nil
	}
	session.CurrentRound = fromRound + 1
	session.RoundsCompleted = fromRound
	session.CurrentRoundEndsAt = nil
	session.UpdatedAt = time.Now()
	m.notify(ChangeEntitySession, sessionID, session.PerpetualRoomID)
	return true, nil
}

func (m *MemoryStore) CompleteSession(ctx context.Context, sessionID uuid.UUID, fromRound int, winnerParticipantID uuid.UUID, completedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return false, gameerrors.NotFound("session", sessionID)
	}
	if session.Status != models.SessionStatusActive || session.CurrentRound != fromRound {
		return false, nil
	}
	session.Status = models.SessionStatusCompleted
	session.CurrentRoundEndsAt = nil
	t := completedAt
	session.CompletedAt = &t
	winner := winnerParticipantID
	session.WinnerParticipantID = &winner
	session.UpdatedAt = time.Now()
	m.notify(ChangeEntitySession, sessionID, session.PerpetualRoomID)
	return true, nil
}

func (m *MemoryStore) SetRoundDeadline(ctx context.Context, sessionID uuid.UUID, endsAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return gameerrors.NotFound("session", sessionID)
	}
	if endsAt != nil {
		t := *endsAt
		session.CurrentRoundEndsAt = &t
	} else {
		session.CurrentRoundEndsAt = nil
	}
	session.UpdatedAt = time.Now()
	m.notify(ChangeEntitySession, sessionID, session.PerpetualRoomID)
	return nil
}

func (m *MemoryStore) ClaimBingoSlot(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return false, gameerrors.NotFound("session", sessionID)
	}
	if session.BingoSlotsRemaining <= 0 {
		return false, nil
	}
	session.BingoSlotsRemaining--
	session.UpdatedAt = time.Now()
	m.notify(ChangeEntitySession, sessionID, session.PerpetualRoomID)
	return true, nil
}

func (m *MemoryStore) CreateParticipant(ctx context.Context, p *models.SessionParticipant, maxParticipants int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if maxParticipants > 0 {
		count := 0
		for _, existing := range m.participants {
			if existing.GameSessionID == p.GameSessionID {
				count++
			}
		}
		if count >= maxParticipants {
			return gameerrors.StateConflict("session %s is full (%d players)", p.GameSessionID, maxParticipants)
		}
	}
	cp := *p
	m.participants[p.ID] = &cp
	m.notify(ChangeEntityParticipant, p.ID, m.roomIDForSession(p.GameSessionID))
	return nil
}

func (m *MemoryStore) GetParticipant(ctx context.Context, id uuid.UUID) (*models.SessionParticipant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.participants[id]
	if !ok {
		return nil, gameerrors.NotFound("participant", id)
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) ListParticipants(ctx context.Context, sessionID uuid.UUID) ([]models.SessionParticipant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SessionParticipant
	for _, p := range m.participants {
		if p.GameSessionID == sessionID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (m *MemoryStore) ApplyRoundResult(ctx context.Context, participantID uuid.UUID, scoreDelta, incorrectDelta, newStreak int, correctPositions uint16, goldenCard bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.participants[participantID]
	if !ok {
		return gameerrors.NotFound("participant", participantID)
	}
	p.TotalScore += scoreDelta
	p.IncorrectCount += incorrectDelta
	p.CurrentStreak = newStreak
	p.CorrectPositions = correctPositions
	if goldenCard {
		p.HasGoldenCard = true
	}
	p.UpdatedAt = time.Now()
	m.notify(ChangeEntityParticipant, participantID, m.roomIDForSession(p.GameSessionID))
	return nil
}

func (m *MemoryStore) SetCSuiteChoice(ctx context.Context, participantID uuid.UUID, choice models.CSuiteChoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.participants[participantID]
	if !ok {
		return gameerrors.NotFound("participant", participantID)
	}
	c := choice
	p.CSuiteChoice = &c
	p.UpdatedAt = time.Now()
	m.notify(ChangeEntityParticipant, participantID, m.roomIDForSession(p.GameSessionID))
	return nil
}

func (m *MemoryStore) SetParticipantActive(ctx context.Context, participantID uuid.UUID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.participants[participantID]
	if !ok {
		return gameerrors.NotFound("participant", participantID)
	}
	p.IsActive = active
	p.UpdatedAt = time.Now()
	m.notify(ChangeEntityParticipant, participantID, m.roomIDForSession(p.GameSessionID))
	return nil
}

func (m *MemoryStore) CreatePlay(ctx context.Context, play *models.RoundPlay) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := playKey{play.GameSessionID, play.RoundNumber, play.ParticipantID}
	if _, exists := m.plays[key]; exists {
		return gameerrors.ErrDuplicateSubmission
	}
	cp := *play
	m.plays[key] = &cp
	m.notify(ChangeEntityPlay, play.ID, m.roomIDForSession(play.GameSessionID))
	return nil
}

func (m *MemoryStore) ListPlays(ctx context.Context, sessionID uuid.UUID, roundNumber int) ([]models.RoundPlay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.RoundPlay
	for key, play := range m.plays {
		if key.sessionID == sessionID && key.roundNumber == roundNumber {
			out = append(out, *play)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

func (m *MemoryStore) CountPlays(ctx context.Context, sessionID uuid.UUID, roundNumber int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for key := range m.plays {
		if key.sessionID == sessionID && key.roundNumber == roundNumber {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) ListSessionPlays(ctx context.Context, sessionID uuid.UUID) ([]models.RoundPlay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.RoundPlay
	for key, play := range m.plays {
		if key.sessionID == sessionID {
			out = append(out, *play)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RoundNumber != out[j].RoundNumber {
			return out[i].RoundNumber < out[j].RoundNumber
		}
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out, nil
}

func (m *MemoryStore) AddSpectator(ctx context.Context, s *models.Spectator) error {
	m.mu.Lock()
	cp := *s
	m.spectators[s.ID] = &cp
	roomID := s.PerpetualRoomID
	m.mu.Unlock()
	return m.AdjustSpectatorCount(ctx, roomID, 1)
}

func (m *MemoryStore) RemoveSpectator(ctx context.Context, roomID, id uuid.UUID) error {
	m.mu.Lock()
	s, ok := m.spectators[id]
	if !ok || s.PerpetualRoomID != roomID {
		m.mu.Unlock()
		return gameerrors.NotFound("spectator", id)
	}
	delete(m.spectators, id)
	m.mu.Unlock()
	return m.AdjustSpectatorCount(ctx, roomID, -1)
}

func (m *MemoryStore) CountSpectators(ctx context.Context, roomID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, s := range m.spectators {
		if s.PerpetualRoomID == roomID {
			count++
		}
	}
	return count, nil
}

// MemoryChangeFeed is the in-process change feed paired with MemoryStore.
type MemoryChangeFeed struct {
	ch chan ChangeEvent
}

// NewMemoryChangeFeed creates a buffered feed.
func NewMemoryChangeFeed() *MemoryChangeFeed {
	return &MemoryChangeFeed{ch: make(chan ChangeEvent, 256)}
}

func (f *MemoryChangeFeed) emit(ev ChangeEvent) {
	select {
	case f.ch <- ev:
	default:
		log.Warn().Str("entity", string(ev.Entity)).Msg("change feed buffer full, dropping event")
	}
}

// Start blocks until ctx is cancelled. The memory feed has no connection to
// maintain; consumers read Events directly.
func (f *MemoryChangeFeed) Start(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

// Events returns the change event channel.
func (f *MemoryChangeFeed) Events() <-chan ChangeEvent {
	return f.ch
}
