package realtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// PresenceEntry is one participant currently present in a room.
type PresenceEntry struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	DisplayName   string    `json:"display_name"`
	Spectator     bool      `json:"spectator"`
}

type presenceTracker struct {
	mu    sync.Mutex
	rooms map[uuid.UUID]map[uuid.UUID]PresenceEntry
}

func newPresenceTracker() *presenceTracker {
	return &presenceTracker{rooms: make(map[uuid.UUID]map[uuid.UUID]PresenceEntry)}
}

func (t *presenceTracker) track(roomID uuid.UUID, entry PresenceEntry) (players, spectators int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rooms[roomID] == nil {
		t.rooms[roomID] = make(map[uuid.UUID]PresenceEntry)
	}
	t.rooms[roomID][entry.ParticipantID] = entry
	return t.countsLocked(roomID)
}

func (t *presenceTracker) untrack(roomID, participantID uuid.UUID) (players, spectators int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.rooms[roomID], participantID)
	return t.countsLocked(roomID)
}

func (t *presenceTracker) countsLocked(roomID uuid.UUID) (players, spectators int) {
	for _, e := range t.rooms[roomID] {
		if e.Spectator {
			spectators++
		} else {
			players++
		}
	}
	return players, spectators
}

func (t *presenceTracker) snapshot(roomID uuid.UUID) []PresenceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]PresenceEntry, 0, len(t.rooms[roomID]))
	for _, e := range t.rooms[roomID] {
		out = append(out, e)
	}
	return out
}

// TrackPresence records a participant or spectator joining a room and
// broadcasts the presence change. Join/leave bookkeeping is independent of
// scoring.
func (s *Synchronizer) TrackPresence(ctx context.Context, roomID uuid.UUID, entry PresenceEntry) {
	players, spectators := s.presence.track(roomID, entry)
	s.BroadcastPayload(ctx, EventTypePresence, roomID, PresencePayload{
		ParticipantID:  entry.ParticipantID.String(),
		DisplayName:    entry.DisplayName,
		Joined:         true,
		PresentCount:   players,
		SpectatorCount: spectators,
	})
}

// UntrackPresence records a participant or spectator leaving a room. A
// participant going offline keeps their play history; only future
// submission eligibility changes, and that is the engine's concern.
func (s *Synchronizer) UntrackPresence(ctx context.Context, roomID, participantID uuid.UUID) {
	players, spectators := s.presence.untrack(roomID, participantID)
	s.BroadcastPayload(ctx, EventTypePresence, roomID, PresencePayload{
		ParticipantID:  participantID.String(),
		Joined:         false,
		PresentCount:   players,
		SpectatorCount: spectators,
	})
}

// Presence returns the current presence snapshot for a room.
func (s *Synchronizer) Presence(roomID uuid.UUID) []PresenceEntry {
	return s.presence.snapshot(roomID)
}
