package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType discriminates the envelope payload variants.
type EventType string

const (
	EventTypeGameStarted    EventType = "game_started"
	EventTypeRoundStarted   EventType = "round_started"
	EventTypePlaySubmitted  EventType = "play_submitted"
	EventTypeRoundScored    EventType = "round_scored"
	EventTypeGameCompleted  EventType = "game_completed"
	EventTypeCSuiteSelected EventType = "c_suite_selected"
	EventTypePresence       EventType = "presence_changed"
	EventTypeRoomStatus     EventType = "room_status_changed"
	EventTypeStateChanged   EventType = "state_changed"
)

// Envelope is the wire format for every room event. It carries no
// ownership semantics: it is a notification about a state change that has
// already been written to the store.
type Envelope struct {
	Type      EventType       `json:"type"`
	RoomID    uuid.UUID       `json:"room_id"`
	OriginID  string          `json:"origin_id,omitempty"` // publishing process, used to skip fabric self-echo
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// BoardTarget mirrors one clickable card on the round board.
type BoardTarget struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Position int    `json:"position"`
}

// GameStartedPayload announces a session going active.
type GameStartedPayload struct {
	SessionID         string    `json:"session_id"`
	GameNumber        int       `json:"game_number"`
	TotalRounds       int       `json:"total_rounds"`
	TotalParticipants int       `json:"total_participants"`
	StartedAt         time.Time `json:"started_at"`
}

// RoundStartedPayload announces a round opening for submissions.
type RoundStartedPayload struct {
	SessionID    string        `json:"session_id"`
	RoundNumber  int           `json:"round_number"`
	PromptText   string        `json:"prompt_text"`
	Targets      []BoardTarget `json:"targets"`
	StartedAt    time.Time     `json:"started_at"`
	EndsAt       time.Time     `json:"ends_at"`
	TimeLimitSec int           `json:"time_limit_sec"`
}

// PlaySubmittedPayload announces one accepted submission.
type PlaySubmittedPayload struct {
	SessionID         string `json:"session_id"`
	RoundNumber       int    `json:"round_number"`
	ParticipantID     string `json:"participant_id"`
	IsCorrect         bool   `json:"is_correct"`
	PlaysSubmitted    int    `json:"plays_submitted"`
	TotalParticipants int    `json:"total_participants"`
}

// ParticipantRoundResult is one participant's outcome in a scored round.
type ParticipantRoundResult struct {
	ParticipantID string `json:"participant_id"`
	ScoreDelta    int    `json:"score_delta"`
	TotalScore    int    `json:"total_score"`
	Streak        int    `json:"streak"`
	BingoAwarded  bool   `json:"bingo_awarded"`
}

// RoundScoredPayload announces a round's scoring results.
type RoundScoredPayload struct {
	SessionID   string                   `json:"session_id"`
	RoundNumber int                      `json:"round_number"`
	Results     []ParticipantRoundResult `json:"results"`
}

// GameCompletedPayload announces the end of a session.
type GameCompletedPayload struct {
	SessionID           string    `json:"session_id"`
	WinnerParticipantID string    `json:"winner_participant_id"`
	CompletedAt         time.Time `json:"completed_at"`
}

// CSuiteSelectedPayload announces a round-1 role declaration.
type CSuiteSelectedPayload struct {
	SessionID     string `json:"session_id"`
	ParticipantID string `json:"participant_id"`
	Choice        string `json:"choice"`
}

// PresencePayload announces a join or leave in a room.
type PresencePayload struct {
	ParticipantID  string `json:"participant_id"`
	DisplayName    string `json:"display_name"`
	Joined         bool   `json:"joined"`
	PresentCount   int    `json:"present_count"`
	SpectatorCount int    `json:"spectator_count"`
}

// RoomStatusPayload announces a room lifecycle transition.
type RoomStatusPayload struct {
	RoomID           string     `json:"room_id"`
	Status           string     `json:"status"`
	GameNumber       int        `json:"game_number"`
	SessionID        string     `json:"session_id,omitempty"`
	NextGameStartsAt *time.Time `json:"next_game_starts_at,omitempty"`
}

// StateChangedPayload is the reconciliation signal derived from the store
// change feed; clients react by re-pulling from the query surface.
type StateChangedPayload struct {
	Entity   string `json:"entity"`
	EntityID string `json:"entity_id"`
}

// NewEnvelope builds an envelope with a marshalled payload.
func NewEnvelope(eventType EventType, roomID uuid.UUID, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return Envelope{
		Type:      eventType,
		RoomID:    roomID,
		Timestamp: time.Now(),
		Payload:   data,
	}, nil
}

// ParsePayload decodes the envelope's payload into its typed variant.
func ParsePayload(env Envelope) (any, error) {
	switch env.Type {
	case EventTypeGameStarted:
		var p GameStartedPayload
		return decodeTo(env, &p)
	case EventTypeRoundStarted:
		var p RoundStartedPayload
		return decodeTo(env, &p)
	case EventTypePlaySubmitted:
		var p PlaySubmittedPayload
		return decodeTo(env, &p)
	case EventTypeRoundScored:
		var p RoundScoredPayload
		return decodeTo(env, &p)
	case EventTypeGameCompleted:
		var p GameCompletedPayload
		return decodeTo(env, &p)
	case EventTypeCSuiteSelected:
		var p CSuiteSelectedPayload
		return decodeTo(env, &p)
	case EventTypePresence:
		var p PresencePayload
		return decodeTo(env, &p)
	case EventTypeRoomStatus:
		var p RoomStatusPayload
		return decodeTo(env, &p)
	case EventTypeStateChanged:
		var p StateChangedPayload
		return decodeTo(env, &p)
	default:
		return nil, fmt.Errorf("unknown event type: %s", env.Type)
	}
}

func decodeTo[T any](env Envelope, out *T) (any, error) {
	if err := json.Unmarshal(env.Payload, out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s payload: %w", env.Type, err)
	}
	return *out, nil
}
