package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/discoveredlive/gamecore/internal/gameerrors"
	"github.com/discoveredlive/gamecore/internal/models"
	"github.com/discoveredlive/gamecore/internal/realtime"
	"github.com/discoveredlive/gamecore/internal/room"
	"github.com/discoveredlive/gamecore/internal/session"
	"github.com/discoveredlive/gamecore/internal/store"
)

// API is the HTTP surface: room listing, session status, submissions, and
// the WebSocket attach point.
type API struct {
	status *StatusService
	rooms  *room.LifecycleManager
	engine *session.Engine
	store  store.Store
	ws     *realtime.ConnectionManager
	sync   *realtime.Synchronizer
}

// NewAPI creates the HTTP API.
func NewAPI(status *StatusService, rooms *room.LifecycleManager, engine *session.Engine, st store.Store, ws *realtime.ConnectionManager, sync *realtime.Synchronizer) *API {
	return &API{status: status, rooms: rooms, engine: engine, store: st, ws: ws, sync: sync}
}

// RegisterRoutes registers all API routes.
func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", a.handleHealth)

	mux.HandleFunc("GET /v1/rooms", a.handleListRooms)
	mux.HandleFunc("POST /v1/rooms", a.handleCreateRoom)
	mux.HandleFunc("GET /v1/rooms/{id}", a.handleGetRoom)
	mux.HandleFunc("POST /v1/rooms/{id}/spectators", a.handleJoinSpectator)
	mux.HandleFunc("DELETE /v1/rooms/{id}/spectators/{spectatorID}", a.handleLeaveSpectator)

	mux.HandleFunc("GET /v1/sessions/{id}/status", a.handleSessionStatus)
	mux.HandleFunc("POST /v1/sessions/{id}/participants", a.handleJoinSession)
	mux.HandleFunc("POST /v1/sessions/{id}/plays", a.handleSubmitPlay)
	mux.HandleFunc("POST /v1/sessions/{id}/c-suite", a.handleSelectCSuite)
	mux.HandleFunc("POST /v1/sessions/{id}/leave", a.handleLeaveSession)

	mux.HandleFunc("GET /ws/room", a.handleRoomSocket)
	mux.HandleFunc("GET /ws/stats", a.handleSocketStats)
}

// Handler wraps the mux with CORS and h2c.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	a.RegisterRoutes(mux)

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowOriginFunc: func(origin string) bool {
			return true
		},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"*"},
	})
	return h2c.NewHandler(c.Handler(mux), &http2.Server{})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := a.status.ListRooms(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

type createRoomRequest struct {
	RoomCode string              `json:"room_code"`
	Settings models.RoomSettings `json:"settings"`
}

func (a *API) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	created, err := a.rooms.CreateRoom(r.Context(), req.RoomCode, req.Settings)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	roomID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	rm, err := a.store.GetRoom(r.Context(), roomID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rm)
}

type joinSpectatorRequest struct {
	DisplayName string `json:"display_name"`
}

func (a *API) handleJoinSpectator(w http.ResponseWriter, r *http.Request) {
	roomID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req joinSpectatorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.DisplayName == "" {
		writeError(w, gameerrors.Validation("display name is required"))
		return
	}
	if _, err := a.store.GetRoom(r.Context(), roomID); err != nil {
		writeError(w, err)
		return
	}

	spectator := &models.Spectator{
		ID:              uuid.New(),
		PerpetualRoomID: roomID,
		DisplayName:     req.DisplayName,
		JoinedAt:        time.Now(),
	}
	if err := a.store.AddSpectator(r.Context(), spectator); err != nil {
		writeError(w, err)
		return
	}
	a.sync.TrackPresence(r.Context(), roomID, realtime.PresenceEntry{
		ParticipantID: spectator.ID,
		DisplayName:   spectator.DisplayName,
		Spectator:     true,
	})
	writeJSON(w, http.StatusCreated, spectator)
}

func (a *API) handleLeaveSpectator(w http.ResponseWriter, r *http.Request) {
	roomID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	spectatorID, err := pathUUID(r, "spectatorID")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := a.store.RemoveSpectator(r.Context(), roomID, spectatorID); err != nil {
		writeError(w, err)
		return
	}
	a.sync.UntrackPresence(r.Context(), roomID, spectatorID)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	sessionID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	status, err := a.status.SessionStatus(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

type joinSessionRequest struct {
	DisplayName string `json:"display_name"`
}

func (a *API) handleJoinSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req joinSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	p, err := a.engine.JoinSession(r.Context(), sessionID, req.DisplayName, models.ParticipantTypeHuman)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

type submitPlayRequest struct {
	ParticipantID string `json:"participant_id"`
	TargetID      string `json:"target_id"`
}

func (a *API) handleSubmitPlay(w http.ResponseWriter, r *http.Request) {
	sessionID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req submitPlayRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	participantID, err := uuid.Parse(req.ParticipantID)
	if err != nil {
		writeError(w, gameerrors.Validation("invalid participant_id %q", req.ParticipantID))
		return
	}
	play, err := a.engine.SubmitPlay(r.Context(), sessionID, participantID, req.TargetID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, play)
}

type selectCSuiteRequest struct {
	ParticipantID string `json:"participant_id"`
	Choice        string `json:"choice"`
}

func (a *API) handleSelectCSuite(w http.ResponseWriter, r *http.Request) {
	sessionID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req selectCSuiteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	participantID, err := uuid.Parse(req.ParticipantID)
	if err != nil {
		writeError(w, gameerrors.Validation("invalid participant_id %q", req.ParticipantID))
		return
	}
	if err := a.engine.SelectCSuite(r.Context(), sessionID, participantID, models.CSuiteChoice(req.Choice)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type leaveSessionRequest struct {
	ParticipantID string `json:"participant_id"`
}

func (a *API) handleLeaveSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req leaveSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	participantID, err := uuid.Parse(req.ParticipantID)
	if err != nil {
		writeError(w, gameerrors.Validation("invalid participant_id %q", req.ParticipantID))
		return
	}
	if err := a.engine.LeaveSession(r.Context(), sessionID, participantID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleRoomSocket(w http.ResponseWriter, r *http.Request) {
	roomIDStr := r.URL.Query().Get("room_id")
	if roomIDStr == "" {
		http.Error(w, "room_id is required", http.StatusBadRequest)
		return
	}
	roomID, err := uuid.Parse(roomIDStr)
	if err != nil {
		http.Error(w, "invalid room_id format", http.StatusBadRequest)
		return
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = "anonymous"
	}
	if _, err := a.store.GetRoom(r.Context(), roomID); err != nil {
		writeError(w, err)
		return
	}
	if err := a.ws.UpgradeConnection(w, r, userID, roomID); err != nil {
		log.Error().
			Err(err).
			Str("room_id", roomID.String()).
			Str("user_id", userID).
			Msg("failed to upgrade WebSocket connection")
		http.Error(w, "failed to upgrade connection", http.StatusInternalServerError)
	}
}

func (a *API) handleSocketStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.ws.GetStats())
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := r.PathValue(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, gameerrors.Validation("invalid %s %q", name, raw)
	}
	return id, nil
}

func decodeJSON(r *http.Request, out any) error {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return gameerrors.Validation("invalid request body: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// writeError maps the error taxonomy onto HTTP statuses. Conflicts and
// duplicates both land on 409: the request was well-formed but the game
// state disagrees.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, gameerrors.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, gameerrors.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, gameerrors.ErrStateConflict),
		errors.Is(err, gameerrors.ErrDuplicateSubmission):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("internal error")
	}
	writeJSON(w, status, map[string]string{"error": fmt.Sprintf("%v", err)})
}
