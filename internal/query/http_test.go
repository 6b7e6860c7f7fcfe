package query

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jonboulle/clockwork"

	"github.com/discoveredlive/gamecore/internal/content"
	"github.com/discoveredlive/gamecore/internal/models"
	"github.com/discoveredlive/gamecore/internal/realtime"
	"github.com/discoveredlive/gamecore/internal/room"
	"github.com/discoveredlive/gamecore/internal/session"
	"github.com/discoveredlive/gamecore/internal/store"
)

type apiRig struct {
	api     *API
	store   *store.MemoryStore
	manager *room.LifecycleManager
	engine  *session.Engine
	server  *httptest.Server
}

func newAPIRig(t *testing.T) *apiRig {
	t.Helper()
	memStore := store.NewMemoryStore()
	sync := realtime.NewSynchronizer(realtime.NewMemoryFabric())
	clock := clockwork.NewFakeClock()

	manager := room.NewLifecycleManager(memStore, sync, clock, room.DefaultLifecycleConfig())
	engine := session.NewEngine(memStore, sync, content.NewStaticProvider(), clock, session.StandardPolicy{}, session.Config{})
	engine.SetGameEndHandler(manager)

	status := NewStatusService(memStore, engine, manager)
	ws := realtime.NewConnectionManager(sync, realtime.DefaultConnectionConfig())
	api := NewAPI(status, manager, engine, memStore, ws, sync)

	server := httptest.NewServer(api.Handler())
	t.Cleanup(server.Close)

	return &apiRig{api: api, store: memStore, manager: manager, engine: engine, server: server}
}

func (r *apiRig) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(r.server.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func (r *apiRig) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(r.server.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestCreateAndListRooms(t *testing.T) {
	r := newAPIRig(t)

	resp := r.post(t, "/v1/rooms", createRoomRequest{
		RoomCode: "LOBBY1",
		Settings: models.RoomSettings{TotalRounds: 5},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}
	created := decodeBody[models.PerpetualRoom](t, resp)
	if created.RoomCode != "LOBBY1" {
		t.Errorf("room code = %s, want LOBBY1", created.RoomCode)
	}
	if created.Settings.TotalRounds != 5 {
		t.Errorf("total rounds = %d, want 5", created.Settings.TotalRounds)
	}

	listResp := r.get(t, "/v1/rooms")
	if listResp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d, want 200", listResp.StatusCode)
	}
	listing := decodeBody[struct {
		Rooms []RoomSummary `json:"rooms"`
	}](t, listResp)
	if len(listing.Rooms) != 1 {
		t.Fatalf("rooms = %d, want 1", len(listing.Rooms))
	}
	if listing.Rooms[0].Status != string(models.RoomStatusIntermission) {
		t.Errorf("status = %s, want INTERMISSION", listing.Rooms[0].Status)
	}
	if listing.Rooms[0].EstimatedWaitSec <= 0 {
		t.Errorf("estimated wait = %d, want positive during intermission", listing.Rooms[0].EstimatedWaitSec)
	}
}

func TestCreateRoomValidationMapsTo400(t *testing.T) {
	r := newAPIRig(t)
	resp := r.post(t, "/v1/rooms", createRoomRequest{RoomCode: ""})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSessionStatusProjection(t *testing.T) {
	r := newAPIRig(t)
	ctx := context.Background()

	created, err := r.manager.CreateRoom(ctx, "PROJ", models.RoomSettings{TotalRounds: 3})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	sess, err := r.manager.StartNextGame(ctx, created.ID)
	if err != nil {
		t.Fatalf("StartNextGame: %v", err)
	}

	joinResp := r.post(t, "/v1/sessions/"+sess.ID.String()+"/participants", joinSessionRequest{DisplayName: "Alice"})
	if joinResp.StatusCode != http.StatusCreated {
		t.Fatalf("join status = %d, want 201", joinResp.StatusCode)
	}
	alice := decodeBody[models.SessionParticipant](t, joinResp)

	joinResp2 := r.post(t, "/v1/sessions/"+sess.ID.String()+"/participants", joinSessionRequest{DisplayName: "Bob"})
	bob := decodeBody[models.SessionParticipant](t, joinResp2)

	rm, err := r.store.GetRoom(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetRoom: %v", err)
	}
	if err := r.engine.LaunchSession(ctx, rm, sess); err != nil {
		t.Fatalf("LaunchSession: %v", err)
	}

	// Alice plays; Bob is still awaited.
	_, prompt, _, _, ok := r.engine.OpenRound(sess.ID)
	if !ok {
		t.Fatal("no open round")
	}
	if _, err := r.engine.SubmitPlay(ctx, sess.ID, alice.ID, prompt.CorrectTarget.ID); err != nil {
		t.Fatalf("SubmitPlay: %v", err)
	}

	statusResp := r.get(t, "/v1/sessions/"+sess.ID.String()+"/status")
	if statusResp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d, want 200", statusResp.StatusCode)
	}
	projection := decodeBody[SessionStatus](t, statusResp)

	if projection.Status != string(models.SessionStatusActive) {
		t.Errorf("session status = %s, want ACTIVE", projection.Status)
	}
	if projection.CurrentRound != 1 {
		t.Errorf("current round = %d, want 1", projection.CurrentRound)
	}
	if len(projection.Leaderboard) != 2 {
		t.Fatalf("leaderboard entries = %d, want 2", len(projection.Leaderboard))
	}
	if projection.Leaderboard[0].Rank != 1 || projection.Leaderboard[1].Rank != 2 {
		t.Error("leaderboard ranks should be 1 and 2")
	}
	if projection.Round == nil {
		t.Fatal("active session should carry round status")
	}
	if projection.Round.PlaysSubmitted != 1 {
		t.Errorf("plays submitted = %d, want 1", projection.Round.PlaysSubmitted)
	}
	if len(projection.Round.Awaiting) != 1 || projection.Round.Awaiting[0] != bob.ID.String() {
		t.Errorf("awaiting = %v, want [%s]", projection.Round.Awaiting, bob.ID)
	}
	if len(projection.Round.Board) == 0 {
		t.Error("round board should be exposed on the serving node")
	}
	if projection.Round.PromptText == "" {
		t.Error("round prompt text should be exposed")
	}
}

func TestSessionStatusNotFound(t *testing.T) {
	r := newAPIRig(t)
	resp := r.get(t, "/v1/sessions/00000000-0000-0000-0000-000000000001/status")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestSessionStatusBadUUID(t *testing.T) {
	r := newAPIRig(t)
	resp := r.get(t, "/v1/sessions/not-a-uuid/status")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestDuplicatePlayMapsTo409(t *testing.T) {
	r := newAPIRig(t)
	ctx := context.Background()

	created, err := r.manager.CreateRoom(ctx, "DUP", models.RoomSettings{TotalRounds: 3})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	sess, err := r.manager.StartNextGame(ctx, created.ID)
	if err != nil {
		t.Fatalf("StartNextGame: %v", err)
	}
	alice, err := r.engine.JoinSession(ctx, sess.ID, "Alice", models.ParticipantTypeHuman)
	if err != nil {
		t.Fatalf("JoinSession: %v", err)
	}
	if _, err := r.engine.JoinSession(ctx, sess.ID, "Bob", models.ParticipantTypeHuman); err != nil {
		t.Fatalf("JoinSession: %v", err)
	}
	rm, _ := r.store.GetRoom(ctx, created.ID)
	if err := r.engine.LaunchSession(ctx, rm, sess); err != nil {
		t.Fatalf("LaunchSession: %v", err)
	}
	_, prompt, _, _, ok := r.engine.OpenRound(sess.ID)
	if !ok {
		t.Fatal("no open round")
	}

	first := r.post(t, "/v1/sessions/"+sess.ID.String()+"/plays", submitPlayRequest{
		ParticipantID: alice.ID.String(),
		TargetID:      prompt.CorrectTarget.ID,
	})
	first.Body.Close()
	if first.StatusCode != http.StatusCreated {
		t.Fatalf("first play status = %d, want 201", first.StatusCode)
	}

	second := r.post(t, "/v1/sessions/"+sess.ID.String()+"/plays", submitPlayRequest{
		ParticipantID: alice.ID.String(),
		TargetID:      prompt.CorrectTarget.ID,
	})
	second.Body.Close()
	if second.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate play status = %d, want 409", second.StatusCode)
	}
}

func TestSpectatorJoinLeave(t *testing.T) {
	r := newAPIRig(t)
	ctx := context.Background()

	created, err := r.manager.CreateRoom(ctx, "SPEC", models.RoomSettings{})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	joinResp := r.post(t, "/v1/rooms/"+created.ID.String()+"/spectators", joinSpectatorRequest{DisplayName: "Viewer"})
	if joinResp.StatusCode != http.StatusCreated {
		t.Fatalf("spectator join status = %d, want 201", joinResp.StatusCode)
	}
	spectator := decodeBody[models.Spectator](t, joinResp)

	rm, err := r.store.GetRoom(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetRoom: %v", err)
	}
	if rm.SpectatorCount != 1 {
		t.Errorf("spectator count = %d, want 1", rm.SpectatorCount)
	}

	// Leaving through a different room's path must not touch this room.
	otherRoom, err := r.manager.CreateRoom(ctx, "SPEC2", models.RoomSettings{})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	badReq, err := http.NewRequest(http.MethodDelete, r.server.URL+"/v1/rooms/"+otherRoom.ID.String()+"/spectators/"+spectator.ID.String(), nil)
	if err != nil {
		t.Fatalf("build delete request: %v", err)
	}
	badResp, err := http.DefaultClient.Do(badReq)
	if err != nil {
		t.Fatalf("DELETE spectator via wrong room: %v", err)
	}
	badResp.Body.Close()
	if badResp.StatusCode != http.StatusNotFound {
		t.Fatalf("wrong-room leave status = %d, want 404", badResp.StatusCode)
	}
	rm, _ = r.store.GetRoom(ctx, created.ID)
	if rm.SpectatorCount != 1 {
		t.Errorf("spectator count after wrong-room leave = %d, want 1", rm.SpectatorCount)
	}

	req, err := http.NewRequest(http.MethodDelete, r.server.URL+"/v1/rooms/"+created.ID.String()+"/spectators/"+spectator.ID.String(), nil)
	if err != nil {
		t.Fatalf("build delete request: %v", err)
	}
	leaveResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE spectator: %v", err)
	}
	leaveResp.Body.Close()
	if leaveResp.StatusCode != http.StatusNoContent {
		t.Fatalf("spectator leave status = %d, want 204", leaveResp.StatusCode)
	}

	rm, _ = r.store.GetRoom(ctx, created.ID)
	if rm.SpectatorCount != 0 {
		t.Errorf("spectator count after leave = %d, want 0", rm.SpectatorCount)
	}
}

func TestSocketStatsEndpoint(t *testing.T) {
	r := newAPIRig(t)
	resp := r.get(t, "/ws/stats")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats status = %d, want 200", resp.StatusCode)
	}
	stats := decodeBody[realtime.Stats](t, resp)
	if stats.TotalConnections != 0 || stats.ActiveRooms != 0 {
		t.Errorf("fresh manager stats = %+v, want all zero", stats)
	}
}

func TestHealthEndpoint(t *testing.T) {
	r := newAPIRig(t)
	resp := r.get(t, "/health")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d, want 200", resp.StatusCode)
	}
}
