package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/discoveredlive/gamecore/internal/models"
	"github.com/discoveredlive/gamecore/internal/store"
)

type envelopeRecorder struct {
	mu   sync.Mutex
	envs []Envelope
}

func (r *envelopeRecorder) handler() Handler {
	return func(env Envelope) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.envs = append(r.envs, env)
	}
}

func (r *envelopeRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.envs)
}

func (r *envelopeRecorder) last() (Envelope, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.envs) == 0 {
		return Envelope{}, false
	}
	return r.envs[len(r.envs)-1], true
}

func TestBroadcastReachesLocalSubscribers(t *testing.T) {
	fabric := NewMemoryFabric()
	sync := NewSynchronizer(fabric)
	roomID := uuid.New()

	rec := &envelopeRecorder{}
	unsub := sync.Subscribe(roomID, EventTypeGameStarted, rec.handler())
	defer unsub()

	sync.BroadcastPayload(context.Background(), EventTypeGameStarted, roomID, GameStartedPayload{
		SessionID:  uuid.New().String(),
		GameNumber: 1,
	})

	if rec.count() != 1 {
		t.Fatalf("expected 1 delivery, got %d", rec.count())
	}
	env, _ := rec.last()
	if env.Type != EventTypeGameStarted {
		t.Errorf("type = %s, want game_started", env.Type)
	}
}

func TestBroadcastSurvivesFabricFailure(t *testing.T) {
	fabric := NewMemoryFabric()
	fabric.FailPublishes(errors.New("fabric down"))
	sync := NewSynchronizer(fabric)
	roomID := uuid.New()

	rec := &envelopeRecorder{}
	unsub := sync.Subscribe(roomID, EventTypeRoundScored, rec.handler())
	defer unsub()

	sync.BroadcastPayload(context.Background(), EventTypeRoundScored, roomID, RoundScoredPayload{
		SessionID:   uuid.New().String(),
		RoundNumber: 1,
	})

	// Local application happens before the publish attempt, so the failed
	// fabric changes nothing for in-process subscribers.
	if rec.count() != 1 {
		t.Fatalf("expected 1 local delivery despite fabric failure, got %d", rec.count())
	}
}

func TestFabricSelfEchoSuppressed(t *testing.T) {
	fabric := NewMemoryFabric()
	syncA := NewSynchronizer(fabric)
	syncB := NewSynchronizer(fabric)
	roomID := uuid.New()

	recA := &envelopeRecorder{}
	recB := &envelopeRecorder{}
	unsubA := syncA.SubscribeAll(roomID, recA.handler())
	defer unsubA()
	unsubB := syncB.SubscribeAll(roomID, recB.handler())
	defer unsubB()

	syncA.BroadcastPayload(context.Background(), EventTypePlaySubmitted, roomID, PlaySubmittedPayload{
		SessionID:   uuid.New().String(),
		RoundNumber: 2,
	})

	// A applied locally once; the copy that came back over the fabric was
	// recognized by origin and dropped. B got the fabric copy only.
	if recA.count() != 1 {
		t.Errorf("origin process deliveries = %d, want 1", recA.count())
	}
	if recB.count() != 1 {
		t.Errorf("peer process deliveries = %d, want 1", recB.count())
	}
	envB, _ := recB.last()
	if envB.OriginID == "" {
		t.Error("fabric envelope should carry the origin instance")
	}
}

func TestSubscribeUnsubscribeStopsDelivery(t *testing.T) {
	sync := NewSynchronizer(NewMemoryFabric())
	roomID := uuid.New()

	rec := &envelopeRecorder{}
	unsub := sync.Subscribe(roomID, EventTypeGameCompleted, rec.handler())

	sync.BroadcastPayload(context.Background(), EventTypeGameCompleted, roomID, GameCompletedPayload{})
	unsub()
	sync.BroadcastPayload(context.Background(), EventTypeGameCompleted, roomID, GameCompletedPayload{})

	if rec.count() != 1 {
		t.Fatalf("expected 1 delivery after unsubscribe, got %d", rec.count())
	}
}

func TestTypedSubscriptionFiltersEvents(t *testing.T) {
	sync := NewSynchronizer(NewMemoryFabric())
	roomID := uuid.New()

	rec := &envelopeRecorder{}
	unsub := sync.Subscribe(roomID, EventTypeRoundStarted, rec.handler())
	defer unsub()

	sync.BroadcastPayload(context.Background(), EventTypeRoundStarted, roomID, RoundStartedPayload{RoundNumber: 1})
	sync.BroadcastPayload(context.Background(), EventTypePlaySubmitted, roomID, PlaySubmittedPayload{RoundNumber: 1})

	if rec.count() != 1 {
		t.Fatalf("typed handler saw %d events, want 1", rec.count())
	}
}

func TestPresenceTracking(t *testing.T) {
	sync := NewSynchronizer(NewMemoryFabric())
	roomID := uuid.New()
	ctx := context.Background()

	rec := &envelopeRecorder{}
	unsub := sync.Subscribe(roomID, EventTypePresence, rec.handler())
	defer unsub()

	player := PresenceEntry{ParticipantID: uuid.New(), DisplayName: "Alice"}
	viewer := PresenceEntry{ParticipantID: uuid.New(), DisplayName: "Bob", Spectator: true}
	sync.TrackPresence(ctx, roomID, player)
	sync.TrackPresence(ctx, roomID, viewer)

	if got := len(sync.Presence(roomID)); got != 2 {
		t.Fatalf("presence entries = %d, want 2", got)
	}
	env, ok := rec.last()
	if !ok {
		t.Fatal("no presence event broadcast")
	}
	var payload PresencePayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.PresentCount != 1 || payload.SpectatorCount != 1 {
		t.Errorf("counts = %d players / %d spectators, want 1/1", payload.PresentCount, payload.SpectatorCount)
	}

	sync.UntrackPresence(ctx, roomID, player.ParticipantID)
	if got := len(sync.Presence(roomID)); got != 1 {
		t.Fatalf("presence entries after leave = %d, want 1", got)
	}
}

func TestReconcilerSurfacesStoreChanges(t *testing.T) {
	memStore := store.NewMemoryStore()
	feed := store.NewMemoryChangeFeed()
	memStore.AttachFeed(feed)

	sync := NewSynchronizer(NewMemoryFabric())
	rec := &envelopeRecorder{}

	roomID := uuid.New()
	unsub := sync.Subscribe(roomID, EventTypeStateChanged, rec.handler())
	defer unsub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reconciler := NewReconciler(feed, sync)
	go reconciler.Run(ctx)

	// A direct store write, with no broadcast issued for it, must still
	// reach subscribers through the feed.
	err := memStore.CreateRoom(ctx, &models.PerpetualRoom{
		ID:       roomID,
		RoomCode: "FEED",
		Status:   models.RoomStatusIntermission,
	})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for rec.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("state_changed event never arrived")
		case <-time.After(10 * time.Millisecond):
		}
	}

	env, _ := rec.last()
	var payload StateChangedPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Entity != "room" {
		t.Errorf("entity = %s, want room", payload.Entity)
	}
}
