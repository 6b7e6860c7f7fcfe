package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Handler consumes one envelope. Handlers must be safe to invoke more than
// once with the same payload: the fabric is at-least-once and the change
// feed may replay changes that were already pushed.
type Handler func(env Envelope)

type roomChannel struct {
	typed     map[EventType]map[int]Handler
	wildcards map[int]Handler
	unsub     func()
}

// Synchronizer keeps every connected client's view of a room converging to
// the store's state. Broadcast applies an event to in-process listeners
// first and only then attempts fabric delivery, so same-process consumers
// never depend on the transport succeeding; out-of-process clients that
// miss a publish recover through the query surface.
type Synchronizer struct {
	fabric     Fabric
	instanceID string

	mu     sync.Mutex
	rooms  map[uuid.UUID]*roomChannel
	nextID int

	presence *presenceTracker
}

// NewSynchronizer creates a synchronizer on the given fabric.
func NewSynchronizer(fabric Fabric) *Synchronizer {
	return &Synchronizer{
		fabric:     fabric,
		instanceID: uuid.New().String()[:8],
		rooms:      make(map[uuid.UUID]*roomChannel),
		presence:   newPresenceTracker(),
	}
}

func (s *Synchronizer) channel(roomID uuid.UUID) *roomChannel {
	ch, ok := s.rooms[roomID]
	if !ok {
		ch = &roomChannel{
			typed:     make(map[EventType]map[int]Handler),
			wildcards: make(map[int]Handler),
		}
		s.rooms[roomID] = ch

		// First subscriber for a room opens the fabric side of the channel.
		unsub, err := s.fabric.Subscribe(roomID, func(data []byte) {
			s.handleFabricMessage(roomID, data)
		})
		if err != nil {
			log.Error().Err(err).Str("room_id", roomID.String()).Msg("fabric subscribe failed; relying on local dispatch and polling")
		} else {
			ch.unsub = unsub
		}
	}
	return ch
}

// Subscribe registers a handler for one event type on a room channel and
// returns an unsubscribe function.
func (s *Synchronizer) Subscribe(roomID uuid.UUID, eventType EventType, h Handler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := s.channel(roomID)
	if ch.typed[eventType] == nil {
		ch.typed[eventType] = make(map[int]Handler)
	}
	id := s.nextID
	s.nextID++
	ch.typed[eventType][id] = h
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.rooms[roomID]; ok {
			delete(c.typed[eventType], id)
		}
	}
}

// SubscribeAll registers a wildcard handler receiving every event on a room
// channel.
func (s *Synchronizer) SubscribeAll(roomID uuid.UUID, h Handler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := s.channel(roomID)
	id := s.nextID
	s.nextID++
	ch.wildcards[id] = h
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.rooms[roomID]; ok {
			delete(c.wildcards, id)
		}
	}
}

// Broadcast applies the envelope locally first, then publishes it over the
// fabric as a best-effort secondary path. A failed publish is logged and
// swallowed: local state already advanced and out-of-process clients can
// recover by polling.
func (s *Synchronizer) Broadcast(ctx context.Context, env Envelope) {
	env.OriginID = s.instanceID
	s.dispatchLocal(env)

	data, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("type", string(env.Type)).Msg("failed to marshal envelope for fabric")
		return
	}
	if err := s.fabric.Publish(ctx, env.RoomID, data); err != nil {
		log.Warn().
			Err(err).
			Str("type", string(env.Type)).
			Str("room_id", env.RoomID.String()).
			Msg("fabric publish failed; local state already applied, clients recover via query surface")
	}
}

// BroadcastPayload marshals payload into an envelope and broadcasts it.
func (s *Synchronizer) BroadcastPayload(ctx context.Context, eventType EventType, roomID uuid.UUID, payload any) {
	env, err := NewEnvelope(eventType, roomID, payload)
	if err != nil {
		log.Error().Err(err).Str("type", string(eventType)).Msg("failed to build envelope")
		return
	}
	s.Broadcast(ctx, env)
}

func (s *Synchronizer) handleFabricMessage(roomID uuid.UUID, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("room_id", roomID.String()).Msg("invalid envelope on fabric")
		return
	}
	// Events this process published were already applied locally.
	if env.OriginID == s.instanceID {
		return
	}
	s.dispatchLocal(env)
}

func (s *Synchronizer) dispatchLocal(env Envelope) {
	s.mu.Lock()
	ch, ok := s.rooms[env.RoomID]
	if !ok {
		s.mu.Unlock()
		return
	}
	handlers := make([]Handler, 0, len(ch.typed[env.Type])+len(ch.wildcards))
	for _, h := range ch.typed[env.Type] {
		handlers = append(handlers, h)
	}
	for _, h := range ch.wildcards {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	for _, h := range handlers {
		h(env)
	}
}

// CloseRoom drops all handlers for a room and closes its fabric side.
func (s *Synchronizer) CloseRoom(roomID uuid.UUID) {
	s.mu.Lock()
	ch, ok := s.rooms[roomID]
	if ok {
		delete(s.rooms, roomID)
	}
	s.mu.Unlock()
	if ok && ch.unsub != nil {
		ch.unsub()
	}
}
