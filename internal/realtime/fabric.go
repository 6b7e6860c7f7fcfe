package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Fabric is the best-effort publish/subscribe transport used to notify
// connected clients. Delivery is never guaranteed; correctness must not
// depend on a publish succeeding.
type Fabric interface {
	// Publish sends data on the room's channel.
	Publish(ctx context.Context, roomID uuid.UUID, data []byte) error

	// Subscribe registers handler for the room's channel and returns an
	// unsubscribe function.
	Subscribe(roomID uuid.UUID, handler func(data []byte)) (func(), error)

	// Close releases the transport.
	Close()
}

// NATSFabricConfig configures the NATS-backed fabric.
type NATSFabricConfig struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSFabricConfig returns the standard fabric settings.
func DefaultNATSFabricConfig() NATSFabricConfig {
	return NATSFabricConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "room.events",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// NATSFabric implements Fabric on a core NATS connection, one subject per
// room.
type NATSFabric struct {
	nc  *nats.Conn
	cfg NATSFabricConfig
}

// NewNATSFabric connects to NATS with reconnect handling.
func NewNATSFabric(cfg NATSFabricConfig) (*NATSFabric, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSFabric{nc: nc, cfg: cfg}, nil
}

func (f *NATSFabric) subject(roomID uuid.UUID) string {
	return fmt.Sprintf("%s.%s", f.cfg.SubjectPrefix, roomID)
}

func (f *NATSFabric) Publish(ctx context.Context, roomID uuid.UUID, data []byte) error {
	if err := f.nc.Publish(f.subject(roomID), data); err != nil {
		return fmt.Errorf("publish to %s: %w", f.subject(roomID), err)
	}
	return nil
}

func (f *NATSFabric) Subscribe(roomID uuid.UUID, handler func(data []byte)) (func(), error) {
	sub, err := f.nc.Subscribe(f.subject(roomID), func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", f.subject(roomID), err)
	}
	return func() {
		if err := sub.Unsubscribe(); err != nil {
			log.Error().Err(err).Str("room_id", roomID.String()).Msg("failed to unsubscribe")
		}
	}, nil
}

func (f *NATSFabric) Close() {
	f.nc.Close()
}

// MemoryFabric is an in-process Fabric for tests and single-node mode. A
// publish error can be injected to exercise the best-effort path.
type MemoryFabric struct {
	mu       sync.Mutex
	subs     map[uuid.UUID]map[int]func([]byte)
	nextID   int
	failWith error
}

// NewMemoryFabric creates an empty in-process fabric.
func NewMemoryFabric() *MemoryFabric {
	return &MemoryFabric{subs: make(map[uuid.UUID]map[int]func([]byte))}
}

// FailPublishes makes every subsequent Publish return err (nil restores
// normal delivery).
func (f *MemoryFabric) FailPublishes(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWith = err
}

func (f *MemoryFabric) Publish(ctx context.Context, roomID uuid.UUID, data []byte) error {
	f.mu.Lock()
	if f.failWith != nil {
		err := f.failWith
		f.mu.Unlock()
		return err
	}
	handlers := make([]func([]byte), 0, len(f.subs[roomID]))
	for _, h := range f.subs[roomID] {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h(data)
	}
	return nil
}

func (f *MemoryFabric) Subscribe(roomID uuid.UUID, handler func(data []byte)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs[roomID] == nil {
		f.subs[roomID] = make(map[int]func([]byte))
	}
	id := f.nextID
	f.nextID++
	f.subs[roomID][id] = handler
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs[roomID], id)
	}, nil
}

func (f *MemoryFabric) Close() {}
