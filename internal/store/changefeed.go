package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// ChangeFeedConfig configures the Postgres LISTEN/NOTIFY change feed.
type ChangeFeedConfig struct {
	DatabaseURL   string
	NotifyChannel string
	PingInterval  time.Duration
	MinReconnect  time.Duration
	MaxReconnect  time.Duration
	Buffer        int
}

// DefaultChangeFeedConfig returns the standard feed settings.
func DefaultChangeFeedConfig(databaseURL string) ChangeFeedConfig {
	return ChangeFeedConfig{
		DatabaseURL:   databaseURL,
		NotifyChannel: "gamecore_changes",
		PingInterval:  90 * time.Second,
		MinReconnect:  10 * time.Second,
		MaxReconnect:  time.Minute,
		Buffer:        256,
	}
}

// PostgresChangeFeed streams ChangeEvents emitted by row triggers over
// LISTEN/NOTIFY. Delivery is at-least-once from the consumer's point of
// view: a reconnect may replay nothing, which is why consumers treat the
// feed as a reconciliation signal rather than the primary event path.
type PostgresChangeFeed struct {
	listener *pq.Listener
	cfg      ChangeFeedConfig
	events   chan ChangeEvent
}

// NewPostgresChangeFeed opens a listener on the configured channel.
func NewPostgresChangeFeed(cfg ChangeFeedConfig) (*PostgresChangeFeed, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		cfg.MinReconnect,
		cfg.MaxReconnect,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("change feed listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().Str("channel", cfg.NotifyChannel).Msg("listening for store changes")

	return &PostgresChangeFeed{
		listener: l,
		cfg:      cfg,
		events:   make(chan ChangeEvent, cfg.Buffer),
	}, nil
}

// Start blocks, forwarding notifications to Events, until ctx is cancelled.
func (f *PostgresChangeFeed) Start(ctx context.Context) error {
	pingTicker := time.NewTicker(f.cfg.PingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("change feed shutting down")
			return f.listener.Close()
		case note := <-f.listener.Notify:
			if note == nil {
				// nil notification means the connection was lost; pq reconnects
				continue
			}
			var ev ChangeEvent
			if err := json.Unmarshal([]byte(note.Extra), &ev); err != nil {
				log.Error().Err(err).Str("payload", note.Extra).Msg("invalid change notification payload")
				continue
			}
			select {
			case f.events <- ev:
			default:
				log.Warn().Str("entity", string(ev.Entity)).Msg("change feed buffer full, dropping event")
			}
		case <-pingTicker.C:
			if err := f.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping change feed listener")
			}
		}
	}
}

// Events returns the change event channel.
func (f *PostgresChangeFeed) Events() <-chan ChangeEvent {
	return f.events
}
