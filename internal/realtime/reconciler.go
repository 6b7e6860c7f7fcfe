package realtime

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/discoveredlive/gamecore/internal/store"
)

// Reconciler consumes the store's change-notification feed and re-surfaces
// each change as a state_changed event on the affected room's channel. This
// is the authoritative third signal behind broadcasts: a change written
// directly to the store (for example by a retried request) still reaches
// subscribers even though no broadcast was issued for it. Push stays a
// convenience layer over the store, never the other way around.
type Reconciler struct {
	feed store.ChangeFeed
	sync *Synchronizer
}

// NewReconciler pairs a change feed with a synchronizer.
func NewReconciler(feed store.ChangeFeed, sync *Synchronizer) *Reconciler {
	return &Reconciler{feed: feed, sync: sync}
}

// Run consumes the feed until ctx is cancelled. The feed itself must be
// started separately.
func (r *Reconciler) Run(ctx context.Context) {
	log.Info().Msg("change feed reconciler started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("change feed reconciler shutting down")
			return
		case ev := <-r.feed.Events():
			// Dispatch locally only: re-publishing store changes to the
			// fabric would loop them back through every process.
			env, err := NewEnvelope(EventTypeStateChanged, ev.RoomID, StateChangedPayload{
				Entity:   string(ev.Entity),
				EntityID: ev.EntityID.String(),
			})
			if err != nil {
				log.Error().Err(err).Msg("failed to build state_changed envelope")
				continue
			}
			env.OriginID = r.sync.instanceID
			r.sync.dispatchLocal(env)
		}
	}
}
