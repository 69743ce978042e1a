package reconcile

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/artistsort/internal/domain/remote"
	"github.com/osa030/artistsort/internal/domain/track"
)

// Move sets the whole order with a single set-order call.
// Duplicate media IDs are passed through as-is, one per occurrence.
type Move struct {
	setter   remote.OrderSetter
	fallback Reconciler
}

// NewMove creates a Move. Playlists that contain tracks without a media ID,
// which a set-order call would drop, are handed to fallback. Without a
// fallback such playlists are refused.
func NewMove(setter remote.OrderSetter, fallback Reconciler) *Move {
	return &Move{
		setter:   setter,
		fallback: fallback,
	}
}

// Strategy returns StrategyMove.
func (m *Move) Strategy() Strategy {
	return StrategyMove
}

// Reconcile sets the playlist order to desired.
func (m *Move) Reconcile(ctx context.Context, playlistID string, current, desired []track.Track) (*Result, error) {
	res := &Result{Strategy: StrategyMove}

	mediaIDs := make([]string, 0, len(desired))
	for _, t := range desired {
		if t.MediaID == "" {
			if m.fallback != nil {
				zlog.Warn().Msgf("playlist has tracks without media ID, falling back to %s: title=%s", m.fallback.Strategy(), t.DisplayTitle())
				return m.fallback.Reconcile(ctx, playlistID, current, desired)
			}
			zlog.Error().Msgf("refusing set-order, track has no media ID: title=%s", t.DisplayTitle())
			return res, errors.Newf("cannot set order: track %q has no media ID", t.DisplayTitle())
		}
		mediaIDs = append(mediaIDs, t.MediaID)
	}

	if err := m.setter.SetOrder(ctx, playlistID, mediaIDs); err != nil {
		return res, errors.Wrap(err, "failed to set playlist order")
	}
	res.Moved = len(mediaIDs)

	return res, nil
}
