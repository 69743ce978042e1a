package reconcile

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/osa030/artistsort/internal/domain/remote"
	"github.com/osa030/artistsort/internal/domain/track"
)

// Rebuild removes every item and re-adds the tracks in the desired order,
// one write call per item. Calls are spaced by the configured delay.
//
// The playlist is empty or partial while a rebuild is in progress.
type Rebuild struct {
	client  remote.Client
	limiter *rate.Limiter
}

// NewRebuild creates a Rebuild. A delay of zero or less disables pacing.
func NewRebuild(client remote.Client, delay time.Duration) *Rebuild {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Rebuild{
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Strategy returns StrategyRebuild.
func (r *Rebuild) Strategy() Strategy {
	return StrategyRebuild
}

// Reconcile removes the items of current, then adds desired by media ID.
// Per-item failures are logged and counted; fatal errors abort immediately.
func (r *Rebuild) Reconcile(ctx context.Context, playlistID string, current, desired []track.Track) (*Result, error) {
	res := &Result{Strategy: StrategyRebuild}

	for _, t := range current {
		itemID := t.RemovalID()
		if itemID == "" {
			zlog.Warn().Msgf("skipping removal, no item ID: title=%s", t.DisplayTitle())
			res.Skipped++
			continue
		}

		err := r.write(ctx, func(ctx context.Context) error {
			return r.client.RemoveItems(ctx, playlistID, []string{itemID})
		})
		if err != nil {
			if aborts(ctx, err) {
				return res, errors.Wrapf(err, "failed to remove item %s", itemID)
			}
			zlog.Warn().Err(err).Msgf("failed to remove item, continuing: item_id=%s title=%s", itemID, t.DisplayTitle())
			res.Failed++
			continue
		}
		res.Removed++
	}

	for _, t := range desired {
		if t.MediaID == "" {
			zlog.Warn().Msgf("skipping add, no media ID: title=%s", t.DisplayTitle())
			res.Skipped++
			continue
		}

		err := r.write(ctx, func(ctx context.Context) error {
			return r.client.AddItems(ctx, playlistID, []string{t.MediaID})
		})
		if err != nil {
			if aborts(ctx, err) {
				return res, errors.Wrapf(err, "failed to add media %s", t.MediaID)
			}
			zlog.Warn().Err(err).Msgf("failed to add item, continuing: media_id=%s title=%s", t.MediaID, t.DisplayTitle())
			res.Failed++
			continue
		}
		res.Added++
	}

	return res, nil
}

// errPacing marks a limiter wait that cannot complete before the run deadline.
var errPacing = errors.New("write pacing interrupted")

// write waits for the limiter, then performs fn.
func (r *Rebuild) write(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := r.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return errors.Mark(err, errPacing)
	}
	return fn(ctx)
}

// aborts reports whether a write error ends the write phase.
func aborts(ctx context.Context, err error) bool {
	return remote.IsFatal(ctx, err) || errors.Is(err, errPacing)
}
