// Package reconcile applies a computed track order to a remote playlist.
package reconcile

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/artistsort/internal/domain/remote"
	"github.com/osa030/artistsort/internal/domain/track"
)

// Strategy identifies how a playlist was rewritten.
type Strategy string

const (
	StrategyRebuild Strategy = "rebuild" // Remove every item, then re-add in order
	StrategyMove    Strategy = "move"    // Set the order in one call
)

// Mode selects the strategy.
type Mode string

const (
	ModeAuto    Mode = "auto"    // Move when the backend supports it, otherwise rebuild
	ModeRebuild Mode = "rebuild" // Always rebuild
	ModeMove    Mode = "move"    // Move; warn and rebuild when the backend cannot
)

// Result summarizes one reconciliation.
type Result struct {
	Strategy Strategy
	Removed  int // Items removed (rebuild)
	Added    int // Items re-added (rebuild)
	Moved    int // Items placed by a set-order call (move)
	Skipped  int // Items skipped for missing identifiers
	Failed   int // Items whose write failed without aborting the run
}

// Partial reports whether some items were not written.
func (r *Result) Partial() bool {
	return r.Skipped > 0 || r.Failed > 0
}

// Reconciler rewrites a remote playlist so it matches desired.
// current is the playlist as fetched; desired is a permutation of it.
type Reconciler interface {
	Reconcile(ctx context.Context, playlistID string, current, desired []track.Track) (*Result, error)
	Strategy() Strategy
}

// Select returns the reconciler for mode. writeDelay paces rebuild writes.
// Every Move falls back to rebuild for playlists with tracks lacking a media ID.
func Select(client remote.Client, mode Mode, writeDelay time.Duration) Reconciler {
	rebuild := NewRebuild(client, writeDelay)
	setter, canMove := client.(remote.OrderSetter)

	switch mode {
	case ModeRebuild:
		return rebuild
	case ModeMove:
		if !canMove {
			zlog.Warn().Msgf("backend does not support set-order, using rebuild: backend=%s", client.Name())
			return rebuild
		}
		return NewMove(setter, rebuild)
	default:
		if canMove {
			return NewMove(setter, rebuild)
		}
		return rebuild
	}
}

// ParseMode validates a mode string. Empty means ModeAuto.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeRebuild, ModeMove:
		return Mode(s), nil
	default:
		return "", errors.Newf("unknown reconcile strategy: %q (want auto, rebuild or move)", s)
	}
}
