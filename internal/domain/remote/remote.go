// Package remote defines the capability surface of a remote playlist service
// and the error kinds every backend reports through.
package remote

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"

	"github.com/osa030/artistsort/internal/domain/playlist"
)

// Error kinds. Backends attach them with errors.Mark so callers can test with errors.Is
// while the original cause and its context are preserved.
var (
	ErrAuth      = errors.New("remote authentication failed")
	ErrNotFound  = errors.New("remote resource not found")
	ErrTransient = errors.New("remote service temporarily unavailable")
)

// Client is the read/write surface needed to reorder a playlist.
type Client interface {
	// GetPlaylist fetches the playlist and all of its tracks in order.
	GetPlaylist(ctx context.Context, playlistID string) (*playlist.Playlist, error)

	// RemoveItems removes the given playlist-item occurrences.
	RemoveItems(ctx context.Context, playlistID string, itemIDs []string) error

	// AddItems appends the given media to the end of the playlist.
	AddItems(ctx context.Context, playlistID string, mediaIDs []string) error

	// Name returns the backend name (e.g., "spotify").
	Name() string
}

// OrderSetter is an optional capability: replace the playlist contents with
// the given media in one operation.
type OrderSetter interface {
	SetOrder(ctx context.Context, playlistID string, mediaIDs []string) error
}

// IsFatal reports whether err must abort the write phase of a run rather than
// skip a single item. Only cancellation or expiry of ctx itself is fatal; a
// per-request timeout is not.
func IsFatal(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	return ctx.Err() != nil ||
		errors.Is(err, ErrAuth) ||
		errors.Is(err, ErrNotFound)
}

// MarkStatus attaches the error kind matching an HTTP status code to err.
// Statuses without a kind return err unchanged.
func MarkStatus(err error, status int) error {
	if err == nil {
		return nil
	}
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return errors.Mark(err, ErrAuth)
	case status == http.StatusNotFound:
		return errors.Mark(err, ErrNotFound)
	case status == http.StatusTooManyRequests, status >= http.StatusInternalServerError:
		return errors.Mark(err, ErrTransient)
	default:
		return err
	}
}
