// Package remotetest provides an in-memory remote.Client for tests.
package remotetest

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/osa030/artistsort/internal/domain/playlist"
	"github.com/osa030/artistsort/internal/domain/remote"
	"github.com/osa030/artistsort/internal/domain/track"
)

// Call records one write made against a Fake.
type Call struct {
	Op         string // "remove", "add" or "set"
	PlaylistID string
	IDs        []string
}

// Fake is an in-memory playlist service. Writes are applied to the stored
// playlists so tests can inspect the final state.
type Fake struct {
	mu        sync.Mutex
	playlists map[string]*playlist.Playlist
	catalog   map[string]track.Track
	calls     []Call
	gets      int
	nextItem  int

	// GetErr is returned by GetPlaylist when set.
	GetErr error
	// RemoveErr, when set, is consulted for every removed item ID.
	RemoveErr func(itemID string) error
	// AddErr, when set, is consulted for every added media ID.
	AddErr func(mediaID string) error
}

// New creates a Fake serving the given playlists. Every track becomes part of
// the catalog so it can be re-added by media ID.
func New(playlists ...*playlist.Playlist) *Fake {
	f := &Fake{
		playlists: make(map[string]*playlist.Playlist),
		catalog:   make(map[string]track.Track),
	}
	for _, p := range playlists {
		f.playlists[p.ID] = clone(p)
		for _, t := range p.Tracks {
			if t.MediaID != "" {
				f.catalog[t.MediaID] = t
			}
		}
	}
	return f
}

// Name returns "fake".
func (f *Fake) Name() string {
	return "fake"
}

// GetPlaylist returns a copy of the stored playlist.
func (f *Fake) GetPlaylist(ctx context.Context, playlistID string) (*playlist.Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.gets++
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	p, ok := f.playlists[playlistID]
	if !ok {
		return nil, errors.Mark(errors.Newf("playlist %s not found", playlistID), remote.ErrNotFound)
	}
	return clone(p), nil
}

// RemoveItems removes every track whose removal ID matches.
func (f *Fake) RemoveItems(ctx context.Context, playlistID string, itemIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, Call{Op: "remove", PlaylistID: playlistID, IDs: slices.Clone(itemIDs)})
	p, ok := f.playlists[playlistID]
	if !ok {
		return errors.Mark(errors.Newf("playlist %s not found", playlistID), remote.ErrNotFound)
	}
	for _, id := range itemIDs {
		if f.RemoveErr != nil {
			if err := f.RemoveErr(id); err != nil {
				return err
			}
		}
		p.Tracks = slices.DeleteFunc(p.Tracks, func(t track.Track) bool {
			return t.RemovalID() == id
		})
	}
	return nil
}

// AddItems appends catalog tracks with fresh item IDs.
func (f *Fake) AddItems(ctx context.Context, playlistID string, mediaIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, Call{Op: "add", PlaylistID: playlistID, IDs: slices.Clone(mediaIDs)})
	p, ok := f.playlists[playlistID]
	if !ok {
		return errors.Mark(errors.Newf("playlist %s not found", playlistID), remote.ErrNotFound)
	}
	for _, id := range mediaIDs {
		if f.AddErr != nil {
			if err := f.AddErr(id); err != nil {
				return err
			}
		}
		p.Tracks = append(p.Tracks, f.newItem(id))
	}
	return nil
}

// Calls returns the writes made so far.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// Writes returns the number of write calls made so far.
func (f *Fake) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// Gets returns the number of GetPlaylist calls made so far.
func (f *Fake) Gets() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

// MediaIDs returns the current media order of a stored playlist.
func (f *Fake) MediaIDs(playlistID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.playlists[playlistID]
	if !ok {
		return nil
	}
	return p.MediaIDs()
}

func (f *Fake) newItem(mediaID string) track.Track {
	f.nextItem++
	t, ok := f.catalog[mediaID]
	if !ok {
		t = track.Track{MediaID: mediaID}
	}
	t.ItemID = fmt.Sprintf("item-%d", f.nextItem)
	t.AltItemID = ""
	return t
}

// Setter is a Fake that also supports set-order.
type Setter struct {
	*Fake

	// SetErr is returned by SetOrder when set.
	SetErr error
}

// NewSetter creates a Setter serving the given playlists.
func NewSetter(playlists ...*playlist.Playlist) *Setter {
	return &Setter{Fake: New(playlists...)}
}

// SetOrder replaces the playlist contents with the given media.
func (s *Setter) SetOrder(ctx context.Context, playlistID string, mediaIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, Call{Op: "set", PlaylistID: playlistID, IDs: slices.Clone(mediaIDs)})
	if s.SetErr != nil {
		return s.SetErr
	}
	p, ok := s.playlists[playlistID]
	if !ok {
		return errors.Mark(errors.Newf("playlist %s not found", playlistID), remote.ErrNotFound)
	}
	tracks := make([]track.Track, 0, len(mediaIDs))
	for _, id := range mediaIDs {
		tracks = append(tracks, s.newItem(id))
	}
	p.Tracks = tracks
	return nil
}

func clone(p *playlist.Playlist) *playlist.Playlist {
	c := *p
	c.Tracks = slices.Clone(p.Tracks)
	return &c
}
