// Package playlist provides the Playlist domain entity.
package playlist

import "github.com/osa030/artistsort/internal/domain/track"

// Playlist represents a remote playlist as fetched for one run.
type Playlist struct {
	ID     string        // Remote playlist ID
	Title  string        // Playlist title
	Tracks []track.Track // Tracks in playlist order
}

// Len returns the number of tracks in the playlist.
func (p *Playlist) Len() int {
	return len(p.Tracks)
}

// MediaIDs returns the media ID of every track, in playlist order.
// Tracks without a media ID contribute an empty string.
func (p *Playlist) MediaIDs() []string {
	ids := make([]string, len(p.Tracks))
	for i, t := range p.Tracks {
		ids[i] = t.MediaID
	}
	return ids
}
