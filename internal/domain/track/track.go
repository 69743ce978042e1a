// Package track provides the Track domain entity.
package track

import "strings"

// UnknownArtist is the primary artist name used when a track carries no usable artist data.
const UnknownArtist = "Unknown Artist"

// Artist represents an artist credited on a track.
type Artist struct {
	Name string // Display name
	ID   string // Service-specific artist ID (optional)
}

// Track represents one occurrence of a track in a remote playlist.
// Owned by the remote service; the local copy is read-only and lives for one run.
type Track struct {
	ItemID    string   // Playlist-item ID (identifies this occurrence within the playlist)
	AltItemID string   // Alternate playlist-item ID, used when ItemID is empty
	MediaID   string   // Media ID used to re-add the track
	Title     string   // Track title
	Artists   []Artist // Credited artists; the first entry is the primary artist
}

// PrimaryArtist returns the trimmed name of the first credited artist.
// ok is false when the artist list is empty or the first name is blank.
func (t *Track) PrimaryArtist() (name string, ok bool) {
	if len(t.Artists) == 0 {
		return "", false
	}
	name = strings.TrimSpace(t.Artists[0].Name)
	if name == "" {
		return "", false
	}
	return name, true
}

// RemovalID returns the identifier used to remove this occurrence from its playlist.
// Falls back to AltItemID when ItemID is empty. Returns "" if neither is present.
func (t *Track) RemovalID() string {
	if t.ItemID != "" {
		return t.ItemID
	}
	return t.AltItemID
}

// DisplayTitle returns the title, or "Unknown" when it is empty.
func (t *Track) DisplayTitle() string {
	if t.Title == "" {
		return "Unknown"
	}
	return t.Title
}
