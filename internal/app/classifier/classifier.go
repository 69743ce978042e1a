// Package classifier assigns sort keys to playlist tracks and orders them.
package classifier

import (
	"sort"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/artistsort/internal/app/artistorder"
	"github.com/osa030/artistsort/internal/domain/track"
)

// Classified is a track paired with its sort key.
type Classified struct {
	Rank   int    // Index of Artist in the artist order, or the order length when unranked
	Artist string // Primary artist name
	Track  track.Track
}

// Ranked reports whether the track's artist appears in order.
func (c Classified) Ranked(order artistorder.Order) bool {
	return c.Rank < order.Len()
}

// Classify computes the sort key of t.
// Tracks without usable artist data are classified as track.UnknownArtist and
// always go to the unranked tail, even when the order lists that name.
func Classify(t track.Track, order artistorder.Order) Classified {
	artist, ok := t.PrimaryArtist()
	if !ok {
		zlog.Warn().Msgf("track has no artist information: title=%s", t.DisplayTitle())
		return Classified{
			Rank:   order.Len(),
			Artist: track.UnknownArtist,
			Track:  t,
		}
	}

	rank, found := order.Rank(artist)
	if !found {
		rank = order.Len()
	}

	return Classified{
		Rank:   rank,
		Artist: artist,
		Track:  t,
	}
}

// ClassifyAll classifies every track, keeping input order.
func ClassifyAll(tracks []track.Track, order artistorder.Order) []Classified {
	result := make([]Classified, len(tracks))
	for i, t := range tracks {
		result[i] = Classify(t, order)
	}
	return result
}

// Sort stable-sorts classified tracks by rank, then artist name.
func Sort(items []Classified) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Rank != items[j].Rank {
			return items[i].Rank < items[j].Rank
		}
		return items[i].Artist < items[j].Artist
	})
}

// Tracks unwraps the tracks in their current order.
func Tracks(items []Classified) []track.Track {
	tracks := make([]track.Track, len(items))
	for i, c := range items {
		tracks[i] = c.Track
	}
	return tracks
}

// Order returns tracks arranged by the artist order. The input is not modified.
func Order(tracks []track.Track, order artistorder.Order) []track.Track {
	items := ClassifyAll(tracks, order)
	Sort(items)
	return Tracks(items)
}
