package classifier

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/artistsort/internal/app/artistorder"
	"github.com/osa030/artistsort/internal/domain/track"
)

func tr(id, artist string) track.Track {
	t := track.Track{ItemID: id, MediaID: "media-" + id, Title: "Song " + id}
	if artist != "" {
		t.Artists = []track.Artist{{Name: artist}}
	}
	return t
}

func ids(tracks []track.Track) []string {
	result := make([]string, len(tracks))
	for i, t := range tracks {
		result[i] = t.ItemID
	}
	return result
}

func TestClassify(t *testing.T) {
	order := artistorder.New([]string{"Bob", "Alice", "Bob"})

	tests := []struct {
		name   string
		track  track.Track
		rank   int
		artist string
		ranked bool
	}{
		{
			name:   "first priority",
			track:  tr("t1", "Bob"),
			rank:   0,
			artist: "Bob",
			ranked: true,
		},
		{
			name:   "second priority",
			track:  tr("t2", "Alice"),
			rank:   1,
			artist: "Alice",
			ranked: true,
		},
		{
			name:   "unranked artist gets sentinel",
			track:  tr("t3", "Zeta"),
			rank:   3,
			artist: "Zeta",
			ranked: false,
		},
		{
			name:   "missing artists",
			track:  tr("t4", ""),
			rank:   3,
			artist: track.UnknownArtist,
			ranked: false,
		},
		{
			name: "only the primary artist counts",
			track: track.Track{ItemID: "t5", Artists: []track.Artist{
				{Name: "Zeta"}, {Name: "Bob"},
			}},
			rank:   3,
			artist: "Zeta",
			ranked: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(tt.track, order)
			assert.Equal(t, tt.rank, c.Rank)
			assert.Equal(t, tt.artist, c.Artist)
			assert.Equal(t, tt.ranked, c.Ranked(order))
			assert.Equal(t, tt.track.ItemID, c.Track.ItemID)
		})
	}
}

func TestClassify_UnknownArtistListed(t *testing.T) {
	order := artistorder.New([]string{track.UnknownArtist, "Bob"})

	missing := Classify(tr("t1", ""), order)
	assert.Equal(t, track.UnknownArtist, missing.Artist)
	assert.Equal(t, 2, missing.Rank)
	assert.False(t, missing.Ranked(order))

	// an artist really credited under that name is still ranked
	named := Classify(tr("t2", track.UnknownArtist), order)
	assert.Equal(t, 0, named.Rank)
	assert.True(t, named.Ranked(order))

	sorted := Order([]track.Track{tr("t1", ""), tr("t3", "Bob")}, order)
	assert.Equal(t, "t3", sorted[0].ItemID)
	assert.Equal(t, "t1", sorted[1].ItemID)
}

func TestOrder_Example(t *testing.T) {
	order := artistorder.New([]string{"Bob", "Alice"})
	tracks := []track.Track{
		tr("t1", "Alice"),
		tr("t2", "Zeta"),
		tr("t3", "Bob"),
		tr("t4", "Alice"),
	}

	sorted := Order(tracks, order)

	assert.Equal(t, []string{"t3", "t1", "t4", "t2"}, ids(sorted))
	assert.Equal(t, []string{"t1", "t2", "t3", "t4"}, ids(tracks), "input must not be modified")
}

func TestOrder_UnrankedAlphabetical(t *testing.T) {
	order := artistorder.New([]string{"Mid"})
	tracks := []track.Track{
		tr("t1", "Zeta"),
		tr("t2", "Beta"),
		tr("t3", ""),
		tr("t4", "Mid"),
		tr("t5", "Alpha"),
		tr("t6", "Beta"),
	}

	sorted := Order(tracks, order)

	// "Unknown Artist" sorts among the unranked names alphabetically.
	assert.Equal(t, []string{"t4", "t5", "t2", "t6", "t3", "t1"}, ids(sorted))
}

func TestOrder_Properties(t *testing.T) {
	artists := []string{"Alice", "Bob", "Carol", "Dave", "Eve", "Zeta", ""}
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		t.Run(fmt.Sprintf("round-%d", round), func(t *testing.T) {
			orderNames := make([]string, 0, 3)
			for _, i := range rng.Perm(len(artists) - 1)[:3] {
				orderNames = append(orderNames, artists[i])
			}
			order := artistorder.New(orderNames)

			tracks := make([]track.Track, rng.Intn(30)+1)
			for i := range tracks {
				tracks[i] = tr(fmt.Sprintf("t%02d", i), artists[rng.Intn(len(artists))])
			}

			sorted := Order(tracks, order)

			// Permutation: same multiset of identifiers.
			before, after := ids(tracks), ids(sorted)
			sort.Strings(before)
			sort.Strings(after)
			require.Equal(t, before, after)

			// Idempotence: sorting the sorted output changes nothing.
			assert.Equal(t, ids(sorted), ids(Order(sorted, order)))

			items := ClassifyAll(sorted, order)
			seenUnranked := false
			for i, c := range items {
				if !c.Ranked(order) {
					seenUnranked = true
				} else {
					assert.False(t, seenUnranked, "ranked track after unranked track at %d", i)
				}
				if i == 0 {
					continue
				}
				prev := items[i-1]
				assert.LessOrEqual(t, prev.Rank, c.Rank)
				if prev.Rank == c.Rank {
					assert.LessOrEqual(t, prev.Artist, c.Artist)
				}
			}
		})
	}
}

func TestSort_Stable(t *testing.T) {
	order := artistorder.New([]string{"Bob"})
	items := ClassifyAll([]track.Track{
		tr("a", "Bob"),
		tr("b", "Zeta"),
		tr("c", "Bob"),
		tr("d", "Zeta"),
		tr("e", "Bob"),
	}, order)

	Sort(items)

	assert.Equal(t, []string{"a", "c", "e", "b", "d"}, ids(Tracks(items)))
}

func TestOrder_EmptyInput(t *testing.T) {
	sorted := Order(nil, artistorder.New([]string{"Bob"}))
	assert.Empty(t, sorted)
}
