package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/artistsort/internal/app/classifier"
	"github.com/osa030/artistsort/internal/app/reconcile"
	"github.com/osa030/artistsort/internal/app/sorter"
	"github.com/osa030/artistsort/internal/domain/playlist"
	"github.com/osa030/artistsort/internal/domain/remote"
	"github.com/osa030/artistsort/internal/domain/remote/remotetest"
	"github.com/osa030/artistsort/internal/domain/track"
)

func TestValidatePlaylist(t *testing.T) {
	fake := remotetest.New(&playlist.Playlist{ID: "pl1", Title: "Mix"})
	require.NoError(t, validatePlaylist(context.Background(), fake, "pl1"))
	assert.Equal(t, 1, fake.Gets())
}

func TestValidatePlaylist_FatalNotRetried(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{name: "missing playlist", kind: remote.ErrNotFound},
		{name: "auth failure", err: errors.Mark(errors.New("401"), remote.ErrAuth), kind: remote.ErrAuth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := remotetest.New()
			fake.GetErr = tt.err

			err := validatePlaylist(context.Background(), fake, "missing")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind))
			assert.Equal(t, 1, fake.Gets())
		})
	}
}

func TestValidatePlaylist_StopsOnCancel(t *testing.T) {
	fake := remotetest.New()
	fake.GetErr = errors.Mark(errors.New("503"), remote.ErrTransient)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := validatePlaylist(ctx, fake, "pl1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, fake.Gets())
}

func TestPrintReport(t *testing.T) {
	tests := []struct {
		name   string
		report *sorter.Report
		want   []string
	}{
		{
			name: "rebuild with failures",
			report: &sorter.Report{
				RunID: "r1", PlaylistID: "pl1", PlaylistTitle: "Mix", Tracks: 3, Ranked: 2, Unranked: 1,
				Changed: true,
				Result:  &reconcile.Result{Strategy: reconcile.StrategyRebuild, Removed: 3, Added: 2, Failed: 1},
			},
			want: []string{"Run r1: Mix (pl1)", "ranked 2, unranked 1", "removed: 3, added: 2", "failed: 1"},
		},
		{
			name: "move",
			report: &sorter.Report{
				RunID: "r2", Tracks: 2, Changed: true,
				Result: &reconcile.Result{Strategy: reconcile.StrategyMove, Moved: 2},
				Duration: 1500 * time.Millisecond,
			},
			want: []string{"strategy: move", "moved: 2", "elapsed: 1.5s"},
		},
		{
			name:   "unchanged",
			report: &sorter.Report{RunID: "r3", Tracks: 2},
			want:   []string{"already sorted"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printReport(&buf, tt.report)
			for _, w := range tt.want {
				assert.Contains(t, buf.String(), w)
			}
		})
	}
}

func TestPrintPreview(t *testing.T) {
	p := &playlist.Playlist{ID: "pl1", Title: "Mix", Tracks: make([]track.Track, 2)}
	preview := &sorter.Preview{
		Playlist: p,
		Order: []classifier.Classified{
			{Rank: 0, Artist: "A", Track: track.Track{Title: "First"}},
			{Rank: 1, Artist: track.UnknownArtist, Track: track.Track{}},
		},
	}

	var buf bytes.Buffer
	printPreview(&buf, preview)
	out := buf.String()
	assert.Contains(t, out, "Mix (pl1): 2 tracks")
	assert.Contains(t, out, "Already sorted.")
	assert.Contains(t, out, "1. A")
	assert.Contains(t, out, "First")
	assert.Contains(t, out, "2. Unknown Artist")
	assert.Contains(t, out, "Unknown")
}
