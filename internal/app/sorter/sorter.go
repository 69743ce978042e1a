// Package sorter orchestrates one reordering run: load the artist order,
// fetch the playlist, sort it, and apply the order back to the remote service.
package sorter

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/artistsort/internal/app/artistorder"
	"github.com/osa030/artistsort/internal/app/classifier"
	"github.com/osa030/artistsort/internal/app/reconcile"
	"github.com/osa030/artistsort/internal/domain/playlist"
	"github.com/osa030/artistsort/internal/domain/remote"
	"github.com/osa030/artistsort/internal/domain/track"
	"github.com/osa030/artistsort/internal/infra/logger"
)

var (
	// ErrNoPriority is returned when the artist order is empty.
	ErrNoPriority = errors.New("artist order is empty")
	// ErrEmptyPlaylist is returned when the playlist has no tracks.
	ErrEmptyPlaylist = errors.New("playlist is empty")
)

// Options configures a Sorter.
type Options struct {
	PlaylistID      string
	ArtistOrderPath string
	Mode            reconcile.Mode
	WriteDelay      time.Duration
	ForceRewrite    bool // Reconcile even when the order is unchanged
}

// Report describes a completed run.
type Report struct {
	RunID         string
	PlaylistID    string
	PlaylistTitle string
	Tracks        int
	Ranked        int
	Unranked      int
	Changed       bool              // Sorted order differed from the fetched one
	Result        *reconcile.Result // nil when reconciliation was skipped
	Duration      time.Duration
}

// Preview is the computed order of a playlist, without any writes.
type Preview struct {
	Playlist *playlist.Playlist
	Order    []classifier.Classified
	Changed  bool
}

// Sorter reorders one playlist.
type Sorter struct {
	client     remote.Client
	reconciler reconcile.Reconciler
	opts       Options
}

// New creates a Sorter. The reconcile strategy is selected from opts.Mode and
// the capabilities of client.
func New(client remote.Client, opts Options) *Sorter {
	if opts.ArtistOrderPath == "" {
		opts.ArtistOrderPath = artistorder.DefaultPath
	}
	return &Sorter{
		client:     client,
		reconciler: reconcile.Select(client, opts.Mode, opts.WriteDelay),
		opts:       opts,
	}
}

// Strategy returns the strategy the sorter reconciles with.
func (s *Sorter) Strategy() reconcile.Strategy {
	return s.reconciler.Strategy()
}

// Run performs one sort of the playlist.
// Errors carry their kind: artistorder.ErrConfig, ErrNoPriority,
// ErrEmptyPlaylist or one of the remote kinds.
func (s *Sorter) Run(ctx context.Context) (*Report, error) {
	runID := uuid.NewString()
	runLog := logger.ForRun(runID)
	start := time.Now()

	runLog.Info().Msgf("sort run started: playlist_id=%s strategy=%s", s.opts.PlaylistID, s.reconciler.Strategy())

	order, p, sorted, err := s.prepare(ctx, &runLog)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:         runID,
		PlaylistID:    p.ID,
		PlaylistTitle: p.Title,
		Tracks:        p.Len(),
		Changed:       !sameOrder(p.Tracks, classifier.Tracks(sorted)),
	}
	for _, c := range sorted {
		if c.Ranked(order) {
			report.Ranked++
		} else {
			report.Unranked++
		}
	}

	if !report.Changed && !s.opts.ForceRewrite {
		report.Duration = time.Since(start)
		runLog.Info().Msgf("playlist already sorted, skipping: title=%s tracks=%d", p.Title, p.Len())
		return report, nil
	}

	res, err := s.reconciler.Reconcile(ctx, p.ID, p.Tracks, classifier.Tracks(sorted))
	report.Result = res
	report.Duration = time.Since(start)
	if err != nil {
		return report, errors.Wrapf(err, "failed to reorder playlist %s", p.ID)
	}

	if res.Partial() {
		runLog.Warn().Msgf("sort run finished with failures: title=%s tracks=%d failed=%d skipped=%d elapsed=%s",
			p.Title, p.Len(), res.Failed, res.Skipped, report.Duration.Round(time.Millisecond))
	} else {
		runLog.Info().Msgf("sort run finished: title=%s tracks=%d ranked=%d unranked=%d elapsed=%s",
			p.Title, p.Len(), report.Ranked, report.Unranked, report.Duration.Round(time.Millisecond))
	}
	return report, nil
}

// Preview computes the sorted order without writing.
func (s *Sorter) Preview(ctx context.Context) (*Preview, error) {
	log := zlog.Logger
	_, p, sorted, err := s.prepare(ctx, &log)
	if err != nil {
		return nil, err
	}
	return &Preview{
		Playlist: p,
		Order:    sorted,
		Changed:  !sameOrder(p.Tracks, classifier.Tracks(sorted)),
	}, nil
}

func (s *Sorter) prepare(ctx context.Context, log *zerolog.Logger) (artistorder.Order, *playlist.Playlist, []classifier.Classified, error) {
	order, err := artistorder.Load(s.opts.ArtistOrderPath)
	if err != nil {
		return order, nil, nil, errors.Wrap(err, "failed to load artist order")
	}
	if order.Len() == 0 {
		return order, nil, nil, errors.Wrapf(ErrNoPriority, "nothing to sort by: path=%s", s.opts.ArtistOrderPath)
	}

	p, err := s.client.GetPlaylist(ctx, s.opts.PlaylistID)
	if err != nil {
		return order, nil, nil, errors.Wrapf(err, "failed to fetch playlist %s", s.opts.PlaylistID)
	}
	if p.Len() == 0 {
		return order, p, nil, errors.Wrapf(ErrEmptyPlaylist, "playlist %s", p.ID)
	}
	log.Debug().Msgf("fetched playlist: title=%s tracks=%d artists=%d", p.Title, p.Len(), order.Len())

	sorted := classifier.ClassifyAll(p.Tracks, order)
	classifier.Sort(sorted)
	return order, p, sorted, nil
}

// sameOrder reports whether a and b list the same items in the same order.
func sameOrder(a, b []track.Track) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].RemovalID() != b[i].RemovalID() || a[i].MediaID != b[i].MediaID {
			return false
		}
	}
	return true
}

// IsExpected reports whether err is a run outcome the daemon should log and
// move past without backing off.
func IsExpected(err error) bool {
	return errors.Is(err, artistorder.ErrConfig) ||
		errors.Is(err, ErrNoPriority) ||
		errors.Is(err, ErrEmptyPlaylist) ||
		errors.Is(err, remote.ErrNotFound) ||
		errors.Is(err, remote.ErrTransient)
}
