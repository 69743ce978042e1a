// Package main provides the playlist sorter entry point.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/artistsort/internal/app/backend"
	"github.com/osa030/artistsort/internal/app/reconcile"
	"github.com/osa030/artistsort/internal/app/scheduler"
	"github.com/osa030/artistsort/internal/app/sorter"
	"github.com/osa030/artistsort/internal/domain/remote"
	"github.com/osa030/artistsort/internal/infra/config"
	"github.com/osa030/artistsort/internal/infra/logger"
)

var (
	app         = kingpin.New("artistsort", "Periodically sort a playlist by artist priority")
	configPath  = app.Flag("config", "Path to config file").Default("config/sorter.yaml").String()
	playlistID  = app.Flag("playlist", "Playlist ID, URL or URI (overrides config)").String()
	at          = app.Flag("at", "Daily run time HH:MM (overrides config)").String()
	artistOrder = app.Flag("artist-order", "Path to the artist order file (overrides config)").String()
	writeDelay  = app.Flag("write-delay", "Pause between rebuild writes, e.g. 500ms (overrides config)").IsSetByUser(&writeDelaySet).Duration()
	strategy    = app.Flag("strategy", "Reconcile strategy: auto, rebuild or move (overrides config)").Enum("auto", "rebuild", "move")
	verbose     = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile     = app.Flag("logfile", "Path to log file (default: stdout)").String()

	runCmd     = app.Command("run", "Sort now, then daily at the scheduled time (default)").Default()
	onceCmd    = app.Command("once", "Sort once and exit")
	previewCmd = app.Command("preview", "Print the sorted order without changing the playlist")

	writeDelaySet bool
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Initialize logger
	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	closeLog, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer closeLog()

	// Load config
	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}
	if err := applyFlags(cfg); err != nil {
		zlog.Fatal().Msgf("Invalid flags: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, command, cfg); err != nil {
		zlog.Error().Msgf("%v", err)
		closeLog()
		os.Exit(1)
	}
}

// applyFlags overrides config values with command-line flags.
func applyFlags(cfg *config.Config) error {
	if *playlistID != "" {
		cfg.Playlist.ID = *playlistID
	}
	if *at != "" {
		cfg.Schedule.At = *at
	}
	if *artistOrder != "" {
		cfg.ArtistOrder.Path = *artistOrder
	}
	if writeDelaySet {
		cfg.Reconcile.WriteDelayMs = int(writeDelay.Milliseconds())
	}
	if *strategy != "" {
		cfg.Reconcile.Strategy = *strategy
	}
	return cfg.Validate()
}

// run executes the selected command. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(ctx context.Context, command string, cfg *config.Config) error {
	client, err := backend.NewClientFromConfig(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "failed to create remote client")
	}

	mode, err := reconcile.ParseMode(cfg.Reconcile.Strategy)
	if err != nil {
		return err
	}
	s := sorter.New(client, sorter.Options{
		PlaylistID:      cfg.Playlist.ID,
		ArtistOrderPath: cfg.ArtistOrder.Path,
		Mode:            mode,
		WriteDelay:      cfg.WriteDelay(),
		ForceRewrite:    cfg.Reconcile.ForceRewrite,
	})

	switch command {
	case onceCmd.FullCommand():
		report, err := s.Run(ctx)
		if report != nil {
			printReport(os.Stdout, report)
		}
		if err != nil {
			return errors.Wrap(err, "sort failed")
		}
		return nil

	case previewCmd.FullCommand():
		preview, err := s.Preview(ctx)
		if err != nil {
			return errors.Wrap(err, "preview failed")
		}
		printPreview(os.Stdout, preview)
		return nil

	case runCmd.FullCommand():
		return serve(ctx, cfg, client, s)

	default:
		return errors.Newf("unknown command: %s", command)
	}
}

// serve validates the playlist, then runs the scheduler until interrupted.
func serve(ctx context.Context, cfg *config.Config, client remote.Client, s *sorter.Sorter) error {
	if err := validatePlaylist(ctx, client, cfg.Playlist.ID); err != nil {
		return errors.Wrap(err, "playlist validation failed")
	}

	loc, err := cfg.ScheduleLocation()
	if err != nil {
		return err
	}
	sched, err := scheduler.New(func(ctx context.Context) error {
		_, err := s.Run(ctx)
		return err
	}, scheduler.Options{
		At:           cfg.Schedule.At,
		Location:     loc,
		PollInterval: cfg.PollInterval(),
		Cooldown:     cfg.Cooldown(),
		Expected:     sorter.IsExpected,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create scheduler")
	}

	zlog.Info().Msgf("Starting sorter: playlist=%s backend=%s strategy=%s at=%s location=%s",
		cfg.Playlist.ID, client.Name(), s.Strategy(), cfg.Schedule.At, loc)

	done := make(chan error, 1)
	go func() {
		done <- sched.Run(ctx)
	}()

	// An in-flight run is not waited for; its context is already cancelled.
	select {
	case <-ctx.Done():
		zlog.Info().Msg("Received shutdown signal, exiting")
		return nil
	case err := <-done:
		return err
	}
}

// validatePlaylist checks that the playlist is reachable before scheduling.
// Transient failures are retried; authentication and missing playlists are not.
func validatePlaylist(ctx context.Context, client remote.Client, id string) error {
	maxRetries := 5
	baseDelay := 1 * time.Second

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			delay := baseDelay * time.Duration(1<<uint(i-1))
			zlog.Info().Msgf("Retrying playlist validation in %v...", delay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		p, err := client.GetPlaylist(ctx, id)
		if err != nil {
			lastErr = err
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if remote.IsFatal(ctx, err) {
				return err
			}
			zlog.Warn().Msgf("Failed to validate playlist (attempt %d/%d): %v", i+1, maxRetries, err)
			continue
		}

		zlog.Info().Msgf("Playlist validated: id=%s title=%s tracks=%d", p.ID, p.Title, p.Len())
		return nil
	}
	return errors.Wrapf(lastErr, "failed after %d attempts", maxRetries)
}

// printReport prints a run summary.
func printReport(w io.Writer, r *sorter.Report) {
	fmt.Fprintf(w, "Run %s: %s (%s)\n", r.RunID, r.PlaylistTitle, r.PlaylistID)
	fmt.Fprintf(w, "  tracks: %d (ranked %d, unranked %d)\n", r.Tracks, r.Ranked, r.Unranked)
	if r.Result == nil {
		fmt.Fprintln(w, "  already sorted, nothing written")
		return
	}
	res := r.Result
	fmt.Fprintf(w, "  strategy: %s\n", res.Strategy)
	switch res.Strategy {
	case reconcile.StrategyMove:
		fmt.Fprintf(w, "  moved: %d\n", res.Moved)
	default:
		fmt.Fprintf(w, "  removed: %d, added: %d\n", res.Removed, res.Added)
	}
	if res.Partial() {
		fmt.Fprintf(w, "  skipped: %d, failed: %d\n", res.Skipped, res.Failed)
	}
	fmt.Fprintf(w, "  elapsed: %s\n", r.Duration.Round(time.Millisecond))
}

// printPreview prints the computed order.
func printPreview(w io.Writer, p *sorter.Preview) {
	fmt.Fprintf(w, "%s (%s): %d tracks\n", p.Playlist.Title, p.Playlist.ID, p.Playlist.Len())
	if !p.Changed {
		fmt.Fprintln(w, "Already sorted.")
	}
	for i, c := range p.Order {
		fmt.Fprintf(w, "%4d. %-30s %s\n", i+1, c.Artist, c.Track.DisplayTitle())
	}
}
