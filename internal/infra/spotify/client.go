// Package spotify provides a remote playlist client for the Spotify API.
package spotify

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/osa030/artistsort/internal/domain/playlist"
	"github.com/osa030/artistsort/internal/domain/remote"
	"github.com/osa030/artistsort/internal/domain/track"
)

// Name is the backend name.
const Name = "spotify"

// Spotify accepts at most this many items per write and page.
const batchSize = 100

// Scopes are the OAuth scopes the client needs.
var Scopes = []string{
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopePlaylistReadCollaborative,
	spotifyauth.ScopePlaylistModifyPublic,
	spotifyauth.ScopePlaylistModifyPrivate,
}

// api is the subset of *spotify.Client the backend uses.
type api interface {
	GetPlaylist(ctx context.Context, playlistID spotify.ID, opts ...spotify.RequestOption) (*spotify.FullPlaylist, error)
	GetPlaylistItems(ctx context.Context, playlistID spotify.ID, opts ...spotify.RequestOption) (*spotify.PlaylistItemPage, error)
	AddTracksToPlaylist(ctx context.Context, playlistID spotify.ID, trackIDs ...spotify.ID) (string, error)
	RemoveTracksFromPlaylist(ctx context.Context, playlistID spotify.ID, trackIDs ...spotify.ID) (string, error)
	ReplacePlaylistTracks(ctx context.Context, playlistID spotify.ID, trackIDs ...spotify.ID) error
}

// Client is a Spotify playlist client. It implements remote.Client and
// remote.OrderSetter.
//
// Spotify has no per-occurrence item identifier, so a track's item ID is its
// track ID and removing it removes every occurrence.
type Client struct {
	client     api
	market     string
	maxRetries int
	retryDelay time.Duration
}

// Config represents Spotify client configuration.
type Config struct {
	ClientID        string
	ClientSecret    string
	RefreshToken    string
	CredentialsFile string // JSON oauth2 token, used when RefreshToken is empty
	Market          string
	Timeout         time.Duration // Per-request timeout
}

// New creates a new Spotify client.
// Credential problems are marked with remote.ErrAuth.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.Mark(errors.New("spotify client ID and secret are required"), remote.ErrAuth)
	}

	token, err := loadToken(cfg)
	if err != nil {
		return nil, errors.Mark(err, remote.ErrAuth)
	}

	auth := spotifyauth.New(
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
		spotifyauth.WithScopes(Scopes...),
	)

	// Get HTTP client with auto-refresh capability
	httpClient := auth.Client(ctx, token)
	if cfg.Timeout > 0 {
		httpClient.Timeout = cfg.Timeout
	}

	return newClient(spotify.New(httpClient), cfg.Market), nil
}

func newClient(client api, market string) *Client {
	if market == "" {
		market = "JP"
	}
	return &Client{
		client:     client,
		market:     market,
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

// loadToken returns the refresh token from cfg, falling back to the
// credentials file.
func loadToken(cfg Config) (*oauth2.Token, error) {
	if cfg.RefreshToken != "" {
		return &oauth2.Token{RefreshToken: cfg.RefreshToken}, nil
	}
	if cfg.CredentialsFile == "" {
		return nil, errors.New("spotify refresh token or credentials file is required")
	}

	data, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read credentials file: %s", cfg.CredentialsFile)
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, errors.Wrapf(err, "malformed credentials file: %s", cfg.CredentialsFile)
	}
	if token.RefreshToken == "" {
		return nil, errors.Newf("credentials file has no refresh token: %s", cfg.CredentialsFile)
	}

	// Force a refresh on first use.
	token.AccessToken = ""
	token.Expiry = time.Time{}
	return &token, nil
}

// Name returns the backend name.
func (c *Client) Name() string {
	return Name
}

// GetPlaylist retrieves the playlist and all of its items.
// playlistID can be a Spotify ID, URL, or URI.
//
// Local files and episodes are returned without item or media IDs.
func (c *Client) GetPlaylist(ctx context.Context, playlistID string) (*playlist.Playlist, error) {
	id := extractPlaylistID(playlistID)
	if id == "" {
		return nil, errors.Mark(errors.New("invalid playlist ID"), remote.ErrNotFound)
	}

	var full *spotify.FullPlaylist
	err := c.retry(ctx, func() error {
		p, err := c.client.GetPlaylist(ctx, spotify.ID(id), spotify.Fields("id,name"), spotify.Market(c.market))
		if err != nil {
			return err
		}
		full = p
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get playlist %s", id)
	}

	result := &playlist.Playlist{
		ID:    id,
		Title: full.Name,
	}

	offset := 0
	for {
		var page *spotify.PlaylistItemPage
		err := c.retry(ctx, func() error {
			p, err := c.client.GetPlaylistItems(ctx, spotify.ID(id),
				spotify.Limit(batchSize),
				spotify.Offset(offset),
				spotify.Market(c.market),
			)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to get playlist items")
		}

		for _, item := range page.Items {
			result.Tracks = append(result.Tracks, convertItem(item))
		}

		if len(page.Items) < batchSize {
			break
		}
		offset += batchSize
	}

	zlog.Debug().Msgf("fetched spotify playlist: id=%s title=%s tracks=%d", id, result.Title, result.Len())
	return result, nil
}

// RemoveItems removes every occurrence of the given tracks.
func (c *Client) RemoveItems(ctx context.Context, playlistID string, itemIDs []string) error {
	pid := spotify.ID(extractPlaylistID(playlistID))
	for _, batch := range batches(toIDs(itemIDs)) {
		err := c.retry(ctx, func() error {
			_, err := c.client.RemoveTracksFromPlaylist(ctx, pid, batch...)
			return err
		})
		if err != nil {
			return errors.Wrap(err, "failed to remove tracks from playlist")
		}
	}
	return nil
}

// AddItems appends tracks to a playlist.
// mediaIDs can be Spotify IDs, URLs, or URIs.
func (c *Client) AddItems(ctx context.Context, playlistID string, mediaIDs []string) error {
	pid := spotify.ID(extractPlaylistID(playlistID))
	return c.add(ctx, pid, toIDs(mediaIDs))
}

// SetOrder replaces the playlist contents with mediaIDs, in order.
// The first batch replaces; the remaining batches are appended.
func (c *Client) SetOrder(ctx context.Context, playlistID string, mediaIDs []string) error {
	pid := spotify.ID(extractPlaylistID(playlistID))
	ids := toIDs(mediaIDs)

	first := ids
	if len(first) > batchSize {
		first = ids[:batchSize]
	}
	err := c.retry(ctx, func() error {
		return c.client.ReplacePlaylistTracks(ctx, pid, first...)
	})
	if err != nil {
		return errors.Wrap(err, "failed to replace playlist tracks")
	}

	return c.add(ctx, pid, ids[len(first):])
}

func (c *Client) add(ctx context.Context, pid spotify.ID, ids []spotify.ID) error {
	for _, batch := range batches(ids) {
		err := c.retry(ctx, func() error {
			_, err := c.client.AddTracksToPlaylist(ctx, pid, batch...)
			return err
		})
		if err != nil {
			return errors.Wrap(err, "failed to add tracks to playlist")
		}
	}
	return nil
}

// convertItem converts a Spotify playlist item to a domain Track.
func convertItem(item spotify.PlaylistItem) track.Track {
	switch {
	case item.Track.Track != nil:
		t := item.Track.Track
		artists := make([]track.Artist, len(t.Artists))
		for i, a := range t.Artists {
			artists[i] = track.Artist{Name: a.Name, ID: string(a.ID)}
		}
		result := track.Track{
			Title:   t.Name,
			Artists: artists,
		}
		if !item.IsLocal && t.ID != "" {
			result.ItemID = string(t.ID)
			result.MediaID = string(t.ID)
		}
		return result
	case item.Track.Episode != nil:
		return track.Track{Title: item.Track.Episode.Name}
	default:
		return track.Track{}
	}
}

// retry retries an operation with linear backoff. Errors are marked with the
// matching remote kind; only transient ones are retried.
func (c *Client) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := markError(ctx, fn())
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) || ctx.Err() != nil {
			return err
		}

		if i < c.maxRetries-1 {
			zlog.Debug().Msgf("retrying spotify request: attempt=%d error=%v", i+1, err)
			select {
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), "retry interrupted")
			case <-time.After(c.retryDelay * time.Duration(i+1)):
			}
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// markError attaches the remote error kind matching err.
// Timeouts of a single request are transient while ctx is still live.
func markError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		return remote.MarkStatus(err, apiErr.Status)
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return errors.Mark(err, remote.ErrAuth)
	}

	if ctx.Err() != nil {
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return errors.Mark(err, remote.ErrTransient)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	// Unstructured errors reporting rate limits or server failures
	errStr := err.Error()
	if strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504") {
		return errors.Mark(err, remote.ErrTransient)
	}
	return err
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	return errors.Is(err, remote.ErrTransient)
}

func toIDs(ids []string) []spotify.ID {
	result := make([]spotify.ID, len(ids))
	for i, id := range ids {
		result[i] = spotify.ID(extractTrackID(id))
	}
	return result
}

func batches(ids []spotify.ID) [][]spotify.ID {
	var result [][]spotify.ID
	for i := 0; i < len(ids); i += batchSize {
		end := min(i+batchSize, len(ids))
		result = append(result, ids[i:end])
	}
	return result
}

// extractPlaylistID extracts the playlist ID from a Spotify playlist URL or URI.
func extractPlaylistID(input string) string {
	return extractID(input, "playlist")
}

// extractTrackID extracts the track ID from a Spotify track URL or URI.
func extractTrackID(input string) string {
	return extractID(input, "track")
}

// extractID handles spotify:<kind>:ID URIs and
// https://open.spotify.com[/intl-XX]/<kind>/ID URLs. Anything else is
// returned trimmed.
func extractID(input, kind string) string {
	input = strings.TrimSpace(input)
	if id, ok := strings.CutPrefix(input, "spotify:"+kind+":"); ok {
		return id
	}

	segment := "/" + kind + "/"
	if strings.Contains(input, "open.spotify.com") && strings.Contains(input, segment) {
		parts := strings.Split(input, segment)
		// Remove query parameters and trailing slashes
		id := strings.Split(parts[len(parts)-1], "?")[0]
		return strings.TrimRight(id, "/")
	}

	return input
}
