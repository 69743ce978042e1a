// Package ytmusic provides a remote playlist client for YouTube Music.
//
// It talks to a ytmusicapi HTTP proxy (by default on port 8080). The proxy
// reads the credentials file named in the X-Auth-File header.
//
// Fetching a playlist and adding videos use the proxy's documented endpoints.
// Removal assumes the proxy also serves
// POST /api/playlists/{id}/items/remove with {"item_ids": [...]}, forwarding
// to ytmusicapi remove_playlist_items; a proxy without it answers 404, which
// aborts the run as not found.
package ytmusic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/artistsort/internal/domain/playlist"
	"github.com/osa030/artistsort/internal/domain/remote"
	"github.com/osa030/artistsort/internal/domain/track"
)

// Name is the backend name.
const Name = "ytmusic"

// DefaultProxyURL is the proxy address used when none is configured.
const DefaultProxyURL = "http://localhost:8080"

// Config represents YouTube Music client configuration.
type Config struct {
	ProxyURL string
	AuthFile string        // browser.json or oauth.json
	Timeout  time.Duration // Per-request timeout
}

// Client is a YouTube Music playlist client. It implements remote.Client.
// The proxy has no set-order operation.
type Client struct {
	baseURL    string
	authFile   string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
}

type ytArtist struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

type ytTrack struct {
	VideoID        string     `json:"videoId"`
	SetVideoID     string     `json:"setVideoId"`
	PlaylistItemID string     `json:"playlistItemId"`
	Title          string     `json:"title"`
	Artists        []ytArtist `json:"artists"`
}

type ytPlaylist struct {
	ID     string    `json:"id"`
	Title  string    `json:"title"`
	Tracks []ytTrack `json:"tracks"`
}

// New creates a new YouTube Music client. The auth file must exist;
// otherwise the error is marked with remote.ErrAuth.
func New(cfg Config) (*Client, error) {
	if cfg.AuthFile == "" {
		return nil, errors.Mark(errors.New("youtube music auth file is required"), remote.ErrAuth)
	}
	if _, err := os.Stat(cfg.AuthFile); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "youtube music auth file unavailable: %s", cfg.AuthFile), remote.ErrAuth)
	}

	baseURL := strings.TrimRight(cfg.ProxyURL, "/")
	if baseURL == "" {
		baseURL = DefaultProxyURL
	}

	return &Client{
		baseURL:    baseURL,
		authFile:   cfg.AuthFile,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: 3,
		retryDelay: time.Second,
	}, nil
}

// Name returns the backend name.
func (c *Client) Name() string {
	return Name
}

// GetPlaylist retrieves the playlist with all of its tracks.
//
// Calls GET /api/playlists/{id} on the proxy.
func (c *Client) GetPlaylist(ctx context.Context, playlistID string) (*playlist.Playlist, error) {
	var yp ytPlaylist
	endpoint := "/api/playlists/" + url.PathEscape(playlistID)
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &yp); err != nil {
		return nil, errors.Wrapf(err, "failed to get playlist %s", playlistID)
	}

	result := &playlist.Playlist{
		ID:     yp.ID,
		Title:  yp.Title,
		Tracks: make([]track.Track, len(yp.Tracks)),
	}
	if result.ID == "" {
		result.ID = playlistID
	}
	for i, yt := range yp.Tracks {
		artists := make([]track.Artist, len(yt.Artists))
		for j, a := range yt.Artists {
			artists[j] = track.Artist{Name: a.Name, ID: a.ID}
		}
		result.Tracks[i] = track.Track{
			ItemID:    yt.PlaylistItemID,
			AltItemID: yt.SetVideoID,
			MediaID:   yt.VideoID,
			Title:     yt.Title,
			Artists:   artists,
		}
	}

	zlog.Debug().Msgf("fetched youtube music playlist: id=%s title=%s tracks=%d", result.ID, result.Title, result.Len())
	return result, nil
}

// RemoveItems removes playlist items by their item IDs.
//
// Calls POST /api/playlists/{id}/items/remove on the proxy (see package doc).
func (c *Client) RemoveItems(ctx context.Context, playlistID string, itemIDs []string) error {
	body := struct {
		ItemIDs []string `json:"item_ids"`
	}{ItemIDs: itemIDs}

	endpoint := fmt.Sprintf("/api/playlists/%s/items/remove", url.PathEscape(playlistID))
	if err := c.do(ctx, http.MethodPost, endpoint, body, nil); err != nil {
		return errors.Wrap(err, "failed to remove playlist items")
	}
	return nil
}

// AddItems appends videos to the playlist.
//
// Calls POST /api/playlists/{id}/items on the proxy.
func (c *Client) AddItems(ctx context.Context, playlistID string, mediaIDs []string) error {
	body := struct {
		VideoIDs []string `json:"video_ids"`
	}{VideoIDs: mediaIDs}

	endpoint := fmt.Sprintf("/api/playlists/%s/items", url.PathEscape(playlistID))
	if err := c.do(ctx, http.MethodPost, endpoint, body, nil); err != nil {
		return errors.Wrap(err, "failed to add playlist items")
	}
	return nil
}

// do performs a request, retrying transient failures.
func (c *Client) do(ctx context.Context, method, endpoint string, body, result any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to marshal request")
		}
		payload = b
	}

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := c.doOnce(ctx, method, endpoint, payload, result)
		if err == nil {
			return nil
		}
		lastErr = err

		if !errors.Is(err, remote.ErrTransient) || ctx.Err() != nil {
			return err
		}

		if i < c.maxRetries-1 {
			zlog.Debug().Msgf("retrying youtube music request: endpoint=%s attempt=%d error=%v", endpoint, i+1, err)
			select {
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), "retry interrupted")
			case <-time.After(c.retryDelay * time.Duration(i+1)):
			}
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

func (c *Client) doOnce(ctx context.Context, method, endpoint string, payload []byte, result any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("X-Auth-File", c.authFile)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Wrap(ctxErr, "request interrupted")
		}
		var netErr net.Error
		if errors.As(err, &netErr) {
			return errors.Mark(errors.Wrap(err, "request failed"), remote.ErrTransient)
		}
		return errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Detail string `json:"detail"`
		}
		var apiErr error
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Detail != "" {
			apiErr = errors.Newf("youtube music API error (status %d): %s", resp.StatusCode, errResp.Detail)
		} else {
			apiErr = errors.Newf("youtube music API error: status %d", resp.StatusCode)
		}
		return remote.MarkStatus(apiErr, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return errors.Wrap(err, "failed to decode response")
		}
	}
	return nil
}
