// Package main provides the Spotify authentication tool.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/osa030/artistsort/internal/infra/logger"
	"github.com/osa030/artistsort/internal/infra/spotify"
)

var (
	app          = kingpin.New("artistsort-auth", "Obtain Spotify credentials for artistsort")
	clientID     = app.Flag("client-id", "Spotify Client ID").Envar("SPOTIFY_CLIENT_ID").Required().String()
	clientSecret = app.Flag("client-secret", "Spotify Client Secret").Envar("SPOTIFY_CLIENT_SECRET").Required().String()
	port         = app.Flag("port", "Callback server port").Default("8888").Int()
	output       = app.Flag("output", "Credentials file to write").Short('o').Default("spotify_token.json").String()
	timeout      = app.Flag("timeout", "How long to wait for authorization").Default("5m").Duration()
)

const completePage = `<!DOCTYPE html>
<html>
<head><title>artistsort - Authorization Complete</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 20vh;">
<h1>Authorization Complete</h1>
<p>You can close this window and return to the terminal.</p>
</body>
</html>
`

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	if _, err := logger.Init(logger.Config{Output: "stderr", Level: "info"}); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	if err := run(); err != nil {
		zlog.Error().Msgf("Authorization failed: %v", err)
		os.Exit(1)
	}
}

func run() error {
	redirectURI := fmt.Sprintf("http://127.0.0.1:%d/callback", *port)
	state := uuid.NewString()

	auth := spotifyauth.New(
		spotifyauth.WithRedirectURL(redirectURI),
		spotifyauth.WithClientID(*clientID),
		spotifyauth.WithClientSecret(*clientSecret),
		spotifyauth.WithScopes(spotify.Scopes...),
	)

	tokenCh := make(chan *oauth2.Token, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if st := r.FormValue("state"); st != state {
			http.Error(w, "State mismatch", http.StatusForbidden)
			zlog.Warn().Msgf("State mismatch: got=%s", st)
			return
		}
		token, err := auth.Token(r.Context(), state, r)
		if err != nil {
			http.Error(w, "Failed to get token", http.StatusForbidden)
			zlog.Warn().Msgf("Failed to get token: %v", err)
			return
		}
		fmt.Fprint(w, completePage)
		select {
		case tokenCh <- token:
		default:
		}
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", *port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			zlog.Warn().Msgf("Failed to shutdown server: %v", err)
		}
	}()

	fmt.Println("Please visit the following URL to authorize artistsort:")
	fmt.Println("")
	fmt.Println(auth.AuthURL(state))
	fmt.Println("")
	fmt.Println("Waiting for authorization...")

	var token *oauth2.Token
	select {
	case token = <-tokenCh:
	case err := <-serverErrCh:
		return errors.Wrap(err, "callback server failed")
	case <-time.After(*timeout):
		return errors.Newf("no authorization received within %s", *timeout)
	}

	if err := writeToken(*output, token); err != nil {
		return err
	}

	fmt.Println("")
	fmt.Println("=== Authorization Successful ===")
	fmt.Println("")
	fmt.Printf("Credentials written to %s\n", *output)
	fmt.Println("")
	fmt.Println("Reference it from config/sorter.yaml:")
	fmt.Println("")
	fmt.Println("remote:")
	fmt.Println("  type: spotify")
	fmt.Println("  settings:")
	fmt.Printf("    credentials_file: \"%s\"\n", *output)
	fmt.Println("")
	fmt.Println("Or set the refresh token as an environment variable:")
	fmt.Printf("export SPOTIFY_REFRESH_TOKEN=\"%s\"\n", token.RefreshToken)
	return nil
}

// writeToken stores token as JSON, readable only by the owner.
func writeToken(path string, token *oauth2.Token) error {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode token")
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrapf(err, "failed to write credentials file: %s", path)
	}
	return nil
}
