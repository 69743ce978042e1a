// Package backend builds the configured remote playlist client.
package backend

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/artistsort/internal/domain/remote"
	"github.com/osa030/artistsort/internal/infra/config"
	"github.com/osa030/artistsort/internal/infra/spotify"
	"github.com/osa030/artistsort/internal/infra/ytmusic"
)

// SpotifySettings are the remote.settings of the spotify backend.
type SpotifySettings struct {
	ClientID        string `yaml:"client_id" mapstructure:"client_id" validate:"required"`
	ClientSecret    string `yaml:"client_secret" mapstructure:"client_secret" validate:"required"`
	RefreshToken    string `yaml:"refresh_token" mapstructure:"refresh_token"`
	CredentialsFile string `yaml:"credentials_file" mapstructure:"credentials_file" default:"spotify_token.json"`
	Market          string `yaml:"market" mapstructure:"market" default:"JP" validate:"len=2"`
}

// YTMusicSettings are the remote.settings of the ytmusic backend.
type YTMusicSettings struct {
	ProxyURL string `yaml:"proxy_url" mapstructure:"proxy_url" default:"http://localhost:8080" validate:"url"`
	AuthFile string `yaml:"auth_file" mapstructure:"auth_file" default:"browser.json" validate:"required"`
}

// NewClientFromConfig creates the remote client selected by cfg.Remote.Type.
// Invalid settings and credential failures are marked with remote.ErrAuth.
func NewClientFromConfig(ctx context.Context, cfg *config.Config) (remote.Client, error) {
	zlog.Debug().Msgf("creating remote client: type=%s", cfg.Remote.Type)

	var client remote.Client
	switch cfg.Remote.Type {
	case config.RemoteSpotify:
		var s SpotifySettings
		if err := decode(cfg.Remote.Settings, &s); err != nil {
			return nil, err
		}
		c, err := spotify.New(ctx, spotify.Config{
			ClientID:        s.ClientID,
			ClientSecret:    s.ClientSecret,
			RefreshToken:    s.RefreshToken,
			CredentialsFile: s.CredentialsFile,
			Market:          s.Market,
			Timeout:         cfg.Timeout(),
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create spotify client")
		}
		client = c

	case config.RemoteYTMusic:
		var s YTMusicSettings
		if err := decode(cfg.Remote.Settings, &s); err != nil {
			return nil, err
		}
		c, err := ytmusic.New(ytmusic.Config{
			ProxyURL: s.ProxyURL,
			AuthFile: s.AuthFile,
			Timeout:  cfg.Timeout(),
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create youtube music client")
		}
		client = c

	default:
		return nil, errors.Newf("unsupported remote type: %s", cfg.Remote.Type)
	}

	_, canMove := client.(remote.OrderSetter)
	zlog.Info().Msgf("remote client ready: type=%s set_order=%t", client.Name(), canMove)
	return client, nil
}

// decode fills out from settings, applies defaults and validates.
func decode(settings map[string]any, out any) error {
	if err := mapstructure.Decode(settings, out); err != nil {
		return errors.Mark(errors.Wrap(err, "failed to decode settings"), remote.ErrAuth)
	}
	if err := defaults.Set(out); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(out); err != nil {
		zlog.Error().Msgf("remote settings validation failed: %v", err)
		return errors.Mark(errors.Wrap(err, "validation failed"), remote.ErrAuth)
	}
	return nil
}
