// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Remote backend types.
const (
	RemoteSpotify = "spotify"
	RemoteYTMusic = "ytmusic"
)

// Config represents the application configuration.
type Config struct {
	Playlist    PlaylistConfig    `yaml:"playlist"`
	ArtistOrder ArtistOrderConfig `yaml:"artist_order"`
	Schedule    ScheduleConfig    `yaml:"schedule"`
	Reconcile   ReconcileConfig   `yaml:"reconcile"`
	Remote      RemoteConfig      `yaml:"remote"`
}

// PlaylistConfig identifies the playlist to sort.
type PlaylistConfig struct {
	ID string `yaml:"id" validate:"required"`
}

// ArtistOrderConfig locates the artist priority file.
type ArtistOrderConfig struct {
	Path string `yaml:"path" default:"artist_order.json" validate:"required"`
}

// ScheduleConfig represents the daily schedule.
type ScheduleConfig struct {
	At             string `yaml:"at" default:"10:00" validate:"required"`
	Location       string `yaml:"location" default:"Local"`
	PollIntervalMs int    `yaml:"poll_interval_ms" default:"1000" validate:"gte=10,lte=60000"`
	CooldownSec    int    `yaml:"cooldown_sec" default:"60" validate:"gte=0,lte=86400"`
}

// ReconcileConfig represents how the sorted order is written back.
type ReconcileConfig struct {
	Strategy     string `yaml:"strategy" default:"auto" validate:"oneof=auto rebuild move"`
	WriteDelayMs int    `yaml:"write_delay_ms" default:"500" validate:"gte=0,lte=60000"`
	ForceRewrite bool   `yaml:"force_rewrite"`
}

// RemoteConfig selects and configures the remote backend.
type RemoteConfig struct {
	Type       string         `yaml:"type" default:"spotify" validate:"oneof=spotify ytmusic"`
	TimeoutSec int            `yaml:"timeout_sec" default:"30" validate:"gte=1,lte=600"`
	Settings   map[string]any `yaml:"settings"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("SORTER_PLAYLIST_ID"); v != "" {
		c.Playlist.ID = v
	}

	var env map[string]string
	switch c.Remote.Type {
	case RemoteSpotify:
		env = map[string]string{
			"client_id":     "SPOTIFY_CLIENT_ID",
			"client_secret": "SPOTIFY_CLIENT_SECRET",
			"refresh_token": "SPOTIFY_REFRESH_TOKEN",
		}
	case RemoteYTMusic:
		env = map[string]string{
			"auth_file": "YTMUSIC_AUTH_FILE",
			"proxy_url": "YTMUSIC_PROXY_URL",
		}
	}
	for key, name := range env {
		if v := os.Getenv(name); v != "" {
			if c.Remote.Settings == nil {
				c.Remote.Settings = make(map[string]any)
			}
			c.Remote.Settings[key] = v
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if _, err := time.Parse("15:04", c.Schedule.At); err != nil {
		return errors.Wrapf(err, "invalid schedule.at %q: want HH:MM", c.Schedule.At)
	}
	if _, err := c.ScheduleLocation(); err != nil {
		return err
	}

	return nil
}

// ScheduleLocation returns the zone schedule.at is interpreted in.
func (c *Config) ScheduleLocation() (*time.Location, error) {
	switch c.Schedule.Location {
	case "", "Local":
		return time.Local, nil
	default:
		loc, err := time.LoadLocation(c.Schedule.Location)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid schedule.location %q", c.Schedule.Location)
		}
		return loc, nil
	}
}

// PollInterval returns the scheduler polling interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Schedule.PollIntervalMs) * time.Millisecond
}

// Cooldown returns the wait after an unexpected run failure.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Schedule.CooldownSec) * time.Second
}

// WriteDelay returns the pause between rebuild writes.
func (c *Config) WriteDelay() time.Duration {
	return time.Duration(c.Reconcile.WriteDelayMs) * time.Millisecond
}

// Timeout returns the per-request timeout of the remote backend.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Remote.TimeoutSec) * time.Second
}
