// Package artistorder loads the user's artist priority list.
package artistorder

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the artist order file used when none is configured.
const DefaultPath = "artist_order.json"

// ErrConfig marks every failure to load the artist order file.
var ErrConfig = errors.New("artist order unavailable")

// Order is an ordered list of artist names. Position defines priority.
type Order struct {
	names []string
	rank  map[string]int
}

// file is the on-disk shape shared by all supported formats.
type file struct {
	ArtistOrder []string `json:"artist_order" yaml:"artist_order" toml:"artist_order"`
}

// New builds an Order from names. Names are trimmed and blank entries dropped.
// Duplicates are kept; Rank reports the first occurrence.
func New(names []string) Order {
	o := Order{
		names: make([]string, 0, len(names)),
		rank:  make(map[string]int, len(names)),
	}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, seen := o.rank[n]; !seen {
			o.rank[n] = len(o.names)
		}
		o.names = append(o.names, n)
	}
	return o
}

// Load reads the artist order from path. The format follows the extension:
// .yaml/.yml and .toml are decoded accordingly, anything else as JSON.
//
// On any failure Load returns an empty Order and an error marked with ErrConfig.
func Load(path string) (Order, error) {
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Order{}, errors.Mark(errors.Wrapf(err, "artist order file not found: %s", path), ErrConfig)
		}
		return Order{}, errors.Mark(errors.Wrapf(err, "failed to read artist order file: %s", path), ErrConfig)
	}

	var f file
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &f)
	case ".toml":
		err = toml.Unmarshal(data, &f)
	default:
		err = json.Unmarshal(data, &f)
	}
	if err != nil {
		return Order{}, errors.Mark(errors.Wrapf(err, "malformed artist order file: %s", path), ErrConfig)
	}

	o := New(f.ArtistOrder)
	if o.Len() == 0 {
		zlog.Warn().Msgf("artist order is empty: path=%s", path)
	} else {
		zlog.Debug().Msgf("loaded artist order: path=%s artists=%d", path, o.Len())
	}
	return o, nil
}

// Len returns the number of entries, duplicates included.
func (o Order) Len() int {
	return len(o.names)
}

// Names returns a copy of the entries in priority order.
func (o Order) Names() []string {
	names := make([]string, len(o.names))
	copy(names, o.names)
	return names
}

// Rank returns the index of the first occurrence of name.
func (o Order) Rank(name string) (int, bool) {
	i, ok := o.rank[name]
	return i, ok
}
