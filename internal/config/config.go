// Package config loads the optional envy.toml configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const FileName = "envy.toml"

type Config struct {
	Listen  string   `toml:"listen"`
	Timeout Duration `toml:"timeout"`
	Colors  Colors   `toml:"colors"`
}

// Duration accepts Go duration strings ("5s", "1500ms") in TOML.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Colors are hex strings handed straight to lipgloss.
type Colors struct {
	Accent   string `toml:"accent"`
	Border   string `toml:"border"`
	Selected string `toml:"selected"`
	Muted    string `toml:"muted"`
	Error    string `toml:"error"`
}

func Default() Config {
	return Config{
		Listen:  "127.0.0.1:9999",
		Timeout: Duration(5 * time.Second),
		Colors: Colors{
			Accent:   "#fcba03",
			Border:   "#666666",
			Selected: "#fcba03",
			Muted:    "#999999",
			Error:    "#cc3333",
		},
	}
}

// Load reads the config at path, or the default locations (working
// directory, then the user config dir) when path is empty. A missing
// file yields the defaults; a file that exists but fails to parse is
// an error, since silently ignoring a broken config is worse than
// refusing to start.
func Load(path string) (Config, error) {
	candidates := []string{path}
	if path == "" {
		candidates = []string{FileName}
		if dir, err := os.UserConfigDir(); err == nil {
			candidates = append(candidates, filepath.Join(dir, "envy", FileName))
		}
	}

	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate)
		if errors.Is(err, fs.ErrNotExist) {
			if path == "" {
				continue
			}
			return Config{}, fmt.Errorf("read config %q: %w", candidate, err)
		}
		if err != nil {
			return Config{}, fmt.Errorf("read config %q: %w", candidate, err)
		}
		return decode(data, candidate)
	}
	return Default(), nil
}

func decode(data []byte, path string) (Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %q: %w", path, err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = Default().Timeout
	}
	if cfg.Listen == "" {
		cfg.Listen = Default().Listen
	}
	return cfg, nil
}
