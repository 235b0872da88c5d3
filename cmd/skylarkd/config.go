package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the daemon configuration, merged from defaults, an optional
// TOML file and SKYLARK_ environment variables, in that order.
type Config struct {
	// Listen is the gateway bind address.
	Listen string `koanf:"listen"`

	// Cookies is the path to the account cookie file, either a JSON
	// browser export or a raw Cookie header line.
	Cookies string `koanf:"cookies"`

	Log struct {
		Level  string `koanf:"level"`
		Dir    string `koanf:"dir"`
		NoFile bool   `koanf:"no_file"`
	} `koanf:"log"`

	Poll struct {
		// ShortIntervalSecs is the healthy poll cadence.
		ShortIntervalSecs int `koanf:"short_interval_secs"`

		// LongIntervalSecs is the failure poll cadence.
		LongIntervalSecs int `koanf:"long_interval_secs"`
	} `koanf:"poll"`

	Notifications struct {
		// Enabled surfaces the notifications feed as a synthetic
		// thread.
		Enabled bool `koanf:"enabled"`

		// PollIntervalSecs is the feed refresh cadence.
		PollIntervalSecs int `koanf:"poll_interval_secs"`
	} `koanf:"notifications"`
}

func defaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".skylark")
}

// LoadConfig merges the configuration layers. An explicit path must exist;
// the default locations are tried best-effort.
func LoadConfig(configPath string) (*Config, error) {
	k := koanf.New(".")

	dir := defaultConfigDir()
	k.Load(confmap.Provider(map[string]interface{}{
		"listen":                           "127.0.0.1:9390",
		"cookies":                          filepath.Join(dir, "cookies"),
		"log.level":                        "info",
		"log.dir":                          filepath.Join(dir, "logs"),
		"poll.short_interval_secs":         8,
		"poll.long_interval_secs":          60,
		"notifications.enabled":            true,
		"notifications.poll_interval_secs": 60,
	}, "."), nil)

	if configPath != "" {
		err := k.Load(file.Provider(configPath), toml.Parser())
		if err != nil {
			return nil, fmt.Errorf("loading config %s: %w",
				configPath, err)
		}
	} else {
		defaults := []string{
			filepath.Join(dir, "skylark.toml"),
			"./skylark.toml",
		}
		for _, path := range defaults {
			if _, err := os.Stat(path); err != nil {
				continue
			}
			if err := k.Load(
				file.Provider(path), toml.Parser(),
			); err == nil {
				break
			}
		}
	}

	k.Load(env.Provider("SKYLARK_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "SKYLARK_")

		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}), nil)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return &cfg, nil
}
