// Package config loads depotkit settings via koanf: embedded TOML defaults,
// layered under an optional user config file and DEPOTKIT_* environment
// overrides.
package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/depotkit/depotkit/pkg/errors"
)

//go:embed defaults.toml
var defaultConfig []byte

// Settings is the resolved configuration the pipeline runs with.
type Settings struct {
	Steam struct {
		// Dir is the Steam installation root. depotcache/, config/ and
		// steamapps/ are resolved beneath it.
		Dir string `koanf:"dir"`
	} `koanf:"steam"`

	Loader struct {
		// Dir is the injection loader's root. The AppList directory and
		// DLLInjector.ini live under NormalMode/.
		Dir string `koanf:"dir"`
	} `koanf:"loader"`

	Database struct {
		// Path overrides the default XDG location of the sqlite file.
		Path string `koanf:"path"`
	} `koanf:"database"`

	AppList struct {
		FiniteSlots bool `koanf:"finite_slots"`
		MaxSlots    int  `koanf:"max_slots"`
	} `koanf:"applist"`
}

// Load resolves settings from defaults, the given config file (or the
// default user location when path is empty), and environment variables.
func Load(path string) (*Settings, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider(defaultConfig), toml.Parser()); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load default config")
	}

	if path == "" {
		path = defaultConfigPath()
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, errors.Wrapf(err, errors.ErrConfigLoad, "failed to load config from %s", path)
			}
		}
	}

	// DEPOTKIT_STEAM_DIR -> steam.dir, DEPOTKIT_APPLIST_MAX_SLOTS -> applist.max_slots
	err := k.Load(env.Provider("DEPOTKIT_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "DEPOTKIT_")), "_", ".", 1)
	}), nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load environment overrides")
	}

	var settings Settings
	if err := k.Unmarshal("", &settings); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to unmarshal config")
	}

	if err := settings.validate(); err != nil {
		return nil, err
	}

	return &settings, nil
}

func (s *Settings) validate() error {
	if s.AppList.FiniteSlots && s.AppList.MaxSlots <= 0 {
		return errors.New(errors.ErrConfigValid, "applist.max_slots must be positive when applist.finite_slots is set")
	}
	return nil
}

// defaultConfigPath returns ~/.config/depotkit/config.toml (or the
// XDG_CONFIG_HOME equivalent), empty when the home dir cannot be resolved.
func defaultConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "depotkit", "config.toml")
}
