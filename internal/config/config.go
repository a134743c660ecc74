// Package config resolves where the library lives and how to unlock it.
//
// Sources are applied in order, later ones winning:
//
//  1. built-in defaults
//  2. $XDG_CONFIG_HOME/djmd/config.toml (or the first XDG config dir holding it)
//  3. ./djmd.toml
//  4. the file named by --config
//  5. SQLCIPHER_KEY, then DJMD_* environment variables
//  6. command-line flags
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/roach88/djmd/internal/ident"
	"github.com/roach88/djmd/internal/store"
)

const (
	// EnvPrefix prefixes environment overrides, e.g. DJMD_DATABASE.
	EnvPrefix = "DJMD_"

	// LegacyKeyEnv is read for the passphrase when no other source sets one.
	LegacyKeyEnv = "SQLCIPHER_KEY"

	// LocalFile is the per-directory config file name.
	LocalFile = "djmd.toml"
)

// Keys understood by Load.
const (
	KeyDatabase    = "database"
	KeyPassphrase  = "passphrase"
	KeyMaxConns    = "max_conns"
	KeyBusyTimeout = "busy_timeout"
	KeyIDAttempts  = "id_attempts"
)

type Config struct {
	Database    string        `koanf:"database"`     // path to the library file
	Passphrase  string        `koanf:"passphrase"`   // SQLCipher key
	MaxConns    int           `koanf:"max_conns"`    // pooled connections (default: 6)
	BusyTimeout time.Duration `koanf:"busy_timeout"` // lock wait, e.g. "12s"
	IDAttempts  int           `koanf:"id_attempts"`  // identifier draws per allocation (default: 64)
}

// Default returns the configuration used when no source sets a key.
func Default() Config {
	return Config{
		MaxConns:    store.DefaultMaxConns,
		BusyTimeout: store.DefaultBusyTimeout,
		IDAttempts:  ident.DefaultMaxAttempts,
	}
}

// Load merges every source. explicit is the --config path ("" for none);
// overrides holds flag values keyed like the config file. Load does not
// validate; call Validate before opening the library.
func Load(explicit string, overrides map[string]any) (*Config, error) {
	k := koanf.New(".")

	for _, path := range getConfigPaths() {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, configError(fmt.Errorf("load %s: %w", path, err))
			}
		}
	}
	if explicit != "" {
		path := expandPath(explicit)
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, configError(fmt.Errorf("load %s: %w", path, err))
		}
	}

	if key := os.Getenv(LegacyKeyEnv); key != "" {
		if err := k.Set(KeyPassphrase, key); err != nil {
			return nil, configError(err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, configError(fmt.Errorf("load environment: %w", err))
	}

	for key, val := range overrides {
		if isZero(val) {
			continue
		}
		if err := k.Set(key, val); err != nil {
			return nil, configError(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, configError(fmt.Errorf("decode: %w", err))
	}

	cfg.Database = expandPath(cfg.Database)
	cfg.applyDefaults()
	return &cfg, nil
}

// Validate reports missing required settings.
func (c *Config) Validate() error {
	if c.Database == "" {
		return configError(fmt.Errorf("no database configured (set %s or %sDATABASE)", KeyDatabase, EnvPrefix))
	}
	if c.Passphrase == "" {
		return configError(fmt.Errorf("no passphrase configured (set %s, %sPASSPHRASE or %s)",
			KeyPassphrase, EnvPrefix, LegacyKeyEnv))
	}
	return nil
}

// StoreOptions returns the connection pool settings.
func (c *Config) StoreOptions() store.Options {
	return store.Options{MaxConns: c.MaxConns, BusyTimeout: c.BusyTimeout}
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.MaxConns <= 0 {
		c.MaxConns = d.MaxConns
	}
	if c.BusyTimeout <= 0 {
		c.BusyTimeout = d.BusyTimeout
	}
	if c.IDAttempts <= 0 {
		c.IDAttempts = d.IDAttempts
	}
}

func getConfigPaths() []string {
	paths := []string{}

	// 1. XDG config dir
	if path, err := xdg.SearchConfigFile(filepath.Join("djmd", "config.toml")); err == nil {
		paths = append(paths, path)
	}

	// 2. ./djmd.toml (pwd)
	paths = append(paths, LocalFile)

	return paths
}

// envKey maps DJMD_BUSY_TIMEOUT to busy_timeout.
func envKey(s string) string {
	return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

func isZero(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case int:
		return x == 0
	case time.Duration:
		return x == 0
	}
	return false
}

func configError(err error) error {
	return store.NewError(store.ErrCodeConfiguration, "load config", err)
}
