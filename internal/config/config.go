// Package config loads process settings from GEOCOIN_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/MJE43/geocoin/internal/game"
	"github.com/MJE43/geocoin/internal/grid"
)

const (
	appConfigDirName = "geocoin"
	dbFileName       = "geocoin.db"
	secretsFileName  = "secrets.json"
)

var (
	ErrInvalidRadius      = errors.New("neighborhood size must be positive")
	ErrInvalidProbability = errors.New("spawn probability must be within [0, 1]")
	ErrInvalidTile        = errors.New("tile degrees must be positive")
)

// Config is the full process configuration.
type Config struct {
	DataDir string `env:"GEOCOIN_DATA_DIR"`
	DBPath  string `env:"GEOCOIN_DB_PATH"`

	Addr            string        `env:"GEOCOIN_ADDR"             envDefault:"127.0.0.1:17889"`
	Token           string        `env:"GEOCOIN_TOKEN"`
	RequireToken    bool          `env:"GEOCOIN_REQUIRE_TOKEN"    envDefault:"true"`
	KeyringService  string        `env:"GEOCOIN_KEYRING_SERVICE"  envDefault:"geocoin"`
	ShutdownTimeout time.Duration `env:"GEOCOIN_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	WorldSeed        string  `env:"GEOCOIN_WORLD_SEED"        envDefault:"geocoin"`
	NeighborhoodSize int     `env:"GEOCOIN_NEIGHBORHOOD_SIZE" envDefault:"8"`
	SpawnProbability float64 `env:"GEOCOIN_SPAWN_PROBABILITY" envDefault:"0.1"`
	TileDegrees      float64 `env:"GEOCOIN_TILE_DEGREES"      envDefault:"0.0001"`
	StartLat         float64 `env:"GEOCOIN_START_LAT"         envDefault:"36.9995"`
	StartLng         float64 `env:"GEOCOIN_START_LNG"         envDefault:"-122.0533"`
}

// Load parses the environment, fills derived paths and validates.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = appDataDir()
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, dbFileName)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the game tunables.
func (c Config) Validate() error {
	if c.NeighborhoodSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidRadius, c.NeighborhoodSize)
	}
	if c.SpawnProbability < 0 || c.SpawnProbability > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidProbability, c.SpawnProbability)
	}
	if c.TileDegrees <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidTile, c.TileDegrees)
	}
	return nil
}

// Game returns the session settings.
func (c Config) Game() game.Config {
	return game.Config{
		WorldSeed:        c.WorldSeed,
		Radius:           c.NeighborhoodSize,
		SpawnProbability: c.SpawnProbability,
		TileDegrees:      c.TileDegrees,
		Start:            grid.LatLng{Lat: c.StartLat, Lng: c.StartLng},
	}
}

// SecretsPath is the token fallback file used when no keyring exists.
func (c Config) SecretsPath() string {
	return filepath.Join(c.DataDir, secretsFileName)
}

// EnsureDataDir creates the data directory and the database's parent.
func (c Config) EnsureDataDir() error {
	for _, dir := range []string{c.DataDir, filepath.Dir(c.DBPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	return nil
}

// appDataDir returns an OS-appropriate writable directory.
func appDataDir() string {
	if d, err := os.UserConfigDir(); err == nil && d != "" {
		return filepath.Join(d, appConfigDirName)
	}
	if h, err := os.UserHomeDir(); err == nil && h != "" {
		return filepath.Join(h, "."+appConfigDirName)
	}
	return "."
}
