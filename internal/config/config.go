package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the server and the game
// engine. Every timing value the engine uses is configurable; the
// defaults match the tuning the game shipped with.
type Config struct {
	Addr    string `env:"ADDR" envDefault:":3000"`
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:3000"`

	// DBPath is the sqlite file for best-effort game history. Empty
	// disables persistence entirely (in-memory only mode).
	DBPath string `env:"DB_PATH" envDefault:""`

	IslandSize int `env:"ISLAND_SIZE" envDefault:"10"`
	MaxPlayers int `env:"MAX_PLAYERS" envDefault:"30"`

	// MinPlayers is the roster size required to start a game. The
	// default of 1 is a deliberate relaxation for solo testing;
	// production rooms should run with at least 2.
	MinPlayers int `env:"MIN_PLAYERS" envDefault:"1"`

	VotingDuration time.Duration `env:"VOTING_DURATION" envDefault:"10s"`
	StartDelay     time.Duration `env:"START_DELAY" envDefault:"2s"`
	RoundBreak     time.Duration `env:"ROUND_BREAK" envDefault:"3s"`
	HazardTTL      time.Duration `env:"HAZARD_TTL" envDefault:"5s"`
	CleanupGrace   time.Duration `env:"CLEANUP_GRACE" envDefault:"5m"`

	Debug bool `env:"DEBUG" envDefault:"false"`
}

// Load reads .env (if present) and parses the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Println("loaded environment from .env")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.IslandSize < 2 {
		return Config{}, fmt.Errorf("ISLAND_SIZE must be at least 2, got %d", cfg.IslandSize)
	}
	if cfg.MaxPlayers < 1 {
		return Config{}, fmt.Errorf("MAX_PLAYERS must be at least 1, got %d", cfg.MaxPlayers)
	}
	return cfg, nil
}
