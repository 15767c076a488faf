// Package config loads runtime configuration from the environment and dice
// models from YAML files.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Server configures cmd/farkleserver.
type Server struct {
	Host            string        `env:"FARKLE_HOST" envDefault:"localhost"`
	Port            int           `env:"FARKLE_PORT" envDefault:"8080"`
	TCPPort         int           `env:"FARKLE_TCP_PORT" envDefault:"0"`        // Line protocol port (0 = disabled)
	Checkpoint      string        `env:"FARKLE_CHECKPOINT"`                     // Strategy file to load and save
	Database        string        `env:"FARKLE_DB"`                             // SQLite checkpoint catalogue
	Name            string        `env:"FARKLE_STRATEGY" envDefault:"default"`  // Catalogue entry to load and save
	DiceFile        string        `env:"FARKLE_DICE_FILE"`                      // YAML dice model used when nothing is loaded
	Workers         int           `env:"FARKLE_WORKERS" envDefault:"0"`         // Table fill workers (0 = GOMAXPROCS)
	MaxQueries      int           `env:"FARKLE_MAX_QUERIES" envDefault:"100"`   // Concurrent lookups
	MaxSimulations  int           `env:"FARKLE_MAX_SIMULATIONS" envDefault:"2"` // Concurrent simulations
	ShutdownTimeout time.Duration `env:"FARKLE_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	LogLevel        string        `env:"FARKLE_LOG_LEVEL" envDefault:"info"`
	LogPretty       bool          `env:"FARKLE_LOG_PRETTY" envDefault:"false"`
}

// Solver configures the solve command of cmd/farkle.
type Solver struct {
	Generations int    `env:"FARKLE_GENERATIONS" envDefault:"1"`
	Workers     int    `env:"FARKLE_WORKERS" envDefault:"0"`
	Checkpoint  string `env:"FARKLE_CHECKPOINT"`
	Database    string `env:"FARKLE_DB"`
	Name        string `env:"FARKLE_STRATEGY" envDefault:"default"`
	DiceFile    string `env:"FARKLE_DICE_FILE"`
	LogLevel    string `env:"FARKLE_LOG_LEVEL" envDefault:"info"`
	LogPretty   bool   `env:"FARKLE_LOG_PRETTY" envDefault:"true"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadServer returns the server configuration from the environment.
func LoadServer() (Server, error) {
	var cfg Server
	if err := ParseEnv(&cfg); err != nil {
		return Server{}, err
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Server{}, fmt.Errorf("FARKLE_PORT %d out of range", cfg.Port)
	}
	if cfg.TCPPort < 0 || cfg.TCPPort > 65535 {
		return Server{}, fmt.Errorf("FARKLE_TCP_PORT %d out of range", cfg.TCPPort)
	}
	return cfg, nil
}

// LoadSolver returns the solver configuration from the environment.
func LoadSolver() (Solver, error) {
	var cfg Solver
	if err := ParseEnv(&cfg); err != nil {
		return Solver{}, err
	}
	if cfg.Generations < 1 {
		return Solver{}, fmt.Errorf("FARKLE_GENERATIONS must be at least 1, got %d", cfg.Generations)
	}
	return cfg, nil
}
