// Command farkleserver serves a Farkle turn strategy over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/yourusername/farklesolver/internal/config"
	"github.com/yourusername/farklesolver/internal/dice"
	"github.com/yourusername/farklesolver/internal/logging"
	"github.com/yourusername/farklesolver/internal/store"
	"github.com/yourusername/farklesolver/pkg/api"
	"github.com/yourusername/farklesolver/pkg/external"
	"github.com/yourusername/farklesolver/pkg/solver"
)

const version = "0.1.0"

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Flags default to the environment.
	host := flag.String("host", cfg.Host, "Host to bind to (use 0.0.0.0 for all interfaces)")
	port := flag.Int("port", cfg.Port, "Port to listen on")
	tcpPort := flag.Int("tcp-port", cfg.TCPPort, "Line protocol port (0 = disabled)")
	checkpoint := flag.String("checkpoint", cfg.Checkpoint, "Strategy checkpoint file to load and save")
	dbPath := flag.String("db", cfg.Database, "SQLite checkpoint catalogue to load and save")
	name := flag.String("name", cfg.Name, "Catalogue entry name")
	diceFile := flag.String("dice", cfg.DiceFile, "YAML dice model (default: six fair dice)")
	workers := flag.Int("workers", cfg.Workers, "Table fill workers (0 = auto)")
	maxQueries := flag.Int("max-queries", cfg.MaxQueries, "Max concurrent queries")
	maxSims := flag.Int("max-simulations", cfg.MaxSimulations, "Max concurrent simulations")
	readTimeout := flag.Duration("read-timeout", 30*time.Second, "HTTP read timeout")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	logPretty := flag.Bool("log-pretty", cfg.LogPretty, "Human-readable console logs")
	showVersion := flag.Bool("version", false, "Show version and exit")

	flag.Parse()

	if *showVersion {
		fmt.Printf("Farkle strategy server v%s\n", version)
		os.Exit(0)
	}
	if err := logging.Setup(*logLevel, *logPretty); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	dd := dice.Fair()
	if *diceFile != "" {
		if dd, err = config.LoadDiceFile(*diceFile); err != nil {
			log.Fatal().Err(err).Msg("dice-model-invalid")
		}
	}

	cp, closeStore, err := store.OpenCheckpoints(*checkpoint, *dbPath, *name)
	if err != nil {
		log.Fatal().Err(err).Msg("checkpoint-store-unavailable")
	}
	defer closeStore()

	ctx := context.Background()
	opts := solver.Options{Workers: *workers}
	s, err := cp.LoadOrNew(ctx, dd, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("strategy-load-failed")
	}
	if !cp.Enabled() {
		log.Warn().Msg("no checkpoint location: iterations will not be saved")
	}

	eng := solver.NewEngine(s, cp.SaveFunc(ctx))

	serverConfig := api.DefaultConfig()
	serverConfig.Host = *host
	serverConfig.Port = *port
	serverConfig.ReadTimeout = *readTimeout
	serverConfig.ShutdownTimeout = cfg.ShutdownTimeout
	serverConfig.MaxQueries = *maxQueries
	serverConfig.MaxSimulations = *maxSims
	serverConfig.Solver = opts

	if *tcpPort > 0 {
		proto := external.NewServer(eng, external.ServerOptions{Host: *host, Port: *tcpPort})
		if err := proto.Start(); err != nil {
			log.Fatal().Err(err).Msg("protocol-server-failed")
		}
		defer proto.Stop()
	}

	server := api.NewServer(eng, serverConfig, version)
	if err := server.ListenAndServeWithGracefulShutdown(); err != nil {
		log.Fatal().Err(err).Msg("server-failed")
	}
}
