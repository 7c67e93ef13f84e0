// Package main is the entry point for the casino gateway.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"casino-gateway/internal/backend"
	"casino-gateway/internal/config"
	"casino-gateway/internal/events"
	"casino-gateway/internal/game"
	"casino-gateway/internal/game/baccarat"
	"casino-gateway/internal/game/blackjack"
	"casino-gateway/internal/game/casinowar"
	"casino-gateway/internal/game/craps"
	"casino-gateway/internal/game/hilo"
	"casino-gateway/internal/game/roulette"
	"casino-gateway/internal/game/sicbo"
	"casino-gateway/internal/game/threecard"
	"casino-gateway/internal/game/ultimateholdem"
	"casino-gateway/internal/game/videopoker"
	"casino-gateway/internal/nonce"
	"casino-gateway/internal/pkg/db"
	"casino-gateway/internal/repository"
	"casino-gateway/internal/server"
	"casino-gateway/internal/service"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Gateway failed")
	}
	log.Info().Msg("Gateway stopped gracefully")
}

// run wires the gateway and blocks until it stops. Deferred cleanup runs
// on every return path.
func run() error {
	cfg, err := config.Load("config")
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("environment", cfg.Environment).
		Str("backend", cfg.Backend.URL).
		Dur("event_timeout", cfg.EventTimeout()).
		Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := backend.NewClient(backend.Config{
		BaseURL: cfg.Backend.URL,
		Timeout: cfg.Backend.RequestTimeout,
	})

	streams := events.NewWSFactory(cfg.Backend.UpdatesURL)

	nonceOpts := []nonce.Option{nonce.WithLockTimeout(cfg.Nonce.LockTimeout)}
	engineOpts := []game.EngineOption{
		game.WithStreams(streams),
		game.WithVerbosePayloads(cfg.VerbosePayloads()),
	}

	var (
		pool       *db.Pool
		serverOpts []server.Option
	)
	if cfg.Database.Enabled {
		pool, err = db.Open(ctx, &cfg.Database, func(ctx context.Context, p *pgxpool.Pool) error {
			return repository.Migrate(ctx, p)
		})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		nonceOpts = append(nonceOpts, nonce.WithSubmissionLog(repository.NewSubmissionRepository(pool.Pool)))
		games := repository.NewGameRepository(pool.Pool)
		engineOpts = append(engineOpts, game.WithHistory(games))
		serverOpts = append(serverOpts, server.WithHistory(games))
	} else {
		log.Info().Msg("Persistence disabled, using in-memory submission log")
	}

	engine := game.NewEngine(
		nonce.NewManager(client, nonceOpts...),
		client,
		events.NewCorrelator(cfg.EventTimeout()),
		engineOpts...,
	)

	registry := game.NewRegistry()
	handlers := []game.Handler{
		baccarat.New(engine),
		blackjack.New(engine),
		casinowar.New(engine),
		craps.New(engine),
		hilo.New(engine),
		roulette.New(engine),
		sicbo.New(engine),
		threecard.New(engine),
		ultimateholdem.New(engine),
		videopoker.New(engine),
	}
	for _, h := range handlers {
		if err := registry.Register(h); err != nil {
			return fmt.Errorf("failed to register %s: %w", h.GameType(), err)
		}
	}

	log.Info().
		Int("game_count", registry.Count()).
		Strs("messages", registry.Messages()).
		Msg("Games registered")

	accounts := service.NewAccountService(engine, client)
	gateway := server.New(cfg.Server, registry, accounts, streams, serverOpts...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return gateway.ListenAndServe(gctx)
	})
	if pool != nil {
		g.Go(func() error {
			watchDatabase(gctx, pool)
			return nil
		})
	}

	return g.Wait()
}

// watchDatabase logs failed health checks until ctx is done.
func watchDatabase(ctx context.Context, pool *db.Pool) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := pool.HealthCheck(ctx, 5*time.Second); err != nil {
				log.Warn().Err(err).Msg("Database health check failed")
			}
		}
	}
}
