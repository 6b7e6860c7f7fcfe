package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/discoveredlive/gamecore/internal/config"
	"github.com/discoveredlive/gamecore/internal/content"
	"github.com/discoveredlive/gamecore/internal/models"
	"github.com/discoveredlive/gamecore/internal/query"
	"github.com/discoveredlive/gamecore/internal/realtime"
	"github.com/discoveredlive/gamecore/internal/room"
	"github.com/discoveredlive/gamecore/internal/session"
	"github.com/discoveredlive/gamecore/internal/store"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store: Postgres when configured, in-memory otherwise.
	var (
		st   store.Store
		feed store.ChangeFeed
	)
	if cfg.DatabaseURL != "" {
		pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pgStore.Close()

		pgFeed, err := store.NewPostgresChangeFeed(store.DefaultChangeFeedConfig(cfg.DatabaseURL))
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open change feed")
		}
		st = pgStore
		feed = pgFeed
		log.Info().Msg("using Postgres store")
	} else {
		memStore := store.NewMemoryStore()
		memFeed := store.NewMemoryChangeFeed()
		memStore.AttachFeed(memFeed)
		st = memStore
		feed = memFeed
		log.Info().Msg("using in-memory store")
	}

	// Event fabric: NATS when configured, in-process otherwise.
	var fabric realtime.Fabric
	if cfg.NATSURL != "" {
		natsCfg := realtime.DefaultNATSFabricConfig()
		natsCfg.URL = cfg.NATSURL
		natsFabric, err := realtime.NewNATSFabric(natsCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to NATS")
		}
		defer natsFabric.Close()
		fabric = natsFabric
		log.Info().Str("nats_url", cfg.NATSURL).Msg("using NATS event fabric")
	} else {
		fabric = realtime.NewMemoryFabric()
		log.Info().Msg("using in-process event fabric")
	}

	sync := realtime.NewSynchronizer(fabric)
	reconciler := realtime.NewReconciler(feed, sync)
	connManager := realtime.NewConnectionManager(sync, realtime.DefaultConnectionConfig())

	// Prompts: generative service with static fallback, or static alone.
	var prompts content.PromptProvider = content.NewStaticProvider()
	if cfg.PromptServiceURL != "" {
		prompts = content.NewFallbackProvider(
			content.NewGenerativeClient(cfg.PromptServiceURL, cfg.PromptServiceToken),
			prompts,
		)
		log.Info().Str("prompt_service_url", cfg.PromptServiceURL).Msg("using generative prompt service")
	}

	clock := clockwork.NewRealClock()

	lifecycleCfg := room.DefaultLifecycleConfig()
	lifecycleCfg.DefaultSettings = models.RoomSettings{
		MaxPlayersPerGame: cfg.Room.MaxPlayersPerGame,
		TotalRounds:       cfg.Room.TotalRounds,
		RoundTimeLimitSec: cfg.Room.RoundTimeLimitSec,
		IntermissionSec:   cfg.Room.IntermissionSec,
		BingoSlotsPerGame: cfg.Room.BingoSlotsPerGame,
	}
	manager := room.NewLifecycleManager(st, sync, clock, lifecycleCfg)

	engineCfg := session.DefaultConfig()
	engineCfg.MinParticipants = cfg.Room.MinParticipants
	engine := session.NewEngine(st, sync, prompts, clock, session.StandardPolicy{}, engineCfg)

	manager.SetLauncher(engine)
	engine.SetGameEndHandler(manager)

	statusService := query.NewStatusService(st, engine, manager)
	api := query.NewAPI(statusService, manager, engine, st, connManager, sync)

	go connManager.Start(ctx)
	go reconciler.Run(ctx)
	go func() {
		if err := feed.Start(ctx); err != nil {
			log.Error().Err(err).Msg("change feed stopped")
		}
	}()
	go manager.Run(ctx)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	log.Info().Msg("shutdown complete")
}
