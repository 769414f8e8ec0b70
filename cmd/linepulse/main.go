package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"linepulse/internal/adapters/auth"
	"linepulse/internal/adapters/cache/redis"
	"linepulse/internal/adapters/feed/normalize"
	"linepulse/internal/adapters/feed/replay"
	"linepulse/internal/adapters/feed/ws"
	"linepulse/internal/adapters/notify/telegram"
	"linepulse/internal/adapters/storage/memory"
	"linepulse/internal/adapters/storage/postgresql"
	"linepulse/internal/adapters/web"
	"linepulse/internal/application/ports"
	"linepulse/internal/application/usecases"
	"linepulse/internal/config"
	"linepulse/internal/detector"
	"linepulse/internal/dispatch"
	"linepulse/internal/domain/models"
	"linepulse/internal/lifecycle"
	"linepulse/internal/logger"
)

func main() {
	var (
		port = flag.Int("port", 0, "Port number (overrides SERVER_PORT)")
		help = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		printUsage()
		return
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.LogLevel)

	if *port == 0 {
		*port = cfg.Server.Port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize storage
	var storage ports.StoragePort
	if cfg.Database.Enabled {
		storage, err = postgresql.New(cfg.Database)
		if err != nil {
			log.Error("Failed to initialize storage", "error", err)
			os.Exit(1)
		}
	} else {
		log.Info("Database disabled, using in-memory storage")
		storage = memory.New()
	}
	defer storage.Close()

	// Initialize cache
	var cache ports.CachePort
	if cfg.Cache.Enabled {
		cache, err = redis.New(cfg.Cache)
		if err != nil {
			log.Error("Failed to initialize cache", "error", err)
			os.Exit(1)
		}
		defer cache.Close()
	}

	// Initialize feed adapters, one per configured channel
	feeds := buildFeeds(cfg, log)

	// Initialize the alert channel
	var notifier ports.NotifierPort
	if cfg.Alert.BotToken != "" {
		notifier = telegram.New(telegram.Config{
			APIURL:   cfg.Alert.APIURL,
			BotToken: cfg.Alert.BotToken,
			ChatID:   cfg.Alert.ChatID,
			ThreadID: cfg.Alert.ThreadID,
		})
	} else {
		log.Info("No bot token configured, alerts go to the log")
		notifier = dispatch.NewLogNotifier(log)
	}

	counters := &dispatch.Counters{}
	dispatcher := dispatch.New(dispatch.Config{
		CriticalDelta: cfg.Alert.CriticalDelta,
		PinDelta:      cfg.Alert.PinDeltaThreshold,
		PinSteam:      cfg.Alert.PinSteamThreshold,
	}, notifier, counters, log)

	det := detector.New(detector.Config{
		Threshold: cfg.Detector.MovementThreshold,
		IdleGap:   cfg.Detector.IdleGap,
	})

	tracker := lifecycle.New(lifecycle.Config{
		BaseWeight:     cfg.Lifecycle.BaseWeight,
		AdvancedWeight: cfg.Lifecycle.AdvancedWeight,
		EvictThreshold: cfg.Lifecycle.EvictThreshold,
		PhaseWeights: map[models.Phase]float64{
			models.PhaseInit:   cfg.Lifecycle.InitWeight,
			models.PhaseAuth:   cfg.Lifecycle.AuthWeight,
			models.PhaseActive: cfg.Lifecycle.ActiveWeight,
			models.PhaseRenew:  cfg.Lifecycle.RenewWeight,
			models.PhaseEvict:  cfg.Lifecycle.EvictWeight,
		},
	}, log)

	// Initialize use cases
	pipelineUseCase := usecases.NewPipelineUseCase(
		feeds, det, tracker, storage, cache, dispatcher, counters,
		cfg.Lifecycle.MaxSessionAge, cfg.Lifecycle.SweepInterval, log,
	)
	movementUseCase := usecases.NewMovementQueryUseCase(storage, cache, log)

	// Initialize web server
	webServer := web.NewServer(*port, pipelineUseCase, movementUseCase, log)

	// Start the pipelines
	go func() {
		if err := pipelineUseCase.Start(ctx); err != nil {
			log.Error("Failed to start pipeline", "error", err)
			cancel()
		}
	}()

	// Start web server
	go func() {
		if err := webServer.Start(); err != nil {
			log.Error("Failed to start web server", "error", err)
			cancel()
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info("Received shutdown signal")
	case <-ctx.Done():
		log.Info("Context cancelled")
	}

	// Graceful shutdown
	log.Info("Shutting down gracefully...")
	for _, feed := range feeds {
		if err := feed.Stop(); err != nil {
			log.Warn("Feed stop failed", "session_id", feed.SessionID(), "error", err)
		}
	}
	webServer.Shutdown(context.Background())
	log.Info("Shutdown complete")
}

// buildFeeds creates one feed per configured channel: websocket
// transports when a feed URL is set, synthetic replay feeds otherwise.
func buildFeeds(cfg *config.Config, log *slog.Logger) []ports.FeedPort {
	feeds := make([]ports.FeedPort, 0, len(cfg.Feed.Channels))

	if cfg.Feed.URL == "" {
		log.Info("No feed URL configured, using replay feeds")
		for _, channel := range cfg.Feed.Channels {
			feeds = append(feeds, replay.New(channel, cfg.Feed.PollInterval))
		}
		return feeds
	}

	creds := auth.New(cfg.Feed.AuthURL, cfg.Feed.CallTimeout)
	for _, channel := range cfg.Feed.Channels {
		feeds = append(feeds, ws.New(ws.Config{
			SessionID:    channel,
			URL:          cfg.Feed.URL,
			Subprotocols: cfg.Feed.Subprotocols,

			HeartbeatInterval: cfg.Feed.HeartbeatInterval,
			CallTimeout:       cfg.Feed.CallTimeout,

			Backoff: ws.BackoffConfig{
				InitialDelay: cfg.Feed.InitialDelay,
				MaxDelay:     cfg.Feed.MaxDelay,
				Multiplier:   cfg.Feed.Multiplier,
				Jitter:       cfg.Feed.Jitter,
				MaxRetries:   cfg.Feed.MaxRetries,
			},

			RateLimitCooldown: cfg.Feed.RateLimitCooldown,
			BlockCooldown:     cfg.Feed.BlockCooldown,

			RenewRetryDelay: cfg.Feed.RenewRetryDelay,
			RenewRetryMax:   cfg.Feed.RenewRetryMax,
		}, creds, normalize.JSON{}, log))
	}
	return feeds
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  linepulse [--port <N>]")
	fmt.Println("  linepulse --help")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --port N     Port number")
}
