package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"battery-swap-backend/config"
	"battery-swap-backend/internal/api"
	"battery-swap-backend/internal/broadcast"
	"battery-swap-backend/internal/db"
	"battery-swap-backend/internal/inventory"
	"battery-swap-backend/internal/logger"
	"battery-swap-backend/internal/notification"
	"battery-swap-backend/internal/realtime"
	"battery-swap-backend/internal/store"
	"battery-swap-backend/internal/subscription"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	// An explicit CONFIG_PATH must exist; the local default may be absent.
	load := config.Load
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
		load = config.LoadOrDefault
	}

	cfg, err := load(configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", configPath).Msg("failed to load configuration")
	}
	appLog := logger.Setup(cfg.App.Env, cfg.App.LogLevel)
	appLog.Info().Str("path", configPath).Msg("configuration loaded")

	var webpushOptions *webpush.Options
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
	} else {
		appLog.Warn().Msg("VAPID keys not configured; web push mirroring disabled")
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		appLog.Fatal().Err(err).Msg("failed to initialize database")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Subscription.SeedPlans {
		if err := subscription.SeedPlans(ctx, gormDB); err != nil {
			appLog.Fatal().Err(err).Msg("failed to seed subscription plans")
		}
	}

	appStore := store.NewGormStore(gormDB)
	hub := realtime.NewHub()

	// Without NATS the hub is the only publisher. With NATS every instance
	// publishes to the bus and relays the bus back into its own hub.
	var publisher broadcast.Publisher = hub
	if cfg.Broadcast.NATSURL != "" {
		nc, err := broadcast.ConnectNATS(cfg.Broadcast.NATSURL)
		if err != nil {
			appLog.Fatal().Err(err).Str("url", cfg.Broadcast.NATSURL).Msg("failed to connect to NATS")
		}
		defer nc.Drain()
		if _, err := broadcast.Relay(nc, cfg.Broadcast.SubjectPrefix, hub); err != nil {
			appLog.Fatal().Err(err).Msg("failed to subscribe to NATS relay")
		}
		publisher = broadcast.NewNATSPublisher(nc, cfg.Broadcast.SubjectPrefix)
		appLog.Info().Str("url", cfg.Broadcast.NATSURL).Msg("cross-instance broadcast enabled")
	}

	pool := notification.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, publisher, appStore, webpushOptions)
	pool.Start(ctx)

	enforcer := subscription.NewEnforcer(gormDB, cfg.Subscription.Location)
	sweeper, err := subscription.NewSweeper(enforcer, cfg.Subscription.SweepCron)
	if err != nil {
		appLog.Fatal().Err(err).Msg("failed to schedule subscription sweep")
	}
	sweeper.Start()

	events := broadcast.NewService(appStore, pool)
	router := api.NewRouter(api.Options{
		Store:         appStore,
		Inventory:     inventory.NewService(appStore, enforcer, events),
		Enforcer:      enforcer,
		Sockets:       realtime.NewHandler(hub, cfg.Broadcast.SessionBuffer, cfg.Server.AllowedOrigins),
		WebPush:       webpushOptions,
		Logger:        appLog,
		RateLimit:     rate.Limit(cfg.Server.RateLimitPerSec),
		RateBurst:     cfg.Server.RateLimitBurst,
		CacheTTL:      time.Duration(cfg.Server.CacheTTLSeconds) * time.Second,
		ExposeMetrics: cfg.Metrics.Enabled,
	})
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		appLog.Info().Int("port", cfg.Server.Port).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal().Err(err).Msg("HTTP server ListenAndServe")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	appLog.Info().Msg("shutdown signal received, stopping services")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLog.Error().Err(err).Msg("HTTP server Shutdown")
	}
	sweeper.Stop()
	cancel()
	pool.Wait()

	appLog.Info().Msg("server gracefully stopped")
}
