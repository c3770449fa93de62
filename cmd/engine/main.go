package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/nats-io/nats.go"

	"github.com/nearyou/nearsync/internal/adapters/http"
	natsadapter "github.com/nearyou/nearsync/internal/adapters/nats"
	"github.com/nearyou/nearsync/internal/adapters/restapi"
	"github.com/nearyou/nearsync/internal/adapters/valkey"
	"github.com/nearyou/nearsync/internal/adapters/ws"
	"github.com/nearyou/nearsync/internal/core/ports"
	"github.com/nearyou/nearsync/internal/core/usecases"
	"github.com/nearyou/nearsync/internal/pkg/config"
	"github.com/nearyou/nearsync/internal/pkg/logging"
	"github.com/nearyou/nearsync/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("nearsync-engine")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, "json", "nearsync-engine")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Dashboard API client (token source, poller, shop and promotion provider)
	api := restapi.New(cfg.API.BaseURL, cfg.API.Username, cfg.API.Password,
		time.Duration(cfg.API.TimeoutSeconds)*time.Second)

	// Cache (optional)
	var cache ports.CacheService
	if cfg.Valkey.Enabled {
		vk, err := valkey.New(cfg.Valkey.Addr, "nearsync:")
		if err != nil {
			slog.Warn("valkey unavailable", "error", err)
		} else {
			defer vk.Close()
			cache = vk
		}
	}

	// Event publisher (optional)
	var events ports.EventPublisher
	var natsConn *nats.Conn
	if cfg.NATS.Enabled {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable", "error", err)
		} else {
			defer pub.Close()
			events = pub
			natsConn = pub.Conn()
		}
	}

	// Engine
	pois := usecases.NewPOIService(api, cache, cfg.Engine.CacheTTLSeconds,
		cfg.Engine.SyntheticPOIs, time.Now().UnixNano())
	notifs := usecases.NewNotificationService(api, events, cfg.Engine.PageSize)
	tracker := usecases.NewTrackerService(pois, notifs, events,
		cfg.Engine.ViewportRadiusM, cfg.Engine.MinPOIs)

	live := usecases.NewLiveService(ws.NewDialer(cfg.Live.WSURL), api, api, tracker, events,
		usecases.LiveConfig{
			Backoff:       cfg.Live.Backoff(),
			MaxAttempts:   cfg.Live.MaxAttempts,
			FallbackAfter: cfg.Live.FallbackAfter(),
			PollInterval:  cfg.Live.PollInterval(),
		})
	live.OnTerminalFailure(func(err error) {
		slog.Error("live channel abandoned for this session", "error", err)
	})

	if err := live.Connect(ctx); err != nil {
		log.Fatalf("connect: %v", err)
	}

	deps := &http.Dependencies{
		Live:          live,
		Tracker:       tracker,
		Notifications: notifs,
		POIs:          pois,
		Profile:       api,
		Tokens:        api,
		Cache:         cache,
		NATS:          natsConn,
	}

	// Diagnostics server
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		AppName:      "NearSync Engine",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	http.SetupRoutes(app, deps)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("diagnostics server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, disconnecting...", "signal", sig.String())

	live.Disconnect()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("engine stopped")
}
