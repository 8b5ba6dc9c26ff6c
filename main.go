// Command rollcall links Discord members to their Schoology accounts and
// keeps class roles and channel visibility in sync with each member's parsed
// schedule. It:
//   - Loads configuration and initializes structured logging.
//   - Serves the Discord interactions webhook and the OAuth completion
//     callback over HTTP, plus /healthz, /status, and /metrics.
//   - Holds pending authorizations in memory with a 10 minute TTL; nothing
//     persists across restarts by design.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/classof27/rollcall/config"
	"github.com/classof27/rollcall/discordapi"
	"github.com/classof27/rollcall/flow"
	"github.com/classof27/rollcall/schoology"
	"github.com/classof27/rollcall/server"
	"github.com/classof27/rollcall/syncer"
	"github.com/classof27/rollcall/telemetry"
	"github.com/classof27/rollcall/tokenstore"
)

func main() {
	// Load .env file if present (local dev convenience only; production
	// relies on real env)
	_ = godotenv.Load(".env")

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	var handler slog.Handler
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.ValidateLinkReady(); err != nil {
		slog.Error("configuration incomplete", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("rollcall", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := tokenstore.New(tokenstore.WithTTL(cfg.TokenTTL))
	store.StartSweeper(ctx, time.Minute)

	schoologyClient := &schoology.Client{
		ConsumerKey:    cfg.SchoologyKey,
		ConsumerSecret: cfg.SchoologySecret,
		Domain:         cfg.SchoologyDomain,
	}
	discordClient := &discordapi.Client{
		BotToken: cfg.DiscordBotToken,
		AppID:    cfg.DiscordAppID,
	}
	sync := &syncer.Synchronizer{
		Platform:     discordClient,
		Alternates:   cfg.ChannelAlternates,
		MaintainerID: cfg.MaintainerUserID,
	}
	controller := &flow.Controller{
		Store:           store,
		Schoology:       schoologyClient,
		Sync:            sync,
		CallbackURL:     cfg.CallbackURL,
		CohortSectionID: cfg.CohortSectionID,
	}

	handlers := server.NewHandlers(cfg, controller, discordClient, store)

	slog.Info("starting rollcall",
		slog.String("addr", cfg.HTTPAddr),
		slog.String("schoology_domain", cfg.SchoologyDomain),
		slog.Duration("token_ttl", cfg.TokenTTL))

	go func() {
		if err := server.Start(ctx, handlers, cfg.HTTPAddr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
}
