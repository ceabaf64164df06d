// Package main is the entrypoint for the silvergate gateway.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/silversurfers/silvergate/internal/authgw"
	"github.com/silversurfers/silvergate/internal/browserstore"
	"github.com/silversurfers/silvergate/internal/cache"
	"github.com/silversurfers/silvergate/internal/config"
	"github.com/silversurfers/silvergate/internal/credential"
	"github.com/silversurfers/silvergate/internal/httpclient"
	"github.com/silversurfers/silvergate/internal/invite"
	"github.com/silversurfers/silvergate/internal/ratelimit"
	"github.com/silversurfers/silvergate/internal/server"
	"github.com/silversurfers/silvergate/internal/web"

	// Register browser-state store drivers
	_ "github.com/silversurfers/silvergate/internal/browserstore/loader"
	// Register cache drivers
	_ "github.com/silversurfers/silvergate/internal/cache/loader"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to TOML config file (optional)")
	modeFlag := flag.String("mode", "", "Operating mode: prod or dev (overrides config)")
	listenAddr := flag.String("listen", "", "Listen address (overrides config)")
	externalOrigin := flag.String("external-origin", "", "External origin (overrides config)")
	apiOrigin := flag.String("api-origin", "", "SilverSurfers API origin (overrides config)")
	tlsMode := flag.String("tls-mode", "", "TLS mode: off, static, selfsigned, or acme (overrides config)")
	storeDriver := flag.String("store-driver", "", "Browser-state store driver: memory, json, or sqlite (overrides config)")
	cacheDriver := flag.String("cache-driver", "", "Cache driver: memory or valkey (overrides config)")
	flag.Parse()

	// Bootstrap logger for config loading errors
	bootstrapLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Load config with precedence: mode preset -> TOML file -> env -> CLI flags
	cfg, err := config.Load(config.LoaderOptions{
		ConfigPath: *configPath,
		ModeFlag:   *modeFlag,
		FlagOverrides: config.FlagOverrides{
			ListenAddr:     listenAddr,
			ExternalOrigin: externalOrigin,
			APIOrigin:      apiOrigin,
			TLSMode:        tlsMode,
			StoreDriver:    storeDriver,
			CacheDriver:    cacheDriver,
		},
		Logger: bootstrapLogger,
	})
	if err != nil {
		bootstrapLogger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Mode == "dev" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Log effective config with secrets redacted
	logger.Info("effective configuration", "config", cfg.Redacted())

	// Scope keeper seals the browser scope cookie
	sealKey, err := cfg.SealKeyBytes()
	if err != nil {
		logger.Error("invalid scope seal key", "error", err)
		os.Exit(1)
	}
	keeper, err := credential.NewScopeKeeper(sealKey)
	if err != nil {
		logger.Error("failed to create scope keeper", "error", err)
		os.Exit(1)
	}

	// Browser-state store holds credentials, intents and last-visited paths
	slots, err := browserstore.New(&browserstore.DriverConfig{
		Driver:  cfg.Store.Driver,
		DataDir: cfg.Store.DataDir,
	})
	if err != nil {
		logger.Error("failed to create browser-state store", "error", err)
		os.Exit(1)
	}
	if err := slots.Init(context.Background()); err != nil {
		logger.Error("failed to initialize browser-state store", "error", err)
		os.Exit(1)
	}
	defer slots.Close()
	logger.Info("browser-state store ready", "driver", slots.Name())

	// Cache backs the rate limiter, the submit latch and the invite carrier
	cacheName := cfg.Cache.Driver
	if cacheName == "" {
		cacheName = "memory"
	}
	cacheInstance, err := cache.NewFromConfig(cacheName, cfg.Cache.Drivers)
	if err != nil {
		logger.Error("failed to create cache", "error", err)
		os.Exit(1)
	}

	// Outbound client for the SilverSurfers API
	httpClient := httpclient.New(&httpclient.Config{
		TimeoutMS:          cfg.OutboundHTTP.TimeoutMS,
		ConnectTimeoutMS:   cfg.OutboundHTTP.ConnectTimeoutMS,
		MaxResponseBytes:   cfg.OutboundHTTP.MaxResponseBytes,
		InsecureSkipVerify: cfg.OutboundHTTP.InsecureSkipVerify,
	})
	gateway := authgw.New(httpClient, cfg.APIOrigin)

	limiter := ratelimit.New(cacheInstance, &ratelimit.Config{
		RequestsPerWindow: cfg.RateLimit.RequestsPerWindow,
		Window:            time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
		KeyPrefix:         "ratelimit:",
	})

	handler := web.New(web.Options{
		Slots:          slots,
		Keeper:         keeper,
		Gateway:        gateway,
		Carrier:        invite.NewCarrier(cacheInstance),
		Latch:          ratelimit.NewLatch(cacheInstance),
		Limiter:        limiter,
		GoogleClientID: cfg.GoogleClientID,
		SecureCookies:  cfg.TLS.Mode != "off",
	})

	srv := server.New(cfg, handler.Routes(), logger)

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(ctx); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("server started, press Ctrl+C to stop")

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
