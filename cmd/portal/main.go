// Command portal serves the NeuralLiquid liquidity portal pages and theme API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/neuralliquid/portal/internal/config"
	"github.com/neuralliquid/portal/internal/dashboard"
	"github.com/neuralliquid/portal/internal/event"
	"github.com/neuralliquid/portal/internal/server"
	"github.com/neuralliquid/portal/internal/settings"
	"github.com/neuralliquid/portal/internal/version"
	"github.com/neuralliquid/portal/internal/ws"
	"go.uber.org/zap"
)

func main() {
	// Subcommand dispatch (before flag.Parse).
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version":
			fmt.Println(version.Info())
			return
		case "resolve":
			os.Exit(runResolve(os.Args[2:], os.Stdout, os.Stderr))
		}
	}

	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	// Load configuration (before logger, so log level/format can be configured).
	viperCfg, err := server.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(viperCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("portal server starting", zap.String("version", version.Short()))

	if f := viperCfg.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded",
			zap.String("component", "config"),
			zap.String("source", f),
		)
	} else {
		logger.Warn("no configuration file found, using defaults",
			zap.String("component", "config"),
		)
	}

	cfg, err := config.Load(viperCfg)
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	prefs, err := openPreferences(ctx, cfg.Preferences, viperCfg.GetString("database.dsn"), logger.Named("prefstore"))
	if err != nil {
		logger.Fatal("failed to open preference store", zap.Error(err))
	}
	defer prefs.Close()

	bus := event.NewBus(logger.Named("event"))

	provider, err := settings.NewProvider(cfg.Theme, prefs.Store, bus, logger.Named("theme"),
		"/healthz", "/readyz", "/metrics", "/api/v1/health", "/api/v1/ws/theme")
	if err != nil {
		logger.Fatal("failed to create theme provider", zap.Error(err))
	}
	settingsHandler := settings.NewHandler(provider, logger.Named("settings"))
	wsHandler := ws.NewHandler(provider, bus, logger.Named("ws"))
	pages, err := dashboard.NewHandler(logger.Named("dashboard"))
	if err != nil {
		logger.Fatal("failed to load page templates", zap.Error(err))
	}

	var srvCfg server.Config
	if err := viperCfg.UnmarshalKey("server", &srvCfg); err != nil {
		logger.Fatal("invalid server configuration", zap.Error(err))
	}
	addr := srvCfg.Addr()
	readyCheck := server.ReadinessChecker(prefs.Store.Ping)
	srv := server.New(addr, logger, readyCheck, provider.Middleware, pages, settingsHandler, wsHandler)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	logger.Info("portal server ready",
		zap.String("addr", addr),
		zap.String("preferences", cfg.Preferences.Backend),
		zap.Stringer("default_theme", provider.Defaults()),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	logger.Info("portal server stopped")
}
