package main

//	@title			coldguard API
//	@version		0.1.0
//	@description	Hybrid anomaly detection for cold-storage temperature readings.
//	@BasePath		/api/v1

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/HerbHall/coldguard/api/swagger"
	"github.com/HerbHall/coldguard/internal/archive"
	"github.com/HerbHall/coldguard/internal/config"
	"github.com/HerbHall/coldguard/internal/detector"
	"github.com/HerbHall/coldguard/internal/event"
	"github.com/HerbHall/coldguard/internal/ingest"
	"github.com/HerbHall/coldguard/internal/registry"
	"github.com/HerbHall/coldguard/internal/server"
	"github.com/HerbHall/coldguard/internal/store"
	"github.com/HerbHall/coldguard/internal/version"
	"github.com/HerbHall/coldguard/internal/ws"
	"github.com/HerbHall/coldguard/pkg/plugin"
	"go.uber.org/zap"
)

func main() {
	// Subcommand dispatch (before flag.Parse).
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "simulate":
			os.Exit(runSimulate(os.Args[2:]))
		case "history":
			os.Exit(runHistory(os.Args[2:]))
		case "version":
			fmt.Println(version.Info())
			return
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
	cfg := config.New(viperCfg)
	srvCfg, err := server.ServerConfig(viperCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid server configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(viperCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("coldguard server starting", zap.String("version", version.Short()))

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

	dbPath := viperCfg.GetString("database.path")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		logger.Fatal("failed to create database directory", zap.Error(err))
	}
	db, err := store.New(dbPath)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := db.CheckVersion(ctx, version.Short()); err != nil {
		logger.Fatal("database schema check failed", zap.Error(err))
	}
	logger.Info("database initialized",
		zap.String("component", "database"),
		zap.String("path", dbPath),
	)

	bus := event.NewBus(logger.Named("event"))
	reg := registry.New(logger.Named("registry"))

	det := detector.New()
	modules := []plugin.Plugin{
		det,
		ingest.New(),
		archive.New(),
	}
	for _, m := range modules {
		if err := reg.Register(m); err != nil {
			logger.Fatal("failed to register plugin", zap.Error(err))
		}
	}

	if err := reg.Validate(); err != nil {
		logger.Fatal("plugin validation failed", zap.Error(err))
	}

	if err := reg.InitAll(ctx, func(name string) plugin.Dependencies {
		return plugin.Dependencies{
			Config:  cfg.Sub("plugins." + name),
			Logger:  logger.Named(name),
			Store:   db,
			Bus:     bus,
			Plugins: reg,
		}
	}); err != nil {
		logger.Fatal("failed to initialize plugins", zap.Error(err))
	}

	if err := reg.StartAll(ctx); err != nil {
		logger.Fatal("failed to start plugins", zap.Error(err))
	}
	for name, reason := range reg.Disabled() {
		logger.Warn("plugin not running", zap.String("name", name), zap.String("reason", reason))
	}

	wsHandler := ws.NewHandler(bus, logger.Named("ws"), srvCfg.WSOrigins...)
	defer wsHandler.Close()

	readyCheck := server.ReadinessChecker(func(ctx context.Context) error {
		return db.DB().PingContext(ctx)
	})
	srv := server.New(srvCfg, reg, logger, readyCheck, det, wsHandler)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	logger.Info("coldguard server ready", zap.String("addr", srvCfg.Addr()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	// Deliver queued readings to archive and ws before their plugins stop.
	if err := bus.Close(shutdownCtx); err != nil {
		logger.Warn("event bus did not drain", zap.Error(err), zap.Uint64("dropped", bus.Dropped()))
	}
	if err := reg.StopAll(shutdownCtx); err != nil {
		logger.Error("plugin shutdown errors", zap.Error(err))
	}

	logger.Info("coldguard server stopped")
}
