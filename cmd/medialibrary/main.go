package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mantonx/medialibrary/internal/config"
	"github.com/mantonx/medialibrary/internal/database"
	"github.com/mantonx/medialibrary/internal/events"
	"github.com/mantonx/medialibrary/internal/logger"
	"github.com/mantonx/medialibrary/internal/modules/modulemanager"
	"github.com/mantonx/medialibrary/internal/server"
	"github.com/mantonx/medialibrary/internal/supervisor"

	// Modules register themselves on import
	_ "github.com/mantonx/medialibrary/internal/modules/catalogmodule"
	_ "github.com/mantonx/medialibrary/internal/modules/databasemodule"
	_ "github.com/mantonx/medialibrary/internal/modules/importmodule"
	_ "github.com/mantonx/medialibrary/internal/modules/usersmodule"
)

const eventBufferSize = 256

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "medialibrary: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", defaultConfigPath(), "path to the YAML configuration file")
	flag.Parse()

	if err := config.Load(*configPath); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg := config.Get()
	logger.Configure(logger.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	if err := database.Initialize(cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()
	db := database.GetDB()

	events.SetGlobalEventBus(events.NewEventBus(eventBufferSize))

	if err := modulemanager.LoadAll(db, cfg.Modules.Disabled); err != nil {
		return fmt.Errorf("failed to load modules: %w", err)
	}

	config.AddWatcher(func(oldCfg, newCfg *config.Config) {
		if oldCfg.Logging.Level != newCfg.Logging.Level {
			logger.SetLevel(newCfg.Logging.Level)
		}
		if err := modulemanager.Registry.ReloadConfig(newCfg); err != nil {
			logger.Error("modules rejected configuration reload", "error", err)
		}
	})

	router := server.NewRouter(cfg, modulemanager.Registry, db)
	tree := supervisor.New(logger.Named("supervisor"), supervisor.DefaultConfig())
	tree.AddAPI(supervisor.NewHTTPService(server.NewHTTPServer(cfg.Server, router), 10*time.Second))
	for _, svc := range modulemanager.Registry.BackgroundServices() {
		tree.AddJob(svc)
	}
	if *configPath != "" {
		tree.AddJob(supervisor.NewFuncService("config-watcher", config.Watch))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting medialibrary", "addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))
	err := tree.Serve(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if shutdownErr := modulemanager.Registry.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Error("module shutdown failed", "error", shutdownErr)
	}
	if report, reportErr := tree.UnstoppedServiceReport(); reportErr == nil && len(report) > 0 {
		logger.Warn("services did not stop in time", "count", len(report))
	}

	if err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// defaultConfigPath prefers MEDIALIB_CONFIG, then ./medialibrary.yaml when it exists
func defaultConfigPath() string {
	if path := os.Getenv("MEDIALIB_CONFIG"); path != "" {
		return path
	}
	if _, err := os.Stat("medialibrary.yaml"); err == nil {
		return "medialibrary.yaml"
	}
	return ""
}
