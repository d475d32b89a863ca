package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/notesearch/internal/config"
	"github.com/hyperjump/notesearch/internal/models"
	"github.com/hyperjump/notesearch/internal/server"
	"github.com/hyperjump/notesearch/internal/watcher"
	"github.com/hyperjump/notesearch/pkg/utils"
)

func runServer(args []string) {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (record indexing, file events, etc.)")
	_ = fs.Parse(args)

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ensureIndex(ctx, components, logger); err != nil {
		logger.Warn("initial refresh failed", zap.Error(err))
	}

	srv := server.NewServer(
		components.Engine,
		components.Indexer,
		components.Storage,
		cfg,
		logger,
		server.WithRunHistory(components.Orchestrator),
		server.WithConfigPath(resolvedConfigPath),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})
	if len(cfg.Import.Directories) > 0 {
		dirWatcher := newImportWatcher(gctx, cfg, components, logger)
		g.Go(func() error {
			if err := dirWatcher.Start(gctx); err != nil {
				return err
			}
			dirWatcher.SyncExistingFiles()
			<-gctx.Done()
			dirWatcher.Stop()
			return nil
		})
	}
	if cfg.Watch.ConfigOrDefault() {
		cfgWatcher := watcher.NewConfigWatcher(resolvedConfigPath, cfg.Search.Language,
			func(ctx context.Context, language string) error {
				if components.Indexer.Language() == language {
					return nil
				}
				_, err := components.Indexer.SwitchLanguage(ctx, language, nil)
				return err
			},
			watcher.WithConfigLogger(logger),
			watcher.WithConfigDebounce(cfg.Watch.Debounce()),
		)
		g.Go(func() error { return cfgWatcher.Run(gctx) })
	}

	if err := g.Wait(); err != nil {
		logger.Error("server stopped", zap.Error(err))
		components.Close()
		os.Exit(1)
	}
}

// ensureIndex runs a full refresh when the index is empty but records exist,
// such as on first start or after the index root was removed.
func ensureIndex(ctx context.Context, c *Components, logger *zap.Logger) error {
	idx := c.Indexer
	docs, err := c.Engine.Count(ctx, idx.IndexName(), idx.Language())
	if err != nil || docs > 0 {
		return err
	}
	var records int64
	for _, kind := range models.Kinds {
		n, err := c.Storage.Count(ctx, kind)
		if err != nil {
			return err
		}
		records += n
	}
	if records == 0 {
		return nil
	}
	logger.Info("index empty, rebuilding", zap.Int64("records", records))
	_, err = idx.Refresh(ctx, nil)
	return err
}

// newImportWatcher watches the import directories: created or changed files
// are imported as texts, removed files delete their text.
func newImportWatcher(ctx context.Context, cfg *config.Config, c *Components, logger *zap.Logger) *watcher.Watcher {
	exts := cfg.Import.Extensions
	return watcher.NewWatcher(
		cfg.Import.Directories,
		exts,
		cfg.Import.RecursiveOrDefault(),
		func(path string) {
			if _, _, err := c.Indexer.ImportFile(ctx, c.Storage, path, exts); err != nil {
				logger.Warn("watch import file failed", zap.String("path", path), zap.Error(err))
			}
		},
		func(path string) {
			if err := c.Indexer.RemoveFile(ctx, c.Storage, path); err != nil {
				logger.Warn("watch remove file failed", zap.String("path", path), zap.Error(err))
			}
		},
		watcher.WithLogger(logger),
		watcher.WithDebounce(cfg.Watch.Debounce()),
	)
}
