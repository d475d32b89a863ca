// Package main is the notesearch CLI entry point.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hyperjump/notesearch/internal/config"
	"github.com/hyperjump/notesearch/internal/extract"
	"github.com/hyperjump/notesearch/internal/fulltext"
	"github.com/hyperjump/notesearch/internal/indexer"
	"github.com/hyperjump/notesearch/internal/location"
	"github.com/hyperjump/notesearch/internal/refresh"
	"github.com/hyperjump/notesearch/internal/storage"
	"github.com/hyperjump/notesearch/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/notesearch/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded (for saving, etc.).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	args := os.Args[2:]
	switch command {
	case "server":
		runServer(args)
	case "refresh":
		runRefresh(args)
	case "search":
		runSearch(args)
	case "count":
		runCount(args)
	case "add":
		runAdd(args)
	case "import":
		runImport(args)
	case "delete":
		runDelete(args)
	case "languages":
		runLanguages(args)
	case "status":
		runStatus(args)
	case "version", "--version", "-v":
		fmt.Printf("notesearch version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// fatalf prints to stderr and exits with status 1.
func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// Components holds initialized services.
type Components struct {
	Storage      *storage.SQLiteStorage
	Engine       *fulltext.BleveEngine
	Orchestrator *refresh.Orchestrator
	Indexer      *indexer.Indexer
}

func (c *Components) Close() {
	if c.Engine != nil {
		_ = c.Engine.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

// initializeComponents opens the record store and the index and wires the
// indexer as the store's change listener.
func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath, storage.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	engine, err := fulltext.NewBleveEngine(
		location.New(cfg.Storage.IndexRoot),
		fulltext.WithQueryCacheSize(cfg.Search.QueryCacheSize),
		fulltext.WithLogger(logger),
	)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize index engine: %w", err)
	}
	orch := refresh.New(engine, store,
		refresh.WithLogger(logger),
		refresh.WithChunking(cfg.Search.ChunkSize, cfg.Search.ChunkOverlap),
	)
	idx := indexer.NewIndexer(engine, cfg.Search.IndexName, cfg.Search.Language,
		indexer.WithLogger(logger),
		indexer.WithRefresher(orch),
		indexer.WithChunker(orch.Chunker()),
		indexer.WithExtractor(extract.NewExtractor()),
	)
	store.AddListener(idx)
	return &Components{
		Storage:      store,
		Engine:       engine,
		Orchestrator: orch,
		Indexer:      idx,
	}, nil
}

// setup loads the config, builds a logger and initializes components for a
// one-shot command.
func setup(configPath string, debug bool) (*config.Config, string, *zap.Logger, *Components) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	logger, err := utils.NewCLILogger(cfg.Debug || debug)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fatalf("Failed to initialize: %v", err)
	}
	return cfg, resolved, logger, components
}

func printUsage() {
	fmt.Println(`notesearch - Full-text search over notes, texts and persons

Usage:
  notesearch server [flags]              Start the HTTP server (and file watchers)
  notesearch refresh [flags]             Rebuild the index from all records
  notesearch search [flags] <query>      Search records
  notesearch count [flags]               Count indexed documents
  notesearch add [flags]                 Add a note, text or person
  notesearch import [flags] <path>...    Import files or directories as texts
  notesearch delete [flags] <id>         Delete a record (e.g. note:12 or 1:12)
  notesearch languages [flags]           List analyzer languages; --set switches
  notesearch status [flags]              Show record, index and disk status
  notesearch version                     Show version
  notesearch help                        Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/notesearch/config.yaml,
                     or ./config.yaml when present)
  --debug            Enable debug logging

Search Flags:
  --limit int        Number of results (default from config)
  --language string  Index language to search (default from config)
  --output string    Output format: text or json (default: text)
  --server string    Server URL; when set, search through the HTTP API

Add Flags:
  --kind string      note, text or person (default: note)
  --title string     Title (note, text) or name (person)
  --body string      Body (note, text) or biography (person)
  --author string    Author (text)
  --year int         Year (text)

Examples:
  notesearch server
  notesearch add --title "Relativity" --body "gravitation bends light"
  notesearch search gravitation
  notesearch search --output json "itemTitle:relativity"
  notesearch import ~/papers
  notesearch languages --set en
  notesearch delete note:1`)
}
