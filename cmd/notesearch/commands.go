package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/notesearch/internal/cli"
	"github.com/hyperjump/notesearch/internal/config"
	"github.com/hyperjump/notesearch/internal/models"
	"github.com/hyperjump/notesearch/internal/refresh"
	"github.com/hyperjump/notesearch/internal/storage"
)

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves any flags (and their values) that appear after the
// positional arguments to the front so that flag.Parse() sees them. Go's flag
// package stops at the first non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// parseRecordRef accepts "<kind>:<id>" with a kind name or number, e.g.
// "note:12" or "1:12".
func parseRecordRef(s string) (models.UniqueID, error) {
	if id, err := models.ParseUniqueID(s); err == nil {
		return validRef(id, s)
	}
	kindPart, idPart, ok := strings.Cut(s, ":")
	if !ok {
		return models.UniqueID{}, fmt.Errorf("invalid record id %q (want kind:id)", s)
	}
	kind, err := models.ParseKind(kindPart)
	if err != nil {
		return models.UniqueID{}, err
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return models.UniqueID{}, fmt.Errorf("invalid record id %q: %w", s, err)
	}
	return validRef(models.UniqueID{Kind: kind, ID: id}, s)
}

func validRef(id models.UniqueID, s string) (models.UniqueID, error) {
	switch id.Kind {
	case models.KindNote, models.KindText, models.KindPerson:
	default:
		return models.UniqueID{}, fmt.Errorf("invalid record id %q: unknown kind", s)
	}
	if id.ID <= 0 {
		return models.UniqueID{}, fmt.Errorf("invalid record id %q: id must be positive", s)
	}
	return id, nil
}

// progressPrinter reports refresh progress and cancels on ctx.
type progressPrinter struct {
	ctx context.Context
	w   io.Writer
}

func (p *progressPrinter) Canceled() bool { return p.ctx.Err() != nil }

func (p *progressPrinter) KindDone(kind models.Kind, n int) {
	fmt.Fprintf(p.w, "  %-7s %d\n", kind.String()+"s", n)
}

func runRefresh(args []string) {
	fs := flag.NewFlagSet("refresh", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(args)

	_, _, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	idx := components.Indexer
	fmt.Printf("Refreshing index %q (language %q)\n", idx.IndexName(), idx.Language())
	start := time.Now()
	n, err := idx.Refresh(ctx, &progressPrinter{ctx: ctx, w: os.Stdout})
	if errors.Is(err, refresh.ErrCanceled) {
		fmt.Printf("Refresh canceled after %d records\n", n)
		return
	}
	if err != nil {
		fatalf("Refresh failed: %v", err)
	}
	fmt.Printf("Indexed %d records in %s\n", n, time.Since(start).Round(time.Millisecond))
}

func runSearch(args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	serverURL := fs.String("server", "", "server URL; when set, search through the HTTP API")
	limit := fs.Int("limit", 0, "number of results (default from config)")
	language := fs.String("language", "", "index language (default from config)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(args))

	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		fmt.Fprintln(os.Stderr, "Usage: notesearch search [flags] <query>")
		fs.PrintDefaults()
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}
	query := &models.SearchQuery{Query: queryStr, Limit: *limit, Language: *language}

	if *serverURL != "" {
		response, err := searchViaHTTP(*serverURL, query)
		if err != nil {
			fatalf("Search failed: %v", err)
		}
		if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
			fatalf("Output failed: %v", err)
		}
		return
	}

	cfg, _, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()
	response, err := search(context.Background(), cfg, components, query)
	if err != nil {
		fatalf("Search failed: %v", err)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

// search validates query against the config limits and runs it in the
// indexer's language unless the query names one.
func search(ctx context.Context, cfg *config.Config, c *Components, query *models.SearchQuery) (*models.SearchResponse, error) {
	if err := query.Validate(cfg.Search.DefaultLimit, cfg.Search.MaxHits); err != nil {
		return nil, err
	}
	if query.Language == "" {
		query.Language = c.Indexer.Language()
	}
	start := time.Now()
	results, err := c.Engine.Search(ctx, query.Query, c.Indexer.IndexName(), query.Language, query.Limit)
	if err != nil {
		return nil, err
	}
	return &models.SearchResponse{
		Results:   results,
		Total:     len(results),
		QueryTime: time.Since(start).Milliseconds(),
		Query:     query.Query,
		Language:  query.Language,
	}, nil
}

func runCount(args []string) {
	fs := flag.NewFlagSet("count", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	language := fs.String("language", "", "index language (default from config)")
	_ = fs.Parse(args)

	_, _, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()
	lang := *language
	if lang == "" {
		lang = components.Indexer.Language()
	}
	n, err := components.Engine.Count(context.Background(), components.Indexer.IndexName(), lang)
	if err != nil {
		fatalf("Count failed: %v", err)
	}
	fmt.Println(n)
}

// newRecord builds a record of kind from the add flags.
func newRecord(kind models.Kind, title, body, author string, year int) (models.Record, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("--title is required")
	}
	switch kind {
	case models.KindNote:
		return &models.Note{Title: title, Body: body}, nil
	case models.KindText:
		return &models.Text{Title: title, Body: body, Author: author, Year: year}, nil
	case models.KindPerson:
		return &models.Person{Name: title, Biography: body}, nil
	}
	return nil, fmt.Errorf("unknown record kind %s", kind)
}

func runAdd(args []string) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	kindName := fs.String("kind", "note", "record kind: note, text or person")
	title := fs.String("title", "", "title (note, text) or name (person)")
	body := fs.String("body", "", "body (note, text) or biography (person)")
	author := fs.String("author", "", "author (text)")
	year := fs.Int("year", 0, "year (text)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(args)

	kind, err := models.ParseKind(*kindName)
	if err != nil {
		fatalf("%v", err)
	}
	rec, err := newRecord(kind, *title, *body, *author, *year)
	if err != nil {
		fatalf("%v", err)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}

	_, _, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()
	if err := components.Storage.Save(context.Background(), rec); err != nil {
		fatalf("Save failed: %v", err)
	}
	if err := cli.WriteRecord(os.Stdout, rec, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runImport(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(argsReorder(args))
	if fs.NArg() < 1 {
		fatalf("Usage: notesearch import [flags] <file|directory>...")
	}

	cfg, _, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	exts := cfg.Import.Extensions
	total := 0
	for _, path := range fs.Args() {
		info, err := os.Stat(path)
		if err != nil {
			fatalf("Import failed: %v", err)
		}
		if info.IsDir() {
			n, err := components.Indexer.ImportDirectory(ctx, components.Storage, path, exts)
			total += n
			if err != nil {
				fatalf("Import of %s failed after %d files: %v", path, n, err)
			}
			continue
		}
		text, skipped, err := components.Indexer.ImportFile(ctx, components.Storage, path, exts)
		if err != nil {
			fatalf("Import of %s failed: %v", path, err)
		}
		if skipped {
			fmt.Printf("Unchanged: %s (%s)\n", path, text.Key())
			continue
		}
		total++
		fmt.Printf("Imported: %s (%s)\n", path, text.Key())
	}
	fmt.Printf("%d files imported\n", total)
}

func runDelete(args []string) {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(argsReorder(args))
	if fs.NArg() != 1 {
		fatalf("Usage: notesearch delete [flags] <kind:id>")
	}
	id, err := parseRecordRef(fs.Arg(0))
	if err != nil {
		fatalf("%v", err)
	}

	_, _, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()
	if err := components.Storage.Delete(context.Background(), id); err != nil {
		fatalf("Deletion failed: %v", err)
	}
	fmt.Printf("Record deleted: %s\n", id)
}

func runLanguages(args []string) {
	fs := flag.NewFlagSet("languages", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	set := fs.String("set", "", "switch the search language (rebuilds the index and saves the config); \"default\" selects the language-neutral analyzer")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(args)

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}
	cfg, resolved, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	if *set != "" {
		language := *set
		if language == "default" {
			language = ""
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		n, err := components.Indexer.SwitchLanguage(ctx, language, &progressPrinter{ctx: ctx, w: os.Stdout})
		if err != nil {
			fatalf("Language switch failed: %v", err)
		}
		cfg.Search.Language = language
		if err := config.Save(resolved, cfg); err != nil {
			fatalf("Index rebuilt (%d records) but saving config failed: %v", n, err)
		}
		fmt.Printf("Reindexed %d records\n", n)
	}
	if err := cli.WriteLanguages(os.Stdout, components.Indexer.Language(), components.Engine.SupportedLanguages(), format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

// statusResponse mirrors the server's status endpoint.
type statusResponse struct {
	Index       string           `json:"index"`
	Language    string           `json:"language"`
	Records     map[string]int64 `json:"records"`
	Documents   uint64           `json:"documents"`
	DiskUsage   *storage.Usage   `json:"disk_usage,omitempty"`
	LastRefresh interface{}      `json:"last_refresh,omitempty"`
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	serverURL := fs.String("server", "", "server URL; when set, read status from the HTTP API")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(args)

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}
	var status *statusResponse
	if *serverURL != "" {
		status, err = statusViaHTTP(*serverURL)
		if err != nil {
			fatalf("Status failed: %v", err)
		}
	} else {
		cfg, _, logger, components := setup(*configPath, *debug)
		defer logger.Sync()
		defer components.Close()
		status, err = collectStatus(context.Background(), cfg, components)
		if err != nil {
			fatalf("Status failed: %v", err)
		}
	}
	if format == cli.OutputJSON {
		_ = cli.WriteJSON(os.Stdout, status)
		return
	}
	writeStatusText(os.Stdout, status)
}

func collectStatus(ctx context.Context, cfg *config.Config, c *Components) (*statusResponse, error) {
	status := &statusResponse{
		Index:    c.Indexer.IndexName(),
		Language: c.Indexer.Language(),
		Records:  make(map[string]int64, len(models.Kinds)),
	}
	for _, kind := range models.Kinds {
		n, err := c.Storage.Count(ctx, kind)
		if err != nil {
			return nil, err
		}
		status.Records[kind.String()] = n
	}
	docs, err := c.Engine.Count(ctx, status.Index, status.Language)
	if err != nil {
		return nil, err
	}
	status.Documents = docs
	if usage, err := storage.MeasureUsage(cfg.Storage.DatabasePath, cfg.Storage.IndexRoot); err == nil {
		status.DiskUsage = &usage
	}
	return status, nil
}

func writeStatusText(w io.Writer, s *statusResponse) {
	language := s.Language
	if language == "" {
		language = "(language-neutral)"
	}
	fmt.Fprintf(w, "Index:     %s\n", s.Index)
	fmt.Fprintf(w, "Language:  %s\n", language)
	for _, kind := range models.Kinds {
		name := kind.String()
		label := strings.ToUpper(name[:1]) + name[1:] + "s:"
		fmt.Fprintf(w, "%-10s %d\n", label, s.Records[name])
	}
	fmt.Fprintf(w, "Documents: %d\n", s.Documents)
	if s.DiskUsage != nil {
		fmt.Fprintf(w, "Disk:      %s database, %s index\n", formatBytes(s.DiskUsage.DatabaseBytes), formatBytes(s.DiskUsage.IndexBytes))
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
