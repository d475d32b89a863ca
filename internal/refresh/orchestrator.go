// Package refresh rebuilds a full-text index from every record in the record store.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/notesearch/internal/fulltext"
	"github.com/hyperjump/notesearch/internal/models"
)

var (
	// ErrInProgress is returned when a refresh is requested while another one runs.
	ErrInProgress = errors.New("refresh already in progress")
	// ErrCanceled reports a refresh that stopped before every kind was written.
	ErrCanceled = errors.New("refresh canceled")
)

// RecordStore is the read-only record source of a full reindex.
type RecordStore interface {
	Notes(ctx context.Context) ([]models.Record, error)
	Texts(ctx context.Context) ([]models.Record, error)
	Persons(ctx context.Context) ([]models.Record, error)
}

// Progress receives progress of a refresh and may ask it to stop. Canceled is
// checked before each record kind.
type Progress interface {
	Canceled() bool
	KindDone(kind models.Kind, n int)
}

type nopProgress struct{}

func (nopProgress) Canceled() bool                { return false }
func (nopProgress) KindDone(_ models.Kind, _ int) {}

// Run describes a finished refresh.
type Run struct {
	IndexName string        `json:"index_name"`
	Language  string        `json:"language"`
	Records   int           `json:"records"`
	Canceled  bool          `json:"canceled"`
	Started   time.Time     `json:"started"`
	Duration  time.Duration `json:"duration"`
	Err       string        `json:"error,omitempty"`
}

// Orchestrator drives full reindexes through an Engine.
type Orchestrator struct {
	engine  fulltext.Engine
	store   RecordStore
	chunker *Chunker
	logger  *zap.Logger

	running sync.Mutex
	mu      sync.Mutex
	last    *Run
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets a logger for refresh progress.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithChunking splits record bodies into windows of size words sharing overlap
// words. Without it every record becomes a single document.
func WithChunking(size, overlap int) Option {
	return func(o *Orchestrator) { o.chunker = NewChunker(size, overlap) }
}

// New returns an orchestrator reindexing store's records into engine.
func New(engine fulltext.Engine, store RecordStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		engine: engine,
		store:  store,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Refresh wipes (indexName, language) and reindexes notes, texts and persons,
// in that order, with one write per kind. It returns the number of records
// indexed. When progress is canceled (or ctx is done) before a kind starts,
// Refresh stops and returns the records indexed so far with a nil error; kinds
// already written stay in the index.
func (o *Orchestrator) Refresh(ctx context.Context, indexName, language string, progress Progress) (int, error) {
	run, err := o.Rebuild(ctx, indexName, language, progress)
	if run == nil {
		return 0, err
	}
	return run.Records, err
}

// Rebuild is Refresh reporting the finished Run, so callers can tell a
// canceled (partial) rebuild from a complete one. The Run is nil only when
// another refresh was in progress.
func (o *Orchestrator) Rebuild(ctx context.Context, indexName, language string, progress Progress) (*Run, error) {
	if !o.running.TryLock() {
		return nil, ErrInProgress
	}
	defer o.running.Unlock()
	if progress == nil {
		progress = nopProgress{}
	}

	run := &Run{IndexName: indexName, Language: language, Started: time.Now()}
	total, err := o.refresh(ctx, indexName, language, progress, run)
	run.Records = total
	run.Duration = time.Since(run.Started)
	if err != nil {
		run.Err = err.Error()
	}
	o.mu.Lock()
	o.last = run
	o.mu.Unlock()
	result := *run
	return &result, err
}

func (o *Orchestrator) refresh(ctx context.Context, indexName, language string, progress Progress, run *Run) (int, error) {
	if err := o.engine.Initialize(ctx, indexName, language); err != nil {
		return 0, fmt.Errorf("failed to initialize index %q: %w", indexName, err)
	}
	o.logger.Info("refresh started", zap.String("index", indexName), zap.String("language", language))

	total := 0
	for _, kind := range models.Kinds {
		if progress.Canceled() || ctx.Err() != nil {
			run.Canceled = true
			o.logger.Info("refresh canceled",
				zap.String("index", indexName),
				zap.Stringer("before", kind),
				zap.Int("records", total),
			)
			return total, nil
		}
		n, err := o.refreshKind(ctx, kind, indexName, language)
		if err != nil {
			return total, err
		}
		total += n
		progress.KindDone(kind, n)
		o.logger.Debug("kind reindexed", zap.Stringer("kind", kind), zap.Int("records", n))
	}
	o.logger.Info("refresh finished", zap.String("index", indexName), zap.Int("records", total))
	return total, nil
}

func (o *Orchestrator) refreshKind(ctx context.Context, kind models.Kind, indexName, language string) (int, error) {
	records, err := o.load(ctx, kind)
	if err != nil {
		return 0, fmt.Errorf("failed to load %s records: %w", kind, err)
	}
	docs := make([]*models.Document, 0, len(records))
	for _, r := range records {
		rd, err := DocumentsFor(r, o.chunker)
		if err != nil {
			return 0, fmt.Errorf("failed to map %s: %w", r.Key(), err)
		}
		docs = append(docs, rd...)
	}
	if err := o.engine.Write(ctx, docs, indexName, language, false); err != nil {
		return 0, fmt.Errorf("failed to write %s records: %w", kind, err)
	}
	return len(records), nil
}

func (o *Orchestrator) load(ctx context.Context, kind models.Kind) ([]models.Record, error) {
	switch kind {
	case models.KindNote:
		return o.store.Notes(ctx)
	case models.KindText:
		return o.store.Texts(ctx)
	case models.KindPerson:
		return o.store.Persons(ctx)
	default:
		return nil, fmt.Errorf("unknown record kind %s", kind)
	}
}

// Chunker returns the chunker used to map records, nil when chunking is off.
func (o *Orchestrator) Chunker() *Chunker {
	return o.chunker
}

// LastRun returns the most recent finished refresh, or nil.
func (o *Orchestrator) LastRun() *Run {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.last == nil {
		return nil
	}
	run := *o.last
	return &run
}
