// Package indexer keeps the full-text index in step with record changes and
// imports bibliographic texts from files.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/notesearch/internal/extract"
	"github.com/hyperjump/notesearch/internal/fulltext"
	"github.com/hyperjump/notesearch/internal/models"
	"github.com/hyperjump/notesearch/internal/refresh"
	"github.com/hyperjump/notesearch/internal/storage"
)

// Refresher rebuilds a whole index; *refresh.Orchestrator implements it.
type Refresher interface {
	Rebuild(ctx context.Context, indexName, language string, progress refresh.Progress) (*refresh.Run, error)
}

// Indexer applies record changes to one logical index incrementally. It is a
// storage.Listener: saving a record replaces its documents, deleting a record
// removes them. Updates and full refreshes are serialized so that a refresh in
// a new language never races with an incremental write in the old one.
type Indexer struct {
	engine    fulltext.Engine
	indexName string
	chunker   *refresh.Chunker
	refresher Refresher
	extractor *extract.Extractor
	logger    *zap.Logger

	mu       sync.Mutex
	language string
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output (record indexed, record removed, etc.).
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithChunker splits long record bodies the same way full refreshes do.
func WithChunker(c *refresh.Chunker) IndexerOption {
	return func(idx *Indexer) { idx.chunker = c }
}

// WithRefresher enables Refresh and SwitchLanguage.
func WithRefresher(r Refresher) IndexerOption {
	return func(idx *Indexer) { idx.refresher = r }
}

// WithExtractor sets the extractor used by ImportFile. Without one, files are read as plain text.
func WithExtractor(e *extract.Extractor) IndexerOption {
	return func(idx *Indexer) { idx.extractor = e }
}

// NewIndexer returns an indexer writing to (indexName, language) through engine.
func NewIndexer(engine fulltext.Engine, indexName, language string, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		engine:    engine,
		indexName: indexName,
		language:  language,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Language returns the language incremental writes go to.
func (idx *Indexer) Language() string {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.language
}

// IndexName returns the logical index the indexer maintains.
func (idx *Indexer) IndexName() string {
	return idx.indexName
}

// RecordSaved replaces the documents of r: the documents keyed by its
// uniqueID give way to the record's current documents in one commit.
func (idx *Indexer) RecordSaved(ctx context.Context, r models.Record) error {
	docs, err := refresh.DocumentsFor(r, idx.chunker)
	if err != nil {
		return fmt.Errorf("failed to map %s: %w", r.Key(), err)
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	key := r.Key().String()
	if err := idx.engine.ReplaceByKey(ctx, key, models.FieldUniqueID, docs, idx.indexName, idx.language); err != nil {
		return fmt.Errorf("failed to index %s: %w", key, err)
	}
	idx.logger.Debug("record indexed",
		zap.String("id", key),
		zap.String("language", idx.language),
		zap.Int("documents", len(docs)),
	)
	return nil
}

// RecordDeleted removes every document of id.
func (idx *Indexer) RecordDeleted(ctx context.Context, id models.UniqueID) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if err := idx.engine.DeleteByKey(ctx, id.String(), models.FieldUniqueID, idx.indexName, idx.language); err != nil {
		return fmt.Errorf("failed to remove documents of %s: %w", id, err)
	}
	idx.logger.Debug("record removed", zap.Stringer("id", id))
	return nil
}

// Refresh rebuilds the index in the current language. A canceled rebuild
// returns the records indexed so far with refresh.ErrCanceled.
func (idx *Indexer) Refresh(ctx context.Context, progress refresh.Progress) (int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.refreshLocked(ctx, idx.language, progress)
}

// SwitchLanguage rebuilds the index in language and makes it the target of
// incremental writes. On failure or cancellation the previous language stays
// in effect.
func (idx *Indexer) SwitchLanguage(ctx context.Context, language string, progress refresh.Progress) (int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	n, err := idx.refreshLocked(ctx, language, progress)
	if err != nil {
		return n, err
	}
	if language != idx.language {
		idx.logger.Info("search language switched",
			zap.String("from", idx.language),
			zap.String("to", language),
			zap.Int("records", n),
		)
	}
	idx.language = language
	return n, nil
}

func (idx *Indexer) refreshLocked(ctx context.Context, language string, progress refresh.Progress) (int, error) {
	if idx.refresher == nil {
		return 0, errors.New("indexer has no refresher")
	}
	run, err := idx.refresher.Rebuild(ctx, idx.indexName, language, progress)
	if err != nil {
		if run != nil {
			return run.Records, err
		}
		return 0, err
	}
	if run.Canceled {
		return run.Records, refresh.ErrCanceled
	}
	return run.Records, nil
}

// TextStore is the part of storage.Storage that ImportFile needs.
type TextStore interface {
	Save(ctx context.Context, r models.Record) error
	TextBySource(ctx context.Context, path string) (*models.Text, error)
}

// ImportFile creates or updates the text imported from path. The title and
// author come from the file's metadata when present; the title falls back to
// the file name. A file already imported with the same modification time and
// size is skipped (returned with skipped=true). Saving the text through store
// notifies listeners, which indexes it.
func (idx *Indexer) ImportFile(ctx context.Context, store TextStore, path string, allowedExts []string) (text *models.Text, skipped bool, err error) {
	idx.logger.Debug("importing file", zap.String("path", path))
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, false, fmt.Errorf("absolute path: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(absPath))
	if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
		return nil, false, fmt.Errorf("extension %q not in allowed list", ext)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, false, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, false, fmt.Errorf("not a regular file: %s", absPath)
	}
	stamp := sourceStamp(info)

	existing, err := store.TextBySource(ctx, absPath)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		existing = nil
	case err != nil:
		return nil, false, err
	case existing.SourceStamp == stamp:
		idx.logger.Debug("skipping unchanged file", zap.String("path", absPath))
		return existing, true, nil
	}

	x, err := idx.extract(absPath)
	if err != nil {
		return nil, false, fmt.Errorf("extract content: %w", err)
	}
	text = &models.Text{}
	if existing != nil {
		text = existing
	}
	text.Title = x.Title
	if text.Title == "" {
		text.Title = strings.TrimSuffix(filepath.Base(absPath), filepath.Ext(absPath))
	}
	if x.Author != "" {
		text.Author = x.Author
	}
	text.Body = x.Body
	text.Source = absPath
	text.SourceStamp = stamp
	if err := store.Save(ctx, text); err != nil {
		return text, false, err
	}
	idx.logger.Debug("file imported", zap.String("path", absPath), zap.Stringer("id", text.Key()))
	return text, false, nil
}

// SourceStore is a TextStore that can also delete records.
type SourceStore interface {
	TextStore
	Delete(ctx context.Context, id models.UniqueID) error
}

// RemoveFile deletes the text imported from path. A path that was never
// imported is not an error.
func (idx *Indexer) RemoveFile(ctx context.Context, store SourceStore, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("absolute path: %w", err)
	}
	text, err := store.TextBySource(ctx, absPath)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := store.Delete(ctx, text.Key()); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	idx.logger.Debug("imported file removed", zap.String("path", absPath), zap.Stringer("id", text.Key()))
	return nil
}

// ImportDirectory walks dir recursively and imports each regular file whose
// extension is in allowedExts (if non-empty; otherwise all files). It returns
// the number of files imported or updated and stops at the first error.
func (idx *Indexer) ImportDirectory(ctx context.Context, store TextStore, dir string, allowedExts []string) (n int, err error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", absDir)
	}
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
			return nil
		}
		// Resolve symlinks so we only import regular files
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		_, skipped, importErr := idx.ImportFile(ctx, store, path, allowedExts)
		if importErr != nil {
			return importErr
		}
		if !skipped {
			n++
		}
		return nil
	})
	return n, err
}

func (idx *Indexer) extract(path string) (*extract.Extraction, error) {
	if idx.extractor != nil {
		return idx.extractor.Extract(path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &extract.Extraction{Body: string(content)}, nil
}

func sourceStamp(info os.FileInfo) string {
	return strconv.FormatInt(info.ModTime().UnixNano(), 10) + ":" + strconv.FormatInt(info.Size(), 10)
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}

var _ storage.Listener = (*Indexer)(nil)
