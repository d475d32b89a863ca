package fulltext

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/blevesearch/bleve/v2"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/hyperjump/notesearch/internal/analysis"
	"github.com/hyperjump/notesearch/internal/location"
	"github.com/hyperjump/notesearch/internal/models"
)

const (
	defaultQueryCacheSize = 128

	// defaultLanguageDir names the index directory of the fallback analyzer.
	defaultLanguageDir = "default"

	// boltTimeout bounds the wait for an index's root.bolt. The lock file is
	// taken first, so the timeout only trips when something else holds it.
	boltTimeout = 5 * time.Second
)

// BleveEngine implements Engine on bleve (scorch) indexes, one directory per
// (indexName, language) under the resolver's root. Indexes are opened for the
// duration of a call, so several processes can share one root.
type BleveEngine struct {
	resolver  *location.Resolver
	handles   *handleTable
	writers   *writerLocks
	queries   *lru.Cache[string, blevequery.Query]
	cacheSize int
	logger    *zap.Logger
}

// BleveOption configures a BleveEngine.
type BleveOption func(*BleveEngine)

// WithLogger sets a logger for debug output (writes, deletes, rebuilds).
func WithLogger(l *zap.Logger) BleveOption {
	return func(e *BleveEngine) { e.logger = l }
}

// WithQueryCacheSize bounds how many parsed queries are kept for reuse.
func WithQueryCacheSize(n int) BleveOption {
	return func(e *BleveEngine) { e.cacheSize = n }
}

// NewBleveEngine returns an engine storing its indexes where resolver says.
func NewBleveEngine(resolver *location.Resolver, opts ...BleveOption) (*BleveEngine, error) {
	e := &BleveEngine{
		resolver:  resolver,
		writers:   newWriterLocks(),
		cacheSize: defaultQueryCacheSize,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cacheSize <= 0 {
		e.cacheSize = defaultQueryCacheSize
	}
	queries, err := lru.New[string, blevequery.Query](e.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create query cache: %w", err)
	}
	e.queries = queries
	e.handles = newHandleTable(e.logger)
	return e, nil
}

// locate resolves the analyzer and directory of (indexName, language). With
// create the directory and its parents are made; reads leave the disk alone.
func (e *BleveEngine) locate(indexName, language string, create bool) (*analysis.Analyzer, string, error) {
	a := analysis.Resolve(language)
	dir := a.Code
	if a == analysis.Default {
		dir = defaultLanguageDir
	}
	name := indexName + "/" + dir
	var (
		path string
		err  error
	)
	if create {
		path, err = e.resolver.LocationOf(name)
	} else {
		path, err = e.resolver.PathOf(name)
	}
	if err != nil {
		return nil, "", err
	}
	return a, path, nil
}

// acquireExisting returns a handle on the index at path for reading or
// deleting. errIndexAbsent means nothing was ever written there.
func (e *BleveEngine) acquireExisting(ctx context.Context, path string) (*handle, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, errIndexAbsent
	}
	return e.handles.acquire(ctx, path, func() (bleve.Index, error) { return openExisting(path) })
}

func isAbsent(err error) bool {
	return errors.Is(err, bleve.ErrorIndexPathDoesNotExist) || errors.Is(err, bleve.ErrorIndexMetaMissing)
}

// storeConfig is the scorch runtime config of every open and create.
func storeConfig() map[string]interface{} {
	return map[string]interface{}{"bolt_timeout": boltTimeout.String()}
}

func openError(path string, err error) error {
	if errors.Is(err, bolt.ErrTimeout) {
		return &models.StorageIOError{Op: "open index", Path: path, Err: fmt.Errorf("index held by another process: %w", err)}
	}
	return &models.StorageIOError{Op: "open index", Path: path, Err: err}
}

func openExisting(path string) (bleve.Index, error) {
	idx, err := bleve.OpenUsing(path, storeConfig())
	if isAbsent(err) {
		return nil, errIndexAbsent
	}
	if err != nil {
		return nil, openError(path, err)
	}
	return idx, nil
}

func createIndex(path string, a *analysis.Analyzer) (bleve.Index, error) {
	im, err := buildMapping(a)
	if err != nil {
		return nil, err
	}
	idx, err := bleve.NewUsing(path, im, bleve.Config.DefaultIndexType, bleve.Config.DefaultKVStore, storeConfig())
	if err != nil {
		return nil, &models.StorageIOError{Op: "create index", Path: path, Err: err}
	}
	return idx, nil
}

func openOrCreate(path string, a *analysis.Analyzer) (bleve.Index, error) {
	idx, err := openExisting(path)
	if errors.Is(err, errIndexAbsent) {
		return createIndex(path, a)
	}
	return idx, err
}

// Write indexes docs in a single commit. In append mode the batch is applied to
// the existing (or newly created) index. With createNew a fresh index is built
// in a staging directory and swapped in only after its commit succeeded, so a
// failure leaves the previous index as it was.
func (e *BleveEngine) Write(ctx context.Context, docs []*models.Document, indexName, language string, createNew bool) error {
	a, path, err := e.locate(indexName, language, true)
	if err != nil {
		return err
	}
	defer e.writers.lock(path)()
	if err := ctx.Err(); err != nil {
		return err
	}
	if createNew {
		err = e.rebuild(ctx, docs, path, a)
	} else {
		err = e.apply(ctx, "", "", docs, path, a)
	}
	if err != nil {
		return err
	}
	e.logger.Debug("index write committed",
		zap.String("index", indexName),
		zap.String("language", a.Code),
		zap.Int("documents", len(docs)),
		zap.Bool("create", createNew),
	)
	return nil
}

// apply commits one batch to the index at path, creating it when missing.
// With a non-empty key the documents whose keyField holds key are deleted in
// the same batch.
func (e *BleveEngine) apply(ctx context.Context, key, keyField string, docs []*models.Document, path string, a *analysis.Analyzer) error {
	h, err := e.handles.acquire(ctx, path, func() (bleve.Index, error) { return openOrCreate(path, a) })
	if err != nil {
		return err
	}
	defer e.handles.release(h)
	batch, err := newBatch(h.index, docs)
	if err != nil {
		return err
	}
	if key != "" {
		ids, err := findByKey(ctx, h.index, key, keyField)
		if err != nil {
			return &models.StorageIOError{Op: "find documents", Path: path, Err: err}
		}
		for _, id := range ids {
			batch.Delete(id)
		}
	}
	if batch.Size() == 0 {
		return nil
	}
	if err := h.index.Batch(batch); err != nil {
		return &models.StorageIOError{Op: "commit batch", Path: path, Err: err}
	}
	return nil
}

// findByKey returns the internal ids of the documents whose keyField holds key.
func findByKey(ctx context.Context, idx bleve.Index, key, keyField string) ([]string, error) {
	total, err := idx.DocCount()
	if err != nil || total == 0 {
		return nil, err
	}
	q := bleve.NewTermQuery(key)
	q.SetField(keyField)
	req := bleve.NewSearchRequest(q)
	req.Size = int(total)
	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

func (e *BleveEngine) rebuild(ctx context.Context, docs []*models.Document, path string, a *analysis.Analyzer) error {
	h, err := e.handles.acquire(ctx, path, nil)
	if err != nil {
		return err
	}
	defer e.handles.release(h)

	suffix := uuid.New().String()
	staging := path + ".staging-" + suffix
	idx, err := createIndex(staging, a)
	if err != nil {
		_ = os.RemoveAll(staging)
		return err
	}
	if len(docs) > 0 {
		batch, err := newBatch(idx, docs)
		if err == nil {
			err = idx.Batch(batch)
			if err != nil {
				err = &models.StorageIOError{Op: "commit batch", Path: staging, Err: err}
			}
		}
		if err != nil {
			_ = idx.Close()
			_ = os.RemoveAll(staging)
			return err
		}
	}
	if err := idx.Close(); err != nil {
		_ = os.RemoveAll(staging)
		return &models.StorageIOError{Op: "close index", Path: staging, Err: err}
	}

	old := path + ".old-" + suffix
	return e.handles.replace(h, func() error {
		if err := os.Rename(path, old); err != nil && !os.IsNotExist(err) {
			_ = os.RemoveAll(staging)
			return &models.StorageIOError{Op: "retire index", Path: path, Err: err}
		}
		if err := os.Rename(staging, path); err != nil {
			_ = os.Rename(old, path)
			_ = os.RemoveAll(staging)
			return &models.StorageIOError{Op: "install index", Path: path, Err: err}
		}
		if err := os.RemoveAll(old); err != nil {
			e.logger.Warn("failed to remove retired index", zap.String("path", old), zap.Error(err))
		}
		return nil
	})
}

// newBatch returns a batch indexing docs. Every document must carry fields.
func newBatch(idx bleve.Index, docs []*models.Document) (*bleve.Batch, error) {
	batch := idx.NewBatch()
	m := idx.Mapping()
	for _, doc := range docs {
		if doc == nil || len(doc.Fields()) == 0 {
			return nil, &models.ConfigurationError{Field: "fields", Reason: "document has no fields"}
		}
		bd, err := toBleveDocument(uuid.New().String(), doc, m)
		if err != nil {
			return nil, err
		}
		if err := batch.IndexAdvanced(bd); err != nil {
			return nil, err
		}
	}
	return batch, nil
}

// Initialize replaces the index with an empty one.
func (e *BleveEngine) Initialize(ctx context.Context, indexName, language string) error {
	return e.Write(ctx, nil, indexName, language, true)
}

// DeleteByKey removes every document whose keyField holds exactly key, in one
// commit. A missing key or a missing index is not an error.
func (e *BleveEngine) DeleteByKey(ctx context.Context, key, keyField, indexName, language string) error {
	_, path, err := e.locate(indexName, language, false)
	if err != nil {
		return err
	}
	defer e.writers.lock(path)()

	h, err := e.acquireExisting(ctx, path)
	if errors.Is(err, errIndexAbsent) {
		return nil
	}
	if err != nil {
		return err
	}
	defer e.handles.release(h)

	ids, err := findByKey(ctx, h.index, key, keyField)
	if err != nil {
		return &models.StorageIOError{Op: "find documents", Path: path, Err: err}
	}
	if len(ids) == 0 {
		return nil
	}
	batch := h.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := h.index.Batch(batch); err != nil {
		return &models.StorageIOError{Op: "commit delete", Path: path, Err: err}
	}
	e.logger.Debug("index documents deleted",
		zap.String("index", indexName),
		zap.String("key", key),
		zap.String("field", keyField),
		zap.Int("documents", len(ids)),
	)
	return nil
}

// ReplaceByKey deletes the documents whose keyField holds key and indexes docs
// in their place, in one commit. On failure the index keeps the old documents.
func (e *BleveEngine) ReplaceByKey(ctx context.Context, key, keyField string, docs []*models.Document, indexName, language string) error {
	if key == "" {
		return &models.ConfigurationError{Field: "key", Reason: "replace needs a key"}
	}
	a, path, err := e.locate(indexName, language, true)
	if err != nil {
		return err
	}
	defer e.writers.lock(path)()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.apply(ctx, key, keyField, docs, path, a); err != nil {
		return err
	}
	e.logger.Debug("index documents replaced",
		zap.String("index", indexName),
		zap.String("key", key),
		zap.Int("documents", len(docs)),
	)
	return nil
}

// Count returns the number of live documents in the last committed state.
// An index that was never written counts 0.
func (e *BleveEngine) Count(ctx context.Context, indexName, language string) (uint64, error) {
	_, path, err := e.locate(indexName, language, false)
	if err != nil {
		return 0, err
	}
	h, err := e.acquireExisting(ctx, path)
	if errors.Is(err, errIndexAbsent) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer e.handles.release(h)
	n, err := h.index.DocCount()
	if err != nil {
		return 0, &models.StorageIOError{Op: "count documents", Path: path, Err: err}
	}
	return n, nil
}

// SupportedLanguages lists the language codes with a dedicated analyzer.
func (e *BleveEngine) SupportedLanguages() []string {
	return analysis.SupportedLanguages()
}

// Close closes the indexes of calls still running.
func (e *BleveEngine) Close() error {
	return e.handles.closeAll()
}

var _ Engine = (*BleveEngine)(nil)
