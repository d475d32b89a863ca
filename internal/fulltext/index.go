// Package fulltext provides the full-text index and query engines.
package fulltext

import (
	"context"

	"github.com/hyperjump/notesearch/internal/models"
)

// Engine is the indexing backend used by the refresh orchestrator, the
// incremental indexer and the API. BleveEngine is the production implementation.
//
// Every physical index is addressed by (indexName, language). Writes to one
// index must not be issued concurrently by uncoordinated writers; reads run
// against the last committed state.
type Engine interface {
	// Write appends docs in one commit. With createNew the index is rebuilt from docs alone.
	Write(ctx context.Context, docs []*models.Document, indexName, language string, createNew bool) error
	// Initialize wipes the index and leaves it empty.
	Initialize(ctx context.Context, indexName, language string) error
	// DeleteByKey removes every document whose keyField equals key exactly.
	DeleteByKey(ctx context.Context, key, keyField, indexName, language string) error
	// ReplaceByKey deletes the documents keyed by key and adds docs, in one commit.
	ReplaceByKey(ctx context.Context, key, keyField string, docs []*models.Document, indexName, language string) error
	// Count returns the number of live documents.
	Count(ctx context.Context, indexName, language string) (uint64, error)
	// Search returns at most maxHits results ordered by descending relevance.
	Search(ctx context.Context, query, indexName, language string, maxHits int) ([]models.Result, error)
	// SupportedLanguages lists the language codes with a dedicated analyzer.
	SupportedLanguages() []string
	Close() error
}
