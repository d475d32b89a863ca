package fulltext

import (
	"context"
	"errors"
	"strings"

	"github.com/blevesearch/bleve/v2"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"go.uber.org/zap"

	"github.com/hyperjump/notesearch/internal/models"
)

// ParseQuery parses queryText with bleve's query string syntax. Unqualified
// terms target the index's default field (itemFull) and are analyzed with the
// index language's analyzer when the query runs.
func ParseQuery(queryText string) (blevequery.Query, error) {
	q, err := blevequery.NewQueryStringQuery(queryText).Parse()
	if err != nil {
		return nil, &models.QuerySyntaxError{Query: queryText, Err: err}
	}
	return q, nil
}

// parse returns the parsed form of queryText, reusing earlier parses. Parsed
// queries are only read while searching, so one value serves concurrent calls.
func (e *BleveEngine) parse(queryText string) (blevequery.Query, error) {
	if q, ok := e.queries.Get(queryText); ok {
		return q, nil
	}
	q, err := ParseQuery(queryText)
	if err != nil {
		return nil, err
	}
	e.queries.Add(queryText, q)
	return q, nil
}

// Search runs queryText against itemFull and returns at most maxHits results,
// one per record, by descending score. Records split into several documents
// are reported once, at the rank of their best document.
func (e *BleveEngine) Search(ctx context.Context, queryText, indexName, language string, maxHits int) ([]models.Result, error) {
	if maxHits <= 0 || strings.TrimSpace(queryText) == "" {
		return []models.Result{}, nil
	}
	q, err := e.parse(queryText)
	if err != nil {
		return nil, err
	}
	_, path, err := e.locate(indexName, language, false)
	if err != nil {
		return nil, err
	}
	h, err := e.acquireExisting(ctx, path)
	if errors.Is(err, errIndexAbsent) {
		return []models.Result{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer e.handles.release(h)

	results := make([]models.Result, 0, maxHits)
	seen := make(map[models.UniqueID]struct{}, maxHits)
	for from := 0; len(results) < maxHits; from += maxHits {
		req := bleve.NewSearchRequestOptions(q, maxHits, from, false)
		req.Fields = []string{models.FieldUniqueID, models.FieldItemTitle}
		res, err := h.index.SearchInContext(ctx, req)
		if err != nil {
			return nil, &models.StorageIOError{Op: "search", Path: path, Err: err}
		}
		for _, hit := range res.Hits {
			id, err := models.ParseUniqueID(fieldString(hit.Fields[models.FieldUniqueID]))
			if err != nil {
				e.logger.Debug("skipping hit without unique id", zap.String("doc", hit.ID), zap.Error(err))
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			results = append(results, models.Result{ID: id, Title: fieldString(hit.Fields[models.FieldItemTitle])})
			if len(results) == maxHits {
				break
			}
		}
		if len(res.Hits) < maxHits {
			break
		}
	}
	e.logger.Debug("index searched",
		zap.String("index", indexName),
		zap.String("query", queryText),
		zap.Int("results", len(results)),
	)
	return results, nil
}

// fieldString returns a stored field value; multi-valued fields yield their first value.
func fieldString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case []interface{}:
		if len(s) > 0 {
			if first, ok := s[0].(string); ok {
				return first
			}
		}
	}
	return ""
}
