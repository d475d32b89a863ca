package fulltext

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/document"
	"github.com/blevesearch/bleve/v2/mapping"
	index "github.com/blevesearch/bleve_index_api"

	"github.com/hyperjump/notesearch/internal/analysis"
	"github.com/hyperjump/notesearch/internal/models"
)

// buildMapping returns the index mapping for one language. Documents are
// indexed through IndexAdvanced, so the mapping matters for queries: itemFull
// is the default search field and the language analyzer is the default analyzer.
func buildMapping(a *analysis.Analyzer) (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()
	if err := a.Register(im); err != nil {
		return nil, err
	}
	im.DefaultField = models.FieldItemFull

	docMapping := bleve.NewDocumentMapping()
	fullFieldMapping := bleve.NewTextFieldMapping()
	fullFieldMapping.Analyzer = a.Name
	fullFieldMapping.Store = false
	docMapping.AddFieldMappingsAt(models.FieldItemFull, fullFieldMapping)

	titleFieldMapping := bleve.NewTextFieldMapping()
	titleFieldMapping.Analyzer = a.Name
	titleFieldMapping.Store = true
	docMapping.AddFieldMappingsAt(models.FieldItemTitle, titleFieldMapping)

	for _, name := range []string{
		models.FieldUniqueID, models.FieldItemType, models.FieldItemID,
		models.FieldChunk, models.FieldCreated, models.FieldModified,
	} {
		keywordFieldMapping := bleve.NewKeywordFieldMapping()
		keywordFieldMapping.Store = true
		docMapping.AddFieldMappingsAt(name, keywordFieldMapping)
	}
	im.DefaultMapping = docMapping
	return im, nil
}

// ToStorage converts a Field into its bleve representation. ExactID and Date
// values become a single keyword token; FullText values go through the
// analyzer configured for the field (the index language by default).
func ToStorage(f models.Field, m mapping.IndexMapping) (document.Field, error) {
	options := index.IndexField
	if f.Store {
		options |= index.StoreField
	}
	var analyzerName string
	switch f.Type {
	case models.ExactID, models.Date:
		analyzerName = keyword.Name
	case models.FullText:
		analyzerName = m.AnalyzerNameForPath(f.Name)
		options |= index.IncludeTermVectors
	default:
		return nil, &models.ConfigurationError{Field: f.Name, Reason: fmt.Sprintf("unknown field type %v", f.Type)}
	}
	analyzer := m.AnalyzerNamed(analyzerName)
	if analyzer == nil {
		return nil, fmt.Errorf("analyzer %q not available for field %s", analyzerName, f.Name)
	}
	return document.NewTextFieldCustom(f.Name, nil, []byte(f.Value), options, analyzer), nil
}

// toBleveDocument builds the backend document for doc under internal id docID.
func toBleveDocument(docID string, doc *models.Document, m mapping.IndexMapping) (*document.Document, error) {
	bd := document.NewDocument(docID)
	for _, f := range doc.Fields() {
		field, err := ToStorage(f, m)
		if err != nil {
			return nil, err
		}
		bd.AddField(field)
	}
	return bd, nil
}
