package refresh

import (
	"strconv"
	"strings"

	"github.com/hyperjump/notesearch/internal/models"
)

// DocumentsFor maps a record to the documents that represent it in the index.
// Every document carries the record's uniqueID, itemType, itemID, itemTitle
// and day-resolution created/modified dates. A long body is split by chunker
// into several documents, each numbered by its chunk field; itemFull is the
// title followed by the document's part of the body. A record without a body
// yields a single document.
func DocumentsFor(r models.Record, chunker *Chunker) ([]*models.Document, error) {
	key := r.Key()
	title := Preprocess(r.IndexTitle())

	common := make([]models.Field, 0, 7)
	for _, f := range []struct {
		name, value string
		typ         models.FieldType
	}{
		{models.FieldUniqueID, key.String(), models.ExactID},
		{models.FieldItemType, key.Kind.String(), models.ExactID},
		{models.FieldItemID, strconv.FormatInt(key.ID, 10), models.ExactID},
		{models.FieldItemTitle, title, models.FullText},
	} {
		field, err := models.NewField(f.name, f.value, true, f.typ)
		if err != nil {
			return nil, err
		}
		common = append(common, field)
	}
	created, err := models.NewDateField(models.FieldCreated, r.CreatedAt(), models.Day, true)
	if err != nil {
		return nil, err
	}
	modified, err := models.NewDateField(models.FieldModified, r.ModifiedAt(), models.Day, true)
	if err != nil {
		return nil, err
	}
	common = append(common, created, modified)

	chunks := chunker.Chunk(Preprocess(r.IndexBody()))
	if len(chunks) == 0 {
		chunks = []string{""}
	}
	docs := make([]*models.Document, 0, len(chunks))
	for i, chunk := range chunks {
		ordinal, err := models.NewField(models.FieldChunk, strconv.Itoa(i), true, models.ExactID)
		if err != nil {
			return nil, err
		}
		full, err := models.NewField(models.FieldItemFull, strings.TrimSpace(title+" "+chunk), false, models.FullText)
		if err != nil {
			return nil, err
		}
		fields := make([]models.Field, 0, len(common)+2)
		fields = append(fields, common...)
		fields = append(fields, ordinal, full)
		doc, err := models.NewDocument(fields...)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
