// Package models defines the index data model (fields, documents, ids, results) and the domain records fed into it.
package models

// Conventional field names shared by every indexed record.
const (
	FieldUniqueID  = "uniqueID"
	FieldItemType  = "itemType"
	FieldItemID    = "itemID"
	FieldItemTitle = "itemTitle"
	FieldItemFull  = "itemFull"
	FieldCreated   = "created"
	FieldModified  = "modified"
	FieldChunk     = "chunk"
)

// Document is one indexable unit: an ordered, non-empty list of fields.
type Document struct {
	fields []Field
}

// NewDocument returns a document holding fields in order.
func NewDocument(fields ...Field) (*Document, error) {
	if len(fields) == 0 {
		return nil, &ConfigurationError{Field: "fields", Reason: "document has no fields"}
	}
	return &Document{fields: append([]Field(nil), fields...)}, nil
}

// Add appends f.
func (d *Document) Add(f Field) {
	d.fields = append(d.fields, f)
}

// Fields returns the fields in insertion order.
func (d *Document) Fields() []Field {
	return d.fields
}

// Get returns the first field named name.
func (d *Document) Get(name string) (Field, bool) {
	for _, f := range d.fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Value returns the value of the first field named name, or "".
func (d *Document) Value(name string) string {
	f, _ := d.Get(name)
	return f.Value
}
