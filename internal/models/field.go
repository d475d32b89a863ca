package models

import (
	"fmt"
	"time"
)

// FieldType selects how a field value is indexed.
type FieldType int

const (
	// ExactID fields are indexed as one opaque token (exact match, delete keys).
	ExactID FieldType = iota + 1
	// FullText fields are tokenized by the index language's analyzer.
	FullText
	// Date fields hold a timestamp rendered by FormatDate at a fixed resolution.
	Date
)

func (t FieldType) String() string {
	switch t {
	case ExactID:
		return "exact_id"
	case FullText:
		return "full_text"
	case Date:
		return "date"
	default:
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
}

// DateResolution is the granularity a Date field is truncated to.
type DateResolution int

const (
	NoResolution DateResolution = iota
	Year
	Month
	Day
	Hour
	Minute
	Second
	Millisecond
)

// layouts are fixed width so that string order equals chronological order.
var dateLayouts = map[DateResolution]string{
	Year:        "2006",
	Month:       "200601",
	Day:         "20060102",
	Hour:        "2006010215",
	Minute:      "200601021504",
	Second:      "20060102150405",
	Millisecond: "20060102150405.000",
}

func (r DateResolution) String() string {
	switch r {
	case Year:
		return "year"
	case Month:
		return "month"
	case Day:
		return "day"
	case Hour:
		return "hour"
	case Minute:
		return "minute"
	case Second:
		return "second"
	case Millisecond:
		return "millisecond"
	default:
		return "none"
	}
}

// FormatDate renders t in UTC at resolution res as a lexicographically sortable string.
func FormatDate(t time.Time, res DateResolution) (string, error) {
	layout, ok := dateLayouts[res]
	if !ok {
		return "", &ConfigurationError{Field: "dateResolution", Reason: fmt.Sprintf("unsupported date resolution %q", res)}
	}
	s := t.UTC().Format(layout)
	if res == Millisecond {
		// drop the dot so every resolution is a plain digit prefix of the next
		s = s[:14] + s[15:]
	}
	return s, nil
}

// Field is one named, typed value within a Document.
type Field struct {
	Name       string
	Value      string
	Store      bool
	Type       FieldType
	Resolution DateResolution
}

// NewField builds an ExactID or FullText field. Date fields must go through NewDateField.
func NewField(name, value string, store bool, typ FieldType) (Field, error) {
	if name == "" {
		return Field{}, &ConfigurationError{Field: "name", Reason: "field name is empty"}
	}
	switch typ {
	case ExactID, FullText:
	case Date:
		return Field{}, &ConfigurationError{Field: name, Reason: "date field requires a resolution"}
	default:
		return Field{}, &ConfigurationError{Field: name, Reason: fmt.Sprintf("unknown field type %v", typ)}
	}
	return Field{Name: name, Value: value, Store: store, Type: typ}, nil
}

// NewDateField builds a Date field whose value is t formatted at res.
func NewDateField(name string, t time.Time, res DateResolution, store bool) (Field, error) {
	if name == "" {
		return Field{}, &ConfigurationError{Field: "name", Reason: "field name is empty"}
	}
	if res == NoResolution {
		return Field{}, &ConfigurationError{Field: name, Reason: "date field requires a resolution"}
	}
	value, err := FormatDate(t, res)
	if err != nil {
		return Field{}, err
	}
	return Field{Name: name, Value: value, Store: store, Type: Date, Resolution: res}, nil
}
