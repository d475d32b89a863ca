package models

import (
	"errors"
	"sort"
	"testing"
	"time"
)

func TestNewDateField_MissingResolution(t *testing.T) {
	_, err := NewDateField(FieldCreated, time.Now(), NoResolution, true)
	if err == nil {
		t.Fatal("expected error for date field without resolution")
	}
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error type = %T, want *ConfigurationError", err)
	}
	if !errors.Is(err, ErrConfiguration) {
		t.Error("errors.Is(err, ErrConfiguration) = false")
	}
}

func TestNewField_RejectsDateType(t *testing.T) {
	_, err := NewField(FieldCreated, "20240101", true, Date)
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("NewField(Date) error = %v, want configuration error", err)
	}
}

func TestNewField(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		typ     FieldType
		wantErr bool
	}{
		{"exact id", FieldUniqueID, ExactID, false},
		{"full text", FieldItemFull, FullText, false},
		{"empty name", "", FullText, true},
		{"unknown type", "x", FieldType(42), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewField(tt.field, "value", true, tt.typ)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewField error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && (f.Name != tt.field || f.Type != tt.typ || !f.Store) {
				t.Errorf("unexpected field %+v", f)
			}
		})
	}
}

func TestFormatDate(t *testing.T) {
	ts := time.Date(2023, time.March, 7, 14, 5, 9, 123_000_000, time.UTC)
	want := map[DateResolution]string{
		Year:        "2023",
		Month:       "202303",
		Day:         "20230307",
		Hour:        "2023030714",
		Minute:      "202303071405",
		Second:      "20230307140509",
		Millisecond: "20230307140509123",
	}
	for res, w := range want {
		got, err := FormatDate(ts, res)
		if err != nil {
			t.Fatalf("FormatDate(%v): %v", res, err)
		}
		if got != w {
			t.Errorf("FormatDate(%v) = %q, want %q", res, got, w)
		}
	}
}

func TestFormatDate_UsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	ts := time.Date(2023, time.March, 8, 5, 0, 0, 0, loc)
	got, err := FormatDate(ts, Day)
	if err != nil {
		t.Fatal(err)
	}
	if got != "20230307" {
		t.Errorf("FormatDate = %q, want UTC day 20230307", got)
	}
}

func TestFormatDate_SortsChronologically(t *testing.T) {
	base := time.Date(1999, time.December, 31, 23, 59, 59, 0, time.UTC)
	times := []time.Time{
		base.Add(48 * time.Hour),
		base,
		base.AddDate(-20, 0, 0),
		base.Add(time.Second),
		base.AddDate(25, 0, 0),
	}
	for _, res := range []DateResolution{Day, Second} {
		values := make([]string, len(times))
		for i, ts := range times {
			v, err := FormatDate(ts, res)
			if err != nil {
				t.Fatal(err)
			}
			values[i] = v
		}
		sorted := append([]time.Time(nil), times...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
		sort.Strings(values)
		for i, ts := range sorted {
			want, _ := FormatDate(ts, res)
			if values[i] != want {
				t.Errorf("res %v: position %d = %q, want %q", res, i, values[i], want)
			}
		}
	}
}

func TestNewDocument(t *testing.T) {
	if _, err := NewDocument(); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("NewDocument() error = %v, want configuration error", err)
	}
	id, _ := NewField(FieldUniqueID, "1:42", true, ExactID)
	title, _ := NewField(FieldItemTitle, "Relativity", true, FullText)
	doc, err := NewDocument(id, title)
	if err != nil {
		t.Fatal(err)
	}
	if got := doc.Value(FieldUniqueID); got != "1:42" {
		t.Errorf("Value(uniqueID) = %q", got)
	}
	if _, ok := doc.Get("missing"); ok {
		t.Error("Get(missing) reported a field")
	}
	full, _ := NewField(FieldItemFull, "Relativity theory", false, FullText)
	doc.Add(full)
	if n := len(doc.Fields()); n != 3 {
		t.Errorf("len(Fields) = %d, want 3", n)
	}
	if doc.Fields()[2].Name != FieldItemFull {
		t.Error("fields not kept in insertion order")
	}
}
