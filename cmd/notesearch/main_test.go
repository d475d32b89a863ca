package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/notesearch/internal/config"
	"github.com/hyperjump/notesearch/internal/models"
)

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after query are moved first",
			args:     []string{"general relativity", "-limit", "5"},
			expected: []string{"-limit", "5", "general relativity"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-limit", "5", "general relativity"},
			expected: []string{"-limit", "5", "general relativity"},
		},
		{
			name:     "query only returns unchanged",
			args:     []string{"general relativity"},
			expected: []string{"general relativity"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"one", "two", "-language", "en"},
			expected: []string{"-language", "en", "one", "two"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildSearchQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"gravitation"}, "gravitation"},
		{"multiple words", []string{"general", "relativity"}, "general relativity"},
		{"single quoted phrase", []string{"general relativity"}, "general relativity"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildSearchQuery(tt.args)
			if got != tt.expected {
				t.Errorf("buildSearchQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestParseRecordRef(t *testing.T) {
	tests := []struct {
		in      string
		want    models.UniqueID
		wantErr bool
	}{
		{"1:42", models.UniqueID{Kind: models.KindNote, ID: 42}, false},
		{"note:42", models.UniqueID{Kind: models.KindNote, ID: 42}, false},
		{"texts:7", models.UniqueID{Kind: models.KindText, ID: 7}, false},
		{"person:3", models.UniqueID{Kind: models.KindPerson, ID: 3}, false},
		{"9:1", models.UniqueID{}, true},
		{"note:0", models.UniqueID{}, true},
		{"note:x", models.UniqueID{}, true},
		{"book:1", models.UniqueID{}, true},
		{"42", models.UniqueID{}, true},
	}
	for _, tt := range tests {
		got, err := parseRecordRef(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseRecordRef(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseRecordRef(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewRecord(t *testing.T) {
	rec, err := newRecord(models.KindText, "Principia", "laws of motion", "Newton", 1687)
	if err != nil {
		t.Fatal(err)
	}
	text, ok := rec.(*models.Text)
	if !ok || text.Author != "Newton" || text.Year != 1687 {
		t.Errorf("newRecord(text) = %#v", rec)
	}
	rec, err = newRecord(models.KindPerson, "Ada Lovelace", "analyst", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if p := rec.(*models.Person); p.Name != "Ada Lovelace" || p.Biography != "analyst" {
		t.Errorf("newRecord(person) = %#v", rec)
	}
	if _, err := newRecord(models.KindNote, "  ", "body", "", 0); err == nil {
		t.Error("expected error for blank title")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{5 << 20, "5.0 MiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.n); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestLoadConfig_explicitPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "storage:\n  database_path: ./db/records.db\n  index_root: ./indices\nsearch:\n  language: en\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, resolved, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != path {
		t.Errorf("resolved path = %q, want %q", resolved, path)
	}
	if cfg.Search.Language != "en" || cfg.Storage.IndexRoot != filepath.Join(dir, "indices") {
		t.Errorf("unexpected config: %+v", cfg.Search)
	}
	if _, _, err := loadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing config")
	}
}

func TestLoadConfig_prefersWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("debug: true\n"), 0600); err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug || filepath.Base(resolved) != "config.yaml" || resolved == defaultConfigPath {
		t.Errorf("expected ./config.yaml to be used, got %q (debug=%v)", resolved, cfg.Debug)
	}
}

func testComponents(t *testing.T) (*config.Config, *Components) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Storage.DatabasePath = filepath.Join(dir, "db", "records.db")
	cfg.Storage.IndexRoot = filepath.Join(dir, "indices")
	cfg.Search.ChunkSize = 20
	config.ApplyDefaults(cfg)
	c, err := initializeComponents(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Close)
	return cfg, c
}

func TestComponents_SaveSearchAndStatus(t *testing.T) {
	cfg, c := testComponents(t)
	ctx := context.Background()

	note := &models.Note{Title: "Relativity", Body: "gravitation bends light"}
	if err := c.Storage.Save(ctx, note); err != nil {
		t.Fatal(err)
	}
	resp, err := search(ctx, cfg, c, &models.SearchQuery{Query: "gravitation"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || resp.Results[0].ID != note.Key() || resp.Results[0].Title != "Relativity" {
		t.Errorf("search response: %+v", resp)
	}
	if _, err := search(ctx, cfg, c, &models.SearchQuery{}); err == nil {
		t.Error("expected error for empty query")
	}

	status, err := collectStatus(ctx, cfg, c)
	if err != nil {
		t.Fatal(err)
	}
	if status.Records["note"] != 1 || status.Documents != 1 || status.DiskUsage == nil {
		t.Errorf("status: %+v", status)
	}
	var buf bytes.Buffer
	writeStatusText(&buf, status)
	for _, sub := range []string{"Index:     main", "(language-neutral)", "Notes:", "Documents: 1"} {
		if !strings.Contains(buf.String(), sub) {
			t.Errorf("status text missing %q:\n%s", sub, buf.String())
		}
	}
}

func TestEnsureIndex_RebuildsEmptyIndex(t *testing.T) {
	_, c := testComponents(t)
	ctx := context.Background()
	if err := ensureIndex(ctx, c, zap.NewNop()); err != nil {
		t.Fatalf("empty store: %v", err)
	}
	if c.Orchestrator.LastRun() != nil {
		t.Error("nothing to rebuild, but a refresh ran")
	}

	if err := c.Storage.Save(ctx, &models.Person{Name: "Marie Curie", Biography: "radioactivity"}); err != nil {
		t.Fatal(err)
	}
	if err := c.Engine.Initialize(ctx, c.Indexer.IndexName(), c.Indexer.Language()); err != nil {
		t.Fatal(err)
	}
	if err := ensureIndex(ctx, c, zap.NewNop()); err != nil {
		t.Fatal(err)
	}
	n, err := c.Engine.Count(ctx, c.Indexer.IndexName(), c.Indexer.Language())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("documents after rebuild = %d, want 1", n)
	}
}

func TestProgressPrinter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var buf bytes.Buffer
	p := &progressPrinter{ctx: ctx, w: &buf}
	p.KindDone(models.KindText, 4)
	if !strings.Contains(buf.String(), "texts") || !strings.Contains(buf.String(), "4") {
		t.Errorf("progress output: %q", buf.String())
	}
	if p.Canceled() {
		t.Error("not canceled yet")
	}
	cancel()
	if !p.Canceled() {
		t.Error("expected canceled after ctx cancel")
	}
}

func TestSearchViaHTTP(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var q models.SearchQuery
		_ = json.NewDecoder(r.Body).Decode(&q)
		if q.Query == "bad" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid query"})
			return
		}
		_ = json.NewEncoder(w).Encode(models.SearchResponse{
			Query:   q.Query,
			Total:   1,
			Results: []models.Result{{ID: models.UniqueID{Kind: models.KindNote, ID: 1}, Title: "Hit"}},
		})
	}))
	defer ts.Close()

	resp, err := searchViaHTTP(ts.URL+"/", &models.SearchQuery{Query: "light"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Query != "light" || resp.Total != 1 || resp.Results[0].Title != "Hit" {
		t.Errorf("response: %+v", resp)
	}
	_, err = searchViaHTTP(ts.URL, &models.SearchQuery{Query: "bad"})
	if err == nil || !strings.Contains(err.Error(), "invalid query") {
		t.Errorf("expected server error message, got %v", err)
	}
}
