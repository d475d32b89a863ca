// Package extract turns document files into the title, author and body of a
// bibliographic text.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Extraction is what a file yields for a text record. Title and Author are
// empty when the format carries no such metadata.
type Extraction struct {
	Title  string
	Author string
	Body   string
}

type extractFunc func(content []byte) (*Extraction, error)

var formats = map[string]extractFunc{
	".pdf":  extractPDF,
	".docx": extractDOCX,
	".pptx": extractPPTX,
	".xlsx": extractExcel,
	".odt":  extractODF,
	".odp":  extractODF,
	".ods":  extractODF,
	".md":   extractMarkdown,
	".txt":  extractPlain,
	".rst":  extractPlain,
	"":      extractPlain,
}

// Extractor extracts text and metadata from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and extracts it by extension. Unknown
// extensions are read as plain text.
func (e *Extractor) Extract(path string) (*Extraction, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, strings.ToLower(filepath.Ext(path)))
}

// ExtractBytes extracts content as a file with extension ext (".pdf", ".md", ...).
func (e *Extractor) ExtractBytes(content []byte, ext string) (*Extraction, error) {
	fn, ok := formats[strings.ToLower(ext)]
	if !ok {
		fn = extractPlain
	}
	x, err := fn(content)
	if err != nil {
		return nil, err
	}
	x.Title = strings.TrimSpace(x.Title)
	x.Author = strings.TrimSpace(x.Author)
	x.Body = strings.TrimSpace(x.Body)
	return x, nil
}

// SupportedExtensions lists the extensions with a dedicated extractor.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(formats))
	for ext := range formats {
		if ext != "" {
			exts = append(exts, ext)
		}
	}
	sort.Strings(exts)
	return exts
}
