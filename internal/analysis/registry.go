// Package analysis maps ISO 639-1 language codes to bleve analyzers.
package analysis

import (
	"fmt"
	"sort"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/lang/ar"
	"github.com/blevesearch/bleve/v2/analysis/lang/bg"
	"github.com/blevesearch/bleve/v2/analysis/lang/ca"
	"github.com/blevesearch/bleve/v2/analysis/lang/cjk"
	"github.com/blevesearch/bleve/v2/analysis/lang/ckb"
	"github.com/blevesearch/bleve/v2/analysis/lang/cs"
	"github.com/blevesearch/bleve/v2/analysis/lang/da"
	"github.com/blevesearch/bleve/v2/analysis/lang/de"
	"github.com/blevesearch/bleve/v2/analysis/lang/el"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/lang/es"
	"github.com/blevesearch/bleve/v2/analysis/lang/eu"
	"github.com/blevesearch/bleve/v2/analysis/lang/fa"
	"github.com/blevesearch/bleve/v2/analysis/lang/fi"
	"github.com/blevesearch/bleve/v2/analysis/lang/fr"
	"github.com/blevesearch/bleve/v2/analysis/lang/ga"
	"github.com/blevesearch/bleve/v2/analysis/lang/gl"
	"github.com/blevesearch/bleve/v2/analysis/lang/hi"
	"github.com/blevesearch/bleve/v2/analysis/lang/hu"
	"github.com/blevesearch/bleve/v2/analysis/lang/hy"
	"github.com/blevesearch/bleve/v2/analysis/lang/id"
	"github.com/blevesearch/bleve/v2/analysis/lang/it"
	"github.com/blevesearch/bleve/v2/analysis/lang/nl"
	"github.com/blevesearch/bleve/v2/analysis/lang/no"
	"github.com/blevesearch/bleve/v2/analysis/lang/pt"
	"github.com/blevesearch/bleve/v2/analysis/lang/ro"
	"github.com/blevesearch/bleve/v2/analysis/lang/ru"
	"github.com/blevesearch/bleve/v2/analysis/lang/sv"
	"github.com/blevesearch/bleve/v2/analysis/lang/tr"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
)

// DefaultName is the analyzer name used for unsupported languages.
const DefaultName = "notesearch_default"

// Analyzer describes a tokenization pipeline by bleve analyzer name.
// Builtin analyzers are registered by their bleve packages; the others are
// custom pipelines installed on each index mapping by Register.
type Analyzer struct {
	// Code is the ISO 639-1 code, or "" for Default.
	Code string
	// Name is the bleve analyzer name used in index mappings.
	Name string

	filters []string // token filters of a custom pipeline; nil for builtin analyzers
	builtin bool

	once     sync.Once
	probe    *mapping.IndexMappingImpl
	probeErr error
}

// Default splits on word boundaries and lowercases. No stemming, no stop words.
var Default = &Analyzer{Name: DefaultName, filters: []string{lowercase.Name}}

var registry = buildRegistry()

func builtin(code, name string) *Analyzer {
	return &Analyzer{Code: code, Name: name, builtin: true}
}

func stopwords(code, stopFilter string) *Analyzer {
	return &Analyzer{Code: code, Name: "notesearch_" + code, filters: []string{lowercase.Name, stopFilter}}
}

func buildRegistry() map[string]*Analyzer {
	cjkAnalyzer := cjk.AnalyzerName
	list := []*Analyzer{
		builtin("ar", ar.AnalyzerName),
		builtin("ckb", ckb.AnalyzerName),
		builtin("da", da.AnalyzerName),
		builtin("de", de.AnalyzerName),
		builtin("en", en.AnalyzerName),
		builtin("es", es.AnalyzerName),
		builtin("fa", fa.AnalyzerName),
		builtin("fi", fi.AnalyzerName),
		builtin("fr", fr.AnalyzerName),
		builtin("hi", hi.AnalyzerName),
		builtin("hu", hu.AnalyzerName),
		builtin("it", it.AnalyzerName),
		builtin("nl", nl.AnalyzerName),
		builtin("no", no.AnalyzerName),
		builtin("pt", pt.AnalyzerName),
		builtin("ro", ro.AnalyzerName),
		builtin("ru", ru.AnalyzerName),
		builtin("sv", sv.AnalyzerName),
		builtin("tr", tr.AnalyzerName),
		builtin("ja", cjkAnalyzer),
		builtin("ko", cjkAnalyzer),
		builtin("zh", cjkAnalyzer),
		stopwords("bg", bg.StopName),
		stopwords("ca", ca.StopName),
		stopwords("cs", cs.StopName),
		stopwords("el", el.StopName),
		stopwords("eu", eu.StopName),
		stopwords("ga", ga.StopName),
		stopwords("gl", gl.StopName),
		stopwords("hy", hy.StopName),
		stopwords("id", id.StopName),
	}
	m := make(map[string]*Analyzer, len(list))
	for _, a := range list {
		m[a.Code] = a
	}
	return m
}

// Resolve returns the analyzer for an ISO 639-1 code. Matching is exact and
// case-sensitive; unknown codes get Default.
func Resolve(code string) *Analyzer {
	if a, ok := registry[code]; ok {
		return a
	}
	return Default
}

// SupportedLanguages returns the codes Resolve knows, sorted.
func SupportedLanguages() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// IsSupported reports whether code has its own analyzer.
func IsSupported(code string) bool {
	_, ok := registry[code]
	return ok
}

// Register installs the analyzer on im and makes it the mapping's default analyzer.
func (a *Analyzer) Register(im *mapping.IndexMappingImpl) error {
	if !a.builtin {
		err := im.AddCustomAnalyzer(a.Name, map[string]interface{}{
			"type":          custom.Name,
			"tokenizer":     unicode.Name,
			"token_filters": a.filters,
		})
		if err != nil {
			return fmt.Errorf("failed to add analyzer %s: %w", a.Name, err)
		}
	}
	im.DefaultAnalyzer = a.Name
	return nil
}

// Tokens runs text through the analyzer and returns the resulting terms.
func (a *Analyzer) Tokens(text string) ([]string, error) {
	a.once.Do(func() {
		im := bleve.NewIndexMapping()
		a.probeErr = a.Register(im)
		a.probe = im
	})
	if a.probeErr != nil {
		return nil, a.probeErr
	}
	stream, err := a.probe.AnalyzeText(a.Name, []byte(text))
	if err != nil {
		return nil, fmt.Errorf("analyze with %s: %w", a.Name, err)
	}
	terms := make([]string, 0, len(stream))
	for _, tok := range stream {
		terms = append(terms, string(tok.Term))
	}
	return terms, nil
}
