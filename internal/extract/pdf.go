package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractPDF turns a PDF into a text record: pages in order, one per line
// block, with title and author from the document information dictionary.
func extractPDF(content []byte) (*Extraction, error) {
	doc, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	pages, err := pdfPages(doc)
	if err != nil {
		return nil, err
	}
	title, author := pdfInfo(doc)
	return &Extraction{Title: title, Author: author, Body: strings.Join(pages, "\n")}, nil
}

// pdfPages returns the plain text of every page that has content.
func pdfPages(doc *pdf.Reader) ([]string, error) {
	var pages []string
	for n := 1; n <= doc.NumPage(); n++ {
		page := doc.Page(n)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", n, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

func pdfInfo(doc *pdf.Reader) (title, author string) {
	info := doc.Trailer().Key("Info")
	if info.IsNull() {
		return "", ""
	}
	return info.Key("Title").Text(), info.Key("Author").Text()
}
