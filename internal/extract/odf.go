package extract

import (
	"fmt"
	"regexp"
)

const (
	odfContentPath = "content.xml"
	odfMetaPath    = "meta.xml"
)

// headings first, then paragraphs and spans, so a document's headings lead its body
var (
	odfTextH    = regexp.MustCompile(`<text:h[^>]*>([^<]*)</text:h>`)
	odfTextP    = regexp.MustCompile(`<text:p[^>]*>([^<]*)</text:p>`)
	odfTextSpan = regexp.MustCompile(`<text:span[^>]*>([^<]*)</text:span>`)
)

// extractODF handles OpenDocument text, presentation and spreadsheet files,
// which share the content.xml and meta.xml layout.
func extractODF(content []byte) (*Extraction, error) {
	zr, err := openZip("OpenDocument", content)
	if err != nil {
		return nil, err
	}
	contentXML, err := readPart(zr, odfContentPath)
	if err != nil {
		return nil, fmt.Errorf("extract OpenDocument: %w", err)
	}
	if contentXML == nil {
		return nil, fmt.Errorf("extract OpenDocument: %s not found", odfContentPath)
	}
	x := &Extraction{Body: textNodes(contentXML, odfTextH, odfTextP, odfTextSpan)}
	if meta, err := readPart(zr, odfMetaPath); err == nil && meta != nil {
		x.Title = firstNode(meta, dcTitle)
		x.Author = firstNode(meta, metaInitCreator, dcCreator)
	}
	return x, nil
}
