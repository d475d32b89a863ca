package extract

import (
	"archive/zip"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	contentTypesPath    = "[Content_Types].xml"
	corePropertiesPath  = "docProps/core.xml"
	docxDocumentXMLPath = "word/document.xml"
	pptxSlidePathPrefix = "ppt/slides/slide"
	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

var (
	// <w:t> and <a:t> runs, with or without attributes such as xml:space.
	wtTag = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	atTag = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)

	// the main document override in [Content_Types].xml, in either attribute order
	partNameRe  = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)
	partNameRe2 = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)

	slideNumber = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
)

// coreProperties reads title and creator from docProps/core.xml, if present.
func coreProperties(zr *zip.Reader, x *Extraction) {
	core, err := readPart(zr, corePropertiesPath)
	if err != nil || core == nil {
		return
	}
	x.Title = firstNode(core, dcTitle)
	x.Author = firstNode(core, dcCreator)
}

func docxMainPart(zr *zip.Reader) string {
	ct, err := readPart(zr, contentTypesPath)
	if err != nil || ct == nil {
		return docxDocumentXMLPath
	}
	for _, re := range []*regexp.Regexp{partNameRe, partNameRe2} {
		if m := re.FindSubmatch(ct); m != nil {
			return strings.TrimPrefix(string(m[1]), "/")
		}
	}
	return docxDocumentXMLPath
}

// extractDOCX reads every <w:t> run of the main document part, located through
// [Content_Types].xml since some writers name it word/document2.xml.
func extractDOCX(content []byte) (*Extraction, error) {
	zr, err := openZip("DOCX", content)
	if err != nil {
		return nil, err
	}
	docPath := docxMainPart(zr)
	docXML, err := readPart(zr, docPath)
	if err != nil {
		return nil, fmt.Errorf("extract DOCX: %w", err)
	}
	if docXML == nil {
		return nil, fmt.Errorf("extract DOCX: %s not found", docPath)
	}
	x := &Extraction{Body: textNodes(docXML, wtTag)}
	coreProperties(zr, x)
	return x, nil
}

// extractPPTX reads the <a:t> runs of every slide in slide order.
func extractPPTX(content []byte) (*Extraction, error) {
	zr, err := openZip("PPTX", content)
	if err != nil {
		return nil, err
	}
	type slide struct {
		n    int
		name string
	}
	var slides []slide
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, pptxSlidePathPrefix) {
			continue
		}
		m := slideNumber.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{n: n, name: f.Name})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	parts := make([]string, 0, len(slides))
	for _, s := range slides {
		data, err := readPart(zr, s.name)
		if err != nil {
			return nil, fmt.Errorf("extract PPTX: %w", err)
		}
		if text := textNodes(data, atTag); text != "" {
			parts = append(parts, text)
		}
	}
	x := &Extraction{Body: strings.Join(parts, "\n")}
	coreProperties(zr, x)
	return x, nil
}
