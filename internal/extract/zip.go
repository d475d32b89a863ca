package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
)

func openZip(format string, content []byte) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract %s: not a zip: %w", format, err)
	}
	return zr, nil
}

// readPart returns the named entry, or nil when the archive has none.
func readPart(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		return data, nil
	}
	return nil, nil
}

// textNodes joins the unescaped inner text of every match of re (whose first
// group is the text) with single spaces.
func textNodes(xml []byte, res ...*regexp.Regexp) string {
	var b strings.Builder
	for _, re := range res {
		for _, m := range re.FindAllSubmatch(xml, -1) {
			text := strings.TrimSpace(html.UnescapeString(string(m[1])))
			if text == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(text)
		}
	}
	return b.String()
}

// firstNode returns the unescaped text of the first match among res.
func firstNode(xml []byte, res ...*regexp.Regexp) string {
	for _, re := range res {
		if m := re.FindSubmatch(xml); m != nil {
			if s := strings.TrimSpace(html.UnescapeString(string(m[1]))); s != "" {
				return s
			}
		}
	}
	return ""
}

var (
	dcTitle         = regexp.MustCompile(`<dc:title[^>]*>([^<]*)</dc:title>`)
	dcCreator       = regexp.MustCompile(`<dc:creator[^>]*>([^<]*)</dc:creator>`)
	metaInitCreator = regexp.MustCompile(`<meta:initial-creator[^>]*>([^<]*)</meta:initial-creator>`)
)
