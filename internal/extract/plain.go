package extract

import (
	"bufio"
	"bytes"
	"strings"
	"unicode/utf8"
)

func validUTF8(content []byte) string {
	if !utf8.Valid(content) {
		return strings.ToValidUTF8(string(content), "\ufffd")
	}
	return string(content)
}

// extractPlain returns content as the body. Invalid UTF-8 sequences are
// replaced with the replacement character.
func extractPlain(content []byte) (*Extraction, error) {
	return &Extraction{Body: validUTF8(content)}, nil
}

// extractMarkdown is extractPlain plus a title taken from the first level-one
// heading ("# Title").
func extractMarkdown(content []byte) (*Extraction, error) {
	text := validUTF8(content)
	x := &Extraction{Body: text}
	sc := bufio.NewScanner(bytes.NewReader([]byte(text)))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "# ") {
			x.Title = strings.TrimSpace(strings.TrimPrefix(line, "# "))
			break
		}
	}
	return x, nil
}
