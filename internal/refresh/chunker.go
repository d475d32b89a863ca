package refresh

import "strings"

// Chunker cuts long record bodies into passages of a fixed number of words so
// that one long text does not outweigh short notes in scoring. Neighbouring
// passages repeat the last overlap words of the previous one, which keeps a
// phrase split at a passage border findable.
type Chunker struct {
	window  int
	overlap int
}

// NewChunker returns a chunker producing passages of window words sharing
// overlap words. A window of zero or less keeps every body in one passage.
func NewChunker(window, overlap int) *Chunker {
	return &Chunker{window: window, overlap: overlap}
}

// Chunk returns the passages of body. A blank body has none; a body no longer
// than the window is a single passage.
func (c *Chunker) Chunk(body string) []string {
	words := strings.Fields(body)
	if len(words) == 0 {
		return nil
	}
	if c == nil || c.window <= 0 || len(words) <= c.window {
		return []string{strings.Join(words, " ")}
	}
	passages := make([]string, 0, len(words)/c.stride()+1)
	for start := 0; ; start += c.stride() {
		end := min(start+c.window, len(words))
		passages = append(passages, strings.Join(words[start:end], " "))
		if end == len(words) {
			return passages
		}
	}
}

// stride is how far consecutive passages start apart, at least one word.
func (c *Chunker) stride() int {
	return max(c.window-c.overlap, 1)
}
