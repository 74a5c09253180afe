package generate

import "strings"

// chunker segments streamed text into sentence-bounded chunks. A boundary is
// a '.', '!', or '?' immediately followed by whitespace; the final flush
// closes whatever remains. Closed chunks partition the text exactly:
// concatenating them reproduces total(), so chunking is never lossy.
type chunker struct {
	buf    strings.Builder
	closed strings.Builder
	close  func(chunk string)
}

func newChunker(close func(chunk string)) *chunker {
	return &chunker{close: close}
}

// write appends streamed text and eagerly closes every complete sentence.
func (c *chunker) write(text string) {
	if text == "" {
		return
	}
	c.buf.WriteString(text)

	for {
		idx := firstSentenceBoundary(c.buf.String())
		if idx < 0 {
			return
		}
		s := c.buf.String()
		sentence, rest := s[:idx+1], s[idx+1:]
		c.buf.Reset()
		c.buf.WriteString(rest)
		c.emit(sentence)
	}
}

// flush closes any remaining partial sentence as a final chunk. A remainder
// that is nothing but whitespace is discarded instead of becoming a chunk.
func (c *chunker) flush() {
	rest := c.buf.String()
	c.buf.Reset()
	if strings.TrimSpace(rest) == "" {
		return
	}
	c.emit(rest)
}

func (c *chunker) emit(chunk string) {
	c.closed.WriteString(chunk)
	c.close(chunk)
}

// total returns the concatenation of all closed chunks.
func (c *chunker) total() string {
	return c.closed.String()
}

// firstSentenceBoundary returns the index of the first '.', '!', or '?' that
// is immediately followed by a whitespace character, or -1 when no boundary
// exists in s. The trailing whitespace stays with the following chunk so the
// chunks remain an exact partition of the text.
func firstSentenceBoundary(s string) int {
	for i := 0; i < len(s)-1; i++ {
		switch s[i] {
		case '.', '!', '?':
			switch s[i+1] {
			case ' ', '\n', '\r', '\t':
				return i
			}
		}
	}
	return -1
}
