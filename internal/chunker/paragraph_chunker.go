package chunker

import (
	"regexp"
	"strings"
)

// DefaultMaxChunkSize is used when a non-positive chunk size is configured.
const DefaultMaxChunkSize = 1000

var (
	paragraphSplitter = regexp.MustCompile(`\n\s*\n`)
	// A terminator run ends a sentence only when whitespace or the end of the
	// text follows it, so "3.14" and "example.com" stay whole. Every byte of
	// the input belongs to exactly one match.
	sentenceSplitter = regexp.MustCompile(`(?s).*?[.!?]+(?:\s+|$)|(?s).+`)
)

// ParagraphChunker splits text on blank lines and packs paragraphs into
// chunks of at most maxChunkSize bytes, falling back to sentences for
// paragraphs that are too large on their own.
type ParagraphChunker struct {
	maxChunkSize int
}

func NewParagraphChunker(maxChunkSize int) *ParagraphChunker {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}
	return &ParagraphChunker{maxChunkSize: maxChunkSize}
}

// MaxChunkSize returns the nominal chunk bound in bytes.
func (c *ParagraphChunker) MaxChunkSize() int { return c.maxChunkSize }

func (c *ParagraphChunker) Chunk(text string) []string {
	return Split(text, c.maxChunkSize)
}

// Split returns the chunks of text in document order. A single sentence
// longer than maxChunkSize is emitted whole.
func Split(text string, maxChunkSize int) []string {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}
	var (
		chunks  []string
		current strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
	}

	for _, paragraph := range paragraphSplitter.Split(text, -1) {
		if strings.TrimSpace(paragraph) == "" {
			continue
		}
		if current.Len()+len(paragraph) > maxChunkSize && current.Len() > 0 {
			flush()
		}
		if len(paragraph) <= maxChunkSize {
			current.WriteString(paragraph)
			current.WriteString("\n\n")
			continue
		}
		for _, sentence := range splitSentences(paragraph) {
			sentence = strings.TrimSpace(sentence)
			if sentence == "" {
				continue
			}
			if current.Len()+len(sentence) > maxChunkSize && current.Len() > 0 {
				flush()
			}
			current.WriteString(sentence)
			current.WriteString(" ")
		}
	}
	flush()
	return chunks
}

func splitSentences(paragraph string) []string {
	sentences := sentenceSplitter.FindAllString(paragraph, -1)
	if len(sentences) == 0 {
		return []string{paragraph}
	}
	return sentences
}
