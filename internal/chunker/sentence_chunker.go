package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"studyrag/internal/domain"
)

const (
	DefaultChunkSize = 500
	DefaultOverlap   = 100
)

// sentence boundary: terminal punctuation followed by whitespace.
var boundaryRe = regexp.MustCompile(`[.!?]\s+`)

// SplitSentences splits text after every '.', '!' or '?' that is followed by
// whitespace. The punctuation stays with its sentence and the whitespace is dropped.
func SplitSentences(text string) []string {
	var out []string
	last := 0
	for _, loc := range boundaryRe.FindAllStringIndex(text, -1) {
		out = append(out, text[last:loc[0]+1])
		last = loc[1]
	}
	if last < len(text) {
		out = append(out, text[last:])
	}
	return out
}

// Chunk greedily packs sentences into chunks of fewer than chunkSize bytes.
// Each new chunk is seeded with the last overlap bytes of the previous buffer.
// A sentence is never split, so a single over-long sentence becomes its own chunk.
func Chunk(text string, chunkSize, overlap int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var chunks []string
	var buf strings.Builder
	for _, sentence := range SplitSentences(text) {
		if buf.Len()+len(sentence) < chunkSize {
			buf.WriteString(sentence)
			buf.WriteByte(' ')
			continue
		}
		prev := buf.String()
		if trimmed := strings.TrimSpace(prev); trimmed != "" {
			chunks = append(chunks, trimmed)
		}
		buf.Reset()
		if overlap > 0 && len(prev) > overlap {
			buf.WriteString(tail(prev, overlap))
		}
		buf.WriteString(sentence)
		buf.WriteByte(' ')
	}
	if trimmed := strings.TrimSpace(buf.String()); trimmed != "" {
		chunks = append(chunks, trimmed)
	}
	return chunks
}

// tail returns roughly the last n bytes of s, starting on a rune boundary.
func tail(s string, n int) string {
	start := len(s) - n
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return s[start:]
}

// SentenceChunker splits documents into overlapping, sentence-aligned chunks.
type SentenceChunker struct {
	chunkSize int
	overlap   int
}

func NewSentenceChunker(chunkSize, overlap int) *SentenceChunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	return &SentenceChunker{chunkSize: chunkSize, overlap: overlap}
}

// Texts returns the chunk texts of raw document text.
func (c *SentenceChunker) Texts(text string) []string {
	return Chunk(text, c.chunkSize, c.overlap)
}

// Chunk splits a document into indexed chunks owned by that document.
func (c *SentenceChunker) Chunk(document domain.Document) []domain.Chunk {
	texts := c.Texts(document.Content)
	chunks := make([]domain.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = domain.Chunk{DocumentID: document.ID, Text: t, Index: i}
	}
	return chunks
}
