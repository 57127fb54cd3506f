// Package flashcards asks a language model for question/answer pairs drawn
// from a sample of workspace chunks.
package flashcards

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"studyrag/internal/domain"
	"studyrag/internal/llm"
	"studyrag/internal/metrics"
)

const (
	DefaultCount = 10
	// MaxSampleChunks is how many workspace chunks feed one request.
	MaxSampleChunks = 10
	maxMaterial     = 3000
	minSideLength   = 5
)

// Options are the sampling parameters of the flashcard call.
var Options = llm.Options{Temperature: 0.7, TopP: 0.9, MaxTokens: 1500}

var (
	questionMarker = regexp.MustCompile(`(?i)\n*Q:\s*`)
	answerMarker   = regexp.MustCompile(`(?i)\n*A:\s*`)
	newlines       = regexp.MustCompile(`\n+`)
)

// Generator produces flashcard drafts.
type Generator struct {
	llm     llm.Generator
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// New creates a Generator. m and logger may be nil.
func New(gen llm.Generator, m *metrics.Metrics, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{llm: gen, metrics: m, logger: logger}
}

// Generate returns up to count cards from chunks. The bool reports that the
// fixed fallback cards were returned instead of model output.
func (g *Generator) Generate(ctx context.Context, chunks []string, count int) ([]domain.FlashcardDraft, bool) {
	if len(chunks) == 0 {
		return nil, false
	}
	if count <= 0 {
		count = DefaultCount
	}
	if len(chunks) > MaxSampleChunks {
		chunks = chunks[:MaxSampleChunks]
	}
	material := strings.Join(chunks, "\n\n")
	material = firstRunes(material, maxMaterial)

	text, err := g.llm.Generate(ctx, BuildPrompt(material, count), Options)
	var cards []domain.FlashcardDraft
	if err == nil {
		cards = Parse(text)
	}
	if len(cards) == 0 {
		g.metrics.Fallback("flashcards")
		g.logger.Warn("flashcard generation failed, using fallback cards",
			zap.Int("requested", count),
			zap.Error(err),
		)
		return FallbackCards(), true
	}
	if len(cards) > count {
		cards = cards[:count]
	}
	return cards, false
}

// BuildPrompt asks for count cards in the Q:/A: format Parse reads.
func BuildPrompt(material string, count int) string {
	return fmt.Sprintf(`Based on the following study material, create %d flashcard-style question and answer pairs.

Study Material:
%s

Instructions:
1. Create clear, specific questions that test understanding
2. Keep questions concise (1-2 sentences)
3. Provide complete, accurate answers
4. Focus on key concepts, definitions, and important facts
5. Mix definitions, applications, and examples
6. Use this exact format for each flashcard:

Q: [Your question here]
A: [Your answer here]

Generate %d flashcards now:`, count, material, count)
}

// Parse reads Q:/A: pairs from text. Markers are case-insensitive and pairs
// whose question or answer is 5 characters or shorter are dropped.
func Parse(text string) []domain.FlashcardDraft {
	var cards []domain.FlashcardDraft
	for _, part := range questionMarker.Split(text, -1) {
		qa := answerMarker.Split(part, 2)
		if len(qa) != 2 {
			continue
		}
		q := newlines.ReplaceAllString(strings.TrimSpace(qa[0]), " ")
		a := newlines.ReplaceAllString(strings.TrimSpace(qa[1]), " ")
		if len(q) <= minSideLength || len(a) <= minSideLength {
			continue
		}
		cards = append(cards, domain.FlashcardDraft{Question: q, Answer: a})
	}
	return cards
}

// FallbackCards are returned when no card could be generated.
func FallbackCards() []domain.FlashcardDraft {
	return []domain.FlashcardDraft{
		{
			Question: "What is the main topic covered in your study materials?",
			Answer:   "Review your uploaded documents to understand the main concepts.",
		},
		{
			Question: "What are the key terms you need to remember?",
			Answer:   "Create a list of important terminology from your materials.",
		},
	}
}

// firstRunes returns the first n characters of s.
func firstRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
