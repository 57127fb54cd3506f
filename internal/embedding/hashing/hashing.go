package hashing

import (
	"context"
	"hash/fnv"
	"regexp"
	"strings"

	"studyrag/internal/embedding"
)

const DefaultDimension = 512

// Encoder is an offline bag-of-words embedder using the hashing trick.
// Unlike a fitted TF-IDF vocabulary it needs no corpus pass, so documents can be
// embedded one at a time. Vectors are sublinear term counts, L2 normalised.
type Encoder struct {
	dimension    int
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// NewEncoder creates a hashing encoder; dimension <= 0 selects DefaultDimension.
func NewEncoder(dimension int) *Encoder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Encoder{
		dimension:    dimension,
		tokenPattern: regexp.MustCompile(`[\p{L}\p{N}_]+(?:['’][\p{L}]+)*`),
		stopwords:    defaultStopwords(),
	}
}

// Name returns the identifier of this embedder implementation.
func (e *Encoder) Name() string { return "hashing" }

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Encoder) Dimension() int { return e.dimension }

// Encode embeds every text independently.
func (e *Encoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embed(t)
	}
	return out, nil
}

func (e *Encoder) embed(text string) []float32 {
	vec := make([]float32, e.dimension)
	tf := make(map[int]int)
	for _, tok := range e.tokenize(text) {
		tf[e.bucket(tok)]++
	}
	for idx, count := range tf {
		// 1 + log-ish damping keeps repeated terms from dominating
		vec[idx] = 1 + float32(count-1)*0.5
	}
	return embedding.Normalize(vec)
}

func (e *Encoder) bucket(token string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return int(h.Sum32() % uint32(e.dimension))
}

func (e *Encoder) tokenize(text string) []string {
	lower := strings.ToLower(text)
	raw := e.tokenPattern.FindAllString(lower, -1)
	if len(raw) == 0 {
		return nil
	}
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := e.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

var _ embedding.Encoder = (*Encoder)(nil)
