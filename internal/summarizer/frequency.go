package summarizer

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"studyrag/internal/chunker"
)

var wordPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)

var stopwords = func() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()

func contentWords(text string) []string {
	all := wordPattern.FindAllString(strings.ToLower(text), -1)
	out := all[:0]
	for _, w := range all {
		if _, stop := stopwords[w]; !stop {
			out = append(out, w)
		}
	}
	return out
}

// Extractive picks the sentences carrying the most frequent content words,
// in document order, until maxWords words are used. It needs no model.
func Extractive(text string, maxWords int) string {
	if maxWords <= 0 {
		maxWords = DefaultQuickWords
	}
	sentences := chunker.SplitSentences(text)
	if len(sentences) == 0 {
		return ""
	}

	freq := map[string]float64{}
	maxF := 0.0
	for _, sent := range sentences {
		for _, w := range contentWords(sent) {
			freq[w]++
			maxF = math.Max(maxF, freq[w])
		}
	}

	type scored struct {
		idx   int
		score float64
		words int
	}
	ranked := make([]scored, len(sentences))
	for i, sent := range sentences {
		words := contentWords(sent)
		score := 0.0
		for _, w := range words {
			score += freq[w] / maxF
		}
		// Normalize by sentence length to avoid bias toward long sentences.
		if len(words) > 0 {
			score /= math.Sqrt(float64(len(words)))
		}
		ranked[i] = scored{idx: i, score: score, words: len(strings.Fields(sent))}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	var picked []int
	budget := maxWords
	for _, r := range ranked {
		if r.words > budget {
			if len(picked) == 0 {
				return truncateWords(strings.TrimSpace(sentences[r.idx]), maxWords)
			}
			continue
		}
		picked = append(picked, r.idx)
		budget -= r.words
	}
	sort.Ints(picked)

	out := make([]string, len(picked))
	for i, idx := range picked {
		out[i] = strings.TrimSpace(sentences[idx])
	}
	return strings.Join(out, " ")
}

func truncateWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return s
	}
	return strings.Join(words[:n], " ") + "..."
}
