package summarizer

import (
	"context"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"studyrag/internal/domain"
)

// MaxHeadingWords bounds cleaned headings.
const MaxHeadingWords = 10

// ExtractSkeleton extracts one section per chunk in parallel and returns the
// non-empty sections in chunk order. Section numbers are 1-based chunk positions.
func ExtractSkeleton(ctx context.Context, chunks []string) ([]domain.SemanticSection, error) {
	results := make([]domain.SemanticSection, len(chunks))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, chunk := range chunks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = ExtractSection(i+1, chunk)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sections := make([]domain.SemanticSection, 0, len(results))
	for _, s := range results {
		if !s.IsEmpty() {
			sections = append(sections, s)
		}
	}
	return sections, nil
}

// ExtractSection applies the extraction table to a single chunk.
func ExtractSection(number int, chunk string) domain.SemanticSection {
	text := normalizeLines(chunk)
	section := domain.SemanticSection{
		SectionNumber: number,
		Heading:       extractHeading(text),
	}
	for _, ex := range Extractors {
		values := ex.extract(text)
		if len(values) == 0 {
			continue
		}
		switch ex.Field {
		case FieldDefinitions:
			section.Definitions = values
		case FieldBulletPoints:
			section.BulletPoints = values
		case FieldEnumerations:
			section.Enumerations = values
		case FieldFormulas:
			section.Formulas = values
		case FieldAlgorithms:
			section.Algorithms = values
		case FieldExamples:
			section.Examples = values
		case FieldConclusions:
			section.Conclusions = values
		case FieldKeyTerms:
			section.KeyTerms = values
		}
	}
	return section
}

func normalizeLines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = inlineBullet.ReplaceAllString(text, "$1\n$2")
	return inlineEnum.ReplaceAllString(text, "$1\n$2")
}

func (ex Extractor) extract(text string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, re := range ex.Patterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			v := m[0]
			if len(m) > 1 {
				v = m[1]
			}
			v = strings.Join(strings.Fields(v), " ")
			if v == "" {
				continue
			}
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
			if len(out) == ex.Limit {
				return out
			}
		}
	}
	return out
}

func extractHeading(text string) string {
	for _, re := range headingPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if h := CleanHeading(m[1]); h != "" {
			return h
		}
	}
	return ""
}

// CleanHeading strips page markers, "N / M" counters and unit/chapter/lecture
// labels, and cuts headings longer than MaxHeadingWords words.
func CleanHeading(h string) string {
	for _, re := range headingNoise {
		h = re.ReplaceAllString(h, " ")
	}
	words := strings.Fields(h)
	if len(words) > MaxHeadingWords {
		words = words[:MaxHeadingWords]
	}
	return strings.Trim(strings.Join(words, " "), " -:|.")
}
