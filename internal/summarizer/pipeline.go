// Package summarizer turns the chunks of a document into a structured study
// guide.
//
// Three deterministic passes (skeleton extraction, topic grouping and coverage
// validation) prepare a bounded outline; one language model call turns it into
// prose which is then cleaned and parsed back into lists. A failed model call
// never fails the pipeline: a deterministic fallback guide takes its place.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"studyrag/internal/domain"
	"studyrag/internal/llm"
	"studyrag/internal/metrics"
)

// Summarizer runs the extraction and synthesis pipeline.
type Summarizer struct {
	llm     llm.Generator
	topics  []Topic
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// Option configures a Summarizer.
type Option func(*Summarizer)

// WithTopics replaces the canonical topic table.
func WithTopics(table []Topic) Option {
	return func(s *Summarizer) { s.topics = table }
}

// WithMetrics records fallbacks in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Summarizer) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Summarizer) { s.logger = l }
}

// New creates a Summarizer around gen.
func New(gen llm.Generator, opts ...Option) *Summarizer {
	s := &Summarizer{llm: gen, topics: CanonicalTopics, logger: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Summarize produces the study guide of one document. It only fails on empty
// input or a canceled context; model failures yield the fallback guide.
func (s *Summarizer) Summarize(ctx context.Context, documentID, filename string, chunks []string) (domain.Summary, error) {
	if len(chunks) == 0 {
		return domain.Summary{}, fmt.Errorf("%w: document %s has no chunks", domain.ErrEmptyInput, documentID)
	}

	sections, err := ExtractSkeleton(ctx, chunks)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("extracting skeleton: %w", err)
	}
	groups := GroupByTopic(sections, s.topics)
	report := ValidateCoverage(len(chunks), sections, groups)

	s.logger.Debug("skeleton extracted",
		zap.String("document_id", documentID),
		zap.Int("chunks", len(chunks)),
		zap.Int("sections", len(sections)),
		zap.Int("topics", len(groups)),
		zap.Float64("coverage", report.CoveragePercentage),
	)

	summary := domain.Summary{
		DocumentID: documentID,
		Filename:   filename,
		WordCount:  WordCount(sections),
		ChunkCount: len(chunks),
		Coverage:   report,
	}

	prompt := BuildSynthesisPrompt(filename, RenderOutline(groups), report)
	text, err := s.llm.Generate(ctx, prompt, SynthesisOptions)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("empty study guide")
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.Summary{}, ctxErr
		}
		s.metrics.Fallback("summary")
		s.logger.Warn("study guide synthesis failed, using fallback",
			zap.String("document_id", documentID),
			zap.Error(err),
		)
		text = FallbackSummary(filename, groups, report)
		summary.Fallback = true
	}

	summary.Text = Cleanup(text)
	summary.KeyPoints = ExtractKeyPoints(summary.Text)
	summary.Topics = ExtractTopics(summary.Text)
	summary.Formulas = ExtractFormulas(summary.Text)
	summary.Terms = ExtractTerms(summary.Text)
	return summary, nil
}

// WordCount sums the whitespace separated words of every extracted field of
// the skeleton, headings included. It measures the skeleton, not the document.
func WordCount(sections []domain.SemanticSection) int {
	n := 0
	count := func(items []string) {
		for _, it := range items {
			n += len(strings.Fields(it))
		}
	}
	for _, s := range sections {
		n += len(strings.Fields(s.Heading))
		count(s.Definitions)
		count(s.BulletPoints)
		count(s.Enumerations)
		count(s.Formulas)
		count(s.Algorithms)
		count(s.Examples)
		count(s.Conclusions)
		count(s.KeyTerms)
	}
	return n
}
