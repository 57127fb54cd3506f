package summarizer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"studyrag/internal/domain"
	"studyrag/internal/llm"
	"studyrag/internal/logging"
)

func TestRenderOutline(t *testing.T) {
	long := strings.Repeat("e", 200)
	groups := []domain.TopicGroup{{
		Name: "Regression and Modeling",
		Sections: []domain.SemanticSection{{
			Definitions:  []string{"A residual is the error", "A coefficient is a slope"},
			Formulas:     []string{"y = a + bx"},
			BulletPoints: []string{"fit", "ship"},
			Enumerations: []string{"first"},
			Examples:     []string{long},
			KeyTerms:     []string{"residual", "Residual", "slope"},
		}},
	}}
	out := RenderOutline(groups)

	assert.True(t, strings.HasPrefix(out, "### Regression and Modeling (1 sections)\n"))
	assert.Contains(t, out, "Definitions:\n- A residual is the error\n- A coefficient is a slope\n")
	assert.Contains(t, out, "Formulas:\n- y = a + bx\n")
	assert.Contains(t, out, "Key concepts:\n- fit\n- ship\n- first\n")
	assert.Contains(t, out, "- "+strings.Repeat("e", 150)+"...\n")
	assert.Contains(t, out, "Key terms: residual, slope")
	assert.NotContains(t, out, OutlineTruncated)
}

func TestRenderOutline_Caps(t *testing.T) {
	sec := domain.SemanticSection{}
	for i := 0; i < 12; i++ {
		sec.Definitions = append(sec.Definitions, "definition "+strings.Repeat("d", i))
		sec.BulletPoints = append(sec.BulletPoints, "bullet "+strings.Repeat("b", i))
	}
	out := RenderOutline([]domain.TopicGroup{{Name: "T", Sections: []domain.SemanticSection{sec}}})
	assert.Equal(t, 5, strings.Count(out, "- definition"))
	assert.Equal(t, 8, strings.Count(out, "- bullet"))
}

func TestRenderOutline_Truncates(t *testing.T) {
	var groups []domain.TopicGroup
	for i := 0; i < 40; i++ {
		groups = append(groups, domain.TopicGroup{
			Name:     "Topic",
			Sections: []domain.SemanticSection{{Definitions: []string{strings.Repeat("word ", 40)}}},
		})
	}
	out := RenderOutline(groups)
	assert.True(t, strings.HasSuffix(out, OutlineTruncated))
	assert.LessOrEqual(t, len(out), MaxOutlineChars+len(OutlineTruncated))
}

func TestBuildSynthesisPrompt(t *testing.T) {
	report := domain.CoverageReport{TotalChunks: 2, SectionsWithContent: 2, CoveragePercentage: 100, Quality: domain.QualityHigh, TopicCount: 1}
	p := BuildSynthesisPrompt("stats.pdf", "### Topic", report)

	for _, h := range []string{
		HeadingExecutiveSummary, HeadingMainTopics, HeadingDetailed, HeadingTakeaways,
		HeadingTerms, HeadingFormulas, HeadingQuestions, HeadingCoverage,
	} {
		assert.Contains(t, p, "## "+h+"\n")
	}
	assert.Contains(t, p, `"stats.pdf"`)
	assert.Contains(t, p, "### Topic")
	assert.Contains(t, p, CoverageLine(report))
}

func TestSummarize_UsesModelOutput(t *testing.T) {
	var calls int
	var gotOpts llm.Options
	gen := llm.Func(func(_ context.Context, prompt string, opts llm.Options) (string, error) {
		calls++
		gotOpts = opts
		return sampleGuide, nil
	})
	s := New(gen)

	sum, err := s.Summarize(context.Background(), "7", "regression.md", []string{ggplotText, "- a bullet\n- another"})
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, SynthesisOptions, gotOpts)
	assert.False(t, sum.Fallback)
	assert.Equal(t, "7", sum.DocumentID)
	assert.Equal(t, 2, sum.ChunkCount)
	assert.Equal(t, 100.0, sum.Coverage.CoveragePercentage)
	assert.Len(t, sum.KeyPoints, MaxKeyPoints)
	assert.Equal(t, []string{"Residual", "Coefficient", "R-squared"}, sum.Terms)
	assert.NotEmpty(t, sum.Topics)
	assert.Positive(t, sum.WordCount)
}

func TestSummarize_FallbackOnModelError(t *testing.T) {
	gen := llm.Func(func(context.Context, string, llm.Options) (string, error) {
		return "", domain.ErrUpstream
	})
	logger, logs := logging.NewObserved(zapcore.WarnLevel)
	s := New(gen, WithLogger(logger))

	sum, err := s.Summarize(context.Background(), "7", "viz.md", []string{ggplotText})
	require.NoError(t, err)

	assert.True(t, sum.Fallback)
	assert.Contains(t, sum.Text, "## "+HeadingMainTopics)
	assert.Contains(t, sum.Text, CoverageLine(sum.Coverage))
	assert.Equal(t, []string{"Data Visualization with ggplot2"}, sum.Topics)
	assert.NotEmpty(t, sum.KeyPoints)
	assert.Equal(t, 1, logs.FilterMessage("study guide synthesis failed, using fallback").Len())
}

func TestSummarize_FallbackOnEmptyOutput(t *testing.T) {
	gen := llm.Func(func(context.Context, string, llm.Options) (string, error) { return "  \n", nil })
	sum, err := New(gen).Summarize(context.Background(), "7", "viz.md", []string{ggplotText})
	require.NoError(t, err)
	assert.True(t, sum.Fallback)
}

func TestSummarize_EmptyInput(t *testing.T) {
	_, err := New(nil).Summarize(context.Background(), "7", "x", nil)
	assert.ErrorIs(t, err, domain.ErrEmptyInput)
}

func TestSummarize_CanceledContextIsNotMasked(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := llm.Func(func(context.Context, string, llm.Options) (string, error) {
		cancel()
		return "", errors.New("request aborted")
	})
	_, err := New(gen).Summarize(ctx, "7", "x", []string{ggplotText})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWordCount(t *testing.T) {
	sections := []domain.SemanticSection{
		{Heading: "Two words", Definitions: []string{"three words here"}},
		{KeyTerms: []string{"one", "two terms"}},
	}
	assert.Equal(t, 8, WordCount(sections))
}

func TestQuickSummary(t *testing.T) {
	t.Run("model output", func(t *testing.T) {
		var gotPrompt string
		gen := llm.Func(func(_ context.Context, prompt string, opts llm.Options) (string, error) {
			gotPrompt = prompt
			assert.Equal(t, QuickOptions, opts)
			return "  A short summary.  ", nil
		})
		out, fallback := New(gen).QuickSummary(context.Background(), strings.Repeat("x", 5000), 0)
		assert.Equal(t, "A short summary.", out)
		assert.False(t, fallback)
		assert.Contains(t, gotPrompt, "in 150 words or less")
		assert.NotContains(t, gotPrompt, strings.Repeat("x", 3001))
	})
	t.Run("fallback", func(t *testing.T) {
		gen := llm.Func(func(context.Context, string, llm.Options) (string, error) {
			return "", domain.ErrUpstream
		})
		text := "Cells are the unit of life. Cells divide by mitosis. The weather was nice."
		out, fallback := New(gen).QuickSummary(context.Background(), text, 10)
		assert.True(t, fallback)
		assert.NotEmpty(t, out)
		assert.LessOrEqual(t, len(strings.Fields(out)), 11)
	})
	t.Run("empty text", func(t *testing.T) {
		out, fallback := New(nil).QuickSummary(context.Background(), "   ", 10)
		assert.Empty(t, out)
		assert.False(t, fallback)
	})
}

func TestExtractive(t *testing.T) {
	text := "Mitosis splits a cell. Mitosis makes two cells from one cell. Lunch was served at noon."
	out := Extractive(text, 100)
	assert.Equal(t, text, out)

	out = Extractive(text, 8)
	assert.Contains(t, out, "Mitosis")
	assert.NotContains(t, out, "Lunch")
	assert.Equal(t, "", Extractive("", 10))
}
