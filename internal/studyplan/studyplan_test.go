package studyplan

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"studyrag/internal/domain"
	"studyrag/internal/llm"
	"studyrag/internal/logging"
)

var now = time.Date(2025, 11, 24, 10, 0, 0, 0, time.UTC)

var docs = []domain.Document{
	{Filename: "intro.pdf", ChunkCount: 12},
	{Filename: "roles.md", ChunkCount: 8},
	{Filename: "cycle.txt", ChunkCount: 5},
}

func failing() llm.Generator {
	return llm.Func(func(context.Context, string, llm.Options) (string, error) {
		return "", domain.ErrUpstream
	})
}

func TestDaysUntil(t *testing.T) {
	assert.Equal(t, 3, DaysUntil(now.Add(3*24*time.Hour+time.Hour), now))
	assert.Equal(t, 0, DaysUntil(now.Add(time.Hour), now))
	assert.Equal(t, -1, DaysUntil(now.Add(-time.Hour), now))
}

func TestGenerate_DeadlinePassed(t *testing.T) {
	var called bool
	gen := llm.Func(func(context.Context, string, llm.Options) (string, error) {
		called = true
		return "plan", nil
	})
	res, err := New(gen, nil, nil).Generate(context.Background(), "Stats", now.Add(-48*time.Hour), docs, now)
	require.NoError(t, err)
	assert.Equal(t, DeadlinePassedMessage, res.Plan)
	assert.False(t, called)
}

func TestGenerate_UsesModel(t *testing.T) {
	var prompt string
	gen := llm.Func(func(_ context.Context, p string, opts llm.Options) (string, error) {
		prompt = p
		assert.Equal(t, Options, opts)
		return "  **Day 1** read everything  ", nil
	})
	res, err := New(gen, nil, nil).Generate(context.Background(), "Stats", now.Add(2*time.Hour), docs, now)
	require.NoError(t, err)

	assert.Equal(t, "**Day 1** read everything", res.Plan)
	assert.Equal(t, 1, res.DaysAvailable)
	assert.False(t, res.Fallback)
	assert.Contains(t, prompt, "Workspace: Stats")
	assert.Contains(t, prompt, "Days Available: 1 days")
	assert.Contains(t, prompt, "- intro.pdf (12 sections)\n- roles.md (8 sections)")
	assert.Contains(t, prompt, "**Day 1** (Tuesday, November 25)")
}

func TestGenerate_NoDocuments(t *testing.T) {
	var prompt string
	gen := llm.Func(func(_ context.Context, p string, _ llm.Options) (string, error) {
		prompt = p
		return "plan", nil
	})
	_, err := New(gen, nil, nil).Generate(context.Background(), "Empty", now.AddDate(0, 0, 5), nil, now)
	require.NoError(t, err)
	assert.Contains(t, prompt, NoDocumentsLine)
}

func TestGenerate_Fallback(t *testing.T) {
	logger, logs := logging.NewObserved(zapcore.WarnLevel)
	res, err := New(failing(), nil, logger).Generate(context.Background(), "Stats", now.AddDate(0, 0, 4), docs, now)
	require.NoError(t, err)

	assert.True(t, res.Fallback)
	assert.Equal(t, 4, res.DaysAvailable)
	assert.Equal(t, FallbackPlan("Stats", 4, docs, now), res.Plan)
	assert.Equal(t, 1, logs.FilterMessage("study plan generation failed, using fallback").Len())
}

func TestFallbackPlan(t *testing.T) {
	plan := FallbackPlan("Stats", 4, docs, now)

	for d, label := range []string{"Tuesday, November 25", "Wednesday, November 26", "Thursday, November 27", "Friday, November 28"} {
		assert.Contains(t, plan, "**Day "+string(rune('1'+d))+"** ("+label+")")
	}
	for _, doc := range docs {
		assert.Equal(t, 1, strings.Count(plan, "- Study "+doc.Filename))
	}
	assert.Equal(t, 2, strings.Count(plan, "- Review summaries and key terms"))

	// Days 1 and 2 carry the documents in order.
	assert.Less(t, strings.Index(plan, "intro.pdf"), strings.Index(plan, "roles.md"))
	assert.Less(t, strings.Index(plan, "roles.md"), strings.Index(plan, "cycle.txt"))
	assert.Less(t, strings.Index(plan, "cycle.txt"), strings.Index(plan, "**Day 3**"))
}

func TestFallbackPlan_MoreDaysThanDocuments(t *testing.T) {
	plan := FallbackPlan("Stats", 6, docs[:1], now)
	assert.Equal(t, 4, strings.Count(plan, "- Study intro.pdf"))
	assert.Equal(t, 2, strings.Count(plan, "- Review summaries and key terms"))
}

func TestFallbackPlan_ShortDeadline(t *testing.T) {
	plan := FallbackPlan("Stats", 1, docs, now)
	assert.Contains(t, plan, "**Day 1**")
	assert.NotContains(t, plan, "**Day 2**")
	for _, doc := range docs {
		assert.Equal(t, 1, strings.Count(plan, "- Study "+doc.Filename), doc.Filename)
	}
}
