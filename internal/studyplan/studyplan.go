// Package studyplan drafts a day-by-day study schedule towards a deadline.
package studyplan

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"studyrag/internal/domain"
	"studyrag/internal/llm"
	"studyrag/internal/metrics"
)

// DeadlinePassedMessage is returned instead of a plan for a past deadline.
const DeadlinePassedMessage = "Your deadline has passed!"

// NoDocumentsLine stands in for the material list of an empty workspace.
const NoDocumentsLine = "No documents uploaded yet"

// reviewDays is how many closing days the fallback plan keeps for review.
const reviewDays = 2

// Options are the sampling parameters of the plan call.
var Options = llm.Options{Temperature: 0.7, TopP: 0.9, MaxTokens: 2000}

// Result is a generated plan.
type Result struct {
	Plan          string
	DaysAvailable int
	Fallback      bool
}

// Planner drafts study plans.
type Planner struct {
	llm     llm.Generator
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// New creates a Planner. m and logger may be nil.
func New(gen llm.Generator, m *metrics.Metrics, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{llm: gen, metrics: m, logger: logger}
}

// DaysUntil counts whole days from now to deadline, rounding down. A result
// below zero means the deadline has passed.
func DaysUntil(deadline, now time.Time) int {
	return int(math.Floor(deadline.Sub(now).Hours() / 24))
}

// Generate drafts a plan for workspace covering docs. A deadline later today
// still gets a one day plan.
func (p *Planner) Generate(ctx context.Context, workspace string, deadline time.Time, docs []domain.Document, now time.Time) (Result, error) {
	days := DaysUntil(deadline, now)
	if days < 0 {
		return Result{Plan: DeadlinePassedMessage}, nil
	}
	if days == 0 {
		days = 1
	}

	plan, err := p.llm.Generate(ctx, BuildPrompt(workspace, deadline, days, docs, now), Options)
	if err == nil {
		if plan = strings.TrimSpace(plan); plan != "" {
			return Result{Plan: plan, DaysAvailable: days}, nil
		}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, ctxErr
	}
	p.metrics.Fallback("study_plan")
	p.logger.Warn("study plan generation failed, using fallback",
		zap.String("workspace", workspace),
		zap.Int("days", days),
		zap.Error(err),
	)
	return Result{Plan: FallbackPlan(workspace, days, docs, now), DaysAvailable: days, Fallback: true}, nil
}

func docList(docs []domain.Document) string {
	if len(docs) == 0 {
		return NoDocumentsLine
	}
	lines := make([]string, len(docs))
	for i, d := range docs {
		lines[i] = fmt.Sprintf("- %s (%d sections)", d.Filename, d.ChunkCount)
	}
	return strings.Join(lines, "\n")
}

func dayLabel(now time.Time, n int) string {
	return now.AddDate(0, 0, n).Format("Monday, January 02")
}

// BuildPrompt asks for a dated day-by-day plan.
func BuildPrompt(workspace string, deadline time.Time, days int, docs []domain.Document, now time.Time) string {
	var b strings.Builder
	b.WriteString("You are an expert study planner. Create a detailed, day-by-day study plan for a student.\n\n")
	fmt.Fprintf(&b, "Workspace: %s\nDays Available: %d days\nDeadline: %s\n\n", workspace, days, deadline.Format("January 02, 2006"))
	fmt.Fprintf(&b, "Materials to Study:\n%s\n\n", docList(docs))
	b.WriteString(`Instructions:
1. Create a realistic day-by-day breakdown
2. Allocate time for initial learning, practice, and review
3. Include buffer days for unexpected delays
4. Schedule review sessions using spaced repetition principles
5. Reserve the last 2-3 days for final review and practice
6. Be specific about what topics to cover each day
7. Include estimated time per activity

Format the plan like this:

`)
	fmt.Fprintf(&b, "**Day 1** (%s)\n- Morning (2 hours): [Specific topic/chapter]\n- Afternoon (2 hours): [Specific topic/chapter]\n- Evening (1 hour): Review and practice problems\n\n", dayLabel(now, 1))
	fmt.Fprintf(&b, "**Day 2** (%s)\n...\n\n", dayLabel(now, 2))
	b.WriteString("**Final Review Days**\n...\n\n**Success Tips**\n- Take regular breaks\n- Stay consistent with daily goals\n\n")
	b.WriteString("Create the complete plan now:")
	return b.String()
}

// FallbackPlan spreads the documents over the days before the review days,
// in the given order, and ends with review.
func FallbackPlan(workspace string, days int, docs []domain.Document, now time.Time) string {
	if days < 1 {
		days = 1
	}
	learning := days - reviewDays
	if learning < 1 {
		learning = 1
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Study plan for %s: %d days, %d documents.\n\n", workspace, days, len(docs))
	for d := 1; d <= days; d++ {
		fmt.Fprintf(&b, "**Day %d** (%s)\n", d, dayLabel(now, d))
		if d > learning || len(docs) == 0 {
			b.WriteString("- Review summaries and key terms\n")
			b.WriteString("- Practice with due flashcards\n")
			b.WriteString("- Ask the chat about weak areas\n\n")
			continue
		}
		for _, doc := range docsForDay(docs, d-1, learning) {
			fmt.Fprintf(&b, "- Study %s (%d sections)\n", doc.Filename, doc.ChunkCount)
		}
		b.WriteString("- Evening: review today's material with flashcards\n\n")
	}
	b.WriteString("**Success Tips**\n- Study in focused blocks with short breaks\n- Use active recall instead of rereading notes\n")
	return b.String()
}

// docsForDay splits docs into learning contiguous slices and returns slice i.
// When there are more days than documents a document is studied on several
// consecutive days.
func docsForDay(docs []domain.Document, i, learning int) []domain.Document {
	if len(docs) <= learning {
		return docs[i*len(docs)/learning : i*len(docs)/learning+1]
	}
	start := i * len(docs) / learning
	end := (i + 1) * len(docs) / learning
	return docs[start:end]
}
