package summarizer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"studyrag/internal/llm"
)

// Quick summary limits.
const (
	DefaultQuickWords = 150
	maxQuickInput     = 3000
)

// QuickOptions are the sampling parameters of the one-paragraph summary.
var QuickOptions = llm.Options{Temperature: 0.5, MaxTokens: 200}

// QuickSummary summarizes the first 3000 bytes of text in at most maxWords
// words. When the model fails an extractive summary is returned instead.
func (s *Summarizer) QuickSummary(ctx context.Context, text string, maxWords int) (string, bool) {
	if maxWords <= 0 {
		maxWords = DefaultQuickWords
	}
	text = truncateBytes(strings.TrimSpace(text), maxQuickInput)
	if text == "" {
		return "", false
	}

	prompt := fmt.Sprintf("Summarize the following text in %d words or less. Be concise and focus on the main points.\n\nText:\n%s\n\nSummary:", maxWords, text)
	out, err := s.llm.Generate(ctx, prompt, QuickOptions)
	if err == nil {
		if out = strings.TrimSpace(out); out != "" {
			return out, false
		}
	}
	s.metrics.Fallback("quick_summary")
	s.logger.Warn("quick summary failed, using extractive summary", zap.Error(err))
	return Extractive(text, maxWords), true
}
