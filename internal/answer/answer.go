// Package answer builds grounded answers to questions from retrieved chunks.
package answer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"studyrag/internal/llm"
)

// TopK is the number of chunks retrieved per question.
const TopK = 5

// NoInformationMessage is returned when the workspace has nothing relevant.
const NoInformationMessage = "I couldn't find any relevant information in your uploaded documents. Please upload study materials first!"

// AnswerFailedMessage is the user-safe text shown when generation fails.
const AnswerFailedMessage = "Sorry, I couldn't generate an answer right now. Please try again in a moment."

// Options are the sampling parameters of answer generation.
var Options = llm.Options{Temperature: 0.7, TopP: 0.9, MaxTokens: 500}

// Searcher retrieves chunk texts for a query.
type Searcher interface {
	Search(ctx context.Context, workspaceID, query string, topK int) ([]string, error)
}

// Answerer answers questions from a workspace's documents.
type Answerer struct {
	index  Searcher
	llm    llm.Generator
	logger *zap.Logger
}

// New creates an Answerer.
func New(index Searcher, gen llm.Generator, logger *zap.Logger) *Answerer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Answerer{index: index, llm: gen, logger: logger}
}

// Answer retrieves context for question and asks the model. When nothing is
// retrieved it returns NoInformationMessage without calling the model.
func (a *Answerer) Answer(ctx context.Context, workspaceID, question string) (string, error) {
	chunks, err := a.index.Search(ctx, workspaceID, question, TopK)
	if err != nil {
		return "", fmt.Errorf("retrieving context: %w", err)
	}
	if len(chunks) == 0 {
		return NoInformationMessage, nil
	}

	text, err := a.llm.Generate(ctx, BuildPrompt(question, chunks), Options)
	if err != nil {
		a.logger.Warn("answer generation failed",
			zap.String("workspace_id", workspaceID),
			zap.Int("chunks", len(chunks)),
			zap.Error(err),
		)
		return "", fmt.Errorf("generating answer: %w", err)
	}
	return text, nil
}

// BuildContext numbers chunks as "[1] ...", "[2] ..." separated by blank lines.
func BuildContext(chunks []string) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = fmt.Sprintf("[%d] %s", i+1, c)
	}
	return strings.Join(parts, "\n\n")
}

// BuildPrompt renders the grounded question-answering prompt.
func BuildPrompt(question string, chunks []string) string {
	var b strings.Builder
	b.WriteString("You are a helpful study assistant. Answer the student's question based on the provided context from their study materials.\n\n")
	b.WriteString("Context from study materials:\n")
	b.WriteString(BuildContext(chunks))
	b.WriteString("\n\nStudent's Question: ")
	b.WriteString(question)
	b.WriteString("\n\nInstructions:\n")
	b.WriteString("- Answer based on the context provided\n")
	b.WriteString("- If the context doesn't contain the answer, say so clearly\n")
	b.WriteString("- Cite which context snippet you used (e.g., \"According to [1]...\")\n")
	b.WriteString("- Be clear, concise, and educational\n\n")
	b.WriteString("Answer:")
	return b.String()
}
