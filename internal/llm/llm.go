// Package llm defines the text-completion contract the core consumes.
//
// A Generator is a remote, fallible, stateless call. Responses are treated as
// opaque text; callers always parse them defensively.
package llm

import "context"

// Options are the sampling parameters of one generation request.
type Options struct {
	Temperature float64
	TopP        float64
	MaxTokens   int
	// ContextWindow overrides the model context size when non-zero.
	ContextWindow int
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
}

// Func adapts an ordinary function to Generator.
type Func func(ctx context.Context, prompt string, opts Options) (string, error)

// Generate calls f.
func (f Func) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	return f(ctx, prompt, opts)
}
