// Package llm holds the generation provider adapter and token cost arithmetic.
package llm

import (
	"context"
	"errors"
)

// ErrEmptyCompletion is returned when the provider answers with no usable text.
var ErrEmptyCompletion = errors.New("provider returned an empty completion")

// Completion is the provider output consumed by the orchestrator.
type Completion struct {
	Text        string
	TotalTokens int
}

// Provider generates text for a prompt.
type Provider interface {
	Complete(ctx context.Context, prompt string, maxOutputTokens int, temperature float32) (Completion, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, prompt string, maxOutputTokens int, temperature float32) (Completion, error)

func (f ProviderFunc) Complete(ctx context.Context, prompt string, maxOutputTokens int, temperature float32) (Completion, error) {
	return f(ctx, prompt, maxOutputTokens, temperature)
}
