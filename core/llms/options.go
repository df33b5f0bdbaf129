package llms

import (
	"context"
	"errors"
)

// ErrCompletion wraps failures reported by a completion service, such as
// non-2xx responses or replies without any choices.
var ErrCompletion = errors.New("completion failed")

// Completer produces the next assistant reply for a conversation.
type Completer interface {
	Complete(ctx context.Context, messages []Message, opts ...CompletionOption) (string, error)
}

type CompletionOptions struct {
	// Instructions are sent as the system prompt ahead of the conversation
	Instructions string
	Temperature  *float64
	MaxTokens    int
}

type CompletionOption func(*CompletionOptions)

func WithInstructions(instructions string) CompletionOption {
	return func(o *CompletionOptions) { o.Instructions = instructions }
}

func WithTemperature(temperature float64) CompletionOption {
	return func(o *CompletionOptions) { o.Temperature = &temperature }
}

func WithMaxTokens(maxTokens int) CompletionOption {
	return func(o *CompletionOptions) { o.MaxTokens = maxTokens }
}

// NewCompletionOptions applies opts on top of base.
func NewCompletionOptions(base CompletionOptions, opts ...CompletionOption) CompletionOptions {
	for _, opt := range opts {
		opt(&base)
	}
	return base
}
