package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/koscakluka/ema-voice/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	FallbackReply            = "I apologize, but I encountered an issue processing your request."
	EmptyReply               = "I seem to be having trouble processing that request."
	DefaultCompletionTimeout = 20 * time.Second
)

var errNoLLM = errors.New("no llm configured")

type CompletionResult struct {
	Reply string
	// Fallback is set when the completion failed and FallbackReply was used.
	Fallback bool
}

// CompletionClient turns the conversation history into a reply. It never
// fails: errors, timeouts and panics all produce FallbackReply.
type CompletionClient struct {
	llm     LLM
	timeout time.Duration
	options []llms.CompletionOption
}

func NewCompletionClient(llm LLM, timeout time.Duration, opts ...llms.CompletionOption) *CompletionClient {
	if timeout <= 0 {
		timeout = DefaultCompletionTimeout
	}
	return &CompletionClient{llm: llm, timeout: timeout, options: opts}
}

func (c *CompletionClient) Complete(ctx context.Context, history []ConversationMessage) CompletionResult {
	ctx, span := tracer.Start(ctx, "complete conversation", trace.WithAttributes(attribute.Int("completion.history_length", len(history))))
	defer span.End()

	reply, err := c.complete(ctx, history)
	if err != nil {
		logger.Error("completion failed, using fallback reply", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		completionFallbackCounter.Add(ctx, 1)
		return CompletionResult{Reply: FallbackReply, Fallback: true}
	}

	if reply = strings.TrimSpace(reply); reply == "" {
		return CompletionResult{Reply: EmptyReply}
	}
	return CompletionResult{Reply: reply}
}

func (c *CompletionClient) complete(ctx context.Context, history []ConversationMessage) (string, error) {
	if c.llm == nil {
		return "", errNoLLM
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type completion struct {
		reply string
		err   error
	}
	resultCh := make(chan completion, 1)
	messages := toLLMMessages(history)

	go func() {
		var reply string
		err := panicSafeNamedWorker("completion", func(ctx context.Context) error {
			var err error
			reply, err = c.llm.Complete(ctx, messages, c.options...)
			return err
		})(ctx)
		resultCh <- completion{reply: reply, err: err}
	}()

	select {
	case result := <-resultCh:
		return result.reply, result.err
	case <-ctx.Done():
		return "", fmt.Errorf("completion interrupted: %w", ctx.Err())
	}
}

func toLLMMessages(history []ConversationMessage) []llms.Message {
	messages := make([]llms.Message, 0, len(history))
	for _, message := range history {
		role := llms.MessageRoleUser
		if message.Role == RoleAssistant {
			role = llms.MessageRoleAssistant
		}
		messages = append(messages, llms.Message{Role: role, Content: message.Content})
	}
	return messages
}
