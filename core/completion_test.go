package orchestration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/koscakluka/ema-voice/core/llms"
)

func TestCompleteReturnsTrimmedReply(t *testing.T) {
	llm := &stubLLM{complete: replyWith("  It is noon.\n")}
	client := NewCompletionClient(llm, time.Second, llms.WithInstructions("be brief"))

	result := client.Complete(context.Background(), []ConversationMessage{
		{Role: RoleUser, Content: "what time is it"},
		{Role: RoleAssistant, Content: "let me check"},
		{Role: RoleUser, Content: "well?"},
	})

	if result.Reply != "It is noon." || result.Fallback {
		t.Fatalf("unexpected result %+v", result)
	}

	llm.mu.Lock()
	defer llm.mu.Unlock()
	messages := llm.calls[0]
	wantRoles := []llms.MessageRole{llms.MessageRoleUser, llms.MessageRoleAssistant, llms.MessageRoleUser}
	if len(messages) != len(wantRoles) {
		t.Fatalf("expected %d messages, got %d", len(wantRoles), len(messages))
	}
	for i, role := range wantRoles {
		if messages[i].Role != role {
			t.Fatalf("message %d: expected role %q, got %q", i, role, messages[i].Role)
		}
	}
	if llm.options[0].Instructions != "be brief" {
		t.Fatalf("expected instructions to be passed, got %q", llm.options[0].Instructions)
	}
}

func TestCompleteFallsBackOnFailure(t *testing.T) {
	testCases := []struct {
		name    string
		llm     LLM
		timeout time.Duration
	}{
		{
			name: "error",
			llm: &stubLLM{complete: func(context.Context, []llms.Message) (string, error) {
				return "", errors.New("rate limited")
			}},
			timeout: time.Second,
		},
		{
			name: "timeout",
			llm: &stubLLM{complete: func(ctx context.Context, _ []llms.Message) (string, error) {
				<-ctx.Done()
				time.Sleep(50 * time.Millisecond)
				return "too late", nil
			}},
			timeout: 20 * time.Millisecond,
		},
		{
			name: "panic",
			llm: &stubLLM{complete: func(context.Context, []llms.Message) (string, error) {
				panic("boom")
			}},
			timeout: time.Second,
		},
		{
			name:    "no llm",
			llm:     nil,
			timeout: time.Second,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client := NewCompletionClient(tc.llm, tc.timeout)
			result := client.Complete(context.Background(), []ConversationMessage{{Role: RoleUser, Content: "hi"}})
			if result.Reply != FallbackReply || !result.Fallback {
				t.Fatalf("expected fallback reply, got %+v", result)
			}
		})
	}
}

func TestCompleteReplacesEmptyReply(t *testing.T) {
	client := NewCompletionClient(&stubLLM{complete: replyWith("   ")}, time.Second)

	result := client.Complete(context.Background(), []ConversationMessage{{Role: RoleUser, Content: "hi"}})
	if result.Reply != EmptyReply || result.Fallback {
		t.Fatalf("expected empty reply substitute, got %+v", result)
	}
}

func TestNewCompletionClientDefaultsTimeout(t *testing.T) {
	client := NewCompletionClient(nil, 0)
	if client.timeout != DefaultCompletionTimeout {
		t.Fatalf("expected default timeout, got %s", client.timeout)
	}
}
