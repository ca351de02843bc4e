package crew

import (
	"context"

	"github.com/codefionn/crewschnell/internal/history"
	"github.com/codefionn/crewschnell/internal/llm"
)

// LLMInvoker implements Invoker on top of an llm.Client. The model answers
// with plain text; tool use is surfaced by the surrounding system, so no
// actions are extracted here.
type LLMInvoker struct {
	client      llm.Client
	maxTokens   int
	temperature float64
}

// NewLLMInvoker wraps a model client. maxTokens <= 0 uses the client default.
func NewLLMInvoker(client llm.Client, maxTokens int, temperature float64) *LLMInvoker {
	return &LLMInvoker{client: client, maxTokens: maxTokens, temperature: temperature}
}

// Invoke implements Invoker.
func (i *LLMInvoker) Invoke(ctx context.Context, role, systemPrompt string, entries []history.Entry, userMessage string) (*Result, error) {
	messages := make([]*llm.Message, 0, len(entries))
	for _, e := range entries {
		messages = append(messages, &llm.Message{
			Role:       e.Role,
			Content:    e.Content,
			ToolCallID: e.ToolCallID,
		})
	}

	resp, err := i.client.CompleteWithRequest(ctx, &llm.CompletionRequest{
		Messages:     messages,
		SystemPrompt: systemPrompt,
		MaxTokens:    i.maxTokens,
		Temperature:  i.temperature,
	})
	if err != nil {
		return nil, err
	}
	return &Result{Text: resp.Content}, nil
}
