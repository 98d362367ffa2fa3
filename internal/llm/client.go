package llm

import (
	"context"
	"errors"
)

type Message struct {
	Role    string
	Content string
}

type Response struct {
	Content          string
	Model            string
	LatencyMS        int64
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	RequestID        string
}

// ErrGeneration is the single error kind the generation contract
// fails with. Callers decide between a user-facing fallback and a
// silent log entry; they never retry themselves.
var ErrGeneration = errors.New("llm generation failed")

type Client interface {
	Generate(ctx context.Context, messages []Message) (Response, error)
}

// Meta flattens the response metadata for persistence alongside the
// assistant message.
func (r Response) Meta() map[string]any {
	return map[string]any{
		"model":      r.Model,
		"latency_ms": r.LatencyMS,
		"token_usage": map[string]any{
			"prompt_tokens":     r.PromptTokens,
			"completion_tokens": r.CompletionTokens,
			"total_tokens":      r.TotalTokens,
		},
		"request_id": r.RequestID,
	}
}
