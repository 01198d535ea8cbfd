package conversation

import (
	"context"
	"errors"
)

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is an internal message representation that can include system prompts.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MediaAttachment carries raw media bytes alongside the final user turn, used
// for voice notes that the model should transcribe and answer.
type MediaAttachment struct {
	MIMEType string
	Data     []byte
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

type LLMRequest struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	Media       *MediaAttachment
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

type LLMResponse struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}

// ErrAllProvidersFailed is returned by ChainLLMClient when every configured
// model failed or produced an empty reply.
var ErrAllProvidersFailed = errors.New("conversation: all llm providers failed")
