package ai

import "context"

// ChatProvider is the boundary to the external semantic-extraction
// capability. The pipeline issues single bounded completion calls; no
// streaming or tool calling is needed.
type ChatProvider interface {
	Name() string

	// Chat sends one chat completion request. Implementations must respect
	// ctx deadlines; callers treat any error as a degraded (not fatal) result.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// MessageRole defines the role of a message sender
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is a single message in the conversation
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// ChatRequest is a chat completion request
type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// ChatResponse is the completion result
type ChatResponse struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
}
