package providers

import (
	"context"
	"time"
)

// LLMClient is the interface for chat completion requests.
type LLMClient interface {
	// Chat sends a chat completion request.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error)

	// Name returns the client identifier (e.g., "gloo").
	Name() string
}

// MusicProvider composes music from a text prompt.
type MusicProvider interface {
	// Compose generates audio for a prompt.
	Compose(ctx context.Context, req *MusicRequest) (*MusicResult, error)

	// HealthCheck verifies the provider is reachable and credentials work.
	HealthCheck(ctx context.Context) error

	// Name returns the provider identifier (e.g., "elevenlabs").
	Name() string
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// ChatRequest is a request to an LLM.
type ChatRequest struct {
	// Required
	Messages []Message `json:"messages"`

	// Model selection (uses client default if empty)
	Model string `json:"model,omitempty"`

	// Generation parameters
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// ChatResult is the response from an LLM call.
type ChatResult struct {
	Content string `json:"content"`

	// Token counts
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	// Provider info
	Provider  string `json:"provider"`
	ModelUsed string `json:"model_used"`

	ExecutionTime time.Duration `json:"execution_time"`
}

// MusicRequest is a request to compose music.
type MusicRequest struct {
	Prompt       string        `json:"prompt"`
	Duration     time.Duration `json:"duration"`
	Instrumental bool          `json:"instrumental"`
	Format       string        `json:"format,omitempty"` // e.g., "mp3_44100_128"; client default if empty
}

// MusicResult is composed audio.
type MusicResult struct {
	Audio         []byte        `json:"-"`
	Format        string        `json:"format"` // Container: "mp3", "wav", ...
	SampleRate    int           `json:"sample_rate,omitempty"`
	ContentType   string        `json:"content_type"`
	RequestID     string        `json:"request_id,omitempty"`
	Attempts      int           `json:"attempts"`
	ExecutionTime time.Duration `json:"execution_time"`
}
