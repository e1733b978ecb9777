package providers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const MockClientName = "mock"

// MockClient is an LLMClient for testing.
type MockClient struct {
	// Configurable behavior
	Latency      time.Duration
	ShouldFail   bool
	FailAfter    int // Fail after N requests (0 = never)
	ResponseText string
	Responses    []string // Returned in order, then ResponseText

	// State
	requestCount atomic.Int64
	mu           sync.Mutex
	requests     []*ChatRequest
}

// NewMockClient creates a new mock client with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{
		Latency:      time.Millisecond,
		ResponseText: "mock response",
	}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// Chat sends a mock chat request.
func (c *MockClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()
	count := c.requestCount.Add(1)

	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	if c.ShouldFail {
		return nil, fmt.Errorf("mock client configured to fail")
	}
	if c.FailAfter > 0 && int(count) > c.FailAfter {
		return nil, fmt.Errorf("mock client failed after %d requests", c.FailAfter)
	}

	select {
	case <-time.After(c.Latency):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	content := c.ResponseText
	if i := int(count) - 1; i < len(c.Responses) {
		content = c.Responses[i]
	}

	promptTokens := 0
	for _, m := range req.Messages {
		promptTokens += len(m.Content) / 4 // Rough estimate
	}
	completionTokens := len(content) / 4

	return &ChatResult{
		Content:          content,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		Provider:         MockClientName,
		ModelUsed:        req.Model,
		ExecutionTime:    time.Since(start),
	}, nil
}

// Requests returns the requests received so far.
func (c *MockClient) Requests() []*ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*ChatRequest(nil), c.requests...)
}

// RequestCount returns the number of requests made.
func (c *MockClient) RequestCount() int64 {
	return c.requestCount.Load()
}

// Reset resets the request counter.
func (c *MockClient) Reset() {
	c.requestCount.Store(0)
	c.mu.Lock()
	c.requests = nil
	c.mu.Unlock()
}

// Verify interface
var _ LLMClient = (*MockClient)(nil)

// MockMusicProvider is a MusicProvider for testing.
type MockMusicProvider struct {
	Latency    time.Duration
	Err        error // Returned from Compose when set
	Audio      []byte
	HealthErr  error
	LastPrompt string

	requestCount atomic.Int64
	mu           sync.Mutex
	requests     []*MusicRequest
}

// NewMockMusicProvider creates a new mock music provider.
func NewMockMusicProvider() *MockMusicProvider {
	return &MockMusicProvider{
		Audio: []byte("ID3mock-audio"),
	}
}

// Name returns the provider identifier.
func (p *MockMusicProvider) Name() string {
	return MockClientName
}

// HealthCheck returns HealthErr.
func (p *MockMusicProvider) HealthCheck(ctx context.Context) error {
	return p.HealthErr
}

// Compose returns Audio, or Err when set.
func (p *MockMusicProvider) Compose(ctx context.Context, req *MusicRequest) (*MusicResult, error) {
	start := time.Now()
	p.requestCount.Add(1)

	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.LastPrompt = req.Prompt
	p.mu.Unlock()

	if p.Latency > 0 {
		select {
		case <-time.After(p.Latency):
		case <-ctx.Done():
			return nil, newGenerationError(ctx.Err())
		}
	}
	if p.Err != nil {
		return nil, p.Err
	}

	return &MusicResult{
		Audio:         p.Audio,
		Format:        "mp3",
		SampleRate:    44100,
		ContentType:   "audio/mpeg",
		RequestID:     fmt.Sprintf("mock-%d", p.requestCount.Load()),
		Attempts:      1,
		ExecutionTime: time.Since(start),
	}, nil
}

// Requests returns the requests received so far.
func (p *MockMusicProvider) Requests() []*MusicRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*MusicRequest(nil), p.requests...)
}

// RequestCount returns the number of requests made.
func (p *MockMusicProvider) RequestCount() int64 {
	return p.requestCount.Load()
}

// Verify interface
var _ MusicProvider = (*MockMusicProvider)(nil)
