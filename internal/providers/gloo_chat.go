package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	GlooName            = "gloo"
	GlooDefaultTokenURL = "https://platform.ai.gloo.com/oauth2/token"
	GlooDefaultBaseURL  = "https://platform.ai.gloo.com/ai/v1/"
	GlooDefaultModel    = "us.anthropic.claude-sonnet-4-20250514-v1:0"
	GlooScope           = "api/access"
)

// GlooChatConfig holds configuration for the Gloo chat client.
type GlooChatConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	BaseURL      string
	Model        string
	Temperature  float64 // Default: 0.7
	MaxTokens    int     // Default: 1000
	Timeout      time.Duration
	MaxRetries   int
	HTTPClient   *http.Client // Base client for both token and chat requests
}

// GlooChatClient implements LLMClient against Gloo's OpenAI-compatible
// chat completions API. Access tokens come from the client-credentials
// grant and are refreshed before they expire.
type GlooChatClient struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int
}

// NewGlooChatClient creates a new Gloo chat client.
func NewGlooChatClient(cfg GlooChatConfig) *GlooChatClient {
	if cfg.TokenURL == "" {
		cfg.TokenURL = GlooDefaultTokenURL
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = GlooDefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = GlooDefaultModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1000
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}

	base := cfg.HTTPClient
	if base == nil {
		base = &http.Client{}
	}

	tokens := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       []string{GlooScope},
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	httpClient := tokens.Client(context.WithValue(context.Background(), oauth2.HTTPClient, base))
	httpClient.Timeout = cfg.Timeout

	client := openai.NewClient(
		// The bearer header comes from the oauth2 transport.
		option.WithAPIKey("unused"),
		option.WithHTTPClient(httpClient),
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(cfg.MaxRetries),
	)

	return &GlooChatClient{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

// Name returns the client identifier.
func (c *GlooChatClient) Name() string {
	return GlooName
}

// Model returns the configured default model.
func (c *GlooChatClient) Model() string {
	return c.model
}

// Chat sends a chat completion request.
func (c *GlooChatClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("at least one message is required")
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(m.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(m.Content))
		case "user":
			messages = append(messages, openai.UserMessage(m.Content))
		default:
			return nil, fmt.Errorf("unsupported message role %q", m.Role)
		}
	}

	model := req.Model
	if model == "" {
		model = c.model
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    messages,
		Temperature: openai.Float(temperature),
		MaxTokens:   openai.Int(int64(maxTokens)),
	})
	if err != nil {
		return nil, mapGlooError(err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("gloo returned no choices")
	}

	return &ChatResult{
		Content:          strings.TrimSpace(completion.Choices[0].Message.Content),
		PromptTokens:     int(completion.Usage.PromptTokens),
		CompletionTokens: int(completion.Usage.CompletionTokens),
		TotalTokens:      int(completion.Usage.TotalTokens),
		Provider:         GlooName,
		ModelUsed:        completion.Model,
		ExecutionTime:    time.Since(start),
	}, nil
}

// mapGlooError converts openai-go API errors to provider errors.
func mapGlooError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			retryAfter := time.Duration(0)
			if apiErr.Response != nil {
				retryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
			}
			return &RateLimitError{
				Message:    fmt.Sprintf("Gloo rate limited: %s", apiErr.Message),
				RetryAfter: retryAfter,
				StatusCode: apiErr.StatusCode,
			}
		}
		return &StatusError{StatusCode: apiErr.StatusCode, Message: apiErr.Message}
	}
	return fmt.Errorf("gloo chat request failed: %w", err)
}
