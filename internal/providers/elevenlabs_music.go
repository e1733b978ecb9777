package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/jackzampolin/songbook/internal/metrics"
	"github.com/jackzampolin/songbook/internal/music"
)

const (
	ElevenLabsMusicName      = "elevenlabs"
	ElevenLabsDefaultBaseURL = "https://api.elevenlabs.io"
	ElevenLabsMusicModel     = "music_v1"
	ElevenLabsDefaultFormat  = "mp3_44100_128"
)

// ElevenLabsMusicConfig holds configuration for the ElevenLabs music client.
type ElevenLabsMusicConfig struct {
	APIKey     string
	BaseURL    string // Defaults to ElevenLabsDefaultBaseURL
	Model      string
	Format     string        // Output format: mp3_44100_128, mp3_22050_32, pcm_16000, etc.
	Timeout    time.Duration // Per attempt (default: 120s)
	MaxRetries int           // Total attempts (default: 3)
	RetryDelay time.Duration // Backoff base (default: 1s)
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// ElevenLabsMusicClient implements MusicProvider using the ElevenLabs music API.
type ElevenLabsMusicClient struct {
	apiKey     string
	baseURL    string
	model      string
	format     string
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
	client     *http.Client
	logger     *slog.Logger
}

// NewElevenLabsMusicClient creates a new ElevenLabs music client.
func NewElevenLabsMusicClient(cfg ElevenLabsMusicConfig) *ElevenLabsMusicClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = ElevenLabsDefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = ElevenLabsMusicModel
	}
	if cfg.Format == "" {
		cfg.Format = ElevenLabsDefaultFormat
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second // composition is slow
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &ElevenLabsMusicClient{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		format:     cfg.Format,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		client:     cfg.HTTPClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider identifier.
func (c *ElevenLabsMusicClient) Name() string {
	return ElevenLabsMusicName
}

// Configured reports whether an API key is set.
func (c *ElevenLabsMusicClient) Configured() bool {
	return c.apiKey != ""
}

// Format returns the default output format.
func (c *ElevenLabsMusicClient) Format() string {
	return c.format
}

// HealthCheck verifies the ElevenLabs API is reachable and the API key is valid.
func (c *ElevenLabsMusicClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/user", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("invalid API key")
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("health check failed with status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// Compose generates a song for req.Prompt. Prompts over music.MaxPromptLength
// are refused without contacting the API. Failures after retries are
// returned as *GenerationError.
func (c *ElevenLabsMusicClient) Compose(ctx context.Context, req *MusicRequest) (*MusicResult, error) {
	start := time.Now()

	if n := music.Length(req.Prompt); n > music.MaxPromptLength {
		return nil, &music.PromptTooLongError{Length: n, Limit: music.MaxPromptLength}
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is required", music.ErrInvalidInput)
	}

	format := req.Format
	if format == "" {
		format = c.format
	}
	body := elevenLabsMusicRequest{
		Prompt:            req.Prompt,
		MusicLengthMS:     req.Duration.Milliseconds(),
		ModelID:           c.model,
		ForceInstrumental: req.Instrumental,
	}

	var (
		audio     []byte
		requestID string
		attempts  int
	)
	err := retry.Do(
		func() error {
			attempts++
			var err error
			audio, requestID, err = c.doRequest(ctx, format, body)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries)),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			if int(n)+1 >= c.maxRetries {
				return
			}
			metrics.ProviderRetriesTotal.WithLabelValues(ElevenLabsMusicName).Inc()
			c.logger.Warn("music generation failed, retrying",
				"attempt", n+1,
				"max_attempts", c.maxRetries,
				"error", err,
			)
		}),
	)
	if err != nil {
		genErr := newGenerationError(err)
		c.logger.Error("music generation failed",
			"category", genErr.Category,
			"status", genErr.StatusCode,
			"attempts", attempts,
			"error", err,
		)
		return nil, genErr
	}

	container, sampleRate := parseOutputFormat(format)
	return &MusicResult{
		Audio:         audio,
		Format:        container,
		SampleRate:    sampleRate,
		ContentType:   contentType(container),
		RequestID:     requestID,
		Attempts:      attempts,
		ExecutionTime: time.Since(start),
	}, nil
}

// doRequest makes one bounded attempt against the music endpoint.
func (c *ElevenLabsMusicClient) doRequest(ctx context.Context, format string, body elevenLabsMusicRequest) ([]byte, string, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, "", retry.Unrecoverable(fmt.Errorf("failed to marshal request: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + "/v1/music?output_format=" + url.QueryEscape(format)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, "", retry.Unrecoverable(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, "", fmt.Errorf("request timed out after %s: %w", c.timeout, context.DeadlineExceeded)
		}
		return nil, "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		errMsg := parseElevenLabsError(respBody)
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, "", &RateLimitError{
				Message:    fmt.Sprintf("ElevenLabs rate limited: %s", errMsg),
				RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
				StatusCode: resp.StatusCode,
			}
		}
		return nil, "", &StatusError{StatusCode: resp.StatusCode, Message: errMsg}
	}
	if len(respBody) == 0 {
		return nil, "", fmt.Errorf("empty audio response")
	}

	requestID := resp.Header.Get("request-id")
	if requestID == "" {
		requestID = resp.Header.Get("x-request-id")
	}
	return respBody, requestID, nil
}

// ElevenLabs API types

type elevenLabsMusicRequest struct {
	Prompt            string `json:"prompt"`
	MusicLengthMS     int64  `json:"music_length_ms"`
	ModelID           string `json:"model_id"`
	ForceInstrumental bool   `json:"force_instrumental"`
}

type elevenLabsErrorResponse struct {
	Detail struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"detail"`
}

// parseElevenLabsError pulls detail.message from an error body, falling back
// to the raw body.
func parseElevenLabsError(body []byte) string {
	var errResp elevenLabsErrorResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Detail.Message != "" {
		return errResp.Detail.Message
	}
	return strings.TrimSpace(string(body))
}

// parseOutputFormat extracts container format and sample rate from output_format.
// Examples: mp3_44100_128 -> (mp3, 44100), pcm_16000 -> (wav, 16000).
func parseOutputFormat(format string) (container string, sampleRate int) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		return "mp3", 0
	}

	parts := strings.Split(format, "_")
	container = parts[0]
	if container == "pcm" || container == "ulaw" || container == "alaw" {
		container = "wav"
	}

	if len(parts) >= 2 {
		if sr, err := strconv.Atoi(parts[1]); err == nil {
			sampleRate = sr
		}
	}
	return container, sampleRate
}

func contentType(container string) string {
	switch container {
	case "mp3":
		return "audio/mpeg"
	case "wav":
		return "audio/wav"
	case "opus":
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}
