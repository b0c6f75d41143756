package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"chatpulse/pkg/errors"
)

// Ensure OpenAIProvider implements ChatProvider
var _ ChatProvider = (*OpenAIProvider)(nil)

// OpenAIProvider talks to any OpenAI-compatible chat completion endpoint
type OpenAIProvider struct {
	apiKey      string
	baseURL     string
	timeout     time.Duration
	rateLimiter RateLimiter
	client      *http.Client
}

// NewOpenAIProvider creates a provider for an OpenAI-compatible API.
// reqPerMinute bounds outbound call rate across all concurrent users.
func NewOpenAIProvider(apiKey, baseURL string, timeout time.Duration, reqPerMinute float64) *OpenAIProvider {
	return &OpenAIProvider{
		apiKey:      apiKey,
		baseURL:     baseURL,
		timeout:     timeout,
		rateLimiter: NewTokenBucketLimiter(reqPerMinute, 0),
		client:      &http.Client{Timeout: timeout},
	}
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string { return "openai" }

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openAIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Chat sends a chat completion request
func (p *OpenAIProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if p.apiKey == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "API key not configured")
	}

	if err := p.rateLimiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(errors.ErrRateLimitExceeded, err.Error())
	}

	apiReq := openAIRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if apiReq.MaxTokens == 0 {
		apiReq.MaxTokens = 2048
	}
	for _, msg := range req.Messages {
		apiReq.Messages = append(apiReq.Messages, openAIMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, errors.Wrap(err, "marshal chat request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "create HTTP request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "send chat request")
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read chat response")
	}

	var apiResp openAIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, errors.Wrapf(errors.ErrEmptyResponse, "decode chat response (status %d)", resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		if apiResp.Error != nil {
			return nil, errors.Wrapf(errors.ErrExtractionFailed, "API error (status %d): %s", resp.StatusCode, apiResp.Error.Message)
		}
		return nil, errors.Wrapf(errors.ErrExtractionFailed, "API error (status %d)", resp.StatusCode)
	}

	if len(apiResp.Choices) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyResponse, "no choices in response")
	}

	return &ChatResponse{
		Content:          apiResp.Choices[0].Message.Content,
		Model:            apiResp.Model,
		PromptTokens:     apiResp.Usage.PromptTokens,
		CompletionTokens: apiResp.Usage.CompletionTokens,
	}, nil
}
