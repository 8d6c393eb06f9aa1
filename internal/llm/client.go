/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pgedge-nl2sql/internal/logging"
)

// ErrGeneration is returned when the completion service cannot produce SQL
var ErrGeneration = errors.New("sql generation failed")

const (
	defaultOpenAIBaseURL    = "https://api.openai.com/v1"
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	defaultOllamaURL        = "http://localhost:11434"
	defaultOpenAIModel      = "gpt-4o"
	defaultAnthropicModel   = "claude-sonnet-4-5"
	defaultMaxTokens        = 2048
	anthropicVersion        = "2023-06-01"
)

// Config holds completion client settings
type Config struct {
	Provider        string // "openai", "anthropic", or "ollama"
	Model           string
	BaseURL         string // Overrides the provider's default endpoint
	AnthropicAPIKey string
	OpenAIAPIKey    string
	OllamaURL       string
	MaxTokens       int
	Timeout         time.Duration
}

// Client handles interactions with LLM APIs (OpenAI, Anthropic or Ollama)
type Client struct {
	provider  string
	apiKey    string
	baseURL   string
	model     string
	maxTokens int
	client    *http.Client
}

// NewClient creates a new LLM client for the configured provider
func NewClient(cfg Config) (*Client, error) {
	c := &Client{
		provider:  cfg.Provider,
		model:     cfg.Model,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		maxTokens: cfg.MaxTokens,
		client:    &http.Client{Timeout: cfg.Timeout},
	}
	if c.maxTokens <= 0 {
		c.maxTokens = defaultMaxTokens
	}
	if cfg.Timeout == 0 {
		c.client.Timeout = 120 * time.Second
	}

	switch cfg.Provider {
	case "openai":
		c.apiKey = cfg.OpenAIAPIKey
		if c.apiKey == "" {
			return nil, fmt.Errorf("API key is required for openai")
		}
		if c.model == "" {
			c.model = defaultOpenAIModel
		}
		if c.baseURL == "" {
			c.baseURL = defaultOpenAIBaseURL
		}
	case "anthropic":
		c.apiKey = cfg.AnthropicAPIKey
		if c.apiKey == "" {
			return nil, fmt.Errorf("API key is required for anthropic")
		}
		if c.model == "" {
			c.model = defaultAnthropicModel
		}
		if c.baseURL == "" {
			c.baseURL = defaultAnthropicBaseURL
		}
	case "ollama":
		if c.model == "" {
			return nil, fmt.Errorf("model is required for ollama")
		}
		if c.baseURL == "" {
			c.baseURL = strings.TrimRight(cfg.OllamaURL, "/")
		}
		if c.baseURL == "" {
			c.baseURL = defaultOllamaURL
		}
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}

	LogClientInit(c.provider, c.model, c.baseURL)
	return c, nil
}

// Provider returns the configured provider name
func (c *Client) Provider() string {
	return c.provider
}

// Model returns the configured model name
func (c *Client) Model() string {
	return c.model
}

// GenerateSQL sends the prompt as a single user message at temperature 0 and
// returns the text of the top choice exactly as the model produced it.
func (c *Client) GenerateSQL(ctx context.Context, prompt string) (string, error) {
	startTime := time.Now()

	var (
		text string
		err  error
	)
	switch c.provider {
	case "anthropic":
		text, err = c.generateWithAnthropic(ctx, prompt)
	case "ollama":
		// Ollama serves the OpenAI chat completions API under /v1
		text, err = c.generateWithChatCompletions(ctx, c.baseURL+"/v1/chat/completions", prompt)
	default:
		text, err = c.generateWithChatCompletions(ctx, c.baseURL+"/chat/completions", prompt)
	}

	LogLLMCall(c.provider, c.model, len(prompt), len(text), time.Since(startTime), err)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	return text, nil
}

// generateWithAnthropic uses Anthropic's Messages API
func (c *Client) generateWithAnthropic(ctx context.Context, prompt string) (string, error) {
	reqBody := claudeRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: 0,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
	}
	headers := map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": anthropicVersion,
	}

	var claudeResp claudeResponse
	if err := c.post(ctx, c.baseURL+"/messages", headers, reqBody, &claudeResp); err != nil {
		return "", err
	}

	for _, block := range claudeResp.Content {
		if block.Type == "text" || block.Type == "" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no content in response")
}

// generateWithChatCompletions uses the OpenAI chat completions API, which
// Ollama also implements
func (c *Client) generateWithChatCompletions(ctx context.Context, url, prompt string) (string, error) {
	reqBody := chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0,
		MaxTokens:   c.maxTokens,
		Stream:      false,
	}
	headers := map[string]string{}
	if c.apiKey != "" {
		headers["Authorization"] = "Bearer " + c.apiKey
	}

	var chatResp chatResponse
	if err := c.post(ctx, url, headers, reqBody, &chatResp); err != nil {
		return "", err
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return chatResp.Choices[0].Message.Content, nil
}

// post sends a JSON request and decodes a 200 response into out
func (c *Client) post(ctx context.Context, url string, headers map[string]string, body, out any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	LogResponseStatus(c.provider, c.model, resp.StatusCode)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, truncateBody(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

func truncateBody(b []byte) string {
	return logging.Truncate(strings.TrimSpace(string(b)), 500)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Internal types for Claude API
type claudeRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type claudeResponse struct {
	ID      string               `json:"id"`
	Type    string               `json:"type"`
	Role    string               `json:"role"`
	Content []claudeContentBlock `json:"content"`
}

type claudeContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Internal types for the chat completions API (OpenAI and Ollama)
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}
