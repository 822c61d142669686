package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const (
	DefaultClaudeModel = "claude-3-5-haiku-latest"
	defaultClaudeURL   = "https://api.anthropic.com/v1/messages"
)

// ClaudeExtractor calls the Anthropic Messages API to pick an answer span.
type ClaudeExtractor struct {
	apiKey     string
	model      string
	url        string
	httpClient *http.Client
	log        *slog.Logger
	backoff    func(attempt int) time.Duration
}

// ClaudeOption customizes a ClaudeExtractor.
type ClaudeOption func(*ClaudeExtractor)

// WithEndpoint overrides the Messages API URL.
func WithEndpoint(url string) ClaudeOption {
	return func(c *ClaudeExtractor) { c.url = url }
}

// WithBackoff overrides the delay between retries.
func WithBackoff(fn func(attempt int) time.Duration) ClaudeOption {
	return func(c *ClaudeExtractor) { c.backoff = fn }
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(log *slog.Logger) ClaudeOption {
	return func(c *ClaudeExtractor) { c.log = log }
}

func NewClaudeExtractor(apiKey, model string, opts ...ClaudeOption) *ClaudeExtractor {
	if model == "" {
		model = DefaultClaudeModel
	}
	c := &ClaudeExtractor{
		apiKey: apiKey,
		model:  model,
		url:    defaultClaudeURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		log:     slog.Default(),
		backoff: Backoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Extract asks Claude for the answer span, retrying transient failures.
// The returned answer is validated against passage.
func (c *ClaudeExtractor) Extract(ctx context.Context, question, passage string) (Answer, error) {
	prompt := BuildAnswerPrompt(question, passage)

	var raw Answer
	var lastErr error
	for attempt := range MaxRetries {
		raw, lastErr = c.call(ctx, prompt)
		if lastErr == nil || !IsRetryable(lastErr) {
			break
		}
		if attempt == MaxRetries-1 {
			break
		}
		c.log.Warn("retryable extraction error", "attempt", attempt, "error", lastErr)
		select {
		case <-time.After(c.backoff(attempt)):
		case <-ctx.Done():
			return Answer{}, ctx.Err()
		}
	}
	if lastErr != nil {
		return Answer{}, lastErr
	}
	return ValidateAnswer(raw, passage), nil
}

func (c *ClaudeExtractor) call(ctx context.Context, prompt string) (Answer, error) {
	reqBody := anthropicRequest{
		Model:     c.model,
		MaxTokens: 512,
		Messages: []anthropicMessage{
			{Role: "user", Content: prompt},
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return Answer{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Answer{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Answer{}, fmt.Errorf("claude api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Answer{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return Answer{}, &RetryableError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return Answer{}, fmt.Errorf("claude api status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return Answer{}, fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Error != nil {
		return Answer{}, fmt.Errorf("claude error: %s: %s", apiResp.Error.Type, apiResp.Error.Message)
	}
	if len(apiResp.Content) == 0 {
		return Answer{}, fmt.Errorf("empty response from claude")
	}

	text := stripCodeBlock(apiResp.Content[0].Text)

	ans := Answer{Start: NoOffset, End: NoOffset}
	if err := json.Unmarshal([]byte(text), &ans); err != nil {
		return Answer{}, fmt.Errorf("parse answer json: %w (raw: %s)", err, truncate(text, 200))
	}
	return ans, nil
}

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

// Model returns the Claude model in use.
func (c *ClaudeExtractor) Model() string { return c.model }

// Close releases resources.
func (c *ClaudeExtractor) Close() {
	c.httpClient.CloseIdleConnections()
}
