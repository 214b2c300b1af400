package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Structured output modes
const (
	OutputJSONSchema = "json_schema"
	OutputJSONObject = "json_object"
)

// ErrMalformedResponse is returned when the model reply does not decode into
// the requested structure.
var ErrMalformedResponse = errors.New("malformed structured response")

// Client LLM client for OpenAI-compatible chat completion APIs
type Client struct {
	apiKey           string
	baseURL          string
	model            string
	temperature      float64
	maxTokens        int
	structuredOutput string
	maxRetries       int
	retryDelay       time.Duration
	httpClient       *http.Client
	api              *openai.Client
}

// Message message structure
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content,omitempty"`
}

// ChatResponse chat response
type ChatResponse struct {
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason,omitempty"`
	TotalTokens  int    `json:"total_tokens,omitempty"`
}

// Option configures a Client
type Option func(*Client)

// WithStructuredOutput selects json_schema (strict) or json_object output.
func WithStructuredOutput(mode string) Option {
	return func(c *Client) {
		if mode != "" {
			c.structuredOutput = mode
		}
	}
}

// WithMaxRetries sets the number of attempts per request. Values below 1 mean one attempt.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithRetryDelay sets the base delay between attempts; attempt i waits i*delay.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

// WithTimeout sets the HTTP timeout of a single request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New creates a new LLM client. baseURL includes the API version path,
// e.g. https://api.openai.com/v1.
func New(apiKey, baseURL, model string, temperature float64, maxTokens int, opts ...Option) *Client {
	c := &Client{
		apiKey:           apiKey,
		baseURL:          strings.TrimSuffix(baseURL, "/"),
		model:            model,
		temperature:      temperature,
		maxTokens:        maxTokens,
		structuredOutput: OutputJSONSchema,
		maxRetries:       1,
		retryDelay:       time.Second,
		httpClient: &http.Client{
			Timeout: 300 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}

	transportCfg := openai.DefaultConfig(apiKey)
	if c.baseURL != "" {
		transportCfg.BaseURL = c.baseURL
	}
	transportCfg.HTTPClient = c.httpClient
	c.api = openai.NewClientWithConfig(transportCfg)

	return c
}

// Model returns the configured model name
func (c *Client) Model() string {
	return c.model
}

func (c *Client) request(messages []Message) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return openai.ChatCompletionRequest{
		Model:               c.model,
		Messages:            msgs,
		Temperature:         float32(c.temperature),
		MaxCompletionTokens: c.maxTokens,
	}
}

// Chat sends a chat request
func (c *Client) Chat(ctx context.Context, messages []Message) (*ChatResponse, error) {
	return c.do(ctx, c.request(messages))
}

func (c *Client) do(ctx context.Context, req openai.ChatCompletionRequest) (*ChatResponse, error) {
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("API returned empty response")
	}

	choice := resp.Choices[0]
	return &ChatResponse{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

// ChatWithRetry chat request with retry
func (c *Client) ChatWithRetry(ctx context.Context, messages []Message, maxRetries int) (*ChatResponse, error) {
	return c.doWithRetry(ctx, c.request(messages), maxRetries)
}

func (c *Client) doWithRetry(ctx context.Context, req openai.ChatCompletionRequest, maxRetries int) (*ChatResponse, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		resp, err := c.do(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil || i == maxRetries-1 {
			break
		}

		// Wait before retry
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(i+1) * c.retryDelay):
		}
	}
	if maxRetries == 1 {
		return nil, lastErr
	}
	return nil, fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

// Complete asks the model for a reply conforming to the schema of out (a
// pointer to struct) and decodes it into out.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string, out any) error {
	schema, err := SchemaFor(out)
	if err != nil {
		return err
	}

	req := c.request([]Message{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: userPrompt},
	})

	switch c.structuredOutput {
	case OutputJSONObject:
		text, err := schemaText(schema)
		if err != nil {
			return err
		}
		req.Messages[0].Content = systemPrompt +
			"\n\nRespond with a single JSON object that conforms to this JSON schema:\n" + text
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	default:
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   SchemaName(out),
				Schema: schema,
				Strict: true,
			},
		}
	}

	resp, err := c.doWithRetry(ctx, req, c.maxRetries)
	if err != nil {
		return err
	}

	content := stripCodeFence(resp.Content)
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// stripCodeFence removes a surrounding ```json fence some servers add in
// json_object mode.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
