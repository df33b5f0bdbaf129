package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/koscakluka/ema-voice/core/llms"
	"github.com/koscakluka/ema-voice/internal/utils"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultBaseURL = "https://api.groq.com/openai/v1"

	DefaultModel       = "llama-3.1-8b-instant"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1024
)

type Client struct {
	apiKey     string
	baseURL    string
	model      string
	defaults   llms.CompletionOptions
	httpClient *http.Client
}

type ClientOption func(*Client)

// WithAPIKey overrides the GROQ_API_KEY environment variable.
func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) { c.apiKey = apiKey }
}

func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = model }
}

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithDefaultOptions sets completion options applied to every request before
// the per-request options.
func WithDefaultOptions(opts ...llms.CompletionOption) ClientOption {
	return func(c *Client) { c.defaults = llms.NewCompletionOptions(c.defaults, opts...) }
}

func NewClient(opts ...ClientOption) (*Client, error) {
	client := &Client{
		baseURL: defaultBaseURL,
		model:   DefaultModel,
		defaults: llms.CompletionOptions{
			Temperature: utils.Ptr(DefaultTemperature),
			MaxTokens:   DefaultMaxTokens,
		},
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, opt := range opts {
		opt(client)
	}

	if client.apiKey == "" {
		client.apiKey = os.Getenv("GROQ_API_KEY")
	}
	if client.apiKey == "" {
		return nil, fmt.Errorf("groq api key not found")
	}

	return client, nil
}

func (c *Client) Complete(ctx context.Context, history []llms.Message, opts ...llms.CompletionOption) (reply string, err error) {
	options := llms.NewCompletionOptions(c.defaults, opts...)

	ctx, span := tracer.Start(ctx, "prompt llm", trace.WithAttributes(
		attribute.String("llm.provider", "groq"),
		attribute.String("llm.model", c.model),
		attribute.Int("llm.history_length", len(history)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	messages, err := toMessages(options.Instructions, history)
	if err != nil {
		return "", fmt.Errorf("error converting messages: %w", err)
	}

	reqBody := requestBody{
		Model:       c.model,
		Messages:    messages,
		Temperature: options.Temperature,
		TopP:        utils.Ptr(1.0),
		Stream:      false,
	}
	if options.MaxTokens > 0 {
		reqBody.MaxTokens = utils.Ptr(options.MaxTokens)
	}

	requestBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return "", fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		logger.Warn("Non-OK HTTP status from groq", "status", resp.Status)
		return "", fmt.Errorf("%w: non-OK HTTP status: %s: %s", llms.ErrCompletion, resp.Status, bytes.TrimSpace(body))
	}

	var responseBody responseBody
	if err := json.NewDecoder(resp.Body).Decode(&responseBody); err != nil {
		return "", fmt.Errorf("error unmarshalling response body: %w", err)
	}
	if len(responseBody.Choices) == 0 {
		return "", fmt.Errorf("%w: response contained no choices", llms.ErrCompletion)
	}
	if responseBody.Usage != nil {
		span.SetAttributes(
			attribute.Int("llm.prompt_tokens", responseBody.Usage.PromptTokens),
			attribute.Int("llm.completion_tokens", responseBody.Usage.CompletionTokens),
		)
	}

	return strings.TrimSpace(responseBody.Choices[0].Message.Content), nil
}

type requestBody struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
	Stream      bool      `json:"stream"`
}

type responseBody struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}
