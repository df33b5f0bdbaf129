package openai

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
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
)

type Client struct {
	apiKey     string
	baseURL    string
	model      string
	defaults   llms.CompletionOptions
	httpClient *http.Client
}

type ClientOption func(*Client)

// WithAPIKey overrides the OPENAI_API_KEY environment variable.
func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) { c.apiKey = apiKey }
}

func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = model }
}

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = baseURL }
}

func WithDefaultOptions(opts ...llms.CompletionOption) ClientOption {
	return func(c *Client) { c.defaults = llms.NewCompletionOptions(c.defaults, opts...) }
}

func NewClient(opts ...ClientOption) (*Client, error) {
	client := &Client{
		baseURL:    defaultBaseURL,
		model:      DefaultModel,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, opt := range opts {
		opt(client)
	}

	if client.apiKey == "" {
		client.apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if client.apiKey == "" {
		return nil, fmt.Errorf("openai api key not found")
	}

	return client, nil
}

func (c *Client) Complete(ctx context.Context, history []llms.Message, opts ...llms.CompletionOption) (reply string, err error) {
	options := llms.NewCompletionOptions(c.defaults, opts...)

	ctx, span := tracer.Start(ctx, "prompt llm", trace.WithAttributes(
		attribute.String("llm.provider", "openai"),
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

	reqBody := requestBody{
		Model:       c.model,
		Input:       toOpenAIMessages(options.Instructions, history),
		Temperature: options.Temperature,
		Stream:      false,
	}
	if options.MaxTokens > 0 {
		reqBody.MaxOutputTokens = &options.MaxTokens
	}

	requestBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewBuffer(requestBodyBytes))
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
		logger.Warn("Non-OK HTTP status from openai", "status", resp.Status)
		return "", fmt.Errorf("%w: non-OK HTTP status: %s: %s", llms.ErrCompletion, resp.Status, bytes.TrimSpace(body))
	}

	var responseBody generalResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&responseBody); err != nil {
		return "", fmt.Errorf("error unmarshalling response body: %w", err)
	}

	return parseOutput(responseBody.Output)
}

func parseOutput(outputs []json.RawMessage) (string, error) {
	var response strings.Builder
	for _, output := range outputs {
		var outputType generalResponseBodyOutputType
		if err := json.Unmarshal(output, &outputType); err != nil {
			return "", fmt.Errorf("error unmarshalling output type: %w", err)
		}
		if outputType.Type != generalResponseBodyOutputTypeMessage {
			continue
		}

		var outputMessage generalResponseBodyOutputMessage
		if err := json.Unmarshal(output, &outputMessage); err != nil {
			return "", fmt.Errorf("error unmarshalling output message: %w", err)
		}
		for _, content := range outputMessage.Content {
			switch content.Type {
			case "output_text":
				response.WriteString(content.Text)
			case "refusal":
				response.WriteString(content.Refusal)
			}
		}
	}

	return strings.TrimSpace(response.String()), nil
}

type requestBody struct {
	Model           string          `json:"model"`
	Input           []openAIMessage `json:"input"`
	Stream          bool            `json:"stream"`
	Temperature     *float64        `json:"temperature,omitempty"`
	MaxOutputTokens *int            `json:"max_output_tokens,omitempty"`
}

type generalResponseBody struct {
	Output []json.RawMessage `json:"output"`
}

type generalResponseBodyOutputType struct {
	Type generalResponseBodyOutputTypeType `json:"type"`
}

type generalResponseBodyOutputMessage struct {
	ID      string `json:"id"`
	Content []struct {
		// Type is 'output_text' or 'refusal'
		Type    string `json:"type"`
		Text    string `json:"text,omitempty"`
		Refusal string `json:"refusal,omitempty"`
	} `json:"content,omitempty"`
}

type generalResponseBodyOutputTypeType string

const (
	generalResponseBodyOutputTypeMessage   generalResponseBodyOutputTypeType = "message"
	generalResponseBodyOutputTypeReasoning generalResponseBodyOutputTypeType = "reasoning"
)
