package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/texttospeech"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io"
	DefaultVoiceID = "pNInz6obpgDQGcFmaJgB"
	DefaultModel   = "eleven_monolingual_v1"
)

type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

var DefaultVoiceSettings = VoiceSettings{
	Stability:       0.75,
	SimilarityBoost: 0.85,
	Style:           0.2,
	UseSpeakerBoost: true,
}

type Client struct {
	apiKey        string
	baseURL       string
	voiceID       string
	model         string
	voiceSettings VoiceSettings
	httpClient    *http.Client
}

type ClientOption func(*Client)

// WithAPIKey overrides the ELEVENLABS_API_KEY environment variable.
func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) { c.apiKey = apiKey }
}

// WithVoiceID overrides the ELEVENLABS_VOICE_ID environment variable.
func WithVoiceID(voiceID string) ClientOption {
	return func(c *Client) { c.voiceID = voiceID }
}

func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = model }
}

func WithVoiceSettings(settings VoiceSettings) ClientOption {
	return func(c *Client) { c.voiceSettings = settings }
}

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = baseURL }
}

func NewClient(opts ...ClientOption) (*Client, error) {
	client := &Client{
		baseURL:       defaultBaseURL,
		model:         DefaultModel,
		voiceSettings: DefaultVoiceSettings,
		httpClient:    &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, opt := range opts {
		opt(client)
	}

	if client.apiKey == "" {
		client.apiKey = os.Getenv("ELEVENLABS_API_KEY")
	}
	if client.apiKey == "" {
		return nil, fmt.Errorf("elevenlabs api key not found")
	}
	if client.voiceID == "" {
		client.voiceID = os.Getenv("ELEVENLABS_VOICE_ID")
	}
	if client.voiceID == "" {
		client.voiceID = DefaultVoiceID
	}

	return client, nil
}

type synthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}

func (c *Client) Synthesize(ctx context.Context, text string, opts ...texttospeech.SynthesisOption) (audio []byte, err error) {
	options := texttospeech.NewSynthesisOptions(opts...)

	ctx, span := tracer.Start(ctx, "synthesize speech", trace.WithAttributes(
		attribute.String("tts.provider", "elevenlabs"),
		attribute.String("tts.voice", c.voiceID),
		attribute.Int("tts.text_length", len(text)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	outputFormat, err := convertEncoding(options.EncodingInfo)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", texttospeech.ErrSynthesis, err)
	}

	body, err := json.Marshal(synthesisRequest{
		Text:          text,
		ModelID:       c.model,
		VoiceSettings: c.voiceSettings,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s?%s", c.baseURL, url.PathEscape(c.voiceID),
		url.Values{"output_format": {outputFormat}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/pcm")
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: failed to send request: %w", texttospeech.ErrSynthesis, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errorText, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: elevenlabs api error: %s - %s", texttospeech.ErrSynthesis, resp.Status, bytes.TrimSpace(errorText))
	}

	audio, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read audio: %w", texttospeech.ErrSynthesis, err)
	}
	span.SetAttributes(attribute.Int("tts.audio_bytes", len(audio)))

	return audio, nil
}

func convertEncoding(encoding audio.EncodingInfo) (string, error) {
	switch encoding.Format {
	case audio.EncodingLinear16:
		switch encoding.SampleRate {
		case 16000, 22050, 24000, 44100:
			return fmt.Sprintf("pcm_%d", encoding.SampleRate), nil
		}
		return "", fmt.Errorf("unsupported sample rate %d", encoding.SampleRate)
	case audio.EncodingMulaw:
		if encoding.SampleRate == 8000 {
			return "ulaw_8000", nil
		}
		return "", fmt.Errorf("unsupported sample rate %d for mulaw", encoding.SampleRate)
	}
	return "", fmt.Errorf("unsupported encoding %q", encoding.Format.Name())
}
