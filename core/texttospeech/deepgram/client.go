package deepgram

import (
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/gorilla/websocket"
)

const defaultBaseURL = "wss://api.deepgram.com"

type TextToSpeechClient struct {
	apiKey  string
	baseURL string
	dialer  *websocket.Dialer

	voice deepgramVoice
	mu    sync.RWMutex
}

type ClientOption func(*TextToSpeechClient)

// WithAPIKey overrides the DEEPGRAM_API_KEY environment variable.
func WithAPIKey(apiKey string) ClientOption {
	return func(c *TextToSpeechClient) { c.apiKey = apiKey }
}

func WithBaseURL(baseURL string) ClientOption {
	return func(c *TextToSpeechClient) { c.baseURL = baseURL }
}

func NewTextToSpeechClient(voice deepgramVoice, opts ...ClientOption) (*TextToSpeechClient, error) {
	if !slices.Contains(GetAvailableVoices(), voice) {
		return nil, fmt.Errorf("invalid voice %q", voice)
	}

	client := &TextToSpeechClient{
		baseURL: defaultBaseURL,
		dialer:  websocket.DefaultDialer,
		voice:   voice,
	}
	for _, opt := range opts {
		opt(client)
	}

	if client.apiKey == "" {
		client.apiKey = os.Getenv("DEEPGRAM_API_KEY")
	}
	if client.apiKey == "" {
		return nil, fmt.Errorf("deepgram api key not found")
	}

	return client, nil
}

func (c *TextToSpeechClient) SetVoice(voice deepgramVoice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.voice = voice
}

func (c *TextToSpeechClient) Voice() deepgramVoice {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.voice
}
