package deepgram

import (
	"fmt"
	"os"
	"sync"

	"github.com/gorilla/websocket"
)

const (
	defaultBaseURL  = "wss://api.deepgram.com"
	defaultModel    = "nova-3"
	defaultLanguage = "en-US"
)

// TranscriptionClient streams audio to Deepgram's live transcription
// endpoint. It holds at most one open stream at a time.
type TranscriptionClient struct {
	apiKey  string
	baseURL string
	model   string
	dialer  *websocket.Dialer

	mu     sync.Mutex
	stream *stream
}

type ClientOption func(*TranscriptionClient)

// WithAPIKey overrides the DEEPGRAM_API_KEY environment variable.
func WithAPIKey(apiKey string) ClientOption {
	return func(c *TranscriptionClient) { c.apiKey = apiKey }
}

func WithBaseURL(baseURL string) ClientOption {
	return func(c *TranscriptionClient) { c.baseURL = baseURL }
}

func WithModel(model string) ClientOption {
	return func(c *TranscriptionClient) { c.model = model }
}

func NewTranscriptionClient(opts ...ClientOption) (*TranscriptionClient, error) {
	client := &TranscriptionClient{
		baseURL: defaultBaseURL,
		model:   defaultModel,
		dialer:  websocket.DefaultDialer,
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

func (c *TranscriptionClient) currentStream() *stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream
}

func (c *TranscriptionClient) detach(s *stream) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream == s {
		c.stream = nil
	}
}
