package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/speechtotext"
	"github.com/koscakluka/ema-voice/internal/utils"
)

var ErrNoStream = errors.New("no open transcription stream")

type stream struct {
	conn   *websocket.Conn
	connMu sync.Mutex

	lastMsgTs atomic.Int64

	callbacks      callbackConfig
	continuous     bool
	interimResults bool

	accumulatedTranscript string
	unendedSegment        bool
	finished              bool

	closeRequested atomic.Bool
	dropped        atomic.Bool
}

type callbackConfig struct {
	resultCallback        func(transcript string, isFinal bool)
	speechStartedCallback func()
	streamEndedCallback   func()
	errorCallback         func(err error)
}

type wsConfig struct {
	shouldDetectSpeechStart            bool
	shouldEnhanceSpeechEndingDetection bool
	shouldRequestInterimResults        bool
}

func newCallbackConfig(options speechtotext.TranscriptionOptions) (callbackConfig, wsConfig) {
	callbacks := callbackConfig{
		resultCallback:        func(string, bool) {},
		speechStartedCallback: func() {},
		streamEndedCallback:   func() {},
		errorCallback:         func(error) {},
	}
	config := wsConfig{}

	if options.ResultCallback != nil {
		callbacks.resultCallback = options.ResultCallback
		config.shouldEnhanceSpeechEndingDetection = true
		config.shouldRequestInterimResults = options.InterimResults
	}
	if options.SpeechStartedCallback != nil {
		callbacks.speechStartedCallback = options.SpeechStartedCallback
		config.shouldDetectSpeechStart = true
	}
	if options.StreamEndedCallback != nil {
		callbacks.streamEndedCallback = options.StreamEndedCallback
	}
	if options.ErrorCallback != nil {
		callbacks.errorCallback = options.ErrorCallback
	}

	return callbacks, config
}

func (c *TranscriptionClient) Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error {
	options := speechtotext.TranscriptionOptions{
		Continuous:   true,
		Language:     defaultLanguage,
		EncodingInfo: audio.GetDefaultEncodingInfo(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	encoding, err := convertEncoding(options.EncodingInfo)
	if err != nil {
		return fmt.Errorf("invalid encoding: %w", err)
	}
	callbacks, config := newCallbackConfig(options)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream != nil {
		return fmt.Errorf("transcription stream already open")
	}

	conn, err := c.connectWebsocket(ctx, connectionOptions{
		sampleRate: encoding.SampleRate,
		encoding:   encoding.Format.Name(),
		language:   options.Language,
		wsConfig:   config,
	})
	if err != nil {
		return err
	}

	s := &stream{
		conn:           conn,
		callbacks:      callbacks,
		continuous:     options.Continuous,
		interimResults: options.InterimResults,
	}
	s.touch()
	c.stream = s

	go c.readAndProcessMessages(ctx, s, options.EncodingInfo)

	return nil
}

type connectionOptions struct {
	sampleRate int
	encoding   string
	language   string

	wsConfig
}

func (c *TranscriptionClient) connectWebsocket(ctx context.Context, options connectionOptions) (*websocket.Conn, error) {
	listenUrl, err := url.Parse(c.baseURL + "/v1/listen")
	if err != nil {
		return nil, fmt.Errorf("invalid deepgram url: %w", err)
	}

	queryParams := listenUrl.Query()
	queryParams.Set("encoding", options.encoding)
	queryParams.Set("sample_rate", strconv.Itoa(options.sampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", c.model)
	queryParams.Set("language", options.language)
	queryParams.Set("smart_format", "true")
	if options.shouldEnhanceSpeechEndingDetection {
		queryParams.Set("utterance_end_ms", "1000")
		queryParams.Set("interim_results", "true")
	} else if options.shouldRequestInterimResults {
		queryParams.Set("interim_results", "true")
	}
	queryParams.Set("endpointing", "300")
	if options.shouldDetectSpeechStart || options.shouldEnhanceSpeechEndingDetection {
		queryParams.Set("vad_events", "true")
	}
	listenUrl.RawQuery = queryParams.Encode()

	conn, resp, err := c.dialer.DialContext(ctx, listenUrl.String(),
		http.Header{"Authorization": {"Token " + c.apiKey}})
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: deepgram rejected the connection (%s)", speechtotext.ErrPermissionDenied, resp.Status)
		}
		return nil, fmt.Errorf("%w: failed to open socket connection to deepgram: %w", speechtotext.ErrNetwork, err)
	}

	return conn, nil
}

func (c *TranscriptionClient) SendAudio(audio []byte) error {
	s := c.currentStream()
	if s == nil {
		return ErrNoStream
	}

	s.touch()
	return s.write(websocket.BinaryMessage, audio)
}

func (c *TranscriptionClient) StopStream() error {
	s := c.currentStream()
	if s == nil {
		return nil
	}

	if err := s.requestClose(); err != nil {
		return fmt.Errorf("%w: failed to close deepgram stream: %w", speechtotext.ErrNetwork, err)
	}
	return nil
}

func (c *TranscriptionClient) Close() error {
	s := c.currentStream()
	if s == nil {
		return nil
	}

	c.detach(s)
	return s.drop()
}

func (c *TranscriptionClient) readAndProcessMessages(ctx context.Context, s *stream, encoding audio.EncodingInfo) {
	silenceCtx, silenceCancel := context.WithCancel(ctx)
	defer silenceCancel()
	stopDropOnCancel := context.AfterFunc(ctx, func() { _ = s.drop() })
	defer stopDropOnCancel()

	go s.generateSilence(silenceCtx, encoding)

	for {
		msgType, msg, err := s.conn.ReadMessage()
		if err != nil {
			c.detach(s)
			s.conn.Close()
			if s.dropped.Load() {
				return
			}

			s.flushPending()
			if !s.closeRequested.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				logger.Warn("Failed to read deepgram websocket message", "error", err)
				s.callbacks.errorCallback(fmt.Errorf("%w: %w", speechtotext.ErrNetwork, err))
			}
			s.callbacks.streamEndedCallback()
			return
		}
		if msgType != websocket.BinaryMessage && !s.dropped.Load() {
			s.processMessage(msg)
		}
	}
}

func (s *stream) processMessage(msg []byte) {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		logger.Warn("Failed to unmarshal deepgram message", "error", err)
		return
	}
	if s.finished {
		return
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			logger.Warn("Failed to unmarshal deepgram message", "error", err)
			return
		}

		transcript := ""
		if len(msgResp.Channel.Alternatives) > 0 {
			transcript = strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)
		}

		if msgResp.IsFinal {
			if len(transcript) > 0 {
				s.accumulatedTranscript += " " + transcript
				s.unendedSegment = true
			}
			if msgResp.SpeechFinal {
				s.onSpeechEnded()
			}
			return
		}

		if len(transcript) > 0 && s.interimResults {
			s.callbacks.resultCallback(strings.TrimSpace(s.accumulatedTranscript+" "+transcript), false)
		}

	case api.TypeUtteranceEndResponse:
		if s.unendedSegment {
			s.onSpeechEnded()
		}

	case api.TypeSpeechStartedResponse:
		s.unendedSegment = true
		s.callbacks.speechStartedCallback()
	}
}

func (s *stream) onSpeechEnded() {
	s.unendedSegment = false
	fullTranscript := strings.TrimSpace(s.accumulatedTranscript)
	s.accumulatedTranscript = ""
	if len(fullTranscript) == 0 {
		return
	}

	s.callbacks.resultCallback(fullTranscript, true)
	if !s.continuous {
		s.finished = true
		if err := s.requestClose(); err != nil {
			logger.Warn("Failed to close single utterance stream", "error", err)
		}
	}
}

// flushPending delivers finalized segments that never got an utterance end
// before the stream closed.
func (s *stream) flushPending() {
	if !s.finished && strings.TrimSpace(s.accumulatedTranscript) != "" {
		s.onSpeechEnded()
	}
}

func (s *stream) requestClose() error {
	if s.closeRequested.Swap(true) {
		return nil
	}

	return s.writeJSON(struct {
		Type string `json:"type"`
	}{Type: string(api.TypeCloseStreamResponse)})
}

func (s *stream) drop() error {
	if s.dropped.Swap(true) {
		return nil
	}

	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *stream) touch() {
	s.lastMsgTs.Store(time.Now().UnixNano())
}

func (s *stream) sinceLastMessage() time.Duration {
	return time.Since(time.Unix(0, s.lastMsgTs.Load()))
}

func (s *stream) write(messageType int, data []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return ErrNoStream
	}

	if err := s.conn.WriteMessage(messageType, data); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

func (s *stream) writeJSON(v any) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return nil
	}

	if err := s.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

func (s *stream) generateSilence(ctx context.Context, encoding audio.EncodingInfo) {
	type silenceGeneratorState string
	const (
		silenceGeneratorStateWaiting   silenceGeneratorState = "waiting"
		silenceGeneratorStateSilence   silenceGeneratorState = "silence"
		silenceGeneratorStateKeepAlive silenceGeneratorState = "keepAlive"
	)

	const chunkDuration = 50 * time.Millisecond
	ticker := time.NewTicker(chunkDuration)
	defer ticker.Stop()

	chunk := make([]byte, encoding.ChunkSize(chunkDuration))
	for i := range chunk {
		chunk[i] = encoding.SilenceValue()
	}

	var state = silenceGeneratorStateWaiting
	var firstSilenceTime *time.Time
	var lastKeepAliveTime *time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.closeRequested.Load() || s.dropped.Load() {
				return
			}

			switch state {
			case silenceGeneratorStateWaiting:
				if s.sinceLastMessage() > chunkDuration {
					state = silenceGeneratorStateSilence
					firstSilenceTime = utils.Ptr(time.Now())
					continue
				}

			case silenceGeneratorStateSilence:
				if s.sinceLastMessage() < chunkDuration {
					state = silenceGeneratorStateWaiting
					firstSilenceTime = nil
					continue
				}
				if time.Since(*firstSilenceTime) >= time.Second {
					state = silenceGeneratorStateKeepAlive
					lastKeepAliveTime = utils.Ptr(time.Now())
					firstSilenceTime = nil
					continue
				}

				if err := s.write(websocket.BinaryMessage, chunk); err != nil {
					logger.Debug("Sending silence audio failed", "error", err)
				}

			case silenceGeneratorStateKeepAlive:
				if s.sinceLastMessage() < chunkDuration {
					state = silenceGeneratorStateWaiting
					continue
				}

				if time.Since(*lastKeepAliveTime) >= 5*time.Second {
					lastKeepAliveTime = utils.Ptr(time.Now())
					if err := s.writeJSON(struct {
						Type string `json:"type"`
					}{Type: "KeepAlive"}); err != nil {
						logger.Debug("Sending keep alive failed", "error", err)
					}
				}
			}
		}
	}
}
