package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-voice/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type websocketMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`

	ErrCode     string `json:"err_code,omitempty"`
	ErrMsg      string `json:"err_msg,omitempty"`
	Description string `json:"description,omitempty"`
}

var (
	flushMsg = websocketMessage{Type: "Flush"}
	closeMsg = websocketMessage{Type: "Close"}
)

func speakMsg(text string) websocketMessage {
	return websocketMessage{Type: "Speak", Text: text}
}

// Synthesize opens a speak stream, sends the whole text followed by a flush
// and collects audio until Deepgram confirms the flush.
func (c *TextToSpeechClient) Synthesize(ctx context.Context, text string, opts ...texttospeech.SynthesisOption) (audio []byte, err error) {
	options := texttospeech.NewSynthesisOptions(opts...)
	voice := c.Voice()

	ctx, span := tracer.Start(ctx, "synthesize speech", trace.WithAttributes(
		attribute.String("tts.provider", "deepgram"),
		attribute.String("tts.voice", string(voice)),
		attribute.Int("tts.text_length", len(text)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.Int("tts.audio_bytes", len(audio)))
		span.End()
	}()

	conn, err := c.connectWebsocket(ctx, voice, options)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	stopOnCancel := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stopOnCancel()

	if err := conn.WriteJSON(speakMsg(text)); err != nil {
		return nil, fmt.Errorf("%w: failed to send text to deepgram: %w", texttospeech.ErrSynthesis, err)
	}
	if err := conn.WriteJSON(flushMsg); err != nil {
		return nil, fmt.Errorf("%w: failed to flush deepgram buffer: %w", texttospeech.ErrSynthesis, err)
	}

	buffer := bytes.Buffer{}
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: failed to read deepgram audio: %w", texttospeech.ErrSynthesis, err)
		}

		switch msgType {
		case websocket.BinaryMessage:
			buffer.Write(msg)
		case websocket.TextMessage:
			var parsedMsg websocketMessage
			if err := json.Unmarshal(msg, &parsedMsg); err != nil {
				logger.Warn("Failed to unmarshal deepgram message", "error", err)
				continue
			}

			switch parsedMsg.Type {
			case "Flushed":
				if err := conn.WriteJSON(closeMsg); err != nil {
					logger.Debug("Failed to close deepgram speak stream", "error", err)
				}
				return buffer.Bytes(), nil
			case "Warning":
				logger.Warn("Deepgram speak stream reported a problem", "message", string(msg))
			case "Error":
				reason := parsedMsg.Description
				if reason == "" {
					reason = parsedMsg.ErrMsg
				}
				return nil, fmt.Errorf("%w: deepgram reported %s: %s", texttospeech.ErrSynthesis, parsedMsg.ErrCode, reason)
			}
		}
	}
}

func (c *TextToSpeechClient) connectWebsocket(ctx context.Context, voice deepgramVoice, options texttospeech.SynthesisOptions) (*websocket.Conn, error) {
	speakUrl, err := url.Parse(c.baseURL + "/v1/speak")
	if err != nil {
		return nil, fmt.Errorf("invalid deepgram url: %w", err)
	}

	urlValues := url.Values{}
	urlValues.Set("encoding", options.EncodingInfo.Format.Name())
	urlValues.Set("sample_rate", strconv.Itoa(options.EncodingInfo.SampleRate))
	urlValues.Set("model", string(voice))
	urlValues.Set("container", "none")
	speakUrl.RawQuery = urlValues.Encode()

	conn, resp, err := c.dialer.DialContext(ctx, speakUrl.String(),
		http.Header{"Authorization": {"token " + c.apiKey}})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: deepgram rejected the speak stream (%s)", texttospeech.ErrSynthesis, resp.Status)
		}
		return nil, fmt.Errorf("%w: failed to open socket connection to deepgram: %w", texttospeech.ErrSynthesis, err)
	}

	return conn, nil
}
