package cli

import (
	"fmt"

	orchestration "github.com/koscakluka/ema-voice/core"
	"github.com/koscakluka/ema-voice/core/audio/miniaudio"
	"github.com/koscakluka/ema-voice/core/audio/portaudio"
	"github.com/koscakluka/ema-voice/core/llms"
	"github.com/koscakluka/ema-voice/core/llms/groq"
	"github.com/koscakluka/ema-voice/core/llms/openai"
	"github.com/koscakluka/ema-voice/core/phrases"
	deepgramstt "github.com/koscakluka/ema-voice/core/speechtotext/deepgram"
	deepgramtts "github.com/koscakluka/ema-voice/core/texttospeech/deepgram"
	"github.com/koscakluka/ema-voice/core/texttospeech/elevenlabs"
	"github.com/koscakluka/ema-voice/internal/config"
)

type audioDevice interface {
	orchestration.AudioInput
	orchestration.AudioOutput
	Close()
}

// orchestratorFromConfig builds the providers named in cfg and an
// orchestrator wired to them. The returned cleanup releases the audio device.
func orchestratorFromConfig(cfg *config.Config) (*orchestration.Orchestrator, func(), error) {
	sttOpts := []deepgramstt.ClientOption{deepgramstt.WithAPIKey(cfg.Keys.Deepgram)}
	if cfg.Recognition.Model != "" {
		sttOpts = append(sttOpts, deepgramstt.WithModel(cfg.Recognition.Model))
	}
	stt, err := deepgramstt.NewTranscriptionClient(sttOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("creating speech-to-text client: %w", err)
	}

	llm, err := llmFromConfig(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating completion client: %w", err)
	}

	tts, err := textToSpeechFromConfig(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating text-to-speech client: %w", err)
	}

	device, err := audioDeviceFromConfig(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("opening audio device: %w", err)
	}

	recognition := orchestration.DefaultRecognitionConfig()
	recognition.Language = cfg.Recognition.Language
	recognition.InterimResults = cfg.Recognition.InterimResults
	recognition.NoSpeechTimeout = cfg.Recognition.NoSpeechTimeout

	matcher := phrases.NewMatcher(
		phrases.WithWakePhrases(cfg.Session.WakePhrases...),
		phrases.WithGoodbyePhrases(cfg.Session.GoodbyePhrases...),
	)

	orchestrator := orchestration.NewOrchestrator(
		orchestration.WithSpeechToTextClient(stt),
		orchestration.WithAudioInput(device),
		orchestration.WithTextToSpeechClient(tts),
		orchestration.WithAudioOutput(device),
		orchestration.WithLLM(llm),
		orchestration.WithCompletionOptions(llms.WithInstructions(cfg.Session.SystemPrompt)),
		orchestration.WithCompletionTimeout(cfg.Session.CompletionTimeout),
		orchestration.WithPhraseMatcher(matcher),
		orchestration.WithRecognitionConfig(recognition),
		orchestration.WithRestartDelay(cfg.Session.RestartDelay),
		orchestration.WithGreeting(cfg.Session.Greeting),
		orchestration.WithFarewell(cfg.Session.Farewell),
	)
	return orchestrator, device.Close, nil
}

func llmFromConfig(cfg *config.Config) (orchestration.LLM, error) {
	defaults := []llms.CompletionOption{
		llms.WithTemperature(cfg.Completion.Temperature),
		llms.WithMaxTokens(cfg.Completion.MaxTokens),
	}

	switch cfg.Completion.Provider {
	case config.ProviderGroq:
		opts := []groq.ClientOption{groq.WithAPIKey(cfg.Keys.Groq), groq.WithDefaultOptions(defaults...)}
		if cfg.Completion.Model != "" {
			opts = append(opts, groq.WithModel(cfg.Completion.Model))
		}
		return groq.NewClient(opts...)
	case config.ProviderOpenAI:
		opts := []openai.ClientOption{openai.WithAPIKey(cfg.Keys.OpenAI), openai.WithDefaultOptions(defaults...)}
		if cfg.Completion.Model != "" {
			opts = append(opts, openai.WithModel(cfg.Completion.Model))
		}
		return openai.NewClient(opts...)
	default:
		return nil, fmt.Errorf("unknown completion provider %q", cfg.Completion.Provider)
	}
}

func textToSpeechFromConfig(cfg *config.Config) (orchestration.TextToSpeech, error) {
	switch cfg.Speech.Provider {
	case config.ProviderDeepgram:
		voice, ok := deepgramtts.ParseVoice(cfg.Speech.Voice)
		if !ok {
			return nil, fmt.Errorf("unknown deepgram voice %q", cfg.Speech.Voice)
		}
		return deepgramtts.NewTextToSpeechClient(voice, deepgramtts.WithAPIKey(cfg.Keys.Deepgram))
	case config.ProviderElevenLabs:
		opts := []elevenlabs.ClientOption{elevenlabs.WithAPIKey(cfg.Keys.ElevenLabs)}
		if cfg.Speech.Voice != "" {
			opts = append(opts, elevenlabs.WithVoiceID(cfg.Speech.Voice))
		}
		return elevenlabs.NewClient(opts...)
	default:
		return nil, fmt.Errorf("unknown speech provider %q", cfg.Speech.Provider)
	}
}

func audioDeviceFromConfig(cfg *config.Config) (audioDevice, error) {
	switch cfg.Audio.Backend {
	case config.BackendMiniaudio:
		return miniaudio.NewClient(miniaudio.WithSampleRate(cfg.Audio.SampleRate))
	case config.BackendPortaudio:
		return portaudio.NewClient(cfg.Audio.BufferSize)
	default:
		return nil, fmt.Errorf("unknown audio backend %q", cfg.Audio.Backend)
	}
}
