// Package config reads the marco configuration file and the provider API keys
// from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	orchestration "github.com/koscakluka/ema-voice/core"
	"github.com/koscakluka/ema-voice/core/phrases"
	deepgramtts "github.com/koscakluka/ema-voice/core/texttospeech/deepgram"
	"gopkg.in/yaml.v3"
)

const (
	ProviderGroq       = "groq"
	ProviderOpenAI     = "openai"
	ProviderDeepgram   = "deepgram"
	ProviderElevenLabs = "elevenlabs"

	BackendMiniaudio = "miniaudio"
	BackendPortaudio = "portaudio"
)

// Config is the top-level structure of the configuration file.
type Config struct {
	Session     SessionConfig     `yaml:"session"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Completion  CompletionConfig  `yaml:"completion"`
	Speech      SpeechConfig      `yaml:"speech"`
	Audio       AudioConfig       `yaml:"audio"`

	// Keys are only ever read from the environment.
	Keys APIKeys `yaml:"-" json:"-"`
}

type SessionConfig struct {
	Greeting          string        `yaml:"greeting" jsonschema_description:"Spoken when a conversation starts"`
	Farewell          string        `yaml:"farewell" jsonschema_description:"Spoken when a conversation ends"`
	RestartDelay      time.Duration `yaml:"restart_delay" jsonschema_description:"Delay before restarting recognition that ended on its own"`
	CompletionTimeout time.Duration `yaml:"completion_timeout" jsonschema_description:"Longest wait for a reply before apologizing"`
	SystemPrompt      string        `yaml:"system_prompt"`
	WakePhrases       []string      `yaml:"wake_phrases"`
	GoodbyePhrases    []string      `yaml:"goodbye_phrases"`
}

type RecognitionConfig struct {
	Model           string        `yaml:"model"`
	Language        string        `yaml:"language"`
	InterimResults  bool          `yaml:"interim_results"`
	NoSpeechTimeout time.Duration `yaml:"no_speech_timeout" jsonschema_description:"Ends a question that was never asked; 0 disables it"`
}

type CompletionConfig struct {
	Provider    string  `yaml:"provider" jsonschema:"enum=groq,enum=openai"`
	Model       string  `yaml:"model" jsonschema_description:"Empty selects the provider default"`
	Temperature float64 `yaml:"temperature" jsonschema:"minimum=0,maximum=2"`
	MaxTokens   int     `yaml:"max_tokens" jsonschema:"minimum=1"`
}

type SpeechConfig struct {
	Provider string `yaml:"provider" jsonschema:"enum=deepgram,enum=elevenlabs"`
	Voice    string `yaml:"voice" jsonschema_description:"Deepgram voice name or ElevenLabs voice id; empty selects the provider default"`
}

type AudioConfig struct {
	Backend    string `yaml:"backend" jsonschema:"enum=miniaudio,enum=portaudio"`
	SampleRate int    `yaml:"sample_rate"`
	BufferSize int    `yaml:"buffer_size" jsonschema_description:"Frames per portaudio buffer"`
}

type APIKeys struct {
	Groq       string
	OpenAI     string
	Deepgram   string
	ElevenLabs string
}

func Default() *Config {
	return &Config{
		Session: SessionConfig{
			Greeting:          orchestration.DefaultGreeting,
			Farewell:          orchestration.DefaultFarewell,
			RestartDelay:      orchestration.DefaultRestartDelay,
			CompletionTimeout: orchestration.DefaultCompletionTimeout,
			SystemPrompt:      orchestration.DefaultInstructions,
			WakePhrases:       slices.Clone(phrases.DefaultWakePhrases),
			GoodbyePhrases:    slices.Clone(phrases.DefaultGoodbyePhrases),
		},
		Recognition: RecognitionConfig{
			Model:           "nova-3",
			Language:        orchestration.DefaultLanguage,
			InterimResults:  true,
			NoSpeechTimeout: orchestration.DefaultNoSpeechTimeout,
		},
		Completion: CompletionConfig{
			Provider:    ProviderGroq,
			Temperature: 0.7,
			MaxTokens:   1024,
		},
		Speech: SpeechConfig{
			Provider: ProviderDeepgram,
		},
		Audio: AudioConfig{
			Backend:    BackendMiniaudio,
			SampleRate: 16000,
			BufferSize: 512,
		},
	}
}

// Load reads the file at path over the defaults and then applies the
// environment. An empty path only applies the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	cfg.applyEnv(os.Getenv)
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	c.Keys = APIKeys{
		Groq:       getenv("GROQ_API_KEY"),
		OpenAI:     getenv("OPENAI_API_KEY"),
		Deepgram:   getenv("DEEPGRAM_API_KEY"),
		ElevenLabs: getenv("ELEVENLABS_API_KEY"),
	}
	if c.Speech.Provider == ProviderElevenLabs && c.Speech.Voice == "" {
		c.Speech.Voice = getenv("ELEVENLABS_VOICE_ID")
	}
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	errs := []error{}

	if c.Session.RestartDelay < 0 {
		errs = append(errs, fmt.Errorf("session.restart_delay must not be negative, got %s", c.Session.RestartDelay))
	}
	if c.Session.CompletionTimeout <= 0 {
		errs = append(errs, fmt.Errorf("session.completion_timeout must be positive, got %s", c.Session.CompletionTimeout))
	}
	if len(nonBlank(c.Session.WakePhrases)) == 0 {
		errs = append(errs, errors.New("session.wake_phrases must contain at least one phrase"))
	}
	if len(nonBlank(c.Session.GoodbyePhrases)) == 0 {
		errs = append(errs, errors.New("session.goodbye_phrases must contain at least one phrase"))
	}

	if c.Recognition.NoSpeechTimeout < 0 {
		errs = append(errs, fmt.Errorf("recognition.no_speech_timeout must not be negative, got %s", c.Recognition.NoSpeechTimeout))
	}
	if c.Keys.Deepgram == "" {
		errs = append(errs, errors.New("DEEPGRAM_API_KEY is required for speech recognition"))
	}

	switch c.Completion.Provider {
	case ProviderGroq:
		if c.Keys.Groq == "" {
			errs = append(errs, errors.New("GROQ_API_KEY is required for the groq completion provider"))
		}
	case ProviderOpenAI:
		if c.Keys.OpenAI == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai completion provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown completion.provider %q", c.Completion.Provider))
	}
	if c.Completion.Temperature < 0 || c.Completion.Temperature > 2 {
		errs = append(errs, fmt.Errorf("completion.temperature must be between 0 and 2, got %g", c.Completion.Temperature))
	}
	if c.Completion.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("completion.max_tokens must be positive, got %d", c.Completion.MaxTokens))
	}

	switch c.Speech.Provider {
	case ProviderDeepgram:
		if _, ok := deepgramtts.ParseVoice(c.Speech.Voice); !ok {
			errs = append(errs, fmt.Errorf("unknown deepgram voice %q", c.Speech.Voice))
		}
	case ProviderElevenLabs:
		if c.Keys.ElevenLabs == "" {
			errs = append(errs, errors.New("ELEVENLABS_API_KEY is required for the elevenlabs speech provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown speech.provider %q", c.Speech.Provider))
	}

	switch c.Audio.Backend {
	case BackendMiniaudio, BackendPortaudio:
	default:
		errs = append(errs, fmt.Errorf("unknown audio.backend %q", c.Audio.Backend))
	}
	if c.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be positive, got %d", c.Audio.SampleRate))
	}
	if c.Audio.Backend == BackendPortaudio && c.Audio.BufferSize <= 0 {
		errs = append(errs, fmt.Errorf("audio.buffer_size must be positive, got %d", c.Audio.BufferSize))
	}

	return errors.Join(errs...)
}

// Marshal renders the configuration as YAML, without the API keys.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshalling config: %w", err)
	}
	return data, nil
}

func nonBlank(values []string) []string {
	result := []string{}
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			result = append(result, value)
		}
	}
	return result
}
