package speech

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

const (
	ProviderOpenAI = "openai"

	defaultOpenAIModel = "gpt-4o-mini-tts"
	defaultOpenAIVoice = "alloy"
	defaultInstruction = "Pronounce the single English word clearly and slowly, the way a spelling bee pronouncer would."
)

type speechClient interface {
	CreateSpeech(ctx context.Context, request openai.CreateSpeechRequest) (openai.RawResponse, error)
}

// OpenAIConfig configures the OpenAI TTS provider.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	Model        string  // tts-1, tts-1-hd or gpt-4o-mini-tts
	Voice        string  // alloy, ash, coral, echo, fable, nova, onyx, sage, shimmer
	Speed        float64 // 0.25 to 4.0
	Instructions string  // honoured by gpt-4o-mini-tts only
	Timeout      time.Duration
}

// OpenAI pronounces words with the OpenAI speech endpoint. Output is MP3.
type OpenAI struct {
	client speechClient
	cfg    OpenAIConfig
}

// NewOpenAI builds an OpenAI provider.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &PronunciationError{Provider: ProviderOpenAI, Err: ErrMissingCredential}
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return newOpenAIWithClient(openai.NewClientWithConfig(clientCfg), cfg), nil
}

func newOpenAIWithClient(client speechClient, cfg OpenAIConfig) *OpenAI {
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}
	if cfg.Voice == "" {
		cfg.Voice = defaultOpenAIVoice
	}
	if cfg.Speed == 0 {
		cfg.Speed = 1.0
	}
	if cfg.Instructions == "" && supportsInstructions(cfg.Model) {
		cfg.Instructions = defaultInstruction
	}
	return &OpenAI{client: client, cfg: cfg}
}

func supportsInstructions(model string) bool {
	return model == "gpt-4o-mini-tts" || model == "gpt-4o-mini-audio-preview"
}

// Name implements Pronouncer.
func (p *OpenAI) Name() string { return ProviderOpenAI }

// Voice returns the configured voice.
func (p *OpenAI) Voice() string { return p.cfg.Voice }

// IsAvailable implements Pronouncer.
func (p *OpenAI) IsAvailable() error {
	if p.client == nil {
		return ErrMissingCredential
	}
	return nil
}

// Synthesize implements Pronouncer.
func (p *OpenAI) Synthesize(ctx context.Context, word string) (*Audio, error) {
	word = strings.TrimSpace(word)
	if word == "" {
		return nil, &PronunciationError{Provider: ProviderOpenAI, Err: ErrEmptyWord}
	}
	ctx, cancel := withTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	req := openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(p.cfg.Model),
		Input:          word,
		Voice:          openai.SpeechVoice(p.cfg.Voice),
		Speed:          p.cfg.Speed,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	}
	if supportsInstructions(p.cfg.Model) {
		req.Instructions = p.cfg.Instructions
	}

	resp, err := p.client.CreateSpeech(ctx, req)
	if err != nil {
		if strings.Contains(err.Error(), "does not have access to model") {
			err = fmt.Errorf("%w (try speech.openai_model=tts-1)", err)
		}
		return nil, &PronunciationError{Provider: ProviderOpenAI, Word: word, Err: err}
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, &PronunciationError{Provider: ProviderOpenAI, Word: word, Err: fmt.Errorf("read audio: %w", err)}
	}
	if len(data) == 0 {
		return nil, &PronunciationError{Provider: ProviderOpenAI, Word: word, Err: ErrNoAudio}
	}
	return &Audio{Data: data, MIMEType: MIMEMP3}, nil
}
