package speech

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	ProviderGemini = "gemini"

	defaultGeminiTTSModel = "gemini-2.5-flash-preview-tts"
	defaultGeminiVoice    = "Kore"
)

// contentGenerator is the subset of *genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiConfig configures the Gemini TTS provider.
type GeminiConfig struct {
	APIKey  string
	Model   string
	Voice   string // prebuilt voice name, e.g. Kore, Puck, Charon
	Timeout time.Duration
}

// Gemini pronounces words with a Gemini TTS model. The model returns 24 kHz
// mono PCM which is wrapped in a WAV container.
type Gemini struct {
	models contentGenerator
	cfg    GeminiConfig
}

// NewGemini builds a Gemini provider against the Gemini API backend.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &PronunciationError{Provider: ProviderGemini, Err: ErrMissingCredential}
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &PronunciationError{Provider: ProviderGemini, Err: fmt.Errorf("create client: %w", err)}
	}
	return newGeminiWithModels(client.Models, cfg), nil
}

func newGeminiWithModels(models contentGenerator, cfg GeminiConfig) *Gemini {
	if cfg.Model == "" {
		cfg.Model = defaultGeminiTTSModel
	}
	if cfg.Voice == "" {
		cfg.Voice = defaultGeminiVoice
	}
	return &Gemini{models: models, cfg: cfg}
}

// Name implements Pronouncer.
func (g *Gemini) Name() string { return ProviderGemini }

// Voice returns the configured prebuilt voice.
func (g *Gemini) Voice() string { return g.cfg.Voice }

// IsAvailable implements Pronouncer.
func (g *Gemini) IsAvailable() error {
	if g.models == nil {
		return ErrMissingCredential
	}
	return nil
}

// Synthesize implements Pronouncer.
func (g *Gemini) Synthesize(ctx context.Context, word string) (*Audio, error) {
	word = strings.TrimSpace(word)
	if word == "" {
		return nil, &PronunciationError{Provider: ProviderGemini, Err: ErrEmptyWord}
	}
	ctx, cancel := withTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	contents := []*genai.Content{
		genai.NewContentFromText(fmt.Sprintf("The word is: %s.", word), genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: g.cfg.Voice},
			},
		},
	}

	resp, err := g.models.GenerateContent(ctx, g.cfg.Model, contents, config)
	if err != nil {
		return nil, &PronunciationError{Provider: ProviderGemini, Word: word, Err: err}
	}
	pcm := inlineAudio(resp)
	if len(pcm) == 0 {
		return nil, &PronunciationError{Provider: ProviderGemini, Word: word, Err: ErrNoAudio}
	}
	if isWAV(pcm) {
		return &Audio{Data: pcm, MIMEType: MIMEWAV}, nil
	}
	return &Audio{
		Data:     wrapPCM(pcm, pcmSampleRate, pcmChannels, pcmBitsPerSample),
		MIMEType: MIMEWAV,
	}, nil
}

// inlineAudio returns the first inline data blob of the first candidate.
func inlineAudio(resp *genai.GenerateContentResponse) []byte {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	c := resp.Candidates[0]
	if c == nil || c.Content == nil {
		return nil
	}
	for _, part := range c.Content.Parts {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return part.InlineData.Data
		}
	}
	return nil
}
