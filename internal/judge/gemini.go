package judge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiConfig configures the Gemini judge.
type GeminiConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Gemini judges the recording directly: the audio and the judge prompt go
// out in one multimodal request with a JSON response schema.
type Gemini struct {
	models contentGenerator
	cfg    GeminiConfig
}

// NewGemini builds a Gemini judge against the Gemini API backend.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &EvaluationError{Provider: ProviderGemini, Err: ErrMissingCredential}
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &EvaluationError{Provider: ProviderGemini, Err: fmt.Errorf("create client: %w", err)}
	}
	return newGeminiWithModels(client.Models, cfg), nil
}

func newGeminiWithModels(models contentGenerator, cfg GeminiConfig) *Gemini {
	if cfg.Model == "" {
		cfg.Model = defaultGeminiModel
	}
	return &Gemini{models: models, cfg: cfg}
}

// Name implements Evaluator.
func (g *Gemini) Name() string { return ProviderGemini }

var verdictSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"isCorrect": {Type: genai.TypeBoolean},
		"heardSpelling": {
			Type:        genai.TypeString,
			Description: "The letters heard from the student, e.g. A-P-P-L-E",
		},
		"feedbackText": {
			Type:        genai.TypeString,
			Description: "Encouraging feedback explaining if they were right or wrong.",
		},
	},
	Required: []string{"isCorrect", "heardSpelling", "feedbackText"},
}

// Evaluate implements Evaluator.
func (g *Gemini) Evaluate(ctx context.Context, target string, clip Clip) (*Judgment, error) {
	if err := validate(ProviderGemini, target, clip); err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	parts := []*genai.Part{
		genai.NewPartFromBytes(clip.Data, baseMIME(clip.MIMEType)),
		genai.NewPartFromText(audioPrompt(target)),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   verdictSchema,
	}

	resp, err := g.models.GenerateContent(ctx, g.cfg.Model, contents, config)
	if err != nil {
		return nil, &EvaluationError{Provider: ProviderGemini, Word: target, Err: err}
	}
	if resp == nil {
		return nil, &EvaluationError{Provider: ProviderGemini, Word: target, Err: ErrNoJudgment}
	}
	j, err := parseJudgment(resp.Text())
	if err != nil {
		return nil, &EvaluationError{Provider: ProviderGemini, Word: target, Err: err}
	}
	return j, nil
}
