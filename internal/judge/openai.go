package judge

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = "gpt-4o-mini"

type openAIClient interface {
	CreateTranscription(ctx context.Context, request openai.AudioRequest) (openai.AudioResponse, error)
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIConfig configures the OpenAI judge.
type OpenAIConfig struct {
	APIKey          string
	BaseURL         string
	Model           string // chat model that judges the transcript
	TranscribeModel string // speech-to-text model
	Timeout         time.Duration
}

// OpenAI judges in two steps: the recording is transcribed, then a chat
// model compares the transcript with the target word.
type OpenAI struct {
	client openAIClient
	cfg    OpenAIConfig
}

// NewOpenAI builds an OpenAI judge.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &EvaluationError{Provider: ProviderOpenAI, Err: ErrMissingCredential}
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return newOpenAIWithClient(openai.NewClientWithConfig(clientCfg), cfg), nil
}

func newOpenAIWithClient(client openAIClient, cfg OpenAIConfig) *OpenAI {
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}
	if cfg.TranscribeModel == "" {
		cfg.TranscribeModel = openai.Whisper1
	}
	return &OpenAI{client: client, cfg: cfg}
}

// Name implements Evaluator.
func (o *OpenAI) Name() string { return ProviderOpenAI }

// Evaluate implements Evaluator.
func (o *OpenAI) Evaluate(ctx context.Context, target string, clip Clip) (*Judgment, error) {
	if err := validate(ProviderOpenAI, target, clip); err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	tr, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.cfg.TranscribeModel,
		FilePath: fileName(clip.MIMEType),
		Reader:   bytes.NewReader(clip.Data),
		Language: "en",
		Prompt:   "The speaker spells a word letter by letter, for example: A, P, P, L, E.",
	})
	if err != nil {
		return nil, &EvaluationError{Provider: ProviderOpenAI, Word: target, Err: fmt.Errorf("transcribe: %w", err)}
	}
	transcript := strings.TrimSpace(tr.Text)
	if transcript == "" {
		no := false
		return &Judgment{
			Text:    "I couldn't hear any letters. Please try spelling the word again clearly.",
			Correct: &no,
		}, nil
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: transcriptPrompt(target, transcript)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, &EvaluationError{Provider: ProviderOpenAI, Word: target, Err: fmt.Errorf("judge: %w", err)}
	}
	if len(resp.Choices) == 0 {
		return nil, &EvaluationError{Provider: ProviderOpenAI, Word: target, Err: ErrNoJudgment}
	}
	j, err := parseJudgment(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, &EvaluationError{Provider: ProviderOpenAI, Word: target, Err: err}
	}
	if j.Heard == "" && j.Correct == nil {
		j.Heard = transcript
	}
	return j, nil
}
