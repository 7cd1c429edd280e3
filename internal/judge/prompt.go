package judge

import (
	"encoding/json"
	"fmt"
	"mime"
	"strings"
)

const audioJudgePrompt = `You are a Spelling Bee judge.
The student was asked to spell the word: %q.
Listen to the audio. The student should be spelling the word letter-by-letter.

Tasks:
1. Transcribe the letters spoken.
2. Check if the sequence of letters matches the correct spelling of %q.
3. Provide encouraging feedback.

Return the result in JSON format with: isCorrect (boolean), heardSpelling (string), and feedbackText (string).`

const transcriptJudgePrompt = `You are a Spelling Bee judge.
The student was asked to spell the word: %q.
A speech-to-text system transcribed the student's attempt as: %q.
The student should have spelled the word letter-by-letter; the transcript may
render letters as words (e.g. "see" for C, "why" for Y).

Tasks:
1. Work out the sequence of letters the student spoke.
2. Check if it matches the correct spelling of %q.
3. Provide encouraging feedback.

Return a JSON object with: isCorrect (boolean), heardSpelling (string, letters separated by hyphens), and feedbackText (string).`

func audioPrompt(target string) string {
	return fmt.Sprintf(audioJudgePrompt, target, target)
}

func transcriptPrompt(target, transcript string) string {
	return fmt.Sprintf(transcriptJudgePrompt, target, transcript, target)
}

// verdict is the structured answer requested from the models.
type verdict struct {
	IsCorrect     *bool  `json:"isCorrect"`
	HeardSpelling string `json:"heardSpelling"`
	FeedbackText  string `json:"feedbackText"`
}

// parseJudgment turns a model reply into a Judgment. Replies that are not the
// requested JSON are passed through verbatim as the judgment text.
func parseJudgment(raw string) (*Judgment, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrNoJudgment
	}
	var v verdict
	if err := json.Unmarshal([]byte(stripFence(raw)), &v); err != nil || strings.TrimSpace(v.FeedbackText) == "" {
		return &Judgment{Text: raw}, nil
	}
	return &Judgment{
		Text:    strings.TrimSpace(v.FeedbackText),
		Heard:   strings.TrimSpace(v.HeardSpelling),
		Correct: v.IsCorrect,
	}, nil
}

// stripFence removes a ```json ... ``` wrapper some models add.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// baseMIME drops codec parameters, e.g. "audio/webm;codecs=opus" -> "audio/webm".
func baseMIME(mimeType string) string {
	if mimeType == "" {
		return "audio/webm"
	}
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return "audio/webm"
	}
	return mt
}

// fileName returns an upload name whose extension matches the clip type.
// The transcription endpoint infers the container from it.
func fileName(mimeType string) string {
	switch baseMIME(mimeType) {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "attempt.wav"
	case "audio/ogg":
		return "attempt.ogg"
	case "audio/mp4", "audio/x-m4a":
		return "attempt.m4a"
	case "audio/mpeg":
		return "attempt.mp3"
	default:
		return "attempt.webm"
	}
}
