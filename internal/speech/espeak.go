package speech

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	ProviderESpeak = "espeak"

	defaultESpeakBinary = "espeak-ng"
	defaultESpeakVoice  = "en-us"
	defaultESpeakSpeed  = 140 // words per minute, slower than the 175 default
)

// ESpeakConfig configures the local espeak-ng provider.
type ESpeakConfig struct {
	Binary  string
	Voice   string
	Speed   int
	Pitch   int
	Timeout time.Duration
}

// ESpeak pronounces words with a local espeak-ng binary. It needs no network
// or credentials, which makes it the usual fallback. Output is WAV.
type ESpeak struct {
	cfg ESpeakConfig
	log *zap.SugaredLogger
}

// NewESpeak builds an espeak-ng provider. Voices that look like remote voice
// names (e.g. "alloy") are replaced by the English default.
func NewESpeak(cfg ESpeakConfig, log *zap.SugaredLogger) *ESpeak {
	if cfg.Binary == "" {
		cfg.Binary = defaultESpeakBinary
	}
	if cfg.Voice == "" || !strings.Contains(cfg.Voice, "en") {
		cfg.Voice = defaultESpeakVoice
	}
	if cfg.Speed == 0 {
		cfg.Speed = defaultESpeakSpeed
	}
	if cfg.Pitch == 0 {
		cfg.Pitch = 50
	}
	return &ESpeak{cfg: cfg, log: nopIfNil(log)}
}

// Name implements Pronouncer.
func (e *ESpeak) Name() string { return ProviderESpeak }

// Voice returns the espeak voice.
func (e *ESpeak) Voice() string { return e.cfg.Voice }

// IsAvailable implements Pronouncer.
func (e *ESpeak) IsAvailable() error {
	if _, err := exec.LookPath(e.cfg.Binary); err != nil {
		return fmt.Errorf("%s is not installed or not in PATH: %w", e.cfg.Binary, err)
	}
	return nil
}

// Synthesize implements Pronouncer.
func (e *ESpeak) Synthesize(ctx context.Context, word string) (*Audio, error) {
	word = strings.TrimSpace(word)
	if word == "" {
		return nil, &PronunciationError{Provider: ProviderESpeak, Err: ErrEmptyWord}
	}
	ctx, cancel := withTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	args := []string{
		"-v", e.cfg.Voice,
		"-s", strconv.Itoa(e.cfg.Speed),
		"-p", strconv.Itoa(e.cfg.Pitch),
		"--stdout",
		"--", word,
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.cfg.Binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		e.log.Debugw("espeak failed", "stderr", strings.TrimSpace(stderr.String()))
		return nil, &PronunciationError{Provider: ProviderESpeak, Word: word, Err: fmt.Errorf("%s: %w", e.cfg.Binary, err)}
	}
	if !isWAV(stdout.Bytes()) {
		return nil, &PronunciationError{Provider: ProviderESpeak, Word: word, Err: ErrNoAudio}
	}
	return &Audio{Data: stdout.Bytes(), MIMEType: MIMEWAV}, nil
}
