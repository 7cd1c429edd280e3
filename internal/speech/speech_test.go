package speech

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"spellbee/internal/breaker"
)

var errBoom = errors.New("boom")

type fakeSpeechClient struct {
	req  openai.CreateSpeechRequest
	body string
	err  error
}

func (f *fakeSpeechClient) CreateSpeech(_ context.Context, req openai.CreateSpeechRequest) (openai.RawResponse, error) {
	f.req = req
	if f.err != nil {
		return openai.RawResponse{}, f.err
	}
	return openai.RawResponse{ReadCloser: io.NopCloser(strings.NewReader(f.body))}, nil
}

type fakeGenerator struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	resp     *genai.GenerateContentResponse
	err      error
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model, f.contents, f.config = model, contents, config
	return f.resp, f.err
}

func audioResponse(data []byte) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{
				InlineData: &genai.Blob{Data: data, MIMEType: "audio/L16;codec=pcm;rate=24000"},
			}}},
		}},
	}
}

type fakePronouncer struct {
	mu    sync.Mutex
	name  string
	audio *Audio
	err   error
	calls int
}

func (f *fakePronouncer) Synthesize(_ context.Context, word string) (*Audio, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, &PronunciationError{Provider: f.name, Word: word, Err: f.err}
	}
	return f.audio, nil
}

func (f *fakePronouncer) Name() string       { return f.name }
func (f *fakePronouncer) IsAvailable() error { return nil }

func (f *fakePronouncer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (*Audio, bool, error) { return nil, false, errBoom }
func (brokenStore) Put(context.Context, string, *Audio) error         { return errBoom }
func (brokenStore) Name() string                                      { return "broken" }

func TestOpenAISynthesize(t *testing.T) {
	client := &fakeSpeechClient{body: "ID3-mp3-bytes"}
	p := newOpenAIWithClient(client, OpenAIConfig{})

	audio, err := p.Synthesize(context.Background(), "  atmosphere ")
	require.NoError(t, err)
	assert.Equal(t, MIMEMP3, audio.MIMEType)
	assert.Equal(t, []byte("ID3-mp3-bytes"), audio.Data)

	assert.Equal(t, "atmosphere", client.req.Input)
	assert.Equal(t, openai.SpeechModel(defaultOpenAIModel), client.req.Model)
	assert.Equal(t, openai.SpeechVoice(defaultOpenAIVoice), client.req.Voice)
	assert.Equal(t, openai.SpeechResponseFormatMp3, client.req.ResponseFormat)
	assert.NotEmpty(t, client.req.Instructions)
}

func TestOpenAIOmitsInstructionsForClassicModels(t *testing.T) {
	client := &fakeSpeechClient{body: "x"}
	p := newOpenAIWithClient(client, OpenAIConfig{Model: "tts-1", Instructions: "slowly"})

	_, err := p.Synthesize(context.Background(), "logic")
	require.NoError(t, err)
	assert.Empty(t, client.req.Instructions)
}

func TestOpenAIErrors(t *testing.T) {
	_, err := NewOpenAI(OpenAIConfig{})
	require.ErrorIs(t, err, ErrMissingCredential)

	p := newOpenAIWithClient(&fakeSpeechClient{err: errBoom}, OpenAIConfig{})
	_, err = p.Synthesize(context.Background(), "logic")
	var pe *PronunciationError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ProviderOpenAI, pe.Provider)
	assert.Equal(t, "logic", pe.Word)
	assert.ErrorIs(t, err, errBoom)

	p = newOpenAIWithClient(&fakeSpeechClient{}, OpenAIConfig{})
	_, err = p.Synthesize(context.Background(), "logic")
	assert.ErrorIs(t, err, ErrNoAudio)

	_, err = p.Synthesize(context.Background(), " ")
	assert.ErrorIs(t, err, ErrEmptyWord)
}

func TestGeminiWrapsPCMInWAV(t *testing.T) {
	pcm := []byte{1, 0, 2, 0, 3, 0, 4, 0}
	gen := &fakeGenerator{resp: audioResponse(pcm)}
	g := newGeminiWithModels(gen, GeminiConfig{})

	audio, err := g.Synthesize(context.Background(), "equation")
	require.NoError(t, err)
	assert.Equal(t, MIMEWAV, audio.MIMEType)
	require.Len(t, audio.Data, 44+len(pcm))
	assert.True(t, isWAV(audio.Data))
	assert.Equal(t, uint32(pcmSampleRate), binary.LittleEndian.Uint32(audio.Data[24:28]))
	assert.Equal(t, uint32(len(pcm)), binary.LittleEndian.Uint32(audio.Data[40:44]))
	assert.Equal(t, pcm, audio.Data[44:])

	assert.Equal(t, defaultGeminiTTSModel, gen.model)
	assert.Equal(t, []string{"AUDIO"}, gen.config.ResponseModalities)
	assert.Equal(t, "Kore", gen.config.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName)
	require.Len(t, gen.contents, 1)
	assert.Equal(t, "The word is: equation.", gen.contents[0].Parts[0].Text)
}

func TestGeminiErrors(t *testing.T) {
	_, err := NewGemini(context.Background(), GeminiConfig{})
	require.ErrorIs(t, err, ErrMissingCredential)

	g := newGeminiWithModels(&fakeGenerator{err: errBoom}, GeminiConfig{})
	_, err = g.Synthesize(context.Background(), "logic")
	assert.ErrorIs(t, err, errBoom)

	g = newGeminiWithModels(&fakeGenerator{resp: &genai.GenerateContentResponse{}}, GeminiConfig{})
	_, err = g.Synthesize(context.Background(), "logic")
	assert.ErrorIs(t, err, ErrNoAudio)
}

func TestESpeak(t *testing.T) {
	e := NewESpeak(ESpeakConfig{Voice: "alloy"}, nil)
	assert.Equal(t, defaultESpeakVoice, e.Voice())

	if _, err := exec.LookPath(defaultESpeakBinary); err != nil {
		t.Skip("espeak-ng not installed")
	}
	require.NoError(t, e.IsAvailable())
	audio, err := e.Synthesize(context.Background(), "logic")
	require.NoError(t, err)
	assert.Equal(t, MIMEWAV, audio.MIMEType)
	assert.True(t, isWAV(audio.Data))
}

func TestESpeakMissingBinary(t *testing.T) {
	e := NewESpeak(ESpeakConfig{Binary: "definitely-not-espeak"}, nil)
	assert.Error(t, e.IsAvailable())

	_, err := e.Synthesize(context.Background(), "logic")
	var pe *PronunciationError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ProviderESpeak, pe.Provider)
}

func TestFallback(t *testing.T) {
	primary := &fakePronouncer{name: "primary", err: errBoom}
	secondary := &fakePronouncer{name: "secondary", audio: &Audio{Data: []byte("wav"), MIMEType: MIMEWAV}}
	f := WithFallback(primary, secondary, nil)

	audio, err := f.Synthesize(context.Background(), "logic")
	require.NoError(t, err)
	assert.Equal(t, "wav", string(audio.Data))
	assert.Equal(t, 1, primary.Calls())
	assert.Equal(t, 1, secondary.Calls())
	assert.Equal(t, "primary (fallback: secondary)", f.Name())
	assert.NoError(t, f.IsAvailable())

	secondary.err = errors.New("also down")
	_, err = f.Synthesize(context.Background(), "logic")
	var pe *PronunciationError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, f.Name(), pe.Provider)
	assert.ErrorIs(t, err, errBoom)
}

func TestCachedPromotesHitsToEarlierTiers(t *testing.T) {
	next := &fakePronouncer{name: "openai", audio: &Audio{Data: []byte("mp3"), MIMEType: MIMEMP3}}
	mem := NewMemoryStore(10)
	disk, err := NewDiskStore(t.TempDir(), true)
	require.NoError(t, err)

	c := NewCached(next, nil, mem, disk)
	ctx := context.Background()

	_, err = c.Synthesize(ctx, "logic")
	require.NoError(t, err)
	assert.Equal(t, 1, next.Calls())
	assert.Equal(t, 1, mem.Len())

	// Fresh memory tier: the disk hit must be promoted into it.
	mem2 := NewMemoryStore(10)
	c2 := NewCached(next, nil, mem2, disk)
	audio, err := c2.Synthesize(ctx, "logic")
	require.NoError(t, err)
	assert.Equal(t, MIMEMP3, audio.MIMEType)
	assert.Equal(t, "mp3", string(audio.Data))
	assert.Equal(t, 1, next.Calls())
	assert.Equal(t, 1, mem2.Len())

	hits, misses := c2.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(0), misses)
}

func TestCachedIgnoresStoreFailures(t *testing.T) {
	next := &fakePronouncer{name: "openai", audio: &Audio{Data: []byte("mp3"), MIMEType: MIMEMP3}}
	c := NewCached(next, nil, brokenStore{})

	audio, err := c.Synthesize(context.Background(), "logic")
	require.NoError(t, err)
	assert.Equal(t, "mp3", string(audio.Data))
}

func TestCachedDoesNotStoreFailures(t *testing.T) {
	next := &fakePronouncer{name: "openai", err: errBoom}
	mem := NewMemoryStore(10)
	c := NewCached(next, nil, mem)

	_, err := c.Synthesize(context.Background(), "logic")
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 0, mem.Len())
}

func TestCacheKeyDependsOnVoice(t *testing.T) {
	a := NewCached(newOpenAIWithClient(&fakeSpeechClient{}, OpenAIConfig{Voice: "alloy"}), nil)
	b := NewCached(newOpenAIWithClient(&fakeSpeechClient{}, OpenAIConfig{Voice: "nova"}), nil)
	assert.NotEqual(t, a.Key("logic"), b.Key("logic"))
	assert.Equal(t, a.Key("logic"), a.Key("logic"))
	assert.Len(t, a.Key("logic"), 64)
}

func TestMemoryStoreEvictsOldest(t *testing.T) {
	m := NewMemoryStore(2)
	ctx := context.Background()
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, m.Put(ctx, k, &Audio{Data: []byte(k)}))
	}
	assert.Equal(t, 2, m.Len())
	_, ok, _ := m.Get(ctx, "a")
	assert.False(t, ok)
	_, ok, _ = m.Get(ctx, "c")
	assert.True(t, ok)
}

func TestDiskStoreReadOnly(t *testing.T) {
	dir := t.TempDir()
	key := strings.Repeat("ab", 32)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "ab"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ab", key+".wav"), []byte("RIFF"), 0o644))

	d, err := NewDiskStore(dir, false)
	require.NoError(t, err)

	audio, ok, err := d.Get(context.Background(), key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, MIMEWAV, audio.MIMEType)

	other := strings.Repeat("cd", 32)
	require.NoError(t, d.Put(context.Background(), other, &Audio{Data: []byte("x"), MIMEType: MIMEMP3}))
	_, ok, err = d.Get(context.Background(), other)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDiskStoreRejectsUnknownType(t *testing.T) {
	d, err := NewDiskStore(t.TempDir(), true)
	require.NoError(t, err)
	err = d.Put(context.Background(), strings.Repeat("ef", 32), &Audio{Data: []byte("x"), MIMEType: "audio/ogg"})
	assert.Error(t, err)
}

func TestNewS3StoreValidates(t *testing.T) {
	_, err := NewS3Store(S3Config{Bucket: "b"})
	assert.Error(t, err)
	_, err = NewS3Store(S3Config{Endpoint: "localhost:9000"})
	assert.Error(t, err)

	s, err := NewS3Store(S3Config{Endpoint: "localhost:9000", Bucket: "b"})
	require.NoError(t, err)
	assert.Equal(t, "s3", s.Name())
	assert.Equal(t, "pronunciations/ab/"+strings.Repeat("ab", 32), s.object(strings.Repeat("ab", 32)))
}

func TestGuardedOpensAndFailsFast(t *testing.T) {
	next := &fakePronouncer{name: "openai", err: errBoom}
	b := breaker.New(breaker.Settings{Name: "speech", MaxFailures: 1}, nil)
	g := NewGuarded(next, b)

	_, err := g.Synthesize(context.Background(), "logic")
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, "open", b.State())

	_, err = g.Synthesize(context.Background(), "logic")
	var pe *PronunciationError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, breaker.ErrOpen)
	assert.Equal(t, "logic", pe.Word)
	assert.Equal(t, 1, next.Calls())
}

func TestNewSelectsProvider(t *testing.T) {
	ctx := context.Background()

	p, err := New(ctx, Config{Provider: "espeak"}, nil)
	require.NoError(t, err)
	assert.Equal(t, ProviderESpeak, p.Name())

	p, err = New(ctx, Config{Provider: "openai", OpenAIKey: "sk-test"}, nil)
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, p.Name())

	_, err = New(ctx, Config{Provider: "gemini"}, nil)
	assert.ErrorIs(t, err, ErrMissingCredential)

	_, err = New(ctx, Config{Provider: "polly"}, nil)
	assert.Error(t, err)
}

func TestWrappersReportPrimaryVoice(t *testing.T) {
	primary := newOpenAIWithClient(&fakeSpeechClient{}, OpenAIConfig{Voice: "nova"})
	guarded := NewGuarded(primary, breaker.New(breaker.Settings{Name: "speech"}, nil))
	fb := WithFallback(guarded, &fakePronouncer{name: "espeak"}, nil)

	assert.Equal(t, "nova", guarded.Voice())
	assert.Equal(t, "nova", fb.Voice())
	assert.Empty(t, WithFallback(&fakePronouncer{name: "a"}, &fakePronouncer{name: "b"}, nil).Voice())

	// Changing the primary voice changes the cache namespace.
	other := WithFallback(NewGuarded(newOpenAIWithClient(&fakeSpeechClient{}, OpenAIConfig{Voice: "alloy"}), nil), &fakePronouncer{name: "espeak"}, nil)
	assert.NotEqual(t, NewCached(fb, nil).Key("rhythm"), NewCached(other, nil).Key("rhythm"))
}

func TestCachedSkipsSubstituteAudio(t *testing.T) {
	primary := &fakePronouncer{name: "gemini", err: errBoom}
	espeak := &fakePronouncer{name: "espeak", audio: &Audio{Data: []byte("ESPEAK"), MIMEType: MIMEWAV}}
	mem := NewMemoryStore(8)
	c := NewCached(WithFallback(primary, espeak, nil), nil, mem)

	audio, err := c.Synthesize(context.Background(), "rhythm")
	require.NoError(t, err)
	assert.Equal(t, "ESPEAK", string(audio.Data))
	assert.True(t, audio.Substitute)
	assert.Equal(t, 0, mem.Len())

	primary.mu.Lock()
	primary.err = nil
	primary.audio = &Audio{Data: []byte("GEMINI"), MIMEType: MIMEWAV}
	primary.mu.Unlock()

	audio, err = c.Synthesize(context.Background(), "rhythm")
	require.NoError(t, err)
	assert.Equal(t, "GEMINI", string(audio.Data))
	assert.False(t, audio.Substitute)
	assert.Equal(t, 2, primary.Calls())
	assert.Equal(t, 1, mem.Len())

	_, err = c.Synthesize(context.Background(), "rhythm")
	require.NoError(t, err)
	assert.Equal(t, 2, primary.Calls())
	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(2), misses)
}

func TestDiskStoreConcurrentPuts(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDiskStore(dir, true)
	require.NoError(t, err)
	key := strings.Repeat("9f", 32)

	payloads := make([][]byte, 8)
	for i := range payloads {
		payloads[i] = []byte(strings.Repeat(string(rune('a'+i)), 4096*(i+1)))
	}
	var wg sync.WaitGroup
	for _, p := range payloads {
		wg.Add(1)
		go func(data []byte) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				assert.NoError(t, d.Put(context.Background(), key, &Audio{Data: data, MIMEType: MIMEMP3}))
			}
		}(p)
	}
	wg.Wait()

	audio, ok, err := d.Get(context.Background(), key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, payloads, audio.Data)

	leftovers, err := filepath.Glob(filepath.Join(dir, key[:2], "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}
