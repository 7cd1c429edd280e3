package main

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"spellbee/internal/breaker"
	"spellbee/internal/judge"
	"spellbee/internal/speech"
	"spellbee/internal/wordbank"
)

const testPresets = `
[[list]]
name = "tricky"
title = "Commonly misspelled"
words = ["necessary", "rhythm", "accommodate", "embarrass"]
`

// fakePronouncer returns fixed audio and records the words it was asked for.
type fakePronouncer struct {
	mu    sync.Mutex
	words []string
	err   error
}

func (f *fakePronouncer) Synthesize(_ context.Context, word string) (*speech.Audio, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.words = append(f.words, word)
	if f.err != nil {
		return nil, f.err
	}
	return &speech.Audio{Data: []byte("ID3" + word), MIMEType: speech.MIMEMP3}, nil
}

func (f *fakePronouncer) Name() string       { return "fake-tts" }
func (f *fakePronouncer) IsAvailable() error { return nil }

func (f *fakePronouncer) lastWord() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.words) == 0 {
		return ""
	}
	return f.words[len(f.words)-1]
}

// fakeEvaluator returns a canned judgment and records what it was given.
type fakeEvaluator struct {
	mu       sync.Mutex
	targets  []string
	clips    []judge.Clip
	judgment judge.Judgment
	err      error
}

func (f *fakeEvaluator) Evaluate(_ context.Context, target string, clip judge.Clip) (*judge.Judgment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.targets = append(f.targets, target)
	f.clips = append(f.clips, clip)
	if f.err != nil {
		return nil, f.err
	}
	j := f.judgment
	return &j, nil
}

func (f *fakeEvaluator) Name() string { return "fake-judge" }

func testConfig() *Config {
	return &Config{
		Port:           "0",
		SessionTimeout: time.Hour,
		CookieMaxAge:   time.Hour,
		SweepInterval:  time.Minute,
		StaticCacheAge: time.Minute,
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
		LogLevel:       "info",
		Judge:          JudgeSettings{Provider: judge.ProviderGemini, Timeout: 5 * time.Second},
		UI:             UISettings{Title: "Spelling Bee Practice", Subtitle: "Spell it out loud."},
	}
}

// newTestApp builds an App around fakes, with one preset list.
func newTestApp(t *testing.T) (*App, *fakePronouncer, *fakeEvaluator) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	presets, err := wordbank.Parse([]byte(testPresets))
	if err != nil {
		t.Fatalf("wordbank.Parse: %v", err)
	}
	correct := true
	p := &fakePronouncer{}
	e := &fakeEvaluator{judgment: judge.Judgment{Text: "Well done, that is correct!", Heard: "R-H-Y-T-H-M", Correct: &correct}}
	app := &App{
		Config:     testConfig(),
		Log:        zap.NewNop().Sugar(),
		Pronouncer: p,
		Evaluator:  e,
		Presets:    presets,
		Breakers:   []*breaker.Breaker{breaker.New(breaker.Settings{Name: "speech"}, nil)},
		Sessions:   make(map[string]*sessionEntry),
		LimiterMap: make(map[string]*rate.Limiter),
		StartTime:  time.Now(),
	}
	return app, p, e
}

// testClient replays the session cookie across requests like a browser.
type testClient struct {
	router  http.Handler
	cookies []*http.Cookie
}

func newTestClient(app *App) *testClient {
	return &testClient{router: app.newRouter()}
}

func (tc *testClient) do(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range tc.cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	tc.router.ServeHTTP(w, req)
	if cs := w.Result().Cookies(); len(cs) > 0 {
		tc.cookies = cs
	}
	return w
}

func (tc *testClient) get(path string) *httptest.ResponseRecorder {
	return tc.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (tc *testClient) post(path string, form url.Values, htmx bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	return tc.do(req)
}

func (tc *testClient) start(words string) *httptest.ResponseRecorder {
	return tc.post(RouteStart, url.Values{"words": {words}}, true)
}

// attemptRequest builds a multipart upload with the given part content type.
func attemptRequest(t *testing.T, audio []byte, contentType string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="audio"; filename="attempt"`)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}
	if _, err := part.Write(audio); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, RouteAttempt, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("HX-Request", "true")
	return req
}
