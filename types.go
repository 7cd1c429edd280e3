package main

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"spellbee/internal/breaker"
	"spellbee/internal/judge"
	"spellbee/internal/practice"
	"spellbee/internal/speech"
	"spellbee/internal/wordbank"
)

// App holds process-wide dependencies and the per-user session registry.
type App struct {
	Config *Config
	Log    *zap.SugaredLogger

	Pronouncer speech.Pronouncer
	Evaluator  judge.Evaluator
	Presets    *wordbank.Bank
	Breakers   []*breaker.Breaker

	Sessions     map[string]*sessionEntry
	SessionMutex sync.RWMutex

	LimiterMap   map[string]*rate.Limiter
	LimiterMutex sync.Mutex

	StartTime time.Time
}

// sessionEntry is one user's practice session. mu guards every field and is
// never held across a pronouncer or evaluator call.
type sessionEntry struct {
	mu         sync.Mutex
	practice   *practice.Session
	lastAccess time.Time
}

// practiceView is what the templates need to draw the practice panel. It
// never carries the current word.
type practiceView struct {
	Active    bool
	Position  int
	Total     int
	Complete  bool
	NextLabel string
	Notice    string
}

// judgmentView renders one evaluation result.
type judgmentView struct {
	Text    string
	Heard   string
	Known   bool // Correct was reported
	Correct bool
	Failed  bool
}

// pageData feeds both the full page and the fragments.
type pageData struct {
	Title    string
	Subtitle string
	Footer   string

	View          practiceView
	Presets       []wordbank.List
	Words         string
	Error         string
	AutoPronounce bool
	Judgment      *judgmentView
}

// stateResponse is the JSON body of GET /state.
type stateResponse struct {
	State    string `json:"state"`
	Position int    `json:"position"`
	Total    int    `json:"total"`
	Complete bool   `json:"complete"`
}
