package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"spellbee/internal/practice"
)

// getOrCreateSession retrieves the session ID from the cookie or creates a new one.
func (app *App) getOrCreateSession(c *gin.Context) string {
	sessionID, err := c.Cookie(SessionCookieName)
	if err != nil || uuid.Validate(sessionID) != nil {
		sessionID = uuid.NewString()
		c.SetSameSite(http.SameSiteStrictMode)
		c.SetCookie(SessionCookieName, sessionID, int(app.Config.CookieMaxAge.Seconds()), "/", "", app.Config.Production, true)
		logDebug("Created new session: %s", sessionID)
	}
	return sessionID
}

// sessionFor returns the practice session owned by sessionID, creating an
// empty one on first use.
func (app *App) sessionFor(sessionID string) *sessionEntry {
	app.SessionMutex.RLock()
	entry, ok := app.Sessions[sessionID]
	app.SessionMutex.RUnlock()
	if ok {
		return entry
	}

	app.SessionMutex.Lock()
	defer app.SessionMutex.Unlock()
	if entry, ok = app.Sessions[sessionID]; ok {
		return entry
	}
	entry = &sessionEntry{practice: practice.New(), lastAccess: time.Now()}
	app.Sessions[sessionID] = entry
	return entry
}

// currentSession resolves the caller's cookie to its session entry.
func (app *App) currentSession(c *gin.Context) (string, *sessionEntry) {
	id := app.getOrCreateSession(c)
	return id, app.sessionFor(id)
}

// sessionCount returns the number of live sessions.
func (app *App) sessionCount() int {
	app.SessionMutex.RLock()
	defer app.SessionMutex.RUnlock()
	return len(app.Sessions)
}

func (e *sessionEntry) touch() {
	e.lastAccess = time.Now()
}

func (e *sessionEntry) snapshot() practice.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.touch()
	return e.practice.Snapshot()
}

func (e *sessionEntry) start(words practice.WordList) (practice.Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.touch()
	if err := e.practice.Start(words); err != nil {
		return e.practice.Snapshot(), err
	}
	return e.practice.Snapshot(), nil
}

func (e *sessionEntry) currentWord() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.touch()
	return e.practice.CurrentWord()
}

func (e *sessionEntry) advance() (practice.Snapshot, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.touch()
	done, err := e.practice.Advance()
	return e.practice.Snapshot(), done, err
}

func (e *sessionEntry) restart() practice.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.touch()
	e.practice.Restart()
	return e.practice.Snapshot()
}

// idleSince reports whether the entry has not been used since cutoff.
func (e *sessionEntry) idleSince(cutoff time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastAccess.Before(cutoff)
}
