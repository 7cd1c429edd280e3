package main

import (
	"context"
	"time"
)

// sweepIdleSessions drops sessions idle for longer than the session timeout
// and returns how many were removed. Nothing is persisted; an expired user
// simply starts over with an empty session.
func (app *App) sweepIdleSessions(now time.Time) int {
	cutoff := now.Add(-app.Config.SessionTimeout)

	app.SessionMutex.Lock()
	defer app.SessionMutex.Unlock()

	removed := 0
	for id, entry := range app.Sessions {
		if entry.idleSince(cutoff) {
			delete(app.Sessions, id)
			removed++
		}
	}
	return removed
}

// runSweeper expires idle sessions every interval until ctx is done.
func (app *App) runSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		logWarn("Session sweeper disabled (interval %v)", interval)
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if removed := app.sweepIdleSessions(now); removed > 0 {
				logInfo("Session cleanup completed: removed %d idle sessions, %d remaining", removed, app.sessionCount())
			}
		}
	}
}
