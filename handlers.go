package main

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"spellbee/internal/breaker"
	"spellbee/internal/judge"
	"spellbee/internal/practice"
	"spellbee/internal/speech"
)

// newPracticeView converts a core snapshot into template data.
func newPracticeView(s practice.Snapshot) practiceView {
	v := practiceView{
		Active:    s.State == practice.StateActive,
		Position:  s.Position,
		Total:     s.Total,
		Complete:  s.Complete,
		NextLabel: LabelNext,
	}
	if s.IsLast() {
		v.NextLabel = LabelFinish
	}
	if s.Complete {
		v.Notice = MsgFinished
	}
	return v
}

// newPage fills the branding and preset fields shared by every render.
func (app *App) newPage(s practice.Snapshot) pageData {
	return pageData{
		Title:    app.Config.UI.Title,
		Subtitle: app.Config.UI.Subtitle,
		Footer:   app.Config.UI.Footer,
		View:     newPracticeView(s),
		Presets:  app.Presets.Lists(),
	}
}

// render writes the panel fragment for htmx requests and the full page
// otherwise.
func (app *App) render(c *gin.Context, status int, data pageData) {
	if isHTMX(c) {
		c.HTML(status, templatePanel, data)
		return
	}
	c.HTML(status, templatePage, data)
}

// respond finishes a state-changing POST: htmx gets the fresh panel, plain
// form posts are redirected home.
func (app *App) respond(c *gin.Context, data pageData) {
	if isHTMX(c) {
		c.HTML(http.StatusOK, templatePanel, data)
		return
	}
	c.Redirect(http.StatusSeeOther, RouteHome)
}

// homeHandler renders the practice page for the current session.
func (app *App) homeHandler(c *gin.Context) {
	_, entry := app.currentSession(c)
	app.render(c, http.StatusOK, app.newPage(entry.snapshot()))
}

// startHandler loads a typed or preset word list into the session.
func (app *App) startHandler(c *gin.Context) {
	sessionID, entry := app.currentSession(c)

	raw := c.PostForm("words")
	words := practice.Parse(raw)
	if name := strings.TrimSpace(c.PostForm("preset")); name != "" && words.Len() == 0 {
		preset, ok := app.Presets.Get(name)
		if !ok {
			data := app.newPage(entry.snapshot())
			data.Error = MsgUnknownPreset
			app.render(c, http.StatusBadRequest, data)
			return
		}
		words = preset.Words
	}

	snap, err := entry.start(words)
	if errors.Is(err, practice.ErrEmptyWordList) {
		data := app.newPage(snap)
		data.Error = MsgNoWords
		data.Words = raw
		app.render(c, http.StatusOK, data)
		return
	}
	if err != nil {
		logWarn("Session %s: start failed: %v", sessionID, err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	logInfo("Session %s started a list of %d word%s", sessionID, snap.Total, plural(snap.Total))

	data := app.newPage(snap)
	data.AutoPronounce = true
	app.respond(c, data)
}

// pronounceHandler streams the pronunciation of the current word.
func (app *App) pronounceHandler(c *gin.Context) {
	sessionID, entry := app.currentSession(c)

	word, err := entry.currentWord()
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": MsgNoActiveList})
		return
	}

	audio, err := app.Pronouncer.Synthesize(c.Request.Context(), word)
	if err != nil {
		_ = c.Error(err)
		logWarn("Session %s: pronounce failed: %v", sessionID, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": MsgPronounceFailed})
		return
	}
	logDebug("Session %s: pronounced word (%s, %s)", sessionID, audio.MIMEType, humanize.Bytes(uint64(len(audio.Data))))

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, audio.MIMEType, audio.Data)
}

// attemptHandler judges an uploaded recording against the current word. It
// never changes the session state.
func (app *App) attemptHandler(c *gin.Context) {
	sessionID, entry := app.currentSession(c)

	renderJudgment := func(status int, j *judgmentView) {
		data := app.newPage(entry.snapshot())
		data.Judgment = j
		c.HTML(status, templateJudgment, data)
	}

	word, err := entry.currentWord()
	if err != nil {
		renderJudgment(http.StatusConflict, &judgmentView{Text: MsgNoActiveList, Failed: true})
		return
	}

	if c.Request.ContentLength > maxClipBytes {
		renderJudgment(http.StatusRequestEntityTooLarge, &judgmentView{Text: MsgRecordingTooLarge, Failed: true})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxClipBytes)

	clip, status, err := readClip(c)
	if err != nil {
		logWarn("Session %s: bad recording upload: %v", sessionID, err)
		msg := MsgNoRecording
		if status == http.StatusRequestEntityTooLarge {
			msg = MsgRecordingTooLarge
		}
		renderJudgment(status, &judgmentView{Text: msg, Failed: true})
		return
	}

	started := time.Now()
	j, err := app.Evaluator.Evaluate(c.Request.Context(), word, clip)
	if err != nil {
		_ = c.Error(err)
		logWarn("Session %s: evaluation failed after %v: %v", sessionID, time.Since(started), err)
		renderJudgment(http.StatusBadGateway, &judgmentView{Text: MsgEvaluateFailed, Failed: true})
		return
	}
	logInfo("Session %s: attempt judged in %v (%s)", sessionID, time.Since(started).Round(time.Millisecond), humanize.Bytes(uint64(len(clip.Data))))

	view := &judgmentView{Text: j.Text, Heard: j.Heard}
	if j.Correct != nil {
		view.Known = true
		view.Correct = *j.Correct
	}
	renderJudgment(http.StatusOK, view)
}

// readClip extracts the "audio" multipart file.
func readClip(c *gin.Context) (judge.Clip, int, error) {
	fh, err := c.FormFile("audio")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return judge.Clip{}, http.StatusRequestEntityTooLarge, err
		}
		return judge.Clip{}, http.StatusBadRequest, err
	}
	f, err := fh.Open()
	if err != nil {
		return judge.Clip{}, http.StatusBadRequest, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return judge.Clip{}, http.StatusBadRequest, err
	}
	if len(data) == 0 {
		return judge.Clip{}, http.StatusBadRequest, judge.ErrEmptyClip
	}
	mimeType := fh.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = "audio/webm"
	}
	return judge.Clip{Data: data, MIMEType: mimeType}, http.StatusOK, nil
}

// nextHandler moves the session to the next word.
func (app *App) nextHandler(c *gin.Context) {
	sessionID, entry := app.currentSession(c)

	snap, done, err := entry.advance()
	if errors.Is(err, practice.ErrInvalidState) {
		data := app.newPage(snap)
		data.Error = MsgNoActiveList
		if isHTMX(c) {
			c.HTML(http.StatusConflict, templatePanel, data)
			return
		}
		c.Redirect(http.StatusSeeOther, RouteHome)
		return
	}

	data := app.newPage(snap)
	if done {
		logInfo("Session %s finished a list of %d word%s", sessionID, snap.Total, plural(snap.Total))
	} else {
		data.AutoPronounce = true
	}
	app.respond(c, data)
}

// restartHandler clears the session back to the word-list form.
func (app *App) restartHandler(c *gin.Context) {
	_, entry := app.currentSession(c)
	app.respond(c, app.newPage(entry.restart()))
}

// stateHandler returns the session progress as JSON.
func (app *App) stateHandler(c *gin.Context) {
	_, entry := app.currentSession(c)
	s := entry.snapshot()
	c.JSON(http.StatusOK, stateResponse{
		State:    s.State.String(),
		Position: s.Position,
		Total:    s.Total,
		Complete: s.Complete,
	})
}

// healthzHandler returns a JSON health check with server stats.
func (app *App) healthzHandler(c *gin.Context) {
	uptime := time.Since(app.StartTime)
	breakers := lo.SliceToMap(app.Breakers, func(b *breaker.Breaker) (string, string) {
		return b.Name(), b.State()
	})
	body := gin.H{
		"status":   "ok",
		"env":      app.Config.envName(),
		"uptime":   formatUptime(uptime),
		"sessions": app.sessionCount(),
		"providers": gin.H{
			"speech": app.Pronouncer.Name(),
			"judge":  app.Evaluator.Name(),
		},
		"speech_available": availability(app.Pronouncer),
		"breakers":         breakers,
		"presets":          app.Presets.Len(),
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
	}
	if cached, ok := app.Pronouncer.(*speech.Cached); ok {
		hits, misses := cached.Stats()
		body["speech_cache"] = gin.H{"hits": hits, "misses": misses}
	}
	c.JSON(http.StatusOK, body)
}

func availability(p speech.Pronouncer) string {
	if err := p.IsAvailable(); err != nil {
		return err.Error()
	}
	return "ok"
}
