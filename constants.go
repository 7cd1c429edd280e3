package main

// Session configuration constants
const (
	SessionCookieName = "session_id"
)

// Route constants
const (
	RouteHome      = "/"
	RouteStart     = "/start"
	RoutePronounce = "/pronounce"
	RouteAttempt   = "/attempt"
	RouteNext      = "/next"
	RouteRestart   = "/restart"
	RouteState     = "/state"
	RouteHealthz   = "/healthz"
)

// Template names
const (
	templatePage     = "index.html"
	templatePanel    = "practice-panel"
	templateJudgment = "judgment"
)

// User-facing messages
const (
	MsgNoWords           = "Please enter at least one word to practice."
	MsgUnknownPreset     = "That word list does not exist."
	MsgNoActiveList      = "Start a word list first."
	MsgFinished          = "You finished the list!"
	MsgPronounceFailed   = "Sorry, the word could not be pronounced right now. Please try again."
	MsgEvaluateFailed    = "I'm sorry, I had trouble processing that audio. Please try spelling the word again clearly."
	MsgNoRecording       = "No recording was received. Please record your spelling and try again."
	MsgRecordingTooLarge = "That recording is too long. Please keep it under a minute."
	MsgRateLimited       = "Too many requests. Please slow down."

	LabelNext   = "Next Word"
	LabelFinish = "Finish Session"
)

// Upload limits
const (
	maxClipBytes = 10 << 20
)

type contextKey string

// Context key constants
const (
	requestIDKey contextKey = "request_id"
)
