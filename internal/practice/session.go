package practice

// State is the coarse lifecycle state of a Session.
type State int

const (
	StateEmpty State = iota
	StateActive
)

// String returns a human-readable state.
func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// Session walks one user through a word list. The zero value is an empty
// session. A Session is owned by a single user and is not safe for
// concurrent use; callers serialize access.
//
// Invariant: when words is non-empty, 0 <= index < len(words). When words is
// empty, index is 0.
type Session struct {
	words    WordList
	index    int
	complete bool
}

// Snapshot is a read-only view used for rendering. It deliberately omits the
// current word, which is never shown to the speller.
type Snapshot struct {
	State    State
	Position int // 1-based; 0 when empty
	Total    int
	Complete bool
}

// IsLast reports whether the snapshot points at the final word.
func (s Snapshot) IsLast() bool {
	return s.State == StateActive && s.Position == s.Total
}

// New returns an empty session.
func New() *Session {
	return &Session{}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	if len(s.words) == 0 {
		return StateEmpty
	}
	return StateActive
}

// Start loads a word list and points at its first word. An empty list is
// rejected with ErrEmptyWordList and leaves the session unchanged. Starting
// an already active session replaces its list and rewinds to the first word.
func (s *Session) Start(words WordList) error {
	if len(words) == 0 {
		return ErrEmptyWordList
	}
	s.words = words.Clone()
	s.index = 0
	s.complete = false
	return nil
}

// CurrentWord returns the word the user is currently spelling.
func (s *Session) CurrentWord() (string, error) {
	if s.State() == StateEmpty {
		return "", &InvalidStateError{Op: "current word", State: StateEmpty}
	}
	return s.words[s.index], nil
}

// Advance moves to the next word. On the last word the index stays put, the
// session is marked complete and done is true.
func (s *Session) Advance() (done bool, err error) {
	if s.State() == StateEmpty {
		return false, &InvalidStateError{Op: "advance", State: StateEmpty}
	}
	if s.index >= len(s.words)-1 {
		s.complete = true
		return true, nil
	}
	s.index++
	return false, nil
}

// Restart clears the list and returns to the empty state. Idempotent.
func (s *Session) Restart() {
	s.words = nil
	s.index = 0
	s.complete = false
}

// Progress returns the 1-based position of the current word and the total.
func (s *Session) Progress() (position, total int, err error) {
	if s.State() == StateEmpty {
		return 0, 0, &InvalidStateError{Op: "progress", State: StateEmpty}
	}
	return s.index + 1, len(s.words), nil
}

// Complete reports whether the user advanced past the last word.
func (s *Session) Complete() bool { return s.complete }

// Words returns a copy of the loaded list.
func (s *Session) Words() WordList { return s.words.Clone() }

// Snapshot captures the state needed to render the session.
func (s *Session) Snapshot() Snapshot {
	if s.State() == StateEmpty {
		return Snapshot{State: StateEmpty}
	}
	return Snapshot{
		State:    StateActive,
		Position: s.index + 1,
		Total:    len(s.words),
		Complete: s.complete,
	}
}
