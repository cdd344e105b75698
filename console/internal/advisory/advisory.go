// Package advisory owns the operator-facing advisory text and decides who may
// write it.
//
// The state is a tagged value: Source is either Heuristic (the threshold
// evaluator may overwrite the text) or External (an analysis result holds the
// text and the heuristic path is locked out). Only Clear returns to Heuristic.
package advisory

import "fmt"

// Placeholder is the advisory text shown when nothing is recommended.
const Placeholder = "—"

// Source tags who currently owns the advisory text.
type Source int

const (
	Heuristic Source = iota
	External
)

func (s Source) String() string {
	switch s {
	case Heuristic:
		return "heuristic"
	case External:
		return "external"
	default:
		return fmt.Sprintf("Source(%d)", int(s))
	}
}

// MarshalText encodes the source as its name.
func (s Source) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// State is a point-in-time copy of the advisory.
type State struct {
	Text   string `json:"text"`
	Source Source `json:"source"`
}

// Locked reports whether the heuristic path is locked out.
func (s State) Locked() bool { return s.Source == External }

// Arbitrator holds the advisory state. It is not safe for concurrent use; the
// engine serializes access.
type Arbitrator struct {
	state State
}

// New returns an unlocked Arbitrator showing the placeholder.
func New() *Arbitrator {
	return &Arbitrator{state: State{Text: Placeholder, Source: Heuristic}}
}

// State returns the current advisory.
func (a *Arbitrator) State() State { return a.state }

// Recommend is the heuristic write path. It sets text unless the advisory is
// held by an external result, and reports whether the write was applied.
func (a *Arbitrator) Recommend(text string) bool {
	switch a.state.Source {
	case Heuristic:
		a.state.Text = text
		return true
	case External:
		return false
	}
	return false
}

// Reset is the heuristic "no alert" path: restore the placeholder unless locked.
func (a *Arbitrator) Reset() bool {
	return a.Recommend(Placeholder)
}

// Analysis installs an external analysis result and locks the advisory,
// whatever the prior state.
func (a *Arbitrator) Analysis(text string) {
	a.state = State{Text: text, Source: External}
}

// Clear unlocks the advisory and restores the placeholder. It is the only
// transition out of External.
func (a *Arbitrator) Clear() {
	a.state = State{Text: Placeholder, Source: Heuristic}
}
