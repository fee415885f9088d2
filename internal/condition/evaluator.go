package condition

import (
	"fmt"

	"github.com/gzhole/logshield/internal/entry"
)

// Mode selects how clause results combine.
type Mode string

const (
	// ModeAny matches when at least one clause matches. This is the default.
	ModeAny Mode = "any"
	// ModeAll matches only when every clause matches.
	ModeAll Mode = "all"
)

// ParseMode accepts "any", "all" or "" (ModeAny).
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeAny:
		return ModeAny, nil
	case ModeAll:
		return ModeAll, nil
	}
	return "", fmt.Errorf("unknown match mode %q (want %q or %q)", s, ModeAny, ModeAll)
}

// Outcome is the evaluator's verdict plus the paths that matched, for
// explainability.
type Outcome struct {
	Matches      bool
	MatchedPaths []string
}

// Evaluator applies condition sets to entries. It holds no per-call state.
type Evaluator struct {
	mode Mode
}

// NewEvaluator returns an evaluator with the given default mode.
func NewEvaluator(mode Mode) *Evaluator {
	if mode == "" {
		mode = ModeAny
	}
	return &Evaluator{mode: mode}
}

// Mode returns the evaluator's default mode.
func (ev *Evaluator) Mode() Mode { return ev.mode }

// Evaluate applies set to e using the evaluator's default mode.
func (ev *Evaluator) Evaluate(e entry.Entry, set Set) (Outcome, error) {
	return ev.EvaluateMode(e, set, ev.mode)
}

// EvaluateMode applies set to e with an explicit mode ("" uses the default).
// Every clause is evaluated so the outcome lists all matching paths. An empty
// set never matches. A spec that cannot be evaluated aborts with an error.
func (ev *Evaluator) EvaluateMode(e entry.Entry, set Set, mode Mode) (Outcome, error) {
	if mode == "" {
		mode = ev.mode
	}
	out := Outcome{MatchedPaths: []string{}}
	if set.Len() == 0 {
		return out, nil
	}

	for _, c := range set.clauses {
		v, present := e.Lookup(c.Path)
		ok, err := c.Spec.Match(v, present)
		if err != nil {
			return Outcome{}, fmt.Errorf("condition %q: %w", c.Path, err)
		}
		if ok {
			out.MatchedPaths = append(out.MatchedPaths, c.Path)
		}
	}

	switch mode {
	case ModeAll:
		out.Matches = len(out.MatchedPaths) == set.Len()
	default:
		out.Matches = len(out.MatchedPaths) > 0
	}
	return out, nil
}
