package runner

import (
	"time"

	"github.com/aqasim81/domain-migration-engine/internal/migration"
	"github.com/aqasim81/domain-migration-engine/internal/plan"
)

// State is a step of the per-domain state machine.
type State int

// States in the order a migrating domain passes through them.
const (
	Resolving State = iota
	PreValidating
	BackingUp
	Renaming
	Applying
	Removing
	PostValidating
	Committing
	RollingBack
	Current
	Failed
)

var stateNames = map[State]string{ //nolint:gochecknoglobals // lookup table
	Resolving:      "resolving",
	PreValidating:  "pre-validating",
	BackingUp:      "backing-up",
	Renaming:       "renaming",
	Applying:       "applying",
	Removing:       "removing",
	PostValidating: "post-validating",
	Committing:     "committing",
	RollingBack:    "rolling-back",
	Current:        "current",
	Failed:         "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}

	return "unknown"
}

func stateOf(p plan.Phase) State {
	switch p {
	case plan.Renaming:
		return Renaming
	case plan.Removing:
		return Removing
	default:
		return Applying
	}
}

// Event is emitted on every state transition. Duration is set on Current
// and Failed and covers the whole domain run.
type Event struct {
	Domain   string
	Version  migration.Version
	State    State
	Err      error
	Duration time.Duration
}
