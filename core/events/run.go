package events

import (
	"time"

	"github.com/kilianp07/chpdispatch/core/dispatch"
)

// RunEvent is published after each optimization run. Exactly one of Plan and
// Err is set.
type RunEvent struct {
	Site  string
	Hours int
	Plan  *dispatch.Plan
	Err   error
	Time  time.Time
}

// Failed reports whether the run produced no plan.
func (e RunEvent) Failed() bool { return e.Plan == nil }
