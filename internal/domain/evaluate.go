package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hamed0406/uptimeworker/internal/repo"
)

// Evaluate decides the new state of prev given one probe outcome, and
// whether the owner should hear about it. A check that has never been
// evaluated before never alerts.
func Evaluate(prev Check, out Outcome) (State, bool) {
	state := StateDown
	if out.Failure == FailureNone && out.ResponseCode != nil &&
		slices.Contains(prev.SuccessCodes, *out.ResponseCode) {
		state = StateUp
	}
	alert := prev.LastChecked != nil && state != prev.State
	return state, alert
}

// AlertMessage is the text sent to the owner after a transition.
func AlertMessage(c Check) string {
	return fmt.Sprintf("Alert: Your check for %s %s://%s is currently %s",
		strings.ToUpper(c.Method), c.Protocol, c.URL, c.State)
}

// ApplyResult copies rec with the evaluated state and check time set.
// Fields this package does not know about are preserved.
func ApplyResult(rec repo.Record, state State, at time.Time) repo.Record {
	out := rec.Clone()
	out[FieldState] = string(state)
	out[FieldLastChecked] = at.UnixMilli()
	return out
}
