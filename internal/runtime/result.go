package runtime

import (
	"slices"

	"github.com/zpdzap/drydock/internal/state"
)

// Result is the outcome of one operation over a set of deployments. Every
// targeted id has an entry in StatusByID; ErrorsByID holds failing ids and
// any id whose output contained error lines.
type Result struct {
	StatusByID map[string]bool
	ErrorsByID map[string][]string
	States     map[string]state.DeploymentState
}

func newResult() *Result {
	return &Result{
		StatusByID: make(map[string]bool),
		ErrorsByID: make(map[string][]string),
		States:     make(map[string]state.DeploymentState),
	}
}

// Success returns a result reporting every id as successful.
func Success(ids ...string) *Result {
	r := newResult()
	for _, id := range ids {
		r.StatusByID[id] = true
	}
	return r
}

// Failure returns a result reporting every id in errs as failed.
func Failure(errs map[string][]string) *Result {
	r := newResult()
	for id, msgs := range errs {
		r.StatusByID[id] = false
		r.ErrorsByID[id] = slices.Clone(msgs)
	}
	return r
}

// WithStates attaches snapshots and returns r.
func (r *Result) WithStates(states ...state.DeploymentState) *Result {
	for _, s := range states {
		r.States[s.ID()] = s
	}
	return r
}

// AllSuccessful is false for an empty result.
func (r *Result) AllSuccessful() bool {
	if len(r.StatusByID) == 0 {
		return false
	}
	for _, ok := range r.StatusByID {
		if !ok {
			return false
		}
	}
	return true
}

// addError appends msg unless id already has it.
func (r *Result) addError(id, msg string) {
	if slices.Contains(r.ErrorsByID[id], msg) {
		return
	}
	r.ErrorsByID[id] = append(r.ErrorsByID[id], msg)
}

func (r *Result) fail(id, msg string) {
	r.StatusByID[id] = false
	r.addError(id, msg)
}
