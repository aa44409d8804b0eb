// Package validate folds the results of validation callbacks into one
// outcome and maps it onto the DHT status of the validated entry.
package validate

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/i5heu/ouroboros-cascade/pkg/holohash"
	"github.com/i5heu/ouroboros-cascade/pkg/model"
)

// Outcome is the verdict of one callback or of a fold.
type Outcome uint8

const (
	Valid Outcome = iota
	Invalid
	UnresolvedDependencies
)

func (o Outcome) String() string {
	switch o {
	case Valid:
		return "Valid"
	case Invalid:
		return "Invalid"
	case UnresolvedDependencies:
		return "UnresolvedDependencies"
	default:
		return fmt.Sprintf("Outcome(%d)", uint8(o))
	}
}

// Result is a verdict with its detail: the reason of an Invalid verdict or
// the missing entries of an UnresolvedDependencies verdict.
type Result struct {
	Outcome      Outcome
	Reason       string
	Dependencies []holohash.EntryHash
}

func ValidResult() Result { return Result{Outcome: Valid} }

func InvalidResult(reason string) Result {
	return Result{Outcome: Invalid, Reason: reason}
}

func Unresolved(deps ...holohash.EntryHash) Result {
	return Result{Outcome: UnresolvedDependencies, Dependencies: deps}
}

// Fold combines callback results. Any Invalid wins over everything,
// UnresolvedDependencies wins over Valid, and an empty input is Valid.
// Among results of the same outcome the last one is kept.
func Fold(results []Result) Result {
	acc := ValidResult()
	for _, r := range results {
		switch r.Outcome {
		case Invalid:
			acc = r
		case UnresolvedDependencies:
			if acc.Outcome != Invalid {
				acc = r
			}
		}
	}
	return acc
}

// Status maps the verdict onto the status the entry is recorded with.
func (r Result) Status() model.EntryDhtStatus {
	switch r.Outcome {
	case Invalid:
		return model.StatusRejected
	case UnresolvedDependencies:
		return model.StatusPending
	default:
		return model.StatusLive
	}
}

// Callback validates one entry.
type Callback func(ctx context.Context, entry model.Entry) Result

// CallbackNames returns the callbacks consulted for entry: the generic
// "validate" and the one for its kind.
func CallbackNames(entry model.Entry) []string {
	kind := "entry"
	switch entry.Kind {
	case model.EntryAgent:
		kind = "agent"
	case model.EntryCapClaim:
		kind = "cap_claim"
	case model.EntryCapGrant:
		kind = "cap_grant"
	}
	return []string{"validate", "validate_" + kind}
}

// Registry holds named callbacks. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	callbacks map[string][]Callback
}

func NewRegistry() *Registry {
	return &Registry{callbacks: make(map[string][]Callback)}
}

// Register adds cb under name. Several callbacks may share a name.
func (r *Registry) Register(name string, cb Callback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks[name] = append(r.callbacks[name], cb)
}

// Names lists the registered callback names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.callbacks))
	for n := range r.callbacks {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Validate runs every callback that applies to entry and folds the
// results. An entry nobody validates is Valid.
func (r *Registry) Validate(ctx context.Context, entry model.Entry) Result {
	r.mu.RLock()
	var cbs []Callback
	for _, name := range CallbackNames(entry) {
		cbs = append(cbs, r.callbacks[name]...)
	}
	r.mu.RUnlock()

	results := make([]Result, 0, len(cbs))
	for _, cb := range cbs {
		results = append(results, cb(ctx, entry))
	}
	return Fold(results)
}
