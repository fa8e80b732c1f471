package models

import (
	"sort"
	"sync"
	"time"
)

// Outcome is the terminal state of one reconciled resource or operation.
type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeNoOp    Outcome = "no-op"
	OutcomeBlocked Outcome = "blocked"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// OperationResult records how a single planned operation terminated.
type OperationResult struct {
	Operation Operation
	Outcome   Outcome
	Attempts  int
	Err       string
}

// RunReport is the sole externally visible result of a reconciliation pass.
// It is safe for concurrent use by executor workers.
type RunReport struct {
	mu sync.Mutex

	Started  time.Time
	Finished time.Time

	Results  []OperationResult
	NoOps    []Change
	Blocked  []Change
	Degraded []string
}

func NewRunReport() *RunReport {
	return &RunReport{Started: time.Now()}
}

// Record appends one operation result.
func (r *RunReport) Record(res OperationResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Results = append(r.Results, res)
}

// AddNoOp records a change whose resource already matched the spec.
func (r *RunReport) AddNoOp(c Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.NoOps = append(r.NoOps, c)
}

// AddBlocked records a change that was refused before planning.
func (r *RunReport) AddBlocked(c Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Blocked = append(r.Blocked, c)
}

// MarkDegraded records an account excluded from this pass.
func (r *RunReport) MarkDegraded(accountID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Degraded = append(r.Degraded, accountID)
	sort.Strings(r.Degraded)
}

// Counts tallies results by outcome, including converged and blocked
// changes.
func (r *RunReport) Counts() map[Outcome]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[Outcome]int)
	for _, res := range r.Results {
		counts[res.Outcome]++
	}
	counts[OutcomeNoOp] += len(r.NoOps)
	counts[OutcomeBlocked] += len(r.Blocked)
	return counts
}

// Failed reports whether any operation exhausted its retries.
func (r *RunReport) Failed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range r.Results {
		if res.Outcome == OutcomeFailed {
			return true
		}
	}
	return false
}
