// Package batch records the result of per-record batch jobs that keep going
// after an individual record fails.
package batch

import (
	"fmt"
	"sync"
)

// Failure describes one record that could not be processed.
type Failure struct {
	RecordID string
	Err      error
}

// Outcome counts processed records. Safe for concurrent Record calls.
type Outcome struct {
	mu        sync.Mutex
	Total     int
	Succeeded int
	Failures  []Failure
}

// Failed returns the number of failed records.
func (o *Outcome) Failed() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.Failures)
}

// Record adds the result for one record.
func (o *Outcome) Record(recordID string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Total++
	if err != nil {
		o.Failures = append(o.Failures, Failure{RecordID: recordID, Err: err})
		return
	}
	o.Succeeded++
}

// Summary is the "N succeeded, M failed" line used in job logs.
func (o *Outcome) Summary() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return fmt.Sprintf("%d succeeded, %d failed", o.Succeeded, len(o.Failures))
}

// Result is a copy of the counters returned to callers.
type Result struct {
	Total     int       `json:"total"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Failures  []Failure `json:"-"`
}

// Result copies the current counters.
func (o *Outcome) Result() Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Result{
		Total:     o.Total,
		Succeeded: o.Succeeded,
		Failed:    len(o.Failures),
		Failures:  append([]Failure(nil), o.Failures...),
	}
}

// Summary is the "N succeeded, M failed" line used in job logs.
func (r Result) Summary() string {
	return fmt.Sprintf("%d succeeded, %d failed", r.Succeeded, r.Failed)
}
