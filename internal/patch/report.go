package patch

import (
	"errors"
	"fmt"
)

// Status is the outcome of a single directive.
type Status int

const (
	Applied Status = iota + 1
	Skipped
	Failed
)

func (s Status) String() string {
	switch s {
	case Applied:
		return "applied"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome records what happened to one directive.
type Outcome struct {
	// Index is the position of the directive in the slice passed to Apply.
	Index     int
	Directive Directive
	Status    Status
	// Reason is nil for applied directives.
	Reason error
}

// Report lists one Outcome per directive, in input order.
type Report struct {
	Outcomes []Outcome
}

func (r Report) count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// Applied returns the number of directives that changed the sequence.
func (r Report) Applied() int { return r.count(Applied) }

// Skipped returns the number of directives that were not applied but did not fail.
func (r Report) Skipped() int { return r.count(Skipped) }

// Failed returns the outcomes of failed directives.
func (r Report) Failed() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if o.Status == Failed {
			failed = append(failed, o)
		}
	}
	return failed
}

// Inserted returns the number of applied InsertAfter directives, which is
// exactly how much longer the output is than the input.
func (r Report) Inserted() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == Applied && o.Directive.Kind == InsertAfter {
			n++
		}
	}
	return n
}

// OK reports whether no directive failed.
func (r Report) OK() bool { return len(r.Failed()) == 0 }

// Err joins the reasons of all failed directives, or returns nil.
func (r Report) Err() error {
	var errs []error
	for _, o := range r.Failed() {
		errs = append(errs, fmt.Errorf("directive #%d (%s): %w", o.Index+1, o.Directive, o.Reason))
	}
	return errors.Join(errs...)
}
