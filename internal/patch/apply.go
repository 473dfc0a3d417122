// Package patch applies batches of line-anchored edits to a line sequence.
//
// Every directive is anchored to a line number of the original, unpatched
// sequence. Apply validates the whole batch first, then applies the
// surviving directives in descending anchor order: when the directive with
// the highest remaining anchor is applied, nothing at or above its anchor
// has moved yet, so original line numbers stay valid without any offset
// bookkeeping.
//
// Directives that share an anchor are visited in input order. Each insert
// at that anchor lands directly after the anchor line, in front of the ones
// applied before it, so the last-specified insert ends up physically first.
package patch

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Options tunes how Apply treats failures.
type Options struct {
	// FailFast rejects the whole batch when any directive fails. The
	// original sequence is returned unchanged and every directive that did
	// not fail itself is reported as skipped with ErrBatchAborted.
	FailFast bool
}

// Apply returns a patched copy of original together with a report holding
// one outcome per directive. The original slice is never modified.
//
// By default failures are isolated per directive: out-of-range anchors,
// guard mismatches and conflicting replaces are reported and the remaining
// directives are still applied.
func Apply(original []string, directives []Directive, opts Options) ([]string, Report) {
	report := Report{Outcomes: make([]Outcome, len(directives))}
	for i, d := range directives {
		report.Outcomes[i] = Outcome{Index: i, Directive: d}
		if err := check(original, d); err != nil {
			report.Outcomes[i].Status = Failed
			report.Outcomes[i].Reason = err
		}
	}
	markConflicts(report.Outcomes)

	if opts.FailFast && !report.OK() {
		for i := range report.Outcomes {
			if report.Outcomes[i].Status == 0 {
				report.Outcomes[i].Status = Skipped
				report.Outcomes[i].Reason = ErrBatchAborted
			}
		}
		return slices.Clone(original), report
	}

	var pending []int
	inserts := 0
	for i, o := range report.Outcomes {
		if o.Status != 0 {
			continue
		}
		pending = append(pending, i)
		if o.Directive.Kind == InsertAfter {
			inserts++
		}
	}
	sort.SliceStable(pending, func(a, b int) bool {
		return directives[pending[a]].Line > directives[pending[b]].Line
	})

	lines := make([]string, len(original), len(original)+inserts)
	copy(lines, original)
	for _, i := range pending {
		d := directives[i]
		out := &report.Outcomes[i]
		switch d.Kind {
		case ReplaceAt:
			if lines[d.Line-1] == d.Payload {
				out.Status = Skipped
				out.Reason = ErrUnchanged
				continue
			}
			lines[d.Line-1] = d.Payload
		case InsertAfter:
			lines = slices.Insert(lines, d.Line, d.Payload)
		}
		out.Status = Applied
	}
	return lines, report
}

// check validates d against the original sequence.
func check(original []string, d Directive) error {
	n := len(original)
	switch d.Kind {
	case ReplaceAt:
		if d.Line < 1 || d.Line > n {
			return fmt.Errorf("%w: replace at line %d, valid range is 1-%d", ErrOutOfRange, d.Line, n)
		}
	case InsertAfter:
		if d.Line < 0 || d.Line > n {
			return fmt.Errorf("%w: insert after line %d, valid range is 0-%d", ErrOutOfRange, d.Line, n)
		}
	default:
		return fmt.Errorf("%w: %d", ErrUnknownKind, int(d.Kind))
	}
	if d.Expect == nil {
		return nil
	}
	if d.Line == 0 {
		return fmt.Errorf("%w: line 0 has no content to compare", ErrContentMismatch)
	}
	if got := original[d.Line-1]; trimEOL(got) != trimEOL(*d.Expect) {
		return fmt.Errorf("%w: line %d is %q, expected %q", ErrContentMismatch, d.Line, trimEOL(got), trimEOL(*d.Expect))
	}
	return nil
}

// markConflicts fails every ReplaceAt whose anchor is shared with another
// ReplaceAt. Outcomes that already failed keep their first reason.
func markConflicts(outcomes []Outcome) {
	byLine := make(map[int][]int)
	for i, o := range outcomes {
		if o.Directive.Kind == ReplaceAt {
			byLine[o.Directive.Line] = append(byLine[o.Directive.Line], i)
		}
	}
	for line, idx := range byLine {
		if len(idx) < 2 {
			continue
		}
		for _, i := range idx {
			if outcomes[i].Status == Failed {
				continue
			}
			outcomes[i].Status = Failed
			outcomes[i].Reason = fmt.Errorf("%w: %d replaces target line %d", ErrConflictingDirectives, len(idx), line)
		}
	}
}

func trimEOL(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}
