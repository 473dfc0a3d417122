// Package preview renders the before/after of a patch as a unified diff.
package preview

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// DefaultContext is the number of unchanged lines shown around each change.
const DefaultContext = 3

// Renderer produces unified diffs of line sequences.
type Renderer struct {
	dmp     *diffmatchpatch.DiffMatchPatch
	context int

	header, hunk, added, removed *color.Color
}

// NewRenderer returns a renderer with the given context size. With useColor
// set, output is coloured even when stdout is not a terminal.
func NewRenderer(context int, useColor bool) *Renderer {
	if context < 0 {
		context = DefaultContext
	}
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0

	r := &Renderer{
		dmp:     dmp,
		context: context,
		header:  color.New(color.Bold),
		hunk:    color.New(color.FgCyan),
		added:   color.New(color.FgGreen),
		removed: color.New(color.FgRed),
	}
	for _, c := range []*color.Color{r.header, r.hunk, r.added, r.removed} {
		if useColor {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return r
}

type op struct {
	kind byte // ' ', '-', '+'
	text string
	// oldBefore and newBefore count the lines of each side consumed before this op.
	oldBefore, newBefore int
}

// Stats counts changed lines.
type Stats struct {
	Added   int
	Removed int
}

// Unified diffs before against after, both split with terminators kept, and
// returns the rendered diff (empty when nothing changed).
func (r *Renderer) Unified(name string, before, after []string) (string, Stats) {
	ops := r.lineOps(strings.Join(before, ""), strings.Join(after, ""))

	var stats Stats
	var changed []int
	for i, o := range ops {
		switch o.kind {
		case '+':
			stats.Added++
			changed = append(changed, i)
		case '-':
			stats.Removed++
			changed = append(changed, i)
		}
	}
	if len(changed) == 0 {
		return "", stats
	}

	var b strings.Builder
	b.WriteString(r.header.Sprintf("--- a/%s", name) + "\n")
	b.WriteString(r.header.Sprintf("+++ b/%s", name) + "\n")

	for _, span := range r.hunks(changed, len(ops)) {
		r.writeHunk(&b, ops[span[0]:span[1]])
	}
	return b.String(), stats
}

// lineOps runs a line-mode diff and flattens it into one op per line.
func (r *Renderer) lineOps(oldText, newText string) []op {
	a, b, lineArray := r.dmp.DiffLinesToChars(oldText, newText)
	diffs := r.dmp.DiffMain(a, b, false)
	diffs = r.dmp.DiffCharsToLines(diffs, lineArray)

	var ops []op
	oldN, newN := 0, 0
	for _, d := range diffs {
		for _, line := range splitKeepEnds(d.Text) {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				ops = append(ops, op{kind: ' ', text: line, oldBefore: oldN, newBefore: newN})
				oldN++
				newN++
			case diffmatchpatch.DiffDelete:
				ops = append(ops, op{kind: '-', text: line, oldBefore: oldN, newBefore: newN})
				oldN++
			case diffmatchpatch.DiffInsert:
				ops = append(ops, op{kind: '+', text: line, oldBefore: oldN, newBefore: newN})
				newN++
			}
		}
	}
	return ops
}

// hunks groups changed op indices into [start, end) spans, merging changes
// whose context windows touch.
func (r *Renderer) hunks(changed []int, total int) [][2]int {
	var spans [][2]int
	for _, i := range changed {
		start := max(i-r.context, 0)
		end := min(i+r.context+1, total)
		if n := len(spans); n > 0 && start <= spans[n-1][1] {
			spans[n-1][1] = max(spans[n-1][1], end)
			continue
		}
		spans = append(spans, [2]int{start, end})
	}
	return spans
}

func (r *Renderer) writeHunk(b *strings.Builder, ops []op) {
	oldCount, newCount := 0, 0
	for _, o := range ops {
		if o.kind != '+' {
			oldCount++
		}
		if o.kind != '-' {
			newCount++
		}
	}
	oldStart, newStart := ops[0].oldBefore, ops[0].newBefore
	if oldCount > 0 {
		oldStart++
	}
	if newCount > 0 {
		newStart++
	}
	b.WriteString(r.hunk.Sprintf("@@ -%s +%s @@", rangeSpec(oldStart, oldCount), rangeSpec(newStart, newCount)) + "\n")

	for _, o := range ops {
		line := string(o.kind) + trimEOL(o.text)
		switch o.kind {
		case '+':
			line = r.added.Sprint(line)
		case '-':
			line = r.removed.Sprint(line)
		}
		b.WriteString(line + "\n")
		if !strings.HasSuffix(o.text, "\n") {
			b.WriteString("\\ No newline at end of file\n")
		}
	}
}

func rangeSpec(start, count int) string {
	if count == 1 {
		return fmt.Sprintf("%d", start)
	}
	return fmt.Sprintf("%d,%d", start, count)
}

func splitKeepEnds(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func trimEOL(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}
