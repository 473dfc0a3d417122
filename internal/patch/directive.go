package patch

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies what a Directive does to its anchor line.
type Kind int

const (
	// InsertAfter inserts the payload as a new line directly after the anchor.
	// Anchor 0 prepends, anchor len(original) appends.
	InsertAfter Kind = iota + 1
	// ReplaceAt overwrites the anchor line with the payload.
	ReplaceAt
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case InsertAfter:
		return "insert_after"
	case ReplaceAt:
		return "replace"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind maps a wire name to a Kind. "insert" is accepted as an alias of
// "insert_after".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "insert_after", "insert":
		return InsertAfter, nil
	case "replace", "replace_at":
		return ReplaceAt, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Directive is one requested mutation. Line is always expressed against the
// original sequence, never against a partially patched one.
type Directive struct {
	// Line is the 1-based anchor line in the original sequence.
	Line int
	// Kind selects insert or replace.
	Kind Kind
	// Payload is the text to insert or substitute, terminator included.
	Payload string
	// Expect, when set, must match the original content of the anchor line
	// or the directive fails with ErrContentMismatch.
	Expect *string
}

// Insert builds an InsertAfter directive.
func Insert(line int, payload string) Directive {
	return Directive{Line: line, Kind: InsertAfter, Payload: payload}
}

// Replace builds a ReplaceAt directive.
func Replace(line int, payload string) Directive {
	return Directive{Line: line, Kind: ReplaceAt, Payload: payload}
}

// Guarded returns a copy of d that only applies if the anchor line reads expected.
func (d Directive) Guarded(expected string) Directive {
	d.Expect = &expected
	return d
}

func (d Directive) String() string {
	return fmt.Sprintf("%s@%d", d.Kind, d.Line)
}

// Reasons attached to failed or skipped outcomes. Match them with errors.Is.
var (
	ErrOutOfRange            = errors.New("anchor line out of range")
	ErrContentMismatch       = errors.New("original content mismatch")
	ErrConflictingDirectives = errors.New("conflicting directives")
	ErrUnknownKind           = errors.New("unknown directive kind")

	ErrUnchanged    = errors.New("line already has the requested content")
	ErrBatchAborted = errors.New("batch aborted")
)
