package patch

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fiveLines() []string {
	return []string{"A", "B", "C", "D", "E"}
}

func TestApply_EndToEnd(t *testing.T) {
	got, report := Apply(fiveLines(), []Directive{
		Insert(2, "X"),
		Insert(4, "Y"),
		Replace(1, "A2"),
	}, Options{})

	want := []string{"A2", "B", "X", "C", "D", "Y", "E"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Apply() mismatch (-want +got):\n%s", diff)
	}
	require.True(t, report.OK())
	assert.Equal(t, 3, report.Applied())
	assert.Equal(t, 2, report.Inserted())
	for i, o := range report.Outcomes {
		assert.Equal(t, i, o.Index)
		assert.Equal(t, Applied, o.Status)
		assert.NoError(t, o.Reason)
	}
}

func TestApply_DoesNotModifyInput(t *testing.T) {
	original := fiveLines()
	_, _ = Apply(original, []Directive{Replace(3, "Z"), Insert(0, "top")}, Options{})
	if diff := cmp.Diff(fiveLines(), original); diff != "" {
		t.Fatalf("input was modified (-want +got):\n%s", diff)
	}
}

func TestApply_Boundaries(t *testing.T) {
	got, report := Apply(fiveLines(), []Directive{Insert(0, "first"), Insert(5, "last")}, Options{})
	require.True(t, report.OK())
	assert.Equal(t, []string{"first", "A", "B", "C", "D", "E", "last"}, got)

	got, report = Apply(nil, []Directive{Insert(0, "only")}, Options{})
	require.True(t, report.OK())
	assert.Equal(t, []string{"only"}, got)
}

func TestApply_OutOfRange(t *testing.T) {
	tests := []struct {
		name string
		d    Directive
	}{
		{"replace zero", Replace(0, "x")},
		{"replace past end", Replace(6, "x")},
		{"insert negative", Insert(-1, "x")},
		{"insert past end", Insert(6, "x")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, report := Apply(fiveLines(), []Directive{tt.d, Replace(2, "b")}, Options{})
			assert.Equal(t, []string{"A", "b", "C", "D", "E"}, got)
			require.Len(t, report.Failed(), 1)
			assert.ErrorIs(t, report.Outcomes[0].Reason, ErrOutOfRange)
			assert.Equal(t, Applied, report.Outcomes[1].Status)
		})
	}
}

func TestApply_GuardedReplace(t *testing.T) {
	original := []string{"1", "2", "3", "4", "foo", "6"}

	got, report := Apply(original, []Directive{Replace(5, "bar").Guarded("foo")}, Options{})
	require.True(t, report.OK())
	assert.Equal(t, "bar", got[4])

	got, report = Apply(original, []Directive{Replace(5, "bar").Guarded("baz")}, Options{})
	require.False(t, report.OK())
	assert.ErrorIs(t, report.Outcomes[0].Reason, ErrContentMismatch)
	assert.Equal(t, "foo", got[4])
}

func TestApply_GuardIgnoresLineTerminator(t *testing.T) {
	original := []string{"<div>\r\n", "  // Payment Confirmed State\r\n", "</div>\r\n"}
	got, report := Apply(original, []Directive{
		Replace(2, "  <>\r\n").Guarded("  // Payment Confirmed State"),
		Insert(1, "  <span/>\r\n").Guarded("<div>\n"),
	}, Options{})
	require.NoError(t, report.Err())
	assert.Equal(t, []string{"<div>\r\n", "  <span/>\r\n", "  <>\r\n", "</div>\r\n"}, got)
}

func TestApply_GuardOnPrependAlwaysMismatches(t *testing.T) {
	_, report := Apply(fiveLines(), []Directive{Insert(0, "x").Guarded("")}, Options{})
	assert.ErrorIs(t, report.Outcomes[0].Reason, ErrContentMismatch)
}

func TestApply_ConflictingReplaces(t *testing.T) {
	directives := []Directive{Replace(3, "x"), Insert(1, "ins"), Replace(3, "y")}

	got, report := Apply(fiveLines(), directives, Options{FailFast: true})
	assert.Equal(t, fiveLines(), got)
	assert.ErrorIs(t, report.Outcomes[0].Reason, ErrConflictingDirectives)
	assert.ErrorIs(t, report.Outcomes[2].Reason, ErrConflictingDirectives)
	assert.Equal(t, Skipped, report.Outcomes[1].Status)
	assert.ErrorIs(t, report.Outcomes[1].Reason, ErrBatchAborted)

	got, report = Apply(fiveLines(), directives, Options{})
	assert.Equal(t, []string{"A", "ins", "B", "C", "D", "E"}, got)
	assert.Len(t, report.Failed(), 2)
	assert.Equal(t, Applied, report.Outcomes[1].Status)
}

func TestApply_FailFastReturnsOriginal(t *testing.T) {
	got, report := Apply(fiveLines(), []Directive{Replace(1, "x"), Replace(99, "y"), Insert(2, "z")}, Options{FailFast: true})
	assert.Equal(t, fiveLines(), got)
	assert.Equal(t, 0, report.Applied())
	assert.Equal(t, 2, report.Skipped())
	assert.ErrorIs(t, report.Outcomes[1].Reason, ErrOutOfRange)
	assert.ErrorIs(t, report.Err(), ErrOutOfRange)
}

func TestApply_SameAnchorTieBreak(t *testing.T) {
	got, report := Apply([]string{"a", "b"}, []Directive{Insert(1, "p"), Insert(1, "q"), Insert(1, "r")}, Options{})
	require.True(t, report.OK())
	// The last-specified insert at an anchor ends up first.
	assert.Equal(t, []string{"a", "r", "q", "p", "b"}, got)
}

func TestApply_ReplaceAndInsertSameAnchor(t *testing.T) {
	want := []string{"A", "B2", "after", "C", "D", "E"}
	for _, ds := range [][]Directive{
		{Replace(2, "B2"), Insert(2, "after")},
		{Insert(2, "after"), Replace(2, "B2")},
	} {
		got, report := Apply(fiveLines(), ds, Options{})
		require.True(t, report.OK())
		assert.Equal(t, want, got)
	}
}

func TestApply_OrderInvariance(t *testing.T) {
	set := []Directive{Insert(0, "h"), Replace(2, "b"), Insert(3, "x"), Replace(5, "e"), Insert(5, "t")}
	want, _ := Apply(fiveLines(), set, Options{})

	perms := [][]int{{4, 3, 2, 1, 0}, {2, 0, 4, 1, 3}, {1, 4, 0, 3, 2}}
	for _, p := range perms {
		shuffled := make([]Directive, len(set))
		for i, j := range p {
			shuffled[i] = set[j]
		}
		got, _ := Apply(fiveLines(), shuffled, Options{})
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("order %v changed the result (-want +got):\n%s", p, diff)
		}
	}
}

func TestApply_IdempotentFromFreshInput(t *testing.T) {
	set := []Directive{Insert(1, "x"), Replace(4, "d")}
	first, _ := Apply(fiveLines(), set, Options{})
	second, _ := Apply(fiveLines(), set, Options{})
	assert.Equal(t, first, second)
}

func TestApply_LengthLaw(t *testing.T) {
	set := []Directive{Insert(0, "a"), Insert(9, "bad"), Replace(2, "B"), Replace(3, "c"), Insert(5, "z"), Insert(2, "y").Guarded("nope")}
	got, report := Apply(fiveLines(), set, Options{})
	assert.Equal(t, len(fiveLines())+report.Inserted(), len(got))
	assert.Equal(t, 2, report.Inserted())
}

func TestApply_UnchangedReplaceIsSkipped(t *testing.T) {
	_, report := Apply(fiveLines(), []Directive{Replace(2, "B")}, Options{})
	assert.True(t, report.OK())
	assert.Equal(t, Skipped, report.Outcomes[0].Status)
	assert.True(t, errors.Is(report.Outcomes[0].Reason, ErrUnchanged))
}

func TestApply_UnknownKind(t *testing.T) {
	_, report := Apply(fiveLines(), []Directive{{Line: 1, Payload: "x"}}, Options{})
	assert.ErrorIs(t, report.Outcomes[0].Reason, ErrUnknownKind)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("Insert_After")
	require.NoError(t, err)
	assert.Equal(t, InsertAfter, k)

	k, err = ParseKind("replace")
	require.NoError(t, err)
	assert.Equal(t, ReplaceAt, k)

	_, err = ParseKind("delete")
	assert.ErrorIs(t, err, ErrUnknownKind)
}
