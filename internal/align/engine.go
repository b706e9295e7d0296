// Package align groups detections of the same chemical across peak tables.
//
// Every input file is loaded into a FileData that buckets its rows by
// chemical name. For each chemical the Engine repeatedly takes the earliest
// pending detection from every file, keeps those that sit within the tolerance
// of the earliest one and are not closer to the next pending time, and emits
// them as one AlignedRow. Detections it rejects are returned to their bucket
// and tried again in the next group. The matching is greedy and order
// dependent; it is not an optimal assignment.
package align

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// ErrNegativeTolerance is returned for tolerances below zero.
var ErrNegativeTolerance = errors.New("tolerance must be >= 0")

// Tolerance bounds how far above the lowest time of a group a detection may
// sit. Values below one are fractions of the lowest time, values of one or
// more are absolute differences.
type Tolerance struct {
	Diff     decimal.Decimal
	Absolute bool
}

// DefaultTolerance is 1% of the lowest time.
func DefaultTolerance() Tolerance {
	return Tolerance{Diff: decimal.RequireFromString("0.01")}
}

// NewTolerance classifies v as fractional or absolute.
func NewTolerance(v decimal.Decimal) (Tolerance, error) {
	if v.IsNegative() {
		return Tolerance{}, ErrNegativeTolerance
	}
	return Tolerance{Diff: v, Absolute: v.GreaterThanOrEqual(decimal.NewFromInt(1))}, nil
}

// ParseTolerance parses s as a tolerance value.
func ParseTolerance(s string) (Tolerance, error) {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return Tolerance{}, fmt.Errorf("invalid tolerance %q: %w", s, err)
	}
	return NewTolerance(v)
}

// Cutoff is the highest time that may join a group starting at lowest.
func (t Tolerance) Cutoff(lowest decimal.Decimal) decimal.Decimal {
	if t.Absolute {
		return lowest.Add(t.Diff)
	}
	return lowest.Mul(decimal.NewFromInt(1).Add(t.Diff))
}

func (t Tolerance) String() string {
	if t.Absolute {
		return "±" + t.Diff.String()
	}
	return t.Diff.Mul(decimal.NewFromInt(100)).String() + "%"
}

// AlignedRow is one output group. Picks has one entry per input file in
// argument order; nil means the file contributes blanks.
type AlignedRow struct {
	Chemical string
	// Time is the lowest primary time among the picks.
	Time  decimal.Decimal
	Picks []*Detection
}

// Complete reports whether every file contributed a detection.
func (r AlignedRow) Complete() bool {
	for _, p := range r.Picks {
		if p == nil {
			return false
		}
	}
	return true
}

// Count reports how many files contributed a detection.
func (r AlignedRow) Count() int {
	n := 0
	for _, p := range r.Picks {
		if p != nil {
			n++
		}
	}
	return n
}

// Result is the outcome of one alignment pass.
type Result struct {
	// Rows is sorted by Time, ascending; equal times keep chemical order.
	Rows []AlignedRow
	// Dropped counts incomplete rows discarded in restricted mode.
	Dropped int
	// Aligned counts detections placed in emitted rows.
	Aligned int
	// Chemicals is the size of the chemical universe.
	Chemicals int
}

// Engine aligns a Run.
type Engine struct {
	Tolerance Tolerance
	// Restricted discards rows that miss any file.
	Restricted bool
}

// Align consumes every bucket in run and returns the aligned rows. The run's
// buckets are empty afterwards.
func (e Engine) Align(run *Run) *Result {
	res := &Result{}
	if run == nil {
		return res
	}
	chemicals := run.Universe.Sorted()
	res.Chemicals = len(chemicals)
	for _, chem := range chemicals {
		e.alignChemical(run, chem, func(row AlignedRow) {
			if e.Restricted && !row.Complete() {
				res.Dropped++
				return
			}
			res.Aligned += row.Count()
			res.Rows = append(res.Rows, row)
		})
	}
	sort.SliceStable(res.Rows, func(i, j int) bool {
		return res.Rows[i].Time.LessThan(res.Rows[j].Time)
	})
	return res
}

// alignChemical runs grouping steps for one chemical until all of its
// buckets are empty. Each step consumes at least the lowest candidate.
func (e Engine) alignChemical(run *Run, chem string, emit func(AlignedRow)) {
	buckets := make([]*Bucket, len(run.Files))
	for i, f := range run.Files {
		buckets[i] = f.Bucket(chem)
	}
	for {
		picks := make([]*Detection, len(buckets))
		var lowest decimal.NullDecimal
		first := -1
		for i, b := range buckets {
			d, ok := b.Pop()
			if !ok {
				continue
			}
			picks[i] = d
			if !lowest.Valid || d.Time.LessThan(lowest.Decimal) {
				lowest = decimal.NullDecimal{Decimal: d.Time, Valid: true}
				first = i
			}
		}
		if !lowest.Valid {
			return
		}

		var next decimal.NullDecimal
		for _, b := range buckets {
			if d, ok := b.Peek(); ok {
				if !next.Valid || d.Time.LessThan(next.Decimal) {
					next = decimal.NullDecimal{Decimal: d.Time, Valid: true}
				}
			}
		}

		cutoff := e.Tolerance.Cutoff(lowest.Decimal)
		for i, d := range picks {
			// the group's anchor always stays, even for negative times where
			// a fractional cutoff falls below it
			if d == nil || i == first {
				continue
			}
			if d.Time.GreaterThan(cutoff) || closerToNext(d.Time, lowest.Decimal, next) {
				buckets[i].PushBack(d)
				picks[i] = nil
			}
		}
		emit(AlignedRow{Chemical: chem, Time: lowest.Decimal, Picks: picks})
	}
}

// closerToNext reports whether t is further above lowest than it is from the
// next pending time, i.e. it more likely belongs to the following group.
func closerToNext(t, lowest decimal.Decimal, next decimal.NullDecimal) bool {
	if !next.Valid {
		return false
	}
	return t.Sub(lowest).GreaterThan(next.Decimal.Sub(t).Abs())
}
