package align

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

// loadRun builds a Run from in-memory files; each file is a list of
// "chemical:time" detections.
func loadRun(t *testing.T, files ...[]string) *Run {
	t.Helper()
	run := NewRun()
	for i, dets := range files {
		var b strings.Builder
		b.WriteString(peakHeader)
		for j, d := range dets {
			chem, tm, _ := strings.Cut(d, ":")
			fmt.Fprintf(&b, "%s,c,%s,1.5,%d\n", chem, tm, 100*(i+1)+j)
		}
		fd, err := Load(strings.NewReader(b.String()), fmt.Sprintf("file%d.csv", i+1), DefaultLoadOptions())
		if err != nil {
			t.Fatalf("Load file %d: %v", i+1, err)
		}
		run.Add(fd)
	}
	return run
}

func mustTolerance(t *testing.T, s string) Tolerance {
	t.Helper()
	tol, err := ParseTolerance(s)
	if err != nil {
		t.Fatalf("ParseTolerance(%s): %v", s, err)
	}
	return tol
}

// shape renders rows compactly: "chem@time[picked times]".
func shape(rows []AlignedRow) string {
	parts := make([]string, len(rows))
	for i, r := range rows {
		cells := make([]string, len(r.Picks))
		for j, p := range r.Picks {
			if p == nil {
				cells[j] = "-"
			} else {
				cells[j] = p.Time.String()
			}
		}
		parts[i] = fmt.Sprintf("%s@%s[%s]", r.Chemical, r.Time, strings.Join(cells, " "))
	}
	return strings.Join(parts, " ")
}

func TestToleranceBoundary(t *testing.T) {
	tol := mustTolerance(t, "0.01")
	if tol.Absolute {
		t.Fatalf("0.01 must be fractional")
	}
	if got := tol.Cutoff(decimal.RequireFromString("10.0")).String(); got != "10.1" {
		t.Fatalf("cutoff = %s, want 10.1", got)
	}

	res := Engine{Tolerance: tol}.Align(loadRun(t, []string{"X:10.0"}, []string{"X:10.09"}))
	if got, want := shape(res.Rows), "X@10[10 10.09]"; got != want {
		t.Fatalf("rows = %s, want %s", got, want)
	}

	res = Engine{Tolerance: tol}.Align(loadRun(t, []string{"X:10.0"}, []string{"X:10.11"}))
	if got, want := shape(res.Rows), "X@10[10 -] X@10.11[- 10.11]"; got != want {
		t.Fatalf("rows = %s, want %s", got, want)
	}
}

func TestAbsoluteTolerance(t *testing.T) {
	tol := mustTolerance(t, "2")
	if !tol.Absolute {
		t.Fatalf("2 must be absolute")
	}
	res := Engine{Tolerance: tol}.Align(loadRun(t,
		[]string{"X:100", "Y:100"},
		[]string{"X:101.9", "Y:102.5"},
	))
	if got, want := shape(res.Rows), "X@100[100 101.9] Y@100[100 -] Y@102.5[- 102.5]"; got != want {
		t.Fatalf("rows = %s, want %s", got, want)
	}
}

func TestDefersToCloserNextGroup(t *testing.T) {
	// 101 is within 5% of 100, but closer to the pending 101.5.
	res := Engine{Tolerance: mustTolerance(t, "0.05")}.Align(loadRun(t,
		[]string{"X:101.5", "X:100"},
		[]string{"X:101"},
	))
	if got, want := shape(res.Rows), "X@100[100 -] X@101[101.5 101]"; got != want {
		t.Fatalf("rows = %s, want %s", got, want)
	}
}

func TestRestrictedMode(t *testing.T) {
	files := func() *Run {
		return loadRun(t, []string{"X:5.0", "Y:7"}, []string{"Y:7.01"})
	}
	tol := DefaultTolerance()

	open := Engine{Tolerance: tol}.Align(files())
	if got, want := shape(open.Rows), "X@5[5 -] Y@7[7 7.01]"; got != want {
		t.Fatalf("unrestricted rows = %s, want %s", got, want)
	}

	res := Engine{Tolerance: tol, Restricted: true}.Align(files())
	if got, want := shape(res.Rows), "Y@7[7 7.01]"; got != want {
		t.Fatalf("restricted rows = %s, want %s", got, want)
	}
	if res.Dropped != 1 {
		t.Fatalf("dropped = %d, want 1", res.Dropped)
	}
}

func TestAlignIsCompletePartition(t *testing.T) {
	files := [][]string{
		{"A:10", "A:10.2", "A:55", "B:20", "B:20.5", "B:21", "C:300"},
		{"A:10.05", "A:54.9", "A:56", "B:20.4", "C:301", "C:302.5"},
		{"A:9.95", "B:19", "B:80", "D:1"},
	}
	run := loadRun(t, files...)
	total := 0
	for _, f := range run.Files {
		total += f.Detections
	}
	res := Engine{Tolerance: DefaultTolerance()}.Align(run)
	if res.Aligned != total {
		t.Fatalf("aligned %d detections, loaded %d", res.Aligned, total)
	}
	seen := map[*Detection]bool{}
	for _, r := range res.Rows {
		if r.Count() == 0 {
			t.Fatalf("empty row emitted for %s", r.Chemical)
		}
		for _, p := range r.Picks {
			if p == nil {
				continue
			}
			if seen[p] {
				t.Fatalf("detection at line %d assigned twice", p.Line)
			}
			seen[p] = true
			if p.Time.LessThan(r.Time) {
				t.Fatalf("pick %s below representative time %s", p.Time, r.Time)
			}
		}
	}
	for i := 1; i < len(res.Rows); i++ {
		if res.Rows[i].Time.LessThan(res.Rows[i-1].Time) {
			t.Fatalf("rows not sorted at %d", i)
		}
	}
	for _, f := range run.Files {
		for chem, b := range f.Buckets {
			if b.Len() != 0 {
				t.Fatalf("%s: %d %s detections left pending", f.Path, b.Len(), chem)
			}
		}
	}
	if res.Chemicals != 4 {
		t.Fatalf("chemicals = %d, want 4", res.Chemicals)
	}
}

func TestAlignDeterministic(t *testing.T) {
	files := [][]string{
		{"A:10", "B:10", "C:10", "A:12"},
		{"C:10.01", "B:10.02", "A:12.05"},
	}
	first := shape(Engine{Tolerance: DefaultTolerance()}.Align(loadRun(t, files...)).Rows)
	for i := 0; i < 5; i++ {
		again := shape(Engine{Tolerance: DefaultTolerance()}.Align(loadRun(t, files...)).Rows)
		if again != first {
			t.Fatalf("run %d differs:\n%s\n%s", i, first, again)
		}
	}
	if want := "A@10[10 -] B@10[10 10.02] C@10[10 10.01] A@12[12 12.05]"; first != want {
		t.Fatalf("rows = %s, want %s", first, want)
	}
}

func TestToleranceValidation(t *testing.T) {
	if _, err := ParseTolerance("-0.5"); !errors.Is(err, ErrNegativeTolerance) {
		t.Fatalf("err = %v, want ErrNegativeTolerance", err)
	}
	if _, err := ParseTolerance("five"); err == nil {
		t.Fatalf("expected parse error")
	}
	exact := mustTolerance(t, "0")
	res := Engine{Tolerance: exact}.Align(loadRun(t, []string{"X:3"}, []string{"X:3.0", "X:3.001"}))
	if got, want := shape(res.Rows), "X@3[3 3] X@3.001[- 3.001]"; got != want {
		t.Fatalf("rows = %s, want %s", got, want)
	}
	if DefaultTolerance().String() != "1%" || mustTolerance(t, "2.5").String() != "±2.5" {
		t.Fatalf("unexpected tolerance strings")
	}
}
