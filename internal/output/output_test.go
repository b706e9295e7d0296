package output

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/KaramelBytes/aligncsv-cli/internal/align"
	"github.com/segmentio/parquet-go"
)

const (
	singleFile = "Name,Class,T1,T2,Area,\n" +
		"Toluene,A,600,1.8,1000,\n" +
		"Xylene,A,700,2.0,500,\n"
	twoRowFile = ",,,subject-1,,subject-2\n" +
		"Name,T1,T2,Area,Height,Area\n" +
		`"Toluene",x,601,1.8,11,12,13` + "\n"
)

func loadFiles(t *testing.T, bodies ...string) *align.Run {
	t.Helper()
	run := align.NewRun()
	opt := align.DefaultLoadOptions()
	for i, body := range bodies {
		fd, err := align.Load(strings.NewReader(body), []string{"a.csv", "b.csv", "c.csv"}[i], opt)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		run.Add(fd)
	}
	return run
}

func render(t *testing.T, run *align.Run, opt Options, restricted bool) string {
	t.Helper()
	res := align.Engine{Tolerance: align.DefaultTolerance(), Restricted: restricted}.Align(run)
	var buf bytes.Buffer
	f, err := New(&buf, opt)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := f.WriteHeader(run.Files); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	if _, err := f.WriteRows(res.Rows, run.Files); err != nil {
		t.Fatalf("WriteRows: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return buf.String()
}

func TestCSVSingleHeaderFiles(t *testing.T) {
	got := render(t, loadFiles(t, singleFile, singleFile), Options{}, false)
	want := "Name,Class,T1,T2,Area,Class,T1,T2,Area\n" +
		"Toluene,A,600,1.8,1000,A,600,1.8,1000\n" +
		"Xylene,A,700,2.0,500,A,700,2.0,500\n"
	if got != want {
		t.Fatalf("output:\n%s\nwant:\n%s", got, want)
	}
}

func TestCSVMissingFileIsBlank(t *testing.T) {
	other := "Name,Class,T1\nXylene,B,702\n"
	got := render(t, loadFiles(t, singleFile, other), Options{Microsoft: true}, false)
	want := "Name,Class,T1,T2,Area,Class,T1,\n" +
		"Toluene,A,600,1.8,1000,,,\n" +
		"Xylene,A,700,2.0,500,B,702,\n"
	if got != want {
		t.Fatalf("output:\n%s\nwant:\n%s", got, want)
	}

	got = render(t, loadFiles(t, singleFile, other), Options{}, true)
	want = "Name,Class,T1,T2,Area,Class,T1\n" +
		"Xylene,A,700,2.0,500,B,702\n"
	if got != want {
		t.Fatalf("restricted output:\n%s\nwant:\n%s", got, want)
	}
}

func TestCSVTwoRowHeader(t *testing.T) {
	run := loadFiles(t, twoRowFile, singleFile)
	got := render(t, run, Options{}, false)
	lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 2 header rows + 3 data rows, got:\n%s", got)
	}
	if lines[0] != ",,,subject-1,,subject-2,,,," {
		t.Fatalf("qualifier row = %q", lines[0])
	}
	if lines[1] != "Name,T1,T2,Area,Height,Area,Class,T1,T2,Area" {
		t.Fatalf("primary row = %q", lines[1])
	}
	// quoted and unquoted names are different chemicals
	if lines[2] != "Toluene,,,,,,A,600,1.8,1000" {
		t.Fatalf("row 1 = %q", lines[2])
	}
	// the field past the two-row file's column count is dropped
	if lines[3] != `"Toluene",x,601,1.8,11,12,,,,` {
		t.Fatalf("row 2 = %q", lines[3])
	}

	flat := render(t, loadFiles(t, twoRowFile, singleFile), Options{SingleHeader: true}, false)
	head := strings.SplitN(flat, "\n", 2)[0]
	if head != "Name,T1,T2,Area@subject-1,Height@subject-1,Area@subject-2,Class,T1,T2,Area" {
		t.Fatalf("flattened header = %q", head)
	}
}

func TestRenderRowPadsShortRows(t *testing.T) {
	run := loadFiles(t, "Name,Class,T1,T2,Area\nX,A,5\n")
	res := align.Engine{Tolerance: align.DefaultTolerance()}.Align(run)
	if got := RenderRow(res.Rows[0], run.Files, ';'); got != "X;A;5;;" {
		t.Fatalf("row = %q", got)
	}
}

func TestParquetLongExport(t *testing.T) {
	other := "Name,Class,T1\nXylene,B,702\n"
	got := render(t, loadFiles(t, singleFile, other), Options{Format: "parquet"}, false)
	r := parquet.NewGenericReader[LongRecord](bytes.NewReader([]byte(got)))
	defer r.Close()
	rows := make([]LongRecord, r.NumRows())
	n, err := r.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		t.Fatalf("read parquet: %v", err)
	}
	// Toluene: 4 values from a.csv; Xylene: 4 from a.csv + 2 from b.csv
	if n != 10 {
		t.Fatalf("records = %d, want 10", n)
	}
	last := rows[n-1]
	if last.Group != 1 || last.Chemical != "Xylene" || last.File != "b.csv" || last.Column != "T1" || last.Value != "702" {
		t.Fatalf("last record = %+v", last)
	}
	if rows[0].RetentionTime != 600 {
		t.Fatalf("retention time = %v", rows[0].RetentionTime)
	}
}

func TestUnsupportedFormat(t *testing.T) {
	if _, err := New(io.Discard, Options{Format: "xlsx"}); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}

func TestTables(t *testing.T) {
	run := loadFiles(t, twoRowFile, singleFile)
	var buf bytes.Buffer
	FileTable(&buf, run.Files)
	out := buf.String()
	for _, want := range []string{"a.csv", "b.csv", "2 rows", "1 row", "Data Columns"} {
		if !strings.Contains(out, want) {
			t.Fatalf("file table missing %q:\n%s", want, out)
		}
	}
	buf.Reset()
	ColumnTable(&buf, run.Files[0])
	if !strings.Contains(buf.String(), "Height@subject-1") {
		t.Fatalf("column table missing composite:\n%s", buf.String())
	}
}
