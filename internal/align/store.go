package align

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/KaramelBytes/aligncsv-cli/internal/csvline"
	"github.com/KaramelBytes/aligncsv-cli/internal/header"
	"github.com/shopspring/decimal"
)

// maxLineSize bounds a single input line; wide peak tables easily exceed
// bufio.Scanner's 64KiB default.
const maxLineSize = 16 << 20

// ErrBadTime is returned when a primary retention time is missing, does not
// parse as a number, or is zero.
var ErrBadTime = errors.New("error reading time value")

// TimeError locates a retention time that could not be read.
type TimeError struct {
	Path  string
	Line  int
	Value string
	Err   error
}

func (e *TimeError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s:%d: %v: %q", e.Path, e.Line, e.Err, e.Value)
}

// Unwrap returns the underlying error so TimeError matches ErrBadTime.
func (e *TimeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// LoadOptions controls how input files are read.
type LoadOptions struct {
	// Delimiter separates fields. If 0, ',' is used.
	Delimiter byte
	// SingleHeader is forwarded to header compositing.
	SingleHeader bool
	// TimeField is the index, within a detection's fields (chemical name
	// excluded), of the primary retention time. The second-dimension time is
	// read from the field after it.
	TimeField int
}

// DefaultLoadOptions matches ChromaTOF exports: comma separated, first
// dimension time in the third column.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{Delimiter: ',', TimeField: 1}
}

// Detection is one data row of one file.
type Detection struct {
	// Fields holds the row's fields after the chemical name, as tokenized.
	Fields []string
	// Time is the primary (first dimension) retention time.
	Time decimal.Decimal
	// Time2 is the second dimension time when it parses; it is not used for matching.
	Time2 decimal.NullDecimal
	// Line is the 1-based source line number.
	Line int
}

// Bucket holds the detections of one chemical in one file, ordered by time.
// Alignment pops from the front and may push the popped detection back.
// A nil Bucket behaves as an empty one.
type Bucket struct {
	items  []*Detection
	head   int
	sorted bool
}

func (b *Bucket) add(d *Detection) {
	b.items = append(b.items, d)
	b.sorted = false
}

func (b *Bucket) order() {
	if b.sorted {
		return
	}
	rest := b.items[b.head:]
	sort.SliceStable(rest, func(i, j int) bool { return rest[i].Time.LessThan(rest[j].Time) })
	b.sorted = true
}

// Len reports the number of pending detections.
func (b *Bucket) Len() int {
	if b == nil {
		return 0
	}
	return len(b.items) - b.head
}

// Peek returns the pending detection with the lowest time without removing it.
func (b *Bucket) Peek() (*Detection, bool) {
	if b.Len() == 0 {
		return nil, false
	}
	b.order()
	return b.items[b.head], true
}

// Pop removes and returns the pending detection with the lowest time.
func (b *Bucket) Pop() (*Detection, bool) {
	d, ok := b.Peek()
	if ok {
		b.head++
	}
	return d, ok
}

// PushBack returns the most recently popped detection to the front.
func (b *Bucket) PushBack(d *Detection) {
	if b == nil || b.head == 0 {
		panic("align: PushBack without a matching Pop")
	}
	b.head--
	b.items[b.head] = d
}

// FileData is the record store of one input file.
type FileData struct {
	Path   string
	Header header.Header
	// Buckets maps chemical name to its detections in this file.
	Buckets    map[string]*Bucket
	Detections int
}

// Bucket returns the bucket for chemical, or nil when the file never saw it.
func (f *FileData) Bucket(chemical string) *Bucket {
	return f.Buckets[chemical]
}

// Chemicals reports how many distinct chemicals the file contains.
func (f *FileData) Chemicals() int { return len(f.Buckets) }

// Universe is the set of chemical names seen across all files.
type Universe map[string]struct{}

// Add records name.
func (u Universe) Add(name string) { u[name] = struct{}{} }

// Sorted returns the names in lexical order, so runs are reproducible.
func (u Universe) Sorted() []string {
	out := make([]string, 0, len(u))
	for name := range u {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Run bundles everything the engine needs: the per-file stores in argument
// order and the union of their chemical names.
type Run struct {
	Files    []*FileData
	Universe Universe
}

// NewRun returns an empty Run.
func NewRun() *Run {
	return &Run{Universe: Universe{}}
}

// Add appends a loaded file and merges its chemicals into the universe.
func (r *Run) Add(f *FileData) {
	r.Files = append(r.Files, f)
	for name := range f.Buckets {
		r.Universe.Add(name)
	}
}

// lineReader adapts bufio.Scanner to header.LineReader and counts lines.
type lineReader struct {
	sc   *bufio.Scanner
	line int
}

func newLineReader(r io.Reader) *lineReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &lineReader{sc: sc}
}

func (l *lineReader) ReadLine() (string, error) {
	if !l.sc.Scan() {
		if err := l.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	l.line++
	return l.sc.Text(), nil
}

// Load reads one file's header row(s) and data rows into a FileData.
func Load(r io.Reader, path string, opt LoadOptions) (*FileData, error) {
	if opt.TimeField < 0 {
		return nil, fmt.Errorf("invalid time field index %d", opt.TimeField)
	}
	lr := newLineReader(r)
	h, err := header.Read(lr, header.Options{Delimiter: opt.Delimiter, SingleHeader: opt.SingleHeader})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	fd := &FileData{Path: path, Header: h, Buckets: map[string]*Bucket{}}

	sc := csvline.NewScanner("", csvline.Options{Delimiter: opt.Delimiter, DropCR: true})
	for {
		line, err := lr.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read %s line %d: %w", path, lr.line+1, err)
		}
		if strings.Trim(line, "\r") == "" {
			continue
		}
		sc.Reset(line)
		sc.Next()
		chemical := sc.Field()
		var fields []string
		for sc.Next() {
			fields = append(fields, sc.Field())
		}
		d := &Detection{Fields: fields, Line: lr.line}
		if opt.TimeField >= len(fields) {
			return nil, &TimeError{Path: path, Line: lr.line, Err: ErrBadTime}
		}
		t, err := ParseTime(fields[opt.TimeField])
		if err != nil {
			return nil, &TimeError{Path: path, Line: lr.line, Value: fields[opt.TimeField], Err: err}
		}
		d.Time = t
		if i := opt.TimeField + 1; i < len(fields) {
			if t2, err := ParseTime(fields[i]); err == nil {
				d.Time2 = decimal.NullDecimal{Decimal: t2, Valid: true}
			}
		}
		b := fd.Buckets[chemical]
		if b == nil {
			b = &Bucket{}
			fd.Buckets[chemical] = b
		}
		b.add(d)
		fd.Detections++
	}
	return fd, nil
}

// LoadFile opens path and loads it.
func LoadFile(path string, opt LoadOptions) (*FileData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()
	return Load(f, path, opt)
}

// LoadFiles loads every path in order into a new Run. progress, if non-nil,
// is called before each file is read. The first failure aborts the run.
func LoadFiles(paths []string, opt LoadOptions, progress func(path string)) (*Run, error) {
	run := NewRun()
	for _, p := range paths {
		if progress != nil {
			progress(p)
		}
		fd, err := LoadFile(p, opt)
		if err != nil {
			return nil, err
		}
		run.Add(fd)
	}
	return run, nil
}

// ParseTime reads a retention time field. One leading and one trailing
// double quote are tolerated; everything else must be part of the number,
// and the number must not be zero.
func ParseTime(raw string) (decimal.Decimal, error) {
	s := strings.TrimPrefix(raw, `"`)
	s = strings.TrimLeft(s, " \t")
	s = strings.TrimSuffix(s, `"`)
	if s == "" {
		return decimal.Zero, ErrBadTime
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrBadTime, err)
	}
	if d.IsZero() {
		return decimal.Zero, fmt.Errorf("%w: zero", ErrBadTime)
	}
	return d, nil
}
