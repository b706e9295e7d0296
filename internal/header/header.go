// Package header turns the one or two header rows of a peak table into column
// identities.
//
// A first row that is fully populated names the columns directly. A first row
// with blank cells is a row of qualifiers (usually subject or sample names that
// span several columns) and must be followed by a second row naming every
// column; the two are joined into composite names such as "Area@subject-1".
package header

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/KaramelBytes/aligncsv-cli/internal/csvline"
)

// Separator joins a primary column name and its qualifier. It must not occur
// in real column names.
const Separator = "@"

var (
	// ErrEmptyHeader is returned when the first line has no cells.
	ErrEmptyHeader = errors.New("empty header row")
	// ErrMissingSecondHeader is returned when the first row has blanks but no second row follows.
	ErrMissingSecondHeader = errors.New("first header has blank columns but second header is missing")
	// ErrIncompleteSecondHeader is returned when the second row itself has blank cells.
	ErrIncompleteSecondHeader = errors.New("second header has incomplete fields")
	// ErrHeaderSizeMismatch is returned when the two header rows differ in length.
	ErrHeaderSizeMismatch = errors.New("first and second headers different size")
)

// Options controls header compositing.
type Options struct {
	// Delimiter separates header cells. If 0, ',' is used.
	Delimiter byte
	// SingleHeader strips a leading quote from qualifiers so they can be
	// flattened into one header row downstream.
	SingleHeader bool
}

// Column is the identity of one input column.
type Column struct {
	// Name is the composite identity, unique within a file.
	Name string
	// Primary is the second-row name, or the only name for one-row headers.
	Primary string
	// Qualifier is the carried-forward first-row name; empty for one-row headers.
	Qualifier string
}

// Header describes the columns of one input file. Columns[0] is the identity
// (chemical) column.
type Header struct {
	Columns []Column
	TwoRow  bool
}

// DataColumns is the number of valid fields following the identity column.
func (h Header) DataColumns() int {
	if len(h.Columns) == 0 {
		return 0
	}
	return len(h.Columns) - 1
}

// Identity returns the identity column.
func (h Header) Identity() Column {
	if len(h.Columns) == 0 {
		return Column{}
	}
	return h.Columns[0]
}

// Names returns the composite names of all columns.
func (h Header) Names() []string {
	out := make([]string, len(h.Columns))
	for i, c := range h.Columns {
		out[i] = c.Name
	}
	return out
}

// Row is one normalized header row.
type Row struct {
	Cells []string
	// Blanks counts truly empty cells; virtually empty cells are not counted.
	Blanks int
}

// Normalize applies the header anti-corruption rules to raw cells:
// a truly empty cell is kept and counted as a blank; a cell of at most two
// whitespace characters (typically a stray "\r") is virtually empty and is
// replaced by the previous non-empty cell. A trailing empty or virtually empty
// cell is dropped, since spreadsheet exports terminate rows with a delimiter.
func Normalize(cells []string) Row {
	var (
		row       Row
		lastText  string
		lastEmpty bool
		lastBlank bool
	)
	row.Cells = make([]string, 0, len(cells))
	for _, c := range cells {
		lastEmpty, lastBlank = false, false
		switch {
		case c == "":
			row.Blanks++
			lastEmpty, lastBlank = true, true
		case virtuallyEmpty(c):
			c = lastText
			lastEmpty = true
		default:
			lastText = c
		}
		row.Cells = append(row.Cells, c)
	}
	if lastEmpty {
		row.Cells = row.Cells[:len(row.Cells)-1]
	}
	if lastBlank {
		row.Blanks--
	}
	return row
}

func virtuallyEmpty(s string) bool {
	if s == "" || len(s) > 2 {
		return false
	}
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// LineReader yields successive raw lines. It returns io.EOF when exhausted.
type LineReader interface {
	ReadLine() (string, error)
}

// Read consumes the header line(s) of a file and builds its Header. Exactly
// one line is read when the first row is fully populated, two otherwise.
func Read(lr LineReader, opt Options) (Header, error) {
	tok := csvline.Options{Delimiter: opt.Delimiter}
	line, err := lr.ReadLine()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Header{}, ErrEmptyHeader
		}
		return Header{}, fmt.Errorf("read first header: %w", err)
	}
	first := Normalize(csvline.Split(line, tok))
	if first.Blanks == 0 {
		return Compose(first, nil, opt)
	}
	line, err = lr.ReadLine()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Header{}, ErrMissingSecondHeader
		}
		return Header{}, fmt.Errorf("read second header: %w", err)
	}
	second := Normalize(csvline.Split(line, tok))
	return Compose(first, &second, opt)
}

// Compose builds a Header from normalized rows. second is only consulted when
// first has blanks.
func Compose(first Row, second *Row, opt Options) (Header, error) {
	if len(first.Cells) == 0 {
		return Header{}, ErrEmptyHeader
	}
	if first.Blanks == 0 {
		cols := make([]Column, len(first.Cells))
		for i, c := range first.Cells {
			cols[i] = Column{Name: c, Primary: c}
		}
		return Header{Columns: cols}, nil
	}
	if second == nil {
		return Header{}, ErrMissingSecondHeader
	}
	if second.Blanks > 0 {
		return Header{}, ErrIncompleteSecondHeader
	}
	if len(second.Cells) != len(first.Cells) {
		return Header{}, fmt.Errorf("%w: %d vs %d", ErrHeaderSizeMismatch, len(first.Cells), len(second.Cells))
	}

	cols := make([]Column, len(second.Cells))
	carry := ""
	for i, primary := range second.Cells {
		qualifier := first.Cells[i]
		if qualifier != "" {
			carry = qualifier
		} else {
			qualifier = carry
		}
		recorded := qualifier
		if opt.SingleHeader {
			recorded = strings.TrimPrefix(recorded, `"`)
		}
		cols[i] = Column{
			Name:      composite(primary, qualifier),
			Primary:   primary,
			Qualifier: recorded,
		}
	}
	return Header{Columns: cols, TwoRow: true}, nil
}

// composite joins primary and qualifier. Quotes around either part are moved
// to the outside so the result is quoted exactly once.
func composite(primary, qualifier string) string {
	p, pq := unwrap(primary)
	q, qq := unwrap(qualifier)
	name := p
	if q != "" {
		name += Separator + q
	}
	if pq || qq {
		name = `"` + name + `"`
	}
	return name
}

func unwrap(s string) (string, bool) {
	quoted := false
	if strings.HasPrefix(s, `"`) {
		s = s[1:]
		quoted = true
	}
	if strings.HasSuffix(s, `"`) {
		s = s[:len(s)-1]
		quoted = true
	}
	return s, quoted
}
