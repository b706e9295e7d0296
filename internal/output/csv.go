package output

import (
	"bufio"
	"io"
	"strings"

	"github.com/KaramelBytes/aligncsv-cli/internal/align"
	"github.com/KaramelBytes/aligncsv-cli/internal/header"
)

// CSVWriter writes the wide aligned table. Field values are written exactly
// as they were read, quotes included, so no re-quoting happens here.
type CSVWriter struct {
	w      *bufio.Writer
	delim  string
	term   string
	single bool
}

// NewCSVWriter creates a CSV formatter over w.
func NewCSVWriter(w io.Writer, opt Options) *CSVWriter {
	delim := opt.Delimiter
	if delim == 0 {
		delim = ','
	}
	term := "\n"
	if opt.Microsoft {
		term = string(delim) + "\n"
	}
	return &CSVWriter{w: bufio.NewWriter(w), delim: string(delim), term: term, single: opt.SingleHeader}
}

// WriteHeader writes one row of composite names when single-header output
// was requested or no input needed two rows, and otherwise a qualifier row
// followed by a row of primary names.
func (c *CSVWriter) WriteHeader(files []*align.FileData) error {
	if len(files) == 0 {
		return nil
	}
	if c.single || !anyTwoRow(files) {
		return c.line(headerCells(files, func(col header.Column) string { return col.Name }))
	}
	if err := c.line(qualifierCells(files)); err != nil {
		return err
	}
	return c.line(headerCells(files, func(col header.Column) string { return col.Primary }))
}

// WriteRows writes rows in the given order.
func (c *CSVWriter) WriteRows(rows []align.AlignedRow, files []*align.FileData) (int, error) {
	for i, r := range rows {
		if _, err := c.w.WriteString(RenderRow(r, files, c.delim[0])); err != nil {
			return i, err
		}
		if _, err := c.w.WriteString(c.term); err != nil {
			return i, err
		}
	}
	return len(rows), nil
}

// Close flushes buffered output.
func (c *CSVWriter) Close() error { return c.w.Flush() }

func (c *CSVWriter) line(cells []string) error {
	if _, err := c.w.WriteString(strings.Join(cells, c.delim)); err != nil {
		return err
	}
	_, err := c.w.WriteString(c.term)
	return err
}

// RenderRow renders one aligned row without a line terminator: the chemical
// name, then for every file exactly DataColumns fields, each preceded by the
// delimiter. Fields past the column count (trailing delimiters) are ignored
// and short rows are padded with blanks.
func RenderRow(r align.AlignedRow, files []*align.FileData, delim byte) string {
	var b strings.Builder
	b.WriteString(r.Chemical)
	for i, f := range files {
		n := f.Header.DataColumns()
		var fields []string
		if i < len(r.Picks) && r.Picks[i] != nil {
			fields = r.Picks[i].Fields
		}
		for j := 0; j < n; j++ {
			b.WriteByte(delim)
			if j < len(fields) {
				b.WriteString(fields[j])
			}
		}
	}
	return b.String()
}

// headerCells lists the identity column of the first file followed by every
// file's data columns.
func headerCells(files []*align.FileData, pick func(header.Column) string) []string {
	var cells []string
	for i, f := range files {
		for j, col := range f.Header.Columns {
			if j == 0 && i > 0 {
				continue
			}
			cells = append(cells, pick(col))
		}
	}
	return cells
}

// qualifierCells writes each qualifier once where it starts; repeats within a
// file are left blank so spreadsheet readers see a spanning label. Every file
// group restarts with its first qualifier.
func qualifierCells(files []*align.FileData) []string {
	var cells []string
	for i, f := range files {
		last := ""
		for j, col := range f.Header.Columns {
			if j == 0 && i > 0 {
				continue
			}
			q := col.Qualifier
			if q == last {
				cells = append(cells, "")
				continue
			}
			cells = append(cells, q)
			last = q
		}
	}
	return cells
}

func anyTwoRow(files []*align.FileData) bool {
	for _, f := range files {
		if f.Header.TwoRow {
			return true
		}
	}
	return false
}
