// Package output renders aligned rows.
//
// Currently supported formats:
//   - csv: the wide table, one column group per input file
//   - parquet: a long table with one record per aligned value
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/KaramelBytes/aligncsv-cli/internal/align"
)

// Formatter writes the header and rows of one aligned table.
type Formatter interface {
	// WriteHeader writes column identities for files.
	WriteHeader(files []*align.FileData) error
	// WriteRows writes rows and returns how many were written.
	WriteRows(rows []align.AlignedRow, files []*align.FileData) (int, error)
	// Close flushes buffered output. It does not close the underlying writer.
	Close() error
}

// Options configures a Formatter.
type Options struct {
	// Format is "csv" (default) or "parquet".
	Format string
	// Delimiter separates csv fields. If 0, ',' is used.
	Delimiter byte
	// SingleHeader flattens two-row headers into composite names.
	SingleHeader bool
	// Microsoft terminates csv lines with a trailing delimiter.
	Microsoft bool
}

// New returns the Formatter selected by opt.Format.
func New(w io.Writer, opt Options) (Formatter, error) {
	switch strings.ToLower(strings.TrimSpace(opt.Format)) {
	case "", "csv":
		return NewCSVWriter(w, opt), nil
	case "parquet":
		return NewParquetWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (use csv|parquet)", opt.Format)
	}
}
