package output

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/KaramelBytes/aligncsv-cli/internal/align"
	"github.com/segmentio/parquet-go"
)

// LongRecord is one aligned value in the parquet export. Rows from the same
// aligned group share Group.
type LongRecord struct {
	Group         int64   `parquet:"group"`
	Chemical      string  `parquet:"chemical"`
	RetentionTime float64 `parquet:"retention_time"`
	File          string  `parquet:"file"`
	Column        string  `parquet:"column"`
	Value         string  `parquet:"value"`
}

// ParquetWriter writes aligned rows as a long table. Files that did not
// contribute to a group produce no records for it.
type ParquetWriter struct {
	w     *parquet.GenericWriter[LongRecord]
	group int64
}

// NewParquetWriter creates a parquet formatter over w.
func NewParquetWriter(w io.Writer) *ParquetWriter {
	return &ParquetWriter{w: parquet.NewGenericWriter[LongRecord](w)}
}

// WriteHeader is a no-op: the long schema is fixed and column identities are
// carried per record.
func (p *ParquetWriter) WriteHeader([]*align.FileData) error { return nil }

// WriteRows appends the records of rows.
func (p *ParquetWriter) WriteRows(rows []align.AlignedRow, files []*align.FileData) (int, error) {
	for i, r := range rows {
		batch := LongRecords(r, files, p.group)
		p.group++
		if len(batch) == 0 {
			continue
		}
		if _, err := p.w.Write(batch); err != nil {
			return i, fmt.Errorf("write parquet rows: %w", err)
		}
	}
	return len(rows), nil
}

// Close writes the parquet footer.
func (p *ParquetWriter) Close() error {
	if err := p.w.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

// LongRecords expands one aligned row into per-value records.
func LongRecords(r align.AlignedRow, files []*align.FileData, group int64) []LongRecord {
	var out []LongRecord
	rt := r.Time.InexactFloat64()
	for i, f := range files {
		if i >= len(r.Picks) || r.Picks[i] == nil {
			continue
		}
		fields := r.Picks[i].Fields
		name := filepath.Base(f.Path)
		for j := 0; j < f.Header.DataColumns(); j++ {
			v := ""
			if j < len(fields) {
				v = fields[j]
			}
			out = append(out, LongRecord{
				Group:         group,
				Chemical:      r.Chemical,
				RetentionTime: rt,
				File:          name,
				Column:        f.Header.Columns[j+1].Name,
				Value:         v,
			})
		}
	}
	return out
}
