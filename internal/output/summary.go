package output

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/KaramelBytes/aligncsv-cli/internal/align"
	"github.com/olekukonko/tablewriter"
)

// FileTable renders one line per input file: header layout, data column
// count, detections and distinct chemicals.
func FileTable(w io.Writer, files []*align.FileData) {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"#", "File", "Header", "Data Columns", "Detections", "Chemicals"})
	for i, f := range files {
		layout := "1 row"
		if f.Header.TwoRow {
			layout = "2 rows"
		}
		table.Append([]string{
			strconv.Itoa(i + 1),
			filepath.Base(f.Path),
			layout,
			strconv.Itoa(f.Header.DataColumns()),
			strconv.Itoa(f.Detections),
			strconv.Itoa(f.Chemicals()),
		})
	}
	table.Render()
}

// ColumnTable renders the composite column identities of one file.
func ColumnTable(w io.Writer, f *align.FileData) {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Index", "Column", "Primary", "Qualifier"})
	for i, col := range f.Header.Columns {
		idx := strconv.Itoa(i)
		if i == 0 {
			idx = "id"
		}
		table.Append([]string{idx, col.Name, col.Primary, col.Qualifier})
	}
	table.Render()
}

// ResultLine summarizes an alignment pass in one sentence.
func ResultLine(res *align.Result, written int, dest string) string {
	s := fmt.Sprintf("%d records written to %s (%d chemicals, %d detections aligned)", written, dest, res.Chemicals, res.Aligned)
	if res.Dropped > 0 {
		s += fmt.Sprintf(", %d incomplete groups dropped", res.Dropped)
	}
	return s
}
