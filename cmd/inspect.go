package cmd

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/aligncsv-cli/internal/align"
	"github.com/KaramelBytes/aligncsv-cli/internal/output"
	"github.com/spf13/cobra"
)

var (
	insDelimiter    string
	insTimeField    int
	insSingleHeader bool
	insColumns      bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file> [file...]",
	Short: "Show how input peak tables are read",
	Long: `Loads each file the way align does and reports its header layout, data
column count, detections and distinct chemicals. With --columns the composite
column names of every file are listed as well.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := settings()
		f := cmd.Flags()
		delimiter, timeField, single := c.Delimiter, c.TimeField, c.SingleHeader
		if f.Changed("delimiter") {
			delimiter = insDelimiter
		}
		if f.Changed("time-field") {
			timeField = insTimeField
		}
		if f.Changed("single-header") {
			single = insSingleHeader
		}
		if strings.EqualFold(delimiter, "auto") {
			delimiter = string(sniffDelimiter(args[0]))
		}
		delim, err := parseDelimiter(delimiter)
		if err != nil {
			return err
		}
		run, err := align.LoadFiles(args, align.LoadOptions{
			Delimiter:    delim,
			SingleHeader: single,
			TimeField:    timeField,
		}, nil)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		output.FileTable(w, run.Files)
		if insColumns {
			for _, fd := range run.Files {
				fmt.Fprintf(w, "\n%s\n", fd.Path)
				output.ColumnTable(w, fd)
			}
		}
		fmt.Fprintf(w, "✓ %d files, %d distinct chemicals\n", len(run.Files), len(run.Universe))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVar(&insDelimiter, "delimiter", ",", "field delimiter: ',' | ';' | 'tab' | 'auto' | any single byte")
	inspectCmd.Flags().IntVar(&insTimeField, "time-field", 1, "index of the retention time among the fields after the chemical name")
	inspectCmd.Flags().BoolVarP(&insSingleHeader, "single-header", "1", false, "flatten two-row headers into name@qualifier columns")
	inspectCmd.Flags().BoolVar(&insColumns, "columns", false, "list composite column names per file")
}
