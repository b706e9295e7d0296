package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/aligncsv-cli/internal/align"
	"github.com/KaramelBytes/aligncsv-cli/internal/manifest"
	"github.com/KaramelBytes/aligncsv-cli/internal/output"
	"github.com/KaramelBytes/aligncsv-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	alnSingleHeader bool
	alnDiff         string
	alnOutput       string
	alnMicrosoft    bool
	alnRestricted   bool
	alnDelimiter    string
	alnTimeField    int
	alnFormat       string
	alnManifest     string
	alnForce        bool
	alnQuiet        bool
)

var alignCmd = &cobra.Command{
	Use:   "align <file> [file...]",
	Short: "Align peak tables into one table keyed by chemical and retention time",
	Long: `Reads every input peak table, groups detections of the same chemical whose
retention times fall within the tolerance of the group's lowest time, and writes
one row per group with each file's columns side by side.

A --diff below 1 is a fraction of the lowest time (0.01 = 1%); 1 or more is an
absolute difference in the time unit of the inputs.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := settings()
		f := cmd.Flags()
		opts := *c
		if f.Changed("single-header") {
			opts.SingleHeader = alnSingleHeader
		}
		if f.Changed("diff") {
			opts.Diff = alnDiff
		}
		if f.Changed("output") {
			opts.Output = alnOutput
		}
		if f.Changed("microsoft") {
			opts.Microsoft = alnMicrosoft
		}
		if f.Changed("restricted") {
			opts.Restricted = alnRestricted
		}
		if f.Changed("delimiter") {
			opts.Delimiter = alnDelimiter
		}
		if f.Changed("time-field") {
			opts.TimeField = alnTimeField
		}
		if f.Changed("format") {
			opts.Format = alnFormat
		}

		tol, err := align.ParseTolerance(opts.Diff)
		if err != nil {
			return err
		}
		if strings.EqualFold(opts.Delimiter, "auto") {
			opts.Delimiter = string(sniffDelimiter(args[0]))
		}
		delim, err := parseDelimiter(opts.Delimiter)
		if err != nil {
			return err
		}
		if opts.TimeField < 0 {
			return fmt.Errorf("--time-field must be >= 0")
		}
		format := strings.ToLower(strings.TrimSpace(opts.Format))
		if format == "" {
			format = "csv"
		}
		if opts.Output == "" {
			return fmt.Errorf("--output must not be empty")
		}
		for _, in := range args {
			if sameFile(in, opts.Output) {
				return fmt.Errorf("output %s is also an input", opts.Output)
			}
		}
		debugf(cmd, "tolerance %s, delimiter %q, time field %d, format %s", tol, delim, opts.TimeField, format)

		out, err := utils.CreateOutput(opts.Output, alnForce)
		if err != nil {
			return err
		}
		// Any failure after this point leaves no partial output behind.
		ok := false
		defer func() {
			if !ok {
				out.Close()
				_ = os.Remove(opts.Output)
			}
		}()

		w := cmd.OutOrStdout()
		var progress func(string)
		if !alnQuiet {
			progress = func(p string) { fmt.Fprintf(w, "Reading file %s\n", p) }
		}
		run, err := align.LoadFiles(args, align.LoadOptions{
			Delimiter:    delim,
			SingleHeader: opts.SingleHeader,
			TimeField:    opts.TimeField,
		}, progress)
		if err != nil {
			return err
		}
		debugf(cmd, "%d chemicals across %d files", len(run.Universe), len(run.Files))

		res := align.Engine{Tolerance: tol, Restricted: opts.Restricted}.Align(run)

		fm, err := output.New(out, output.Options{
			Format:       format,
			Delimiter:    delim,
			SingleHeader: opts.SingleHeader,
			Microsoft:    opts.Microsoft,
		})
		if err != nil {
			return err
		}
		if err := fm.WriteHeader(run.Files); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		written, err := fm.WriteRows(res.Rows, run.Files)
		if err != nil {
			return fmt.Errorf("write rows: %w", err)
		}
		if err := fm.Close(); err != nil {
			return err
		}
		if err := out.Close(); err != nil {
			return fmt.Errorf("close output: %w", err)
		}
		ok = true

		if alnManifest != "" {
			m := manifest.New(run, res, written, manifest.Settings{
				Output:       opts.Output,
				Format:       format,
				Tolerance:    tol,
				SingleHeader: opts.SingleHeader,
				Restricted:   opts.Restricted,
				Microsoft:    opts.Microsoft,
			})
			if err := m.Save(alnManifest); err != nil {
				return fmt.Errorf("write manifest: %w", err)
			}
			debugf(cmd, "manifest %s run %s", alnManifest, m.RunID)
		}

		if !alnQuiet {
			output.FileTable(w, run.Files)
		}
		fmt.Fprintf(w, "✓ %s\n", output.ResultLine(res, written, opts.Output))
		if opts.Restricted && res.Dropped > 0 && !alnQuiet {
			fmt.Fprintf(w, "⚠ Restricted mode: %d groups were missing from at least one file\n", res.Dropped)
		}
		if alnManifest != "" && !alnQuiet {
			fmt.Fprintf(w, "✓ Manifest written to %s\n", alnManifest)
		}
		return nil
	},
}

// parseDelimiter accepts a single byte or the names "tab", "comma" and "semicolon".
func parseDelimiter(s string) (byte, error) {
	switch strings.ToLower(s) {
	case "", ",", "comma":
		return ',', nil
	case "\t", "tab", `\t`:
		return '\t', nil
	case ";", "semicolon":
		return ';', nil
	}
	if len(s) != 1 || s == `"` || s == "\n" || s == "\r" {
		return 0, fmt.Errorf("unsupported --delimiter: %q", s)
	}
	return s[0], nil
}

// sniffDelimiter picks a delimiter from the file name: tab for .tsv and .tab,
// comma otherwise.
func sniffDelimiter(path string) byte {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsv", ".tab":
		return '\t'
	}
	return ','
}

// sameFile reports whether a and b name the same path.
func sameFile(a, b string) bool {
	if fa, err := os.Stat(a); err == nil {
		if fb, err := os.Stat(b); err == nil {
			return os.SameFile(fa, fb)
		}
	}
	aa, errA := filepath.Abs(a)
	bb, errB := filepath.Abs(b)
	return errA == nil && errB == nil && aa == bb
}

func init() {
	rootCmd.AddCommand(alignCmd)
	alignCmd.Flags().BoolVarP(&alnSingleHeader, "single-header", "1", false, "flatten two-row headers into one row of name@qualifier columns")
	alignCmd.Flags().StringVarP(&alnDiff, "diff", "d", "0.01", "time tolerance: <1 is a fraction of the lowest time, >=1 is absolute")
	alignCmd.Flags().StringVarP(&alnOutput, "output", "o", "aligncsv.csv", "output file (must not exist unless --force)")
	alignCmd.Flags().BoolVarP(&alnMicrosoft, "microsoft", "m", false, "end every csv line with a trailing delimiter")
	alignCmd.Flags().BoolVarP(&alnRestricted, "restricted", "r", false, "only write groups found in every file")
	alignCmd.Flags().StringVar(&alnDelimiter, "delimiter", ",", "field delimiter: ',' | ';' | 'tab' | 'auto' | any single byte")
	alignCmd.Flags().IntVar(&alnTimeField, "time-field", 1, "index of the retention time among the fields after the chemical name")
	alignCmd.Flags().StringVar(&alnFormat, "format", "csv", "output format: csv|parquet")
	alignCmd.Flags().StringVar(&alnManifest, "manifest", "", "optional path to write a YAML run manifest")
	alignCmd.Flags().BoolVar(&alnForce, "force", false, "overwrite an existing output file")
	alignCmd.Flags().BoolVarP(&alnQuiet, "quiet", "q", false, "suppress progress output")
}
