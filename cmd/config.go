package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/KaramelBytes/aligncsv-cli/internal/align"
	cfgpkg "github.com/KaramelBytes/aligncsv-cli/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set aligncsv configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := settings()
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "diff: %s\n", c.Diff)
		fmt.Fprintf(w, "output: %s\n", c.Output)
		fmt.Fprintf(w, "delimiter: %q\n", c.Delimiter)
		fmt.Fprintf(w, "time_field: %d\n", c.TimeField)
		fmt.Fprintf(w, "format: %s\n", c.Format)
		fmt.Fprintf(w, "single_header: %t\n", c.SingleHeader)
		fmt.Fprintf(w, "restricted: %t\n", c.Restricted)
		fmt.Fprintf(w, "microsoft: %t\n", c.Microsoft)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		c := settings()
		switch key {
		case "diff":
			if _, err := align.ParseTolerance(val); err != nil {
				return err
			}
			c.Diff = val
		case "output":
			if val == "" {
				return fmt.Errorf("output must not be empty")
			}
			c.Output = val
		case "delimiter":
			if strings.EqualFold(val, "auto") {
				c.Delimiter = "auto"
				break
			}
			d, err := parseDelimiter(val)
			if err != nil {
				return err
			}
			c.Delimiter = string(d)
		case "time_field":
			n, err := strconv.Atoi(val)
			if err != nil || n < 0 {
				return fmt.Errorf("invalid time_field: %s", val)
			}
			c.TimeField = n
		case "format":
			switch strings.ToLower(val) {
			case "csv", "parquet":
				c.Format = strings.ToLower(val)
			default:
				return fmt.Errorf("invalid format: %s (use csv or parquet)", val)
			}
		case "single_header", "restricted", "microsoft":
			b, err := strconv.ParseBool(val)
			if err != nil {
				return fmt.Errorf("invalid %s: %s", key, val)
			}
			switch key {
			case "single_header":
				c.SingleHeader = b
			case "restricted":
				c.Restricted = b
			case "microsoft":
				c.Microsoft = b
			}
		default:
			return fmt.Errorf("unknown key: %s", key)
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Config updated")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
