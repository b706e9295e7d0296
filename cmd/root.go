package cmd

import (
	"fmt"
	"os"

	cfgpkg "github.com/KaramelBytes/aligncsv-cli/internal/config"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	debug   bool

	// Loaded configuration
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "aligncsv",
	Short: "aligncsv: align chromatography peak tables by chemical and retention time",
	Long: `aligncsv merges peak tables exported from several chromatography runs into one
table. Rows that name the same chemical at retention times within a tolerance are
placed side by side; files without a matching detection contribute blank cells.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	// Initialize configuration before executing commands
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.aligncsv/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: fall back to built-in defaults
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		cfg = cfgpkg.Defaults()
		return
	}
	cfg = c
}

// settings returns the loaded configuration, loading it on first use when
// commands run without Execute (tests).
func settings() *cfgpkg.Global {
	if cfg == nil {
		loadConfig()
	}
	return cfg
}

func debugf(cmd *cobra.Command, format string, args ...any) {
	if !debug {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "[debug] "+format+"\n", args...)
}
