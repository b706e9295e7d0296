package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	// Diff is the matching tolerance as typed: below 1 it is a fraction of
	// the lowest time, otherwise an absolute difference.
	Diff      string `mapstructure:"diff" yaml:"diff"`
	Output    string `mapstructure:"output" yaml:"output"`
	Delimiter string `mapstructure:"delimiter" yaml:"delimiter"`
	TimeField int    `mapstructure:"time_field" yaml:"time_field"`
	Format    string `mapstructure:"format" yaml:"format"`

	SingleHeader bool `mapstructure:"single_header" yaml:"single_header"`
	Restricted   bool `mapstructure:"restricted" yaml:"restricted"`
	Microsoft    bool `mapstructure:"microsoft" yaml:"microsoft"`
}

// Defaults returns the built-in configuration.
func Defaults() *Global {
	return &Global{
		Diff:      "0.01",
		Output:    "aligncsv.csv",
		Delimiter: ",",
		TimeField: 1,
		Format:    "csv",
	}
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".aligncsv"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.aligncsv/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := configDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. Command flags are applied by the caller.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("ALIGNCSV")
	v.AutomaticEnv()

	d := Defaults()
	v.SetDefault("diff", d.Diff)
	v.SetDefault("output", d.Output)
	v.SetDefault("delimiter", d.Delimiter)
	v.SetDefault("time_field", d.TimeField)
	v.SetDefault("format", d.Format)
	v.SetDefault("single_header", d.SingleHeader)
	v.SetDefault("restricted", d.Restricted)
	v.SetDefault("microsoft", d.Microsoft)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := configDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	switch c.Delimiter {
	case "tab", "auto":
	default:
		if len(c.Delimiter) != 1 {
			return nil, fmt.Errorf("delimiter must be a single byte, \"tab\" or \"auto\", got %q", c.Delimiter)
		}
	}
	return &c, nil
}
