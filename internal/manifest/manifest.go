package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/KaramelBytes/aligncsv-cli/internal/align"
	"github.com/KaramelBytes/aligncsv-cli/internal/utils"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Manifest records the inputs, settings and outcome of one alignment run.
type Manifest struct {
	RunID        string    `yaml:"run_id"`
	CreatedAt    time.Time `yaml:"created_at"`
	Output       string    `yaml:"output"`
	Format       string    `yaml:"format"`
	Tolerance    string    `yaml:"tolerance"`
	SingleHeader bool      `yaml:"single_header"`
	Restricted   bool      `yaml:"restricted"`
	Microsoft    bool      `yaml:"microsoft"`
	Inputs       []Input   `yaml:"inputs"`
	Chemicals    int       `yaml:"chemicals"`
	RowsWritten  int       `yaml:"rows_written"`
	RowsDropped  int       `yaml:"rows_dropped"`
}

// Input describes one input file as it was loaded.
type Input struct {
	Path        string `yaml:"path"`
	HeaderRows  int    `yaml:"header_rows"`
	DataColumns int    `yaml:"data_columns"`
	Detections  int    `yaml:"detections"`
	Chemicals   int    `yaml:"chemicals"`
}

// Settings are the run options copied into the manifest.
type Settings struct {
	Output       string
	Format       string
	Tolerance    align.Tolerance
	SingleHeader bool
	Restricted   bool
	Microsoft    bool
}

// New builds a manifest for a completed run. Call Save to persist.
func New(run *align.Run, res *align.Result, written int, s Settings) *Manifest {
	m := &Manifest{
		RunID:        uuid.NewString(),
		CreatedAt:    time.Now().UTC(),
		Output:       s.Output,
		Format:       s.Format,
		Tolerance:    s.Tolerance.String(),
		SingleHeader: s.SingleHeader,
		Restricted:   s.Restricted,
		Microsoft:    s.Microsoft,
		RowsWritten:  written,
	}
	if m.Format == "" {
		m.Format = "csv"
	}
	if res != nil {
		m.Chemicals = res.Chemicals
		m.RowsDropped = res.Dropped
	}
	if run == nil {
		return m
	}
	for _, f := range run.Files {
		rows := 1
		if f.Header.TwoRow {
			rows = 2
		}
		m.Inputs = append(m.Inputs, Input{
			Path:        f.Path,
			HeaderRows:  rows,
			DataColumns: f.Header.DataColumns(),
			Detections:  f.Detections,
			Chemicals:   f.Chemicals(),
		})
	}
	return m
}

// Save writes the manifest to path as YAML using an atomic write.
func (m *Manifest) Save(path string) error {
	if path == "" {
		return errors.New("manifest path not set")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := utils.EnsureDir(dir); err != nil {
			return fmt.Errorf("ensure dir: %w", err)
		}
	}
	b, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return utils.SafeWriteFile(path, b)
}

// Load reads a manifest written by Save.
func Load(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("manifest not found at %s: %w", path, err)
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}
