package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrOutputExists is returned when an output file is already present and
// overwriting was not requested.
var ErrOutputExists = errors.New("output file already exists")

// EnsureDir ensures the provided directory exists.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// SafeWriteFile writes data to a temp file and atomically renames it into place.
func SafeWriteFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}

// CreateOutput creates path for writing. Unless force is set, an existing file
// is never truncated and ErrOutputExists is returned instead.
func CreateOutput(path string, force bool) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := EnsureDir(dir); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}
	flag := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("file named %s %w and must be deleted first (or use --force)", path, ErrOutputExists)
		}
		return nil, fmt.Errorf("open output file: %w", err)
	}
	return f, nil
}
