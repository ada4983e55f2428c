package script

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Writer persists rendered scripts into one directory.
//
// Scripts are written to a temp file in the same directory and renamed into
// place, so a reader never sees a half-written script.
type Writer struct {
	dir string
}

// NewWriter returns a writer for dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: strings.TrimSpace(dir)}
}

// Dir returns the target directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Path returns where the script called name is written.
func (w *Writer) Path(name string) string {
	return filepath.Join(w.dir, name+".sh")
}

// Write stores text as <dir>/<name>.sh with mode 0755 and returns the path.
func (w *Writer) Write(name, text string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("script name is required")
	}
	if w.dir == "" {
		return "", fmt.Errorf("script dir is empty")
	}
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("create script dir: %w", err)
	}

	tmp, err := os.CreateTemp(w.dir, name+".sh.tmp.*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.WriteString(text); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write temp script: %w", err)
	}
	if err := tmp.Chmod(0755); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("chmod temp script: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp script: %w", err)
	}

	path := w.Path(name)
	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("rename script: %w", err)
	}
	return path, nil
}
