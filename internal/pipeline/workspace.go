package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
)

// Workspace stages artifacts for one pipeline invocation. Files are written
// into a hidden staging directory and only moved into the artifact directory
// by Commit; Close removes whatever was not committed, so failed invocations
// leave no partial artifacts behind.
type Workspace struct {
	finalDir   string
	stagingDir string
}

// NewWorkspace creates the artifact directory and a staging directory
// beneath it.
func NewWorkspace(finalDir string) (*Workspace, error) {
	if err := os.MkdirAll(finalDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	staging, err := os.MkdirTemp(finalDir, ".staging-")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	return &Workspace{finalDir: finalDir, stagingDir: staging}, nil
}

// WriteFile stages a named artifact and returns the path it will have after
// Commit.
func (w *Workspace) WriteFile(name string, data []byte) (string, error) {
	if err := os.WriteFile(filepath.Join(w.stagingDir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to stage %s: %w", name, err)
	}
	return filepath.Join(w.finalDir, name), nil
}

// Commit moves every staged file into the artifact directory, overwriting
// previous versions of the same name.
func (w *Workspace) Commit() error {
	entries, err := os.ReadDir(w.stagingDir)
	if err != nil {
		return fmt.Errorf("failed to read staging directory: %w", err)
	}
	for _, e := range entries {
		src := filepath.Join(w.stagingDir, e.Name())
		dst := filepath.Join(w.finalDir, e.Name())
		if err := os.Rename(src, dst); err != nil {
			return fmt.Errorf("failed to commit %s: %w", e.Name(), err)
		}
	}
	return nil
}

// Close removes the staging directory and any uncommitted files. Safe to
// defer unconditionally.
func (w *Workspace) Close() {
	os.RemoveAll(w.stagingDir)
}
