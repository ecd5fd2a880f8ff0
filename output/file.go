package output

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const reportFileMode = 0o644

// replaceFile stores data at path so readers see either the previous report or the new one,
// never a partial write. The data goes to a sibling file that is synced and then renamed over
// path. Missing parent directories are created.
func replaceFile(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}

	staged, err := os.CreateTemp(dir, filepath.Base(path)+".*.partial")
	if err != nil {
		return fmt.Errorf("stage report: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(staged.Name())
		}
	}()

	if err := staged.Chmod(reportFileMode); err != nil {
		staged.Close()
		return fmt.Errorf("stage report: %w", err)
	}
	_, writeErr := staged.Write(data)
	if writeErr == nil {
		writeErr = staged.Sync()
	}
	if err := errors.Join(writeErr, staged.Close()); err != nil {
		return fmt.Errorf("stage report: %w", err)
	}

	if err := os.Rename(staged.Name(), path); err != nil {
		return fmt.Errorf("replace report: %w", err)
	}
	return syncDir(dir)
}

// syncDir flushes dir so a completed rename survives a crash.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("open report directory: %w", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("sync report directory: %w", err)
	}
	return nil
}
