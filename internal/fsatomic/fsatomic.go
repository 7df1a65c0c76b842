// Package fsatomic writes rendered view files and pushed files atomically:
// temp file + rename, so a crash mid-write never leaves a half-written file
// for the next diff/status pass to trip over.
package fsatomic

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

// WriteFile writes data to path via a uuid-suffixed temp file in the same
// directory, then renames it into place. The uuid suffix (rather than the
// teacher's PID suffix) avoids collisions when multiple hc invocations
// against the same store run concurrently from the same process group.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	tempPath := fmt.Sprintf("%s.tmp.%s", path, uuid.NewString())

	f, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("fsatomic: create temp file: %w", err)
	}
	defer func() {
		if f != nil {
			_ = f.Close()
			_ = os.Remove(tempPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("fsatomic: write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("fsatomic: close temp file: %w", err)
	}
	f = nil

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("fsatomic: rename into place: %w", err)
	}
	return nil
}
