// Package filesystem provides crash-safe file replacement for tag and
// artwork writes.
package filesystem

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteFileAtomic replaces the file at target with data. The new content
// goes to <target>.tmp first, the old file is kept as <target>.bak until
// the rename succeeds, so an interrupted write never leaves a truncated
// audio file behind.
func WriteFileAtomic(target string, data []byte, perm os.FileMode) error {
	tmp := target + ".tmp"
	bak := target + ".bak"

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil { //nolint:gosec // G301: library directories are world-readable
		return fmt.Errorf("creating parent directory: %w", err)
	}

	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}

	if _, err := os.Stat(target); err == nil {
		if err := moveFile(target, bak); err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("backing up existing file: %w", err)
		}
	}

	if err := moveFile(tmp, target); err != nil {
		if _, bakErr := os.Stat(bak); bakErr == nil {
			_ = moveFile(bak, target)
		}
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming temp to target: %w", err)
	}

	_ = os.Remove(bak)
	return nil
}

// moveFile renames, falling back to copy+delete for cross-device moves.
func moveFile(oldPath, newPath string) error {
	err := os.Rename(oldPath, newPath)
	if err == nil {
		return nil
	}
	if copyErr := copyFile(oldPath, newPath); copyErr != nil {
		return fmt.Errorf("copy fallback: %w (rename error: %w)", copyErr, err)
	}
	_ = os.Remove(oldPath)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec // G304: src is an internal temp path
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck

	out, err := os.Create(dst) //nolint:gosec // G304: dst is an internal temp path
	if err != nil {
		return err
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	if err := out.Sync(); err != nil {
		return err
	}
	return out.Close()
}
