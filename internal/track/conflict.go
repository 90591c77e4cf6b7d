package track

import (
	"os"
	"time"
)

// ConflictCheck describes the result of checking a track file for external
// modification.
type ConflictCheck struct {
	HasConflict  bool       `json:"has_conflict"`
	Reason       string     `json:"reason,omitempty"`
	LastModified *time.Time `json:"last_modified,omitempty"`
}

// CheckFileConflict reports whether the file at path has been modified
// since the given reference time (normally when the track was loaded).
// A missing file is not a conflict; saving will recreate it.
func CheckFileConflict(path string, since time.Time) *ConflictCheck {
	info, err := os.Stat(path)
	if err != nil {
		return &ConflictCheck{HasConflict: false}
	}

	modTime := info.ModTime()
	if modTime.After(since) {
		return &ConflictCheck{
			HasConflict:  true,
			Reason:       "file modified externally since load",
			LastModified: &modTime,
		}
	}

	return &ConflictCheck{
		HasConflict:  false,
		LastModified: &modTime,
	}
}
