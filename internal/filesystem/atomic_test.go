package filesystem

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileAtomicNewFile(t *testing.T) {
	target := filepath.Join(t.TempDir(), "track.mp3")
	data := []byte("audio bytes")

	if err := WriteFileAtomic(target, data, 0o644); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}

	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("reading target: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("content = %q, want %q", got, data)
	}
}

func TestWriteFileAtomicOverwrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "track.flac")
	if err := os.WriteFile(target, []byte("old tags"), 0o644); err != nil {
		t.Fatalf("seeding file: %v", err)
	}

	if err := WriteFileAtomic(target, []byte("new tags"), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}

	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("reading target: %v", err)
	}
	if string(got) != "new tags" {
		t.Errorf("content = %q, want new tags", got)
	}
}

func TestWriteFileAtomicNoLeftovers(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "track.mp3")
	if err := os.WriteFile(target, []byte("v1"), 0o644); err != nil {
		t.Fatalf("seeding file: %v", err)
	}
	if err := WriteFileAtomic(target, []byte("v2"), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}

	for _, suffix := range []string{".tmp", ".bak"} {
		if _, err := os.Stat(target + suffix); !os.IsNotExist(err) {
			t.Errorf("expected %s to be cleaned up", target+suffix)
		}
	}
}

func TestWriteFileAtomicCreatesParentDir(t *testing.T) {
	target := filepath.Join(t.TempDir(), "artist", "album", "track.mp3")

	if err := WriteFileAtomic(target, []byte("nested"), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected target to exist: %v", err)
	}
}

func TestWriteFileAtomicRepeatedWrites(t *testing.T) {
	target := filepath.Join(t.TempDir(), "track.mp3")

	for i := 0; i < 5; i++ {
		data := []byte{byte('a' + i)}
		if err := WriteFileAtomic(target, data, 0o644); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		got, err := os.ReadFile(target)
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("write %d: content = %q, want %q", i, got, data)
		}
	}
}
