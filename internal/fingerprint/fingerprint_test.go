package fingerprint

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeFpcalc writes an executable script that prints the given output.
func fakeFpcalc(t *testing.T, output string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fpcalc")
	script := "#!/bin/sh\ncat <<'EOF'\n" + output + "\nEOF\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("writing fake fpcalc: %v", err)
	}
	return path
}

func TestGenerate(t *testing.T) {
	fpcalc := fakeFpcalc(t, `{"duration": 301.43, "fingerprint": "AQAAf0mUaEkSJQ"}`)
	g := NewGenerator(fpcalc, testLogger())

	if !g.IsAvailable() {
		t.Fatal("expected generator available")
	}

	result, err := g.Generate(context.Background(), "/music/a.mp3")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.Fingerprint != "AQAAf0mUaEkSJQ" {
		t.Errorf("fingerprint = %s", result.Fingerprint)
	}
	// Duration is truncated to whole seconds for the lookup API.
	if result.Duration != 301 {
		t.Errorf("duration = %d, want 301", result.Duration)
	}
}

func TestGenerateMissingBinary(t *testing.T) {
	g := NewGenerator(filepath.Join(t.TempDir(), "nonexistent"), testLogger())

	if g.IsAvailable() {
		t.Error("expected generator unavailable")
	}
	_, err := g.Generate(context.Background(), "/music/a.mp3")
	if !errors.Is(err, ErrFpcalcNotFound) {
		t.Errorf("expected ErrFpcalcNotFound, got %v", err)
	}
}

func TestGenerateEmptyFingerprint(t *testing.T) {
	fpcalc := fakeFpcalc(t, `{"duration": 10.0, "fingerprint": ""}`)
	g := NewGenerator(fpcalc, testLogger())

	if _, err := g.Generate(context.Background(), "/music/a.mp3"); err == nil {
		t.Error("expected error for empty fingerprint")
	}
}

func TestGenerateMalformedOutput(t *testing.T) {
	fpcalc := fakeFpcalc(t, `not json`)
	g := NewGenerator(fpcalc, testLogger())

	if _, err := g.Generate(context.Background(), "/music/a.mp3"); err == nil {
		t.Error("expected error for malformed fpcalc output")
	}
}
