// Package fingerprint generates chromaprint audio fingerprints with the
// fpcalc tool and resolves them to candidate releases.
package fingerprint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/Override92/tid3/internal/provider"
)

// ErrFpcalcNotFound is returned when the fpcalc binary cannot be found.
var ErrFpcalcNotFound = errors.New("fpcalc binary not found")

// Result is a generated fingerprint with the decoded duration in seconds.
type Result struct {
	Duration    int    `json:"duration"`
	Fingerprint string `json:"fingerprint"`
}

// Generator shells out to fpcalc to compute chromaprint fingerprints.
type Generator struct {
	fpcalcPath string
	logger     *slog.Logger
}

// NewGenerator creates a Generator. An empty path resolves "fpcalc" from PATH.
func NewGenerator(fpcalcPath string, logger *slog.Logger) *Generator {
	if fpcalcPath == "" {
		fpcalcPath = "fpcalc"
	}
	return &Generator{
		fpcalcPath: fpcalcPath,
		logger:     logger.With(slog.String("component", "fingerprint")),
	}
}

// IsAvailable reports whether the fpcalc binary can be resolved.
func (g *Generator) IsAvailable() bool {
	_, err := exec.LookPath(g.fpcalcPath)
	return err == nil
}

// Generate computes the fingerprint for an audio file.
func (g *Generator) Generate(ctx context.Context, path string) (*Result, error) {
	if _, err := exec.LookPath(g.fpcalcPath); err != nil {
		return nil, ErrFpcalcNotFound
	}

	cmd := exec.CommandContext(ctx, g.fpcalcPath, "-json", path)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	g.logger.Debug("running fpcalc", slog.String("path", path))

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("fpcalc failed: %w (%s)", err, bytes.TrimSpace(stderr.Bytes()))
	}

	// fpcalc -json reports duration as a float; truncate for the lookup API.
	var raw struct {
		Duration    float64 `json:"duration"`
		Fingerprint string  `json:"fingerprint"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &raw); err != nil {
		return nil, fmt.Errorf("parsing fpcalc output: %w", err)
	}
	if raw.Fingerprint == "" {
		return nil, fmt.Errorf("fpcalc produced no fingerprint for %s", path)
	}
	return &Result{
		Duration:    int(raw.Duration),
		Fingerprint: raw.Fingerprint,
	}, nil
}

// Service combines fingerprint generation with source lookup.
type Service struct {
	generator    *Generator
	orchestrator *provider.Orchestrator
}

// NewService creates a fingerprint identification service.
func NewService(generator *Generator, orchestrator *provider.Orchestrator) *Service {
	return &Service{generator: generator, orchestrator: orchestrator}
}

// IsEnabled reports whether identification can run on this system.
func (s *Service) IsEnabled() bool {
	return s.generator.IsAvailable()
}

// Identify fingerprints the file at path and resolves it to candidate
// releases, merging them into the track's cached search results.
func (s *Service) Identify(ctx context.Context, path string) (*provider.SearchOutcome, error) {
	fp, err := s.generator.Generate(ctx, path)
	if err != nil {
		return nil, err
	}
	return s.orchestrator.LookupFingerprint(ctx, path, fp.Fingerprint, fp.Duration)
}
