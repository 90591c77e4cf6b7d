package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Override92/tid3/internal/event"
)

// SourceError records a per-source failure during an aggregated search.
type SourceError struct {
	Source SourceName `json:"source"`
	Error  string     `json:"error"`
}

// SearchOutcome holds the aggregated result of querying every registered
// source for one track.
type SearchOutcome struct {
	TrackPath  string             `json:"track_path"`
	Query      string             `json:"query"`
	Candidates []CandidateRelease `json:"candidates"`
	Errors     []SourceError      `json:"errors,omitempty"`
	Elapsed    time.Duration      `json:"elapsed"`
}

// Orchestrator fans a search out across all registered sources, caches the
// combined candidate list per track and publishes completion events.
// Sources run sequentially; each one already throttles itself through the
// shared rate limiter map.
type Orchestrator struct {
	registry *Registry
	cache    *ResultCache
	bus      *event.Bus
	logger   *slog.Logger
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(registry *Registry, cache *ResultCache, bus *event.Bus, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		cache:    cache,
		bus:      bus,
		logger:   logger.With(slog.String("component", "orchestrator")),
	}
}

// Search queries every registered text source with the given query and
// stores the combined candidates under trackPath. Sources that fail are
// recorded in the outcome and skipped; the search only errors when no
// source could be queried at all.
func (o *Orchestrator) Search(ctx context.Context, trackPath, query string) (*SearchOutcome, error) {
	started := time.Now()
	outcome := &SearchOutcome{TrackPath: trackPath, Query: query}

	sources := o.registry.All()
	if len(sources) == 0 {
		return nil, fmt.Errorf("no sources registered")
	}

	for _, src := range sources {
		results, err := src.SearchReleases(ctx, query)
		if err != nil {
			var noResults *ErrNoResults
			if errors.As(err, &noResults) {
				// An empty result set is an answer, not a failure.
				continue
			}
			o.logger.Warn("source search failed",
				slog.String("source", string(src.Name())),
				slog.String("error", err.Error()))
			outcome.Errors = append(outcome.Errors, SourceError{
				Source: src.Name(),
				Error:  err.Error(),
			})
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		outcome.Candidates = append(outcome.Candidates, results...)
	}

	o.finish(trackPath, outcome, started)
	return outcome, nil
}

// LookupFingerprint queries every registered fingerprint source with a
// chromaprint fingerprint and duration in seconds, merging candidates into
// any cached text-search results for the track.
func (o *Orchestrator) LookupFingerprint(ctx context.Context, trackPath, fingerprint string, duration int) (*SearchOutcome, error) {
	started := time.Now()
	outcome := &SearchOutcome{TrackPath: trackPath, Query: "fingerprint"}

	sources := o.registry.AllFingerprints()
	if len(sources) == 0 {
		return nil, fmt.Errorf("no fingerprint sources registered")
	}

	for _, src := range sources {
		results, err := src.LookupFingerprint(ctx, fingerprint, duration)
		if err != nil {
			var noResults *ErrNoResults
			if errors.As(err, &noResults) {
				continue
			}
			o.logger.Warn("fingerprint lookup failed",
				slog.String("source", string(src.Name())),
				slog.String("error", err.Error()))
			outcome.Errors = append(outcome.Errors, SourceError{
				Source: src.Name(),
				Error:  err.Error(),
			})
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		outcome.Candidates = append(outcome.Candidates, results...)
	}

	// Fingerprint hits extend, never replace, prior text-search candidates.
	if prior := o.cache.Get(trackPath); len(prior) > 0 {
		outcome.Candidates = append(prior, outcome.Candidates...)
	}

	o.finish(trackPath, outcome, started)
	return outcome, nil
}

// Cached returns the cached candidates for a track path, or nil.
func (o *Orchestrator) Cached(trackPath string) []CandidateRelease {
	return o.cache.Get(trackPath)
}

func (o *Orchestrator) finish(trackPath string, outcome *SearchOutcome, started time.Time) {
	outcome.Elapsed = time.Since(started)
	o.cache.Put(trackPath, outcome.Candidates)

	o.logger.Info("search completed",
		slog.String("track", trackPath),
		slog.Int("candidates", len(outcome.Candidates)),
		slog.Int("errors", len(outcome.Errors)),
		slog.Duration("elapsed", outcome.Elapsed))

	if o.bus != nil {
		o.bus.Publish(event.Event{
			Type: event.SearchCompleted,
			Data: map[string]any{
				"track_path": trackPath,
				"candidates": len(outcome.Candidates),
			},
		})
	}
}
