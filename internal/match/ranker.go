package match

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/Override92/tid3/internal/provider"
	"github.com/Override92/tid3/internal/track"
)

// DefaultAutoApplyThreshold is the minimum confidence at which the best
// candidate is applied without user interaction.
const DefaultAutoApplyThreshold = 0.70

// DefaultMaxCandidates caps the ranked list kept per track.
const DefaultMaxCandidates = 5

// Config holds the tunable parameters for ranking and auto-apply.
type Config struct {
	Weights            Weights `yaml:"weights" json:"weights"`
	AutoApplyThreshold float64 `yaml:"auto_apply_threshold" json:"auto_apply_threshold"`
	MaxCandidates      int     `yaml:"max_candidates" json:"max_candidates"`
}

// DefaultConfig returns the standard ranking configuration.
func DefaultConfig() Config {
	return Config{
		Weights:            DefaultWeights(),
		AutoApplyThreshold: DefaultAutoApplyThreshold,
		MaxCandidates:      DefaultMaxCandidates,
	}
}

// Ranked is one scored candidate in a ranked list.
type Ranked struct {
	Candidate provider.CandidateRelease `json:"candidate"`
	Score     float64                   `json:"score"`
}

// RankResult is the outcome of ranking one track's candidates.
type RankResult struct {
	Track       *track.LocalTrack `json:"-"`
	Ranked      []Ranked          `json:"ranked"`
	AutoApplied bool              `json:"auto_applied"`
}

// Best returns the top-ranked candidate, or nil when the list is empty.
func (r *RankResult) Best() *Ranked {
	if len(r.Ranked) == 0 {
		return nil
	}
	return &r.Ranked[0]
}

// BestMatch is the single best (track, candidate, score) triple across a batch.
type BestMatch struct {
	Track     *track.LocalTrack
	Candidate provider.CandidateRelease
	Score     float64
}

// TrackCandidates pairs one track with the candidates a search returned for it.
type TrackCandidates struct {
	Track      *track.LocalTrack
	Candidates []provider.CandidateRelease
}

// Applier receives the winning candidate when the auto-apply threshold is
// met. The reconciliation engine implements this by projecting the candidate
// into a proposed snapshot and building the field comparison.
type Applier interface {
	ApplyCandidate(tr *track.LocalTrack, candidate provider.CandidateRelease) error
}

// Ranker scores and orders candidate releases for local tracks and applies
// the auto-apply policy. Scoring never mutates the track; only the Applier
// callback, fired at or above the threshold, causes a comparison to be built.
type Ranker struct {
	scorer    *Scorer
	threshold float64
	limit     int
	applier   Applier
	logger    *slog.Logger
}

// NewRanker creates a ranker. applier may be nil, in which case the
// auto-apply step is skipped and only ranked lists are produced.
func NewRanker(cfg Config, applier Applier, logger *slog.Logger) *Ranker {
	limit := cfg.MaxCandidates
	if limit <= 0 {
		limit = DefaultMaxCandidates
	}
	threshold := cfg.AutoApplyThreshold
	if threshold <= 0 {
		threshold = DefaultAutoApplyThreshold
	}
	return &Ranker{
		scorer:    NewScorer(cfg.Weights),
		threshold: threshold,
		limit:     limit,
		applier:   applier,
		logger:    logger,
	}
}

// Scorer exposes the underlying scorer for callers that need raw scores.
func (r *Ranker) Scorer() *Scorer { return r.scorer }

// Rank scores candidates for one track, returns them descending by score
// (ties keep the source's original order) capped at the configured limit,
// and auto-applies the best candidate when it reaches the threshold.
// Re-ranking the same inputs yields the same ordering and decision.
func (r *Ranker) Rank(tr *track.LocalTrack, candidates []provider.CandidateRelease, loadedCount int) (*RankResult, error) {
	result := &RankResult{Track: tr}
	if len(candidates) == 0 {
		return result, nil
	}

	ranked := make([]Ranked, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, Ranked{
			Candidate: c,
			Score:     r.scorer.Score(tr, c, loadedCount),
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	if len(ranked) > r.limit {
		ranked = ranked[:r.limit]
	}
	result.Ranked = ranked

	best := result.Best()
	if r.applier != nil && best.Score >= r.threshold {
		if err := r.applier.ApplyCandidate(tr, best.Candidate); err != nil {
			return result, fmt.Errorf("auto-applying candidate: %w", err)
		}
		result.AutoApplied = true
		if r.logger != nil {
			r.logger.Info("auto-applied candidate",
				slog.String("track", tr.DisplayName()),
				slog.String("source", string(best.Candidate.Source)),
				slog.Float64("score", best.Score))
		}
	}

	return result, nil
}

// RankBatch ranks every track's candidates without applying, then applies
// the auto-apply policy once to the single best triple across the whole
// batch. Partial results stay valid if the caller abandons the batch.
func (r *Ranker) RankBatch(batch []TrackCandidates, loadedCount int) ([]*RankResult, *BestMatch, error) {
	results := make([]*RankResult, 0, len(batch))
	var best *BestMatch

	for _, tc := range batch {
		result := &RankResult{Track: tc.Track}
		ranked := make([]Ranked, 0, len(tc.Candidates))
		for _, c := range tc.Candidates {
			ranked = append(ranked, Ranked{
				Candidate: c,
				Score:     r.scorer.Score(tc.Track, c, loadedCount),
			})
		}
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].Score > ranked[j].Score
		})
		if len(ranked) > r.limit {
			ranked = ranked[:r.limit]
		}
		result.Ranked = ranked
		results = append(results, result)

		if top := result.Best(); top != nil {
			if best == nil || top.Score > best.Score {
				best = &BestMatch{Track: tc.Track, Candidate: top.Candidate, Score: top.Score}
			}
		}
	}

	if best == nil || r.applier == nil || best.Score < r.threshold {
		return results, best, nil
	}

	if err := r.applier.ApplyCandidate(best.Track, best.Candidate); err != nil {
		return results, best, fmt.Errorf("auto-applying best candidate: %w", err)
	}
	for _, res := range results {
		if res.Track == best.Track {
			res.AutoApplied = true
		}
	}
	if r.logger != nil {
		r.logger.Info("auto-applied best candidate",
			slog.String("track", best.Track.DisplayName()),
			slog.String("source", string(best.Candidate.Source)),
			slog.Float64("score", best.Score))
	}

	return results, best, nil
}
