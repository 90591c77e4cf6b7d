package match

import (
	"github.com/Override92/tid3/internal/provider"
	"github.com/Override92/tid3/internal/track"
)

// Weights is the per-signal weight table for candidate scoring.
// The defaults sum to 1.0; callers overriding them should keep that
// property or scores will no longer land in [0,1].
type Weights struct {
	Artist     float64 `yaml:"artist" json:"artist"`
	Album      float64 `yaml:"album" json:"album"`
	TrackCount float64 `yaml:"track_count" json:"track_count"`
	Year       float64 `yaml:"year" json:"year"`
	Title      float64 `yaml:"title" json:"title"`
}

// DefaultWeights returns the standard weight table. Artist and album
// dominate; title is a tie-breaker for when the album tag is missing.
func DefaultWeights() Weights {
	return Weights{
		Artist:     0.35,
		Album:      0.30,
		TrackCount: 0.20,
		Year:       0.10,
		Title:      0.05,
	}
}

// Sum returns the total of all five weights.
func (w Weights) Sum() float64 {
	return w.Artist + w.Album + w.TrackCount + w.Year + w.Title
}

// Scorer combines per-field similarities into one confidence score for a
// (local track, candidate release) pair.
type Scorer struct {
	weights Weights
}

// NewScorer creates a scorer with the given weight table.
func NewScorer(weights Weights) *Scorer {
	return &Scorer{weights: weights}
}

// Score rates how well candidate matches tr, in [0,1]. loadedCount is the
// number of tracks currently in the working set and serves as the local
// side of the track-count signal. Pure; never mutates tr.
//
// Every weight contributes to the denominator whether or not its signal
// could be evaluated. With a weight table summing to 1.0 the division is a
// no-op; sparse metadata therefore lowers the score rather than inflating
// the remaining signals.
func (s *Scorer) Score(tr *track.LocalTrack, candidate provider.CandidateRelease, loadedCount int) float64 {
	score := 0.0
	maxScore := s.weights.Sum()
	if maxScore <= 0 {
		return 0.0
	}

	if tr.Artist != "" && candidate.Artist != "" {
		score += s.weights.Artist * Similarity(tr.Artist, candidate.Artist)
	}

	if tr.Album != "" && candidate.Title != "" {
		score += s.weights.Album * Similarity(tr.Album, candidate.Title)
	}

	score += s.trackCountScore(candidate.TrackCount, loadedCount)
	score += s.yearScore(tr.Year, candidate.Year())

	if tr.Title != "" && candidate.Title != "" {
		score += s.weights.Title * Similarity(tr.Title, candidate.Title)
	}

	result := score / maxScore
	if result < 0 {
		return 0.0
	}
	return result
}

// trackCountScore gives full weight for an exact track-count match, linear
// partial credit over a difference of 0..3, and a small flat credit for
// near misses up to a difference of 5.
func (s *Scorer) trackCountScore(candidateCount, loadedCount int) float64 {
	if candidateCount <= 0 || loadedCount <= 0 {
		return 0.0
	}
	diff := candidateCount - loadedCount
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff == 0:
		return s.weights.TrackCount
	case diff <= 2:
		return s.weights.TrackCount * (1.0 - float64(diff)/3.0)
	case diff <= 5:
		return s.weights.TrackCount * 0.3
	default:
		return 0.0
	}
}

// yearScore gives full weight for an exact year match and linear partial
// credit over a difference of 0..3.
func (s *Scorer) yearScore(trackYear, candidateYear uint) float64 {
	if trackYear == 0 || candidateYear == 0 {
		return 0.0
	}
	diff := int(trackYear) - int(candidateYear)
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff == 0:
		return s.weights.Year
	case diff <= 2:
		return s.weights.Year * (1.0 - float64(diff)/3.0)
	default:
		return 0.0
	}
}
