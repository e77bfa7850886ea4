package mediafile

import (
	"sort"

	"mediacull/internal/score"
)

// Candidate is one scorable unit: a photo file, or a clip split from a source
// video. Identity is derived from file content, so renamed or relocated files
// keep the same identity across runs. StartTime/EndTime are populated for
// clips only, in seconds relative to the source. PerceptualHash is the
// 16-character hex form of the 64-bit average hash, empty when unavailable.
type Candidate struct {
	Identity       string  `json:"identity"`
	SourceID       string  `json:"source_id"`
	Path           string  `json:"path"`
	StartTime      float64 `json:"start_time,omitempty"`
	EndTime        float64 `json:"end_time,omitempty"`
	PerceptualHash string  `json:"perceptual_hash,omitempty"`
}

// Duration returns the clip length in seconds, zero for photos.
func (c Candidate) Duration() float64 {
	return c.EndTime - c.StartTime
}

// ScoredCandidate pairs a Candidate with its normalized score record.
type ScoredCandidate struct {
	Candidate
	Score score.Record `json:"score"`
}

// SortStable orders candidates in place by start time then path. This is the
// stable order used for dedup clustering and for presentation.
func SortStable(cands []ScoredCandidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].StartTime != cands[j].StartTime {
			return cands[i].StartTime < cands[j].StartTime
		}
		return cands[i].Path < cands[j].Path
	})
}

// SortByScore orders candidates in place by overall score descending. The
// sort is stable so equal scores preserve their incoming order.
func SortByScore(cands []ScoredCandidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].Score.OverallScore > cands[j].Score.OverallScore
	})
}
