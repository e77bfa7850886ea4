// Package selection chooses the final candidate subset under a count budget
// (photos) or a duration plus count budget (video clips).
package selection

import (
	"sort"

	"github.com/rs/zerolog/log"

	"mediacull/internal/mediafile"
)

// Photos picks the top targetCount representatives by overall score. The
// sort is stable, so equal scores keep their discovery order. Fewer
// representatives than targetCount returns all of them; the caller reports
// the actual count.
func Photos(reps []mediafile.ScoredCandidate, targetCount int) []mediafile.ScoredCandidate {
	if targetCount < 0 {
		targetCount = 0
	}

	picked := make([]mediafile.ScoredCandidate, len(reps))
	copy(picked, reps)
	mediafile.SortByScore(picked)

	if len(picked) > targetCount {
		picked = picked[:targetCount]
	}
	return picked
}

// ClipResult is the outcome of selecting clips for one source video.
type ClipResult struct {
	// Clips is the admitted set in presentation order (start time ascending).
	Clips []mediafile.ScoredCandidate
	// TotalSeconds is the summed duration of the admitted clips.
	TotalSeconds float64
	// Skipped counts representatives that fit neither remaining budget.
	Skipped int
}

// Clips runs a greedy score-maximizing bounded knapsack over one source's
// representatives: scan in score-descending order, admit while the running
// duration stays within targetDigestSeconds and the count within
// maxSelectedClips. A clip that would overshoot the duration budget is
// skipped, not fatal: a shorter clip later in the scan may still fit. The
// admitted set is then reordered by start time for concatenation.
//
// The scan never backtracks, so the admitted set can be suboptimal for the
// budget. An empty result (nothing fits) is a reportable outcome, not an
// error.
func Clips(reps []mediafile.ScoredCandidate, maxSelectedClips int, targetDigestSeconds float64) ClipResult {
	byScore := make([]mediafile.ScoredCandidate, len(reps))
	copy(byScore, reps)
	mediafile.SortByScore(byScore)

	var res ClipResult
	for _, c := range byScore {
		if len(res.Clips) >= maxSelectedClips {
			// The count bound rejects every remaining candidate.
			res.Skipped = len(byScore) - len(res.Clips)
			break
		}
		d := c.Duration()
		if res.TotalSeconds+d > targetDigestSeconds {
			res.Skipped++
			log.Debug().
				Str("clip", c.Path).
				Float64("duration", d).
				Float64("budget_left", targetDigestSeconds-res.TotalSeconds).
				Msg("Clip over remaining budget, skipped")
			continue
		}
		res.Clips = append(res.Clips, c)
		res.TotalSeconds += d
	}

	sort.SliceStable(res.Clips, func(i, j int) bool {
		return res.Clips[i].StartTime < res.Clips[j].StartTime
	})

	return res
}
