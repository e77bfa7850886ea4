// Package dedupe clusters near-duplicate candidates by perceptual hash
// distance and designates one representative per cluster.
package dedupe

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"mediacull/internal/mediafile"
	"mediacull/internal/phash"
)

// DefaultHammingThreshold is the distance at or under which two candidates
// count as near-duplicates.
const DefaultHammingThreshold = 6

// Scope controls the population clustering runs over for video batches.
type Scope string

const (
	// ScopeGlobal clusters across all source videos in the batch.
	ScopeGlobal Scope = "global"
	// ScopePerSource clusters only within one source's candidates.
	ScopePerSource Scope = "per_source_video"
)

// ParseScope validates a configured scope string.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeGlobal, ScopePerSource:
		return Scope(s), nil
	default:
		return "", fmt.Errorf("invalid dedupe scope %q (want %q or %q)", s, ScopeGlobal, ScopePerSource)
	}
}

// Cluster is a set of candidates judged near-duplicates of one another.
// Members includes the representative. Clusters never overlap.
type Cluster struct {
	Representative mediafile.ScoredCandidate   `json:"representative"`
	Members        []mediafile.ScoredCandidate `json:"members"`
}

// Duplicates returns the non-representative members, the candidates excluded
// from selection but retained in the manifest for traceability.
func (c Cluster) Duplicates() []mediafile.ScoredCandidate {
	dups := make([]mediafile.ScoredCandidate, 0, len(c.Members)-1)
	for _, m := range c.Members {
		if m.Identity != c.Representative.Identity || m.Path != c.Representative.Path {
			dups = append(dups, m)
		}
	}
	return dups
}

// ClusterCandidates groups candidates whose hashes are within threshold of a
// cluster's first member. Candidates are processed in stable order (start
// time, then path); each unclustered candidate opens a cluster and absorbs
// every later unclustered candidate within threshold of that first member.
//
// Distances are measured against the first member only, not transitively:
// two candidates each close to a shared neighbor but not to each other can
// land in separate clusters, and results depend on traversal order.
// Candidates without a parseable hash are never merged.
func ClusterCandidates(cands []mediafile.ScoredCandidate, threshold int) []Cluster {
	ordered := make([]mediafile.ScoredCandidate, len(cands))
	copy(ordered, cands)
	mediafile.SortStable(ordered)

	clustered := make([]bool, len(ordered))
	var clusters []Cluster

	for i := range ordered {
		if clustered[i] {
			continue
		}
		clustered[i] = true
		members := []mediafile.ScoredCandidate{ordered[i]}

		if base, ok := phash.ParseHex(ordered[i].PerceptualHash); ok {
			for j := i + 1; j < len(ordered); j++ {
				if clustered[j] {
					continue
				}
				h, hok := phash.ParseHex(ordered[j].PerceptualHash)
				if !hok {
					continue
				}
				if phash.Distance(base, h) <= threshold {
					clustered[j] = true
					members = append(members, ordered[j])
				}
			}
		}

		clusters = append(clusters, newCluster(members))
	}

	merged := len(ordered) - len(clusters)
	if merged > 0 {
		log.Debug().
			Int("candidates", len(ordered)).
			Int("clusters", len(clusters)).
			Int("near_duplicates", merged).
			Int("threshold", threshold).
			Msg("Dedup clustering complete")
	}

	return clusters
}

// Singletons returns one cluster per candidate regardless of hash, the
// short-circuit used when dedup is disabled.
func Singletons(cands []mediafile.ScoredCandidate) []Cluster {
	clusters := make([]Cluster, 0, len(cands))
	for _, c := range cands {
		clusters = append(clusters, Cluster{Representative: c, Members: []mediafile.ScoredCandidate{c}})
	}
	return clusters
}

// Representatives extracts each cluster's representative, preserving cluster
// order.
func Representatives(clusters []Cluster) []mediafile.ScoredCandidate {
	reps := make([]mediafile.ScoredCandidate, 0, len(clusters))
	for _, c := range clusters {
		reps = append(reps, c.Representative)
	}
	return reps
}

// newCluster picks the representative: highest overall score, ties broken by
// earliest start time, then lexicographic path.
func newCluster(members []mediafile.ScoredCandidate) Cluster {
	best := members[0]
	for _, m := range members[1:] {
		switch {
		case m.Score.OverallScore > best.Score.OverallScore:
			best = m
		case m.Score.OverallScore == best.Score.OverallScore:
			if m.StartTime < best.StartTime ||
				(m.StartTime == best.StartTime && m.Path < best.Path) {
				best = m
			}
		}
	}
	return Cluster{Representative: best, Members: members}
}
