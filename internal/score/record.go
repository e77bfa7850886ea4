// Package score defines the normalized scoring record and the normalization
// of raw model output into it.
package score

// Record is the normalized scoring outcome for exactly one candidate.
// Every numeric field lies in [0.0, 1.0] after normalization. Records are
// created once by Normalize and never mutated; they may be cached across
// runs keyed by the candidate's content fingerprint.
type Record struct {
	OverallScore       float64 `json:"overall_score"`
	Sharpness          float64 `json:"sharpness"`
	SubjectVisibility  float64 `json:"subject_visibility"`
	Composition        float64 `json:"composition"`
	DuplicationPenalty float64 `json:"duplication_penalty"`
	Reasoning          string  `json:"reasoning"`
}
