package score

import (
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Normalize validates and repairs a raw scoring response into a Record.
//
// For each numeric field the raw value is used when present and numeric
// (numeric strings count), clamped into [0.0, 1.0]; anything absent or
// non-numeric falls back to 0.0. A legacy top-level "score" key fills
// "overall_score" when the latter is absent. "reasoning" must be a string,
// otherwise it defaults to empty.
//
// Normalize never fails: malformed model output degrades to a well-typed
// low-confidence record rather than aborting the pipeline. Persistence is
// the caller's concern.
func Normalize(raw string) Record {
	overall := gjson.Get(raw, "overall_score")
	if !overall.Exists() {
		overall = gjson.Get(raw, "score")
	}

	rec := Record{
		OverallScore:       unitInterval(overall),
		Sharpness:          unitInterval(gjson.Get(raw, "sharpness")),
		SubjectVisibility:  unitInterval(gjson.Get(raw, "subject_visibility")),
		Composition:        unitInterval(gjson.Get(raw, "composition")),
		DuplicationPenalty: unitInterval(gjson.Get(raw, "duplication_penalty")),
	}

	if reasoning := gjson.Get(raw, "reasoning"); reasoning.Type == gjson.String {
		rec.Reasoning = reasoning.Str
	}

	return rec
}

// InjectNormalized writes the normalized values of rec back into the raw
// response JSON so that the persisted raw payload always reflects the values
// the pipeline acted on. Invalid raw input is replaced by a fresh object.
func InjectNormalized(raw string, rec Record) string {
	if !gjson.Valid(raw) {
		raw = "{}"
	}

	out := raw
	out, _ = sjson.Set(out, "overall_score", rec.OverallScore)
	out, _ = sjson.Set(out, "sharpness", rec.Sharpness)
	out, _ = sjson.Set(out, "subject_visibility", rec.SubjectVisibility)
	out, _ = sjson.Set(out, "composition", rec.Composition)
	out, _ = sjson.Set(out, "duplication_penalty", rec.DuplicationPenalty)
	out, _ = sjson.Set(out, "reasoning", rec.Reasoning)
	return out
}

// unitInterval coerces a raw JSON value into [0.0, 1.0], defaulting to 0.0.
// Matches the loose float coercion the scoring prompt's consumers historically
// applied: numbers and numeric strings pass, everything else defaults.
func unitInterval(v gjson.Result) float64 {
	switch v.Type {
	case gjson.Number:
		return clamp01(v.Num)
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return 0.0
		}
		return clamp01(f)
	default:
		return 0.0
	}
}

func clamp01(f float64) float64 {
	// ParseFloat accepts "NaN" and "Inf"; both must not escape the interval.
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0.0
	}
	if f < 0.0 {
		return 0.0
	}
	if f > 1.0 {
		return 1.0
	}
	return f
}
