package nutrition

import "fmt"

// Insights partitions a batch of readings by how well each meets its target.
type Insights struct {
	Excellent      []string `json:"excellent"`
	Adequate       []string `json:"adequate"`
	NeedsAttention []string `json:"needs_attention"`
	Summary        string   `json:"summary"`
}

// EvaluateNutrientBatch evaluates every reading against p and sorts the
// nutrient names into buckets: excellent (excellent or high), adequate, and
// needs-attention (low or excessive). Summary wording depends on the share of
// each bucket. Input order is preserved within each bucket.
func EvaluateNutrientBatch(readings []NutrientReading, p UserProfile) Insights {
	in := Insights{
		Excellent:      []string{},
		Adequate:       []string{},
		NeedsAttention: []string{},
	}
	for _, r := range readings {
		switch EvaluateNutrient(r, p).Status {
		case StatusExcellent, StatusHigh:
			in.Excellent = append(in.Excellent, r.Name)
		case StatusAdequate:
			in.Adequate = append(in.Adequate, r.Name)
		default:
			in.NeedsAttention = append(in.NeedsAttention, r.Name)
		}
	}
	in.Summary = summarize(in, len(readings), p)
	return in
}

func summarize(in Insights, total int, p UserProfile) string {
	excellent := len(in.Excellent)
	adequate := len(in.Adequate)
	attention := len(in.NeedsAttention)

	if total > 0 {
		if float64(excellent)/float64(total) >= 0.7 {
			return fmt.Sprintf("Excellent nutritional profile! %d nutrients are at optimal levels for your %d-year-old %s profile with %s activity.",
				excellent, p.Age, p.Gender, p.ActivityLevel)
		}
		if float64(excellent+adequate)/float64(total) >= 0.6 {
			return fmt.Sprintf("Good nutritional balance overall. Focus on improving %d nutrients that need attention.", attention)
		}
	}
	return fmt.Sprintf("This meal provides a foundation, but %d nutrients could be improved to better match your personalized targets.", attention)
}
