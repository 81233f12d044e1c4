package nutrition

import (
	"math"
	"strings"
)

// Status is the qualitative verdict on a nutrient amount.
type Status string

const (
	StatusLow       Status = "low"
	StatusAdequate  Status = "adequate"
	StatusHigh      Status = "high"
	StatusExcellent Status = "excellent"
	StatusExcessive Status = "excessive"
)

// Category says which direction is good for a nutrient.
type Category int

const (
	// CategoryBeneficial nutrients should reach their target.
	CategoryBeneficial Category = iota
	// CategoryLimit nutrients should stay under their target.
	CategoryLimit
)

func (c Category) String() string {
	if c == CategoryLimit {
		return "limit"
	}
	return "beneficial"
}

func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(b []byte) error {
	if string(b) == "limit" {
		*c = CategoryLimit
	} else {
		*c = CategoryBeneficial
	}
	return nil
}

// limitNutrients are matched as substrings of the normalized name, so
// "Added Sugars" and "Sodium, Na" both count.
var limitNutrients = []string{
	"sodium", "saturated_fat", "trans_fat", "cholesterol", "added_sugar", "sugar",
}

// CategoryOf classifies a nutrient name as limit or beneficial.
func CategoryOf(name string) Category {
	n := NormalizeName(name)
	for _, limit := range limitNutrients {
		if strings.Contains(n, limit) {
			return CategoryLimit
		}
	}
	return CategoryBeneficial
}

// NutrientReading is one nutrient amount as reported by an upstream source.
// Unit is informational only; amounts are never converted between units.
type NutrientReading struct {
	Name              string   `json:"name"`
	Amount            float64  `json:"amount"`
	Unit              string   `json:"unit"`
	PercentDailyValue *float64 `json:"percent_daily_value,omitempty"`
}

// NutrientEvaluation is the derived verdict for one reading. A zero
// PersonalizedTarget means no model exists for the nutrient and
// PersonalizedDailyValuePercent is the reported %DV.
type NutrientEvaluation struct {
	PersonalizedDailyValuePercent int      `json:"personalized_dv"`
	PersonalizedTarget            float64  `json:"personalized_target"`
	Status                        Status   `json:"status"`
	Category                      Category `json:"category"`
	IsLimitNutrient               bool     `json:"is_limit_nutrient"`
	Recommendation                string   `json:"recommendation"`
}

// Classify maps a percentage of target to a status and a fixed recommendation.
func Classify(percentage float64, category Category) (Status, string) {
	if category == CategoryLimit {
		switch {
		case percentage >= 100:
			return StatusExcessive, "Consider reducing intake - above recommended limit"
		case percentage >= 75:
			return StatusHigh, "Approaching limit - monitor intake"
		case percentage >= 50:
			return StatusAdequate, "Moderate level - within healthy range"
		default:
			return StatusLow, "Good - well below limit"
		}
	}

	switch {
	case percentage >= 100:
		return StatusExcellent, "Excellent - meets or exceeds target"
	case percentage >= 75:
		return StatusHigh, "Good - close to target"
	case percentage >= 50:
		return StatusAdequate, "Adequate - could be higher for optimal health"
	case percentage >= 25:
		return StatusLow, "Low - consider increasing intake"
	default:
		return StatusLow, "Very low - significantly below target"
	}
}

// EvaluateNutrient computes the personalized target for r and classifies r
// against it. When no target can be computed, the reading's reported %DV
// (0 when absent) is used both as the result percentage and for classification.
func EvaluateNutrient(r NutrientReading, p UserProfile) NutrientEvaluation {
	category := CategoryOf(r.Name)
	target := ComputeTarget(r.Name, p)

	var percentage float64
	if target > 0 {
		percentage = r.Amount / target * 100
	} else if r.PercentDailyValue != nil {
		percentage = *r.PercentDailyValue
	}

	status, recommendation := Classify(percentage, category)
	return NutrientEvaluation{
		PersonalizedDailyValuePercent: int(math.Round(percentage)),
		PersonalizedTarget:            target,
		Status:                        status,
		Category:                      category,
		IsLimitNutrient:               category == CategoryLimit,
		Recommendation:                recommendation,
	}
}
