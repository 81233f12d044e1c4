package nutrition

import (
	"math"
	"strings"
)

// ActivityLevel is one of six self-reported activity bands.
type ActivityLevel string

const (
	ActivitySedentary  ActivityLevel = "sedentary"
	ActivityLight      ActivityLevel = "light"
	ActivityModerate   ActivityLevel = "moderate"
	ActivityActive     ActivityLevel = "active"
	ActivityVeryActive ActivityLevel = "very_active"
	ActivityAthlete    ActivityLevel = "athlete"
)

// ActivityLevels lists the bands from least to most active.
var ActivityLevels = []ActivityLevel{
	ActivitySedentary,
	ActivityLight,
	ActivityModerate,
	ActivityActive,
	ActivityVeryActive,
	ActivityAthlete,
}

// activityFactors holds the per-band multipliers. energy scales BMR into TDEE;
// protein scales the DRI protein base.
type activityFactors struct {
	energy  float64
	protein float64
}

// activityMultipliers is the single source of truth for valid activity levels.
// The API also uses it (via IsValidActivityLevel) to reject unknown values.
var activityMultipliers = map[ActivityLevel]activityFactors{
	ActivitySedentary:  {energy: 1.2, protein: 1.0},
	ActivityLight:      {energy: 1.375, protein: 1.1},
	ActivityModerate:   {energy: 1.55, protein: 1.2},
	ActivityActive:     {energy: 1.725, protein: 1.4},
	ActivityVeryActive: {energy: 1.9, protein: 1.6},
	ActivityAthlete:    {energy: 2.0, protein: 1.8},
}

// normalizeActivity folds case and accepts "very active"/"very-active".
func normalizeActivity(a ActivityLevel) ActivityLevel {
	s := strings.ToLower(strings.TrimSpace(string(a)))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	return ActivityLevel(s)
}

// IsValidActivityLevel reports whether a names one of the six bands.
func IsValidActivityLevel(a ActivityLevel) bool {
	_, ok := activityMultipliers[normalizeActivity(a)]
	return ok
}

// ParseActivityLevel returns the canonical band for s, e.g. "Very Active"
// becomes ActivityVeryActive.
func ParseActivityLevel(s string) (ActivityLevel, bool) {
	a := normalizeActivity(ActivityLevel(s))
	_, ok := activityMultipliers[a]
	return a, ok
}

// factorsFor returns the multipliers for a, falling back to moderate.
func factorsFor(a ActivityLevel) activityFactors {
	if f, ok := activityMultipliers[normalizeActivity(a)]; ok {
		return f
	}
	return activityMultipliers[ActivityModerate]
}

func isHighActivity(a ActivityLevel) bool {
	n := normalizeActivity(a)
	return n == ActivityAthlete || n == ActivityVeryActive
}

// ComputeBMR returns the basal metabolic rate in kcal/day using the
// Mifflin-St Jeor equation. It is not rounded.
func ComputeBMR(p UserProfile) float64 {
	m := NormalizeProfile(p)
	bmr := 10*m.WeightKG + 6.25*m.HeightCM - 5*float64(p.Age)
	if p.isMale() {
		return bmr + 5
	}
	return bmr - 161
}

// ComputeTDEE returns total daily energy expenditure in kcal/day: BMR times
// the activity multiplier, rounded to the nearest integer.
func ComputeTDEE(p UserProfile) int {
	return int(math.Round(ComputeBMR(p) * factorsFor(p.ActivityLevel).energy))
}
