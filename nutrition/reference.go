package nutrition

import (
	"math"
	"sort"
	"strings"
)

// ReferenceValue is an FDA reference daily value for a 2,000 kcal adult diet.
type ReferenceValue struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
	Limit bool    `json:"limit"`
}

// referenceDailyValues is keyed by referenceKey of the nutrient name.
var referenceDailyValues = map[string]ReferenceValue{
	// Macronutrients
	"protein":            {50, "g", false},
	"carbohydrates":      {275, "g", false},
	"carbs":              {275, "g", false},
	"total_carbohydrate": {275, "g", false},
	"fat":                {78, "g", false},
	"total_fat":          {78, "g", false},
	"saturated_fat":      {20, "g", true},
	"dietary_fiber":      {28, "g", false},
	"fiber":              {28, "g", false},
	"sugar":              {50, "g", true},
	"total_sugar":        {50, "g", true},
	"added_sugar":        {50, "g", true},
	"cholesterol":        {300, "mg", true},

	// Minerals
	"sodium":     {2300, "mg", true},
	"potassium":  {4700, "mg", false},
	"calcium":    {1300, "mg", false},
	"iron":       {18, "mg", false},
	"phosphorus": {1250, "mg", false},
	"magnesium":  {420, "mg", false},
	"zinc":       {11, "mg", false},
	"copper":     {0.9, "mg", false},
	"manganese":  {2.3, "mg", false},
	"selenium":   {55, "mcg", false},
	"chromium":   {35, "mcg", false},
	"molybdenum": {45, "mcg", false},
	"chloride":   {2300, "mg", false},
	"iodine":     {150, "mcg", false},

	// Vitamins
	"vitamin_a":        {900, "mcg", false},
	"vitamin_c":        {90, "mg", false},
	"vitamin_d":        {20, "mcg", false},
	"vitamin_e":        {15, "mg", false},
	"vitamin_k":        {120, "mcg", false},
	"thiamin":          {1.2, "mg", false},
	"thiamine":         {1.2, "mg", false},
	"riboflavin":       {1.3, "mg", false},
	"niacin":           {16, "mg", false},
	"vitamin_b1":       {1.2, "mg", false},
	"vitamin_b2":       {1.3, "mg", false},
	"vitamin_b3":       {16, "mg", false},
	"vitamin_b5":       {5, "mg", false},
	"vitamin_b6":       {1.7, "mg", false},
	"vitamin_b7":       {30, "mcg", false},
	"vitamin_b9":       {400, "mcg", false},
	"folate":           {400, "mcg", false},
	"folic_acid":       {400, "mcg", false},
	"vitamin_b12":      {2.4, "mcg", false},
	"biotin":           {30, "mcg", false},
	"pantothenic_acid": {5, "mg", false},
	"choline":          {550, "mg", false},
}

// referenceKey is NormalizeName that keeps digits, so B-vitamins stay distinct.
func referenceKey(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// ReferenceDailyValue looks up the FDA reference daily value for a nutrient.
// Plural names ("Sugars", "Carbohydrates") match their singular entry.
func ReferenceDailyValue(name string) (ReferenceValue, bool) {
	n := referenceKey(name)
	if v, ok := referenceDailyValues[n]; ok {
		return v, true
	}
	v, ok := referenceDailyValues[strings.TrimSuffix(n, "s")]
	return v, ok
}

// FillReferencePercent sets r.PercentDailyValue from the reference table when
// the reading has none. Readings that already carry a %DV are returned as is.
func FillReferencePercent(r NutrientReading) NutrientReading {
	if r.PercentDailyValue != nil {
		return r
	}
	ref, ok := ReferenceDailyValue(r.Name)
	if !ok || ref.Value <= 0 {
		return r
	}
	pct := math.Round(r.Amount / ref.Value * 100)
	r.PercentDailyValue = &pct
	return r
}

// NutrientGroups buckets micronutrients by family.
type NutrientGroups struct {
	Vitamins []NutrientReading `json:"vitamins"`
	Minerals []NutrientReading `json:"minerals"`
	Other    []NutrientReading `json:"other"`
}

var (
	vitaminNames = []string{"vitamin", "thiamin", "riboflavin", "niacin", "folate", "biotin"}
	mineralNames = []string{"calcium", "iron", "zinc", "magnesium", "potassium", "phosphorus", "selenium", "copper", "manganese"}
)

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// GroupMicronutrients splits readings into vitamins, minerals and everything
// else, each sorted by reported %DV, highest first.
func GroupMicronutrients(readings []NutrientReading) NutrientGroups {
	g := NutrientGroups{
		Vitamins: []NutrientReading{},
		Minerals: []NutrientReading{},
		Other:    []NutrientReading{},
	}
	for _, r := range readings {
		name := strings.ToLower(r.Name)
		switch {
		case containsAny(name, vitaminNames):
			g.Vitamins = append(g.Vitamins, r)
		case containsAny(name, mineralNames):
			g.Minerals = append(g.Minerals, r)
		default:
			g.Other = append(g.Other, r)
		}
	}
	for _, group := range [][]NutrientReading{g.Vitamins, g.Minerals, g.Other} {
		sort.SliceStable(group, func(i, j int) bool {
			return percentOf(group[i]) > percentOf(group[j])
		})
	}
	return g
}

func percentOf(r NutrientReading) float64 {
	if r.PercentDailyValue == nil {
		return 0
	}
	return *r.PercentDailyValue
}
