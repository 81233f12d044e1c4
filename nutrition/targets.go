package nutrition

import (
	"math"
	"strings"
)

const (
	kcalPerGramCarb = 4
	kcalPerGramFat  = 9

	sodiumLimitMG      = 2300
	sodiumLimitHeartMG = 1500

	proteinCeilingGPerKG = 2.2
)

// NormalizeName lower-cases a nutrient name and replaces every character that
// is not a letter with an underscore, so "Vitamin C" becomes "vitamin_c" and
// "Saturated Fat" becomes "saturated_fat".
func NormalizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// ModeledNutrients lists the canonical names ComputeTarget has a model for.
var ModeledNutrients = []string{
	"protein", "carbohydrates", "fat", "fiber", "calcium", "iron",
	"vitamin_c", "sodium", "saturated_fat", "sugar",
}

// targetUnits is the unit ComputeTarget's result is expressed in.
var targetUnits = map[string]string{
	"protein": "g", "carbohydrates": "g", "carbs": "g", "fat": "g", "total_fat": "g",
	"fiber": "g", "dietary_fiber": "g", "saturated_fat": "g", "sugar": "g", "added_sugar": "g",
	"calcium": "mg", "iron": "mg", "vitamin_c": "mg", "sodium": "mg",
}

// TargetUnit returns "g" or "mg" for a modeled nutrient and "" otherwise.
func TargetUnit(name string) string {
	return targetUnits[NormalizeName(name)]
}

// ComputeTarget returns the personalized daily target for the named nutrient,
// in grams or milligrams depending on the nutrient, rounded to the nearest
// integer. It returns 0 when no personalized model exists for the name; the
// caller should then fall back to an externally reported %DV.
func ComputeTarget(name string, p UserProfile) float64 {
	m := NormalizeProfile(p)
	male := p.isMale()

	var target float64
	switch NormalizeName(name) {
	case "protein":
		target = m.WeightKG * driProtein.lookup(p.Age, male)
		target *= factorsFor(p.ActivityLevel).protein
		if p.goalMentions("muscle", "strength") {
			target *= 1.3
		} else if p.goalMentions("weight loss") {
			target *= 1.2
		}
		target = math.Min(target, m.WeightKG*proteinCeilingGPerKG)

	case "carbohydrates", "carbs":
		share := 0.50
		switch {
		case isHighActivity(p.ActivityLevel):
			share = 0.60
		case p.goalMentions("weight loss"):
			share = 0.40
		case p.goalMentions("keto", "low carb"):
			share = 0.10
		}
		target = float64(ComputeTDEE(p)) * share / kcalPerGramCarb

	case "fat", "total_fat":
		share := 0.30
		if p.goalMentions("keto") {
			share = 0.70
		} else if p.goalMentions("heart health") {
			share = 0.25
		}
		target = float64(ComputeTDEE(p)) * share / kcalPerGramFat

	case "fiber", "dietary_fiber":
		target = driFiber.lookup(p.Age, male)

	case "calcium":
		target = driCalcium.lookup(p.Age, male)

	case "iron":
		target = driIron.lookup(p.Age, male)

	case "vitamin_c":
		target = driVitaminC.lookup(p.Age, male)
		if isHighActivity(p.ActivityLevel) {
			target *= 1.2
		}

	case "sodium":
		target = sodiumLimitMG
		if p.goalMentions("heart", "blood pressure") {
			target = sodiumLimitHeartMG
		}

	case "saturated_fat":
		// at most 10% of calories
		target = float64(ComputeTDEE(p)) * 0.10 / kcalPerGramFat

	case "sugar", "added_sugar":
		// WHO: at most 10% of calories
		target = float64(ComputeTDEE(p)) * 0.10 / kcalPerGramCarb

	default:
		return 0
	}

	return math.Round(target)
}
