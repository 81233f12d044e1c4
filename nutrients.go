package main

import (
	"math"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"lg/meal-nutrition-go-api/nutrition"
)

const maxEvaluateNutrients = 200

// evaluateReadings pairs every reading with its evaluation against p.
func evaluateReadings(readings []nutrition.NutrientReading, p nutrition.UserProfile) []evaluatedNutrient {
	out := make([]evaluatedNutrient, 0, len(readings))
	for _, r := range readings {
		out = append(out, evaluatedNutrient{
			NutrientReading: r,
			Evaluation:      nutrition.EvaluateNutrient(r, p),
		})
	}
	return out
}

// getNutrientTargets returns the personalized daily target for every modeled
// nutrient, plus the energy figures they derive from.
// GET /api/nutrients/targets.
func (h *Handler) getNutrientTargets(c *gin.Context) {
	userID := c.GetInt("user_id")
	p := h.loadEngineProfile(c, userID)

	targets := make([]nutrientTarget, 0, len(nutrition.ModeledNutrients))
	for _, name := range nutrition.ModeledNutrients {
		targets = append(targets, nutrientTarget{
			Name:     name,
			Target:   nutrition.ComputeTarget(name, p),
			Unit:     nutrition.TargetUnit(name),
			Category: nutrition.CategoryOf(name),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"profile":  p,
		"age_band": nutrition.AgeBandFor(p.Age).String(),
		"bmr":      int(math.Round(nutrition.ComputeBMR(p))),
		"tdee":     nutrition.ComputeTDEE(p),
		"targets":  targets,
	})
}

// evaluateNutrients classifies caller-supplied readings against the user's
// profile and returns per-nutrient verdicts plus batch insights.
// POST /api/nutrients/evaluate. Body: { "nutrients": [{name, amount, unit, percent_daily_value?}] }.
func (h *Handler) evaluateNutrients(c *gin.Context) {
	userID := c.GetInt("user_id")

	var body evaluateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(body.Nutrients) > maxEvaluateNutrients {
		apiError(c, http.StatusBadRequest, "too many nutrients")
		return
	}
	for i, r := range body.Nutrients {
		if strings.TrimSpace(r.Name) == "" {
			apiError(c, http.StatusBadRequest, "every nutrient needs a name")
			return
		}
		if r.Amount < 0 {
			apiError(c, http.StatusBadRequest, "nutrient amounts must not be negative")
			return
		}
		body.Nutrients[i].Name = strings.TrimSpace(r.Name)
	}

	p := h.loadEngineProfile(c, userID)

	c.JSON(http.StatusOK, evaluateResponse{
		Nutrients: evaluateReadings(body.Nutrients, p),
		Insights:  nutrition.EvaluateNutrientBatch(body.Nutrients, p),
	})
}
