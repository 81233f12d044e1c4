package main

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"lg/meal-nutrition-go-api/nutrition"
)

const (
	maxGoalLength       = 200
	maxHealthConditions = 20
	maxConditionLength  = 100
	maxProfileAge       = 120
	maxProfileWeight    = 1000
	maxProfileHeight    = 300
)

var validGenders = map[string]bool{"male": true, "female": true, "other": true}

// toEngineProfile converts a stored profile into the engine's input, filling
// any missing field from nutrition.DefaultProfile.
func toEngineProfile(p userProfile) nutrition.UserProfile {
	ep := nutrition.UserProfile{
		WeightUnit:       nutrition.WeightUnit(p.WeightUnit),
		HeightUnit:       nutrition.HeightUnit(p.HeightUnit),
		HealthConditions: p.HealthConditions,
	}
	if p.Age != nil {
		ep.Age = *p.Age
	}
	if p.Gender != nil {
		ep.Gender = nutrition.Gender(*p.Gender)
	}
	if p.Weight != nil {
		ep.Weight = *p.Weight
	}
	if p.Height != nil {
		ep.Height = *p.Height
	}
	if p.ActivityLevel != nil {
		ep.ActivityLevel = nutrition.ActivityLevel(*p.ActivityLevel)
	}
	if p.Goal != nil {
		ep.Goal = *p.Goal
	}
	return ep.WithDefaults()
}

// profileComplete reports whether every field the energy model needs was
// provided by the user rather than defaulted.
func profileComplete(p userProfile) bool {
	return p.Age != nil && p.Gender != nil && p.Weight != nil &&
		p.Height != nil && p.ActivityLevel != nil
}

// populateComputed fills the computed-only fields on p from the user's
// profile. No-ops if any required profile field is missing.
func populateComputed(p *userProfile) {
	if !profileComplete(*p) {
		return
	}
	ep := toEngineProfile(*p)
	bmr := int(math.Round(nutrition.ComputeBMR(ep)))
	tdee := nutrition.ComputeTDEE(ep)
	p.ComputedBMR = &bmr
	p.ComputedTDEE = &tdee
	if bmi, err := nutrition.ComputeBMI(ep); err == nil {
		bmi = math.Round(bmi*10) / 10
		category := nutrition.BMICategory(bmi)
		p.BMI = &bmi
		p.BMICategory = &category
	}
}

// loadEngineProfile fetches the user's profile for target computation. Any
// failure, including a missing row, yields the default profile so meal
// analysis never blocks on profile setup.
func (h *Handler) loadEngineProfile(c *gin.Context, userID int) nutrition.UserProfile {
	if h.db == nil {
		return nutrition.DefaultProfile
	}
	p, err := queryOne[userProfile](h.db, c,
		"SELECT * FROM user_profiles WHERE user_id = @userID",
		pgx.NamedArgs{"userID": userID})
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			log.Warn().Err(err).Int("user_id", userID).Msg("[profile] falling back to default profile")
		}
		return nutrition.DefaultProfile
	}
	return toEngineProfile(p)
}

// getProfile returns the authenticated user's profile with computed BMR,
// TDEE and BMI when every body field is present.
// GET /api/profile.
func (h *Handler) getProfile(c *gin.Context) {
	userID := c.GetInt("user_id")

	p, err := queryOne[userProfile](h.db, c,
		"SELECT * FROM user_profiles WHERE user_id = @userID",
		pgx.NamedArgs{"userID": userID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			apiError(c, http.StatusNotFound, "profile not found")
		} else {
			apiError(c, http.StatusInternalServerError, "failed to fetch profile")
		}
		return
	}

	populateComputed(&p)

	c.JSON(http.StatusOK, p)
}

// validate checks and normalizes the patch in place. Enum-like fields are
// lower-cased and activity levels are stored in canonical form.
func (body *patchProfileRequest) validate() error {
	if body.Age != nil && (*body.Age < 1 || *body.Age > maxProfileAge) {
		return fmt.Errorf("age must be between 1 and %d", maxProfileAge)
	}
	if body.Gender != nil {
		g := strings.ToLower(strings.TrimSpace(*body.Gender))
		if !validGenders[g] {
			return errors.New("gender must be one of: male, female, other")
		}
		body.Gender = &g
	}
	if body.WeightUnit != nil {
		u := strings.ToLower(strings.TrimSpace(*body.WeightUnit))
		if u != string(nutrition.WeightKG) && u != string(nutrition.WeightLBS) {
			return errors.New("weight_unit must be one of: kg, lbs")
		}
		body.WeightUnit = &u
	}
	if body.HeightUnit != nil {
		u := strings.ToLower(strings.TrimSpace(*body.HeightUnit))
		if u != string(nutrition.HeightCM) && u != string(nutrition.HeightIN) {
			return errors.New("height_unit must be one of: cm, in")
		}
		body.HeightUnit = &u
	}
	// Bounds are loose enough to hold in either unit.
	if body.Weight != nil && (*body.Weight <= 0 || *body.Weight > maxProfileWeight) {
		return fmt.Errorf("weight must be between 0 and %d", maxProfileWeight)
	}
	if body.Height != nil && (*body.Height <= 0 || *body.Height > maxProfileHeight) {
		return fmt.Errorf("height must be between 0 and %d", maxProfileHeight)
	}
	// An unknown level would silently fall back to moderate in every target.
	if body.ActivityLevel != nil {
		a, ok := nutrition.ParseActivityLevel(*body.ActivityLevel)
		if !ok {
			return errors.New("activity_level must be one of: sedentary, light, moderate, active, very_active, athlete")
		}
		s := string(a)
		body.ActivityLevel = &s
	}
	if body.Goal != nil {
		g := strings.TrimSpace(*body.Goal)
		if len(g) > maxGoalLength {
			return fmt.Errorf("goal must be at most %d characters", maxGoalLength)
		}
		body.Goal = &g
	}
	if body.HealthConditions != nil {
		if len(*body.HealthConditions) > maxHealthConditions {
			return fmt.Errorf("at most %d health_conditions allowed", maxHealthConditions)
		}
		conditions := make([]string, 0, len(*body.HealthConditions))
		for _, hc := range *body.HealthConditions {
			hc = strings.TrimSpace(hc)
			if hc == "" {
				continue
			}
			if len(hc) > maxConditionLength {
				return fmt.Errorf("health condition must be at most %d characters", maxConditionLength)
			}
			conditions = append(conditions, hc)
		}
		body.HealthConditions = &conditions
	}
	return nil
}

// patchProfile updates only the provided profile fields.
// PATCH /api/profile. Uses pointer fields in the request body to distinguish
// "not provided" from zero. Only non-nil fields get updated.
func (h *Handler) patchProfile(c *gin.Context) {
	userID := c.GetInt("user_id")

	var body patchProfileRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := body.validate(); err != nil {
		apiError(c, http.StatusBadRequest, err.Error())
		return
	}

	// Build SET clause dynamically: only update fields the client actually sent
	setClauses := []string{}
	args := pgx.NamedArgs{"userID": userID}
	set := func(column, arg string, value any) {
		setClauses = append(setClauses, column+" = @"+arg)
		args[arg] = value
	}

	if body.Age != nil {
		set("age", "age", *body.Age)
	}
	if body.Gender != nil {
		set("gender", "gender", *body.Gender)
	}
	if body.Weight != nil {
		set("weight", "weight", *body.Weight)
	}
	if body.WeightUnit != nil {
		set("weight_unit", "weightUnit", *body.WeightUnit)
	}
	if body.Height != nil {
		set("height", "height", *body.Height)
	}
	if body.HeightUnit != nil {
		set("height_unit", "heightUnit", *body.HeightUnit)
	}
	if body.ActivityLevel != nil {
		set("activity_level", "activityLevel", *body.ActivityLevel)
	}
	if body.Goal != nil {
		set("goal", "goal", *body.Goal)
	}
	if body.HealthConditions != nil {
		set("health_conditions", "healthConditions", *body.HealthConditions)
	}
	if body.SetupComplete != nil {
		set("setup_complete", "setupComplete", *body.SetupComplete)
	}

	if len(setClauses) == 0 {
		apiError(c, http.StatusBadRequest, "no fields to update")
		return
	}

	// Users created before profiles existed have no row yet.
	if _, err := h.db.Exec(c,
		"INSERT INTO user_profiles (user_id) VALUES (@userID) ON CONFLICT (user_id) DO NOTHING",
		pgx.NamedArgs{"userID": userID}); err != nil {
		apiError(c, http.StatusInternalServerError, "failed to update profile")
		return
	}

	query := "UPDATE user_profiles SET " +
		strings.Join(setClauses, ", ") +
		", updated_at = now() WHERE user_id = @userID RETURNING *"

	p, err := queryOne[userProfile](h.db, c, query, args)
	if err != nil {
		log.Error().Err(err).Int("user_id", userID).Msg("[patchProfile] update failed")
		apiError(c, http.StatusInternalServerError, "failed to update profile")
		return
	}

	populateComputed(&p)

	c.JSON(http.StatusOK, p)
}
