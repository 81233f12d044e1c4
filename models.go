package main

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"lg/meal-nutrition-go-api/nutrition"
)

// DateOnly wraps time.Time to serialize as "YYYY-MM-DD" in JSON.
type DateOnly struct{ time.Time }

func (d DateOnly) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Time.Format("2006-01-02") + `"`), nil
}

func (d *DateOnly) UnmarshalJSON(b []byte) error {
	t, err := time.Parse(`"2006-01-02"`, string(b))
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// ScanDate implements pgtype.DateScanner so pgx can scan PostgreSQL date
// columns (OID 1082) into DateOnly. NULL values zero the time and return nil
// so that *DateOnly pointer fields can be set to nil by pgx's NULL handling.
func (d *DateOnly) ScanDate(v pgtype.Date) error {
	if !v.Valid {
		d.Time = time.Time{}
		return nil
	}
	d.Time = v.Time
	return nil
}

/* ─── Domain structs ─────────────────────────────────────────────────── */

// user maps to the users table. AuthToken and Password are hidden from JSON responses.
type user struct {
	ID        int        `json:"id" db:"id"`
	Username  string     `json:"username" db:"username"`
	Email     string     `json:"email" db:"email"`
	AuthToken string     `json:"-" db:"auth_token"`
	Password  string     `json:"-" db:"password"`
	CreatedAt *time.Time `json:"created_at" db:"created_at"`
}

// userProfile maps to user_profiles, one row per user. Body fields are
// nullable so a freshly created user still has a row; the engine fills the
// gaps from nutrition.DefaultProfile.
type userProfile struct {
	UserID           int        `json:"user_id"           db:"user_id"`
	Age              *int       `json:"age"               db:"age"`
	Gender           *string    `json:"gender"            db:"gender"`
	Weight           *float64   `json:"weight"            db:"weight"`
	WeightUnit       string     `json:"weight_unit"       db:"weight_unit"`
	Height           *float64   `json:"height"            db:"height"`
	HeightUnit       string     `json:"height_unit"       db:"height_unit"`
	ActivityLevel    *string    `json:"activity_level"    db:"activity_level"`
	Goal             *string    `json:"goal"              db:"goal"`
	HealthConditions []string   `json:"health_conditions" db:"health_conditions"`
	SetupComplete    bool       `json:"setup_complete"    db:"setup_complete"`
	UpdatedAt        *time.Time `json:"updated_at"        db:"updated_at"`

	// Computed fields, never stored. db:"-" tells RowToStructByName to skip them.
	ComputedBMR  *int     `json:"computed_bmr,omitempty"  db:"-"`
	ComputedTDEE *int     `json:"computed_tdee,omitempty" db:"-"`
	BMI          *float64 `json:"bmi,omitempty"           db:"-"`
	BMICategory  *string  `json:"bmi_category,omitempty"  db:"-"`
}

// meal maps to the meals table. PhotoKey is the S3 object key and stays nil
// when photo storage is disabled.
type meal struct {
	ID           int        `json:"id"            db:"id"`
	UserID       int        `json:"user_id"       db:"user_id"`
	Date         DateOnly   `json:"date"          db:"date"`
	Name         string     `json:"name"          db:"name"`
	Description  string     `json:"description"   db:"description"`
	Calories     int        `json:"calories"      db:"calories"`
	HealthRating *string    `json:"health_rating" db:"health_rating"`
	Confidence   *float64   `json:"confidence"    db:"confidence"`
	PhotoKey     *string    `json:"-"             db:"photo_key"`
	ImageHash    *string    `json:"-"             db:"image_hash"`
	CreatedAt    *time.Time `json:"created_at"    db:"created_at"`
}

// mealNutrient maps to meal_nutrients. Kind is "macro" or "micro".
type mealNutrient struct {
	ID                int      `json:"-"                   db:"id"`
	MealID            int      `json:"-"                   db:"meal_id"`
	Kind              string   `json:"kind"                db:"kind"`
	Position          int      `json:"-"                   db:"position"`
	Name              string   `json:"name"                db:"name"`
	Amount            float64  `json:"amount"              db:"amount"`
	Unit              string   `json:"unit"                db:"unit"`
	PercentDailyValue *float64 `json:"percent_daily_value" db:"percent_daily_value"`
}

func (n mealNutrient) reading() nutrition.NutrientReading {
	return nutrition.NutrientReading{
		Name:              n.Name,
		Amount:            n.Amount,
		Unit:              n.Unit,
		PercentDailyValue: n.PercentDailyValue,
	}
}

// evaluatedNutrient is a reading paired with its personalized verdict.
type evaluatedNutrient struct {
	nutrition.NutrientReading
	Evaluation nutrition.NutrientEvaluation `json:"evaluation"`
}

// mealDetail is the response shape for a single meal: the stored row, its
// nutrients evaluated against the owner's current profile, and insights.
type mealDetail struct {
	meal
	PhotoURL       *string                 `json:"photo_url"`
	Macronutrients []evaluatedNutrient     `json:"macronutrients"`
	Micronutrients nutrientGroupsEvaluated `json:"micronutrients"`
	Insights       nutrition.Insights      `json:"insights"`
}

// nutrientGroupsEvaluated mirrors nutrition.NutrientGroups with evaluations attached.
type nutrientGroupsEvaluated struct {
	Vitamins []evaluatedNutrient `json:"vitamins"`
	Minerals []evaluatedNutrient `json:"minerals"`
	Other    []evaluatedNutrient `json:"other"`
}

// weightEntry maps to weight_log.
type weightEntry struct {
	ID        int        `json:"id"         db:"id"`
	UserID    int        `json:"user_id"    db:"user_id"`
	Date      DateOnly   `json:"date"       db:"date"`
	Weight    float64    `json:"weight"     db:"weight"`
	Unit      string     `json:"unit"       db:"unit"`
	CreatedAt *time.Time `json:"created_at" db:"created_at"`
}

// weekDayDBRow is the shape of each row returned by the per-day GROUP BY query.
// Used only for scanning; the final response uses weekDaySummary.
type weekDayDBRow struct {
	Date     DateOnly `db:"date"`
	Meals    int      `db:"meals"`
	Calories int      `db:"calories"`
	ProteinG float64  `db:"protein_g"`
	CarbsG   float64  `db:"carbs_g"`
	FatG     float64  `db:"fat_g"`
}

// weekDaySummary is one day's entry in the week-summary and progress responses.
// Days with no meals have HasData=false and zero totals.
type weekDaySummary struct {
	Date         DateOnly `json:"date"`
	CalorieGoal  int      `json:"calorie_goal"`
	Meals        int      `json:"meals"`
	Calories     int      `json:"calories"`
	CaloriesLeft int      `json:"calories_left"`
	ProteinG     float64  `json:"protein_g"`
	CarbsG       float64  `json:"carbs_g"`
	FatG         float64  `json:"fat_g"`
	HasData      bool     `json:"has_data"`
}

// progressStats aggregates a progress range. Averages cover tracked days only.
type progressStats struct {
	DaysTracked       int `json:"days_tracked"`
	DaysWithinGoal    int `json:"days_within_goal"`
	AvgCalories       int `json:"avg_calories"`
	TotalMeals        int `json:"total_meals"`
	TotalCaloriesOver int `json:"total_calories_over"`
}

// progressResponse is the response shape for GET /api/meals/progress.
type progressResponse struct {
	Days  []weekDaySummary `json:"days"`
	Stats progressStats    `json:"stats"`
}

// dailySummary is the response shape for GET /api/meals/daily. Nutrients
// are summed by name across the day's meals and evaluated as one batch.
type dailySummary struct {
	Date         string              `json:"date"`
	CalorieGoal  int                 `json:"calorie_goal"`
	Calories     int                 `json:"calories"`
	CaloriesLeft int                 `json:"calories_left"`
	Meals        []meal              `json:"meals"`
	Nutrients    []evaluatedNutrient `json:"nutrients"`
	Insights     nutrition.Insights  `json:"insights"`
}

// patchProfileRequest is the request body for PATCH /api/profile.
// All fields are pointers; only non-nil fields get written to the database.
type patchProfileRequest struct {
	Age              *int      `json:"age"`
	Gender           *string   `json:"gender"`
	Weight           *float64  `json:"weight"`
	WeightUnit       *string   `json:"weight_unit"`
	Height           *float64  `json:"height"`
	HeightUnit       *string   `json:"height_unit"`
	ActivityLevel    *string   `json:"activity_level"`
	Goal             *string   `json:"goal"`
	HealthConditions *[]string `json:"health_conditions"`
	SetupComplete    *bool     `json:"setup_complete"`
}

// evaluateRequest is the request body for POST /api/nutrients/evaluate.
type evaluateRequest struct {
	Nutrients []nutrition.NutrientReading `json:"nutrients"`
}

// evaluateResponse is the response for POST /api/nutrients/evaluate.
type evaluateResponse struct {
	Nutrients []evaluatedNutrient `json:"nutrients"`
	Insights  nutrition.Insights  `json:"insights"`
}

// nutrientTarget is one entry of GET /api/nutrients/targets.
type nutrientTarget struct {
	Name     string             `json:"name"`
	Target   float64            `json:"target"`
	Unit     string             `json:"unit"`
	Category nutrition.Category `json:"category"`
}
