package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"lg/meal-nutrition-go-api/nutrition"
)

// dailyTotalsSQL sums calories and the three macros per day. Macros come from
// the meal_nutrients rows the analysis stored, matched by the names the model
// is asked to use.
const dailyTotalsSQL = `
SELECT
	m.date,
	COUNT(*)::int                       AS meals,
	COALESCE(SUM(m.calories), 0)::int   AS calories,
	COALESCE(SUM(x.protein_g), 0)::float8 AS protein_g,
	COALESCE(SUM(x.carbs_g),   0)::float8 AS carbs_g,
	COALESCE(SUM(x.fat_g),     0)::float8 AS fat_g
FROM meals m
LEFT JOIN LATERAL (
	SELECT
		SUM(amount) FILTER (WHERE lower(name) = 'protein')                                          AS protein_g,
		SUM(amount) FILTER (WHERE lower(name) IN ('carbohydrates', 'total carbohydrates', 'carbs')) AS carbs_g,
		SUM(amount) FILTER (WHERE lower(name) IN ('fat', 'total fat'))                              AS fat_g
	FROM meal_nutrients
	WHERE meal_id = m.id AND kind = 'macro'
) x ON true
WHERE m.user_id = @userID AND m.date >= @start AND m.date <= @end
GROUP BY m.date
ORDER BY m.date ASC`

/* ─── Persistence ────────────────────────────────────────────────────── */

// insertMeal stores a meal and its nutrients in one transaction and returns
// the saved rows.
func (h *Handler) insertMeal(ctx context.Context, m meal, nutrients []mealNutrient) (meal, []mealNutrient, error) {
	tx, err := h.db.Begin(ctx)
	if err != nil {
		return m, nil, fmt.Errorf("begin: %w", err)
	}
	// No-op once committed.
	defer tx.Rollback(ctx)

	saved, err := queryOne[meal](tx, ctx,
		`INSERT INTO meals (user_id, date, name, description, calories, health_rating, confidence, photo_key, image_hash)
		 VALUES (@userID, @date, @name, @description, @calories, @healthRating, @confidence, @photoKey, @imageHash)
		 RETURNING *`,
		pgx.NamedArgs{
			"userID": m.UserID, "date": m.Date.Format("2006-01-02"),
			"name": m.Name, "description": m.Description, "calories": m.Calories,
			"healthRating": m.HealthRating, "confidence": m.Confidence,
			"photoKey": m.PhotoKey, "imageHash": m.ImageHash,
		})
	if err != nil {
		return m, nil, fmt.Errorf("insert meal: %w", err)
	}

	batch := &pgx.Batch{}
	for _, n := range nutrients {
		batch.Queue(
			`INSERT INTO meal_nutrients (meal_id, kind, position, name, amount, unit, percent_daily_value)
			 VALUES (@mealID, @kind, @position, @name, @amount, @unit, @pdv)
			 RETURNING *`,
			pgx.NamedArgs{
				"mealID": saved.ID, "kind": n.Kind, "position": n.Position,
				"name": n.Name, "amount": n.Amount, "unit": n.Unit, "pdv": n.PercentDailyValue,
			})
	}
	results := tx.SendBatch(ctx, batch)
	savedNutrients := make([]mealNutrient, 0, len(nutrients))
	for range nutrients {
		rows, err := results.Query()
		if err != nil {
			results.Close()
			return m, nil, fmt.Errorf("insert nutrient: %w", err)
		}
		n, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[mealNutrient])
		if err != nil {
			results.Close()
			return m, nil, fmt.Errorf("scan nutrient: %w", err)
		}
		savedNutrients = append(savedNutrients, n)
	}
	if err := results.Close(); err != nil {
		return m, nil, fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return m, nil, fmt.Errorf("commit: %w", err)
	}
	return saved, savedNutrients, nil
}

// buildMealDetail evaluates a meal's nutrients against p. Macros keep their
// stored order; micros are grouped into vitamins, minerals and other.
func (h *Handler) buildMealDetail(ctx context.Context, m meal, nutrients []mealNutrient, p nutrition.UserProfile) mealDetail {
	macros := []nutrition.NutrientReading{}
	micros := []nutrition.NutrientReading{}
	for _, n := range nutrients {
		if n.Kind == "macro" {
			macros = append(macros, n.reading())
		} else {
			micros = append(micros, n.reading())
		}
	}
	groups := nutrition.GroupMicronutrients(micros)
	all := append(append([]nutrition.NutrientReading{}, macros...), micros...)

	d := mealDetail{
		meal:           m,
		Macronutrients: evaluateReadings(macros, p),
		Micronutrients: nutrientGroupsEvaluated{
			Vitamins: evaluateReadings(groups.Vitamins, p),
			Minerals: evaluateReadings(groups.Minerals, p),
			Other:    evaluateReadings(groups.Other, p),
		},
		Insights: nutrition.EvaluateNutrientBatch(all, p),
	}
	if m.PhotoKey != nil && h.photos != nil {
		url, err := h.photos.PresignedURL(ctx, *m.PhotoKey)
		if err != nil {
			log.Warn().Err(err).Int("meal_id", m.ID).Msg("[meals] presign failed")
		} else {
			d.PhotoURL = &url
		}
	}
	return d
}

// sumNutrients adds up readings that share a name and unit, keeping the
// first-seen spelling. A %DV is summed only over readings that report one.
func sumNutrients(nutrients []mealNutrient) []nutrition.NutrientReading {
	index := map[string]int{}
	out := []nutrition.NutrientReading{}
	for _, n := range nutrients {
		key := strings.ToLower(strings.TrimSpace(n.Name)) + "|" + strings.ToLower(n.Unit)
		i, ok := index[key]
		if !ok {
			index[key] = len(out)
			r := n.reading()
			if r.PercentDailyValue != nil {
				v := *r.PercentDailyValue
				r.PercentDailyValue = &v
			}
			out = append(out, r)
			continue
		}
		out[i].Amount += n.Amount
		if n.PercentDailyValue != nil {
			if out[i].PercentDailyValue == nil {
				v := 0.0
				out[i].PercentDailyValue = &v
			}
			*out[i].PercentDailyValue += *n.PercentDailyValue
		}
	}
	return out
}

// parseRange validates the required start/end query params.
func parseRange(c *gin.Context) (start, end string, ok bool) {
	start = c.Query("start")
	end = c.Query("end")

	if start == "" || end == "" {
		apiError(c, http.StatusBadRequest, "start and end query params are required")
		return "", "", false
	}
	if _, err := time.Parse("2006-01-02", start); err != nil {
		apiError(c, http.StatusBadRequest, "invalid start, expected YYYY-MM-DD")
		return "", "", false
	}
	if _, err := time.Parse("2006-01-02", end); err != nil {
		apiError(c, http.StatusBadRequest, "invalid end, expected YYYY-MM-DD")
		return "", "", false
	}
	if start > end {
		apiError(c, http.StatusBadRequest, "start must not be after end")
		return "", "", false
	}
	return start, end, true
}

// currentMonday returns the Monday of the current week at midnight UTC.
// Uses AddDate to safely handle month/year boundaries; direct day subtraction
// can produce day=0 or negative, which time.Date normalizes but is confusing.
func currentMonday() time.Time {
	return mondayOf(time.Now().UTC())
}

func mondayOf(t time.Time) time.Time {
	weekday := int(t.Weekday()) // 0=Sun
	if weekday == 0 {
		weekday = 7 // treat Sunday as day 7 so Mon=1..Sun=7
	}
	return t.AddDate(0, 0, -(weekday - 1)).Truncate(24 * time.Hour)
}

/* ─── Handlers ───────────────────────────────────────────────────────── */

// listMeals returns the user's meals within [start, end], newest first.
// GET /api/meals?start=YYYY-MM-DD&end=YYYY-MM-DD. Both params required.
func (h *Handler) listMeals(c *gin.Context) {
	userID := c.GetInt("user_id")
	start, end, ok := parseRange(c)
	if !ok {
		return
	}

	meals, err := queryMany[meal](h.db, c,
		`SELECT * FROM meals
		 WHERE user_id = @userID AND date >= @start AND date <= @end
		 ORDER BY date DESC, created_at DESC`,
		pgx.NamedArgs{"userID": userID, "start": start, "end": end})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch meals")
		return
	}
	// Ensure empty array (not null) in JSON
	if meals == nil {
		meals = []meal{}
	}

	c.JSON(http.StatusOK, meals)
}

// getMeal returns one meal with its nutrients evaluated against the user's
// current profile. GET /api/meals/:id.
func (h *Handler) getMeal(c *gin.Context) {
	userID := c.GetInt("user_id")
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		apiError(c, http.StatusBadRequest, "invalid meal id")
		return
	}

	m, err := queryOne[meal](h.db, c,
		"SELECT * FROM meals WHERE id = @id AND user_id = @userID",
		pgx.NamedArgs{"id": id, "userID": userID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			apiError(c, http.StatusNotFound, "meal not found")
		} else {
			apiError(c, http.StatusInternalServerError, "failed to fetch meal")
		}
		return
	}

	nutrients, err := queryMany[mealNutrient](h.db, c,
		"SELECT * FROM meal_nutrients WHERE meal_id = @id ORDER BY position",
		pgx.NamedArgs{"id": id})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch nutrients")
		return
	}

	p := h.loadEngineProfile(c, userID)
	c.JSON(http.StatusOK, h.buildMealDetail(c, m, nutrients, p))
}

// deleteMeal removes a meal, its nutrients (ON DELETE CASCADE) and its photo.
// DELETE /api/meals/:id. Returns 204 on success, 404 if not found.
func (h *Handler) deleteMeal(c *gin.Context) {
	userID := c.GetInt("user_id")
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		apiError(c, http.StatusBadRequest, "invalid meal id")
		return
	}

	var photoKey *string
	err = h.db.QueryRow(c,
		"DELETE FROM meals WHERE id = @id AND user_id = @userID RETURNING photo_key",
		pgx.NamedArgs{"id": id, "userID": userID}).Scan(&photoKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			apiError(c, http.StatusNotFound, "meal not found")
		} else {
			apiError(c, http.StatusInternalServerError, "failed to delete meal")
		}
		return
	}

	if photoKey != nil && h.photos != nil {
		if err := h.photos.Delete(c, *photoKey); err != nil {
			log.Warn().Err(err).Str("key", *photoKey).Msg("[meals] orphaned photo")
		}
	}

	c.Status(http.StatusNoContent)
}

// getDailySummary returns the day's meals, nutrient totals evaluated as one
// batch against the user's profile, and calories against TDEE.
// GET /api/meals/daily?date=YYYY-MM-DD (defaults to today).
func (h *Handler) getDailySummary(c *gin.Context) {
	userID := c.GetInt("user_id")
	date := c.DefaultQuery("date", time.Now().Format("2006-01-02"))

	// Validate date format before querying; an invalid value silently returns no rows.
	if _, err := time.Parse("2006-01-02", date); err != nil {
		apiError(c, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}

	args := pgx.NamedArgs{"userID": userID, "date": date}
	meals, err := queryMany[meal](h.db, c,
		`SELECT * FROM meals
		 WHERE user_id = @userID AND date = @date
		 ORDER BY created_at`, args)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch meals")
		return
	}
	if meals == nil {
		meals = []meal{}
	}

	nutrients, err := queryMany[mealNutrient](h.db, c,
		`SELECT n.* FROM meal_nutrients n
		 JOIN meals m ON m.id = n.meal_id
		 WHERE m.user_id = @userID AND m.date = @date
		 ORDER BY m.created_at, n.position`, args)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch nutrients")
		return
	}

	p := h.loadEngineProfile(c, userID)
	goal := nutrition.ComputeTDEE(p)
	calories := 0
	for _, m := range meals {
		calories += m.Calories
	}
	totals := sumNutrients(nutrients)

	c.JSON(http.StatusOK, dailySummary{
		Date:         date,
		CalorieGoal:  goal,
		Calories:     calories,
		CaloriesLeft: goal - calories,
		Meals:        meals,
		Nutrients:    evaluateReadings(totals, p),
		Insights:     nutrition.EvaluateNutrientBatch(totals, p),
	})
}

// getWeekSummary returns per-day totals for the Mon–Sun week containing
// week_start. Days with no meals are included with has_data=false.
// GET /api/meals/week-summary?week_start=YYYY-MM-DD (defaults to current week).
func (h *Handler) getWeekSummary(c *gin.Context) {
	userID := c.GetInt("user_id")

	// Parse week_start; default to the current Monday.
	var weekStart time.Time
	if s := c.Query("week_start"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			apiError(c, http.StatusBadRequest, "invalid week_start, expected YYYY-MM-DD")
			return
		}
		weekStart = t
	} else {
		weekStart = currentMonday()
	}
	weekEnd := weekStart.AddDate(0, 0, 6)

	rows, err := queryMany[weekDayDBRow](h.db, c, dailyTotalsSQL,
		pgx.NamedArgs{
			"userID": userID,
			"start":  weekStart.Format("2006-01-02"),
			"end":    weekEnd.Format("2006-01-02"),
		})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch week data")
		return
	}

	goal := nutrition.ComputeTDEE(h.loadEngineProfile(c, userID))

	// Index DB rows by date string for O(1) merge.
	rowByDate := make(map[string]weekDayDBRow, len(rows))
	for _, r := range rows {
		rowByDate[r.Date.Time.Format("2006-01-02")] = r
	}

	// Build a full 7-day response, filling zeros for days with no data.
	result := make([]weekDaySummary, 7)
	for i := 0; i < 7; i++ {
		d := weekStart.AddDate(0, 0, i)
		day := weekDaySummary{Date: DateOnly{d}, CalorieGoal: goal}
		if row, ok := rowByDate[d.Format("2006-01-02")]; ok {
			day = daySummaryFromRow(row, goal)
		}
		day.CaloriesLeft = goal - day.Calories
		result[i] = day
	}

	c.JSON(http.StatusOK, result)
}

func daySummaryFromRow(row weekDayDBRow, goal int) weekDaySummary {
	return weekDaySummary{
		Date:         row.Date,
		CalorieGoal:  goal,
		Meals:        row.Meals,
		Calories:     row.Calories,
		CaloriesLeft: goal - row.Calories,
		ProteinG:     row.ProteinG,
		CarbsG:       row.CarbsG,
		FatG:         row.FatG,
		HasData:      true,
	}
}

// progressFromRows builds the per-day list and range stats for getProgress.
func progressFromRows(rows []weekDayDBRow, goal int) progressResponse {
	days := make([]weekDaySummary, 0, len(rows))
	var stats progressStats
	total := 0
	for _, row := range rows {
		days = append(days, daySummaryFromRow(row, goal))
		stats.DaysTracked++
		stats.TotalMeals += row.Meals
		total += row.Calories
		if row.Calories <= goal {
			stats.DaysWithinGoal++
		} else {
			stats.TotalCaloriesOver += row.Calories - goal
		}
	}
	if stats.DaysTracked > 0 {
		stats.AvgCalories = total / stats.DaysTracked
	}
	return progressResponse{Days: days, Stats: stats}
}

// getProgress returns per-day totals and aggregate stats for an arbitrary date range.
// GET /api/meals/progress?start=YYYY-MM-DD&end=YYYY-MM-DD. Both params required.
// Only days with meals are returned (no gap-filling; the frontend handles that).
func (h *Handler) getProgress(c *gin.Context) {
	userID := c.GetInt("user_id")
	start, end, ok := parseRange(c)
	if !ok {
		return
	}

	rows, err := queryMany[weekDayDBRow](h.db, c, dailyTotalsSQL,
		pgx.NamedArgs{"userID": userID, "start": start, "end": end})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch progress data")
		return
	}

	goal := nutrition.ComputeTDEE(h.loadEngineProfile(c, userID))
	c.JSON(http.StatusOK, progressFromRows(rows, goal))
}

// getEarliestMealDate returns the earliest date the user logged a meal.
// GET /api/meals/earliest-date. Used by the frontend to compute the "All Time" range start.
// Returns { "date": "YYYY-MM-DD" } or { "date": null } if no meals exist.
func (h *Handler) getEarliestMealDate(c *gin.Context) {
	userID := c.GetInt("user_id")

	// SELECT MIN returns a nullable date; use *string to handle the NULL case.
	var date *string
	err := h.db.QueryRow(c,
		`SELECT TO_CHAR(MIN(date), 'YYYY-MM-DD') FROM meals WHERE user_id = @userID`,
		pgx.NamedArgs{"userID": userID}).Scan(&date)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch earliest date")
		return
	}

	c.JSON(http.StatusOK, gin.H{"date": date})
}
