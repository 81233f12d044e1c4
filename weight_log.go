package main

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"lg/meal-nutrition-go-api/nutrition"
)

const maxWeight = 9999.9

// normalizeWeightUnit lower-cases u and defaults an empty unit to lbs.
func normalizeWeightUnit(u string) (string, bool) {
	u = strings.ToLower(strings.TrimSpace(u))
	switch u {
	case "":
		return string(nutrition.WeightLBS), true
	case string(nutrition.WeightKG), string(nutrition.WeightLBS):
		return u, true
	}
	return "", false
}

// syncProfileWeight copies entry into the user's profile when it is the most
// recent weigh-in, so targets follow the latest body weight.
func (h *Handler) syncProfileWeight(c *gin.Context, entry weightEntry) {
	_, err := h.db.Exec(c,
		`UPDATE user_profiles SET weight = @weight, weight_unit = @unit, updated_at = now()
		 WHERE user_id = @userID
		   AND NOT EXISTS (SELECT 1 FROM weight_log WHERE user_id = @userID AND date > @date)`,
		pgx.NamedArgs{
			"userID": entry.UserID, "weight": entry.Weight, "unit": entry.Unit,
			"date": entry.Date.Format("2006-01-02"),
		})
	if err != nil {
		log.Warn().Err(err).Int("user_id", entry.UserID).Msg("[weightLog] profile weight sync failed")
	}
}

// resyncProfileWeight runs after a delete. If the removed weigh-in was the
// latest one, the profile falls back to the newest entry still logged. Deleting
// an older entry, or the only one, leaves the profile alone.
func (h *Handler) resyncProfileWeight(c *gin.Context, userID int, deletedDate time.Time) {
	_, err := h.db.Exec(c,
		`UPDATE user_profiles p SET weight = w.weight, weight_unit = w.unit, updated_at = now()
		 FROM (SELECT weight, unit, date FROM weight_log
		       WHERE user_id = @userID ORDER BY date DESC LIMIT 1) w
		 WHERE p.user_id = @userID AND w.date < @deleted`,
		pgx.NamedArgs{"userID": userID, "deleted": deletedDate})
	if err != nil {
		log.Warn().Err(err).Int("user_id", userID).Msg("[weightLog] profile weight resync failed")
	}
}

// getWeightLog returns weight entries for the authenticated user within [start, end].
// GET /api/weight-log?start=YYYY-MM-DD&end=YYYY-MM-DD. Both params required.
// Returns an empty array (not null) if no entries exist in the range.
func (h *Handler) getWeightLog(c *gin.Context) {
	userID := c.GetInt("user_id")
	start, end, ok := parseRange(c)
	if !ok {
		return
	}

	entries, err := queryMany[weightEntry](h.db, c,
		`SELECT * FROM weight_log
		 WHERE user_id = @userID AND date >= @start AND date <= @end
		 ORDER BY date ASC`,
		pgx.NamedArgs{"userID": userID, "start": start, "end": end})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch weight log")
		return
	}
	if entries == nil {
		entries = []weightEntry{}
	}

	c.JSON(http.StatusOK, entries)
}

// upsertWeightEntry creates or updates the weight entry for the given date.
// POST /api/weight-log. Body: { "date": "YYYY-MM-DD", "weight": 84.2, "unit": "kg" }.
// The UNIQUE(user_id, date) constraint means posting the same date updates in place.
func (h *Handler) upsertWeightEntry(c *gin.Context) {
	userID := c.GetInt("user_id")

	var body struct {
		Date   string  `json:"date"`
		Weight float64 `json:"weight"`
		Unit   string  `json:"unit"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Date == "" {
		apiError(c, http.StatusBadRequest, "date is required")
		return
	}
	if _, err := time.Parse("2006-01-02", body.Date); err != nil {
		apiError(c, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}
	if body.Weight <= 0 || body.Weight > maxWeight {
		apiError(c, http.StatusBadRequest, "weight must be between 0 and 9999.9")
		return
	}
	unit, ok := normalizeWeightUnit(body.Unit)
	if !ok {
		apiError(c, http.StatusBadRequest, "unit must be one of: kg, lbs")
		return
	}

	entry, err := queryOne[weightEntry](h.db, c,
		`INSERT INTO weight_log (user_id, date, weight, unit)
		 VALUES (@userID, @date, @weight, @unit)
		 ON CONFLICT (user_id, date) DO UPDATE SET weight = EXCLUDED.weight, unit = EXCLUDED.unit
		 RETURNING *`,
		pgx.NamedArgs{"userID": userID, "date": body.Date, "weight": body.Weight, "unit": unit})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to upsert weight entry")
		return
	}

	h.syncProfileWeight(c, entry)

	c.JSON(http.StatusCreated, entry)
}

// updateWeightEntry partially updates an existing weight entry.
// PUT /api/weight-log/:id. Body: { "date"?, "weight"?, "unit"? }.
// Uses COALESCE so omitted fields keep their current values.
func (h *Handler) updateWeightEntry(c *gin.Context) {
	userID := c.GetInt("user_id")
	id := c.Param("id")

	var body struct {
		Date   *string  `json:"date"`
		Weight *float64 `json:"weight"`
		Unit   *string  `json:"unit"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Date != nil {
		if _, err := time.Parse("2006-01-02", *body.Date); err != nil {
			apiError(c, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
			return
		}
	}
	if body.Weight != nil && (*body.Weight <= 0 || *body.Weight > maxWeight) {
		apiError(c, http.StatusBadRequest, "weight must be between 0 and 9999.9")
		return
	}
	if body.Unit != nil {
		unit, ok := normalizeWeightUnit(*body.Unit)
		if !ok {
			apiError(c, http.StatusBadRequest, "unit must be one of: kg, lbs")
			return
		}
		body.Unit = &unit
	}

	entry, err := queryOne[weightEntry](h.db, c,
		`UPDATE weight_log SET
			date   = COALESCE(@date, date),
			weight = COALESCE(@weight, weight),
			unit   = COALESCE(@unit, unit)
		 WHERE id = @id AND user_id = @userID
		 RETURNING *`,
		pgx.NamedArgs{"id": id, "userID": userID, "date": body.Date, "weight": body.Weight, "unit": body.Unit})
	if err != nil {
		// Distinguish a missing row from a real DB failure so callers get an
		// actionable status code rather than a misleading 404.
		if errors.Is(err, pgx.ErrNoRows) {
			apiError(c, http.StatusNotFound, "weight entry not found")
		} else {
			apiError(c, http.StatusInternalServerError, "failed to update weight entry")
		}
		return
	}

	h.syncProfileWeight(c, entry)

	c.JSON(http.StatusOK, entry)
}

// deleteWeightEntry removes a weight log entry by ID.
// DELETE /api/weight-log/:id. Returns 204 on success, 404 if not found.
// Ownership is enforced by requiring both id and user_id to match.
func (h *Handler) deleteWeightEntry(c *gin.Context) {
	userID := c.GetInt("user_id")
	id := c.Param("id")

	var deletedDate time.Time
	err := h.db.QueryRow(c,
		"DELETE FROM weight_log WHERE id = @id AND user_id = @userID RETURNING date",
		pgx.NamedArgs{"id": id, "userID": userID}).Scan(&deletedDate)
	if errors.Is(err, pgx.ErrNoRows) {
		apiError(c, http.StatusNotFound, "weight entry not found")
		return
	}
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to delete weight entry")
		return
	}
	h.resyncProfileWeight(c, userID, deletedDate)

	c.Status(http.StatusNoContent)
}
