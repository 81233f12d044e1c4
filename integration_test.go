package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"
)

// setupTestDB starts a throwaway Postgres, applies db/*.sql in order and
// returns a pool built the same way the server builds one. Set
// INTEGRATION=1 to run; Docker must be available.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if os.Getenv("INTEGRATION") == "" {
		t.Skip("set INTEGRATION=1 to run database tests")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "test",
			},
			WaitingFor: wait.ForAll(
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
				wait.ForListeningPort("5432/tcp"),
			),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Error cleaning up test database: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	pool, err := newDBPool(ctx, "postgres://test:test@"+host+":"+port.Port()+"/test?sslmode=disable")
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	files, err := filepath.Glob(filepath.Join("db", "*.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, files)
	sort.Strings(files)
	for _, f := range files {
		sql, err := os.ReadFile(f)
		require.NoError(t, err)
		_, err = pool.Exec(ctx, string(sql))
		require.NoError(t, err, f)
	}
	return pool
}

// createTestUser inserts a user and an empty profile row, as cmd/create-user does.
func createTestUser(t *testing.T, pool *pgxpool.Pool, username, password, token string) int {
	t.Helper()
	ctx := context.Background()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	var id int
	require.NoError(t, pool.QueryRow(ctx,
		"INSERT INTO users (username, password, auth_token) VALUES ($1, $2, $3) RETURNING id",
		username, string(hash), token).Scan(&id))
	_, err = pool.Exec(ctx, "INSERT INTO user_profiles (user_id, weight_unit, height_unit) VALUES ($1, 'kg', 'cm')", id)
	require.NoError(t, err)
	return id
}

type apiClient struct {
	t      *testing.T
	router *gin.Engine
	token  string
}

// do sends a JSON request and decodes the response into out when non-nil.
func (a apiClient) do(method, path string, body any, out any) int {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	if out != nil && w.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}
	return w.Code
}

func TestIntegration_ProfileAndWeightLog(t *testing.T) {
	pool := setupTestDB(t)
	createTestUser(t, pool, "alice", "hunter22", "tok-alice")

	gin.SetMode(gin.TestMode)
	h := &Handler{db: pool}
	router := gin.New()
	h.registerRoutes(router)
	anon := apiClient{t: t, router: router}
	api := apiClient{t: t, router: router, token: "tok-alice"}

	var login struct {
		Token         string `json:"token"`
		SetupComplete bool   `json:"setup_complete"`
	}
	assert.Equal(t, http.StatusUnauthorized, anon.do("POST", "/api/login", gin.H{"username": "alice", "password": "wrong"}, nil))
	require.Equal(t, http.StatusOK, anon.do("POST", "/api/login", gin.H{"username": " alice ", "password": "hunter22"}, &login))
	assert.Equal(t, "tok-alice", login.Token)
	assert.False(t, login.SetupComplete)

	assert.Equal(t, http.StatusUnauthorized, anon.do("GET", "/api/profile", nil, nil))

	var profile userProfile
	require.Equal(t, http.StatusOK, api.do("GET", "/api/profile", nil, &profile))
	assert.Nil(t, profile.ComputedTDEE, "incomplete profile has no computed fields")
	assert.Empty(t, profile.HealthConditions)

	require.Equal(t, http.StatusOK, api.do("PATCH", "/api/profile", gin.H{
		"age": 30, "gender": "Male", "weight": 80, "height": 180,
		"activity_level": "Moderate", "goal": "build muscle",
		"health_conditions": []string{"hypertension"}, "setup_complete": true,
	}, &profile))
	require.NotNil(t, profile.ComputedTDEE)
	assert.Equal(t, 2759, *profile.ComputedTDEE)
	assert.Equal(t, "moderate", *profile.ActivityLevel)
	assert.Equal(t, []string{"hypertension"}, profile.HealthConditions)
	assert.True(t, profile.SetupComplete)

	// A weigh-in on the latest date flows into the profile.
	var entry weightEntry
	require.Equal(t, http.StatusCreated, api.do("POST", "/api/weight-log", gin.H{"date": "2026-03-04", "weight": 78, "unit": "kg"}, &entry))
	require.Equal(t, http.StatusOK, api.do("GET", "/api/profile", nil, &profile))
	assert.Equal(t, 78.0, *profile.Weight)

	// An older weigh-in does not.
	require.Equal(t, http.StatusCreated, api.do("POST", "/api/weight-log", gin.H{"date": "2026-03-01", "weight": 81, "unit": "kg"}, nil))
	require.Equal(t, http.StatusOK, api.do("GET", "/api/profile", nil, &profile))
	assert.Equal(t, 78.0, *profile.Weight)

	// Posting the same date again updates in place.
	var again weightEntry
	require.Equal(t, http.StatusCreated, api.do("POST", "/api/weight-log", gin.H{"date": "2026-03-04", "weight": 77.5, "unit": "kg"}, &again))
	assert.Equal(t, entry.ID, again.ID)

	var entries []weightEntry
	require.Equal(t, http.StatusOK, api.do("GET", "/api/weight-log?start=2026-03-01&end=2026-03-31", nil, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "2026-03-01", entries[0].Date.Format("2006-01-02"))

	path := "/api/weight-log/" + strconv.Itoa(entries[0].ID)
	assert.Equal(t, http.StatusOK, api.do("PUT", path, gin.H{"weight": 80.5}, nil))
	assert.Equal(t, http.StatusNoContent, api.do("DELETE", path, nil, nil))
	assert.Equal(t, http.StatusNotFound, api.do("DELETE", path, nil, nil))

	// Targets now follow the stored profile: 77.5 kg × 0.8 × 1.2 × 1.3 = 96.72
	var targets struct {
		TDEE    int              `json:"tdee"`
		Targets []nutrientTarget `json:"targets"`
	}
	require.Equal(t, http.StatusOK, api.do("GET", "/api/nutrients/targets", nil, &targets))
	assert.Equal(t, nutrientTarget{Name: "protein", Target: 97, Unit: "g"}, targets.Targets[0])
}

func TestIntegration_DeleteLatestWeighInResyncsProfile(t *testing.T) {
	pool := setupTestDB(t)
	createTestUser(t, pool, "dana", "pw", "tok-dana")

	gin.SetMode(gin.TestMode)
	h := &Handler{db: pool}
	router := gin.New()
	h.registerRoutes(router)
	api := apiClient{t: t, router: router, token: "tok-dana"}

	profileWeight := func() float64 {
		t.Helper()
		var profile userProfile
		require.Equal(t, http.StatusOK, api.do("GET", "/api/profile", nil, &profile))
		require.NotNil(t, profile.Weight)
		return *profile.Weight
	}
	logWeight := func(date string, weight float64) string {
		t.Helper()
		var entry weightEntry
		require.Equal(t, http.StatusCreated, api.do("POST", "/api/weight-log", gin.H{"date": date, "weight": weight, "unit": "kg"}, &entry))
		return "/api/weight-log/" + strconv.Itoa(entry.ID)
	}

	first := logWeight("2026-03-01", 81)
	latest := logWeight("2026-03-04", 78)
	assert.Equal(t, 78.0, profileWeight())

	// Removing an older weigh-in keeps a manually edited weight.
	require.Equal(t, http.StatusOK, api.do("PATCH", "/api/profile", gin.H{"weight": 75}, nil))
	require.Equal(t, http.StatusNoContent, api.do("DELETE", first, nil, nil))
	assert.Equal(t, 75.0, profileWeight())

	middle := logWeight("2026-03-02", 80)
	assert.Equal(t, 75.0, profileWeight())

	// Removing the latest falls back to the newest remaining entry.
	require.Equal(t, http.StatusNoContent, api.do("DELETE", latest, nil, nil))
	assert.Equal(t, 80.0, profileWeight())

	// Removing the last entry leaves the profile as it was.
	require.Equal(t, http.StatusNoContent, api.do("DELETE", middle, nil, nil))
	assert.Equal(t, 80.0, profileWeight())
}

func TestIntegration_MealLifecycle(t *testing.T) {
	pool := setupTestDB(t)
	userID := createTestUser(t, pool, "bob", "pw", "tok-bob")
	createTestUser(t, pool, "carol", "pw", "tok-carol")

	gin.SetMode(gin.TestMode)
	h := &Handler{db: pool}
	router := gin.New()
	h.registerRoutes(router)
	api := apiClient{t: t, router: router, token: "tok-bob"}
	other := apiClient{t: t, router: router, token: "tok-carol"}

	day, _ := time.Parse("2006-01-02", "2026-03-03")
	saveMeal := func(name string, calories int, protein float64) meal {
		m, nutrients, err := h.insertMeal(context.Background(), meal{
			UserID: userID, Date: DateOnly{day}, Name: name, Calories: calories,
		}, analysisNutrients(mealAnalysis{
			Macronutrients: []aiNutrient{
				{Name: "Protein", Amount: protein, Unit: "g"},
				{Name: "Total Fat", Amount: 10, Unit: "g"},
			},
			Micronutrients: []aiNutrient{{Name: "Iron", Amount: 4, Unit: "mg"}},
		}))
		require.NoError(t, err)
		require.Len(t, nutrients, 3)
		return m
	}
	breakfast := saveMeal("Oatmeal", 350, 12)
	saveMeal("Chicken salad", 550, 40)

	var detail mealDetail
	require.Equal(t, http.StatusOK, api.do("GET", "/api/meals/"+strconv.Itoa(breakfast.ID), nil, &detail))
	assert.Equal(t, "Oatmeal", detail.Name)
	require.Len(t, detail.Macronutrients, 2)
	require.Len(t, detail.Micronutrients.Minerals, 1)
	assert.Equal(t, "Iron", detail.Micronutrients.Minerals[0].Name)

	assert.Equal(t, http.StatusNotFound, other.do("GET", "/api/meals/"+strconv.Itoa(breakfast.ID), nil, nil))

	var meals []meal
	require.Equal(t, http.StatusOK, api.do("GET", "/api/meals?start=2026-03-01&end=2026-03-07", nil, &meals))
	assert.Len(t, meals, 2)

	var daily dailySummary
	require.Equal(t, http.StatusOK, api.do("GET", "/api/meals/daily?date=2026-03-03", nil, &daily))
	assert.Equal(t, 900, daily.Calories)
	assert.Equal(t, daily.CalorieGoal-900, daily.CaloriesLeft)
	require.Len(t, daily.Nutrients, 3)
	assert.Equal(t, "Protein", daily.Nutrients[0].Name)
	assert.Equal(t, 52.0, daily.Nutrients[0].Amount)

	var week []weekDaySummary
	require.Equal(t, http.StatusOK, api.do("GET", "/api/meals/week-summary?week_start=2026-03-02", nil, &week))
	require.Len(t, week, 7)
	assert.False(t, week[0].HasData)
	assert.True(t, week[1].HasData)
	assert.Equal(t, 2, week[1].Meals)
	assert.Equal(t, 52.0, week[1].ProteinG)
	assert.Equal(t, 20.0, week[1].FatG)

	var progress progressResponse
	require.Equal(t, http.StatusOK, api.do("GET", "/api/meals/progress?start=2026-03-01&end=2026-03-31", nil, &progress))
	assert.Equal(t, 1, progress.Stats.DaysTracked)
	assert.Equal(t, 2, progress.Stats.TotalMeals)

	var earliest struct {
		Date *string `json:"date"`
	}
	require.Equal(t, http.StatusOK, api.do("GET", "/api/meals/earliest-date", nil, &earliest))
	require.NotNil(t, earliest.Date)
	assert.Equal(t, "2026-03-03", *earliest.Date)
	require.Equal(t, http.StatusOK, other.do("GET", "/api/meals/earliest-date", nil, &earliest))
	assert.Nil(t, earliest.Date)

	assert.Equal(t, http.StatusNotFound, other.do("DELETE", "/api/meals/"+strconv.Itoa(breakfast.ID), nil, nil))
	assert.Equal(t, http.StatusNoContent, api.do("DELETE", "/api/meals/"+strconv.Itoa(breakfast.ID), nil, nil))
	assert.Equal(t, http.StatusNotFound, api.do("GET", "/api/meals/"+strconv.Itoa(breakfast.ID), nil, nil))

	var orphans int
	require.NoError(t, pool.QueryRow(context.Background(),
		"SELECT COUNT(*) FROM meal_nutrients WHERE meal_id = $1", breakfast.ID).Scan(&orphans))
	assert.Zero(t, orphans)
}

func TestIntegration_AnalyzeSavesMeal(t *testing.T) {
	pool := setupTestDB(t)
	userID := createTestUser(t, pool, "dana", "pw", "tok-dana")

	router, h, mock := setupAnalyzeTest(t)
	h.db = pool
	mock.set(
		mockReply{http.StatusOK, openAIChatResponse(analysisJSON(t, 500, 0.9))},
		mockReply{http.StatusOK, openAIChatResponse(analysisJSON(t, 500, 0.9))},
	)

	w := doAnalyzeRequest(t, router, pngBytes)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var saved struct {
		ID int `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &saved))
	require.NotZero(t, saved.ID)

	var owner, nutrients int
	var hash string
	require.NoError(t, pool.QueryRow(context.Background(),
		`SELECT m.user_id, m.image_hash, (SELECT COUNT(*) FROM meal_nutrients WHERE meal_id = m.id)
		 FROM meals m WHERE m.id = $1`, saved.ID).Scan(&owner, &hash, &nutrients))
	// setupAnalyzeTest authenticates every request as user 1.
	assert.Equal(t, 1, userID)
	assert.Equal(t, userID, owner)
	assert.Equal(t, imageDigest(pngBytes), hash)
	assert.Equal(t, 5, nutrients)
}
