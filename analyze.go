package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"lg/meal-nutrition-go-api/nutrition"
)

// maxImageBytes caps meal photo uploads.
const maxImageBytes = 10 << 20

// Pass weights used when blending the primary and validation estimates.
const (
	primaryWeight     = 1.0
	secondaryWeight   = 0.7
	defaultConfidence = 0.8
	maxConfidence     = 0.95
)

// errUnrecognizedMeal means the model looked at the photo and found no food.
var errUnrecognizedMeal = errors.New("image does not show a recognizable meal")

/* ─── AI response types ──────────────────────────────────────────────── */

// aiNutrient is one nutrient line as the model reports it.
type aiNutrient struct {
	Name              string   `json:"name"`
	Amount            float64  `json:"amount"`
	Unit              string   `json:"unit"`
	PercentDailyValue *float64 `json:"percentDailyValue"`
}

func (n aiNutrient) reading() nutrition.NutrientReading {
	return nutrition.NutrientReading{
		Name:              strings.TrimSpace(n.Name),
		Amount:            n.Amount,
		Unit:              strings.TrimSpace(n.Unit),
		PercentDailyValue: n.PercentDailyValue,
	}
}

// mealAnalysis is the structured estimate returned by one analysis pass.
// It is also the value cached in Redis, keyed by image digest.
type mealAnalysis struct {
	MealName        string       `json:"mealName"`
	MealDescription string       `json:"mealDescription"`
	Calories        float64      `json:"calories"`
	Macronutrients  []aiNutrient `json:"macronutrients"`
	Micronutrients  []aiNutrient `json:"micronutrients"`
	HealthRating    string       `json:"healthRating"`
	Confidence      float64      `json:"confidence"`
	Error           string       `json:"error,omitempty"`
}

// validate rejects responses that cannot be stored as a meal.
func (a *mealAnalysis) validate() error {
	if a.Error == "unrecognized" || strings.TrimSpace(a.MealName) == "" {
		return errUnrecognizedMeal
	}
	if a.Calories <= 0 || len(a.Macronutrients) == 0 {
		return fmt.Errorf("incomplete nutrition data: calories=%.0f macronutrients=%d", a.Calories, len(a.Macronutrients))
	}
	return nil
}

/* ─── OpenAI prompts ─────────────────────────────────────────────────── */

const analysisSystemPrompt = `You are a nutrition expert specializing in food recognition and nutritional analysis. Provide accurate, scientific nutrition data in valid JSON format.`

// analysisPromptTemplate takes the user's age, weight in kg, activity level and goal.
const analysisPromptTemplate = `Analyze this meal photo. Identify each visible food, estimate portions from visual cues such as plate size and utensils, then calculate the nutrition of the whole meal.

User context:
- Age: %d
- Weight: %.0f kg
- Activity: %s
- Goal: %s

Return a JSON object with:
- "mealName" (string, short descriptive title)
- "mealDescription" (string, what you see on the plate)
- "calories" (number, total for the meal)
- "macronutrients" (array of {"name", "amount", "unit", "percentDailyValue"} for Protein, Total Carbohydrates, Total Fat, Saturated Fat, Dietary Fiber, Sugars, Sodium, Cholesterol)
- "micronutrients" (array of the same shape covering at least 15 vitamins and minerals)
- "healthRating" (one of: Excellent, Good, Fair, Poor)
- "confidence" (number 0-1, how sure you are of the estimate)

Only return {"error": "unrecognized"} if the photo does not show food at all.
Return only valid JSON, no explanation.`

// validationPromptSuffix turns the second pass into an independent re-estimate.
const validationPromptSuffix = `

This is a validation pass. Re-estimate every portion from scratch without assuming a typical serving, and be conservative with hidden fats and sauces.`

/* ─── OpenAI HTTP client ─────────────────────────────────────────────── */

// openAIContentPart is one element of a multi-part (text + image) message.
type openAIContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// openAIMessage is a single message in the OpenAI chat completions request.
// Content is either a string or a []openAIContentPart.
type openAIMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// openAIRequest is the request body for the OpenAI chat completions API.
type openAIRequest struct {
	Model          string                 `json:"model"`
	Messages       []openAIMessage        `json:"messages"`
	Temperature    float64                `json:"temperature"`
	MaxTokens      int                    `json:"max_tokens,omitempty"`
	ResponseFormat map[string]interface{} `json:"response_format"`
}

// callOpenAI sends a chat completions request and returns the raw content string
// from the first choice. Uses raw net/http to avoid pulling in the OpenAI SDK.
func callOpenAI(ctx context.Context, messages []openAIMessage, baseURL, model string) (string, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return "", fmt.Errorf("OPENAI_API_KEY not set")
	}

	reqBody := openAIRequest{
		Model:       model,
		Messages:    messages,
		Temperature: 0.1,
		MaxTokens:   3000,
		ResponseFormat: map[string]interface{}{
			"type": "json_object",
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", baseURL+"/v1/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	// Vision requests are slow; 60s covers a high-detail image.
	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai returned status %d: %s", resp.StatusCode, string(respBytes))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBytes, &result); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	return result.Choices[0].Message.Content, nil
}

/* ─── Analysis passes ────────────────────────────────────────────────── */

// imageDataURL encodes raw image bytes as a data URL for the vision API.
func imageDataURL(image []byte, contentType string) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(image)
}

// analysisMessages builds the chat messages for one pass.
func analysisMessages(dataURL string, p nutrition.UserProfile, validation bool) []openAIMessage {
	m := nutrition.NormalizeProfile(p)
	prompt := fmt.Sprintf(analysisPromptTemplate, p.Age, m.WeightKG, p.ActivityLevel, p.Goal)
	if validation {
		prompt += validationPromptSuffix
	}
	return []openAIMessage{
		{Role: "system", Content: analysisSystemPrompt},
		{Role: "user", Content: []openAIContentPart{
			{Type: "text", Text: prompt},
			{Type: "image_url", ImageURL: &openAIImageURL{URL: dataURL, Detail: "high"}},
		}},
	}
}

// runAnalysisPass performs one vision request and validates the result.
func (h *Handler) runAnalysisPass(ctx context.Context, dataURL string, p nutrition.UserProfile, validation bool) (mealAnalysis, error) {
	content, err := callOpenAI(ctx, analysisMessages(dataURL, p, validation), h.openAIBaseURL, h.model())
	if err != nil {
		return mealAnalysis{}, err
	}
	var a mealAnalysis
	if err := json.Unmarshal([]byte(content), &a); err != nil {
		return mealAnalysis{}, fmt.Errorf("parse analysis: %w", err)
	}
	if err := a.validate(); err != nil {
		return mealAnalysis{}, err
	}
	return a, nil
}

// analyzeImage runs the primary pass and, when configured, a validation pass
// concurrently. A failed pass is dropped; the request fails only when every
// pass fails.
func (h *Handler) analyzeImage(ctx context.Context, image []byte, contentType string, p nutrition.UserProfile) (mealAnalysis, error) {
	dataURL := imageDataURL(image, contentType)
	passes := h.analysisPasses
	if passes < 1 || passes > 2 {
		passes = 2
	}

	results := make([]mealAnalysis, passes)
	errs := make([]error, passes)
	var g errgroup.Group
	for i := 0; i < passes; i++ {
		g.Go(func() error {
			results[i], errs[i] = h.runAnalysisPass(ctx, dataURL, p, i == 1)
			if errs[i] != nil {
				log.Warn().Err(errs[i]).Int("pass", i).Msg("[analyze] pass failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	var ok []mealAnalysis
	for i := range results {
		if errs[i] == nil {
			ok = append(ok, results[i])
		}
	}
	switch len(ok) {
	case 0:
		for _, err := range errs {
			if errors.Is(err, errUnrecognizedMeal) {
				return mealAnalysis{}, errUnrecognizedMeal
			}
		}
		return mealAnalysis{}, fmt.Errorf("all analysis passes failed: %w", errors.Join(errs...))
	case 1:
		return ok[0], nil
	default:
		return combineAnalyses(ok[0], ok[1]), nil
	}
}

// combineAnalyses keeps the primary estimate and uses the validation pass as a
// cross-check. When the two calorie totals agree within 20% they are blended
// by pass weight and confidence is capped; otherwise the primary total is kept
// and confidence is reduced. Nutrient lists always come from the primary.
func combineAnalyses(primary, secondary mealAnalysis) mealAnalysis {
	combined := primary
	conf := primary.Confidence
	if conf == 0 {
		conf = defaultConfidence
	}

	if primary.Calories > 0 && math.Abs(primary.Calories-secondary.Calories)/primary.Calories < 0.2 {
		combined.Calories = math.Round((primary.Calories*primaryWeight + secondary.Calories*secondaryWeight) / (primaryWeight + secondaryWeight))
		combined.Confidence = math.Min(conf, maxConfidence)
	} else {
		combined.Confidence = conf * 0.9
	}
	return combined
}

/* ─── Handler ────────────────────────────────────────────────────────── */

// analyzeMeal handles POST /api/meals/analyze.
// Accepts a multipart "image" upload (and optional "date"), estimates its
// nutrition with OpenAI, stores the photo and the meal, and returns the meal
// with every nutrient evaluated against the user's profile.
func (h *Handler) analyzeMeal(c *gin.Context) {
	userID := c.GetInt("user_id")

	fh, err := c.FormFile("image")
	if err != nil {
		apiError(c, http.StatusBadRequest, "image is required")
		return
	}
	if fh.Size > maxImageBytes {
		apiError(c, http.StatusBadRequest, "image must be 10MB or smaller")
		return
	}
	date := c.DefaultPostForm("date", time.Now().Format("2006-01-02"))
	if _, err := time.Parse("2006-01-02", date); err != nil {
		apiError(c, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}

	f, err := fh.Open()
	if err != nil {
		apiError(c, http.StatusBadRequest, "failed to read image")
		return
	}
	image, err := io.ReadAll(io.LimitReader(f, maxImageBytes))
	f.Close()
	if err != nil || len(image) == 0 {
		apiError(c, http.StatusBadRequest, "failed to read image")
		return
	}
	contentType := http.DetectContentType(image)
	if !strings.HasPrefix(contentType, "image/") {
		apiError(c, http.StatusBadRequest, "file must be an image")
		return
	}

	ctx := c.Request.Context()
	profile := h.loadEngineProfile(c, userID)
	digest := imageDigest(image)
	cacheKey := analysisCacheKey(userID, profile, digest)

	analysis, cached := h.cache.get(ctx, cacheKey)
	if !cached {
		analysis, err = h.analyzeImage(ctx, image, contentType, profile)
		if errors.Is(err, errUnrecognizedMeal) {
			c.JSON(http.StatusOK, gin.H{"error": "unrecognized"})
			return
		}
		if err != nil {
			log.Error().Err(err).Int("user_id", userID).Msg("[analyze] OpenAI error")
			apiError(c, http.StatusInternalServerError, "openai request failed")
			return
		}
		h.cache.set(ctx, cacheKey, analysis)
	}

	var key *string
	if h.photos != nil {
		k := photoKey(userID, contentType)
		if err := h.photos.Put(ctx, k, contentType, image); err != nil {
			// The meal is still worth saving without its photo.
			log.Warn().Err(err).Str("key", k).Msg("[analyze] photo upload failed")
		} else {
			key = &k
		}
	}

	nutrients := analysisNutrients(analysis)
	m := meal{
		UserID:      userID,
		Name:        strings.TrimSpace(analysis.MealName),
		Description: strings.TrimSpace(analysis.MealDescription),
		Calories:    int(math.Round(analysis.Calories)),
		PhotoKey:    key,
		ImageHash:   &digest,
	}
	if analysis.HealthRating != "" {
		m.HealthRating = &analysis.HealthRating
	}
	if analysis.Confidence > 0 {
		m.Confidence = &analysis.Confidence
	}
	m.Date.Time, _ = time.Parse("2006-01-02", date)

	// Without a database the analysis is returned unsaved.
	if h.db != nil {
		m, nutrients, err = h.insertMeal(ctx, m, nutrients)
		if err != nil {
			log.Error().Err(err).Int("user_id", userID).Msg("[analyze] failed to save meal")
			apiError(c, http.StatusInternalServerError, "failed to save meal")
			return
		}
	}

	c.JSON(http.StatusCreated, h.buildMealDetail(ctx, m, nutrients, profile))
}

// analysisNutrients flattens an analysis into meal_nutrients rows, filling a
// missing %DV from the FDA reference table.
func analysisNutrients(a mealAnalysis) []mealNutrient {
	out := make([]mealNutrient, 0, len(a.Macronutrients)+len(a.Micronutrients))
	add := func(kind string, list []aiNutrient) {
		for _, n := range list {
			r := nutrition.FillReferencePercent(n.reading())
			if r.Name == "" {
				continue
			}
			out = append(out, mealNutrient{
				Kind:              kind,
				Position:          len(out),
				Name:              r.Name,
				Amount:            r.Amount,
				Unit:              r.Unit,
				PercentDailyValue: r.PercentDailyValue,
			})
		}
	}
	add("macro", a.Macronutrients)
	add("micro", a.Micronutrients)
	return out
}
