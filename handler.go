package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const defaultOpenAIModel = "gpt-4o"

// Handler holds shared dependencies (db pool, AI client config, cache, photo
// storage) for all route handlers. cache and photos may be nil.
type Handler struct {
	db             *pgxpool.Pool
	openAIBaseURL  string // Base URL for OpenAI API (overridable for tests)
	openAIModel    string
	analysisPasses int
	cache          *analysisCache
	photos         photoStore
}

func (h *Handler) model() string {
	if h.openAIModel == "" {
		return defaultOpenAIModel
	}
	return h.openAIModel
}

/* ─── Database helpers ────────────────────────────────────────────────── */

// queryOne runs a query and scans the first row into T using RowToStructByName.
// Logs query and scan errors for debugging (e.g. struct/column mismatches).
func queryOne[T any](q pgxQuerier, ctx context.Context, sql string, args pgx.NamedArgs) (T, error) {
	rows, err := q.Query(ctx, sql, args)
	if err != nil {
		log.Error().Err(err).Msg("[queryOne] Query error")
		var zero T
		return zero, err
	}
	result, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[T])
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		log.Error().Err(err).Msg("[queryOne] Scan error")
	}
	return result, err
}

// queryMany runs a query and scans all rows into []T using RowToStructByName.
func queryMany[T any](q pgxQuerier, ctx context.Context, sql string, args pgx.NamedArgs) ([]T, error) {
	rows, err := q.Query(ctx, sql, args)
	if err != nil {
		log.Error().Err(err).Msg("[queryMany] Query error")
		return nil, err
	}
	results, err := pgx.CollectRows(rows, pgx.RowToStructByName[T])
	if err != nil {
		log.Error().Err(err).Msg("[queryMany] Scan error")
	}
	return results, err
}

// pgxQuerier is satisfied by *pgxpool.Pool and pgx.Tx, so the helpers work
// inside and outside a transaction.
type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// apiError returns a consistent JSON error response: {"error": "message"}.
func apiError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

/* ─── Server setup ────────────────────────────────────────────────────── */

// newDBPool creates a connection pool. We use a pool (not a single conn) because
// Neon closes idle connections after ~5 minutes.
func newDBPool(ctx context.Context, dbURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse DB URL: %w", err)
	}
	// Use simple query protocol to avoid "cached plan must not change result type"
	// errors from Neon's server-side prepared statement cache after schema changes.
	config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return pool, nil
}

// registerRoutes registers all API routes on the router.
func (h *Handler) registerRoutes(router *gin.Engine) {
	// Public routes
	router.POST("/api/login", h.login)

	// Authenticated routes
	api := router.Group("/api", h.authMiddleware())
	api.GET("/profile", h.getProfile)
	api.PATCH("/profile", h.patchProfile)
	api.GET("/nutrients/targets", h.getNutrientTargets)
	api.POST("/nutrients/evaluate", h.evaluateNutrients)
	api.POST("/meals/analyze", h.analyzeMeal)
	api.GET("/meals", h.listMeals)
	api.GET("/meals/daily", h.getDailySummary)
	api.GET("/meals/week-summary", h.getWeekSummary)
	api.GET("/meals/progress", h.getProgress)
	api.GET("/meals/earliest-date", h.getEarliestMealDate)
	api.GET("/meals/:id", h.getMeal)
	api.DELETE("/meals/:id", h.deleteMeal)
	api.GET("/weight-log", h.getWeightLog)
	api.POST("/weight-log", h.upsertWeightEntry)
	api.PUT("/weight-log/:id", h.updateWeightEntry)
	api.DELETE("/weight-log/:id", h.deleteWeightEntry)
}
