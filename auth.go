package main

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// dummyHash stands in for the stored hash when the username does not exist.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy"), bcrypt.DefaultCost)

// loginRejectReason names why a login failed, for the server log only. The
// client always sees the same "invalid credentials".
func loginRejectReason(lookupErr, compareErr error) string {
	switch {
	case errors.Is(lookupErr, pgx.ErrNoRows):
		return "unknown user"
	case lookupErr != nil:
		return "user lookup failed"
	case compareErr != nil:
		return "wrong password"
	}
	return ""
}

// login exchanges a username and password for the user's auth token. The
// response also says whether profile setup is done so the client can route
// straight to onboarding.
// POST /api/login (public, no auth required).
func (h *Handler) login(c *gin.Context) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	username := strings.TrimSpace(body.Username)
	if username == "" || body.Password == "" {
		apiError(c, http.StatusBadRequest, "username and password are required")
		return
	}

	u, lookupErr := queryOne[user](h.db, c,
		"SELECT * FROM users WHERE username = @username",
		pgx.NamedArgs{"username": username})

	// bcrypt runs on every path so an unknown username takes as long as a wrong password.
	storedHash := dummyHash
	if lookupErr == nil {
		storedHash = []byte(u.Password)
	}
	compareErr := bcrypt.CompareHashAndPassword(storedHash, []byte(body.Password))

	if reason := loginRejectReason(lookupErr, compareErr); reason != "" {
		event := log.Info()
		if lookupErr != nil && !errors.Is(lookupErr, pgx.ErrNoRows) {
			event = log.Error().Err(lookupErr)
		}
		event.Str("username", username).Str("ip", c.ClientIP()).Str("reason", reason).Msg("[login] rejected")
		apiError(c, http.StatusUnauthorized, "invalid credentials")
		return
	}

	var setupComplete bool
	if err := h.db.QueryRow(c,
		"SELECT COALESCE((SELECT setup_complete FROM user_profiles WHERE user_id = $1), false)",
		u.ID).Scan(&setupComplete); err != nil {
		log.Warn().Err(err).Int("user_id", u.ID).Msg("[login] setup lookup failed")
	}
	log.Info().Int("user_id", u.ID).Bool("setup_complete", setupComplete).Msg("[login] ok")

	c.JSON(http.StatusOK, gin.H{"token": u.AuthToken, "user_id": u.ID, "setup_complete": setupComplete})
}

// authMiddleware validates the Bearer token and sets user_id on the context.
func (h *Handler) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			apiError(c, http.StatusUnauthorized, "missing or invalid authorization header")
			c.Abort()
			return
		}

		var userID int
		err := h.db.QueryRow(c, "SELECT id FROM users WHERE auth_token = $1", token).Scan(&userID)
		if err != nil {
			apiError(c, http.StatusUnauthorized, "invalid token")
			c.Abort()
			return
		}

		c.Set("user_id", userID)
		c.Next()
	}
}
