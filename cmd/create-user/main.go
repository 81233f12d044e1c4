// CLI tool to create a user with a bcrypt-hashed password and an empty
// nutrition profile. Body fields are filled in later through PATCH /api/profile.
// Usage: go run ./cmd/create-user (from the module root)
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := godotenv.Load(); err != nil {
		log.Fatal().Err(err).Msg("Error loading .env file")
	}

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, os.Getenv("DB_URL"))
	if err != nil {
		log.Fatal().Err(err).Msg("Unable to connect to database")
	}
	defer conn.Close(ctx)

	reader := bufio.NewReader(os.Stdin)
	prompt := func(label string) string {
		fmt.Print(label + ": ")
		s, _ := reader.ReadString('\n')
		return strings.TrimSpace(s)
	}

	username := prompt("Username")
	email := prompt("Email")
	password := prompt("Password")
	weightUnit := strings.ToLower(prompt("Weight unit [lbs/kg]"))
	if weightUnit != "kg" {
		weightUnit = "lbs"
	}
	heightUnit := "in"
	if weightUnit == "kg" {
		heightUnit = "cm"
	}

	if username == "" || password == "" {
		log.Fatal().Msg("username and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Error hashing password")
	}

	authToken := uuid.New().String()

	tx, err := conn.Begin(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Error starting transaction")
	}
	defer tx.Rollback(ctx)

	var userID int
	err = tx.QueryRow(ctx,
		`INSERT INTO users (username, email, password, auth_token)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		username, email, string(hash), authToken,
	).Scan(&userID)
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating user")
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO user_profiles (user_id, weight_unit, height_unit) VALUES ($1, $2, $3)`,
		userID, weightUnit, heightUnit)
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating profile")
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatal().Err(err).Msg("Error committing user")
	}

	fmt.Printf("\nUser created successfully!\n")
	fmt.Printf("  ID:         %d\n", userID)
	fmt.Printf("  Username:   %s\n", username)
	fmt.Printf("  Auth Token: %s\n", authToken)
}
