package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// config is the server's runtime configuration, read from the environment
// (optionally seeded from .env).
type config struct {
	DBURL          string
	Port           string
	OpenAIBaseURL  string
	OpenAIModel    string
	AnalysisPasses int
	RedisURL       string
	S3Bucket       string
	AWSRegion      string
	CORSOrigins    []string
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// loadConfig reads and validates the environment.
func loadConfig() (config, error) {
	cfg := config{
		DBURL:         os.Getenv("DB_URL"),
		Port:          getenv("PORT", "3000"),
		OpenAIBaseURL: strings.TrimRight(getenv("OPENAI_BASE_URL", "https://api.openai.com"), "/"),
		OpenAIModel:   getenv("OPENAI_MODEL", defaultOpenAIModel),
		RedisURL:      os.Getenv("REDIS_URL"),
		S3Bucket:      os.Getenv("S3_BUCKET_NAME"),
		AWSRegion:     getenv("AWS_REGION", "us-east-1"),
	}

	if cfg.DBURL == "" {
		return cfg, fmt.Errorf("DB_URL is required")
	}
	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return cfg, fmt.Errorf("PORT must be a number, got %q", cfg.Port)
	}

	passes, err := strconv.Atoi(getenv("ANALYSIS_PASSES", "2"))
	if err != nil || passes < 1 || passes > 2 {
		return cfg, fmt.Errorf("ANALYSIS_PASSES must be 1 or 2")
	}
	cfg.AnalysisPasses = passes

	for _, origin := range strings.Split(getenv("CORS_ORIGINS", "http://localhost:5173"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
		}
	}

	return cfg, nil
}
