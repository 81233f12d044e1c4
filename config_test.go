package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearConfigEnv blanks every variable loadConfig reads so the host
// environment cannot leak into a test.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DB_URL", "PORT", "OPENAI_BASE_URL", "OPENAI_MODEL", "ANALYSIS_PASSES",
		"REDIS_URL", "S3_BUCKET_NAME", "AWS_REGION", "CORS_ORIGINS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("DB_URL", "postgres://localhost/meals")

	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "https://api.openai.com", cfg.OpenAIBaseURL)
	assert.Equal(t, defaultOpenAIModel, cfg.OpenAIModel)
	assert.Equal(t, 2, cfg.AnalysisPasses)
	assert.Equal(t, "us-east-1", cfg.AWSRegion)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORSOrigins)
	assert.Empty(t, cfg.RedisURL)
	assert.Empty(t, cfg.S3Bucket)
}

func TestLoadConfig_Overrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("DB_URL", "postgres://localhost/meals")
	t.Setenv("PORT", "8080")
	t.Setenv("OPENAI_BASE_URL", "http://localhost:9999/")
	t.Setenv("OPENAI_MODEL", "gpt-4o-mini")
	t.Setenv("ANALYSIS_PASSES", "1")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("S3_BUCKET_NAME", "meal-photos")
	t.Setenv("AWS_REGION", "eu-west-1")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "http://localhost:9999", cfg.OpenAIBaseURL)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAIModel)
	assert.Equal(t, 1, cfg.AnalysisPasses)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, "meal-photos", cfg.S3Bucket)
	assert.Equal(t, "eu-west-1", cfg.AWSRegion)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"missing DB_URL", map[string]string{}, "DB_URL is required"},
		{"non-numeric port", map[string]string{"DB_URL": "x", "PORT": "http"}, "PORT must be a number"},
		{"zero passes", map[string]string{"DB_URL": "x", "ANALYSIS_PASSES": "0"}, "ANALYSIS_PASSES must be 1 or 2"},
		{"three passes", map[string]string{"DB_URL": "x", "ANALYSIS_PASSES": "3"}, "ANALYSIS_PASSES must be 1 or 2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearConfigEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := loadConfig()
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}
