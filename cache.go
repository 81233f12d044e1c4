package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"lg/meal-nutrition-go-api/nutrition"
)

const analysisCacheTTL = 24 * time.Hour

// analysisCache stores analysis results so a user re-uploading the same photo
// skips the OpenAI round trip. A nil *analysisCache is a valid, disabled cache.
type analysisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// newAnalysisCache connects to Redis at url. An empty url disables caching.
func newAnalysisCache(ctx context.Context, url string) (*analysisCache, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Info().Str("addr", opts.Addr).Msg("Redis cache ready")
	return &analysisCache{rdb: rdb, ttl: analysisCacheTTL}, nil
}

// imageDigest is the hex SHA-256 of the uploaded bytes.
func imageDigest(image []byte) string {
	sum := sha256.Sum256(image)
	return hex.EncodeToString(sum[:])
}

// analysisCacheKey scopes a digest to the user and to the profile fields the
// prompt is built from. Estimates are personalized, so the same photo from
// another user or after a goal change must miss.
func analysisCacheKey(userID int, p nutrition.UserProfile, digest string) string {
	m := nutrition.NormalizeProfile(p)
	promptContext := fmt.Sprintf("%d|%.0f|%s|%s", p.Age, m.WeightKG, p.ActivityLevel, p.Goal)
	sum := sha256.Sum256([]byte(promptContext))
	return fmt.Sprintf("meal-analysis:%d:%s:%s", userID, hex.EncodeToString(sum[:8]), digest)
}

// get returns the cached analysis for key. Misses and Redis errors both
// report false; errors are logged because the caller can always re-analyze.
func (ac *analysisCache) get(ctx context.Context, key string) (mealAnalysis, bool) {
	if ac == nil {
		return mealAnalysis{}, false
	}
	data, err := ac.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Msg("[cache] get failed")
		}
		return mealAnalysis{}, false
	}
	var a mealAnalysis
	if err := json.Unmarshal(data, &a); err != nil {
		log.Warn().Err(err).Msg("[cache] corrupt entry")
		return mealAnalysis{}, false
	}
	return a, true
}

func (ac *analysisCache) set(ctx context.Context, key string, a mealAnalysis) {
	if ac == nil {
		return
	}
	data, err := json.Marshal(a)
	if err != nil {
		log.Warn().Err(err).Msg("[cache] marshal failed")
		return
	}
	if err := ac.rdb.Set(ctx, key, data, ac.ttl).Err(); err != nil {
		log.Warn().Err(err).Msg("[cache] set failed")
	}
}

func (ac *analysisCache) close() error {
	if ac == nil {
		return nil
	}
	return ac.rdb.Close()
}
