package main

import (
	"context"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if gin.Mode() != gin.ReleaseMode {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	// A missing .env is fine in production, where the environment is set directly.
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	pool, err := newDBPool(ctx, cfg.DBURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database unavailable")
	}
	defer pool.Close()
	log.Info().Msg("DB pool ready!")

	cache, err := newAnalysisCache(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("redis unavailable")
	}
	defer cache.close()

	h := &Handler{
		db:             pool,
		openAIBaseURL:  cfg.OpenAIBaseURL,
		openAIModel:    cfg.OpenAIModel,
		analysisPasses: cfg.AnalysisPasses,
		cache:          cache,
	}
	if cfg.S3Bucket != "" {
		photos, err := newS3PhotoStore(ctx, cfg.S3Bucket, cfg.AWSRegion)
		if err != nil {
			log.Fatal().Err(err).Msg("photo storage unavailable")
		}
		h.photos = photos
		log.Info().Str("bucket", cfg.S3Bucket).Msg("photo storage ready")
	}

	router := gin.Default()
	router.SetTrustedProxies(nil)
	router.MaxMultipartMemory = maxImageBytes
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	h.registerRoutes(router)

	log.Info().Str("port", cfg.Port).Msg("Starting gin app...")
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
