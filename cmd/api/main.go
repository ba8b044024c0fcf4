package main

import (
	"context"
	"os"

	"anggaran-backend/internal/config"
	"anggaran-backend/internal/interfaces/router"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load")
	}
	cfg.SetupLogging()

	app, _, rdb, err := router.CreateApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DatabaseDriver).Msg("app create")
	}
	log.Info().Str("driver", cfg.DatabaseDriver).Msg("database connected")
	if rdb != nil {
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatal().Err(err).Msg("redis connection failed")
		}
		log.Info().Msg("redis connected")
	} else {
		log.Warn().Msg("REDIS_URL not set: sessions and traffic counters disabled")
	}

	port := cfg.Port
	if p := os.Getenv("PORT"); p != "" {
		port = p
	}
	log.Info().Str("port", port).Str("health", "/health/json").Msg("server running")
	if err := app.Listen(":" + port); err != nil {
		log.Fatal().Err(err).Msg("listen")
	}
}
