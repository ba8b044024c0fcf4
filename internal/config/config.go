package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env                    string
	Port                   string
	DatabaseDriver         string // "postgres" (default) or "sqlite" for local runs
	DatabaseURL            string
	RedisURL               string
	FrontendURLEndsWith    string
	DevPassword            string
	AllowCrossSiteDev      bool
	HealthAdminKey         string
	LogLevel               string
	ImportChunkSize        int     // rows per committed chunk in the hierarchy import
	LowAbsorptionThreshold float64 // default threshold for /evaluations/low-absorption
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("DATABASE_DRIVER", "postgres")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("IMPORT_CHUNK_SIZE", 100)
	viper.SetDefault("LOW_ABSORPTION_THRESHOLD", 80)

	chunk := viper.GetInt("IMPORT_CHUNK_SIZE")
	if chunk <= 0 {
		chunk = 100
	}
	threshold := viper.GetFloat64("LOW_ABSORPTION_THRESHOLD")
	if threshold <= 0 {
		threshold = 80
	}

	return &Config{
		Env:                    viper.GetString("APP_ENV"),
		Port:                   viper.GetString("PORT"),
		DatabaseDriver:         strings.ToLower(viper.GetString("DATABASE_DRIVER")),
		DatabaseURL:            viper.GetString("DATABASE_URL"),
		RedisURL:               viper.GetString("REDIS_URL"),
		FrontendURLEndsWith:    viper.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:            viper.GetString("DEV_PASSWORD"),
		AllowCrossSiteDev:      strings.EqualFold(viper.GetString("ALLOW_CROSS_SITE_DEV"), "true"),
		HealthAdminKey:         viper.GetString("HEALTH_ADMIN_KEY"),
		LogLevel:               viper.GetString("LOG_LEVEL"),
		ImportChunkSize:        chunk,
		LowAbsorptionThreshold: threshold,
	}, nil
}

// IsProduction reports whether the app runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
