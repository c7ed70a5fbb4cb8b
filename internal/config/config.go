package config

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	ServerPort string `env:"SERVER_PORT, default=8080"`

	// DBDriver is one of mysql, postgres, sqlite or mongo.
	DBDriver      string `env:"DB_DRIVER, default=mysql"`
	DatabaseDSN   string `env:"DATABASE_DSN, default=user:password@tcp(localhost:3306)/app?charset=utf8mb4&parseTime=True&loc=Local"`
	MongoURI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	MongoDatabase string `env:"MONGO_DATABASE, default=userdirectory"`
	ResetDB       bool   `env:"RESET_DB, default=false"`

	RedisAddr string `env:"REDIS_ADDR, default=localhost:6379"`
	RedisDB   int    `env:"REDIS_DB, default=0"`
	RedisPass string `env:"REDIS_PASSWORD"`

	JWTSecret   string `env:"JWT_SECRET, default=change-me"`
	SwaggerHost string `env:"SWAGGER_HOST"`

	LogLevel  string `env:"LOG_LEVEL, default=info"`
	LogFormat string `env:"LOG_FORMAT, default=text"`

	SeedSource string `env:"SEED_SOURCE, default=seed/users.json"`
}

// Load builds Config from the environment, reading a .env file first when one exists.
func Load(ctx context.Context) (*Config, error) {
	// a missing .env is fine, real env vars still apply
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("parsing env vars: %w", err)
	}
	return &cfg, nil
}
