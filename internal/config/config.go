package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App struct {
		Name string `envconfig:"APP_NAME" default:"Loyer"`
		Port int    `envconfig:"PORT" default:"8080"`
	}

	DB struct {
		Host     string `envconfig:"DB_HOST" default:"localhost"`
		Port     int    `envconfig:"DB_PORT" default:"5432"`
		User     string `envconfig:"DB_USER" default:"postgres"`
		Password string `envconfig:"DB_PASSWORD" default:""`
		Name     string `envconfig:"DB_NAME" default:"loyer"`
		// Applies embedded migrations when the API starts.
		Migrate bool `envconfig:"DB_MIGRATE" default:"true"`
	}

	Server struct {
		Timeout time.Duration `envconfig:"SERVER_TIMEOUT" default:"30s"`
	}

	Auth struct {
		Secret   string        `envconfig:"AUTH_SECRET"`
		Issuer   string        `envconfig:"AUTH_ISSUER" default:"loyer"`
		TokenTTL time.Duration `envconfig:"AUTH_TOKEN_TTL" default:"24h"`
	}

	CORS struct {
		AllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:5173"`
	}

	Kafka struct {
		// Empty disables Kafka; events are only logged.
		Brokers     []string `envconfig:"KAFKA_BROKERS"`
		TopicPrefix string   `envconfig:"KAFKA_TOPIC_PREFIX" default:"loyer."`
	}

	Redis struct {
		// Empty disables the dashboard cache.
		Addr     string        `envconfig:"REDIS_ADDR"`
		Password string        `envconfig:"REDIS_PASSWORD"`
		DB       int           `envconfig:"REDIS_DB" default:"0"`
		TTL      time.Duration `envconfig:"DASHBOARD_CACHE_TTL" default:"5m"`
	}

	Documents struct {
		Backend    string        `envconfig:"DOCUMENTS_BACKEND" default:"local"`
		Dir        string        `envconfig:"DOCUMENTS_DIR" default:"./documents"`
		Bucket     string        `envconfig:"DOCUMENTS_BUCKET"`
		Region     string        `envconfig:"AWS_REGION" default:"eu-west-3"`
		Endpoint   string        `envconfig:"AWS_ENDPOINT_URL"`
		PresignTTL time.Duration `envconfig:"DOCUMENTS_PRESIGN_TTL" default:"15m"`
	}

	Landlord struct {
		Name    string `envconfig:"LANDLORD_NAME" default:""`
		Address string `envconfig:"LANDLORD_ADDRESS" default:""`
		City    string `envconfig:"LANDLORD_CITY" default:""`
	}
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name)
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if cfg.Auth.Secret == "" {
		return nil, fmt.Errorf("AUTH_SECRET is required")
	}

	switch cfg.Documents.Backend {
	case "local", "s3":
	default:
		return nil, fmt.Errorf("unknown documents backend %q", cfg.Documents.Backend)
	}

	if cfg.Documents.Backend == "s3" && cfg.Documents.Bucket == "" {
		return nil, fmt.Errorf("DOCUMENTS_BUCKET is required for the s3 backend")
	}

	return &cfg, nil
}
