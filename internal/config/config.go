package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	Database    Database

	Pickup    Pickup    `envPrefix:"PICKUP_"`
	Auth      Auth      `envPrefix:"AUTH_"`
	Kafka     Kafka     `envPrefix:"KAFKA_"`
	Redis     Redis     `envPrefix:"REDIS_"`
	RateLimit RateLimit `envPrefix:"SCAN_"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development" validate:"oneof=development test production"`
}

func (e Environment) IsProduction() bool { return e.Name == "production" }

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	Format string `env:"LOG_FORMAT" envDefault:"json" validate:"oneof=json console"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080" validate:"required,numeric"`
}

type Database struct {
	Driver       string `env:"DB_DRIVER" envDefault:"sqlite" validate:"oneof=sqlite mysql"`
	URL          string `env:"DATABASE_URL" envDefault:"canteen.db" validate:"required"`
	MaxOpenConns int    `env:"DB_MAX_OPEN_CONNS" envDefault:"50" validate:"min=1"`
	MaxIdleConns int    `env:"DB_MAX_IDLE_CONNS" envDefault:"10" validate:"min=0"`
	SeedCatalog  bool   `env:"DB_SEED_CATALOG" envDefault:"false"`
}

// Pickup configures the encrypted pickup token.
type Pickup struct {
	TokenSecret string        `env:"TOKEN_SECRET" validate:"required"`
	TokenTTL    time.Duration `env:"TOKEN_TTL" envDefault:"10m" validate:"min=1s"`
}

type Auth struct {
	JWTSecret string `env:"JWT_SECRET" validate:"required"`
}

// Kafka is optional; with no brokers, order events are only logged.
type Kafka struct {
	Brokers    []string `env:"BROKERS" envSeparator:","`
	OrderTopic string   `env:"ORDER_TOPIC" envDefault:"canteen.orders"`
}

// Redis is optional; with no address, scan throttling is per process.
type Redis struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

type RateLimit struct {
	PerSecond int           `env:"RATE_PER_SEC" envDefault:"5" validate:"min=0"`
	Burst     int           `env:"BURST" envDefault:"10" validate:"min=1"`
	Window    time.Duration `env:"RATE_WINDOW" envDefault:"1m"`
}

// Load reads .env (if present) and the process environment, then validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}
