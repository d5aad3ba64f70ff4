// Package config reads the service configuration from the environment and .env files
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	extErrors "github.com/pkg/errors"
)

var validate *validator.Validate = validator.New()

// Config is the full configuration of the API server
type Config struct {
	Production bool

	ListenAddr  string `validate:"required"`
	PostgresURI string `validate:"required"`
	RedisURI    string
	RedisPW     string

	StripeKey           string `validate:"required"`
	StripeWebhookSecret string `validate:"required"`

	TwitterAPIKey       string `validate:"required"`
	TwitterAPISecretKey string `validate:"required"`
	TwitterAPIBase      string `validate:"required,url"`

	JWTSigningKey string `validate:"required,min=16"`
	JWTAudience   string
	CORSOrigins   []string

	EntitlementPolicy string `validate:"oneof=none purchase subscription any"`
	BrandedCTALabel   string `validate:"required_with=BrandedCTAURL"`
	BrandedCTAURL     string `validate:"required_with=BrandedCTALabel"`

	MessageRate  float64 `validate:"gt=0"`
	MessageBurst int     `validate:"gt=0"`

	SentryDSN string
}

// DotFile returns the .env file matching the ENV environment variable
func DotFile() string {
	if os.Getenv("ENV") == "production" {
		return ".env.production"
	}
	return ".env.development"
}

// Load reads the dot files that exist, without overriding variables already set, then the environment
func Load(files ...string) (*Config, error) {
	present := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) > 0 {
		if err := godotenv.Load(present...); err != nil {
			return nil, extErrors.Wrap(err, "Cannot load configurations from .env")
		}
	}
	return FromEnv()
}

// FromEnv builds the Config from environment variables and validates it
func FromEnv() (*Config, error) {
	rate, err := floatEnv("MESSAGE_RATE", 0.2)
	if err != nil {
		return nil, err
	}
	burst, err := intEnv("MESSAGE_BURST", 5)
	if err != nil {
		return nil, err
	}

	c := &Config{
		Production: os.Getenv("ENV") == "production",

		ListenAddr:  stringEnv("LISTEN_ADDR", ":42069"),
		PostgresURI: os.Getenv("POSTGRES_URI"),
		RedisURI:    os.Getenv("REDIS_URI"),
		RedisPW:     os.Getenv("REDIS_PW"),

		StripeKey:           os.Getenv("STRIPE_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),

		TwitterAPIKey:       os.Getenv("TWITTER_API_KEY"),
		TwitterAPISecretKey: os.Getenv("TWITTER_API_SECRET_KEY"),
		TwitterAPIBase:      stringEnv("TWITTER_API_BASE", "https://api.twitter.com/1.1"),

		JWTSigningKey: os.Getenv("JWT_SIGNING_KEY"),
		JWTAudience:   stringEnv("JWT_AUDIENCE", "authenticated"),
		CORSOrigins:   listEnv("CORS_ORIGINS"),

		EntitlementPolicy: stringEnv("ENTITLEMENT_POLICY", "purchase"),
		BrandedCTALabel:   os.Getenv("BRANDED_CTA_LABEL"),
		BrandedCTAURL:     os.Getenv("BRANDED_CTA_URL"),

		MessageRate:  rate,
		MessageBurst: burst,

		SentryDSN: os.Getenv("SENTRY_DSN"),
	}
	if err := validate.Struct(c); err != nil {
		return nil, extErrors.Wrap(err, "Invalid configuration")
	}
	return c, nil
}

func stringEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); len(v) > 0 {
		return v
	}
	return fallback
}

func listEnv(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if len(raw) == 0 {
		return nil
	}
	list := make([]string, 0)
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); len(v) > 0 {
			list = append(list, v)
		}
	}
	return list
}

func floatEnv(key string, fallback float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if len(raw) == 0 {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, extErrors.Wrapf(err, "Invalid %s", key)
	}
	return v, nil
}

func intEnv(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if len(raw) == 0 {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, extErrors.Wrapf(err, "Invalid %s", key)
	}
	return v, nil
}
