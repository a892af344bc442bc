package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Addr          string
	MongoURI      string
	MongoDatabase string
	QueryTimeout  time.Duration

	StrictStock bool
	DeliveryFee decimal.Decimal

	SessionLifetime time.Duration
	// CleanupInterval of zero disables the background sweep.
	CleanupInterval time.Duration
	AbandonAfter    time.Duration

	AllowedOrigins []string
	StaticDir      string
	FrontendURL    string

	LogLevel  string
	LogFormat string

	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSSenderAddress   string
}

// LoadDotEnv reads a .env file into the process environment. A missing file
// is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Load reads the configuration from the environment, then applies
// command-line flags on top.
func Load(args []string) (Config, error) {
	return load(args, os.LookupEnv)
}

func load(args []string, lookup func(string) (string, bool)) (Config, error) {
	env := func(key, def string) string {
		if v, ok := lookup(key); ok && v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		Addr:               env("ADDR", ":4000"),
		MongoURI:           env("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase:      env("MONGODB_DATABASE", "masala"),
		AllowedOrigins:     splitList(env("ALLOWED_ORIGINS", "http://localhost:5500,http://127.0.0.1:5500")),
		StaticDir:          env("STATIC_DIR", "./ui/static/"),
		FrontendURL:        strings.TrimRight(env("FRONTEND_URL", "http://localhost:5500"), "/"),
		LogLevel:           env("LOG_LEVEL", "info"),
		LogFormat:          env("LOG_FORMAT", "json"),
		AWSRegion:          env("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:     env("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: env("AWS_SECRET_ACCESS_KEY", ""),
		AWSSenderAddress:   env("AWS_SENDER_ADDRESS", ""),
	}

	var err error
	if cfg.StrictStock, err = strconv.ParseBool(env("STRICT_STOCK", "false")); err != nil {
		return Config{}, fmt.Errorf("STRICT_STOCK: %w", err)
	}
	if cfg.DeliveryFee, err = decimal.NewFromString(env("DELIVERY_FEE", "0")); err != nil {
		return Config{}, fmt.Errorf("DELIVERY_FEE: %w", err)
	}
	if cfg.DeliveryFee.IsNegative() {
		return Config{}, fmt.Errorf("DELIVERY_FEE: must not be negative")
	}

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"QUERY_TIMEOUT", "5s", &cfg.QueryTimeout},
		{"SESSION_LIFETIME", "24h", &cfg.SessionLifetime},
		{"CLEANUP_INTERVAL", "0", &cfg.CleanupInterval},
		{"ABANDON_AFTER", "720h", &cfg.AbandonAfter},
	}
	for _, d := range durations {
		if *d.dst, err = time.ParseDuration(env(d.key, d.def)); err != nil {
			return Config{}, fmt.Errorf("%s: %w", d.key, err)
		}
	}

	flags := flag.NewFlagSet("web", flag.ContinueOnError)
	flags.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP network address")
	flags.StringVar(&cfg.MongoURI, "mongo-uri", cfg.MongoURI, "MongoDB connection string")
	flags.BoolVar(&cfg.StrictStock, "strict-stock", cfg.StrictStock, "Reserve stock atomically before storing orders")
	flags.DurationVar(&cfg.CleanupInterval, "cleanup-interval", cfg.CleanupInterval, "How often to sweep abandoned orders (0 disables)")
	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SESConfigured reports whether password reset mail can go through SES.
func (c Config) SESConfigured() bool {
	return c.AWSSenderAddress != ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
