package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv         string
	HTTPAddr       string
	MigrationsPath string

	// Supabase/hosted Postgres convenience:
	// - DATABASE_URL: runtime connection (often PgBouncer/pooler)
	// - DIRECT_URL: direct connection for migrations
	DatabaseURL string
	DirectURL   string

	DB DBConfig

	// Storage selects the booking store: "postgres" (default) or "memory".
	Storage string

	Supabase SupabaseConfig

	// RedisURL enables the cross-process realtime feed. Without it changes
	// are only broadcast inside this process.
	RedisURL      string
	RealtimeTopic string

	// AllowedOrigins is a comma-separated allowlist of browser origins, e.g.
	//   https://giggen.app,http://localhost:5173
	AllowedOrigins []string

	// CompletionSweepInterval controls how often upcoming bookings whose
	// event is over are marked completed. Zero disables the sweep.
	CompletionSweepInterval time.Duration

	LogLevel string
}

type DBConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
}

type SupabaseConfig struct {
	URL string

	// JWTSecret signs the access tokens issued by Supabase Auth (HS256).
	JWTSecret string

	// Audience expected in access tokens; Supabase uses "authenticated".
	Audience string
}

func Load() Config {
	// Convenience for local dev: load variables from .env if present.
	// In production, rely on real environment variables.
	_ = godotenv.Load()

	// Cloud Run sets PORT. Prefer it when HTTP_ADDR isn't explicitly set.
	httpAddr := os.Getenv("HTTP_ADDR")
	if httpAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			httpAddr = ":" + port
		} else {
			httpAddr = ":8081"
		}
	}

	return Config{
		AppEnv:         env("APP_ENV", "dev"),
		HTTPAddr:       httpAddr,
		MigrationsPath: os.Getenv("MIGRATIONS_PATH"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		DirectURL:      os.Getenv("DIRECT_URL"),
		DB: DBConfig{
			Host:     env("DB_HOST", "localhost"),
			Port:     env("DB_PORT", "5432"),
			Name:     env("DB_NAME", "giggen"),
			User:     env("DB_USER", "giggen"),
			Password: env("DB_PASSWORD", "giggen"),
			SSLMode:  env("DB_SSLMODE", "disable"),
		},
		Storage: env("STORAGE", "postgres"),
		Supabase: SupabaseConfig{
			URL:       os.Getenv("SUPABASE_URL"),
			JWTSecret: os.Getenv("SUPABASE_JWT_SECRET"),
			Audience:  env("SUPABASE_JWT_AUDIENCE", "authenticated"),
		},
		RedisURL:                os.Getenv("REDIS_URL"),
		RealtimeTopic:           env("REALTIME_TOPIC", "bookings.changes"),
		AllowedOrigins:          envList("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:4173"),
		CompletionSweepInterval: envDuration("COMPLETION_SWEEP_INTERVAL", 5*time.Minute),
		LogLevel:                env("LOG_LEVEL", "info"),
	}
}

func (c Config) IsProd() bool {
	return c.AppEnv == "prod"
}

func env(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envList(key, fallbackCSV string) []string {
	v := os.Getenv(key)
	if v == "" {
		v = fallbackCSV
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
