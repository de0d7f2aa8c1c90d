package config

import (
	"os"
	"strings"
	"time"

	"invoice-console/internal/shared/telemetry"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	LogLevel        string
	CORSAllowOrigin []string

	BackendURL          string
	BackendTimeout      time.Duration
	BackendToken        string
	BackendClientID     string
	BackendClientSecret string
	BackendTokenURL     string
	BackendScopes       []string

	PollInterval        time.Duration
	AcceptRefreshDelay  time.Duration
	ReviewRedirectDelay time.Duration

	DatabaseURL string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env.local", ".env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		telemetry.Warn("config.database_url_missing", map[string]any{
			"env":     env,
			"history": "memory",
		})
	}

	return Config{
		Port:            getEnv("PORT", "8090"),
		Env:             env,
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),

		BackendURL:          strings.TrimRight(getEnv("BACKEND_URL", "http://localhost:8000"), "/"),
		BackendTimeout:      getDuration("BACKEND_TIMEOUT", 30*time.Second),
		BackendToken:        getEnv("BACKEND_TOKEN", ""),
		BackendClientID:     getEnv("BACKEND_CLIENT_ID", ""),
		BackendClientSecret: getEnv("BACKEND_CLIENT_SECRET", ""),
		BackendTokenURL:     getEnv("BACKEND_TOKEN_URL", ""),
		BackendScopes:       splitAndTrim(getEnv("BACKEND_SCOPES", "")),

		PollInterval:        getDuration("POLL_INTERVAL", 5*time.Second),
		AcceptRefreshDelay:  getDuration("ACCEPT_REFRESH_DELAY", 2*time.Second),
		ReviewRedirectDelay: getDuration("REVIEW_REDIRECT_DELAY", 2*time.Second),

		DatabaseURL: dbURL,
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getDuration accepts Go durations ("5s") or bare seconds ("5").
func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		d, err = time.ParseDuration(raw + "s")
	}
	if err != nil || d <= 0 {
		telemetry.Warn("config.invalid_duration", map[string]any{
			"key":     key,
			"value":   raw,
			"default": def.String(),
		})
		return def
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}
