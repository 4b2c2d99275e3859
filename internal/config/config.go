package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port   string
	DBPath string

	Workers        int
	SubmitInterval time.Duration
	FetchTimeout   time.Duration

	JobRetention       time.Duration
	JobCleanupSchedule string
	UniverseTTL        time.Duration

	Provider          string
	UpstoxAPIKey      string
	UpstoxAPISecret   string
	UpstoxRedirectURI string
	UpstoxAccessToken string

	FrontendURL string
	CORSOrigins []string

	LogLevel  string
	LogFormat string
}

func Load() Config {
	return Config{
		Port:   getEnv("PORT", "8080"),
		DBPath: getEnv("DB_PATH", "scanner.db"),

		Workers:        getEnvInt("WORKERS", 20),
		SubmitInterval: getEnvDuration("SUBMIT_INTERVAL", 45*time.Millisecond),
		FetchTimeout:   getEnvDuration("FETCH_TIMEOUT", 5*time.Second),

		JobRetention:       getEnvDuration("JOB_RETENTION", 10*time.Minute),
		JobCleanupSchedule: getEnv("JOB_CLEANUP_SCHEDULE", "@every 1m"),
		UniverseTTL:        getEnvDuration("UNIVERSE_TTL", time.Hour),

		Provider:          getEnv("PROVIDER", "upstox"),
		UpstoxAPIKey:      getEnv("UPSTOX_API_KEY", ""),
		UpstoxAPISecret:   getEnv("UPSTOX_API_SECRET", ""),
		UpstoxRedirectURI: getEnv("UPSTOX_REDIRECT_URI", ""),
		UpstoxAccessToken: getEnv("UPSTOX_ACCESS_TOKEN", ""),

		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:8080"),
		CORSOrigins: getEnvList("CORS_ORIGINS", []string{"*"}),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go durations ("45ms", "10m") or a bare number of
// seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil && d >= 0 {
		return d
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 0 {
		return time.Duration(secs * float64(time.Second))
	}
	return fallback
}

// getEnvList splits a comma-separated value, dropping empty entries.
func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
