package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	LogLevel    slog.Level
	CORSOrigins []string

	GitHubToken       string
	GitHubAPIURL      string
	GitHubRepos       []string
	GitHubHTTPTimeout time.Duration
	ReviewCacheTTL    time.Duration

	// Reporting window; zero when unset
	DateFrom   time.Time
	DateTo     time.Time
	OutputPath string

	// Server refresh
	RefreshInterval time.Duration
	RefreshLookback time.Duration
}

// Load reads configuration from environment variables.
// Returns an error if required variables are missing or malformed.
func Load() (*Config, error) {
	ghToken := os.Getenv("GITHUB_TOKEN")
	if ghToken == "" {
		return nil, fmt.Errorf("GITHUB_TOKEN is required")
	}

	dateFrom, err := getDate("DATE_FROM")
	if err != nil {
		return nil, err
	}
	dateTo, err := getDate("DATE_TO")
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		LogLevel:    getLevel("LOG_LEVEL", slog.LevelInfo),
		CORSOrigins: SplitList(os.Getenv("CORS_ORIGINS")),

		GitHubToken:       ghToken,
		GitHubAPIURL:      getEnv("GITHUB_API_URL", "https://api.github.com"),
		GitHubRepos:       SplitList(os.Getenv("GITHUB_REPOS")),
		GitHubHTTPTimeout: getDuration("GITHUB_HTTP_TIMEOUT", 0),
		ReviewCacheTTL:    getDuration("REVIEW_CACHE_TTL", time.Hour),

		DateFrom:   dateFrom,
		DateTo:     dateTo,
		OutputPath: os.Getenv("OUTPUT_PATH"),

		RefreshInterval: getDuration("REFRESH_INTERVAL", time.Hour),
		RefreshLookback: getDuration("REFRESH_LOOKBACK", 14*24*time.Hour),
	}, nil
}

// SplitList splits a comma separated value, dropping empty entries
func SplitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// ParseDate accepts YYYY-MM-DD (midnight UTC) or RFC3339
func ParseDate(value string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD or RFC3339)", value)
	}
	return t, nil
}

// IsDevelopment reports whether the service runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getDate(key string) (time.Time, error) {
	value := os.Getenv(key)
	if value == "" {
		return time.Time{}, nil
	}
	t, err := ParseDate(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", key, err)
	}
	return t, nil
}

func getLevel(key string, defaultValue slog.Level) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(os.Getenv(key))); err != nil {
		return defaultValue
	}
	return level
}
