package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Process Configuration
//
// Everything comes from environment variables with safe defaults for
// non-secret settings. Secrets (DATABASE_URL, API_AUTH_TOKEN) have no
// fallback and simply stay empty when unset — the subsystems that need
// them degrade gracefully.

// Config is the enumerated runtime configuration
type Config struct {
	Port     string
	LogLevel string

	DataDir            string
	SanctionsDir       string
	RiskAssessmentsDir string
	AuditLogsDir       string
	ConfigDir          string

	APIRateLimit   int           // requests/min against the external indexer
	DefaultMaxHops int           // walker depth when the caller omits one
	RiskCacheTTL   time.Duration // walk-cache freshness window

	IndexerBaseURL    string
	SanctionsFeedURLs []string

	DatabaseURL    string
	APIAuthToken   string
	AllowedOrigins string
}

// Load reads the configuration from the environment
func Load() Config {
	dataDir := getEnvOrDefault("DATA_DIR", "./data")

	cfg := Config{
		Port:     getEnvOrDefault("PORT", "5340"),
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),

		DataDir:            dataDir,
		SanctionsDir:       getEnvOrDefault("SANCTIONS_DIR", filepath.Join(dataDir, "sanctions")),
		RiskAssessmentsDir: getEnvOrDefault("RISK_ASSESSMENTS_DIR", filepath.Join(dataDir, "risk-assessments")),
		AuditLogsDir:       getEnvOrDefault("AUDIT_LOGS_DIR", filepath.Join(dataDir, "audit-logs")),
		ConfigDir:          getEnvOrDefault("CONFIG_DIR", filepath.Join(dataDir, "config")),

		APIRateLimit:   getEnvInt("API_RATE_LIMIT", 60),
		DefaultMaxHops: getEnvInt("DEFAULT_MAX_HOPS", 5),
		RiskCacheTTL:   time.Duration(getEnvFloat("RISK_CACHE_TTL_HOURS", 0.5) * float64(time.Hour)),

		IndexerBaseURL: getEnvOrDefault("INDEXER_BASE_URL", "https://blockstream.info/api"),

		DatabaseURL:    os.Getenv("DATABASE_URL"),
		APIAuthToken:   os.Getenv("API_AUTH_TOKEN"),
		AllowedOrigins: os.Getenv("ALLOWED_ORIGINS"),
	}

	if feeds := os.Getenv("SANCTIONS_FEED_URLS"); feeds != "" {
		for _, u := range strings.Split(feeds, ",") {
			if u = strings.TrimSpace(u); u != "" {
				cfg.SanctionsFeedURLs = append(cfg.SanctionsFeedURLs, u)
			}
		}
	}

	return cfg
}

// SanctionsFile is the consolidated SDN document path
func (c Config) SanctionsFile() string {
	return filepath.Join(c.SanctionsDir, "sanctioned_addresses.json")
}

func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		log.Printf("[Config] invalid %s=%q, using %d", key, val, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		log.Printf("[Config] invalid %s=%q, using %g", key, val, fallback)
		return fallback
	}
	return f
}
