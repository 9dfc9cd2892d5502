package config

import (
	_ "embed"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed thresholds.yaml
var thresholdsYAML []byte

type Config struct {
	Database   DatabaseConfig
	Extractor  ExtractorConfig
	Match      MatchConfig
	Auth       AuthConfig
	Thresholds ThresholdsConfig
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type ExtractorConfig struct {
	URL     string        // embedding service base URL (default http://localhost:8000)
	Model   string        // extractor model name (default buffalo_l)
	Dim     int           // embedding length L for the deployed model (default 512)
	Timeout time.Duration // per-call timeout for extraction requests
	Workers int           // max concurrent extraction calls (default 4)
}

type MatchConfig struct {
	Threshold float64 // L2 distance decision boundary; 0 means "use vendor operating point"
	Index     string  // "flat" (exhaustive scan) or "hnsw" (approximate, for large rosters)
	// AmbiguityMargin is the maximum gap between the best and second-best
	// below-threshold distances before an identify result is reported as
	// ambiguous instead of a match. Zero treats only exact ties as ambiguous.
	AmbiguityMargin float64
}

type AuthConfig struct {
	JWTSecret  string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type ThresholdsConfig struct {
	Models map[string]ModelThreshold `yaml:"models"`
}

type ModelThreshold struct {
	Threshold float64 `yaml:"threshold"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a non-negative float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
		return f
	}
	return defaultVal
}

// envString reads an environment variable with a fallback default.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var thresholds ThresholdsConfig
	if err := yaml.Unmarshal(thresholdsYAML, &thresholds); err != nil {
		// Embedded file, so this should never happen in practice.
		panic("failed to unmarshal embedded thresholds.yaml: " + err.Error())
	}

	return &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Extractor: ExtractorConfig{
			URL:     envString("EXTRACTOR_URL", "http://localhost:8000"),
			Model:   envString("EXTRACTOR_MODEL", "buffalo_l"),
			Dim:     envInt("EXTRACTOR_DIM", 512),
			Timeout: time.Duration(envInt("EXTRACTOR_TIMEOUT_MS", 10000)) * time.Millisecond,
			Workers: envInt("EXTRACTOR_WORKERS", 4),
		},
		Match: MatchConfig{
			Threshold:       envFloat("MATCH_THRESHOLD", 0),
			Index:           envString("MATCH_INDEX", "flat"),
			AmbiguityMargin: envFloat("MATCH_AMBIGUITY_MARGIN", 1e-6),
		},
		Auth: AuthConfig{
			JWTSecret:  os.Getenv("AUTH_JWT_SECRET"),
			Issuer:     envString("AUTH_ISSUER", "facegate"),
			AccessTTL:  time.Duration(envInt("AUTH_ACCESS_TTL_MIN", 30)) * time.Minute,
			RefreshTTL: time.Duration(envInt("AUTH_REFRESH_TTL_MIN", 60*24)) * time.Minute,
		},
		Thresholds: thresholds,
	}
}

// EffectiveThreshold resolves the match threshold: an explicit MATCH_THRESHOLD
// wins, otherwise the vendor operating point for the configured extractor
// model. A looser (larger) threshold increases false accepts and decreases
// false rejects.
func (c *Config) EffectiveThreshold() float64 {
	if c.Match.Threshold > 0 {
		return c.Match.Threshold
	}
	if mt, ok := c.Thresholds.Models[c.Extractor.Model]; ok && mt.Threshold > 0 {
		return mt.Threshold
	}
	// Conservative fallback when the model has no published operating point.
	return 0.5
}
