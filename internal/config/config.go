package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/docmerge/internal/walker"
)

// Config holds every setting read from the environment.
type Config struct {
	// Matching
	MatchName    string
	IgnoreCase   bool
	Skip         []string
	SkipDefaults bool

	// Destination handling
	Clean bool

	// Logging
	LogLevel  string
	LogFormat string

	// Preview server
	Port        string
	APIKey      string
	Source      string
	Destination string
	StatsWindow time.Duration

	// Catalog parsing
	MaxParseBytes        int64
	PDFFallbackPdftotext bool
}

// Load reads the configuration from the environment, applying defaults.
func Load() Config {
	cfg := Config{
		MatchName:    envOr("DOCMERGE_MATCH_NAME", walker.DefaultName),
		IgnoreCase:   envBool("DOCMERGE_IGNORE_CASE", false),
		Skip:         envList("DOCMERGE_SKIP"),
		SkipDefaults: envBool("DOCMERGE_SKIP_DEFAULTS", false),

		Clean: envBool("DOCMERGE_CLEAN", false),

		LogLevel:  envOr("DOCMERGE_LOG_LEVEL", "info"),
		LogFormat: envOr("DOCMERGE_LOG_FORMAT", "json"),

		Port:        envOr("PORT", "8090"),
		APIKey:      os.Getenv("DOCMERGE_API_KEY"),
		Source:      os.Getenv("DOCMERGE_SOURCE"),
		Destination: os.Getenv("DOCMERGE_DEST"),
		StatsWindow: envDuration("DOCMERGE_STATS_WINDOW", 1*time.Hour),

		MaxParseBytes:        envInt64("DOCMERGE_MAX_PARSE_BYTES", 52428800), // 50MB
		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),
	}

	if strings.TrimSpace(cfg.MatchName) == "" {
		cfg.MatchName = walker.DefaultName
	}
	if cfg.StatsWindow <= 0 {
		cfg.StatsWindow = 1 * time.Hour
	}
	if cfg.MaxParseBytes <= 0 {
		cfg.MaxParseBytes = 52428800
	}

	return cfg
}

// Validate checks the settings shared by every command.
func (c Config) Validate() error {
	if strings.ContainsAny(c.MatchName, `/\`) || c.MatchName == "." || c.MatchName == ".." {
		return fmt.Errorf("DOCMERGE_MATCH_NAME must be a single directory name, got %q", c.MatchName)
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("DOCMERGE_LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("DOCMERGE_LOG_LEVEL must be debug, info, warn or error, got %q", c.LogLevel)
	}
	return nil
}

// ValidateServe checks the settings only the preview server needs.
func (c Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	return nil
}

// WalkOptions translates the matching settings for the walker.
func (c Config) WalkOptions() walker.Options {
	opts := walker.Options{
		Name:       c.MatchName,
		IgnoreCase: c.IgnoreCase,
		Skip:       c.Skip,
	}
	if c.SkipDefaults {
		opts.Skip = append(append([]string{}, walker.DefaultSkip...), c.Skip...)
		opts.SkipHidden = true
	}
	return opts
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
