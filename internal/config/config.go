/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	DBBackend   DatabaseBackend
	DBDSN       string
	RulesFile   string // Optional YAML rules file seeded into the rule store on serve
	ExportDir   string // Local directory for timestamped master copies when S3 is not configured

	LogBufferSize int // Recent log lines kept for the logs endpoint

	// S3 Object Storage configuration
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Region          string
	S3Bucket          string
	S3Endpoint        string // For S3-compatible services (MinIO, Spaces, etc.)
	S3UsePathStyle    bool   // Required for MinIO

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	// Rule cache
	CacheEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Event forwarding; empty disables NATS
	NATSURL string

	LegacyEnvWarnings []string
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnvAny([]string{"BREAKPLAN_ENV"}, "development"),
		HTTPBind:    getEnvAny([]string{"BREAKPLAN_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:    getEnvIntAny([]string{"BREAKPLAN_HTTP_PORT", "PORT"}, 8080),
		DBBackend:   DatabaseBackend(strings.ToLower(getEnvAny([]string{"BREAKPLAN_DB_BACKEND"}, string(DatabaseSQLite)))),
		DBDSN:       getEnvAny([]string{"BREAKPLAN_DB_DSN"}, "breakplan.db"),
		RulesFile:   getEnvAny([]string{"BREAKPLAN_RULES_FILE"}, ""),
		ExportDir:   getEnvAny([]string{"BREAKPLAN_EXPORT_DIR"}, "./exports"),

		LogBufferSize: getEnvIntAny([]string{"BREAKPLAN_LOG_BUFFER_SIZE"}, 5000),

		// S3 Object Storage configuration
		S3AccessKeyID:     getEnvAny([]string{"BREAKPLAN_S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"}, ""),
		S3SecretAccessKey: getEnvAny([]string{"BREAKPLAN_S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"}, ""),
		S3Region:          getEnvAny([]string{"BREAKPLAN_S3_REGION", "AWS_REGION"}, "us-east-1"),
		S3Bucket:          getEnvAny([]string{"BREAKPLAN_S3_BUCKET", "S3_BUCKET"}, ""),
		S3Endpoint:        getEnvAny([]string{"BREAKPLAN_S3_ENDPOINT", "S3_ENDPOINT"}, ""),
		S3UsePathStyle:    getEnvBoolAny([]string{"BREAKPLAN_S3_USE_PATH_STYLE", "S3_USE_PATH_STYLE"}, false),

		// Tracing configuration
		TracingEnabled:    getEnvBoolAny([]string{"BREAKPLAN_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"BREAKPLAN_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"BREAKPLAN_TRACING_SAMPLE_RATE"}, 1.0),

		// Rule cache
		CacheEnabled:  getEnvBoolAny([]string{"BREAKPLAN_CACHE_ENABLED"}, false),
		RedisAddr:     getEnvAny([]string{"BREAKPLAN_REDIS_ADDR"}, "localhost:6379"),
		RedisPassword: getEnvAny([]string{"BREAKPLAN_REDIS_PASSWORD"}, ""),
		RedisDB:       getEnvIntAny([]string{"BREAKPLAN_REDIS_DB"}, 0),

		NATSURL: getEnvAny([]string{"BREAKPLAN_NATS_URL"}, ""),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("BREAKPLAN_DB_DSN must be provided")
	}

	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("BREAKPLAN_HTTP_PORT %d out of range", cfg.HTTPPort)
	}

	if cfg.TracingSampleRate < 0 || cfg.TracingSampleRate > 1 {
		return nil, fmt.Errorf("BREAKPLAN_TRACING_SAMPLE_RATE must be between 0 and 1, got %v", cfg.TracingSampleRate)
	}

	if cfg.S3Bucket != "" && strings.EqualFold(cfg.Environment, "production") {
		if cfg.S3Endpoint != "" && (cfg.S3AccessKeyID == "" || cfg.S3SecretAccessKey == "") {
			return nil, fmt.Errorf("BREAKPLAN_S3_ACCESS_KEY_ID and BREAKPLAN_S3_SECRET_ACCESS_KEY are required for a custom S3 endpoint in production")
		}
	}
	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()

	return cfg, nil
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"ENVIRONMENT":         "use BREAKPLAN_ENV",
		"DB_DSN":              "use BREAKPLAN_DB_DSN",
		"RULES_FILE":          "use BREAKPLAN_RULES_FILE",
		"TRACING_ENABLED":     "use BREAKPLAN_TRACING_ENABLED",
		"OTLP_ENDPOINT":       "use BREAKPLAN_OTLP_ENDPOINT",
		"TRACING_SAMPLE_RATE": "use BREAKPLAN_TRACING_SAMPLE_RATE",
	}

	warnings := make([]string, 0, len(legacy))
	for _, key := range slices.Sorted(maps.Keys(legacy)) {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, legacy[key]))
		}
	}
	return warnings
}

// HTTPAddr is the listen address for the API server.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTPBind, c.HTTPPort)
}

// S3Enabled reports whether master copies go to S3 instead of the export directory.
func (c *Config) S3Enabled() bool {
	return c != nil && c.S3Bucket != ""
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}
