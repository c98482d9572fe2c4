// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{} // Mechanical tracking of consumed keys
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Wrapper methods for mechanical connection tracking

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

func (l *Loader) envLookup(key string) (string, bool) {
	l.ConsumedEnvKeys[key] = struct{}{}
	return os.LookupEnv(key)
}

// Load loads configuration with precedence: ENV > File > Defaults
// It enforces Strict Validated Order: Parse File (Strict) -> Apply Env -> Validate
func (l *Loader) Load() (Config, error) {
	// 1. Start from defaults
	cfg := Default()

	// 2. Layer the file on top (if provided)
	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		if err := mergeFileConfig(&cfg, fileCfg); err != nil {
			return cfg, fmt.Errorf("merge file config: %w", err)
		}
	}

	// 3. Override with environment variables (highest priority)
	l.applyEnv(&cfg)

	// SAFETY: Ensure DataDir is absolute to prevent path traversal/platform errors
	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}

	// 4. Derive data-dir relative paths that were not set explicitly
	if cfg.Catalog.Path == "" {
		cfg.Catalog.Path = filepath.Join(cfg.DataDir, "catalog")
	}
	if cfg.Catalog.SnapshotPath == "" {
		cfg.Catalog.SnapshotPath = filepath.Join(cfg.DataDir, "catalog.json")
	}
	if cfg.Usage.Path == "" {
		cfg.Usage.Path = filepath.Join(cfg.DataDir, "usage.db")
	}

	// 5. Version from binary
	cfg.Version = l.version

	// 6. Validate final configuration
	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFile loads configuration from a YAML file with STRICT parsing.
// Unknown fields will cause a fatal error to prevent misconfiguration.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	// Check file extension
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	// Parse YAML with strict mode (unknown fields cause errors)
	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // Reject unknown fields

	if err := dec.Decode(&fileCfg); err != nil {
		if err == io.EOF {
			return &FileConfig{}, nil
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	// Strict: Ensure no multiple documents or trailing content
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}

	return &fileCfg, nil
}

// applyEnv overrides cfg fields from HUBGATE_* environment variables.
// The current value doubles as the default, so unset variables keep
// whatever defaults or the file established.
func (l *Loader) applyEnv(cfg *Config) {
	cfg.Listen = l.envString("HUBGATE_LISTEN", cfg.Listen)
	cfg.DataDir = l.envString("HUBGATE_DATA_DIR", cfg.DataDir)
	cfg.LogLevel = l.envString("HUBGATE_LOG_LEVEL", cfg.LogLevel)
	cfg.APIToken = l.envString("HUBGATE_API_TOKEN", cfg.APIToken)
	cfg.AuthAnonymous = l.envBool("HUBGATE_AUTH_ANONYMOUS", cfg.AuthAnonymous)
	cfg.MetricsListen = l.envString("HUBGATE_METRICS_LISTEN", cfg.MetricsListen)

	cfg.Hub.Endpoint = l.envString("HUBGATE_HUB_ENDPOINT", cfg.Hub.Endpoint)
	cfg.Hub.Token = l.envString("HUBGATE_HF_TOKEN", cfg.Hub.Token)
	cfg.Hub.Timeout = l.envDuration("HUBGATE_HUB_TIMEOUT", cfg.Hub.Timeout)
	cfg.Hub.CacheTTL = l.envDuration("HUBGATE_HUB_CACHE_TTL", cfg.Hub.CacheTTL)

	cfg.Inference.Endpoint = l.envString("HUBGATE_INFERENCE_ENDPOINT", cfg.Inference.Endpoint)
	cfg.Inference.Timeout = l.envDuration("HUBGATE_INFERENCE_TIMEOUT", cfg.Inference.Timeout)
	cfg.Inference.MaxRetries = l.envInt("HUBGATE_INFERENCE_MAX_RETRIES", cfg.Inference.MaxRetries)
	cfg.Inference.MaxWait = l.envDuration("HUBGATE_INFERENCE_MAX_WAIT", cfg.Inference.MaxWait)
	cfg.Inference.UseGPU = l.envBool("HUBGATE_INFERENCE_USE_GPU", cfg.Inference.UseGPU)
	cfg.Inference.WaitForModel = l.envBool("HUBGATE_INFERENCE_WAIT_FOR_MODEL", cfg.Inference.WaitForModel)

	cfg.Cache.Backend = l.envString("HUBGATE_CACHE_BACKEND", cfg.Cache.Backend)
	cfg.Cache.RedisAddr = l.envString("HUBGATE_REDIS_ADDR", cfg.Cache.RedisAddr)
	cfg.Cache.RedisPassword = l.envString("HUBGATE_REDIS_PASSWORD", cfg.Cache.RedisPassword)
	cfg.Cache.RedisDB = l.envInt("HUBGATE_REDIS_DB", cfg.Cache.RedisDB)
	cfg.Cache.TTL = l.envDuration("HUBGATE_CACHE_TTL", cfg.Cache.TTL)

	cfg.Catalog.Path = l.envString("HUBGATE_CATALOG_PATH", cfg.Catalog.Path)
	cfg.Catalog.SnapshotPath = l.envString("HUBGATE_CATALOG_SNAPSHOT", cfg.Catalog.SnapshotPath)
	cfg.Catalog.TTL = l.envDuration("HUBGATE_CATALOG_TTL", cfg.Catalog.TTL)

	cfg.Usage.Path = l.envString("HUBGATE_USAGE_PATH", cfg.Usage.Path)

	cfg.RateLimit.Enabled = l.envBool("HUBGATE_RATELIMIT_ENABLED", cfg.RateLimit.Enabled)
	cfg.RateLimit.GlobalRate = l.envFloat("HUBGATE_RATELIMIT_GLOBAL_RATE", cfg.RateLimit.GlobalRate)
	cfg.RateLimit.GlobalBurst = l.envInt("HUBGATE_RATELIMIT_GLOBAL_BURST", cfg.RateLimit.GlobalBurst)
	cfg.RateLimit.PerIPRate = l.envFloat("HUBGATE_RATELIMIT_PER_IP_RATE", cfg.RateLimit.PerIPRate)
	cfg.RateLimit.PerIPBurst = l.envInt("HUBGATE_RATELIMIT_PER_IP_BURST", cfg.RateLimit.PerIPBurst)

	cfg.Refresh.Interval = l.envDuration("HUBGATE_REFRESH_INTERVAL", cfg.Refresh.Interval)
	cfg.Refresh.Concurrency = l.envInt("HUBGATE_REFRESH_CONCURRENCY", cfg.Refresh.Concurrency)
	if models, ok := l.envLookup("HUBGATE_REFRESH_MODELS"); ok && models != "" {
		cfg.Refresh.Models = splitList(models)
	}

	cfg.Breaker.FailureThreshold = l.envInt("HUBGATE_BREAKER_THRESHOLD", cfg.Breaker.FailureThreshold)
	cfg.Breaker.ResetTimeout = l.envDuration("HUBGATE_BREAKER_RESET_TIMEOUT", cfg.Breaker.ResetTimeout)

	cfg.OTel.Enabled = l.envBool("HUBGATE_OTEL_ENABLED", cfg.OTel.Enabled)
	cfg.OTel.Endpoint = l.envString("HUBGATE_OTEL_ENDPOINT", cfg.OTel.Endpoint)
	cfg.OTel.ExporterType = l.envString("HUBGATE_OTEL_EXPORTER", cfg.OTel.ExporterType)
	cfg.OTel.SamplingRate = l.envFloat("HUBGATE_OTEL_SAMPLING_RATE", cfg.OTel.SamplingRate)
	cfg.OTel.Environment = l.envString("HUBGATE_OTEL_ENVIRONMENT", cfg.OTel.Environment)
}

// splitList parses a comma-separated env value into trimmed entries.
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
