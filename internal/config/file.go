// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"time"
)

// FileConfig mirrors the YAML schema. Durations are Go duration strings
// ("10s", "5m"); pointer fields distinguish absent from zero.
type FileConfig struct {
	Listen        string `yaml:"listen,omitempty"`
	DataDir       string `yaml:"data_dir,omitempty"`
	LogLevel      string `yaml:"log_level,omitempty"`
	APIToken      string `yaml:"api_token,omitempty"`
	AuthAnonymous *bool  `yaml:"auth_anonymous,omitempty"`
	MetricsListen string `yaml:"metrics_listen,omitempty"`

	Hub       HubFileConfig       `yaml:"hub,omitempty"`
	Inference InferenceFileConfig `yaml:"inference,omitempty"`
	Cache     CacheFileConfig     `yaml:"cache,omitempty"`
	Catalog   CatalogFileConfig   `yaml:"catalog,omitempty"`
	Usage     UsageFileConfig     `yaml:"usage,omitempty"`
	RateLimit RateLimitFileConfig `yaml:"ratelimit,omitempty"`
	Refresh   RefreshFileConfig   `yaml:"refresh,omitempty"`
	Breaker   BreakerFileConfig   `yaml:"breaker,omitempty"`
	OTel      OTelFileConfig      `yaml:"otel,omitempty"`
}

// HubFileConfig is the hub section of the YAML schema.
type HubFileConfig struct {
	Endpoint string `yaml:"endpoint,omitempty"`
	Token    string `yaml:"token,omitempty"`
	Timeout  string `yaml:"timeout,omitempty"`   // e.g. "10s"
	CacheTTL string `yaml:"cache_ttl,omitempty"` // e.g. "5m"
}

// InferenceFileConfig is the inference section of the YAML schema.
type InferenceFileConfig struct {
	Endpoint     string `yaml:"endpoint,omitempty"`
	Timeout      string `yaml:"timeout,omitempty"` // e.g. "2m"
	MaxRetries   *int   `yaml:"max_retries,omitempty"`
	MaxWait      string `yaml:"max_wait,omitempty"` // e.g. "30s"
	UseGPU       *bool  `yaml:"use_gpu,omitempty"`
	WaitForModel *bool  `yaml:"wait_for_model,omitempty"`
}

// CacheFileConfig is the cache section of the YAML schema.
type CacheFileConfig struct {
	Backend       string `yaml:"backend,omitempty"`
	RedisAddr     string `yaml:"redis_addr,omitempty"`
	RedisPassword string `yaml:"redis_password,omitempty"`
	RedisDB       *int   `yaml:"redis_db,omitempty"`
	TTL           string `yaml:"ttl,omitempty"`
}

// CatalogFileConfig is the catalog section of the YAML schema.
type CatalogFileConfig struct {
	Path         string `yaml:"path,omitempty"`
	SnapshotPath string `yaml:"snapshot_path,omitempty"`
	TTL          string `yaml:"ttl,omitempty"`
}

// UsageFileConfig is the usage section of the YAML schema.
type UsageFileConfig struct {
	Path string `yaml:"path,omitempty"`
}

// RateLimitFileConfig is the ratelimit section of the YAML schema.
type RateLimitFileConfig struct {
	Enabled     *bool    `yaml:"enabled,omitempty"`
	GlobalRate  *float64 `yaml:"global_rate,omitempty"`
	GlobalBurst *int     `yaml:"global_burst,omitempty"`
	PerIPRate   *float64 `yaml:"per_ip_rate,omitempty"`
	PerIPBurst  *int     `yaml:"per_ip_burst,omitempty"`
}

// RefreshFileConfig is the refresh section of the YAML schema.
type RefreshFileConfig struct {
	Interval    string   `yaml:"interval,omitempty"`
	Concurrency *int     `yaml:"concurrency,omitempty"`
	Models      []string `yaml:"models,omitempty"`
}

// BreakerFileConfig is the breaker section of the YAML schema.
type BreakerFileConfig struct {
	FailureThreshold *int   `yaml:"failure_threshold,omitempty"`
	ResetTimeout     string `yaml:"reset_timeout,omitempty"`
}

// OTelFileConfig is the otel section of the YAML schema.
type OTelFileConfig struct {
	Enabled      *bool    `yaml:"enabled,omitempty"`
	Endpoint     string   `yaml:"endpoint,omitempty"`
	ExporterType string   `yaml:"exporter_type,omitempty"`
	SamplingRate *float64 `yaml:"sampling_rate,omitempty"`
	Environment  string   `yaml:"environment,omitempty"`
}

// mergeFileConfig layers file values over cfg. Absent fields keep their
// current values; malformed durations fail the load.
func mergeFileConfig(cfg *Config, f *FileConfig) error {
	setString(&cfg.Listen, f.Listen)
	setString(&cfg.DataDir, f.DataDir)
	setString(&cfg.LogLevel, f.LogLevel)
	setString(&cfg.APIToken, f.APIToken)
	setBool(&cfg.AuthAnonymous, f.AuthAnonymous)
	setString(&cfg.MetricsListen, f.MetricsListen)

	setString(&cfg.Hub.Endpoint, f.Hub.Endpoint)
	setString(&cfg.Hub.Token, f.Hub.Token)
	if err := setDuration(&cfg.Hub.Timeout, "hub.timeout", f.Hub.Timeout); err != nil {
		return err
	}
	if err := setDuration(&cfg.Hub.CacheTTL, "hub.cache_ttl", f.Hub.CacheTTL); err != nil {
		return err
	}

	setString(&cfg.Inference.Endpoint, f.Inference.Endpoint)
	if err := setDuration(&cfg.Inference.Timeout, "inference.timeout", f.Inference.Timeout); err != nil {
		return err
	}
	setInt(&cfg.Inference.MaxRetries, f.Inference.MaxRetries)
	if err := setDuration(&cfg.Inference.MaxWait, "inference.max_wait", f.Inference.MaxWait); err != nil {
		return err
	}
	setBool(&cfg.Inference.UseGPU, f.Inference.UseGPU)
	setBool(&cfg.Inference.WaitForModel, f.Inference.WaitForModel)

	setString(&cfg.Cache.Backend, f.Cache.Backend)
	setString(&cfg.Cache.RedisAddr, f.Cache.RedisAddr)
	setString(&cfg.Cache.RedisPassword, f.Cache.RedisPassword)
	setInt(&cfg.Cache.RedisDB, f.Cache.RedisDB)
	if err := setDuration(&cfg.Cache.TTL, "cache.ttl", f.Cache.TTL); err != nil {
		return err
	}

	setString(&cfg.Catalog.Path, f.Catalog.Path)
	setString(&cfg.Catalog.SnapshotPath, f.Catalog.SnapshotPath)
	if err := setDuration(&cfg.Catalog.TTL, "catalog.ttl", f.Catalog.TTL); err != nil {
		return err
	}

	setString(&cfg.Usage.Path, f.Usage.Path)

	setBool(&cfg.RateLimit.Enabled, f.RateLimit.Enabled)
	setFloat(&cfg.RateLimit.GlobalRate, f.RateLimit.GlobalRate)
	setInt(&cfg.RateLimit.GlobalBurst, f.RateLimit.GlobalBurst)
	setFloat(&cfg.RateLimit.PerIPRate, f.RateLimit.PerIPRate)
	setInt(&cfg.RateLimit.PerIPBurst, f.RateLimit.PerIPBurst)

	if err := setDuration(&cfg.Refresh.Interval, "refresh.interval", f.Refresh.Interval); err != nil {
		return err
	}
	setInt(&cfg.Refresh.Concurrency, f.Refresh.Concurrency)
	if len(f.Refresh.Models) > 0 {
		cfg.Refresh.Models = f.Refresh.Models
	}

	setInt(&cfg.Breaker.FailureThreshold, f.Breaker.FailureThreshold)
	if err := setDuration(&cfg.Breaker.ResetTimeout, "breaker.reset_timeout", f.Breaker.ResetTimeout); err != nil {
		return err
	}

	setBool(&cfg.OTel.Enabled, f.OTel.Enabled)
	setString(&cfg.OTel.Endpoint, f.OTel.Endpoint)
	setString(&cfg.OTel.ExporterType, f.OTel.ExporterType)
	setFloat(&cfg.OTel.SamplingRate, f.OTel.SamplingRate)
	setString(&cfg.OTel.Environment, f.OTel.Environment)

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, field, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", field, v, err)
	}
	*dst = d
	return nil
}
