// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads daemon configuration with the precedence
// ENV > YAML file > defaults. File parsing is strict: unknown keys
// fail the load instead of being silently dropped.
package config

import (
	"time"
)

// Config is the complete runtime configuration. The YAML schema lives
// on FileConfig; this struct carries parsed values only.
type Config struct {
	Listen   string
	DataDir  string
	LogLevel string

	// APIToken guards mutating endpoints. Empty means those endpoints
	// refuse every request rather than allowing anonymous access.
	APIToken string

	// AuthAnonymous explicitly opens protected endpoints when no APIToken
	// is configured. Without it the gateway fails closed.
	AuthAnonymous bool

	// MetricsListen runs a dedicated Prometheus listener when set. Empty
	// exposes /metrics on the main API listener instead.
	MetricsListen string

	Hub       HubConfig
	Inference InferenceConfig
	Cache     CacheConfig
	Catalog   CatalogConfig
	Usage     UsageConfig
	RateLimit RateLimitConfig
	Refresh   RefreshConfig
	Breaker   BreakerConfig
	OTel      OTelConfig

	// Version is stamped from the binary, never from file or ENV.
	Version string
}

// HubConfig configures the hub metadata client.
type HubConfig struct {
	Endpoint string
	Token    string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// InferenceConfig configures the hosted inference client.
type InferenceConfig struct {
	Endpoint     string
	Timeout      time.Duration
	MaxRetries   int
	MaxWait      time.Duration
	UseGPU       bool
	WaitForModel bool
}

// CacheConfig selects the metadata cache backend.
type CacheConfig struct {
	Backend       string // memory|redis|none
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
}

// CatalogConfig configures the persistent model catalog.
type CatalogConfig struct {
	Path         string
	SnapshotPath string
	TTL          time.Duration
}

// UsageConfig configures the request log database.
type UsageConfig struct {
	Path string
}

// RateLimitConfig bounds inbound request rates.
type RateLimitConfig struct {
	Enabled     bool
	GlobalRate  float64
	GlobalBurst int
	PerIPRate   float64
	PerIPBurst  int
}

// RefreshConfig drives the periodic catalog refresh job.
type RefreshConfig struct {
	// Interval between automatic refreshes. Zero disables the timer;
	// refreshes then run only via the API.
	Interval    time.Duration
	Concurrency int
	Models      []string
}

// BreakerConfig tunes the upstream circuit breakers.
type BreakerConfig struct {
	FailureThreshold int
	ResetTimeout     time.Duration
}

// OTelConfig configures trace export.
type OTelConfig struct {
	Enabled      bool
	Endpoint     string
	ExporterType string // grpc|http
	SamplingRate float64
	Environment  string
}

// Default returns the built-in configuration. Callers layer file and
// ENV values on top.
func Default() Config {
	return Config{
		Listen:   ":8080",
		DataDir:  "./data",
		LogLevel: "info",

		Hub: HubConfig{
			Endpoint: "https://huggingface.co",
			Timeout:  10 * time.Second,
			CacheTTL: 5 * time.Minute,
		},
		Inference: InferenceConfig{
			Endpoint:   "https://api-inference.huggingface.co",
			Timeout:    2 * time.Minute,
			MaxRetries: 3,
			MaxWait:    30 * time.Second,
		},
		Cache: CacheConfig{
			Backend:   "memory",
			RedisAddr: "localhost:6379",
			TTL:       5 * time.Minute,
		},
		Catalog: CatalogConfig{
			TTL: 0, // records kept until the next refresh overwrites them
		},
		RateLimit: RateLimitConfig{
			Enabled:     true,
			GlobalRate:  100,
			GlobalBurst: 200,
			PerIPRate:   10,
			PerIPBurst:  20,
		},
		Refresh: RefreshConfig{
			Interval:    0,
			Concurrency: 4,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
		},
		OTel: OTelConfig{
			ExporterType: "grpc",
			SamplingRate: 1.0,
			Environment:  "production",
		},
	}
}
