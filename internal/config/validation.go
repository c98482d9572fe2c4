// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"net"
	"strconv"
	"strings"

	"github.com/ManuGH/hubgate/internal/cache"
	"github.com/ManuGH/hubgate/internal/validate"
)

// Validate validates a Config using the centralized validation package
func Validate(cfg Config) error {
	v := validate.New()

	validateListen(v, cfg.Listen)

	v.Directory("DataDir", cfg.DataDir, false)

	if _, err := validate.ParseLogLevel(cfg.LogLevel); err != nil {
		v.AddError("LogLevel", "must be one of: trace, debug, info, warn, error, fatal", cfg.LogLevel)
	}

	// Hub client
	v.EndpointURL("Hub.Endpoint", cfg.Hub.Endpoint)
	if cfg.Hub.Timeout <= 0 {
		v.AddError("Hub.Timeout", "must be positive", cfg.Hub.Timeout.String())
	}
	if cfg.Hub.CacheTTL < 0 {
		v.AddError("Hub.CacheTTL", "must not be negative", cfg.Hub.CacheTTL.String())
	}

	// Inference client
	v.EndpointURL("Inference.Endpoint", cfg.Inference.Endpoint)
	if cfg.Inference.Timeout <= 0 {
		v.AddError("Inference.Timeout", "must be positive", cfg.Inference.Timeout.String())
	}
	v.Range("Inference.MaxRetries", cfg.Inference.MaxRetries, 0, 10)
	if cfg.Inference.MaxWait <= 0 {
		v.AddError("Inference.MaxWait", "must be positive", cfg.Inference.MaxWait.String())
	}

	// Cache backend
	v.OneOf("Cache.Backend", cfg.Cache.Backend, []string{cache.BackendMemory, cache.BackendRedis, cache.BackendNone})
	if cfg.Cache.Backend == cache.BackendRedis {
		v.NotEmpty("Cache.RedisAddr", cfg.Cache.RedisAddr)
		v.NonNegative("Cache.RedisDB", cfg.Cache.RedisDB)
	}

	// Rate limiting
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.GlobalRate <= 0 {
			v.AddError("RateLimit.GlobalRate", "must be positive", strconv.FormatFloat(cfg.RateLimit.GlobalRate, 'f', -1, 64))
		}
		v.Positive("RateLimit.GlobalBurst", cfg.RateLimit.GlobalBurst)
		if cfg.RateLimit.PerIPRate <= 0 {
			v.AddError("RateLimit.PerIPRate", "must be positive", strconv.FormatFloat(cfg.RateLimit.PerIPRate, 'f', -1, 64))
		}
		v.Positive("RateLimit.PerIPBurst", cfg.RateLimit.PerIPBurst)
	}

	// Refresh job
	v.Range("Refresh.Concurrency", cfg.Refresh.Concurrency, 1, 64)
	if cfg.Refresh.Interval < 0 {
		v.AddError("Refresh.Interval", "must not be negative", cfg.Refresh.Interval.String())
	}
	for _, m := range cfg.Refresh.Models {
		if _, err := validate.NormalizeRepoID(m); err != nil {
			v.AddError("Refresh.Models", "invalid repository id", m)
		}
	}

	// Circuit breakers
	v.Positive("Breaker.FailureThreshold", cfg.Breaker.FailureThreshold)
	if cfg.Breaker.ResetTimeout <= 0 {
		v.AddError("Breaker.ResetTimeout", "must be positive", cfg.Breaker.ResetTimeout.String())
	}

	// Trace export
	if cfg.OTel.Enabled {
		v.NotEmpty("OTel.Endpoint", cfg.OTel.Endpoint)
		v.OneOf("OTel.ExporterType", cfg.OTel.ExporterType, []string{"grpc", "http"})
		if cfg.OTel.SamplingRate < 0 || cfg.OTel.SamplingRate > 1 {
			v.AddError("OTel.SamplingRate", "must be between 0 and 1", strconv.FormatFloat(cfg.OTel.SamplingRate, 'f', -1, 64))
		}
	}

	return v.Err()
}

// validateListen checks a listen address of the form "host:port" or ":port".
func validateListen(v *validate.Validator, listen string) {
	if strings.TrimSpace(listen) == "" {
		v.AddError("Listen", "listen address cannot be empty", listen)
		return
	}

	_, portStr, err := net.SplitHostPort(listen)
	if err != nil {
		v.AddError("Listen", "must be host:port or :port", listen)
		return
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		v.AddError("Listen", "port must be numeric", listen)
		return
	}
	v.Port("Listen", port)
}
