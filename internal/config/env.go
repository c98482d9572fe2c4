// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/hubgate/internal/log"
	"github.com/rs/zerolog"
)

func envLogger() zerolog.Logger {
	return log.WithComponent("config")
}

// lookupEnv reads key and treats an empty value as unset, logging the
// fallback so operators can trace where a setting came from.
func lookupEnv(logger zerolog.Logger, key string) (string, bool) {
	value, exists := os.LookupEnv(key)
	if !exists {
		logger.Debug().Str("key", key).Str("source", "default").Msg("using default value")
		return "", false
	}
	if value == "" {
		logger.Debug().Str("key", key).Str("source", "default").
			Msg("using default value (environment variable is empty)")
		return "", false
	}
	return value, true
}

func logEnvValue(logger zerolog.Logger, key, value string) {
	lowerKey := strings.ToLower(key)
	event := logger.Debug().Str("key", key).Str("source", "environment")
	if strings.Contains(lowerKey, "token") || strings.Contains(lowerKey, "password") {
		event.Bool("sensitive", true).Msg("using environment variable")
		return
	}
	event.Str("value", value).Msg("using environment variable")
}

func warnInvalid(logger zerolog.Logger, key, value, kind string) {
	logger.Warn().
		Str("key", key).
		Str("value", value).
		Msgf("invalid %s in environment variable, using default", kind)
}

// ParseString reads a string environment variable or returns defaultValue.
func ParseString(key, defaultValue string) string {
	logger := envLogger()
	value, ok := lookupEnv(logger, key)
	if !ok {
		return defaultValue
	}
	logEnvValue(logger, key, value)
	return value
}

// ParseInt reads an integer environment variable, falling back to
// defaultValue when unset or unparsable.
func ParseInt(key string, defaultValue int) int {
	logger := envLogger()
	value, ok := lookupEnv(logger, key)
	if !ok {
		return defaultValue
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		warnInvalid(logger, key, value, "integer")
		return defaultValue
	}
	logEnvValue(logger, key, value)
	return i
}

// ParseDuration reads a Go-format duration (e.g. "5s", "2m") from the
// environment, falling back to defaultValue when unset or unparsable.
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	logger := envLogger()
	value, ok := lookupEnv(logger, key)
	if !ok {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		warnInvalid(logger, key, value, "duration")
		return defaultValue
	}
	logEnvValue(logger, key, value)
	return d
}

// ParseBool reads a boolean environment variable. Accepted values are
// "true", "false", "1", "0", "yes" and "no", case-insensitive.
func ParseBool(key string, defaultValue bool) bool {
	logger := envLogger()
	value, ok := lookupEnv(logger, key)
	if !ok {
		return defaultValue
	}
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		logEnvValue(logger, key, value)
		return true
	case "false", "0", "no":
		logEnvValue(logger, key, value)
		return false
	default:
		warnInvalid(logger, key, value, "boolean")
		return defaultValue
	}
}

// ParseFloat reads a float64 environment variable, falling back to
// defaultValue when unset or unparsable.
func ParseFloat(key string, defaultValue float64) float64 {
	logger := envLogger()
	value, ok := lookupEnv(logger, key)
	if !ok {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		warnInvalid(logger, key, value, "float")
		return defaultValue
	}
	logEnvValue(logger, key, value)
	return f
}
