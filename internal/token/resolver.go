// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package token resolves the Hub API token used for outbound requests.
package token

import (
	"os"
	"strings"
)

// Source identifies where a resolved token came from.
type Source string

const (
	// SourceExplicit means the token was passed in directly (config or flag).
	SourceExplicit Source = "explicit"
	// SourceEnv means the token came from an environment variable.
	SourceEnv Source = "env"
	// SourceFile means the token was read from the data directory.
	SourceFile Source = "file"
	// SourceNone means no token could be resolved.
	SourceNone Source = "none"
)

// Environment variables consulted during resolution, in order.
const (
	EnvToken         = "HUBGATE_HF_TOKEN"
	EnvTokenFallback = "HF_TOKEN"
)

// Resolve returns the Hub token and its source. Resolution order:
// explicit value, HUBGATE_HF_TOKEN, HF_TOKEN, then the token file under
// dataDir. An empty dataDir skips the file lookup. A missing token is
// not an error; callers decide whether anonymous access is acceptable.
func Resolve(explicit, dataDir string) (string, Source, error) {
	if t := strings.TrimSpace(explicit); t != "" {
		return t, SourceExplicit, nil
	}

	for _, key := range []string{EnvToken, EnvTokenFallback} {
		if v, ok := os.LookupEnv(key); ok {
			if t := strings.TrimSpace(v); t != "" {
				return t, SourceEnv, nil
			}
		}
	}

	if dataDir != "" {
		t, err := Load(dataDir)
		if err != nil {
			return "", SourceNone, err
		}
		if t != "" {
			return t, SourceFile, nil
		}
	}

	return "", SourceNone, nil
}

// Redact returns a log-safe form of a token. The short prefix is kept
// so operators can tell which credential is in play without exposing it.
func Redact(token string) string {
	if token == "" {
		return ""
	}
	if len(token) < 8 {
		return "***"
	}
	return token[:4] + "***"
}
