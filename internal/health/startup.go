// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ManuGH/hubgate/internal/config"
	"github.com/ManuGH/hubgate/internal/log"
	xnet "github.com/ManuGH/hubgate/internal/platform/net"
	"github.com/ManuGH/hubgate/internal/token"
)

// PerformStartupChecks validates the environment and upstream configuration
// before the daemon starts serving.
func PerformStartupChecks(_ context.Context, cfg config.Config) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if err := checkDataDir(logger, cfg.DataDir); err != nil {
		return fmt.Errorf("data directory check failed: %w", err)
	}

	if err := checkListenAddr(logger, cfg.Listen); err != nil {
		return fmt.Errorf("listen address check failed: %w", err)
	}

	if err := checkUpstreams(logger, cfg); err != nil {
		return fmt.Errorf("upstream endpoint check failed: %w", err)
	}

	checkTokenPresence(logger, cfg)

	logger.Info().Msg("all startup checks passed")
	return nil
}

func checkDataDir(logger zerolog.Logger, path string) error {
	if err := os.MkdirAll(path, 0750); err != nil {
		return fmt.Errorf("cannot create data directory %s: %w", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	// Prove writability by creating a temp file
	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0600); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	_ = os.Remove(testFile)

	logger.Info().Str("path", path).Msg("data directory is writable")
	return nil
}

func checkListenAddr(logger zerolog.Logger, addr string) error {
	if addr == "" {
		return fmt.Errorf("listen address is empty")
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	portNum, err := strconv.Atoi(port)
	if err != nil || portNum < 0 || portNum > 65535 {
		return fmt.Errorf("invalid listen port %q in %q", port, addr)
	}
	logger.Info().Str("addr", addr).Msg("listen address is valid")
	return nil
}

// checkUpstreams validates the hub and inference base URLs syntactically
// and against the outbound allowlist shape. DNS resolution is deliberately
// left to the first real request; startup must not depend on the resolver.
func checkUpstreams(logger zerolog.Logger, cfg config.Config) error {
	endpoints := map[string]string{
		"hub":       cfg.Hub.Endpoint,
		"inference": cfg.Inference.Endpoint,
	}

	for name, endpoint := range endpoints {
		if endpoint == "" {
			return fmt.Errorf("%s endpoint is not configured", name)
		}
		u, ok := xnet.ParseDirectHTTPURL(endpoint)
		if !ok {
			return fmt.Errorf("%s endpoint %q is not a valid http(s) url", name, endpoint)
		}
		if u.User != nil {
			return fmt.Errorf("%s endpoint must not carry credentials in the url", name)
		}
		if _, err := xnet.NormalizeHost(u.Hostname()); err != nil {
			return fmt.Errorf("%s endpoint host: %w", name, err)
		}
		logger.Info().
			Str("service", name).
			Str("url", xnet.SanitizeURL(endpoint)).
			Msg("upstream endpoint is valid")
	}

	return nil
}

// checkTokenPresence warns when no upstream token can be resolved. Anonymous
// access works for public models, so this is advisory only.
func checkTokenPresence(logger zerolog.Logger, cfg config.Config) {
	tok, source, err := token.Resolve(cfg.Hub.Token, cfg.DataDir)
	if err != nil {
		logger.Warn().Err(err).Msg("token resolution failed; continuing anonymously")
		return
	}
	if tok == "" {
		logger.Warn().
			Msg("no upstream token configured; private and gated models will be ineligible")
		return
	}
	logger.Info().
		Str("source", string(source)).
		Str("token", token.Redact(tok)).
		Msg("upstream token resolved")
}

// OutboundPolicyFor builds the daemon's outbound allowlist from the
// configured upstream bases. The defaults already carry the public hub
// hosts; configured overrides extend the list.
func OutboundPolicyFor(cfg config.Config) (xnet.OutboundPolicy, error) {
	var extra []string
	for _, endpoint := range []string{cfg.Hub.Endpoint, cfg.Inference.Endpoint} {
		u, ok := xnet.ParseDirectHTTPURL(endpoint)
		if !ok {
			return xnet.OutboundPolicy{}, fmt.Errorf("endpoint %q is not a valid http(s) url", endpoint)
		}
		host := strings.ToLower(u.Hostname())
		if host != "" {
			extra = append(extra, host)
		}
	}
	return xnet.DefaultPolicy(extra...), nil
}
