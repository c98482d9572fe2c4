// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/idna"
)

var (
	// ErrOutboundDisabled indicates outbound HTTP(S) access is disabled by policy.
	ErrOutboundDisabled = errors.New("outbound http(s) disabled")
	// ErrOutboundNotAllowed indicates the URL did not match the allowlist.
	ErrOutboundNotAllowed = errors.New("outbound url not allowed")
)

// OutboundAllowlist defines the allowed outbound URL components.
type OutboundAllowlist struct {
	Hosts   []string
	CIDRs   []string
	Ports   []int
	Schemes []string
}

// OutboundPolicy defines the outbound access policy.
type OutboundPolicy struct {
	Enabled bool
	Allow   OutboundAllowlist
}

// DefaultPolicy allows HTTPS to the public hub and inference hosts only.
// Operators pointing hubgate at mirrors or test servers extend the allowlist
// through configuration.
func DefaultPolicy(extraHosts ...string) OutboundPolicy {
	hosts := append([]string{
		"huggingface.co",
		"api-inference.huggingface.co",
	}, extraHosts...)
	return OutboundPolicy{
		Enabled: true,
		Allow: OutboundAllowlist{
			Hosts:   hosts,
			Ports:   []int{443, 80},
			Schemes: []string{"https", "http"},
		},
	}
}

// allowset is a compiled allowlist: hosts normalized, CIDR strings parsed.
type allowset struct {
	hosts   map[string]struct{}
	cidrs   []*net.IPNet
	ports   map[int]struct{}
	schemes map[string]struct{}
}

func compileAllowlist(a OutboundAllowlist) (*allowset, error) {
	set := &allowset{
		hosts:   make(map[string]struct{}, len(a.Hosts)),
		ports:   make(map[int]struct{}, len(a.Ports)),
		schemes: make(map[string]struct{}, len(a.Schemes)),
	}

	for _, host := range a.Hosts {
		normalized, err := NormalizeHost(host)
		if err != nil {
			return nil, err
		}
		set.hosts[normalized] = struct{}{}
	}

	for _, entry := range a.CIDRs {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		ip, ipnet, err := net.ParseCIDR(entry)
		if err == nil {
			ipnet.IP = ip
			set.cidrs = append(set.cidrs, ipnet)
			continue
		}
		// Bare IPs are accepted as /32 or /128 entries.
		ip = net.ParseIP(entry)
		if ip == nil {
			return nil, fmt.Errorf("invalid CIDR or IP: %s", entry)
		}
		bits := 32
		if ip.To4() == nil {
			bits = 128
		}
		set.cidrs = append(set.cidrs, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}

	for _, p := range a.Ports {
		set.ports[p] = struct{}{}
	}
	for _, s := range a.Schemes {
		set.schemes[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	return set, nil
}

func (s *allowset) containsIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	for _, n := range s.cidrs {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// NormalizeHost validates and normalizes a host for comparison. IDNA hosts
// are folded to their ASCII form, IP literals to their canonical string.
func NormalizeHost(raw string) (string, error) {
	host := strings.TrimSpace(raw)
	if host == "" {
		return "", fmt.Errorf("host is empty")
	}
	for _, bad := range []struct{ substr, what string }{
		{"://", "scheme"},
		{"/", "path"},
		{"@", "userinfo"},
		{"%", "zone"},
	} {
		if strings.Contains(host, bad.substr) {
			return "", fmt.Errorf("host must not include %s: %s", bad.what, raw)
		}
	}
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	}
	if strings.Contains(host, ":") && net.ParseIP(host) == nil {
		return "", fmt.Errorf("host must not include port: %s", raw)
	}
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return "", fmt.Errorf("host is empty")
	}
	if ip := net.ParseIP(host); ip != nil {
		return strings.ToLower(ip.String()), nil
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("invalid host %q: %w", raw, err)
	}
	return strings.ToLower(ascii), nil
}

// ValidateOutboundURL verifies a URL against the outbound policy and
// returns its normalized form. The host is resolved and every address is
// checked: answers steering into loopback, link-local or private ranges
// are rejected unless a CIDR entry explicitly allows them.
func ValidateOutboundURL(ctx context.Context, raw string, policy OutboundPolicy) (string, error) {
	if !policy.Enabled {
		return "", ErrOutboundDisabled
	}

	u, ok := ParseDirectHTTPURL(raw)
	if !ok {
		return "", fmt.Errorf("invalid outbound url: %q", SanitizeURL(raw))
	}
	scheme := strings.ToLower(u.Scheme)

	allow, err := compileAllowlist(policy.Allow)
	if err != nil {
		return "", err
	}

	if _, ok := allow.schemes[scheme]; !ok {
		return "", fmt.Errorf("scheme %q not allowed", scheme)
	}

	port, err := urlPort(u, scheme)
	if err != nil {
		return "", err
	}
	if _, ok := allow.ports[port]; !ok {
		return "", fmt.Errorf("port %d not allowed", port)
	}

	host, err := NormalizeHost(u.Hostname())
	if err != nil {
		return "", err
	}

	ips, err := resolveHostIPs(ctx, host)
	if err != nil {
		return "", err
	}

	_, hostAllowed := allow.hosts[host]
	ipAllowed := false
	for _, ip := range ips {
		inCIDR := allow.containsIP(ip)
		if isBlockedIP(ip) && !inCIDR {
			return "", fmt.Errorf("blocked ip %s", ip.String())
		}
		if inCIDR {
			ipAllowed = true
		}
	}

	if !hostAllowed && !ipAllowed {
		return "", ErrOutboundNotAllowed
	}

	u.Host = joinHostPort(host, u.Port())
	return u.String(), nil
}

func urlPort(u *url.URL, scheme string) (int, error) {
	portStr := u.Port()
	if portStr == "" {
		switch scheme {
		case "http":
			return 80, nil
		case "https":
			return 443, nil
		default:
			return 0, fmt.Errorf("unknown scheme %q", scheme)
		}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: %w", portStr, err)
	}
	return port, nil
}

func resolveHostIPs(ctx context.Context, host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("resolve host %q: %w", host, err)
	}
	ips := make([]net.IP, 0, len(addrs))
	for _, addr := range addrs {
		if addr.IP != nil {
			ips = append(ips, addr.IP)
		}
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("resolve host %q: no addresses", host)
	}
	return ips, nil
}

// isBlockedIP rejects addresses a hub gateway has no business dialing.
// Private ranges stay blocked unless explicitly allowlisted via CIDRs so a
// poisoned DNS answer cannot steer requests into the local network.
func isBlockedIP(ip net.IP) bool {
	if ip == nil {
		return true
	}
	return ip.IsLoopback() ||
		ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsMulticast() ||
		ip.IsPrivate()
}

func joinHostPort(host, port string) string {
	if port == "" {
		if strings.Contains(host, ":") {
			return "[" + host + "]"
		}
		return host
	}
	return net.JoinHostPort(host, port)
}
