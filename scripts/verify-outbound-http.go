// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// verify-outbound-http rejects ad-hoc HTTP client construction. All
// outbound traffic must go through internal/platform/httpx so timeouts,
// the auth transport and OTel instrumentation are applied uniformly.
package main

import (
	"fmt"
	"go/ast"
	"go/types"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/tools/go/packages"
)

func main() {
	pattern := "./internal/..."
	if len(os.Args) > 1 {
		pattern = os.Args[1]
	}

	violations, err := Analyze(pattern)
	if err != nil {
		fmt.Fprintf(os.Stderr, "analysis failed: %v\n", err)
		os.Exit(1)
	}

	if len(violations) > 0 {
		fmt.Fprintln(os.Stderr, "❌ ad-hoc HTTP client construction found:")
		for _, v := range violations {
			fmt.Fprintln(os.Stderr, v)
		}
		os.Exit(1)
	}
}

// allowedPaths may construct http.Client and http.Transport values
// directly. Everything else goes through httpx.
var allowedPaths = []string{
	filepath.Join("internal", "platform", "httpx"),
	filepath.Join("cmd", "daemon"), // local healthcheck probe
}

// Analyze reports http.Client / http.Transport composite literals in the
// given package pattern.
func Analyze(pattern string) ([]string, error) {
	cfg := &packages.Config{
		Mode: packages.NeedSyntax | packages.NeedFiles | packages.NeedTypes | packages.NeedTypesInfo | packages.NeedName,
		Dir:  ".",
	}
	pkgs, err := packages.Load(cfg, pattern)
	if err != nil {
		return nil, fmt.Errorf("load packages: %w", err)
	}

	var violations []string
	for _, pkg := range pkgs {
		for i, file := range pkg.Syntax {
			filename := ""
			if i < len(pkg.CompiledGoFiles) {
				filename = pkg.CompiledGoFiles[i]
			} else if i < len(pkg.GoFiles) {
				filename = pkg.GoFiles[i]
			}
			if filename == "" || strings.HasSuffix(filename, "_test.go") {
				continue
			}
			if isAllowed(filename) {
				continue
			}

			ast.Inspect(file, func(n ast.Node) bool {
				lit, ok := n.(*ast.CompositeLit)
				if !ok {
					return true
				}
				if name := httpLiteralName(lit, pkg.TypesInfo); name != "" {
					violations = append(violations, fmt.Sprintf("%s: composite literal %s (use internal/platform/httpx)", relPath(filename), name))
				}
				return true
			})
		}
	}
	return violations, nil
}

func isAllowed(filename string) bool {
	for _, allowed := range allowedPaths {
		if strings.Contains(filename, allowed) {
			return true
		}
	}
	return false
}

func relPath(filename string) string {
	if rel, err := filepath.Rel(".", filename); err == nil {
		return rel
	}
	return filename
}

// httpLiteralName returns "http.Client" or "http.Transport" when the
// composite literal builds one of those types, directly or by pointer.
func httpLiteralName(lit *ast.CompositeLit, info *types.Info) string {
	tv, ok := info.Types[lit]
	if !ok {
		return ""
	}
	t := tv.Type
	if ptr, ok := t.(*types.Pointer); ok {
		t = ptr.Elem()
	}
	named, ok := t.(*types.Named)
	if !ok {
		return ""
	}
	obj := named.Obj()
	if obj == nil || obj.Pkg() == nil || obj.Pkg().Path() != "net/http" {
		return ""
	}
	switch obj.Name() {
	case "Client", "Transport":
		return "http." + obj.Name()
	}
	return ""
}
