// SPDX-License-Identifier: MIT

package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/ManuGH/hubgate/internal/platform/httpx"
)

// runHealthcheckCLI probes the local gateway over loopback. Container
// images have no curl, so the binary doubles as its own healthcheck.
func runHealthcheckCLI(args []string) int {
	fs := flag.NewFlagSet("healthcheck", flag.ExitOnError)
	mode := fs.String("mode", "ready", "probe: ready (default) or live")
	port := fs.Int("port", 8080, "gateway port")
	timeout := fs.Duration("timeout", 5*time.Second, "probe timeout")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "healthcheck: %v\n", err)
		return 1
	}

	path := "/readyz"
	if *mode == "live" {
		path = "/healthz"
	}

	client := httpx.NewClient(*timeout)
	resp, err := client.Get(fmt.Sprintf("http://localhost:%d%s", *port, path))
	if err != nil {
		fmt.Fprintf(os.Stderr, "healthcheck %s: %v\n", path, err)
		return 1
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "healthcheck %s: %s\n", path, resp.Status)
		return 1
	}

	fmt.Printf("ok (%s)\n", *mode)
	return 0
}
