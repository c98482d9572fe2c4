package violation

import (
	"net/http"
	"time"
)

func Violate() *http.Client {
	// Violation 1: client literal
	c := &http.Client{Timeout: 5 * time.Second}

	// Violation 2: transport literal
	c.Transport = &http.Transport{MaxIdleConns: 4}

	return c
}
