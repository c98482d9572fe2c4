// SPDX-License-Identifier: MIT

// Package ratelimit bounds inbound request volume before any upstream
// call is made. Limits stack: a global ceiling, a per-task-class budget,
// and a per-client-IP budget.
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"

	"github.com/ManuGH/hubgate/internal/tasks"
)

var rateLimitExceeded = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "hubgate",
		Name:      "ratelimit_exceeded_total",
		Help:      "Total rate limit rejections",
	},
	[]string{"limit_type", "class"},
)

// Task classes group pipelines by upstream cost.
const (
	ClassNLP        = "nlp"        // classification, QA, embeddings
	ClassGeneration = "generation" // autoregressive decoding
	ClassAudio      = "audio"      // speech models, large payloads
	ClassVision     = "vision"     // image models
)

var taskClasses = map[tasks.Task]string{
	tasks.TaskTextClassification:         ClassNLP,
	tasks.TaskTokenClassification:        ClassNLP,
	tasks.TaskTableQuestionAnswering:     ClassNLP,
	tasks.TaskQuestionAnswering:          ClassNLP,
	tasks.TaskZeroShotClassification:     ClassNLP,
	tasks.TaskFeatureExtraction:          ClassNLP,
	tasks.TaskFillMask:                   ClassNLP,
	tasks.TaskSentenceSimilarity:         ClassNLP,
	tasks.TaskTranslation:                ClassGeneration,
	tasks.TaskSummarization:              ClassGeneration,
	tasks.TaskConversational:             ClassGeneration,
	tasks.TaskTextGeneration:             ClassGeneration,
	tasks.TaskText2TextGeneration:        ClassGeneration,
	tasks.TaskTextToSpeech:               ClassAudio,
	tasks.TaskAutomaticSpeechRecognition: ClassAudio,
	tasks.TaskAudioSourceSeparation:      ClassAudio,
	tasks.TaskVoiceActivityDetection:     ClassAudio,
	tasks.TaskImageClassification:        ClassVision,
	tasks.TaskObjectDetection:            ClassVision,
	tasks.TaskImageSegmentation:          ClassVision,
}

// ClassFor maps a task to its rate class. Unknown tasks count as NLP.
func ClassFor(task tasks.Task) string {
	if class, ok := taskClasses[task]; ok {
		return class
	}
	return ClassNLP
}

// Config holds rate limiting configuration
type Config struct {
	// Global limits
	GlobalRate  rate.Limit // requests per second
	GlobalBurst int        // max burst size

	// Per-IP limits
	PerIPRate  rate.Limit
	PerIPBurst int

	// Per-class limits, keyed by ClassNLP etc.
	ClassRates map[string]rate.Limit
	ClassBurst map[string]int

	// Cleanup interval for per-IP limiters
	CleanupInterval time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		GlobalRate:  100, // 100 req/s globally
		GlobalBurst: 200, // burst up to 200

		PerIPRate:  10, // 10 req/s per IP
		PerIPBurst: 20, // burst up to 20

		ClassRates: map[string]rate.Limit{
			ClassNLP:        50, // cheap single forward passes
			ClassVision:     30, // larger payloads
			ClassGeneration: 20, // decode loops hold upstream slots
			ClassAudio:      10, // biggest payloads, slowest models
		},
		ClassBurst: map[string]int{
			ClassNLP:        100,
			ClassVision:     60,
			ClassGeneration: 40,
			ClassAudio:      20,
		},

		CleanupInterval: 5 * time.Minute,
	}
}

// Limiter manages rate limiting for inference requests
type Limiter struct {
	config Config

	global   *rate.Limiter
	perIP    map[string]*rate.Limiter
	perClass map[string]*rate.Limiter
	mu       sync.RWMutex

	lastCleanup time.Time
}

// New creates a new rate limiter with the given config
func New(config Config) *Limiter {
	l := &Limiter{
		config:      config,
		global:      rate.NewLimiter(config.GlobalRate, config.GlobalBurst),
		perIP:       make(map[string]*rate.Limiter),
		perClass:    make(map[string]*rate.Limiter),
		lastCleanup: time.Now(),
	}

	for class, classRate := range config.ClassRates {
		burst := config.ClassBurst[class]
		l.perClass[class] = rate.NewLimiter(classRate, burst)
	}

	return l
}

// Allow checks if a request is allowed under rate limits.
// Returns true if allowed, false if rate limited.
func (l *Limiter) Allow(clientIP string, task tasks.Task) bool {
	class := ClassFor(task)

	// Periodic cleanup of stale IP limiters, before the current client
	// gets its bucket.
	l.maybeCleanup()

	// 1. Check global limit
	if !l.global.Allow() {
		rateLimitExceeded.WithLabelValues("global", class).Inc()
		return false
	}

	// 2. Check per-class limit
	l.mu.RLock()
	classLimiter, exists := l.perClass[class]
	l.mu.RUnlock()

	if exists && !classLimiter.Allow() {
		rateLimitExceeded.WithLabelValues("per_class", class).Inc()
		return false
	}

	// 3. Check per-IP limit
	ipLimiter := l.getIPLimiter(clientIP)
	if !ipLimiter.Allow() {
		rateLimitExceeded.WithLabelValues("per_ip", class).Inc()
		return false
	}

	return true
}

// getIPLimiter returns the rate limiter for a specific IP
func (l *Limiter) getIPLimiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.perIP[ip]
	if !exists {
		limiter = rate.NewLimiter(l.config.PerIPRate, l.config.PerIPBurst)
		l.perIP[ip] = limiter
	}

	return limiter
}

// perIPCount reports how many IP buckets exist (for testing).
func (l *Limiter) perIPCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.perIP)
}

// maybeCleanup drops all IP limiters once the cleanup interval passes.
// Idle clients never accumulate; active ones rebuild a fresh bucket on
// their next request.
func (l *Limiter) maybeCleanup() {
	l.mu.RLock()
	due := time.Since(l.lastCleanup) >= l.config.CleanupInterval
	l.mu.RUnlock()
	if !due {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if time.Since(l.lastCleanup) < l.config.CleanupInterval {
		return
	}
	l.perIP = make(map[string]*rate.Limiter)
	l.lastCleanup = time.Now()
}

// GetClientIP extracts the real client IP from the request
func GetClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs: "client, proxy1, proxy2".
	// Take the first one (original client).
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
