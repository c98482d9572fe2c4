// SPDX-License-Identifier: MIT
package hub

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockServer is a configurable stand-in for the hub used in tests.
type MockServer struct {
	*httptest.Server

	mu       sync.Mutex
	models   map[string]ModelInfo
	cards    map[string]string
	token    string
	failures map[string]int
	requests int
}

// NewMockServer starts a mock hub with no data. Callers own Close.
func NewMockServer() *MockServer {
	s := &MockServer{
		models:   make(map[string]ModelInfo),
		cards:    make(map[string]string),
		failures: make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/models/", s.handleModelInfo)
	mux.HandleFunc("/", s.handleRaw)

	s.Server = httptest.NewServer(mux)
	return s
}

// SetDefaultData loads a representative set of repositories.
func (s *MockServer) SetDefaultData() {
	modified := time.Date(2024, 3, 11, 9, 30, 0, 0, time.UTC)

	s.AddModel(ModelInfo{
		ID:           "google-bert/bert-base-uncased",
		ModelID:      "google-bert/bert-base-uncased",
		SHA:          "86b5e0934494bd15c9632b12f734a8a67f723594",
		PipelineTag:  "fill-mask",
		LibraryName:  "transformers",
		Tags:         []string{"transformers", "pytorch", "fill-mask"},
		Downloads:    48205730,
		Likes:        1920,
		LastModified: modified,
		Siblings: []Sibling{
			{RFilename: "README.md"},
			{RFilename: "config.json"},
			{RFilename: "model.safetensors"},
		},
	})
	s.SetCard("google-bert/bert-base-uncased", "---\nlanguage: en\nlicense: apache-2.0\n---\n\n# BERT base model (uncased)\n")

	s.AddModel(ModelInfo{
		ID:           "gpt2",
		ModelID:      "gpt2",
		SHA:          "607a30d783dfa663caf39e06633721c8d4cfcd7e",
		PipelineTag:  "text-generation",
		LibraryName:  "transformers",
		Tags:         []string{"transformers", "gpt2", "text-generation"},
		Downloads:    21390134,
		Likes:        2710,
		LastModified: modified,
		Siblings:     []Sibling{{RFilename: "README.md"}, {RFilename: "config.json"}},
	})
	s.SetCard("gpt2", "---\nlanguage: en\nlicense: mit\n---\n\n# GPT-2\n")

	s.AddModel(ModelInfo{
		ID:           "typeform/distilbert-base-uncased-mnli",
		ModelID:      "typeform/distilbert-base-uncased-mnli",
		PipelineTag:  "zero-shot-classification",
		LibraryName:  "transformers",
		Tags:         []string{"transformers", "zero-shot-classification"},
		Downloads:    1250417,
		Likes:        51,
		LastModified: modified,
	})
	s.SetCard("typeform/distilbert-base-uncased-mnli", "---\nlanguage: en\n---\n\n# DistilBERT MNLI\n")

	s.AddModel(ModelInfo{
		ID:           "acme/internal-classifier",
		ModelID:      "acme/internal-classifier",
		PipelineTag:  "text-classification",
		Private:      true,
		Downloads:    12,
		LastModified: modified,
	})
	s.SetCard("acme/internal-classifier", "---\ninference: false\n---\n\n# Internal\n")

	s.AddModel(ModelInfo{
		ID:           "meta-llama/Llama-2-7b-hf",
		ModelID:      "meta-llama/Llama-2-7b-hf",
		PipelineTag:  "text-generation",
		Gated:        Gated{Value: true, Mode: "auto"},
		Downloads:    902113,
		Likes:        3480,
		LastModified: modified,
	})

	s.AddModel(ModelInfo{
		ID:           "acme/untagged-weights",
		ModelID:      "acme/untagged-weights",
		Downloads:    3,
		LastModified: modified,
	})
}

// AddModel registers or replaces a repository.
func (s *MockServer) AddModel(info ModelInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models[info.RepoID()] = info
}

// SetCard sets the raw README served for a repository.
func (s *MockServer) SetCard(repoID, card string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cards[repoID] = card
}

// SetToken makes private and gated repositories require this bearer token.
func (s *MockServer) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// SetFailures makes the next n requests to path fail with a 500.
func (s *MockServer) SetFailures(path string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = n
}

// RequestCount reports how many requests the server has handled.
func (s *MockServer) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// Reset clears all data, failure injection and counters.
func (s *MockServer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models = make(map[string]ModelInfo)
	s.cards = make(map[string]string)
	s.failures = make(map[string]int)
	s.token = ""
	s.requests = 0
}

// consumeFailure records the request and reports whether it should fail.
func (s *MockServer) consumeFailure(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests++
	if n := s.failures[path]; n > 0 {
		s.failures[path] = n - 1
		return true
	}
	return false
}

func (s *MockServer) authorized(r *http.Request) bool {
	s.mu.Lock()
	token := s.token
	s.mu.Unlock()
	if token == "" {
		return true
	}
	return r.Header.Get("Authorization") == "Bearer "+token
}

func (s *MockServer) lookupModel(repoID string) (ModelInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.models[repoID]
	return info, ok
}

func (s *MockServer) lookupCard(repoID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	card, ok := s.cards[repoID]
	return card, ok
}

func (s *MockServer) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	if s.consumeFailure(r.URL.Path) {
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	repoID := strings.TrimPrefix(r.URL.Path, "/api/models/")
	info, ok := s.lookupModel(repoID)
	if !ok {
		http.Error(w, `{"error":"Repository not found"}`, http.StatusNotFound)
		return
	}
	if (info.Private || info.Gated.Value) && !s.authorized(r) {
		http.Error(w, `{"error":"Invalid credentials in Authorization header"}`, http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(info)
}

func (s *MockServer) handleRaw(w http.ResponseWriter, r *http.Request) {
	if s.consumeFailure(r.URL.Path) {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	// Expected shape: /{owner}/{name}/raw/{revision}/README.md or
	// /{name}/raw/{revision}/README.md for legacy single-segment repos.
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/raw/")
	if len(parts) != 2 || !strings.HasSuffix(parts[1], "/README.md") {
		http.NotFound(w, r)
		return
	}
	repoID := parts[0]

	info, hasInfo := s.lookupModel(repoID)
	if hasInfo && (info.Private || info.Gated.Value) && !s.authorized(r) {
		http.Error(w, "Invalid credentials in Authorization header", http.StatusUnauthorized)
		return
	}

	card, ok := s.lookupCard(repoID)
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/markdown")
	_, _ = w.Write([]byte(card))
}
