// SPDX-License-Identifier: MIT
package jobs

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/hubgate/internal/catalog"
	"github.com/ManuGH/hubgate/internal/hub"
	"github.com/ManuGH/hubgate/internal/modelcard"
	"github.com/ManuGH/hubgate/internal/tasks"
)

var testClock = func() time.Time {
	return time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)
}

type mockHub struct {
	mu      sync.Mutex
	infos   map[string]*hub.ModelInfo
	cards   map[string]string
	infoErr map[string]error
	cardErr map[string]error
}

func newMockHub() *mockHub {
	return &mockHub{
		infos:   make(map[string]*hub.ModelInfo),
		cards:   make(map[string]string),
		infoErr: make(map[string]error),
		cardErr: make(map[string]error),
	}
}

// addModel registers a model; an empty card string means no README exists.
func (m *mockHub) addModel(info hub.ModelInfo, card string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos[info.RepoID()] = &info
	if card != "" {
		m.cards[info.RepoID()] = card
	}
}

func (m *mockHub) ModelInfo(_ context.Context, repoID string) (*hub.ModelInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.infoErr[repoID]; err != nil {
		return nil, err
	}
	info, ok := m.infos[repoID]
	if !ok {
		return nil, hub.ErrNotFound
	}
	cp := *info
	return &cp, nil
}

func (m *mockHub) ModelCard(_ context.Context, repoID, _ string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.cardErr[repoID]; err != nil {
		return nil, err
	}
	card, ok := m.cards[repoID]
	if !ok {
		return nil, hub.ErrNotFound
	}
	return []byte(card), nil
}

func newTestCatalog(t *testing.T) *catalog.Store {
	t.Helper()
	store, err := catalog.Open(catalog.Options{InMemory: true})
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close catalog: %v", err)
		}
	})
	return store
}

func TestResolve_StoresEligibleModel(t *testing.T) {
	m := newMockHub()
	m.addModel(hub.ModelInfo{
		ID:          "gpt2",
		ModelID:     "gpt2",
		PipelineTag: "text-generation",
		Downloads:   21390134,
	}, "---\nlanguage: en\nlicense: mit\n---\n\n# GPT-2\n")

	store := newTestCatalog(t)
	deps := Deps{Client: m, Catalog: store, Clock: testClock}

	rec, err := Resolve(context.Background(), deps, "gpt2")
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}

	if rec.RepoID != "gpt2" {
		t.Errorf("expected RepoID %q, got %q", "gpt2", rec.RepoID)
	}
	if !rec.Decision.Eligible {
		t.Error("expected model to be eligible")
	}
	if rec.Decision.Reason != modelcard.ReasonOK {
		t.Errorf("expected reason %q, got %q", modelcard.ReasonOK, rec.Decision.Reason)
	}
	if rec.Decision.Task != tasks.TaskTextGeneration {
		t.Errorf("expected task %q, got %q", tasks.TaskTextGeneration, rec.Decision.Task)
	}
	if rec.Card == nil || rec.Card.License != "mit" {
		t.Errorf("expected parsed card with license mit, got %+v", rec.Card)
	}
	if !rec.ResolvedAt.Equal(testClock()) {
		t.Errorf("expected ResolvedAt %v, got %v", testClock(), rec.ResolvedAt)
	}

	stored, err := store.Get(context.Background(), "gpt2")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if stored == nil {
		t.Fatal("expected record in catalog")
	}
	if stored.Decision.Reason != modelcard.ReasonOK {
		t.Errorf("stored decision reason = %q, want %q", stored.Decision.Reason, modelcard.ReasonOK)
	}
}

func TestResolve_CardOptOut(t *testing.T) {
	m := newMockHub()
	m.addModel(hub.ModelInfo{
		ID:          "acme/internal-classifier",
		ModelID:     "acme/internal-classifier",
		PipelineTag: "text-classification",
	}, "---\ninference: false\n---\n\n# Internal\n")

	store := newTestCatalog(t)
	deps := Deps{Client: m, Catalog: store, Clock: testClock}

	rec, err := Resolve(context.Background(), deps, "acme/internal-classifier")
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}

	if rec.Decision.Eligible {
		t.Error("expected opted-out model to be ineligible")
	}
	if rec.Decision.Reason != modelcard.ReasonCardOptOut {
		t.Errorf("expected reason %q, got %q", modelcard.ReasonCardOptOut, rec.Decision.Reason)
	}
}

func TestResolve_MissingCardEvaluatesWithoutOne(t *testing.T) {
	m := newMockHub()
	m.addModel(hub.ModelInfo{
		ID:          "plain/tagged",
		ModelID:     "plain/tagged",
		PipelineTag: "fill-mask",
	}, "")

	store := newTestCatalog(t)
	deps := Deps{Client: m, Catalog: store, Clock: testClock}

	rec, err := Resolve(context.Background(), deps, "plain/tagged")
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}

	if rec.Card != nil {
		t.Errorf("expected no card, got %+v", rec.Card)
	}
	if !rec.Decision.Eligible {
		t.Error("expected model without a card to be eligible via its pipeline tag")
	}
	if rec.Decision.Task != tasks.TaskFillMask {
		t.Errorf("expected task %q, got %q", tasks.TaskFillMask, rec.Decision.Task)
	}
}

func TestResolve_MalformedCardFails(t *testing.T) {
	m := newMockHub()
	m.addModel(hub.ModelInfo{
		ID:          "acme/badcard",
		ModelID:     "acme/badcard",
		PipelineTag: "text-classification",
	}, "---\ninference: [unclosed\n---\n")

	store := newTestCatalog(t)
	deps := Deps{Client: m, Catalog: store, Clock: testClock}

	_, err := Resolve(context.Background(), deps, "acme/badcard")
	if err == nil {
		t.Fatal("expected parse error for malformed card")
	}
	if !errors.Is(err, modelcard.ErrMalformedFrontmatter) {
		t.Errorf("expected ErrMalformedFrontmatter, got %v", err)
	}

	rec, err := store.Get(context.Background(), "acme/badcard")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if rec != nil {
		t.Error("failed model must not be stored")
	}
}

func TestResolve_InfoErrorNamesModel(t *testing.T) {
	m := newMockHub()
	m.infoErr["broken/info"] = hub.ErrUpstreamError

	store := newTestCatalog(t)
	deps := Deps{Client: m, Catalog: store, Clock: testClock}

	_, err := Resolve(context.Background(), deps, "broken/info")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, hub.ErrUpstreamError) {
		t.Errorf("expected ErrUpstreamError, got %v", err)
	}
	if !strings.Contains(err.Error(), "broken/info") {
		t.Errorf("error %q does not name the model", err)
	}
}

func TestResolve_VanishedModelDroppedFromCatalog(t *testing.T) {
	store := newTestCatalog(t)

	// A previous refresh stored the model as eligible; it has since been
	// renamed or removed upstream.
	seed := &catalog.Record{
		RepoID:     "acme/gone",
		Info:       &hub.ModelInfo{ID: "acme/gone", ModelID: "acme/gone", PipelineTag: "text-generation"},
		Decision:   modelcard.Decision{Eligible: true, Reason: modelcard.ReasonOK, Task: tasks.TaskTextGeneration},
		ResolvedAt: testClock(),
	}
	if err := store.Put(context.Background(), seed); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}

	m := newMockHub()
	deps := Deps{Client: m, Catalog: store, Clock: testClock}

	_, err := Resolve(context.Background(), deps, "acme/gone")
	if !errors.Is(err, hub.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	rec, err := store.Get(context.Background(), "acme/gone")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if rec != nil {
		t.Errorf("vanished model must be dropped from the catalog, still have %+v", rec)
	}
}

func TestResolve_GatedModelNeedsToken(t *testing.T) {
	gated := hub.ModelInfo{
		ID:          "meta-llama/Llama-2-7b-hf",
		ModelID:     "meta-llama/Llama-2-7b-hf",
		PipelineTag: "text-generation",
		Gated:       hub.Gated{Value: true, Mode: "auto"},
	}

	m := newMockHub()
	m.addModel(gated, "")

	store := newTestCatalog(t)

	// Without a token the gated model is not servable.
	rec, err := Resolve(context.Background(), Deps{Client: m, Catalog: store, HasToken: false, Clock: testClock}, gated.ID)
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	if rec.Decision.Eligible {
		t.Error("expected gated model without token to be ineligible")
	}
	if rec.Decision.Reason != modelcard.ReasonRequiresToken {
		t.Errorf("expected reason %q, got %q", modelcard.ReasonRequiresToken, rec.Decision.Reason)
	}

	// With a token it becomes servable.
	rec, err = Resolve(context.Background(), Deps{Client: m, Catalog: store, HasToken: true, Clock: testClock}, gated.ID)
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	if !rec.Decision.Eligible {
		t.Error("expected gated model with token to be eligible")
	}
}
