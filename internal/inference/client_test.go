package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/hubgate/internal/hub"
	"github.com/ManuGH/hubgate/internal/resilience"
	"github.com/ManuGH/hubgate/internal/tasks"
	"github.com/ManuGH/hubgate/internal/validate"
)

type fakeMetadata struct {
	info *hub.ModelInfo
	err  error
}

func (f *fakeMetadata) ModelInfo(ctx context.Context, repoID string) (*hub.ModelInfo, error) {
	return f.info, f.err
}

func newBoundClient(t *testing.T, endpoint, task, repoID string) *Client {
	t.Helper()
	c, err := New(context.Background(), Options{
		Endpoint: endpoint,
		RepoID:   repoID,
		Task:     task,
		Timeout:  5 * time.Second,
	}, Deps{})
	require.NoError(t, err)
	return c
}

func TestNew_ResolvesTaskFromMetadata(t *testing.T) {
	meta := &fakeMetadata{info: &hub.ModelInfo{ID: "google-bert/bert-base-uncased", PipelineTag: "fill-mask"}}

	c, err := New(context.Background(), Options{RepoID: "google-bert/bert-base-uncased"}, Deps{Metadata: meta})
	require.NoError(t, err)

	assert.Equal(t, tasks.TaskFillMask, c.Task())
	assert.Equal(t, "google-bert/bert-base-uncased", c.RepoID())
	assert.Contains(t, c.url, "/pipeline/fill-mask/google-bert/bert-base-uncased")
}

func TestNew_OverrideWinsOverTag(t *testing.T) {
	meta := &fakeMetadata{info: &hub.ModelInfo{ID: "gpt2", PipelineTag: "text-generation"}}

	c, err := New(context.Background(), Options{
		RepoID: "gpt2",
		Task:   "feature-extraction",
	}, Deps{Metadata: meta})
	require.NoError(t, err)

	assert.Equal(t, tasks.TaskFeatureExtraction, c.Task())
}

func TestNew_NoTagNoOverride(t *testing.T) {
	meta := &fakeMetadata{info: &hub.ModelInfo{ID: "acme/untagged-weights"}}

	_, err := New(context.Background(), Options{RepoID: "acme/untagged-weights"}, Deps{Metadata: meta})
	assert.ErrorIs(t, err, tasks.ErrNotSpecified)
}

func TestNew_InvalidOverride(t *testing.T) {
	_, err := New(context.Background(), Options{RepoID: "gpt2", Task: "mind-reading"}, Deps{})
	assert.ErrorIs(t, err, tasks.ErrUnsupported)

	meta := &fakeMetadata{info: &hub.ModelInfo{ID: "gpt2", PipelineTag: "text-generation"}}
	_, err = New(context.Background(), Options{RepoID: "gpt2", Task: "mind-reading"}, Deps{Metadata: meta})
	assert.ErrorIs(t, err, tasks.ErrUnsupported)
}

func TestNew_RequiresTaskWithoutMetadata(t *testing.T) {
	_, err := New(context.Background(), Options{RepoID: "gpt2"}, Deps{})
	assert.ErrorIs(t, err, tasks.ErrUnsupported)
}

func TestNew_InvalidRepoID(t *testing.T) {
	_, err := New(context.Background(), Options{RepoID: "a/b/c", Task: "fill-mask"}, Deps{})
	assert.ErrorIs(t, err, validate.ErrInvalidRepoID)
}

func TestNew_RejectsBadEndpoint(t *testing.T) {
	_, err := New(context.Background(), Options{
		Endpoint: "ftp://api-inference.huggingface.co",
		RepoID:   "gpt2",
		Task:     "text-generation",
	}, Deps{})
	require.Error(t, err)
}

func TestDo_Success(t *testing.T) {
	var gotPath, gotContentType string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"label":"POSITIVE","score":0.9987}]`))
	}))
	defer srv.Close()

	c := newBoundClient(t, srv.URL, "text-classification", "distilbert-base-uncased")

	resp, err := c.Do(context.Background(), Request{Inputs: "I love this"})
	require.NoError(t, err)

	assert.Equal(t, "/pipeline/text-classification/distilbert-base-uncased", gotPath)
	assert.Equal(t, "application/json", gotContentType)

	assert.Equal(t, "I love this", gotBody["inputs"])
	_, hasParams := gotBody["parameters"]
	assert.False(t, hasParams, "nil parameters must be omitted")
	opts, ok := gotBody["options"].(map[string]any)
	require.True(t, ok, "options object must always be present")
	assert.Equal(t, true, opts["wait_for_model"])
	assert.Equal(t, false, opts["use_gpu"])

	assert.Equal(t, tasks.TaskTextClassification, resp.Task)
	assert.Equal(t, "distilbert-base-uncased", resp.RepoID)
	assert.Equal(t, 1, resp.Attempts)
	assert.Equal(t, "application/json", resp.ContentType)

	var decoded []map[string]any
	require.NoError(t, resp.DecodeJSON(&decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "POSITIVE", decoded[0]["label"])
}

func TestDo_ParametersAndFlags(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, err := New(context.Background(), Options{
		Endpoint:    srv.URL,
		RepoID:      "typeform/distilbert-base-uncased-mnli",
		Task:        "zero-shot-classification",
		UseGPU:      true,
		DisableWait: true,
		Timeout:     5 * time.Second,
	}, Deps{})
	require.NoError(t, err)

	_, err = c.Do(context.Background(), Request{
		Inputs:     "I recently bought a device from your company",
		Parameters: map[string]any{"candidate_labels": []string{"refund", "legal", "faq"}},
	})
	require.NoError(t, err)

	params, ok := gotBody["parameters"].(map[string]any)
	require.True(t, ok, "parameters must be carried when set")
	assert.Contains(t, params, "candidate_labels")

	opts, ok := gotBody["options"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, opts["wait_for_model"])
	assert.Equal(t, true, opts["use_gpu"])
}

func TestDo_ModelLoading(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"Model gpt2 is currently loading","estimated_time":19.5}`))
	}))
	defer srv.Close()

	c := newBoundClient(t, srv.URL, "text-generation", "gpt2")

	_, err := c.Do(context.Background(), Request{Inputs: "The goal of life is"})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrModelLoading)

	var loading *ModelLoadingError
	require.ErrorAs(t, err, &loading)
	assert.Equal(t, "gpt2", loading.RepoID)
	assert.InDelta(t, 19.5, loading.EstimatedTime, 0.001)
}

func TestDo_Outage503(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`<html><h1>503 Service Unavailable</h1></html>`))
	}))
	defer srv.Close()

	c := newBoundClient(t, srv.URL, "text-generation", "gpt2")

	_, err := c.Do(context.Background(), Request{Inputs: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamError)
	assert.NotErrorIs(t, err, ErrModelLoading)
}

func TestDo_ErrorStatuses(t *testing.T) {
	tests := []struct {
		status   int
		sentinel error
	}{
		{http.StatusBadRequest, ErrBadInput},
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusTooManyRequests, ErrRateLimited},
		{http.StatusBadGateway, ErrUpstreamError},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte(`{"error":"nope"}`))
		}))
		c := newBoundClient(t, srv.URL, "fill-mask", "google-bert/bert-base-uncased")

		_, err := c.Do(context.Background(), Request{Inputs: "x"})
		assert.ErrorIs(t, err, tt.sentinel, "status %d", tt.status)
		srv.Close()
	}
}

func TestDo_BinaryResponse(t *testing.T) {
	audio := []byte{0x66, 0x4C, 0x61, 0x43, 0x00, 0x01, 0x02}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/flac")
		_, _ = w.Write(audio)
	}))
	defer srv.Close()

	c := newBoundClient(t, srv.URL, "text-to-speech", "facebook/fastspeech2-en-ljspeech")

	resp, err := c.Do(context.Background(), Request{Inputs: "hello world"})
	require.NoError(t, err)
	assert.Equal(t, "audio/flac", resp.ContentType)
	assert.Equal(t, audio, []byte(resp.Body))
}

func TestDoWithRetry_SucceedsAfterLoading(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"Model gpt2 is currently loading","estimated_time":0.01}`))
			return
		}
		_, _ = w.Write([]byte(`[{"generated_text":"The goal of life is life."}]`))
	}))
	defer srv.Close()

	c := newBoundClient(t, srv.URL, "text-generation", "gpt2")

	resp, err := c.DoWithRetry(context.Background(), Request{Inputs: "The goal of life is"})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Attempts)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoWithRetry_GivesUpWhileLoading(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"Model gpt2 is currently loading","estimated_time":0.01}`))
	}))
	defer srv.Close()

	c, err := New(context.Background(), Options{
		Endpoint:   srv.URL,
		RepoID:     "gpt2",
		Task:       "text-generation",
		MaxRetries: 2,
		Timeout:    5 * time.Second,
	}, Deps{})
	require.NoError(t, err)

	_, err = c.DoWithRetry(context.Background(), Request{Inputs: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelLoading)
	assert.Contains(t, err.Error(), "after 2 retries")
}

func TestDoWithRetry_NonLoadingErrorStops(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"malformed inputs"}`))
	}))
	defer srv.Close()

	c := newBoundClient(t, srv.URL, "text-generation", "gpt2")

	_, err := c.DoWithRetry(context.Background(), Request{Inputs: "x"})
	require.ErrorIs(t, err, ErrBadInput)
	assert.Equal(t, int32(1), calls.Load(), "non-loading errors must not retry")
}

func TestDoWithRetry_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"Model gpt2 is currently loading","estimated_time":5}`))
	}))
	defer srv.Close()

	c := newBoundClient(t, srv.URL, "text-generation", "gpt2")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.DoWithRetry(ctx, Request{Inputs: "x"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDo_BreakerCountsOutagesNotLoading(t *testing.T) {
	loading := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"Model gpt2 is currently loading","estimated_time":0.01}`))
	}))
	defer loading.Close()

	breaker := resilience.NewCircuitBreaker("inference-test-loading", 2, time.Minute)
	c, err := New(context.Background(), Options{
		Endpoint: loading.URL,
		RepoID:   "gpt2",
		Task:     "text-generation",
		Timeout:  5 * time.Second,
	}, Deps{Breaker: breaker})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := c.Do(context.Background(), Request{Inputs: "x"})
		require.ErrorIs(t, err, ErrModelLoading)
	}
	assert.Equal(t, string(resilience.StateClosed), breaker.State(), "loading must not trip the breaker")

	outage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer outage.Close()

	breaker = resilience.NewCircuitBreaker("inference-test-outage", 2, time.Minute)
	c, err = New(context.Background(), Options{
		Endpoint: outage.URL,
		RepoID:   "gpt2",
		Task:     "text-generation",
		Timeout:  5 * time.Second,
	}, Deps{Breaker: breaker})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := c.Do(context.Background(), Request{Inputs: "x"})
		require.ErrorIs(t, err, ErrUpstreamError)
	}
	assert.Equal(t, string(resilience.StateOpen), breaker.State())

	_, err = c.Do(context.Background(), Request{Inputs: "x"})
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}
