package hub

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGated_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantVal  bool
		wantMode string
	}{
		{"boolean false", `false`, false, ""},
		{"boolean true", `true`, true, ""},
		{"string auto", `"auto"`, true, "auto"},
		{"string manual", `"manual"`, true, "manual"},
		{"null", `null`, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var g Gated
			require.NoError(t, json.Unmarshal([]byte(tt.in), &g))
			assert.Equal(t, tt.wantVal, g.Value)
			assert.Equal(t, tt.wantMode, g.Mode)
		})
	}
}

func TestGated_MarshalRoundTrip(t *testing.T) {
	for _, in := range []string{`false`, `true`, `"auto"`, `"manual"`} {
		var g Gated
		require.NoError(t, json.Unmarshal([]byte(in), &g))
		out, err := json.Marshal(g)
		require.NoError(t, err)
		assert.JSONEq(t, in, string(out))
	}
}

func TestModelInfo_Unmarshal(t *testing.T) {
	raw := `{
		"id": "google-bert/bert-base-uncased",
		"modelId": "google-bert/bert-base-uncased",
		"sha": "86b5e0934494bd15c9632b12f734a8a67f723594",
		"pipeline_tag": "fill-mask",
		"library_name": "transformers",
		"tags": ["transformers", "pytorch", "en"],
		"private": false,
		"gated": false,
		"downloads": 48205730,
		"likes": 1920,
		"lastModified": "2024-03-11T09:30:00.000Z",
		"cardData": {"language": "en", "license": "apache-2.0", "inference": false},
		"siblings": [{"rfilename": "README.md"}, {"rfilename": "config.json"}]
	}`

	var info ModelInfo
	require.NoError(t, json.Unmarshal([]byte(raw), &info))

	assert.Equal(t, "google-bert/bert-base-uncased", info.RepoID())
	assert.Equal(t, "fill-mask", info.PipelineTag)
	assert.Equal(t, int64(48205730), info.Downloads)
	assert.Equal(t, 2024, info.LastModified.Year())
	assert.True(t, info.HasTag("pytorch"))
	assert.False(t, info.HasTag("tensorflow"))
	assert.NotEmpty(t, info.CardData)
	require.Len(t, info.Siblings, 2)
	assert.Equal(t, "README.md", info.Siblings[0].RFilename)
}

func TestModelInfo_GatedVariants(t *testing.T) {
	var auto ModelInfo
	require.NoError(t, json.Unmarshal([]byte(`{"id":"x","gated":"auto"}`), &auto))
	assert.True(t, auto.Gated.Bool())
	assert.Equal(t, "auto", auto.Gated.Mode)

	var open ModelInfo
	require.NoError(t, json.Unmarshal([]byte(`{"id":"x","gated":false}`), &open))
	assert.False(t, open.Gated.Bool())
}

func TestRepoID_PrefersModelID(t *testing.T) {
	info := ModelInfo{ID: "64f1c3a2", ModelID: "gpt2"}
	assert.Equal(t, "gpt2", info.RepoID())

	legacy := ModelInfo{ID: "gpt2"}
	assert.Equal(t, "gpt2", legacy.RepoID())
}
