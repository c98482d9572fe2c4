package hub

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ModelInfo is the hub's metadata record for a model repository. Field
// tags follow the upstream API spelling; the HTTP layer re-maps them to
// snake_case before they reach clients.
type ModelInfo struct {
	ID           string          `json:"id"`
	ModelID      string          `json:"modelId,omitempty"`
	SHA          string          `json:"sha,omitempty"`
	PipelineTag  string          `json:"pipeline_tag,omitempty"`
	LibraryName  string          `json:"library_name,omitempty"`
	Tags         []string        `json:"tags,omitempty"`
	Private      bool            `json:"private"`
	Gated        Gated           `json:"gated"`
	Disabled     bool            `json:"disabled,omitempty"`
	Downloads    int64           `json:"downloads,omitempty"`
	Likes        int64           `json:"likes,omitempty"`
	LastModified time.Time       `json:"lastModified,omitempty"`
	CardData     json.RawMessage `json:"cardData,omitempty"`
	Siblings     []Sibling       `json:"siblings,omitempty"`
}

// Sibling is one file entry in a model repository.
type Sibling struct {
	RFilename string `json:"rfilename"`
}

// RepoID returns the canonical repository identifier.
func (m *ModelInfo) RepoID() string {
	if m.ModelID != "" {
		return m.ModelID
	}
	return m.ID
}

// HasTag reports whether the hub lists the given tag for this model.
func (m *ModelInfo) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Gated mirrors the hub's tri-typed gating field. The upstream API
// encodes it as false, "auto", or "manual".
type Gated struct {
	Value bool
	Mode  string // "auto" or "manual" when gated
}

// Bool reports whether access conditions must be accepted.
func (g Gated) Bool() bool {
	return g.Value
}

func (g *Gated) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*g = Gated{}
		return nil
	}
	if data[0] == '"' {
		var mode string
		if err := json.Unmarshal(data, &mode); err != nil {
			return fmt.Errorf("gated: %w", err)
		}
		*g = Gated{Value: mode != "", Mode: mode}
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("gated: expected bool or string: %w", err)
	}
	*g = Gated{Value: b}
	return nil
}

func (g Gated) MarshalJSON() ([]byte, error) {
	if g.Mode != "" {
		return json.Marshal(g.Mode)
	}
	return json.Marshal(g.Value)
}
