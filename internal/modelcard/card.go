// Package modelcard parses model card frontmatter and decides hosted
// inference eligibility from it.
package modelcard

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// InferenceFlag is the card's hosted-inference preference. It is tri-state:
// absent (nil Value), explicitly true, or explicitly false. Only the literal
// boolean false counts as an opt-out; some cards put a parameter mapping or
// other non-boolean under the inference key, which leaves the model opted in.
type InferenceFlag struct {
	Value *bool
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (f *InferenceFlag) UnmarshalYAML(node *yaml.Node) error {
	f.Value = nil
	if node.Kind != yaml.ScalarNode {
		return nil
	}
	var b bool
	if err := node.Decode(&b); err == nil {
		f.Value = &b
	}
	return nil
}

// Disabled reports whether the card explicitly opts out of hosted inference.
func (f InferenceFlag) Disabled() bool {
	return f.Value != nil && !*f.Value
}

// MarshalJSON implements json.Marshaler; an absent flag serializes as null.
func (f InferenceFlag) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Value)
}

// UnmarshalJSON implements json.Unmarshaler with the same tolerance as the
// YAML form: anything that is not a literal boolean leaves the flag unset.
func (f *InferenceFlag) UnmarshalJSON(data []byte) error {
	f.Value = nil
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		f.Value = &b
	}
	return nil
}

// StringList accepts a YAML scalar or sequence; cards write both
// "language: en" and "language: [en, de]".
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*l = StringList{s}
		return nil
	case yaml.SequenceNode:
		var out []string
		if err := node.Decode(&out); err != nil {
			return err
		}
		*l = out
		return nil
	default:
		*l = nil
		return nil
	}
}

// Card holds the metadata keys hubgate reads from a model card's YAML
// frontmatter. Cards carry many more keys; unknown ones are ignored.
type Card struct {
	Inference   InferenceFlag `yaml:"inference" json:"inference"`
	PipelineTag string        `yaml:"pipeline_tag" json:"pipeline_tag,omitempty"`
	Tags        StringList    `yaml:"tags" json:"tags,omitempty"`
	Library     string        `yaml:"library_name" json:"library_name,omitempty"`
	License     string        `yaml:"license" json:"license,omitempty"`
	Languages   StringList    `yaml:"language" json:"language,omitempty"`
	Datasets    StringList    `yaml:"datasets" json:"datasets,omitempty"`
}

// OptedOut reports whether the card disables the hosted inference API.
func (c *Card) OptedOut() bool {
	if c == nil {
		return false
	}
	return c.Inference.Disabled()
}

// HasTag reports whether the card carries the given tag.
func (c *Card) HasTag(tag string) bool {
	if c == nil {
		return false
	}
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
