package modelcard

import (
	"errors"
	"testing"
)

func TestParseOptOut(t *testing.T) {
	readme := `---
inference: false
pipeline_tag: text-classification
---

# My model
`
	card, err := ParseString(readme)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !card.OptedOut() {
		t.Error("expected card to opt out of hosted inference")
	}
	if card.PipelineTag != "text-classification" {
		t.Errorf("pipeline_tag = %q, want text-classification", card.PipelineTag)
	}
}

func TestParseExplicitOptIn(t *testing.T) {
	readme := `---
inference: true
---
body
`
	card, err := ParseString(readme)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if card.OptedOut() {
		t.Error("inference: true must not opt out")
	}
	if card.Inference.Value == nil || !*card.Inference.Value {
		t.Error("expected explicit true inference flag")
	}
}

func TestParseInferenceAbsent(t *testing.T) {
	readme := `---
pipeline_tag: summarization
license: apache-2.0
---
`
	card, err := ParseString(readme)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if card.OptedOut() {
		t.Error("absent inference key must not opt out")
	}
	if card.Inference.Value != nil {
		t.Errorf("expected nil inference flag, got %v", *card.Inference.Value)
	}
	if card.License != "apache-2.0" {
		t.Errorf("license = %q, want apache-2.0", card.License)
	}
}

func TestParseInferenceParameterMapping(t *testing.T) {
	// Cards may put generation parameters under the inference key. That is
	// not an opt-out.
	readme := `---
inference:
  parameters:
    temperature: 0.7
pipeline_tag: text-generation
---
`
	card, err := ParseString(readme)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if card.OptedOut() {
		t.Error("inference parameter mapping must not opt out")
	}
	if card.Inference.Value != nil {
		t.Error("non-boolean inference value must read as absent")
	}
}

func TestParseInferenceNonBooleanScalar(t *testing.T) {
	card, err := ParseString("---\ninference: maybe\n---\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if card.OptedOut() {
		t.Error("non-boolean scalar must not opt out")
	}
}

func TestParseNoFrontmatter(t *testing.T) {
	tests := []struct {
		name   string
		readme string
	}{
		{"plain markdown", "# Title\n\nJust a readme.\n"},
		{"empty", ""},
		{"delimiter not first", "intro\n---\ninference: false\n---\n"},
		{"unterminated block", "---\ninference: false\n"},
		{"horizontal rule only", "---\n"},
		{"delimiter with trailing text", "--- yaml\ninference: false\n---\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card, err := ParseString(tt.readme)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if card.OptedOut() {
				t.Error("readme without frontmatter must stay opted in")
			}
			if card.PipelineTag != "" {
				t.Errorf("unexpected pipeline tag %q", card.PipelineTag)
			}
		})
	}
}

func TestParseCRLF(t *testing.T) {
	readme := "---\r\ninference: false\r\npipeline_tag: fill-mask\r\n---\r\nbody\r\n"
	card, err := ParseString(readme)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !card.OptedOut() {
		t.Error("CRLF card must parse the opt-out")
	}
	if card.PipelineTag != "fill-mask" {
		t.Errorf("pipeline_tag = %q, want fill-mask", card.PipelineTag)
	}
}

func TestParseBOM(t *testing.T) {
	readme := "\ufeff---\ninference: false\n---\n"
	card, err := ParseString(readme)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !card.OptedOut() {
		t.Error("BOM-prefixed card must parse the opt-out")
	}
}

func TestParseMalformedYAML(t *testing.T) {
	readme := "---\ninference: [unclosed\n---\n"
	_, err := ParseString(readme)
	if !errors.Is(err, ErrMalformedFrontmatter) {
		t.Fatalf("expected ErrMalformedFrontmatter, got %v", err)
	}
}

func TestParseLanguageShapes(t *testing.T) {
	scalar, err := ParseString("---\nlanguage: en\n---\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scalar.Languages) != 1 || scalar.Languages[0] != "en" {
		t.Errorf("scalar language = %v, want [en]", scalar.Languages)
	}

	list, err := ParseString("---\nlanguage:\n  - en\n  - de\n---\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list.Languages) != 2 || list.Languages[0] != "en" || list.Languages[1] != "de" {
		t.Errorf("list language = %v, want [en de]", list.Languages)
	}
}

func TestParseTagsAndUnknownKeys(t *testing.T) {
	readme := `---
tags:
  - exbert
  - text-classification
library_name: transformers
datasets:
  - bookcorpus
thumbnail: https://example.com/x.png
model-index:
  - name: whatever
---
`
	card, err := ParseString(readme)
	if err != nil {
		t.Fatalf("unknown keys must not fail parsing: %v", err)
	}
	if !card.HasTag("exbert") {
		t.Error("expected exbert tag")
	}
	if card.HasTag("vision") {
		t.Error("unexpected vision tag")
	}
	if card.Library != "transformers" {
		t.Errorf("library_name = %q, want transformers", card.Library)
	}
	if len(card.Datasets) != 1 || card.Datasets[0] != "bookcorpus" {
		t.Errorf("datasets = %v, want [bookcorpus]", card.Datasets)
	}
}
