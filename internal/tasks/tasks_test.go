// SPDX-License-Identifier: MIT
package tasks

import (
	"encoding/json"
	"errors"
	"sort"
	"testing"
)

func TestRegistryCompleteness(t *testing.T) {
	all := All()
	if len(all) != 20 {
		t.Fatalf("expected 20 registered tasks, got %d", len(all))
	}
	if !sort.SliceIsSorted(all, func(i, j int) bool { return all[i] < all[j] }) {
		t.Error("All() must return tasks in lexical order")
	}
	for _, task := range all {
		if !task.IsValid() {
			t.Errorf("task %q from All() not valid", task)
		}
	}
}

func TestTaskIsValid(t *testing.T) {
	tests := []struct {
		name string
		task Task
		want bool
	}{
		{"registered", TaskSummarization, true},
		{"registered audio", TaskAudioSourceSeparation, true},
		{"unknown", Task("video-generation"), false},
		{"empty", Task(""), false},
		{"case sensitive", Task("Summarization"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.task.IsValid(); got != tt.want {
				t.Errorf("IsValid(%q) = %v, want %v", tt.task, got, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	task, err := Parse("fill-mask")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task != TaskFillMask {
		t.Errorf("Parse(fill-mask) = %q, want %q", task, TaskFillMask)
	}

	_, err = Parse("mind-reading")
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("Parse(mind-reading) error = %v, want ErrUnsupported", err)
	}
}

func TestTaskJSONRoundTrip(t *testing.T) {
	raw, err := json.Marshal(TaskObjectDetection)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `"object-detection"` {
		t.Errorf("marshal = %s, want %q", raw, "object-detection")
	}

	var task Task
	if err := json.Unmarshal([]byte(`"text-generation"`), &task); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if task != TaskTextGeneration {
		t.Errorf("unmarshal = %q, want %q", task, TaskTextGeneration)
	}

	if err := json.Unmarshal([]byte(`"not-a-task"`), &task); err == nil {
		t.Error("expected unmarshal error for unregistered task")
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name         string
		pipelineTag  string
		override     string
		wantTask     Task
		wantMismatch bool
		wantErr      error
	}{
		{
			name:        "pipeline tag only",
			pipelineTag: "summarization",
			wantTask:    TaskSummarization,
		},
		{
			name:    "neither given",
			wantErr: ErrNotSpecified,
		},
		{
			name:     "override only",
			override: "translation",
			wantTask: TaskTranslation,
		},
		{
			name:        "override matches tag",
			pipelineTag: "translation",
			override:    "translation",
			wantTask:    TaskTranslation,
		},
		{
			name:         "override differs from tag",
			pipelineTag:  "summarization",
			override:     "text-generation",
			wantTask:     TaskTextGeneration,
			wantMismatch: true,
		},
		{
			name:        "unknown override rejected",
			pipelineTag: "summarization",
			override:    "levitation",
			wantErr:     ErrUnsupported,
		},
		{
			name:        "unregistered pipeline tag passes through",
			pipelineTag: "brand-new-task",
			wantTask:    Task("brand-new-task"),
		},
		{
			name:        "unregistered override matching tag passes through",
			pipelineTag: "brand-new-task",
			override:    "brand-new-task",
			wantTask:    Task("brand-new-task"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task, mismatch, err := Resolve(tt.pipelineTag, tt.override)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Resolve() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if task != tt.wantTask {
				t.Errorf("Resolve() task = %q, want %q", task, tt.wantTask)
			}
			if mismatch != tt.wantMismatch {
				t.Errorf("Resolve() mismatch = %v, want %v", mismatch, tt.wantMismatch)
			}
		})
	}
}
