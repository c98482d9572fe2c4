// SPDX-License-Identifier: MIT

// Package tasks provides the registry of pipeline tasks the hosted inference
// API accepts and the rules for resolving which task a request runs under.
package tasks

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Task identifies an inference pipeline type, for example "text-classification".
type Task string

// All tasks accepted by the hosted inference API.
const (
	TaskTextClassification         Task = "text-classification"
	TaskTokenClassification        Task = "token-classification"
	TaskTableQuestionAnswering     Task = "table-question-answering"
	TaskQuestionAnswering          Task = "question-answering"
	TaskZeroShotClassification     Task = "zero-shot-classification"
	TaskTranslation                Task = "translation"
	TaskSummarization              Task = "summarization"
	TaskConversational             Task = "conversational"
	TaskFeatureExtraction          Task = "feature-extraction"
	TaskTextGeneration             Task = "text-generation"
	TaskText2TextGeneration        Task = "text2text-generation"
	TaskFillMask                   Task = "fill-mask"
	TaskSentenceSimilarity         Task = "sentence-similarity"
	TaskTextToSpeech               Task = "text-to-speech"
	TaskAutomaticSpeechRecognition Task = "automatic-speech-recognition"
	TaskAudioSourceSeparation      Task = "audio-source-separation"
	TaskVoiceActivityDetection     Task = "voice-activity-detection"
	TaskImageClassification        Task = "image-classification"
	TaskObjectDetection            Task = "object-detection"
	TaskImageSegmentation          Task = "image-segmentation"
)

var (
	// ErrNotSpecified is returned when neither the model metadata nor the
	// caller names a task.
	ErrNotSpecified = errors.New("tasks: task not specified in the model metadata and no override given")

	// ErrUnsupported is returned for task names outside the registry.
	ErrUnsupported = errors.New("tasks: unsupported task")
)

var registry = map[Task]struct{}{
	TaskTextClassification:         {},
	TaskTokenClassification:        {},
	TaskTableQuestionAnswering:     {},
	TaskQuestionAnswering:          {},
	TaskZeroShotClassification:     {},
	TaskTranslation:                {},
	TaskSummarization:              {},
	TaskConversational:             {},
	TaskFeatureExtraction:          {},
	TaskTextGeneration:             {},
	TaskText2TextGeneration:        {},
	TaskFillMask:                   {},
	TaskSentenceSimilarity:         {},
	TaskTextToSpeech:               {},
	TaskAutomaticSpeechRecognition: {},
	TaskAudioSourceSeparation:      {},
	TaskVoiceActivityDetection:     {},
	TaskImageClassification:        {},
	TaskObjectDetection:            {},
	TaskImageSegmentation:          {},
}

// String implements fmt.Stringer.
func (t Task) String() string {
	return string(t)
}

// IsValid checks whether the task is in the registry.
func (t Task) IsValid() bool {
	_, ok := registry[t]
	return ok
}

// MarshalJSON implements json.Marshaler.
func (t Task) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(t))
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Task) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	task := Task(str)
	if !task.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnsupported, str)
	}

	*t = task
	return nil
}

// Parse parses a string into a Task, returning ErrUnsupported if it is not
// in the registry.
func Parse(s string) (Task, error) {
	task := Task(s)
	if !task.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupported, s)
	}
	return task, nil
}

// IsSupported reports whether the string names a registered task.
func IsSupported(s string) bool {
	return Task(s).IsValid()
}

// All returns every registered task in lexical order.
func All() []Task {
	out := make([]Task, 0, len(registry))
	for t := range registry {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Resolve decides which task a request runs under. pipelineTag is the task
// named by the model metadata and may be empty; override is the task the
// caller asked for and may be empty.
//
// An empty override uses the pipeline tag and fails with ErrNotSpecified when
// that is also empty. An override that differs from the pipeline tag must be
// in the registry and wins over it; mismatch reports whether it differed so
// callers can warn. Pipeline tags, and overrides that merely repeat them, are
// taken as-is: the hub vocabulary grows faster than this registry, and a tag
// outside it only matters when eligibility is checked, not here.
func Resolve(pipelineTag, override string) (task Task, mismatch bool, err error) {
	if override == "" {
		if pipelineTag == "" {
			return "", false, ErrNotSpecified
		}
		return Task(pipelineTag), false, nil
	}

	// An override that merely restates the pipeline tag gets the same
	// leniency as no override at all, even outside the registry.
	if override == pipelineTag {
		return Task(pipelineTag), false, nil
	}

	chosen, err := Parse(override)
	if err != nil {
		return "", false, err
	}
	return chosen, pipelineTag != "" && pipelineTag != override, nil
}
