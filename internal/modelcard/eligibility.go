package modelcard

import (
	"github.com/ManuGH/hubgate/internal/tasks"
)

// Reason is a frozen vocabulary of machine-readable eligibility codes.
// No ad-hoc strings allowed; additions require an OpenAPI and golden update.
type Reason string

const (
	// ReasonCardOptOut: the card carries the literal metadata `inference: false`.
	ReasonCardOptOut Reason = "card_opt_out"

	// ReasonRequiresToken: the repository is private or gated and no API
	// token is configured.
	ReasonRequiresToken Reason = "requires_token"

	// ReasonNoPipelineTask: neither the hub nor the card names a pipeline task.
	ReasonNoPipelineTask Reason = "no_pipeline_task"

	// ReasonUnsupportedTask: the pipeline task is outside the hosted API registry.
	ReasonUnsupportedTask Reason = "unsupported_task"

	// ReasonOK: the model is eligible for hosted inference.
	ReasonOK Reason = "ok"
)

// validReasons is the whitelist guard to prevent ad-hoc string injection.
var validReasons = map[Reason]bool{
	ReasonCardOptOut:      true,
	ReasonRequiresToken:   true,
	ReasonNoPipelineTask:  true,
	ReasonUnsupportedTask: true,
	ReasonOK:              true,
}

// Valid returns true if this reason is in the frozen vocabulary.
func (r Reason) Valid() bool {
	return validReasons[r]
}

// AllReasons returns every reason in evaluation order.
func AllReasons() []Reason {
	return []Reason{
		ReasonCardOptOut,
		ReasonRequiresToken,
		ReasonNoPipelineTask,
		ReasonUnsupportedTask,
		ReasonOK,
	}
}

// Input carries everything Evaluate needs. PipelineTag is the hub's computed
// tag for the model and wins over the card's own pipeline_tag key.
type Input struct {
	Card        *Card
	PipelineTag string
	Private     bool
	Gated       bool
	HasToken    bool
}

// Decision is the eligibility verdict for one model.
type Decision struct {
	Eligible bool       `json:"eligible"`
	Reason   Reason     `json:"reason"`
	Task     tasks.Task `json:"task,omitempty"`
}

// Evaluate decides whether a model can serve hosted inference requests.
//
// Rules fire in a fixed order. The card's explicit opt-out wins over
// everything: `inference: false` disables the API regardless of any other
// metadata. Access control comes next, then the task checks.
func Evaluate(in Input) Decision {
	if in.Card.OptedOut() {
		return Decision{Eligible: false, Reason: ReasonCardOptOut}
	}

	if (in.Private || in.Gated) && !in.HasToken {
		return Decision{Eligible: false, Reason: ReasonRequiresToken}
	}

	tag := in.PipelineTag
	if tag == "" && in.Card != nil {
		tag = in.Card.PipelineTag
	}
	if tag == "" {
		return Decision{Eligible: false, Reason: ReasonNoPipelineTask}
	}

	if !tasks.IsSupported(tag) {
		return Decision{Eligible: false, Reason: ReasonUnsupportedTask}
	}

	return Decision{Eligible: true, Reason: ReasonOK, Task: tasks.Task(tag)}
}
