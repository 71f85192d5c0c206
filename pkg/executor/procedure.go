package executor

import (
	"fmt"
	"time"

	"github.com/pudingtabi/sequor/pkg/bindings"
	"github.com/pudingtabi/sequor/pkg/workflow"
)

const (
	// DefaultStepTimeout bounds a single tool invocation when neither the
	// step nor its retry policy declares one.
	DefaultStepTimeout = 30 * time.Second

	// StateCompleted and StateFailed are the terminal procedure states.
	StateCompleted = "completed"
	StateFailed    = "failed"

	// TransitionSuccess and TransitionError label state transitions.
	TransitionSuccess = "success"
	TransitionError   = "error"
)

// StateAction is the tool invocation a procedure state performs.
type StateAction struct {
	Tool      string                 `json:"tool"`
	Operation string                 `json:"operation"`
	Params    map[string]interface{} `json:"params,omitempty"`
	Timeout   time.Duration          `json:"timeout"`
	Retry     *workflow.RetryPolicy  `json:"retry,omitempty"`
}

// Transition connects one state to the next on an outcome label.
type Transition struct {
	On string `json:"on"`
	To string `json:"to"`
}

// State is one node of the procedure document. Order is carried
// explicitly; consumers never parse it back out of the state name.
type State struct {
	Name        string       `json:"name"`
	Order       int          `json:"order"`
	Terminal    bool         `json:"terminal,omitempty"`
	Action      *StateAction `json:"action,omitempty"`
	Transitions []Transition `json:"transitions,omitempty"`
}

// ContextParam describes one context key the procedure expects, derived
// from the pattern's declared bindings for upstream validation.
type ContextParam struct {
	Name     string                 `json:"name"`
	Source   workflow.BindingSource `json:"source"`
	Required bool                   `json:"required"`
}

// ProcedureDoc is the execution hand-off document: an external runtime may
// use it to drive per-step retry and backoff on its own.
type ProcedureDoc struct {
	PatternName   string                 `json:"pattern_name"`
	InitialState  string                 `json:"initial_state"`
	States        []State                `json:"states"`
	ContextSchema []ContextParam         `json:"context_schema,omitempty"`
	Timeout       time.Duration          `json:"timeout"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// PatternToProcedure converts a pattern into an ordered executable plan:
// one state per step, success transitions chaining to a terminal completed
// state. An error transition to the failed state is only emitted for steps
// without an active retry policy; retrying steps are assumed handled by
// the run loop or the external runtime.
func PatternToProcedure(pattern *workflow.Pattern, resolvedContext map[string]interface{}) *ProcedureDoc {
	states := make([]State, 0, len(pattern.Steps)+2)
	overall := time.Duration(0)

	for i, step := range pattern.Steps {
		name := stateName(i)

		next := StateCompleted
		if i+1 < len(pattern.Steps) {
			next = stateName(i + 1)
		}

		transitions := []Transition{{On: TransitionSuccess, To: next}}
		if !step.Retry.Active() {
			transitions = append(transitions, Transition{On: TransitionError, To: StateFailed})
		}

		timeout := stepTimeout(step)
		overall += timeout

		states = append(states, State{
			Name:  name,
			Order: i,
			Action: &StateAction{
				Tool:      step.Tool,
				Operation: step.Operation,
				Params:    bindings.ResolveStepBindings(step, resolvedContext, nil),
				Timeout:   timeout,
				Retry:     step.Retry,
			},
			Transitions: transitions,
		})
	}

	states = append(states,
		State{Name: StateCompleted, Order: len(pattern.Steps), Terminal: true},
		State{Name: StateFailed, Order: len(pattern.Steps) + 1, Terminal: true},
	)

	return &ProcedureDoc{
		PatternName:   pattern.Name,
		InitialState:  stateName(0),
		States:        states,
		ContextSchema: contextSchema(pattern),
		Timeout:       overall,
		Metadata: map[string]interface{}{
			"pattern_id": pattern.ID,
			"category":   pattern.Category,
			"steps":      len(pattern.Steps),
		},
	}
}

// stateName derives a deterministic state name from the explicit step
// index.
func stateName(order int) string {
	return fmt.Sprintf("step_%d", order)
}

// stepTimeout picks the step-specific timeout, else the retry policy's,
// else the default.
func stepTimeout(step workflow.Step) time.Duration {
	if step.TimeoutMS > 0 {
		return time.Duration(step.TimeoutMS) * time.Millisecond
	}
	if step.Retry != nil && step.Retry.TimeoutMS > 0 {
		return time.Duration(step.Retry.TimeoutMS) * time.Millisecond
	}
	return DefaultStepTimeout
}

// contextSchema lists every context key the pattern's declared bindings
// reference. Context-sourced bindings are required; the rest can only be
// satisfied at run time.
func contextSchema(pattern *workflow.Pattern) []ContextParam {
	seen := make(map[string]struct{})
	var schema []ContextParam

	add := func(b workflow.Binding) {
		if _, dup := seen[b.TargetParam]; dup {
			return
		}
		seen[b.TargetParam] = struct{}{}
		schema = append(schema, ContextParam{
			Name:     b.TargetParam,
			Source:   b.Source,
			Required: b.Source == workflow.SourceGlobalContext,
		})
	}

	for _, b := range pattern.Bindings {
		add(b)
	}
	for _, step := range pattern.Steps {
		for _, b := range step.Bindings {
			add(b)
		}
	}
	return schema
}
