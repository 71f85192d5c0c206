package workflow

import (
	"time"

	"github.com/pudingtabi/sequor/pkg/errors"
)

// DefaultConfidenceThreshold is applied to patterns that do not declare
// their own cutoff.
const DefaultConfidenceThreshold = 0.7

// BindingSource identifies where a dynamic parameter value comes from.
type BindingSource string

const (
	SourcePreviousOutput BindingSource = "previous_output"
	SourceGlobalContext  BindingSource = "global_context"
	SourceLiteral        BindingSource = "literal"
)

// Binding is a rule for filling one step parameter from context, a prior
// step's output, or a literal value.
type Binding struct {
	Source      BindingSource `json:"source"`
	Path        string        `json:"path"`
	TargetParam string        `json:"target_param"`
}

// Validate checks the binding's invariants.
func (b Binding) Validate() error {
	if b.TargetParam == "" {
		return errors.New(errors.ValidationFailed, "binding target_param must not be empty")
	}
	switch b.Source {
	case SourcePreviousOutput, SourceGlobalContext, SourceLiteral:
		return nil
	default:
		return errors.WithFields(
			errors.New(errors.ValidationFailed, "unknown binding source"),
			errors.Fields{"source": string(b.Source)},
		)
	}
}

// RetryPolicy describes how a failing step may be retried.
type RetryPolicy struct {
	MaxAttempts int   `json:"max_attempts"`
	BackoffMS   int64 `json:"backoff_ms"`
	TimeoutMS   int64 `json:"timeout_ms"`
}

// Active reports whether the policy actually enables retries.
func (r *RetryPolicy) Active() bool {
	return r != nil && r.MaxAttempts > 0
}

// Step is one tool+operation invocation within a pattern. Order is an
// explicit field so downstream consumers never have to re-derive step
// position from generated state names.
type Step struct {
	Order       int                    `json:"order"`
	Tool        string                 `json:"tool"`
	Operation   string                 `json:"operation"`
	Params      map[string]interface{} `json:"params,omitempty"`
	Bindings    []Binding              `json:"bindings,omitempty"`
	Retry       *RetryPolicy           `json:"retry,omitempty"`
	TimeoutMS   int64                  `json:"timeout_ms,omitempty"`
	Description string                 `json:"description,omitempty"`
}

// Label returns the canonical "tool.operation" identity of the step.
func (s Step) Label() string {
	return s.Tool + "." + s.Operation
}

// Validate checks the step's invariants.
func (s Step) Validate() error {
	if s.Tool == "" {
		return errors.New(errors.ValidationFailed, "step tool must not be empty")
	}
	for _, b := range s.Bindings {
		if err := b.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// PreconditionKind enumerates the supported precondition checks.
type PreconditionKind string

const (
	PreconditionContextHasKey  PreconditionKind = "context_has_key"
	PreconditionFileExists     PreconditionKind = "file_exists"
	PreconditionProjectIndexed PreconditionKind = "project_indexed"
	PreconditionCustom         PreconditionKind = "custom"
)

// Precondition is a boolean check evaluated against the execution context
// before any step runs.
type Precondition struct {
	Kind        PreconditionKind       `json:"kind"`
	Params      map[string]interface{} `json:"params,omitempty"`
	Description string                 `json:"description,omitempty"`
}

// Pattern is a named, ordered sequence of steps mined from or curated for
// repeated use, carrying rolling quality metrics. Metrics are mutated only
// through the registry's metrics-update operation.
type Pattern struct {
	ID                  string              `json:"id"`
	Name                string              `json:"name"`
	Description         string              `json:"description,omitempty"`
	Category            string              `json:"category,omitempty"`
	Steps               []Step              `json:"steps"`
	Bindings            []Binding           `json:"bindings,omitempty"`
	Preconditions       []Precondition      `json:"preconditions,omitempty"`
	SuccessRate         float64             `json:"success_rate"`
	AvgTokenSavings     float64             `json:"avg_token_savings"`
	UsageCount          int                 `json:"usage_count"`
	LastUsed            *time.Time          `json:"last_used,omitempty"`
	ConfidenceThreshold float64             `json:"confidence_threshold"`
	Tags                map[string]struct{} `json:"tags,omitempty"`
	Provenance          map[string]struct{} `json:"provenance,omitempty"`
}

// Validate checks the pattern's invariants.
func (p *Pattern) Validate() error {
	if p.Name == "" {
		return errors.New(errors.ValidationFailed, "pattern name must not be empty")
	}
	if len(p.Steps) == 0 {
		return errors.WithFields(
			errors.New(errors.ValidationFailed, "pattern must have at least one step"),
			errors.Fields{"pattern": p.Name},
		)
	}
	if p.SuccessRate < 0 || p.SuccessRate > 1 {
		return errors.New(errors.ValidationFailed, "success_rate must be within [0,1]")
	}
	if p.AvgTokenSavings < 0 {
		return errors.New(errors.ValidationFailed, "avg_token_savings must be non-negative")
	}
	if p.UsageCount < 0 {
		return errors.New(errors.ValidationFailed, "usage_count must be non-negative")
	}
	for _, s := range p.Steps {
		if err := s.Validate(); err != nil {
			return errors.WithFields(err, errors.Fields{"pattern": p.Name})
		}
	}
	return nil
}

// StepLabels returns the ordered "tool.operation" labels of all steps.
func (p *Pattern) StepLabels() []string {
	labels := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		labels[i] = s.Label()
	}
	return labels
}

// HasTag reports whether the pattern carries the given tag.
func (p *Pattern) HasTag(tag string) bool {
	_, ok := p.Tags[tag]
	return ok
}

// AddTag adds a tag, initializing the set on first use.
func (p *Pattern) AddTag(tag string) {
	if p.Tags == nil {
		p.Tags = make(map[string]struct{})
	}
	p.Tags[tag] = struct{}{}
}

// NewTagSet builds a tag set from a list of tag strings.
func NewTagSet(tags ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	return set
}
