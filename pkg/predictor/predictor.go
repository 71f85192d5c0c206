// Package predictor selects the best-matching learned pattern for a new
// task by extracting features from the task description and scoring the
// registry's candidates.
package predictor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pudingtabi/sequor/pkg/bindings"
	"github.com/pudingtabi/sequor/pkg/logging"
	"github.com/pudingtabi/sequor/pkg/workflow"
)

const (
	// AutoExecuteThreshold is the inclusive score cutoff for the Ready path.
	AutoExecuteThreshold = 0.80

	// SuggestThreshold is the inclusive score cutoff for the Suggest path.
	SuggestThreshold = 0.50

	// MaxSuggestions bounds how many patterns a Suggest decision carries.
	MaxSuggestions = 3
)

// Outcome names the three decision shapes of a prediction.
type Outcome string

const (
	OutcomeReady   Outcome = "ready"
	OutcomeSuggest Outcome = "suggest"
	OutcomeManual  Outcome = "manual"
)

// Decision is the result of predicting a workflow for a task.
type Decision struct {
	Outcome Outcome

	// Ready fields.
	Pattern  *workflow.Pattern
	Score    float64
	Bindings map[string]interface{}

	// Suggest fields.
	Suggestions []*workflow.Pattern

	// Manual fields.
	Reason string
}

// scored pairs a candidate with its computed score, keeping the registry
// order stable for equal scores.
type scored struct {
	pattern *workflow.Pattern
	score   float64
}

// intentTags maps each intent to the pattern tags considered relevant for
// candidate selection and tag-overlap scoring.
var intentTags = map[Intent]map[string]struct{}{
	IntentDebug:    workflow.NewTagSet("debugging"),
	IntentEdit:     workflow.NewTagSet("editing", "refactoring"),
	IntentNavigate: workflow.NewTagSet("navigation", "code-exploration"),
	IntentOnboard:  workflow.NewTagSet("onboarding"),
	IntentContext:  workflow.NewTagSet("context", "memory"),
}

// Predictor scores registry patterns against extracted task features.
type Predictor struct {
	registry workflow.PatternRegistry
	now      func() time.Time
}

func New(registry workflow.PatternRegistry) *Predictor {
	return &Predictor{
		registry: registry,
		now:      time.Now,
	}
}

// PredictWorkflow decides whether a pattern should auto-execute, be
// suggested, or left to manual handling for the given task.
func (p *Predictor) PredictWorkflow(ctx context.Context, description string, taskContext map[string]interface{}) Decision {
	features := ExtractFeatures(description, taskContext)
	candidates := p.selectCandidates(features.Intent)

	if len(candidates) == 0 {
		return Decision{Outcome: OutcomeManual, Reason: "no patterns available"}
	}

	ranked := make([]scored, len(candidates))
	for i, candidate := range candidates {
		ranked[i] = scored{
			pattern: candidate,
			score:   p.score(features, taskContext, candidate),
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	top := ranked[0]
	logger := logging.GetLogger()

	switch outcomeFor(top.score) {
	case OutcomeReady:
		logger.Debug(ctx, "predicted pattern %q with score %.3f, auto-executing", top.pattern.Name, top.score)
		return Decision{
			Outcome:  OutcomeReady,
			Pattern:  top.pattern,
			Score:    top.score,
			Bindings: resolvePatternBindings(top.pattern, taskContext),
		}
	case OutcomeSuggest:
		limit := MaxSuggestions
		if len(ranked) < limit {
			limit = len(ranked)
		}
		suggestions := make([]*workflow.Pattern, limit)
		for i := 0; i < limit; i++ {
			suggestions[i] = ranked[i].pattern
		}
		logger.Debug(ctx, "suggesting %d patterns, top score %.3f", limit, top.score)
		return Decision{Outcome: OutcomeSuggest, Suggestions: suggestions, Score: top.score}
	default:
		return Decision{
			Outcome: OutcomeManual,
			Score:   top.score,
			Reason:  fmt.Sprintf("no pattern scored above the suggestion cutoff (best %.2f)", top.score),
		}
	}
}

// outcomeFor maps a top score onto a decision path. Both cutoffs are
// inclusive.
func outcomeFor(score float64) Outcome {
	switch {
	case score >= AutoExecuteThreshold:
		return OutcomeReady
	case score >= SuggestThreshold:
		return OutcomeSuggest
	default:
		return OutcomeManual
	}
}

// selectCandidates filters registry patterns by the intent's tag set. An
// unknown intent, or an intent whose tags match nothing, falls back to the
// whole registry.
func (p *Predictor) selectCandidates(intent Intent) []*workflow.Pattern {
	all := p.registry.ListPatterns()
	tags, ok := intentTags[intent]
	if !ok {
		return all
	}

	var matched []*workflow.Pattern
	for _, candidate := range all {
		for tag := range tags {
			if candidate.HasTag(tag) {
				matched = append(matched, candidate)
				break
			}
		}
	}
	if len(matched) == 0 {
		return all
	}
	return matched
}

// score combines the five weighted components, each within [0,1].
func (p *Predictor) score(features TaskFeatures, taskContext map[string]interface{}, candidate *workflow.Pattern) float64 {
	return 0.40*p.intentTagOverlap(features.Intent, candidate) +
		0.25*candidate.SuccessRate +
		0.15*p.entityToolMatch(features, candidate) +
		0.15*p.contextRelevance(taskContext, candidate) +
		0.05*p.usageRecency(candidate)
}

// intentTagOverlap is matched-tags over expected-tags, neutral 0.5 when
// the intent is unknown.
func (p *Predictor) intentTagOverlap(intent Intent, candidate *workflow.Pattern) float64 {
	expected, ok := intentTags[intent]
	if !ok || len(expected) == 0 {
		return 0.5
	}

	matched := 0
	for tag := range expected {
		if candidate.HasTag(tag) {
			matched++
		}
	}
	return float64(matched) / float64(len(expected))
}

// entityToolMatch is the fraction of entity-derived tool hints present in
// the candidate's step tools, neutral 0.5 with no entity signal.
func (p *Predictor) entityToolMatch(features TaskFeatures, candidate *workflow.Pattern) float64 {
	hints := map[string]struct{}{}
	if len(features.Files) > 0 {
		hints["file"] = struct{}{}
	}
	if len(features.Symbols) > 0 {
		hints["code"] = struct{}{}
	}
	if len(features.ErrorTypes) > 0 {
		hints["code"] = struct{}{}
	}
	if len(hints) == 0 {
		return 0.5
	}

	stepTools := map[string]struct{}{}
	for _, s := range candidate.Steps {
		stepTools[s.Tool] = struct{}{}
	}

	present := 0
	for hint := range hints {
		if _, ok := stepTools[hint]; ok {
			present++
		}
	}
	return float64(present) / float64(len(hints))
}

// contextRelevance sums the indicator contributions that fire, clamped to
// 1; neutral 0.5 when no signal fires.
func (p *Predictor) contextRelevance(taskContext map[string]interface{}, candidate *workflow.Pattern) float64 {
	relevance := 0.0
	fired := false

	if _, ok := taskContext["error_message"]; ok && candidate.HasTag("debugging") {
		relevance += 0.3
		fired = true
	}
	if _, ok := taskContext["current_file"]; ok && candidate.HasTag("file-operations") {
		relevance += 0.2
		fired = true
	}
	if _, ok := taskContext["project_root"]; ok && candidate.HasTag("navigation") {
		relevance += 0.2
		fired = true
	}

	if !fired {
		return 0.5
	}
	if relevance > 1 {
		relevance = 1
	}
	return relevance
}

// usageRecency blends normalized usage count with how recently the
// pattern last ran (a week of decay).
func (p *Predictor) usageRecency(candidate *workflow.Pattern) float64 {
	usage := float64(candidate.UsageCount) / 100
	if usage > 1 {
		usage = 1
	}

	recency := 0.0
	if candidate.LastUsed != nil {
		hours := p.now().Sub(*candidate.LastUsed).Hours()
		recency = 1 - hours/168
		if recency < 0 {
			recency = 0
		}
	}

	return 0.5*usage + 0.5*recency
}

// resolvePatternBindings resolves the pattern-level bindings against the
// task context, omitting anything that does not resolve.
func resolvePatternBindings(pattern *workflow.Pattern, taskContext map[string]interface{}) map[string]interface{} {
	resolved := make(map[string]interface{}, len(pattern.Bindings))
	for _, b := range pattern.Bindings {
		if value := bindings.ResolveBinding(b, taskContext, nil); value != nil {
			resolved[b.TargetParam] = value
		}
	}
	return resolved
}
