// Package bindings resolves a pattern step's dynamic parameters against
// live context, a previous step's output, or literal values.
package bindings

import (
	"github.com/pudingtabi/sequor/pkg/workflow"
)

// ResolveBinding evaluates one binding. A literal binding returns its path
// verbatim; the other sources evaluate the path against their backing
// structure. An unresolvable path yields nil, never an error.
func ResolveBinding(b workflow.Binding, ctx map[string]interface{}, prevOutput map[string]interface{}) interface{} {
	switch b.Source {
	case workflow.SourceLiteral:
		return b.Path
	case workflow.SourceGlobalContext:
		return ExtractPath(toAny(ctx), b.Path)
	case workflow.SourcePreviousOutput:
		if prevOutput == nil {
			prevOutput = map[string]interface{}{}
		}
		return ExtractPath(toAny(prevOutput), b.Path)
	default:
		return nil
	}
}

// ResolveStepBindings produces the final parameter map for a step: the
// static params overlaid by each dynamic binding's resolved value in
// declared order. Dynamic values win on key collision; nil resolutions are
// dropped entirely rather than written as explicit nulls.
func ResolveStepBindings(step workflow.Step, ctx map[string]interface{}, prevOutput map[string]interface{}) map[string]interface{} {
	params := make(map[string]interface{}, len(step.Params)+len(step.Bindings))
	for k, v := range step.Params {
		params[k] = v
	}

	for _, b := range step.Bindings {
		if value := ResolveBinding(b, ctx, prevOutput); value != nil {
			params[b.TargetParam] = value
		}
	}

	return params
}

// ValidateBindings returns the context-sourced bindings of a pattern that
// do not resolve against the given context. Bindings fed by previous
// output or literals cannot be checked ahead of execution and are skipped.
func ValidateBindings(pattern *workflow.Pattern, ctx map[string]interface{}) []workflow.Binding {
	var unresolved []workflow.Binding

	check := func(b workflow.Binding) {
		if b.Source != workflow.SourceGlobalContext {
			return
		}
		if ExtractPath(toAny(ctx), b.Path) == nil {
			unresolved = append(unresolved, b)
		}
	}

	for _, b := range pattern.Bindings {
		check(b)
	}
	for _, step := range pattern.Steps {
		for _, b := range step.Bindings {
			check(b)
		}
	}

	return unresolved
}

// toAny widens a typed map so ExtractPath sees a plain container. A nil
// map stays nil so "$" against a missing context resolves to nil.
func toAny(m map[string]interface{}) interface{} {
	if m == nil {
		return nil
	}
	return m
}
