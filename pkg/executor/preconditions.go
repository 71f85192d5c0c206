package executor

import (
	"fmt"
	"os"

	"github.com/pudingtabi/sequor/pkg/errors"
	"github.com/pudingtabi/sequor/pkg/workflow"
)

// CustomCheck evaluates a named custom precondition against the execution
// context.
type CustomCheck func(execContext map[string]interface{}) bool

// PreconditionEvaluator evaluates a pattern's preconditions against the
// execution context before any step runs.
type PreconditionEvaluator struct {
	custom map[string]CustomCheck
}

func NewPreconditionEvaluator() *PreconditionEvaluator {
	return &PreconditionEvaluator{
		custom: make(map[string]CustomCheck),
	}
}

// RegisterCustom installs a named check usable by preconditions of kind
// "custom" via their "name" parameter.
func (e *PreconditionEvaluator) RegisterCustom(name string, check CustomCheck) {
	e.custom[name] = check
}

// Evaluate runs the preconditions in declared order and returns an error
// describing the first one that fails.
func (e *PreconditionEvaluator) Evaluate(preconditions []workflow.Precondition, execContext map[string]interface{}) error {
	for _, p := range preconditions {
		ok, err := e.check(p, execContext)
		if err != nil {
			return err
		}
		if !ok {
			return errors.WithFields(
				errors.New(errors.PreconditionFailed, describePrecondition(p)),
				errors.Fields{"kind": string(p.Kind)},
			)
		}
	}
	return nil
}

func (e *PreconditionEvaluator) check(p workflow.Precondition, execContext map[string]interface{}) (bool, error) {
	switch p.Kind {
	case workflow.PreconditionContextHasKey:
		key, _ := p.Params["key"].(string)
		if key == "" {
			return false, errors.New(errors.InvalidInput, "context_has_key precondition requires a key parameter")
		}
		_, ok := execContext[key]
		return ok, nil

	case workflow.PreconditionFileExists:
		path, _ := p.Params["path"].(string)
		if path == "" {
			// Fall back to a context key naming the file.
			if key, _ := p.Params["context_key"].(string); key != "" {
				path, _ = execContext[key].(string)
			}
		}
		if path == "" {
			return false, errors.New(errors.InvalidInput, "file_exists precondition requires a path")
		}
		_, err := os.Stat(path)
		return err == nil, nil

	case workflow.PreconditionProjectIndexed:
		indexed, _ := execContext["project_indexed"].(bool)
		return indexed, nil

	case workflow.PreconditionCustom:
		name, _ := p.Params["name"].(string)
		check, ok := e.custom[name]
		if !ok {
			return false, errors.WithFields(
				errors.New(errors.InvalidInput, "unknown custom precondition"),
				errors.Fields{"name": name},
			)
		}
		return check(execContext), nil

	default:
		return false, errors.WithFields(
			errors.New(errors.InvalidInput, "unknown precondition kind"),
			errors.Fields{"kind": string(p.Kind)},
		)
	}
}

func describePrecondition(p workflow.Precondition) string {
	if p.Description != "" {
		return p.Description
	}
	return fmt.Sprintf("precondition %s not met", p.Kind)
}
