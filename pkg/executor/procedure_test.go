package executor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pudingtabi/sequor/pkg/workflow"
)

func twoStepPattern() *workflow.Pattern {
	return &workflow.Pattern{
		ID:   "p-1",
		Name: "read-then-edit",
		Steps: []workflow.Step{
			{Order: 0, Tool: "file", Operation: "read", Params: map[string]interface{}{"path": "main.go"}},
			{Order: 1, Tool: "file", Operation: "edit"},
		},
		ConfidenceThreshold: 0.7,
	}
}

func TestPatternToProcedureChainsStates(t *testing.T) {
	doc := PatternToProcedure(twoStepPattern(), nil)

	require.Len(t, doc.States, 4)
	assert.Equal(t, "step_0", doc.InitialState)
	assert.Equal(t, "read-then-edit", doc.PatternName)

	first := doc.States[0]
	assert.Equal(t, 0, first.Order)
	require.NotNil(t, first.Action)
	assert.Equal(t, "file", first.Action.Tool)
	assert.Equal(t, "read", first.Action.Operation)
	require.Len(t, first.Transitions, 2)
	assert.Equal(t, Transition{On: TransitionSuccess, To: "step_1"}, first.Transitions[0])
	assert.Equal(t, Transition{On: TransitionError, To: StateFailed}, first.Transitions[1])

	second := doc.States[1]
	assert.Equal(t, 1, second.Order)
	assert.Equal(t, Transition{On: TransitionSuccess, To: StateCompleted}, second.Transitions[0])

	assert.True(t, doc.States[2].Terminal)
	assert.Equal(t, StateCompleted, doc.States[2].Name)
	assert.True(t, doc.States[3].Terminal)
	assert.Equal(t, StateFailed, doc.States[3].Name)
}

func TestPatternToProcedureRetryStepsOmitErrorTransition(t *testing.T) {
	p := twoStepPattern()
	p.Steps[0].Retry = &workflow.RetryPolicy{MaxAttempts: 3, BackoffMS: 100}

	doc := PatternToProcedure(p, nil)

	require.Len(t, doc.States[0].Transitions, 1)
	assert.Equal(t, TransitionSuccess, doc.States[0].Transitions[0].On)

	// No policy on the second step, so it still fails fast.
	require.Len(t, doc.States[1].Transitions, 2)
}

func TestPatternToProcedureTimeoutPrecedence(t *testing.T) {
	p := twoStepPattern()
	p.Steps[0].TimeoutMS = 5000
	p.Steps[0].Retry = &workflow.RetryPolicy{MaxAttempts: 2, TimeoutMS: 9000}
	p.Steps[1].Retry = &workflow.RetryPolicy{MaxAttempts: 2, TimeoutMS: 9000}

	doc := PatternToProcedure(p, nil)

	assert.Equal(t, 5*time.Second, doc.States[0].Action.Timeout)
	assert.Equal(t, 9*time.Second, doc.States[1].Action.Timeout)
	assert.Equal(t, 14*time.Second, doc.Timeout)
}

func TestPatternToProcedureDefaultTimeout(t *testing.T) {
	doc := PatternToProcedure(twoStepPattern(), nil)
	assert.Equal(t, DefaultStepTimeout, doc.States[0].Action.Timeout)
}

func TestPatternToProcedureResolvesParams(t *testing.T) {
	p := twoStepPattern()
	p.Steps[1].Bindings = []workflow.Binding{
		{Source: workflow.SourceGlobalContext, Path: "$.current_file", TargetParam: "path"},
	}

	doc := PatternToProcedure(p, map[string]interface{}{"current_file": "auth.go"})

	assert.Equal(t, "auth.go", doc.States[1].Action.Params["path"])
}

func TestPatternToProcedureContextSchema(t *testing.T) {
	p := twoStepPattern()
	p.Bindings = []workflow.Binding{
		{Source: workflow.SourceGlobalContext, Path: "$.project_root", TargetParam: "root"},
	}
	p.Steps[1].Bindings = []workflow.Binding{
		{Source: workflow.SourcePreviousOutput, Path: "$.content", TargetParam: "content"},
	}

	doc := PatternToProcedure(p, nil)

	require.Len(t, doc.ContextSchema, 2)
	assert.Equal(t, "root", doc.ContextSchema[0].Name)
	assert.True(t, doc.ContextSchema[0].Required)
	assert.Equal(t, "content", doc.ContextSchema[1].Name)
	assert.False(t, doc.ContextSchema[1].Required)
}
