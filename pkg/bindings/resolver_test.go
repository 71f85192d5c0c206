package bindings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pudingtabi/sequor/pkg/workflow"
)

func TestResolveBinding(t *testing.T) {
	ctx := map[string]interface{}{
		"current_file": "auth.ts",
		"project": map[string]interface{}{
			"root": "/src",
		},
	}
	prev := map[string]interface{}{"symbol": "validateToken"}

	t.Run("literal returns path verbatim", func(t *testing.T) {
		b := workflow.Binding{Source: workflow.SourceLiteral, Path: "fixed-value", TargetParam: "p"}
		assert.Equal(t, "fixed-value", ResolveBinding(b, ctx, prev))
	})

	t.Run("global context", func(t *testing.T) {
		b := workflow.Binding{Source: workflow.SourceGlobalContext, Path: "$.project.root", TargetParam: "p"}
		assert.Equal(t, "/src", ResolveBinding(b, ctx, prev))
	})

	t.Run("previous output", func(t *testing.T) {
		b := workflow.Binding{Source: workflow.SourcePreviousOutput, Path: "$.symbol", TargetParam: "p"}
		assert.Equal(t, "validateToken", ResolveBinding(b, ctx, prev))
	})

	t.Run("previous output defaults to empty map", func(t *testing.T) {
		b := workflow.Binding{Source: workflow.SourcePreviousOutput, Path: "$", TargetParam: "p"}
		assert.Equal(t, map[string]interface{}{}, ResolveBinding(b, ctx, nil))
	})

	t.Run("unresolved path yields nil", func(t *testing.T) {
		b := workflow.Binding{Source: workflow.SourceGlobalContext, Path: "$.missing", TargetParam: "p"}
		assert.Nil(t, ResolveBinding(b, ctx, prev))
	})

	t.Run("unknown source yields nil", func(t *testing.T) {
		b := workflow.Binding{Source: "environment", Path: "$", TargetParam: "p"}
		assert.Nil(t, ResolveBinding(b, ctx, prev))
	})
}

func TestResolveStepBindings(t *testing.T) {
	step := workflow.Step{
		Tool:      "code",
		Operation: "references",
		Params: map[string]interface{}{
			"file":  "static.ts",
			"depth": 2,
		},
		Bindings: []workflow.Binding{
			{Source: workflow.SourceGlobalContext, Path: "$.current_file", TargetParam: "file"},
			{Source: workflow.SourcePreviousOutput, Path: "$.symbol", TargetParam: "symbol"},
			{Source: workflow.SourceGlobalContext, Path: "$.missing", TargetParam: "ghost"},
		},
	}
	ctx := map[string]interface{}{"current_file": "auth.ts"}
	prev := map[string]interface{}{"symbol": "validateToken"}

	params := ResolveStepBindings(step, ctx, prev)

	// Dynamic binding wins over the static param on collision.
	assert.Equal(t, "auth.ts", params["file"])
	assert.Equal(t, 2, params["depth"])
	assert.Equal(t, "validateToken", params["symbol"])

	// Nil resolutions are omitted, not written as explicit nulls.
	_, present := params["ghost"]
	assert.False(t, present)
}

func TestResolveStepBindingsDeclaredOrder(t *testing.T) {
	step := workflow.Step{
		Tool: "file",
		Bindings: []workflow.Binding{
			{Source: workflow.SourceLiteral, Path: "first", TargetParam: "p"},
			{Source: workflow.SourceLiteral, Path: "second", TargetParam: "p"},
		},
	}

	params := ResolveStepBindings(step, nil, nil)
	assert.Equal(t, "second", params["p"])
}

func TestValidateBindings(t *testing.T) {
	pattern := &workflow.Pattern{
		Name: "validate",
		Bindings: []workflow.Binding{
			{Source: workflow.SourceGlobalContext, Path: "$.present", TargetParam: "a"},
			{Source: workflow.SourceGlobalContext, Path: "$.absent", TargetParam: "b"},
		},
		Steps: []workflow.Step{
			{
				Tool: "file", Operation: "read",
				Bindings: []workflow.Binding{
					{Source: workflow.SourceGlobalContext, Path: "$.also.absent", TargetParam: "c"},
					{Source: workflow.SourcePreviousOutput, Path: "$.unknowable", TargetParam: "d"},
					{Source: workflow.SourceLiteral, Path: "anything", TargetParam: "e"},
				},
			},
		},
	}
	ctx := map[string]interface{}{"present": true}

	unresolved := ValidateBindings(pattern, ctx)
	require.Len(t, unresolved, 2)
	assert.Equal(t, "b", unresolved[0].TargetParam)
	assert.Equal(t, "c", unresolved[1].TargetParam)
}
