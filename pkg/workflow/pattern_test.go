package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPattern(name string) *Pattern {
	return &Pattern{
		ID:   "pat-" + name,
		Name: name,
		Steps: []Step{
			{Order: 0, Tool: "file", Operation: "read"},
			{Order: 1, Tool: "code", Operation: "definition"},
		},
		Tags: NewTagSet("auto-extracted"),
	}
}

func TestPatternValidate(t *testing.T) {
	t.Run("valid pattern", func(t *testing.T) {
		assert.NoError(t, validPattern("read-then-define").Validate())
	})

	t.Run("missing name", func(t *testing.T) {
		p := validPattern("x")
		p.Name = ""
		assert.Error(t, p.Validate())
	})

	t.Run("no steps", func(t *testing.T) {
		p := validPattern("x")
		p.Steps = nil
		assert.Error(t, p.Validate())
	})

	t.Run("empty step tool", func(t *testing.T) {
		p := validPattern("x")
		p.Steps[0].Tool = ""
		assert.Error(t, p.Validate())
	})

	t.Run("success rate out of range", func(t *testing.T) {
		p := validPattern("x")
		p.SuccessRate = 1.5
		assert.Error(t, p.Validate())
	})

	t.Run("binding without target param", func(t *testing.T) {
		p := validPattern("x")
		p.Steps[0].Bindings = []Binding{{Source: SourceLiteral, Path: "v"}}
		assert.Error(t, p.Validate())
	})

	t.Run("binding with unknown source", func(t *testing.T) {
		b := Binding{Source: "environment", Path: "$.x", TargetParam: "x"}
		assert.Error(t, b.Validate())
	})
}

func TestStepLabels(t *testing.T) {
	p := validPattern("labels")
	assert.Equal(t, []string{"file.read", "code.definition"}, p.StepLabels())
}

func TestEventLabel(t *testing.T) {
	e := Event{Tool: "terminal", Operation: "run"}
	assert.Equal(t, "terminal.run", e.Label())
}

func TestPatternTags(t *testing.T) {
	p := &Pattern{Name: "t", Steps: []Step{{Tool: "file", Operation: "read"}}}
	assert.False(t, p.HasTag("debugging"))
	p.AddTag("debugging")
	assert.True(t, p.HasTag("debugging"))
}

func TestRetryPolicyActive(t *testing.T) {
	var nilPolicy *RetryPolicy
	assert.False(t, nilPolicy.Active())
	assert.False(t, (&RetryPolicy{MaxAttempts: 0}).Active())
	assert.True(t, (&RetryPolicy{MaxAttempts: 2}).Active())
}

func TestExecutionStatusTerminal(t *testing.T) {
	require.True(t, StatusCompleted.Terminal())
	require.True(t, StatusFailed.Terminal())
	require.True(t, StatusInterrupted.Terminal())
	require.True(t, StatusTimeout.Terminal())
	require.False(t, StatusRunning.Terminal())
	require.False(t, StatusPendingConfirmation.Terminal())
}
