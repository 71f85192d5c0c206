package cluster

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pudingtabi/sequor/pkg/errors"
	"github.com/pudingtabi/sequor/pkg/workflow"
)

func TestClusterIdenticalPatterns(t *testing.T) {
	p1 := patternWithLabels("first", "read", "definition", "edit")
	p2 := patternWithLabels("second", "read", "definition", "edit")

	clusters, err := ClusterPatterns(context.Background(), []*workflow.Pattern{p1, p2}, Options{Threshold: 0.3})
	require.NoError(t, err)
	require.Len(t, clusters, 1)

	assert.Len(t, clusters[0].Members, 2)
	assert.Equal(t, 0.0, clusters[0].CentroidDistance)
	assert.NotEmpty(t, clusters[0].ID)
}

func TestClusterDropsSmallGroups(t *testing.T) {
	patterns := []*workflow.Pattern{
		patternWithLabels("a1", "read", "edit"),
		patternWithLabels("a2", "read", "edit"),
		patternWithLabels("outlier", "search", "run", "commit"),
	}

	clusters, err := ClusterPatterns(context.Background(), patterns, Options{Threshold: 0.3, MinSize: 2})
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Len(t, clusters[0].Members, 2)
}

func TestClusterRespectsThreshold(t *testing.T) {
	patterns := []*workflow.Pattern{
		patternWithLabels("a", "read", "edit"),
		patternWithLabels("b", "search", "run"),
	}

	clusters, err := ClusterPatterns(context.Background(), patterns, Options{Threshold: 0.3, MinSize: 1})
	require.NoError(t, err)
	// Nothing within the threshold, both stay singletons.
	assert.Len(t, clusters, 2)
}

func TestClusterRepresentativeSelection(t *testing.T) {
	reliable := patternWithLabels("reliable", "read", "edit")
	reliable.SuccessRate = 0.9
	reliable.UsageCount = 100

	fresh := patternWithLabels("fresh", "read", "edit")
	fresh.SuccessRate = 0.2
	fresh.UsageCount = 1

	clusters, err := ClusterPatterns(context.Background(), []*workflow.Pattern{fresh, reliable}, Options{})
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Equal(t, "reliable", clusters[0].Representative.Name)
}

func TestClusterEmptyInput(t *testing.T) {
	clusters, err := ClusterPatterns(context.Background(), nil, Options{})
	require.NoError(t, err)
	assert.Empty(t, clusters)
}

func TestClusterRejectsMalformedPattern(t *testing.T) {
	patterns := []*workflow.Pattern{
		patternWithLabels("ok", "read"),
		{Name: "no-steps"},
	}

	_, err := ClusterPatterns(context.Background(), patterns, Options{})
	require.Error(t, err)
	assert.Equal(t, errors.ClusteringFailed, errors.CodeOf(err))

	_, err = ClusterPatterns(context.Background(), []*workflow.Pattern{nil}, Options{})
	require.Error(t, err)
	assert.Equal(t, errors.ClusteringFailed, errors.CodeOf(err))
}

func TestClusterCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ClusterPatterns(ctx, []*workflow.Pattern{patternWithLabels("a", "read")}, Options{})
	require.Error(t, err)
	assert.Equal(t, errors.Canceled, errors.CodeOf(err))
}

func TestFindSimilarPattern(t *testing.T) {
	registryPatterns := []*workflow.Pattern{
		patternWithLabels("navigate", "search", "definition"),
		patternWithLabels("edit-loop", "read", "edit", "run"),
	}

	t.Run("finds close match", func(t *testing.T) {
		steps := []workflow.Step{
			{Order: 0, Tool: "t", Operation: "read"},
			{Order: 1, Tool: "t", Operation: "edit"},
			{Order: 2, Tool: "t", Operation: "run"},
		}
		match, dist := FindSimilarPattern(steps, registryPatterns, 0.3)
		require.NotNil(t, match)
		assert.Equal(t, "edit-loop", match.Name)
		assert.Equal(t, 0.0, dist)
	})

	t.Run("nothing within threshold", func(t *testing.T) {
		steps := []workflow.Step{
			{Order: 0, Tool: "t", Operation: "commit"},
			{Order: 1, Tool: "t", Operation: "push"},
		}
		match, _ := FindSimilarPattern(steps, registryPatterns, 0.3)
		assert.Nil(t, match)
	})

	t.Run("empty candidate list", func(t *testing.T) {
		match, _ := FindSimilarPattern([]workflow.Step{{Tool: "t", Operation: "read"}}, nil, 0.3)
		assert.Nil(t, match)
	})
}

func TestRegisterIfNovel(t *testing.T) {
	reg := workflow.NewInMemoryPatternRegistry()

	first := patternWithLabels("first", "read", "edit")
	got, added, err := RegisterIfNovel(reg, first, DefaultThreshold)
	require.NoError(t, err)
	assert.True(t, added)
	assert.Same(t, first, got)

	// Identical steps under a different name are rejected as a duplicate.
	dup := patternWithLabels("duplicate", "read", "edit")
	got, added, err = RegisterIfNovel(reg, dup, DefaultThreshold)
	require.NoError(t, err)
	assert.False(t, added)
	assert.Same(t, first, got)
	require.Len(t, reg.ListPatterns(), 1)

	// A structurally different pattern registers normally.
	other := patternWithLabels("other", "commit", "push", "deploy")
	_, added, err = RegisterIfNovel(reg, other, DefaultThreshold)
	require.NoError(t, err)
	assert.True(t, added)
	require.Len(t, reg.ListPatterns(), 2)
}
