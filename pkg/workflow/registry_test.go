package workflow

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pudingtabi/sequor/pkg/errors"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	registry := NewInMemoryPatternRegistry()

	p := validPattern("fix-build")
	require.NoError(t, registry.Register(p))

	got, err := registry.GetPattern("fix-build")
	require.NoError(t, err)
	assert.Equal(t, p, got)
	assert.Equal(t, DefaultConfidenceThreshold, got.ConfidenceThreshold)

	// Duplicate registration is rejected.
	err = registry.Register(validPattern("fix-build"))
	require.Error(t, err)
	assert.Equal(t, errors.InvalidInput, errors.CodeOf(err))
}

func TestRegistryGetMissing(t *testing.T) {
	registry := NewInMemoryPatternRegistry()

	_, err := registry.GetPattern("nope")
	require.Error(t, err)
	assert.Equal(t, errors.ResourceNotFound, errors.CodeOf(err))
}

func TestRegistryRejectsInvalid(t *testing.T) {
	registry := NewInMemoryPatternRegistry()

	assert.Error(t, registry.Register(nil))
	assert.Error(t, registry.Register(&Pattern{Name: "no-steps"}))
}

func TestRegistryList(t *testing.T) {
	registry := NewInMemoryPatternRegistry()
	require.NoError(t, registry.Register(validPattern("a")))
	require.NoError(t, registry.Register(validPattern("b")))

	assert.Len(t, registry.ListPatterns(), 2)
}

func TestUpdatePatternMetrics(t *testing.T) {
	registry := NewInMemoryPatternRegistry()
	require.NoError(t, registry.Register(validPattern("metrics")))

	require.NoError(t, registry.UpdatePatternMetrics("metrics", true, 100))
	p, err := registry.GetPattern("metrics")
	require.NoError(t, err)
	assert.Equal(t, 1, p.UsageCount)
	assert.InDelta(t, 1.0, p.SuccessRate, 1e-9)
	assert.InDelta(t, 100.0, p.AvgTokenSavings, 1e-9)
	require.NotNil(t, p.LastUsed)

	require.NoError(t, registry.UpdatePatternMetrics("metrics", false, 0))
	assert.Equal(t, 2, p.UsageCount)
	assert.InDelta(t, 0.5, p.SuccessRate, 1e-9)
	assert.InDelta(t, 50.0, p.AvgTokenSavings, 1e-9)

	err = registry.UpdatePatternMetrics("missing", true, 0)
	require.Error(t, err)
	assert.Equal(t, errors.ResourceNotFound, errors.CodeOf(err))
}

func TestUpdatePatternMetricsConcurrent(t *testing.T) {
	registry := NewInMemoryPatternRegistry()
	require.NoError(t, registry.Register(validPattern("concurrent")))

	const updates = 100
	var wg sync.WaitGroup
	for i := 0; i < updates; i++ {
		wg.Add(1)
		go func(success bool) {
			defer wg.Done()
			_ = registry.UpdatePatternMetrics("concurrent", success, 10)
		}(i%2 == 0)
	}
	wg.Wait()

	p, err := registry.GetPattern("concurrent")
	require.NoError(t, err)
	// Every increment must survive the concurrent completions.
	assert.Equal(t, updates, p.UsageCount)
	assert.InDelta(t, 0.5, p.SuccessRate, 1e-9)
	assert.InDelta(t, 10.0, p.AvgTokenSavings, 1e-9)
}

func TestToolMux(t *testing.T) {
	mux := NewToolMux()

	require.NoError(t, mux.Handle("file", func(ctx context.Context, tool, operation string, params map[string]interface{}) (map[string]interface{}, error) {
		return map[string]interface{}{"tool": tool, "operation": operation}, nil
	}))

	t.Run("dispatch", func(t *testing.T) {
		out, err := mux.Invoke(context.Background(), "file", "read", nil)
		require.NoError(t, err)
		assert.Equal(t, "file", out["tool"])
		assert.Equal(t, "read", out["operation"])
	})

	t.Run("unknown tool", func(t *testing.T) {
		_, err := mux.Invoke(context.Background(), "browser", "open", nil)
		require.Error(t, err)
		assert.Equal(t, errors.ResourceNotFound, errors.CodeOf(err))
	})

	t.Run("duplicate handler", func(t *testing.T) {
		err := mux.Handle("file", func(ctx context.Context, tool, operation string, params map[string]interface{}) (map[string]interface{}, error) {
			return nil, nil
		})
		assert.Error(t, err)
	})

	t.Run("nil handler", func(t *testing.T) {
		assert.Error(t, mux.Handle("code", nil))
	})

	assert.ElementsMatch(t, []string{"file"}, mux.Tools())
}
