package workflow

import (
	"context"
	"sync"

	"github.com/pudingtabi/sequor/pkg/errors"
)

// ToolInvoker is the single typed dispatch point for running one
// tool+operation with resolved parameters. The concrete tool belt behind
// it is a collaborator concern; the executor only sees this capability.
type ToolInvoker interface {
	Invoke(ctx context.Context, tool, operation string, params map[string]interface{}) (map[string]interface{}, error)
}

// ToolFunc adapts a plain function to the ToolInvoker interface.
type ToolFunc func(ctx context.Context, tool, operation string, params map[string]interface{}) (map[string]interface{}, error)

func (f ToolFunc) Invoke(ctx context.Context, tool, operation string, params map[string]interface{}) (map[string]interface{}, error) {
	return f(ctx, tool, operation, params)
}

// ToolMux routes invocations to per-tool handlers by tool name. It keeps
// dispatch closed over registered handlers rather than resolving symbols
// dynamically.
type ToolMux struct {
	mu       sync.RWMutex
	handlers map[string]ToolFunc
}

func NewToolMux() *ToolMux {
	return &ToolMux{
		handlers: make(map[string]ToolFunc),
	}
}

// Handle registers a handler for a tool name. Registering the same name
// twice is an error.
func (m *ToolMux) Handle(tool string, fn ToolFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tool == "" {
		return errors.New(errors.InvalidInput, "cannot register a handler for an empty tool name")
	}
	if fn == nil {
		return errors.New(errors.InvalidInput, "cannot register a nil tool handler")
	}
	if _, exists := m.handlers[tool]; exists {
		return errors.WithFields(errors.New(errors.InvalidInput, "tool already registered"), errors.Fields{
			"tool": tool,
		})
	}

	m.handlers[tool] = fn
	return nil
}

// Invoke dispatches to the handler registered for the tool.
func (m *ToolMux) Invoke(ctx context.Context, tool, operation string, params map[string]interface{}) (map[string]interface{}, error) {
	m.mu.RLock()
	fn, exists := m.handlers[tool]
	m.mu.RUnlock()

	if !exists {
		return nil, errors.WithFields(errors.New(errors.ResourceNotFound, "no handler for tool"), errors.Fields{
			"tool":      tool,
			"operation": operation,
		})
	}
	return fn(ctx, tool, operation, params)
}

// Tools returns the registered tool names. The order is not guaranteed.
func (m *ToolMux) Tools() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.handlers))
	for name := range m.handlers {
		names = append(names, name)
	}
	return names
}

var _ ToolInvoker = (*ToolMux)(nil)
