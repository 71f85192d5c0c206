package workflow

import (
	"sync"
	"time"

	"github.com/pudingtabi/sequor/pkg/errors"
)

// PatternRegistry manages the pattern corpus. Persistence and cross-process
// storage are the registry implementation's responsibility; the learning
// core only consumes this interface.
type PatternRegistry interface {
	// GetPattern retrieves a pattern by name.
	GetPattern(name string) (*Pattern, error)

	// ListPatterns returns all known patterns.
	ListPatterns() []*Pattern

	// UpdatePatternMetrics applies one outcome to a pattern's rolling
	// metrics as a single serialized increment.
	UpdatePatternMetrics(name string, success bool, tokenSavings int) error
}

// InMemoryPatternRegistry provides a basic in-memory implementation of the
// PatternRegistry interface.
type InMemoryPatternRegistry struct {
	mu       sync.RWMutex
	patterns map[string]*Pattern
}

// NewInMemoryPatternRegistry creates a new, empty registry.
func NewInMemoryPatternRegistry() *InMemoryPatternRegistry {
	return &InMemoryPatternRegistry{
		patterns: make(map[string]*Pattern),
	}
}

// Register adds a pattern to the registry. It returns an error if the
// pattern is invalid or a pattern with the same name already exists.
func (r *InMemoryPatternRegistry) Register(p *Pattern) error {
	if p == nil {
		return errors.New(errors.InvalidInput, "cannot register a nil pattern")
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if p.ConfidenceThreshold == 0 {
		p.ConfidenceThreshold = DefaultConfidenceThreshold
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.patterns[p.Name]; exists {
		return errors.WithFields(errors.New(errors.InvalidInput, "pattern already registered"), errors.Fields{
			"pattern": p.Name,
		})
	}

	r.patterns[p.Name] = p
	return nil
}

// GetPattern retrieves a pattern by its name.
func (r *InMemoryPatternRegistry) GetPattern(name string) (*Pattern, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.patterns[name]
	if !exists {
		return nil, errors.WithFields(errors.New(errors.ResourceNotFound, "pattern not found"), errors.Fields{
			"pattern": name,
		})
	}
	return p, nil
}

// ListPatterns returns a slice of all registered patterns.
// The order is not guaranteed.
func (r *InMemoryPatternRegistry) ListPatterns() []*Pattern {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]*Pattern, 0, len(r.patterns))
	for _, p := range r.patterns {
		list = append(list, p)
	}
	return list
}

// UpdatePatternMetrics folds one execution outcome into the pattern's
// rolling metrics. The whole read-modify-write happens under the write
// lock so concurrent completions never lose increments.
func (r *InMemoryPatternRegistry) UpdatePatternMetrics(name string, success bool, tokenSavings int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.patterns[name]
	if !exists {
		return errors.WithFields(errors.New(errors.ResourceNotFound, "pattern not found"), errors.Fields{
			"pattern": name,
		})
	}

	outcome := 0.0
	if success {
		outcome = 1.0
	}
	count := float64(p.UsageCount)
	p.SuccessRate = (p.SuccessRate*count + outcome) / (count + 1)
	p.AvgTokenSavings = (p.AvgTokenSavings*count + float64(tokenSavings)) / (count + 1)
	p.UsageCount++
	now := time.Now()
	p.LastUsed = &now

	return nil
}

var _ PatternRegistry = (*InMemoryPatternRegistry)(nil)
