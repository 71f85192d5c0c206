// Package executor runs patterns as ordered plans: preconditions first,
// then each step through a single typed tool dispatch, with per-step and
// per-run timeouts, cooperative cancellation, and exactly-once finalization.
package executor

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pudingtabi/sequor/pkg/bindings"
	"github.com/pudingtabi/sequor/pkg/errors"
	"github.com/pudingtabi/sequor/pkg/logging"
	"github.com/pudingtabi/sequor/pkg/workflow"
)

const (
	// DefaultRunTimeout bounds a whole run when the caller does not set one.
	DefaultRunTimeout = 10 * time.Minute

	// DefaultMaxRetained caps how many execution records the executor keeps.
	// Finalized runs beyond the cap are evicted oldest first; recording a
	// result releases the record immediately.
	DefaultMaxRetained = 1024

	// argPreviewLimit caps the argument preview shown in confirmation mode.
	argPreviewLimit = 100
)

// ExecOptions controls one Execute call.
type ExecOptions struct {
	// Confirm returns a pending_confirmation preview instead of running.
	Confirm bool
	// Async returns immediately; track progress through the handle.
	Async bool
	// RunTimeout bounds the whole run. Zero means DefaultRunTimeout.
	RunTimeout time.Duration
}

// StepPreview is one step of a confirmation-mode preview.
type StepPreview struct {
	Order     int    `json:"order"`
	Tool      string `json:"tool"`
	Operation string `json:"operation"`
	Args      string `json:"args"`
}

// Handle tracks one background run. Done is closed when the run
// finalizes; Cancel requests a cooperative stop.
type Handle struct {
	ExecutionID string
	cancel      context.CancelFunc
	done        chan struct{}
}

func (h *Handle) Done() <-chan struct{} { return h.done }

func (h *Handle) Cancel() { h.cancel() }

// Executor runs patterns through an injected ToolInvoker and reports
// outcomes back to the pattern registry. The handle registry is owned by
// the Executor instance; there is no process-global state.
//
// Execution records returned from Execute and Execution are point-in-time
// copies: the run goroutine mutates only the tracked record, under the
// executor's lock, so callers may read their copy freely while the run
// progresses. Records live until RecordResult releases them or the
// retention cap evicts the oldest finalized runs.
type Executor struct {
	registry workflow.PatternRegistry
	invoker  workflow.ToolInvoker
	precond  *PreconditionEvaluator
	logger   *logging.Logger

	mu         sync.Mutex
	executions map[string]*workflow.Execution
	order      []string
	handles    map[string]*Handle

	maxRetained int
	now         func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithPreconditionEvaluator replaces the default evaluator, usually to
// carry registered custom checks.
func WithPreconditionEvaluator(p *PreconditionEvaluator) Option {
	return func(e *Executor) { e.precond = p }
}

func WithLogger(l *logging.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithMaxRetained overrides the execution retention cap.
func WithMaxRetained(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxRetained = n
		}
	}
}

func NewExecutor(registry workflow.PatternRegistry, invoker workflow.ToolInvoker, opts ...Option) *Executor {
	e := &Executor{
		registry:    registry,
		invoker:     invoker,
		precond:     NewPreconditionEvaluator(),
		logger:      logging.GetLogger(),
		executions:  make(map[string]*workflow.Execution),
		handles:     make(map[string]*Handle),
		maxRetained: DefaultMaxRetained,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs a pattern. The caller context is merged over the pattern's
// own resolved bindings, and every step's parameters are resolved once
// against that merged snapshot before anything runs. Preconditions are
// evaluated in declared order; the first failure aborts with its
// description and no side effects. Confirm mode returns a preview without
// creating an execution.
func (e *Executor) Execute(ctx context.Context, pattern *workflow.Pattern, callerCtx map[string]interface{}, opts ExecOptions) (*workflow.Execution, error) {
	if pattern == nil {
		return nil, errors.New(errors.InvalidInput, "pattern must not be nil")
	}
	if err := pattern.Validate(); err != nil {
		return nil, err
	}

	merged := mergeContext(pattern, callerCtx)

	stepParams := make([]map[string]interface{}, len(pattern.Steps))
	for i, step := range pattern.Steps {
		stepParams[i] = bindings.ResolveStepBindings(step, merged, nil)
	}

	if err := e.precond.Evaluate(pattern.Preconditions, merged); err != nil {
		return nil, err
	}

	if opts.Confirm {
		return previewExecution(pattern, stepParams), nil
	}

	exec := &workflow.Execution{
		ID:          uuid.New().String(),
		PatternName: pattern.Name,
		Status:      workflow.StatusRunning,
		Context:     merged,
		StartedAt:   e.now(),
	}

	timeout := opts.RunTimeout
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}

	base := ctx
	if opts.Async {
		base = context.WithoutCancel(ctx)
	}
	runCtx, cancel := context.WithTimeout(base, timeout)

	handle := &Handle{ExecutionID: exec.ID, cancel: cancel, done: make(chan struct{})}

	e.mu.Lock()
	e.executions[exec.ID] = exec
	e.order = append(e.order, exec.ID)
	e.handles[exec.ID] = handle
	e.evictLocked()
	e.mu.Unlock()

	run := func() {
		defer close(handle.done)
		defer cancel()
		e.run(runCtx, exec, pattern, stepParams)

		e.mu.Lock()
		delete(e.handles, exec.ID)
		e.mu.Unlock()
	}

	if opts.Async {
		// Snapshot before the run starts so the caller's copy is stable.
		snap := e.snapshot(exec)
		go run()
		return snap, nil
	}
	run()
	return e.snapshot(exec), nil
}

// run drives the step loop. Every exit path goes through finalize, which
// is idempotent, so the execution ends in exactly one terminal state.
func (e *Executor) run(ctx context.Context, exec *workflow.Execution, pattern *workflow.Pattern, stepParams []map[string]interface{}) {
	ctx = logging.WithExecutionID(logging.WithPatternName(ctx, pattern.Name), exec.ID)
	e.logger.Info(ctx, "executing pattern %q (%d steps)", pattern.Name, len(pattern.Steps))

	for i, step := range pattern.Steps {
		if err := errors.CheckContext(ctx, step.Label()); err != nil {
			e.finalize(exec, statusForStop(ctx), exec.Context)
			return
		}

		output, err := e.runStep(ctx, step, stepParams[i])
		if err != nil {
			if ctx.Err() != nil {
				e.finalize(exec, statusForStop(ctx), exec.Context)
				return
			}
			e.logger.Error(ctx, "step %s failed: %v", step.Label(), err)
			e.finalize(exec, workflow.StatusFailed, map[string]interface{}{
				"error":       err.Error(),
				"failed_step": step.Label(),
			})
			return
		}

		e.mu.Lock()
		for k, v := range output {
			exec.Context[k] = v
		}
		e.mu.Unlock()
	}

	e.finalize(exec, workflow.StatusCompleted, exec.Context)
	e.logger.Info(ctx, "pattern %q completed", pattern.Name)
}

// runStep invokes one step under its own timeout, retrying per the step's
// policy. Backoff sleeps honor cancellation.
func (e *Executor) runStep(ctx context.Context, step workflow.Step, params map[string]interface{}) (map[string]interface{}, error) {
	attempts := 1
	backoff := time.Duration(0)
	if step.Retry.Active() {
		attempts = step.Retry.MaxAttempts
		backoff = time.Duration(step.Retry.BackoffMS) * time.Millisecond
	}
	timeout := stepTimeout(step)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, errors.CheckContext(ctx, step.Label())
			case <-time.After(backoff):
			}
			e.logger.Debug(ctx, "retrying %s (attempt %d/%d)", step.Label(), attempt, attempts)
		}

		stepCtx, cancel := context.WithTimeout(ctx, timeout)
		output, err := e.invoker.Invoke(stepCtx, step.Tool, step.Operation, params)
		cancel()
		if err == nil {
			return output, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, errors.CheckContext(ctx, step.Label())
		}
	}

	return nil, errors.WithFields(
		errors.Wrap(lastErr, errors.StepExecutionFailed, "step execution failed"),
		errors.Fields{"step": step.Label(), "attempts": attempts},
	)
}

// finalize marks the execution terminal. It runs exactly once; later
// calls are no-ops.
func (e *Executor) finalize(exec *workflow.Execution, status workflow.ExecutionStatus, result map[string]interface{}) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if exec.CompletedAt != nil {
		return false
	}
	completed := e.now()
	exec.Status = status
	exec.CompletedAt = &completed
	exec.Result = result
	return true
}

// snapshot copies the tracked record under the lock. Callers read their
// copy without holding the executor's lock, so they never see the map
// mid-mutation.
func (e *Executor) snapshot(exec *workflow.Execution) *workflow.Execution {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyExecution(exec)
}

func copyExecution(exec *workflow.Execution) *workflow.Execution {
	out := *exec
	if exec.Context != nil {
		out.Context = make(map[string]interface{}, len(exec.Context))
		for k, v := range exec.Context {
			out.Context[k] = v
		}
	}
	if exec.Result != nil {
		out.Result = make(map[string]interface{}, len(exec.Result))
		for k, v := range exec.Result {
			out.Result[k] = v
		}
	}
	if exec.CompletedAt != nil {
		completed := *exec.CompletedAt
		out.CompletedAt = &completed
	}
	return &out
}

// evictLocked drops the oldest finalized records once the retention cap is
// exceeded. Running executions are never evicted. Caller holds e.mu.
func (e *Executor) evictLocked() {
	for len(e.executions) > e.maxRetained {
		evicted := false
		for i, id := range e.order {
			exec := e.executions[id]
			if exec.CompletedAt == nil {
				continue
			}
			delete(e.executions, id)
			e.order = append(e.order[:i], e.order[i+1:]...)
			evicted = true
			break
		}
		if !evicted {
			return
		}
	}
}

func (e *Executor) removeFromOrderLocked(id string) {
	for i, v := range e.order {
		if v == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			return
		}
	}
}

// Execution returns a point-in-time copy of a tracked execution.
func (e *Executor) Execution(id string) (*workflow.Execution, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	exec, ok := e.executions[id]
	if !ok {
		return nil, errors.WithFields(
			errors.New(errors.ResourceNotFound, "execution not found"),
			errors.Fields{"execution_id": id},
		)
	}
	return copyExecution(exec), nil
}

// Handle returns the handle of a still-running execution.
func (e *Executor) Handle(id string) (*Handle, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.handles[id]
	return h, ok
}

// Cancel requests a cooperative stop of a running execution.
func (e *Executor) Cancel(id string) error {
	e.mu.Lock()
	handle, ok := e.handles[id]
	e.mu.Unlock()
	if !ok {
		return errors.WithFields(
			errors.New(errors.ResourceNotFound, "no running execution with that id"),
			errors.Fields{"execution_id": id},
		)
	}
	handle.Cancel()
	return nil
}

// RecordResult finalizes an execution from an externally observed outcome
// and feeds the result back into the originating pattern's rolling
// metrics. Token savings are read from metadata under "token_savings".
// Recording releases the execution record, so one completion feeds the
// metrics exactly once; a second call reports the record as gone.
func (e *Executor) RecordResult(executionID string, outcome bool, metadata map[string]interface{}) error {
	e.mu.Lock()
	exec, ok := e.executions[executionID]
	if ok {
		delete(e.executions, executionID)
		e.removeFromOrderLocked(executionID)
	}
	e.mu.Unlock()
	if !ok {
		return errors.WithFields(
			errors.New(errors.ResourceNotFound, "execution not found"),
			errors.Fields{"execution_id": executionID},
		)
	}

	status := workflow.StatusCompleted
	if !outcome {
		status = workflow.StatusFailed
	}
	e.finalize(exec, status, metadata)

	return e.registry.UpdatePatternMetrics(exec.PatternName, outcome, tokenSavings(metadata))
}

func tokenSavings(metadata map[string]interface{}) int {
	switch v := metadata["token_savings"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// mergeContext resolves the pattern's own bindings first, then lays the
// caller's context on top so caller-supplied values win on collision.
func mergeContext(pattern *workflow.Pattern, callerCtx map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(pattern.Bindings)+len(callerCtx))
	for _, b := range pattern.Bindings {
		if value := bindings.ResolveBinding(b, callerCtx, nil); value != nil {
			merged[b.TargetParam] = value
		}
	}
	for k, v := range callerCtx {
		merged[k] = v
	}
	return merged
}

// previewExecution builds the confirmation-mode result. Nothing is
// registered or persisted; the caller decides whether to re-invoke
// without Confirm.
func previewExecution(pattern *workflow.Pattern, stepParams []map[string]interface{}) *workflow.Execution {
	previews := make([]StepPreview, len(pattern.Steps))
	estimated := time.Duration(0)
	for i, step := range pattern.Steps {
		previews[i] = StepPreview{
			Order:     i,
			Tool:      step.Tool,
			Operation: step.Operation,
			Args:      previewArgs(stepParams[i]),
		}
		estimated += stepTimeout(step)
	}
	return &workflow.Execution{
		PatternName: pattern.Name,
		Status:      workflow.StatusPendingConfirmation,
		Result: map[string]interface{}{
			"steps":              previews,
			"estimated_duration": estimated,
		},
	}
}

// previewArgs renders step params for display, truncated at exactly the
// preview limit.
func previewArgs(params map[string]interface{}) string {
	raw, err := json.Marshal(params)
	if err != nil {
		return ""
	}
	s := string(raw)
	if len(s) > argPreviewLimit {
		return s[:argPreviewLimit]
	}
	return s
}

// statusForStop maps a stopped context to the matching terminal status:
// deadline expiry is a timeout, anything else is an interruption.
func statusForStop(ctx context.Context) workflow.ExecutionStatus {
	if ctx.Err() == context.DeadlineExceeded {
		return workflow.StatusTimeout
	}
	return workflow.StatusInterrupted
}
