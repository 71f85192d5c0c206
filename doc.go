// Package sequor is a learning core that turns raw tool-usage event logs
// into executable workflow patterns.
//
// It watches sequences of tool invocations across sessions, mines the
// recurring ones into named patterns, groups structurally similar patterns,
// predicts which pattern fits a new task description, and runs the chosen
// pattern as an ordered plan with timeouts, cancellation, and metric
// feedback.
//
// Key Components:
//
//   - Extractor: Buffered event ingestion and pattern mining:
//     * Ingestor: Non-blocking, single-writer event intake with periodic flushing
//     * EventStore: Append-only event log (in-memory or SQLite backed)
//     * ExtractPatterns: Sliding-window detection and contiguous sub-sequence
//     mining with a minimum support cutoff
//
//   - Cluster: Structural grouping of mined patterns:
//     * PatternDistance: Combined sequence-edit and graph-edge distance
//     * ClusterPatterns: Agglomerative average-linkage clustering with
//     representative selection
//     * FindSimilarPattern: Near-duplicate detection for registration guards
//
//   - Predictor: Task-to-pattern matching:
//     * ExtractFeatures: Intent, entity, and complexity extraction from a
//     task description and its context
//     * PredictWorkflow: Weighted feature scoring with ready / suggest /
//     manual decisions
//
//   - Bindings: A small path language ("$.a.b", "$.items[0]") resolving step
//     parameters from context, prior step outputs, or literals.
//
//   - Executor: Pattern runs:
//     * PatternToProcedure: Conversion into an ordered state document for
//     external runtimes
//     * Execute: Precondition checks, confirmation previews, sync/async runs
//     with per-step retry, two timeout tiers, and cooperative cancellation
//     * RecordResult: Exactly-once finalization feeding rolling pattern
//     metrics
//
//   - Workflow: The shared domain types (Event, Pattern, Step, Binding,
//     Execution), the PatternRegistry contract, and the ToolInvoker dispatch
//     used by the executor.
//
// The cmd/sequor CLI wires these layers together for log ingestion, mining,
// clustering, and prediction from the shell.
package sequor
