// Package extractor buffers raw tool-usage events and mines frequent
// sub-sequences of them into candidate patterns.
package extractor

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/pudingtabi/sequor/pkg/errors"
	"github.com/pudingtabi/sequor/pkg/logging"
	"github.com/pudingtabi/sequor/pkg/workflow"
)

const (
	// minWindowLen drops windows too short to form a sequence.
	minWindowLen = 2

	// maxSubsequenceLen bounds mined sub-sequences.
	maxSubsequenceLen = 10

	// labelSeparator joins labels into a sub-sequence key. Unit separator,
	// so keys never collide with label content.
	labelSeparator = "\x1f"
)

// Options controls one mining run.
type Options struct {
	// MinSupport is the minimum corpus occurrence count a sub-sequence
	// needs to survive.
	MinSupport int

	// Window is the sliding time window grouping events into sequences.
	Window time.Duration

	// Since restricts mining to events at or after this time.
	Since *time.Time

	// SessionIDs restricts mining to the given sessions.
	SessionIDs []string
}

// Extractor mines candidate patterns from an event store snapshot.
type Extractor struct {
	store EventStore
}

func New(store EventStore) *Extractor {
	return &Extractor{store: store}
}

// window is one time-bounded run of events within a session.
type window struct {
	sessionID string
	labels    []string
}

// candidate tracks one distinct sub-sequence across the corpus.
type candidate struct {
	labels    []string
	count     int
	sessions  map[string]struct{}
	firstSeen int
}

// ExtractPatterns fetches a snapshot of the log, detects per-session
// sliding windows, and returns one pattern per frequent contiguous
// sub-sequence, most frequent first.
func (x *Extractor) ExtractPatterns(ctx context.Context, opts Options) ([]*workflow.Pattern, error) {
	if opts.MinSupport <= 0 {
		return nil, errors.New(errors.InvalidInput, "min support must be positive")
	}
	if opts.Window <= 0 {
		return nil, errors.New(errors.InvalidInput, "window must be positive")
	}

	events, err := x.store.Events(ctx, Filter{Since: opts.Since, SessionIDs: opts.SessionIDs})
	if err != nil {
		return nil, errors.Wrap(err, errors.ExtractionFailed, "failed to read event log")
	}
	if len(events) < minWindowLen {
		return []*workflow.Pattern{}, nil
	}

	sessions := groupBySession(events)

	// Window detection is independent per session; fan out and keep the
	// per-session results indexed so corpus order stays deterministic.
	sessionIDs := make([]string, 0, len(sessions))
	for id := range sessions {
		sessionIDs = append(sessionIDs, id)
	}
	sort.Strings(sessionIDs)

	windowsBySession := make([][]window, len(sessionIDs))
	p := pool.New()
	for idx, id := range sessionIDs {
		idx, id := idx, id
		p.Go(func() {
			windowsBySession[idx] = detectWindows(id, sessions[id], opts.Window)
		})
	}
	p.Wait()

	if err := errors.CheckContext(ctx, "extract patterns"); err != nil {
		return nil, err
	}

	candidates := countSubsequences(windowsBySession)

	survivors := make([]*candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.count >= opts.MinSupport {
			survivors = append(survivors, c)
		}
	}
	sort.SliceStable(survivors, func(i, j int) bool {
		if survivors[i].count != survivors[j].count {
			return survivors[i].count > survivors[j].count
		}
		return survivors[i].firstSeen < survivors[j].firstSeen
	})

	patterns := make([]*workflow.Pattern, len(survivors))
	for i, c := range survivors {
		patterns[i] = buildPattern(c)
	}

	logging.GetLogger().Info(ctx, "mined %d patterns from %d events across %d sessions",
		len(patterns), len(events), len(sessions))
	return patterns, nil
}

// groupBySession splits the snapshot per session and re-sorts each group
// by timestamp; buffering order is immaterial by design.
func groupBySession(events []workflow.Event) map[string][]workflow.Event {
	sessions := make(map[string][]workflow.Event)
	for _, e := range events {
		sessions[e.SessionID] = append(sessions[e.SessionID], e)
	}
	for _, group := range sessions {
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Timestamp.Before(group[j].Timestamp)
		})
	}
	return sessions
}

// detectWindows slides over one session's events: each event starts a
// window holding it plus everything within the time window after it.
// Windows shorter than the minimum are discarded and consecutive identical
// windows deduplicated.
func detectWindows(sessionID string, events []workflow.Event, span time.Duration) []window {
	var windows []window
	var prevKey string

	for start := 0; start < len(events); start++ {
		deadline := events[start].Timestamp.Add(span)

		labels := []string{events[start].Label()}
		for next := start + 1; next < len(events); next++ {
			if events[next].Timestamp.After(deadline) {
				break
			}
			labels = append(labels, events[next].Label())
		}

		if len(labels) < minWindowLen {
			continue
		}

		key := strings.Join(labels, labelSeparator)
		if key == prevKey {
			continue
		}
		prevKey = key

		windows = append(windows, window{sessionID: sessionID, labels: labels})
	}

	return windows
}

// countSubsequences generates every contiguous sub-sequence of bounded
// length from every window and tallies corpus-wide support.
func countSubsequences(windowsBySession [][]window) []*candidate {
	counts := make(map[string]*candidate)
	var order []*candidate

	for _, sessionWindows := range windowsBySession {
		for _, w := range sessionWindows {
			for length := minWindowLen; length <= maxSubsequenceLen && length <= len(w.labels); length++ {
				for start := 0; start+length <= len(w.labels); start++ {
					labels := w.labels[start : start+length]
					key := strings.Join(labels, labelSeparator)

					c, exists := counts[key]
					if !exists {
						c = &candidate{
							labels:    append([]string(nil), labels...),
							sessions:  make(map[string]struct{}),
							firstSeen: len(order),
						}
						counts[key] = c
						order = append(order, c)
					}
					c.count++
					c.sessions[w.sessionID] = struct{}{}
				}
			}
		}
	}

	return order
}

var titleCaser = cases.Title(language.English)

// buildPattern turns one surviving sub-sequence into a fresh pattern with
// zeroed metrics.
func buildPattern(c *candidate) *workflow.Pattern {
	steps := make([]workflow.Step, len(c.labels))
	nameParts := make([]string, len(c.labels))
	for i, label := range c.labels {
		tool, operation := splitLabel(label)
		steps[i] = workflow.Step{
			Order:     i,
			Tool:      tool,
			Operation: operation,
		}
		nameParts[i] = strings.ReplaceAll(label, ".", "-")
	}

	provenance := make(map[string]struct{}, len(c.sessions))
	for id := range c.sessions {
		provenance[id] = struct{}{}
	}

	return &workflow.Pattern{
		ID:                  uuid.NewString(),
		Name:                "auto-" + strings.Join(nameParts, "-"),
		Description:         describeSteps(c.labels),
		Category:            "auto-extracted",
		Steps:               steps,
		ConfidenceThreshold: workflow.DefaultConfidenceThreshold,
		Tags:                workflow.NewTagSet("auto-extracted"),
		Provenance:          provenance,
	}
}

func splitLabel(label string) (tool, operation string) {
	if idx := strings.IndexByte(label, '.'); idx >= 0 {
		return label[:idx], label[idx+1:]
	}
	return label, ""
}

// describeSteps renders a readable summary like "File Read, Code Definition".
func describeSteps(labels []string) string {
	parts := make([]string, len(labels))
	for i, label := range labels {
		parts[i] = titleCaser.String(strings.ReplaceAll(label, ".", " "))
	}
	return "Recurring sequence: " + strings.Join(parts, ", ")
}
