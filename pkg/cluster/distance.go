// Package cluster groups structurally similar patterns via graph-edit
// distance so the registry keeps one representative per family of
// near-duplicates.
package cluster

import (
	"github.com/pudingtabi/sequor/pkg/workflow"
)

// edge is one consecutive-pair adjacency in a pattern's step graph.
type edge struct {
	from string
	to   string
}

// labelGraph is the directed-graph view of a pattern: ordered step labels
// as nodes, consecutive pairs as edges.
type labelGraph struct {
	labels []string
	edges  map[edge]struct{}
}

func graphOf(labels []string) labelGraph {
	g := labelGraph{
		labels: labels,
		edges:  make(map[edge]struct{}, len(labels)),
	}
	for i := 0; i+1 < len(labels); i++ {
		g.edges[edge{from: labels[i], to: labels[i+1]}] = struct{}{}
	}
	return g
}

// PatternDistance computes the graph-edit distance between two patterns:
// 0.7 times the normalized sequence edit distance over step labels plus
// 0.3 times the normalized symmetric difference of the edge sets. The
// result is symmetric and 0 for identical patterns.
func PatternDistance(p1, p2 *workflow.Pattern) float64 {
	return graphDistance(graphOf(p1.StepLabels()), graphOf(p2.StepLabels()))
}

func graphDistance(g1, g2 labelGraph) float64 {
	return 0.7*seqEditDistance(g1.labels, g2.labels) + 0.3*edgeDifference(g1.edges, g2.edges)
}

// seqEditDistance is unit-cost Levenshtein over label sequences,
// normalized by the longer length. An empty sequence is maximally distant
// from anything (1.0) unless both are empty.
func seqEditDistance(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	if len(a) == 0 || len(b) == 0 {
		return 1.0
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	longer := len(a)
	if len(b) > longer {
		longer = len(b)
	}
	return float64(prev[len(b)]) / float64(longer)
}

// edgeDifference is |e1 ⊕ e2| / max(|e1|,|e2|), 0 when both sets are empty.
func edgeDifference(e1, e2 map[edge]struct{}) float64 {
	if len(e1) == 0 && len(e2) == 0 {
		return 0
	}

	diff := 0
	for e := range e1 {
		if _, ok := e2[e]; !ok {
			diff++
		}
	}
	for e := range e2 {
		if _, ok := e1[e]; !ok {
			diff++
		}
	}

	larger := len(e1)
	if len(e2) > larger {
		larger = len(e2)
	}
	return float64(diff) / float64(larger)
}

func minInt(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
