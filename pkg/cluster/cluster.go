package cluster

import (
	"context"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/pudingtabi/sequor/pkg/errors"
	"github.com/pudingtabi/sequor/pkg/logging"
	"github.com/pudingtabi/sequor/pkg/workflow"
)

const (
	// DefaultThreshold is the maximum average-linkage distance at which
	// two clusters are still merged.
	DefaultThreshold = 0.3

	// DefaultMinSize drops singleton clusters after convergence.
	DefaultMinSize = 2
)

// Cluster is a group of structurally similar patterns with one member
// selected as the group's representative.
type Cluster struct {
	ID               string
	Members          []*workflow.Pattern
	Representative   *workflow.Pattern
	CentroidDistance float64
}

// Options controls the agglomerative clustering run.
type Options struct {
	// Threshold is the merge cutoff on average-linkage distance.
	Threshold float64

	// MinSize drops clusters with fewer members after convergence.
	MinSize int
}

// ClusterPatterns groups the given patterns by agglomerative
// average-linkage clustering over the pairwise distance matrix. Merging
// stops when no cluster pair is within the threshold or one cluster
// remains; clusters below MinSize are then dropped.
//
// Both the matrix and the repeated closest-pair search are quadratic and
// worse in the pattern count; fine for a few hundred patterns, revisit
// with an index structure before scaling past that.
func ClusterPatterns(ctx context.Context, patterns []*workflow.Pattern, opts Options) ([]Cluster, error) {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.MinSize <= 0 {
		opts.MinSize = DefaultMinSize
	}

	for i, p := range patterns {
		if p == nil {
			return nil, errors.WithFields(
				errors.New(errors.ClusteringFailed, "nil pattern in input"),
				errors.Fields{"index": i},
			)
		}
		if len(p.Steps) == 0 {
			return nil, errors.WithFields(
				errors.New(errors.ClusteringFailed, "pattern has no steps"),
				errors.Fields{"pattern": p.Name},
			)
		}
	}
	if err := errors.CheckContext(ctx, "cluster patterns"); err != nil {
		return nil, err
	}
	if len(patterns) == 0 {
		return []Cluster{}, nil
	}

	matrix := distanceMatrix(patterns)

	// Start with every pattern in its own singleton cluster.
	groups := make([][]int, len(patterns))
	for i := range patterns {
		groups[i] = []int{i}
	}

	for len(groups) > 1 {
		if err := errors.CheckContext(ctx, "cluster patterns"); err != nil {
			return nil, err
		}

		bestA, bestB, bestDist := -1, -1, 0.0
		for i := 0; i < len(groups); i++ {
			for j := i + 1; j < len(groups); j++ {
				d := averageLinkage(matrix, groups[i], groups[j])
				if bestA < 0 || d < bestDist {
					bestA, bestB, bestDist = i, j, d
				}
			}
		}

		if bestDist > opts.Threshold {
			break
		}

		groups[bestA] = append(groups[bestA], groups[bestB]...)
		groups = append(groups[:bestB], groups[bestB+1:]...)
	}

	clusters := make([]Cluster, 0, len(groups))
	for _, group := range groups {
		if len(group) < opts.MinSize {
			continue
		}
		clusters = append(clusters, buildCluster(patterns, matrix, group))
	}

	logging.GetLogger().Debug(ctx, "clustered %d patterns into %d clusters", len(patterns), len(clusters))
	return clusters, nil
}

// FindSimilarPattern returns the registered pattern closest to the given
// step sequence, if any is at or under the threshold. Used to avoid
// registering near-duplicates.
func FindSimilarPattern(steps []workflow.Step, patterns []*workflow.Pattern, threshold float64) (*workflow.Pattern, float64) {
	probe := &workflow.Pattern{Name: "probe", Steps: steps}

	var best *workflow.Pattern
	bestDist := 0.0
	for _, candidate := range patterns {
		if candidate == nil || len(candidate.Steps) == 0 {
			continue
		}
		d := PatternDistance(probe, candidate)
		if best == nil || d < bestDist {
			best, bestDist = candidate, d
		}
	}

	if best == nil || bestDist > threshold {
		return nil, 0
	}
	return best, bestDist
}

// Registrar is the subset of a pattern registry needed to register with a
// duplicate guard.
type Registrar interface {
	Register(p *workflow.Pattern) error
	ListPatterns() []*workflow.Pattern
}

// RegisterIfNovel registers the pattern unless a structurally
// near-identical one already exists. It reports whether the pattern was
// added; when a near-duplicate is found, that pattern is returned instead.
func RegisterIfNovel(reg Registrar, p *workflow.Pattern, threshold float64) (*workflow.Pattern, bool, error) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if existing, _ := FindSimilarPattern(p.Steps, reg.ListPatterns(), threshold); existing != nil {
		return existing, false, nil
	}
	if err := reg.Register(p); err != nil {
		return nil, false, err
	}
	return p, true, nil
}

// distanceMatrix precomputes all pairwise pattern distances, one row per
// worker.
func distanceMatrix(patterns []*workflow.Pattern) [][]float64 {
	n := len(patterns)
	graphs := make([]labelGraph, n)
	for i, p := range patterns {
		graphs[i] = graphOf(p.StepLabels())
	}

	matrix := make([][]float64, n)
	p := pool.New()
	for i := 0; i < n; i++ {
		i := i
		matrix[i] = make([]float64, n)
		p.Go(func() {
			for j := i + 1; j < n; j++ {
				matrix[i][j] = graphDistance(graphs[i], graphs[j])
			}
		})
	}
	p.Wait()

	// Mirror the upper triangle; distance is symmetric.
	for i := 0; i < n; i++ {
		for j := 0; j < i; j++ {
			matrix[i][j] = matrix[j][i]
		}
	}
	return matrix
}

func averageLinkage(matrix [][]float64, a, b []int) float64 {
	sum := 0.0
	for _, i := range a {
		for _, j := range b {
			sum += matrix[i][j]
		}
	}
	return sum / float64(len(a)*len(b))
}

func buildCluster(patterns []*workflow.Pattern, matrix [][]float64, group []int) Cluster {
	repIdx := group[0]
	repScore := representativeScore(patterns[repIdx])
	for _, i := range group[1:] {
		if s := representativeScore(patterns[i]); s > repScore {
			repIdx, repScore = i, s
		}
	}

	centroid := 0.0
	if len(group) > 1 {
		for _, i := range group {
			if i != repIdx {
				centroid += matrix[repIdx][i]
			}
		}
		centroid /= float64(len(group) - 1)
	}

	members := make([]*workflow.Pattern, len(group))
	for i, idx := range group {
		members[i] = patterns[idx]
	}

	return Cluster{
		ID:               uuid.NewString(),
		Members:          members,
		Representative:   patterns[repIdx],
		CentroidDistance: centroid,
	}
}

// representativeScore ranks members by quality: reliable, well-used
// patterns win.
func representativeScore(p *workflow.Pattern) float64 {
	usage := float64(p.UsageCount) / 100
	if usage > 1 {
		usage = 1
	}
	return 0.6*p.SuccessRate + 0.4*usage
}
