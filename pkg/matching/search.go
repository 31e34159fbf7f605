package matching

import (
	"fmt"
	"math"

	"github.com/go-logr/logr"
	"gonum.org/v1/gonum/spatial/r3"

	"pointsetmatch/pkg/combinatorics"
	"pointsetmatch/pkg/registration"
)

// bestMatch accumulates the best candidate seen so far across every subset
// size of one search.
type bestMatch struct {
	err       float64
	ambiguous bool

	sourceIndices []int
	targetIndices []int
	transform     registration.Transform
}

// consider folds one candidate residual into the running best.
//
// A lower residual always replaces the best. It marks the match ambiguous
// when it improves on the previous best by no more than threshold, and
// clears the flag when it improves by more. A residual that does not improve
// but lies within threshold of the best marks the match ambiguous.
func (b *bestMatch) consider(e, threshold float64, sourceIndices, targetIndices []int, t registration.Transform) bool {
	switch {
	case e < b.err:
		b.ambiguous = b.err-e <= threshold
		b.err = e
		b.sourceIndices = append(b.sourceIndices[:0], sourceIndices...)
		b.targetIndices = append(b.targetIndices[:0], targetIndices...)
		b.transform = t
		return true
	case e-b.err <= threshold:
		b.ambiguous = true
	}
	return false
}

// search walks candidate correspondences between two point sets
type search struct {
	source []r3.Vec
	target []r3.Vec

	ambiguityThreshold float64
	best               bestMatch
	candidates         int
}

func newSearch(source, target []r3.Vec, ambiguityThreshold float64) *search {
	return &search{
		source:             source,
		target:             target,
		ambiguityThreshold: ambiguityThreshold,
		best: bestMatch{
			err:       math.MaxFloat64,
			transform: registration.Identity(),
		},
	}
}

// indexSubsets returns every size-k subset of {0..n-1}, or every ordering
// of {0..n-1} taken k at a time when mode is Permutation.
func indexSubsets(log logr.Logger, mode combinatorics.Mode, n, k int) ([][]int, error) {
	g := combinatorics.NewGenerator(log)
	g.SetMode(mode)
	if err := g.SetSubsetSize(k); err != nil {
		return nil, err
	}
	g.AddIndexInputSet(n)
	return g.OutputSets()
}

// searchSubsetSize scores every pairing of subsetSize source points with
// subsetSize target points, in every order.
func (s *search) searchSubsetSize(log logr.Logger, subsetSize int) error {
	sourceCombinations, err := indexSubsets(log, combinatorics.Combination, len(s.source), subsetSize)
	if err != nil {
		return fmt.Errorf("source combinations: %w", err)
	}
	targetCombinations, err := indexSubsets(log, combinatorics.Combination, len(s.target), subsetSize)
	if err != nil {
		return fmt.Errorf("target combinations: %w", err)
	}
	// Orderings of positions within a target combination
	orderings, err := indexSubsets(log, combinatorics.Permutation, subsetSize, subsetSize)
	if err != nil {
		return fmt.Errorf("target permutations: %w", err)
	}

	sourcePoints := make([]r3.Vec, subsetSize)
	targetPoints := make([]r3.Vec, subsetSize)
	targetIndices := make([]int, subsetSize)

	for _, sourceCombination := range sourceCombinations {
		for i, idx := range sourceCombination {
			sourcePoints[i] = s.source[idx]
		}
		for _, targetCombination := range targetCombinations {
			for _, ordering := range orderings {
				for i, position := range ordering {
					targetIndices[i] = targetCombination[position]
					targetPoints[i] = s.target[targetIndices[i]]
				}
				e, t, err := registration.Residual(sourcePoints, targetPoints)
				if err != nil {
					return fmt.Errorf("registering candidate: %w", err)
				}
				s.candidates++
				if s.best.consider(e, s.ambiguityThreshold, sourceCombination, targetIndices, t) {
					log.V(2).Info("new best candidate", "distanceError", e, "ambiguous", s.best.ambiguous,
						"sourceIndices", sourceCombination, "targetIndices", targetIndices)
				}
			}
		}
	}
	log.V(1).Info("subset size searched", "subsetSize", subsetSize, "candidates", s.candidates,
		"bestDistanceError", s.best.err, "ambiguous", s.best.ambiguous)
	return nil
}

// result converts the running best into a Result. Thresholds and the
// tolerance flag are filled in by the caller.
func (s *search) result() Result {
	r := Result{
		SourceIndices: append([]int(nil), s.best.sourceIndices...),
		TargetIndices: append([]int(nil), s.best.targetIndices...),
		Transform:     s.best.transform,
		DistanceError: s.best.err,
		Ambiguous:     s.best.ambiguous,
	}
	r.MatchedSource = make([]r3.Vec, len(r.SourceIndices))
	for i, idx := range r.SourceIndices {
		r.MatchedSource[i] = s.source[idx]
	}
	r.MatchedTarget = make([]r3.Vec, len(r.TargetIndices))
	for i, idx := range r.TargetIndices {
		r.MatchedTarget[i] = s.target[idx]
	}
	return r
}
