// Package matching finds the correspondence between two unordered 3D point
// sets that are approximately the same shape, for example fiducials picked in
// a patient image and the same fiducials measured with a tracked pointer.
//
// The search is exhaustive: every combination of source indices is paired
// with every combination and ordering of target indices, each pairing is
// scored by the residual of a rigid registration, and the best pairing is
// kept. Because the candidate count grows factorially, point sets are
// limited to SearchPointLimit points.
package matching

import (
	"errors"
	"fmt"

	"github.com/go-logr/logr"
	"gonum.org/v1/gonum/spatial/r3"

	"pointsetmatch/pkg/distance"
	"pointsetmatch/pkg/registration"
)

const (
	// SearchPointLimit is the largest point count the brute-force
	// search accepts in either set.
	SearchPointLimit = 8

	// MinimumSubsetSize is the smallest subset a rigid 3D registration is
	// determined for.
	MinimumSubsetSize = 3

	DefaultMaximumDifferenceInNumberOfPoints = 2
	DefaultTolerableDistanceErrorMultiple    = 0.1
	DefaultAmbiguityDistanceErrorMultiple    = 0.05
)

var (
	// ErrMissingInput is returned when the source or target set was never set.
	ErrMissingInput = errors.New("matching: source and target points are required")
	// ErrTooManyPoints is returned when a set is too large for the brute-force search.
	ErrTooManyPoints = errors.New("matching: point sets too large for exhaustive search")
	// ErrTooFewPoints is returned when the smaller set cannot support a rigid registration.
	ErrTooFewPoints = errors.New("matching: at least 3 points are required in each set")
)

// Result is the outcome of one matching pass. All fields are produced
// together and are consistent with each other.
type Result struct {
	// MatchedSource and MatchedTarget have equal length; element i of one
	// corresponds to element i of the other.
	MatchedSource []r3.Vec
	MatchedTarget []r3.Vec

	// SourceIndices and TargetIndices give the position of each matched
	// point in the input sets.
	SourceIndices []int
	TargetIndices []int

	// Transform registers MatchedSource onto MatchedTarget
	Transform registration.Transform

	// DistanceError is the RMS distance after Transform is applied
	DistanceError float64

	// TolerableDistanceError and AmbiguityDistanceError are the absolute
	// thresholds, scaled from the configured multiples by the largest
	// distance between two target points.
	TolerableDistanceError float64
	AmbiguityDistanceError float64

	WithinTolerance bool
	Ambiguous       bool

	// Degraded is set when the point counts differ by more than allowed and
	// the first points of each set were paired without searching.
	Degraded bool
}

func (r Result) clone() Result {
	out := r
	out.MatchedSource = append([]r3.Vec(nil), r.MatchedSource...)
	out.MatchedTarget = append([]r3.Vec(nil), r.MatchedTarget...)
	out.SourceIndices = append([]int(nil), r.SourceIndices...)
	out.TargetIndices = append([]int(nil), r.TargetIndices...)
	return out
}

// Matcher pairs an unordered source point set with an unordered target set.
//
// Inputs are copied when set. Outputs are recomputed by Update, which every
// accessor triggers when an input or setting changed since the last pass.
type Matcher struct {
	log logr.Logger

	source []r3.Vec
	target []r3.Vec

	maximumDifferenceInNumberOfPoints int
	maximumPointsForSearch            int
	tolerableDistanceErrorMultiple    float64
	ambiguityDistanceErrorMultiple    float64

	result  Result
	lastErr error

	modifiedAt uint64
	computedAt uint64
}

// NewMatcher creates a matcher with default settings
func NewMatcher(logger logr.Logger) *Matcher {
	if logger.GetSink() == nil {
		logger = logr.Discard()
	}
	return &Matcher{
		log:                               logger.WithName("matching"),
		maximumDifferenceInNumberOfPoints: DefaultMaximumDifferenceInNumberOfPoints,
		maximumPointsForSearch:            SearchPointLimit,
		tolerableDistanceErrorMultiple:    DefaultTolerableDistanceErrorMultiple,
		ambiguityDistanceErrorMultiple:    DefaultAmbiguityDistanceErrorMultiple,
		modifiedAt:                        1,
	}
}

func (m *Matcher) modified() {
	m.modifiedAt++
}

// SetInputSourcePoints stores a copy of the source points. A nil slice
// unsets the input.
func (m *Matcher) SetInputSourcePoints(points []r3.Vec) {
	m.source = clonePoints(points)
	m.modified()
}

// SetInputTargetPoints stores a copy of the target points. A nil slice
// unsets the input.
func (m *Matcher) SetInputTargetPoints(points []r3.Vec) {
	m.target = clonePoints(points)
	m.modified()
}

// InputSourcePoints returns a copy of the source points
func (m *Matcher) InputSourcePoints() []r3.Vec { return clonePoints(m.source) }

// InputTargetPoints returns a copy of the target points
func (m *Matcher) InputTargetPoints() []r3.Vec { return clonePoints(m.target) }

// SetMaximumDifferenceInNumberOfPoints caps how many more points one set may
// hold than the other for a search to be attempted. Negative values are
// taken as their magnitude.
func (m *Matcher) SetMaximumDifferenceInNumberOfPoints(n int) {
	if n < 0 {
		m.log.Info("negative maximum difference in number of points, using magnitude", "value", n)
		n = -n
	}
	if n == m.maximumDifferenceInNumberOfPoints {
		return
	}
	m.maximumDifferenceInNumberOfPoints = n
	m.modified()
}

// MaximumDifferenceInNumberOfPoints returns the configured count difference cap
func (m *Matcher) MaximumDifferenceInNumberOfPoints() int {
	return m.maximumDifferenceInNumberOfPoints
}

// SetMaximumPointsForSearch lowers the largest set size the search accepts.
// Values are clamped to [MinimumSubsetSize, SearchPointLimit].
func (m *Matcher) SetMaximumPointsForSearch(n int) {
	if n > SearchPointLimit || n < MinimumSubsetSize {
		clamped := min(max(n, MinimumSubsetSize), SearchPointLimit)
		m.log.Info("maximum points for search out of range, clamping", "value", n, "clamped", clamped)
		n = clamped
	}
	if n == m.maximumPointsForSearch {
		return
	}
	m.maximumPointsForSearch = n
	m.modified()
}

// MaximumPointsForSearch returns the largest set size the search accepts
func (m *Matcher) MaximumPointsForSearch() int {
	return m.maximumPointsForSearch
}

// SetTolerableDistanceErrorMultiple sets the acceptable RMS error as a
// fraction of the largest distance between two target points.
func (m *Matcher) SetTolerableDistanceErrorMultiple(multiple float64) {
	if multiple == m.tolerableDistanceErrorMultiple {
		return
	}
	m.tolerableDistanceErrorMultiple = multiple
	m.modified()
}

// TolerableDistanceErrorMultiple returns the configured tolerance fraction
func (m *Matcher) TolerableDistanceErrorMultiple() float64 {
	return m.tolerableDistanceErrorMultiple
}

// SetAmbiguityDistanceErrorMultiple sets how close two candidate residuals
// must be, as a fraction of the largest target distance, to call the match
// ambiguous.
func (m *Matcher) SetAmbiguityDistanceErrorMultiple(multiple float64) {
	if multiple == m.ambiguityDistanceErrorMultiple {
		return
	}
	m.ambiguityDistanceErrorMultiple = multiple
	m.modified()
}

// AmbiguityDistanceErrorMultiple returns the configured ambiguity fraction
func (m *Matcher) AmbiguityDistanceErrorMultiple() float64 {
	return m.ambiguityDistanceErrorMultiple
}

// Result updates if needed and returns a copy of the matching result
func (m *Matcher) Result() (Result, error) {
	err := m.Update()
	return m.result.clone(), err
}

// MatchedSourcePoints returns the source points of the best match
func (m *Matcher) MatchedSourcePoints() []r3.Vec {
	_ = m.Update()
	return clonePoints(m.result.MatchedSource)
}

// MatchedTargetPoints returns the target points of the best match, ordered
// to correspond with MatchedSourcePoints
func (m *Matcher) MatchedTargetPoints() []r3.Vec {
	_ = m.Update()
	return clonePoints(m.result.MatchedTarget)
}

// ComputedDistanceError returns the RMS error of the best match
func (m *Matcher) ComputedDistanceError() float64 {
	_ = m.Update()
	return m.result.DistanceError
}

// IsMatchingWithinTolerance reports whether the best match is within the
// tolerable distance error
func (m *Matcher) IsMatchingWithinTolerance() bool {
	_ = m.Update()
	return m.result.WithinTolerance
}

// TolerableDistanceError returns the absolute tolerance used by the last pass
func (m *Matcher) TolerableDistanceError() float64 {
	_ = m.Update()
	return m.result.TolerableDistanceError
}

// IsMatchingAmbiguous reports whether another candidate scored within the
// ambiguity distance error of the best one
func (m *Matcher) IsMatchingAmbiguous() bool {
	_ = m.Update()
	return m.result.Ambiguous
}

// AmbiguityDistanceError returns the absolute ambiguity threshold used by the last pass
func (m *Matcher) AmbiguityDistanceError() float64 {
	_ = m.Update()
	return m.result.AmbiguityDistanceError
}

// Update runs the matching if an input or setting changed since the last
// pass. On error the result is empty.
func (m *Matcher) Update() error {
	if m.computedAt == m.modifiedAt {
		return m.lastErr
	}
	result, err := m.match()
	if err != nil {
		m.log.Error(err, "point matching failed", "sourcePoints", len(m.source), "targetPoints", len(m.target))
		result = Result{}
	}
	m.result = result
	m.lastErr = err
	m.computedAt = m.modifiedAt
	return err
}

func (m *Matcher) match() (Result, error) {
	if m.source == nil || m.target == nil {
		return Result{}, ErrMissingInput
	}

	tolerableMultiple := m.tolerableDistanceErrorMultiple
	if tolerableMultiple < 0 {
		m.log.Info("negative tolerable distance error multiple, using magnitude", "value", tolerableMultiple)
		tolerableMultiple = -tolerableMultiple
	}
	ambiguityMultiple := m.ambiguityDistanceErrorMultiple
	if ambiguityMultiple < 0 {
		m.log.Info("negative ambiguity distance error multiple, using magnitude", "value", ambiguityMultiple)
		ambiguityMultiple = -ambiguityMultiple
	}

	extent := distance.NewMatrixFromPoints(m.log, m.target, m.target).MaximumDistance()
	tolerable := tolerableMultiple * extent
	ambiguity := ambiguityMultiple * extent

	sourceCount, targetCount := len(m.source), len(m.target)
	smallerCount := min(sourceCount, targetCount)

	if abs(sourceCount-targetCount) > m.maximumDifferenceInNumberOfPoints {
		m.log.Info("point counts differ too much to search, pairing points in input order",
			"sourcePoints", sourceCount, "targetPoints", targetCount,
			"maximumDifference", m.maximumDifferenceInNumberOfPoints)
		return m.degradedResult(smallerCount, tolerable, ambiguity), nil
	}

	if sourceCount > m.maximumPointsForSearch || targetCount > m.maximumPointsForSearch {
		return Result{}, fmt.Errorf("%w: %d source and %d target points, limit %d",
			ErrTooManyPoints, sourceCount, targetCount, m.maximumPointsForSearch)
	}
	if smallerCount < MinimumSubsetSize {
		return Result{}, fmt.Errorf("%w: %d source and %d target points", ErrTooFewPoints, sourceCount, targetCount)
	}

	s := newSearch(m.source, m.target, ambiguity)
	smallestSubset := max(smallerCount-m.maximumDifferenceInNumberOfPoints, MinimumSubsetSize)
	for subsetSize := smallerCount; subsetSize >= smallestSubset; subsetSize-- {
		m.log.V(1).Info("searching subset size", "subsetSize", subsetSize)
		if err := s.searchSubsetSize(m.log, subsetSize); err != nil {
			return Result{}, err
		}
		if s.best.err <= tolerable {
			m.log.V(1).Info("acceptable match found", "subsetSize", subsetSize, "distanceError", s.best.err)
			break
		}
	}

	result := s.result()
	result.TolerableDistanceError = tolerable
	result.AmbiguityDistanceError = ambiguity
	result.WithinTolerance = result.DistanceError <= tolerable
	return result, nil
}

// degradedResult pairs the first n points of both sets in input order
func (m *Matcher) degradedResult(n int, tolerable, ambiguity float64) Result {
	result := Result{
		MatchedSource:          clonePoints(m.source[:n]),
		MatchedTarget:          clonePoints(m.target[:n]),
		SourceIndices:          indexRange(n),
		TargetIndices:          indexRange(n),
		Transform:              registration.Identity(),
		TolerableDistanceError: tolerable,
		AmbiguityDistanceError: ambiguity,
		Degraded:               true,
	}
	if n > 0 {
		e, t, err := registration.Residual(result.MatchedSource, result.MatchedTarget)
		if err == nil {
			result.DistanceError = e
			result.Transform = t
		}
	}
	result.WithinTolerance = n > 0 && result.DistanceError <= tolerable
	return result
}

func clonePoints(points []r3.Vec) []r3.Vec {
	if points == nil {
		return nil
	}
	return append(make([]r3.Vec, 0, len(points)), points...)
}

func indexRange(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
