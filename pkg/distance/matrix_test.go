package distance

import (
	"math"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func samplePoints() []r3.Vec {
	return []r3.Vec{
		{X: 0, Y: 0, Z: 0},
		{X: 3, Y: 4, Z: 0},
		{X: -1.5, Y: 2.25, Z: 7},
		{X: 10, Y: -3, Z: 0.5},
	}
}

func TestSelfComparisonIsSymmetric(t *testing.T) {
	points := samplePoints()
	m := NewMatrixFromPoints(logr.Discard(), points, points)

	for i := range points {
		assert.Equal(t, 0.0, m.Distance(i, i), "diagonal %d", i)
		for j := range points {
			assert.Equal(t, m.Distance(i, j), m.Distance(j, i), "entry %d,%d", i, j)
		}
	}
}

func TestDistanceValues(t *testing.T) {
	m := NewMatrixFromPoints(logr.Discard(),
		[]r3.Vec{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 1, Z: 1}},
		[]r3.Vec{{X: 3, Y: 4, Z: 0}, {X: 1, Y: 1, Z: 1}, {X: 0, Y: 0, Z: 2}},
	)

	rows, cols := m.Dims()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 3, cols)

	assert.InDelta(t, 5.0, m.Distance(0, 0), 1e-12)
	assert.InDelta(t, math.Sqrt(3), m.Distance(0, 1), 1e-12)
	assert.InDelta(t, 2.0, m.Distance(0, 2), 1e-12)
	assert.InDelta(t, 0.0, m.Distance(1, 1), 1e-12)

	assert.InDelta(t, 0.0, m.MinimumDistance(), 1e-12)
	assert.InDelta(t, 5.0, m.MaximumDistance(), 1e-12)
}

func TestOutOfRangeReturnsZero(t *testing.T) {
	points := samplePoints()
	m := NewMatrixFromPoints(logr.Discard(), points, points[:2])

	assert.Equal(t, 0.0, m.Distance(-1, 0))
	assert.Equal(t, 0.0, m.Distance(4, 0))
	assert.Equal(t, 0.0, m.Distance(0, 2))
	assert.NotEqual(t, 0.0, m.Distance(3, 1))
}

func TestEmptyMatrix(t *testing.T) {
	m := NewMatrix(logr.Discard())
	assert.Equal(t, 0.0, m.MinimumDistance())
	assert.Equal(t, 0.0, m.MaximumDistance())
	assert.Equal(t, 0.0, m.Distance(0, 0))

	_, err := m.Values()
	assert.ErrorIs(t, err, ErrEmptyMatrix)
}

func TestRecomputeOnlyWhenModified(t *testing.T) {
	points := samplePoints()
	m := NewMatrixFromPoints(logr.Discard(), points, points)
	assert.True(t, m.Stale())

	first := m.MaximumDistance()
	assert.False(t, m.Stale())

	// Mutating the caller's slice does not reach the matrix
	points[0] = r3.Vec{X: 1000, Y: 1000, Z: 1000}
	assert.False(t, m.Stale())
	assert.Equal(t, first, m.MaximumDistance())

	m.SetPointList2(points)
	assert.True(t, m.Stale())
	assert.Greater(t, m.MaximumDistance(), first)
	assert.False(t, m.Stale())
}

func TestPointListsAreCopies(t *testing.T) {
	points := samplePoints()
	m := NewMatrixFromPoints(logr.Discard(), points, points)

	list := m.PointList1()
	list[0] = r3.Vec{X: 5}
	assert.Equal(t, points[0], m.PointList1()[0])
	assert.Len(t, m.PointList2(), len(points))
}

func TestValuesIsCopy(t *testing.T) {
	points := samplePoints()
	m := NewMatrixFromPoints(logr.Discard(), points, points)

	values, err := m.Values()
	require.NoError(t, err)
	assert.InDelta(t, 5.0, values.At(0, 1), 1e-12)

	values.Set(0, 1, -1)
	assert.InDelta(t, 5.0, m.Distance(0, 1), 1e-12)
}

func TestDifferences(t *testing.T) {
	reference := []r3.Vec{{X: 0}, {X: 1}, {X: 3}}
	observed := []r3.Vec{{X: 0}, {X: 2}, {X: 3}}

	m1 := NewMatrixFromPoints(logr.Discard(), reference, reference)
	m2 := NewMatrixFromPoints(logr.Discard(), observed, observed)

	diff, err := Differences(m1, m2)
	require.NoError(t, err)

	r, c := diff.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 3, c)
	assert.InDelta(t, 1.0, diff.At(0, 1), 1e-12)
	assert.InDelta(t, -1.0, diff.At(1, 2), 1e-12)
	assert.InDelta(t, 0.0, diff.At(0, 2), 1e-12)
}

func TestDifferencesDimensionMismatch(t *testing.T) {
	points := samplePoints()
	m1 := NewMatrixFromPoints(logr.Discard(), points, points)
	m2 := NewMatrixFromPoints(logr.Discard(), points[:3], points)

	_, err := Differences(m1, m2)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
