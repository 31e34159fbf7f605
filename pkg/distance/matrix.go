// Package distance caches the pairwise Euclidean distances between two point
// lists.
package distance

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-logr/logr"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrDimensionMismatch is returned by Differences for matrices of different shape.
	ErrDimensionMismatch = errors.New("distance: matrix dimensions do not match")
	// ErrEmptyMatrix is returned when a matrix with no rows or columns is exported.
	ErrEmptyMatrix = errors.New("distance: matrix is empty")
)

// Matrix holds the distance from every point in list 1 (rows) to every point
// in list 2 (columns). The values are recomputed lazily, and wholesale, the
// first time they are read after either list changed.
type Matrix struct {
	log logr.Logger

	list1 []r3.Vec
	list2 []r3.Vec

	// values is row-major, rows*cols long
	values []float64
	rows   int
	cols   int

	modifiedAt uint64
	computedAt uint64
}

// NewMatrix creates an empty distance matrix
func NewMatrix(logger logr.Logger) *Matrix {
	if logger.GetSink() == nil {
		logger = logr.Discard()
	}
	return &Matrix{
		log:        logger.WithName("distance"),
		modifiedAt: 1,
	}
}

// NewMatrixFromPoints creates a matrix for the two lists
func NewMatrixFromPoints(logger logr.Logger, list1, list2 []r3.Vec) *Matrix {
	m := NewMatrix(logger)
	m.SetPointList1(list1)
	m.SetPointList2(list2)
	return m
}

// SetPointList1 stores a copy of the row points
func (m *Matrix) SetPointList1(points []r3.Vec) {
	m.list1 = append([]r3.Vec(nil), points...)
	m.modifiedAt++
}

// SetPointList2 stores a copy of the column points
func (m *Matrix) SetPointList2(points []r3.Vec) {
	m.list2 = append([]r3.Vec(nil), points...)
	m.modifiedAt++
}

// PointList1 returns a copy of the row points
func (m *Matrix) PointList1() []r3.Vec { return append([]r3.Vec(nil), m.list1...) }

// PointList2 returns a copy of the column points
func (m *Matrix) PointList2() []r3.Vec { return append([]r3.Vec(nil), m.list2...) }

// Dims returns the number of rows and columns, updating first if stale
func (m *Matrix) Dims() (rows, cols int) {
	m.updateIfNeeded()
	return m.rows, m.cols
}

// Stale reports whether a read would trigger recomputation
func (m *Matrix) Stale() bool {
	return m.computedAt < m.modifiedAt
}

func (m *Matrix) updateIfNeeded() {
	if m.Stale() {
		m.Update()
	}
}

// Update recomputes every entry from the current point lists
func (m *Matrix) Update() {
	m.rows = len(m.list1)
	m.cols = len(m.list2)
	m.values = make([]float64, m.rows*m.cols)
	for i, p := range m.list1 {
		for j, q := range m.list2 {
			m.values[i*m.cols+j] = euclidean(p, q)
		}
	}
	m.computedAt = m.modifiedAt
}

func euclidean(p, q r3.Vec) float64 {
	d := r3.Sub(p, q)
	return math.Sqrt(d.X*d.X + d.Y*d.Y + d.Z*d.Z)
}

// Distance returns the distance between list1[i] and list2[j]. Out of range
// indices are logged and reported as 0.
func (m *Matrix) Distance(i, j int) float64 {
	m.updateIfNeeded()
	if i < 0 || i >= m.rows {
		m.log.Info("row index out of range", "index", i, "rows", m.rows)
		return 0
	}
	if j < 0 || j >= m.cols {
		m.log.Info("column index out of range", "index", j, "cols", m.cols)
		return 0
	}
	return m.values[i*m.cols+j]
}

// MinimumDistance returns the smallest entry, or 0 for an empty matrix
func (m *Matrix) MinimumDistance() float64 {
	m.updateIfNeeded()
	if len(m.values) == 0 {
		m.log.Info("minimum distance of empty matrix")
		return 0
	}
	minimum := math.MaxFloat64
	for _, v := range m.values {
		if v < minimum {
			minimum = v
		}
	}
	return minimum
}

// MaximumDistance returns the largest entry, or 0 for an empty matrix
func (m *Matrix) MaximumDistance() float64 {
	m.updateIfNeeded()
	if len(m.values) == 0 {
		m.log.Info("maximum distance of empty matrix")
		return 0
	}
	maximum := 0.0
	for _, v := range m.values {
		if v > maximum {
			maximum = v
		}
	}
	return maximum
}

// Values returns a copy of the matrix as a gonum dense matrix
func (m *Matrix) Values() (*mat.Dense, error) {
	m.updateIfNeeded()
	if m.rows == 0 || m.cols == 0 {
		return nil, ErrEmptyMatrix
	}
	return mat.NewDense(m.rows, m.cols, append([]float64(nil), m.values...)), nil
}

// Differences returns m2 - m1 element-wise. Both matrices should come from
// point-list pairs that correspond structurally, for example an observed
// configuration against a reference one.
func Differences(m1, m2 *Matrix) (*mat.Dense, error) {
	r1, c1 := m1.Dims()
	r2, c2 := m2.Dims()
	if r1 != r2 || c1 != c2 {
		return nil, fmt.Errorf("%w: %dx%d vs %dx%d", ErrDimensionMismatch, r1, c1, r2, c2)
	}
	a, err := m1.Values()
	if err != nil {
		return nil, err
	}
	b, err := m2.Values()
	if err != nil {
		return nil, err
	}
	var diff mat.Dense
	diff.Sub(b, a)
	return &diff, nil
}
