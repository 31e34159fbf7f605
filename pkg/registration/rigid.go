// Package registration computes least-squares rigid transforms between
// index-corresponding 3D point lists.
package registration

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrPointCountMismatch is returned when the lists differ in length.
	ErrPointCountMismatch = errors.New("registration: point lists differ in length")
	// ErrNoPoints is returned for empty input.
	ErrNoPoints = errors.New("registration: no points")
	// ErrFactorizationFailed is returned when the SVD does not converge.
	ErrFactorizationFailed = errors.New("registration: SVD factorization failed")
)

// Transform is a rotation followed by a translation: p' = R*p + t
type Transform struct {
	// Rotation is row-major 3x3
	Rotation    [9]float64
	Translation r3.Vec
}

// Identity returns the identity transform
func Identity() Transform {
	return Transform{Rotation: [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}}
}

// Apply maps a single point
func (t Transform) Apply(p r3.Vec) r3.Vec {
	r := t.Rotation
	return r3.Vec{
		X: r[0]*p.X + r[1]*p.Y + r[2]*p.Z + t.Translation.X,
		Y: r[3]*p.X + r[4]*p.Y + r[5]*p.Z + t.Translation.Y,
		Z: r[6]*p.X + r[7]*p.Y + r[8]*p.Z + t.Translation.Z,
	}
}

// ApplyAll maps every point into a new slice
func (t Transform) ApplyAll(points []r3.Vec) []r3.Vec {
	out := make([]r3.Vec, len(points))
	for i, p := range points {
		out[i] = t.Apply(p)
	}
	return out
}

// Inverse returns the transform mapping p' back to p
func (t Transform) Inverse() Transform {
	r := t.Rotation
	inv := Transform{Rotation: [9]float64{
		r[0], r[3], r[6],
		r[1], r[4], r[7],
		r[2], r[5], r[8],
	}}
	moved := inv.Apply(t.Translation)
	inv.Translation = r3.Scale(-1, moved)
	return inv
}

// Matrix4 returns the homogeneous 4x4 form
func (t Transform) Matrix4() *mat.Dense {
	r := t.Rotation
	return mat.NewDense(4, 4, []float64{
		r[0], r[1], r[2], t.Translation.X,
		r[3], r[4], r[5], t.Translation.Y,
		r[6], r[7], r[8], t.Translation.Z,
		0, 0, 0, 1,
	})
}

// Rigid finds the rotation and translation that minimize the squared
// distance between the transformed source points and the target points,
// pairing them by index (Kabsch). Reflections are excluded.
func Rigid(source, target []r3.Vec) (Transform, error) {
	n := len(source)
	if n != len(target) {
		return Identity(), fmt.Errorf("%w: %d vs %d", ErrPointCountMismatch, n, len(target))
	}
	if n == 0 {
		return Identity(), ErrNoPoints
	}

	muX := Centroid(source)
	muY := Centroid(target)

	// Cross-covariance of the centered sets: H = sum (y - muY)(x - muX)^T
	xc := mat.NewDense(n, 3, nil)
	yc := mat.NewDense(n, 3, nil)
	for i := 0; i < n; i++ {
		x := r3.Sub(source[i], muX)
		y := r3.Sub(target[i], muY)
		xc.SetRow(i, []float64{x.X, x.Y, x.Z})
		yc.SetRow(i, []float64{y.X, y.Y, y.Z})
	}
	var cov mat.Dense
	cov.Mul(yc.T(), xc)

	var svd mat.SVD
	if !svd.Factorize(&cov, mat.SVDFull) {
		return Identity(), ErrFactorizationFailed
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	// Flip the weakest axis when U*V^T would be a reflection
	s := mat.NewDiagDense(3, []float64{1, 1, 1})
	if mat.Det(&u)*mat.Det(&v) < 0 {
		s.SetDiag(2, -1)
	}
	var rot mat.Dense
	rot.Product(&u, s, v.T())

	var t Transform
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			t.Rotation[i*3+j] = rot.At(i, j)
		}
	}
	rotated := t.Apply(muX)
	t.Translation = r3.Sub(muY, rotated)
	return t, nil
}

// Centroid returns the mean of the points
func Centroid(points []r3.Vec) r3.Vec {
	if len(points) == 0 {
		return r3.Vec{}
	}
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	zs := make([]float64, len(points))
	for i, p := range points {
		xs[i], ys[i], zs[i] = p.X, p.Y, p.Z
	}
	return r3.Vec{X: stat.Mean(xs, nil), Y: stat.Mean(ys, nil), Z: stat.Mean(zs, nil)}
}

// RMSError returns the root-mean-square distance between a[i] and b[i].
// Lists of different length are compared over the shorter one.
func RMSError(a, b []r3.Vec) float64 {
	n := min(len(a), len(b))
	if n == 0 {
		return 0
	}
	squared := make([]float64, n)
	for i := 0; i < n; i++ {
		d := r3.Sub(a[i], b[i])
		squared[i] = d.X*d.X + d.Y*d.Y + d.Z*d.Z
	}
	return math.Sqrt(floats.Sum(squared) / float64(n))
}

// Residual registers source onto target and returns the RMS error of the
// aligned pairs together with the transform used.
func Residual(source, target []r3.Vec) (float64, Transform, error) {
	t, err := Rigid(source, target)
	if err != nil {
		return math.MaxFloat64, t, err
	}
	return RMSError(t.ApplyAll(source), target), t, nil
}
