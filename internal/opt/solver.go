package opt

import (
	"errors"
	"math"
)

var (
	ErrDegenerateLine = errors.New("opt: line endpoints coincide")
	ErrSingularSystem = errors.New("opt: stationarity system is singular")
)

// Result is a solver output: the argmin in the local frame plus the
// Lagrange multiplier when a constraint was active.
type Result struct {
	X, Y        float64
	Lambda      float64
	Constrained bool
}

// Line is the constraint a·x + b·y = c through two points. The general form
// covers vertical lines (equal x coordinates) without a slope special case.
type Line struct {
	A, B, C float64
}

// NewLine builds the line through p and q. Coincident endpoints leave the
// line undefined and are rejected.
func NewLine(px, py, qx, qy float64) (Line, error) {
	a := qy - py
	b := px - qx
	if a == 0 && b == 0 {
		return Line{}, ErrDegenerateLine
	}
	// normalize so coefficients stay well scaled for the linear solve
	n := math.Hypot(a, b)
	a, b = a/n, b/n
	return Line{A: a, B: b, C: a*px + b*py}, nil
}

// Vertical reports whether the line is vertical (x = const).
func (l Line) Vertical() bool { return l.B == 0 }

// Contains reports whether (x, y) lies on the line within tol.
func (l Line) Contains(x, y, tol float64) bool {
	return math.Abs(l.A*x+l.B*y-l.C) <= tol
}

// Minimize returns the unconstrained minimum of o: the weighted centroid
// Σwᵢpᵢ/Σwᵢ, computed directly. By strict convexity it is the unique
// global minimum.
func Minimize(o *Objective) (Result, error) {
	if o.sumW == 0 {
		return Result{}, ErrZeroWeight
	}
	return Result{X: o.sumWX / o.sumW, Y: o.sumWY / o.sumW}, nil
}

// MinimizeOnLine returns the minimum of o restricted to ln. The Lagrange
// stationarity conditions ∇U = λ·∇g with g(x,y) = a·x + b·y − c form, with
// the constraint itself, a linear system in (x, y, λ):
//
//	2W·x       − a·λ = 2·Σwᵢxᵢ
//	      2W·y − b·λ = 2·Σwᵢyᵢ
//	 a·x + b·y       = c
//
// The Hessian of U is positive definite, so for any non-degenerate line the
// system has a unique solution; the singular guard covers pathological input
// only.
func MinimizeOnLine(o *Objective, ln Line) (Result, error) {
	if o.sumW == 0 {
		return Result{}, ErrZeroWeight
	}
	if ln.A == 0 && ln.B == 0 {
		return Result{}, ErrDegenerateLine
	}
	m := [3][4]float64{
		{2 * o.sumW, 0, -ln.A, 2 * o.sumWX},
		{0, 2 * o.sumW, -ln.B, 2 * o.sumWY},
		{ln.A, ln.B, 0, ln.C},
	}
	sol, err := solve3(m)
	if err != nil {
		return Result{}, err
	}
	return Result{X: sol[0], Y: sol[1], Lambda: sol[2], Constrained: true}, nil
}

// solve3 solves a 3x3 augmented system by Gaussian elimination with partial
// pivoting.
func solve3(m [3][4]float64) ([3]float64, error) {
	const eps = 1e-12
	for col := 0; col < 3; col++ {
		pivot := col
		for row := col + 1; row < 3; row++ {
			if math.Abs(m[row][col]) > math.Abs(m[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(m[pivot][col]) < eps {
			return [3]float64{}, ErrSingularSystem
		}
		m[col], m[pivot] = m[pivot], m[col]
		for row := col + 1; row < 3; row++ {
			f := m[row][col] / m[col][col]
			for k := col; k < 4; k++ {
				m[row][k] -= f * m[col][k]
			}
		}
	}
	var out [3]float64
	for row := 2; row >= 0; row-- {
		s := m[row][3]
		for k := row + 1; k < 3; k++ {
			s -= m[row][k] * out[k]
		}
		out[row] = s / m[row][row]
	}
	return out, nil
}
