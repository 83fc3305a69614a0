// Package opt implements the weighted-proximity siting optimizer: a sum of
// weighted squared Euclidean distances minimized either freely or along a
// line via Lagrange multipliers. The objective is quadratic and strictly
// convex, so every solve has a closed form or reduces to a fixed 3x3 linear
// system; there is no iterative search.
package opt

import "errors"

var (
	ErrBadWeight  = errors.New("opt: place weight must be positive")
	ErrNoPlaces   = errors.New("opt: objective needs at least one place")
	ErrZeroWeight = errors.New("opt: total weight is zero")
)

// Place is a fixed reference point in the local frame with a positive
// importance weight.
type Place struct {
	X, Y   float64
	Weight float64
}

// Objective is Σ wᵢ·((x−xᵢ)² + (y−yᵢ)²) over a fixed set of places.
// The weighted sums are precomputed; the places are never mutated.
type Objective struct {
	places []Place
	sumW   float64
	sumWX  float64
	sumWY  float64
}

// NewObjective validates the places and precomputes the weighted sums.
// Non-positive weights are rejected up front so the strict-convexity
// invariant holds for every constructed objective.
func NewObjective(places []Place) (*Objective, error) {
	if len(places) == 0 {
		return nil, ErrNoPlaces
	}
	o := &Objective{places: append([]Place(nil), places...)}
	for _, p := range places {
		if p.Weight <= 0 {
			return nil, ErrBadWeight
		}
		o.sumW += p.Weight
		o.sumWX += p.Weight * p.X
		o.sumWY += p.Weight * p.Y
	}
	if o.sumW == 0 {
		return nil, ErrZeroWeight
	}
	return o, nil
}

// Value evaluates the objective at (x, y).
func (o *Objective) Value(x, y float64) float64 {
	total := 0.0
	for _, p := range o.places {
		dx := x - p.X
		dy := y - p.Y
		total += p.Weight * (dx*dx + dy*dy)
	}
	return total
}

// Gradient returns (∂/∂x, ∂/∂y) at (x, y).
func (o *Objective) Gradient(x, y float64) (gx, gy float64) {
	return 2 * (o.sumW*x - o.sumWX), 2 * (o.sumW*y - o.sumWY)
}

// TotalWeight returns Σ wᵢ.
func (o *Objective) TotalWeight() float64 { return o.sumW }
