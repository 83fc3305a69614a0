package opt

import (
	"errors"
	"math"
	"testing"
)

func mustObjective(t *testing.T, places []Place) *Objective {
	t.Helper()
	o, err := NewObjective(places)
	if err != nil {
		t.Fatalf("NewObjective: %v", err)
	}
	return o
}

func TestMinimizeIsWeightedCentroid(t *testing.T) {
	o := mustObjective(t, []Place{
		{X: 0, Y: 0, Weight: 1},
		{X: 10, Y: 0, Weight: 2},
		{X: 0, Y: 10, Weight: 3},
	})
	res, err := Minimize(o)
	if err != nil {
		t.Fatalf("Minimize: %v", err)
	}
	if math.Abs(res.X-20.0/6.0) > 1e-12 || math.Abs(res.Y-5.0) > 1e-12 {
		t.Fatalf("got (%v, %v), want (%v, 5)", res.X, res.Y, 20.0/6.0)
	}
	if res.Constrained {
		t.Fatal("unconstrained result marked constrained")
	}
}

func TestWeightSensitivity(t *testing.T) {
	// raising one weight pulls the optimum strictly closer to that place
	base := []Place{
		{X: 0, Y: 0, Weight: 1},
		{X: 10, Y: 0, Weight: 2},
		{X: 0, Y: 10, Weight: 3},
	}
	target := base[1]
	dist := func(w float64) float64 {
		places := append([]Place(nil), base...)
		places[1].Weight = w
		res, err := Minimize(mustObjective(t, places))
		if err != nil {
			t.Fatalf("Minimize: %v", err)
		}
		return math.Hypot(res.X-target.X, res.Y-target.Y)
	}
	prev := dist(2)
	for _, w := range []float64{3, 5, 10, 100} {
		d := dist(w)
		if d >= prev {
			t.Fatalf("weight %v: distance %v did not shrink (prev %v)", w, d, prev)
		}
		prev = d
	}
}

func TestMinimizeOnLineStaysOnLine(t *testing.T) {
	o := mustObjective(t, []Place{
		{X: 0, Y: 0, Weight: 1},
		{X: 10, Y: 0, Weight: 2},
		{X: 0, Y: 10, Weight: 3},
	})
	ln, err := NewLine(0, 0, 10, 10)
	if err != nil {
		t.Fatalf("NewLine: %v", err)
	}
	res, err := MinimizeOnLine(o, ln)
	if err != nil {
		t.Fatalf("MinimizeOnLine: %v", err)
	}
	if math.Abs(res.Y-res.X) > 1e-9 {
		t.Fatalf("optimum (%v, %v) not on y = x", res.X, res.Y)
	}
	if !res.Constrained {
		t.Fatal("constrained result not marked constrained")
	}
	// constrained value can never beat the free optimum
	free, _ := Minimize(o)
	if o.Value(res.X, res.Y) < o.Value(free.X, free.Y)-1e-9 {
		t.Fatal("constrained optimum beat the unconstrained one")
	}
	// and stationarity holds: gradient parallel to the line normal
	gx, gy := o.Gradient(res.X, res.Y)
	if math.Abs(gx-res.Lambda*ln.A) > 1e-9 || math.Abs(gy-res.Lambda*ln.B) > 1e-9 {
		t.Fatalf("stationarity violated: grad (%v, %v), lambda %v", gx, gy, res.Lambda)
	}
}

func TestMinimizeOnVerticalLine(t *testing.T) {
	o := mustObjective(t, []Place{
		{X: 0, Y: 0, Weight: 1},
		{X: 10, Y: 0, Weight: 2},
		{X: 0, Y: 10, Weight: 3},
	})
	ln, err := NewLine(4, -100, 4, 250)
	if err != nil {
		t.Fatalf("NewLine: %v", err)
	}
	if !ln.Vertical() {
		t.Fatal("line through equal x should be vertical")
	}
	res, err := MinimizeOnLine(o, ln)
	if err != nil {
		t.Fatalf("MinimizeOnLine: %v", err)
	}
	if math.Abs(res.X-4) > 1e-9 {
		t.Fatalf("x = %v, want 4", res.X)
	}
	// y is free along the constraint, so it matches the centroid y
	if math.Abs(res.Y-5.0) > 1e-9 {
		t.Fatalf("y = %v, want 5", res.Y)
	}
}

func TestDegenerateLineRejected(t *testing.T) {
	if _, err := NewLine(3, 7, 3, 7); !errors.Is(err, ErrDegenerateLine) {
		t.Fatalf("got %v, want ErrDegenerateLine", err)
	}
}

func TestBuenosAiresFixture(t *testing.T) {
	// pinned regression values computed analytically from the microcentro
	// scenario (amenities weighted 1/2/3, Paraguay street constraint)
	o := mustObjective(t, []Place{
		{X: -0.6209866300622319, Y: -0.1031099365841445, Weight: 1},
		{X: -0.2801044839671464, Y: -0.9148061691727372, Weight: 2},
		{X: 0.3550644102631122, Y: -0.40474556439151327, Weight: 3},
	})
	free, err := Minimize(o)
	if err != nil {
		t.Fatalf("Minimize: %v", err)
	}
	if math.Abs(free.X-(-0.019333727867865)) > 1e-12 || math.Abs(free.Y-(-0.524493161350693)) > 1e-12 {
		t.Fatalf("free optimum (%.15f, %.15f) off fixture", free.X, free.Y)
	}

	ln, err := NewLine(-0.5215330547215725, -0.3283235106404167, -0.21709706554386132, -0.2851146748943393)
	if err != nil {
		t.Fatalf("NewLine: %v", err)
	}
	res, err := MinimizeOnLine(o, ln)
	if err != nil {
		t.Fatalf("MinimizeOnLine: %v", err)
	}
	if math.Abs(res.X-(-0.056543155185853)) > 1e-9 || math.Abs(res.Y-(-0.262327134039569)) > 1e-9 {
		t.Fatalf("constrained optimum (%.15f, %.15f) off fixture", res.X, res.Y)
	}
	if !ln.Contains(res.X, res.Y, 1e-9) {
		t.Fatal("constrained optimum not on street line")
	}
}

func TestSolve3Singular(t *testing.T) {
	_, err := solve3([3][4]float64{
		{1, 2, 3, 1},
		{2, 4, 6, 2},
		{0, 0, 1, 0},
	})
	if !errors.Is(err, ErrSingularSystem) {
		t.Fatalf("got %v, want ErrSingularSystem", err)
	}
}
