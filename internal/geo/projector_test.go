package geo

import (
	"errors"
	"math"
	"testing"

	"siteopt/internal/model"
)

var buenosAires = model.GeoPoint{Lng: -58.37788955179407, Lat: -34.595228892628455}

func TestForwardOriginIsZero(t *testing.T) {
	p, err := NewProjector(buenosAires)
	if err != nil {
		t.Fatalf("NewProjector: %v", err)
	}
	l := p.Forward(buenosAires)
	if l.X != 0 || l.Y != 0 {
		t.Fatalf("Forward(origin) = (%v, %v), want (0, 0)", l.X, l.Y)
	}
}

func TestForwardKnownPoints(t *testing.T) {
	p, err := NewProjector(buenosAires)
	if err != nil {
		t.Fatalf("NewProjector: %v", err)
	}
	cases := []struct {
		name string
		in   model.GeoPoint
		x, y float64
	}{
		{"disco", model.GeoPoint{Lng: -58.38467378144673, Lat: -34.596156182566006}, -0.6209866300622319, -0.1031099365841445},
		{"obelisk", model.GeoPoint{Lng: -58.38094967105265, Lat: -34.6034559421601}, -0.2801044839671464, -0.9148061691727372},
		{"galerias", model.GeoPoint{Lng: -58.37401050128944, Lat: -34.598868856938026}, 0.3550644102631122, -0.40474556439151327},
	}
	for _, c := range cases {
		l := p.Forward(c.in)
		if math.Abs(l.X-c.x) > 1e-12 || math.Abs(l.Y-c.y) > 1e-12 {
			t.Errorf("%s: got (%.15f, %.15f), want (%.15f, %.15f)", c.name, l.X, l.Y, c.x, c.y)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	p, err := NewProjector(buenosAires)
	if err != nil {
		t.Fatalf("NewProjector: %v", err)
	}
	points := []model.GeoPoint{
		buenosAires,
		{Lng: -58.38467378144673, Lat: -34.596156182566006},
		{Lng: -58.35, Lat: -34.62},
		{Lng: -58.40, Lat: -34.55},
	}
	for _, g := range points {
		back := p.Inverse(p.Forward(g))
		if math.Abs(back.Lng-g.Lng) > 1e-9 || math.Abs(back.Lat-g.Lat) > 1e-9 {
			t.Errorf("round trip %v -> %v drifted", g, back)
		}
	}
	locals := []model.LocalPoint{{X: 0, Y: 0}, {X: 1.5, Y: -2.25}, {X: -10, Y: 7}}
	for _, l := range locals {
		back := p.Forward(p.Inverse(l))
		if math.Abs(back.X-l.X) > 1e-9 || math.Abs(back.Y-l.Y) > 1e-9 {
			t.Errorf("round trip %v -> %v drifted", l, back)
		}
	}
}

func TestPolarOriginRejected(t *testing.T) {
	for _, lat := range []float64{90, -90} {
		if _, err := NewProjector(model.GeoPoint{Lng: 0, Lat: lat}); !errors.Is(err, ErrPolarOrigin) {
			t.Errorf("lat %v: got %v, want ErrPolarOrigin", lat, err)
		}
	}
	// near but not at the pole is still fine
	if _, err := NewProjector(model.GeoPoint{Lng: 0, Lat: 89.9}); err != nil {
		t.Errorf("lat 89.9: unexpected error %v", err)
	}
}
