// Package geo converts between geographic degrees and a local tangent-plane
// frame in kilometres.
package geo

import (
	"errors"
	"math"

	"siteopt/internal/model"
)

// EarthRadiusKm is the mean Earth radius used for all conversions.
const EarthRadiusKm = 6371.0

// ErrPolarOrigin is returned when the origin latitude is at (or numerically
// indistinguishable from) a pole, where the equirectangular frame degenerates.
var ErrPolarOrigin = errors.New("geo: origin at a pole, projection undefined")

const minCosLat = 1e-9

// Projector maps geographic points to a planar frame centred at Origin and
// back. The mapping is the small-distance equirectangular approximation:
// accurate within a few tens of kilometres of the origin, silently degrading
// beyond that. High-precision geodesy is out of scope.
type Projector struct {
	Origin model.GeoPoint

	cosLat float64
}

// NewProjector builds a Projector centred at origin. Origins at the poles
// are rejected: cos(lat) reaches zero there and the inverse mapping would
// divide by it.
func NewProjector(origin model.GeoPoint) (*Projector, error) {
	c := math.Cos(origin.Lat * math.Pi / 180)
	if math.Abs(c) < minCosLat {
		return nil, ErrPolarOrigin
	}
	return &Projector{Origin: origin, cosLat: c}, nil
}

// Forward converts a geographic point to local kilometres.
// Forward(Origin) is exactly (0, 0).
func (p *Projector) Forward(g model.GeoPoint) model.LocalPoint {
	dLng := (g.Lng - p.Origin.Lng) * math.Pi / 180
	dLat := (g.Lat - p.Origin.Lat) * math.Pi / 180
	return model.LocalPoint{
		X: EarthRadiusKm * dLng * p.cosLat,
		Y: EarthRadiusKm * dLat,
	}
}

// Inverse is the exact algebraic inverse of Forward.
func (p *Projector) Inverse(l model.LocalPoint) model.GeoPoint {
	dLng := l.X / (EarthRadiusKm * p.cosLat) * 180 / math.Pi
	dLat := l.Y / EarthRadiusKm * 180 / math.Pi
	return model.GeoPoint{
		Lng: p.Origin.Lng + dLng,
		Lat: p.Origin.Lat + dLat,
	}
}
