package api

import (
	"fmt"

	"siteopt/internal/model"
)

func validGeoPoint(g model.GeoPoint) error {
	if g.Lat < -90 || g.Lat > 90 {
		return fmt.Errorf("latitude %v out of range [-90,90]", g.Lat)
	}
	if g.Lng < -180 || g.Lng > 180 {
		return fmt.Errorf("longitude %v out of range [-180,180]", g.Lng)
	}
	return nil
}

func validateScenario(in *model.ScenarioIn) error {
	if err := validGeoPoint(in.Origin); err != nil {
		return fmt.Errorf("origin: %w", err)
	}
	if len(in.Places) == 0 {
		return fmt.Errorf("at least one place is required")
	}
	for i, p := range in.Places {
		if err := validGeoPoint(p.Location); err != nil {
			return fmt.Errorf("places[%d]: %w", i, err)
		}
		if p.Weight <= 0 {
			return fmt.Errorf("places[%d]: weight must be > 0", i)
		}
	}
	seen := map[string]bool{}
	for i, st := range in.Streets {
		if st.Name == "" {
			return fmt.Errorf("streets[%d]: name is required", i)
		}
		if seen[st.Name] {
			return fmt.Errorf("streets[%d]: duplicate name %q", i, st.Name)
		}
		seen[st.Name] = true
		if err := validGeoPoint(st.A); err != nil {
			return fmt.Errorf("streets[%d].a: %w", i, err)
		}
		if err := validGeoPoint(st.B); err != nil {
			return fmt.Errorf("streets[%d].b: %w", i, err)
		}
		if st.A == st.B {
			return fmt.Errorf("streets[%d]: endpoints coincide", i)
		}
	}
	return nil
}

func validateSolveRequest(req *model.SolveRequest) error {
	switch req.Mode {
	case "", "free":
		if req.Street != "" {
			return fmt.Errorf("street is only valid with mode \"street\"")
		}
	case "street":
		if req.Street == "" {
			return fmt.Errorf("street name required for mode \"street\"")
		}
	default:
		return fmt.Errorf("invalid mode: %s", req.Mode)
	}
	return nil
}
