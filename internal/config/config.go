// Package config loads scenario seed files so inputs arrive as plain data
// rather than hard-coded constants.
package config

import (
	"context"
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"

	"siteopt/internal/model"
	"siteopt/internal/store"
)

type geoPoint struct {
	Lng float64 `yaml:"lng"`
	Lat float64 `yaml:"lat"`
}

type place struct {
	Name     string   `yaml:"name"`
	Location geoPoint `yaml:"location"`
	Weight   float64  `yaml:"weight"`
}

type street struct {
	Name string   `yaml:"name"`
	A    geoPoint `yaml:"a"`
	B    geoPoint `yaml:"b"`
}

type scenario struct {
	Name    string   `yaml:"name"`
	Tenant  string   `yaml:"tenant"`
	Origin  geoPoint `yaml:"origin"`
	Places  []place  `yaml:"places"`
	Streets []street `yaml:"streets"`
}

type file struct {
	Scenarios []scenario `yaml:"scenarios"`
}

// LoadScenarios parses a YAML seed file into scenario payloads keyed by
// tenant id.
func LoadScenarios(path string) (map[string][]model.ScenarioIn, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f file
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	out := map[string][]model.ScenarioIn{}
	for _, sc := range f.Scenarios {
		tenant := sc.Tenant
		if tenant == "" {
			tenant = "t_demo"
		}
		in := model.ScenarioIn{
			Name:   sc.Name,
			Origin: model.GeoPoint{Lng: sc.Origin.Lng, Lat: sc.Origin.Lat},
		}
		for _, p := range sc.Places {
			in.Places = append(in.Places, model.PlaceIn{
				Name:     p.Name,
				Location: model.GeoPoint{Lng: p.Location.Lng, Lat: p.Location.Lat},
				Weight:   p.Weight,
			})
		}
		for _, st := range sc.Streets {
			in.Streets = append(in.Streets, model.StreetIn{
				Name: st.Name,
				A:    model.GeoPoint{Lng: st.A.Lng, Lat: st.A.Lat},
				B:    model.GeoPoint{Lng: st.B.Lng, Lat: st.B.Lat},
			})
		}
		out[tenant] = append(out[tenant], in)
	}
	return out, nil
}

// SeedStore loads the file and creates the scenarios; used at startup when
// SCENARIOS_FILE is set.
func SeedStore(ctx context.Context, s store.Store, path string) (int, error) {
	byTenant, err := LoadScenarios(path)
	if err != nil {
		return 0, err
	}
	n := 0
	for tenant, scs := range byTenant {
		for _, in := range scs {
			if _, err := s.CreateScenario(ctx, tenant, in); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}
