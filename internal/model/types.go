package model

// Core domain types for scenarios and solves.

// GeoPoint is a geographic position in degrees (WGS84-like spherical
// approximation).
type GeoPoint struct {
    Lng float64 `json:"lng"`
    Lat float64 `json:"lat"`
}

// PlaceIn is an amenity with a relative importance weight.
type PlaceIn struct {
    Name     string   `json:"name,omitempty"`
    Location GeoPoint `json:"location"`
    Weight   float64  `json:"weight"`
}

// StreetIn is a street given by two endpoints. Solves constrained to a
// street restrict the optimum to the infinite line through them.
type StreetIn struct {
    Name string   `json:"name"`
    A    GeoPoint `json:"a"`
    B    GeoPoint `json:"b"`
}

// ScenarioIn is the client payload for creating a scenario.
type ScenarioIn struct {
    Name    string     `json:"name,omitempty"`
    Origin  GeoPoint   `json:"origin"`
    Places  []PlaceIn  `json:"places"`
    Streets []StreetIn `json:"streets,omitempty"`
}

// Scenario is a stored scenario.
type Scenario struct {
    ID       string     `json:"id"`
    TenantID string     `json:"tenantId"`
    Name     string     `json:"name,omitempty"`
    Origin   GeoPoint   `json:"origin"`
    Places   []PlaceIn  `json:"places"`
    Streets  []StreetIn `json:"streets,omitempty"`
}

// SolveRequest selects the solve mode. Mode "free" finds the unrestricted
// optimum; mode "street" restricts the optimum to the named street.
type SolveRequest struct {
    Mode   string `json:"mode"`
    Street string `json:"street,omitempty"`
}

// LocalPoint is a planar position in kilometers relative to a scenario
// origin. It is meaningless without the origin that produced it.
type LocalPoint struct {
    X float64 `json:"x"`
    Y float64 `json:"y"`
}

// Solve is a persisted optimization result.
type Solve struct {
    ID         string     `json:"id"`
    TenantID   string     `json:"tenantId"`
    ScenarioID string     `json:"scenarioId"`
    Mode       string     `json:"mode"`
    Street     string     `json:"street,omitempty"`
    Local      LocalPoint `json:"local"`
    Location   GeoPoint   `json:"location"`
    Lambda     *float64   `json:"lambda,omitempty"`
    Objective  float64    `json:"objective"`
    CreatedAt  string     `json:"createdAt"`
}

// Webhook subscription models
type SubscriptionRequest struct {
    TenantID string   `json:"tenantId"`
    URL      string   `json:"url"`
    Events   []string `json:"events"`
    Secret   string   `json:"secret"`
}

type Subscription struct {
    ID       string   `json:"id"`
    TenantID string   `json:"tenantId"`
    URL      string   `json:"url"`
    Events   []string `json:"events"`
    Secret   string   `json:"secret,omitempty"`
}
