package api

import (
	"errors"
	"fmt"
	"time"

	"siteopt/internal/geo"
	"siteopt/internal/metrics"
	"siteopt/internal/model"
	"siteopt/internal/opt"
)

// ErrStreetNotFound reports a solve request naming a street the scenario
// does not define.
var ErrStreetNotFound = errors.New("street not found in scenario")

// runSolve projects the scenario into the local frame, runs the requested
// solver, and maps the optimum back to geographic coordinates. All failure
// modes are detected before a result is produced.
func runSolve(sc model.Scenario, req model.SolveRequest) (model.Solve, error) {
	mode := req.Mode
	if mode == "" {
		mode = "free"
	}
	start := time.Now()
	sv, err := solveLocal(sc, mode, req.Street)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.Solves.WithLabelValues(mode, status).Inc()
	metrics.SolveDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	return sv, err
}

func solveLocal(sc model.Scenario, mode, street string) (model.Solve, error) {
	proj, err := geo.NewProjector(sc.Origin)
	if err != nil {
		return model.Solve{}, err
	}
	places := make([]opt.Place, 0, len(sc.Places))
	for _, p := range sc.Places {
		l := proj.Forward(p.Location)
		places = append(places, opt.Place{X: l.X, Y: l.Y, Weight: p.Weight})
	}
	obj, err := opt.NewObjective(places)
	if err != nil {
		return model.Solve{}, err
	}

	var res opt.Result
	switch mode {
	case "free":
		res, err = opt.Minimize(obj)
	case "street":
		var st *model.StreetIn
		for i := range sc.Streets {
			if sc.Streets[i].Name == street {
				st = &sc.Streets[i]
				break
			}
		}
		if st == nil {
			return model.Solve{}, fmt.Errorf("%w: %q", ErrStreetNotFound, street)
		}
		a := proj.Forward(st.A)
		b := proj.Forward(st.B)
		var ln opt.Line
		ln, err = opt.NewLine(a.X, a.Y, b.X, b.Y)
		if err != nil {
			return model.Solve{}, err
		}
		res, err = opt.MinimizeOnLine(obj, ln)
	default:
		return model.Solve{}, fmt.Errorf("invalid mode: %s", mode)
	}
	if err != nil {
		return model.Solve{}, err
	}

	local := model.LocalPoint{X: res.X, Y: res.Y}
	sv := model.Solve{
		TenantID:   sc.TenantID,
		ScenarioID: sc.ID,
		Mode:       mode,
		Street:     street,
		Local:      local,
		Location:   proj.Inverse(local),
		Objective:  obj.Value(res.X, res.Y),
	}
	if res.Constrained {
		l := res.Lambda
		sv.Lambda = &l
	}
	return sv, nil
}

// isDomainError reports whether err is a bad-input error rather than an
// internal failure, for HTTP status mapping.
func isDomainError(err error) bool {
	return errors.Is(err, geo.ErrPolarOrigin) ||
		errors.Is(err, opt.ErrBadWeight) ||
		errors.Is(err, opt.ErrNoPlaces) ||
		errors.Is(err, opt.ErrZeroWeight) ||
		errors.Is(err, opt.ErrDegenerateLine) ||
		errors.Is(err, ErrStreetNotFound)
}
