package api

import (
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "strings"
    "time"

    "siteopt/internal/model"
    "siteopt/internal/store"
)

// ScenariosHandler handles POST/GET /v1/scenarios
func (s *Server) ScenariosHandler(w http.ResponseWriter, r *http.Request) {
    switch r.Method {
    case http.MethodPost:
        p := s.getPrincipal(r)
        if !p.CanSolve() { writeProblem(w, 403, "Forbidden", "planner or admin required", r.URL.Path); return }
        var in model.ScenarioIn
        if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if err := validateScenario(&in); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid scenario", err.Error(), r.URL.Path)
            return
        }
        sc, err := s.Store.CreateScenario(r.Context(), p.Tenant, in)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Create scenario failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusCreated, sc)
    case http.MethodGet:
        _, tenant := s.withTenant(r)
        cursor := r.URL.Query().Get("cursor")
        limit := 100
        if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
        items, next, err := s.Store.ListScenarios(r.Context(), tenant, cursor, limit)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "List scenarios failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// ScenarioByIDHandler handles /v1/scenarios/{id} and its subresources:
// GET/DELETE {id}, POST {id}/solve, GET {id}/solves, GET {id}/events/stream,
// GET {id}/events/ws.
func (s *Server) ScenarioByIDHandler(w http.ResponseWriter, r *http.Request) {
    path := r.URL.Path
    rest := strings.TrimPrefix(path, "/v1/scenarios/")
    if rest == path || rest == "" {
        writeProblem(w, http.StatusNotFound, "Not Found", "missing id", path)
        return
    }
    parts := strings.Split(rest, "/")
    id := parts[0]

    if len(parts) > 2 && parts[1] == "events" && parts[2] == "stream" {
        s.scenarioEventsSSE(w, r, id)
        return
    }
    if len(parts) > 2 && parts[1] == "events" && parts[2] == "ws" {
        s.scenarioEventsWS(w, r, id)
        return
    }
    if len(parts) > 1 && parts[1] == "solve" {
        s.solveScenario(w, r, id)
        return
    }
    if len(parts) > 1 && parts[1] == "solves" {
        if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
        _, tenant := s.withTenant(r)
        cursor := r.URL.Query().Get("cursor")
        limit := 100
        if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
        items, next, err := s.Store.ListSolves(r.Context(), tenant, id, cursor, limit)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "List solves failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
        return
    }

    switch r.Method {
    case http.MethodGet:
        _, tenant := s.withTenant(r)
        sc, err := s.Store.GetScenario(r.Context(), tenant, id)
        if err != nil {
            if errors.Is(err, store.ErrNotFound) { writeProblem(w, 404, "Scenario not found", "", path); return }
            writeProblem(w, http.StatusInternalServerError, "Get scenario failed", err.Error(), path)
            return
        }
        writeJSON(w, http.StatusOK, sc)
    case http.MethodDelete:
        p := s.getPrincipal(r)
        if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", path); return }
        if err := s.Store.DeleteScenario(r.Context(), p.Tenant, id); err != nil {
            if errors.Is(err, store.ErrNotFound) { writeProblem(w, 404, "Scenario not found", "", path); return }
            writeProblem(w, http.StatusInternalServerError, "Delete scenario failed", err.Error(), path)
            return
        }
        w.WriteHeader(http.StatusNoContent)
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// solveScenario handles POST /v1/scenarios/{id}/solve
func (s *Server) solveScenario(w http.ResponseWriter, r *http.Request, id string) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    p := s.getPrincipal(r)
    if !p.CanSolve() { writeProblem(w, 403, "Forbidden", "planner or admin required", r.URL.Path); return }
    var req model.SolveRequest
    // body is optional; empty body means mode "free"
    if r.Body != nil {
        _ = json.NewDecoder(r.Body).Decode(&req)
    }
    if err := validateSolveRequest(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid solve request", err.Error(), r.URL.Path)
        return
    }
    sc, err := s.Store.GetScenario(r.Context(), p.Tenant, id)
    if err != nil {
        if errors.Is(err, store.ErrNotFound) { writeProblem(w, 404, "Scenario not found", "", r.URL.Path); return }
        writeProblem(w, http.StatusInternalServerError, "Get scenario failed", err.Error(), r.URL.Path)
        return
    }
    sv, err := runSolve(sc, req)
    if err != nil {
        if isDomainError(err) {
            writeProblem(w, http.StatusUnprocessableEntity, "Solve rejected", err.Error(), r.URL.Path)
            return
        }
        writeProblem(w, http.StatusInternalServerError, "Solve failed", err.Error(), r.URL.Path)
        return
    }
    sv, err = s.Store.SaveSolve(r.Context(), sv)
    if err != nil {
        writeProblem(w, http.StatusInternalServerError, "Save solve failed", err.Error(), r.URL.Path)
        return
    }
    data := map[string]any{
        "solveId":    sv.ID,
        "scenarioId": sv.ScenarioID,
        "mode":       sv.Mode,
        "lng":        sv.Location.Lng,
        "lat":        sv.Location.Lat,
        "objective":  sv.Objective,
    }
    s.Broker.Publish(sv.ScenarioID, SSEEvent{Type: "solve.completed", Data: data})
    if s.Pub != nil {
        s.Pub.Emit(r.Context(), p.Tenant, "solve.completed", sv)
    }
    writeJSON(w, http.StatusOK, sv)
}

// scenarioEventsSSE streams solve events for a scenario over SSE.
func (s *Server) scenarioEventsSSE(w http.ResponseWriter, r *http.Request, id string) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    _, tenant := s.withTenant(r)
    if _, err := s.Store.GetScenario(r.Context(), tenant, id); err != nil {
        writeProblem(w, 404, "Scenario not found", "", r.URL.Path)
        return
    }
    flusher, ok := w.(http.Flusher)
    if !ok { writeProblem(w, 500, "Streaming unsupported", "", r.URL.Path); return }
    w.Header().Set("Content-Type", "text/event-stream")
    w.Header().Set("Cache-Control", "no-cache")
    w.Header().Set("Connection", "keep-alive")
    ch := s.Broker.Subscribe(id)
    defer s.Broker.Unsubscribe(id, ch)
    // initial heartbeat
    fmt.Fprintf(w, "event: heartbeat\n")
    fmt.Fprintf(w, "data: {\"scenarioId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
    flusher.Flush()
    notify := r.Context().Done()
    for {
        select {
        case <-notify:
            return
        case evt := <-ch:
            b, _ := json.Marshal(evt.Data)
            fmt.Fprintf(w, "event: %s\n", evt.Type)
            fmt.Fprintf(w, "data: %s\n\n", string(b))
            flusher.Flush()
        case <-time.After(15 * time.Second):
            fmt.Fprintf(w, "event: heartbeat\n")
            fmt.Fprintf(w, "data: {\"scenarioId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
            flusher.Flush()
        }
    }
}

// SolveByIDHandler handles GET /v1/solves/{id}
func (s *Server) SolveByIDHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    path := r.URL.Path
    id := strings.TrimPrefix(path, "/v1/solves/")
    if id == path || id == "" || strings.Contains(id, "/") {
        writeProblem(w, http.StatusNotFound, "Not Found", "missing id", path)
        return
    }
    _, tenant := s.withTenant(r)
    sv, err := s.Store.GetSolve(r.Context(), tenant, id)
    if err != nil {
        if errors.Is(err, store.ErrNotFound) { writeProblem(w, 404, "Solve not found", "", path); return }
        writeProblem(w, http.StatusInternalServerError, "Get solve failed", err.Error(), path)
        return
    }
    writeJSON(w, http.StatusOK, sv)
}

// SubscriptionsHandler handles POST/GET /v1/subscriptions
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
    switch r.Method {
    case http.MethodPost:
        p := s.getPrincipal(r)
        if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
        var req model.SubscriptionRequest
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if req.URL == "" || len(req.Events) == 0 {
            writeProblem(w, http.StatusBadRequest, "Invalid subscription", "url and events are required", r.URL.Path)
            return
        }
        if req.TenantID == "" { req.TenantID = p.Tenant }
        sub, err := s.Store.CreateSubscription(r.Context(), req)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusCreated, sub)
    case http.MethodGet:
        _, tenant := s.withTenant(r)
        cursor := r.URL.Query().Get("cursor")
        limit := 100
        if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
        items, next, err := s.Store.ListSubscriptions(r.Context(), tenant, cursor, limit)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "List subscriptions failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// SubscriptionByIDHandler handles DELETE /v1/subscriptions/{id}
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodDelete { w.WriteHeader(http.StatusMethodNotAllowed); return }
    path := r.URL.Path
    id := strings.TrimPrefix(path, "/v1/subscriptions/")
    if id == path || id == "" {
        writeProblem(w, http.StatusNotFound, "Not Found", "missing id", path)
        return
    }
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", path); return }
    if err := s.Store.DeleteSubscription(r.Context(), p.Tenant, id); err != nil {
        if errors.Is(err, store.ErrNotFound) { writeProblem(w, 404, "Subscription not found", "", path); return }
        writeProblem(w, http.StatusInternalServerError, "Delete subscription failed", err.Error(), path)
        return
    }
    w.WriteHeader(http.StatusNoContent)
}

// HealthHandler handles GET /healthz
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyHandler handles GET /readyz
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
