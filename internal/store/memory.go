package store

import (
    "context"
    "sync"
    "time"

    "github.com/google/uuid"
    "siteopt/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
    mu         sync.Mutex
    scenarios  map[string]model.Scenario   // id -> scenario
    scenTen    map[string][]string         // tenant -> scenario ids
    solves     map[string]model.Solve      // id -> solve
    solvesScen map[string][]string         // scenarioId -> solve ids
    subs       map[string][]model.Subscription // tenant -> subscriptions
    deliveries map[string]*memDelivery     // id -> delivery state
    order      []string                    // delivery ids in enqueue order
}

func NewMemory() *Memory {
    return &Memory{
        scenarios:  map[string]model.Scenario{},
        scenTen:    map[string][]string{},
        solves:     map[string]model.Solve{},
        solvesScen: map[string][]string{},
        subs:       map[string][]model.Subscription{},
        deliveries: map[string]*memDelivery{},
    }
}

// memDelivery augments WebhookDelivery with scheduling state
type memDelivery struct {
    WebhookDelivery
    NextAttemptAt time.Time
    LastError     string
    ResponseCode  int
    LatencyMs     int
}

func (m *Memory) CreateScenario(ctx context.Context, tenantID string, in model.ScenarioIn) (model.Scenario, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    sc := model.Scenario{
        ID:       uuid.New().String(),
        TenantID: tenantID,
        Name:     in.Name,
        Origin:   in.Origin,
        Places:   append([]model.PlaceIn(nil), in.Places...),
        Streets:  append([]model.StreetIn(nil), in.Streets...),
    }
    m.scenarios[sc.ID] = sc
    m.scenTen[tenantID] = append(m.scenTen[tenantID], sc.ID)
    return sc, nil
}

func (m *Memory) GetScenario(ctx context.Context, tenantID, id string) (model.Scenario, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    sc, ok := m.scenarios[id]
    if !ok || sc.TenantID != tenantID { return model.Scenario{}, ErrNotFound }
    return sc, nil
}

func (m *Memory) ListScenarios(ctx context.Context, tenantID, cursor string, limit int) ([]model.Scenario, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    ids := m.scenTen[tenantID]
    start := 0
    if cursor != "" {
        for i, id := range ids {
            if id == cursor { start = i + 1; break }
        }
    }
    if limit <= 0 { limit = 100 }
    out := []model.Scenario{}
    var last string
    for i := start; i < len(ids) && len(out) < limit; i++ {
        out = append(out, m.scenarios[ids[i]])
        last = ids[i]
    }
    var next string
    if len(out) == limit { next = last }
    return out, next, nil
}

func (m *Memory) DeleteScenario(ctx context.Context, tenantID, id string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    sc, ok := m.scenarios[id]
    if !ok || sc.TenantID != tenantID { return ErrNotFound }
    delete(m.scenarios, id)
    ids := m.scenTen[tenantID]
    for i, v := range ids {
        if v == id { m.scenTen[tenantID] = append(ids[:i], ids[i+1:]...); break }
    }
    // cascade, matching the scenario_id foreign key in postgres
    for _, svID := range m.solvesScen[id] {
        delete(m.solves, svID)
    }
    delete(m.solvesScen, id)
    return nil
}

func (m *Memory) SaveSolve(ctx context.Context, sv model.Solve) (model.Solve, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if sv.ID == "" { sv.ID = uuid.New().String() }
    if sv.CreatedAt == "" { sv.CreatedAt = time.Now().UTC().Format(time.RFC3339) }
    m.solves[sv.ID] = sv
    m.solvesScen[sv.ScenarioID] = append(m.solvesScen[sv.ScenarioID], sv.ID)
    return sv, nil
}

func (m *Memory) GetSolve(ctx context.Context, tenantID, id string) (model.Solve, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    sv, ok := m.solves[id]
    if !ok || sv.TenantID != tenantID { return model.Solve{}, ErrNotFound }
    return sv, nil
}

func (m *Memory) ListSolves(ctx context.Context, tenantID, scenarioID, cursor string, limit int) ([]model.Solve, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    ids := m.solvesScen[scenarioID]
    start := 0
    if cursor != "" {
        for i, id := range ids {
            if id == cursor { start = i + 1; break }
        }
    }
    if limit <= 0 { limit = 100 }
    out := []model.Solve{}
    var last string
    for i := start; i < len(ids) && len(out) < limit; i++ {
        sv := m.solves[ids[i]]
        if sv.TenantID != tenantID { continue }
        out = append(out, sv)
        last = ids[i]
    }
    var next string
    if len(out) == limit { next = last }
    return out, next, nil
}

func (m *Memory) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    s := model.Subscription{ID: uuid.New().String(), TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}
    m.subs[req.TenantID] = append(m.subs[req.TenantID], s)
    return s, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    var out []model.Subscription
    for _, s := range m.subs[tenantID] {
        for _, e := range s.Events {
            if e == eventType { out = append(out, s); break }
        }
    }
    return out, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    subs := m.subs[tenantID]
    start := 0
    if cursor != "" {
        for i, s := range subs {
            if s.ID == cursor { start = i + 1; break }
        }
    }
    if limit <= 0 { limit = 100 }
    out := []model.Subscription{}
    var last string
    for i := start; i < len(subs) && len(out) < limit; i++ {
        out = append(out, subs[i])
        last = subs[i].ID
    }
    var next string
    if len(out) == limit { next = last }
    return out, next, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, tenantID, id string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    subs := m.subs[tenantID]
    for i, s := range subs {
        if s.ID == id {
            m.subs[tenantID] = append(subs[:i], subs[i+1:]...)
            return nil
        }
    }
    return ErrNotFound
}

func (m *Memory) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    id := uuid.New().String()
    m.deliveries[id] = &memDelivery{WebhookDelivery: WebhookDelivery{
        ID: id, TenantID: tenantID, EventType: eventType, URL: url, Secret: secret,
        Payload: payload, Status: "pending",
    }}
    m.order = append(m.order, id)
    return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if limit <= 0 { limit = 50 }
    now := time.Now()
    out := []WebhookDelivery{}
    for _, id := range m.order {
        d := m.deliveries[id]
        if d == nil || d.Status != "pending" { continue }
        if d.NextAttemptAt.After(now) { continue }
        out = append(out, d.WebhookDelivery)
        if len(out) == limit { break }
    }
    return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d, ok := m.deliveries[id]
    if !ok { return ErrNotFound }
    d.Attempts++
    d.LastError = lastError
    d.ResponseCode = responseCode
    d.LatencyMs = latencyMs
    if success {
        d.Status = "delivered"
    } else if nextAttemptAt != nil {
        d.NextAttemptAt = *nextAttemptAt
    }
    return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d, ok := m.deliveries[id]
    if !ok { return ErrNotFound }
    d.Attempts++
    d.Status = "failed"
    d.LastError = lastError
    d.ResponseCode = responseCode
    d.LatencyMs = latencyMs
    return nil
}
