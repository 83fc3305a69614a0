package api

import (
    "bytes"
    "context"
    "encoding/json"
    "math"
    "net/http"
    "net/http/httptest"
    "sync"
    "testing"
    "time"

    "siteopt/internal/model"
)

func newTestServer(t *testing.T) *Server {
    t.Helper()
    s, err := NewServer()
    if err != nil { t.Fatalf("NewServer: %v", err) }
    return s
}

const microcentro = `{
  "name": "microcentro",
  "origin": {"lng": -58.37788955179407, "lat": -34.595228892628455},
  "places": [
    {"name": "disco", "location": {"lng": -58.38467378144673, "lat": -34.596156182566006}, "weight": 1},
    {"name": "obelisk", "location": {"lng": -58.38094967105265, "lat": -34.6034559421601}, "weight": 2},
    {"name": "galerias-pacifico", "location": {"lng": -58.37401050128944, "lat": -34.598868856938026}, "weight": 3}
  ],
  "streets": [
    {"name": "paraguay", "a": {"lng": -58.38358725902865, "lat": -34.598181576896955}, "b": {"lng": -58.38026132000657, "lat": -34.597792990501425}}
  ]
}`

func createScenario(t *testing.T, s *Server, body string) model.Scenario {
    t.Helper()
    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPost, "/v1/scenarios", bytes.NewReader([]byte(body)))
    req.Header.Set("Content-Type", "application/json")
    s.ScenariosHandler(rr, req)
    if rr.Code != http.StatusCreated { t.Fatalf("create scenario: %d (%s)", rr.Code, rr.Body.String()) }
    var sc model.Scenario
    if err := json.Unmarshal(rr.Body.Bytes(), &sc); err != nil { t.Fatalf("decode scenario: %v", err) }
    return sc
}

func solve(t *testing.T, s *Server, id, body string) (*httptest.ResponseRecorder, model.Solve) {
    t.Helper()
    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPost, "/v1/scenarios/"+id+"/solve", bytes.NewReader([]byte(body)))
    req.Header.Set("Content-Type", "application/json")
    s.ScenarioByIDHandler(rr, req)
    var sv model.Solve
    _ = json.Unmarshal(rr.Body.Bytes(), &sv)
    return rr, sv
}

func TestHealthReady(t *testing.T) {
    s := newTestServer(t)
    rr := httptest.NewRecorder()
    s.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
    if rr.Code != 200 { t.Fatalf("health: got %d", rr.Code) }
    rr = httptest.NewRecorder()
    s.ReadyHandler(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
    if rr.Code != 200 { t.Fatalf("ready: got %d", rr.Code) }
}

func TestScenarioCreateListGet(t *testing.T) {
    s := newTestServer(t)
    sc := createScenario(t, s, microcentro)

    rr := httptest.NewRecorder()
    s.ScenariosHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/scenarios?limit=5", nil))
    if rr.Code != 200 { t.Fatalf("list scenarios: %d", rr.Code) }
    var idx struct{ Items []model.Scenario `json:"items"` }
    if err := json.Unmarshal(rr.Body.Bytes(), &idx); err != nil || len(idx.Items) != 1 {
        t.Fatalf("expected one scenario, got %v (%v)", len(idx.Items), err)
    }

    rr = httptest.NewRecorder()
    s.ScenarioByIDHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/scenarios/"+sc.ID, nil))
    if rr.Code != 200 { t.Fatalf("get scenario: %d", rr.Code) }
}

func TestScenarioValidation(t *testing.T) {
    s := newTestServer(t)
    bad := `{"origin":{"lng":0,"lat":0},"places":[{"location":{"lng":1,"lat":1},"weight":0}]}`
    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPost, "/v1/scenarios", bytes.NewReader([]byte(bad)))
    s.ScenariosHandler(rr, req)
    if rr.Code != http.StatusBadRequest { t.Fatalf("zero weight: got %d, want 400", rr.Code) }
}

func TestSolveFree(t *testing.T) {
    s := newTestServer(t)
    sc := createScenario(t, s, microcentro)
    rr, sv := solve(t, s, sc.ID, `{"mode":"free"}`)
    if rr.Code != 200 { t.Fatalf("solve: %d (%s)", rr.Code, rr.Body.String()) }
    if math.Abs(sv.Location.Lng-(-58.378100771236724)) > 1e-9 || math.Abs(sv.Location.Lat-(-34.599945772950051)) > 1e-9 {
        t.Fatalf("free optimum at (%v, %v), off fixture", sv.Location.Lng, sv.Location.Lat)
    }
    if sv.Lambda != nil { t.Fatal("free solve should not carry a multiplier") }
    if sv.ID == "" { t.Fatal("solve not persisted") }

    // persisted and retrievable
    rr = httptest.NewRecorder()
    s.SolveByIDHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/solves/"+sv.ID, nil))
    if rr.Code != 200 { t.Fatalf("get solve: %d", rr.Code) }
}

func TestSolveStreet(t *testing.T) {
    s := newTestServer(t)
    sc := createScenario(t, s, microcentro)
    rr, sv := solve(t, s, sc.ID, `{"mode":"street","street":"paraguay"}`)
    if rr.Code != 200 { t.Fatalf("solve: %d (%s)", rr.Code, rr.Body.String()) }
    if math.Abs(sv.Local.X-(-0.056543155185853)) > 1e-9 || math.Abs(sv.Local.Y-(-0.262327134039569)) > 1e-9 {
        t.Fatalf("street optimum at (%v, %v), off fixture", sv.Local.X, sv.Local.Y)
    }
    if sv.Lambda == nil { t.Fatal("street solve should carry the multiplier") }
    if math.Abs(sv.Location.Lng-(-58.378507281277280)) > 1e-9 || math.Abs(sv.Location.Lat-(-34.597588057223064)) > 1e-9 {
        t.Fatalf("street optimum maps to (%v, %v), off fixture", sv.Location.Lng, sv.Location.Lat)
    }

    // street solves must never beat the free optimum
    _, free := solve(t, s, sc.ID, `{"mode":"free"}`)
    if sv.Objective < free.Objective-1e-9 {
        t.Fatalf("street objective %v beats free objective %v", sv.Objective, free.Objective)
    }

    // both solves listed
    rr = httptest.NewRecorder()
    s.ScenarioByIDHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/scenarios/"+sc.ID+"/solves", nil))
    if rr.Code != 200 { t.Fatalf("list solves: %d", rr.Code) }
    var idx struct{ Items []model.Solve `json:"items"` }
    if err := json.Unmarshal(rr.Body.Bytes(), &idx); err != nil || len(idx.Items) != 2 {
        t.Fatalf("expected two solves, got %v (%v)", len(idx.Items), err)
    }
}

func TestSolveUnknownStreet(t *testing.T) {
    s := newTestServer(t)
    sc := createScenario(t, s, microcentro)
    rr, _ := solve(t, s, sc.ID, `{"mode":"street","street":"corrientes"}`)
    if rr.Code != http.StatusUnprocessableEntity { t.Fatalf("unknown street: got %d, want 422", rr.Code) }
}

func TestSolveBadMode(t *testing.T) {
    s := newTestServer(t)
    sc := createScenario(t, s, microcentro)
    rr, _ := solve(t, s, sc.ID, `{"mode":"walk"}`)
    if rr.Code != http.StatusBadRequest { t.Fatalf("bad mode: got %d, want 400", rr.Code) }
}

func TestSolvePolarOrigin(t *testing.T) {
    s := newTestServer(t)
    polar := `{"origin":{"lng":0,"lat":90},"places":[{"location":{"lng":1,"lat":89},"weight":1}]}`
    sc := createScenario(t, s, polar)
    rr, _ := solve(t, s, sc.ID, `{"mode":"free"}`)
    if rr.Code != http.StatusUnprocessableEntity { t.Fatalf("polar origin: got %d, want 422", rr.Code) }
}

func TestSolveEnqueuesWebhook(t *testing.T) {
    s := newTestServer(t)
    sub := `{"url":"https://example.invalid/webhook","events":["solve.completed"],"secret":"shh"}`
    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPost, "/v1/subscriptions", bytes.NewReader([]byte(sub)))
    req.Header.Set("X-Role", "admin")
    s.SubscriptionsHandler(rr, req)
    if rr.Code != http.StatusCreated { t.Fatalf("create sub: %d", rr.Code) }

    sc := createScenario(t, s, microcentro)
    rr2, _ := solve(t, s, sc.ID, `{"mode":"free"}`)
    if rr2.Code != 200 { t.Fatalf("solve: %d", rr2.Code) }

    due, err := s.Store.FetchDueWebhookDeliveries(context.Background(), 10)
    if err != nil { t.Fatalf("fetch due: %v", err) }
    if len(due) == 0 { t.Fatal("expected a queued webhook delivery") }
    if due[0].EventType != "solve.completed" { t.Fatalf("event type %q", due[0].EventType) }
}

// sseRecorder is a minimal ResponseWriter that implements http.Flusher
// and captures writes for SSE tests. The handler writes from its own
// goroutine, so the buffer is mutex-guarded.
type sseRecorder struct {
    mu   sync.Mutex
    hdr  http.Header
    buf  bytes.Buffer
    code int
}

func (r *sseRecorder) Header() http.Header { if r.hdr == nil { r.hdr = http.Header{} }; return r.hdr }
func (r *sseRecorder) WriteHeader(c int) { r.code = c }
func (r *sseRecorder) Write(p []byte) (int, error) {
    r.mu.Lock(); defer r.mu.Unlock()
    return r.buf.Write(p)
}
func (r *sseRecorder) Flush() {}

func (r *sseRecorder) contains(s string) bool {
    r.mu.Lock(); defer r.mu.Unlock()
    return bytes.Contains(r.buf.Bytes(), []byte(s))
}

func (r *sseRecorder) body() string {
    r.mu.Lock(); defer r.mu.Unlock()
    return r.buf.String()
}

func TestScenarioEventsSSE(t *testing.T) {
    s := newTestServer(t)
    sc := createScenario(t, s, microcentro)

    sseReq := httptest.NewRequest(http.MethodGet, "/v1/scenarios/"+sc.ID+"/events/stream", nil)
    ctx, cancel := context.WithTimeout(context.Background(), time.Second)
    defer cancel()
    sseReq = sseReq.WithContext(ctx)

    rec := &sseRecorder{}
    done := make(chan struct{})
    go func() {
        s.ScenarioByIDHandler(rec, sseReq)
        close(done)
    }()

    // give the handler time to subscribe and send the heartbeat
    time.Sleep(50 * time.Millisecond)
    s.Broker.Publish(sc.ID, SSEEvent{Type: "solve.completed", Data: map[string]any{"scenarioId": sc.ID}})

    deadline := time.Now().Add(500 * time.Millisecond)
    for time.Now().Before(deadline) {
        if rec.contains("event: solve.completed") {
            break
        }
        time.Sleep(10 * time.Millisecond)
    }
    if !rec.contains("event: solve.completed") {
        t.Fatalf("SSE did not contain expected event. Body: %s", rec.body())
    }
    cancel()
    select {
    case <-done:
    case <-time.After(200 * time.Millisecond):
        t.Fatal("handler did not exit after cancel")
    }
}
