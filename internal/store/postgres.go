package store

import (
    "context"
    "database/sql"
    "encoding/json"
    "errors"
    "os"
    "path/filepath"
    "sort"
    "strings"
    "time"

    "github.com/google/uuid"
    _ "github.com/jackc/pgx/v5/stdlib"

    "siteopt/internal/model"
)

type Postgres struct {
    db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
    db, err := sql.Open("pgx", dsn)
    if err != nil {
        return nil, err
    }
    if err := db.Ping(); err != nil {
        return nil, err
    }
    return &Postgres{db: db}, nil
}

// MigrateDir applies *.sql files from dir in lexical order (dev helper).
func (p *Postgres) MigrateDir(dir string) error {
    entries, err := os.ReadDir(dir)
    if err != nil { return err }
    names := []string{}
    for _, e := range entries {
        if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") { names = append(names, e.Name()) }
    }
    sort.Strings(names)
    for _, n := range names {
        b, err := os.ReadFile(filepath.Join(dir, n))
        if err != nil { return err }
        if _, err := p.db.Exec(string(b)); err != nil { return err }
    }
    return nil
}

func (p *Postgres) CreateScenario(ctx context.Context, tenantID string, in model.ScenarioIn) (model.Scenario, error) {
    id := uuid.New()
    places, _ := json.Marshal(in.Places)
    streets, _ := json.Marshal(in.Streets)
    _, err := p.db.ExecContext(ctx,
        `INSERT INTO scenarios (id, tenant_id, name, origin_lng, origin_lat, places, streets) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
        id, tenantID, nullIfEmpty(in.Name), in.Origin.Lng, in.Origin.Lat, places, streets)
    if err != nil { return model.Scenario{}, err }
    return model.Scenario{ID: id.String(), TenantID: tenantID, Name: in.Name, Origin: in.Origin, Places: in.Places, Streets: in.Streets}, nil
}

func (p *Postgres) GetScenario(ctx context.Context, tenantID, id string) (model.Scenario, error) {
    row := p.db.QueryRowContext(ctx,
        `SELECT id::text, name, origin_lng, origin_lat, places, streets FROM scenarios WHERE tenant_id=$1 AND id=$2`, tenantID, id)
    return scanScenario(row, tenantID)
}

func (p *Postgres) ListScenarios(ctx context.Context, tenantID, cursor string, limit int) ([]model.Scenario, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    var rows *sql.Rows
    var err error
    if cursor != "" {
        rows, err = p.db.QueryContext(ctx,
            `SELECT id::text, name, origin_lng, origin_lat, places, streets FROM scenarios WHERE tenant_id=$1 AND id::text > $2 ORDER BY id LIMIT $3`,
            tenantID, cursor, limit)
    } else {
        rows, err = p.db.QueryContext(ctx,
            `SELECT id::text, name, origin_lng, origin_lat, places, streets FROM scenarios WHERE tenant_id=$1 ORDER BY id LIMIT $2`,
            tenantID, limit)
    }
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []model.Scenario{}
    var last string
    for rows.Next() {
        sc, err := scanScenario(rows, tenantID)
        if err != nil { return nil, "", err }
        out = append(out, sc)
        last = sc.ID
    }
    var next string
    if len(out) == limit { next = last }
    return out, next, nil
}

func (p *Postgres) DeleteScenario(ctx context.Context, tenantID, id string) error {
    res, err := p.db.ExecContext(ctx, `DELETE FROM scenarios WHERE tenant_id=$1 AND id=$2`, tenantID, id)
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return nil
}

func (p *Postgres) SaveSolve(ctx context.Context, sv model.Solve) (model.Solve, error) {
    if sv.ID == "" { sv.ID = uuid.New().String() }
    if sv.CreatedAt == "" { sv.CreatedAt = time.Now().UTC().Format(time.RFC3339) }
    var lambda any
    if sv.Lambda != nil { lambda = *sv.Lambda }
    _, err := p.db.ExecContext(ctx,
        `INSERT INTO solves (id, tenant_id, scenario_id, mode, street, local_x, local_y, lng, lat, lambda, objective, created_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
        sv.ID, sv.TenantID, sv.ScenarioID, sv.Mode, nullIfEmpty(sv.Street),
        sv.Local.X, sv.Local.Y, sv.Location.Lng, sv.Location.Lat, lambda, sv.Objective, sv.CreatedAt)
    if err != nil { return model.Solve{}, err }
    return sv, nil
}

func (p *Postgres) GetSolve(ctx context.Context, tenantID, id string) (model.Solve, error) {
    row := p.db.QueryRowContext(ctx,
        `SELECT id::text, scenario_id::text, mode, street, local_x, local_y, lng, lat, lambda, objective, created_at FROM solves WHERE tenant_id=$1 AND id=$2`,
        tenantID, id)
    return scanSolve(row, tenantID)
}

func (p *Postgres) ListSolves(ctx context.Context, tenantID, scenarioID, cursor string, limit int) ([]model.Solve, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    var rows *sql.Rows
    var err error
    if cursor != "" {
        rows, err = p.db.QueryContext(ctx,
            `SELECT id::text, scenario_id::text, mode, street, local_x, local_y, lng, lat, lambda, objective, created_at
             FROM solves WHERE tenant_id=$1 AND scenario_id=$2 AND id::text > $3 ORDER BY id LIMIT $4`,
            tenantID, scenarioID, cursor, limit)
    } else {
        rows, err = p.db.QueryContext(ctx,
            `SELECT id::text, scenario_id::text, mode, street, local_x, local_y, lng, lat, lambda, objective, created_at
             FROM solves WHERE tenant_id=$1 AND scenario_id=$2 ORDER BY id LIMIT $3`,
            tenantID, scenarioID, limit)
    }
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []model.Solve{}
    var last string
    for rows.Next() {
        sv, err := scanSolve(rows, tenantID)
        if err != nil { return nil, "", err }
        out = append(out, sv)
        last = sv.ID
    }
    var next string
    if len(out) == limit { next = last }
    return out, next, nil
}

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
    id := uuid.New()
    events, _ := json.Marshal(req.Events)
    _, err := p.db.ExecContext(ctx,
        `INSERT INTO subscriptions (id, tenant_id, url, events, secret) VALUES ($1,$2,$3,$4,$5)`,
        id, req.TenantID, req.URL, events, req.Secret)
    if err != nil { return model.Subscription{}, err }
    return model.Subscription{ID: id.String(), TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
    rows, err := p.db.QueryContext(ctx,
        `SELECT id::text, url, events, secret FROM subscriptions WHERE tenant_id=$1`, tenantID)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []model.Subscription
    for rows.Next() {
        var s model.Subscription
        var events []byte
        if err := rows.Scan(&s.ID, &s.URL, &events, &s.Secret); err != nil { return nil, err }
        s.TenantID = tenantID
        _ = json.Unmarshal(events, &s.Events)
        for _, e := range s.Events {
            if e == eventType { out = append(out, s); break }
        }
    }
    return out, nil
}

func (p *Postgres) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    var rows *sql.Rows
    var err error
    if cursor != "" {
        rows, err = p.db.QueryContext(ctx,
            `SELECT id::text, url, events, secret FROM subscriptions WHERE tenant_id=$1 AND id::text > $2 ORDER BY id LIMIT $3`,
            tenantID, cursor, limit)
    } else {
        rows, err = p.db.QueryContext(ctx,
            `SELECT id::text, url, events, secret FROM subscriptions WHERE tenant_id=$1 ORDER BY id LIMIT $2`,
            tenantID, limit)
    }
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []model.Subscription{}
    var last string
    for rows.Next() {
        var s model.Subscription
        var events []byte
        if err := rows.Scan(&s.ID, &s.URL, &events, &s.Secret); err != nil { return nil, "", err }
        s.TenantID = tenantID
        _ = json.Unmarshal(events, &s.Events)
        out = append(out, s)
        last = s.ID
    }
    var next string
    if len(out) == limit { next = last }
    return out, next, nil
}

func (p *Postgres) DeleteSubscription(ctx context.Context, tenantID, id string) error {
    res, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE tenant_id=$1 AND id=$2`, tenantID, id)
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return nil
}

func (p *Postgres) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
    id := uuid.New()
    _, err := p.db.ExecContext(ctx,
        `INSERT INTO webhook_deliveries (id, tenant_id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,'pending',0,now())`,
        id, tenantID, subscriptionID, eventType, url, secret, payload)
    if err != nil { return "", err }
    return id.String(), nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
    if limit <= 0 { limit = 50 }
    rows, err := p.db.QueryContext(ctx,
        `SELECT id::text, tenant_id, event_type, url, secret, payload, attempts FROM webhook_deliveries
         WHERE status='pending' AND next_attempt_at <= now() ORDER BY next_attempt_at LIMIT $1`, limit)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []WebhookDelivery
    for rows.Next() {
        var d WebhookDelivery
        if err := rows.Scan(&d.ID, &d.TenantID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Attempts); err != nil { return nil, err }
        d.Status = "pending"
        out = append(out, d)
    }
    return out, nil
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
    if success {
        _, err := p.db.ExecContext(ctx,
            `UPDATE webhook_deliveries SET status='delivered', attempts=attempts+1, last_error=$2, response_code=$3, latency_ms=$4, delivered_at=now() WHERE id=$1`,
            id, nullIfEmpty(lastError), responseCode, latencyMs)
        return err
    }
    var next any
    if nextAttemptAt != nil { next = *nextAttemptAt }
    _, err := p.db.ExecContext(ctx,
        `UPDATE webhook_deliveries SET attempts=attempts+1, last_error=$2, response_code=$3, latency_ms=$4, next_attempt_at=$5 WHERE id=$1`,
        id, nullIfEmpty(lastError), responseCode, latencyMs, next)
    return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
    _, err := p.db.ExecContext(ctx,
        `UPDATE webhook_deliveries SET status='failed', attempts=attempts+1, last_error=$2, response_code=$3, latency_ms=$4 WHERE id=$1`,
        id, nullIfEmpty(lastError), responseCode, latencyMs)
    return err
}

type scanner interface{ Scan(dest ...any) error }

func scanScenario(row scanner, tenantID string) (model.Scenario, error) {
    var sc model.Scenario
    var name sql.NullString
    var places, streets []byte
    if err := row.Scan(&sc.ID, &name, &sc.Origin.Lng, &sc.Origin.Lat, &places, &streets); err != nil {
        if errors.Is(err, sql.ErrNoRows) { return model.Scenario{}, ErrNotFound }
        return model.Scenario{}, err
    }
    sc.TenantID = tenantID
    sc.Name = name.String
    _ = json.Unmarshal(places, &sc.Places)
    _ = json.Unmarshal(streets, &sc.Streets)
    return sc, nil
}

func scanSolve(row scanner, tenantID string) (model.Solve, error) {
    var sv model.Solve
    var street sql.NullString
    var lambda sql.NullFloat64
    if err := row.Scan(&sv.ID, &sv.ScenarioID, &sv.Mode, &street, &sv.Local.X, &sv.Local.Y,
        &sv.Location.Lng, &sv.Location.Lat, &lambda, &sv.Objective, &sv.CreatedAt); err != nil {
        if errors.Is(err, sql.ErrNoRows) { return model.Solve{}, ErrNotFound }
        return model.Solve{}, err
    }
    sv.TenantID = tenantID
    sv.Street = street.String
    if lambda.Valid { v := lambda.Float64; sv.Lambda = &v }
    return sv, nil
}

func nullIfEmpty(s string) any {
    if s == "" { return nil }
    return s
}
