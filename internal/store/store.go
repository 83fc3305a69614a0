package store

import (
    "context"
    "errors"
    "time"

    "siteopt/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
    // Scenarios
    CreateScenario(ctx context.Context, tenantID string, in model.ScenarioIn) (model.Scenario, error)
    GetScenario(ctx context.Context, tenantID, id string) (model.Scenario, error)
    ListScenarios(ctx context.Context, tenantID, cursor string, limit int) ([]model.Scenario, string, error)
    DeleteScenario(ctx context.Context, tenantID, id string) error

    // Solves
    SaveSolve(ctx context.Context, sv model.Solve) (model.Solve, error)
    GetSolve(ctx context.Context, tenantID, id string) (model.Solve, error)
    ListSolves(ctx context.Context, tenantID, scenarioID, cursor string, limit int) ([]model.Solve, string, error)

    // Subscriptions
    CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
    GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error)
    ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error)
    DeleteSubscription(ctx context.Context, tenantID, id string) error

    // Webhook deliveries
    EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
    FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
    MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
    FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
}

// WebhookDelivery is a queued outbound delivery.
type WebhookDelivery struct {
    ID        string
    TenantID  string
    EventType string
    URL       string
    Secret    string
    Payload   []byte
    Attempts  int
    Status    string // pending, delivered, failed
}

var ErrNotFound = errors.New("not found")
