package store

import (
	"context"
	"errors"
	"time"

	"vrpsolve/internal/model"
)

// Store is the persistence interface used by the API server: benchmark
// datasets, solve history, and webhook subscription/delivery state.
type Store interface {
	// Datasets
	SaveDataset(ctx context.Context, name, content string) error
	GetDataset(ctx context.Context, name string) (string, error)
	ListDatasets(ctx context.Context) ([]string, error)
	DeleteDataset(ctx context.Context, name string) error

	// Solve history
	SaveSolveRecord(ctx context.Context, rec model.SolveRecord) error
	ListSolveRecords(ctx context.Context, datasetID string, limit int) ([]model.SolveRecord, error)

	// Webhook subscriptions
	CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
	ListSubscriptions(ctx context.Context) ([]model.Subscription, error)
	GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error)
	DeleteSubscription(ctx context.Context, id string) error

	// Webhook deliveries
	EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int) error
}

// WebhookDelivery is one pending or completed webhook attempt.
type WebhookDelivery struct {
	ID             string
	SubscriptionID string
	EventType      string
	URL            string
	Secret         string
	Payload        []byte
	Status         string
	Attempts       int
}

// ErrNotFound marks an unknown dataset or subscription identifier.
var ErrNotFound = errors.New("not found")
