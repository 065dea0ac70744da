package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"vrpsolve/internal/model"
)

// Memory is the in-memory store used when no DATABASE_URL is set and by
// tests.
type Memory struct {
	mu         sync.Mutex
	datasets   map[string]string
	records    []model.SolveRecord
	subs       map[string]model.Subscription
	deliveries map[string]*memDelivery
	order      []string
}

type memDelivery struct {
	WebhookDelivery
	NextAttemptAt time.Time
	LastError     string
	ResponseCode  int
}

func NewMemory() *Memory {
	return &Memory{
		datasets:   map[string]string{},
		subs:       map[string]model.Subscription{},
		deliveries: map[string]*memDelivery{},
	}
}

func (m *Memory) SaveDataset(ctx context.Context, name, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.datasets[name] = content
	return nil
}

func (m *Memory) GetDataset(ctx context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.datasets[name]
	if !ok {
		return "", ErrNotFound
	}
	return c, nil
}

func (m *Memory) ListDatasets(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.datasets))
	for n := range m.datasets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (m *Memory) DeleteDataset(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.datasets[name]; !ok {
		return ErrNotFound
	}
	delete(m.datasets, name)
	return nil
}

func (m *Memory) SaveSolveRecord(ctx context.Context, rec model.SolveRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *Memory) ListSolveRecords(ctx context.Context, datasetID string, limit int) ([]model.SolveRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	out := []model.SolveRecord{}
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		if datasetID == "" || m.records[i].DatasetID == datasetID {
			out = append(out, m.records[i])
		}
	}
	return out, nil
}

func (m *Memory) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub := model.Subscription{ID: uuid.New().String(), URL: req.URL, Events: req.Events, Secret: req.Secret}
	m.subs[sub.ID] = sub
	m.order = append(m.order, sub.ID)
	return sub, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Subscription{}
	for _, id := range m.order {
		if sub, ok := m.subs[id]; ok {
			sub.Secret = ""
			out = append(out, sub)
		}
	}
	return out, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Subscription{}
	for _, id := range m.order {
		sub, ok := m.subs[id]
		if !ok {
			continue
		}
		for _, e := range sub.Events {
			if e == eventType || e == "*" {
				out = append(out, sub)
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[id]; !ok {
		return ErrNotFound
	}
	delete(m.subs, id)
	return nil
}

func (m *Memory) EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	m.deliveries[id] = &memDelivery{WebhookDelivery: WebhookDelivery{
		ID:             id,
		SubscriptionID: subscriptionID,
		EventType:      eventType,
		URL:            url,
		Secret:         secret,
		Payload:        payload,
		Status:         "pending",
	}}
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	out := []WebhookDelivery{}
	for _, d := range m.deliveries {
		if d.Status != "pending" || d.NextAttemptAt.After(now) {
			continue
		}
		out = append(out, d.WebhookDelivery)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return ErrNotFound
	}
	d.Attempts++
	d.LastError = lastError
	d.ResponseCode = responseCode
	if success {
		d.Status = "delivered"
	} else if nextAttemptAt != nil {
		d.NextAttemptAt = *nextAttemptAt
	} else {
		d.Status = "failed"
	}
	return nil
}
