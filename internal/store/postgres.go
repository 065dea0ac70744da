package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"vrpsolve/internal/model"
)

// Postgres stores datasets, solve history and webhook state in PostgreSQL.
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

// Ping reports connectivity; used by the readiness probe.
func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// MigrateDir applies the .sql files in dir in lexical order. Dev helper;
// production schemas are managed externally.
func (p *Postgres) MigrateDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	files := []string{}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	for _, f := range files {
		sqlBytes, err := os.ReadFile(filepath.Join(dir, f))
		if err != nil {
			return err
		}
		if _, err := p.db.Exec(string(sqlBytes)); err != nil {
			return fmt.Errorf("migration %s: %w", f, err)
		}
	}
	return nil
}

func (p *Postgres) SaveDataset(ctx context.Context, name, content string) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO datasets (name, content, created_at) VALUES ($1,$2,now())
		 ON CONFLICT (name) DO UPDATE SET content = EXCLUDED.content`,
		name, content)
	return err
}

func (p *Postgres) GetDataset(ctx context.Context, name string) (string, error) {
	var content string
	err := p.db.QueryRowContext(ctx, `SELECT content FROM datasets WHERE name=$1`, name).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return content, err
}

func (p *Postgres) ListDatasets(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT name FROM datasets ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	names := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (p *Postgres) DeleteDataset(ctx context.Context, name string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM datasets WHERE name=$1`, name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) SaveSolveRecord(ctx context.Context, rec model.SolveRecord) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO solve_records (job_id, dataset_id, method, status, objective, vehicles_used, total_time, elapsed_ms, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now())`,
		rec.JobID, rec.DatasetID, rec.Method, rec.Status, rec.Objective, rec.NumVehiclesUsed, rec.TotalTime, rec.ElapsedMs)
	return err
}

func (p *Postgres) ListSolveRecords(ctx context.Context, datasetID string, limit int) ([]model.SolveRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT job_id, dataset_id, method, status, objective, vehicles_used, total_time, elapsed_ms, created_at::text
	      FROM solve_records`
	args := []any{}
	if datasetID != "" {
		q += ` WHERE dataset_id=$1`
		args = append(args, datasetID)
	}
	q += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := []model.SolveRecord{}
	for rows.Next() {
		var rec model.SolveRecord
		if err := rows.Scan(&rec.JobID, &rec.DatasetID, &rec.Method, &rec.Status, &rec.Objective,
			&rec.NumVehiclesUsed, &rec.TotalTime, &rec.ElapsedMs, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	sub := model.Subscription{ID: uuid.New().String(), URL: req.URL, Events: req.Events, Secret: req.Secret}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO subscriptions (id, url, events, secret) VALUES ($1,$2,$3,$4)`,
		sub.ID, sub.URL, strings.Join(sub.Events, ","), sub.Secret)
	return sub, err
}

func (p *Postgres) ListSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, url, events FROM subscriptions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := []model.Subscription{}
	for rows.Next() {
		var sub model.Subscription
		var events string
		if err := rows.Scan(&sub.ID, &sub.URL, &events); err != nil {
			return nil, err
		}
		sub.Events = splitEvents(events)
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, url, events, secret FROM subscriptions`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := []model.Subscription{}
	for rows.Next() {
		var sub model.Subscription
		var events string
		if err := rows.Scan(&sub.ID, &sub.URL, &events, &sub.Secret); err != nil {
			return nil, err
		}
		sub.Events = splitEvents(events)
		for _, e := range sub.Events {
			if e == eventType || e == "*" {
				out = append(out, sub)
				break
			}
		}
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteSubscription(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO webhook_deliveries (id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at)
		 VALUES ($1,$2,$3,$4,$5,$6,'pending',0,now())`,
		id, subscriptionID, eventType, url, secret, payload)
	return id, err
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, subscription_id, event_type, url, secret, payload, status, attempts
		 FROM webhook_deliveries
		 WHERE status='pending' AND next_attempt_at <= now()
		 ORDER BY next_attempt_at LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int) error {
	if success {
		_, err := p.db.ExecContext(ctx,
			`UPDATE webhook_deliveries SET status='delivered', attempts=attempts+1, last_error=$2, response_code=$3, delivered_at=now() WHERE id=$1`,
			id, lastError, responseCode)
		return err
	}
	if nextAttemptAt != nil {
		_, err := p.db.ExecContext(ctx,
			`UPDATE webhook_deliveries SET attempts=attempts+1, last_error=$2, response_code=$3, next_attempt_at=$4 WHERE id=$1`,
			id, lastError, responseCode, *nextAttemptAt)
		return err
	}
	_, err := p.db.ExecContext(ctx,
		`UPDATE webhook_deliveries SET status='failed', attempts=attempts+1, last_error=$2, response_code=$3 WHERE id=$1`,
		id, lastError, responseCode)
	return err
}

func splitEvents(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
