package main

import (
	"bufio"
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vrpsolve/internal/api"
	"vrpsolve/internal/config"
	"vrpsolve/internal/metrics"
	"vrpsolve/internal/store"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	srvDeps, err := api.NewServer(cfg)
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	if cfg.DataDir != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if n, err := store.SeedDatasets(ctx, srvDeps.Store, cfg.DataDir); err != nil {
			log.Printf("dataset seed: %v", err)
		} else if n > 0 {
			log.Printf("seeded %d datasets from %s", n, cfg.DataDir)
		}
		cancel()
	}

	metrics.RegisterDefault()

	mux := http.NewServeMux()

	// Optimization
	mux.HandleFunc("/v1/solve", srvDeps.SolveHandler)
	mux.HandleFunc("/v1/solves", srvDeps.SolveRecordsHandler)
	mux.HandleFunc("/v1/solves/", srvDeps.SolveByIDHandler) // includes /events/stream

	// Datasets
	mux.HandleFunc("/v1/datasets", srvDeps.DatasetsHandler)
	mux.HandleFunc("/v1/datasets/", srvDeps.DatasetByIDHandler)

	// Webhook subscriptions
	mux.HandleFunc("/v1/subscriptions", srvDeps.SubscriptionsHandler)
	mux.HandleFunc("/v1/subscriptions/", srvDeps.SubscriptionByIDHandler)

	// Progress over WebSocket
	mux.HandleFunc("/v1/ws", srvDeps.WSHandler)

	// Health, metrics, version
	mux.HandleFunc("/healthz", srvDeps.HealthHandler)
	mux.HandleFunc("/readyz", srvDeps.ReadyHandler)
	mux.HandleFunc("/version", srvDeps.VersionHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	addr := ":" + cfg.Port

	handler := api.RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst, mux)
	srv := &http.Server{
		Addr:              addr,
		Handler:           logMiddleware(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("API listening on %s", addr)
	worker := srvDeps.NewWebhookWorker()
	worker.Start()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		dur := time.Since(start)
		status := strconv.Itoa(rec.status)
		route := metricsPath(r.URL.Path)
		metrics.HTTPRequests.WithLabelValues(r.Method, route, status).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, route, status).Observe(dur.Seconds())
		log.Printf("%s %s %s %d %v", r.RemoteAddr, r.Method, r.URL.Path, rec.status, dur)
	})
}

// metricsPath collapses request paths to their route patterns so the metric
// label set stays bounded.
func metricsPath(p string) string {
	switch {
	case strings.HasPrefix(p, "/v1/solves/"):
		if strings.HasSuffix(p, "/events/stream") {
			return "/v1/solves/{id}/events/stream"
		}
		return "/v1/solves/{id}"
	case strings.HasPrefix(p, "/v1/datasets/"):
		return "/v1/datasets/{name}"
	case strings.HasPrefix(p, "/v1/subscriptions/"):
		return "/v1/subscriptions/{id}"
	}
	switch p {
	case "/v1/solve", "/v1/solves", "/v1/datasets", "/v1/subscriptions",
		"/v1/ws", "/healthz", "/readyz", "/version", "/metrics":
		return p
	}
	return "other"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := r.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijack not supported")
}
