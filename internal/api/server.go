package api

import (
	"log"
	"strings"

	"vrpsolve/internal/auth"
	"vrpsolve/internal/config"
	"vrpsolve/internal/store"
	"vrpsolve/internal/webhooks"
)

type Server struct {
	Store    store.Store
	Pub      *webhooks.Publisher
	Auth     *auth.Verifier
	Broker   EventBroker
	Progress *ProgressCache
	Cfg      config.Config
}

// NewServer creates a Server. If the database URL is unset, uses the
// in-memory store.
func NewServer(cfg config.Config) (*Server, error) {
	var s store.Store
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		// dev helper; production schemas are managed externally
		if cfg.MigrateDir != "" {
			if err := sp.MigrateDir(cfg.MigrateDir); err != nil {
				log.Printf("migrations: %v", err)
			}
		}
		s = sp
	}
	var broker EventBroker
	if cfg.RedisURL != "" {
		if rb, err := NewRedisBroker(cfg.RedisURL); err == nil {
			broker = rb
		} else {
			log.Printf("redis broker unavailable, using in-memory: %v", err)
			broker = NewBroker()
		}
	} else {
		broker = NewBroker()
	}
	return &Server{
		Store:    s,
		Pub:      webhooks.NewPublisher(s),
		Auth:     auth.NewVerifierFromEnv(),
		Broker:   broker,
		Progress: NewProgressCache(),
		Cfg:      cfg,
	}, nil
}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store)
}
