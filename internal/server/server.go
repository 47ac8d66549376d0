package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/reqforge/apiserver/config"
	"github.com/reqforge/apiserver/internal/ai"
	"github.com/reqforge/apiserver/internal/db"
	"github.com/reqforge/apiserver/internal/events"
	"github.com/reqforge/apiserver/internal/handlers"
	"github.com/reqforge/apiserver/internal/logging"
	"github.com/reqforge/apiserver/internal/mail"
	"github.com/reqforge/apiserver/internal/services"
	"github.com/reqforge/apiserver/internal/session"
	"github.com/reqforge/apiserver/internal/storage"
	"github.com/reqforge/apiserver/internal/store"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	bus        *events.Bus
}

// New constructs a Server with its full dependency graph.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	log := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	sessions, err := session.NewCodec(cfg.Session.Secret, cfg.IsProduction())
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	projectRepo := store.NewProjectRepository(dbConn)

	mailer := newMailer(ctx, cfg, log)
	generator := newGenerator(ctx, cfg, log)

	bus, publisher, err := newEventBus(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	authService := services.NewAuthService(userRepo, mailer, log, cfg.AppBaseURL)
	projectService := services.NewProjectService(projectRepo, generator, publisher, log)

	exportService, err := newExportService(ctx, cfg, projectRepo, publisher, log)
	if err != nil {
		_ = dbConn.Close()
		if bus != nil {
			_ = bus.Close()
		}
		return nil, err
	}

	authHandler := handlers.NewAuthHandler(authService, sessions, log)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	handlers.AuthRouter(router, authService, sessions, log)
	router.Group(func(r chi.Router) {
		handlers.ProjectRouter(r, projectService, exportService, authHandler.RequireSession, log)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		bus:        bus,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.bus != nil {
		_ = s.bus.Close()
	}
	return s.httpServer.Close()
}

func newMailer(ctx context.Context, cfg config.Config, log logging.Logger) mail.Mailer {
	if cfg.IsProduction() || cfg.SMTP.Host != "" {
		return mail.NewSMTPMailer(cfg.SMTP)
	}
	log.Warn(ctx, "SMTP_HOST is not set, password reset links are logged instead of emailed")
	return mail.NewLogMailer(log)
}

func newGenerator(ctx context.Context, cfg config.Config, log logging.Logger) ai.Generator {
	generator, err := ai.NewOpenAIGenerator(cfg.OpenAI)
	if err != nil {
		log.Warn(ctx, "OPENAI_API_KEY is not set, generation requests will fail")
		return ai.Unconfigured{}
	}
	return generator
}

func newEventBus(ctx context.Context, cfg config.Config) (*events.Bus, events.Publisher, error) {
	switch cfg.MQ.Backend {
	case "rabbitmq":
		backend, err := events.NewRabbitMQBackend(cfg.RabbitMQ)
		if err != nil {
			return nil, nil, err
		}
		bus := events.NewBus(backend)
		return bus, bus, nil
	case "pubsub":
		backend, err := events.NewPubSubBackend(ctx, cfg.PubSub)
		if err != nil {
			return nil, nil, err
		}
		bus := events.NewBus(backend)
		return bus, bus, nil
	case "":
		return nil, events.NoopPublisher{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown MQ_BACKEND %q", cfg.MQ.Backend)
	}
}

func newExportService(
	ctx context.Context,
	cfg config.Config,
	projects *store.ProjectRepository,
	publisher events.Publisher,
	log logging.Logger,
) (*services.ExportService, error) {
	var objects storage.ObjectStorage
	switch cfg.Storage.Backend {
	case "minio":
		client, err := storage.NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		objects = client
	case "gcs":
		client, err := storage.NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		objects = client
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.Storage.Backend)
	}

	if err := objects.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return services.NewExportService(projects, objects, publisher, log), nil
}
