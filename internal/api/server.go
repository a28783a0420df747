package api

import (
	"bulkq/internal/config"
	"bulkq/internal/domain"
	"bulkq/internal/infra/redisq"
	"bulkq/internal/infra/storage"
	"bulkq/internal/media"
	"bulkq/internal/ports"
	"bulkq/internal/usecase"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type quotaGate interface {
	Reserve(ctx context.Context, userID string, n int) error
	Release(ctx context.Context, userID string, n int) error
}

// Deps are the collaborators a Server drives.
type Deps struct {
	Store     *usecase.Store
	Runner    *usecase.Runner
	Bus       *usecase.Bus
	Quota     quotaGate
	Processor ports.Processor
	HTTP      config.HTTP
}

type Server struct {
	router *chi.Mux
	deps   Deps

	// background runs outlive the request that started them
	runCtx    context.Context
	cancelRun context.CancelFunc
	runs      sync.WaitGroup

	closers []func() error
}

// NewServer wires the production dependencies: Redis for progress fan-out
// and quota counting, the configured object storage, and the media processor.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	cli := redisq.New(cfg.Redis)
	if err := cli.Connect(ctx); err != nil {
		return nil, err
	}

	var out ports.ObjectStorage
	switch cfg.Storage.Driver {
	case "minio":
		m, err := storage.NewMinIO(ctx, cfg.Storage.Endpoint, cfg.Storage.AccessKey, cfg.Storage.SecretKey, cfg.Storage.Bucket, cfg.Storage.UseSSL)
		if err != nil {
			_ = cli.Close()
			return nil, err
		}
		out = m
	case "file", "":
		out = storage.NewFile(cfg.Storage.BaseDir)
	default:
		_ = cli.Close()
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	store := usecase.NewStore()
	bus := usecase.NewBus()
	bus.SubscribeAll(usecase.NotifyListener(cli))

	s := newServer(Deps{
		Store:  store,
		Runner: usecase.NewRunner(store, bus),
		Bus:    bus,
		Quota: usecase.QuotaGate{
			Counter:  cli,
			Limit:    cfg.Quota.Limit,
			MaxBatch: cfg.Quota.MaxBatch,
			Window:   cfg.Quota.Window,
		},
		Processor: media.New(out, cfg.Media),
		HTTP:      cfg.HTTP,
	})
	s.closers = append(s.closers, cli.Close)
	return s, nil
}

func newServer(deps Deps) *Server {
	s := &Server{deps: deps}
	s.runCtx, s.cancelRun = context.WithCancel(context.Background())
	s.router = s.routes()
	return s
}

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/users/{userID}/queue", func(r chi.Router) {
		r.Get("/", s.getQueue)
		r.Post("/", s.enqueue)
		r.Delete("/", s.clearQueue)
		r.Post("/start", s.startQueue)
		r.Post("/pause", s.pauseQueue)
		r.Post("/resume", s.resumeQueue)
		r.Post("/cancel", s.cancelQueue)
		r.Get("/events", s.events)
	})
	return r
}

func (s *Server) Handler() http.Handler {
	return chainMiddleware(
		s.router,
		recoverHandler,
		realIPHandler,
		requestIDHandler,
		loggerHandler(func(w http.ResponseWriter, r *http.Request) bool { return r.URL.Path == "/healthz" }),
		corsHandler,
	)
}

// start processes the user's queue in the background.
func (s *Server) start(userID string) {
	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		_, err := s.deps.Runner.ProcessQueue(s.runCtx, userID)
		switch {
		case err == nil, errors.Is(err, context.Canceled):
		case errors.Is(err, usecase.ErrAlreadyRunning):
			log.Debug().Str("user", userID).Msg("queue already running")
		default:
			log.Error().Err(err).Str("user", userID).Msg("queue run failed")
		}
	}()
}

func active(status domain.QueueStatus) bool {
	return status == domain.QueueRunning || status == domain.QueuePaused
}

// Shutdown stops background runs and releases connections.
func (s *Server) Shutdown(timeout time.Duration) {
	s.cancelRun()

	done := make(chan struct{})
	go func() {
		s.runs.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		log.Warn().Msg("background runs did not stop in time")
	}

	for _, c := range s.closers {
		if err := c(); err != nil {
			log.Error().Err(err).Msg("close failed")
		}
	}
}

// Run method of the Server struct runs the HTTP server on the specified port
// and blocks until SIGINT/SIGTERM, then shuts down gracefully.
func (s *Server) Run(port int) {
	addr := fmt.Sprintf(":%d", port)

	httpServer := http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.deps.HTTP.ReadTimeout,
		WriteTimeout: s.deps.HTTP.WriteTimeout,
	}

	shutdownTimeout := s.deps.HTTP.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}

	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("Server is shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		s.Shutdown(shutdownTimeout)

		close(done)
	}()

	log.Info().Msgf("server serving on port %d", port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("Failed to listen and serve")
	}

	<-done
	log.Info().Msg("Server stopped")
}
