package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/tendant/simple-filestore/pkg/filestore"
	"github.com/tendant/simple-filestore/pkg/filestore/api"
	"github.com/tendant/simple-filestore/pkg/filestore/config"
	"github.com/tendant/simple-filestore/pkg/filestore/metrics"
)

func main() {
	usage := flag.Bool("env-help", false, "print the environment variables the server reads and exit")
	flag.Parse()
	if *usage {
		text, err := config.Usage()
		if err != nil {
			slog.Error("Failed to describe configuration", "error", err)
			os.Exit(1)
		}
		fmt.Println(text)
		return
	}

	serverConfig, err := config.Load()
	if err != nil {
		slog.Error("Failed to load server configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(serverConfig)
	slog.SetDefault(logger)

	var m *metrics.Metrics
	var extra []filestore.Option
	if serverConfig.EnableMetrics {
		m = metrics.New()
		extra = append(extra, filestore.WithEventSink(m))
	}

	svc, cleanup, err := serverConfig.BuildService(context.Background(), logger, extra...)
	if err != nil {
		slog.Error("Failed to build service", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	server := NewHTTPServer(svc, serverConfig, m, logger)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", serverConfig.Port),
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("File store server starting",
			"port", serverConfig.Port,
			"environment", serverConfig.Environment,
			"database", serverConfig.DatabaseType,
			"storage", serverConfig.StorageType,
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server exiting")
}

func newLogger(cfg *config.ServerConfig) *slog.Logger {
	level, _ := cfg.SlogLevel()
	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// HTTPServer wires the file store service into an HTTP router
type HTTPServer struct {
	service filestore.Service
	config  *config.ServerConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewHTTPServer creates a new HTTP server wrapper. m may be nil.
func NewHTTPServer(service filestore.Service, serverConfig *config.ServerConfig, m *metrics.Metrics, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPServer{
		service: service,
		config:  serverConfig,
		metrics: m,
		logger:  logger,
	}
}

// Routes sets up the HTTP routes
func (s *HTTPServer) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(api.RequestLogger(s.logger))
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.With(api.RequestSizeLimit(s.config.MaxUploadBytes)).
			Mount("/files", api.NewFilesHandler(s.service).Routes())
	})

	return r
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{
		"status":      "healthy",
		"environment": s.config.Environment,
		"database":    s.config.DatabaseType,
		"storage":     s.config.StorageType,
	})
}
