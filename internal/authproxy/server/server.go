package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	_ "net/http/pprof"

	"github.com/smolib/backend/supabase"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogecho "github.com/samber/slog-echo"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	Logger         *slog.Logger
	SupabaseURL    string
	SupabaseKey    string
	AllowedOrigins []string

	// MetricsRegistry receives the HTTP metrics collectors. Defaults to the
	// process-wide registry; tests inject their own to avoid duplicate
	// registration.
	MetricsRegistry prometheus.Registerer
}

type Server struct {
	cfg Config
	log *slog.Logger

	echo          *echo.Echo
	metricsServer *http.Server

	// newClient builds the per-request provider client. Swapped out in
	// tests for a scripted implementation.
	newClient func() AuthClient
}

func New(config Config) (*Server, error) {
	if config.SupabaseURL == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if config.SupabaseKey == "" {
		return nil, fmt.Errorf("supabase API key is required")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.MetricsRegistry == nil {
		config.MetricsRegistry = prometheus.DefaultRegisterer
	}

	host := strings.TrimSuffix(config.SupabaseURL, "/")
	key := config.SupabaseKey

	s := &Server{
		cfg: config,
		log: config.Logger,
	}
	s.newClient = func() AuthClient {
		return &supabase.Client{
			Host: host,
			Key:  key,
		}
	}
	return s, nil
}

func (s *Server) router() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(slogecho.New(s.log))
	e.Use(middleware.Recover())
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "authproxy",
		Registerer: s.cfg.MetricsRegistry,
	}))
	// AllowHeaders is left empty so preflight responses mirror whatever
	// headers the request asks for; only the origin list is restricted.
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     s.cfg.AllowedOrigins,
		AllowCredentials: true,
	}))
	e.HTTPErrorHandler = s.errorHandler

	e.GET("/_health", s.handleHealth)

	e.POST("/auth/sign-up", s.handleSignUp)
	e.POST("/auth/sign-in", s.handleSignIn)
	e.POST("/auth/refresh", s.handleRefresh)
	e.GET("/auth/me", s.handleGetUser)
	e.POST("/auth/sign-out", s.handleSignOut)

	return e
}

func (s *Server) Start(addr string) error {
	s.echo = s.router()
	return s.echo.Start(addr)
}

// metricsMux serves the prometheus scrape endpoint plus the pprof handlers
// (registered on the default mux by the blank import above). Built fresh per
// call; nothing is registered globally.
func (s *Server) metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/debug/pprof/", http.DefaultServeMux)
	return mux
}

// RunMetrics serves metrics and pprof on their own listener, away from the
// public API surface.
func (s *Server) RunMetrics(listen string) error {
	s.metricsServer = &http.Server{
		Addr:    listen,
		Handler: s.metricsMux(),
	}
	return s.metricsServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	errs := errgroup.Group{}
	errs.Go(func() error {
		if s.echo == nil {
			return nil
		}
		s.echo.Server.SetKeepAlivesEnabled(false)
		if err := s.echo.Shutdown(ctx); err != nil {
			s.log.Error("error shutting down API server", "error", err)
			return err
		}
		return nil
	})

	errs.Go(func() error {
		if s.metricsServer != nil {
			s.metricsServer.SetKeepAlivesEnabled(false)
			if err := s.metricsServer.Shutdown(ctx); err != nil {
				s.log.Error("error shutting down metrics server", "error", err)
				return err
			}
		}
		return nil
	})

	return errs.Wait()
}

type errorDetail struct {
	Detail string `json:"detail"`
}

// errorHandler is the single place errors become wire responses. Handlers
// return *echo.HTTPError (local validation, mapped provider failures);
// anything else is an internal error.
func (s *Server) errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := "internal server error"

	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	}

	if code >= 500 {
		s.log.Error("handler error", "path", c.Path(), "error", err)
	}

	if !c.Response().Committed {
		if err := c.JSON(code, errorDetail{Detail: msg}); err != nil {
			s.log.Error("failed to write error response", "error", err)
		}
	}
}

type GenericStatus struct {
	Daemon  string `json:"daemon"`
	Status  string `json:"status"`
	Message string `json:"msg,omitempty"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, GenericStatus{Daemon: "authproxy", Status: "ok"})
}
