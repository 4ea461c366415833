package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/opiumfinance/lprewards/rewards/pkg/distribution"
	"github.com/opiumfinance/lprewards/rewards/pkg/metrics"
)

type Server struct {
	log     *slog.Logger
	cfg     Config
	limiter *RateLimiter
	router  chi.Router
	httpSrv *http.Server
}

func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		log: cfg.Logger,
		cfg: cfg,
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.healthzHandler)
	r.Get("/readyz", s.readyzHandler)
	r.Get("/version", s.versionHandler)

	r.Group(func(r chi.Router) {
		if cfg.RateLimit > 0 {
			s.limiter = NewRateLimiter(cfg.RateLimit, cfg.RateBurst)
			r.Use(s.limiter.Middleware)
		}
		r.Get("/users", s.usersHandler)
		r.Get("/users/{id}", s.userHandler)
		r.Get("/summary", s.summaryHandler)
	})
	s.router = r

	s.httpSrv = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	return s, nil
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(ctx context.Context) error {
	if s.limiter != nil {
		go s.limiter.Run(ctx)
	}

	serveErrCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("server: http server error", "error", err)
			serveErrCh <- fmt.Errorf("failed to listen and serve: %w", err)
		}
	}()

	s.log.Info("server: http listening", "address", s.cfg.ListenAddr)

	select {
	case <-ctx.Done():
		s.log.Info("server: stopping", "reason", ctx.Err(), "address", s.cfg.ListenAddr)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer shutdownCancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
		s.log.Info("server: http server shutdown complete")
		return nil
	case err := <-serveErrCh:
		return err
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("server: failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok\n")); err != nil {
		s.log.Error("failed to write healthz response", "error", err)
	}
}

func (s *Server) readyzHandler(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.View.Ready() {
		s.log.Debug("readyz: rewards view not ready")
		w.WriteHeader(http.StatusServiceUnavailable)
		if _, err := w.Write([]byte("rewards not ready\n")); err != nil {
			s.log.Error("failed to write readyz response", "error", err)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok\n")); err != nil {
		s.log.Error("failed to write readyz response", "error", err)
	}
}

func (s *Server) versionHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.cfg.VersionInfo)
}

// usersHandler lists every user in address order. limit and offset are optional;
// X-Total-Count carries the unpaged count.
func (s *Server) usersHandler(w http.ResponseWriter, r *http.Request) {
	res := s.cfg.View.Current()
	if res == nil {
		s.writeError(w, http.StatusServiceUnavailable, "rewards not computed yet")
		return
	}

	page, err := parsePagination(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	users := res.Total.Users()
	w.Header().Set("X-Total-Count", strconv.Itoa(len(users)))
	s.writeJSON(w, http.StatusOK, page.apply(users))
}

func (s *Server) userHandler(w http.ResponseWriter, r *http.Request) {
	res := s.cfg.View.Current()
	if res == nil {
		s.writeError(w, http.StatusServiceUnavailable, "rewards not computed yet")
		return
	}

	addr, err := distribution.ParseAddress(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, ok := res.Total.User(addr.String())
	if !ok {
		s.writeError(w, http.StatusNotFound, "user not found")
		return
	}
	s.writeJSON(w, http.StatusOK, user)
}

func (s *Server) summaryHandler(w http.ResponseWriter, r *http.Request) {
	res := s.cfg.View.Current()
	if res == nil {
		s.writeError(w, http.StatusServiceUnavailable, "rewards not computed yet")
		return
	}
	s.writeJSON(w, http.StatusOK, res.Summary())
}
