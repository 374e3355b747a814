// Package server wires the todo page and its RPC API into an HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/a-h/templ"

	"github.com/broady/todoform/internal/config"
	"github.com/broady/todoform/internal/form"
	"github.com/broady/todoform/internal/middleware"
	"github.com/broady/todoform/internal/page"
	"github.com/broady/todoform/internal/rpc"
	"github.com/broady/todoform/internal/view"
	"github.com/broady/todoform/static"
)

// Server serves one todo page.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	page   *page.View
	api    *rpc.App
	mux    *http.ServeMux
}

// New builds a server from cfg.
func New(cfg *config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	pcfg := page.Config{
		Head: view.Head{Title: cfg.Page.Title, Description: cfg.Page.Description},
		Form: form.Options{
			RequireNonEmpty: cfg.Form.RequireNonEmpty,
			MaxLength:       cfg.Form.MaxLength,
		},
		Logger: logger,
	}
	if cfg.Form.ServerAction {
		pcfg.Action = form.LogSubmitter{Logger: logger.With(slog.String("component", "form-action"))}
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
		page:   page.New(pcfg),
		mux:    http.NewServeMux(),
	}

	s.api = rpc.NewApp().
		WithLogger(logger).
		WithErrorTransformer(transformError).
		WithUnaryInterceptor(middleware.LoggingInterceptor(logger)).
		WithMiddleware(middleware.CORS(middleware.CORSConfig{AllowOrigins: cfg.API.CORSOrigins})).
		WithMaxRequestBodySize(cfg.API.MaxRequestBodySize).
		WithStreamHeartbeat(cfg.API.StreamHeartbeat)
	if cfg.API.MaskInternalErrors {
		s.api.WithMaskInternalErrors()
	}
	(&api{page: s.page}).register(s.api)

	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /tasks", s.handleSubmit)
	s.mux.HandleFunc("POST /tasks/{id}/toggle", s.handleToggle)
	s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static.FS())))
	s.mux.Handle("/api/", http.StripPrefix("/api", s.api.Handler()))
}

// Page returns the page state behind the server.
func (s *Server) Page() *page.View {
	return s.page
}

// API returns the RPC app mounted at /api.
func (s *Server) API() *rpc.App {
	return s.api
}

// Handler returns the root handler with request logging.
func (s *Server) Handler() http.Handler {
	return middleware.RequestLogger(s.logger)(s.mux)
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int) {
	templ.Handler(view.Page(s.page.Data()), templ.WithStatus(status)).ServeHTTP(w, r)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusOK)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(s.cfg.API.MaxRequestBodySize))
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form submission", http.StatusBadRequest)
		return
	}

	_, _, err := s.page.SubmitValues(r.Context(), r.PostForm)
	var fe form.FieldErrors
	switch {
	case err == nil:
		http.Redirect(w, r, "/", http.StatusSeeOther)
	case errors.As(err, &fe):
		s.renderPage(w, r, http.StatusUnprocessableEntity)
	default:
		s.logger.ErrorContext(r.Context(), "submit failed", slog.Any("error", err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid task id", http.StatusBadRequest)
		return
	}
	s.page.Toggle(id)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", slog.String("addr", s.cfg.Addr), slog.Any("rpc", s.api.Routes()))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
