// Package rpc serves typed Go functions as JSON endpoints at /{Service}/{Method}.
//
// Unary results are wrapped as {"result": ...} and failures as
// {"error": {"code", "message", "details"}}. Stream endpoints speak
// Server-Sent Events using the same envelopes per event.
package rpc

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"
)

const defaultStreamHeartbeat = 30 * time.Second

// App routes requests to registered endpoints.
type App struct {
	mu                   sync.RWMutex
	routes               map[string]Endpoint
	errorTransformer     ErrorTransformer
	maskInternalErrors   bool
	interceptors         []UnaryInterceptor
	middlewares          []func(http.Handler) http.Handler
	logger               *slog.Logger
	maxRequestBodySize   uint64
	streamHeartbeat      time.Duration
	streamHeartbeatIsSet bool // zero disables, unset uses the default
}

// NewApp returns an App with a 1MB request body limit.
func NewApp() *App {
	return &App{
		routes:             make(map[string]Endpoint),
		maxRequestBodySize: 1 << 20,
	}
}

// WithErrorTransformer installs a transformer that runs before DefaultErrorTransformer.
func (a *App) WithErrorTransformer(fn ErrorTransformer) *App {
	a.errorTransformer = fn
	return a
}

// WithMaskInternalErrors replaces internal error messages with a generic one.
// Interceptors still see the original error.
func (a *App) WithMaskInternalErrors() *App {
	a.maskInternalErrors = true
	return a
}

// WithUnaryInterceptor adds a global interceptor.
//
// Execution order is global, then service, then handler interceptors, then
// the handler itself. Within a level, interceptors run in the order added.
func (a *App) WithUnaryInterceptor(i UnaryInterceptor) *App {
	a.interceptors = append(a.interceptors, i)
	return a
}

// WithMiddleware wraps the app in an HTTP middleware. First added is outermost.
func (a *App) WithMiddleware(mw func(http.Handler) http.Handler) *App {
	a.middlewares = append(a.middlewares, mw)
	return a
}

// WithLogger sets the logger. Defaults to slog.Default().
func (a *App) WithLogger(logger *slog.Logger) *App {
	a.logger = logger
	return a
}

// WithMaxRequestBodySize sets the default body limit. 0 means no limit.
func (a *App) WithMaxRequestBodySize(size uint64) *App {
	a.maxRequestBodySize = size
	return a
}

// WithStreamHeartbeat sets the SSE heartbeat interval. 0 disables heartbeats.
func (a *App) WithStreamHeartbeat(d time.Duration) *App {
	a.streamHeartbeat = d
	a.streamHeartbeatIsSet = true
	return a
}

func (a *App) getStreamHeartbeat() time.Duration {
	if a.streamHeartbeatIsSet {
		return a.streamHeartbeat
	}
	return defaultStreamHeartbeat
}

func (a *App) getLogger() *slog.Logger {
	if a.logger == nil {
		return slog.Default()
	}
	return a.logger
}

// Handler returns the app as an http.Handler, wrapped in its middleware.
func (a *App) Handler() http.Handler {
	var h http.Handler = http.HandlerFunc(a.serveHTTP)
	for i := len(a.middlewares) - 1; i >= 0; i-- {
		h = a.middlewares[i](h)
	}
	return h
}

// Service returns a namespace for registering endpoints.
func (a *App) Service(name string) *Service {
	return &Service{app: a, name: name}
}

// Routes lists registered endpoint IDs in sorted order.
func (a *App) Routes() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ids := make([]string, 0, len(a.routes))
	for id := range a.routes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func primitiveToHTTPMethod(primitive string) string {
	if primitive == "query" {
		return http.MethodGet
	}
	return http.MethodPost
}

func (a *App) serveHTTP(w http.ResponseWriter, req *http.Request) {
	logger := a.getLogger()
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("PANIC recovered",
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())))
			msg := fmt.Sprintf("internal server error (panic): %v", rec)
			if a.maskInternalErrors {
				msg = "internal server error"
			}
			writeError(w, NewError(CodeInternal, msg), logger)
		}
	}()

	// Path format: /{Service}/{Method}
	parts := strings.Split(strings.Trim(req.URL.Path, "/"), "/")
	if len(parts) != 2 {
		writeError(w, NewError(CodeNotFound, "route not found"), logger)
		return
	}
	service, method := parts[0], parts[1]

	a.mu.RLock()
	endpoint, ok := a.routes[service+"."+method]
	a.mu.RUnlock()
	if !ok {
		writeError(w, NewError(CodeNotFound, "route not found"), logger)
		return
	}

	expected := primitiveToHTTPMethod(endpoint.Metadata().Primitive)
	if req.Method != expected {
		w.Header().Set("Allow", expected)
		writeError(w, Errorf(CodeMethodNotAllowed, "method %s not allowed, expected %s", req.Method, expected), logger)
		return
	}

	ctx := newContext(req.Context(), w, req, service, method)
	ctx.errorTransformer = a.errorTransformer
	ctx.maskInternalErrors = a.maskInternalErrors
	ctx.interceptors = a.interceptors
	ctx.logger = logger
	ctx.maxRequestBodySize = a.maxRequestBodySize
	ctx.streamHeartbeat = a.getStreamHeartbeat()

	endpoint.serveHTTP(ctx)
}

// Service groups endpoints under a common name and interceptors.
type Service struct {
	app          *App
	name         string
	interceptors []UnaryInterceptor
}

// WithUnaryInterceptor adds an interceptor to every endpoint of this service.
func (s *Service) WithUnaryInterceptor(i UnaryInterceptor) *Service {
	s.interceptors = append(s.interceptors, i)
	return s
}

// Register adds an endpoint. Re-registering a name replaces it and logs a warning.
func (s *Service) Register(name string, endpoint Endpoint) {
	key := s.name + "." + name

	s.app.mu.Lock()
	defer s.app.mu.Unlock()

	if _, exists := s.app.routes[key]; exists {
		s.app.getLogger().Warn("duplicate route registration",
			slog.String("service", s.name),
			slog.String("method", name))
	}
	s.app.routes[key] = &serviceEndpoint{inner: endpoint, interceptors: s.interceptors}
}

// serviceEndpoint splices service interceptors between global and handler ones.
type serviceEndpoint struct {
	inner        Endpoint
	interceptors []UnaryInterceptor
}

func (e *serviceEndpoint) Metadata() *MethodMetadata { return e.inner.Metadata() }

func (e *serviceEndpoint) serveHTTP(ctx *rpcContext) {
	combined := make([]UnaryInterceptor, 0, len(ctx.interceptors)+len(e.interceptors))
	combined = append(combined, ctx.interceptors...)
	combined = append(combined, e.interceptors...)
	ctx.interceptors = combined
	e.inner.serveHTTP(ctx)
}
