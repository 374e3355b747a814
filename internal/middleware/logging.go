// Package middleware holds HTTP middleware and RPC interceptors shared by the server.
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/broady/todoform/internal/rpc"
)

// LoggingInterceptor logs the start and end of each RPC call.
func LoggingInterceptor(logger *slog.Logger) rpc.UnaryInterceptor {
	if logger == nil {
		logger = slog.Default()
	}

	return func(ctx rpc.Context, req any, handler rpc.HandlerFunc) (any, error) {
		start := time.Now()

		logger.DebugContext(ctx, "request started",
			slog.String("endpoint", ctx.EndpointID()),
		)

		res, err := handler(ctx, req)
		duration := time.Since(start)

		if err != nil {
			logger.WarnContext(ctx, "request failed",
				slog.String("endpoint", ctx.EndpointID()),
				slog.Duration("duration", duration),
				slog.Any("error", err),
			)
		} else {
			logger.InfoContext(ctx, "request completed",
				slog.String("endpoint", ctx.EndpointID()),
				slog.Duration("duration", duration),
			)
		}

		return res, err
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// RequestLogger logs method, path, status and duration of every HTTP request.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.InfoContext(r.Context(), "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}
