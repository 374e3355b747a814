package rpc

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Context carries RPC metadata for the call in flight.
// Interceptors receive it directly; handlers can recover it with FromContext.
type Context interface {
	context.Context

	// Service returns the service name, e.g. "Tasks".
	Service() string
	// Method returns the method name, e.g. "Toggle".
	Method() string
	// EndpointID returns "Service.Method".
	EndpointID() string
	// HTTPRequest returns the underlying request.
	HTTPRequest() *http.Request
	// HTTPWriter returns the underlying response writer.
	HTTPWriter() http.ResponseWriter
}

type rpcContextKey struct{}

// rpcContext is the concrete Context built by App for every call.
type rpcContext struct {
	context.Context

	writer  http.ResponseWriter
	request *http.Request
	service string
	method  string

	errorTransformer   ErrorTransformer
	maskInternalErrors bool
	interceptors       []UnaryInterceptor
	logger             *slog.Logger
	maxRequestBodySize uint64
	streamHeartbeat    time.Duration
}

func newContext(parent context.Context, w http.ResponseWriter, r *http.Request, service, method string) *rpcContext {
	c := &rpcContext{
		writer:  w,
		request: r,
		service: service,
		method:  method,
		logger:  slog.Default(),
	}
	c.Context = context.WithValue(parent, rpcContextKey{}, c)
	return c
}

func (c *rpcContext) Service() string { return c.service }
func (c *rpcContext) Method() string { return c.method }
func (c *rpcContext) EndpointID() string { return c.service + "." + c.method }
func (c *rpcContext) HTTPRequest() *http.Request { return c.request }
func (c *rpcContext) HTTPWriter() http.ResponseWriter { return c.writer }

// FromContext extracts the RPC Context from ctx.
// It works through any number of context.WithValue wrappers.
func FromContext(ctx context.Context) (Context, bool) {
	c, ok := ctx.Value(rpcContextKey{}).(*rpcContext)
	if !ok {
		return nil, false
	}
	return c, true
}

// SetHeader sets an HTTP response header on the current call.
func SetHeader(ctx context.Context, key, value string) {
	if c, ok := FromContext(ctx); ok {
		c.HTTPWriter().Header().Set(key, value)
	}
}

// NewTestContext builds a Context for exercising handlers and interceptors
// without going through App.
func NewTestContext(parent context.Context, w http.ResponseWriter, r *http.Request, service, method string) Context {
	return newContext(parent, w, r, service, method)
}
