package rpc

import (
	"context"
	"net/http"
)

// HandlerFunc is the next step in an interceptor chain.
type HandlerFunc func(ctx context.Context, req any) (res any, err error)

// UnaryInterceptor wraps execution of a unary call.
//
//	func timing(ctx rpc.Context, req any, next rpc.HandlerFunc) (any, error) {
//	    start := time.Now()
//	    res, err := next(ctx, req)
//	    slog.Info("call", "endpoint", ctx.EndpointID(), "took", time.Since(start))
//	    return res, err
//	}
//
// Interceptors may inspect or replace the request, short-circuit with an
// error, or post-process the result.
type UnaryInterceptor func(ctx Context, req any, handler HandlerFunc) (res any, err error)

// chainInterceptors combines interceptors into one. interceptors[0] is outermost.
func chainInterceptors(interceptors []UnaryInterceptor) UnaryInterceptor {
	switch len(interceptors) {
	case 0:
		return nil
	case 1:
		return interceptors[0]
	}
	return func(ctx Context, req any, handler HandlerFunc) (any, error) {
		chain := handler
		for i := len(interceptors) - 1; i >= 0; i-- {
			current := interceptors[i]
			next := chain
			chain = func(c context.Context, req any) (any, error) {
				rc, ok := c.(Context)
				if !ok {
					// An interceptor wrapped the context; recover ours but keep theirs.
					base, _ := FromContext(c)
					rc = wrappedContext{Context: c, meta: base}
				}
				return current(rc, req, next)
			}
		}
		return chain(ctx, req)
	}
}

// wrappedContext keeps a derived context.Context while exposing RPC metadata.
type wrappedContext struct {
	context.Context
	meta Context
}

func (w wrappedContext) Service() string { return w.meta.Service() }
func (w wrappedContext) Method() string { return w.meta.Method() }
func (w wrappedContext) EndpointID() string { return w.meta.EndpointID() }
func (w wrappedContext) HTTPRequest() *http.Request { return w.meta.HTTPRequest() }
func (w wrappedContext) HTTPWriter() http.ResponseWriter { return w.meta.HTTPWriter() }
