package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
)

var (
	validate      = newValidator()
	schemaDecoder = schema.NewDecoder()
)

func init() {
	schemaDecoder.IgnoreUnknownKeys(true)
	schemaDecoder.SetAliasTag("json")
}

// newValidator reports fields by their json names so error details match the wire format.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// MethodMetadata describes a registered endpoint.
type MethodMetadata struct {
	Primitive string // "query", "exec" or "stream"
	Request   reflect.Type
	Response  reflect.Type
}

// Endpoint is a registrable handler. It is sealed: build one with Exec, Query or Stream.
type Endpoint interface {
	Metadata() *MethodMetadata
	serveHTTP(ctx *rpcContext)
}

// UnaryHandler serves a single request/response call.
type UnaryHandler[Req any, Res any] struct {
	fn           func(context.Context, Req) (Res, error)
	primitive    string
	interceptors []UnaryInterceptor
}

// Exec creates a POST endpoint whose request is the JSON body.
func Exec[Req any, Res any](fn func(context.Context, Req) (Res, error)) *UnaryHandler[Req, Res] {
	return &UnaryHandler[Req, Res]{fn: fn, primitive: "exec"}
}

// Query creates a GET endpoint whose request is decoded from the URL query.
func Query[Req any, Res any](fn func(context.Context, Req) (Res, error)) *UnaryHandler[Req, Res] {
	return &UnaryHandler[Req, Res]{fn: fn, primitive: "query"}
}

// WithUnaryInterceptor adds a handler-level interceptor.
func (h *UnaryHandler[Req, Res]) WithUnaryInterceptor(i UnaryInterceptor) *UnaryHandler[Req, Res] {
	h.interceptors = append(h.interceptors, i)
	return h
}

// Metadata implements Endpoint.
func (h *UnaryHandler[Req, Res]) Metadata() *MethodMetadata {
	var req Req
	var res Res
	return &MethodMetadata{
		Primitive: h.primitive,
		Request:   reflect.TypeOf(req),
		Response:  reflect.TypeOf(res),
	}
}

func (h *UnaryHandler[Req, Res]) serveHTTP(ctx *rpcContext) {
	req, err := h.decodeRequest(ctx)
	if err != nil {
		handleError(ctx, err)
		return
	}

	all := make([]UnaryInterceptor, 0, len(ctx.interceptors)+len(h.interceptors))
	all = append(all, ctx.interceptors...)
	all = append(all, h.interceptors...)

	final := func(c context.Context, reqAny any) (any, error) {
		typed, ok := reqAny.(Req)
		if !ok {
			return nil, Errorf(CodeInternal, "interceptor replaced request with %T", reqAny)
		}
		return h.fn(c, typed)
	}

	var res any
	if chain := chainInterceptors(all); chain != nil {
		res, err = chain(ctx, req, final)
	} else {
		res, err = final(ctx, req)
	}
	if err != nil {
		handleError(ctx, err)
		return
	}

	w := ctx.writer
	w.Header().Set("Content-Type", "application/json")
	if err := encodeResponse(w, res); err != nil {
		ctx.logger.Error("failed to encode response",
			"endpoint", ctx.EndpointID(),
			"error", err)
	}
}

func (h *UnaryHandler[Req, Res]) decodeRequest(ctx *rpcContext) (Req, error) {
	req := newRequest[Req]()

	if h.primitive == "query" {
		if err := schemaDecoder.Decode(structPointer(&req), ctx.request.URL.Query()); err != nil {
			return req, Errorf(CodeInvalidArgument, "failed to decode query: %v", err)
		}
	} else if ctx.request.Body != nil {
		if limit := ctx.maxRequestBodySize; limit > 0 {
			ctx.request.Body = http.MaxBytesReader(ctx.writer, ctx.request.Body, int64(limit))
		}
		if err := json.NewDecoder(ctx.request.Body).Decode(structPointer(&req)); err != nil && !errors.Is(err, io.EOF) {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return req, Errorf(CodeInvalidArgument, "request body exceeds %d bytes", tooLarge.Limit)
			}
			return req, Errorf(CodeInvalidArgument, "failed to decode body: %v", err)
		}
	}

	if err := validate.Struct(req); err != nil {
		return req, err
	}
	return req, nil
}

// newRequest returns a zero Req, allocating the pointee when Req is a pointer type.
func newRequest[Req any]() Req {
	var req Req
	t := reflect.TypeOf(req)
	if t != nil && t.Kind() == reflect.Pointer {
		req = reflect.New(t.Elem()).Interface().(Req)
	}
	return req
}

// structPointer returns the pointer decoders should fill: p itself for
// struct requests, *p for pointer requests.
func structPointer[Req any](p *Req) any {
	v := reflect.ValueOf(p).Elem()
	if v.Kind() == reflect.Pointer {
		return v.Interface()
	}
	return p
}
