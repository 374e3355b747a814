// Package rpctest builds requests against rpc endpoints and decodes their envelopes.
package rpctest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/broady/todoform/internal/rpc"
)

// RequestBuilder helps construct test HTTP requests with a fluent API.
type RequestBuilder struct {
	method       string
	path         string
	body         []byte
	headers      http.Header
	query        url.Values
	service      string
	rpcMethod    string
	contextSetup ContextSetupFunc
}

// ContextSetupFunc derives the request context before the handler runs.
type ContextSetupFunc func(ctx context.Context, w http.ResponseWriter, r *http.Request, service, method string) context.Context

// WithRPCContext attaches an rpc.Context so handlers can use rpc.FromContext.
func WithRPCContext() ContextSetupFunc {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request, service, method string) context.Context {
		return rpc.NewTestContext(ctx, w, r, service, method)
	}
}

// NewRequest creates a GET / request builder.
func NewRequest(contextSetup ...ContextSetupFunc) *RequestBuilder {
	var setup ContextSetupFunc
	if len(contextSetup) > 0 {
		setup = contextSetup[0]
	}
	return &RequestBuilder{
		method:       http.MethodGet,
		path:         "/",
		headers:      make(http.Header),
		query:        make(url.Values),
		service:      "TestService",
		rpcMethod:    "TestMethod",
		contextSetup: setup,
	}
}

// Call targets /{service}/{method} and records both for the context setup.
func (b *RequestBuilder) Call(httpMethod, service, method string) *RequestBuilder {
	b.method = httpMethod
	b.path = "/" + service + "/" + method
	b.service = service
	b.rpcMethod = method
	return b
}

func (b *RequestBuilder) GET(path string) *RequestBuilder {
	b.method = http.MethodGet
	b.path = path
	return b
}

func (b *RequestBuilder) POST(path string) *RequestBuilder {
	b.method = http.MethodPost
	b.path = path
	return b
}

// WithJSON sets the request body as JSON.
func (b *RequestBuilder) WithJSON(v any) *RequestBuilder {
	data, _ := json.Marshal(v)
	b.body = data
	b.headers.Set("Content-Type", "application/json")
	return b
}

// WithForm sets an application/x-www-form-urlencoded body.
func (b *RequestBuilder) WithForm(v url.Values) *RequestBuilder {
	b.body = []byte(v.Encode())
	b.headers.Set("Content-Type", "application/x-www-form-urlencoded")
	return b
}

// WithBody sets the raw request body.
func (b *RequestBuilder) WithBody(body string) *RequestBuilder {
	b.body = []byte(body)
	return b
}

func (b *RequestBuilder) WithHeader(key, value string) *RequestBuilder {
	b.headers.Set(key, value)
	return b
}

func (b *RequestBuilder) WithQuery(key, value string) *RequestBuilder {
	b.query.Add(key, value)
	return b
}

// Build creates the request and a recorder for its response.
func (b *RequestBuilder) Build() (*http.Request, *httptest.ResponseRecorder) {
	target := b.path
	if len(b.query) > 0 {
		target += "?" + b.query.Encode()
	}

	var body io.Reader
	if len(b.body) > 0 {
		body = bytes.NewReader(b.body)
	}
	req := httptest.NewRequest(b.method, target, body)
	for k, vs := range b.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	w := httptest.NewRecorder()
	if b.contextSetup != nil {
		req = req.WithContext(b.contextSetup(req.Context(), w, req, b.service, b.rpcMethod))
	}
	return req, w
}

// Do builds the request and serves it with h.
func (b *RequestBuilder) Do(h http.Handler) *httptest.ResponseRecorder {
	req, w := b.Build()
	h.ServeHTTP(w, req)
	return w
}

// DecodeResult unmarshals the "result" of a successful response into T.
func DecodeResult[T any](t testing.TB, w *httptest.ResponseRecorder) T {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())
	require.Contains(t, w.Header().Get("Content-Type"), "application/json")

	var env struct {
		Result T `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "body: %s", w.Body.String())
	return env.Result
}

// DecodeError unmarshals the "error" of a failed response and checks its code.
func DecodeError(t testing.TB, w *httptest.ResponseRecorder, code rpc.ErrorCode) *rpc.Error {
	t.Helper()
	var env struct {
		Error *rpc.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "body: %s", w.Body.String())
	require.NotNil(t, env.Error, "body: %s", w.Body.String())
	require.Equal(t, code, env.Error.Code, "message: %s", env.Error.Message)
	require.Equal(t, code.HTTPStatus(), w.Code)
	return env.Error
}

// Events splits an SSE body into its data payloads, skipping comments.
func Events(body string) []string {
	var out []string
	for _, block := range strings.Split(body, "\n\n") {
		for _, line := range strings.Split(block, "\n") {
			if data, ok := strings.CutPrefix(line, "data: "); ok {
				out = append(out, data)
			}
		}
	}
	return out
}
