package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"
)

// ErrStreamClosed is returned by Emitter.Send once the client is gone.
// Handlers should return when they see it.
var ErrStreamClosed = errors.New("stream closed")

// Emitter sends events to a streaming client.
type Emitter[T any] interface {
	// Send writes one event. Disconnect errors satisfy errors.Is(err, ErrStreamClosed).
	Send(event T) error
}

type emitter[T any] struct {
	ctx    context.Context
	events chan<- any
}

func (e *emitter[T]) Send(event T) error {
	select {
	case <-e.ctx.Done():
		return fmt.Errorf("%w: %w", ErrStreamClosed, e.ctx.Err())
	case e.events <- event:
		return nil
	}
}

// StreamHandler serves an SSE endpoint.
type StreamHandler[Req any, Res any] struct {
	fn           func(context.Context, Req, Emitter[Res]) error
	interceptors []UnaryInterceptor
}

// Stream creates an SSE endpoint. The request is the (optional) JSON body.
//
// fn runs until it returns or the client disconnects. A returned error other
// than ErrStreamClosed is sent to the client as a final error event.
//
//	func Watch(ctx context.Context, _ rpc.Empty, e rpc.Emitter[[]task.Task]) error {
//	    for tasks := range store.Subscribe(ctx) {
//	        if err := e.Send(tasks); err != nil {
//	            return err
//	        }
//	    }
//	    return nil
//	}
func Stream[Req any, Res any](fn func(context.Context, Req, Emitter[Res]) error) *StreamHandler[Req, Res] {
	return &StreamHandler[Req, Res]{fn: fn}
}

// WithUnaryInterceptor adds an interceptor that runs once during stream setup.
// It can reject the stream but never sees events.
func (h *StreamHandler[Req, Res]) WithUnaryInterceptor(i UnaryInterceptor) *StreamHandler[Req, Res] {
	h.interceptors = append(h.interceptors, i)
	return h
}

// Metadata implements Endpoint.
func (h *StreamHandler[Req, Res]) Metadata() *MethodMetadata {
	var req Req
	var res Res
	return &MethodMetadata{
		Primitive: "stream",
		Request:   reflect.TypeOf(req),
		Response:  reflect.TypeOf(res),
	}
}

func (h *StreamHandler[Req, Res]) serveHTTP(ctx *rpcContext) {
	req := newRequest[Req]()
	if ctx.request.Body != nil {
		if ctx.maxRequestBodySize > 0 {
			ctx.request.Body = http.MaxBytesReader(ctx.writer, ctx.request.Body, int64(ctx.maxRequestBodySize))
		}
		if err := json.NewDecoder(ctx.request.Body).Decode(structPointer(&req)); err != nil && !errors.Is(err, io.EOF) {
			handleError(ctx, Errorf(CodeInvalidArgument, "failed to decode body: %v", err))
			return
		}
	}
	if err := validate.Struct(req); err != nil {
		handleError(ctx, err)
		return
	}

	if err := h.runSetupInterceptors(ctx, req); err != nil {
		handleError(ctx, err)
		return
	}

	flusher, ok := ctx.writer.(http.Flusher)
	if !ok {
		handleError(ctx, NewError(CodeInternal, "streaming not supported"))
		return
	}

	hdr := ctx.writer.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("X-Accel-Buffering", "no")
	ctx.writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan any)
	result := make(chan error, 1)
	go func() {
		result <- h.fn(streamCtx, req, &emitter[Res]{ctx: streamCtx, events: events})
	}()

	var heartbeat <-chan time.Time
	if interval := ctx.streamHeartbeat; interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	for {
		select {
		case <-ctx.request.Context().Done():
			return

		case <-heartbeat:
			if _, err := io.WriteString(ctx.writer, ": heartbeat\n\n"); err != nil {
				h.logWriteError(ctx, err)
				return
			}
			flusher.Flush()

		case event := <-events:
			if err := writeSSEEvent(ctx.writer, response{Result: event}); err != nil {
				h.logWriteError(ctx, err)
				return
			}
			flusher.Flush()

		case err := <-result:
			if err != nil && !errors.Is(err, ErrStreamClosed) {
				svcErr := DefaultErrorTransformer(err)
				if ctx.errorTransformer != nil {
					if transformed := ctx.errorTransformer(err); transformed != nil {
						svcErr = transformed
					}
				}
				if werr := writeSSEEvent(ctx.writer, errorResponse{Error: svcErr}); werr != nil {
					h.logWriteError(ctx, werr)
				}
				flusher.Flush()
			}
			return
		}
	}
}

func (h *StreamHandler[Req, Res]) runSetupInterceptors(ctx *rpcContext, req Req) error {
	all := make([]UnaryInterceptor, 0, len(ctx.interceptors)+len(h.interceptors))
	all = append(all, ctx.interceptors...)
	all = append(all, h.interceptors...)

	chain := chainInterceptors(all)
	if chain == nil {
		return nil
	}
	_, err := chain(ctx, req, func(context.Context, any) (any, error) {
		return nil, nil
	})
	return err
}

func (h *StreamHandler[Req, Res]) logWriteError(ctx *rpcContext, err error) {
	if isClientDisconnect(err) {
		ctx.logger.Debug("client disconnected", slog.String("endpoint", ctx.EndpointID()))
		return
	}
	ctx.logger.Error("failed to write SSE event",
		slog.String("endpoint", ctx.EndpointID()),
		slog.Any("error", err))
}

func isClientDisconnect(err error) bool {
	msg := err.Error()
	return errors.Is(err, context.Canceled) ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection reset")
}

func writeSSEEvent(w io.Writer, envelope any) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
