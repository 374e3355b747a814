package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type feedRequest struct {
	Topic string `json:"topic" validate:"required"`
}

type feedEvent struct {
	ID int `json:"id"`
}

func sseData(body string) []string {
	var out []string
	for _, line := range strings.Split(body, "\n") {
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			out = append(out, data)
		}
	}
	return out
}

func serveStream(t *testing.T, app *App, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/Feed/Subscribe", strings.NewReader(body))
	w := httptest.NewRecorder()
	app.Handler().ServeHTTP(w, req)
	return w
}

func TestStream_Metadata(t *testing.T) {
	h := Stream(func(ctx context.Context, req feedRequest, e Emitter[feedEvent]) error { return nil })
	if got := h.Metadata().Primitive; got != "stream" {
		t.Errorf("expected primitive stream, got %s", got)
	}
}

func TestStream_Events(t *testing.T) {
	app := NewApp().WithStreamHeartbeat(0)
	app.Service("Feed").Register("Subscribe", Stream(func(ctx context.Context, req feedRequest, e Emitter[feedEvent]) error {
		for i := 1; i <= 3; i++ {
			if err := e.Send(feedEvent{ID: i}); err != nil {
				return err
			}
		}
		return nil
	}))

	w := serveStream(t, app, `{"topic":"tasks"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected text/event-stream, got %s", ct)
	}
	events := sseData(w.Body.String())
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d: %q", len(events), w.Body.String())
	}
	for i, data := range events {
		var env struct {
			Result feedEvent `json:"result"`
		}
		if err := json.Unmarshal([]byte(data), &env); err != nil {
			t.Fatal(err)
		}
		if env.Result.ID != i+1 {
			t.Errorf("event %d: expected id %d, got %d", i, i+1, env.Result.ID)
		}
	}
}

func TestStream_ErrorEvent(t *testing.T) {
	app := NewApp().WithStreamHeartbeat(0)
	app.Service("Feed").Register("Subscribe", Stream(func(ctx context.Context, req feedRequest, e Emitter[feedEvent]) error {
		if err := e.Send(feedEvent{ID: 1}); err != nil {
			return err
		}
		return NewError(CodeUnavailable, "feed offline")
	}))

	events := sseData(serveStream(t, app, `{"topic":"tasks"}`).Body.String())
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %q", events)
	}
	var env errorResponse
	if err := json.Unmarshal([]byte(events[1]), &env); err != nil {
		t.Fatal(err)
	}
	if env.Error == nil || env.Error.Code != CodeUnavailable {
		t.Errorf("expected unavailable error event, got %s", events[1])
	}
}

func TestStream_ValidationBeforeHeaders(t *testing.T) {
	app := NewApp()
	app.Service("Feed").Register("Subscribe", Stream(func(ctx context.Context, req feedRequest, e Emitter[feedEvent]) error {
		t.Error("handler should not run")
		return nil
	}))

	w := serveStream(t, app, `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON error, got %s", ct)
	}
}

func TestStream_SetupInterceptorRejects(t *testing.T) {
	app := NewApp()
	app.Service("Feed").Register("Subscribe", Stream(func(ctx context.Context, req feedRequest, e Emitter[feedEvent]) error {
		t.Error("handler should not run")
		return nil
	}).WithUnaryInterceptor(func(ctx Context, req any, next HandlerFunc) (any, error) {
		return nil, NewError(CodeUnavailable, "no streams today")
	}))

	w := serveStream(t, app, `{"topic":"tasks"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}

func TestStream_Heartbeat(t *testing.T) {
	app := NewApp().WithStreamHeartbeat(5 * time.Millisecond)
	release := make(chan struct{})
	app.Service("Feed").Register("Subscribe", Stream(func(ctx context.Context, req feedRequest, e Emitter[feedEvent]) error {
		<-release
		return nil
	}))

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(release)
	}()
	w := serveStream(t, app, `{"topic":"tasks"}`)

	if !strings.Contains(w.Body.String(), ": heartbeat\n\n") {
		t.Errorf("expected heartbeat comment, got %q", w.Body.String())
	}
}

func TestStream_ClientDisconnect(t *testing.T) {
	app := NewApp().WithStreamHeartbeat(0)
	sendErr := make(chan error, 1)
	app.Service("Feed").Register("Subscribe", Stream(func(ctx context.Context, req feedRequest, e Emitter[feedEvent]) error {
		<-ctx.Done()
		err := e.Send(feedEvent{ID: 1})
		sendErr <- err
		return err
	}))

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodPost, "/Feed/Subscribe", strings.NewReader(`{"topic":"tasks"}`)).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		app.Handler().ServeHTTP(w, req)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream did not end after client disconnect")
	}
	select {
	case err := <-sendErr:
		if !errors.Is(err, ErrStreamClosed) {
			t.Errorf("expected ErrStreamClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("handler did not observe cancellation")
	}
}
