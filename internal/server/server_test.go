package server

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/broady/todoform/internal/config"
	"github.com/broady/todoform/internal/page"
	"github.com/broady/todoform/internal/rpc"
	"github.com/broady/todoform/internal/rpctest"
	"github.com/broady/todoform/internal/task"
)

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *Server {
	t.Helper()
	cfg := config.Default()
	for _, m := range mutate {
		m(cfg)
	}
	return New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func postForm(h http.Handler, values url.Values) *httptest.ResponseRecorder {
	return rpctest.NewRequest().POST("/tasks").WithForm(values).Do(h)
}

func TestIndex(t *testing.T) {
	w := rpctest.NewRequest().GET("/").Do(newTestServer(t).Handler())

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "<title>Todo App</title>")
}

func TestUnknownPath(t *testing.T) {
	w := rpctest.NewRequest().GET("/nope").Do(newTestServer(t).Handler())
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatic(t *testing.T) {
	w := rpctest.NewRequest().GET("/static/css/app.css").Do(newTestServer(t).Handler())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), ".task--faded")
}

func TestSubmitAndToggle(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	w := postForm(h, url.Values{"title": {"Buy milk"}, "dueDate": {"2024-01-01"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	w = postForm(h, url.Values{"title": {"Pay bills"}, "dueDate": {"2024-01-05"}})
	require.Equal(t, http.StatusSeeOther, w.Code)

	assert.Equal(t, []task.Task{
		{ID: 1, Title: "Buy milk", DueDate: "2024-01-01"},
		{ID: 2, Title: "Pay bills", DueDate: "2024-01-05"},
	}, s.Page().Tasks())

	w = rpctest.NewRequest().POST("/tasks/1/toggle").Do(h)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.True(t, s.Page().Tasks()[0].Completed)
	assert.False(t, s.Page().Tasks()[1].Completed)

	w = rpctest.NewRequest().GET("/").Do(h)
	assert.Contains(t, w.Body.String(), `<li class="task task--faded" id="task-1">`)
	assert.Contains(t, w.Body.String(), `<li class="task" id="task-2">`)
	assert.Contains(t, w.Body.String(), `name="title" value="">`)
}

func TestSubmitInvalid(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.Form.RequireNonEmpty = true })

	w := postForm(s.Handler(), url.Values{"title": {"half <done>"}, "dueDate": {""}})

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), `value="half &lt;done&gt;"`)
	assert.Contains(t, w.Body.String(), `data-field="dueDate">required</span>`)
	assert.Empty(t, s.Page().Tasks())
}

func TestSubmitMissingKey(t *testing.T) {
	s := newTestServer(t)
	w := postForm(s.Handler(), url.Values{"title": {"x"}})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Empty(t, s.Page().Tasks())
}

func TestToggle_BadAndUnknownIDs(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	w := rpctest.NewRequest().POST("/tasks/abc/toggle").Do(h)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = rpctest.NewRequest().POST("/tasks/7/toggle").Do(h)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Empty(t, s.Page().Tasks())
}

func TestAPI_Routes(t *testing.T) {
	assert.Equal(t, []string{
		"Form.Get", "Form.Set", "Form.Submit",
		"Tasks.List", "Tasks.Toggle", "Tasks.Watch",
	}, newTestServer(t).API().Routes())
}

func TestAPI_FormFlow(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	w := rpctest.NewRequest().POST("/api/Form/Set").WithJSON(SetFieldParams{Field: "title", Value: "Buy milk"}).Do(h)
	fs := rpctest.DecodeResult[page.FormState](t, w)
	assert.Equal(t, "Buy milk", fs.Draft.Title)

	rpctest.NewRequest().POST("/api/Form/Set").WithJSON(SetFieldParams{Field: "dueDate", Value: "2024-01-01"}).Do(h)

	w = rpctest.NewRequest().GET("/api/Form/Get").Do(h)
	fs = rpctest.DecodeResult[page.FormState](t, w)
	assert.Equal(t, "2024-01-01", fs.Draft.DueDate)

	w = rpctest.NewRequest().POST("/api/Form/Submit").Do(h)
	res := rpctest.DecodeResult[SubmitResult](t, w)
	assert.Equal(t, task.Task{ID: 1, Title: "Buy milk", DueDate: "2024-01-01"}, res.Task)
	assert.Zero(t, res.Draft)

	w = rpctest.NewRequest().GET("/api/Tasks/List").Do(h)
	assert.Len(t, rpctest.DecodeResult[[]task.Task](t, w), 1)
}

func TestAPI_SetUnknownField(t *testing.T) {
	w := rpctest.NewRequest().
		POST("/api/Form/Set").
		WithJSON(SetFieldParams{Field: "colour", Value: "red"}).
		Do(newTestServer(t).Handler())

	e := rpctest.DecodeError(t, w, rpc.CodeInvalidArgument)
	assert.Equal(t, "must be one of: title dueDate", e.Details["field"])
}

func TestAPI_SubmitInvalid(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.Form.RequireNonEmpty = true })

	w := rpctest.NewRequest().POST("/api/Form/Submit").Do(s.Handler())

	e := rpctest.DecodeError(t, w, rpc.CodeInvalidArgument)
	assert.Equal(t, map[string]any{"title": "required", "dueDate": "required"}, e.Details)
}

func TestAPI_Toggle(t *testing.T) {
	s := newTestServer(t)
	s.Page().Store().Add("a", "b")
	h := s.Handler()

	w := rpctest.NewRequest().POST("/api/Tasks/Toggle").WithJSON(map[string]int{"id": 1}).Do(h)
	tasks := rpctest.DecodeResult[[]task.Task](t, w)
	require.Len(t, tasks, 1)
	assert.True(t, tasks[0].Completed)

	w = rpctest.NewRequest().POST("/api/Tasks/Toggle").WithJSON(map[string]int{"id": 99}).Do(h)
	assert.Len(t, rpctest.DecodeResult[[]task.Task](t, w), 1)

	w = rpctest.NewRequest().POST("/api/Tasks/Toggle").WithJSON(map[string]any{}).Do(h)
	e := rpctest.DecodeError(t, w, rpc.CodeInvalidArgument)
	assert.Equal(t, "required", e.Details["id"])
}

func TestAPI_Watch(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.API.StreamHeartbeat = time.Hour })
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.URL+"/api/Tasks/Watch", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	next := func() string {
		for lines.Scan() {
			if data, ok := strings.CutPrefix(lines.Text(), "data: "); ok {
				return data
			}
		}
		t.Fatalf("stream ended: %v", lines.Err())
		return ""
	}

	assert.JSONEq(t, `{"result":[]}`, next())
	s.Page().Store().Add("Buy milk", "2024-01-01")
	assert.JSONEq(t, `{"result":[{"id":1,"title":"Buy milk","dueDate":"2024-01-01","completed":false}]}`, next())
}

func TestAPI_MaskInternalErrors(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.API.MaskInternalErrors = true })
	s.API().Service("Debug").Register("Fail", rpc.Exec(func(context.Context, rpc.Empty) (rpc.Empty, error) {
		return rpc.Empty{}, io.ErrUnexpectedEOF
	}))

	w := rpctest.NewRequest().POST("/api/Debug/Fail").Do(s.Handler())
	e := rpctest.DecodeError(t, w, rpc.CodeInternal)
	assert.Equal(t, "internal server error", e.Message)
}

func TestListenAndServe_Shutdown(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.Addr = "127.0.0.1:0" })
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(6 * time.Second):
		t.Fatal("server did not shut down")
	}
}
