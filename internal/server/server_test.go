package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/livepen/internal/config"
	"github.com/conneroisu/livepen/internal/editor"
	"github.com/conneroisu/livepen/internal/errors"
	"github.com/conneroisu/livepen/internal/preview"
	"github.com/conneroisu/livepen/internal/stylecompiler"
)

const (
	waitFor = 3 * time.Second
	tick    = 10 * time.Millisecond
)

type testServer struct {
	srv        *PreviewServer
	controller *editor.Controller
	base       string
	serveErr   chan error
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadFrom(viper.New())
	require.NoError(t, err)
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Open = false
	return cfg
}

// startServer runs a controller and server on an ephemeral port until the
// test ends.
func startServer(t *testing.T) *testServer {
	t.Helper()

	controller := editor.NewController(
		editor.WithRepublishDelay(50*time.Millisecond),
		editor.WithCompiler(stylecompiler.Static{CSS: ".p-4{padding:1rem}"}),
	)
	srv, err := New(testConfig(t), controller, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctrlDone := make(chan struct{})
	go func() {
		defer close(ctrlDone)
		_ = controller.Run(ctx)
	}()

	ts := &testServer{
		srv:        srv,
		controller: controller,
		base:       "http://" + ln.Addr().String(),
		serveErr:   make(chan error, 1),
	}
	go func() { ts.serveErr <- srv.Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		<-ctrlDone
		shutdownCtx, done := context.WithTimeout(context.Background(), time.Second)
		defer done()
		_ = srv.Shutdown(shutdownCtx)
	})

	require.Eventually(t, func() bool {
		s := controller.Snapshot()
		return s.Cycle >= 1 && s.Status == editor.StatusIdle
	}, waitFor, tick)
	return ts
}

func (ts *testServer) post(t *testing.T, path, origin, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, ts.base+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (ts *testServer) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.base + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (ts *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.base, "http")+"/ws", &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{ts.base}},
	})
	require.NoError(t, err)
	conn.SetReadLimit(maxMessageSize * 4)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

// readUntil reads messages until match accepts one.
func readUntil(t *testing.T, conn *websocket.Conn, match func(UpdateMessage) bool) UpdateMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	for {
		var msg UpdateMessage
		require.NoError(t, wsjson.Read(ctx, conn, &msg))
		if match(msg) {
			return msg
		}
	}
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(nil, editor.NewController(), nil)
	assert.Error(t, err)

	_, err = New(testConfig(t), nil, nil)
	assert.Error(t, err)

	srv, err := New(testConfig(t), editor.NewController(), nil)
	require.NoError(t, err)
	assert.NotNil(t, srv.clients)
	assert.Zero(t, srv.ClientCount())
}

func TestIndexRendersEditorPage(t *testing.T) {
	ts := startServer(t)

	resp := ts.get(t, "/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.Contains(t, resp.Header.Get("Content-Security-Policy"), "frame-ancestors 'none'")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	page := string(body)
	assert.Contains(t, page, `id="editor"`)
	assert.Contains(t, page, `data-tab="markup"`)
	assert.Contains(t, page, `data-tab="config"`)
	assert.Contains(t, page, `sandbox="allow-scripts"`)
	assert.Contains(t, page, `id="initial-state"`)
	assert.Contains(t, page, "Welcome to HTML Editor!")
}

func TestUnknownPathNotFound(t *testing.T) {
	ts := startServer(t)
	assert.Equal(t, http.StatusNotFound, ts.get(t, "/nope").StatusCode)
}

func TestPreviewEndpointIsSandboxed(t *testing.T) {
	ts := startServer(t)

	resp := ts.get(t, "/preview")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, preview.ContentSecurityPolicy, resp.Header.Get("Content-Security-Policy"))
	assert.NotEmpty(t, resp.Header.Get("X-Preview-Generation"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, ts.controller.Snapshot().Output, string(body))
	assert.Contains(t, string(body), ".p-4{padding:1rem}")
}

func TestAPIEditUpdatesState(t *testing.T) {
	ts := startServer(t)

	resp := ts.post(t, "/api/edit", ts.base, `{"tab":"markup","value":"<p class=\"p-4\" onmouseover=\"x()\">hi</p>"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var state editor.State
	decode(t, resp, &state)
	assert.Equal(t, `<p class="p-4" onmouseover="x()">hi</p>`, state.Markup)

	require.Eventually(t, func() bool {
		var s editor.State
		decode(t, ts.get(t, "/api/state"), &s)
		return s.Status == editor.StatusIdle && strings.Contains(s.Output, `<p class="p-4">hi</p>`)
	}, waitFor, tick)
}

func TestAPIEditRoutesByTab(t *testing.T) {
	ts := startServer(t)

	resp := ts.post(t, "/api/edit", ts.base, `{"tab":"config","value":"module.exports = {}"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	s := ts.controller.Snapshot()
	assert.Equal(t, "module.exports = {}", s.StyleConfig)
	assert.Equal(t, editor.DefaultMarkup, s.Markup)
	assert.Equal(t, editor.TabMarkup, s.Tab)
}

func TestAPIEditRejections(t *testing.T) {
	ts := startServer(t)

	tests := []struct {
		name   string
		origin string
		body   string
		status int
		code   string
	}{
		{"foreign origin", "http://evil.example", `{"value":"x"}`, http.StatusForbidden, ""},
		{"missing origin", "", `{"value":"x"}`, http.StatusForbidden, ""},
		{"unknown tab", ts.base, `{"tab":"sass","value":"x"}`, http.StatusBadRequest, errors.ErrCodeInvalidTab},
		{"unknown field", ts.base, `{"markup":"x"}`, http.StatusBadRequest, errors.ErrCodeInvalidMessage},
		{"malformed json", ts.base, `{`, http.StatusBadRequest, errors.ErrCodeInvalidMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.post(t, "/api/edit", tt.origin, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.code != "" {
				var body errorResponse
				decode(t, resp, &body)
				assert.Equal(t, tt.code, body.Code)
			}
		})
	}

	assert.Equal(t, editor.DefaultMarkup, ts.controller.Snapshot().Markup)
}

func TestDecodeBodyLimit(t *testing.T) {
	srv, err := New(testConfig(t), editor.NewController(), nil)
	require.NoError(t, err)

	body, err := json.Marshal(map[string]string{"value": strings.Repeat("a", maxMessageSize)})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/edit", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	var msg inboundMessage
	err = srv.decodeBody(rec, req, &msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed request body")
}

func TestAPITab(t *testing.T) {
	ts := startServer(t)

	resp := ts.post(t, "/api/tab", ts.base, `{"tab":"css"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var state editor.State
	decode(t, resp, &state)
	assert.Equal(t, editor.TabStyleConfig, state.Tab)
	assert.Equal(t, editor.LanguageJavaScript, state.Language)
}

func TestHints(t *testing.T) {
	ts := startServer(t)

	resp := ts.get(t, "/api/hints?prefix=bg-red&limit=5")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body HintsResponse
	decode(t, resp, &body)
	assert.Equal(t, "bg-red", body.Prefix)
	require.NotEmpty(t, body.Hints)
	assert.LessOrEqual(t, len(body.Hints), 5)
	for _, h := range body.Hints {
		assert.True(t, strings.HasPrefix(h, "bg-red"), h)
	}

	resp = ts.get(t, "/api/hints?prefix=zzzz")
	decode(t, resp, &body)
	assert.NotNil(t, body.Hints)
	assert.Empty(t, body.Hints)

	assert.Equal(t, http.StatusBadRequest, ts.get(t, "/api/hints?prefix=bg&limit=abc").StatusCode)
}

func TestMethodNotAllowed(t *testing.T) {
	ts := startServer(t)

	resp := ts.get(t, "/api/edit")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, http.MethodPost, resp.Header.Get("Allow"))

	resp = ts.post(t, "/api/state", ts.base, "{}")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	ts := startServer(t)

	resp := ts.get(t, "/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status string `json:"status"`
		Checks struct {
			Compiler struct {
				Ready bool `json:"ready"`
			} `json:"compiler"`
		} `json:"checks"`
	}
	decode(t, resp, &body)
	assert.Equal(t, "healthy", body.Status)
	assert.True(t, body.Checks.Compiler.Ready)
}

func TestWebSocketStateOnConnect(t *testing.T) {
	ts := startServer(t)
	conn := ts.dial(t)

	msg := readUntil(t, conn, func(m UpdateMessage) bool { return true })
	assert.Equal(t, MessageState, msg.Type)
	require.NotNil(t, msg.State)
	assert.Equal(t, editor.DefaultMarkup, msg.State.Markup)
	assert.Equal(t, ts.controller.Snapshot().Output, msg.State.Output)

	require.Eventually(t, func() bool { return ts.srv.ClientCount() == 1 }, waitFor, tick)
}

func TestWebSocketEditBroadcast(t *testing.T) {
	ts := startServer(t)
	sender := ts.dial(t)
	watcher := ts.dial(t)
	readUntil(t, sender, func(m UpdateMessage) bool { return m.Type == MessageState })
	readUntil(t, watcher, func(m UpdateMessage) bool { return m.Type == MessageState })

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, sender, inboundMessage{
		Type:  inboundEdit,
		Tab:   string(editor.TabMarkup),
		Value: `<div class="p-4">shared</div>`,
	}))

	buffers := readUntil(t, watcher, func(m UpdateMessage) bool { return m.Type == string(editor.EventBuffers) })
	assert.Equal(t, `<div class="p-4">shared</div>`, buffers.State.Markup)

	output := readUntil(t, watcher, func(m UpdateMessage) bool { return m.Type == string(editor.EventOutput) })
	assert.Contains(t, output.State.Output, `<div class="p-4">shared</div>`)
	assert.Contains(t, output.State.Output, ".p-4{padding:1rem}")

	remount := readUntil(t, watcher, func(m UpdateMessage) bool { return m.Type == string(editor.EventRemount) })
	assert.Greater(t, remount.State.Generation, buffers.State.Generation)
}

func TestWebSocketTabSwitch(t *testing.T) {
	ts := startServer(t)
	conn := ts.dial(t)
	readUntil(t, conn, func(m UpdateMessage) bool { return m.Type == MessageState })

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, conn, inboundMessage{Type: inboundTab, Tab: "config"}))

	msg := readUntil(t, conn, func(m UpdateMessage) bool { return m.Type == string(editor.EventBuffers) })
	assert.Equal(t, editor.TabStyleConfig, msg.State.Tab)
}

func TestWebSocketRejectsBadMessages(t *testing.T) {
	ts := startServer(t)
	conn := ts.dial(t)
	readUntil(t, conn, func(m UpdateMessage) bool { return m.Type == MessageState })

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"type":"bogus"}`)))
	msg := readUntil(t, conn, func(m UpdateMessage) bool { return m.Type == MessageError })
	assert.Contains(t, msg.Error, "unknown message type")

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`not json`)))
	msg = readUntil(t, conn, func(m UpdateMessage) bool { return m.Type == MessageError })
	assert.Contains(t, msg.Error, "malformed message")

	// The connection survives rejected messages.
	require.NoError(t, wsjson.Write(ctx, conn, inboundMessage{Type: inboundPing}))
	assert.Equal(t, 1, ts.srv.ClientCount())
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	ts := startServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	_, resp, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.base, "http")+"/ws", &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{"http://evil.example"}},
	})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestShutdownClosesClients(t *testing.T) {
	ts := startServer(t)
	conn := ts.dial(t)
	readUntil(t, conn, func(m UpdateMessage) bool { return m.Type == MessageState })

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, ts.srv.Shutdown(ctx))
	require.NoError(t, ts.srv.Shutdown(ctx), "second shutdown is a no-op")

	// Drain anything queued before the close frame.
	var err error
	for err == nil {
		_, _, err = conn.Read(ctx)
	}
	assert.NotErrorIs(t, err, context.DeadlineExceeded)

	select {
	case err := <-ts.serveErr:
		assert.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("Serve did not return after Shutdown")
	}
	assert.Zero(t, ts.srv.ClientCount())
}

func TestEditorPageEscapesBuffers(t *testing.T) {
	state := editor.NewController(editor.WithBuffers(`</textarea><script>alert(1)</script>`, "")).Snapshot()

	var buf bytes.Buffer
	require.NoError(t, EditorPage(state).Render(context.Background(), &buf))
	page := buf.String()

	assert.NotContains(t, page, `</textarea><script>alert(1)</script>`)
	assert.Contains(t, page, `&lt;/textarea&gt;&lt;script&gt;`)
	assert.NotContains(t, page, `"markup":"</textarea>`)
}

func TestEditorPageSplitHandle(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EditorPage(editor.NewController().Snapshot()).Render(context.Background(), &buf))
	page := buf.String()

	assert.Contains(t, page, `id="split-handle"`)
	assert.Contains(t, page, `data-min="20" data-max="80"`)
	assert.Contains(t, page, `id="editor-pane" class="flex flex-col min-w-0" style="width:50%"`)
	assert.Contains(t, page, `id="preview-pane"`)
	assert.Contains(t, page, "setPointerCapture")
	assert.NotContains(t, page, "w-1/2")
}
