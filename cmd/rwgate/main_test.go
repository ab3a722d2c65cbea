package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"gitlab.com/slon/rwgate/scenario"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&app{log: zaptest.NewLogger(t)})
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestListCmd(t *testing.T) {
	out, err := execute(t, "list")
	require.NoError(t, err)
	require.Contains(t, out, "read-while-write-held")
	require.Contains(t, out, "nested-write")
	require.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 9)
}

func TestRunCmd(t *testing.T) {
	out, err := execute(t, "run", "release-unheld", "nested-write")
	require.NoError(t, err)
	require.Contains(t, out, "OK release-unheld")
	require.Contains(t, out, "OK nested-write")
}

func TestRunCmdPoll(t *testing.T) {
	out, err := execute(t, "run", "--poll", "50ms", "write-exclusion")
	require.NoError(t, err)
	require.Contains(t, out, "OK write-exclusion")
}

func TestRunCmdFailedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wrong.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: wrong
initial: 5
timeout: 200ms
actors:
  - name: A
    steps:
      - op: acquire_write
      - op: store
        value: 10
      - op: release_write
final: 5
`), 0o644))

	out, err := execute(t, "run", "-f", path)
	require.ErrorIs(t, err, errFailed)
	require.Contains(t, out, "FAIL wrong")
	require.Contains(t, out, "final resource 10, want 5")
}

func TestRunCmdErrors(t *testing.T) {
	_, err := execute(t, "run", "no-such-scenario")
	require.ErrorIs(t, err, scenario.ErrNotFound)

	_, err = execute(t, "run")
	require.Error(t, err)

	_, err = execute(t, "run", "-f", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	handler, err := newHandler(zaptest.NewLogger(t), prometheus.NewRegistry(), nil)
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestServeList(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/scenarios")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var infos []scenarioInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&infos))
	require.Len(t, infos, 9)
}

func TestServeRun(t *testing.T) {
	srv := newTestServer(t)

	for _, tc := range []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{name: "builtin", path: "/scenarios/nested-write/run", status: http.StatusOK},
		{name: "unknown", path: "/scenarios/nope/run", status: http.StatusNotFound},
		{
			name:   "uploaded",
			path:   "/run",
			body:   "name: upload\nactors: [{name: A, steps: [{op: acquire_read}, {op: release_read}]}]",
			status: http.StatusOK,
		},
		{name: "invalid upload", path: "/run", body: "name: upload", status: http.StatusBadRequest},
		{
			name:   "upload timeout too long",
			path:   "/run",
			body:   "name: upload\ntimeout: 1h\nactors: [{name: A, steps: [{op: acquire_read}]}]",
			status: http.StatusBadRequest,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+tc.path, "application/yaml", strings.NewReader(tc.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, tc.status, resp.StatusCode)

			if tc.status != http.StatusOK {
				return
			}
			var report scenario.Report
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
			require.True(t, report.OK(), report.Failures)
			require.NotEmpty(t, report.ID)
		})
	}
}

func TestServeMetrics(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/scenarios/release-unheld/run", "", nil)
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	require.Contains(t, string(body), `rwgate_lock_acquisitions_total{gate="write",lock="release-unheld",outcome="claimed"} 1`)
	require.Contains(t, string(body), `rwgate_lock_releases_total{gate="write",lock="release-unheld"} 3`)
	require.Contains(t, string(body), `rwgate_lock_claimed{gate="write",lock="release-unheld"} 0`)
	require.Contains(t, string(body), "go_goroutines")
}

func TestServeUploadedRunLabel(t *testing.T) {
	srv := newTestServer(t)

	upload := "name: my-upload\nactors: [{name: A, steps: [{op: acquire_write}, {op: release_write}]}]"
	resp, err := http.Post(srv.URL+"/run", "application/yaml", strings.NewReader(upload))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	require.Contains(t, string(body), `rwgate_lock_releases_total{gate="write",lock="uploaded"} 1`)
	require.NotContains(t, string(body), "my-upload")
}

func TestServeShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, zaptest.NewLogger(t), "127.0.0.1:0", http.NotFoundHandler())
	}()
	cancel()
	require.NoError(t, <-done)
}
