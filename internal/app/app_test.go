package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fplpilot/internal/autopilot"
	"fplpilot/internal/config"
	"fplpilot/internal/gateway/fplapi"
	"fplpilot/internal/season"
	"fplpilot/internal/store/decisionlog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bootstrapJSON = `{
  "events": [{"id": 1, "is_current": true, "finished": false, "deadline_time": "2025-08-15T17:30:00Z"}],
  "teams": [{"id": 1, "name": "Arsenal", "short_name": "ARS"}],
  "elements": [{"id": 10, "web_name": "Raya", "team": 1, "element_type": 1, "now_cost": 55, "status": "a"}]
}`

func fakeFeed(t *testing.T) *fplapi.Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/bootstrap-static/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(bootstrapJSON))
	})
	mux.HandleFunc("/api/fixtures/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return fplapi.New(fplapi.Config{BaseURL: srv.URL + "/api", Timeout: time.Second})
}

func loadConfig(t *testing.T, extra string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	body := strings.Join([]string{
		"app:",
		"  http_addr: 127.0.0.1:0",
		"autopilot:",
		`  advance_cron: ""`,
		"fpl:",
		"  include_history: false",
		"store:",
		"  path: " + filepath.Join(dir, "season.db"),
		"ai:",
		"  api_key: \"\"",
		"  decision_log_path: " + filepath.Join(dir, "oracle.db"),
		extra,
	}, "\n")
	p := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	cfg, err := config.Load(p)
	require.NoError(t, err)
	return cfg
}

func TestBuildCoreDraftWithoutOracle(t *testing.T) {
	cfg := loadConfig(t, "")
	core, err := NewAppBuilder(cfg, WithFeed(fakeFeed(t))).BuildCore(context.Background())
	require.NoError(t, err)
	defer core.Close()
	ctx := context.Background()

	st, err := core.Service.State(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, season.PhaseUnseeded, st.Phase())

	rep, err := core.Service.Draft(ctx, "alice", autopilot.Options{})
	require.NoError(t, err)
	assert.False(t, rep.Seeded)
	assert.True(t, strings.HasPrefix(rep.Origin, "ai_failed:"), rep.Origin)

	users, err := core.Store.Users(ctx, cfg.Season.Label)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, users)
}

func TestBuildCoreSharedDecisionLog(t *testing.T) {
	cfg := loadConfig(t, "")
	cfg.AI.DecisionLogPath = ""
	core, err := NewAppBuilder(cfg, WithFeed(fakeFeed(t))).BuildCore(context.Background())
	require.NoError(t, err)
	defer core.Close()

	calls, err := core.Calls.ListCalls(context.Background(), decisionlog.Query{Season: "2025-26"})
	require.NoError(t, err)
	assert.Empty(t, calls)
}

func TestAppRunStopsOnCancel(t *testing.T) {
	cfg := loadConfig(t, "")
	a, err := NewAppBuilder(cfg, WithFeed(fakeFeed(t))).Build(context.Background())
	require.NoError(t, err)
	require.NotNil(t, a.Service())

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- a.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("app did not stop")
	}
}

func TestStartupSummary(t *testing.T) {
	cfg := loadConfig(t, "")
	var buf bytes.Buffer
	newStartupSummary(cfg).Fprint(&buf)
	out := buf.String()
	assert.Contains(t, out, "season 2025-26")
	assert.Contains(t, out, "fail_closed")
	assert.Contains(t, out, "/mcp")
}
