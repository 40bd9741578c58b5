package fplapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fplpilot/internal/market"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bootstrapJSON = `{
  "events": [
    {"id": 1, "is_current": false, "finished": true, "deadline_time": "2025-08-15T17:30:00Z"},
    {"id": 2, "is_current": true, "finished": false, "deadline_time": "2025-08-22T17:30:00Z"},
    {"id": 3, "is_current": false, "finished": false, "deadline_time": "2025-08-29T17:30:00Z"}
  ],
  "teams": [{"id": 1, "name": "Arsenal", "short_name": "ARS"}, {"id": 2, "name": "Liverpool", "short_name": "LIV"}],
  "elements": [
    {"id": 10, "web_name": "Raya", "team": 1, "element_type": 1, "now_cost": 55, "form": "4.5", "points_per_game": "4.0",
     "total_points": 8, "minutes": 180, "status": "a", "selected_by_percent": "31.2", "chance_of_playing_next_round": null, "ict_index": "12.1", "news": ""},
    {"id": 20, "web_name": "Salah", "team": 2, "element_type": 3, "now_cost": 145, "form": "9.0", "points_per_game": "8.5",
     "total_points": 17, "minutes": 180, "status": "d", "selected_by_percent": "60.0", "chance_of_playing_next_round": 75, "ict_index": "30.0", "news": "knock"},
    {"id": 30, "web_name": "Ghost", "team": 2, "element_type": 5, "now_cost": 10}
  ]
}`

const fixturesJSON = `[
  {"id": 1, "event": 2, "team_h": 1, "team_a": 2, "team_h_difficulty": 4, "team_a_difficulty": 3, "finished": false, "kickoff_time": "2025-08-23T14:00:00Z"},
  {"id": 2, "event": null, "team_h": 2, "team_a": 1, "team_h_difficulty": 3, "team_a_difficulty": 5, "finished": false, "kickoff_time": null}
]`

const summaryJSON = `{"history": [
  {"round": 1, "total_points": 12, "minutes": 90, "goals_scored": 1, "assists": 1, "clean_sheets": 0},
  {"round": 2, "total_points": 2, "minutes": 90},
  {"round": 2, "total_points": 5, "minutes": 90}
]}`

func newServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/bootstrap-static/", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(bootstrapJSON))
	})
	mux.HandleFunc("/api/fixtures/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(fixturesJSON))
	})
	mux.HandleFunc("/api/element-summary/20/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(summaryJSON))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCatalogAndCurrentGameweek(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, &hits)
	c := New(Config{BaseURL: srv.URL + "/api/", BootstrapTTL: time.Minute})
	ctx := context.Background()

	gw, err := c.CurrentGameweek(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, gw)

	cat, err := c.Catalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, cat.Len(), "unknown element types are skipped")
	salah, ok := cat.Player(20)
	require.True(t, ok)
	assert.Equal(t, market.MID, salah.Position)
	assert.True(t, salah.Price.Equal(decimal.RequireFromString("14.5")))
	assert.Equal(t, "LIV", salah.TeamShort)
	assert.InDelta(t, 9.0, salah.Form, 1e-9)
	require.NotNil(t, salah.ChanceNext)
	assert.Equal(t, 75, *salah.ChanceNext)
	raya, _ := cat.Player(10)
	assert.Nil(t, raya.ChanceNext)

	assert.EqualValues(t, 1, hits.Load(), "bootstrap is cached")
	c.Invalidate()
	_, err = c.Catalog(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, hits.Load())
}

func TestFixturesAndPoints(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, &hits)
	c := New(Config{BaseURL: srv.URL + "/api"})
	ctx := context.Background()

	fx, err := c.Fixtures(ctx)
	require.NoError(t, err)
	require.Len(t, fx, 2)
	assert.Equal(t, 4, fx[0].TeamHDifficulty)
	assert.Equal(t, 0, fx[1].Event)
	assert.True(t, fx[1].Kickoff.IsZero())

	pts, err := c.PointsFor(ctx, 20, 2)
	require.NoError(t, err)
	assert.Equal(t, 7, pts, "double gameweek sums both rows")
	pts, err = c.PointsFor(ctx, 20, 9)
	require.NoError(t, err)
	assert.Zero(t, pts)

	_, err = c.PointsFor(ctx, 99, 1)
	assert.Error(t, err)
}

func TestCurrentFromEventsFallsBackToDeadline(t *testing.T) {
	d := func(day int) time.Time { return time.Date(2025, 8, day, 17, 30, 0, 0, time.UTC) }
	events := []Event{
		{ID: 1, Finished: true, Deadline: d(1)},
		{ID: 3, Deadline: d(15)},
		{ID: 2, Deadline: d(8)},
	}
	assert.Equal(t, 2, CurrentFromEvents(events))
	assert.Zero(t, CurrentFromEvents([]Event{{ID: 38, Finished: true}}))
}

func TestConcurrentMissesShareOneRequest(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		_, _ = w.Write([]byte(bootstrapJSON))
	}))
	defer srv.Close()
	c := New(Config{BaseURL: srv.URL, BootstrapTTL: time.Minute})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.CurrentGameweek(context.Background())
			assert.NoError(t, err)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.EqualValues(t, 1, hits.Load())
}
