package kb

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"fplpilot/internal/gateway/fplapi"
	"fplpilot/internal/market"
	"fplpilot/internal/market/markettest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFeed struct {
	gw  int
	cat *market.Catalog
	fx  []market.Fixture
}

func (s stubFeed) CurrentGameweek(context.Context) (int, error) { return s.gw, nil }
func (s stubFeed) Catalog(context.Context) (*market.Catalog, error) { return s.cat, nil }
func (s stubFeed) Fixtures(context.Context) ([]market.Fixture, error) { return s.fx, nil }

type stubHistory map[int][]fplapi.HistoryRow

func (s stubHistory) History(_ context.Context, id int) ([]fplapi.HistoryRow, error) {
	rows, ok := s[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return rows, nil
}

func TestBuild(t *testing.T) {
	feed := stubFeed{gw: 3, cat: markettest.Catalog(), fx: markettest.Fixtures(3, 6)}
	hist := stubHistory{101: {{Round: 1, TotalPoints: 6, Minutes: 90, CleanSheets: 1}, {Round: 2, TotalPoints: 2, Minutes: 90}}}
	b := NewBuilder(feed, hist, Options{IncludeHistory: true, LastN: 3, Location: time.UTC})
	b.now = func() time.Time { return time.Date(2025, 8, 30, 9, 5, 0, 0, time.UTC) }

	out, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "KB_BUILT: 2025-08-30 09:05 | CURRENT_GW: 3 | PLAYERS: 120", out.Header)
	assert.Equal(t, 120, out.Players)
	assert.True(t, strings.HasPrefix(out.Text, out.Header))
	assert.Contains(t, out.Text, "TEAM_FIX: T01 → GW3 vs T10 (FDR 1); GW4 vs T10 (FDR 1); GW5 vs T10 (FDR 1)")
	assert.Contains(t, out.Text, "TEAM_FIX: T10 → GW3 @ T01 (FDR 2)")
	assert.Contains(t, out.Text, "PLAYER: P101 | TEAM: T01 | POS: GK | PRICE: £4.5m")
	assert.Contains(t, out.Text, "RECENT(2): pts[6,2] | avg 4.00 | mins/90 2.0 | G0 A0 CS1")
	assert.Contains(t, out.Text, "RECENT: n/a")
}

func TestBuildWithoutHistory(t *testing.T) {
	feed := stubFeed{gw: 0, cat: markettest.Catalog()}
	out, err := NewBuilder(feed, nil, Options{Location: time.UTC}).Build(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out.Header, "CURRENT_GW: None")
	assert.NotContains(t, out.Text, "RECENT")
}

func TestRecentBlockKeepsLastN(t *testing.T) {
	rows := []fplapi.HistoryRow{{TotalPoints: 1}, {TotalPoints: 2}, {TotalPoints: 3, Goals: 1}}
	assert.Equal(t, "RECENT(2): pts[2,3] | avg 2.50 | mins/90 0.0 | G1 A0 CS0", RecentBlock(rows, 2))
}
