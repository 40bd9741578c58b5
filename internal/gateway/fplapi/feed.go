package fplapi

import (
	"context"
	"fmt"
	"sort"
	"time"

	"fplpilot/internal/market"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// Event is one gameweek from bootstrap-static.
type Event struct {
	ID        int
	IsCurrent bool
	Finished  bool
	Deadline  time.Time
}

// HistoryRow is one played fixture from element-summary.
type HistoryRow struct {
	Round       int
	TotalPoints int
	Minutes     int
	Goals       int
	Assists     int
	CleanSheets int
}

func (c *Client) bootstrap(ctx context.Context) (gjson.Result, error) {
	body, err := c.fetch(ctx, "/bootstrap-static/", c.cfg.BootstrapTTL)
	if err != nil {
		return gjson.Result{}, err
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("bootstrap-static: invalid json")
	}
	return gjson.ParseBytes(body), nil
}

func (c *Client) Events(ctx context.Context) ([]Event, error) {
	root, err := c.bootstrap(ctx)
	if err != nil {
		return nil, err
	}
	var out []Event
	root.Get("events").ForEach(func(_, e gjson.Result) bool {
		ev := Event{
			ID:        int(e.Get("id").Int()),
			IsCurrent: e.Get("is_current").Bool(),
			Finished:  e.Get("finished").Bool(),
		}
		if t, err := time.Parse(time.RFC3339, e.Get("deadline_time").String()); err == nil {
			ev.Deadline = t
		}
		out = append(out, ev)
		return true
	})
	return out, nil
}

// CurrentGameweek is the event flagged current, else the first unfinished one
// by deadline. Zero means none is known.
func (c *Client) CurrentGameweek(ctx context.Context) (int, error) {
	events, err := c.Events(ctx)
	if err != nil {
		return 0, err
	}
	return CurrentFromEvents(events), nil
}

func CurrentFromEvents(events []Event) int {
	for _, e := range events {
		if e.IsCurrent {
			return e.ID
		}
	}
	upcoming := make([]Event, 0, len(events))
	for _, e := range events {
		if !e.Finished {
			upcoming = append(upcoming, e)
		}
	}
	sort.SliceStable(upcoming, func(i, j int) bool { return upcoming[i].Deadline.Before(upcoming[j].Deadline) })
	if len(upcoming) == 0 {
		return 0
	}
	return upcoming[0].ID
}

func (c *Client) Catalog(ctx context.Context) (*market.Catalog, error) {
	root, err := c.bootstrap(ctx)
	if err != nil {
		return nil, err
	}
	var teams []market.Team
	root.Get("teams").ForEach(func(_, t gjson.Result) bool {
		teams = append(teams, market.Team{
			ID:    int(t.Get("id").Int()),
			Name:  t.Get("name").String(),
			Short: t.Get("short_name").String(),
		})
		return true
	})
	var players []market.Player
	root.Get("elements").ForEach(func(_, e gjson.Result) bool {
		pos := market.PositionFromElementType(int(e.Get("element_type").Int()))
		if pos == "" {
			return true
		}
		p := market.Player{
			ID:            int(e.Get("id").Int()),
			WebName:       e.Get("web_name").String(),
			TeamID:        int(e.Get("team").Int()),
			Position:      pos,
			Price:         decimal.New(e.Get("now_cost").Int(), -1),
			Form:          e.Get("form").Float(),
			PointsPerGame: e.Get("points_per_game").Float(),
			TotalPoints:   int(e.Get("total_points").Int()),
			Minutes:       int(e.Get("minutes").Int()),
			Status:        e.Get("status").String(),
			SelectedBy:    e.Get("selected_by_percent").Float(),
			ICTIndex:      e.Get("ict_index").Float(),
			News:          e.Get("news").String(),
		}
		if ch := e.Get("chance_of_playing_next_round"); ch.Exists() && ch.Type != gjson.Null {
			v := int(ch.Int())
			p.ChanceNext = &v
		}
		players = append(players, p)
		return true
	})
	return market.NewCatalog(players, teams), nil
}

func (c *Client) Fixtures(ctx context.Context) ([]market.Fixture, error) {
	body, err := c.fetch(ctx, "/fixtures/", c.cfg.FixturesTTL)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("fixtures: invalid json")
	}
	var out []market.Fixture
	gjson.ParseBytes(body).ForEach(func(_, f gjson.Result) bool {
		fx := market.Fixture{
			ID:              int(f.Get("id").Int()),
			Event:           int(f.Get("event").Int()),
			TeamH:           int(f.Get("team_h").Int()),
			TeamA:           int(f.Get("team_a").Int()),
			TeamHDifficulty: int(f.Get("team_h_difficulty").Int()),
			TeamADifficulty: int(f.Get("team_a_difficulty").Int()),
			Finished:        f.Get("finished").Bool(),
		}
		if t, err := time.Parse(time.RFC3339, f.Get("kickoff_time").String()); err == nil {
			fx.Kickoff = t
		}
		out = append(out, fx)
		return true
	})
	return out, nil
}

// History returns the per-fixture rows of one player this season.
func (c *Client) History(ctx context.Context, playerID int) ([]HistoryRow, error) {
	body, err := c.fetch(ctx, fmt.Sprintf("/element-summary/%d/", playerID), c.cfg.SummaryTTL)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("element-summary %d: invalid json", playerID)
	}
	var out []HistoryRow
	gjson.GetBytes(body, "history").ForEach(func(_, h gjson.Result) bool {
		out = append(out, HistoryRow{
			Round:       int(h.Get("round").Int()),
			TotalPoints: int(h.Get("total_points").Int()),
			Minutes:     int(h.Get("minutes").Int()),
			Goals:       int(h.Get("goals_scored").Int()),
			Assists:     int(h.Get("assists").Int()),
			CleanSheets: int(h.Get("clean_sheets").Int()),
		})
		return true
	})
	return out, nil
}

// PointsFor sums every history row of the round, so double gameweeks count
// both fixtures and blank weeks score zero.
func (c *Client) PointsFor(ctx context.Context, playerID, gw int) (int, error) {
	rows, err := c.History(ctx, playerID)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, r := range rows {
		if r.Round == gw {
			total += r.TotalPoints
		}
	}
	return total, nil
}

var (
	_ market.Feed         = (*Client)(nil)
	_ market.PointsSource = (*Client)(nil)
)
