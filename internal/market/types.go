package market

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Position is a squad slot family.
type Position string

const (
	GK  Position = "GK"
	DEF Position = "DEF"
	MID Position = "MID"
	FWD Position = "FWD"
)

// Positions in pitch order.
var Positions = []Position{GK, DEF, MID, FWD}

// PositionFromElementType maps the provider's element_type code.
func PositionFromElementType(t int) Position {
	switch t {
	case 1:
		return GK
	case 2:
		return DEF
	case 3:
		return MID
	case 4:
		return FWD
	default:
		return ""
	}
}

// Player is one catalog row. Price is in millions (now_cost / 10).
type Player struct {
	ID            int             `json:"id"`
	WebName       string          `json:"web_name"`
	TeamID        int             `json:"team"`
	TeamShort     string          `json:"team_short"`
	Position      Position        `json:"pos"`
	Price         decimal.Decimal `json:"price"`
	Form          float64         `json:"form"`
	PointsPerGame float64         `json:"points_per_game"`
	TotalPoints   int             `json:"total_points"`
	Minutes       int             `json:"minutes"`
	Status        string          `json:"status"`
	SelectedBy    float64         `json:"selected_by"`
	ChanceNext    *int            `json:"chance_next,omitempty"`
	ICTIndex      float64         `json:"ict_index"`
	News          string          `json:"news,omitempty"`
}

type Team struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Short string `json:"short_name"`
}

// Fixture carries the per-side difficulty ratings. Event is 0 when unscheduled.
type Fixture struct {
	ID              int       `json:"id"`
	Event           int       `json:"event"`
	TeamH           int       `json:"team_h"`
	TeamA           int       `json:"team_a"`
	TeamHDifficulty int       `json:"team_h_difficulty"`
	TeamADifficulty int       `json:"team_a_difficulty"`
	Finished        bool      `json:"finished"`
	Kickoff         time.Time `json:"kickoff_time"`
}

// Catalog is an immutable id-indexed view of the player market.
type Catalog struct {
	players map[int]Player
	order   []int
	teams   map[int]Team
}

func NewCatalog(players []Player, teams []Team) *Catalog {
	c := &Catalog{
		players: make(map[int]Player, len(players)),
		order:   make([]int, 0, len(players)),
		teams:   make(map[int]Team, len(teams)),
	}
	for _, t := range teams {
		c.teams[t.ID] = t
	}
	for _, p := range players {
		if _, dup := c.players[p.ID]; dup {
			continue
		}
		if p.TeamShort == "" {
			p.TeamShort = c.teams[p.TeamID].Short
		}
		c.players[p.ID] = p
		c.order = append(c.order, p.ID)
	}
	sort.Ints(c.order)
	return c
}

func (c *Catalog) Player(id int) (Player, bool) {
	if c == nil {
		return Player{}, false
	}
	p, ok := c.players[id]
	return p, ok
}

func (c *Catalog) Team(id int) (Team, bool) {
	if c == nil {
		return Team{}, false
	}
	t, ok := c.teams[id]
	return t, ok
}

// Players returns all players ordered by id.
func (c *Catalog) Players() []Player {
	if c == nil {
		return nil
	}
	out := make([]Player, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.players[id])
	}
	return out
}

func (c *Catalog) Teams() []Team {
	if c == nil {
		return nil
	}
	out := make([]Team, 0, len(c.teams))
	for _, t := range c.teams {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.players)
}

// Feed is the sports-data boundary the autopilot depends on.
type Feed interface {
	CurrentGameweek(ctx context.Context) (int, error)
	Catalog(ctx context.Context) (*Catalog, error)
	Fixtures(ctx context.Context) ([]Fixture, error)
}

// PointsSource resolves a player's realized points for one gameweek.
type PointsSource interface {
	PointsFor(ctx context.Context, playerID, gw int) (int, error)
}

// PointsFunc adapts a plain function to PointsSource.
type PointsFunc func(ctx context.Context, playerID, gw int) (int, error)

func (f PointsFunc) PointsFor(ctx context.Context, playerID, gw int) (int, error) {
	return f(ctx, playerID, gw)
}
