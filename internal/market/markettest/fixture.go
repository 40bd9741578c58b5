// Package markettest builds a small deterministic player market for tests.
package markettest

import (
	"fmt"
	"time"

	"fplpilot/internal/market"
	"fplpilot/internal/season"

	"github.com/shopspring/decimal"
)

// Clubs in the fixture market.
const Clubs = 10

// slot layout per club: id = club*100 + k.
var slots = []struct {
	k     int
	pos   market.Position
	price string
}{
	{1, market.GK, "4.5"}, {2, market.GK, "4.0"},
	{3, market.DEF, "5.0"}, {4, market.DEF, "4.5"}, {5, market.DEF, "4.5"}, {6, market.DEF, "4.0"},
	{7, market.MID, "6.0"}, {8, market.MID, "5.5"}, {9, market.MID, "5.0"}, {10, market.MID, "4.5"},
	{11, market.FWD, "7.0"}, {12, market.FWD, "6.0"},
}

// Teams returns the fixture clubs T01..T10.
func Teams() []market.Team {
	out := make([]market.Team, 0, Clubs)
	for t := 1; t <= Clubs; t++ {
		out = append(out, market.Team{ID: t, Name: fmt.Sprintf("Team %02d", t), Short: fmt.Sprintf("T%02d", t)})
	}
	return out
}

// Players returns the full pool of 120 players.
func Players() []market.Player {
	out := make([]market.Player, 0, Clubs*len(slots))
	for t := 1; t <= Clubs; t++ {
		for _, s := range slots {
			id := t*100 + s.k
			out = append(out, market.Player{
				ID:            id,
				WebName:       fmt.Sprintf("P%d", id),
				TeamID:        t,
				Position:      s.pos,
				Price:         decimal.RequireFromString(s.price),
				Form:          float64((t*7+s.k*3)%10) / 2,
				PointsPerGame: float64((t*3+s.k*5)%8) / 2,
				Minutes:       900 + 100*s.k,
				Status:        "a",
			})
		}
	}
	return out
}

// Catalog builds the fixture catalog, applying each option to every player.
func Catalog(opts ...func(*market.Player)) *market.Catalog {
	players := Players()
	for i := range players {
		for _, opt := range opts {
			opt(&players[i])
		}
	}
	return market.NewCatalog(players, Teams())
}

// WithPrice overrides one player's price.
func WithPrice(id int, price string) func(*market.Player) {
	return func(p *market.Player) {
		if p.ID == id {
			p.Price = decimal.RequireFromString(price)
		}
	}
}

// WithStatus overrides one player's availability flag.
func WithStatus(id int, status string) func(*market.Player) {
	return func(p *market.Player) {
		if p.ID == id {
			p.Status = status
		}
	}
}

// SquadIDs is a legal 15-man squad costing 85.0, at most two per club.
func SquadIDs() []int {
	return []int{
		101, 201,
		103, 203, 303, 403, 503,
		307, 407, 507, 607, 707,
		611, 711, 811,
	}
}

// XI and Bench split SquadIDs into a legal 4-4-2.
func XI() []int {
	return []int{101, 103, 203, 303, 403, 307, 407, 507, 607, 611, 711}
}

func Bench() []int { return []int{201, 503, 707, 811} }

// Members prices ids against c.
func Members(c *market.Catalog, ids []int) []season.Member {
	out := make([]season.Member, 0, len(ids))
	for _, id := range ids {
		p, _ := c.Player(id)
		out = append(out, season.Member{ID: id, BuyPrice: p.Price})
	}
	return out
}

// Fixtures schedules a round robin of gameweeks fromGW..toGW with difficulty
// rising with the away club id.
func Fixtures(fromGW, toGW int) []market.Fixture {
	out := make([]market.Fixture, 0, (toGW-fromGW+1)*Clubs/2)
	base := time.Date(2025, 8, 16, 14, 0, 0, 0, time.UTC)
	id := 1
	for gw := fromGW; gw <= toGW; gw++ {
		for h := 1; h <= Clubs/2; h++ {
			a := Clubs + 1 - h
			out = append(out, market.Fixture{
				ID:              id,
				Event:           gw,
				TeamH:           h,
				TeamA:           a,
				TeamHDifficulty: 1 + a%5,
				TeamADifficulty: 1 + h%5,
				Kickoff:         base.AddDate(0, 0, 7*(gw-1)),
			})
			id++
		}
	}
	return out
}
