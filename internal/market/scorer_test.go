package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvgUpcomingDifficulty(t *testing.T) {
	k := time.Date(2025, 8, 16, 14, 0, 0, 0, time.UTC)
	fixtures := []Fixture{
		{Event: 1, TeamH: 1, TeamA: 2, TeamHDifficulty: 5, TeamADifficulty: 1, Finished: true, Kickoff: k},
		{Event: 4, TeamH: 3, TeamA: 1, TeamHDifficulty: 2, TeamADifficulty: 4, Kickoff: k.AddDate(0, 0, 21)},
		{Event: 2, TeamH: 1, TeamA: 3, TeamHDifficulty: 2, TeamADifficulty: 3, Kickoff: k.AddDate(0, 0, 7)},
		{Event: 3, TeamH: 2, TeamA: 1, TeamHDifficulty: 3, TeamADifficulty: 3, Kickoff: k.AddDate(0, 0, 14)},
		{Event: 5, TeamH: 1, TeamA: 2, TeamHDifficulty: 5, TeamADifficulty: 5, Kickoff: k.AddDate(0, 0, 28)},
		{Event: 0, TeamH: 1, TeamA: 4, TeamHDifficulty: 1, TeamADifficulty: 1},
	}
	// gw2 home 2, gw3 away 3, gw4 away 4; finished, later and unscheduled ones are ignored.
	assert.InDelta(t, 3.0, AvgUpcomingDifficulty(1, fixtures, 3), 1e-9)
	assert.InDelta(t, 2.0, AvgUpcomingDifficulty(1, fixtures, 1), 1e-9)
	assert.InDelta(t, 3.0, AvgUpcomingDifficulty(99, fixtures, 3), 1e-9, "no fixtures")
}

func TestScore(t *testing.T) {
	p := Player{Form: 5, PointsPerGame: 5, Minutes: 900, Status: "a"}
	// (3 + 4) * (6 - 2) * (0.6 + 0.4*0.5)
	assert.InDelta(t, 22.4, Score(p, 2), 1e-9)

	p.Status = "i"
	assert.InDelta(t, 16.0, Score(p, 2), 1e-9)

	p.Status = "d"
	p.Minutes = 5000
	assert.InDelta(t, 28.0, Score(p, 2), 1e-9)
}

func TestScoreMarketOrdersByScoreThenID(t *testing.T) {
	c := NewCatalog([]Player{
		{ID: 3, TeamID: 1, Form: 1, Minutes: 1800, Status: "a"},
		{ID: 2, TeamID: 1, Form: 4, Minutes: 1800, Status: "a"},
		{ID: 1, TeamID: 1, Form: 1, Minutes: 1800, Status: "a"},
		{ID: 4, TeamID: 2, Form: 4, Minutes: 1800, Status: "u"},
	}, []Team{{ID: 1, Short: "AAA"}, {ID: 2, Short: "BBB"}})

	scored := ScoreMarket(c, nil)
	require.Len(t, scored, 4)
	ids := make([]int, len(scored))
	for i, s := range scored {
		ids[i] = s.ID
	}
	assert.Equal(t, []int{2, 1, 3, 4}, ids)
	assert.Equal(t, "AAA", scored[0].TeamShort)
	assert.InDelta(t, 3.0, scored[0].AvgDifficulty, 1e-9)

	idx := ScoreIndex(scored)
	assert.InDelta(t, scored[0].Score, idx[2], 1e-9)
}

func TestCatalogDropsDuplicates(t *testing.T) {
	c := NewCatalog([]Player{{ID: 7, WebName: "first"}, {ID: 7, WebName: "second"}, {ID: 5}}, nil)
	assert.Equal(t, 2, c.Len())
	p, ok := c.Player(7)
	require.True(t, ok)
	assert.Equal(t, "first", p.WebName)
	assert.Equal(t, 5, c.Players()[0].ID)

	var empty *Catalog
	_, ok = empty.Player(1)
	assert.False(t, ok)
	assert.Zero(t, empty.Len())
	assert.Equal(t, GK, PositionFromElementType(1))
	assert.Equal(t, Position(""), PositionFromElementType(9))
}
