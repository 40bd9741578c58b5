package market

import (
	"math"
	"sort"
)

const (
	// UpcomingFixtures is how many unplayed fixtures feed the difficulty average.
	UpcomingFixtures  = 3
	defaultDifficulty = 3.0
	fullMinutes       = 1800.0
)

// Scored pairs a player with the heuristic suitability score.
type Scored struct {
	Player
	AvgDifficulty float64 `json:"avg_fdr"`
	Score         float64 `json:"score"`
}

// AvgUpcomingDifficulty averages the club's side-specific FDR over its next n
// unfinished scheduled fixtures. Clubs with nothing scheduled get 3.0.
func AvgUpcomingDifficulty(teamID int, fixtures []Fixture, n int) float64 {
	if n <= 0 {
		n = UpcomingFixtures
	}
	upcoming := make([]Fixture, 0, 8)
	for _, f := range fixtures {
		if f.Finished || f.Event == 0 {
			continue
		}
		if f.TeamH == teamID || f.TeamA == teamID {
			upcoming = append(upcoming, f)
		}
	}
	if len(upcoming) == 0 {
		return defaultDifficulty
	}
	sort.SliceStable(upcoming, func(i, j int) bool {
		if upcoming[i].Event != upcoming[j].Event {
			return upcoming[i].Event < upcoming[j].Event
		}
		return upcoming[i].Kickoff.Before(upcoming[j].Kickoff)
	})
	if len(upcoming) > n {
		upcoming = upcoming[:n]
	}
	sum := 0.0
	for _, f := range upcoming {
		if f.TeamH == teamID {
			sum += float64(f.TeamHDifficulty)
		} else {
			sum += float64(f.TeamADifficulty)
		}
	}
	return sum / float64(len(upcoming))
}

// StatusPenalty is 0 for available or doubtful players and -2 for anyone else.
func StatusPenalty(status string) float64 {
	switch status {
	case "a", "d":
		return 0
	default:
		return -2
	}
}

// Score is the suitability heuristic:
// (0.6*form + 0.8*ppg + penalty) * (6 - fdr) * (0.6 + 0.4*min(1, minutes/1800)).
func Score(p Player, avgDifficulty float64) float64 {
	base := 0.6*p.Form + 0.8*p.PointsPerGame + StatusPenalty(p.Status)
	fixture := 6 - avgDifficulty
	reliability := 0.6 + 0.4*math.Min(1, float64(p.Minutes)/fullMinutes)
	return base * fixture * reliability
}

// ScoreMarket scores every catalog player, best first. Ties break on lower id.
func ScoreMarket(c *Catalog, fixtures []Fixture) []Scored {
	players := c.Players()
	fdrByTeam := make(map[int]float64)
	out := make([]Scored, 0, len(players))
	for _, p := range players {
		fdr, ok := fdrByTeam[p.TeamID]
		if !ok {
			fdr = AvgUpcomingDifficulty(p.TeamID, fixtures, UpcomingFixtures)
			fdrByTeam[p.TeamID] = fdr
		}
		out = append(out, Scored{Player: p, AvgDifficulty: fdr, Score: Score(p, fdr)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ScoreIndex maps player id to score.
func ScoreIndex(scored []Scored) map[int]float64 {
	out := make(map[int]float64, len(scored))
	for _, s := range scored {
		out[s.ID] = s.Score
	}
	return out
}
