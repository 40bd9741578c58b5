package autopilot

import (
	"errors"
	"fmt"
	"sort"

	"fplpilot/internal/market"
	"fplpilot/internal/rules"

	"github.com/shopspring/decimal"
)

var ErrNoLegalSelection = errors.New("no legal selection")

// GreedyDraft fills the squad by descending score, skipping anyone who would
// break the shape or club cap, and keeps enough budget back to complete the
// remaining slots at the cheapest price available for their position.
func GreedyDraft(c *market.Catalog, fixtures []market.Fixture, budget decimal.Decimal) ([]int, error) {
	scored := market.ScoreMarket(c, fixtures)

	cheapest := make(map[market.Position]decimal.Decimal)
	for _, p := range c.Players() {
		if cur, ok := cheapest[p.Position]; !ok || p.Price.LessThan(cur) {
			cheapest[p.Position] = p.Price
		}
	}
	need := make(map[market.Position]int, len(rules.SquadShape))
	for pos, n := range rules.SquadShape {
		need[pos] = n
	}
	reserve := func() decimal.Decimal {
		total := decimal.Zero
		for pos, n := range need {
			total = total.Add(cheapest[pos].Mul(decimal.NewFromInt(int64(n))))
		}
		return total
	}

	clubs := make(map[int]int)
	spent := decimal.Zero
	picked := make([]int, 0, rules.SquadSize)
	for _, s := range scored {
		if len(picked) == rules.SquadSize {
			break
		}
		if need[s.Position] == 0 || clubs[s.TeamID] >= rules.MaxPerClub {
			continue
		}
		need[s.Position]--
		if spent.Add(s.Price).Add(reserve()).GreaterThan(budget) {
			need[s.Position]++
			continue
		}
		clubs[s.TeamID]++
		spent = spent.Add(s.Price)
		picked = append(picked, s.ID)
	}
	if len(picked) != rules.SquadSize {
		return nil, fmt.Errorf("%w: greedy draft filled %d of %d slots", ErrNoLegalSelection, len(picked), rules.SquadSize)
	}
	if err := rules.ValidateInitialSquad(picked, c, budget); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoLegalSelection, err)
	}
	return picked, nil
}

// Lineup is a starting eleven, ordered bench and captain.
type Lineup struct {
	XI        []int  `json:"xi_ids"`
	Bench     []int  `json:"bench_ids"`
	CaptainID int    `json:"captain_id"`
	Formation string `json:"formation"`
}

// AutoLineup picks the legal formation with the highest total score. The spare
// keeper leads the bench, followed by outfielders best first. The captain is
// the best-scored starter.
func AutoLineup(c *market.Catalog, squadIDs []int, scores map[int]float64) (Lineup, error) {
	byPos := make(map[market.Position][]int)
	for _, id := range squadIDs {
		p, ok := c.Player(id)
		if !ok {
			return Lineup{}, fmt.Errorf("%w: %d", rules.ErrUnknownPlayer, id)
		}
		byPos[p.Position] = append(byPos[p.Position], id)
	}
	rank := func(ids []int) {
		sort.SliceStable(ids, func(i, j int) bool {
			if scores[ids[i]] != scores[ids[j]] {
				return scores[ids[i]] > scores[ids[j]]
			}
			return ids[i] < ids[j]
		})
	}
	for _, ids := range byPos {
		rank(ids)
	}
	if len(byPos[market.GK]) == 0 {
		return Lineup{}, fmt.Errorf("%w: no goalkeeper", ErrNoLegalSelection)
	}

	sum := func(ids []int) float64 {
		total := 0.0
		for _, id := range ids {
			total += scores[id]
		}
		return total
	}
	formations := make([]rules.Formation, 0, len(rules.LegalFormations))
	for f := range rules.LegalFormations {
		formations = append(formations, f)
	}
	sort.Slice(formations, func(i, j int) bool { return formations[i].String() < formations[j].String() })

	var best rules.Formation
	bestScore, found := 0.0, false
	for _, f := range formations {
		if len(byPos[market.DEF]) < f.DEF || len(byPos[market.MID]) < f.MID || len(byPos[market.FWD]) < f.FWD {
			continue
		}
		total := sum(byPos[market.DEF][:f.DEF]) + sum(byPos[market.MID][:f.MID]) + sum(byPos[market.FWD][:f.FWD])
		if !found || total > bestScore {
			best, bestScore, found = f, total, true
		}
	}
	if !found {
		return Lineup{}, fmt.Errorf("%w: no legal formation", ErrNoLegalSelection)
	}

	xi := []int{byPos[market.GK][0]}
	xi = append(xi, byPos[market.DEF][:best.DEF]...)
	xi = append(xi, byPos[market.MID][:best.MID]...)
	xi = append(xi, byPos[market.FWD][:best.FWD]...)

	bench := append([]int(nil), byPos[market.GK][1:]...)
	outfield := append(append(append([]int(nil), byPos[market.DEF][best.DEF:]...), byPos[market.MID][best.MID:]...), byPos[market.FWD][best.FWD:]...)
	rank(outfield)
	bench = append(bench, outfield...)

	captain := append([]int(nil), xi...)
	rank(captain)

	out := Lineup{XI: xi, Bench: bench, CaptainID: captain[0], Formation: best.String()}
	if err := rules.ValidateLineup(c, squadIDs, out.XI, out.Bench); err != nil {
		return Lineup{}, err
	}
	return out, nil
}
