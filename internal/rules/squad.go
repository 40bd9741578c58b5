package rules

import (
	"fmt"

	"fplpilot/internal/market"

	"github.com/shopspring/decimal"
)

// ValidateInitialSquad gates an opening squad. It needs exactly 15 unique
// catalog ids in the {GK:2, DEF:5, MID:5, FWD:3} shape, a total price within
// budget and at most three players from any club. There is no partial acceptance.
func ValidateInitialSquad(ids []int, c *market.Catalog, budget decimal.Decimal) error {
	if len(ids) != SquadSize {
		return fmt.Errorf("%w: need exactly %d ids, got %d", ErrSquadSize, SquadSize, len(ids))
	}
	seen := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: %d", ErrDuplicatePlayer, id)
		}
		seen[id] = struct{}{}
	}
	shape := make(map[market.Position]int, len(SquadShape))
	for _, id := range ids {
		p, ok := c.Player(id)
		if !ok {
			return fmt.Errorf("%w: %d", ErrUnknownPlayer, id)
		}
		shape[p.Position]++
	}
	if err := checkShape(shape); err != nil {
		return err
	}
	cost := SquadCost(c, ids)
	if cost.GreaterThan(budget.Add(budgetTolerance)) {
		return fmt.Errorf("%w: £%sm > £%sm", ErrOverBudget, cost.StringFixed(1), budget.StringFixed(1))
	}
	if club, n := maxClub(clubCounts(c, ids)); n > MaxPerClub {
		return fmt.Errorf("%w: %d from %s", ErrClubCap, n, clubLabel(c, club))
	}
	return nil
}

func checkShape(got map[market.Position]int) error {
	for _, pos := range market.Positions {
		if got[pos] != SquadShape[pos] {
			return fmt.Errorf("%w: GK=%d DEF=%d MID=%d FWD=%d", ErrSquadShape,
				got[market.GK], got[market.DEF], got[market.MID], got[market.FWD])
		}
	}
	return nil
}

// SquadCost sums current catalog prices; unknown ids count as zero.
func SquadCost(c *market.Catalog, ids []int) decimal.Decimal {
	total := decimal.Zero
	for _, id := range ids {
		if p, ok := c.Player(id); ok {
			total = total.Add(p.Price)
		}
	}
	return total
}
