package rules

import (
	"fmt"

	"fplpilot/internal/market"
	"fplpilot/internal/season"

	"github.com/shopspring/decimal"
)

// TransferResult is what applying a transfer would leave behind.
type TransferResult struct {
	Squad    []season.Member
	Bank     decimal.Decimal
	Made     bool
	Transfer *season.Transfer
}

// ValidateTransfer checks an optional single swap against the current squad.
// Both ids nil means no transfer. A half-specified swap is rejected. On any
// rejection the returned result carries the unchanged squad and bank.
func ValidateTransfer(c *market.Catalog, squad []season.Member, bank decimal.Decimal, outID, inID *int) (TransferResult, error) {
	unchanged := TransferResult{Squad: squad, Bank: bank}
	if outID == nil && inID == nil {
		return unchanged, nil
	}
	if outID == nil || inID == nil {
		return unchanged, ErrIncompleteSwap
	}
	out, in := *outID, *inID

	idx := -1
	for i, m := range squad {
		if m.ID == out {
			idx = i
		}
		if m.ID == in {
			return unchanged, fmt.Errorf("%w: %d", ErrAlreadyOwned, in)
		}
	}
	if idx < 0 {
		return unchanged, fmt.Errorf("%w: %d", ErrNotOwned, out)
	}
	outP, ok := c.Player(out)
	if !ok {
		return unchanged, fmt.Errorf("%w: %d", ErrUnknownPlayer, out)
	}
	inP, ok := c.Player(in)
	if !ok {
		return unchanged, fmt.Errorf("%w: %d", ErrUnknownPlayer, in)
	}
	if outP.Position != inP.Position {
		return unchanged, fmt.Errorf("%w: %s out, %s in", ErrPositionMismatch, outP.Position, inP.Position)
	}

	ids := make([]int, 0, len(squad))
	for _, m := range squad {
		if m.ID != out {
			ids = append(ids, m.ID)
		}
	}
	if n := clubCounts(c, ids)[inP.TeamID] + 1; n > MaxPerClub {
		return unchanged, fmt.Errorf("%w: %d from %s", ErrClubCap, n, clubLabel(c, inP.TeamID))
	}

	// A cheaper incoming player never refunds the difference.
	delta := decimal.Max(inP.Price.Sub(outP.Price), decimal.Zero)
	if delta.GreaterThan(bank) {
		return unchanged, fmt.Errorf("%w: need £%sm, bank £%sm", ErrOverBudget, delta.StringFixed(1), bank.StringFixed(1))
	}

	next := make([]season.Member, len(squad))
	copy(next, squad)
	next[idx] = season.Member{ID: in, BuyPrice: inP.Price}
	return TransferResult{
		Squad:    next,
		Bank:     bank.Sub(delta),
		Made:     true,
		Transfer: &season.Transfer{Out: out, In: in},
	}, nil
}

// RequireFreeTransfer rejects a transfer when none are banked.
func RequireFreeTransfer(free int) error {
	if free < 1 {
		return ErrNoFreeTransfer
	}
	return nil
}
