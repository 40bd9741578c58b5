package rules

import (
	"fmt"

	"fplpilot/internal/market"
)

// ValidateLineup checks an 11+4 split of the squad: no overlap, nothing outside
// the squad, one goalkeeper starting and a legal outfield formation.
func ValidateLineup(c *market.Catalog, squadIDs, xi, bench []int) error {
	if len(xi) != XISize || len(bench) != BenchSize {
		return fmt.Errorf("%w: xi=%d bench=%d", ErrLineupSize, len(xi), len(bench))
	}
	inXI := make(map[int]struct{}, len(xi))
	for _, id := range xi {
		if _, dup := inXI[id]; dup {
			return fmt.Errorf("%w: %d", ErrDuplicatePlayer, id)
		}
		inXI[id] = struct{}{}
	}
	inBench := make(map[int]struct{}, len(bench))
	for _, id := range bench {
		if _, clash := inXI[id]; clash {
			return fmt.Errorf("%w: %d", ErrLineupOverlap, id)
		}
		if _, dup := inBench[id]; dup {
			return fmt.Errorf("%w: %d", ErrDuplicatePlayer, id)
		}
		inBench[id] = struct{}{}
	}
	owned := make(map[int]struct{}, len(squadIDs))
	for _, id := range squadIDs {
		owned[id] = struct{}{}
	}
	for _, id := range append(append([]int(nil), xi...), bench...) {
		if _, ok := owned[id]; !ok {
			return fmt.Errorf("%w: %d not in squad", ErrLineupMismatch, id)
		}
	}
	if len(owned) != len(xi)+len(bench) {
		return fmt.Errorf("%w: squad has %d players", ErrLineupMismatch, len(owned))
	}

	f, gk, err := FormationOf(c, xi)
	if err != nil {
		return err
	}
	if gk != 1 {
		return fmt.Errorf("%w: got %d", ErrGoalkeeper, gk)
	}
	if !IsLegalFormation(f) {
		return fmt.Errorf("%w: %s", ErrFormation, f)
	}
	return nil
}

// FormationOf counts goalkeepers and outfield lines among the given starters.
func FormationOf(c *market.Catalog, xi []int) (Formation, int, error) {
	var f Formation
	gk := 0
	for _, id := range xi {
		p, ok := c.Player(id)
		if !ok {
			return Formation{}, 0, fmt.Errorf("%w: %d", ErrUnknownPlayer, id)
		}
		switch p.Position {
		case market.GK:
			gk++
		case market.DEF:
			f.DEF++
		case market.MID:
			f.MID++
		case market.FWD:
			f.FWD++
		}
	}
	return f, gk, nil
}

// ValidateCaptain requires the captain to be one of the starters.
func ValidateCaptain(xi []int, captain int) error {
	for _, id := range xi {
		if id == captain {
			return nil
		}
	}
	return fmt.Errorf("%w: %d is not in the starting eleven", ErrCaptain, captain)
}
