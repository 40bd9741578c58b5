package autopilot

import (
	"context"

	"fplpilot/internal/logger"
	"fplpilot/internal/market"
	"fplpilot/internal/season"
)

// RealizedPoints scores a lineup for one gameweek: every starter once, the
// captain once more (twice more with TC) and, with BB, the bench too. A player
// whose lookup fails contributes nothing.
func RealizedPoints(ctx context.Context, xi []int, captain int, bench []int, chip season.Chip, gw int, src market.PointsSource) int {
	cache := make(map[int]int, len(xi)+len(bench))
	lookup := func(id int) int {
		if v, ok := cache[id]; ok {
			return v
		}
		v := 0
		if src != nil {
			pts, err := src.PointsFor(ctx, id, gw)
			if err != nil {
				logger.Debugf("[autopilot] points lookup player=%d gw=%d: %v", id, gw, err)
			} else {
				v = pts
			}
		}
		cache[id] = v
		return v
	}

	total := 0
	for _, id := range xi {
		total += lookup(id)
	}
	capPts := lookup(captain)
	total += capPts
	if chip == season.ChipTC {
		total += capPts
	}
	if chip == season.ChipBB {
		for _, id := range bench {
			total += lookup(id)
		}
	}
	return total
}
