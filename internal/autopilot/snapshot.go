package autopilot

import (
	"context"
	"fmt"

	"fplpilot/internal/kb"
	"fplpilot/internal/logger"
	"fplpilot/internal/market"
)

// SnapshotSource builds the market view for a pass.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// KBSource renders knowledge-base text.
type KBSource interface {
	Build(ctx context.Context) (kb.KB, error)
}

// FeedSnapshots reads the sports-data feed and renders the knowledge base. A
// knowledge-base failure degrades to empty context rather than failing the pass.
type FeedSnapshots struct {
	Feed   market.Feed
	KB     KBSource
	Points market.PointsSource
}

func (f FeedSnapshots) Snapshot(ctx context.Context) (Snapshot, error) {
	gw, err := f.Feed.CurrentGameweek(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("current gameweek: %w", err)
	}
	cat, err := f.Feed.Catalog(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("catalog: %w", err)
	}
	fixtures, err := f.Feed.Fixtures(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fixtures: %w", err)
	}
	snap := Snapshot{CurrentGW: gw, Catalog: cat, Fixtures: fixtures, Points: f.Points}
	if f.KB != nil {
		text, err := f.KB.Build(ctx)
		if err != nil {
			logger.Warnf("[autopilot] knowledge base unavailable: %v", err)
		} else {
			snap.KB = text.Text
		}
	}
	return snap, nil
}
