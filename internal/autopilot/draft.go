package autopilot

import (
	"context"
	"fmt"

	"fplpilot/internal/decision"
	"fplpilot/internal/logger"
	"fplpilot/internal/market"
	"fplpilot/internal/rules"
	"fplpilot/internal/season"
)

const (
	OriginAI       = "ai"
	OriginRedraft  = "ai_redraft"
	originFailed   = "ai_failed:"
	originFallback = "greedy_fallback:"
)

// DraftReport describes the outcome of a draft attempt.
type DraftReport struct {
	Seeded   bool   `json:"seeded"`
	Origin   string `json:"origin"`
	Reason   string `json:"reason,omitempty"`
	SquadIDs []int  `json:"squad_ids,omitempty"`
	TraceID  string `json:"trace_id,omitempty"`
}

// DraftInitialSquad seeds an empty state from the oracle's proposal. When the
// proposal is missing or illegal the configured strategy decides between
// leaving the squad empty and a greedy legal draft. The provenance is saved
// either way.
func (a *Advancer) DraftInitialSquad(ctx context.Context, key season.Key, st *season.State, snap Snapshot, opts Options) (DraftReport, error) {
	if st.HasSquad() {
		return DraftReport{}, ErrAlreadyDrafted
	}
	work := st.Clone()
	ids, prop, failure, err := a.proposeSquad(ctx, key, snap, opts)
	if err != nil {
		return DraftReport{}, err
	}

	var rep DraftReport
	switch {
	case failure == "":
		a.seed(work, snap.Catalog, ids, OriginAI, prop.Reason)
		rep = DraftReport{Seeded: true, Origin: OriginAI, Reason: prop.Reason, SquadIDs: ids, TraceID: prop.TraceID}
	case a.cfg.DraftStrategy == DraftGreedyFallback:
		greedy, gerr := GreedyDraft(snap.Catalog, snap.Fixtures, a.cfg.Budget)
		if gerr != nil {
			work.SeedOrigin, work.SeedReason = originFailed+failure, gerr.Error()
			rep = DraftReport{Origin: work.SeedOrigin, Reason: failure, TraceID: prop.TraceID}
			break
		}
		origin := originFallback + failure
		a.seed(work, snap.Catalog, greedy, origin, "greedy legal draft by market score")
		rep = DraftReport{Seeded: true, Origin: origin, Reason: failure, SquadIDs: greedy, TraceID: prop.TraceID}
	default:
		work.SeedOrigin, work.SeedReason = originFailed+failure, ""
		rep = DraftReport{Origin: work.SeedOrigin, Reason: failure, TraceID: prop.TraceID}
	}

	if err := a.store.Save(ctx, key, work); err != nil {
		return DraftReport{}, fmt.Errorf("save draft: %w", err)
	}
	*st = *work
	if rep.Seeded {
		logger.Infof("[autopilot] %s drafted origin=%s bank=%s", key, rep.Origin, st.Bank.StringFixed(1))
	} else {
		logger.Warnf("[autopilot] %s draft failed: %s", key, rep.Reason)
	}
	return rep, nil
}

// ForceRedraftGW1 replaces all fifteen players before the first deadline has
// been played through, then regenerates gameweek 1. Chips already spent stay
// spent. Any failure leaves the state as it was.
func (a *Advancer) ForceRedraftGW1(ctx context.Context, key season.Key, st *season.State, snap Snapshot, opts Options) (DraftReport, Report, error) {
	if snap.CurrentGW != 1 {
		return DraftReport{}, Report{}, fmt.Errorf("%w: current is %d", ErrRedraftNotGW1, snap.CurrentGW)
	}
	ids, prop, failure, err := a.proposeSquad(ctx, key, snap, opts)
	if err != nil {
		return DraftReport{}, Report{}, err
	}
	if failure != "" {
		logger.Warnf("[autopilot] %s re-draft refused: %s", key, failure)
		return DraftReport{Reason: failure, TraceID: prop.TraceID}, Report{}, nil
	}

	work := st.Clone()
	spent := work.Chips
	work.RemoveEntry(1)
	a.seed(work, snap.Catalog, ids, OriginRedraft, prop.Reason)
	work.KeepSpent(spent)
	work.LastFTAccrualGW = 0
	if err := a.store.Save(ctx, key, work); err != nil {
		return DraftReport{}, Report{}, fmt.Errorf("save re-draft: %w", err)
	}
	*st = *work
	dr := DraftReport{Seeded: true, Origin: OriginRedraft, Reason: prop.Reason, SquadIDs: ids, TraceID: prop.TraceID}
	rep, err := a.AdvanceToCurrent(ctx, key, st, snap, opts)
	return dr, rep, err
}

// proposeSquad asks the oracle for fifteen ids and validates them. A non-empty
// failure string means no legal squad came back; err is reserved for a
// cancelled context.
func (a *Advancer) proposeSquad(ctx context.Context, key season.Key, snap Snapshot, opts Options) ([]int, decision.DraftProposal, string, error) {
	prop, err := a.oracle.ProposeDraft(ctx, decision.DraftRequest{
		Key:          key,
		Budget:       a.cfg.Budget,
		Players:      snap.Catalog.Players(),
		KB:           snap.KB,
		Instructions: opts.Instructions,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, prop, "", ctxErr
		}
		return nil, prop, err.Error(), nil
	}
	if !prop.WellFormed() {
		return nil, prop, "malformed: " + prop.Problem, nil
	}
	if err := rules.ValidateInitialSquad(prop.SquadIDs, snap.Catalog, a.cfg.Budget); err != nil {
		return nil, prop, rules.Reason(err), nil
	}
	return append([]int(nil), prop.SquadIDs...), prop, "", nil
}

// seed installs a fresh squad: bank is what the budget leaves, one free
// transfer, every chip available and no gameweek processed.
func (a *Advancer) seed(work *season.State, c *market.Catalog, ids []int, origin, reason string) {
	squad := make([]season.Member, 0, len(ids))
	for _, id := range ids {
		p, _ := c.Player(id)
		squad = append(squad, season.Member{ID: id, BuyPrice: p.Price})
	}
	work.Squad = squad
	work.Bank = a.cfg.Budget.Sub(rules.SquadCost(c, ids))
	work.FreeTransfers = 1
	work.Chips = season.New().Chips
	work.LastGWProcessed = nil
	work.SeedOrigin, work.SeedReason = origin, reason
}
