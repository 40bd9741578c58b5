// Package autopilot advances a season ledger one gameweek at a time. Proposals
// come from the oracle, legality from the rules package, durability from the
// store. A week either commits in full or leaves the state untouched.
package autopilot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fplpilot/internal/decision"
	"fplpilot/internal/logger"
	"fplpilot/internal/market"
	"fplpilot/internal/rules"
	"fplpilot/internal/season"
	"fplpilot/internal/store"

	"github.com/shopspring/decimal"
)

// DraftStrategy decides what happens when the oracle cannot produce a legal
// opening squad.
type DraftStrategy string

const (
	DraftFailClosed     DraftStrategy = "fail_closed"
	DraftGreedyFallback DraftStrategy = "greedy_fallback"
)

const DefaultFreeTransferCap = 5

var (
	ErrNoSquad        = errors.New("no squad drafted")
	ErrAlreadyDrafted = errors.New("squad already drafted")
	ErrRedraftNotGW1  = errors.New("re-draft is only allowed in gameweek 1")
	ErrFutureEntries  = errors.New("log holds entries beyond the current gameweek")
)

type Config struct {
	Budget          decimal.Decimal
	FreeTransferCap int
	DraftStrategy   DraftStrategy
}

// Snapshot is the market view one pass works against.
type Snapshot struct {
	CurrentGW int
	Catalog   *market.Catalog
	Fixtures  []market.Fixture
	KB        string
	Points    market.PointsSource
}

// Options carries per-invocation inputs.
type Options struct {
	Instructions string
}

// StopReason says why a pass ended before catching up.
type StopReason string

const (
	StopNone              StopReason = ""
	StopNoSquad           StopReason = "no_squad"
	StopNoGameweek        StopReason = "no_gameweek"
	StopOracleUnavailable StopReason = "oracle_unavailable"
	StopMalformed         StopReason = "malformed"
	StopInvalid           StopReason = "invalid"
)

// Report summarises one advancement pass.
type Report struct {
	Committed []int      `json:"committed"`
	Stop      StopReason `json:"stop,omitempty"`
	StoppedAt int        `json:"stopped_at,omitempty"`
	Detail    string     `json:"detail,omitempty"`
	TraceID   string     `json:"trace_id,omitempty"`
}

// CaughtUp reports whether the pass ended without a stop.
func (r Report) CaughtUp() bool { return r.Stop == StopNone }

type Advancer struct {
	oracle decision.Oracle
	store  store.Store
	cfg    Config
	now    func() time.Time
}

func NewAdvancer(oracle decision.Oracle, st store.Store, cfg Config) *Advancer {
	if cfg.Budget.IsZero() {
		cfg.Budget = rules.DefaultBudget
	}
	if cfg.FreeTransferCap <= 0 {
		cfg.FreeTransferCap = DefaultFreeTransferCap
	}
	if cfg.DraftStrategy == "" {
		cfg.DraftStrategy = DraftFailClosed
	}
	return &Advancer{oracle: oracle, store: st, cfg: cfg, now: time.Now}
}

func (a *Advancer) Config() Config { return a.cfg }

// AdvanceToCurrent processes every gameweek after the pointer up to the current
// one, committing each week on its own. On return st holds the last durable
// state, whether the pass caught up, stopped or failed.
func (a *Advancer) AdvanceToCurrent(ctx context.Context, key season.Key, st *season.State, snap Snapshot, opts Options) (Report, error) {
	if !st.HasSquad() {
		return Report{Stop: StopNoSquad}, nil
	}
	if snap.CurrentGW <= 0 {
		return Report{Stop: StopNoGameweek}, nil
	}

	base := st.Clone()
	if _, ok := base.Pointer(); !ok {
		base.SetPointer(snap.CurrentGW - 1)
	}
	start, _ := base.Pointer()

	var (
		report    Report
		committed *season.State
	)
	defer func() {
		if committed != nil {
			*st = *committed
		}
	}()

	for g := start + 1; g <= snap.CurrentGW; g++ {
		work := base.Clone()
		out, err := a.playWeek(ctx, key, work, g, snap, opts)
		if err != nil {
			return report, err
		}
		if out.stop != StopNone {
			report.Stop, report.StoppedAt, report.Detail, report.TraceID = out.stop, g, out.detail, out.traceID
			logger.Warnf("[autopilot] %s gw=%d stopped (%s): %s", key, g, out.stop, out.detail)
			break
		}
		if err := a.store.CommitGameweek(ctx, key, work, out.entry); err != nil {
			return report, fmt.Errorf("commit gw %d: %w", g, err)
		}
		base, committed = work, work
		report.Committed = append(report.Committed, g)
		logger.Infof("[autopilot] %s gw=%d committed points=%d chip=%s made=%v", key, g, out.entry.Points, out.entry.Chip, out.entry.Made)
	}
	return report, nil
}

type weekOutcome struct {
	entry   season.Entry
	stop    StopReason
	detail  string
	traceID string
}

func stopped(reason StopReason, detail, traceID string) (weekOutcome, error) {
	return weekOutcome{stop: reason, detail: detail, traceID: traceID}, nil
}

// playWeek mutates work into the post-decision state for gw. The caller
// discards work unless the outcome carries no stop.
func (a *Advancer) playWeek(ctx context.Context, key season.Key, work *season.State, gw int, snap Snapshot, opts Options) (weekOutcome, error) {
	if gw > 1 && gw > work.LastFTAccrualGW {
		work.FreeTransfers = min(work.FreeTransfers+1, a.cfg.FreeTransferCap)
		work.LastFTAccrualGW = gw
	}
	opening := work.Snapshot()

	prop, err := a.oracle.ProposeWeek(ctx, decision.WeekRequest{
		Key:           key,
		GW:            gw,
		Squad:         squadPlayers(snap.Catalog, work.SquadIDs()),
		Bank:          work.Bank,
		FreeTransfers: work.FreeTransfers,
		Chips:         work.AvailableChips(),
		KB:            snap.KB,
		Instructions:  opts.Instructions,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return weekOutcome{}, ctxErr
		}
		return stopped(StopOracleUnavailable, err.Error(), "")
	}
	if !prop.WellFormed() {
		return stopped(StopMalformed, prop.Problem, prop.TraceID)
	}
	invalid := func(err error) (weekOutcome, error) {
		return stopped(StopInvalid, rules.Reason(err), prop.TraceID)
	}

	entry := season.Entry{GW: gw, Opening: opening, TraceID: prop.TraceID}
	if prop.Made {
		if prop.OutID == nil && prop.InID == nil {
			return invalid(rules.ErrIncompleteSwap)
		}
		if err := rules.RequireFreeTransfer(work.FreeTransfers); err != nil {
			return invalid(err)
		}
		res, err := rules.ValidateTransfer(snap.Catalog, work.Squad, work.Bank, prop.OutID, prop.InID)
		if err != nil {
			return invalid(err)
		}
		work.Squad, work.Bank = res.Squad, res.Bank
		work.FreeTransfers--
		entry.Made, entry.Transfer = true, res.Transfer
	}

	squadIDs := work.SquadIDs()
	if err := rules.ValidateLineup(snap.Catalog, squadIDs, prop.XI, prop.Bench); err != nil {
		return invalid(err)
	}
	if prop.CaptainID == nil {
		return invalid(fmt.Errorf("%w: no captain named", rules.ErrCaptain))
	}
	if err := rules.ValidateCaptain(prop.XI, *prop.CaptainID); err != nil {
		return invalid(err)
	}

	chip, note := rules.ResolveChip(prop.Chip, work.Chips)
	entry.Points = RealizedPoints(ctx, prop.XI, *prop.CaptainID, prop.Bench, chip, gw, snap.Points)
	if chip == season.ChipTC || chip == season.ChipBB {
		work.Chips[chip] = false
	}

	entry.Chip = chip
	entry.XI = append([]int(nil), prop.XI...)
	entry.Bench = append([]int(nil), prop.Bench...)
	entry.CaptainID = *prop.CaptainID
	entry.Bank = work.Bank
	entry.FreeTransfers = work.FreeTransfers
	entry.SquadIDs = squadIDs
	entry.Reason = joinReason(prop.Reason, note)
	entry.CreatedAt = a.now().UTC()

	work.Log = append(work.Log, entry)
	work.SetPointer(gw)
	return weekOutcome{entry: entry}, nil
}

// RewindAndRegenerate drops the current gameweek's entry, puts back the state
// that week opened with and runs the pass again. The accrual guard is left
// alone so regenerating never earns another free transfer, and a chip the
// dropped week spent stays spent.
func (a *Advancer) RewindAndRegenerate(ctx context.Context, key season.Key, st *season.State, snap Snapshot, opts Options) (Report, error) {
	if !st.HasSquad() {
		return Report{Stop: StopNoSquad}, nil
	}
	if snap.CurrentGW <= 0 {
		return Report{Stop: StopNoGameweek}, nil
	}
	g := snap.CurrentGW
	for _, e := range st.Log {
		if e.GW > g {
			return Report{}, fmt.Errorf("%w: gw %d > %d", ErrFutureEntries, e.GW, g)
		}
	}

	work := st.Clone()
	spent := work.Chips
	if e, ok := work.RemoveEntry(g); ok {
		if e.Opening != nil {
			work.Restore(e.Opening)
			work.KeepSpent(spent)
		} else {
			logger.Warnf("[autopilot] %s gw=%d entry has no opening snapshot; regenerating from current squad", key, g)
		}
	}
	if p, ok := work.Pointer(); ok && p > g-1 {
		work.SetPointer(g - 1)
	}
	if err := a.store.RemoveGameweek(ctx, key, work, g); err != nil {
		return Report{}, fmt.Errorf("rewind gw %d: %w", g, err)
	}
	*st = *work
	logger.Infof("[autopilot] %s gw=%d rewound", key, g)
	return a.AdvanceToCurrent(ctx, key, st, snap, opts)
}

// RefreshPoints recomputes every logged week's points and persists the rows
// that changed. It returns how many entries were updated.
func (a *Advancer) RefreshPoints(ctx context.Context, key season.Key, st *season.State, src market.PointsSource) (int, error) {
	work := st.Clone()
	var changed []season.Entry
	for i, e := range work.Log {
		pts := RealizedPoints(ctx, e.XI, e.CaptainID, e.Bench, e.Chip, e.GW, src)
		if pts == e.Points {
			continue
		}
		work.Log[i].Points = pts
		changed = append(changed, work.Log[i])
	}
	if len(changed) == 0 {
		return 0, nil
	}
	if err := a.store.UpsertEntries(ctx, key, changed); err != nil {
		return 0, fmt.Errorf("refresh points: %w", err)
	}
	*st = *work
	logger.Infof("[autopilot] %s refreshed points for %d entries", key, len(changed))
	return len(changed), nil
}

func squadPlayers(c *market.Catalog, ids []int) []market.Player {
	out := make([]market.Player, 0, len(ids))
	for _, id := range ids {
		p, ok := c.Player(id)
		if !ok {
			logger.Warnf("[autopilot] squad player %d missing from catalog", id)
			continue
		}
		out = append(out, p)
	}
	return out
}

func joinReason(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "; ")
}
