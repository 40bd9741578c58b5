package autopilot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fplpilot/internal/decision"
	"fplpilot/internal/market"
	"fplpilot/internal/market/markettest"
	"fplpilot/internal/rules"
	"fplpilot/internal/season"
	"fplpilot/internal/store/memory"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOracle struct {
	mu     sync.Mutex
	draft  func(decision.DraftRequest) (decision.DraftProposal, error)
	week   func(decision.WeekRequest) (decision.WeekProposal, error)
	weeks  []int
	drafts int
	last   decision.WeekRequest
}

func (f *fakeOracle) ProposeDraft(_ context.Context, req decision.DraftRequest) (decision.DraftProposal, error) {
	f.mu.Lock()
	f.drafts++
	fn := f.draft
	f.mu.Unlock()
	return fn(req)
}

func (f *fakeOracle) ProposeWeek(_ context.Context, req decision.WeekRequest) (decision.WeekProposal, error) {
	f.mu.Lock()
	f.weeks = append(f.weeks, req.GW)
	f.last = req
	fn := f.week
	f.mu.Unlock()
	return fn(req)
}

func (f *fakeOracle) setWeek(fn func(decision.WeekRequest) (decision.WeekProposal, error)) {
	f.mu.Lock()
	f.week = fn
	f.mu.Unlock()
}

func (f *fakeOracle) weekCalls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.weeks...)
}

func draftOf(ids []int) func(decision.DraftRequest) (decision.DraftProposal, error) {
	return func(decision.DraftRequest) (decision.DraftProposal, error) {
		return decision.DraftProposal{Status: decision.StatusWellFormed, SquadIDs: ids, Reason: "balanced", TraceID: "draft-trace"}, nil
	}
}

func hold(captain int, chip string) func(decision.WeekRequest) (decision.WeekProposal, error) {
	return func(decision.WeekRequest) (decision.WeekProposal, error) {
		c := captain
		return decision.WeekProposal{
			Status:    decision.StatusWellFormed,
			XI:        markettest.XI(),
			Bench:     markettest.Bench(),
			CaptainID: &c,
			Chip:      chip,
			Reason:    "hold",
			TraceID:   "week-trace",
		}, nil
	}
}

func swap(out, in, captain int) func(decision.WeekRequest) (decision.WeekProposal, error) {
	return func(decision.WeekRequest) (decision.WeekProposal, error) {
		o, i, c := out, in, captain
		xi := markettest.XI()
		for k, id := range xi {
			if id == out {
				xi[k] = in
			}
		}
		return decision.WeekProposal{
			Status:    decision.StatusWellFormed,
			Made:      true,
			OutID:     &o,
			InID:      &i,
			XI:        xi,
			Bench:     markettest.Bench(),
			CaptainID: &c,
			Reason:    "swap",
		}, nil
	}
}

func unavailable(decision.WeekRequest) (decision.WeekProposal, error) {
	return decision.WeekProposal{}, decision.ErrOracleUnavailable
}

// Every player scores 1 except 611, who scores 10.
var flatPoints = market.PointsFunc(func(_ context.Context, id, _ int) (int, error) {
	if id == 611 {
		return 10, nil
	}
	return 1, nil
})

type harness struct {
	cat    *market.Catalog
	oracle *fakeOracle
	store  *memory.Store
	adv    *Advancer
	key    season.Key
	st     *season.State
}

func newHarness(t *testing.T, cfg Config, opts ...func(*market.Player)) *harness {
	t.Helper()
	h := &harness{
		cat:    markettest.Catalog(opts...),
		oracle: &fakeOracle{draft: draftOf(markettest.SquadIDs()), week: hold(611, "")},
		store:  memory.New(),
		key:    season.Key{User: "alice", Season: "2025-26"},
		st:     season.New(),
	}
	h.adv = NewAdvancer(h.oracle, h.store, cfg)
	h.adv.now = func() time.Time { return time.Date(2025, 8, 20, 12, 0, 0, 0, time.UTC) }
	return h
}

func (h *harness) snap(gw int) Snapshot {
	return Snapshot{CurrentGW: gw, Catalog: h.cat, Fixtures: markettest.Fixtures(1, 38), KB: "KB_BUILT: test", Points: flatPoints}
}

func (h *harness) seed(t *testing.T) {
	t.Helper()
	rep, err := h.adv.DraftInitialSquad(context.Background(), h.key, h.st, h.snap(1), Options{})
	require.NoError(t, err)
	require.True(t, rep.Seeded)
}

func (h *harness) advance(t *testing.T, gw int) Report {
	t.Helper()
	rep, err := h.adv.AdvanceToCurrent(context.Background(), h.key, h.st, h.snap(gw), Options{})
	require.NoError(t, err)
	return rep
}

func (h *harness) regenerate(t *testing.T, gw int) Report {
	t.Helper()
	rep, err := h.adv.RewindAndRegenerate(context.Background(), h.key, h.st, h.snap(gw), Options{})
	require.NoError(t, err)
	return rep
}

func pointer(t *testing.T, st *season.State) int {
	t.Helper()
	p, ok := st.Pointer()
	require.True(t, ok, "pointer should be set")
	return p
}

func TestAdvanceGuards(t *testing.T) {
	h := newHarness(t, Config{})
	rep := h.advance(t, 3)
	assert.Equal(t, StopNoSquad, rep.Stop)

	h.seed(t)
	rep = h.advance(t, 0)
	assert.Equal(t, StopNoGameweek, rep.Stop)
	assert.Empty(t, h.oracle.weekCalls())
}

func TestAdvanceFirstRunStartsAtCurrent(t *testing.T) {
	h := newHarness(t, Config{})
	h.seed(t)

	rep := h.advance(t, 3)
	assert.True(t, rep.CaughtUp())
	assert.Equal(t, []int{3}, rep.Committed)
	assert.Equal(t, []int{3}, h.oracle.weekCalls())
	assert.Equal(t, 3, pointer(t, h.st))
	assert.Equal(t, 2, h.st.FreeTransfers, "the starting week accrues")
	assert.Equal(t, 3, h.st.LastFTAccrualGW)

	e, ok := h.st.EntryFor(3)
	require.True(t, ok)
	assert.Equal(t, 30, e.Points)
	assert.Equal(t, season.ChipNone, e.Chip)
	assert.False(t, e.Made)
	assert.Equal(t, "hold", e.Reason)
	assert.Equal(t, "week-trace", e.TraceID)
	assert.ElementsMatch(t, markettest.SquadIDs(), e.SquadIDs)
	assert.True(t, e.Bank.Equal(decimal.NewFromInt(15)))
	require.NotNil(t, e.Opening)

	stored, err := h.store.Load(context.Background(), h.key)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(h.st, stored))
}

func TestAdvanceIsIdempotent(t *testing.T) {
	h := newHarness(t, Config{})
	h.seed(t)
	h.advance(t, 3)
	before := h.st.Clone()

	rep := h.advance(t, 3)
	assert.Empty(t, rep.Committed)
	assert.True(t, rep.CaughtUp())
	assert.Equal(t, []int{3}, h.oracle.weekCalls())
	assert.Empty(t, cmp.Diff(before, h.st))
}

func TestAdvanceCatchesUpInOrder(t *testing.T) {
	h := newHarness(t, Config{FreeTransferCap: 3})
	h.seed(t)
	h.advance(t, 2)

	rep := h.advance(t, 5)
	assert.Equal(t, []int{3, 4, 5}, rep.Committed)
	assert.Equal(t, []int{2, 3, 4, 5}, h.oracle.weekCalls())
	require.NoError(t, h.st.CheckLog())
	assert.Equal(t, 3, h.st.FreeTransfers, "accrual is capped")
	assert.Equal(t, 5, h.st.LastFTAccrualGW)

	fts := make([]int, 0, len(h.st.Log))
	for _, e := range h.st.Log {
		fts = append(fts, e.FreeTransfers)
	}
	assert.Equal(t, []int{2, 3, 3, 3}, fts)
}

func TestAdvanceStopsWithoutDecision(t *testing.T) {
	cases := []struct {
		name string
		week func(decision.WeekRequest) (decision.WeekProposal, error)
		stop StopReason
	}{
		{"unavailable", unavailable, StopOracleUnavailable},
		{"prose", func(decision.WeekRequest) (decision.WeekProposal, error) {
			return decision.WeekProposal{Status: decision.StatusMalformed, Problem: "no JSON object found", Raw: "I would hold."}, nil
		}, StopMalformed},
		{"cross position swap", swap(611, 910, 711), StopInvalid},
		{"transfer without ids", func(decision.WeekRequest) (decision.WeekProposal, error) {
			p, _ := hold(611, "")(decision.WeekRequest{})
			p.Made = true
			return p, nil
		}, StopInvalid},
		{"captain on bench", hold(201, ""), StopInvalid},
		{"no captain", func(decision.WeekRequest) (decision.WeekProposal, error) {
			p, _ := hold(611, "")(decision.WeekRequest{})
			p.CaptainID = nil
			return p, nil
		}, StopInvalid},
		{"illegal formation", func(decision.WeekRequest) (decision.WeekProposal, error) {
			p, _ := hold(611, "")(decision.WeekRequest{})
			// 2-5-3
			p.XI = []int{101, 103, 203, 307, 407, 507, 607, 707, 611, 711, 811}
			p.Bench = []int{201, 303, 403, 503}
			return p, nil
		}, StopInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, Config{})
			h.seed(t)
			h.advance(t, 2)
			before := h.st.Clone()

			h.oracle.setWeek(tc.week)
			rep := h.advance(t, 4)
			assert.Equal(t, tc.stop, rep.Stop)
			assert.Equal(t, 3, rep.StoppedAt)
			assert.NotEmpty(t, rep.Detail)
			assert.Empty(t, rep.Committed)
			assert.Equal(t, []int{2, 3}, h.oracle.weekCalls(), "the pass stops at the first failed week")
			assert.Empty(t, cmp.Diff(before, h.st), "a failed week leaves no trace, accrual included")

			stored, err := h.store.Load(context.Background(), h.key)
			require.NoError(t, err)
			assert.Equal(t, 2, pointer(t, stored))
		})
	}
}

func TestAdvanceAppliesTransfer(t *testing.T) {
	h := newHarness(t, Config{})
	h.seed(t)
	h.oracle.setWeek(swap(611, 912, 711))

	rep := h.advance(t, 2)
	require.Equal(t, []int{2}, rep.Committed)
	e, _ := h.st.EntryFor(2)
	assert.True(t, e.Made)
	assert.Equal(t, &season.Transfer{Out: 611, In: 912}, e.Transfer)
	assert.Equal(t, 12, e.Points)
	assert.Equal(t, 1, h.st.FreeTransfers)
	assert.True(t, h.st.Bank.Equal(decimal.NewFromInt(15)), "cheaper incoming player does not raise the bank")
	assert.Contains(t, h.st.SquadIDs(), 912)
	assert.NotContains(t, h.st.SquadIDs(), 611)
	assert.Equal(t, 2, e.Opening.FreeTransfers, "the opening snapshot is taken after accrual")
	assert.Contains(t, memberIDs(e.Opening.Squad), 611)
}

func TestAdvanceTransferNeedsFreeTransfer(t *testing.T) {
	h := newHarness(t, Config{FreeTransferCap: 1})
	h.seed(t)
	h.oracle.setWeek(swap(611, 912, 711))
	h.advance(t, 2)
	require.Equal(t, 0, h.st.FreeTransfers)
	h.st.LastFTAccrualGW = 3 // the week's accrual has already been paid

	h.oracle.setWeek(swap(711, 911, 912))
	rep := h.advance(t, 3)
	assert.Equal(t, StopInvalid, rep.Stop)
	assert.Contains(t, rep.Detail, rules.ErrNoFreeTransfer.Error())
}

func TestChipsAreConsumedOnce(t *testing.T) {
	h := newHarness(t, Config{})
	h.seed(t)
	h.oracle.setWeek(hold(611, "TC"))
	h.advance(t, 2)
	h.advance(t, 3)

	first, _ := h.st.EntryFor(2)
	second, _ := h.st.EntryFor(3)
	assert.Equal(t, season.ChipTC, first.Chip)
	assert.Equal(t, 40, first.Points)
	assert.Equal(t, season.ChipNone, second.Chip)
	assert.Equal(t, 30, second.Points)
	assert.Contains(t, second.Reason, "chip TC already used")
	assert.False(t, h.st.ChipAvailable(season.ChipTC))
	assert.NotContains(t, h.oracle.last.Chips, season.ChipTC)

	h.oracle.setWeek(hold(611, "BB"))
	h.advance(t, 4)
	bb, _ := h.st.EntryFor(4)
	assert.Equal(t, season.ChipBB, bb.Chip)
	assert.Equal(t, 34, bb.Points)
	assert.False(t, h.st.ChipAvailable(season.ChipBB))

	h.oracle.setWeek(hold(611, "WC1"))
	h.advance(t, 5)
	wc, _ := h.st.EntryFor(5)
	assert.Equal(t, season.ChipNone, wc.Chip)
	assert.True(t, h.st.ChipAvailable(season.ChipWC1), "tracked chips are never executed")
}

func TestRewindAndRegenerate(t *testing.T) {
	h := newHarness(t, Config{})
	h.seed(t)
	h.advance(t, 2)
	gw2, _ := h.st.EntryFor(2)

	h.oracle.setWeek(swap(611, 912, 711))
	h.advance(t, 3)
	require.Equal(t, 2, h.st.FreeTransfers)

	h.oracle.setWeek(hold(611, "TC"))
	for i := 0; i < 3; i++ {
		rep := h.regenerate(t, 3)
		assert.Equal(t, []int{3}, rep.Committed)
		assert.Equal(t, 3, h.st.FreeTransfers, "regenerating never earns another free transfer")
		assert.Equal(t, 3, h.st.LastFTAccrualGW)
		assert.Len(t, h.st.Log, 2)
		require.NoError(t, h.st.CheckLog())
		assert.ElementsMatch(t, markettest.SquadIDs(), h.st.SquadIDs(), "the opening squad is restored")
		assert.True(t, h.st.Bank.Equal(decimal.NewFromInt(15)))
		assert.False(t, h.st.ChipAvailable(season.ChipTC))
	}
	again, _ := h.st.EntryFor(2)
	assert.Empty(t, cmp.Diff(gw2, again), "earlier weeks are untouched")
	gw3, _ := h.st.EntryFor(3)
	assert.Equal(t, season.ChipNone, gw3.Chip, "a chip spent in a rewound week stays spent")
	assert.Contains(t, gw3.Reason, "chip TC already used")
}

func TestRewindKeepsSpentChips(t *testing.T) {
	h := newHarness(t, Config{})
	h.seed(t)
	h.oracle.setWeek(hold(611, "TC"))
	h.advance(t, 2)
	require.False(t, h.st.ChipAvailable(season.ChipTC))

	h.oracle.setWeek(unavailable)
	rep := h.regenerate(t, 2)
	assert.Equal(t, StopOracleUnavailable, rep.Stop)
	_, ok := h.st.EntryFor(2)
	assert.False(t, ok)
	assert.False(t, h.st.ChipAvailable(season.ChipTC))
	assert.True(t, h.st.ChipAvailable(season.ChipBB))

	stored, err := h.store.Load(context.Background(), h.key)
	require.NoError(t, err)
	_, ok = stored.EntryFor(2)
	assert.False(t, ok)
	assert.False(t, stored.ChipAvailable(season.ChipTC))

	h.oracle.setWeek(hold(611, "TC"))
	h.advance(t, 2)
	e, _ := h.st.EntryFor(2)
	assert.Equal(t, season.ChipNone, e.Chip)
	assert.Equal(t, 30, e.Points)
}

func TestRegenerateFailureLeavesNoEntry(t *testing.T) {
	h := newHarness(t, Config{})
	h.seed(t)
	h.advance(t, 2)
	h.advance(t, 3)

	h.oracle.setWeek(unavailable)
	rep := h.regenerate(t, 3)
	assert.Equal(t, StopOracleUnavailable, rep.Stop)
	_, ok := h.st.EntryFor(3)
	assert.False(t, ok)
	assert.Equal(t, 2, pointer(t, h.st))

	stored, err := h.store.Load(context.Background(), h.key)
	require.NoError(t, err)
	_, ok = stored.EntryFor(3)
	assert.False(t, ok)
	assert.Equal(t, 2, pointer(t, stored))
	assert.Equal(t, 3, stored.FreeTransfers)
}

func TestRegenerateRefusesFutureEntries(t *testing.T) {
	h := newHarness(t, Config{})
	h.seed(t)
	h.advance(t, 4)
	_, err := h.adv.RewindAndRegenerate(context.Background(), h.key, h.st, h.snap(3), Options{})
	assert.ErrorIs(t, err, ErrFutureEntries)
}

type failingStore struct {
	*memory.Store
	err error
}

func (f failingStore) CommitGameweek(context.Context, season.Key, *season.State, season.Entry) error {
	return f.err
}

func TestCommitFailureKeepsLastDurableState(t *testing.T) {
	h := newHarness(t, Config{})
	h.seed(t)
	before := h.st.Clone()

	boom := errors.New("disk full")
	adv := NewAdvancer(h.oracle, failingStore{Store: h.store, err: boom}, Config{})
	_, err := adv.AdvanceToCurrent(context.Background(), h.key, h.st, h.snap(2), Options{})
	require.ErrorIs(t, err, boom)
	assert.Empty(t, cmp.Diff(before, h.st))
	_, ok := h.st.Pointer()
	assert.False(t, ok)
}

func TestAdvanceReturnsContextError(t *testing.T) {
	h := newHarness(t, Config{})
	h.seed(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.oracle.setWeek(func(decision.WeekRequest) (decision.WeekProposal, error) {
		return decision.WeekProposal{}, ctx.Err()
	})
	_, err := h.adv.AdvanceToCurrent(ctx, h.key, h.st, h.snap(2), Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRefreshPoints(t *testing.T) {
	h := newHarness(t, Config{})
	h.seed(t)
	h.advance(t, 2)
	h.advance(t, 3)

	n, err := h.adv.RefreshPoints(context.Background(), h.key, h.st, flatPoints)
	require.NoError(t, err)
	assert.Zero(t, n)

	late := market.PointsFunc(func(_ context.Context, id, gw int) (int, error) {
		if gw == 3 && id == 611 {
			return 2, nil
		}
		return flatPoints(context.Background(), id, gw)
	})
	n, err = h.adv.RefreshPoints(context.Background(), h.key, h.st, late)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	e, _ := h.st.EntryFor(3)
	assert.Equal(t, 14, e.Points)

	stored, err := h.store.Load(context.Background(), h.key)
	require.NoError(t, err)
	se, _ := stored.EntryFor(3)
	assert.Equal(t, 14, se.Points)
}

func TestRealizedPoints(t *testing.T) {
	ctx := context.Background()
	xi, bench := markettest.XI(), markettest.Bench()
	assert.Equal(t, 30, RealizedPoints(ctx, xi, 611, bench, season.ChipNone, 1, flatPoints))
	assert.Equal(t, 40, RealizedPoints(ctx, xi, 611, bench, season.ChipTC, 1, flatPoints))
	assert.Equal(t, 34, RealizedPoints(ctx, xi, 611, bench, season.ChipBB, 1, flatPoints))

	flaky := market.PointsFunc(func(_ context.Context, id, _ int) (int, error) {
		if id == 611 {
			return 0, errors.New("history unavailable")
		}
		return 1, nil
	})
	assert.Equal(t, 10, RealizedPoints(ctx, xi, 611, bench, season.ChipNone, 1, flaky))
	assert.Zero(t, RealizedPoints(ctx, xi, 611, bench, season.ChipNone, 1, nil))
}

func memberIDs(ms []season.Member) []int {
	out := make([]int, len(ms))
	for i, m := range ms {
		out[i] = m.ID
	}
	return out
}
