package season

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsUnseeded(t *testing.T) {
	st := New()
	assert.Equal(t, PhaseUnseeded, st.Phase())
	assert.False(t, st.HasSquad())
	_, ok := st.Pointer()
	assert.False(t, ok)
	assert.Equal(t, TrackedChips, st.AvailableChips())
}

func TestAvailableChipsFallsBackToNone(t *testing.T) {
	st := New()
	for _, c := range TrackedChips {
		st.Chips[c] = false
	}
	assert.Equal(t, []Chip{ChipNone}, st.AvailableChips())
	assert.False(t, st.ChipAvailable(ChipTC))
}

func TestNormalizeFillsChipsAndSortsLog(t *testing.T) {
	var st State
	require.NoError(t, json.Unmarshal([]byte(`{"chips":{"TC":false},"log":[{"gw":3},{"gw":2}]}`), &st))
	st.Normalize()
	assert.False(t, st.Chips[ChipTC])
	assert.True(t, st.Chips[ChipWC2])
	assert.Equal(t, 2, st.Log[0].GW)
	assert.NoError(t, st.CheckLog())
}

func TestCheckLog(t *testing.T) {
	st := New()
	st.Log = []Entry{{GW: 2}, {GW: 4}}
	assert.ErrorContains(t, st.CheckLog(), "gap")
	st.Log = []Entry{{GW: 3}, {GW: 3}}
	assert.ErrorContains(t, st.CheckLog(), "out of order")
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	st := New()
	st.Squad = []Member{{ID: 1, BuyPrice: decimal.RequireFromString("4.5")}}
	st.Bank = decimal.RequireFromString("1.5")
	st.FreeTransfers = 2
	open := st.Snapshot()

	st.Squad[0].ID = 9
	st.Bank = decimal.Zero
	st.FreeTransfers = 0
	st.Chips[ChipBB] = false
	assert.Equal(t, 1, open.Squad[0].ID, "snapshot is a copy")

	st.Restore(open)
	assert.Equal(t, 1, st.Squad[0].ID)
	assert.True(t, st.Bank.Equal(decimal.RequireFromString("1.5")))
	assert.Equal(t, 2, st.FreeTransfers)
	assert.True(t, st.Chips[ChipBB])
}

func TestKeepSpent(t *testing.T) {
	st := New()
	st.KeepSpent(map[Chip]bool{ChipTC: false, ChipBB: true})
	assert.False(t, st.ChipAvailable(ChipTC))
	assert.True(t, st.ChipAvailable(ChipBB), "an available chip is never handed back")

	st.Chips[ChipFH] = false
	st.KeepSpent(New().Chips)
	assert.False(t, st.ChipAvailable(ChipFH))
	assert.False(t, st.ChipAvailable(ChipTC))

	st.KeepSpent(nil)
	assert.True(t, st.ChipAvailable(ChipWC1))
}

func TestCloneIsDeep(t *testing.T) {
	st := New()
	st.Squad = []Member{{ID: 1}}
	st.SetPointer(3)
	st.Log = []Entry{{GW: 3, XI: []int{1}, Transfer: &Transfer{Out: 1, In: 2}, Opening: st.Snapshot(), Points: 7}}

	cp := st.Clone()
	cp.Squad[0].ID = 5
	cp.SetPointer(4)
	cp.Log[0].XI[0] = 9
	cp.Log[0].Transfer.In = 8
	cp.Log[0].Opening.Chips[ChipTC] = false

	p, _ := st.Pointer()
	assert.Equal(t, 3, p)
	assert.Equal(t, 1, st.Squad[0].ID)
	assert.Equal(t, 1, st.Log[0].XI[0])
	assert.Equal(t, 2, st.Log[0].Transfer.In)
	assert.True(t, st.Log[0].Opening.Chips[ChipTC])
}

func TestEntryLookupAndRemoval(t *testing.T) {
	st := New()
	st.Log = []Entry{{GW: 1, Points: 10}, {GW: 2, Points: 20}, {GW: 3, Points: 30}}
	assert.Equal(t, 60, st.TotalPoints())

	e, ok := st.EntryFor(2)
	require.True(t, ok)
	assert.Equal(t, 20, e.Points)

	removed, ok := st.RemoveEntry(2)
	require.True(t, ok)
	assert.Equal(t, 20, removed.Points)
	assert.Len(t, st.Log, 2)
	_, ok = st.RemoveEntry(2)
	assert.False(t, ok)
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "alice/2025-26", Key{User: "alice", Season: "2025-26"}.String())
}
