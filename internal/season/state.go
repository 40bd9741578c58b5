package season

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Chip names a one-shot season modifier. Only TC and BB are executed; FH and the
// two wildcards are tracked so the oracle can see them, then refused at apply time.
type Chip string

const (
	ChipNone Chip = "NONE"
	ChipTC   Chip = "TC"
	ChipBB   Chip = "BB"
	ChipFH   Chip = "FH"
	ChipWC1  Chip = "WC1"
	ChipWC2  Chip = "WC2"
)

// TrackedChips lists every chip held in State.Chips, in display order.
var TrackedChips = []Chip{ChipTC, ChipBB, ChipFH, ChipWC1, ChipWC2}

// Phase is the coarse state of the advancement machine.
type Phase string

const (
	PhaseUnseeded Phase = "UNSEEDED"
	PhaseActive   Phase = "ACTIVE"
)

// Key identifies one season ledger.
type Key struct {
	User   string `json:"user"`
	Season string `json:"season"`
}

func (k Key) String() string { return k.User + "/" + k.Season }

// Member is one owned player with the price paid.
type Member struct {
	ID       int             `json:"id"`
	BuyPrice decimal.Decimal `json:"buy_price"`
}

// Transfer is a single like-for-like swap.
type Transfer struct {
	Out int `json:"out"`
	In  int `json:"in"`
}

// Opening is the state a gameweek started from, after free-transfer accrual and
// before the decision. Rewinding a week restores it.
type Opening struct {
	Squad         []Member        `json:"squad"`
	Bank          decimal.Decimal `json:"bank"`
	FreeTransfers int             `json:"free_transfers"`
	Chips         map[Chip]bool   `json:"chips"`
}

// Entry is the committed record of one gameweek.
type Entry struct {
	GW            int             `json:"gw"`
	Made          bool            `json:"made"`
	Transfer      *Transfer       `json:"transfer,omitempty"`
	Chip          Chip            `json:"chip"`
	XI            []int           `json:"xi_ids"`
	Bench         []int           `json:"bench_ids"`
	CaptainID     int             `json:"captain_id"`
	Points        int             `json:"points"`
	Bank          decimal.Decimal `json:"bank"`
	FreeTransfers int             `json:"free_transfers"`
	SquadIDs      []int           `json:"squad_ids"`
	Reason        string          `json:"reason"`
	Opening       *Opening        `json:"opening,omitempty"`
	TraceID       string          `json:"trace_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// State is the mutable season document for one user.
type State struct {
	Squad           []Member        `json:"squad"`
	Bank            decimal.Decimal `json:"bank"`
	FreeTransfers   int             `json:"free_transfers"`
	LastGWProcessed *int            `json:"last_gw_processed"`
	LastFTAccrualGW int             `json:"last_ft_accrual_gw"`
	Chips           map[Chip]bool   `json:"chips"`
	Log             []Entry         `json:"log,omitempty"`
	SeedOrigin      string          `json:"seed_origin"`
	SeedReason      string          `json:"seed_reason,omitempty"`
}

// New returns the empty pre-draft state.
func New() *State {
	return &State{
		Bank:  decimal.Zero,
		Chips: freshChips(),
	}
}

func freshChips() map[Chip]bool {
	out := make(map[Chip]bool, len(TrackedChips))
	for _, c := range TrackedChips {
		out[c] = true
	}
	return out
}

// Normalize fills fields that older documents may lack.
func (s *State) Normalize() {
	if s.Chips == nil {
		s.Chips = freshChips()
	}
	for _, c := range TrackedChips {
		if _, ok := s.Chips[c]; !ok {
			s.Chips[c] = true
		}
	}
	sort.SliceStable(s.Log, func(i, j int) bool { return s.Log[i].GW < s.Log[j].GW })
}

func (s *State) Phase() Phase {
	if s == nil || len(s.Squad) == 0 {
		return PhaseUnseeded
	}
	return PhaseActive
}

func (s *State) HasSquad() bool { return s != nil && len(s.Squad) > 0 }

func (s *State) SquadIDs() []int {
	ids := make([]int, len(s.Squad))
	for i, m := range s.Squad {
		ids[i] = m.ID
	}
	return ids
}

// Pointer returns the last processed gameweek.
func (s *State) Pointer() (int, bool) {
	if s.LastGWProcessed == nil {
		return 0, false
	}
	return *s.LastGWProcessed, true
}

func (s *State) SetPointer(gw int) {
	v := gw
	s.LastGWProcessed = &v
}

func (s *State) ChipAvailable(c Chip) bool {
	return s.Chips[c]
}

// AvailableChips lists chips still unused, or [NONE] when every chip is gone.
func (s *State) AvailableChips() []Chip {
	out := make([]Chip, 0, len(TrackedChips))
	for _, c := range TrackedChips {
		if s.Chips[c] {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return []Chip{ChipNone}
	}
	return out
}

// EntryFor returns the log entry for gw.
func (s *State) EntryFor(gw int) (Entry, bool) {
	for _, e := range s.Log {
		if e.GW == gw {
			return e, true
		}
	}
	return Entry{}, false
}

// RemoveEntry drops the entry for gw and returns it.
func (s *State) RemoveEntry(gw int) (Entry, bool) {
	for i, e := range s.Log {
		if e.GW == gw {
			s.Log = append(s.Log[:i:i], s.Log[i+1:]...)
			return e, true
		}
	}
	return Entry{}, false
}

// Snapshot captures the current squad, bank, free transfers and chips.
func (s *State) Snapshot() *Opening {
	return &Opening{
		Squad:         cloneMembers(s.Squad),
		Bank:          s.Bank,
		FreeTransfers: s.FreeTransfers,
		Chips:         cloneChips(s.Chips),
	}
}

// Restore puts an opening snapshot back in place.
func (s *State) Restore(o *Opening) {
	if o == nil {
		return
	}
	s.Squad = cloneMembers(o.Squad)
	s.Bank = o.Bank
	s.FreeTransfers = o.FreeTransfers
	s.Chips = cloneChips(o.Chips)
	s.Normalize()
}

// KeepSpent marks every chip already spent in used as spent in s. Chips only
// ever go from available to spent.
func (s *State) KeepSpent(used map[Chip]bool) {
	for _, c := range TrackedChips {
		if avail, ok := used[c]; ok && !avail {
			if s.Chips == nil {
				s.Chips = map[Chip]bool{}
			}
			s.Chips[c] = false
		}
	}
}

// CheckLog verifies the log is strictly increasing and gap free.
func (s *State) CheckLog() error {
	for i := 1; i < len(s.Log); i++ {
		prev, cur := s.Log[i-1].GW, s.Log[i].GW
		if cur <= prev {
			return fmt.Errorf("log out of order: gw %d after gw %d", cur, prev)
		}
		if cur != prev+1 {
			return fmt.Errorf("log gap between gw %d and gw %d", prev, cur)
		}
	}
	return nil
}

// TotalPoints sums realized points across the log.
func (s *State) TotalPoints() int {
	total := 0
	for _, e := range s.Log {
		total += e.Points
	}
	return total
}

// Clone deep-copies the state so a gameweek can be worked on and discarded.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := *s
	out.Squad = cloneMembers(s.Squad)
	out.Chips = cloneChips(s.Chips)
	if s.LastGWProcessed != nil {
		v := *s.LastGWProcessed
		out.LastGWProcessed = &v
	}
	if s.Log != nil {
		out.Log = make([]Entry, len(s.Log))
		for i, e := range s.Log {
			out.Log[i] = e.Clone()
		}
	}
	return &out
}

func (e Entry) Clone() Entry {
	out := e
	out.XI = append([]int(nil), e.XI...)
	out.Bench = append([]int(nil), e.Bench...)
	out.SquadIDs = append([]int(nil), e.SquadIDs...)
	if e.Transfer != nil {
		t := *e.Transfer
		out.Transfer = &t
	}
	if e.Opening != nil {
		o := *e.Opening
		o.Squad = cloneMembers(e.Opening.Squad)
		o.Chips = cloneChips(e.Opening.Chips)
		out.Opening = &o
	}
	return out
}

func cloneMembers(in []Member) []Member {
	if in == nil {
		return nil
	}
	return append([]Member(nil), in...)
}

func cloneChips(in map[Chip]bool) map[Chip]bool {
	if in == nil {
		return nil
	}
	out := make(map[Chip]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
