// Package rules holds the stateless league validators. Every accepted decision,
// whatever produced it, passes through these functions; nothing here does I/O.
package rules

import (
	"errors"
	"fmt"

	"fplpilot/internal/market"

	"github.com/shopspring/decimal"
)

const (
	SquadSize  = 15
	XISize     = 11
	BenchSize  = 4
	MaxPerClub = 3
)

// SquadShape is the exact positional make-up of a 15-man squad.
var SquadShape = map[market.Position]int{
	market.GK:  2,
	market.DEF: 5,
	market.MID: 5,
	market.FWD: 3,
}

// DefaultBudget is the opening budget in millions.
var DefaultBudget = decimal.NewFromInt(100)

var budgetTolerance = decimal.New(1, -6)

var (
	ErrSquadSize        = errors.New("wrong squad size")
	ErrDuplicatePlayer  = errors.New("duplicate player")
	ErrUnknownPlayer    = errors.New("unknown player")
	ErrSquadShape       = errors.New("wrong squad shape")
	ErrOverBudget       = errors.New("over budget")
	ErrClubCap          = errors.New("exceeds 3-per-club")
	ErrIncompleteSwap   = errors.New("transfer needs both out and in ids")
	ErrNotOwned         = errors.New("outgoing player not owned")
	ErrAlreadyOwned     = errors.New("incoming player already owned")
	ErrPositionMismatch = errors.New("not like-for-like")
	ErrNoFreeTransfer   = errors.New("no free transfers")
	ErrLineupSize       = errors.New("wrong lineup size")
	ErrLineupOverlap    = errors.New("starting eleven and bench overlap")
	ErrLineupMismatch   = errors.New("lineup does not match squad")
	ErrGoalkeeper       = errors.New("starting eleven needs exactly one goalkeeper")
	ErrFormation        = errors.New("illegal formation")
	ErrCaptain          = errors.New("captain must start")
)

// Formation counts outfield starters.
type Formation struct {
	DEF int
	MID int
	FWD int
}

func (f Formation) String() string {
	return fmt.Sprintf("%d-%d-%d", f.DEF, f.MID, f.FWD)
}

// LegalFormations is the closed set of playable outfield shapes.
var LegalFormations = map[Formation]bool{
	{3, 4, 3}: true,
	{3, 5, 2}: true,
	{4, 3, 3}: true,
	{4, 4, 2}: true,
	{4, 5, 1}: true,
	{5, 2, 3}: true,
	{5, 3, 2}: true,
	{5, 4, 1}: true,
}

// IsLegalFormation reports whether f is one of the eight allowed shapes.
func IsLegalFormation(f Formation) bool {
	return LegalFormations[f]
}

// Reason flattens a validation error into the text kept alongside a rejected week.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// clubCounts tallies squad members per club. Ids missing from the catalog are skipped.
func clubCounts(c *market.Catalog, ids []int) map[int]int {
	out := make(map[int]int)
	for _, id := range ids {
		p, ok := c.Player(id)
		if !ok {
			continue
		}
		out[p.TeamID]++
	}
	return out
}

func maxClub(counts map[int]int) (club, n int) {
	for k, v := range counts {
		if v > n || (v == n && k < club) {
			club, n = k, v
		}
	}
	return club, n
}

func clubLabel(c *market.Catalog, teamID int) string {
	if t, ok := c.Team(teamID); ok && t.Short != "" {
		return t.Short
	}
	return fmt.Sprintf("team %d", teamID)
}
