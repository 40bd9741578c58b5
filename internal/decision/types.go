// Package decision is the boundary to the language-model oracle. It renders
// requests, calls the provider and turns free text into proposals. Proposals
// are untrusted; legality is decided elsewhere.
package decision

import (
	"context"
	"errors"

	"fplpilot/internal/market"
	"fplpilot/internal/season"

	"github.com/shopspring/decimal"
)

// ErrOracleUnavailable covers a missing key, a timeout, a transport failure or an open breaker.
var ErrOracleUnavailable = errors.New("oracle unavailable")

// Status says whether a usable JSON object came back.
type Status string

const (
	StatusWellFormed Status = "well_formed"
	StatusMalformed  Status = "malformed"
)

type DraftRequest struct {
	Key          season.Key
	Budget       decimal.Decimal
	Players      []market.Player
	KB           string
	Instructions string
}

type WeekRequest struct {
	Key           season.Key
	GW            int
	Squad         []market.Player
	Bank          decimal.Decimal
	FreeTransfers int
	Chips         []season.Chip
	KB            string
	Instructions  string
}

type DraftProposal struct {
	Status    Status
	Problem   string
	SquadIDs  []int
	CaptainID *int
	Reason    string
	Raw       string
	TraceID   string
}

// WeekProposal mirrors the weekly JSON answer. OutID and InID are only
// meaningful when Made is true.
type WeekProposal struct {
	Status    Status
	Problem   string
	Made      bool
	OutID     *int
	InID      *int
	Chip      string
	XI        []int
	Bench     []int
	CaptainID *int
	Reason    string
	Raw       string
	TraceID   string
}

func (p DraftProposal) WellFormed() bool { return p.Status == StatusWellFormed }
func (p WeekProposal) WellFormed() bool  { return p.Status == StatusWellFormed }

// Oracle proposes decisions. An error means the oracle could not be consulted;
// a malformed answer is reported through the proposal status instead.
type Oracle interface {
	ProposeDraft(ctx context.Context, req DraftRequest) (DraftProposal, error)
	ProposeWeek(ctx context.Context, req WeekRequest) (WeekProposal, error)
}
