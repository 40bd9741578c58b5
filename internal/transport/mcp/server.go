// Package mcptools exposes the autopilot as MCP tools over streamable HTTP.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"fplpilot/internal/autopilot"
	"fplpilot/internal/logger"
	"fplpilot/internal/market"
	"fplpilot/internal/season"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	serverName    = "fplpilot"
	serverVersion = "1.0.0"
)

// Pilot is what the tools drive.
type Pilot interface {
	Season() string
	State(ctx context.Context, user string) (*season.State, error)
	Draft(ctx context.Context, user string, opts autopilot.Options) (autopilot.DraftReport, error)
	Advance(ctx context.Context, user string, opts autopilot.Options) (autopilot.Report, error)
	Regenerate(ctx context.Context, user string, opts autopilot.Options) (autopilot.Report, error)
	Redraft(ctx context.Context, user string, opts autopilot.Options) (autopilot.RedraftResult, error)
	RefreshPoints(ctx context.Context, user string) (int, error)
	SuggestLineup(ctx context.Context, user string) (autopilot.Lineup, error)
	Market(ctx context.Context, n int) ([]market.Scored, error)
}

type UserArgs struct {
	User string `json:"user" jsonschema:"Manager id (required)"`
}

type ActionArgs struct {
	User         string `json:"user" jsonschema:"Manager id (required)"`
	Instructions string `json:"instructions,omitempty" jsonschema:"Free-text guidance passed to the oracle"`
}

type LogArgs struct {
	User string `json:"user" jsonschema:"Manager id (required)"`
	GW   int    `json:"gw,omitempty" jsonschema:"Gameweek (0 = whole log)"`
}

type MarketArgs struct {
	Limit    int    `json:"limit,omitempty" jsonschema:"How many players (default 20)"`
	Position string `json:"position,omitempty" jsonschema:"GK|DEF|MID|FWD"`
}

// Tools holds the tool handlers.
type Tools struct {
	pilot Pilot
}

func NewTools(pilot Pilot) *Tools { return &Tools{pilot: pilot} }

// NewServer registers every tool on a fresh MCP server.
func NewServer(pilot Pilot) *mcp.Server {
	t := NewTools(pilot)
	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "season_state",
		Description: "Squad, bank, free transfers, chips and pointer for one manager",
	}, t.SeasonState)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "season_log",
		Description: "Committed gameweek entries with points, optionally one gameweek",
	}, t.SeasonLog)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "draft_squad",
		Description: "Ask the oracle for the initial 15-man squad and seed the season",
	}, t.Draft)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "advance",
		Description: "Play every unprocessed gameweek up to the current one",
	}, t.Advance)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "regenerate",
		Description: "Discard the current gameweek's decision and decide it again",
	}, t.Regenerate)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "redraft",
		Description: "Replace the squad during gameweek 1 and replay it",
	}, t.Redraft)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "refresh_points",
		Description: "Recompute realized points for committed gameweeks",
	}, t.RefreshPoints)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "suggest_lineup",
		Description: "Best legal XI, bench and captain for the current squad by market score",
	}, t.SuggestLineup)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "market_top",
		Description: "Top players by heuristic market score",
	}, t.MarketTop)
	return server
}

// Handler serves server over streamable HTTP with plain JSON responses.
func Handler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, &mcp.StreamableHTTPOptions{JSONResponse: true})
}

func (t *Tools) SeasonState(ctx context.Context, _ *mcp.CallToolRequest, args UserArgs) (*mcp.CallToolResult, any, error) {
	if err := requireUser(args.User); err != nil {
		return toolError(err), nil, nil
	}
	st, err := t.pilot.State(ctx, args.User)
	if err != nil {
		return toolError(err), nil, nil
	}
	return toolJSON(map[string]any{
		"user":         args.User,
		"season":       t.pilot.Season(),
		"phase":        st.Phase(),
		"total_points": st.TotalPoints(),
		"state":        st,
	})
}

func (t *Tools) SeasonLog(ctx context.Context, _ *mcp.CallToolRequest, args LogArgs) (*mcp.CallToolResult, any, error) {
	if err := requireUser(args.User); err != nil {
		return toolError(err), nil, nil
	}
	st, err := t.pilot.State(ctx, args.User)
	if err != nil {
		return toolError(err), nil, nil
	}
	entries := st.Log
	if args.GW > 0 {
		e, ok := st.EntryFor(args.GW)
		if !ok {
			return toolError(fmt.Errorf("no entry for gw %d", args.GW)), nil, nil
		}
		entries = []season.Entry{e}
	}
	return toolJSON(map[string]any{"entries": entries, "total_points": st.TotalPoints()})
}

func (t *Tools) Draft(ctx context.Context, _ *mcp.CallToolRequest, args ActionArgs) (*mcp.CallToolResult, any, error) {
	if err := requireUser(args.User); err != nil {
		return toolError(err), nil, nil
	}
	return toolJSONErr(t.pilot.Draft(ctx, args.User, options(args)))
}

func (t *Tools) Advance(ctx context.Context, _ *mcp.CallToolRequest, args ActionArgs) (*mcp.CallToolResult, any, error) {
	if err := requireUser(args.User); err != nil {
		return toolError(err), nil, nil
	}
	return toolJSONErr(t.pilot.Advance(ctx, args.User, options(args)))
}

func (t *Tools) Regenerate(ctx context.Context, _ *mcp.CallToolRequest, args ActionArgs) (*mcp.CallToolResult, any, error) {
	if err := requireUser(args.User); err != nil {
		return toolError(err), nil, nil
	}
	return toolJSONErr(t.pilot.Regenerate(ctx, args.User, options(args)))
}

func (t *Tools) Redraft(ctx context.Context, _ *mcp.CallToolRequest, args ActionArgs) (*mcp.CallToolResult, any, error) {
	if err := requireUser(args.User); err != nil {
		return toolError(err), nil, nil
	}
	return toolJSONErr(t.pilot.Redraft(ctx, args.User, options(args)))
}

func (t *Tools) RefreshPoints(ctx context.Context, _ *mcp.CallToolRequest, args UserArgs) (*mcp.CallToolResult, any, error) {
	if err := requireUser(args.User); err != nil {
		return toolError(err), nil, nil
	}
	n, err := t.pilot.RefreshPoints(ctx, args.User)
	if err != nil {
		return toolError(err), nil, nil
	}
	return toolJSON(map[string]int{"updated": n})
}

func (t *Tools) SuggestLineup(ctx context.Context, _ *mcp.CallToolRequest, args UserArgs) (*mcp.CallToolResult, any, error) {
	if err := requireUser(args.User); err != nil {
		return toolError(err), nil, nil
	}
	return toolJSONErr(t.pilot.SuggestLineup(ctx, args.User))
}

func (t *Tools) MarketTop(ctx context.Context, _ *mcp.CallToolRequest, args MarketArgs) (*mcp.CallToolResult, any, error) {
	limit := args.Limit
	if limit <= 0 {
		limit = 20
	}
	pos := market.Position(strings.ToUpper(strings.TrimSpace(args.Position)))
	scored, err := t.pilot.Market(ctx, 0)
	if err != nil {
		return toolError(err), nil, nil
	}
	out := make([]market.Scored, 0, limit)
	for _, s := range scored {
		if pos != "" && s.Position != pos {
			continue
		}
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return toolJSON(map[string]any{"players": out})
}

func options(args ActionArgs) autopilot.Options {
	return autopilot.Options{Instructions: strings.TrimSpace(args.Instructions)}
}

func requireUser(user string) error {
	if strings.TrimSpace(user) == "" {
		return fmt.Errorf("user is required")
	}
	return nil
}

func toolJSONErr[T any](v T, err error) (*mcp.CallToolResult, any, error) {
	if err != nil {
		return toolError(err), nil, nil
	}
	return toolJSON(v)
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return toolError(err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(raw)}},
	}, nil, nil
}

func toolError(err error) *mcp.CallToolResult {
	logger.Debugf("[mcp] tool error: %v", err)
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("error: %v", err)}},
	}
}
