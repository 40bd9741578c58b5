// Package kb renders the plain-text knowledge base handed to the oracle.
package kb

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"fplpilot/internal/gateway/fplapi"
	"fplpilot/internal/logger"
	"fplpilot/internal/market"

	"golang.org/x/sync/errgroup"
)

// HistorySource serves per-player fixture history.
type HistorySource interface {
	History(ctx context.Context, playerID int) ([]fplapi.HistoryRow, error)
}

type Options struct {
	IncludeHistory bool
	LastN          int
	MaxParallel    int
	Location       *time.Location
}

type Builder struct {
	feed    market.Feed
	history HistorySource
	opts    Options
	now     func() time.Time
}

// KB is the rendered text plus the facts the header advertises.
type KB struct {
	Text    string
	Header  string
	GW      int
	Players int
}

var statusLabel = map[string]string{
	"a": "Available",
	"d": "Doubtful",
	"i": "Injured",
	"s": "Suspended",
	"u": "Unavailable",
}

func NewBuilder(feed market.Feed, history HistorySource, opts Options) *Builder {
	if opts.LastN <= 0 {
		opts.LastN = 5
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = 8
	}
	if opts.Location == nil {
		loc, err := time.LoadLocation("Europe/London")
		if err != nil {
			loc = time.UTC
		}
		opts.Location = loc
	}
	return &Builder{feed: feed, history: history, opts: opts, now: time.Now}
}

func (b *Builder) Build(ctx context.Context) (KB, error) {
	gw, err := b.feed.CurrentGameweek(ctx)
	if err != nil {
		return KB{}, fmt.Errorf("current gameweek: %w", err)
	}
	cat, err := b.feed.Catalog(ctx)
	if err != nil {
		return KB{}, fmt.Errorf("catalog: %w", err)
	}
	fixtures, err := b.feed.Fixtures(ctx)
	if err != nil {
		return KB{}, fmt.Errorf("fixtures: %w", err)
	}
	return b.render(ctx, gw, cat, fixtures), nil
}

func (b *Builder) render(ctx context.Context, gw int, cat *market.Catalog, fixtures []market.Fixture) KB {
	players := cat.Players()
	recent := b.recentBlocks(ctx, players)

	playerLines := make([]string, 0, len(players))
	for _, p := range players {
		line := PlayerLine(p)
		if b.opts.IncludeHistory {
			line += " | " + recent[p.ID]
		}
		playerLines = append(playerLines, line)
	}
	fixtureLines := TeamFixtureLines(cat, fixtures, b.opts.LastN)

	gwLabel := "None"
	if gw > 0 {
		gwLabel = fmt.Sprint(gw)
	}
	header := fmt.Sprintf("KB_BUILT: %s | CURRENT_GW: %s | PLAYERS: %d",
		b.now().In(b.opts.Location).Format("2006-01-02 15:04"), gwLabel, len(playerLines))

	var sb strings.Builder
	sb.WriteString(header)
	sb.WriteString("\n\n[FIXTURES]\n")
	sb.WriteString(strings.Join(fixtureLines, "\n"))
	sb.WriteString("\n\n[PLAYERS]\n")
	sb.WriteString(strings.Join(playerLines, "\n"))
	return KB{Text: sb.String(), Header: header, GW: gw, Players: len(playerLines)}
}

// PlayerLine is the one-line summary of a catalog player.
func PlayerLine(p market.Player) string {
	chance := ""
	if p.ChanceNext != nil {
		chance = fmt.Sprint(*p.ChanceNext)
	}
	label := statusLabel[p.Status]
	if label == "" {
		label = p.Status
	}
	return fmt.Sprintf("PLAYER: %s | TEAM: %s | POS: %s | PRICE: £%sm | FORM: %.1f | OWN: %.1f%% | PPG: %.1f | TOT: %d | MINS: %d | ICT: %.1f | STATUS: %s (%s%% next) | NEWS: %s",
		p.WebName, p.TeamShort, p.Position, p.Price.StringFixed(1), p.Form, p.SelectedBy, p.PointsPerGame,
		p.TotalPoints, p.Minutes, p.ICTIndex, label, chance, clip(p.News, 120))
}

// TeamFixtureLines lists each club's next n unfinished fixtures with FDR.
func TeamFixtureLines(cat *market.Catalog, fixtures []market.Fixture, n int) []string {
	open := make([]market.Fixture, 0, len(fixtures))
	for _, f := range fixtures {
		if !f.Finished {
			open = append(open, f)
		}
	}
	sort.SliceStable(open, func(i, j int) bool { return open[i].Kickoff.Before(open[j].Kickoff) })

	short := func(id int) string {
		if t, ok := cat.Team(id); ok && t.Short != "" {
			return t.Short
		}
		return fmt.Sprint(id)
	}
	var lines []string
	for _, team := range cat.Teams() {
		var parts []string
		for _, f := range open {
			if len(parts) == n {
				break
			}
			switch team.ID {
			case f.TeamH:
				parts = append(parts, fmt.Sprintf("GW%d vs %s (FDR %d)", f.Event, short(f.TeamA), f.TeamHDifficulty))
			case f.TeamA:
				parts = append(parts, fmt.Sprintf("GW%d @ %s (FDR %d)", f.Event, short(f.TeamH), f.TeamADifficulty))
			}
		}
		if len(parts) == 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("TEAM_FIX: %s → %s", short(team.ID), strings.Join(parts, "; ")))
	}
	return lines
}

func (b *Builder) recentBlocks(ctx context.Context, players []market.Player) map[int]string {
	out := make(map[int]string, len(players))
	if !b.opts.IncludeHistory || b.history == nil {
		return out
	}
	blocks := make([]string, len(players))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.MaxParallel)
	for i, p := range players {
		g.Go(func() error {
			blocks[i] = b.recentBlock(gctx, p.ID)
			return nil
		})
	}
	_ = g.Wait()
	failed := 0
	for i, p := range players {
		out[p.ID] = blocks[i]
		if blocks[i] == recentUnavailable {
			failed++
		}
	}
	if failed > 0 {
		logger.Warnf("[kb] recent history unavailable for %d/%d players", failed, len(players))
	}
	return out
}

const recentUnavailable = "RECENT: n/a"

func (b *Builder) recentBlock(ctx context.Context, playerID int) string {
	rows, err := b.history.History(ctx, playerID)
	if err != nil || len(rows) == 0 {
		return recentUnavailable
	}
	return RecentBlock(rows, b.opts.LastN)
}

// RecentBlock summarises the last n history rows.
func RecentBlock(rows []fplapi.HistoryRow, n int) string {
	if len(rows) > n {
		rows = rows[len(rows)-n:]
	}
	if len(rows) == 0 {
		return recentUnavailable
	}
	pts := make([]string, len(rows))
	sum, mins, goals, assists, cs := 0, 0, 0, 0, 0
	for i, r := range rows {
		pts[i] = fmt.Sprint(r.TotalPoints)
		sum += r.TotalPoints
		mins += r.Minutes
		goals += r.Goals
		assists += r.Assists
		cs += r.CleanSheets
	}
	return fmt.Sprintf("RECENT(%d): pts[%s] | avg %.2f | mins/90 %.1f | G%d A%d CS%d",
		len(rows), strings.Join(pts, ","), float64(sum)/float64(len(rows)), float64(mins)/90.0, goals, assists, cs)
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
