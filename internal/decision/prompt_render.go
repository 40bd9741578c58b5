package decision

import (
	"fmt"
	"sort"
	"strings"

	"fplpilot/internal/market"
	"fplpilot/internal/pkg/text"
	"fplpilot/internal/rules"
	"fplpilot/internal/season"
)

type draftData struct {
	Budget       string
	MaxPerClub   int
	Players      string
	KB           string
	Instructions string
}

type weekData struct {
	GW            int
	FreeTransfers int
	Bank          string
	Chips         string
	Squad         string
	KB            string
	Instructions  string
	MaxPerClub    int
}

func buildDraftData(req DraftRequest) draftData {
	return draftData{
		Budget:       req.Budget.StringFixed(1),
		MaxPerClub:   rules.MaxPerClub,
		Players:      RenderPlayerTable(req.Players),
		KB:           strings.TrimSpace(req.KB),
		Instructions: strings.TrimSpace(req.Instructions),
	}
}

func buildWeekData(req WeekRequest) weekData {
	return weekData{
		GW:            req.GW,
		FreeTransfers: req.FreeTransfers,
		Bank:          req.Bank.StringFixed(1),
		Chips:         chipList(req.Chips),
		Squad:         RenderPlayerTable(req.Squad),
		KB:            strings.TrimSpace(req.KB),
		Instructions:  strings.TrimSpace(req.Instructions),
		MaxPerClub:    rules.MaxPerClub,
	}
}

func chipList(chips []season.Chip) string {
	if len(chips) == 0 {
		return "[NONE]"
	}
	names := make([]string, len(chips))
	for i, c := range chips {
		names[i] = string(c)
	}
	return "[" + strings.Join(names, ", ") + "]"
}

var posOrder = map[market.Position]int{market.GK: 0, market.DEF: 1, market.MID: 2, market.FWD: 3}

// RenderPlayerTable prints one fixed-width row per player, grouped by
// position and then by name.
func RenderPlayerTable(players []market.Player) string {
	rows := append([]market.Player(nil), players...)
	sort.SliceStable(rows, func(i, j int) bool {
		if posOrder[rows[i].Position] != posOrder[rows[j].Position] {
			return posOrder[rows[i].Position] < posOrder[rows[j].Position]
		}
		return rows[i].WebName < rows[j].WebName
	})
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%6s %-18s %-4s %-3s %5s %5s %-2s %6s %5s\n",
		"id", "web_name", "team", "pos", "price", "form", "st", "sel%", "ppg"))
	for _, p := range rows {
		sb.WriteString(fmt.Sprintf("%6d %-18s %-4s %-3s %5s %5.1f %-2s %6.1f %5.1f\n",
			p.ID, text.Clip(p.WebName, 18), p.TeamShort, p.Position, p.Price.StringFixed(1),
			p.Form, p.Status, p.SelectedBy, p.PointsPerGame))
	}
	return strings.TrimRight(sb.String(), "\n")
}
