package app

import (
	"fmt"
	"io"
	"os"
	"strings"

	"fplpilot/internal/config"
)

type StartupSummary struct {
	Season    string
	Budget    float64
	FTCap     int
	Strategy  string
	Cron      string
	Users     []string
	Provider  string
	Model     string
	Store     string
	HTTPAddr  string
	MCPPath   string
	Telegram  bool
	KBHistory bool
}

func newStartupSummary(cfg *config.Config) *StartupSummary {
	s := &StartupSummary{
		Season:    cfg.Season.Label,
		Budget:    cfg.Season.Budget,
		FTCap:     cfg.Season.FreeTransferCap,
		Strategy:  cfg.Autopilot.DraftStrategy,
		Cron:      cfg.Autopilot.AdvanceCron,
		Users:     cfg.Autopilot.Users,
		Provider:  cfg.AI.Provider,
		Model:     cfg.AI.Model,
		Store:     cfg.Store.Driver + ":" + storeLocation(cfg.Store),
		HTTPAddr:  cfg.App.HTTPAddr,
		Telegram:  cfg.Notify.Telegram.Enabled,
		KBHistory: cfg.FPL.IncludeHistory,
	}
	if cfg.MCP.Enabled {
		s.MCPPath = cfg.MCP.Path
	}
	return s
}

func (s *StartupSummary) Print() { s.Fprint(os.Stdout) }

func (s *StartupSummary) Fprint(w io.Writer) {
	rule := strings.Repeat("=", 60)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "  fplpilot  season %s\n", s.Season)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "  budget        %.1f (free transfer cap %d)\n", s.Budget, s.FTCap)
	fmt.Fprintf(w, "  draft         %s\n", s.Strategy)
	fmt.Fprintf(w, "  schedule      %s\n", orDash(s.Cron))
	fmt.Fprintf(w, "  users         %s\n", formatList(s.Users))
	fmt.Fprintf(w, "  oracle        %s / %s\n", s.Provider, s.Model)
	fmt.Fprintf(w, "  kb history    %v\n", s.KBHistory)
	fmt.Fprintf(w, "  store         %s\n", s.Store)
	fmt.Fprintf(w, "  http          %s\n", s.HTTPAddr)
	fmt.Fprintf(w, "  mcp           %s\n", orDash(s.MCPPath))
	fmt.Fprintf(w, "  telegram      %v\n", s.Telegram)
	fmt.Fprintln(w, rule)
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
