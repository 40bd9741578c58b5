package config

import (
	"fmt"
	"strings"
	"time"

	"fplpilot/internal/logger"

	"github.com/robfig/cron/v3"
)

func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Season.validate(); err != nil {
		return err
	}
	if err := c.Autopilot.validate(); err != nil {
		return err
	}
	if err := c.AI.validate(); err != nil {
		return err
	}
	if err := c.FPL.validate(); err != nil {
		return err
	}
	if err := c.Store.validate(); err != nil {
		return err
	}
	if err := c.MCP.validate(); err != nil {
		return err
	}
	return c.Notify.validate()
}

func (a *AppConfig) validate() error {
	if _, err := logger.ParseLevel(a.LogLevel); err != nil {
		return fmt.Errorf("app.log_level: %w", err)
	}
	if !logger.ValidFormat(a.LogFormat) {
		return fmt.Errorf("app.log_format must be text or json, got %q", a.LogFormat)
	}
	return nil
}

func (s *SeasonConfig) validate() error {
	if strings.TrimSpace(s.Label) == "" {
		return fmt.Errorf("season.label is required")
	}
	if s.Budget <= 0 {
		return fmt.Errorf("season.budget must be > 0")
	}
	if s.FreeTransferCap < 1 {
		return fmt.Errorf("season.free_transfer_cap must be >= 1")
	}
	return nil
}

func (a *AutopilotConfig) validate() error {
	switch a.DraftStrategy {
	case "fail_closed", "greedy_fallback":
	default:
		return fmt.Errorf("autopilot.draft_strategy must be fail_closed or greedy_fallback, got %q", a.DraftStrategy)
	}
	if a.MaxParallelUsers < 1 {
		return fmt.Errorf("autopilot.max_parallel_users must be >= 1")
	}
	// An empty schedule disables the background job.
	if strings.TrimSpace(a.AdvanceCron) != "" {
		if _, err := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor).Parse(a.AdvanceCron); err != nil {
			return fmt.Errorf("autopilot.advance_cron invalid: %w", err)
		}
	}
	return nil
}

func (a *AIConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(a.Provider)) {
	case "openai", "gemini", "google":
	default:
		return fmt.Errorf("ai.provider %q is not supported", a.Provider)
	}
	if strings.TrimSpace(a.Model) == "" {
		return fmt.Errorf("ai.model is required")
	}
	if a.TimeoutSeconds < 0 {
		return fmt.Errorf("ai.timeout_seconds must be >= 0")
	}
	if a.Temperature < 0 || a.Temperature > 2 {
		return fmt.Errorf("ai.temperature must be within [0,2]")
	}
	if a.BreakerThreshold < 0 || a.BreakerCooldownSeconds < 0 {
		return fmt.Errorf("ai.breaker_* must be >= 0")
	}
	return nil
}

func (f *FPLConfig) validate() error {
	if !strings.HasPrefix(f.BaseURL, "http://") && !strings.HasPrefix(f.BaseURL, "https://") {
		return fmt.Errorf("fpl.base_url must be an http(s) url")
	}
	if _, err := time.LoadLocation(f.Timezone); err != nil {
		return fmt.Errorf("fpl.timezone invalid: %w", err)
	}
	if f.HistoryLastN < 0 || f.HistoryParallel < 0 {
		return fmt.Errorf("fpl.history_* must be >= 0")
	}
	return nil
}

func (s *StoreConfig) validate() error {
	switch s.Driver {
	case "sqlite":
		if strings.TrimSpace(s.Path) == "" {
			return fmt.Errorf("store.path is required for sqlite")
		}
	case "postgres":
		if strings.TrimSpace(s.DSN) == "" {
			return fmt.Errorf("store.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("store.driver must be sqlite or postgres, got %q", s.Driver)
	}
	return nil
}

func (m *MCPConfig) validate() error {
	if m.Enabled && !strings.HasPrefix(m.Path, "/") {
		return fmt.Errorf("mcp.path must start with /")
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	t := n.Telegram
	if !t.Enabled {
		return nil
	}
	if strings.TrimSpace(t.BotToken) == "" || strings.TrimSpace(t.ChatID) == "" {
		return fmt.Errorf("notify.telegram requires bot_token and chat_id when enabled")
	}
	return nil
}
