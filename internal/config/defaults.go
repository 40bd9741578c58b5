package config

import "strings"

const (
	defaultAppEnv           = "dev"
	defaultAppLogLevel      = "info"
	defaultAppLogFormat     = "text"
	defaultAppHTTPAddr      = ":9991"
	defaultAppLogPath       = "data/logs/fplpilot.log"
	defaultAppLLMLogPath    = "data/logs/fplpilot-llm.log"
	defaultSeasonLabel      = "2025-26"
	defaultSeasonBudget     = 100.0
	defaultFreeTransferCap  = 5
	defaultDraftStrategy    = "fail_closed"
	defaultAdvanceCron      = "0 30 9 * * *"
	defaultMaxParallelUsers = 4
	defaultAIProvider       = "openai"
	defaultAIModel          = "gpt-4o-mini"
	defaultAIAPIURL         = "https://api.openai.com/v1"
	defaultAITimeout        = 90
	defaultAITemperature    = 0.2
	defaultAIMaxTokens      = 2048
	defaultAIDecisionLog    = "data/db/oracle.db"
	defaultBreakerThreshold = 3
	defaultBreakerCooldown  = 300
	defaultFPLBaseURL       = "https://fantasy.premierleague.com/api"
	defaultFPLUserAgent     = "fplpilot/1.0"
	defaultFPLTimeout       = 20
	defaultBootstrapTTL     = 300
	defaultFixturesTTL      = 300
	defaultSummaryTTL       = 900
	defaultHistoryLastN     = 5
	defaultHistoryParallel  = 8
	defaultFPLTimezone      = "Europe/London"
	defaultStoreDriver      = "sqlite"
	defaultStorePath        = "data/db/season.db"
	defaultMCPPath          = "/mcp"
	defaultIncludeHistory   = true
	defaultMCPEnabled       = true
	defaultTelegramEnabled  = false
	defaultLLMDumpPayload   = false
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Season.applyDefaults(keys)
	c.Autopilot.applyDefaults(keys)
	c.AI.applyDefaults(keys)
	c.FPL.applyDefaults(keys)
	c.Store.applyDefaults(keys)
	c.MCP.applyDefaults(keys)
	c.Notify.Telegram.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.log_format", &a.LogFormat, defaultAppLogFormat),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
		stringFieldDefault("app.llm_log_path", &a.LLMLog, defaultAppLLMLogPath),
		boolFieldDefault("app.llm_dump_payload", &a.LLMDump, defaultLLMDumpPayload),
	)
}

func (s *SeasonConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("season.label", &s.Label, defaultSeasonLabel),
		intFieldDefault("season.free_transfer_cap", &s.FreeTransferCap, defaultFreeTransferCap),
		fieldDefault{
			key:   "season.budget",
			need:  func() bool { return s.Budget <= 0 },
			apply: func() { s.Budget = defaultSeasonBudget },
		},
	)
}

func (a *AutopilotConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("autopilot.draft_strategy", &a.DraftStrategy, defaultDraftStrategy),
		stringFieldDefault("autopilot.advance_cron", &a.AdvanceCron, defaultAdvanceCron),
		intFieldDefault("autopilot.max_parallel_users", &a.MaxParallelUsers, defaultMaxParallelUsers),
	)
	a.Users = normalizeList(a.Users)
}

func (a *AIConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("ai.provider", &a.Provider, defaultAIProvider),
		stringFieldDefault("ai.model", &a.Model, defaultAIModel),
		stringFieldDefault("ai.decision_log_path", &a.DecisionLogPath, defaultAIDecisionLog),
		intFieldDefault("ai.timeout_seconds", &a.TimeoutSeconds, defaultAITimeout),
		intFieldDefault("ai.max_tokens", &a.MaxTokens, defaultAIMaxTokens),
		intFieldDefault("ai.breaker_threshold", &a.BreakerThreshold, defaultBreakerThreshold),
		intFieldDefault("ai.breaker_cooldown_seconds", &a.BreakerCooldownSeconds, defaultBreakerCooldown),
		fieldDefault{
			key:   "ai.temperature",
			need:  func() bool { return a.Temperature == 0 },
			apply: func() { a.Temperature = defaultAITemperature },
		},
		fieldDefault{
			key:   "ai.api_url",
			need:  func() bool { return strings.TrimSpace(a.APIURL) == "" && strings.EqualFold(a.Provider, "openai") },
			apply: func() { a.APIURL = defaultAIAPIURL },
		},
	)
}

func (f *FPLConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("fpl.base_url", &f.BaseURL, defaultFPLBaseURL),
		stringFieldDefault("fpl.user_agent", &f.UserAgent, defaultFPLUserAgent),
		stringFieldDefault("fpl.timezone", &f.Timezone, defaultFPLTimezone),
		intFieldDefault("fpl.timeout_seconds", &f.TimeoutSeconds, defaultFPLTimeout),
		intFieldDefault("fpl.bootstrap_ttl_seconds", &f.BootstrapTTLSeconds, defaultBootstrapTTL),
		intFieldDefault("fpl.fixtures_ttl_seconds", &f.FixturesTTLSeconds, defaultFixturesTTL),
		intFieldDefault("fpl.summary_ttl_seconds", &f.SummaryTTLSeconds, defaultSummaryTTL),
		intFieldDefault("fpl.history_last_n", &f.HistoryLastN, defaultHistoryLastN),
		intFieldDefault("fpl.history_parallel", &f.HistoryParallel, defaultHistoryParallel),
		boolFieldDefault("fpl.include_history", &f.IncludeHistory, defaultIncludeHistory),
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("store.driver", &s.Driver, defaultStoreDriver),
		stringFieldDefault("store.path", &s.Path, defaultStorePath),
	)
	s.Driver = strings.ToLower(strings.TrimSpace(s.Driver))
}

func (m *MCPConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		boolFieldDefault("mcp.enabled", &m.Enabled, defaultMCPEnabled),
		stringFieldDefault("mcp.path", &m.Path, defaultMCPPath),
	)
}

func (t *TelegramConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		boolFieldDefault("notify.telegram.enabled", &t.Enabled, defaultTelegramEnabled),
	)
}

// applyFieldDefaults skips keys the files set explicitly, so an explicit zero survives.
func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return strings.TrimSpace(*target) == "" },
		apply: func() { *target = def },
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target <= 0 },
		apply: func() { *target = def },
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:   key,
		apply: func() { *target = def },
	}
}

func normalizeList(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
