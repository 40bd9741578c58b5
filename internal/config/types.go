package config

import "strings"

// Config is the root of config.yaml.
type Config struct {
	App       AppConfig       `toml:"app"`
	Season    SeasonConfig    `toml:"season"`
	Autopilot AutopilotConfig `toml:"autopilot"`
	AI        AIConfig        `toml:"ai"`
	FPL       FPLConfig       `toml:"fpl"`
	Store     StoreConfig     `toml:"store"`
	MCP       MCPConfig       `toml:"mcp"`
	Notify    NotifyConfig    `toml:"notify"`
}

type AppConfig struct {
	Env       string `toml:"env"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	HTTPAddr  string `toml:"http_addr"`
	LogPath   string `toml:"log_path"`
	LLMLog    string `toml:"llm_log_path"`
	LLMDump   bool   `toml:"llm_dump_payload"`
}

type SeasonConfig struct {
	Label           string  `toml:"label"`
	Budget          float64 `toml:"budget"`
	FreeTransferCap int     `toml:"free_transfer_cap"`
}

type AutopilotConfig struct {
	// DraftStrategy is fail_closed or greedy_fallback.
	DraftStrategy    string   `toml:"draft_strategy"`
	AdvanceCron      string   `toml:"advance_cron"`
	MaxParallelUsers int      `toml:"max_parallel_users"`
	Users            []string `toml:"users"`
}

type AIConfig struct {
	Provider               string            `toml:"provider"`
	Model                  string            `toml:"model"`
	APIURL                 string            `toml:"api_url"`
	APIKey                 string            `toml:"api_key"`
	Headers                map[string]string `toml:"headers"`
	TimeoutSeconds         int               `toml:"timeout_seconds"`
	Temperature            float64           `toml:"temperature"`
	MaxTokens              int               `toml:"max_tokens"`
	PromptsPath            string            `toml:"prompts_path"`
	DecisionLogPath        string            `toml:"decision_log_path"`
	BreakerThreshold       int               `toml:"breaker_threshold"`
	BreakerCooldownSeconds int               `toml:"breaker_cooldown_seconds"`
}

type FPLConfig struct {
	BaseURL             string `toml:"base_url"`
	UserAgent           string `toml:"user_agent"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
	BootstrapTTLSeconds int    `toml:"bootstrap_ttl_seconds"`
	FixturesTTLSeconds  int    `toml:"fixtures_ttl_seconds"`
	SummaryTTLSeconds   int    `toml:"summary_ttl_seconds"`
	IncludeHistory      bool   `toml:"include_history"`
	HistoryLastN        int    `toml:"history_last_n"`
	HistoryParallel     int    `toml:"history_parallel"`
	Timezone            string `toml:"timezone"`
}

type StoreConfig struct {
	// Driver is sqlite or postgres.
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
	DSN    string `toml:"dsn"`
}

type MCPConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

// keySet tracks which dotted paths the files set explicitly.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault is one default rule: applied when the key is unset and need holds.
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
