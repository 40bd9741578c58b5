package app

import (
	"context"
	"fmt"
	"path/filepath"

	"fplpilot/internal/autopilot"
	"fplpilot/internal/config"
	"fplpilot/internal/decision"
	"fplpilot/internal/gateway/fplapi"
	"fplpilot/internal/gateway/notifier"
	"fplpilot/internal/gateway/provider"
	"fplpilot/internal/kb"
	"fplpilot/internal/logger"
	"fplpilot/internal/pkg/circuit"
	"fplpilot/internal/prompt"
	"fplpilot/internal/scheduler"
	"fplpilot/internal/store/decisionlog"
	"fplpilot/internal/store/gormstore"
	apihttp "fplpilot/internal/transport/http/api"
	mcptools "fplpilot/internal/transport/mcp"

	"github.com/shopspring/decimal"
)

// Core is everything a one-shot command needs: the service and its stores.
type Core struct {
	Service *autopilot.Service
	Store   *gormstore.GormStore
	Calls   *decisionlog.DecisionLogStore
	Feed    *fplapi.Client
}

func (c *Core) Close() error {
	if c == nil {
		return nil
	}
	var firstErr error
	if c.Calls != nil {
		if err := c.Calls.Close(); err != nil {
			firstErr = err
		}
	}
	if c.Store != nil {
		if err := c.Store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type AppBuilder struct {
	cfg *config.Config

	providerFn func(config.AIConfig) provider.ModelProvider
	feedFn     func(config.FPLConfig) *fplapi.Client
	notifierFn func(config.NotifyConfig) notifier.TextNotifier
}

type AppBuilderOption func(*AppBuilder)

// WithProvider swaps the model provider, e.g. for a canned oracle.
func WithProvider(p provider.ModelProvider) AppBuilderOption {
	return func(b *AppBuilder) {
		b.providerFn = func(config.AIConfig) provider.ModelProvider { return p }
	}
}

func WithFeed(c *fplapi.Client) AppBuilderOption {
	return func(b *AppBuilder) {
		b.feedFn = func(config.FPLConfig) *fplapi.Client { return c }
	}
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:        cfg,
		providerFn: buildModelProvider,
		feedFn:     buildFeed,
		notifierFn: buildNotifier,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Build assembles the long-running app: core, HTTP API, MCP and scheduler.
func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	core, err := b.BuildCore(ctx)
	if err != nil {
		return nil, err
	}
	cfg := b.cfg

	var calls apihttp.CallLog
	if core.Calls != nil {
		calls = core.Calls
	}
	api, err := apihttp.NewServer(apihttp.ServerConfig{
		Addr:  cfg.App.HTTPAddr,
		Pilot: core.Service,
		Calls: calls,
	})
	if err != nil {
		_ = core.Close()
		return nil, err
	}
	if cfg.MCP.Enabled {
		api.Mount(cfg.MCP.Path, mcptools.Handler(mcptools.NewServer(core.Service)))
		logger.Infof("✓ MCP tools served at %s", cfg.MCP.Path)
	}

	sched := scheduler.NewAdvanceScheduler(core.Service, b.notifierFn(cfg.Notify), cfg.Autopilot.AdvanceCron)
	return &App{
		cfg:     cfg,
		core:    core,
		api:     api,
		sched:   sched,
		Summary: newStartupSummary(cfg),
	}, nil
}

// BuildCore opens the stores and wires the autopilot service.
func (b *AppBuilder) BuildCore(ctx context.Context) (*Core, error) {
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg

	st, err := gormstore.Open(gormstore.Config{Driver: cfg.Store.Driver, Path: cfg.Store.Path, DSN: cfg.Store.DSN})
	if err != nil {
		return nil, fmt.Errorf("open season store: %w", err)
	}
	if err := pingStore(ctx, st); err != nil {
		_ = st.Close()
		return nil, err
	}
	logger.Infof("✓ season store %s (%s)", st.Dialect(), storeLocation(cfg.Store))

	calls, err := buildDecisionLog(cfg.AI, st)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	prompts, err := prompt.NewRegistry(cfg.AI.PromptsPath)
	if err != nil {
		_ = calls.Close()
		_ = st.Close()
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	model := b.providerFn(cfg.AI)
	breaker := circuit.New(model.ID(), cfg.AI.BreakerThreshold, cfg.AI.BreakerCooldown())
	oracle := decision.NewAdapter(model, prompts, breaker, calls, decision.AdapterConfig{
		Timeout:     cfg.AI.Timeout(),
		Temperature: cfg.AI.Temperature,
		MaxTokens:   cfg.AI.MaxTokens,
	})

	feed := b.feedFn(cfg.FPL)
	kbBuilder := kb.NewBuilder(feed, feed, kb.Options{
		IncludeHistory: cfg.FPL.IncludeHistory,
		LastN:          cfg.FPL.HistoryLastN,
		MaxParallel:    cfg.FPL.HistoryParallel,
		Location:       cfg.FPL.Location(),
	})

	adv := autopilot.NewAdvancer(oracle, st, autopilot.Config{
		Budget:          decimal.NewFromFloat(cfg.Season.Budget),
		FreeTransferCap: cfg.Season.FreeTransferCap,
		DraftStrategy:   autopilot.DraftStrategy(cfg.Autopilot.DraftStrategy),
	})
	svc := autopilot.NewService(adv, st, autopilot.FeedSnapshots{Feed: feed, KB: kbBuilder, Points: feed}, autopilot.ServiceConfig{
		Season:      cfg.Season.Label,
		Users:       cfg.Autopilot.Users,
		MaxParallel: cfg.Autopilot.MaxParallelUsers,
	})
	return &Core{Service: svc, Store: st, Calls: calls, Feed: feed}, nil
}

func pingStore(ctx context.Context, st *gormstore.GormStore) error {
	db, err := st.SQLDB()
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping season store: %w", err)
	}
	return nil
}

func buildDecisionLog(cfg config.AIConfig, st *gormstore.GormStore) (*decisionlog.DecisionLogStore, error) {
	if !cfg.SharedDecisionLog() {
		calls, err := decisionlog.NewDecisionLogStore(cfg.DecisionLogPath)
		if err != nil {
			return nil, fmt.Errorf("open decision log: %w", err)
		}
		path := cfg.DecisionLogPath
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		logger.Infof("✓ oracle calls logged to %s", path)
		return calls, nil
	}
	if st.Dialect() != gormstore.DriverSQLite {
		return nil, fmt.Errorf("ai.decision_log_path may only be empty with the sqlite store")
	}
	db, err := st.SQLDB()
	if err != nil {
		return nil, err
	}
	calls, err := decisionlog.NewShared(db)
	if err != nil {
		return nil, fmt.Errorf("open shared decision log: %w", err)
	}
	logger.Infof("✓ oracle calls logged to the season store")
	return calls, nil
}

func buildModelProvider(cfg config.AIConfig) provider.ModelProvider {
	return provider.Build(provider.ModelCfg{
		Provider: cfg.Provider,
		APIURL:   cfg.APIURL,
		APIKey:   cfg.APIKey,
		Model:    cfg.Model,
		Headers:  cfg.Headers,
		Timeout:  cfg.Timeout(),
	})
}

func buildFeed(cfg config.FPLConfig) *fplapi.Client {
	bootstrap, fixtures, summary := cfg.TTLs()
	return fplapi.New(fplapi.Config{
		BaseURL:      cfg.BaseURL,
		Timeout:      cfg.Timeout(),
		UserAgent:    cfg.UserAgent,
		BootstrapTTL: bootstrap,
		FixturesTTL:  fixtures,
		SummaryTTL:   summary,
	})
}

func buildNotifier(cfg config.NotifyConfig) notifier.TextNotifier {
	if !cfg.Telegram.Enabled {
		return notifier.Nop{}
	}
	logger.Infof("✓ telegram summaries enabled for chat %s", cfg.Telegram.ChatID)
	return notifier.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
}

func storeLocation(cfg config.StoreConfig) string {
	if cfg.Driver == gormstore.DriverPostgres {
		return "dsn"
	}
	return cfg.Path
}
