package decision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fplpilot/internal/gateway/provider"
	"fplpilot/internal/logger"
	"fplpilot/internal/pkg/circuit"
	"fplpilot/internal/prompt"

	"github.com/google/uuid"
)

// CallRecord is one audited oracle exchange.
type CallRecord struct {
	TraceID       string
	UserID        string
	Season        string
	Kind          string
	GW            int
	Provider      string
	PromptVersion int
	SystemPrompt  string
	UserPrompt    string
	RawOutput     string
	Status        string
	Problem       string
	Error         string
	Duration      time.Duration
	CreatedAt     time.Time
}

func (r *CallRecord) llmMeta() logger.LLMMeta {
	return logger.LLMMeta{Trace: r.TraceID, Provider: r.Provider, Kind: r.Kind, User: r.UserID, GW: r.GW}
}

// Recorder persists oracle exchanges for later inspection.
type Recorder interface {
	RecordCall(ctx context.Context, rec CallRecord) error
}

type AdapterConfig struct {
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

// Adapter is the Oracle backed by a model provider.
type Adapter struct {
	provider provider.ModelProvider
	prompts  *prompt.Registry
	parser   *Parser
	breaker  *circuit.Breaker
	recorder Recorder
	cfg      AdapterConfig
	now      func() time.Time
	newTrace func() string
}

func NewAdapter(p provider.ModelProvider, prompts *prompt.Registry, breaker *circuit.Breaker, recorder Recorder, cfg AdapterConfig) *Adapter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	return &Adapter{
		provider: p,
		prompts:  prompts,
		parser:   NewParser(prompts),
		breaker:  breaker,
		recorder: recorder,
		cfg:      cfg,
		now:      time.Now,
		newTrace: func() string { return uuid.NewString() },
	}
}

func (a *Adapter) ProposeDraft(ctx context.Context, req DraftRequest) (DraftProposal, error) {
	rec := CallRecord{UserID: req.Key.User, Season: req.Key.Season, Kind: string(prompt.KindDraft)}
	raw, err := a.call(ctx, prompt.KindDraft, buildDraftData(req), &rec)
	if err != nil {
		return DraftProposal{TraceID: rec.TraceID}, err
	}
	out := a.parser.ParseDraft(raw)
	out.TraceID = rec.TraceID
	a.finish(ctx, &rec, string(out.Status), out.Problem)
	return out, nil
}

func (a *Adapter) ProposeWeek(ctx context.Context, req WeekRequest) (WeekProposal, error) {
	rec := CallRecord{UserID: req.Key.User, Season: req.Key.Season, Kind: string(prompt.KindWeek), GW: req.GW}
	raw, err := a.call(ctx, prompt.KindWeek, buildWeekData(req), &rec)
	if err != nil {
		return WeekProposal{TraceID: rec.TraceID}, err
	}
	out := a.parser.ParseWeek(raw)
	out.TraceID = rec.TraceID
	a.finish(ctx, &rec, string(out.Status), out.Problem)
	return out, nil
}

func (a *Adapter) call(ctx context.Context, kind prompt.Kind, data any, rec *CallRecord) (string, error) {
	rec.TraceID = a.newTrace()
	rec.CreatedAt = a.now()
	if a.provider == nil || !a.provider.Enabled() {
		return "", fmt.Errorf("%w: %w", ErrOracleUnavailable, provider.ErrNotConfigured)
	}
	rec.Provider = a.provider.ID()
	rec.PromptVersion = a.prompts.Version(kind)
	system, user, err := a.prompts.Render(kind, data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}
	rec.SystemPrompt, rec.UserPrompt = system, user
	logger.LogLLMRequest(rec.llmMeta(), system, user)

	callCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()
	payload := provider.ChatPayload{
		System:      system,
		User:        user,
		Temperature: a.cfg.Temperature,
		MaxTokens:   a.cfg.MaxTokens,
		ExpectJSON:  true,
	}
	var raw string
	invoke := func(ctx context.Context) error {
		out, err := a.provider.Call(ctx, payload)
		raw = out
		return err
	}
	if a.breaker != nil {
		err = a.breaker.Do(callCtx, invoke)
	} else {
		err = invoke(callCtx)
	}
	rec.Duration = a.now().Sub(rec.CreatedAt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("timed out after %s: %w", a.cfg.Timeout, err)
		}
		rec.Error = err.Error()
		a.record(ctx, *rec)
		logger.Warnf("[oracle] %s %s trace=%s failed: %v", rec.Provider, kind, rec.TraceID, err)
		return "", fmt.Errorf("%w: %w", ErrOracleUnavailable, err)
	}
	rec.RawOutput = raw
	logger.LogLLMResponse(rec.llmMeta(), raw)
	return raw, nil
}

func (a *Adapter) finish(ctx context.Context, rec *CallRecord, status, problem string) {
	rec.Status = status
	rec.Problem = problem
	if problem != "" {
		logger.Warnf("[oracle] %s %s trace=%s malformed: %s", rec.Provider, rec.Kind, rec.TraceID, problem)
	} else {
		logger.Infof("[oracle] %s %s trace=%s ok in %s", rec.Provider, rec.Kind, rec.TraceID, rec.Duration.Round(time.Millisecond))
	}
	a.record(ctx, *rec)
}

func (a *Adapter) record(ctx context.Context, rec CallRecord) {
	if a.recorder == nil {
		return
	}
	if err := a.recorder.RecordCall(context.WithoutCancel(ctx), rec); err != nil {
		logger.Warnf("[oracle] record trace=%s: %v", rec.TraceID, err)
	}
}
