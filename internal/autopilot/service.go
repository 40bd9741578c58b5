package autopilot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"fplpilot/internal/logger"
	"fplpilot/internal/market"
	"fplpilot/internal/season"
	"fplpilot/internal/store"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

type ServiceConfig struct {
	Season      string
	Users       []string
	MaxParallel int
}

// Service is the entry point used by the CLI, HTTP and scheduler. Passes for
// the same user are serialised and identical concurrent requests share one run.
type Service struct {
	adv       *Advancer
	store     store.Store
	snapshots SnapshotSource
	cfg       ServiceConfig

	mu    sync.Mutex
	locks map[season.Key]*sync.Mutex
	group singleflight.Group
}

// RedraftResult pairs the re-draft with the regeneration that followed it.
type RedraftResult struct {
	Draft  DraftReport `json:"draft"`
	Report Report      `json:"report"`
}

// UserReport is one user's outcome within AdvanceAll.
type UserReport struct {
	User   string `json:"user"`
	Report Report `json:"report"`
	Error  string `json:"error,omitempty"`
}

func NewService(adv *Advancer, st store.Store, snapshots SnapshotSource, cfg ServiceConfig) *Service {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 4
	}
	return &Service{
		adv:       adv,
		store:     st,
		snapshots: snapshots,
		cfg:       cfg,
		locks:     make(map[season.Key]*sync.Mutex),
	}
}

func (s *Service) Season() string { return s.cfg.Season }

func (s *Service) key(user string) season.Key {
	return season.Key{User: user, Season: s.cfg.Season}
}

func (s *Service) lock(key season.Key) func() {
	s.mu.Lock()
	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}
	s.mu.Unlock()
	m.Lock()
	return m.Unlock
}

func (s *Service) load(ctx context.Context, key season.Key) (*season.State, error) {
	st, err := s.store.Load(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return season.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	st.Normalize()
	return st, nil
}

// State returns the stored state, or an empty one for a new user.
func (s *Service) State(ctx context.Context, user string) (*season.State, error) {
	return s.load(ctx, s.key(user))
}

// run loads the user's state under the key lock, takes a snapshot and calls fn.
// Identical requests in flight share one run. The run is detached from any one
// caller's cancellation, so a caller that gives up only stops waiting.
func (s *Service) run(ctx context.Context, op, user string, opts Options, fn func(context.Context, *season.State, Snapshot) (any, error)) (any, error) {
	key := s.key(user)
	flight := op + "|" + key.String() + "|" + opts.Instructions
	runCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(flight, func() (any, error) {
		unlock := s.lock(key)
		defer unlock()
		st, err := s.load(runCtx, key)
		if err != nil {
			return nil, err
		}
		snap, err := s.snapshots.Snapshot(runCtx)
		if err != nil {
			return nil, fmt.Errorf("snapshot: %w", err)
		}
		return fn(runCtx, st, snap)
	})
	select {
	case <-ctx.Done():
		logger.Warnf("[autopilot] %s %s caller gone, run continues: %v", op, key, ctx.Err())
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			logger.Debugf("[autopilot] %s %s shared an in-flight run", op, key)
		}
		return res.Val, res.Err
	}
}

func (s *Service) Draft(ctx context.Context, user string, opts Options) (DraftReport, error) {
	v, err := s.run(ctx, "draft", user, opts, func(ctx context.Context, st *season.State, snap Snapshot) (any, error) {
		return s.adv.DraftInitialSquad(ctx, s.key(user), st, snap, opts)
	})
	if err != nil {
		return DraftReport{}, err
	}
	return v.(DraftReport), nil
}

func (s *Service) Advance(ctx context.Context, user string, opts Options) (Report, error) {
	v, err := s.run(ctx, "advance", user, opts, func(ctx context.Context, st *season.State, snap Snapshot) (any, error) {
		return s.adv.AdvanceToCurrent(ctx, s.key(user), st, snap, opts)
	})
	return reportOf(v), err
}

func (s *Service) Regenerate(ctx context.Context, user string, opts Options) (Report, error) {
	v, err := s.run(ctx, "regenerate", user, opts, func(ctx context.Context, st *season.State, snap Snapshot) (any, error) {
		return s.adv.RewindAndRegenerate(ctx, s.key(user), st, snap, opts)
	})
	return reportOf(v), err
}

func (s *Service) Redraft(ctx context.Context, user string, opts Options) (RedraftResult, error) {
	v, err := s.run(ctx, "redraft", user, opts, func(ctx context.Context, st *season.State, snap Snapshot) (any, error) {
		dr, rep, err := s.adv.ForceRedraftGW1(ctx, s.key(user), st, snap, opts)
		return RedraftResult{Draft: dr, Report: rep}, err
	})
	res, _ := v.(RedraftResult)
	return res, err
}

func (s *Service) RefreshPoints(ctx context.Context, user string) (int, error) {
	v, err := s.run(ctx, "refresh", user, Options{}, func(ctx context.Context, st *season.State, snap Snapshot) (any, error) {
		return s.adv.RefreshPoints(ctx, s.key(user), st, snap.Points)
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// SuggestLineup ranks the user's current squad by market score and returns the
// best legal lineup. Nothing is persisted.
func (s *Service) SuggestLineup(ctx context.Context, user string) (Lineup, error) {
	st, err := s.State(ctx, user)
	if err != nil {
		return Lineup{}, err
	}
	if !st.HasSquad() {
		return Lineup{}, fmt.Errorf("%s: %w", user, ErrNoSquad)
	}
	snap, err := s.snapshots.Snapshot(ctx)
	if err != nil {
		return Lineup{}, fmt.Errorf("snapshot: %w", err)
	}
	scores := market.ScoreIndex(market.ScoreMarket(snap.Catalog, snap.Fixtures))
	return AutoLineup(snap.Catalog, st.SquadIDs(), scores)
}

// Market returns the top n players by heuristic score, or all when n <= 0.
func (s *Service) Market(ctx context.Context, n int) ([]market.Scored, error) {
	snap, err := s.snapshots.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	scored := market.ScoreMarket(snap.Catalog, snap.Fixtures)
	if n > 0 && len(scored) > n {
		scored = scored[:n]
	}
	return scored, nil
}

// AdvanceAll runs a pass for every known user of the season against one shared
// snapshot. A failing user does not stop the others.
func (s *Service) AdvanceAll(ctx context.Context) ([]UserReport, error) {
	users, err := s.users(ctx)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	snap, err := s.snapshots.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	out := make([]UserReport, len(users))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxParallel)
	for i, user := range users {
		g.Go(func() error {
			key := s.key(user)
			unlock := s.lock(key)
			defer unlock()
			out[i].User = user
			st, err := s.load(gctx, key)
			if err != nil {
				out[i].Error = err.Error()
				return nil
			}
			rep, err := s.adv.AdvanceToCurrent(gctx, key, st, snap, Options{})
			out[i].Report = rep
			if err != nil {
				out[i].Error = err.Error()
				logger.Errorf("[autopilot] %s advance failed: %v", key, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return out, ctx.Err()
}

func (s *Service) users(ctx context.Context) ([]string, error) {
	stored, err := s.store.Users(ctx, s.cfg.Season)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	seen := make(map[string]bool, len(stored)+len(s.cfg.Users))
	var out []string
	for _, u := range append(stored, s.cfg.Users...) {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	sort.Strings(out)
	return out, nil
}

func reportOf(v any) Report {
	rep, _ := v.(Report)
	return rep
}
