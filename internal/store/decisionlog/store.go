package decisionlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"fplpilot/internal/decision"

	_ "modernc.org/sqlite"
)

// DecisionLogStore keeps every oracle exchange for later inspection.
type DecisionLogStore struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	ownsDB bool
}

var _ decision.Recorder = (*DecisionLogStore)(nil)

// Query filters ListCalls. Empty fields match everything.
type Query struct {
	User   string
	Season string
	Kind   string
	GW     int
	Limit  int
	Offset int
}

func NewDecisionLogStore(path string) (*DecisionLogStore, error) {
	if path == "" {
		return nil, fmt.Errorf("decision log path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &DecisionLogStore{db: db, path: path, ownsDB: true}, nil
}

// NewShared writes into a connection opened elsewhere, typically the season
// store's SQLite handle, so one file holds both.
func NewShared(db *sql.DB) (*DecisionLogStore, error) {
	if db == nil {
		return nil, fmt.Errorf("external db is required")
	}
	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	return &DecisionLogStore{db: db}, nil
}

func (s *DecisionLogStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	if !s.ownsDB {
		s.db = nil
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS oracle_calls (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			trace_id TEXT NOT NULL,
			user_id TEXT,
			season TEXT,
			kind TEXT,
			gw INTEGER,
			provider_id TEXT,
			prompt_version INTEGER,
			system_prompt TEXT,
			user_prompt TEXT,
			raw_output TEXT,
			status TEXT,
			problem TEXT,
			error TEXT,
			duration_ms INTEGER,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_oracle_calls_user_season_ts ON oracle_calls(user_id, season, created_at DESC, id DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_oracle_calls_trace ON oracle_calls(trace_id)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *DecisionLogStore) handle() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, fmt.Errorf("decision log store is closed")
	}
	return s.db, nil
}

// RecordCall writes one exchange.
func (s *DecisionLogStore) RecordCall(ctx context.Context, rec decision.CallRecord) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err = db.ExecContext(ctx, `INSERT INTO oracle_calls
		(trace_id, user_id, season, kind, gw, provider_id, prompt_version, system_prompt, user_prompt,
		 raw_output, status, problem, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.TraceID, rec.UserID, rec.Season, rec.Kind, rec.GW, rec.Provider, rec.PromptVersion,
		rec.SystemPrompt, rec.UserPrompt, rec.RawOutput, rec.Status, rec.Problem, rec.Error,
		rec.Duration.Milliseconds(), created.UnixMilli())
	return err
}

const selectCalls = `SELECT trace_id, user_id, season, kind, gw, provider_id, prompt_version, system_prompt,
	user_prompt, raw_output, status, problem, error, duration_ms, created_at FROM oracle_calls`

// ListCalls returns the newest exchanges first.
func (s *DecisionLogStore) ListCalls(ctx context.Context, q Query) ([]decision.CallRecord, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	offset := max(q.Offset, 0)

	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(selectCalls)
	sb.WriteString(" WHERE 1=1")
	for _, f := range []struct {
		col string
		val string
	}{{"user_id", q.User}, {"season", q.Season}, {"kind", q.Kind}} {
		if f.val != "" {
			sb.WriteString(" AND " + f.col + "=?")
			args = append(args, f.val)
		}
	}
	if q.GW > 0 {
		sb.WriteString(" AND gw=?")
		args = append(args, q.GW)
	}
	sb.WriteString(" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?")
	args = append(args, limit, offset)

	rows, err := db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []decision.CallRecord
	for rows.Next() {
		rec, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

// CallsByTrace returns every exchange sharing a trace id, oldest first.
func (s *DecisionLogStore) CallsByTrace(ctx context.Context, traceID string) ([]decision.CallRecord, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, selectCalls+" WHERE trace_id=? ORDER BY id ASC", strings.TrimSpace(traceID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []decision.CallRecord
	for rows.Next() {
		rec, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(scanner rowScanner) (decision.CallRecord, error) {
	var (
		rec                                    decision.CallRecord
		user, seasonLabel, kind, providerID    sql.NullString
		system, userPrompt, raw, status, probl sql.NullString
		errStr                                 sql.NullString
		gw, version, durationMS                sql.NullInt64
		created                                int64
	)
	if err := scanner.Scan(&rec.TraceID, &user, &seasonLabel, &kind, &gw, &providerID, &version, &system,
		&userPrompt, &raw, &status, &probl, &errStr, &durationMS, &created); err != nil {
		return rec, err
	}
	rec.UserID = user.String
	rec.Season = seasonLabel.String
	rec.Kind = kind.String
	rec.GW = int(gw.Int64)
	rec.Provider = providerID.String
	rec.PromptVersion = int(version.Int64)
	rec.SystemPrompt = system.String
	rec.UserPrompt = userPrompt.String
	rec.RawOutput = raw.String
	rec.Status = status.String
	rec.Problem = probl.String
	rec.Error = errStr.String
	rec.Duration = time.Duration(durationMS.Int64) * time.Millisecond
	rec.CreatedAt = time.UnixMilli(created)
	return rec, nil
}
