package gormstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fplpilot/internal/season"
	"fplpilot/internal/store"
	storemodel "fplpilot/internal/store/model"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type seasonStateModel = storemodel.SeasonStateModel
type gameweekLogModel = storemodel.GameweekLogModel

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Driver string
	// Path is the SQLite file; DSN the Postgres connection string.
	Path string
	DSN  string
}

// GormStore keeps season documents and gameweek rows in SQL through Gorm.
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

var _ store.Store = (*GormStore)(nil)

func Open(cfg Config) (*GormStore, error) {
	var dialector gorm.Dialector
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", DriverSQLite:
		path := strings.TrimSpace(cfg.Path)
		if path == "" {
			return nil, fmt.Errorf("gorm store: sqlite path is required")
		}
		if err := ensureDir(path); err != nil {
			return nil, err
		}
		dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		if strings.TrimSpace(cfg.DSN) == "" {
			return nil, fmt.Errorf("gorm store: postgres dsn is required")
		}
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("gorm store: unknown driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&seasonStateModel{}, &gameweekLogModel{}); err != nil {
		return nil, err
	}
	if driver != DriverPostgres {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// SQLite + WAL: a little read parallelism for the HTTP API, low lock contention.
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &GormStore{db: db, now: time.Now}, nil
}

func (s *GormStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SQLDB exposes the underlying *sql.DB for shared connections.
func (s *GormStore) SQLDB() (*sql.DB, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store is not open")
	}
	return s.db.DB()
}

// Dialect names the SQL dialect in use.
func (s *GormStore) Dialect() string {
	return s.db.Dialector.Name()
}

func (s *GormStore) Load(ctx context.Context, key season.Key) (*season.State, error) {
	var row seasonStateModel
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND season = ?", key.User, key.Season).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load state %s: %w", key, err)
	}
	st := season.New()
	if err := json.Unmarshal(row.StateJSON, st); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", key, err)
	}

	var logs []gameweekLogModel
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND season = ?", key.User, key.Season).
		Order("gw ASC").
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("load log %s: %w", key, err)
	}
	st.Log = make([]season.Entry, 0, len(logs))
	for _, l := range logs {
		var e season.Entry
		if err := json.Unmarshal(l.EntryJSON, &e); err != nil {
			return nil, fmt.Errorf("decode gw %d of %s: %w", l.GW, key, err)
		}
		st.Log = append(st.Log, e)
	}
	if len(st.Log) == 0 {
		st.Log = nil
	}
	st.Normalize()
	return st, nil
}

func (s *GormStore) Save(ctx context.Context, key season.Key, st *season.State) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.putState(tx, key, st); err != nil {
			return err
		}
		if err := tx.Where("user_id = ? AND season = ?", key.User, key.Season).
			Delete(&gameweekLogModel{}).Error; err != nil {
			return err
		}
		return s.putEntries(tx, key, st.Log)
	})
}

func (s *GormStore) CommitGameweek(ctx context.Context, key season.Key, st *season.State, entry season.Entry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.putState(tx, key, st); err != nil {
			return err
		}
		return s.putEntries(tx, key, []season.Entry{entry})
	})
}

func (s *GormStore) RemoveGameweek(ctx context.Context, key season.Key, st *season.State, gw int) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.putState(tx, key, st); err != nil {
			return err
		}
		return tx.Where("user_id = ? AND season = ? AND gw = ?", key.User, key.Season, gw).
			Delete(&gameweekLogModel{}).Error
	})
}

func (s *GormStore) UpsertEntries(ctx context.Context, key season.Key, entries []season.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.putEntries(tx, key, entries)
	})
}

func (s *GormStore) Users(ctx context.Context, seasonLabel string) ([]string, error) {
	var users []string
	err := s.db.WithContext(ctx).
		Model(&seasonStateModel{}).
		Where("season = ?", seasonLabel).
		Order("user_id ASC").
		Pluck("user_id", &users).Error
	return users, err
}

func (s *GormStore) putState(tx *gorm.DB, key season.Key, st *season.State) error {
	doc := st.Clone()
	doc.Log = nil
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode state %s: %w", key, err)
	}
	now := s.now().Unix()
	row := seasonStateModel{
		UserID:        key.User,
		Season:        key.Season,
		Phase:         string(st.Phase()),
		Pointer:       doc.LastGWProcessed,
		SeedOrigin:    st.SeedOrigin,
		StateJSON:     datatypes.JSON(raw),
		CreatedAtUnix: now,
		UpdatedAtUnix: now,
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "season"}},
		DoUpdates: clause.AssignmentColumns([]string{"phase", "last_gw_processed", "seed_origin", "state_json", "updated_at"}),
	}).Create(&row).Error
}

func (s *GormStore) putEntries(tx *gorm.DB, key season.Key, entries []season.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	now := s.now().Unix()
	rows := make([]gameweekLogModel, 0, len(entries))
	for _, e := range entries {
		raw, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode gw %d of %s: %w", e.GW, key, err)
		}
		rows = append(rows, gameweekLogModel{
			UserID:        key.User,
			Season:        key.Season,
			GW:            e.GW,
			Points:        e.Points,
			Chip:          string(e.Chip),
			Made:          e.Made,
			TraceID:       e.TraceID,
			EntryJSON:     datatypes.JSON(raw),
			UpdatedAtUnix: now,
		})
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "season"}, {Name: "gw"}},
		DoUpdates: clause.AssignmentColumns([]string{"points", "chip", "made", "trace_id", "entry_json", "updated_at"}),
	}).Create(&rows).Error
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
