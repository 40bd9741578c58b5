package model

import "gorm.io/datatypes"

// SeasonStateModel maps to 'season_states'. StateJSON holds the state document
// without its log.
type SeasonStateModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	UserID        string         `gorm:"column:user_id;uniqueIndex:idx_season_state_key"`
	Season        string         `gorm:"column:season;uniqueIndex:idx_season_state_key;index"`
	Phase         string         `gorm:"column:phase"`
	Pointer       *int           `gorm:"column:last_gw_processed"`
	SeedOrigin    string         `gorm:"column:seed_origin"`
	StateJSON     datatypes.JSON `gorm:"column:state_json"`
	CreatedAtUnix int64          `gorm:"column:created_at"`
	UpdatedAtUnix int64          `gorm:"column:updated_at"`
}

func (SeasonStateModel) TableName() string { return "season_states" }

// GameweekLogModel maps to 'gw_logs', one row per (user, season, gw).
type GameweekLogModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	UserID        string         `gorm:"column:user_id;uniqueIndex:idx_gw_log_key"`
	Season        string         `gorm:"column:season;uniqueIndex:idx_gw_log_key"`
	GW            int            `gorm:"column:gw;uniqueIndex:idx_gw_log_key"`
	Points        int            `gorm:"column:points"`
	Chip          string         `gorm:"column:chip"`
	Made          bool           `gorm:"column:made"`
	TraceID       string         `gorm:"column:trace_id"`
	EntryJSON     datatypes.JSON `gorm:"column:entry_json"`
	UpdatedAtUnix int64          `gorm:"column:updated_at"`
}

func (GameweekLogModel) TableName() string { return "gw_logs" }
