// Package history persists completed analyses in SQLite so past
// results can be reviewed and replayed from the API.
package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// Record is one stored analysis. Meta and Result hold the raw request
// metadata and the full validated plan as JSON.
type Record struct {
	ID         uint   `gorm:"primaryKey" json:"-"`
	TraceID    string `gorm:"size:64;uniqueIndex" json:"trace_id"`
	Ticker     string `gorm:"size:32;index" json:"ticker"`
	Market     string `gorm:"size:16" json:"market"`
	Decision   string `gorm:"size:16" json:"decision"`
	Confidence float64        `json:"confidence"`
	ImageCount int            `json:"image_count"`
	Meta       datatypes.JSON `json:"meta"`
	Result     datatypes.JSON `json:"result"`
	CreatedAt  time.Time      `json:"created_at"`
}

func (Record) TableName() string { return "analysis_history" }

// ErrNotFound reports a missing trace ID.
var ErrNotFound = errors.New("history: record not found")

// Store wraps the gorm handle.
type Store struct {
	db *gorm.DB
}

// New opens (creating if needed) the history database at path with WAL
// journaling and a small connection pool; SQLite tolerates little
// write parallelism anyway.
func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("history: db path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("history: creating db dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	// DriverName "sqlite" selects the CGO-free modernc driver, whose
	// DSN dialect the _pragma options above belong to.
	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("history: opening db: %w", err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("history: migrating: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Save inserts a record; a duplicate trace ID is an error since trace
// IDs are minted per request.
func (s *Store) Save(ctx context.Context, rec *Record) error {
	if rec == nil || strings.TrimSpace(rec.TraceID) == "" {
		return fmt.Errorf("history: record needs a trace id")
	}
	return s.db.WithContext(ctx).Create(rec).Error
}

// List returns records newest first.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Record, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var out []Record
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error
	return out, err
}

// Get fetches a record by trace ID.
func (s *Store) Get(ctx context.Context, traceID string) (*Record, error) {
	var rec Record
	err := s.db.WithContext(ctx).Where("trace_id = ?", traceID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Delete removes a record by trace ID; deleting a missing record
// reports ErrNotFound.
func (s *Store) Delete(ctx context.Context, traceID string) error {
	res := s.db.WithContext(ctx).Where("trace_id = ?", traceID).Delete(&Record{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
