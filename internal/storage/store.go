// Package storage persists run history in a local SQLite database so trends
// can be computed across report runs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"qgate/internal/domain"
)

// ErrDuplicateRun is returned when a run with the same ID was already recorded.
var ErrDuplicateRun = errors.New("run already recorded")

// gormLogger bridges GORM's logger onto the injected application logger,
// which already discards output unless verbose mode is enabled.
type gormLogger struct {
	logger *log.Logger
}

func (l *gormLogger) LogMode(logger.LogLevel) logger.Interface { return l }

func (l *gormLogger) Info(_ context.Context, msg string, data ...interface{}) {
	l.logger.Printf(msg, data...)
}

func (l *gormLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	l.logger.Printf(msg, data...)
}

func (l *gormLogger) Error(_ context.Context, msg string, data ...interface{}) {
	l.logger.Printf(msg, data...)
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		sql, rows := fc()
		l.logger.Printf("query error after %s: %v (sql=%s rows=%d)", time.Since(begin), err, sql, rows)
	}
}

// Store provides access to the run-history database.
type Store struct {
	db     *gorm.DB
	logger *log.Logger
}

// NewStore opens (creating if necessary) the history database at dbPath.
func NewStore(dbPath string, lg *log.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
		Logger:  &gormLogger{logger: lg},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	// WAL keeps a report run and a concurrent trends query from blocking
	// each other.
	if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := db.AutoMigrate(&Run{}, &ToolRun{}); err != nil {
		return nil, fmt.Errorf("failed to migrate history schema: %w", err)
	}

	return &Store{db: db, logger: lg}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordRun stores a finished report run and its per-tool results in one
// transaction.
func (s *Store) RecordRun(report *domain.RunReport) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		run := Run{
			ID:        report.ID,
			Timestamp: report.Timestamp,
			Target:    report.Target,
			OutputDir: report.OutputDir,
		}
		if err := tx.Create(&run).Error; err != nil {
			return err
		}
		for _, res := range report.Results {
			if res == nil || res.Status == domain.StatusSkipped {
				continue
			}
			toolRun := ToolRun{
				RunID:      report.ID,
				Tool:       res.Tool,
				Status:     string(res.Status),
				Issues:     res.Issues,
				ExitCode:   res.ExitCode,
				DurationMS: res.Duration.Milliseconds(),
			}
			if err := tx.Create(&toolRun).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return ErrDuplicateRun
		}
		return fmt.Errorf("failed to record run: %w", err)
	}
	s.logger.Printf("Recorded run %s in history database", report.ID)
	return nil
}

// ToolNames returns the distinct tools present in the history, sorted.
func (s *Store) ToolNames() ([]string, error) {
	var names []string
	err := s.db.Model(&ToolRun{}).
		Distinct("tool").
		Order("tool asc").
		Pluck("tool", &names).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query tool names: %w", err)
	}
	return names, nil
}

// IssueSeries returns the issue counts recorded for a tool, oldest first.
func (s *Store) IssueSeries(tool string) ([]float64, error) {
	var issues []int
	err := s.db.Model(&ToolRun{}).
		Where("tool = ?", tool).
		Order("created_at asc, id asc").
		Pluck("issues", &issues).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query issue series for %s: %w", tool, err)
	}
	series := make([]float64, len(issues))
	for i, n := range issues {
		series[i] = float64(n)
	}
	return series, nil
}
