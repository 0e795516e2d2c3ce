package storage

import "time"

// Run is one recorded quality-report run.
type Run struct {
	ID        string `gorm:"primaryKey"`
	Timestamp string `gorm:"not null;index:idx_run_timestamp"`
	Target    string `gorm:"default:''"`
	OutputDir string `gorm:"default:''"`
	CreatedAt time.Time
}

// ToolRun is the per-tool outcome within a run.
type ToolRun struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	RunID      string `gorm:"not null;index:idx_toolrun_run"`
	Tool       string `gorm:"not null;index:idx_toolrun_tool"`
	Status     string `gorm:"not null"`
	Issues     int    `gorm:"not null;default:0"`
	ExitCode   int    `gorm:"not null;default:0"`
	DurationMS int64  `gorm:"not null;default:0"`
	CreatedAt  time.Time
}
