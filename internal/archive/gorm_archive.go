package archive

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// sessionRow is the gorm-mapped table backing session start/end records.
type sessionRow struct {
	Ref           string `gorm:"primaryKey"`
	RoomCode      string `gorm:"index"`
	HostName      string
	Category      string
	QuestionCount int
	PlayerCount   int
	StartedAtUnix int64
	EndedAtUnix   int64
}

// outcomeRow is the gorm-mapped table backing per-player outcomes.
type outcomeRow struct {
	gorm.Model
	SessionRef     string `gorm:"index"`
	PlayerName     string
	FinalRank      int
	FinalScore     int
	TotalQuestions int
}

// GormArchive persists session records to a SQLite file via gorm,
// following mmausa2000-ubible's InitDB/AutoMigrate shape.
type GormArchive struct {
	db *gorm.DB
}

// Open connects to (and migrates) a SQLite-backed archive at path.
func Open(path string) (*GormArchive, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&sessionRow{}, &outcomeRow{}); err != nil {
		return nil, fmt.Errorf("archive: migrate: %w", err)
	}
	return &GormArchive{db: db}, nil
}

func (a *GormArchive) RecordSessionStart(ctx context.Context, s SessionStart) (string, error) {
	ref := uuid.NewString()
	row := sessionRow{
		Ref:           ref,
		RoomCode:      s.RoomCode,
		HostName:      s.HostName,
		Category:      s.Category,
		QuestionCount: s.QuestionCount,
		PlayerCount:   s.PlayerCount,
		StartedAtUnix: s.StartedAt.Unix(),
	}
	if err := a.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", fmt.Errorf("archive: record session start: %w", err)
	}
	return ref, nil
}

func (a *GormArchive) RecordSessionEnd(ctx context.Context, e SessionEnd) error {
	err := a.db.WithContext(ctx).Model(&sessionRow{}).
		Where("room_code = ? AND ended_at_unix = 0", e.RoomCode).
		Update("ended_at_unix", e.EndedAt.Unix()).Error
	if err != nil {
		return fmt.Errorf("archive: record session end: %w", err)
	}
	return nil
}

func (a *GormArchive) RecordPlayerOutcomes(ctx context.Context, outcomes []PlayerOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	rows := make([]outcomeRow, len(outcomes))
	for i, o := range outcomes {
		rows[i] = outcomeRow{
			SessionRef:     o.SessionRef,
			PlayerName:     o.PlayerName,
			FinalRank:      o.FinalRank,
			FinalScore:     o.FinalScore,
			TotalQuestions: o.TotalQuestions,
		}
	}
	if err := a.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("archive: record player outcomes: %w", err)
	}
	return nil
}
