// Package archive implements SessionArchive (spec §6.4): a write-only
// hook recording session start/end and per-player outcomes to durable
// storage. Grounded on mmausa2000-ubible/database/db.go's gorm.Open +
// AutoMigrate shape, adapted from that repo's quiz-team persistence to
// trivia session records, and backed by SQLite rather than Postgres
// since a single-process archive has no need for a network database.
package archive

import (
	"context"
	"time"
)

// SessionStart is the record written when a game begins (spec §6.4).
type SessionStart struct {
	RoomCode      string
	HostName      string
	Category      string
	QuestionCount int
	PlayerCount   int
	StartedAt     time.Time
}

// SessionEnd is the record written when a game finishes.
type SessionEnd struct {
	RoomCode string
	EndedAt  time.Time
}

// PlayerOutcome is one player's final standing in a finished session.
type PlayerOutcome struct {
	SessionRef     string
	PlayerName     string
	FinalRank      int
	FinalScore     int
	TotalQuestions int
}

// SessionArchive is never read by the engine on the hot path (spec
// §6.4); every method is best-effort from the caller's perspective —
// failures are logged and swallowed, never surfaced to players.
type SessionArchive interface {
	RecordSessionStart(ctx context.Context, s SessionStart) (sessionRef string, err error)
	RecordSessionEnd(ctx context.Context, e SessionEnd) error
	RecordPlayerOutcomes(ctx context.Context, outcomes []PlayerOutcome) error
}
