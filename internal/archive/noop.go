package archive

import (
	"context"

	"github.com/google/uuid"
)

// NoopArchive discards every record, for tests and deployments with no
// durable storage configured.
type NoopArchive struct{}

func (NoopArchive) RecordSessionStart(context.Context, SessionStart) (string, error) {
	return uuid.NewString(), nil
}

func (NoopArchive) RecordSessionEnd(context.Context, SessionEnd) error { return nil }

func (NoopArchive) RecordPlayerOutcomes(context.Context, []PlayerOutcome) error { return nil }
