// Package cache implements RoomStore (spec §4.1): read-modify-write access
// to a Room keyed by its 6-character code, backed by an external key-value
// cache with a 4-hour sliding TTL. All mutation to a given code within one
// process is serialized by a per-code lock, the way the teacher's
// MemoryStore serializes access with a single mutex, generalized here to
// one lock per code so unrelated rooms never contend.
package cache

import (
	"context"
	"time"

	"treacherest/internal/model"
)

// DefaultTTL is the sliding TTL refreshed on every write (spec §4.1).
const DefaultTTL = 4 * time.Hour

// Mutator is applied to a room record inside Update's per-code lock. It
// mutates room in place and returns an error to abort the write (the
// record is left unchanged in that case).
type Mutator func(room *model.Room) error

// Store is the RoomStore contract consumed by RoomManager and GameEngine.
// Every method may suspend on the backing cache (spec §5 Suspension points).
type Store interface {
	// Create atomically sets the room if code is not already present, with
	// TTL, and adds code to the active-rooms set. Returns ErrCodeInUse if
	// the key exists.
	Create(ctx context.Context, code string, room *model.Room) error

	// Get returns the current record, or ErrNotFound.
	Get(ctx context.Context, code string) (*model.Room, error)

	// Update acquires the per-code lock, fetches the record, applies
	// mutate, and writes the result back with refreshed TTL. Returns
	// ErrNotFound if the room does not exist, or the mutator's error
	// unchanged if mutate returns one.
	Update(ctx context.Context, code string, mutate Mutator) (*model.Room, error)

	// Delete removes the record and its active-rooms membership.
	Delete(ctx context.Context, code string) error

	// Exists reports whether code currently has a live record, without
	// decoding it. Used by RoomCodeIssuer's collision check.
	Exists(ctx context.Context, code string) (bool, error)

	// ActiveCodes returns a snapshot of the active-rooms set membership.
	ActiveCodes(ctx context.Context) ([]string, error)
}
