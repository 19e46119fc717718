// Package roomcode implements RoomCodeIssuer (spec §4.2): unique
// 6-character room codes drawn from a restricted alphabet, with collision
// retry against the RoomStore. Grounded in the teacher's
// store.generateRoomCode, generalized from a fixed in-process map check
// to an external existence check so it works against a shared cache.
package roomcode

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
)

// Alphabet omits visually ambiguous characters (0/O, I/1, L) per spec §3.
const Alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// Length is the number of characters in a room code.
const Length = 6

// maxAttempts is the number of draws tried before giving up (spec §4.2).
const maxAttempts = 10

// ErrExhausted is returned when no free code was found within maxAttempts.
var ErrExhausted = errors.New("room code space exhausted")

// ExistsChecker reports whether a code is already in use. cache.Store
// satisfies this via its Exists method.
type ExistsChecker interface {
	Exists(ctx context.Context, code string) (bool, error)
}

// Issuer draws unique room codes.
type Issuer struct {
	store ExistsChecker
}

// New creates an Issuer backed by store.
func New(store ExistsChecker) *Issuer {
	return &Issuer{store: store}
}

// Issue draws a code, checks it against the store, and retries up to
// maxAttempts times before returning ErrExhausted. A store error on any
// attempt is surfaced immediately (it almost certainly recurs).
func (i *Issuer) Issue(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		code, err := draw()
		if err != nil {
			return "", fmt.Errorf("roomcode: draw: %w", err)
		}
		inUse, err := i.store.Exists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("roomcode: check %s: %w", code, err)
		}
		if !inUse {
			return code, nil
		}
	}
	return "", ErrExhausted
}

// draw returns one uniformly random code of Length characters from
// Alphabet, using crypto/rand the way the teacher's generateRoomCode does.
func draw() (string, error) {
	b := make([]byte, Length)
	buf := make([]byte, 1)
	// Bytes at or above limit are redrawn so every character is equally likely.
	limit := 256 - 256%len(Alphabet)
	for i := 0; i < Length; {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		if int(buf[0]) >= limit {
			continue
		}
		b[i] = Alphabet[int(buf[0])%len(Alphabet)]
		i++
	}
	return string(b), nil
}
