// Package avatar implements avatar assignment (spec §4.3): a fixed set
// of emoji avatars, assigned on join by excluding whatever the room's
// current players already hold.
package avatar

import "math/rand"

// Avatars is the fixed 16-emoji set avatars are drawn from (spec §4.3).
var Avatars = [16]string{
	"🦊", "🐼", "🐸", "🦁", "🐯", "🐨", "🐵", "🦄",
	"🐙", "🦉", "🐺", "🐻", "🐧", "🐢", "🦋", "🐬",
}

// Valid reports whether avatar is a member of the fixed set (used by
// Validator, spec §4.5).
func Valid(avatar string) bool {
	for _, a := range Avatars {
		if a == avatar {
			return true
		}
	}
	return false
}

// AssignExcluding picks an avatar not present in taken, falling back to a
// random avatar if every one is taken. The room record in RoomStore is
// the single source of truth for who holds which avatar, so this is
// recomputed from the room's current players on every join rather than
// tracked in a separate per-room allocator.
func AssignExcluding(taken []string) string {
	inUse := make(map[string]bool, len(taken))
	for _, a := range taken {
		inUse[a] = true
	}
	free := make([]string, 0, len(Avatars))
	for _, a := range Avatars {
		if !inUse[a] {
			free = append(free, a)
		}
	}
	if len(free) == 0 {
		return Avatars[rand.Intn(len(Avatars))]
	}
	return free[rand.Intn(len(free))]
}
