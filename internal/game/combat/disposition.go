// Package combat removes defeated hostile combatants from merged game state.
package combat

import "strings"

// Disposition is the side a combatant fights on.
type Disposition int

const (
	Neutral Disposition = iota
	Friendly
	Hostile
)

// String returns a human-readable disposition label.
func (d Disposition) String() string {
	switch d {
	case Friendly:
		return "friendly"
	case Hostile:
		return "hostile"
	default:
		return "neutral"
	}
}

var (
	friendlyTypes = map[string]struct{}{
		"pc": {}, "player": {}, "ally": {}, "companion": {},
		"friendly": {}, "party": {}, "follower": {},
	}
	hostileTypes = map[string]struct{}{
		"enemy": {}, "hostile": {}, "monster": {}, "boss": {},
		"minion": {}, "foe": {},
	}
)

// ClassifyDisposition maps a legacy free-text type string to a Disposition.
// Player combatants are always Friendly.
//
// Postcondition: Returns Friendly, Hostile, or Neutral; unknown types are Neutral.
func ClassifyDisposition(legacyType string, isPlayer bool) Disposition {
	if isPlayer {
		return Friendly
	}
	t := strings.ToLower(strings.TrimSpace(legacyType))
	if _, ok := friendlyTypes[t]; ok {
		return Friendly
	}
	if _, ok := hostileTypes[t]; ok {
		return Hostile
	}
	return Neutral
}
