// Package state defines the canonical GameState document and typed, read-only
// views over it.
//
// GameState is held as a JSON-compatible map[string]any so that arbitrary
// LLM-proposed keys survive a round trip. Mutation goes through package merge.
package state

import (
	"time"
)

// Top-level GameState keys.
const (
	KeyPlayerCharacter  = "player_character_data"
	KeyNPCData          = "npc_data"
	KeyWorldData        = "world_data"
	KeyCombatState      = "combat_state"
	KeyCustomState      = "custom_campaign_state"
	KeyDebugMode        = "debug_mode"
	KeyVersion          = "game_state_version"
	KeyLastUpdatedAt    = "last_state_update_timestamp"
	KeyWorldTime        = "world_time"
	KeyLastStorySeqID   = "last_story_mode_sequence_id"
	KeyDefeatedEnemies  = "defeated_enemies"
	KeyPresentEntities  = "present_entities"
	KeySceneParticipant = "participants"
	KeyLocations        = "locations"
)

// combat_state keys.
const (
	KeyInCombat         = "in_combat"
	KeyCombatPhase      = "combat_phase"
	KeyCombatants       = "combatants"
	KeyRewardsProcessed = "rewards_processed"
	KeyCombatSummary    = "combat_summary"
)

// SchemaVersion is written to game_state_version by New.
const SchemaVersion = 1

// Mode is the interaction mode of a turn.
type Mode string

const (
	// ModeCharacter is normal play; the world advances.
	ModeCharacter Mode = "character"
	// ModeThink freezes the world except for a one-microsecond clock tick.
	ModeThink Mode = "think"
	// ModeGod is an operator mode; debug commands are only honored with debug_mode on.
	ModeGod Mode = "god"
)

// ParseMode maps s to a Mode. An empty string is ModeCharacter.
//
// Postcondition: Returns (mode, true) for a known mode, ("", false) otherwise.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case "", ModeCharacter:
		return ModeCharacter, true
	case ModeThink:
		return ModeThink, true
	case ModeGod:
		return ModeGod, true
	default:
		return "", false
	}
}

// New returns the default GameState for a freshly created campaign.
//
// Postcondition: every top-level section exists; combat is inactive; tier is "mortal".
func New(now time.Time) map[string]any {
	return map[string]any{
		KeyPlayerCharacter: map[string]any{},
		KeyNPCData:         map[string]any{},
		KeyWorldData: map[string]any{
			KeyWorldTime: WorldTime{Year: 1, Month: 1, Day: 1}.ToMap(),
		},
		KeyCombatState: map[string]any{
			KeyInCombat:         false,
			KeyCombatants:       []any{},
			KeyRewardsProcessed: false,
		},
		KeyCustomState: map[string]any{
			"tier": "mortal",
		},
		KeyDebugMode:     false,
		KeyVersion:       SchemaVersion,
		KeyLastUpdatedAt: now.UTC().Format(time.RFC3339Nano),
	}
}

// Section returns the map stored at key, or nil when absent or not a map.
func Section(s map[string]any, key string) map[string]any {
	m, _ := s[key].(map[string]any)
	return m
}

// DebugMode reports whether debug_mode is set to true.
func DebugMode(s map[string]any) bool {
	b, _ := s[KeyDebugMode].(bool)
	return b
}

// Truthy interprets a JSON value the way an LLM flag is usually meant:
// true, non-zero numbers, and the strings "true"/"yes"/"1" are true.
func Truthy(v any) bool {
	switch tv := v.(type) {
	case bool:
		return tv
	case float64:
		return tv != 0
	case int:
		return tv != 0
	case string:
		switch tv {
		case "true", "True", "TRUE", "yes", "Yes", "1":
			return true
		}
	}
	return false
}
