// Package tier evaluates divine and multiverse progression upgrades.
//
// Every function is a pure predicate over already-coerced state.
package tier

import (
	"github.com/cory-johannsen/chronicle/internal/game/numeric"
	"github.com/cory-johannsen/chronicle/internal/game/state"
)

// Campaign tiers, in progression order.
const (
	Mortal    = "mortal"
	Divine    = "divine"
	Sovereign = "sovereign"
)

// Upgrade kinds returned by PendingUpgradeType.
const (
	UpgradeNone       = ""
	UpgradeDivine     = "divine"
	UpgradeMultiverse = "multiverse"
)

// State keys read by the evaluator.
const (
	keyTier               = "tier"
	keyDivineFlag         = "divine_upgrade_available"
	keyMultiverseFlag     = "multiverse_upgrade_available"
	keyDivinePotential    = "divine_potential"
	keyUniverseControl    = "universe_control"
	keyAttributes         = "attributes"
	keyExperience         = "experience"
	keyLevel              = "level"
	defaultCharacterLevel = 1
)

// Thresholds are the numeric gates for each upgrade.
type Thresholds struct {
	DivinePotential int `mapstructure:"divine_potential"`
	DivineLevel     int `mapstructure:"divine_level"`
	UniverseControl int `mapstructure:"universe_control"`
}

// DefaultThresholds returns the standard upgrade gates.
func DefaultThresholds() Thresholds {
	return Thresholds{DivinePotential: 100, DivineLevel: 25, UniverseControl: 70}
}

// Evaluator answers upgrade questions against fixed Thresholds.
type Evaluator struct {
	thresholds Thresholds
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(t Thresholds) *Evaluator {
	return &Evaluator{thresholds: t}
}

// CurrentTier returns custom_campaign_state.tier, defaulting to Mortal.
func CurrentTier(s map[string]any) string {
	t, _ := state.Section(s, state.KeyCustomState)[keyTier].(string)
	if t == "" {
		return Mortal
	}
	return t
}

// IsDivineUpgradeAvailable reports whether a mortal campaign may ascend.
//
// Postcondition: false unless the tier is Mortal; then true when the explicit flag is
// set, divine_potential meets its threshold, or the character level meets its threshold.
func (e *Evaluator) IsDivineUpgradeAvailable(s map[string]any) bool {
	if CurrentTier(s) != Mortal {
		return false
	}
	custom := state.Section(s, state.KeyCustomState)
	if state.Truthy(custom[keyDivineFlag]) {
		return true
	}
	if n, ok := numeric.ToInt(custom[keyDivinePotential]); ok && n >= e.thresholds.DivinePotential {
		return true
	}
	return CharacterLevel(s) >= e.thresholds.DivineLevel
}

// IsMultiverseUpgradeAvailable reports whether a campaign may jump to Sovereign.
//
// Postcondition: false when the tier is already Sovereign; otherwise true when the
// explicit flag is set or universe_control meets its threshold.
func (e *Evaluator) IsMultiverseUpgradeAvailable(s map[string]any) bool {
	if CurrentTier(s) == Sovereign {
		return false
	}
	custom := state.Section(s, state.KeyCustomState)
	if state.Truthy(custom[keyMultiverseFlag]) {
		return true
	}
	n, ok := numeric.ToInt(custom[keyUniverseControl])
	return ok && n >= e.thresholds.UniverseControl
}

// PendingUpgradeType returns the upgrade to offer, preferring multiverse over divine.
//
// Postcondition: Returns UpgradeMultiverse, UpgradeDivine, or UpgradeNone.
func (e *Evaluator) PendingUpgradeType(s map[string]any) string {
	switch {
	case e.IsMultiverseUpgradeAvailable(s):
		return UpgradeMultiverse
	case e.IsDivineUpgradeAvailable(s):
		return UpgradeDivine
	default:
		return UpgradeNone
	}
}

// CharacterLevel reads the player level from player_character_data.level, falling back
// to player_character_data.experience.level, then to 1.
func CharacterLevel(s map[string]any) int {
	pc := state.Section(s, state.KeyPlayerCharacter)
	if n, ok := numeric.ToInt(pc[keyLevel]); ok {
		return n
	}
	if exp, ok := pc[keyExperience].(map[string]any); ok {
		if n, ok := numeric.ToInt(exp[keyLevel]); ok {
			return n
		}
	}
	return defaultCharacterLevel
}

// HighestStatModifier returns the largest ability modifier among the player's
// attributes, or 0 when none is readable.
//
// Attributes may be bare numbers, {"score": n}, or {"modifier": n}; an explicit
// modifier is used as-is.
func HighestStatModifier(s map[string]any) int {
	attrs, ok := state.Section(s, state.KeyPlayerCharacter)[keyAttributes].(map[string]any)
	if !ok {
		return 0
	}
	best, found := 0, false
	for _, raw := range attrs {
		mod, ok := modifierOf(raw)
		if !ok {
			continue
		}
		if !found || mod > best {
			best, found = mod, true
		}
	}
	return best
}

func modifierOf(raw any) (int, bool) {
	if rec, ok := raw.(map[string]any); ok {
		if n, ok := numeric.ToInt(rec["modifier"]); ok {
			return n, true
		}
		if n, ok := numeric.ToInt(rec["score"]); ok {
			return AbilityMod(n), true
		}
		return 0, false
	}
	n, ok := numeric.ToInt(raw)
	if !ok {
		return 0, false
	}
	return AbilityMod(n), true
}

// AbilityMod computes the standard ability modifier using floor division: floor((score - 10) / 2).
// Postcondition: Returns floor((score - 10) / 2).
func AbilityMod(score int) int {
	diff := score - 10
	if diff < 0 {
		return (diff - 1) / 2
	}
	return diff / 2
}
