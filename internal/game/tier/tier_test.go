package tier_test

import (
	"testing"

	"github.com/cory-johannsen/chronicle/internal/game/tier"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func gameState(custom, pc map[string]any) map[string]any {
	if custom == nil {
		custom = map[string]any{}
	}
	if pc == nil {
		pc = map[string]any{}
	}
	return map[string]any{"custom_campaign_state": custom, "player_character_data": pc}
}

func TestIsDivineUpgradeAvailable(t *testing.T) {
	e := tier.NewEvaluator(tier.DefaultThresholds())
	assert.False(t, e.IsDivineUpgradeAvailable(gameState(nil, nil)))
	assert.True(t, e.IsDivineUpgradeAvailable(gameState(map[string]any{"divine_upgrade_available": true}, nil)))
	assert.True(t, e.IsDivineUpgradeAvailable(gameState(map[string]any{"divine_potential": float64(100)}, nil)))
	assert.False(t, e.IsDivineUpgradeAvailable(gameState(map[string]any{"divine_potential": 99}, nil)))
	assert.True(t, e.IsDivineUpgradeAvailable(gameState(nil, map[string]any{"level": 25})))
	assert.True(t, e.IsDivineUpgradeAvailable(gameState(nil, map[string]any{"experience": map[string]any{"level": "30"}})))
	assert.False(t, e.IsDivineUpgradeAvailable(gameState(
		map[string]any{"tier": "divine", "divine_upgrade_available": true}, nil)), "only mortals ascend")
}

func TestIsMultiverseUpgradeAvailable(t *testing.T) {
	e := tier.NewEvaluator(tier.DefaultThresholds())
	assert.False(t, e.IsMultiverseUpgradeAvailable(gameState(nil, nil)))
	assert.True(t, e.IsMultiverseUpgradeAvailable(gameState(map[string]any{"universe_control": 70}, nil)))
	assert.True(t, e.IsMultiverseUpgradeAvailable(gameState(map[string]any{"tier": "divine", "multiverse_upgrade_available": "true"}, nil)))
	assert.False(t, e.IsMultiverseUpgradeAvailable(gameState(map[string]any{"tier": "sovereign", "universe_control": 100}, nil)))
}

func TestPendingUpgradeType_MultiverseWinsTie(t *testing.T) {
	e := tier.NewEvaluator(tier.DefaultThresholds())
	s := gameState(map[string]any{"divine_potential": 150, "universe_control": 80}, nil)
	assert.True(t, e.IsDivineUpgradeAvailable(s))
	assert.Equal(t, tier.UpgradeMultiverse, e.PendingUpgradeType(s))
	assert.Equal(t, tier.UpgradeDivine, e.PendingUpgradeType(gameState(map[string]any{"divine_potential": 150}, nil)))
	assert.Equal(t, tier.UpgradeNone, e.PendingUpgradeType(gameState(nil, nil)))
}

func TestCharacterLevel(t *testing.T) {
	assert.Equal(t, 1, tier.CharacterLevel(gameState(nil, nil)))
	assert.Equal(t, 7, tier.CharacterLevel(gameState(nil, map[string]any{"level": 7, "experience": map[string]any{"level": 3}})))
	assert.Equal(t, 3, tier.CharacterLevel(gameState(nil, map[string]any{"experience": map[string]any{"level": 3}})))
}

func TestHighestStatModifier(t *testing.T) {
	pc := map[string]any{"attributes": map[string]any{
		"strength":  map[string]any{"score": 18},
		"dexterity": 14,
		"wisdom":    map[string]any{"modifier": 5},
		"luck":      "lots",
	}}
	assert.Equal(t, 5, tier.HighestStatModifier(gameState(nil, pc)))

	pc = map[string]any{"attributes": map[string]any{"strength": 8, "dexterity": map[string]any{"score": 7}}}
	assert.Equal(t, -1, tier.HighestStatModifier(gameState(nil, pc)))

	assert.Equal(t, 0, tier.HighestStatModifier(gameState(nil, nil)))
	assert.Equal(t, 0, tier.HighestStatModifier(gameState(nil, map[string]any{"attributes": map[string]any{"x": "?"}})))
}

func TestAbilityMod_Property_FloorDivision(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		score := rapid.IntRange(1, 30).Draw(rt, "score")
		mod := tier.AbilityMod(score)
		assert.LessOrEqual(rt, 2*mod, score-10)
		assert.Greater(rt, 2*(mod+1), score-10)
	})
}

func TestProperty_MultiverseAlwaysPreferred(t *testing.T) {
	e := tier.NewEvaluator(tier.DefaultThresholds())
	rapid.Check(t, func(rt *rapid.T) {
		s := gameState(map[string]any{
			"divine_potential": rapid.IntRange(100, 1000).Draw(rt, "dp"),
			"universe_control": rapid.IntRange(70, 1000).Draw(rt, "uc"),
		}, map[string]any{"level": rapid.IntRange(1, 100).Draw(rt, "level")})
		assert.Equal(rt, tier.UpgradeMultiverse, e.PendingUpgradeType(s))
	})
}
