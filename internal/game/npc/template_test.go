package npc_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/chronicle/internal/game/entity"
	"github.com/cory-johannsen/chronicle/internal/game/npc"
	"github.com/cory-johannsen/chronicle/internal/game/numeric"
)

const innkeeperYAML = `
id: innkeeper
name: Marta Hollow
gender: female
description: Runs the Drowned Lantern.
type: friendly
level: 2
max_hp: 12
ac: 10
preload: true
abilities:
  strength: 10
  dexterity: 12
  constitution: 11
  intelligence: 13
  wisdom: 14
  charisma: 16
`

func TestLoadTemplateFromBytes_Valid(t *testing.T) {
	tmpl, err := npc.LoadTemplateFromBytes([]byte(innkeeperYAML))
	require.NoError(t, err)
	assert.Equal(t, "innkeeper", tmpl.ID)
	assert.Equal(t, "Marta Hollow", tmpl.Name)
	assert.Equal(t, "female", tmpl.Gender)
	assert.Equal(t, 12, tmpl.MaxHP)
	assert.Equal(t, 16, tmpl.Abilities.Charisma)
	assert.True(t, tmpl.Preload)
}

func TestLoadTemplateFromBytes_Invalid(t *testing.T) {
	cases := map[string]string{
		"missing gender": "id: a\nname: A\nlevel: 1\nmax_hp: 5\n",
		"missing id":     "name: A\ngender: male\nlevel: 1\nmax_hp: 5\n",
		"zero level":     "id: a\nname: A\ngender: male\nlevel: 0\nmax_hp: 5\n",
		"zero hp":        "id: a\nname: A\ngender: male\nlevel: 1\nmax_hp: 0\n",
		"negative ac":    "id: a\nname: A\ngender: male\nlevel: 1\nmax_hp: 5\nac: -1\n",
		"bad yaml":       "id: [unclosed",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := npc.LoadTemplateFromBytes([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestLoadTemplates_Directory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "innkeeper.yaml"), []byte(innkeeperYAML), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.yaml"), 0755))

	templates, err := npc.LoadTemplates(dir)
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, "innkeeper", templates[0].ID)
}

func TestLoadTemplates_BadFileFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("id: x\n"), 0644))
	_, err := npc.LoadTemplates(dir)
	assert.Error(t, err)

	_, err = npc.LoadTemplates(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestPreload_SeedsRecords(t *testing.T) {
	tmpl, err := npc.LoadTemplateFromBytes([]byte(innkeeperYAML))
	require.NoError(t, err)
	skipped := &npc.Template{ID: "bandit", Name: "Bandit", Gender: "male", Level: 1, MaxHP: 8}

	out, err := npc.Preload([]*npc.Template{tmpl, skipped}, nil)
	require.NoError(t, err)
	require.Len(t, out, 1)

	rec := out["Marta Hollow"].(map[string]any)
	assert.Equal(t, "npc_marta_hollow_001", rec["entity_id"])
	assert.Equal(t, "npc", rec["entity_type"])
	assert.Equal(t, "female", rec["gender"])
	assert.Equal(t, 12, rec["hp"])
	assert.Equal(t, 12, rec["hp_max"])
	assert.Equal(t, "friendly", rec["type"])
	assert.True(t, entity.IsCharacterID(rec["entity_id"].(string)))
}

func TestPreload_KeepsExistingAndContinuesSequence(t *testing.T) {
	existing := map[string]any{
		"Marta Hollow": map[string]any{"name": "Marta Hollow", "entity_id": "npc_marta_hollow_001", "hp": 3},
		"Other":        map[string]any{"name": "Other", "entity_id": "npc_guard_001"},
	}
	guard := &npc.Template{ID: "guard", Name: "Guard", Gender: "male", Level: 1, MaxHP: 10, Preload: true}
	marta := &npc.Template{ID: "innkeeper", Name: "Marta Hollow", Gender: "female", Level: 1, MaxHP: 12, Preload: true}

	out, err := npc.Preload([]*npc.Template{guard, marta}, existing)
	require.NoError(t, err)
	assert.Equal(t, 3, out["Marta Hollow"].(map[string]any)["hp"], "existing record must not be replaced")
	assert.Equal(t, "npc_guard_002", out["Guard"].(map[string]any)["entity_id"])
	assert.Len(t, existing, 2, "input must not be modified")
}

func TestPreload_UnsluggableName(t *testing.T) {
	bad := &npc.Template{ID: "x", Name: "!!!", Gender: "male", Level: 1, MaxHP: 1, Preload: true}
	_, err := npc.Preload([]*npc.Template{bad}, nil)
	assert.Error(t, err)
}

func TestProperty_PreloadedRecordsPassValidation(t *testing.T) {
	v, err := entity.NewValidator(numeric.NewConverter(numeric.DefaultTable(), zap.NewNop()), zap.NewNop())
	require.NoError(t, err)
	rapid.Check(t, func(rt *rapid.T) {
		name := rapid.StringMatching(`[A-Z][a-z]{2,8}( [A-Z][a-z]{2,8})?`).Draw(rt, "name")
		hp := rapid.IntRange(1, 500).Draw(rt, "hp")
		data := fmt.Sprintf("id: t\nname: %s\ngender: nonbinary\nlevel: 1\nmax_hp: %d\npreload: true\n", name, hp)
		tmpl, err := npc.LoadTemplateFromBytes([]byte(data))
		require.NoError(rt, err)

		out, err := npc.Preload([]*npc.Template{tmpl}, nil)
		require.NoError(rt, err)
		_, err = v.ValidateCharacter(out[name].(map[string]any))
		assert.NoError(rt, err)
	})
}
