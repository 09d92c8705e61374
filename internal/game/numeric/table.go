// Package numeric coerces untrusted numeric-ish values from LLM output into
// safe, range-clamped integers.
package numeric

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Category groups numeric fields that share a default and a range policy.
type Category string

const (
	CategoryHP       Category = "hp"
	CategoryAbility  Category = "ability"
	CategoryResource Category = "resource"
	CategoryLevel    Category = "level"
	CategoryArmor    Category = "armor"
)

// Policy is the default value and inclusive range for one Category.
// A nil Max means the range is unbounded above.
type Policy struct {
	Default int  `yaml:"default"`
	Min     int  `yaml:"min"`
	Max     *int `yaml:"max"`
}

// Clamp forces n into the policy range.
//
// Postcondition: Min <= result, and result <= *Max when Max is set.
func (p Policy) Clamp(n int) int {
	if n < p.Min {
		return p.Min
	}
	if p.Max != nil && n > *p.Max {
		return *p.Max
	}
	return n
}

func (p Policy) contains(n int) bool {
	return p.Clamp(n) == n
}

// Table is an immutable mapping from field name to Policy.
// Field names are matched case-insensitively. A name of the form "parent.field"
// applies only to field when it sits directly under a key named parent.
type Table struct {
	policies map[Category]Policy
	fields   map[string]Category
}

// tableFile is the YAML layout accepted by LoadTable.
type tableFile struct {
	Policies map[Category]Policy `yaml:"policies"`
	Fields   map[string]Category `yaml:"fields"`
}

func intPtr(n int) *int { return &n }

// abilities are the ability names, long and short, recognized as score fields.
var abilities = []string{
	"strength", "dexterity", "constitution", "intelligence", "wisdom", "charisma",
	"str", "dex", "con", "int", "wis", "cha",
}

// DefaultTable returns a fresh copy of the built-in field table.
//
// Ability names are scores both as bare fields and as the "score" key of an
// ability record ("strength.score"). A "score" anywhere else is not coerced.
//
// Postcondition: HP-family fields clamp to >= 1, ability scores to [1,30],
// resources to >= 0, and levels to >= 1.
func DefaultTable() Table {
	fields := map[string]Category{
		"hp":                CategoryHP,
		"hp_current":        CategoryHP,
		"hp_max":            CategoryHP,
		"current_hp":        CategoryHP,
		"max_hp":            CategoryHP,
		"gold":              CategoryResource,
		"xp":                CategoryResource,
		"experience_points": CategoryResource,
		"temp_hp":           CategoryResource,
		"divine_potential":  CategoryResource,
		"universe_control":  CategoryResource,
		"spell_slots":       CategoryResource,
		"level":             CategoryLevel,
		"ac":                CategoryArmor,
		"armor_class":       CategoryArmor,
	}
	for _, name := range abilities {
		fields[name] = CategoryAbility
		fields[name+".score"] = CategoryAbility
	}
	t, err := NewTable(
		map[Category]Policy{
			CategoryHP:       {Default: 1, Min: 1},
			CategoryAbility:  {Default: 10, Min: 1, Max: intPtr(30)},
			CategoryResource: {Default: 0, Min: 0},
			CategoryLevel:    {Default: 1, Min: 1, Max: intPtr(100)},
			CategoryArmor:    {Default: 10, Min: 0},
		},
		fields,
	)
	if err != nil {
		panic(fmt.Sprintf("numeric: built-in table is invalid: %v", err))
	}
	return t
}

// NewTable builds a Table from the given policies and field assignments.
// The inputs are copied; later mutation by the caller has no effect.
//
// Precondition: every field must reference a Category present in policies.
// Postcondition: Returns a Table or an error describing the first violation.
func NewTable(policies map[Category]Policy, fields map[string]Category) (Table, error) {
	t := Table{
		policies: make(map[Category]Policy, len(policies)),
		fields:   make(map[string]Category, len(fields)),
	}
	for cat, p := range policies {
		if p.Max != nil {
			if *p.Max < p.Min {
				return Table{}, fmt.Errorf("numeric: policy %q has max %d below min %d", cat, *p.Max, p.Min)
			}
			p.Max = intPtr(*p.Max)
		}
		if !p.contains(p.Default) {
			return Table{}, fmt.Errorf("numeric: policy %q default %d is outside its range", cat, p.Default)
		}
		t.policies[cat] = p
	}
	for field, cat := range fields {
		if _, ok := t.policies[cat]; !ok {
			return Table{}, fmt.Errorf("numeric: field %q references unknown category %q", field, cat)
		}
		t.fields[strings.ToLower(field)] = cat
	}
	return t, nil
}

// LoadTable reads a YAML field table from path.
//
// Precondition: path must be a readable YAML file with "policies" and "fields" keys.
// Postcondition: Returns a validated Table or a non-nil error.
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("reading numeric table %q: %w", path, err)
	}
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Table{}, fmt.Errorf("parsing numeric table %q: %w", path, err)
	}
	t, err := NewTable(f.Policies, f.Fields)
	if err != nil {
		return Table{}, fmt.Errorf("loading numeric table %q: %w", path, err)
	}
	return t, nil
}

// Lookup returns the policy governing field.
//
// Postcondition: Returns (policy, true) for a recognized field, or (Policy{}, false).
func (t Table) Lookup(field string) (Policy, bool) {
	cat, ok := t.fields[strings.ToLower(field)]
	if !ok {
		return Policy{}, false
	}
	p := t.policies[cat]
	return p, true
}

// LookupIn returns the policy governing field when it appears directly under
// parent. A scoped entry "parent.field" wins over a bare "field" entry.
//
// Postcondition: Returns (policy, true) for a recognized field, or (Policy{}, false).
func (t Table) LookupIn(parent, field string) (Policy, bool) {
	if parent != "" {
		if p, ok := t.Lookup(parent + "." + field); ok {
			return p, true
		}
	}
	return t.Lookup(field)
}

// Fields returns the recognized field names in sorted order.
func (t Table) Fields() []string {
	out := make([]string, 0, len(t.fields))
	for f := range t.fields {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// clampFloat converts f to an int without overflowing, truncating toward zero.
func clampFloat(f float64) int {
	switch {
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	default:
		return int(f)
	}
}
