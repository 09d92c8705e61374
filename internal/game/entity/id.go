// Package entity validates PC, NPC, and location records before they are trusted.
package entity

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Kind is the entity type encoded as an entity_id prefix.
type Kind string

const (
	KindPC       Kind = "pc"
	KindNPC      Kind = "npc"
	KindLocation Kind = "loc"
)

// MaxSequence is the largest sequence number that fits the 3-digit suffix.
const MaxSequence = 999

var (
	characterIDPattern = regexp.MustCompile(`^(pc|npc)_[\w]+_\d{3}$`)
	locationIDPattern  = regexp.MustCompile(`^loc_[\w]+_\d{3}$`)

	separatorChars = strings.NewReplacer(
		"'", "_", "’", "_", "`", "_",
		" ", "_", "\t", "_", "-", "_", "‐", "_", "–", "_",
	)
	nonSlugChars   = regexp.MustCompile(`[^a-z0-9_]+`)
	repeatedUnders = regexp.MustCompile(`_+`)
)

// IsCharacterID reports whether id has the pc_/npc_ shape.
func IsCharacterID(id string) bool {
	return characterIDPattern.MatchString(id)
}

// IsLocationID reports whether id has the loc_ shape.
func IsLocationID(id string) bool {
	return locationIDPattern.MatchString(id)
}

// KindOf infers the entity kind from an ID prefix.
//
// Postcondition: Returns ("", false) when id carries no recognized prefix.
func KindOf(id string) (Kind, bool) {
	switch {
	case strings.HasPrefix(id, "pc_"):
		return KindPC, true
	case strings.HasPrefix(id, "npc_"):
		return KindNPC, true
	case strings.HasPrefix(id, "loc_"):
		return KindLocation, true
	default:
		return "", false
	}
}

// Sanitize converts a display name into an ID slug.
//
// The name is lowercased; apostrophes, spaces, and hyphens become underscores;
// every remaining character outside [a-z0-9_] is dropped; runs of underscores
// collapse to one and leading or trailing underscores are trimmed.
//
// Postcondition: the result matches ^[a-z0-9_]*$ and may be empty.
func Sanitize(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = separatorChars.Replace(s)
	s = nonSlugChars.ReplaceAllString(s, "")
	s = repeatedUnders.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// NewID builds an entity ID from kind, display name, and sequence number.
//
// Precondition: 1 <= seq <= MaxSequence; name must contain at least one ASCII letter or digit.
// Postcondition: the returned ID satisfies IsCharacterID or IsLocationID for its kind.
func NewID(kind Kind, name string, seq int) (string, error) {
	if kind != KindPC && kind != KindNPC && kind != KindLocation {
		return "", fmt.Errorf("entity: unknown kind %q", kind)
	}
	if seq < 1 || seq > MaxSequence {
		return "", fmt.Errorf("entity: sequence %d out of range [1,%d]", seq, MaxSequence)
	}
	slug := Sanitize(name)
	if slug == "" {
		return "", fmt.Errorf("entity: name %q has no usable characters", name)
	}
	return fmt.Sprintf("%s_%s_%03d", kind, slug, seq), nil
}

// NextSequence returns the next free sequence number for kind and name given the
// IDs already in use.
//
// Postcondition: Returns 1 when no existing ID shares the prefix, otherwise one more
// than the highest suffix found. The result may exceed MaxSequence.
func NextSequence(existing []string, kind Kind, name string) int {
	prefix := string(kind) + "_" + Sanitize(name) + "_"
	highest := 0
	for _, id := range existing {
		rest, ok := strings.CutPrefix(id, prefix)
		if !ok || len(rest) != 3 {
			continue
		}
		n, err := strconv.Atoi(rest)
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return highest + 1
}
