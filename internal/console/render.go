package console

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/cory-johannsen/chronicle/internal/game/state"
	"github.com/cory-johannsen/chronicle/internal/game/turn"
)

// RenderResponse formats a turn result as colored terminal text.
func RenderResponse(r *turn.Response) string {
	var b strings.Builder

	color := White
	if !r.Success {
		color = Red
	}
	b.WriteString(Colorize(color, r.Narrative))
	if r.Error != "" {
		b.WriteString("\n")
		b.WriteString(Colorf(Dim, "  error: %s", r.Error))
	}
	if len(r.RemovedEnemies) > 0 {
		b.WriteString("\n")
		b.WriteString(Colorf(Red, "Defeated: %s", strings.Join(r.RemovedEnemies, ", ")))
	}
	if r.PendingUpgrade != "" {
		b.WriteString("\n")
		b.WriteString(Colorf(BrightMagenta, "A %s upgrade is available.", r.PendingUpgrade))
	}
	for _, c := range r.SystemCorrections {
		b.WriteString("\n")
		b.WriteString(Colorf(Yellow, "! %s", c))
	}
	if len(r.StateUpdates) > 0 {
		if raw, err := json.Marshal(r.StateUpdates); err == nil {
			b.WriteString("\n")
			b.WriteString(Colorf(Dim, "state_updates: %s", raw))
		}
	}
	if r.Success && r.SequenceID > 0 {
		b.WriteString("\n")
		b.WriteString(Colorf(Dim, "[sequence %d, scene %d]", r.SequenceID, r.UserSceneNumber))
	}
	return b.String()
}

// RenderHistory formats story entries oldest first.
func RenderHistory(entries []state.StoryEntry) string {
	if len(entries) == 0 {
		return Colorize(Dim, "No story yet.")
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		label := "You"
		color := BrightWhite
		if e.Actor == state.ActorNarrator {
			label = "Narrator"
			color = White
		}
		if e.Mode == state.ModeThink {
			label += " (thinking)"
		}
		lines = append(lines, Colorf(color, "%4d %s: %s", e.SequenceID, label, e.Text))
	}
	return strings.Join(lines, "\n")
}

// RenderHelp lists commands by category.
func RenderHelp(r *Registry) string {
	categories := []struct {
		name  string
		label string
	}{
		{CategoryPlay, "Play"},
		{CategoryCampaign, "Campaign"},
		{CategorySystem, "System"},
	}

	var b strings.Builder
	b.WriteString(Colorize(BrightWhite, "Type anything to act. Prefix with \"think:\" to plan without consequences."))
	byCategory := r.CommandsByCategory()
	for _, cat := range categories {
		cmds := byCategory[cat.name]
		if len(cmds) == 0 {
			continue
		}
		sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
		b.WriteString("\n")
		b.WriteString(Colorf(BrightYellow, "  %s:", cat.label))
		for _, cmd := range cmds {
			aliases := ""
			if len(cmd.Aliases) > 0 {
				aliases = " (/" + strings.Join(cmd.Aliases, ", /") + ")"
			}
			b.WriteString("\n")
			b.WriteString(Colorf(Green, "    /%-10s", cmd.Name))
			b.WriteString(fmt.Sprintf("%s %s", aliases, cmd.Help))
		}
	}
	return b.String()
}
