// Package console runs an interactive narrator session in a terminal, one
// campaign at a time.
package console

import (
	"fmt"
	"strings"
)

// Categories for organizing commands.
const (
	CategoryPlay     = "play"
	CategoryCampaign = "campaign"
	CategorySystem   = "system"
)

// Handler identifiers mapping commands to console handlers.
const (
	HandlerThink   = "think"
	HandlerGod     = "god"
	HandlerState   = "state"
	HandlerNew     = "new"
	HandlerUse     = "use"
	HandlerHistory = "history"
	HandlerHelp    = "help"
	HandlerQuit    = "quit"
)

// Command defines a slash command.
type Command struct {
	// Name is the canonical command name.
	Name string
	// Aliases are alternate names for this command.
	Aliases []string
	// Help is the one-line help text.
	Help     string
	Category string
	// Handler selects the console handler.
	Handler string
}

// BuiltinCommands returns every console command.
func BuiltinCommands() []Command {
	return []Command{
		{Name: "think", Aliases: []string{"t"}, Help: "Plan without consequences (think <text>)", Category: CategoryPlay, Handler: HandlerThink},
		{Name: "god", Aliases: []string{"g"}, Help: `Run a debug command; write \n between SET lines (god GOD_MODE_SET: a.b = 1\nc = 2)`, Category: CategoryPlay, Handler: HandlerGod},
		{Name: "state", Aliases: nil, Help: "Print the campaign state (debug mode only)", Category: CategoryPlay, Handler: HandlerState},

		{Name: "new", Aliases: []string{"create"}, Help: "Create a campaign and switch to it (new [character name])", Category: CategoryCampaign, Handler: HandlerNew},
		{Name: "use", Aliases: []string{"campaign"}, Help: "Switch to an existing campaign (use <campaign id>)", Category: CategoryCampaign, Handler: HandlerUse},
		{Name: "history", Aliases: []string{"h"}, Help: "Show recent story entries (history [count])", Category: CategoryCampaign, Handler: HandlerHistory},

		{Name: "help", Aliases: []string{"?"}, Help: "Show available commands", Category: CategorySystem, Handler: HandlerHelp},
		{Name: "quit", Aliases: []string{"exit", "q"}, Help: "Leave the console", Category: CategorySystem, Handler: HandlerQuit},
	}
}

// ParseResult holds the parsed command name and arguments from a text line.
type ParseResult struct {
	// Command is the first word of the input, lowercased.
	Command string
	// Args are the remaining words after the command.
	Args []string
	// RawArgs is the raw text after the command, spacing preserved.
	RawArgs string
}

// Parse splits a text line into a command and arguments.
//
// Postcondition: Returns a ParseResult. If line is empty, Command is empty.
func Parse(line string) ParseResult {
	line = strings.TrimSpace(line)
	if line == "" {
		return ParseResult{}
	}

	spaceIdx := strings.IndexAny(line, " \t")
	if spaceIdx < 0 {
		return ParseResult{Command: strings.ToLower(line)}
	}

	rest := strings.TrimSpace(line[spaceIdx+1:])
	var args []string
	if rest != "" {
		args = strings.Fields(rest)
	}
	return ParseResult{
		Command: strings.ToLower(line[:spaceIdx]),
		Args:    args,
		RawArgs: rest,
	}
}

// Registry maps command names and aliases to Command definitions.
type Registry struct {
	commands map[string]*Command // canonical name → command
	aliases  map[string]string   // alias → canonical name
}

// NewRegistry creates a Registry populated with the given commands.
//
// Precondition: No two commands may share a canonical name or alias.
// Postcondition: Returns a Registry or an error on name/alias collisions.
func NewRegistry(cmds []Command) (*Registry, error) {
	r := &Registry{
		commands: make(map[string]*Command, len(cmds)),
		aliases:  make(map[string]string),
	}

	for i := range cmds {
		cmd := &cmds[i]
		if _, exists := r.commands[cmd.Name]; exists {
			return nil, fmt.Errorf("duplicate command name: %q", cmd.Name)
		}
		if _, exists := r.aliases[cmd.Name]; exists {
			return nil, fmt.Errorf("command name %q conflicts with an existing alias", cmd.Name)
		}
		r.commands[cmd.Name] = cmd

		for _, alias := range cmd.Aliases {
			if _, exists := r.commands[alias]; exists {
				return nil, fmt.Errorf("alias %q conflicts with command name %q", alias, alias)
			}
			if existing, exists := r.aliases[alias]; exists {
				return nil, fmt.Errorf("duplicate alias %q: used by %q and %q", alias, existing, cmd.Name)
			}
			r.aliases[alias] = cmd.Name
		}
	}
	return r, nil
}

// DefaultRegistry creates a Registry with all built-in commands.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(BuiltinCommands())
	if err != nil {
		panic(fmt.Sprintf("building default registry: %v", err))
	}
	return r
}

// Resolve looks up a command by name or alias.
//
// Postcondition: Returns (command, true) if found, or (nil, false).
func (r *Registry) Resolve(name string) (*Command, bool) {
	if cmd, ok := r.commands[name]; ok {
		return cmd, true
	}
	if canonical, ok := r.aliases[name]; ok {
		return r.commands[canonical], true
	}
	return nil, false
}

// Commands returns all registered commands in no particular order.
func (r *Registry) Commands() []*Command {
	result := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		result = append(result, cmd)
	}
	return result
}

// CommandsByCategory returns commands grouped by category.
func (r *Registry) CommandsByCategory() map[string][]*Command {
	categories := make(map[string][]*Command)
	for _, cmd := range r.commands {
		categories[cmd.Category] = append(categories[cmd.Category], cmd)
	}
	return categories
}
