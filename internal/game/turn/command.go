package turn

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Debug command prefixes recognized in player input.
const (
	prefixAskState    = "GOD_ASK_STATE"
	prefixSet         = "GOD_MODE_SET:"
	prefixUpdateState = "GOD_MODE_UPDATE_STATE:"
)

// CommandKind identifies a debug command.
type CommandKind int

const (
	// CommandAskState dumps the current state document.
	CommandAskState CommandKind = iota + 1
	// CommandSet applies flat "path = json" lines.
	CommandSet
	// CommandUpdateState deep-merges a JSON object into state.
	CommandUpdateState
)

// String returns the command keyword.
func (k CommandKind) String() string {
	switch k {
	case CommandAskState:
		return prefixAskState
	case CommandSet:
		return strings.TrimSuffix(prefixSet, ":")
	case CommandUpdateState:
		return strings.TrimSuffix(prefixUpdateState, ":")
	default:
		return "UNKNOWN"
	}
}

// Command is a parsed debug command.
type Command struct {
	Kind CommandKind
	// Body is everything after the command prefix, trimmed.
	Body string
}

// ParseCommand recognizes a debug command at the start of input. A keyword
// without a trailing colon must be followed by whitespace or end of input.
//
// Postcondition: Returns (cmd, true) when input begins with a debug command
// keyword, (Command{}, false) otherwise. Leading whitespace is ignored.
func ParseCommand(input string) (Command, bool) {
	trimmed := strings.TrimSpace(input)
	for _, c := range []struct {
		kind   CommandKind
		prefix string
	}{
		{CommandUpdateState, prefixUpdateState},
		{CommandSet, prefixSet},
		{CommandAskState, prefixAskState},
	} {
		if rest, ok := cutKeyword(trimmed, c.prefix); ok {
			return Command{Kind: c.kind, Body: strings.TrimSpace(rest)}, true
		}
	}
	return Command{}, false
}

func cutKeyword(s, keyword string) (string, bool) {
	rest, ok := strings.CutPrefix(s, keyword)
	if !ok {
		return "", false
	}
	if rest == "" || strings.HasSuffix(keyword, ":") {
		return rest, true
	}
	r, _ := utf8.DecodeRuneInString(rest)
	return rest, unicode.IsSpace(r)
}

// Outcome is the result of offering input to the debug command handler.
// It is either NotMatched or Handled.
type Outcome interface {
	outcome()
}

// NotMatched means the input is not a debug command and the turn continues.
type NotMatched struct{}

// Handled means a debug command consumed the turn.
type Handled struct {
	Response *Response
}

func (NotMatched) outcome() {}
func (Handled) outcome()    {}
