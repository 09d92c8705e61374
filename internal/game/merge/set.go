package merge

import (
	"encoding/json"
	"fmt"
	"strings"
)

// appendSuffix marks an instruction that pushes onto the list at its path.
const appendSuffix = "append"

// Instruction is one parsed line of a flat SET command.
type Instruction struct {
	// Line is the 1-based line number in the original command text.
	Line int
	// Path is the target key path, without any append suffix.
	Path Path
	// Value is the decoded JSON literal.
	Value any
	// Append is true when the line used the ".append" suffix.
	Append bool
}

// LineError reports a SET line that was skipped.
type LineError struct {
	Line int
	Text string
	Err  error
}

// Error implements the error interface.
func (e LineError) Error() string {
	return fmt.Sprintf("line %d %q: %v", e.Line, e.Text, e.Err)
}

// Unwrap returns the underlying parse failure.
func (e LineError) Unwrap() error {
	return e.Err
}

// ParseSetCommand parses a block of "path = <json>" lines.
//
// Blank lines are ignored. A line without "=", with an unusable path, or whose
// value is not a JSON literal is reported in the returned LineErrors and skipped;
// the remaining lines still parse.
//
// Postcondition: len(instructions)+len(errors) equals the number of non-blank lines.
func ParseSetCommand(text string) ([]Instruction, []LineError) {
	var (
		instrs []Instruction
		errs   []LineError
	)
	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		instr, err := parseLine(line)
		if err != nil {
			errs = append(errs, LineError{Line: i + 1, Text: line, Err: err})
			continue
		}
		instr.Line = i + 1
		instrs = append(instrs, instr)
	}
	return instrs, errs
}

func parseLine(line string) (Instruction, error) {
	key, valueText, ok := strings.Cut(line, "=")
	if !ok {
		return Instruction{}, fmt.Errorf("missing '='")
	}
	path, err := ParsePath(key)
	if err != nil {
		return Instruction{}, err
	}
	var instr Instruction
	if len(path) > 1 && path[len(path)-1] == appendSuffix {
		instr.Append = true
		path = path[:len(path)-1]
	}
	instr.Path = path

	valueText = strings.TrimSpace(valueText)
	if err := json.Unmarshal([]byte(valueText), &instr.Value); err != nil {
		return Instruction{}, fmt.Errorf("invalid JSON value: %w", err)
	}
	return instr, nil
}

// ApplyInstructions applies instrs to a copy of state.
//
// Assignments are applied in order, so the last write to a path wins. Appends are
// accumulated per path and flushed after all assignments as one extend per path,
// converting a non-list value at the target into the first element of a new list.
//
// Postcondition: state is unmodified. The bool is false when instrs is empty.
func ApplyInstructions(state map[string]any, instrs []Instruction) (map[string]any, bool) {
	if len(instrs) == 0 {
		return state, false
	}
	out := copyMap(state)

	var order []string
	pending := make(map[string][]any)
	paths := make(map[string]Path)
	for _, instr := range instrs {
		if !instr.Append {
			set(out, instr.Path, DeepCopy(instr.Value))
			continue
		}
		key := instr.Path.String()
		if _, seen := pending[key]; !seen {
			order = append(order, key)
			paths[key] = instr.Path
		}
		pending[key] = append(pending[key], DeepCopy(instr.Value))
	}

	for _, key := range order {
		path := paths[key]
		existing, _ := Lookup(out, path)
		set(out, path, extend(existing, pending[key]))
	}
	return out, true
}

func extend(existing any, values []any) []any {
	var list []any
	switch tv := existing.(type) {
	case nil:
		list = make([]any, 0, len(values))
	case []any:
		list = make([]any, 0, len(tv)+len(values))
		list = append(list, tv...)
	default:
		list = make([]any, 0, 1+len(values))
		list = append(list, tv)
	}
	return append(list, values...)
}
