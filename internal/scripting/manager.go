package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// globalRuleset is the reserved key for shared rules loaded via LoadGlobal.
// Lookups fall back to this VM when no campaign-specific ruleset is found.
const globalRuleset = "__global__"

// CheckStateHook is the global Lua function Evaluate calls in addition to every
// rule registered through engine.rules.register.
const CheckStateHook = "check_state"

type namedRule struct {
	name string
	fn   *lua.LFunction
}

// vm is one sandboxed LState plus the rules its scripts registered.
// An LState is single-threaded; mu serializes every use of L.
type vm struct {
	mu     sync.Mutex
	L      *lua.LState
	limit  int
	rules  []namedRule
	closed bool
}

// close releases the LState. v.mu must be held.
func (v *vm) close() {
	if !v.closed {
		v.L.Close()
		v.closed = true
	}
}

// Manager owns one sandboxed VM per ruleset and evaluates state rules in them.
//
// Manager is safe for concurrent use. Calls into the same ruleset are serialized;
// different rulesets run concurrently.
type Manager struct {
	mu     sync.RWMutex
	vms    map[string]*vm
	logger *zap.Logger
}

// NewManager creates a Manager.
//
// Precondition: logger must be non-nil.
// Postcondition: Returns a non-nil Manager with no rulesets loaded.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		panic("scripting.NewManager: logger must not be nil")
	}
	return &Manager{
		vms:    make(map[string]*vm),
		logger: logger,
	}
}

// LoadRuleset creates a sandboxed VM for name, registers all engine.* modules,
// then executes every *.lua file in scriptDir in lexicographic order.
//
// Precondition: name must be non-empty; scriptDir must be a readable directory.
// Postcondition: the ruleset replaces any previous one of the same name; returns
// an error on Lua load failure, leaving the previous ruleset in place.
func (m *Manager) LoadRuleset(name, scriptDir string, instLimit int) error {
	return m.loadInto(name, scriptDir, instLimit)
}

// LoadGlobal creates the shared VM consulted for any ruleset without its own scripts.
//
// Precondition: scriptDir must be a readable directory.
// Postcondition: Global VM is registered; returns error on Lua load failure.
func (m *Manager) LoadGlobal(scriptDir string, instLimit int) error {
	return m.loadInto(globalRuleset, scriptDir, instLimit)
}

// LoadRulesDir loads the global ruleset from the *.lua files directly in dir and
// one ruleset per subdirectory, named after it. A campaign whose ID matches a
// subdirectory is evaluated against that ruleset instead of the global one.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns the loaded campaign ruleset names in lexicographic order,
// or the first load error.
func (m *Manager) LoadRulesDir(dir string, instLimit int) ([]string, error) {
	if err := m.LoadGlobal(dir, instLimit); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scripting: reading rules dir %q: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := m.LoadRuleset(e.Name(), filepath.Join(dir, e.Name()), instLimit); err != nil {
			return nil, err
		}
		names = append(names, e.Name())
	}
	return names, nil
}

func (m *Manager) loadInto(key, scriptDir string, instLimit int) error {
	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		return fmt.Errorf("scripting: reading script dir %q for %q: %w", scriptDir, key, err)
	}
	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(scriptDir, e.Name()))
		}
	}
	sort.Strings(luaFiles)

	v := &vm{L: NewSandboxedState(), limit: instLimit}
	m.registerModules(v)
	for _, path := range luaFiles {
		release := WithInstructionLimit(v.L, v.limit)
		err := v.L.DoFile(path)
		release()
		if err != nil {
			v.L.Close()
			return fmt.Errorf("scripting: loading %q for %q: %w", path, key, err)
		}
	}

	m.mu.Lock()
	old := m.vms[key]
	m.vms[key] = v
	m.mu.Unlock()
	if old != nil {
		old.mu.Lock()
		old.close()
		old.mu.Unlock()
	}
	m.logger.Info("scripting: ruleset loaded",
		zap.String("ruleset", key),
		zap.Int("files", len(luaFiles)),
		zap.Int("rules", len(v.rules)),
	)
	return nil
}

func (m *Manager) lookup(ruleset string) *vm {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.vms[ruleset]; ok {
		return v
	}
	return m.vms[globalRuleset]
}

// Evaluate runs every registered rule and the check_state hook against s and
// returns the correction strings they produce, in rule registration order with
// check_state last.
//
// A rule returns nil, a string, or an array of strings. A rule that raises an
// error or exhausts its instruction budget is logged and skipped.
//
// Postcondition: s is not modified. Returns (nil, nil) when no VM applies.
func (m *Manager) Evaluate(ruleset string, s map[string]any) ([]string, error) {
	v := m.lookup(ruleset)
	if v == nil {
		return nil, nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil, nil
	}

	rules := append([]namedRule(nil), v.rules...)
	if fn, ok := v.L.GetGlobal(CheckStateHook).(*lua.LFunction); ok {
		rules = append(rules, namedRule{name: CheckStateHook, fn: fn})
	}
	if len(rules) == 0 {
		return nil, nil
	}

	var out []string
	for _, r := range rules {
		// Each rule gets its own copy of the state table.
		arg, err := ToLValue(v.L, s)
		if err != nil {
			return nil, fmt.Errorf("scripting: converting state for %q: %w", ruleset, err)
		}
		ret, err := m.call(v, r.fn, arg)
		if err != nil {
			m.logger.Warn("scripting: rule failed",
				zap.String("ruleset", ruleset),
				zap.String("rule", r.name),
				zap.Error(err),
			)
			continue
		}
		out = append(out, stringsOf(ret)...)
	}
	return out, nil
}

// call invokes fn under a fresh instruction budget. v.mu must be held.
func (m *Manager) call(v *vm, fn *lua.LFunction, args ...lua.LValue) (lua.LValue, error) {
	release := WithInstructionLimit(v.L, v.limit)
	defer release()
	if err := v.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, args...); err != nil {
		return lua.LNil, err
	}
	ret := v.L.Get(-1)
	v.L.Pop(1)
	return ret, nil
}

// Close releases every VM. Subsequent calls behave as if nothing was loaded.
func (m *Manager) Close() {
	m.mu.Lock()
	vms := m.vms
	m.vms = make(map[string]*vm)
	m.mu.Unlock()
	for _, v := range vms {
		v.mu.Lock()
		v.close()
		v.mu.Unlock()
	}
}

func stringsOf(v lua.LValue) []string {
	switch tv := v.(type) {
	case lua.LString:
		if tv == "" {
			return nil
		}
		return []string{string(tv)}
	case *lua.LTable:
		var out []string
		for i := 1; i <= tv.Len(); i++ {
			if s, ok := tv.RawGetInt(i).(lua.LString); ok && s != "" {
				out = append(out, string(s))
			}
		}
		return out
	default:
		return nil
	}
}
