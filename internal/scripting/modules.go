package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// registerModules installs the engine.* Lua tables into v's VM:
//
//	engine.log.debug/info/warn/error(msg)  write to the Manager's logger
//	engine.rules.register(name, fn)        add fn to the rules run by Evaluate
func (m *Manager) registerModules(v *vm) {
	L := v.L
	engine := L.NewTable()

	logTbl := L.NewTable()
	for name, logFn := range map[string]func(string, ...zap.Field){
		"debug": m.logger.Debug,
		"info":  m.logger.Info,
		"warn":  m.logger.Warn,
		"error": m.logger.Error,
	} {
		logFn := logFn
		L.SetField(logTbl, name, L.NewFunction(func(L *lua.LState) int {
			logFn(L.CheckString(1), zap.String("source", "lua"))
			return 0
		}))
	}
	L.SetField(engine, "log", logTbl)

	rulesTbl := L.NewTable()
	L.SetField(rulesTbl, "register", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		fn := L.CheckFunction(2)
		v.rules = append(v.rules, namedRule{name: name, fn: fn})
		return 0
	}))
	L.SetField(engine, "rules", rulesTbl)

	L.SetGlobal("engine", engine)
}
