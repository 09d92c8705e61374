package scripting

import (
	"encoding/json"
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// ToLValue converts a JSON-shaped Go value into a Lua value owned by L.
// Maps become tables with string keys; slices become 1-based array tables.
//
// Postcondition: Returns an error for any value that has no JSON representation.
func ToLValue(L *lua.LState, v any) (lua.LValue, error) {
	switch tv := v.(type) {
	case nil:
		return lua.LNil, nil
	case bool:
		return lua.LBool(tv), nil
	case string:
		return lua.LString(tv), nil
	case float64:
		return lua.LNumber(tv), nil
	case float32:
		return lua.LNumber(tv), nil
	case int:
		return lua.LNumber(tv), nil
	case int32:
		return lua.LNumber(tv), nil
	case int64:
		return lua.LNumber(tv), nil
	case json.Number:
		f, err := tv.Float64()
		if err != nil {
			return lua.LNil, fmt.Errorf("number %q: %w", tv, err)
		}
		return lua.LNumber(f), nil
	case map[string]any:
		tbl := L.CreateTable(0, len(tv))
		for k, item := range tv {
			lv, err := ToLValue(L, item)
			if err != nil {
				return lua.LNil, fmt.Errorf("%s: %w", k, err)
			}
			tbl.RawSetString(k, lv)
		}
		return tbl, nil
	case []any:
		tbl := L.CreateTable(len(tv), 0)
		for i, item := range tv {
			lv, err := ToLValue(L, item)
			if err != nil {
				return lua.LNil, fmt.Errorf("[%d]: %w", i, err)
			}
			tbl.RawSetInt(i+1, lv)
		}
		return tbl, nil
	case []string:
		tbl := L.CreateTable(len(tv), 0)
		for i, s := range tv {
			tbl.RawSetInt(i+1, lua.LString(s))
		}
		return tbl, nil
	default:
		return lua.LNil, fmt.Errorf("unsupported type %T", v)
	}
}
